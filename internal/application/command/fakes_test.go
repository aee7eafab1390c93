package command

import (
	"context"
	"sync"
	"time"

	"github.com/learnflow/learnflow-progression-core/internal/domain/certificate"
	"github.com/learnflow/learnflow-progression-core/internal/domain/enrollment"
	"github.com/learnflow/learnflow-progression-core/internal/domain/payment"
	"github.com/learnflow/learnflow-progression-core/internal/domain/shared"
	"github.com/learnflow/learnflow-progression-core/internal/domain/submission"
)

// In-memory doubles for the repository and gateway contracts. A single
// memStore instance backs both the direct repositories and the unit of
// work, mirroring how the SQL repositories share one database.

type memStore struct {
	mu          sync.Mutex
	enrollments map[string]*enrollment.Enrollment
	tasks       map[string][]enrollment.Task
	submissions map[string]*submission.Submission
	payments    map[string]*payment.Payment
	certs       map[string]*certificate.Certificate

	// createCertErrs is consumed one error per Create call; nil entries
	// mean success.
	createCertErrs []error

	// lockedEnrollmentReads and lockedPaymentReads count ForUpdate reads,
	// so tests can assert a handler read under the row lock.
	lockedEnrollmentReads int
	lockedPaymentReads    int
}

func newMemStore() *memStore {
	return &memStore{
		enrollments: make(map[string]*enrollment.Enrollment),
		tasks:       make(map[string][]enrollment.Task),
		submissions: make(map[string]*submission.Submission),
		payments:    make(map[string]*payment.Payment),
		certs:       make(map[string]*certificate.Certificate),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Enrollments
// ─────────────────────────────────────────────────────────────────────────────

type memEnrollmentRepo struct{ s *memStore }

func (r *memEnrollmentRepo) Create(_ context.Context, e *enrollment.Enrollment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.enrollments[e.ID] = e
	return nil
}

func (r *memEnrollmentRepo) GetByID(_ context.Context, id string) (*enrollment.Enrollment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.enrollments[id]
	if !ok {
		return nil, shared.ErrEnrollmentNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *memEnrollmentRepo) GetByIDForUpdate(ctx context.Context, id string) (*enrollment.Enrollment, error) {
	r.s.mu.Lock()
	r.s.lockedEnrollmentReads++
	r.s.mu.Unlock()
	return r.GetByID(ctx, id)
}

func (r *memEnrollmentRepo) Update(_ context.Context, e *enrollment.Enrollment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.enrollments[e.ID]; !ok {
		return shared.ErrEnrollmentNotFound
	}
	cp := *e
	r.s.enrollments[e.ID] = &cp
	return nil
}

func (r *memEnrollmentRepo) ListByStudent(_ context.Context, studentID string) ([]*enrollment.Enrollment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*enrollment.Enrollment
	for _, e := range r.s.enrollments {
		if e.StudentID == studentID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Tasks
// ─────────────────────────────────────────────────────────────────────────────

type memTaskRepo struct{ s *memStore }

func (r *memTaskRepo) ListByProgram(_ context.Context, programID string) ([]enrollment.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.tasks[programID], nil
}

func (r *memTaskRepo) GetByID(_ context.Context, id string) (enrollment.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, tasks := range r.s.tasks {
		for _, t := range tasks {
			if t.ID == id {
				return t, nil
			}
		}
	}
	return enrollment.Task{}, shared.ErrTaskNotFound
}

// ─────────────────────────────────────────────────────────────────────────────
// Submissions
// ─────────────────────────────────────────────────────────────────────────────

type memSubmissionRepo struct{ s *memStore }

func (r *memSubmissionRepo) Create(_ context.Context, sub *submission.Submission) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.submissions {
		if existing.EnrollmentID == sub.EnrollmentID &&
			existing.TaskID == sub.TaskID &&
			existing.Status == submission.StatusPending {
			return shared.ErrPendingSubmission
		}
	}
	cp := *sub
	r.s.submissions[sub.ID] = &cp
	return nil
}

func (r *memSubmissionRepo) GetByID(_ context.Context, id string) (*submission.Submission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub, ok := r.s.submissions[id]
	if !ok {
		return nil, shared.ErrSubmissionNotFound
	}
	cp := *sub
	return &cp, nil
}

func (r *memSubmissionRepo) Update(_ context.Context, sub *submission.Submission) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.submissions[sub.ID]; !ok {
		return shared.ErrSubmissionNotFound
	}
	cp := *sub
	r.s.submissions[sub.ID] = &cp
	return nil
}

func (r *memSubmissionRepo) ListByEnrollment(_ context.Context, enrollmentID string) ([]*submission.Submission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*submission.Submission
	for _, sub := range r.s.submissions {
		if sub.EnrollmentID == enrollmentID {
			cp := *sub
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memSubmissionRepo) HasPending(_ context.Context, enrollmentID, taskID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sub := range r.s.submissions {
		if sub.EnrollmentID == enrollmentID && sub.TaskID == taskID && sub.Status == submission.StatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (r *memSubmissionRepo) CountApprovedMandatory(ctx context.Context, enrollmentID string) (int, error) {
	subs, err := r.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return 0, err
	}
	n := 0
	seen := make(map[string]bool)
	for _, sub := range subs {
		if sub.IsApproved() && !seen[sub.TaskID] {
			seen[sub.TaskID] = true
			n++
		}
	}
	return n, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Payments
// ─────────────────────────────────────────────────────────────────────────────

type memPaymentRepo struct{ s *memStore }

func (r *memPaymentRepo) Create(_ context.Context, p *payment.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.payments {
		if existing.ExternalOrderID == p.ExternalOrderID {
			return shared.ErrAlreadyExists
		}
	}
	cp := *p
	r.s.payments[p.ID] = &cp
	return nil
}

func (r *memPaymentRepo) GetByID(_ context.Context, id string) (*payment.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok {
		return nil, shared.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memPaymentRepo) GetByExternalOrderID(_ context.Context, orderID string) (*payment.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.payments {
		if p.ExternalOrderID == orderID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, shared.ErrPaymentNotFound
}

func (r *memPaymentRepo) GetByExternalOrderIDForUpdate(ctx context.Context, orderID string) (*payment.Payment, error) {
	r.s.mu.Lock()
	r.s.lockedPaymentReads++
	r.s.mu.Unlock()
	return r.GetByExternalOrderID(ctx, orderID)
}

func (r *memPaymentRepo) Update(_ context.Context, p *payment.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.payments[p.ID]; !ok {
		return shared.ErrPaymentNotFound
	}
	cp := *p
	r.s.payments[p.ID] = &cp
	return nil
}

func (r *memPaymentRepo) ListByEnrollment(_ context.Context, enrollmentID string) ([]*payment.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*payment.Payment
	for _, p := range r.s.payments {
		if p.EnrollmentID == enrollmentID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Certificates
// ─────────────────────────────────────────────────────────────────────────────

type memCertificateRepo struct{ s *memStore }

func (r *memCertificateRepo) Create(_ context.Context, c *certificate.Certificate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if len(r.s.createCertErrs) > 0 {
		err := r.s.createCertErrs[0]
		r.s.createCertErrs = r.s.createCertErrs[1:]
		if err != nil {
			return err
		}
	}

	for _, existing := range r.s.certs {
		if existing.EnrollmentID == c.EnrollmentID {
			return shared.ErrAlreadyExists
		}
		if existing.Number == c.Number {
			return shared.NewDomainError("certificate", "Create", shared.ErrConflict,
				"certificate number or hash collision")
		}
	}
	cp := *c
	r.s.certs[c.ID] = &cp
	return nil
}

func (r *memCertificateRepo) GetByID(_ context.Context, id string) (*certificate.Certificate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.certs[id]
	if !ok {
		return nil, shared.ErrCertificateNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memCertificateRepo) GetByEnrollment(_ context.Context, enrollmentID string) (*certificate.Certificate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.certs {
		if c.EnrollmentID == enrollmentID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, shared.ErrCertificateNotFound
}

func (r *memCertificateRepo) GetByRef(_ context.Context, ref string) (*certificate.Certificate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.certs {
		if c.Number == ref || c.VerificationHash == ref {
			cp := *c
			return &cp, nil
		}
	}
	return nil, shared.ErrCertificateNotFound
}

func (r *memCertificateRepo) Update(_ context.Context, c *certificate.Certificate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.certs[c.ID]; !ok {
		return shared.ErrCertificateNotFound
	}
	cp := *c
	r.s.certs[c.ID] = &cp
	return nil
}

func (r *memCertificateRepo) UpdateDocumentURL(_ context.Context, id, documentURL string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.certs[id]
	if !ok {
		return shared.ErrCertificateNotFound
	}
	c.DocumentURL = documentURL
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Unit of work
// ─────────────────────────────────────────────────────────────────────────────

type memUnitOfWork struct{ s *memStore }

func (u *memUnitOfWork) Enrollments() enrollment.Repository   { return &memEnrollmentRepo{s: u.s} }
func (u *memUnitOfWork) Submissions() submission.Repository   { return &memSubmissionRepo{s: u.s} }
func (u *memUnitOfWork) Payments() payment.Repository         { return &memPaymentRepo{s: u.s} }
func (u *memUnitOfWork) Certificates() certificate.Repository { return &memCertificateRepo{s: u.s} }

type memRunner struct{ s *memStore }

func (r *memRunner) WithinTx(_ context.Context, fn func(uow UnitOfWork) error) error {
	return fn(&memUnitOfWork{s: r.s})
}

// ─────────────────────────────────────────────────────────────────────────────
// Gateway, publisher, dedup, directory
// ─────────────────────────────────────────────────────────────────────────────

type fakeGateway struct {
	order      *payment.GatewayOrder
	orderErr   error
	payment    *payment.GatewayPayment
	paymentErr error

	createCalls int
	fetchCalls  int

	// onFetch, when set, runs before FetchPayment returns. Tests use it
	// to interleave a concurrent state change mid-handler.
	onFetch func()
}

func (g *fakeGateway) CreateOrder(_ context.Context, amount int64, currency, _ string) (*payment.GatewayOrder, error) {
	g.createCalls++
	if g.orderErr != nil {
		return nil, g.orderErr
	}
	if g.order != nil {
		return g.order, nil
	}
	return &payment.GatewayOrder{OrderID: "order_test", Amount: amount, Currency: currency}, nil
}

func (g *fakeGateway) FetchPayment(_ context.Context, paymentID string) (*payment.GatewayPayment, error) {
	g.fetchCalls++
	if g.onFetch != nil {
		g.onFetch()
	}
	if g.paymentErr != nil {
		return nil, g.paymentErr
	}
	if g.payment != nil {
		return g.payment, nil
	}
	return &payment.GatewayPayment{PaymentID: paymentID, State: payment.GatewayPaymentCaptured}, nil
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *capturingPublisher) Publish(event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) types() []shared.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]shared.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

type fakeDedup struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func newFakeDedup() *fakeDedup {
	return &fakeDedup{seen: make(map[string]bool)}
}

func (d *fakeDedup) MarkProcessed(_ context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, d.err
	}
	if d.seen[eventID] {
		return false, nil
	}
	d.seen[eventID] = true
	return true, nil
}

func (d *fakeDedup) Unmark(_ context.Context, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, eventID)
	return nil
}

type fakeVerificationCache struct {
	mu          sync.Mutex
	entries     map[string]*certificate.VerificationResult
	invalidated []string
	err         error
}

func newFakeVerificationCache() *fakeVerificationCache {
	return &fakeVerificationCache{entries: make(map[string]*certificate.VerificationResult)}
}

func (c *fakeVerificationCache) Get(_ context.Context, ref string) (*certificate.VerificationResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, false, c.err
	}
	r, ok := c.entries[ref]
	return r, ok, nil
}

func (c *fakeVerificationCache) Set(_ context.Context, ref string, result *certificate.VerificationResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.entries[ref] = result
	return nil
}

func (c *fakeVerificationCache) Invalidate(_ context.Context, refs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	for _, ref := range refs {
		delete(c.entries, ref)
	}
	c.invalidated = append(c.invalidated, refs...)
	return nil
}

type fakeDirectory struct {
	studentErr error
	programErr error
}

func (d *fakeDirectory) StudentName(_ context.Context, studentID string) (string, error) {
	if d.studentErr != nil {
		return "", d.studentErr
	}
	return "Student " + studentID, nil
}

func (d *fakeDirectory) ProgramTitle(_ context.Context, programID string) (string, error) {
	if d.programErr != nil {
		return "", d.programErr
	}
	return "Program " + programID, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Builders
// ─────────────────────────────────────────────────────────────────────────────

func seedEnrollment(s *memStore, paymentStatus enrollment.PaymentStatus) *enrollment.Enrollment {
	now := time.Now().UTC()
	e := &enrollment.Enrollment{
		ID:            "enr1",
		StudentID:     "student1",
		ProgramID:     "prog1",
		Status:        enrollment.StatusActive,
		PaymentStatus: paymentStatus,
		PaymentAmount: 49900,
		Currency:      "INR",
		EnrolledAt:    now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.enrollments[e.ID] = e
	return e
}

func seedTasks(s *memStore) {
	s.tasks["prog1"] = []enrollment.Task{
		{ID: "t1", ProgramID: "prog1", Title: "Intro", Order: 1, IsMandatory: true},
		{ID: "t2", ProgramID: "prog1", Title: "Core", Order: 2, IsMandatory: true},
		{ID: "t3", ProgramID: "prog1", Title: "Bonus", Order: 3, IsMandatory: false},
	}
}

func seedApproved(s *memStore, id, taskID string, grade *submission.Grade) *submission.Submission {
	sub := submission.New(id, "enr1", taskID, "work", time.Now().UTC())
	_ = sub.Review(submission.OutcomeApproved, "ok", grade, time.Now().UTC())
	s.submissions[sub.ID] = sub
	return sub
}

func seedPendingPayment(s *memStore) *payment.Payment {
	p := payment.New("pay1", "enr1", 49900, "INR", "order_test", time.Now().UTC())
	s.payments[p.ID] = p
	return p
}
