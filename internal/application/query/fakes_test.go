package query

import (
	"context"
	"sync"

	"github.com/learnflow/learnflow-progression-core/internal/domain/certificate"
	"github.com/learnflow/learnflow-progression-core/internal/domain/enrollment"
	"github.com/learnflow/learnflow-progression-core/internal/domain/shared"
	"github.com/learnflow/learnflow-progression-core/internal/domain/submission"
)

// Read-side doubles: queries never write, so these are plain maps without
// the copy-on-write discipline the command tests need.

type stubEnrollmentRepo struct {
	enrollments map[string]*enrollment.Enrollment
}

func (r *stubEnrollmentRepo) Create(context.Context, *enrollment.Enrollment) error { return nil }
func (r *stubEnrollmentRepo) Update(context.Context, *enrollment.Enrollment) error { return nil }

func (r *stubEnrollmentRepo) GetByID(_ context.Context, id string) (*enrollment.Enrollment, error) {
	e, ok := r.enrollments[id]
	if !ok {
		return nil, shared.ErrEnrollmentNotFound
	}
	return e, nil
}

func (r *stubEnrollmentRepo) GetByIDForUpdate(ctx context.Context, id string) (*enrollment.Enrollment, error) {
	return r.GetByID(ctx, id)
}

func (r *stubEnrollmentRepo) ListByStudent(_ context.Context, studentID string) ([]*enrollment.Enrollment, error) {
	var out []*enrollment.Enrollment
	for _, e := range r.enrollments {
		if e.StudentID == studentID {
			out = append(out, e)
		}
	}
	return out, nil
}

type stubTaskRepo struct {
	tasks []enrollment.Task
}

func (r *stubTaskRepo) ListByProgram(context.Context, string) ([]enrollment.Task, error) {
	return r.tasks, nil
}

func (r *stubTaskRepo) GetByID(_ context.Context, id string) (enrollment.Task, error) {
	for _, t := range r.tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return enrollment.Task{}, shared.ErrTaskNotFound
}

type stubSubmissionRepo struct {
	subs []*submission.Submission
}

func (r *stubSubmissionRepo) Create(context.Context, *submission.Submission) error { return nil }
func (r *stubSubmissionRepo) Update(context.Context, *submission.Submission) error { return nil }

func (r *stubSubmissionRepo) GetByID(_ context.Context, id string) (*submission.Submission, error) {
	for _, s := range r.subs {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, shared.ErrSubmissionNotFound
}

func (r *stubSubmissionRepo) ListByEnrollment(_ context.Context, enrollmentID string) ([]*submission.Submission, error) {
	var out []*submission.Submission
	for _, s := range r.subs {
		if s.EnrollmentID == enrollmentID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *stubSubmissionRepo) HasPending(_ context.Context, enrollmentID, taskID string) (bool, error) {
	for _, s := range r.subs {
		if s.EnrollmentID == enrollmentID && s.TaskID == taskID && s.Status == submission.StatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (r *stubSubmissionRepo) CountApprovedMandatory(_ context.Context, enrollmentID string) (int, error) {
	n := 0
	for _, s := range r.subs {
		if s.EnrollmentID == enrollmentID && s.IsApproved() {
			n++
		}
	}
	return n, nil
}

type stubCertificateRepo struct {
	certs []*certificate.Certificate
}

func (r *stubCertificateRepo) Create(context.Context, *certificate.Certificate) error { return nil }
func (r *stubCertificateRepo) Update(context.Context, *certificate.Certificate) error { return nil }
func (r *stubCertificateRepo) UpdateDocumentURL(context.Context, string, string) error {
	return nil
}

func (r *stubCertificateRepo) GetByID(_ context.Context, id string) (*certificate.Certificate, error) {
	for _, c := range r.certs {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, shared.ErrCertificateNotFound
}

func (r *stubCertificateRepo) GetByEnrollment(_ context.Context, enrollmentID string) (*certificate.Certificate, error) {
	for _, c := range r.certs {
		if c.EnrollmentID == enrollmentID {
			return c, nil
		}
	}
	return nil, shared.ErrCertificateNotFound
}

func (r *stubCertificateRepo) GetByRef(_ context.Context, ref string) (*certificate.Certificate, error) {
	for _, c := range r.certs {
		if c.Number == ref || c.VerificationHash == ref {
			return c, nil
		}
	}
	return nil, shared.ErrCertificateNotFound
}

type stubVerificationCache struct {
	mu      sync.Mutex
	entries map[string]*certificate.VerificationResult
	sets    int
	err     error
}

func newStubVerificationCache() *stubVerificationCache {
	return &stubVerificationCache{entries: make(map[string]*certificate.VerificationResult)}
}

func (c *stubVerificationCache) Get(_ context.Context, ref string) (*certificate.VerificationResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, false, c.err
	}
	r, ok := c.entries[ref]
	return r, ok, nil
}

func (c *stubVerificationCache) Set(_ context.Context, ref string, result *certificate.VerificationResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.entries[ref] = result
	c.sets++
	return nil
}

func (c *stubVerificationCache) Invalidate(_ context.Context, refs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ref := range refs {
		delete(c.entries, ref)
	}
	return nil
}
