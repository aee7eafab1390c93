package command

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/learnflow/learnflow-progression-core/internal/domain/certificate"
	"github.com/learnflow/learnflow-progression-core/internal/domain/enrollment"
	"github.com/learnflow/learnflow-progression-core/internal/domain/shared"
	"github.com/learnflow/learnflow-progression-core/internal/domain/submission"
)

// ══════════════════════════════════════════════════════════════════════════════
// ISSUE CERTIFICATE COMMAND
// Issues at most one certificate per enrollment. Idempotent: a repeated
// request returns the existing certificate. The unique constraint on
// enrollment_id backstops concurrent issuance.
// ══════════════════════════════════════════════════════════════════════════════

// maxNumberAttempts bounds number regeneration on collisions.
const maxNumberAttempts = 5

// IssueCertificateCommand contains the data to issue a certificate.
type IssueCertificateCommand struct {
	// EnrollmentID is the completed enrollment.
	EnrollmentID string

	// StudentID is the requesting student; must own the enrollment.
	StudentID string
}

// Validate validates the command.
func (c IssueCertificateCommand) Validate() error {
	if c.EnrollmentID == "" {
		return fmt.Errorf("issue_certificate: %w: enrollment_id", shared.ErrEmptyValue)
	}
	if c.StudentID == "" {
		return fmt.Errorf("issue_certificate: %w: student_id", shared.ErrEmptyValue)
	}
	return nil
}

// IssueCertificateResult contains the issued (or pre-existing) certificate.
type IssueCertificateResult struct {
	Certificate *certificate.Certificate

	// AlreadyIssued is true if a certificate existed before this call.
	AlreadyIssued bool
}

// IssueCertificateHandler handles the IssueCertificateCommand.
type IssueCertificateHandler struct {
	runner       UnitOfWorkRunner
	enrollments  enrollment.Repository
	certificates certificate.Repository
	tasks        enrollment.TaskRepository
	directory    Directory
	publisher    shared.EventPublisher
	threshold    float64
	now          func() time.Time
}

// NewIssueCertificateHandler creates a new IssueCertificateHandler.
// threshold is the fraction of mandatory tasks that must be approved (0-1].
func NewIssueCertificateHandler(
	runner UnitOfWorkRunner,
	enrollments enrollment.Repository,
	certificates certificate.Repository,
	tasks enrollment.TaskRepository,
	directory Directory,
	publisher shared.EventPublisher,
	threshold float64,
) *IssueCertificateHandler {
	return &IssueCertificateHandler{
		runner:       runner,
		enrollments:  enrollments,
		certificates: certificates,
		tasks:        tasks,
		directory:    directory,
		publisher:    publisher,
		threshold:    threshold,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes the issue command.
func (h *IssueCertificateHandler) Handle(ctx context.Context, cmd IssueCertificateCommand) (*IssueCertificateResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	// The directory lookups are HTTP calls; they happen before the
	// transaction opens so the row lock is never held across them.
	pre, err := h.enrollments.GetByID(ctx, cmd.EnrollmentID)
	if err != nil {
		return nil, err
	}
	if !pre.IsOwnedBy(cmd.StudentID) {
		return nil, shared.ErrEnrollmentNotOwned
	}

	// Idempotent path: an existing certificate is returned as-is.
	if existing, err := h.certificates.GetByEnrollment(ctx, cmd.EnrollmentID); err == nil {
		return &IssueCertificateResult{Certificate: existing, AlreadyIssued: true}, nil
	} else if !shared.IsNotFound(err) {
		return nil, err
	}

	studentName, err := h.directory.StudentName(ctx, pre.StudentID)
	if err != nil {
		return nil, shared.WrapError("certificate", "Issue", shared.ErrExternalService,
			"student lookup failed", err)
	}
	programTitle, err := h.directory.ProgramTitle(ctx, pre.ProgramID)
	if err != nil {
		return nil, shared.WrapError("certificate", "Issue", shared.ErrExternalService,
			"program lookup failed", err)
	}

	var (
		cert          *certificate.Certificate
		alreadyIssued bool
	)

	err = h.runner.WithinTx(ctx, func(uow UnitOfWork) error {
		// Re-read under the row lock; the state may have moved since the
		// checks above.
		enr, err := uow.Enrollments().GetByIDForUpdate(ctx, cmd.EnrollmentID)
		if err != nil {
			return err
		}

		existing, err := uow.Certificates().GetByEnrollment(ctx, enr.ID)
		if err == nil {
			cert = existing
			alreadyIssued = true
			return nil
		}
		if !shared.IsNotFound(err) {
			return err
		}

		tasks, err := h.tasks.ListByProgram(ctx, enr.ProgramID)
		if err != nil {
			return fmt.Errorf("issue_certificate: list tasks: %w", err)
		}
		subs, err := uow.Submissions().ListByEnrollment(ctx, enr.ID)
		if err != nil {
			return fmt.Errorf("issue_certificate: list submissions: %w", err)
		}

		if err := h.checkEligibility(enr, tasks, subs); err != nil {
			return err
		}

		now := h.now()
		completedDate := enr.CompletedAt
		if completedDate.IsZero() {
			completedDate = now
		}
		snap := certificate.Snapshot{
			CertificateID: uuid.New().String(),
			StudentName:   studentName,
			ProgramTitle:  programTitle,
			CompletedDate: completedDate,
			FinalScore:    finalScore(tasks, subs),
		}

		cert, err = h.createWithFreshNumber(ctx, uow, enr, snap, now)
		if err != nil {
			return err
		}

		enr.CertificateIssued = true
		enr.UpdatedAt = now
		if err := uow.Enrollments().Update(ctx, enr); err != nil {
			return fmt.Errorf("issue_certificate: update enrollment: %w", err)
		}
		return nil
	})
	if err != nil {
		// A concurrent request won the enrollment_id race; return its
		// certificate instead of failing.
		if errors.Is(err, shared.ErrAlreadyExists) {
			existing, getErr := h.certificates.GetByEnrollment(ctx, cmd.EnrollmentID)
			if getErr != nil {
				return nil, getErr
			}
			return &IssueCertificateResult{Certificate: existing, AlreadyIssued: true}, nil
		}
		return nil, err
	}

	if !alreadyIssued {
		_ = h.publisher.Publish(shared.NewEvent(shared.EventCertificateIssued, cert.ID, map[string]interface{}{
			"enrollment_id":      cert.EnrollmentID,
			"student_id":         cert.StudentID,
			"certificate_number": cert.Number,
		}))
	}

	return &IssueCertificateResult{Certificate: cert, AlreadyIssued: alreadyIssued}, nil
}

// checkEligibility enforces the issuance preconditions: settled payment
// and enough approved mandatory tasks.
func (h *IssueCertificateHandler) checkEligibility(enr *enrollment.Enrollment, tasks []enrollment.Task, subs []*submission.Submission) error {
	if !enr.PaymentStatus.IsSettled() {
		return shared.ErrPaymentIncomplete
	}
	approved, total := enrollment.CountApprovedMandatory(tasks, subs)
	if total == 0 {
		return shared.ErrThresholdNotMet
	}
	if float64(approved)/float64(total) < h.threshold {
		return shared.ErrThresholdNotMet
	}
	return nil
}

// createWithFreshNumber persists the certificate, regenerating the number
// on a collision of the number's unique constraint.
func (h *IssueCertificateHandler) createWithFreshNumber(ctx context.Context, uow UnitOfWork, enr *enrollment.Enrollment, snap certificate.Snapshot, now time.Time) (*certificate.Certificate, error) {
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		number, err := certificate.NewNumber(now)
		if err != nil {
			return nil, err
		}
		cert := certificate.Issue(enr.ID, enr.StudentID, number, snap, now)

		err = uow.Certificates().Create(ctx, cert)
		if err == nil {
			return cert, nil
		}
		if errors.Is(err, shared.ErrAlreadyExists) {
			return nil, err
		}
		if !shared.IsConflict(err) {
			return nil, fmt.Errorf("issue_certificate: persist certificate: %w", err)
		}
		// Number collision: try again with a fresh number.
	}
	return nil, shared.WrapError("certificate", "Issue", shared.ErrConflict,
		"could not generate a unique certificate number", nil)
}

// finalScore computes the mean effective grade over approved mandatory
// submissions, rounded to two decimals.
func finalScore(tasks []enrollment.Task, subs []*submission.Submission) float64 {
	mandatory := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		if t.IsMandatory {
			mandatory[t.ID] = true
		}
	}

	var sum float64
	var n int
	seen := make(map[string]bool)
	for _, s := range subs {
		if !s.IsApproved() || !mandatory[s.TaskID] || seen[s.TaskID] {
			continue
		}
		seen[s.TaskID] = true
		sum += float64(s.EffectiveGrade())
		n++
	}
	if n == 0 {
		return 0
	}
	return math.Round(sum/float64(n)*100) / 100
}
