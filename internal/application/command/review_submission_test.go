package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnflow/learnflow-progression-core/internal/domain/enrollment"
	"github.com/learnflow/learnflow-progression-core/internal/domain/shared"
	"github.com/learnflow/learnflow-progression-core/internal/domain/submission"
)

func newReviewHandler(s *memStore) (*ReviewSubmissionHandler, *capturingPublisher) {
	pub := &capturingPublisher{}
	h := NewReviewSubmissionHandler(&memRunner{s: s}, &memTaskRepo{s: s}, pub)
	return h, pub
}

func seedPending(s *memStore, id, taskID string) *submission.Submission {
	sub := submission.New(id, "enr1", taskID, "work", time.Now().UTC())
	s.submissions[sub.ID] = sub
	return sub
}

func TestReviewSubmission_ApprovalUpdatesProgress(t *testing.T) {
	s := newMemStore()
	seedEnrollment(s, enrollment.PaymentCompleted)
	seedTasks(s)
	seedPending(s, "sub1", "t1")
	h, pub := newReviewHandler(s)

	grade := submission.Grade(9)
	result, err := h.Handle(context.Background(), ReviewSubmissionCommand{
		SubmissionID: "sub1",
		Outcome:      submission.OutcomeApproved,
		Feedback:     "well done",
		Grade:        &grade,
	})

	require.NoError(t, err)
	assert.Equal(t, submission.StatusApproved, result.Submission.Status)
	assert.InDelta(t, 50.0, result.ProgressPercentage, 0.001, "one of two mandatory tasks approved")
	assert.False(t, result.EnrollmentCompleted)
	assert.Equal(t, []shared.EventType{shared.EventSubmissionApproved}, pub.types())

	assert.InDelta(t, 50.0, s.enrollments["enr1"].ProgressPercentage, 0.001)
}

func TestReviewSubmission_LastApprovalCompletesEnrollment(t *testing.T) {
	s := newMemStore()
	seedEnrollment(s, enrollment.PaymentCompleted)
	seedTasks(s)
	seedApproved(s, "sub1", "t1", nil)
	seedPending(s, "sub2", "t2")
	h, pub := newReviewHandler(s)

	result, err := h.Handle(context.Background(), ReviewSubmissionCommand{
		SubmissionID: "sub2",
		Outcome:      submission.OutcomeApproved,
	})

	require.NoError(t, err)
	assert.True(t, result.EnrollmentCompleted)
	assert.InDelta(t, 100.0, result.ProgressPercentage, 0.001)
	assert.Equal(t,
		[]shared.EventType{shared.EventSubmissionApproved, shared.EventEnrollmentCompleted},
		pub.types(),
	)

	enr := s.enrollments["enr1"]
	assert.Equal(t, enrollment.StatusCompleted, enr.Status)
	assert.False(t, enr.CompletedAt.IsZero())
}

func TestReviewSubmission_ApprovalRecomputesUnderRowLock(t *testing.T) {
	s := newMemStore()
	seedEnrollment(s, enrollment.PaymentCompleted)
	seedTasks(s)
	seedPending(s, "sub1", "t1")
	seedPending(s, "sub2", "t2")
	h, _ := newReviewHandler(s)

	// Two reviewers approve different tasks of the same enrollment. Each
	// approval must read the enrollment with the row lock so the second
	// write carries the full approved set, not a stale 50%.
	for _, id := range []string{"sub1", "sub2"} {
		_, err := h.Handle(context.Background(), ReviewSubmissionCommand{
			SubmissionID: id,
			Outcome:      submission.OutcomeApproved,
		})
		require.NoError(t, err)
	}

	assert.Equal(t, 2, s.lockedEnrollmentReads)
	assert.InDelta(t, 100.0, s.enrollments["enr1"].ProgressPercentage, 0.001)
	assert.Equal(t, enrollment.StatusCompleted, s.enrollments["enr1"].Status)
}

func TestReviewSubmission_OptionalTaskDoesNotMoveProgress(t *testing.T) {
	s := newMemStore()
	seedEnrollment(s, enrollment.PaymentCompleted)
	seedTasks(s)
	seedPending(s, "sub1", "t3")
	h, _ := newReviewHandler(s)

	result, err := h.Handle(context.Background(), ReviewSubmissionCommand{
		SubmissionID: "sub1",
		Outcome:      submission.OutcomeApproved,
	})

	require.NoError(t, err)
	assert.InDelta(t, 0.0, result.ProgressPercentage, 0.001)
	assert.False(t, result.EnrollmentCompleted)
}

func TestReviewSubmission_RejectionKeepsProgress(t *testing.T) {
	s := newMemStore()
	seedEnrollment(s, enrollment.PaymentCompleted)
	seedTasks(s)
	seedPending(s, "sub1", "t1")
	h, pub := newReviewHandler(s)

	result, err := h.Handle(context.Background(), ReviewSubmissionCommand{
		SubmissionID: "sub1",
		Outcome:      submission.OutcomeRejected,
		Feedback:     "incomplete",
	})

	require.NoError(t, err)
	assert.Equal(t, submission.StatusRejected, result.Submission.Status)
	assert.Zero(t, result.ProgressPercentage)
	assert.Equal(t, []shared.EventType{shared.EventSubmissionRejected}, pub.types())
	assert.Zero(t, s.enrollments["enr1"].ProgressPercentage)
}

func TestReviewSubmission_TerminalSubmissionRejected(t *testing.T) {
	s := newMemStore()
	seedEnrollment(s, enrollment.PaymentCompleted)
	seedTasks(s)
	seedApproved(s, "sub1", "t1", nil)
	h, _ := newReviewHandler(s)

	_, err := h.Handle(context.Background(), ReviewSubmissionCommand{
		SubmissionID: "sub1",
		Outcome:      submission.OutcomeRejected,
	})

	require.ErrorIs(t, err, shared.ErrSubmissionNotPending)
}

func TestReviewSubmission_InvalidGrade(t *testing.T) {
	s := newMemStore()
	h, _ := newReviewHandler(s)

	bad := submission.Grade(11)
	_, err := h.Handle(context.Background(), ReviewSubmissionCommand{
		SubmissionID: "sub1",
		Outcome:      submission.OutcomeApproved,
		Grade:        &bad,
	})

	require.ErrorIs(t, err, shared.ErrInvalidGrade)
}
