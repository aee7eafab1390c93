// Package shared contains common domain types, errors and events that are
// used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")

	// State errors
	ErrConflict         = errors.New("conflict")
	ErrInvalidState     = errors.New("invalid state")
	ErrStateTransition  = errors.New("invalid state transition")
	ErrAlreadyProcessed = errors.New("already processed")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Integrity errors
	ErrSignatureMismatch = errors.New("signature verification failed")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "enrollment", "payment", "certificate"
	Op      string // Operation that failed, e.g., "Review", "Verify"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Enrollment domain errors
var (
	ErrEnrollmentNotFound     = NewDomainError("enrollment", "Find", ErrNotFound, "enrollment not found")
	ErrEnrollmentNotOwned     = NewDomainError("enrollment", "CheckOwner", ErrUnauthorized, "enrollment belongs to another student")
	ErrEnrollmentCancelled    = NewDomainError("enrollment", "CheckStatus", ErrInvalidState, "enrollment is cancelled")
	ErrTaskNotFound           = NewDomainError("enrollment", "FindTask", ErrNotFound, "task not found")
	ErrTaskLocked             = NewDomainError("enrollment", "Gate", ErrConflict, "task is locked")
	ErrInvalidEnrollmentState = NewDomainError("enrollment", "Transition", ErrStateTransition, "invalid enrollment status transition")
)

// Submission domain errors
var (
	ErrSubmissionNotFound   = NewDomainError("submission", "Find", ErrNotFound, "submission not found")
	ErrSubmissionNotPending = NewDomainError("submission", "Review", ErrConflict, "submission is not pending review")
	ErrPendingSubmission    = NewDomainError("submission", "Create", ErrConflict, "a pending submission already exists for this task")
	ErrInvalidGrade         = NewDomainError("submission", "Validate", ErrValueOutOfRange, "grade must be between 0 and 10")
	ErrInvalidOutcome       = NewDomainError("submission", "Review", ErrInvalidInput, "unknown review outcome")
)

// Payment domain errors
var (
	ErrPaymentNotFound         = NewDomainError("payment", "Find", ErrNotFound, "payment not found")
	ErrPaymentAlreadyCompleted = NewDomainError("payment", "CreateOrder", ErrConflict, "payment already completed for this enrollment")
	ErrPaymentSignature        = NewDomainError("payment", "VerifySignature", ErrSignatureMismatch, "payment signature mismatch")
	ErrPaymentNotCaptured      = NewDomainError("payment", "Verify", ErrExternalService, "payment is not captured by the gateway")
	ErrGatewayUnavailable      = NewDomainError("payment", "Gateway", ErrServiceUnavailable, "payment gateway is unavailable")
)

// Certificate domain errors
var (
	ErrCertificateNotFound = NewDomainError("certificate", "Find", ErrNotFound, "certificate not found")
	ErrCertificateRevoked  = NewDomainError("certificate", "Verify", ErrInvalidState, "certificate has been revoked")
	ErrPaymentIncomplete   = NewDomainError("certificate", "CheckEligibility", ErrConflict, "payment is not completed")
	ErrThresholdNotMet     = NewDomainError("certificate", "CheckEligibility", ErrConflict, "completion threshold not met")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks if the error is a conflict error.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrStateTransition)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsUnauthorized checks if the error is an authorization error.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden)
}

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
