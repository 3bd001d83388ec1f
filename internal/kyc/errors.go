package kyc

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("kyc: validation failed")
	ErrInvalidTransition = errors.New("kyc: invalid status transition")
	ErrNotFound          = errors.New("kyc: not found")
	ErrCollaborator      = errors.New("kyc: collaborator failure")
)

// ValidationError reports a missing or malformed input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("kyc: invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// InvalidTransitionError reports a status change the lifecycle does not allow.
type InvalidTransitionError struct {
	CaseID string
	From   Status
	To     Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("kyc: case %s cannot move from %s to %s", e.CaseID, e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// NotFoundError reports a missing record.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("kyc: %s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// CollaboratorError wraps a failure of the record store or another external service.
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("kyc: %s: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

func (e *CollaboratorError) Is(target error) bool { return target == ErrCollaborator }

// wrapStore keeps lifecycle errors as they are and turns anything else into a
// CollaboratorError.
func wrapStore(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{ErrNotFound, ErrValidation, ErrInvalidTransition, ErrCollaborator} {
		if errors.Is(err, known) {
			return err
		}
	}
	return &CollaboratorError{Op: op, Err: err}
}
