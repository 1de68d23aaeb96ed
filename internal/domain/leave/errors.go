package leave

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrOverlap      = errors.New("overlaps an existing request")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrConflict     = errors.New("concurrent update conflict")
)

type FieldIssue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError carries every field problem found in a command.
type ValidationError struct {
	Issues []FieldIssue
}

func (e *ValidationError) Add(field, reason string) {
	e.Issues = append(e.Issues, FieldIssue{Field: field, Reason: reason})
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, issue.Field+" "+issue.Reason)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) orNil() error {
	if e == nil || len(e.Issues) == 0 {
		return nil
	}
	return e
}

func invalidField(field, reason string) error {
	return &ValidationError{Issues: []FieldIssue{{Field: field, Reason: reason}}}
}

// OverlapError names the live requests that collide with the candidate range.
// ConflictingIDs may be empty when the collision was reported by the database.
type OverlapError struct {
	ConflictingIDs []int64
}

func (e *OverlapError) Error() string {
	if len(e.ConflictingIDs) == 0 {
		return ErrOverlap.Error()
	}
	return fmt.Sprintf("%s: %v", ErrOverlap.Error(), e.ConflictingIDs)
}

func (e *OverlapError) Is(target error) bool {
	return target == ErrOverlap
}

type InvalidStateError struct {
	Action string
	Status Status
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s a request that is %s", e.Action, e.Status)
}

func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}
