package eligibility

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrValidation matches every *ValidationError via errors.Is.
var ErrValidation = errors.New("validation failed")

// Kind classifies a rejected assignment.
type Kind string

const (
	KindIncompatibleRoles  Kind = "IncompatibleRoles"
	KindRequiredCollision  Kind = "RequiredCollision"
	KindCapacityExceeded   Kind = "CapacityExceeded"
	KindRegistrationClosed Kind = "RegistrationClosed"
)

// ValidationError names the role (or subevent) that caused the rejection
// and, for relation conflicts, the roles it conflicts with.
type ValidationError struct {
	Kind        Kind
	SubjectID   uuid.UUID
	Subject     string
	Conflicting []string
}

func (e *ValidationError) Error() string {
	if len(e.Conflicting) == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Subject)
	}
	return fmt.Sprintf("%s: %s conflicts with %s", e.Kind, e.Subject, strings.Join(e.Conflicting, ", "))
}

// Is makes errors.Is(err, ErrValidation) true for any validation error.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// AsValidation unwraps err into a *ValidationError.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
