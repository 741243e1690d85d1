package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Error taxonomy of the booking core. Transport code matches these with
// errors.Is; the specific errors below wrap one of them.
var (
	ErrNotFound    = errors.New("not found")
	ErrWrongState  = errors.New("wrong state")
	ErrAlreadyDone = errors.New("already done")
	ErrForbidden   = errors.New("forbidden")
	ErrValidation  = errors.New("validation failed")
)

var (
	ErrInvalidTransition = fmt.Errorf("%w: invalid transition", ErrWrongState)
	ErrAlreadyApproved   = fmt.Errorf("%w: diagnosis already approved", ErrAlreadyDone)
	ErrAlreadyPaid       = fmt.Errorf("%w: booking already paid", ErrAlreadyDone)
	ErrDiagnosisExists   = fmt.Errorf("%w: diagnosis already submitted", ErrAlreadyDone)
	ErrFeedbackExists    = fmt.Errorf("%w: feedback already submitted", ErrAlreadyDone)

	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrEmailTaken         = fmt.Errorf("%w: email already registered", ErrValidation)
	ErrInvalidToken       = errors.New("refresh token is invalid or expired")
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries per-field details for malformed input.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalidField(field, message string) error {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// validationFrom converts validator output into a ValidationError.
func validationFrom(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: fieldName(fe), Message: fieldMessage(fe)})
	}
	return out
}

func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}
