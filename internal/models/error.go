package models

import (
	"errors"
	"fmt"
)

var (
	ErrConflictData       = errors.New("data conflicts with existing data")
	ErrDataNotFound       = errors.New("data not found")
	ErrInvalidCredentials = errors.New("invalid login or password")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrValidation         = errors.New("validation failed")
	ErrUnavailable        = errors.New("service unavailable")
	ErrConcurrentUpdate   = errors.New("order was modified concurrently")
	ErrInvalidTransition  = errors.New("invalid status transition")
)

// Kind classifies errors for callers that must react to them
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindConflict
	KindUnavailable
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "unavailable"
	case KindValidation:
		return "validation"
	default:
		return "internal"
	}
}

// KindOf returns the kind of err
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrDataNotFound):
		return KindNotFound
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidCredentials):
		return KindUnauthorized
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrConflictData),
		errors.Is(err, ErrConcurrentUpdate),
		errors.Is(err, ErrInvalidTransition):
		return KindConflict
	case errors.Is(err, ErrUnavailable):
		return KindUnavailable
	case errors.Is(err, ErrValidation):
		return KindValidation
	default:
		return KindInternal
	}
}

// InvalidTransitionError is returned when a status change is not allowed
type InvalidTransitionError struct {
	From   OrderStatus
	To     OrderStatus
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot move order from %s to %s: %s", e.From, e.To, e.Reason)
	}
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}

// Is makes errors.Is(err, ErrInvalidTransition) hold
func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
