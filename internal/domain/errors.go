package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Classify an error with KindOf or IsKind. errors.Is also walks into the wrapped
// cause, so it can match the kind of an inner error that was translated into another kind.
var (
	ErrValidation   = errors.New("validation error") // 400
	ErrConflict     = errors.New("conflict")         // 409
	ErrUnauthorized = errors.New("unauthorized")     // 401
	ErrNotFound     = errors.New("not found")        // 404
	ErrUpstream     = errors.New("upstream failure") // 502
	ErrInternal     = errors.New("internal error")   // 500
)

type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func NewError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a kind and a client-facing message to err.
func Wrap(kind error, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf reports which error kind err belongs to, defaulting to ErrInternal.
func KindOf(err error) error {
	var de *Error
	if errors.As(err, &de) && de.Kind != nil {
		return de.Kind
	}
	for _, kind := range []error{ErrValidation, ErrConflict, ErrUnauthorized, ErrNotFound, ErrUpstream, ErrInternal} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrInternal
}

// IsKind reports whether the outermost kind of err is kind.
func IsKind(err error, kind error) bool {
	return err != nil && KindOf(err) == kind
}

// MessageOf returns the client-facing message for err.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return KindOf(err).Error()
}
