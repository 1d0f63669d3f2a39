package models

import "errors"

// Sentinel errors for common failure conditions. They double as the error kinds
// carried by *Error.
var (
	ErrValidation     = errors.New("validation failed")
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Mail delivery failed after the flow's state change was persisted.
	ErrMailDelivery = errors.New("mail delivery failed")
)

// Error is a flow failure with a client-safe message. Kind is one of the
// sentinel errors above; errors.Is matches against it.
type Error struct {
	Kind    error
	Message string
}

// NewError builds a flow error of the given kind.
func NewError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// PublicMessage returns the message of a flow error, or fallback when err
// carries none.
func PublicMessage(err error, fallback string) string {
	var fe *Error
	if errors.As(err, &fe) && fe.Message != "" {
		return fe.Message
	}
	return fallback
}
