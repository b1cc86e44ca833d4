package core

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by services and transports. Callers match with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrUpstream     = errors.New("upstream failure")
)

// Invalid builds a validation error with a caller facing message.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound reports a missing (or foreign) entity, e.g. NotFound("budget").
func NotFound(entity string) error {
	return fmt.Errorf("%s %w", entity, ErrNotFound)
}

func Forbidden(msg string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, msg)
}

func Unauthorized(msg string) error {
	return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
}

// Upstream wraps a collaborator failure (storage, identity provider, broker).
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUpstream, err)
}

// Message strips the taxonomy prefix so transports can show a clean detail.
func Message(err error) string {
	for _, kind := range []error{ErrValidation, ErrForbidden, ErrUnauthorized} {
		if errors.Is(err, kind) {
			msg := err.Error()
			prefix := kind.Error() + ": "
			if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
				return msg[len(prefix):]
			}
			return msg
		}
	}
	return err.Error()
}
