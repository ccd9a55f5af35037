package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrSourceLimit     = errors.New("source limit reached")
	ErrSessionNotReady = errors.New("session not ready")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNotFound        = errors.New("not found")
	ErrTemporary       = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// DisplayMessage returns the text meant for the notebook user: the first error
// in the chain that carries one, otherwise err.Error().
func DisplayMessage(err error) string {
	if err == nil {
		return ""
	}
	var displayable interface{ DisplayMessage() string }
	if errors.As(err, &displayable) {
		if msg := displayable.DisplayMessage(); msg != "" {
			return msg
		}
	}
	return err.Error()
}
