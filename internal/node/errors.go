package node

import (
	"errors"
	"fmt"

	"github.com/inworld-ai/living-memories-unity-sub003/internal/value"
)

var (
	// ErrConfig marks a node that could not be created from its configuration.
	ErrConfig = errors.New("invalid node configuration")
	// ErrInvalidInput is returned when an input value is not one of the accepted kinds.
	ErrInvalidInput = errors.New("invalid input")
	// ErrCancelled is returned when the invocation was cancelled.
	ErrCancelled = errors.New("cancelled")
	// ErrUpstreamFailure wraps errors reported by an external backend.
	ErrUpstreamFailure = errors.New("upstream failure")
)

// ConfigError describes why Create rejected a configuration.
type ConfigError struct {
	NodeID string
	Kind   Kind
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("node '%s' (%s): %s", e.NodeID, e.Kind, ErrConfig)
	if e.Field != "" {
		msg += fmt.Sprintf(": field '%s'", e.Field)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap lets errors.Is match both ErrConfig and the underlying cause.
func (e *ConfigError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConfig}
	}
	return []error{ErrConfig, e.Err}
}

func configErr(field, reason string) *ConfigError {
	return &ConfigError{Field: field, Reason: reason}
}

func invalidInput(accepts value.KindSet, got value.Kind) error {
	return fmt.Errorf("%w: got %s, accepts %s", ErrInvalidInput, got, accepts)
}

func missingInput(want value.Kind) error {
	return fmt.Errorf("%w: requires at least one %s value", ErrInvalidInput, want)
}
