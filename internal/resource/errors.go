package resource

import (
	"errors"
	"fmt"
)

// ErrUseAfterRelease is returned (or panicked with) when a released handle is used.
var ErrUseAfterRelease = errors.New("use after release")

// UseAfterReleaseError identifies the released handle.
type UseAfterReleaseError struct {
	ID    ID
	Label string
}

func (e *UseAfterReleaseError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("resource %d (%s): %s", e.ID, e.Label, ErrUseAfterRelease)
	}
	return fmt.Sprintf("resource %d: %s", e.ID, ErrUseAfterRelease)
}

// Unwrap lets errors.Is match ErrUseAfterRelease.
func (e *UseAfterReleaseError) Unwrap() error {
	return ErrUseAfterRelease
}
