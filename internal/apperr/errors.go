// Package apperr defines the error taxonomy shared by the store, the workspace and the outer surfaces.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrAuth             = errors.New("authentication failed")
	ErrNotFound         = errors.New("not found")
	ErrInvalidIndex     = errors.New("invalid index file")
	ErrSourceExtraction = errors.New("no source found in article file")
	ErrValidation       = errors.New("validation failed")
	ErrRender           = errors.New("render failed")
	ErrConcurrency      = errors.New("branch head moved")
	ErrTransport        = errors.New("transport error")

	ErrUnavailable        = errors.New("store unavailable")
	ErrAlreadyInitialized = errors.New("repository already initialized")
	ErrAlreadyExists      = errors.New("already exists")
	ErrConflict           = errors.New("conflict")
)

// ValidationError names the first entry of a save batch that failed validation.
type ValidationError struct {
	Name   string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("article %q: %s is required", e.Name, e.Field)
	}
	return fmt.Sprintf("article %q: %s: %s", e.Name, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
