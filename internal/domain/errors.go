package domain

import "errors"

var (
	// ErrUnsupportedService is returned for a backend name outside the closed set of its category.
	ErrUnsupportedService = errors.New("unsupported service")
	// ErrUnimplemented marks a requested step that does not exist yet.
	ErrUnimplemented = errors.New("not implemented yet")
	// ErrInterrupted is reported when the operator stops the run.
	ErrInterrupted = errors.New("interrupted manually")
)
