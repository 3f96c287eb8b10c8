package service

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrClosed              = errors.New("service closed")
	ErrDuplicateClient     = errors.New("a client with this name already exists")
	ErrProductsUnavailable = errors.New("products could not be loaded")
	ErrNotLoaded           = errors.New("data has not been loaded")
	ErrNoObjectStore       = errors.New("no object store configured")
	ErrNoImportFunction    = errors.New("no import function configured")
)

// ActionError is a failed mutation. Message is meant for the user; Err is the cause.
// Local state is left as it was before the attempt.
type ActionError struct {
	Op      string
	Message string
	Err     error
}

func (e *ActionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// LoadError is a fatal load failure: the product set could not be read.
type LoadError struct {
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load: %v: %v", ErrProductsUnavailable, e.Err)
}

func (e *LoadError) Unwrap() []error { return []error{ErrProductsUnavailable, e.Err} }

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
