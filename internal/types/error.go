package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain error kinds. Concrete error values wrap
// these so callers can branch with errors.Is.
var (
	ErrDuplicateKey  = errors.New("duplicate key")
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation failure")
	ErrAlreadyParked = errors.New("car already has an open parking session")
	ErrBanned        = errors.New("car is banned")
)

// CustomError carries an HTTP status and an error type for the API envelope
type CustomError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (e *CustomError) Error() string {
	return fmt.Sprintf("%d: %s [type: %s]", e.Code, e.Message, e.Type)
}

// DuplicateKeyError reports a uniqueness violation on create or update
type DuplicateKeyError struct {
	Entity string
	Key    any
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s with key %v already exists", e.Entity, e.Key)
}

func (e *DuplicateKeyError) Unwrap() error { return ErrDuplicateKey }

// NotFoundError reports a referenced row that must exist but does not
type NotFoundError struct {
	Entity string
	Key    any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Entity, e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ValidationError reports malformed input rejected before touching storage
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
