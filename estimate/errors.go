package estimate

import (
	"errors"
	"fmt"
)

var (
	// ErrCustomerRequired is returned when saving an estimate with no customer.
	ErrCustomerRequired = errors.New("please select a customer before saving")

	// ErrNotSaved is returned when deleting an estimate that was never saved.
	ErrNotSaved = errors.New("this is a new estimate and has not been saved yet")

	// ErrJobNotFound is returned when a referenced estimate doesn't exist.
	ErrJobNotFound = errors.New("estimate not found")

	// ErrLineIndex is returned when a line index is out of range.
	ErrLineIndex = errors.New("line index out of range")

	// ErrInvalidInput is the root of every InputError.
	ErrInvalidInput = errors.New("invalid line input")
)

// InputError describes a rejected line-item field.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}

// LineIndexError carries the rejected index.
type LineIndexError struct {
	Index int
	Count int
}

func (e *LineIndexError) Error() string {
	return fmt.Sprintf("line %d out of range (estimate has %d lines)", e.Index, e.Count)
}

func (e *LineIndexError) Unwrap() error {
	return ErrLineIndex
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrCustomerRequired) ||
		errors.Is(err, ErrNotSaved) ||
		errors.Is(err, ErrLineIndex) ||
		errors.Is(err, ErrInvalidInput)
}
