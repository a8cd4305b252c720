package catalog

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrCategoryExists is returned when a category name is already taken.
	ErrCategoryExists = errors.New("category already exists")

	// ErrProtectedCategory is returned when renaming, moving or deleting the
	// Uncategorized category.
	ErrProtectedCategory = errors.New("the Uncategorized category cannot be changed")

	// ErrCustomerNotFound is returned when a referenced customer doesn't exist.
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrCategoryNotFound is returned when a referenced category doesn't exist.
	ErrCategoryNotFound = errors.New("category not found")

	// ErrItemNotFound is returned when a referenced price item doesn't exist.
	ErrItemNotFound = errors.New("price item not found")

	// ErrInvalid is the root of every ValidationError.
	ErrInvalid = errors.New("invalid input")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalid
}

// CategoryExistsError carries the conflicting name.
type CategoryExistsError struct {
	Name string
}

func (e *CategoryExistsError) Error() string {
	return fmt.Sprintf("category %q already exists", e.Name)
}

func (e *CategoryExistsError) Unwrap() error {
	return ErrCategoryExists
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing catalog record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrCategoryNotFound) ||
		errors.Is(err, ErrItemNotFound)
}

// IsConflict returns true for uniqueness and sentinel-protection failures.
func IsConflict(err error) bool {
	return errors.Is(err, ErrCategoryExists) ||
		errors.Is(err, ErrProtectedCategory)
}
