// Package persistence provides standardized error types for storage operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrProductNotFound indicates no product exists for the given identifier.
	ErrProductNotFound = errors.New("product not found")

	// ErrProductAlreadyExists indicates a product with the same identifier
	// already exists.
	ErrProductAlreadyExists = errors.New("product already exists")

	// ErrVersionConflict indicates the stored product version did not match
	// the caller's expected version; nothing was written.
	ErrVersionConflict = errors.New("product version conflict")

	// ErrStorageUnavailable indicates a transient storage-layer failure; the
	// caller may retry with backoff.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// ProductError wraps product-related storage errors with additional context.
type ProductError struct {
	Op        string // Operation being performed (e.g., "GetByID", "CommitTransition")
	ProductID string // Product ID if applicable
	Err       error  // Underlying error
}

func (e *ProductError) Error() string {
	return fmt.Sprintf("%s operation failed for product %s: %v", e.Op, e.ProductID, e.Err)
}

func (e *ProductError) Unwrap() error {
	return e.Err
}

func (e *ProductError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewProductError creates a new product error with context.
func NewProductError(op, productID string, err error) *ProductError {
	return &ProductError{
		Op:        op,
		ProductID: productID,
		Err:       err,
	}
}

// IsProductNotFound checks if an error indicates a product was not found.
func IsProductNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound)
}

// IsVersionConflict checks if an error indicates an optimistic concurrency
// conflict.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsStorageUnavailable checks if an error indicates a transient storage failure.
func IsStorageUnavailable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}
