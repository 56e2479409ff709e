// internal/domain/cart/errors.go
package cart

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("cart item not found")
	ErrLimitExceeded    = errors.New("cart limit exceeded")
	ErrInvalidItem      = errors.New("invalid cart item")
	ErrInvalidDiscount  = errors.New("invalid discount")
	ErrInvalidCosts     = errors.New("invalid costs")
	ErrInvalidStatus    = errors.New("invalid cart status")
	ErrValidationFailed = errors.New("cart validation failed")
	ErrSnapshotNotFound = errors.New("cart snapshot not found")
)

// ValidationError carries the failed validation result
type ValidationError struct {
	Result ValidationResult
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %d error(s)", ErrValidationFailed, len(e.Result.Errors))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}
