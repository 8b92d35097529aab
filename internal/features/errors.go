package features

import (
	"fmt"

	"github.com/sargazo/sargazo-predictor/internal/errors"
)

// ShapeError reports input that is not a non-empty rectangular 2-D numeric array.
type ShapeError struct {
	Reason string
}

func (e *ShapeError) Error() string {
	return "invalid sequence shape: " + e.Reason
}

// ErrorCategory implements errors.CategorizedError
func (e *ShapeError) ErrorCategory() errors.ErrorCategory { return errors.CategoryValidation }

// RowCountError reports a sequence whose row count differs from the model's step count.
type RowCountError struct {
	Expected int
	Received int
}

func (e *RowCountError) Error() string {
	return fmt.Sprintf("row count mismatch: expected %d rows, received %d", e.Expected, e.Received)
}

// ErrorCategory implements errors.CategorizedError
func (e *RowCountError) ErrorCategory() errors.ErrorCategory { return errors.CategoryValidation }

// ColumnCountError reports rows whose width differs from the feature count.
type ColumnCountError struct {
	Expected int
	Received int
}

func (e *ColumnCountError) Error() string {
	return fmt.Sprintf("column count mismatch: expected %d features per row, received %d", e.Expected, e.Received)
}

// ErrorCategory implements errors.CategorizedError
func (e *ColumnCountError) ErrorCategory() errors.ErrorCategory { return errors.CategoryValidation }
