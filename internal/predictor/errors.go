package predictor

import (
	"fmt"
	"strings"

	"github.com/sargazo/sargazo-predictor/internal/errors"
)

// ErrNotLoaded is returned for a predictor whose artifacts failed to load
// at startup. Test with errors.Is.
var ErrNotLoaded error = notLoadedError{}

type notLoadedError struct{}

func (notLoadedError) Error() string { return "predictor not loaded" }

// ErrorCategory implements errors.CategorizedError
func (notLoadedError) ErrorCategory() errors.ErrorCategory { return errors.CategoryState }

// ValidationError reports caller input that does not fit the model.
type ValidationError struct {
	Field    string
	Expected string
	Received string
	Err      error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("invalid %s: expected %s, received %s", e.Field, e.Expected, e.Received)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ErrorCategory implements errors.CategorizedError
func (e *ValidationError) ErrorCategory() errors.ErrorCategory {
	return errors.CategoryValidation
}

// MissingFeaturesError lists every required feature absent from a request.
type MissingFeaturesError struct {
	Names []string
}

func (e *MissingFeaturesError) Error() string {
	return "missing features: " + strings.Join(e.Names, ", ")
}

// ErrorCategory implements errors.CategorizedError
func (e *MissingFeaturesError) ErrorCategory() errors.ErrorCategory {
	return errors.CategoryValidation
}

// InferenceError wraps a scaler or model failure during a prediction.
type InferenceError struct {
	Stage string // transform, invoke, output, inverse
	Err   error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed at %s: %v", e.Stage, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// ErrorCategory implements errors.CategorizedError
func (e *InferenceError) ErrorCategory() errors.ErrorCategory {
	return errors.CategoryInference
}

// IsClientError reports whether err should be answered as a bad request.
func IsClientError(err error) bool {
	switch errors.CategoryOf(err) {
	case errors.CategoryValidation, errors.CategoryInference:
		return true
	default:
		return false
	}
}
