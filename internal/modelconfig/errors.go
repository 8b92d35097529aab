package modelconfig

import (
	"fmt"
	"strings"

	"github.com/sargazo/sargazo-predictor/internal/errors"
)

// NotFoundError reports a missing artifact file.
type NotFoundError struct {
	Path string
	Kind string // "config", "scaler" or "model"
}

func (e *NotFoundError) Error() string {
	kind := e.Kind
	if kind == "" {
		kind = "file"
	}
	return fmt.Sprintf("%s not found: %s", kind, e.Path)
}

// ErrorCategory implements errors.CategorizedError
func (e *NotFoundError) ErrorCategory() errors.ErrorCategory {
	return errors.CategoryNotFound
}

// MalformedConfigError reports a required key that is absent or has the wrong type.
type MalformedConfigError struct {
	Path   string
	Key    string
	Reason string
	Err    error
}

func (e *MalformedConfigError) Error() string {
	var b strings.Builder
	b.WriteString("malformed config")
	if e.Path != "" {
		b.WriteString(" " + e.Path)
	}
	if e.Key != "" {
		fmt.Fprintf(&b, ": key %q", e.Key)
	}
	if e.Reason != "" {
		b.WriteString(": " + e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *MalformedConfigError) Unwrap() error { return e.Err }

// ErrorCategory implements errors.CategorizedError
func (e *MalformedConfigError) ErrorCategory() errors.ErrorCategory {
	return errors.CategoryConfiguration
}

// InvalidFeatureSetError lists every feature or target column that is not
// part of the full column list.
type InvalidFeatureSetError struct {
	Path    string
	Columns []string
}

func (e *InvalidFeatureSetError) Error() string {
	return fmt.Sprintf("invalid feature set in %s: columns not in ALL_COLS: %s",
		e.Path, strings.Join(e.Columns, ", "))
}

// ErrorCategory implements errors.CategorizedError
func (e *InvalidFeatureSetError) ErrorCategory() errors.ErrorCategory {
	return errors.CategoryConfiguration
}
