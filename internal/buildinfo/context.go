// Package buildinfo contains build-time metadata and validation state separate from user configuration
package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// UnknownValue is reported for metadata that was not injected at build time.
const UnknownValue = "unknown"

// Injected with -ldflags "-X github.com/sargazo/sargazo-predictor/internal/buildinfo.version=v1.2.3".
var (
	version   string
	buildDate string
	commit    string
)

// Context contains build-time metadata that is not user-configurable.
type Context struct {
	Version   string `json:"version"`
	BuildDate string `json:"build_date"`
	Commit    string `json:"commit"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// NewContext returns a Context with the given values, using UnknownValue
// for empty ones.
func NewContext(version, buildDate, commit string) *Context {
	return &Context{
		Version:   orUnknown(version),
		BuildDate: orUnknown(buildDate),
		Commit:    orUnknown(commit),
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Current returns the metadata of the running binary. A missing commit is
// taken from the VCS stamp the Go toolchain embeds.
func Current() *Context {
	rev := commit
	if rev == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, s := range info.Settings {
				if s.Key == "vcs.revision" {
					rev = s.Value
				}
			}
		}
	}
	return NewContext(version, buildDate, rev)
}

// GetVersion returns the version, or UnknownValue for a nil Context.
func (c *Context) GetVersion() string {
	if c == nil {
		return UnknownValue
	}
	return orUnknown(c.Version)
}

// String formats the metadata on one line.
func (c *Context) String() string {
	if c == nil {
		return UnknownValue
	}
	return fmt.Sprintf("%s (commit %s, built %s, %s %s)",
		orUnknown(c.Version), shortCommit(c.Commit), orUnknown(c.BuildDate), c.GoVersion, c.Platform)
}

func orUnknown(s string) string {
	if s == "" {
		return UnknownValue
	}
	return s
}

func shortCommit(s string) string {
	s = orUnknown(s)
	if len(s) > 12 && s != UnknownValue {
		return s[:12]
	}
	return s
}

// ValidationResult holds validation outcomes separately from configuration
type ValidationResult struct {
	// Warnings are issues that don't prevent startup
	Warnings []string `json:"warnings,omitempty"`

	// Errors are critical issues that should prevent startup
	Errors []string `json:"errors,omitempty"`

	Valid bool `json:"valid"`
}

// NewValidationResult creates a new validation result with Valid set to true
func NewValidationResult() *ValidationResult {
	return &ValidationResult{Valid: true}
}

// AddWarning adds a warning to the validation result
func (r *ValidationResult) AddWarning(message string) {
	r.Warnings = append(r.Warnings, message)
}

// AddError adds an error to the validation result
func (r *ValidationResult) AddError(message string) {
	r.Errors = append(r.Errors, message)
	r.Valid = false
}

// HasIssues returns true if there are any warnings or errors
func (r *ValidationResult) HasIssues() bool {
	return len(r.Warnings) > 0 || len(r.Errors) > 0
}
