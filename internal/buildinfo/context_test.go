package buildinfo

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewContext(t *testing.T) {
	tests := []struct {
		name        string
		ctx         *Context
		wantVersion string
	}{
		{"nil context", nil, UnknownValue},
		{"empty version", NewContext("", "2026-01-01", "abc"), UnknownValue},
		{"valid version", NewContext("v1.0.0", "2026-01-01", "abc"), "v1.0.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantVersion, tt.ctx.GetVersion())
		})
	}
}

func TestContextString(t *testing.T) {
	c := NewContext("v0.3.0", "", "0123456789abcdef0123")
	s := c.String()
	assert.True(t, strings.HasPrefix(s, "v0.3.0 (commit 0123456789ab, built unknown"), s)
	assert.Contains(t, s, runtime.GOOS+"/"+runtime.GOARCH)

	assert.Equal(t, UnknownValue, (*Context)(nil).String())
	assert.Contains(t, NewContext("", "", "").String(), "commit unknown")
}

func TestCurrent(t *testing.T) {
	c := Current()
	assert.NotEmpty(t, c.Version)
	assert.Equal(t, runtime.Version(), c.GoVersion)
}

func TestValidationResult(t *testing.T) {
	r := NewValidationResult()
	assert.True(t, r.Valid)
	assert.False(t, r.HasIssues())

	r.AddWarning("biomass predictor disabled")
	assert.True(t, r.Valid)
	assert.True(t, r.HasIssues())

	r.AddError("coordinates: model not found")
	assert.False(t, r.Valid)
	assert.Equal(t, []string{"coordinates: model not found"}, r.Errors)
}
