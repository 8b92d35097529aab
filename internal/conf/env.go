// env.go - Environment variable configuration and validation
package conf

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Backend names accepted per predictor.
var (
	coordinateBackends = []string{"tflite", "remote"}
	biomassBackends    = []string{"xgboost", "remote"}
	logLevels          = []string{"trace", "debug", "info", "warn", "warning", "error"}
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns the explicitly named environment variables. Every
// other key is reachable as SARGAZO_<KEY> through AutomaticEnv.
func getEnvBindings() []envBinding {
	return []envBinding{
		// Artifact directories
		{"coordinates.dir", "SARGAZO_MODEL_DIR", validateEnvDir},
		{"biomass.dir", "BIOMASA_MODEL_DIR", validateEnvDir},

		// Backends
		{"coordinates.backend", "SARGAZO_COORDINATES_BACKEND", oneOf(coordinateBackends)},
		{"coordinates.threads", "SARGAZO_COORDINATES_THREADS", validateEnvThreads},
		{"coordinates.remote.url", "SARGAZO_COORDINATES_REMOTE_URL", validateEnvURL},
		{"biomass.backend", "SARGAZO_BIOMASS_BACKEND", oneOf(biomassBackends)},
		{"biomass.remote.url", "SARGAZO_BIOMASS_REMOTE_URL", validateEnvURL},
		{"models.failfast", "SARGAZO_MODELS_FAILFAST", validateEnvBool},

		// Server
		{"server.host", "SARGAZO_HOST", nil},
		{"server.port", "SARGAZO_PORT", validateEnvPort},

		// Ambient
		{"debug", "SARGAZO_DEBUG", validateEnvBool},
		{"logging.default_level", "SARGAZO_LOG_LEVEL", oneOf(logLevels)},
		{"cache.enabled", "SARGAZO_CACHE_ENABLED", validateEnvBool},
		{"metrics.enabled", "SARGAZO_METRICS_ENABLED", validateEnvBool},
		{"sentry.enabled", "SARGAZO_SENTRY_ENABLED", validateEnvBool},
		{"sentry.dsn", "SARGAZO_SENTRY_DSN", nil},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars(v *viper.Viper) error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		// the long form stays available next to the short alias
		longForm := "SARGAZO_" + strings.ToUpper(strings.ReplaceAll(binding.ConfigKey, ".", "_"))
		names := []string{binding.EnvVar}
		if longForm != binding.EnvVar {
			names = append(names, longForm)
		}
		if err := v.BindEnv(append([]string{binding.ConfigKey}, names...)...); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate == nil {
			continue
		}
		for _, name := range names {
			if envValue, ok := os.LookupEnv(name); ok && envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", name, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

// Environment variable validation functions

// validateEnvBool validates boolean environment variables
func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f, TRUE/FALSE, T/F", value)
	}
	return nil
}

func validateEnvThreads(value string) error {
	threads, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid threads: %w", err)
	}
	if threads < 0 {
		return fmt.Errorf("threads must be non-negative, got %d", threads)
	}
	return nil
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid port: %w", err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL has no host")
	}
	return nil
}

// validateEnvDir accepts relative and absolute directories. Existence is
// checked later by the artifact loaders, which report the full file path.
func validateEnvDir(value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("directory must not be blank")
	}
	if strings.ContainsRune(value, 0) {
		return fmt.Errorf("directory contains a NUL byte")
	}
	return nil
}

func oneOf(valid []string) func(string) error {
	return func(value string) error {
		if slices.Contains(valid, strings.ToLower(value)) {
			return nil
		}
		return fmt.Errorf("must be one of: %s", strings.Join(valid, ", "))
	}
}
