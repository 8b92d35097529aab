// conf/validate.go

package conf

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/labstack/gommon/bytes"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateServerSettings(&settings.Server); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateCoordinateSettings(&settings.Coordinates); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateBiomassSettings(&settings.Biomass); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateCacheSettings(&settings.Cache); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateSentrySettings(&settings.Sentry); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateServerSettings(settings *ServerSettings) error {
	var errs []string

	if settings.Port < 1 || settings.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server port must be between 1 and 65535, got %d", settings.Port))
	}
	if settings.ReadTimeout < 0 || settings.WriteTimeout < 0 || settings.ShutdownTimeout < 0 {
		errs = append(errs, "server timeouts must not be negative")
	}
	if settings.BodyLimit != "" {
		if _, err := bytes.Parse(settings.BodyLimit); err != nil {
			errs = append(errs, fmt.Sprintf("server body limit %q is not a size: %v", settings.BodyLimit, err))
		}
	}
	if settings.RateLimit < 0 {
		errs = append(errs, "server rate limit must not be negative")
	}

	return joinErrors(errs)
}

func validateCoordinateSettings(settings *CoordinateSettings) error {
	if !settings.Enabled {
		return nil
	}
	var errs []string

	settings.Backend = strings.ToLower(settings.Backend)
	if !slices.Contains(coordinateBackends, settings.Backend) {
		errs = append(errs, fmt.Sprintf("coordinates backend must be one of %s, got %q",
			strings.Join(coordinateBackends, ", "), settings.Backend))
	}
	if settings.Threads < 0 {
		errs = append(errs, "coordinates threads must be at least 0")
	}
	if settings.Dir == "" {
		errs = append(errs, "coordinates dir must not be empty")
	}
	if settings.ConfigFile == "" || settings.ScalerFile == "" {
		errs = append(errs, "coordinates config and scaler file names must not be empty")
	}
	if settings.Backend == "remote" {
		if err := validateRemote(settings.Remote); err != nil {
			errs = append(errs, "coordinates "+err.Error())
		}
	} else if settings.ModelFile == "" {
		errs = append(errs, "coordinates model file name must not be empty")
	}

	return joinErrors(errs)
}

func validateBiomassSettings(settings *BiomassSettings) error {
	if !settings.Enabled {
		return nil
	}
	var errs []string

	settings.Backend = strings.ToLower(settings.Backend)
	if !slices.Contains(biomassBackends, settings.Backend) {
		errs = append(errs, fmt.Sprintf("biomass backend must be one of %s, got %q",
			strings.Join(biomassBackends, ", "), settings.Backend))
	}
	if settings.Dir == "" || settings.ConfigFile == "" {
		errs = append(errs, "biomass dir and config file name must not be empty")
	}
	if settings.Backend == "remote" {
		if err := validateRemote(settings.Remote); err != nil {
			errs = append(errs, "biomass "+err.Error())
		}
	} else if settings.ModelFile == "" {
		errs = append(errs, "biomass model file name must not be empty")
	}

	return joinErrors(errs)
}

func validateRemote(settings RemoteSettings) error {
	if settings.URL == "" {
		return fmt.Errorf("remote url is required for the remote backend")
	}
	u, err := url.Parse(settings.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("remote url %q must be an absolute http(s) URL", settings.URL)
	}
	if settings.Timeout < 0 {
		return fmt.Errorf("remote timeout must not be negative")
	}
	return nil
}

func validateCacheSettings(settings *CacheSettings) error {
	if !settings.Enabled {
		return nil
	}
	if settings.TTL <= 0 {
		return fmt.Errorf("cache ttl must be positive when the cache is enabled")
	}
	return nil
}

func validateSentrySettings(settings *SentrySettings) error {
	if !settings.Enabled {
		return nil
	}
	var errs []string
	if settings.DSN == "" {
		errs = append(errs, "sentry dsn is required when sentry is enabled")
	}
	if settings.SampleRate < 0 || settings.SampleRate > 1 {
		errs = append(errs, "sentry sample rate must be between 0 and 1")
	}
	return joinErrors(errs)
}

func joinErrors(errs []string) error {
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}
