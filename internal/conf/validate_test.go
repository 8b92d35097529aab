package conf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validSettings() *Settings {
	return &Settings{
		Server: ServerSettings{Host: "0.0.0.0", Port: 8000, BodyLimit: "1M"},
		Coordinates: CoordinateSettings{
			Enabled: true, Dir: "models/coordinates",
			ConfigFile: "c.json", ScalerFile: "s.json", ModelFile: "m.tflite",
			Backend: "tflite",
		},
		Biomass: BiomassSettings{
			Enabled: true, Dir: "models/biomass",
			ConfigFile: "c.json", ModelFile: "m.json",
			Backend: "xgboost",
		},
	}
}

func TestValidateSettings(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr string
	}{
		{"valid", func(*Settings) {}, ""},
		{"bad port", func(s *Settings) { s.Server.Port = 0 }, "server port"},
		{"bad body limit", func(s *Settings) { s.Server.BodyLimit = "lots" }, "body limit"},
		{"negative rate", func(s *Settings) { s.Server.RateLimit = -1 }, "rate limit"},
		{"unknown backend", func(s *Settings) { s.Coordinates.Backend = "onnx" }, "coordinates backend"},
		{"backend case folded", func(s *Settings) { s.Coordinates.Backend = "TFLite" }, ""},
		{"biomass cannot use tflite", func(s *Settings) { s.Biomass.Backend = "tflite" }, "biomass backend"},
		{"remote needs url", func(s *Settings) { s.Biomass.Backend = "remote" }, "remote url is required"},
		{"remote relative url", func(s *Settings) {
			s.Coordinates.Backend = "remote"
			s.Coordinates.Remote.URL = "/predict"
		}, "absolute http(s) URL"},
		{"remote ok without model file", func(s *Settings) {
			s.Coordinates.Backend = "remote"
			s.Coordinates.ModelFile = ""
			s.Coordinates.Remote.URL = "http://tf-serving:8501/v1/models/lstm:predict"
		}, ""},
		{"disabled predictor skips checks", func(s *Settings) {
			s.Biomass.Enabled = false
			s.Biomass.Backend = "bogus"
		}, ""},
		{"cache ttl", func(s *Settings) { s.Cache = CacheSettings{Enabled: true} }, "cache ttl"},
		{"cache ok", func(s *Settings) { s.Cache = CacheSettings{Enabled: true, TTL: time.Minute} }, ""},
		{"sentry dsn", func(s *Settings) { s.Sentry = SentrySettings{Enabled: true, SampleRate: 1} }, "sentry dsn"},
		{"sentry rate", func(s *Settings) {
			s.Sentry = SentrySettings{Enabled: true, DSN: "https://key@o0.ingest.sentry.io/0", SampleRate: 2}
		}, "sample rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.mutate(s)
			err := ValidateSettings(s)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidationErrorListsEverySection(t *testing.T) {
	s := validSettings()
	s.Server.Port = -1
	s.Coordinates.Backend = "onnx"
	s.Biomass.Dir = ""

	err := ValidateSettings(s)
	ve, ok := err.(ValidationError)
	if assert.True(t, ok) {
		assert.Len(t, ve.Errors, 3)
	}
}
