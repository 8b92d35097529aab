// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"

	"github.com/sargazo/sargazo-predictor/internal/logger"
)

// Default artifact locations, relative to the working directory.
const (
	DefaultCoordinateDir = "models/coordinates"
	DefaultBiomassDir    = "models/biomass"
)

// setDefaultConfig sets default values for the configuration.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.readtimeout", 15*time.Second)
	v.SetDefault("server.writetimeout", 30*time.Second)
	v.SetDefault("server.shutdowntimeout", 10*time.Second)
	v.SetDefault("server.bodylimit", "1M")
	v.SetDefault("server.allowedorigins", []string{})
	v.SetDefault("server.ratelimit", 0.0)
	v.SetDefault("server.rateburst", 20)

	v.SetDefault("logging.default_level", logger.DefaultLogLevel)
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", logger.DefaultConsoleEnabled)
	v.SetDefault("logging.console.level", logger.DefaultLogLevel)
	v.SetDefault("logging.file_output.enabled", logger.DefaultFileEnabled)
	v.SetDefault("logging.file_output.path", logger.DefaultLogPath)
	v.SetDefault("logging.file_output.level", logger.DefaultLogLevel)
	v.SetDefault("logging.module_levels", map[string]string{})

	v.SetDefault("coordinates.enabled", true)
	v.SetDefault("coordinates.dir", DefaultCoordinateDir)
	v.SetDefault("coordinates.configfile", "sargazo_config.json")
	v.SetDefault("coordinates.scalerfile", "sargazo_scaler.json")
	v.SetDefault("coordinates.modelfile", "sargazo_lstm_model.tflite")
	v.SetDefault("coordinates.backend", "tflite")
	v.SetDefault("coordinates.threads", 0)
	v.SetDefault("coordinates.remote.url", "")
	v.SetDefault("coordinates.remote.timeout", 10*time.Second)

	v.SetDefault("biomass.enabled", true)
	v.SetDefault("biomass.dir", DefaultBiomassDir)
	v.SetDefault("biomass.configfile", "biomasa_config.json")
	v.SetDefault("biomass.modelfile", "biomasa_xgb_model.json")
	v.SetDefault("biomass.backend", "xgboost")
	v.SetDefault("biomass.remote.url", "")
	v.SetDefault("biomass.remote.timeout", 10*time.Second)

	v.SetDefault("models.failfast", false)

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.cleanupinterval", 10*time.Minute)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.listen", "")

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "production")
	v.SetDefault("sentry.samplerate", 1.0)
}
