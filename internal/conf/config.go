// conf/config.go
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/sargazo/sargazo-predictor/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// ServerSettings configures the HTTP API listener.
type ServerSettings struct {
	Host            string        `yaml:"host" mapstructure:"host"`
	Port            int           `yaml:"port" mapstructure:"port"`
	ReadTimeout     time.Duration `yaml:"readtimeout" mapstructure:"readtimeout"`
	WriteTimeout    time.Duration `yaml:"writetimeout" mapstructure:"writetimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdowntimeout" mapstructure:"shutdowntimeout"`
	BodyLimit       string        `yaml:"bodylimit" mapstructure:"bodylimit"` // echo size string, e.g. 1M
	AllowedOrigins  []string      `yaml:"allowedorigins" mapstructure:"allowedorigins"`
	RateLimit       float64       `yaml:"ratelimit" mapstructure:"ratelimit"` // requests per second per client, 0 disables
	RateBurst       int           `yaml:"rateburst" mapstructure:"rateburst"`
}

// Address returns host:port.
func (s ServerSettings) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RemoteSettings points a predictor at an external model server.
type RemoteSettings struct {
	URL     string        `yaml:"url" mapstructure:"url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// CoordinateSettings locates the artifacts of the next-position model.
type CoordinateSettings struct {
	Enabled    bool           `yaml:"enabled" mapstructure:"enabled"`
	Dir        string         `yaml:"dir" mapstructure:"dir"`
	ConfigFile string         `yaml:"configfile" mapstructure:"configfile"`
	ScalerFile string         `yaml:"scalerfile" mapstructure:"scalerfile"`
	ModelFile  string         `yaml:"modelfile" mapstructure:"modelfile"`
	Backend    string         `yaml:"backend" mapstructure:"backend"` // tflite or remote
	Threads    int            `yaml:"threads" mapstructure:"threads"` // 0 selects from CPU topology
	Remote     RemoteSettings `yaml:"remote" mapstructure:"remote"`
}

// BiomassSettings locates the artifacts of the biomass model.
type BiomassSettings struct {
	Enabled    bool           `yaml:"enabled" mapstructure:"enabled"`
	Dir        string         `yaml:"dir" mapstructure:"dir"`
	ConfigFile string         `yaml:"configfile" mapstructure:"configfile"`
	ModelFile  string         `yaml:"modelfile" mapstructure:"modelfile"`
	Backend    string         `yaml:"backend" mapstructure:"backend"` // xgboost or remote
	Remote     RemoteSettings `yaml:"remote" mapstructure:"remote"`
}

// ModelsSettings holds options shared by both predictors.
type ModelsSettings struct {
	FailFast bool `yaml:"failfast" mapstructure:"failfast"` // abort startup if any predictor fails to load
}

// CacheSettings configures the in-memory memo of identical predictions.
type CacheSettings struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL             time.Duration `yaml:"ttl" mapstructure:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanupinterval" mapstructure:"cleanupinterval"`
}

// MetricsSettings configures Prometheus exposition.
type MetricsSettings struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Listen  string `yaml:"listen" mapstructure:"listen"` // empty serves /metrics on the API port
}

// SentrySettings configures error telemetry.
type SentrySettings struct {
	Enabled     bool    `yaml:"enabled" mapstructure:"enabled"`
	DSN         string  `yaml:"dsn" mapstructure:"dsn"`
	Environment string  `yaml:"environment" mapstructure:"environment"`
	SampleRate  float64 `yaml:"samplerate" mapstructure:"samplerate"`
}

// Settings contains all configuration options for the service.
type Settings struct {
	Debug       bool                 `yaml:"debug" mapstructure:"debug"`
	Server      ServerSettings       `yaml:"server" mapstructure:"server"`
	Logging     logger.LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Coordinates CoordinateSettings   `yaml:"coordinates" mapstructure:"coordinates"`
	Biomass     BiomassSettings      `yaml:"biomass" mapstructure:"biomass"`
	Models      ModelsSettings       `yaml:"models" mapstructure:"models"`
	Cache       CacheSettings        `yaml:"cache" mapstructure:"cache"`
	Metrics     MetricsSettings      `yaml:"metrics" mapstructure:"metrics"`
	Sentry      SentrySettings       `yaml:"sentry" mapstructure:"sentry"`

	// ConfigFile is the file the settings were read from, empty when only
	// defaults and environment were used.
	ConfigFile string `yaml:"-" mapstructure:"-"`
}

// Artifacts names the files a predictor is loaded from.
type Artifacts struct {
	Config string
	Scaler string // empty for predictors without a scaler
	Model  string
}

// CoordinateArtifacts resolves the next-position model files.
func (s *Settings) CoordinateArtifacts() Artifacts {
	c := s.Coordinates
	return Artifacts{
		Config: filepath.Join(c.Dir, c.ConfigFile),
		Scaler: filepath.Join(c.Dir, c.ScalerFile),
		Model:  filepath.Join(c.Dir, c.ModelFile),
	}
}

// BiomassArtifacts resolves the biomass model files.
func (s *Settings) BiomassArtifacts() Artifacts {
	b := s.Biomass
	return Artifacts{
		Config: filepath.Join(b.Dir, b.ConfigFile),
		Model:  filepath.Join(b.Dir, b.ModelFile),
	}
}

// Load reads the configuration file and environment variables using the
// global viper instance, so that cobra flags bound to it take effect.
func Load() (*Settings, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads settings through v. Tests pass a fresh viper.New().
func LoadFrom(v *viper.Viper) (*Settings, error) {
	if err := initViper(v); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}
	settings.ConfigFile = v.ConfigFileUsed()

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}
	return settings, nil
}

// initViper registers defaults and environment bindings, then reads the
// config file. A missing config file is not an error.
func initViper(v *viper.Viper) error {
	setDefaultConfig(v)

	v.SetEnvPrefix("SARGAZO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnvVars(v); err != nil {
		return err
	}

	// an explicit --config path set by the CLI takes precedence
	if v.ConfigFileUsed() == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		configPaths, err := GetDefaultConfigPaths()
		if err != nil {
			return fmt.Errorf("error getting default config paths: %w", err)
		}
		for _, path := range configPaths {
			v.AddConfigPath(path)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			GetLogger().Debug("no config file found, using defaults and environment")
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}
	return nil
}

// GetDefaultConfig returns the embedded default config.yaml.
func GetDefaultConfig() ([]byte, error) {
	return fs.ReadFile(configFiles, "config.yaml")
}

// WriteDefaultConfig writes the embedded default config to path, creating
// parent directories. An existing file is left untouched.
func WriteDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	data, err := GetDefaultConfig()
	if err != nil {
		return fmt.Errorf("error reading embedded config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // config is not secret by default
		return fmt.Errorf("error writing default config file: %w", err)
	}
	GetLogger().Info("created default config file", logger.String("path", path))
	return nil
}

// Dump renders the effective settings as YAML.
func (s *Settings) Dump() ([]byte, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("error marshaling settings to YAML: %w", err)
	}
	return data, nil
}

// SaveYAMLConfig writes settings to configPath. It overwrites the existing
// file, not preserving comments or structure.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := settings.Dump()
	if err != nil {
		return err
	}

	// write to a temporary file first so the replace is atomic
	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer func() { _ = os.Remove(tempFileName) }()

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := moveFile(tempFileName, configPath); err != nil {
		return fmt.Errorf("error moving config file: %w", err)
	}
	return nil
}
