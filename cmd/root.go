package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sargazo/sargazo-predictor/cmd/check"
	configcmd "github.com/sargazo/sargazo-predictor/cmd/config"
	"github.com/sargazo/sargazo-predictor/cmd/predict"
	"github.com/sargazo/sargazo-predictor/cmd/serve"
	"github.com/sargazo/sargazo-predictor/cmd/version"
	"github.com/sargazo/sargazo-predictor/internal/buildinfo"
	"github.com/sargazo/sargazo-predictor/internal/conf"
	"github.com/sargazo/sargazo-predictor/internal/logger"
	"github.com/sargazo/sargazo-predictor/internal/telemetry"
)

// RootCommand creates and returns the root command. settings is filled from
// the config file, environment and flags before any subcommand runs.
func RootCommand(settings *conf.Settings) *cobra.Command {
	var configFile string
	var central *logger.CentralLogger

	rootCmd := &cobra.Command{
		Use:           "sargazo",
		Short:         "Sargassum drift and biomass prediction service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, &configFile); err != nil {
		panic(err)
	}

	versionCmd := version.Command()
	subcommands := []*cobra.Command{
		serve.Command(settings),
		predict.Command(settings),
		check.Command(settings),
		configcmd.Command(settings),
		versionCmd,
	}
	rootCmd.AddCommand(subcommands...)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// version needs no configuration
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		cl, err := initialize(settings, configFile)
		if err != nil {
			return err
		}
		central = cl
		return nil
	}

	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		telemetry.Close()
		return central.Close()
	}

	return rootCmd
}

// initialize loads settings and sets up logging and telemetry. It is called
// before any subcommand runs, after flags are parsed.
func initialize(settings *conf.Settings, configFile string) (*logger.CentralLogger, error) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	}

	loaded, err := conf.Load()
	if err != nil {
		return nil, err
	}
	*settings = *loaded

	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}

	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)

	if err := telemetry.InitSentry(settings, buildinfo.Current()); err != nil {
		// telemetry is optional; the service runs without it
		logger.Global().Module("main").Warn("sentry disabled", logger.Error(err))
	}

	if settings.ConfigFile != "" {
		logger.Global().Module("main").Info("configuration loaded", logger.String("file", settings.ConfigFile))
	}
	return central, nil
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, configFile *string) error {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(configFile, "config", "c", "", "Path to config file (default: search ., ./config, ~/.config/sargazo, /etc/sargazo)")
	flags.BoolP("debug", "d", false, "Enable debug output")
	flags.String("log-level", "", "Default log level (trace, debug, info, warn, error)")

	for key, name := range map[string]string{
		"debug":                 "debug",
		"logging.default_level": "log-level",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", name, err)
		}
	}
	return nil
}
