package serve

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sargazo/sargazo-predictor/internal/api"
	"github.com/sargazo/sargazo-predictor/internal/app"
	"github.com/sargazo/sargazo-predictor/internal/conf"
	"github.com/sargazo/sargazo-predictor/internal/httpclient"
	"github.com/sargazo/sargazo-predictor/internal/logger"
	"github.com/sargazo/sargazo-predictor/internal/observability"
)

// Command creates the serve command, which loads the predictors and runs the
// HTTP API until interrupted.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the prediction HTTP API",
		Long:  "Load the coordinate and biomass predictors and serve them over HTTP until SIGINT or SIGTERM.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), settings)
		},
	}

	if err := setupFlags(cmd); err != nil {
		panic(err)
	}
	return cmd
}

// setupFlags configures flags specific to the serve command.
func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("host", "", "Address the API listens on")
	cmd.Flags().Int("port", 0, "Port the API listens on")
	cmd.Flags().String("metrics-listen", "", "Serve Prometheus metrics on a separate address, e.g. :9090")

	for key, name := range map[string]string{
		"server.host":    "host",
		"server.port":    "port",
		"metrics.listen": "metrics-listen",
	} {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", name, err)
		}
	}
	return nil
}

func run(ctx context.Context, settings *conf.Settings) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := logger.Global().Module("serve")

	var m *observability.Metrics
	if settings.Metrics.Enabled {
		var err error
		if m, err = observability.NewMetrics(); err != nil {
			return fmt.Errorf("failed to create metrics: %w", err)
		}
	}

	client := httpclient.New(nil)
	defer client.Close()

	appCtx, err := app.Load(settings, app.WithMetrics(m), app.WithHTTPClient(client))
	if err != nil {
		return err
	}
	defer func() {
		if err := appCtx.Close(); err != nil {
			log.Warn("failed to release predictors", logger.Error(err))
		}
	}()

	st := appCtx.Status()
	log.Info("predictors ready", logger.String("status", st.Status))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if m != nil && settings.Metrics.Listen != "" {
		endpoint, err := observability.NewEndpoint(settings.Metrics.Listen, m)
		if err != nil {
			return err
		}
		done, err := endpoint.Start(ctx)
		if err != nil {
			return err
		}
		defer func() {
			cancel()
			<-done
		}()
	}

	server, err := api.New(settings, appCtx, api.WithMetrics(m))
	if err != nil {
		return err
	}
	return server.StartWithGracefulShutdown(ctx)
}
