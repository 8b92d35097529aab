// Package predict runs a single prediction from the command line without
// starting the HTTP API.
package predict

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/sargazo/sargazo-predictor/internal/app"
	"github.com/sargazo/sargazo-predictor/internal/conf"
	"github.com/sargazo/sargazo-predictor/internal/features"
	"github.com/sargazo/sargazo-predictor/internal/predictor"
)

// Command creates the predict command with its coordinates and biomass
// subcommands. Input is JSON read from --input, or stdin when it is "-".
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Run one prediction and print the result as JSON",
	}
	cmd.PersistentFlags().StringP("input", "i", "-", "JSON input file, - for stdin")

	cmd.AddCommand(coordinatesCommand(settings), biomassCommand(settings))
	return cmd
}

func coordinatesCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "coordinates",
		Short: "Predict the next position from a sequence of observations",
		Long: `Reads either {"sequence": [[...], ...]} or a bare 2-D array and prints
{"latitud_siguiente": ..., "longitud_siguiente": ...}.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw any
			if err := readInput(cmd, &raw); err != nil {
				return err
			}
			if obj, ok := raw.(map[string]any); ok {
				raw = obj["sequence"]
			}
			seq, err := features.ParseSequence(raw)
			if err != nil {
				return &predictor.ValidationError{Field: "sequence", Err: err}
			}

			s := *settings
			s.Biomass.Enabled = false
			appCtx, err := load(&s)
			if err != nil {
				return err
			}
			defer func() { _ = appCtx.Close() }()

			out, err := appCtx.PredictCoordinates(cmd.Context(), seq)
			if err != nil {
				return err
			}
			return writeJSON(cmd, out)
		},
	}
}

func biomassCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "biomass",
		Short: "Predict biomass from one feature row",
		Long:  `Reads a JSON object of feature name to value and prints {"<target>": value}.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw map[string]any
			if err := readInput(cmd, &raw); err != nil {
				return err
			}

			s := *settings
			s.Coordinates.Enabled = false
			appCtx, err := load(&s)
			if err != nil {
				return err
			}
			defer func() { _ = appCtx.Close() }()

			p, err := appCtx.Biomass()
			if err != nil {
				return err
			}
			cfg := p.Config()
			v, err := features.ParseVector(raw, cfg.Features)
			if err != nil {
				return &predictor.ValidationError{Field: "features", Err: err}
			}
			out, err := appCtx.PredictBiomass(cmd.Context(), v)
			if err != nil {
				return err
			}
			return writeJSON(cmd, map[string]float64{cfg.Target: out})
		},
	}
}

// load brings up only the predictor the subcommand needs and fails if it
// cannot be loaded.
func load(s *conf.Settings) (*app.Context, error) {
	s.Models.FailFast = true
	s.Cache.Enabled = false
	return app.Load(s)
}

func readInput(cmd *cobra.Command, v any) error {
	path, err := cmd.Flags().GetString("input")
	if err != nil {
		return err
	}

	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	if err := json.NewDecoder(r).Decode(v); err != nil {
		return &predictor.ValidationError{Field: "input", Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	return nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
