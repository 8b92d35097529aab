// Package check validates that the configured model artifacts load.
package check

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/sargazo/sargazo-predictor/internal/app"
	"github.com/sargazo/sargazo-predictor/internal/buildinfo"
	"github.com/sargazo/sargazo-predictor/internal/conf"
)

// Command creates the check command. It loads every enabled predictor and
// reports which ones are usable, exiting non-zero when any enabled predictor
// fails to load.
func Command(settings *conf.Settings) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify that model artifacts load",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := *settings
			s.Models.FailFast = false
			s.Cache.Enabled = false

			appCtx, err := app.Load(&s)
			if err != nil {
				return err
			}
			defer func() { _ = appCtx.Close() }()

			result := Validate(appCtx.Status())
			if err := report(cmd.OutOrStdout(), result, asJSON); err != nil {
				return err
			}
			if !result.Valid {
				return fmt.Errorf("%d predictor(s) failed to load", len(result.Errors))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

// Validate turns a health status into a validation result. A disabled
// predictor is a warning, an enabled one that did not load is an error.
func Validate(st app.Status) *buildinfo.ValidationResult {
	result := buildinfo.NewValidationResult()
	for _, p := range []struct {
		name   string
		status app.PredictorStatus
	}{
		{"coordinates", st.Coordinates},
		{"biomass", st.Biomass},
	} {
		switch {
		case !p.status.Enabled:
			result.AddWarning(p.name + ": disabled")
		case !p.status.Loaded:
			result.AddError(fmt.Sprintf("%s: %s", p.name, p.status.Error))
		}
	}
	return result
}

func report(w io.Writer, result *buildinfo.ValidationResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	for _, msg := range result.Errors {
		if _, err := fmt.Fprintf(w, "ERROR   %s\n", msg); err != nil {
			return err
		}
	}
	for _, msg := range result.Warnings {
		if _, err := fmt.Fprintf(w, "WARNING %s\n", msg); err != nil {
			return err
		}
	}
	if result.Valid {
		_, err := fmt.Fprintln(w, "OK")
		return err
	}
	return nil
}
