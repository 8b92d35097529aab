package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sargazo/sargazo-predictor/internal/conf"
)

// Command creates the config command. Without flags it prints the effective
// configuration as YAML; --init writes the default configuration to a file.
func Command(settings *conf.Settings) *cobra.Command {
	var initPath string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if initPath != "" {
				if err := conf.WriteDefaultConfig(initPath); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "default configuration written to %s\n", initPath)
				return err
			}

			data, err := settings.Dump()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVar(&initPath, "init", "", "Write the default configuration to this path and exit")
	return cmd
}
