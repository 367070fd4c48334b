package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/beryllium-dev/beryllium/internal/config"
)

func configCmd(load func() (*config.Config, error)) *cobra.Command {
	var validate bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration serve would use, after defaults and
environment overrides, as TOML. The session secret is redacted.

Examples:
  beryllium config
  beryllium config --validate
  BERYLLIUM_ADDR=:9000 beryllium config -c prod.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if validate {
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			out := cmd.OutOrStdout()
			if err := cfg.Redacted().WriteTOML(out); err != nil {
				return err
			}
			for _, key := range cfg.UnknownKeys() {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: unknown config key %q\n", key)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&validate, "validate", false, "Fail if the configuration is invalid")

	return cmd
}
