package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/beryllium-dev/beryllium/internal/config"
	"github.com/beryllium-dev/beryllium/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		reportError(os.Stderr, err, colorOutput(os.Stderr))
		os.Exit(1)
	}
}

// reportError writes err to w as a coded error. Errors without a code,
// such as flag parse errors, are reported as E203.
func reportError(w io.Writer, err error, color bool) {
	if !color {
		errors.DisableColors()
	}
	errors.Print(w, errors.FromError(err, "E203"))
}

// colorOutput reports whether f is a terminal and NO_COLOR is unset.
func colorOutput(f *os.File) bool {
	return os.Getenv("NO_COLOR") == "" && term.IsTerminal(int(f.Fd()))
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "beryllium",
		Short: "Session-bound HTTP server",
		Long: `Beryllium serves HTTP requests bound to server-side sessions.

Each visitor gets a signed session cookie tied to their IP address.
Sessions slide forward on every request and a background sweep
removes the ones that expire.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Config file (default: beryllium.toml or beryllium.json in the working directory)")

	load := func() (*config.Config, error) {
		if configPath != "" {
			return config.LoadFile(configPath)
		}
		return config.Load(".")
	}

	rootCmd.AddCommand(
		serveCmd(load),
		configCmd(load),
		versionCmd(),
	)
	return rootCmd
}
