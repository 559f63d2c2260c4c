package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/pulse/internal/config"
	perrors "github.com/vango-dev/pulse/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┌─┐┬ ┬┬  ┌─┐┌─┐
  ├─┘│ ││  └─┐├┤
  ┴  └─┘┴─┘└─┘└─┘
`

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "pulse",
		Short: "UI update engine toolkit",
		Long: `pulse drives a UI update engine: a batching scheduler, a keyed
list reconciler, transitions with outro groups and spring-animated
values.

The CLI runs scripted demos against an in-memory render host,
benchmarks the reconciler and scheduler, serves the live inspector
and manages pulse.yaml / pulse.json configuration files.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file (default: pulse.yaml or pulse.json in the working directory)")

	load := func() (*config.Config, error) {
		return loadConfig(configPath)
	}

	rootCmd.AddCommand(
		demoCmd(load),
		benchCmd(load),
		inspectCmd(load),
		configCmd(&configPath),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		perrors.PrintError(err)
		os.Exit(1)
	}
}

// loadConfig reads path, or the working directory's configuration when
// path is empty. A missing default file yields the defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	cfg, err := config.Load(".")
	if err != nil {
		if ee, ok := err.(*perrors.EngineError); ok && ee.Code == "E121" {
			return config.New(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// newLogger builds a text logger at the configured level.
func newLogger(cfg *config.Config, verbose bool) *slog.Logger {
	level, err := cfg.Level()
	if err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// printBanner prints the pulse ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}
