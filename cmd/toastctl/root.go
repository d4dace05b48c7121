// Package main provides the toastctl command line client for toastd.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/toastd/internal/adapter/output"
	"github.com/jmylchreest/toastd/internal/config"
	"github.com/jmylchreest/toastd/internal/dbus"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

var (
	cfg        *config.Config
	globalOpts struct {
		verbose    bool
		configPath string
		format     string
		noColor    bool
	}
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "toastctl",
	Short: "Control the toastd notification daemon",
	Long: `toastctl talks to a running toastd over the session bus.

It can queue toasts, drive surfaces by hand, and inspect the pending
queue, the history and the surface pool.`,
	Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger()

		var err error
		cfg, err = config.LoadConfig(globalOpts.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "",
		"Path to config file (default: ~/.config/toastd/toastctl.toml)")
	rootCmd.PersistentFlags().StringVarP(&globalOpts.format, "format", "f", "",
		"Output format: plain, json, yaml (default from config)")
	rootCmd.PersistentFlags().BoolVar(&globalOpts.noColor, "no-color", false,
		"Disable colored output")
}

func setupLogger() {
	level := slog.LevelWarn
	if globalOpts.verbose {
		level = slog.LevelDebug
	}

	// Log to stderr so stdout is clean for output
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// newClient connects to toastd's control interface.
func newClient() (*dbus.Client, error) {
	client, err := dbus.NewClient()
	if err != nil {
		return nil, err
	}
	logger.Debug("connected to session bus", "service", dbus.ControlBusName)
	return client, nil
}

// newFormatter builds the formatter selected by flags and config.
func newFormatter() (output.Formatter, error) {
	format := cfg.Output.Format
	if globalOpts.format != "" {
		format = globalOpts.format
	}

	opts := output.DefaultFormatterOptions()
	opts.TimeFormat = cfg.Output.TimeFormat
	opts.Color = cfg.Output.Color && !globalOpts.noColor
	return output.NewFormatter(output.FormatType(format), opts)
}
