// Package main provides the CLI entrypoint for callhud.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/callhud/internal/config"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// Global configuration and state
var (
	cfg        *config.Config
	globalOpts struct {
		verbose    bool
		configPath string
		logFile    string
	}
	logger  *slog.Logger
	logSink io.Closer
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "callhud",
	Short: "Dispatch call HUD for the terminal",
	Long: `callhud shows incoming dispatch calls as cards in the terminal.

Calls are read as JSON lines or YAML documents from a feed (stdin by
default). Each call stays on screen until it expires, is attached to,
or is dismissed.

Running callhud without a subcommand launches the HUD.`,
	Annotations:   map[string]string{annotationHUD: "true"},
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := setupLogger(ownsTerminal(cmd)); err != nil {
			return err
		}

		var err error
		cfg, err = config.LoadConfig(globalOpts.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logSink != nil {
			return logSink.Close()
		}
		return nil
	},
	// Default to the HUD when no subcommand is provided
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHUD(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "",
		"Path to config file (default: ~/.config/callhud/callhud.toml)")
	rootCmd.PersistentFlags().StringVar(&globalOpts.logFile, "log-file", "",
		"Write logs to this file (default while the HUD runs: ~/.local/state/callhud/callhud.log)")

	addFeedFlags(rootCmd)
}

// annotationHUD marks commands that draw the HUD.
const annotationHUD = "callhud/hud"

// ownsTerminal reports whether cmd draws the HUD, in which case stderr
// logging would corrupt the screen.
func ownsTerminal(cmd *cobra.Command) bool {
	return cmd.Annotations[annotationHUD] == "true"
}

// setupLogger configures the global slog logger.
func setupLogger(hud bool) error {
	level := slog.LevelWarn
	if globalOpts.verbose {
		level = slog.LevelDebug
	}

	path := globalOpts.logFile
	if path == "" && hud {
		path = config.LogPath()
	}

	// Log to stderr so stdout is clean for output
	var w io.Writer = os.Stderr
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		w = f
		logSink = f
	}

	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// getConfig returns the global config instance.
func getConfig() *config.Config {
	return cfg
}
