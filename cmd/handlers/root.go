package handlers

import (
	"blogsmith/internal/app"
	"blogsmith/internal/config"
	"blogsmith/internal/logger"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// appFactory builds the application for a command. Tests replace it.
var appFactory = func(cfg *config.Config) (*app.App, error) {
	return app.New(cfg)
}

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "blogsmith",
		Short: "Generate Korean blog posts from trending keywords",
		Long: `blogsmith picks a keyword, asks Gemini for blog titles, writes the
article and attaches an image. Titles and keywords that were already used
are remembered and skipped while duplicate prevention is on.

Examples:
  # One-click generation with a trending keyword
  blogsmith generate --auto-keyword --category health

  # Generate for a keyword and watch progress in the terminal
  blogsmith generate --keyword "봄철 건강관리" --tui

  # Save the Gemini key in the local store
  blogsmith keys set gemini AIza...

  # Start the HTTP API
  blogsmith serve`,
		SilenceUsage: true,
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.blogsmith.yaml or $HOME/.blogsmith.yaml)")

	rootCmd.AddCommand(NewGenerateCmd())
	rootCmd.AddCommand(NewTopicsCmd())
	rootCmd.AddCommand(NewLedgerCmd())
	rootCmd.AddCommand(NewDuplicatesCmd())
	rootCmd.AddCommand(NewKeysCmd())
	rootCmd.AddCommand(NewSimilarityCmd())
	rootCmd.AddCommand(NewResetCmd())
	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewTokenCmd())
	rootCmd.AddCommand(NewDBCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	level := cfg.Logging.Level
	if cfg.App.Debug {
		level = "debug"
	}
	logger.Configure(level, cfg.Logging.Format, os.Stderr)

	if cfg.App.ConfigFile != "" {
		logger.Debug("Using config file", "path", cfg.App.ConfigFile)
	}
}

// openApp loads the configuration and builds the application.
func openApp() (*app.App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	a, err := appFactory(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}
	return a, nil
}

// closeApp releases a and logs instead of failing the command.
func closeApp(a *app.App) {
	if err := a.Close(); err != nil {
		logger.Warn("Failed to close application cleanly", "error", err.Error())
	}
}
