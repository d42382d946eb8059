// Package cmd implements the verity CLI: single-question answering and
// batch sheet processing over the hosted agent service.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/verity-ai/internal/config"
	"github.com/hugo-lorenzo-mato/verity-ai/internal/logging"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
	useMock   bool

	// Version info - set via SetVersion()
	appVersion string
	appCommit  string
	appDate    string
)

var rootCmd = &cobra.Command{
	Use:   "verity",
	Short: "Checked LLM question answering with verified documentation links",
	Long: `verity answers questions through three cooperating agents: one writes
the answer, one checks it against the question, and one verifies that the
cited documentation links are reachable and on topic. Rejected answers are
retried with the rejection feedback folded into the next prompt.

Use 'verity ask' for a single question or 'verity batch' for a whole
spreadsheet of them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Errors are printed here so main only has
// to pick the exit code.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

// SetVersion injects build-time version information.
func SetVersion(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: .verity.yaml, then ~/.config/verity/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"log format (auto, text, json)")
	rootCmd.PersistentFlags().BoolVar(&useMock, "mock", false,
		"use the deterministic mock agent instead of the hosted service")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("verity %s (commit %s, built %s)\n", appVersion, appCommit, appDate)
	},
}

// loadConfig loads and validates configuration, applying root-flag
// overrides on top of file and environment values.
func loadConfig() (*config.Config, error) {
	loader := config.NewLoader()
	if cfgFile != "" {
		loader = loader.WithConfigFile(cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}

	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if useMock {
		cfg.Agent.Mock = true
	}

	if err := config.NewValidator().Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *logging.Logger {
	return logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
}
