package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/v0xg/formpilot/internal/config"
)

var (
	configPath string
	driverName string
	headless   bool
	provider   string
	url        string
	traceOut   string
	traceDir   string
	parallel   int
	verbose    bool
)

func main() {
	// Load .env file if present (silently ignore if not found)
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "formpilot",
		Short: "Fill web forms from natural-language steps",
		Long: `formpilot drives a real browser through a step file of natural-language
actions (tap, input, select, waitFor, scroll). Each step is resolved by an
optional AI resolver first, then by heuristic locator tactics.

Example:
  formpilot run survey.yaml --trace survey.gif`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&driverName, "driver", "", "Browser backend: rod, playwright")
	rootCmd.PersistentFlags().BoolVar(&headless, "headless", true, "Run the browser without a window")
	rootCmd.PersistentFlags().StringVar(&provider, "provider", "", "AI provider: claude, openai, none")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(newRunCmd(), newBatchCmd(), newClassifyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies the flags the user set
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("driver") {
		cfg.Browser.Driver = driverName
	}
	if flags.Changed("headless") {
		cfg.Browser.Headless = headless
	}
	if flags.Changed("provider") {
		cfg.AI.Provider = provider
	}
	if verbose {
		cfg.Logger.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
