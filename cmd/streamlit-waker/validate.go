package main

import (
	"fmt"
	"os"

	"github.com/fgeck/streamlit-waker/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  `Validate the configuration without launching a browser.`,
	RunE:  validateConfig,
}

func validateConfig(cmd *cobra.Command, args []string) error {
	// Check if file exists
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			log.Error().Str("file", configFile).Msg("config file not found")
			return fmt.Errorf("config file not found: %s", configFile)
		}
	}

	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		log.Error().Err(err).Str("file", configFile).Msg("failed to parse config")
		return err
	}

	// Validate configuration
	if err := config.Validate(cfg); err != nil {
		log.Error().Err(err).Msg("configuration validation failed")
		return err
	}

	// Print configuration summary
	fmt.Println("Configuration is valid!")
	fmt.Println()
	fmt.Println("Summary:")
	fmt.Printf("  App URL: %s\n", cfg.Wake.AppURL)
	fmt.Printf("  Button text: %q\n", cfg.Wake.ButtonText)
	fmt.Println()
	fmt.Println("Waits:")
	fmt.Printf("  Initial wait: %s\n", cfg.Wake.InitialWait)
	fmt.Printf("  Post-click wait: %s\n", cfg.Wake.PostClickWait)
	fmt.Printf("  Search timeout: %s\n", cfg.Wake.SearchTimeout)
	fmt.Println()
	fmt.Println("Browser:")
	fmt.Printf("  CI profile: %v\n", cfg.Browser.CI)
	fmt.Printf("  Headless: %v\n", cfg.Browser.Headless)
	fmt.Printf("  No sandbox: %v\n", cfg.Browser.NoSandbox)
	if cfg.Browser.WindowSize != "" {
		fmt.Printf("  Window size: %s\n", cfg.Browser.WindowSize)
	}
	if cfg.Browser.Bin != "" {
		fmt.Printf("  Binary: %s\n", cfg.Browser.Bin)
	}
	fmt.Println()
	fmt.Println("Optional Features:")
	fmt.Printf("  Readiness probe: %v\n", cfg.Probe != nil)
	fmt.Printf("  Telegram: %v\n", cfg.Telegram != nil)

	if cfg.Probe != nil {
		fmt.Println()
		fmt.Println("Probe Configuration:")
		fmt.Printf("  URL: %s\n", cfg.Probe.URL)
		fmt.Printf("  Timeout: %s\n", cfg.Probe.Timeout)
		fmt.Printf("  Poll interval: %s\n", cfg.Probe.PollInterval)
	}

	if cfg.Telegram != nil {
		fmt.Println()
		fmt.Println("Telegram Configuration:")
		fmt.Printf("  Chat ID: %s\n", cfg.Telegram.ChatID)
		fmt.Printf("  Bot Token: (configured)\n")
	}

	return nil
}
