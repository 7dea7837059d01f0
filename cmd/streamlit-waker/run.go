package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fgeck/streamlit-waker/internal/config"
	"github.com/fgeck/streamlit-waker/internal/services/runner"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var failOnWakeError bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Wake the app",
	Long: `Execute the wake workflow:
1. Launch Chromium
2. Open the app and wait for the page to settle
3. Click the wake button (main document first, then the embedded frame)
4. Wait for the app to restart and check that the button is gone
5. Poll the app over HTTP (if a probe is configured)
6. Send Telegram notification (if configured)

A wake that did not succeed still exits with status 0 unless
--fail-on-wake-error is given.`,
	RunE: runWake,
}

func init() {
	runCmd.Flags().BoolVar(&failOnWakeError, "fail-on-wake-error", false, "exit non-zero when the app could not be woken")
}

func runWake(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	log.Info().Str("url", appURLForLog()).Msg("configured app URL")

	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		log.Error().Err(err).Str("file", configFile).Msg("failed to load config")
		return err
	}

	// Set up context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Warn().Str("signal", sig.String()).Msg("received signal, shutting down")
		cancel()
	}()

	// Run wake
	runnerSvc := runner.New(log.Logger)
	result, err := runnerSvc.Run(ctx, *cfg)
	if err != nil {
		log.Error().Err(err).Msg("wake run aborted")
		return err
	}

	if !result.Success {
		log.Error().Str("result", result.Message).Msg("wake run completed, app not woken")
		if failOnWakeError {
			return fmt.Errorf("app not woken: %s", result.Message)
		}
		return nil
	}

	log.Info().Str("result", result.Message).Msg("wake run completed successfully")
	return nil
}

// appURLForLog reports the URL the run will use before the config is parsed.
func appURLForLog() string {
	if appURL != "" {
		return appURL
	}
	if v := os.Getenv(config.EnvAppURL); v != "" {
		return v
	}
	return "(not configured)"
}
