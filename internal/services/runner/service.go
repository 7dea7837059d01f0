// Package runner orchestrates a complete wake run.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/fgeck/streamlit-waker/internal/config"
	"github.com/fgeck/streamlit-waker/internal/models"
	"github.com/fgeck/streamlit-waker/internal/services/browser"
	"github.com/fgeck/streamlit-waker/internal/services/probe"
	"github.com/fgeck/streamlit-waker/internal/services/telegram"
	"github.com/fgeck/streamlit-waker/internal/services/waker"
	"github.com/rs/zerolog"
)

// Service defines the interface for the wake runner.
type Service interface {
	Run(ctx context.Context, cfg models.AppConfig) (*models.WakeResult, error)
}

// WakerFactory builds the wake sequencer for a launched session.
type WakerFactory func(logger zerolog.Logger, session browser.Session) waker.Service

// Impl implements the runner Service interface.
type Impl struct {
	launcher    browser.Launcher
	newWaker    WakerFactory
	probeSvc    probe.Service
	telegramSvc telegram.Service
	logger      zerolog.Logger
}

// New creates a new runner service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		launcher: browser.NewLauncher(logger),
		newWaker: func(logger zerolog.Logger, session browser.Session) waker.Service {
			return waker.New(logger, session)
		},
		probeSvc:    probe.New(logger),
		telegramSvc: telegram.New(logger),
		logger:      logger,
	}
}

// NewWithServices creates a new runner service with custom services (for testing).
func NewWithServices(
	logger zerolog.Logger,
	launcher browser.Launcher,
	newWaker WakerFactory,
	probeSvc probe.Service,
	telegramSvc telegram.Service,
) *Impl {
	return &Impl{
		launcher:    launcher,
		newWaker:    newWaker,
		probeSvc:    probeSvc,
		telegramSvc: telegramSvc,
		logger:      logger,
	}
}

// Run validates the configuration, launches the browser, runs the wake
// protocol and closes the browser again. A returned error means the run
// could not be carried out; a wake that did not succeed is reported through
// the result.
func (s *Impl) Run(ctx context.Context, cfg models.AppConfig) (*models.WakeResult, error) {
	startTime := time.Now()
	var result *models.WakeResult
	var failedStep string
	var runErr error

	if err := config.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	s.logger.Info().
		Str("url", cfg.Wake.AppURL).
		Str("button", cfg.Wake.ButtonText).
		Msg("starting wake run")

	defer func() {
		// Send notification if configured
		if cfg.Telegram != nil {
			s.sendNotification(context.WithoutCancel(ctx), cfg, startTime, result, failedStep, runErr)
		}
	}()

	// Step 1: Browser
	failedStep = "browser"
	session, err := s.launcher.Launch(ctx, cfg.Browser)
	if err != nil {
		runErr = err
		return nil, err
	}
	defer func() {
		if err := session.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to close browser")
		}
	}()

	// Step 2: Wake protocol
	failedStep = "wake"
	result, err = s.newWaker(s.logger, session).Wake(ctx, cfg.Wake)
	if err != nil {
		runErr = err
		return nil, fmt.Errorf("wake failed: %w", err)
	}

	// Step 3: Readiness probe (if configured)
	if result.Success && cfg.Probe != nil {
		failedStep = "probe"
		s.runProbe(ctx, cfg.Probe, result)
	}

	failedStep = ""
	s.logger.Info().
		Bool("success", result.Success).
		Str("phase", result.Phase.String()).
		Dur("duration", time.Since(startTime)).
		Msg("wake run finished")

	return result, nil
}

func (s *Impl) runProbe(ctx context.Context, cfg *models.ProbeConfig, result *models.WakeResult) {
	probeResult, err := s.probeSvc.Wait(ctx, *cfg)
	if err == nil {
		err = probeResult.Error
	}
	if err == nil && !probeResult.Ready {
		err = fmt.Errorf("no answer from %s", cfg.URL)
	}
	if err != nil {
		result.Success = false
		result.Message = fmt.Sprintf("app did not become ready: %v", err)
		s.logger.Warn().Err(err).Msg("readiness probe failed")
		return
	}

	s.logger.Info().
		Int("status", probeResult.StatusCode).
		Int("attempts", probeResult.Attempts).
		Dur("wait_duration", probeResult.WaitDuration).
		Msg("readiness probe passed")
}

func (s *Impl) sendNotification(
	ctx context.Context,
	cfg models.AppConfig,
	startTime time.Time,
	result *models.WakeResult,
	failedStep string,
	runErr error,
) {
	msg := models.TelegramMessage{
		AppURL:    cfg.Wake.AppURL,
		StartTime: startTime,
		Duration:  time.Since(startTime),
	}

	if result != nil {
		msg.Success = result.Success && runErr == nil
		msg.Message = result.Message
		msg.Clicked = result.Clicked
		msg.AlreadyAwake = result.AlreadyAwake
		if result.Clicked {
			msg.ClickedIn = result.ClickedIn.String()
		}
	}

	if runErr != nil {
		msg.FailedStep = failedStep
		msg.ErrorMessage = runErr.Error()
	}

	sent, err := s.telegramSvc.SendNotification(ctx, *cfg.Telegram, msg)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to send Telegram notification")
		return
	}
	if sent.Error != nil {
		s.logger.Error().Err(sent.Error).Msg("failed to send Telegram notification")
		return
	}

	s.logger.Info().Msg("Telegram notification sent")
}
