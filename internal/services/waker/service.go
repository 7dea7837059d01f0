// Package waker implements the wake protocol for a suspended Streamlit app.
package waker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fgeck/streamlit-waker/internal/models"
	"github.com/fgeck/streamlit-waker/internal/services/browser"
	"github.com/rs/zerolog"
)

// ErrMissingAppURL is returned when Wake is called without a target URL.
var ErrMissingAppURL = errors.New("app URL is required")

// Outcome messages.
const (
	MsgAlreadyAwake = "app already awake, no action taken"
	MsgWoken        = "wake succeeded"
	MsgNotFound     = "wake button not found or unclickable; check the app URL and button text"
	MsgStillPresent = "wake button still present after wait; the app may not have restarted"
)

// Service defines the interface for the wake protocol.
type Service interface {
	Wake(ctx context.Context, cfg models.WakeConfig) (*models.WakeResult, error)
}

// Clock allows mocking the fixed waits.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock sleeps on the wall clock.
type RealClock struct{}

// Sleep blocks for d or until ctx is done.
func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Impl implements the waker Service interface on a browser session.
type Impl struct {
	session browser.Session
	clock   Clock
	logger  zerolog.Logger
}

// New creates a new waker service driving session.
func New(logger zerolog.Logger, session browser.Session) *Impl {
	return &Impl{
		session: session,
		clock:   RealClock{},
		logger:  logger,
	}
}

// NewWithClock creates a new waker service with a custom clock (for testing).
func NewWithClock(logger zerolog.Logger, session browser.Session, clock Clock) *Impl {
	return &Impl{
		session: session,
		clock:   clock,
		logger:  logger,
	}
}

// attempt carries the state of one Wake call.
type attempt struct {
	*Impl
	cfg   models.WakeConfig
	state models.WakeAttempt
}

// Wake navigates to the app, clicks the wake button if present and verifies
// that it disappeared. Only a missing URL is returned as an error; every other
// failure is reported through the result.
func (s *Impl) Wake(ctx context.Context, cfg models.WakeConfig) (*models.WakeResult, error) {
	if cfg.AppURL == "" {
		return nil, ErrMissingAppURL
	}

	a := &attempt{
		Impl:  s,
		cfg:   cfg,
		state: models.WakeAttempt{TargetURL: cfg.AppURL},
	}

	start := time.Now()
	result := a.run(ctx)
	result.URL = cfg.AppURL
	result.Phase = a.state.Phase
	result.Duration = time.Since(start)

	return result, nil
}

func (a *attempt) run(ctx context.Context) *models.WakeResult {
	a.logger.Info().Str("url", a.cfg.AppURL).Msg("opening app")
	if err := a.session.Open(ctx, a.cfg.AppURL); err != nil {
		return a.fail(fmt.Sprintf("navigation failed: %v", err))
	}
	a.state.Phase = models.PhaseNavigated

	a.logger.Info().Dur("wait", a.cfg.InitialWait).Msg("waiting for initial page load")
	if err := a.clock.Sleep(ctx, a.cfg.InitialWait); err != nil {
		return a.fail(fmt.Sprintf("wake interrupted: %v", err))
	}

	clicked, where := a.clickButton(ctx)
	if !clicked {
		gone := a.buttonGone(ctx)
		if err := ctx.Err(); err != nil {
			return a.fail(fmt.Sprintf("wake interrupted: %v", err))
		}
		if gone {
			a.state.Phase = models.PhaseWoken
			a.logger.Info().Msg(MsgAlreadyAwake)
			return &models.WakeResult{Success: true, Message: MsgAlreadyAwake, AlreadyAwake: true}
		}
		return a.fail(MsgNotFound)
	}

	a.state.Phase = models.PhaseButtonClicked
	result := &models.WakeResult{Clicked: true, ClickedIn: where}

	a.logger.Info().Dur("wait", a.cfg.PostClickWait).Msg("wake button clicked, waiting for app to start")
	if err := a.clock.Sleep(ctx, a.cfg.PostClickWait); err != nil {
		return a.failWith(result, fmt.Sprintf("wake interrupted: %v", err))
	}

	a.state.Phase = models.PhaseVerifying
	gone := a.buttonGone(ctx)
	if err := ctx.Err(); err != nil {
		return a.failWith(result, fmt.Sprintf("wake interrupted: %v", err))
	}
	if !gone {
		return a.failWith(result, MsgStillPresent)
	}

	a.state.Phase = models.PhaseWoken
	result.Success = true
	result.Message = MsgWoken
	a.logger.Info().Str("clicked_in", where.String()).Msg(MsgWoken)
	return result
}

func (a *attempt) fail(msg string) *models.WakeResult {
	return a.failWith(&models.WakeResult{}, msg)
}

func (a *attempt) failWith(result *models.WakeResult, msg string) *models.WakeResult {
	a.state.Phase = models.PhaseFailed
	result.Success = false
	result.Message = msg
	a.logger.Warn().Str("phase", a.state.Phase.String()).Msg(msg)
	return result
}

// clickButton tries the main document first and falls back to the first
// embedded frame.
func (a *attempt) clickButton(ctx context.Context) (bool, models.SearchContext) {
	if a.clickIn(ctx) {
		return true, models.MainDocument
	}

	a.logger.Info().Msg("button not clicked in main document, trying embedded frame")

	clicked := false
	err := a.inFrame(ctx, func() error {
		clicked = a.clickIn(ctx)
		return nil
	})
	switch {
	case errors.Is(err, browser.ErrNoFrame):
		a.logger.Info().Msg("no embedded frame on page")
	case err != nil:
		a.logger.Error().Err(err).Msg("failed to enter embedded frame")
	}

	if clicked {
		return true, models.EmbeddedFrame
	}
	return false, models.MainDocument
}

// clickIn waits for the button to become visible and enabled in the current
// context and clicks it.
func (a *attempt) clickIn(ctx context.Context) bool {
	where := a.state.SearchContext.String()
	a.logger.Info().Str("context", where).Str("button", a.cfg.ButtonText).Msg("searching wake button")

	el, err := a.session.FindClickableButton(ctx, a.cfg.ButtonText, a.cfg.SearchTimeout)
	switch {
	case errors.Is(err, browser.ErrElementNotFound):
		a.logger.Info().Str("context", where).Msg("wake button not found in time")
		return false
	case errors.Is(err, browser.ErrNotClickable):
		a.logger.Warn().Str("context", where).Msg("wake button found but not clickable in time")
		return false
	case err != nil:
		a.logger.Error().Err(err).Str("context", where).Msg("error while searching wake button")
		return false
	}

	if err := el.Click(); err != nil {
		a.logger.Error().Err(err).Str("context", where).Msg("error while clicking wake button")
		return false
	}

	a.logger.Info().Str("context", where).Msg("wake button clicked")
	return true
}

// buttonGone reports whether the button is absent from both the main
// document and the embedded frame. Errors count as "not gone".
func (a *attempt) buttonGone(ctx context.Context) bool {
	a.logger.Info().Msg("checking whether the wake button is gone")

	if err := a.restoreMain(); err != nil {
		return false
	}

	present, err := a.buttonPresent(ctx)
	if err != nil {
		a.logger.Error().Err(err).Str("context", a.state.SearchContext.String()).Msg("error while checking wake button")
		return false
	}
	if present {
		a.logger.Info().Msg("wake button still shown in main document")
		return false
	}

	err = a.inFrame(ctx, func() error {
		present, err = a.buttonPresent(ctx)
		return err
	})
	switch {
	case errors.Is(err, browser.ErrNoFrame):
		return true
	case err != nil:
		a.logger.Error().Err(err).Str("context", models.EmbeddedFrame.String()).Msg("error while checking wake button")
		return false
	case present:
		a.logger.Info().Msg("wake button still shown in embedded frame")
		return false
	}
	return true
}

func (a *attempt) buttonPresent(ctx context.Context) (bool, error) {
	_, err := a.session.FindButton(ctx, a.cfg.ButtonText, a.cfg.SearchTimeout)
	if errors.Is(err, browser.ErrElementNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// inFrame runs fn inside the first embedded frame. The main document is
// restored on every return path.
func (a *attempt) inFrame(ctx context.Context, fn func() error) error {
	defer func() { _ = a.restoreMain() }()

	if err := a.session.SwitchToFrame(ctx); err != nil {
		return err
	}
	a.state.SearchContext = models.EmbeddedFrame

	return fn()
}

func (a *attempt) restoreMain() error {
	if err := a.session.SwitchToMain(); err != nil {
		a.logger.Error().Err(err).Msg("failed to switch back to main document")
		return err
	}
	a.state.SearchContext = models.MainDocument
	return nil
}
