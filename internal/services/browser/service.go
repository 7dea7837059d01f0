// Package browser provides the browser session used to drive the target app.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fgeck/streamlit-waker/internal/models"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"
)

var (
	// ErrDriverInit is returned when the browser could not be started.
	ErrDriverInit = errors.New("browser initialization failed")
	// ErrElementNotFound is returned when a bounded search gives up.
	ErrElementNotFound = errors.New("element not found")
	// ErrNotClickable is returned when a button exists but is still hidden or
	// disabled when the bounded search gives up.
	ErrNotClickable = errors.New("element not clickable")
	// ErrNoFrame is returned when the page has no embedded frame.
	ErrNoFrame = errors.New("no embedded frame on page")
)

// hideWebdriverJS keeps the page from detecting an automated browser.
const hideWebdriverJS = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`

// clickableJS reports whether the element is rendered, visible and enabled.
const clickableJS = `() => {
	if (this.disabled) return false;
	const style = window.getComputedStyle(this);
	if (style.display === 'none' || style.visibility === 'hidden') return false;
	const rect = this.getBoundingClientRect();
	return rect.width > 0 && rect.height > 0;
}`

// Element is a located element of the current document.
type Element interface {
	Click() error
}

// Session is an exclusively owned browser tab. Searches run in the current
// search context, which is the main document unless SwitchToFrame was called.
type Session interface {
	Open(ctx context.Context, url string) error
	FindButton(ctx context.Context, text string, timeout time.Duration) (Element, error)
	FindClickableButton(ctx context.Context, text string, timeout time.Duration) (Element, error)
	SwitchToFrame(ctx context.Context) error
	SwitchToMain() error
	Close() error
}

// Launcher starts browser sessions.
type Launcher interface {
	Launch(ctx context.Context, cfg models.BrowserConfig) (Session, error)
}

// RodLauncher launches Chromium through go-rod.
type RodLauncher struct {
	logger zerolog.Logger
}

// NewLauncher creates a new rod based launcher.
func NewLauncher(logger zerolog.Logger) *RodLauncher {
	return &RodLauncher{logger: logger}
}

// Launch starts the browser and opens a blank tab.
func (l *RodLauncher) Launch(ctx context.Context, cfg models.BrowserConfig) (Session, error) {
	l.logger.Info().
		Bool("ci", cfg.CI).
		Bool("headless", cfg.Headless).
		Msg("setting up Chrome")

	ln := newLauncher(cfg).Context(ctx)

	controlURL, err := ln.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: launching browser: %v", ErrDriverInit, err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		abortLaunch(ln, nil)
		return nil, fmt.Errorf("%w: connecting to browser: %v", ErrDriverInit, err)
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		abortLaunch(ln, b)
		return nil, fmt.Errorf("%w: creating page: %v", ErrDriverInit, err)
	}

	if _, err := page.EvalOnNewDocument(hideWebdriverJS); err != nil {
		abortLaunch(ln, b)
		return nil, fmt.Errorf("%w: installing init script: %v", ErrDriverInit, err)
	}

	l.logger.Info().Msg("Chrome ready")

	return &RodSession{
		launcher: ln,
		browser:  b,
		page:     page,
		current:  page,
		logger:   l.logger,
	}, nil
}

// abortLaunch stops a browser that started but could not be set up and
// removes its user data dir.
func abortLaunch(ln *launcher.Launcher, b *rod.Browser) {
	if b != nil {
		_ = b.Close()
	}
	ln.Kill()
	ln.Cleanup()
}

func newLauncher(cfg models.BrowserConfig) *launcher.Launcher {
	l := launcher.New().Headless(cfg.Headless)

	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	}
	if cfg.NoSandbox {
		l = l.NoSandbox(true)
	}
	if cfg.DisableGPU {
		l = l.Set("disable-gpu")
	}
	if cfg.DisableDevShm {
		l = l.Set("disable-dev-shm-usage")
	}
	if cfg.WindowSize != "" {
		l = l.Set("window-size", cfg.WindowSize)
	}

	return l.
		Set("disable-blink-features", "AutomationControlled").
		Delete("enable-automation")
}

// RodSession implements Session on a single rod page.
type RodSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page // main document
	current  *rod.Page // page or frame the next search runs in
	logger   zerolog.Logger
}

// Open navigates the main document to url.
func (s *RodSession) Open(ctx context.Context, url string) error {
	s.current = s.page
	if err := s.page.Context(ctx).Navigate(url); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return nil
}

// FindButton waits up to timeout for a button whose text equals text.
func (s *RodSession) FindButton(ctx context.Context, text string, timeout time.Duration) (Element, error) {
	el, err := s.current.Context(ctx).Timeout(timeout).ElementX(ButtonXPath(text))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, ErrElementNotFound
		}
		return nil, fmt.Errorf("searching button: %w", err)
	}
	return &rodElement{el: el.CancelTimeout()}, nil
}

// FindClickableButton waits up to timeout for a button whose text equals text
// to exist and then to become visible and enabled. Both waits share the same
// deadline.
func (s *RodSession) FindClickableButton(ctx context.Context, text string, timeout time.Duration) (Element, error) {
	el, err := s.current.Context(ctx).Timeout(timeout).ElementX(ButtonXPath(text))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, ErrElementNotFound
		}
		return nil, fmt.Errorf("searching button: %w", err)
	}

	if err := el.Wait(rod.Eval(clickableJS)); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, ErrNotClickable
		}
		return nil, fmt.Errorf("waiting for button to become clickable: %w", err)
	}
	return &rodElement{el: el.CancelTimeout()}, nil
}

// SwitchToFrame moves the search context into the first iframe of the main document.
func (s *RodSession) SwitchToFrame(ctx context.Context) error {
	iframes, err := s.page.Context(ctx).Elements("iframe")
	if err != nil {
		return fmt.Errorf("listing iframes: %w", err)
	}
	if iframes.Empty() {
		return ErrNoFrame
	}

	frame, err := iframes.First().Frame()
	if err != nil {
		return fmt.Errorf("entering iframe: %w", err)
	}

	s.current = frame
	return nil
}

// SwitchToMain moves the search context back to the main document.
func (s *RodSession) SwitchToMain() error {
	s.current = s.page
	return nil
}

// Close shuts the browser down. It is safe to call more than once.
func (s *RodSession) Close() error {
	if s.browser == nil {
		return nil
	}

	s.logger.Info().Msg("closing Chrome")

	err := s.browser.Close()
	s.launcher.Cleanup()
	s.browser = nil
	if err != nil {
		return fmt.Errorf("closing browser: %w", err)
	}
	return nil
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Click() error {
	return e.el.Click(proto.InputMouseButtonLeft, 1)
}

// ButtonXPath returns the XPath of a button whose own text equals text.
func ButtonXPath(text string) string {
	return fmt.Sprintf("//button[text()=%s]", xpathLiteral(text))
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}

	parts := strings.Split(s, "'")
	quoted := make([]string, 0, 2*len(parts))
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		if p != "" {
			quoted = append(quoted, "'"+p+"'")
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}
