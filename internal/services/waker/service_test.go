package waker

import (
	"context"
	"errors"
	"io"
	"slices"
	"testing"
	"time"

	"github.com/fgeck/streamlit-waker/internal/models"
	"github.com/fgeck/streamlit-waker/internal/services/browser"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock implementations.
type fakeButton struct {
	hidden   bool
	disabled bool
	// readyDuringSearch makes a hidden or disabled button clickable before
	// the bounded search gives up.
	readyDuringSearch bool
	clickErr          error
	clicks            int
}

type fakeSession struct {
	main  *fakeButton // nil if absent
	frame *fakeButton // nil if absent

	hasFrame       bool
	openErr        error
	mainFindErr    error
	frameFindErr   error
	frameSwitchErr error
	vanishOnClick  bool

	inFrame          bool
	events           []string
	searchTimeouts   []time.Duration
	successfulClicks int
}

func (f *fakeSession) Open(ctx context.Context, url string) error {
	f.events = append(f.events, "open")
	f.inFrame = false
	return f.openErr
}

func (f *fakeSession) FindButton(ctx context.Context, text string, timeout time.Duration) (browser.Element, error) {
	el, err := f.find(timeout)
	if err != nil {
		return nil, err
	}
	return el, nil
}

func (f *fakeSession) FindClickableButton(ctx context.Context, text string, timeout time.Duration) (browser.Element, error) {
	el, err := f.find(timeout)
	if err != nil {
		return nil, err
	}
	b := el.button
	if b.hidden || b.disabled {
		if !b.readyDuringSearch {
			return nil, browser.ErrNotClickable
		}
		b.hidden, b.disabled = false, false
	}
	return el, nil
}

func (f *fakeSession) find(timeout time.Duration) (*fakeElement, error) {
	where, b, err := "main", f.main, f.mainFindErr
	if f.inFrame {
		where, b, err = "frame", f.frame, f.frameFindErr
	}
	f.events = append(f.events, "find:"+where)
	f.searchTimeouts = append(f.searchTimeouts, timeout)

	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, browser.ErrElementNotFound
	}
	return &fakeElement{session: f, button: b, where: where}, nil
}

func (f *fakeSession) SwitchToFrame(ctx context.Context) error {
	f.events = append(f.events, "enter-frame")
	if f.frameSwitchErr != nil {
		return f.frameSwitchErr
	}
	if !f.hasFrame {
		return browser.ErrNoFrame
	}
	f.inFrame = true
	return nil
}

func (f *fakeSession) SwitchToMain() error {
	f.inFrame = false
	return nil
}

func (f *fakeSession) Close() error {
	return nil
}

func (f *fakeSession) clicks() []string {
	var out []string
	for _, e := range f.events {
		if e == "click:main" || e == "click:frame" {
			out = append(out, e)
		}
	}
	return out
}

type fakeElement struct {
	session *fakeSession
	button  *fakeButton
	where   string
}

func (e *fakeElement) Click() error {
	e.session.events = append(e.session.events, "click:"+e.where)
	if e.button.clickErr != nil {
		return e.button.clickErr
	}
	e.button.clicks++
	e.session.successfulClicks++
	if e.session.vanishOnClick {
		e.session.main = nil
		e.session.frame = nil
	}
	return nil
}

type fakeClock struct {
	sleeps []time.Duration
	err    error

	// session, if set, has its frame state recorded at every sleep.
	session        *fakeSession
	inFrameAtSleep []bool
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	if c.session != nil {
		c.inFrameAtSleep = append(c.inFrameAtSleep, c.session.inFrame)
	}
	if c.err != nil {
		return c.err
	}
	return ctx.Err()
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func testConfig() models.WakeConfig {
	return models.WakeConfig{
		AppURL:        "https://demo.streamlit.app/",
		ButtonText:    "Yes, get this app back up!",
		InitialWait:   10 * time.Second,
		PostClickWait: 20 * time.Second,
		SearchTimeout: 5 * time.Second,
	}
}

func clickable() *fakeButton {
	return &fakeButton{}
}

func TestWake_MissingURL(t *testing.T) {
	session := &fakeSession{}
	svc := NewWithClock(testLogger(), session, &fakeClock{})

	cfg := testConfig()
	cfg.AppURL = ""

	result, err := svc.Wake(context.Background(), cfg)

	assert.ErrorIs(t, err, ErrMissingAppURL)
	assert.Nil(t, result)
	assert.Empty(t, session.events)
}

func TestWake_AlreadyAwake(t *testing.T) {
	session := &fakeSession{hasFrame: true}
	clock := &fakeClock{}
	svc := NewWithClock(testLogger(), session, clock)

	result, err := svc.Wake(context.Background(), testConfig())

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.AlreadyAwake)
	assert.False(t, result.Clicked)
	assert.Equal(t, MsgAlreadyAwake, result.Message)
	assert.Equal(t, models.PhaseWoken, result.Phase)
	assert.Equal(t, "https://demo.streamlit.app/", result.URL)
	assert.Empty(t, session.clicks())
	assert.False(t, session.inFrame)
	// Only the initial wait, no post-click wait
	assert.Equal(t, []time.Duration{10 * time.Second}, clock.sleeps)
}

func TestWake_AlreadyAwake_NoFrame(t *testing.T) {
	session := &fakeSession{}
	svc := NewWithClock(testLogger(), session, &fakeClock{})

	result, err := svc.Wake(context.Background(), testConfig())

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.Message, "already awake")
}

func TestWake_ClickInMainDocument(t *testing.T) {
	main := clickable()
	session := &fakeSession{main: main, hasFrame: true, vanishOnClick: true}
	clock := &fakeClock{}
	svc := NewWithClock(testLogger(), session, clock)

	result, err := svc.Wake(context.Background(), testConfig())

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, MsgWoken, result.Message)
	assert.True(t, result.Clicked)
	assert.Equal(t, models.MainDocument, result.ClickedIn)
	assert.Equal(t, models.PhaseWoken, result.Phase)
	assert.Equal(t, 1, main.clicks)
	assert.Equal(t, []time.Duration{10 * time.Second, 20 * time.Second}, clock.sleeps)

	// The frame is only entered during verification, after the click.
	clickAt := slices.Index(session.events, "click:main")
	frameAt := slices.Index(session.events, "enter-frame")
	assert.Less(t, clickAt, frameAt)
	assert.Equal(t, []string{"open", "find:main", "click:main"}, session.events[:3])
}

func TestWake_ClickInFrame(t *testing.T) {
	frame := clickable()
	session := &fakeSession{frame: frame, hasFrame: true, vanishOnClick: true}
	svc := NewWithClock(testLogger(), session, &fakeClock{})

	result, err := svc.Wake(context.Background(), testConfig())

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, MsgWoken, result.Message)
	assert.Equal(t, models.EmbeddedFrame, result.ClickedIn)
	assert.Equal(t, 1, frame.clicks)
	assert.False(t, session.inFrame)
	assert.Equal(t, []string{"open", "find:main", "enter-frame", "find:frame", "click:frame"}, session.events[:5])
}

func TestWake_MainButtonNotClickable_FallsBackToFrame(t *testing.T) {
	tests := []struct {
		name string
		main *fakeButton
	}{
		{name: "hidden", main: &fakeButton{hidden: true}},
		{name: "disabled", main: &fakeButton{disabled: true}},
		{name: "click error", main: &fakeButton{clickErr: errors.New("stale element")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := clickable()
			session := &fakeSession{main: tt.main, frame: frame, hasFrame: true, vanishOnClick: true}
			svc := NewWithClock(testLogger(), session, &fakeClock{})

			result, err := svc.Wake(context.Background(), testConfig())

			require.NoError(t, err)
			assert.True(t, result.Success)
			assert.Equal(t, models.EmbeddedFrame, result.ClickedIn)
			assert.Equal(t, 0, tt.main.clicks)
			assert.Equal(t, 1, frame.clicks)
		})
	}
}

func TestWake_ButtonBecomesClickableDuringSearch(t *testing.T) {
	tests := []struct {
		name string
		main *fakeButton
	}{
		{name: "shown late", main: &fakeButton{hidden: true, readyDuringSearch: true}},
		{name: "enabled late", main: &fakeButton{disabled: true, readyDuringSearch: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := clickable()
			session := &fakeSession{main: tt.main, frame: frame, hasFrame: true, vanishOnClick: true}
			svc := NewWithClock(testLogger(), session, &fakeClock{})

			result, err := svc.Wake(context.Background(), testConfig())

			require.NoError(t, err)
			assert.True(t, result.Success)
			assert.Equal(t, MsgWoken, result.Message)
			assert.Equal(t, models.MainDocument, result.ClickedIn)
			assert.Equal(t, 1, tt.main.clicks)
			assert.Equal(t, 0, frame.clicks)
			// One bounded search covers both appearing and becoming clickable.
			assert.Equal(t, []string{"open", "find:main", "click:main"}, session.events[:3])
			assert.Equal(t, testConfig().SearchTimeout, session.searchTimeouts[0])
		})
	}
}

func TestWake_ButtonStillPresentAfterWait(t *testing.T) {
	session := &fakeSession{main: clickable(), hasFrame: true}
	svc := NewWithClock(testLogger(), session, &fakeClock{})

	result, err := svc.Wake(context.Background(), testConfig())

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.True(t, result.Clicked)
	assert.Equal(t, MsgStillPresent, result.Message)
	assert.Contains(t, result.Message, "still present")
	assert.Equal(t, models.PhaseFailed, result.Phase)
	assert.False(t, session.inFrame)
}

func TestWake_ButtonStillPresentInFrameAfterWait(t *testing.T) {
	session := &fakeSession{frame: clickable(), hasFrame: true}
	svc := NewWithClock(testLogger(), session, &fakeClock{})

	result, err := svc.Wake(context.Background(), testConfig())

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, MsgStillPresent, result.Message)
	assert.False(t, session.inFrame)
}

func TestWake_ButtonNotFoundOrUnclickable(t *testing.T) {
	session := &fakeSession{main: &fakeButton{hidden: true}, hasFrame: true}
	clock := &fakeClock{}
	svc := NewWithClock(testLogger(), session, clock)

	result, err := svc.Wake(context.Background(), testConfig())

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.False(t, result.Clicked)
	assert.Contains(t, result.Message, "not found or unclickable")
	assert.Equal(t, models.PhaseFailed, result.Phase)
	assert.Equal(t, []time.Duration{10 * time.Second}, clock.sleeps)
}

func TestWake_FrameSearchErrorRestoresMainDocument(t *testing.T) {
	session := &fakeSession{
		frame:        clickable(),
		hasFrame:     true,
		frameFindErr: errors.New("frame detached"),
	}
	svc := NewWithClock(testLogger(), session, &fakeClock{})

	result, err := svc.Wake(context.Background(), testConfig())

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "not found or unclickable")
	assert.False(t, session.inFrame)
}

func TestWake_FrameSwitchError(t *testing.T) {
	session := &fakeSession{hasFrame: true, frameSwitchErr: errors.New("iframe gone")}
	svc := NewWithClock(testLogger(), session, &fakeClock{})

	result, err := svc.Wake(context.Background(), testConfig())

	require.NoError(t, err)
	// An unreadable frame cannot prove the app is awake.
	assert.False(t, result.Success)
	assert.False(t, session.inFrame)
}

func TestWake_MainSearchError_TriesFrame(t *testing.T) {
	frame := clickable()
	session := &fakeSession{
		main:          clickable(),
		frame:         frame,
		hasFrame:      true,
		mainFindErr:   errors.New("target closed"),
		vanishOnClick: true,
	}
	svc := NewWithClock(testLogger(), session, &fakeClock{})

	result, err := svc.Wake(context.Background(), testConfig())

	require.NoError(t, err)
	assert.Equal(t, 1, frame.clicks)
	// Verification still fails because the main document cannot be read.
	assert.False(t, result.Success)
	assert.Equal(t, MsgStillPresent, result.Message)
}

func TestWake_NavigationFailed(t *testing.T) {
	session := &fakeSession{openErr: errors.New("net::ERR_NAME_NOT_RESOLVED")}
	clock := &fakeClock{}
	svc := NewWithClock(testLogger(), session, clock)

	result, err := svc.Wake(context.Background(), testConfig())

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "navigation failed")
	assert.Equal(t, models.PhaseFailed, result.Phase)
	assert.Empty(t, clock.sleeps)
}

func TestWake_ContextCancelled(t *testing.T) {
	session := &fakeSession{main: clickable()}
	svc := NewWithClock(testLogger(), session, &fakeClock{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := svc.Wake(ctx, testConfig())

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "wake interrupted")
	assert.Empty(t, session.clicks())
}

func TestWake_InterruptedDuringPostClickWait(t *testing.T) {
	session := &fakeSession{main: clickable(), vanishOnClick: true}
	clock := &fakeClock{}
	svc := NewWithClock(testLogger(), session, clock)

	ctx, cancel := context.WithCancel(context.Background())
	interrupting := &interruptingClock{fakeClock: clock, after: 1, cancel: cancel}
	svc.clock = interrupting

	result, err := svc.Wake(ctx, testConfig())

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.True(t, result.Clicked)
	assert.Contains(t, result.Message, "wake interrupted")
}

// interruptingClock cancels the run once `after` sleeps have completed.
type interruptingClock struct {
	*fakeClock
	after  int
	cancel context.CancelFunc
}

func (c *interruptingClock) Sleep(ctx context.Context, d time.Duration) error {
	if len(c.sleeps) >= c.after {
		c.cancel()
	}
	return c.fakeClock.Sleep(ctx, d)
}

func TestRealClock_Sleep(t *testing.T) {
	start := time.Now()
	err := RealClock{}.Sleep(context.Background(), 20*time.Millisecond)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestRealClock_SleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RealClock{}.Sleep(ctx, time.Hour)

	assert.Equal(t, context.Canceled, err)
}
