package models

import "time"

// Phase is the position of a wake attempt in the wake protocol.
type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseNavigated
	PhaseButtonClicked
	PhaseVerifying
	PhaseWoken
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "not_started"
	case PhaseNavigated:
		return "navigated"
	case PhaseButtonClicked:
		return "button_clicked"
	case PhaseVerifying:
		return "verifying"
	case PhaseWoken:
		return "woken"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SearchContext is the document the button search currently runs in.
type SearchContext int

const (
	MainDocument SearchContext = iota
	EmbeddedFrame
)

func (c SearchContext) String() string {
	if c == EmbeddedFrame {
		return "embedded frame"
	}
	return "main document"
}

// WakeAttempt is the transient state of one wake run.
type WakeAttempt struct {
	TargetURL     string
	Phase         Phase
	SearchContext SearchContext
}

// WakeResult holds the outcome of a wake attempt.
type WakeResult struct {
	URL          string
	Success      bool
	Message      string
	Phase        Phase // final phase
	Clicked      bool
	ClickedIn    SearchContext // only meaningful when Clicked is true
	AlreadyAwake bool
	Duration     time.Duration
}
