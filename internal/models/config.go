// Package models contains the data structures used throughout streamlit-waker.
package models

import "time"

// AppConfig holds the complete configuration for a wake run.
type AppConfig struct {
	Wake     WakeConfig
	Browser  BrowserConfig
	Probe    *ProbeConfig    // nil if not configured
	Telegram *TelegramConfig // nil if not configured
}

// WakeConfig holds the target app and the fixed waits of the wake protocol.
type WakeConfig struct {
	AppURL        string
	ButtonText    string
	InitialWait   time.Duration // settle time after navigation
	PostClickWait time.Duration // time the app gets to restart after the click
	SearchTimeout time.Duration // bounded wait per search location
}

// BrowserConfig holds browser launch settings.
type BrowserConfig struct {
	CI            bool // GITHUB_ACTIONS is present
	Headless      bool
	NoSandbox     bool
	DisableGPU    bool
	DisableDevShm bool
	WindowSize    string // e.g. "1920,1080", empty for the browser default
	Bin           string // optional path to the Chromium binary
}
