package models

import "time"

// ProbeConfig holds HTTP readiness probe configuration.
type ProbeConfig struct {
	URL          string        // URL to poll until the app answers
	Timeout      time.Duration // max time to wait for the app
	PollInterval time.Duration // how often to poll the URL
}

// ProbeResult holds the result of a readiness probe.
type ProbeResult struct {
	Ready        bool
	StatusCode   int
	Attempts     int
	WaitDuration time.Duration
	Error        error
}
