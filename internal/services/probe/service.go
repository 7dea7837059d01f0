// Package probe polls a woken app over HTTP until it answers.
package probe

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fgeck/streamlit-waker/internal/models"
	"github.com/rs/zerolog"
)

// Service defines the interface for readiness probing.
type Service interface {
	Wait(ctx context.Context, cfg models.ProbeConfig) (*models.ProbeResult, error)
}

// HTTPClient allows mocking HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Impl implements the probe Service interface.
type Impl struct {
	httpClient HTTPClient
	logger     zerolog.Logger
}

// New creates a new probe service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// NewWithClient creates a new probe service with a custom HTTP client (for testing).
func NewWithClient(logger zerolog.Logger, httpClient HTTPClient) *Impl {
	return &Impl{
		httpClient: httpClient,
		logger:     logger,
	}
}

// Wait polls cfg.URL until it answers with a non-5xx status or cfg.Timeout passes.
func (s *Impl) Wait(ctx context.Context, cfg models.ProbeConfig) (*models.ProbeResult, error) {
	result := &models.ProbeResult{}
	start := time.Now()
	deadline := start.Add(cfg.Timeout)

	s.logger.Info().
		Str("url", cfg.URL).
		Dur("timeout", cfg.Timeout).
		Msg("waiting for app to answer")

	for {
		select {
		case <-ctx.Done():
			result.WaitDuration = time.Since(start)
			result.Error = ctx.Err()
			return result, nil
		default:
		}

		if time.Now().After(deadline) {
			result.WaitDuration = time.Since(start)
			result.Error = fmt.Errorf("timeout waiting for app at %s", cfg.URL)
			return result, nil
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.URL, nil)
		if err != nil {
			result.Error = fmt.Errorf("failed to create request: %w", err)
			return result, nil
		}

		result.Attempts++
		resp, err := s.httpClient.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			result.StatusCode = resp.StatusCode
			if resp.StatusCode < http.StatusInternalServerError {
				result.Ready = true
				result.WaitDuration = time.Since(start)
				s.logger.Info().
					Int("status", resp.StatusCode).
					Dur("duration", result.WaitDuration).
					Msg("app is answering")
				return result, nil
			}
			s.logger.Debug().Int("status", resp.StatusCode).Msg("app not ready yet")
		} else {
			s.logger.Debug().Err(err).Msg("app not ready yet")
		}

		// Wait before next poll
		select {
		case <-ctx.Done():
			result.WaitDuration = time.Since(start)
			result.Error = ctx.Err()
			return result, nil
		case <-time.After(cfg.PollInterval):
		}
	}
}
