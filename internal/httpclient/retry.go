package httpclient

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// RetryHandler decides which statuses retry and how long to back off.
type RetryHandler struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	logger     zerolog.Logger
}

// RetryHandlerConfig configuration for retry handler
type RetryHandlerConfig struct {
	MaxRetries int           `json:"max_retries"`
	BaseDelay  time.Duration `json:"base_delay"`
	MaxDelay   time.Duration `json:"max_delay"`
}

// NewRetryHandler creates a new retry handler
func NewRetryHandler(cfg RetryHandlerConfig, logger zerolog.Logger) *RetryHandler {
	return &RetryHandler{
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.BaseDelay,
		maxDelay:   cfg.MaxDelay,
		logger:     logger.With().Str("component", "RetryHandler").Logger(),
	}
}

// MaxRetries returns the configured retry ceiling.
func (rh *RetryHandler) MaxRetries() int {
	return rh.maxRetries
}

// ShouldRetry determines if a request should be retried based on status code.
// Server errors and rate limiting retry; everything else is final.
func (rh *RetryHandler) ShouldRetry(statusCode int, attempt int) bool {
	if attempt >= rh.maxRetries {
		return false
	}
	return statusCode >= 500 || statusCode == http.StatusTooManyRequests
}

// CalculateDelay calculates the delay for the next retry attempt using
// exponential backoff: baseDelay * 2^attempt, capped at maxDelay.
func (rh *RetryHandler) CalculateDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return rh.baseDelay
	}
	delay := rh.baseDelay * time.Duration(math.Pow(2, float64(attempt)))
	if rh.maxDelay > 0 && delay > rh.maxDelay {
		delay = rh.maxDelay
	}
	return delay
}

// Wait sleeps for the backoff delay, honoring cancellation.
func (rh *RetryHandler) Wait(ctx context.Context, attempt int, statusCode int, url string) error {
	delay := rh.CalculateDelay(attempt)

	rh.logger.Warn().
		Str("url", url).
		Int("status_code", statusCode).
		Int("attempt", attempt+1).
		Int("max_retries", rh.maxRetries).
		Dur("delay", delay).
		Msg("Transient failure, waiting before retry")

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}
