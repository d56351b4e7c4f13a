package httpclient

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aleister1102/waymirror/internal/config"
	"github.com/aleister1102/waymirror/internal/errorwrapper"
)

// HTTPResponse is the fully-read result of a request.
type HTTPResponse struct {
	StatusCode  int
	Body        []byte
	ContentType string
	URL         string
}

// IsOK reports whether the response carries a usable payload.
func (r *HTTPResponse) IsOK() bool {
	return r != nil && r.StatusCode == http.StatusOK
}

// HTTPClient wraps a shared http.Client with retry, backoff and an
// upstream unavailability window. One instance serves all capture-index
// and raw-content calls.
type HTTPClient struct {
	client    *http.Client
	userAgent string
	retry     *RetryHandler
	gate      *UnavailabilityGate
	logger    zerolog.Logger
}

// HTTPClientBuilder provides fluent interface for building HTTP clients
type HTTPClientBuilder struct {
	cfg    config.HTTPClientConfig
	logger zerolog.Logger
}

// NewHTTPClientBuilder creates a new HTTP client builder
func NewHTTPClientBuilder(logger zerolog.Logger) *HTTPClientBuilder {
	return &HTTPClientBuilder{
		cfg:    config.NewDefaultHTTPClientConfig(),
		logger: logger,
	}
}

// WithConfig sets the client configuration section.
func (hcb *HTTPClientBuilder) WithConfig(cfg config.HTTPClientConfig) *HTTPClientBuilder {
	hcb.cfg = cfg
	return hcb
}

// Build creates the HTTP client instance
func (hcb *HTTPClientBuilder) Build() (*HTTPClient, error) {
	if hcb.cfg.TimeoutSecs <= 0 {
		return nil, errorwrapper.NewValidationError("timeout_secs", hcb.cfg.TimeoutSecs, "timeout must be positive")
	}
	if hcb.cfg.BaseDelayMs <= 0 {
		return nil, errorwrapper.NewValidationError("base_delay_ms", hcb.cfg.BaseDelayMs, "base delay must be positive")
	}

	componentLogger := hcb.logger.With().Str("component", "HTTPClient").Logger()
	retry := NewRetryHandler(RetryHandlerConfig{
		MaxRetries: hcb.cfg.MaxRetries,
		BaseDelay:  time.Duration(hcb.cfg.BaseDelayMs) * time.Millisecond,
		MaxDelay:   time.Duration(hcb.cfg.MaxDelayMs) * time.Millisecond,
	}, componentLogger)

	return &HTTPClient{
		client: &http.Client{
			Timeout: time.Duration(hcb.cfg.TimeoutSecs) * time.Second,
		},
		userAgent: hcb.cfg.UserAgent,
		retry:     retry,
		gate:      NewUnavailabilityGate(time.Duration(hcb.cfg.UnavailableHoldSecs) * time.Second),
		logger:    componentLogger,
	}, nil
}

// Gate exposes the shared unavailability window so callers can consult it
// before queueing expensive work.
func (hc *HTTPClient) Gate() *UnavailabilityGate {
	return hc.gate
}

// Get performs a single GET and reads the body fully. Network failures are
// wrapped; non-2xx statuses are returned in the response, not as errors.
func (hc *HTTPClient) Get(ctx context.Context, rawURL string) (*HTTPResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errorwrapper.WrapError(errorwrapper.ErrInvalidInput, "building request for "+rawURL)
	}
	if hc.userAgent != "" {
		req.Header.Set("User-Agent", hc.userAgent)
	}

	resp, err := hc.client.Do(req)
	if err != nil {
		return nil, errorwrapper.WrapError(err, "request failed for "+rawURL)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errorwrapper.WrapError(err, "reading body of "+rawURL)
	}

	return &HTTPResponse{
		StatusCode:  resp.StatusCode,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		URL:         rawURL,
	}, nil
}

// GetWithBackoff performs a GET with exponential-backoff retries. Server
// errors and 429 trigger retries; a 503 additionally opens the shared
// unavailability window. A 404 is final immediately. The last response is
// returned even when its status stayed retryable so the caller can map it.
func (hc *HTTPClient) GetWithBackoff(ctx context.Context, rawURL string) (*HTTPResponse, error) {
	var lastResp *HTTPResponse
	var lastErr error

	for attempt := 0; attempt <= hc.retry.MaxRetries(); attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, errorwrapper.WrapError(errorwrapper.ErrCancelled, "request aborted")
		}

		resp, err := hc.Get(ctx, rawURL)
		if err != nil {
			lastErr = err
			lastResp = nil
			if attempt < hc.retry.MaxRetries() {
				if waitErr := hc.retry.Wait(ctx, attempt, 0, rawURL); waitErr != nil {
					return nil, waitErr
				}
				continue
			}
			break
		}

		lastResp = resp
		lastErr = nil

		if resp.StatusCode == http.StatusServiceUnavailable {
			hc.gate.MarkUnavailable()
		}
		if !hc.retry.ShouldRetry(resp.StatusCode, attempt) {
			return resp, nil
		}
		if waitErr := hc.retry.Wait(ctx, attempt, resp.StatusCode, rawURL); waitErr != nil {
			return nil, waitErr
		}
	}

	if lastErr != nil {
		return nil, errorwrapper.WrapError(lastErr, "all retry attempts failed")
	}
	return lastResp, nil
}
