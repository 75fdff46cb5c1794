// Package fetcher downloads datasets from the PED site with retries.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nmped/nmschooldata/pkg/logger"
)

// Fetch errors
var (
	ErrDatasetNotFound = errors.New("dataset not found at source")
	ErrUpstreamStatus  = errors.New("unexpected upstream status")
	ErrBodyTooLarge    = errors.New("response body exceeds size limit")
)

// Config holds fetcher configuration.
type Config struct {
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	Jitter         float64
	MaxBodyBytes   int64
	UserAgent      string
}

// DefaultConfig returns the default fetcher configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:        60 * time.Second,
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		Jitter:         0.1,
		MaxBodyBytes:   64 << 20,
		UserAgent:      "nmschooldata/1.0",
	}
}

// Fetcher downloads dataset files over HTTP. Failed requests are retried
// with exponential backoff; 429 and 503 responses honor Retry-After.
// It is safe for concurrent use.
type Fetcher struct {
	client *http.Client
	cfg    Config
	log    *logger.Logger

	// onRetry is invoked per retry; hooked by metrics wiring and tests.
	onRetry func()
}

// New creates a Fetcher with the given configuration.
// A nil logger disables logging.
func New(cfg Config, log *logger.Logger) *Fetcher {
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = 2.0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 << 20
	}

	return &Fetcher{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		log:    log,
	}
}

// SetRetryHook registers a callback invoked once per retry.
func (f *Fetcher) SetRetryHook(hook func()) {
	f.onRetry = hook
}

// Download fetches the resource at rawURL and returns its body.
// Network errors and retryable statuses are retried up to MaxRetries times.
func (f *Fetcher) Download(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if f.onRetry != nil {
				f.onRetry()
			}
			if f.log != nil {
				f.log.Debug("retrying fetch", "url", rawURL, "attempt", attempt)
			}
		}

		body, delay, retryable, err := f.attempt(ctx, rawURL)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !retryable {
			return nil, err
		}
		if attempt == f.cfg.MaxRetries {
			break
		}

		if delay == 0 {
			delay = backoffDelay(attempt, f.cfg.InitialBackoff, f.cfg.MaxBackoff, f.cfg.Multiplier, f.cfg.Jitter)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("download failed after %d attempts: %w", f.cfg.MaxRetries+1, lastErr)
}

// attempt performs a single request. The returned delay is the server's
// Retry-After hint, when present; retryable reports whether the failure
// may resolve on a later attempt.
func (f *Fetcher) attempt(ctx context.Context, rawURL string) (body []byte, delay time.Duration, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to build request: %w", err)
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		// Network errors are generally transient.
		return nil, 0, true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// Read one byte past the limit to detect truncation.
		body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes+1))
		if err != nil {
			return nil, 0, true, fmt.Errorf("failed to read body: %w", err)
		}
		if int64(len(body)) > f.cfg.MaxBodyBytes {
			return nil, 0, false, ErrBodyTooLarge
		}
		return body, 0, false, nil

	case resp.StatusCode == http.StatusNotFound:
		return nil, 0, false, fmt.Errorf("%w: %s", ErrDatasetNotFound, rawURL)

	case retryableStatus(resp.StatusCode):
		delay = parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, delay, true, fmt.Errorf("%w: %d", ErrUpstreamStatus, resp.StatusCode)

	default:
		return nil, 0, false, fmt.Errorf("%w: %d", ErrUpstreamStatus, resp.StatusCode)
	}
}
