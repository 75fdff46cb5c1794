package fetcher

import (
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// backoffDelay computes exponential backoff with uniform jitter for the
// given attempt. attempt 0 returns initial; each attempt multiplies by
// multiplier, capped at max.
func backoffDelay(attempt int, initial, max time.Duration, multiplier, jitter float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// Prevent overflow by limiting attempt
	if attempt > 30 {
		attempt = 30
	}

	delay := time.Duration(float64(initial) * math.Pow(multiplier, float64(attempt)))
	if delay < 0 || delay > max {
		delay = max
	}

	if jitter < 0 {
		jitter = 0
	} else if jitter > 1 {
		jitter = 1
	}
	if jitter > 0 {
		jitterAmount := time.Duration(float64(delay) * jitter * rand.Float64())
		if delay+jitterAmount > max {
			delay = max
		} else {
			delay += jitterAmount
		}
	}

	return delay
}

// retryableStatus reports whether an HTTP status warrants a retry.
func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// parseRetryAfter parses a Retry-After header value.
// It supports both delay-seconds and HTTP-date formats. The result is
// capped at one hour; unparseable values yield zero.
func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds <= 0 {
			return 0
		}
		delay := time.Duration(seconds) * time.Second
		if delay > time.Hour {
			delay = time.Hour
		}
		return delay
	}

	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay <= 0 {
			return 0
		}
		if delay > time.Hour {
			delay = time.Hour
		}
		return delay
	}

	return 0
}
