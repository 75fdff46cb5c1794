package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/nmped/nmschooldata/internal/metrics"
	"github.com/nmped/nmschooldata/internal/ratelimit"
)

// RateLimitResponse is the JSON response for rate limited requests.
type RateLimitResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code"`
	RetryAfter int    `json:"retry_after"`
}

// RateLimit returns a middleware that rate limits requests per client IP.
// It relies on the ClientIP middleware running earlier in the chain.
func RateLimit(limiter ratelimit.Limiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identifier := "ip:" + clientIPForRateLimit(r)

			result, err := limiter.Allow(r.Context(), identifier)
			if err != nil {
				// Fail open; a broken limiter must not take down reads.
				next.ServeHTTP(w, r)
				return
			}

			setRateLimitHeaders(w, result)

			if !result.Allowed {
				metrics.RecordRateLimited()
				writeRateLimitResponse(w, result)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIPForRateLimit prefers the IP resolved by the ClientIP middleware.
func clientIPForRateLimit(r *http.Request) string {
	if ip := GetClientIP(r.Context()); ip != "" {
		return ip
	}
	return extractIPFromAddr(r.RemoteAddr)
}

// setRateLimitHeaders sets the rate limit headers on the response.
func setRateLimitHeaders(w http.ResponseWriter, result *ratelimit.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

	if result.ResetAfter > 0 {
		resetTime := time.Now().Add(result.ResetAfter).Unix()
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetTime, 10))
	}

	if !result.Allowed && result.RetryAfter > 0 {
		retrySeconds := int(result.RetryAfter.Seconds())
		if retrySeconds < 1 {
			retrySeconds = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retrySeconds))
	}
}

// writeRateLimitResponse writes the 429 response.
func writeRateLimitResponse(w http.ResponseWriter, result *ratelimit.Result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	retrySeconds := int(result.RetryAfter.Seconds())
	if retrySeconds < 1 {
		retrySeconds = 1
	}

	resp := RateLimitResponse{
		Error:      "rate limit exceeded",
		Code:       "RATE_LIMIT_EXCEEDED",
		RetryAfter: retrySeconds,
	}

	json.NewEncoder(w).Encode(resp)
}
