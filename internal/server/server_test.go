package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmped/nmschooldata/internal/config"
	"github.com/nmped/nmschooldata/internal/handlers"
	"github.com/nmped/nmschooldata/internal/services"
	"github.com/nmped/nmschooldata/internal/source"
	"github.com/nmped/nmschooldata/pkg/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Env:      "test",
			LogLevel: "error",
		},
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            0, // Let the OS assign a port
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
	}
}

// staticDownloader serves the same CSV for every URL.
type staticDownloader struct {
	body []byte
}

func (d *staticDownloader) Download(ctx context.Context, rawURL string) ([]byte, error) {
	return d.body, nil
}

func startServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()

	var buf bytes.Buffer
	log := logger.New(&buf, "error")

	srv := New(cfg, log)

	cat, err := source.NewCatalog(source.Options{})
	require.NoError(t, err)

	dl := &staticDownloader{body: []byte(
		"District Code,District Name,School Code,School Name,Grade,Enrollment\n" +
			"001,Albuquerque Public Schools,501,Valley High,9,312\n",
	)}
	svc := services.NewEnrollmentService(cat, dl, nil, nil)
	srv.SetEnrollmentHandler(handlers.NewEnrollmentHandler(svc))

	go func() { _ = srv.Start() }()

	require.Eventually(t, srv.IsRunning, time.Second, 10*time.Millisecond)
	require.NotEmpty(t, srv.Addr())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	return srv
}

func TestNewServer(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, "error")

	srv := New(testConfig(), log)

	assert.NotNil(t, srv)
	assert.NotNil(t, srv.HealthHandler())
}

func TestServerStartAndShutdown(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, "error")

	srv := New(testConfig(), log)

	go func() { _ = srv.Start() }()
	require.Eventually(t, srv.IsRunning, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := srv.Shutdown(ctx)
	assert.NoError(t, err)
	assert.False(t, srv.IsRunning())
}

func TestServerHealthEndpoint(t *testing.T) {
	srv := startServer(t, testConfig())

	resp, err := http.Get(fmt.Sprintf("http://%s/health", srv.Addr()))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestServerYearsEndpoint(t *testing.T) {
	srv := startServer(t, testConfig())

	resp, err := http.Get(fmt.Sprintf("http://%s/api/v1/years", srv.Addr()))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body handlers.YearsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body.Years, 2024)
}

func TestServerEnrollmentEndpoint(t *testing.T) {
	srv := startServer(t, testConfig())

	resp, err := http.Get(fmt.Sprintf("http://%s/api/v1/enrollment/2024", srv.Addr()))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body handlers.EnrollmentResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 2024, body.Year)
	require.Len(t, body.Records, 1)
	assert.Equal(t, "09", body.Records[0].Grade)
}

func TestServerEnrollmentUnknownYear(t *testing.T) {
	srv := startServer(t, testConfig())

	resp, err := http.Get(fmt.Sprintf("http://%s/api/v1/enrollment/1999", srv.Addr()))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body handlers.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "YEAR_NOT_AVAILABLE", body.Code)
}

func TestServerWithoutServiceReturns503(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, "error")
	srv := New(testConfig(), log)

	go func() { _ = srv.Start() }()
	require.Eventually(t, srv.IsRunning, time.Second, 10*time.Millisecond)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	resp, err := http.Get(fmt.Sprintf("http://%s/api/v1/years", srv.Addr()))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestServerRateLimiting(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{
		Enabled:  true,
		Requests: 2,
		Window:   time.Minute,
	}

	srv := startServer(t, cfg)

	url := fmt.Sprintf("http://%s/api/v1/years", srv.Addr())
	for i := 0; i < 2; i++ {
		resp, err := http.Get(url)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}
