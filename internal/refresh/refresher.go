// Package refresh keeps the latest published school year current.
package refresh

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nmped/nmschooldata/internal/services"
	"github.com/nmped/nmschooldata/internal/source"
	"github.com/nmped/nmschooldata/pkg/logger"
)

// Config holds configuration for the Refresher.
type Config struct {
	Interval   time.Duration // How often to refresh the latest year
	RunTimeout time.Duration // Per-run timeout
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Interval:   12 * time.Hour,
		RunTimeout: 5 * time.Minute,
	}
}

// Refresher periodically refetches the latest published school year so
// the stored copy tracks PED's in-year 40-day count revisions.
type Refresher struct {
	svc     services.EnrollmentService
	catalog *source.Catalog
	cfg     Config
	log     *logger.Logger

	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
	stopped  atomic.Bool

	runs atomic.Int64
}

// New creates a Refresher. Start must be called to begin refreshing.
func New(cfg Config, svc services.EnrollmentService, catalog *source.Catalog, log *logger.Logger) *Refresher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = DefaultConfig().RunTimeout
	}

	return &Refresher{
		svc:      svc,
		catalog:  catalog,
		cfg:      cfg,
		log:      log,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start launches the refresh loop.
func (r *Refresher) Start() {
	go r.run()
}

// Stop stops the refresh loop and waits for the current run to finish.
func (r *Refresher) Stop() {
	r.stopOnce.Do(func() {
		r.stopped.Store(true)
		close(r.stopChan)
		<-r.doneChan
	})
}

// Runs returns how many refresh runs have completed.
func (r *Refresher) Runs() int64 {
	return r.runs.Load()
}

// run is the main loop that refreshes on each tick.
func (r *Refresher) run() {
	defer close(r.doneChan)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.refreshLatest()
		case <-r.stopChan:
			return
		}
	}
}

// refreshLatest refetches the most recent published year.
func (r *Refresher) refreshLatest() {
	year := r.catalog.LatestYear()

	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.RunTimeout)
	defer cancel()

	records, err := r.svc.RefreshYear(ctx, year)
	r.runs.Add(1)

	if err != nil {
		if r.log != nil {
			r.log.Error("refresh failed", "year", year, "error", err.Error())
		}
		return
	}

	if r.log != nil {
		r.log.Info("refreshed latest year", "year", year, "records", len(records))
	}
}
