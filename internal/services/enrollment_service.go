// Package services contains business logic.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nmped/nmschooldata/internal/fetcher"
	"github.com/nmped/nmschooldata/internal/metrics"
	"github.com/nmped/nmschooldata/internal/models"
	"github.com/nmped/nmschooldata/internal/parser"
	"github.com/nmped/nmschooldata/internal/repository"
	"github.com/nmped/nmschooldata/internal/source"
	"github.com/nmped/nmschooldata/pkg/logger"
)

// Service errors
var (
	// ErrUpstreamUnavailable wraps failures talking to the PED site.
	ErrUpstreamUnavailable = errors.New("enrollment source unavailable")
	// ErrBadDataset wraps parse failures of a fetched file.
	ErrBadDataset = errors.New("enrollment file could not be parsed")
)

// Downloader fetches a dataset body by URL.
type Downloader interface {
	Download(ctx context.Context, rawURL string) ([]byte, error)
}

// EnrollmentService defines the interface for enrollment operations.
type EnrollmentService interface {
	// GetEnrollment returns the records for a school year, served from
	// storage when possible and fetched from PED otherwise.
	GetEnrollment(ctx context.Context, year int) ([]models.EnrollmentRecord, error)

	// AvailableYears returns the school years with published data.
	AvailableYears(ctx context.Context) ([]int, error)

	// RefreshYear refetches a school year from PED, replacing stored data.
	RefreshYear(ctx context.Context, year int) ([]models.EnrollmentRecord, error)
}

// EnrollmentServiceImpl implements EnrollmentService.
type EnrollmentServiceImpl struct {
	catalog    *source.Catalog
	downloader Downloader
	repo       repository.EnrollmentRepository
	log        *logger.Logger
}

// NewEnrollmentService creates an EnrollmentService.
// repo may be nil; the service then runs in fetch-through mode and
// nothing is persisted. A nil logger disables logging.
func NewEnrollmentService(catalog *source.Catalog, downloader Downloader, repo repository.EnrollmentRepository, log *logger.Logger) *EnrollmentServiceImpl {
	return &EnrollmentServiceImpl{
		catalog:    catalog,
		downloader: downloader,
		repo:       repo,
		log:        log,
	}
}

// GetEnrollment returns the records for a school year.
func (s *EnrollmentServiceImpl) GetEnrollment(ctx context.Context, year int) ([]models.EnrollmentRecord, error) {
	if !s.catalog.HasYear(year) {
		return nil, fmt.Errorf("%w: %d", models.ErrYearNotAvailable, year)
	}

	if s.repo != nil {
		records, err := s.repo.GetYear(ctx, year)
		if err == nil {
			return records, nil
		}
		if !errors.Is(err, models.ErrYearNotFound) && s.log != nil {
			s.log.Warn("repository read failed, falling back to fetch", "year", year, "error", err.Error())
		}
	}

	return s.fetchAndStore(ctx, year)
}

// AvailableYears returns the school years with published data.
func (s *EnrollmentServiceImpl) AvailableYears(ctx context.Context) ([]int, error) {
	return s.catalog.AvailableYears(), nil
}

// RefreshYear refetches a school year from PED, replacing stored data.
func (s *EnrollmentServiceImpl) RefreshYear(ctx context.Context, year int) ([]models.EnrollmentRecord, error) {
	if !s.catalog.HasYear(year) {
		return nil, fmt.Errorf("%w: %d", models.ErrYearNotAvailable, year)
	}
	return s.fetchAndStore(ctx, year)
}

// fetchAndStore downloads and parses a year's file, persisting the result
// when a repository is configured.
func (s *EnrollmentServiceImpl) fetchAndStore(ctx context.Context, year int) ([]models.EnrollmentRecord, error) {
	url, err := s.catalog.DatasetURL(year)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	body, err := s.downloader.Download(ctx, url)
	if err != nil {
		metrics.RecordFetch(year, "error", time.Since(start))
		if errors.Is(err, fetcher.ErrDatasetNotFound) {
			// Catalogued but gone upstream; treat as unpublished.
			return nil, fmt.Errorf("%w: %d", models.ErrYearNotAvailable, year)
		}
		return nil, fmt.Errorf("%w: %s", ErrUpstreamUnavailable, err)
	}
	metrics.RecordFetch(year, "success", time.Since(start))

	records, err := parser.Parse(body, year)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadDataset, err)
	}
	metrics.RecordParsed(len(records))

	if s.log != nil {
		s.log.Info("fetched enrollment data",
			"year", year,
			"records", len(records),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}

	if s.repo != nil {
		snapshot := &models.Snapshot{
			Year:      year,
			SourceURL: url,
			FetchedAt: time.Now().UTC(),
		}
		if _, err := s.repo.SaveYear(ctx, snapshot, records); err != nil {
			// Serving fresh data matters more than persisting it.
			if s.log != nil {
				s.log.Error("failed to persist snapshot", "year", year, "error", err.Error())
			}
		}
	}

	return records, nil
}
