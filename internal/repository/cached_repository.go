package repository

import (
	"context"

	"github.com/nmped/nmschooldata/internal/cache"
	"github.com/nmped/nmschooldata/internal/metrics"
	"github.com/nmped/nmschooldata/internal/models"
)

// CachedEnrollmentRepository wraps an EnrollmentRepository with caching.
// Reads check the cache first and fall back to the database; writes go
// through to both.
type CachedEnrollmentRepository struct {
	repo  EnrollmentRepository
	cache cache.EnrollmentCacher
}

// NewCachedEnrollmentRepository creates a cached enrollment repository.
func NewCachedEnrollmentRepository(repo EnrollmentRepository, enrCache cache.EnrollmentCacher) *CachedEnrollmentRepository {
	return &CachedEnrollmentRepository{
		repo:  repo,
		cache: enrCache,
	}
}

// SaveYear stores records in the database and caches them (write-through).
func (c *CachedEnrollmentRepository) SaveYear(ctx context.Context, snapshot *models.Snapshot, records []models.EnrollmentRecord) (*models.Snapshot, error) {
	saved, err := c.repo.SaveYear(ctx, snapshot, records)
	if err != nil {
		return nil, err
	}

	// Cache errors are not critical.
	_ = c.cache.SetYear(ctx, saved.Year, records)

	return saved, nil
}

// GetYear retrieves a year's records, checking cache first.
func (c *CachedEnrollmentRepository) GetYear(ctx context.Context, year int) ([]models.EnrollmentRecord, error) {
	records, err := c.cache.GetYear(ctx, year)
	if err == nil {
		metrics.RecordCacheHit()
		return records, nil
	}
	metrics.RecordCacheMiss()

	records, err = c.repo.GetYear(ctx, year)
	if err != nil {
		return nil, err
	}

	// Cache the result for next time.
	_ = c.cache.SetYear(ctx, year, records)

	return records, nil
}

// GetSnapshot retrieves snapshot metadata from the database (not cached).
func (c *CachedEnrollmentRepository) GetSnapshot(ctx context.Context, year int) (*models.Snapshot, error) {
	return c.repo.GetSnapshot(ctx, year)
}

// StoredYears lists stored years from the database (not cached).
func (c *CachedEnrollmentRepository) StoredYears(ctx context.Context) ([]int, error) {
	return c.repo.StoredYears(ctx)
}

// DeleteYear removes a year from both cache and database.
func (c *CachedEnrollmentRepository) DeleteYear(ctx context.Context, year int) error {
	_ = c.cache.DeleteYear(ctx, year)
	return c.repo.DeleteYear(ctx, year)
}

// HealthCheck checks both cache and database health.
func (c *CachedEnrollmentRepository) HealthCheck(ctx context.Context) error {
	if err := c.cache.Ping(ctx); err != nil {
		return err
	}
	return c.repo.HealthCheck(ctx)
}
