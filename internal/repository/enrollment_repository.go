// Package repository handles data persistence.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nmped/nmschooldata/internal/database"
	"github.com/nmped/nmschooldata/internal/metrics"
	"github.com/nmped/nmschooldata/internal/models"
)

// EnrollmentRepository defines the interface for enrollment persistence.
type EnrollmentRepository interface {
	// SaveYear stores a snapshot and its records, replacing any prior
	// snapshot for the same year.
	SaveYear(ctx context.Context, snapshot *models.Snapshot, records []models.EnrollmentRecord) (*models.Snapshot, error)

	// GetYear retrieves the stored records for a school year.
	GetYear(ctx context.Context, year int) ([]models.EnrollmentRecord, error)

	// GetSnapshot retrieves the snapshot metadata for a school year.
	GetSnapshot(ctx context.Context, year int) (*models.Snapshot, error)

	// StoredYears returns the school years with stored data, ascending.
	StoredYears(ctx context.Context) ([]int, error)

	// DeleteYear removes a school year's snapshot and records.
	DeleteYear(ctx context.Context, year int) error

	// HealthCheck verifies the repository is healthy.
	HealthCheck(ctx context.Context) error
}

// PostgresEnrollmentRepository implements EnrollmentRepository using PostgreSQL.
type PostgresEnrollmentRepository struct {
	pool *database.Pool
}

// NewPostgresEnrollmentRepository creates a PostgreSQL-backed enrollment repository.
func NewPostgresEnrollmentRepository(pool *database.Pool) *PostgresEnrollmentRepository {
	return &PostgresEnrollmentRepository{pool: pool}
}

// SaveYear stores a snapshot and its records in one transaction.
// An existing snapshot for the year is replaced; its records cascade away.
func (r *PostgresEnrollmentRepository) SaveYear(ctx context.Context, snapshot *models.Snapshot, records []models.EnrollmentRecord) (*models.Snapshot, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("save_year", time.Since(start)) }()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`DELETE FROM enrollment_snapshots WHERE year = $1`, snapshot.Year); err != nil {
		return nil, fmt.Errorf("failed to replace snapshot: %w", err)
	}

	saved := *snapshot
	err = tx.QueryRow(ctx, `
		INSERT INTO enrollment_snapshots (year, source_url, fetched_at, record_count)
		VALUES ($1, $2, $3, $4)
		RETURNING id, fetched_at
	`, snapshot.Year, snapshot.SourceURL, snapshot.FetchedAt, len(records)).Scan(&saved.ID, &saved.FetchedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot: %w", err)
	}
	saved.RecordCount = len(records)

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"enrollment_records"},
		[]string{"snapshot_id", "year", "district_code", "district_name", "school_code", "school_name", "grade", "enrollment", "masked"},
		pgx.CopyFromSlice(len(records), func(i int) ([]interface{}, error) {
			rec := records[i]
			return []interface{}{
				saved.ID, rec.Year, rec.DistrictCode, rec.DistrictName,
				rec.SchoolCode, rec.SchoolName, rec.Grade, rec.Enrollment, rec.Masked,
			}, nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to copy records: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	return &saved, nil
}

// GetYear retrieves the stored records for a school year.
func (r *PostgresEnrollmentRepository) GetYear(ctx context.Context, year int) ([]models.EnrollmentRecord, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("get_year", time.Since(start)) }()

	query := `
		SELECT year, district_code, district_name, school_code, school_name, grade, enrollment, masked
		FROM enrollment_records
		WHERE year = $1
		ORDER BY district_code, school_code, grade
	`

	rows, err := r.pool.Query(ctx, query, year)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []models.EnrollmentRecord
	for rows.Next() {
		var rec models.EnrollmentRecord
		if err := rows.Scan(
			&rec.Year,
			&rec.DistrictCode,
			&rec.DistrictName,
			&rec.SchoolCode,
			&rec.SchoolName,
			&rec.Grade,
			&rec.Enrollment,
			&rec.Masked,
		); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	if len(records) == 0 {
		return nil, models.ErrYearNotFound
	}

	return records, nil
}

// GetSnapshot retrieves the snapshot metadata for a school year.
func (r *PostgresEnrollmentRepository) GetSnapshot(ctx context.Context, year int) (*models.Snapshot, error) {
	query := `
		SELECT id, year, source_url, fetched_at, record_count
		FROM enrollment_snapshots
		WHERE year = $1
	`

	var s models.Snapshot
	err := r.pool.QueryRow(ctx, query, year).Scan(
		&s.ID,
		&s.Year,
		&s.SourceURL,
		&s.FetchedAt,
		&s.RecordCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrYearNotFound
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	return &s, nil
}

// StoredYears returns the school years with stored data, ascending.
func (r *PostgresEnrollmentRepository) StoredYears(ctx context.Context) ([]int, error) {
	query := `SELECT year FROM enrollment_snapshots ORDER BY year`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query years: %w", err)
	}
	defer rows.Close()

	var years []int
	for rows.Next() {
		var year int
		if err := rows.Scan(&year); err != nil {
			return nil, fmt.Errorf("failed to scan year: %w", err)
		}
		years = append(years, year)
	}

	return years, rows.Err()
}

// DeleteYear removes a school year's snapshot; records cascade.
func (r *PostgresEnrollmentRepository) DeleteYear(ctx context.Context, year int) error {
	result, err := r.pool.Exec(ctx,
		`DELETE FROM enrollment_snapshots WHERE year = $1`, year)
	if err != nil {
		return fmt.Errorf("failed to delete year: %w", err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrYearNotFound
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (r *PostgresEnrollmentRepository) HealthCheck(ctx context.Context) error {
	return r.pool.HealthCheck(ctx)
}
