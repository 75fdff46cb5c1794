package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nmped/nmschooldata/internal/cache"
	"github.com/nmped/nmschooldata/internal/models"
)

// MockEnrollmentRepository is a mock implementation of EnrollmentRepository.
type MockEnrollmentRepository struct {
	mock.Mock
}

func (m *MockEnrollmentRepository) SaveYear(ctx context.Context, snapshot *models.Snapshot, records []models.EnrollmentRecord) (*models.Snapshot, error) {
	args := m.Called(ctx, snapshot, records)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Snapshot), args.Error(1)
}

func (m *MockEnrollmentRepository) GetYear(ctx context.Context, year int) ([]models.EnrollmentRecord, error) {
	args := m.Called(ctx, year)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.EnrollmentRecord), args.Error(1)
}

func (m *MockEnrollmentRepository) GetSnapshot(ctx context.Context, year int) (*models.Snapshot, error) {
	args := m.Called(ctx, year)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Snapshot), args.Error(1)
}

func (m *MockEnrollmentRepository) StoredYears(ctx context.Context) ([]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (m *MockEnrollmentRepository) DeleteYear(ctx context.Context, year int) error {
	args := m.Called(ctx, year)
	return args.Error(0)
}

func (m *MockEnrollmentRepository) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockEnrollmentCacher is a mock implementation of cache.EnrollmentCacher.
type MockEnrollmentCacher struct {
	mock.Mock
}

func (m *MockEnrollmentCacher) GetYear(ctx context.Context, year int) ([]models.EnrollmentRecord, error) {
	args := m.Called(ctx, year)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.EnrollmentRecord), args.Error(1)
}

func (m *MockEnrollmentCacher) SetYear(ctx context.Context, year int, records []models.EnrollmentRecord) error {
	args := m.Called(ctx, year, records)
	return args.Error(0)
}

func (m *MockEnrollmentCacher) DeleteYear(ctx context.Context, year int) error {
	args := m.Called(ctx, year)
	return args.Error(0)
}

func (m *MockEnrollmentCacher) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func testRecords(year int) []models.EnrollmentRecord {
	return []models.EnrollmentRecord{
		{
			Year:         year,
			DistrictCode: 1,
			DistrictName: "Albuquerque Public Schools",
			SchoolCode:   501,
			SchoolName:   "Valley High",
			Grade:        "09",
			Enrollment:   312,
		},
	}
}

func TestCachedGetYearHit(t *testing.T) {
	ctx := context.Background()
	repo := new(MockEnrollmentRepository)
	cacher := new(MockEnrollmentCacher)

	records := testRecords(2024)
	cacher.On("GetYear", ctx, 2024).Return(records, nil)

	cached := NewCachedEnrollmentRepository(repo, cacher)
	got, err := cached.GetYear(ctx, 2024)

	require.NoError(t, err)
	assert.Equal(t, records, got)
	repo.AssertNotCalled(t, "GetYear", ctx, 2024)
}

func TestCachedGetYearMissFallsBack(t *testing.T) {
	ctx := context.Background()
	repo := new(MockEnrollmentRepository)
	cacher := new(MockEnrollmentCacher)

	records := testRecords(2024)
	cacher.On("GetYear", ctx, 2024).Return(nil, cache.ErrCacheMiss)
	repo.On("GetYear", ctx, 2024).Return(records, nil)
	cacher.On("SetYear", ctx, 2024, records).Return(nil)

	cached := NewCachedEnrollmentRepository(repo, cacher)
	got, err := cached.GetYear(ctx, 2024)

	require.NoError(t, err)
	assert.Equal(t, records, got)
	cacher.AssertCalled(t, "SetYear", ctx, 2024, records)
}

func TestCachedGetYearMissAndNotStored(t *testing.T) {
	ctx := context.Background()
	repo := new(MockEnrollmentRepository)
	cacher := new(MockEnrollmentCacher)

	cacher.On("GetYear", ctx, 2019).Return(nil, cache.ErrCacheMiss)
	repo.On("GetYear", ctx, 2019).Return(nil, models.ErrYearNotFound)

	cached := NewCachedEnrollmentRepository(repo, cacher)
	_, err := cached.GetYear(ctx, 2019)

	assert.ErrorIs(t, err, models.ErrYearNotFound)
}

func TestCachedSaveYearWritesThrough(t *testing.T) {
	ctx := context.Background()
	repo := new(MockEnrollmentRepository)
	cacher := new(MockEnrollmentCacher)

	records := testRecords(2024)
	snapshot := &models.Snapshot{Year: 2024, SourceURL: "https://example.test/enr.csv", FetchedAt: time.Now()}
	saved := &models.Snapshot{ID: 7, Year: 2024, RecordCount: 1}

	repo.On("SaveYear", ctx, snapshot, records).Return(saved, nil)
	cacher.On("SetYear", ctx, 2024, records).Return(nil)

	cached := NewCachedEnrollmentRepository(repo, cacher)
	got, err := cached.SaveYear(ctx, snapshot, records)

	require.NoError(t, err)
	assert.Equal(t, int64(7), got.ID)
	cacher.AssertCalled(t, "SetYear", ctx, 2024, records)
}

func TestCachedSaveYearCacheErrorIgnored(t *testing.T) {
	ctx := context.Background()
	repo := new(MockEnrollmentRepository)
	cacher := new(MockEnrollmentCacher)

	records := testRecords(2024)
	snapshot := &models.Snapshot{Year: 2024}
	saved := &models.Snapshot{ID: 1, Year: 2024}

	repo.On("SaveYear", ctx, snapshot, records).Return(saved, nil)
	cacher.On("SetYear", ctx, 2024, records).Return(errors.New("redis down"))

	cached := NewCachedEnrollmentRepository(repo, cacher)
	_, err := cached.SaveYear(ctx, snapshot, records)

	assert.NoError(t, err)
}

func TestCachedDeleteYear(t *testing.T) {
	ctx := context.Background()
	repo := new(MockEnrollmentRepository)
	cacher := new(MockEnrollmentCacher)

	cacher.On("DeleteYear", ctx, 2024).Return(nil)
	repo.On("DeleteYear", ctx, 2024).Return(nil)

	cached := NewCachedEnrollmentRepository(repo, cacher)
	require.NoError(t, cached.DeleteYear(ctx, 2024))

	cacher.AssertCalled(t, "DeleteYear", ctx, 2024)
	repo.AssertCalled(t, "DeleteYear", ctx, 2024)
}

func TestCachedHealthCheck(t *testing.T) {
	ctx := context.Background()
	repo := new(MockEnrollmentRepository)
	cacher := new(MockEnrollmentCacher)

	cacher.On("Ping", ctx).Return(nil)
	repo.On("HealthCheck", ctx).Return(nil)

	cached := NewCachedEnrollmentRepository(repo, cacher)
	assert.NoError(t, cached.HealthCheck(ctx))
}

func TestCachedHealthCheckCacheDown(t *testing.T) {
	ctx := context.Background()
	repo := new(MockEnrollmentRepository)
	cacher := new(MockEnrollmentCacher)

	cacher.On("Ping", ctx).Return(errors.New("redis down"))

	cached := NewCachedEnrollmentRepository(repo, cacher)
	assert.Error(t, cached.HealthCheck(ctx))
	repo.AssertNotCalled(t, "HealthCheck", mock.Anything)
}
