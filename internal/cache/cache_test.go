package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmped/nmschooldata/internal/models"
)

// memoryCache is an in-process Cache used to test the enrollment layer
// without Redis.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (m *memoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return v, nil
}

func (m *memoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

func (m *memoryCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *memoryCache) Ping(ctx context.Context) error { return nil }
func (m *memoryCache) Close() error                   { return nil }

func sampleRecords(year int) []models.EnrollmentRecord {
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
		{
			Year:         year,
			DistrictCode: 42,
			DistrictName: "Gallup-McKinley County Schools",
			SchoolCode:   118,
			SchoolName:   "Tohatchi Elementary",
			Grade:        "PK",
			Enrollment:   0,
			Masked:       true,
		},
	}
}

func TestEnrollmentCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	ec := NewEnrollmentCache(newMemoryCache(), "enr:", time.Hour)

	records := sampleRecords(2024)
	require.NoError(t, ec.SetYear(ctx, 2024, records))

	got, err := ec.GetYear(ctx, 2024)
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestEnrollmentCacheMiss(t *testing.T) {
	ctx := context.Background()
	ec := NewEnrollmentCache(newMemoryCache(), "enr:", time.Hour)

	_, err := ec.GetYear(ctx, 2019)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestEnrollmentCacheDeleteYear(t *testing.T) {
	ctx := context.Background()
	ec := NewEnrollmentCache(newMemoryCache(), "enr:", time.Hour)

	require.NoError(t, ec.SetYear(ctx, 2024, sampleRecords(2024)))
	require.NoError(t, ec.DeleteYear(ctx, 2024))

	_, err := ec.GetYear(ctx, 2024)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestEnrollmentCacheKeyIsolation(t *testing.T) {
	ctx := context.Background()
	mem := newMemoryCache()
	ec := NewEnrollmentCache(mem, "enr:", time.Hour)

	require.NoError(t, ec.SetYear(ctx, 2023, sampleRecords(2023)))
	require.NoError(t, ec.SetYear(ctx, 2024, sampleRecords(2024)))

	got, err := ec.GetYear(ctx, 2023)
	require.NoError(t, err)
	assert.Equal(t, 2023, got[0].Year)
}

func TestEnrollmentCacheCorruptEntry(t *testing.T) {
	ctx := context.Background()
	mem := newMemoryCache()
	ec := NewEnrollmentCache(mem, "enr:", time.Hour)

	require.NoError(t, mem.Set(ctx, "enr:2024", []byte("{not json"), time.Hour))

	_, err := ec.GetYear(ctx, 2024)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}
