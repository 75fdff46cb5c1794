package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nmped/nmschooldata/internal/models"
	"github.com/nmped/nmschooldata/internal/services"
)

// MockEnrollmentService is a mock implementation of services.EnrollmentService.
type MockEnrollmentService struct {
	mock.Mock
}

func (m *MockEnrollmentService) GetEnrollment(ctx context.Context, year int) ([]models.EnrollmentRecord, error) {
	args := m.Called(ctx, year)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.EnrollmentRecord), args.Error(1)
}

func (m *MockEnrollmentService) AvailableYears(ctx context.Context) ([]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (m *MockEnrollmentService) RefreshYear(ctx context.Context, year int) ([]models.EnrollmentRecord, error) {
	args := m.Called(ctx, year)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.EnrollmentRecord), args.Error(1)
}

func TestGetYears(t *testing.T) {
	svc := new(MockEnrollmentService)
	svc.On("AvailableYears", mock.Anything).Return([]int{2022, 2023, 2024}, nil)

	h := NewEnrollmentHandler(svc)
	rec := httptest.NewRecorder()
	h.GetYears(rec, httptest.NewRequest(http.MethodGet, "/api/v1/years", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var body YearsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, []int{2022, 2023, 2024}, body.Years)
}

func TestGetEnrollmentSuccess(t *testing.T) {
	records := []models.EnrollmentRecord{
		{Year: 2024, DistrictCode: 1, DistrictName: "Albuquerque Public Schools", SchoolCode: 501, SchoolName: "Valley High", Grade: "09", Enrollment: 312},
		{Year: 2024, DistrictCode: 42, DistrictName: "Gallup-McKinley County Schools", SchoolCode: 118, SchoolName: "Tohatchi Elementary", Grade: "PK", Enrollment: 0, Masked: true},
	}

	svc := new(MockEnrollmentService)
	svc.On("GetEnrollment", mock.Anything, 2024).Return(records, nil)

	h := NewEnrollmentHandler(svc)
	rec := httptest.NewRecorder()
	h.GetEnrollment(rec, httptest.NewRequest(http.MethodGet, "/api/v1/enrollment/2024", nil), "2024")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body EnrollmentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 2024, body.Year)
	assert.Equal(t, "2023-2024", body.SchoolYear)
	assert.Equal(t, 2, body.Count)
	require.Len(t, body.Records, 2)
	assert.True(t, body.Records[1].Masked)
}

func TestGetEnrollmentBadYear(t *testing.T) {
	h := NewEnrollmentHandler(new(MockEnrollmentService))

	rec := httptest.NewRecorder()
	h.GetEnrollment(rec, httptest.NewRequest(http.MethodGet, "/api/v1/enrollment/latest", nil), "latest")

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "INVALID_YEAR", body.Code)
}

func TestGetEnrollmentErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"year not available", models.ErrYearNotAvailable, http.StatusNotFound, "YEAR_NOT_AVAILABLE"},
		{"upstream unavailable", services.ErrUpstreamUnavailable, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE"},
		{"bad dataset", services.ErrBadDataset, http.StatusBadGateway, "BAD_DATASET"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockEnrollmentService)
			svc.On("GetEnrollment", mock.Anything, 2024).Return(nil, tt.err)

			h := NewEnrollmentHandler(svc)
			rec := httptest.NewRecorder()
			h.GetEnrollment(rec, httptest.NewRequest(http.MethodGet, "/api/v1/enrollment/2024", nil), "2024")

			assert.Equal(t, tt.wantStatus, rec.Code)

			var body ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.wantCode, body.Code)
		})
	}
}
