package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/nmped/nmschooldata/internal/models"
	"github.com/nmped/nmschooldata/internal/services"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// YearsResponse represents the response for the available years endpoint.
type YearsResponse struct {
	Years []int `json:"years"`
}

// EnrollmentResponse represents the response for a year's enrollment data.
type EnrollmentResponse struct {
	Year       int                       `json:"year"`
	SchoolYear string                    `json:"school_year"`
	Count      int                       `json:"count"`
	Records    []models.EnrollmentRecord `json:"records"`
}

// EnrollmentHandler handles enrollment data endpoints.
type EnrollmentHandler struct {
	service services.EnrollmentService
}

// NewEnrollmentHandler creates a new EnrollmentHandler.
func NewEnrollmentHandler(svc services.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{service: svc}
}

// GetYears handles GET /api/v1/years requests.
func (h *EnrollmentHandler) GetYears(w http.ResponseWriter, r *http.Request) {
	years, err := h.service.AvailableYears(r.Context())
	if err != nil {
		status, errResp := mapErrorToResponse(err)
		writeJSON(w, status, errResp)
		return
	}

	writeJSON(w, http.StatusOK, YearsResponse{Years: years})
}

// GetEnrollment handles GET /api/v1/enrollment/{year} requests.
func (h *EnrollmentHandler) GetEnrollment(w http.ResponseWriter, r *http.Request, rawYear string) {
	year, err := strconv.Atoi(rawYear)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "year must be an integer",
			Code:  "INVALID_YEAR",
		})
		return
	}

	records, err := h.service.GetEnrollment(r.Context(), year)
	if err != nil {
		status, errResp := mapErrorToResponse(err)
		writeJSON(w, status, errResp)
		return
	}

	label := models.EnrollmentRecord{Year: year}
	resp := EnrollmentResponse{
		Year:       year,
		SchoolYear: label.SchoolYear(),
		Count:      len(records),
		Records:    records,
	}

	writeJSON(w, http.StatusOK, resp)
}

// mapErrorToResponse maps service errors to HTTP responses.
func mapErrorToResponse(err error) (int, ErrorResponse) {
	switch {
	case errors.Is(err, models.ErrYearNotAvailable):
		return http.StatusNotFound, ErrorResponse{
			Error: "no enrollment data published for this school year",
			Code:  "YEAR_NOT_AVAILABLE",
		}
	case errors.Is(err, services.ErrUpstreamUnavailable):
		return http.StatusBadGateway, ErrorResponse{
			Error: "enrollment source is unavailable",
			Code:  "UPSTREAM_UNAVAILABLE",
		}
	case errors.Is(err, services.ErrBadDataset):
		return http.StatusBadGateway, ErrorResponse{
			Error: "enrollment source returned an unreadable file",
			Code:  "BAD_DATASET",
		}
	default:
		return http.StatusInternalServerError, ErrorResponse{
			Error: "internal server error",
			Code:  "INTERNAL_ERROR",
		}
	}
}
