// Package models contains domain models and entities.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// EnrollmentRecord represents enrollment for one school and grade in one
// school year. Year is the end year of the school year (2024 for SY 2023-24).
type EnrollmentRecord struct {
	Year         int    `json:"year"`
	DistrictCode int    `json:"district_code"`
	DistrictName string `json:"district_name"`
	SchoolCode   int    `json:"school_code"`
	SchoolName   string `json:"school_name"`
	Grade        string `json:"grade"`
	Enrollment   int    `json:"enrollment"`
	Masked       bool   `json:"masked,omitempty"`
}

// Snapshot represents one persisted fetch of one school year.
type Snapshot struct {
	ID          int64     `json:"id"`
	Year        int       `json:"year"`
	SourceURL   string    `json:"source_url"`
	FetchedAt   time.Time `json:"fetched_at"`
	RecordCount int       `json:"record_count"`
}

// Validation errors
var (
	ErrInvalidYear      = errors.New("year is not a valid school year")
	ErrYearNotAvailable = errors.New("no enrollment data published for year")
	ErrInvalidGrade     = errors.New("unrecognized grade level")
	ErrInvalidDistrict  = errors.New("district code must be positive")
	ErrEmptySchoolName  = errors.New("school name cannot be empty")
	ErrNegativeCount    = errors.New("enrollment count cannot be negative")
	ErrYearNotFound     = errors.New("year not found")
)

// Grades lists the normalized grade tokens in school order.
var Grades = []string{"PK", "KF", "01", "02", "03", "04", "05", "06", "07", "08", "09", "10", "11", "12"}

// gradeAliases maps the raw spellings PED has used across publication years
// to normalized tokens.
var gradeAliases = map[string]string{
	"PK": "PK", "PRE-K": "PK", "PREK": "PK", "PRE K": "PK", "P": "PK",
	"K": "KF", "KF": "KF", "KN": "KF", "KINDER": "KF", "KINDERGARTEN": "KF",
}

// NormalizeGrade maps a raw grade cell to its normalized token.
func NormalizeGrade(raw string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return "", ErrInvalidGrade
	}

	if g, ok := gradeAliases[s]; ok {
		return g, nil
	}

	// Numeric grades: "1", "01", "1ST", "12TH".
	s = strings.TrimSuffix(s, "ST")
	s = strings.TrimSuffix(s, "ND")
	s = strings.TrimSuffix(s, "RD")
	s = strings.TrimSuffix(s, "TH")
	s = strings.TrimSpace(s)

	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: %q", ErrInvalidGrade, raw)
		}
		n = n*10 + int(r-'0')
	}
	if n < 1 || n > 12 {
		return "", fmt.Errorf("%w: %q", ErrInvalidGrade, raw)
	}

	return fmt.Sprintf("%02d", n), nil
}

// IsValidGrade reports whether g is a normalized grade token.
func IsValidGrade(g string) bool {
	for _, grade := range Grades {
		if g == grade {
			return true
		}
	}
	return false
}

// SchoolYear formats the record's year as a school-year label, e.g. "2023-2024".
func (r *EnrollmentRecord) SchoolYear() string {
	return fmt.Sprintf("%d-%d", r.Year-1, r.Year)
}

// Validate validates the enrollment record.
func (r *EnrollmentRecord) Validate() error {
	if r.Year < 1990 || r.Year > 2100 {
		return ErrInvalidYear
	}
	if !IsValidGrade(r.Grade) {
		return fmt.Errorf("%w: %q", ErrInvalidGrade, r.Grade)
	}
	if r.DistrictCode <= 0 {
		return ErrInvalidDistrict
	}
	if strings.TrimSpace(r.SchoolName) == "" {
		return ErrEmptySchoolName
	}
	if r.Enrollment < 0 {
		return ErrNegativeCount
	}
	return nil
}

// TotalEnrollment sums enrollment counts over records, skipping masked rows.
func TotalEnrollment(records []EnrollmentRecord) int {
	total := 0
	for i := range records {
		if records[i].Masked {
			continue
		}
		total += records[i].Enrollment
	}
	return total
}
