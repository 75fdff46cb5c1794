// Package parser turns PED enrollment files into enrollment records.
package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nmped/nmschooldata/internal/models"
)

// Parse errors
var (
	ErrEmptyFile     = errors.New("enrollment file is empty")
	ErrMissingColumn = errors.New("required column missing")
)

// maskedValues are the cell values PED uses for suppressed counts.
var maskedValues = map[string]bool{
	"*":   true,
	"**":  true,
	"<10": true,
	"N/A": true,
}

// headerAliases maps the column spellings PED has used across years to
// canonical column keys.
var headerAliases = map[string]string{
	"district code":    "district_code",
	"district number":  "district_code",
	"dist code":        "district_code",
	"district name":    "district_name",
	"district":         "district_name",
	"school code":      "school_code",
	"location code":    "school_code",
	"school number":    "school_code",
	"school name":      "school_name",
	"location name":    "school_name",
	"school":           "school_name",
	"grade":            "grade",
	"grade level":      "grade",
	"enrollment":       "enrollment",
	"total enrollment": "enrollment",
	"40d count":        "enrollment",
	"student count":    "enrollment",
	"count":            "enrollment",
}

// requiredColumns are the canonical keys a file must provide.
var requiredColumns = []string{
	"district_code", "district_name", "school_code", "school_name", "grade", "enrollment",
}

// aggregateGrades are grade cells marking district/state rollup rows,
// which are skipped in favor of per-grade rows.
var aggregateGrades = map[string]bool{
	"TOTAL":      true,
	"ALL":        true,
	"ALL GRADES": true,
}

// Parse reads a PED enrollment CSV and returns records for the given
// school year. The file's header row is matched case-insensitively
// against the known column spellings.
func Parse(data []byte, year int) ([]models.EnrollmentRecord, error) {
	// Strip UTF-8 BOM; PED exports from Excel carry one.
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	columns, err := mapHeader(header)
	if err != nil {
		return nil, err
	}

	var records []models.EnrollmentRecord
	line := 1

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if isBlankRow(row) {
			continue
		}

		rec, skip, err := parseRow(row, columns, year)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if skip {
			continue
		}

		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, ErrEmptyFile
	}

	return records, nil
}

// mapHeader resolves header cells to canonical column indexes.
func mapHeader(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(requiredColumns))

	for i, cell := range header {
		key := strings.ToLower(strings.TrimSpace(cell))
		canonical, ok := headerAliases[key]
		if !ok {
			continue
		}
		// First match wins; "district" must not override "district name".
		if _, taken := columns[canonical]; !taken {
			columns[canonical] = i
		}
	}

	for _, col := range requiredColumns {
		if _, ok := columns[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	return columns, nil
}

// parseRow converts one CSV row into a record. skip is true for
// aggregate rollup rows.
func parseRow(row []string, columns map[string]int, year int) (models.EnrollmentRecord, bool, error) {
	var rec models.EnrollmentRecord

	gradeRaw := cell(row, columns["grade"])
	if aggregateGrades[strings.ToUpper(strings.TrimSpace(gradeRaw))] {
		return rec, true, nil
	}

	grade, err := models.NormalizeGrade(gradeRaw)
	if err != nil {
		return rec, false, err
	}

	districtCode, err := parseCode(cell(row, columns["district_code"]))
	if err != nil {
		return rec, false, fmt.Errorf("district code: %w", err)
	}
	schoolCode, err := parseCode(cell(row, columns["school_code"]))
	if err != nil {
		return rec, false, fmt.Errorf("school code: %w", err)
	}

	count, masked, err := parseCount(cell(row, columns["enrollment"]))
	if err != nil {
		return rec, false, fmt.Errorf("enrollment: %w", err)
	}

	rec = models.EnrollmentRecord{
		Year:         year,
		DistrictCode: districtCode,
		DistrictName: strings.TrimSpace(cell(row, columns["district_name"])),
		SchoolCode:   schoolCode,
		SchoolName:   strings.TrimSpace(cell(row, columns["school_name"])),
		Grade:        grade,
		Enrollment:   count,
		Masked:       masked,
	}
	return rec, false, nil
}

// cell returns row[i] or "" when the row is short.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// isBlankRow reports whether every cell is empty.
func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// parseCode parses a district or school code, tolerating zero padding.
func parseCode(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty code")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid code %q", s)
	}
	return n, nil
}

// parseCount parses an enrollment cell. Suppressed cells return masked=true
// with a zero count. Thousands separators are tolerated.
func parseCount(s string) (int, bool, error) {
	s = strings.TrimSpace(s)
	if maskedValues[strings.ToUpper(s)] || maskedValues[s] {
		return 0, true, nil
	}
	if s == "" {
		return 0, true, nil
	}

	s = strings.ReplaceAll(s, ",", "")
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false, fmt.Errorf("invalid count %q", s)
	}
	if n < 0 {
		return 0, false, fmt.Errorf("negative count %d", n)
	}
	return n, false, nil
}
