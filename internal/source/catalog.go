// Package source describes where NM PED publishes enrollment data.
package source

import (
	"fmt"
	"sort"

	"github.com/nmped/nmschooldata/internal/models"
)

// DefaultBaseURL is the NM PED download site.
const DefaultBaseURL = "https://webnew.ped.state.nm.us"

// datasetPaths maps a school year (end year) to the path of its published
// enrollment file under the base URL. PED has not kept a stable path scheme
// across years, so paths are listed explicitly.
var datasetPaths = map[int]string{
	2016: "/wp-content/uploads/data/enrollment/school-enrollment-2015-2016.csv",
	2017: "/wp-content/uploads/data/enrollment/school-enrollment-2016-2017.csv",
	2018: "/wp-content/uploads/data/enrollment/school-enrollment-2017-2018.csv",
	2019: "/wp-content/uploads/data/enrollment/school-enrollment-2018-2019.csv",
	2020: "/wp-content/uploads/data/enrollment/40d-enrollment-2019-2020.csv",
	2021: "/wp-content/uploads/data/enrollment/40d-enrollment-2020-2021.csv",
	2022: "/wp-content/uploads/data/enrollment/40d-enrollment-2021-2022.csv",
	2023: "/wp-content/uploads/data/enrollment/40d-enrollment-2022-2023.csv",
	2024: "/wp-content/uploads/data/enrollment/40d-enrollment-2023-2024.csv",
	2025: "/wp-content/uploads/data/enrollment/40d-enrollment-2024-2025.csv",
}

// Options configures a Catalog.
type Options struct {
	// BaseURL overrides DefaultBaseURL, e.g. for a mirror.
	BaseURL string
	// AllowPrivateHosts permits loopback and RFC1918 base URLs (tests, mirrors).
	AllowPrivateHosts bool
}

// Catalog resolves school years to dataset download URLs.
type Catalog struct {
	baseURL string
	paths   map[int]string
}

// NewCatalog creates a Catalog for the standard PED datasets.
// The base URL is validated before use.
func NewCatalog(opts Options) (*Catalog, error) {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	if err := ValidateDatasetURL(baseURL, opts.AllowPrivateHosts); err != nil {
		return nil, fmt.Errorf("invalid source base URL: %w", err)
	}

	paths := make(map[int]string, len(datasetPaths))
	for year, path := range datasetPaths {
		paths[year] = path
	}

	return &Catalog{baseURL: baseURL, paths: paths}, nil
}

// AvailableYears returns the school years with published data, ascending.
func (c *Catalog) AvailableYears() []int {
	years := make([]int, 0, len(c.paths))
	for year := range c.paths {
		years = append(years, year)
	}
	sort.Ints(years)
	return years
}

// LatestYear returns the most recent published school year.
func (c *Catalog) LatestYear() int {
	latest := 0
	for year := range c.paths {
		if year > latest {
			latest = year
		}
	}
	return latest
}

// HasYear reports whether data is published for year.
func (c *Catalog) HasYear(year int) bool {
	_, ok := c.paths[year]
	return ok
}

// DatasetURL returns the download URL for a school year.
func (c *Catalog) DatasetURL(year int) (string, error) {
	path, ok := c.paths[year]
	if !ok {
		return "", fmt.Errorf("%w: %d", models.ErrYearNotAvailable, year)
	}
	return c.baseURL + path, nil
}
