// Package nmschooldata fetches New Mexico PED 40-day school enrollment
// counts by district, school, and grade. The package-level functions use
// a default client that downloads straight from the PED website; wrap a
// Client around your own options for custom base URLs or timeouts.
package nmschooldata

import (
	"context"
	"fmt"
	"sync"

	"github.com/nmped/nmschooldata/internal/fetcher"
	"github.com/nmped/nmschooldata/internal/models"
	"github.com/nmped/nmschooldata/internal/parser"
	"github.com/nmped/nmschooldata/internal/source"
)

// EnrollmentRecord is one school's enrollment for one grade in one year.
type EnrollmentRecord = models.EnrollmentRecord

// Snapshot describes one fetch of one school year.
type Snapshot = models.Snapshot

// ErrYearNotAvailable is returned when no data is published for a year.
var ErrYearNotAvailable = models.ErrYearNotAvailable

// Options configures a Client.
type Options struct {
	// BaseURL overrides the PED website base URL. Mainly for mirrors.
	BaseURL string
	// AllowPrivateHosts permits loopback and RFC1918 base URLs (tests, mirrors).
	AllowPrivateHosts bool
	// Fetcher overrides the HTTP fetch configuration.
	Fetcher fetcher.Config
}

// Client fetches and parses enrollment data without any storage backend.
// It is safe for concurrent use.
type Client struct {
	catalog *source.Catalog
	fetcher *fetcher.Fetcher
}

// NewClient creates a Client with the given options.
func NewClient(opts Options) (*Client, error) {
	catalog, err := source.NewCatalog(source.Options{
		BaseURL:           opts.BaseURL,
		AllowPrivateHosts: opts.AllowPrivateHosts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build source catalog: %w", err)
	}

	cfg := opts.Fetcher
	if cfg == (fetcher.Config{}) {
		cfg = fetcher.DefaultConfig()
	}

	return &Client{
		catalog: catalog,
		fetcher: fetcher.New(cfg, nil),
	}, nil
}

// FetchEnr downloads and parses the enrollment file for a school year.
// Year is the end year of the school year (2024 for SY 2023-2024).
func (c *Client) FetchEnr(ctx context.Context, year int) ([]EnrollmentRecord, error) {
	url, err := c.catalog.DatasetURL(year)
	if err != nil {
		return nil, err
	}

	body, err := c.fetcher.Download(ctx, url)
	if err != nil {
		return nil, err
	}

	return parser.Parse(body, year)
}

// GetAvailableYears returns the school years with published data, ascending.
func (c *Client) GetAvailableYears() []int {
	return c.catalog.AvailableYears()
}

var (
	defaultClient     *Client
	defaultClientErr  error
	defaultClientOnce sync.Once
)

func getDefaultClient() (*Client, error) {
	defaultClientOnce.Do(func() {
		defaultClient, defaultClientErr = NewClient(Options{})
	})
	return defaultClient, defaultClientErr
}

// FetchEnr downloads and parses the enrollment file for a school year
// using the default client.
func FetchEnr(ctx context.Context, year int) ([]EnrollmentRecord, error) {
	c, err := getDefaultClient()
	if err != nil {
		return nil, err
	}
	return c.FetchEnr(ctx, year)
}

// GetAvailableYears returns the school years with published data, ascending.
func GetAvailableYears() []int {
	c, err := getDefaultClient()
	if err != nil {
		return nil
	}
	return c.GetAvailableYears()
}
