package source

import (
	"errors"
	"net"
	"net/url"
	"strings"
)

// URL validation errors
var (
	ErrEmptyURL        = errors.New("URL cannot be empty")
	ErrInvalidURL      = errors.New("invalid URL format")
	ErrInvalidScheme   = errors.New("URL must use http or https scheme")
	ErrDangerousScheme = errors.New("dangerous URL scheme detected")
	ErrPrivateHost     = errors.New("private hosts not allowed")
	ErrURLTooLong      = errors.New("URL exceeds maximum length")
)

// maxURLLength bounds dataset URLs; PED paths are far shorter.
const maxURLLength = 2048

// dangerousSchemes contains URL schemes that can execute code or read files.
var dangerousSchemes = map[string]bool{
	"javascript": true,
	"data":       true,
	"vbscript":   true,
	"file":       true,
}

// ValidateDatasetURL checks that a dataset URL is safe to fetch from.
// Loopback and RFC1918 hosts are rejected unless allowPrivate is set.
func ValidateDatasetURL(rawURL string, allowPrivate bool) error {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ErrEmptyURL
	}
	if len(rawURL) > maxURLLength {
		return ErrURLTooLong
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return ErrInvalidURL
	}

	scheme := strings.ToLower(u.Scheme)
	if dangerousSchemes[scheme] {
		return ErrDangerousScheme
	}
	if scheme != "http" && scheme != "https" {
		return ErrInvalidScheme
	}
	if u.Host == "" {
		return ErrInvalidURL
	}

	if !allowPrivate && isPrivateHost(u.Hostname()) {
		return ErrPrivateHost
	}

	return nil
}

// isPrivateHost reports whether host is loopback, link-local or RFC1918.
// Hostnames are not resolved; only literal IPs and "localhost" are caught.
func isPrivateHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}

	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}
