package urlutil

import (
	"net/url"
	"strings"
)

// Hostname returns the host part of rawURL without port or brackets.
// URLs without a scheme (like "example.com") have no host and yield "".
func Hostname(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}

	return parsed.Hostname()
}

// IsHTTPS reports whether rawURL uses the https scheme.
// Schemes are case-insensitive and come back lower-cased from url.Parse.
func IsHTTPS(rawURL string) bool {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}

	return parsed.Scheme == "https"
}
