package valetudo

import (
	"strings"
	"time"
)

// DefaultTimeout caps every request to the robot. Valetudo runs on
// the vacuum's own SoC; anything slower than this is effectively down.
const DefaultTimeout = 5 * time.Second

// Config holds the connection parameters for one robot. Set once at
// construction; the channel never mutates it.
type Config struct {
	// BaseURL is the robot's Valetudo address. A bare host is
	// accepted; NormalizeBaseURL adds the scheme.
	BaseURL string

	// Optional HTTP Basic credentials.
	Username string
	Password string

	// Timeout for every request. Zero means DefaultTimeout.
	Timeout time.Duration
}

// NormalizeBaseURL adds an http:// scheme when missing and strips a
// trailing slash, so path joining stays simple.
func NormalizeBaseURL(raw string) string {
	url := raw
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}
	return strings.TrimRight(url, "/")
}
