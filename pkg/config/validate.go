package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"filmstats/pkg/utils"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// BaseURL
	if c.BaseURL == "" {
		warnings = append(warnings, "base_url is empty, defaulting to 'https://letterboxd.com'")
		c.BaseURL = "https://letterboxd.com"
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if _, urlErr := url.ParseRequestURI(c.BaseURL); urlErr != nil {
		return warnings, fmt.Errorf("%w: base_url '%s' is not a valid URL: %v", utils.ErrConfigValidation, c.BaseURL, urlErr)
	}

	// DirectorsFile
	if c.DirectorsFile == "" {
		warnings = append(warnings, "directors_file is empty, defaulting to './directors.txt'")
		c.DirectorsFile = "./directors.txt"
	}

	// OutputFile
	if c.OutputFile == "" {
		warnings = append(warnings, "output_file is empty, defaulting to './directors_statistics.csv'")
		c.OutputFile = "./directors_statistics.csv"
	}

	// StateDir
	if c.StateDir == "" {
		warnings = append(warnings, "state_dir is empty, defaulting to './filmstats_state'")
		c.StateDir = "./filmstats_state"
	}

	// UserAgent
	if c.UserAgent == "" {
		c.UserAgent = "filmstats/1.0 (+https://github.com/filmstats)"
	}

	// DirectorWorkers
	if c.DirectorWorkers <= 0 {
		warnings = append(warnings, "director_workers should be > 0, defaulting to 4")
		c.DirectorWorkers = 4
	}

	// FilmWorkers
	if c.FilmWorkers <= 0 {
		warnings = append(warnings, "film_workers should be > 0, defaulting to 5")
		c.FilmWorkers = 5
	}

	// MaxAttempts
	if c.MaxAttempts < 1 {
		warnings = append(warnings, "max_attempts must be >= 1, defaulting to 3")
		c.MaxAttempts = 3
	}

	// RetryBackoff
	if c.RetryBackoff < 0 {
		warnings = append(warnings, "retry_backoff cannot be negative, defaulting to 2s")
		c.RetryBackoff = 2 * time.Second
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = 2 * time.Second
	}

	// RequestDelay
	if c.RequestDelay < 0 {
		warnings = append(warnings, "request_delay cannot be negative, disabling delay")
		c.RequestDelay = 0
	}

	// RunTimeout
	if c.RunTimeout < 0 {
		warnings = append(warnings, "run_timeout cannot be negative, disabling timeout")
		c.RunTimeout = 0
	}

	// Cache settings
	if c.CacheTTL < 0 {
		warnings = append(warnings, "cache_ttl cannot be negative, setting to 0 (no expiry)")
		c.CacheTTL = 0
	}
	if c.CacheMaxEntries <= 0 {
		c.CacheMaxEntries = 4096
	}
	if c.CacheGCInterval <= 0 {
		c.CacheGCInterval = 10 * time.Minute
	}

	// HTTPClientSettings defaults
	c.validateHTTPClientSettings()

	return warnings, nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 10 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		// Worst case in-flight requests is director_workers * film_workers,
		// all against the one target host.
		h.MaxIdleConnsPerHost = c.DirectorWorkers * c.FilmWorkers
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}
