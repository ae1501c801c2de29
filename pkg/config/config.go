package config

import "time"

// AppConfig holds the global application configuration
type AppConfig struct {
	BaseURL       string `yaml:"base_url,omitempty"`       // Root of the film catalog site
	DirectorsFile string `yaml:"directors_file,omitempty"` // Line-oriented "<Name> : <fragment>" input
	OutputFile    string `yaml:"output_file,omitempty"`    // CSV written at the end of every run
	StateDir      string `yaml:"state_dir,omitempty"`      // Film cache DB + watch state live here
	UserAgent     string `yaml:"user_agent,omitempty"`

	DirectorWorkers int `yaml:"director_workers,omitempty"` // Outer pool bound
	FilmWorkers     int `yaml:"film_workers,omitempty"`     // Inner pool bound per director

	MaxAttempts  int           `yaml:"max_attempts,omitempty"`  // Fetch attempts per page (>= 1)
	RetryBackoff time.Duration `yaml:"retry_backoff,omitempty"` // Fixed wait between failed attempts
	RequestDelay time.Duration `yaml:"request_delay,omitempty"` // Politeness delay between requests (0 = off)
	RunTimeout   time.Duration `yaml:"run_timeout,omitempty"`   // Whole-run deadline (0 = none)

	RespectRobots bool `yaml:"respect_robots,omitempty"` // Consult robots.txt before fetching

	CacheEnabled    bool          `yaml:"cache_enabled,omitempty"`     // Persist extracted films across runs
	CacheTTL        time.Duration `yaml:"cache_ttl,omitempty"`         // Cached record lifetime (0 = never expires)
	CacheMaxEntries int           `yaml:"cache_max_entries,omitempty"` // In-memory LRU bound in front of the DB
	CacheGCInterval time.Duration `yaml:"cache_gc_interval,omitempty"` // Badger value-log GC cadence

	MetricsListenAddr string `yaml:"metrics_listen_addr,omitempty"` // Prometheus endpoint ("" = disabled)

	HTTPClientSettings HTTPClientConfig `yaml:"http_client_settings,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
}
