// SPDX-License-Identifier: MIT

// Package config loads and validates the daemon configuration with
// precedence ENV > YAML file > defaults.
package config

import "time"

// Defaults applied before file and environment merging.
const (
	DefaultSharedRoot  = "/mnt/visual-aoi-shared"
	DefaultClientMount = "/mnt/visual-aoi-shared"
	DefaultDataDir     = "/var/lib/aoid"
	DefaultListenAddr  = ":5000"

	DefaultJPEGQuality = 90

	DefaultSessionTimeout = time.Hour
	DefaultSweepInterval  = 5 * time.Minute

	DefaultLinkTimeout  = 5 * time.Second
	DefaultLinkRate     = 20.0
	DefaultLinkBurst    = 40
	DefaultLinkCacheTTL = 10 * time.Minute

	DefaultAPIRateLimit = 600      // requests per minute per client
	DefaultMaxBodyBytes = 32 << 20 // grouped requests carry base64 frames
	DefaultAuditTTL     = 7 * 24 * time.Hour
)

// AppConfig is the fully merged runtime configuration.
type AppConfig struct {
	Version  string
	LogLevel string

	// SharedRoot is the server-side path of the shared inspection folder.
	SharedRoot string
	// ClientMount is the absolute prefix clients use for the same share.
	// Client-supplied absolute paths under this prefix are translated onto
	// SharedRoot before any filesystem access.
	ClientMount string
	// DataDir holds daemon-local state (result archive, stats database).
	DataDir string

	APIListenAddr string
	MetricsAddr   string
	Bind          string

	// Workers caps the per-request analysis pool. 0 means runtime.NumCPU.
	Workers     int
	JPEGQuality int

	Session SessionConfig
	Link    LinkConfig
	Redis   RedisConfig
	API     APIConfig
	Server  ServerRuntimeConfig
}

// SessionConfig controls inspection session lifecycle.
type SessionConfig struct {
	Timeout       time.Duration
	SweepInterval time.Duration
}

// LinkConfig controls the external barcode linking client.
// An empty BaseURL disables linking entirely.
type LinkConfig struct {
	BaseURL  string
	Timeout  time.Duration
	Rate     float64 // outbound requests per second
	Burst    int
	CacheTTL time.Duration
}

// RedisConfig enables the optional shared link cache. Empty Addr disables it.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// APIConfig tunes the HTTP surface.
type APIConfig struct {
	RateLimitPerMinute int
	MaxBodyBytes       int64
}

// ServerRuntimeConfig holds resolved HTTP server tunables.
type ServerRuntimeConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxHeaderBytes  int
	ShutdownTimeout time.Duration
}

// FileConfig is the strict YAML schema. Pointer fields distinguish "absent"
// from zero values during merging.
type FileConfig struct {
	LogLevel    string `yaml:"logLevel,omitempty"`
	SharedRoot  string `yaml:"sharedRoot,omitempty"`
	ClientMount string `yaml:"clientMount,omitempty"`
	DataDir     string `yaml:"dataDir,omitempty"`

	APIListenAddr string `yaml:"listen,omitempty"`
	MetricsAddr   string `yaml:"metricsListen,omitempty"`
	Bind          string `yaml:"bind,omitempty"`

	Workers     *int `yaml:"workers,omitempty"`
	JPEGQuality *int `yaml:"jpegQuality,omitempty"`

	Session SessionFileConfig `yaml:"session,omitempty"`
	Link    LinkFileConfig    `yaml:"link,omitempty"`
	Redis   RedisFileConfig   `yaml:"redis,omitempty"`
	API     APIFileConfig     `yaml:"api,omitempty"`
	Server  ServerFileConfig  `yaml:"server,omitempty"`
}

// SessionFileConfig mirrors SessionConfig for YAML input.
type SessionFileConfig struct {
	Timeout       *time.Duration `yaml:"timeout,omitempty"`
	SweepInterval *time.Duration `yaml:"sweepInterval,omitempty"`
}

// LinkFileConfig mirrors LinkConfig for YAML input.
type LinkFileConfig struct {
	BaseURL  string         `yaml:"baseURL,omitempty"`
	Timeout  *time.Duration `yaml:"timeout,omitempty"`
	Rate     *float64       `yaml:"rate,omitempty"`
	Burst    *int           `yaml:"burst,omitempty"`
	CacheTTL *time.Duration `yaml:"cacheTTL,omitempty"`
}

// RedisFileConfig mirrors RedisConfig for YAML input.
type RedisFileConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       *int   `yaml:"db,omitempty"`
}

// APIFileConfig mirrors APIConfig for YAML input.
type APIFileConfig struct {
	RateLimitPerMinute *int   `yaml:"rateLimitPerMinute,omitempty"`
	MaxBodyBytes       *int64 `yaml:"maxBodyBytes,omitempty"`
}

// ServerFileConfig mirrors ServerRuntimeConfig for YAML input.
type ServerFileConfig struct {
	ReadTimeout     *time.Duration `yaml:"readTimeout,omitempty"`
	WriteTimeout    *time.Duration `yaml:"writeTimeout,omitempty"`
	IdleTimeout     *time.Duration `yaml:"idleTimeout,omitempty"`
	MaxHeaderBytes  *int           `yaml:"maxHeaderBytes,omitempty"`
	ShutdownTimeout *time.Duration `yaml:"shutdownTimeout,omitempty"`
}
