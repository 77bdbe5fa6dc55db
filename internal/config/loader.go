// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence.
type Loader struct {
	configPath string
	version    string
}

// NewLoader creates a new configuration loader. configPath may be empty.
func NewLoader(configPath, version string) *Loader {
	return &Loader{configPath: configPath, version: version}
}

// Load loads configuration with precedence: ENV > File > Defaults.
// Order is fixed: set defaults, strict-parse the file, apply env, validate.
func (l *Loader) Load() (AppConfig, error) {
	cfg := defaults()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		mergeFileConfig(&cfg, fileCfg)
	}

	mergeEnvConfig(&cfg)

	// Roots must be absolute so confinement checks and state files are
	// independent of the working directory.
	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	if abs, err := filepath.Abs(cfg.SharedRoot); err == nil {
		cfg.SharedRoot = abs
	}
	if abs, err := filepath.Abs(cfg.ClientMount); err == nil {
		cfg.ClientMount = abs
	}

	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func defaults() AppConfig {
	return AppConfig{
		SharedRoot:    DefaultSharedRoot,
		ClientMount:   DefaultClientMount,
		DataDir:       DefaultDataDir,
		APIListenAddr: DefaultListenAddr,
		JPEGQuality:   DefaultJPEGQuality,
		Session: SessionConfig{
			Timeout:       DefaultSessionTimeout,
			SweepInterval: DefaultSweepInterval,
		},
		Link: LinkConfig{
			Timeout:  DefaultLinkTimeout,
			Rate:     DefaultLinkRate,
			Burst:    DefaultLinkBurst,
			CacheTTL: DefaultLinkCacheTTL,
		},
		API: APIConfig{
			RateLimitPerMinute: DefaultAPIRateLimit,
			MaxBodyBytes:       DefaultMaxBodyBytes,
		},
		Server: defaultServerRuntimeConfig(),
	}
}

// loadFile loads configuration from a YAML file with STRICT parsing.
// Unknown fields cause a fatal error to prevent misconfiguration.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if err == io.EOF {
			return &FileConfig{}, nil
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	// Strict: reject multiple documents or trailing content.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}

	return &fileCfg, nil
}

func mergeFileConfig(cfg *AppConfig, file *FileConfig) {
	if file == nil {
		return
	}
	if file.LogLevel != "" {
		cfg.LogLevel = file.LogLevel
	}
	if file.SharedRoot != "" {
		cfg.SharedRoot = file.SharedRoot
	}
	if file.ClientMount != "" {
		cfg.ClientMount = file.ClientMount
	}
	if file.DataDir != "" {
		cfg.DataDir = file.DataDir
	}
	if file.APIListenAddr != "" {
		cfg.APIListenAddr = file.APIListenAddr
	}
	if file.MetricsAddr != "" {
		cfg.MetricsAddr = file.MetricsAddr
	}
	if file.Bind != "" {
		cfg.Bind = file.Bind
	}
	if file.Workers != nil {
		cfg.Workers = *file.Workers
	}
	if file.JPEGQuality != nil {
		cfg.JPEGQuality = *file.JPEGQuality
	}

	if file.Session.Timeout != nil {
		cfg.Session.Timeout = *file.Session.Timeout
	}
	if file.Session.SweepInterval != nil {
		cfg.Session.SweepInterval = *file.Session.SweepInterval
	}

	if file.Link.BaseURL != "" {
		cfg.Link.BaseURL = file.Link.BaseURL
	}
	if file.Link.Timeout != nil {
		cfg.Link.Timeout = *file.Link.Timeout
	}
	if file.Link.Rate != nil {
		cfg.Link.Rate = *file.Link.Rate
	}
	if file.Link.Burst != nil {
		cfg.Link.Burst = *file.Link.Burst
	}
	if file.Link.CacheTTL != nil {
		cfg.Link.CacheTTL = *file.Link.CacheTTL
	}

	if file.Redis.Addr != "" {
		cfg.Redis.Addr = file.Redis.Addr
	}
	if file.Redis.Password != "" {
		cfg.Redis.Password = file.Redis.Password
	}
	if file.Redis.DB != nil {
		cfg.Redis.DB = *file.Redis.DB
	}

	if file.API.RateLimitPerMinute != nil {
		cfg.API.RateLimitPerMinute = *file.API.RateLimitPerMinute
	}
	if file.API.MaxBodyBytes != nil {
		cfg.API.MaxBodyBytes = *file.API.MaxBodyBytes
	}

	if file.Server.ReadTimeout != nil {
		cfg.Server.ReadTimeout = *file.Server.ReadTimeout
	}
	if file.Server.WriteTimeout != nil {
		cfg.Server.WriteTimeout = *file.Server.WriteTimeout
	}
	if file.Server.IdleTimeout != nil {
		cfg.Server.IdleTimeout = *file.Server.IdleTimeout
	}
	if file.Server.MaxHeaderBytes != nil {
		cfg.Server.MaxHeaderBytes = *file.Server.MaxHeaderBytes
	}
	if file.Server.ShutdownTimeout != nil {
		cfg.Server.ShutdownTimeout = *file.Server.ShutdownTimeout
	}
}

func mergeEnvConfig(cfg *AppConfig) {
	cfg.LogLevel = ParseString("AOI_LOG_LEVEL", cfg.LogLevel)
	cfg.SharedRoot = ParseString("AOI_SHARED_ROOT", cfg.SharedRoot)
	cfg.ClientMount = ParseString("AOI_CLIENT_MOUNT", cfg.ClientMount)
	cfg.DataDir = ParseString("AOI_DATA_DIR", cfg.DataDir)
	cfg.APIListenAddr = ParseString("AOI_LISTEN", cfg.APIListenAddr)
	cfg.MetricsAddr = ParseString("AOI_METRICS_LISTEN", cfg.MetricsAddr)
	cfg.Bind = ParseString("AOI_BIND", cfg.Bind)
	cfg.Workers = ParseInt("AOI_WORKERS", cfg.Workers)
	cfg.JPEGQuality = ParseInt("AOI_JPEG_QUALITY", cfg.JPEGQuality)

	cfg.Session.Timeout = ParseDuration("AOI_SESSION_TIMEOUT", cfg.Session.Timeout)
	cfg.Session.SweepInterval = ParseDuration("AOI_SESSION_SWEEP_INTERVAL", cfg.Session.SweepInterval)

	cfg.Link.BaseURL = ParseString("AOI_LINK_URL", cfg.Link.BaseURL)
	cfg.Link.Timeout = ParseDuration("AOI_LINK_TIMEOUT", cfg.Link.Timeout)
	cfg.Link.Rate = ParseFloat("AOI_LINK_RATE", cfg.Link.Rate)
	cfg.Link.Burst = ParseInt("AOI_LINK_BURST", cfg.Link.Burst)
	cfg.Link.CacheTTL = ParseDuration("AOI_LINK_CACHE_TTL", cfg.Link.CacheTTL)

	cfg.Redis.Addr = ParseString("AOI_REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = ParseString("AOI_REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = ParseInt("AOI_REDIS_DB", cfg.Redis.DB)

	cfg.API.RateLimitPerMinute = ParseInt("AOI_API_RATE_LIMIT", cfg.API.RateLimitPerMinute)
	if v := ParseInt("AOI_API_MAX_BODY_BYTES", int(cfg.API.MaxBodyBytes)); v > 0 {
		cfg.API.MaxBodyBytes = int64(v)
	}

	cfg.Server.ReadTimeout = ParseDuration("AOI_SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = ParseDuration("AOI_SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = ParseDuration("AOI_SERVER_IDLE_TIMEOUT", cfg.Server.IdleTimeout)
	cfg.Server.MaxHeaderBytes = ParseInt("AOI_SERVER_MAX_HEADER_BYTES", cfg.Server.MaxHeaderBytes)
	cfg.Server.ShutdownTimeout = ParseDuration("AOI_SERVER_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	if cfg.Server.ShutdownTimeout < 3*time.Second {
		cfg.Server.ShutdownTimeout = 3 * time.Second
	}
}

// LoadFileConfig loads a YAML config file without applying defaults or env overrides.
func LoadFileConfig(path string) (*FileConfig, error) {
	loader := NewLoader(path, "")
	return loader.loadFile(path)
}
