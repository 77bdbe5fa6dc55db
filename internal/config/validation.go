// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strings"
)

// Validate checks the merged configuration for values the daemon cannot
// start with. It returns the first problem found.
func Validate(cfg AppConfig) error {
	if strings.TrimSpace(cfg.SharedRoot) == "" {
		return errors.New("sharedRoot must not be empty")
	}
	if !filepath.IsAbs(cfg.SharedRoot) {
		return fmt.Errorf("sharedRoot must be absolute: %s", cfg.SharedRoot)
	}
	if strings.TrimSpace(cfg.ClientMount) == "" {
		return errors.New("clientMount must not be empty")
	}
	if !filepath.IsAbs(cfg.ClientMount) {
		return fmt.Errorf("clientMount must be absolute: %s", cfg.ClientMount)
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return errors.New("dataDir must not be empty")
	}

	if err := validateListenAddr(cfg.APIListenAddr); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	if cfg.MetricsAddr != "" {
		if err := validateListenAddr(cfg.MetricsAddr); err != nil {
			return fmt.Errorf("metricsListen: %w", err)
		}
	}

	if cfg.Workers < 0 {
		return fmt.Errorf("workers must not be negative: %d", cfg.Workers)
	}
	if cfg.JPEGQuality < 1 || cfg.JPEGQuality > 100 {
		return fmt.Errorf("jpegQuality must be in [1,100]: %d", cfg.JPEGQuality)
	}

	if cfg.Session.Timeout <= 0 {
		return errors.New("session.timeout must be positive")
	}
	if cfg.Session.SweepInterval <= 0 {
		return errors.New("session.sweepInterval must be positive")
	}

	if cfg.Link.BaseURL != "" {
		u, err := url.Parse(cfg.Link.BaseURL)
		if err != nil {
			return fmt.Errorf("link.baseURL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("link.baseURL must be http or https: %s", cfg.Link.BaseURL)
		}
		if u.Host == "" {
			return fmt.Errorf("link.baseURL missing host: %s", cfg.Link.BaseURL)
		}
		if cfg.Link.Timeout <= 0 {
			return errors.New("link.timeout must be positive")
		}
		if cfg.Link.Rate <= 0 {
			return errors.New("link.rate must be positive")
		}
		if cfg.Link.Burst < 1 {
			return errors.New("link.burst must be at least 1")
		}
	}

	if cfg.API.RateLimitPerMinute < 0 {
		return errors.New("api.rateLimitPerMinute must not be negative")
	}
	if cfg.API.MaxBodyBytes <= 0 {
		return errors.New("api.maxBodyBytes must be positive")
	}

	return nil
}

func validateListenAddr(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return errors.New("address must not be empty")
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", addr, err)
	}
	if port == "" {
		return fmt.Errorf("missing port in %q", addr)
	}
	if host != "" {
		if ip := net.ParseIP(host); ip == nil {
			// Hostnames are allowed; reject only obviously broken values.
			if strings.ContainsAny(host, " /") {
				return fmt.Errorf("invalid host in %q", addr)
			}
		}
	}
	return nil
}
