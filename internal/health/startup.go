// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/visualaoi/aoid/internal/config"
	"github.com/visualaoi/aoid/internal/log"
)

// PerformStartupChecks validates the environment and dependencies before starting the server.
func PerformStartupChecks(ctx context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("Running pre-flight startup checks...")

	// 1. Shared folder must exist and accept writes; sessions and crops
	//    land there.
	if err := checkWritableDir(logger, "shared root", cfg.SharedRoot); err != nil {
		return fmt.Errorf("shared root check failed: %w", err)
	}

	// 2. Data directory holds the result archive and stats database.
	if err := ensureDataDir(logger, cfg.DataDir); err != nil {
		return fmt.Errorf("data directory check failed: %w", err)
	}

	// 3. Targeted Validations
	if err := checkTargetedValidations(logger, cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	logger.Info().Msg("✅ All startup checks passed")
	return nil
}

func checkWritableDir(logger zerolog.Logger, label, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", path)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	// Check write permissions by creating a temp file
	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0600); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	_ = os.Remove(testFile)

	logger.Info().Str("path", path).Msgf("✓ %s is writable", label)
	return nil
}

// ensureDataDir creates the daemon-local state directory if needed and
// verifies writability.
func ensureDataDir(logger zerolog.Logger, path string) error {
	if !filepath.IsAbs(path) {
		return fmt.Errorf("data directory must be an absolute path: %s", path)
	}
	if err := os.MkdirAll(path, 0750); err != nil {
		return fmt.Errorf("failed to ensure data directory %s: %w", path, err)
	}
	return checkWritableDir(logger, "data directory", path)
}

// checkTargetedValidations performs security and runtime-critical validations
func checkTargetedValidations(logger zerolog.Logger, cfg config.AppConfig) error {
	// a. Listen Address (Parseable)
	if cfg.APIListenAddr != "" {
		_, port, err := net.SplitHostPort(cfg.APIListenAddr)
		if err != nil {
			return fmt.Errorf("invalid API listen address %q: %w", cfg.APIListenAddr, err)
		}
		portNum, err := strconv.Atoi(port)
		if err != nil || portNum < 0 || portNum > 65535 {
			return fmt.Errorf("invalid API listen port %q in %q", port, cfg.APIListenAddr)
		}
		logger.Info().Str("addr", cfg.APIListenAddr).Msg("✓ API listen address is valid")
	}

	// b. Link service base URL (Syntax + Scheme)
	if cfg.Link.BaseURL == "" {
		logger.Warn().Msg("link service base URL not configured; barcodes stay unlinked")
	} else {
		u, err := url.Parse(cfg.Link.BaseURL)
		if err != nil {
			return fmt.Errorf("invalid AOI_LINK_BASE_URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("AOI_LINK_BASE_URL scheme must be http or https, got: %s", u.Scheme)
		}
		logger.Info().Str("url", cfg.Link.BaseURL).Msg("✓ link service base URL is valid")
	}

	// c. Client mount prefix must be absolute; it is string-rewritten
	//    against the shared root on every request.
	if cfg.ClientMount != "" && !strings.HasPrefix(cfg.ClientMount, "/") {
		return fmt.Errorf("client mount must be an absolute path: %s", cfg.ClientMount)
	}

	// d. Worker pool and JPEG quality bounds
	if cfg.Workers < 0 {
		return fmt.Errorf("workers must not be negative (got %d)", cfg.Workers)
	}
	if cfg.JPEGQuality < 1 || cfg.JPEGQuality > 100 {
		return fmt.Errorf("jpeg quality must be within [1, 100] (got %d)", cfg.JPEGQuality)
	}

	// e. Data directory under temp loses archives on reboot; warn only.
	tempDir := filepath.Clean(os.TempDir())
	dataDir := filepath.Clean(cfg.DataDir)
	if tempDir != "." && (dataDir == tempDir || strings.HasPrefix(dataDir, tempDir+string(filepath.Separator))) {
		logger.Warn().
			Str("data_dir", cfg.DataDir).
			Msg("data directory is under temp; archived results may be lost on reboot")
	}

	return nil
}
