// SPDX-License-Identifier: MIT

package product

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	"github.com/visualaoi/aoid/internal/log"
	"github.com/visualaoi/aoid/internal/metrics"
)

var nameRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidName reports whether name is usable as a product directory name.
func ValidName(name string) bool { return nameRe.MatchString(name) }

// Store manages ROI and color configurations beneath
// <root>/config/products. Loads are cached per product until a Save,
// Create or filesystem event invalidates the entry. Inspections take
// the per-product read lock, Save and Create take the write lock.
type Store struct {
	productsDir string
	logger      zerolog.Logger

	mu      sync.Mutex
	locks   map[string]*sync.RWMutex
	cache   map[string][]ROI
	watcher *fsnotify.Watcher
}

// NewStore prepares the products directory beneath the shared root.
func NewStore(sharedRoot string) (*Store, error) {
	dir := filepath.Join(sharedRoot, "config", "products")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create products dir: %w", err)
	}
	return &Store{
		productsDir: dir,
		logger:      log.WithComponent("product"),
		locks:       make(map[string]*sync.RWMutex),
		cache:       make(map[string][]ROI),
	}, nil
}

// Dir returns the directory of a product, which may not exist yet.
func (s *Store) Dir(name string) (string, error) {
	if !ValidName(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(s.productsDir, name), nil
}

// GoldenRoot returns the golden sample tree of a product.
func (s *Store) GoldenRoot(name string) (string, error) {
	dir, err := s.Dir(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "golden_rois"), nil
}

func (s *Store) lockFor(name string) *sync.RWMutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.RWMutex{}
		s.locks[name] = l
	}
	return l
}

func (s *Store) configPath(name string) string {
	return filepath.Join(s.productsDir, name, "rois_config_"+name+".json")
}

func (s *Store) colorsPath(name string) string {
	return filepath.Join(s.productsDir, name, "colors_config_"+name+".json")
}

// Load returns the normalized ROI config for a product. The result is
// a deep copy; callers may mutate it freely.
func (s *Store) Load(ctx context.Context, name string) ([]ROI, error) {
	rois, release, err := s.Snapshot(ctx, name)
	if err != nil {
		return nil, err
	}
	release()
	return rois, nil
}

// Snapshot returns the config with the per-product read lock held, so
// Save and Create wait until release is called. Inspections hold the
// snapshot for their whole run; golden folders referenced by the
// returned ROIs cannot be garbage-collected underneath them.
func (s *Store) Snapshot(ctx context.Context, name string) ([]ROI, func(), error) {
	if !ValidName(name) {
		return nil, nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	lock := s.lockFor(name)
	lock.RLock()
	rois, err := s.loadLocked(ctx, name)
	if err != nil {
		lock.RUnlock()
		return nil, nil, err
	}

	var once sync.Once
	return rois, func() { once.Do(lock.RUnlock) }, nil
}

// loadLocked requires the product's read or write lock.
func (s *Store) loadLocked(ctx context.Context, name string) ([]ROI, error) {
	s.mu.Lock()
	cached, ok := s.cache[name]
	s.mu.Unlock()
	if ok {
		return CloneROIs(cached), nil
	}

	rois, err := s.readConfig(name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[name] = CloneROIs(rois)
	s.mu.Unlock()
	s.watchProduct(name)

	logger := log.WithComponentFromContext(ctx, "product")
	logger.Debug().
		Str("event", "product.config_loaded").
		Str(log.FieldProduct, name).
		Int("rois", len(rois)).
		Msg("roi config loaded from disk")
	return rois, nil
}

func (s *Store) readConfig(name string) ([]ROI, error) {
	data, err := os.ReadFile(s.configPath(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read roi config: %w", err)
	}
	var rois []ROI
	if err := json.Unmarshal(data, &rois); err != nil {
		return nil, fmt.Errorf("parse roi config for %q: %w", name, err)
	}
	NormalizeAll(rois)
	if err := ValidateStored(rois); err != nil {
		return nil, fmt.Errorf("stored config for %q is invalid: %w", name, err)
	}
	return rois, nil
}

// Save validates and atomically replaces the product's ROI config,
// then removes golden folders whose ROI index disappeared from the
// config. The returned list holds the removed folder names ("roi_3").
func (s *Store) Save(ctx context.Context, name string, rois []ROI) ([]string, error) {
	if !ValidName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	lock := s.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	if _, err := os.Stat(filepath.Join(s.productsDir, name)); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	} else if err != nil {
		return nil, fmt.Errorf("stat product dir: %w", err)
	}

	rois = CloneROIs(rois)
	NormalizeAll(rois)
	if err := ValidateROIs(rois); err != nil {
		metrics.IncConfigWrite("rejected")
		return nil, err
	}

	// Old index set is read leniently: Save must be able to replace a
	// hand-edited config that no longer parses.
	oldSet := s.previousIndexes(name)

	if err := s.writeJSON(s.configPath(name), rois); err != nil {
		metrics.IncConfigWrite("error")
		return nil, err
	}

	deleted := s.collectGarbage(name, oldSet, rois)

	s.mu.Lock()
	s.cache[name] = CloneROIs(rois)
	s.mu.Unlock()
	s.watchProduct(name)

	metrics.IncConfigWrite("ok")
	logger := log.WithComponentFromContext(ctx, "product")
	logger.Info().
		Str("event", "product.config_saved").
		Str(log.FieldProduct, name).
		Int("rois", len(rois)).
		Strs("deleted_roi_folders", deleted).
		Msg("roi config saved")
	return deleted, nil
}

// previousIndexes best-effort parses the current config file for its
// idx values. A missing or unparseable file yields an empty set.
func (s *Store) previousIndexes(name string) map[int]bool {
	data, err := os.ReadFile(s.configPath(name))
	if err != nil {
		return nil
	}
	var raw []struct {
		Index int `json:"idx"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	set := make(map[int]bool, len(raw))
	for _, r := range raw {
		if r.Index > 0 {
			set[r.Index] = true
		}
	}
	return set
}

func (s *Store) collectGarbage(name string, old map[int]bool, rois []ROI) []string {
	deleted := make([]string, 0, len(old))
	if len(old) == 0 {
		return deleted
	}
	keep := make(map[int]bool, len(rois))
	for i := range rois {
		keep[rois[i].Index] = true
	}
	var orphans []int
	for idx := range old {
		if !keep[idx] {
			orphans = append(orphans, idx)
		}
	}
	sort.Ints(orphans)

	goldenRoot := filepath.Join(s.productsDir, name, "golden_rois")
	for _, idx := range orphans {
		folder := fmt.Sprintf("roi_%d", idx)
		if err := os.RemoveAll(filepath.Join(goldenRoot, folder)); err != nil {
			s.logger.Warn().Err(err).
				Str(log.FieldProduct, name).
				Str("folder", folder).
				Msg("golden folder gc failed")
			metrics.IncGoldenOperation("gc", "error")
			continue
		}
		metrics.IncGoldenOperation("gc", "ok")
		deleted = append(deleted, folder)
	}
	return deleted
}

// Create seeds a new product with three ROIs per device slot (Barcode,
// Compare, OCR) and returns the seeded config.
func (s *Store) Create(ctx context.Context, name string, numDevices int) ([]ROI, error) {
	if !ValidName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if numDevices == 0 {
		numDevices = 1
	}
	if numDevices < 1 || numDevices > MaxDeviceLocation {
		return nil, ValidationErrors{fmt.Sprintf("num_devices must be between 1 and %d (got %d)", MaxDeviceLocation, numDevices)}
	}

	lock := s.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	if _, err := os.Stat(s.configPath(name)); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrExists, name)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat roi config: %w", err)
	}

	dir := filepath.Join(s.productsDir, name)
	if err := os.MkdirAll(filepath.Join(dir, "golden_rois"), 0o750); err != nil {
		return nil, fmt.Errorf("create product dirs: %w", err)
	}

	rois := SeedROIs(numDevices)
	if err := s.writeJSON(s.configPath(name), rois); err != nil {
		metrics.IncConfigWrite("error")
		return nil, err
	}

	s.mu.Lock()
	s.cache[name] = CloneROIs(rois)
	s.mu.Unlock()
	s.watchProduct(name)

	metrics.IncConfigWrite("ok")
	logger := log.WithComponentFromContext(ctx, "product")
	logger.Info().
		Str("event", "product.created").
		Str(log.FieldProduct, name).
		Int("devices", numDevices).
		Int("rois", len(rois)).
		Msg("product created with default rois")
	return rois, nil
}

// ListProducts scans the products directory. A directory counts as a
// product when it contains its rois_config_<name>.json.
func (s *Store) ListProducts(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.productsDir)
	if err != nil {
		return nil, fmt.Errorf("scan products: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || !ValidName(e.Name()) {
			continue
		}
		if _, err := os.Stat(s.configPath(e.Name())); err == nil {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Colors returns the product-level color config. Color ROIs without an
// embedded color_config fall back to it during analysis.
//
// Colors never takes the per-product lock: pool workers call it while
// the orchestrator holds a Snapshot of the same product, and a queued
// SaveColors would wedge both. The colors file lands by atomic rename,
// so an unlocked read is always a complete document; SaveColors still
// takes the write lock and therefore cannot land mid-inspection.
func (s *Store) Colors(ctx context.Context, name string) (*ColorConfig, error) {
	if !ValidName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	data, err := os.ReadFile(s.colorsPath(name))
	if errors.Is(err, os.ErrNotExist) {
		if _, serr := os.Stat(filepath.Join(s.productsDir, name)); errors.Is(serr, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("%w: colors config for %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read colors config: %w", err)
	}

	var cc ColorConfig
	if err := json.Unmarshal(data, &cc); err != nil {
		return nil, fmt.Errorf("parse colors config for %q: %w", name, err)
	}
	if problems := validateColorConfig(&cc); len(problems) > 0 {
		return nil, fmt.Errorf("stored colors config for %q is invalid: %w", name, ValidationErrors(problems))
	}
	return &cc, nil
}

// SaveColors validates and atomically writes the product color config.
func (s *Store) SaveColors(ctx context.Context, name string, cc *ColorConfig) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if cc == nil {
		return ValidationErrors{"color config body is required"}
	}

	lock := s.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	if _, err := os.Stat(filepath.Join(s.productsDir, name)); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	} else if err != nil {
		return fmt.Errorf("stat product dir: %w", err)
	}

	if problems := validateColorConfig(cc); len(problems) > 0 {
		metrics.IncConfigWrite("rejected")
		return ValidationErrors(problems)
	}
	cc = cc.Clone()
	normalizeColorConfig(cc)

	if err := s.writeJSON(s.colorsPath(name), cc); err != nil {
		metrics.IncConfigWrite("error")
		return err
	}

	metrics.IncConfigWrite("ok")
	logger := log.WithComponentFromContext(ctx, "product")
	logger.Info().
		Str("event", "product.colors_saved").
		Str(log.FieldProduct, name).
		Msg("colors config saved")
	return nil
}

// writeJSON writes v atomically: temp file, fsync, rename.
func (s *Store) writeJSON(path string, v any) error {
	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending config: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			s.logger.Debug().Err(err).Msg("cleanup pending config")
		}
	}()

	enc := json.NewEncoder(pending)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace config: %w", err)
	}
	return nil
}
