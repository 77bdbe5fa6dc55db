// SPDX-License-Identifier: MIT

// Package golden owns the versioned reference-image store for Compare
// ROIs. Each ROI has one directory holding at most one best_golden.jpg
// plus timestamped alternatives; every mutation keeps a recoverable
// backup so a crash mid-sequence never loses the previous best.
package golden

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	"github.com/visualaoi/aoid/internal/imaging"
	"github.com/visualaoi/aoid/internal/log"
	"github.com/visualaoi/aoid/internal/metrics"
	aoifs "github.com/visualaoi/aoid/internal/platform/fs"
)

// BestName is the filename of the active reference image.
const BestName = "best_golden.jpg"

var sampleNameRe = regexp.MustCompile(`^(best_golden|original_[0-9]+(_old_best)?)\.jpg$`)

// Layout resolves product directories on the shared filesystem.
// *product.Store satisfies it.
type Layout interface {
	GoldenRoot(product string) (string, error)
}

// Sample describes one file in a golden folder.
type Sample struct {
	Name     string    `json:"name"`
	IsBest   bool      `json:"is_best"`
	Size     int64     `json:"size_bytes"`
	Modified time.Time `json:"modified"`
}

// SampleDetail adds the decoded image dimensions for the metadata view.
type SampleDetail struct {
	Sample
	Width  int `json:"width"`
	Height int `json:"height"`
}

// SaveResult reports what a save or promote sequence touched.
type SaveResult struct {
	Written string `json:"written"`
	Backup  string `json:"backup,omitempty"`
}

// Library serializes operations per ROI directory while letting
// different directories proceed in parallel. Folder renames exclude
// all file operations on the same product.
type Library struct {
	layout Layout
	logger zerolog.Logger

	mu      sync.Mutex
	dirs    map[string]*sync.Mutex
	renames map[string]*sync.RWMutex

	now func() int64
}

// NewLibrary builds a Library over the given product layout.
func NewLibrary(layout Layout) *Library {
	return &Library{
		layout:  layout,
		logger:  log.WithComponent("golden"),
		dirs:    make(map[string]*sync.Mutex),
		renames: make(map[string]*sync.RWMutex),
		now:     func() int64 { return time.Now().Unix() },
	}
}

func (l *Library) dirLock(product string, roi int) *sync.Mutex {
	key := product + "/roi_" + strconv.Itoa(roi)
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.dirs[key]
	if !ok {
		m = &sync.Mutex{}
		l.dirs[key] = m
	}
	return m
}

func (l *Library) renameLock(product string) *sync.RWMutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.renames[product]
	if !ok {
		m = &sync.RWMutex{}
		l.renames[product] = m
	}
	return m
}

// roiDir returns the golden directory for an ROI, which may not exist.
func (l *Library) roiDir(product string, roi int) (string, error) {
	if roi <= 0 {
		return "", fmt.Errorf("%w: roi id %d", ErrNotFound, roi)
	}
	root, err := l.layout.GoldenRoot(product)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "roi_"+strconv.Itoa(roi)), nil
}

// CleanSampleName validates a client-supplied sample filename.
func CleanSampleName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if !sampleNameRe.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrBadName, raw)
	}
	return name, nil
}

// Save installs data as the new best golden. An existing best is first
// renamed to original_<now>_old_best.jpg: a crash between the two steps
// leaves a recoverable backup, never a missing best.
func (l *Library) Save(ctx context.Context, product string, roi int, data []byte) (SaveResult, error) {
	if len(data) == 0 {
		return SaveResult{}, ErrEmptyUpload
	}
	dir, err := l.roiDir(product, roi)
	if err != nil {
		return SaveResult{}, err
	}

	ren := l.renameLock(product)
	ren.RLock()
	defer ren.RUnlock()
	dl := l.dirLock(product, roi)
	dl.Lock()
	defer dl.Unlock()

	if err := os.MkdirAll(dir, 0o750); err != nil {
		metrics.IncGoldenOperation("save", "error")
		return SaveResult{}, fmt.Errorf("create golden dir: %w", err)
	}

	backup, err := l.backupBest(dir)
	if err != nil {
		metrics.IncGoldenOperation("save", "error")
		return SaveResult{}, err
	}
	if err := l.writeBest(dir, data); err != nil {
		metrics.IncGoldenOperation("save", "error")
		return SaveResult{}, err
	}

	metrics.IncGoldenOperation("save", "ok")
	logger := log.WithComponentFromContext(ctx, "golden")
	logger.Info().
		Str("event", "golden.saved").
		Str(log.FieldProduct, product).
		Int(log.FieldROIIndex, roi).
		Str("backup", backup).
		Int("bytes", len(data)).
		Msg("new best golden installed")
	return SaveResult{Written: BestName, Backup: backup}, nil
}

// backupBest renames an existing best out of the way and returns the
// backup name, or "" when there was no best.
func (l *Library) backupBest(dir string) (string, error) {
	best := filepath.Join(dir, BestName)
	if _, err := os.Lstat(best); errors.Is(err, os.ErrNotExist) {
		return "", nil
	} else if err != nil {
		return "", fmt.Errorf("stat best golden: %w", err)
	}
	name := l.freeBackupName(dir)
	if err := os.Rename(best, filepath.Join(dir, name)); err != nil {
		return "", fmt.Errorf("back up best golden: %w", err)
	}
	return name, nil
}

// freeBackupName picks an unused original_<ts>_old_best.jpg name,
// bumping the timestamp on collision.
func (l *Library) freeBackupName(dir string) string {
	ts := l.now()
	for {
		name := fmt.Sprintf("original_%d_old_best.jpg", ts)
		if _, err := os.Lstat(filepath.Join(dir, name)); errors.Is(err, os.ErrNotExist) {
			return name
		}
		ts++
	}
}

// writeBest writes best_golden.jpg atomically: temp file, fsync, rename.
func (l *Library) writeBest(dir string, data []byte) error {
	pending, err := renameio.NewPendingFile(filepath.Join(dir, BestName))
	if err != nil {
		return fmt.Errorf("create pending golden: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			l.logger.Debug().Err(err).Msg("cleanup pending golden")
		}
	}()
	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("write golden data: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace golden: %w", err)
	}
	return nil
}

// List enumerates a golden folder, best first, newest alternatives next.
func (l *Library) List(ctx context.Context, product string, roi int) ([]Sample, error) {
	dir, err := l.roiDir(product, roi)
	if err != nil {
		return nil, err
	}

	ren := l.renameLock(product)
	ren.RLock()
	defer ren.RUnlock()
	dl := l.dirLock(product, roi)
	dl.Lock()
	defer dl.Unlock()

	return l.listLocked(product, roi, dir)
}

func (l *Library) listLocked(product string, roi int, dir string) ([]Sample, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s roi %d", ErrNotFound, product, roi)
	}
	if err != nil {
		return nil, fmt.Errorf("read golden dir: %w", err)
	}

	samples := make([]Sample, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !sampleNameRe.MatchString(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		samples = append(samples, Sample{
			Name:     e.Name(),
			IsBest:   e.Name() == BestName,
			Size:     info.Size(),
			Modified: info.ModTime().UTC(),
		})
	}
	sortSamples(samples)
	return samples, nil
}

// sortSamples orders best first, then alternatives by embedded
// timestamp descending, name as tie-break.
func sortSamples(samples []Sample) {
	sort.Slice(samples, func(i, j int) bool {
		if samples[i].IsBest != samples[j].IsBest {
			return samples[i].IsBest
		}
		ti, tj := sampleTimestamp(samples[i].Name), sampleTimestamp(samples[j].Name)
		if ti != tj {
			return ti > tj
		}
		return samples[i].Name > samples[j].Name
	})
}

func sampleTimestamp(name string) int64 {
	rest, ok := strings.CutPrefix(name, "original_")
	if !ok {
		return 0
	}
	digits, _, _ := strings.Cut(rest, "_")
	digits = strings.TrimSuffix(digits, ".jpg")
	ts, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0
	}
	return ts
}

// Metadata lists a golden folder with decoded image dimensions.
func (l *Library) Metadata(ctx context.Context, product string, roi int) ([]SampleDetail, error) {
	dir, err := l.roiDir(product, roi)
	if err != nil {
		return nil, err
	}

	ren := l.renameLock(product)
	ren.RLock()
	defer ren.RUnlock()
	dl := l.dirLock(product, roi)
	dl.Lock()
	defer dl.Unlock()

	samples, err := l.listLocked(product, roi, dir)
	if err != nil {
		return nil, err
	}
	details := make([]SampleDetail, 0, len(samples))
	for _, s := range samples {
		d := SampleDetail{Sample: s}
		w, h, err := imaging.DecodeConfigFile(filepath.Join(dir, s.Name))
		if err != nil {
			l.logger.Warn().Err(err).
				Str(log.FieldProduct, product).
				Int(log.FieldROIIndex, roi).
				Str("sample", s.Name).
				Msg("golden sample header unreadable")
		} else {
			d.Width, d.Height = w, h
		}
		details = append(details, d)
	}
	return details, nil
}

// Open returns a handle on one sample for streaming downloads. The
// name is validated and confined to the ROI directory.
func (l *Library) Open(ctx context.Context, product string, roi int, name string) (*os.File, error) {
	clean, err := CleanSampleName(name)
	if err != nil {
		return nil, err
	}
	dir, err := l.roiDir(product, roi)
	if err != nil {
		return nil, err
	}

	ren := l.renameLock(product)
	ren.RLock()
	defer ren.RUnlock()
	dl := l.dirLock(product, roi)
	dl.Lock()
	defer dl.Unlock()

	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s roi %d", ErrNotFound, product, roi)
	}
	path, err := aoifs.ConfineRelPath(dir, clean)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrBadName, name)
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, clean)
	}
	if err != nil {
		return nil, fmt.Errorf("open golden sample: %w", err)
	}
	return f, nil
}

// Delete removes one sample. Deleting the only remaining file is
// forbidden: a non-empty golden folder must never be emptied here.
func (l *Library) Delete(ctx context.Context, product string, roi int, name string) error {
	clean, err := CleanSampleName(name)
	if err != nil {
		return err
	}
	dir, err := l.roiDir(product, roi)
	if err != nil {
		return err
	}

	ren := l.renameLock(product)
	ren.RLock()
	defer ren.RUnlock()
	dl := l.dirLock(product, roi)
	dl.Lock()
	defer dl.Unlock()

	samples, err := l.listLocked(product, roi, dir)
	if err != nil {
		metrics.IncGoldenOperation("delete", "error")
		return err
	}
	found := false
	for _, s := range samples {
		if s.Name == clean {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrNotFound, clean)
	}
	if len(samples) <= 1 {
		metrics.IncGoldenOperation("delete", "rejected")
		return fmt.Errorf("%w: %s roi %d", ErrLastSample, product, roi)
	}
	if err := os.Remove(filepath.Join(dir, clean)); err != nil {
		metrics.IncGoldenOperation("delete", "error")
		return fmt.Errorf("delete golden sample: %w", err)
	}

	metrics.IncGoldenOperation("delete", "ok")
	logger := log.WithComponentFromContext(ctx, "golden")
	logger.Info().
		Str("event", "golden.deleted").
		Str(log.FieldProduct, product).
		Int(log.FieldROIIndex, roi).
		Str("sample", clean).
		Msg("golden sample deleted")
	return nil
}

// ListPaths returns absolute sample paths for an ROI, best first. A
// missing directory yields an empty list: a Compare ROI without goldens
// is reported as Different, not as an error.
func (l *Library) ListPaths(ctx context.Context, product string, roi int) ([]string, error) {
	dir, err := l.roiDir(product, roi)
	if err != nil {
		return nil, err
	}

	ren := l.renameLock(product)
	ren.RLock()
	defer ren.RUnlock()
	dl := l.dirLock(product, roi)
	dl.Lock()
	defer dl.Unlock()

	samples, err := l.listLocked(product, roi, dir)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(samples))
	for i, s := range samples {
		paths[i] = filepath.Join(dir, s.Name)
	}
	return paths, nil
}
