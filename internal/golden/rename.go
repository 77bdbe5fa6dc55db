// SPDX-License-Identifier: MIT

package golden

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/visualaoi/aoid/internal/log"
	"github.com/visualaoi/aoid/internal/metrics"
)

const tempRenameSuffix = "_temp_rename"

// RenameFolders applies an {old→new} ROI id mapping to golden folders
// in two phases: every source is first parked under a temporary suffix,
// then each temp is moved to its final name, clobbering any
// pre-existing destination. The parking phase makes swaps and shifted
// numberings safe even when targets overlap sources.
func (l *Library) RenameFolders(ctx context.Context, product string, mapping map[int]int) error {
	if err := validateMapping(mapping); err != nil {
		return err
	}
	root, err := l.layout.GoldenRoot(product)
	if err != nil {
		return err
	}
	if _, err := os.Stat(root); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, product)
	}

	// Folder renames exclude every file operation on this product.
	ren := l.renameLock(product)
	ren.Lock()
	defer ren.Unlock()

	olds := make([]int, 0, len(mapping))
	for old, next := range mapping {
		if old != next {
			olds = append(olds, old)
		}
	}
	sort.Ints(olds)

	dir := func(id int) string { return filepath.Join(root, "roi_"+strconv.Itoa(id)) }

	// Phase 1: park every existing source. On failure, roll the parked
	// ones back so the tree is left as found.
	parked := make([]int, 0, len(olds))
	for _, old := range olds {
		src := dir(old)
		if _, err := os.Stat(src); errors.Is(err, os.ErrNotExist) {
			continue
		}
		tmp := src + tempRenameSuffix
		if err := os.RemoveAll(tmp); err != nil {
			l.rollbackParked(dir, parked)
			metrics.IncGoldenOperation("rename", "error")
			return fmt.Errorf("clear stale temp folder: %w", err)
		}
		if err := os.Rename(src, tmp); err != nil {
			l.rollbackParked(dir, parked)
			metrics.IncGoldenOperation("rename", "error")
			return fmt.Errorf("park golden folder roi_%d: %w", old, err)
		}
		parked = append(parked, old)
	}

	// Phase 2: move each parked folder to its destination.
	var errs []error
	renamed := 0
	for _, old := range parked {
		tmp := dir(old) + tempRenameSuffix
		dst := dir(mapping[old])
		if err := os.RemoveAll(dst); err != nil {
			errs = append(errs, fmt.Errorf("clear destination roi_%d: %w", mapping[old], err))
			continue
		}
		if err := os.Rename(tmp, dst); err != nil {
			errs = append(errs, fmt.Errorf("install golden folder roi_%d: %w", mapping[old], err))
			continue
		}
		renamed++
	}

	if len(errs) > 0 {
		metrics.IncGoldenOperation("rename", "error")
		return errors.Join(errs...)
	}

	metrics.IncGoldenOperation("rename", "ok")
	logger := log.WithComponentFromContext(ctx, "golden")
	logger.Info().
		Str("event", "golden.folders_renamed").
		Str(log.FieldProduct, product).
		Int("renamed", renamed).
		Msg("golden folders renamed")
	return nil
}

func (l *Library) rollbackParked(dir func(int) string, parked []int) {
	for _, old := range parked {
		if err := os.Rename(dir(old)+tempRenameSuffix, dir(old)); err != nil {
			l.logger.Error().Err(err).Int(log.FieldROIIndex, old).Msg("rename rollback failed")
		}
	}
}

func validateMapping(mapping map[int]int) error {
	if len(mapping) == 0 {
		return fmt.Errorf("%w: mapping is empty", ErrBadMapping)
	}
	targets := make(map[int]int, len(mapping))
	for old, next := range mapping {
		if old <= 0 || next <= 0 {
			return fmt.Errorf("%w: ids must be positive (%d -> %d)", ErrBadMapping, old, next)
		}
		if prev, dup := targets[next]; dup {
			return fmt.Errorf("%w: both %d and %d map to %d", ErrBadMapping, prev, old, next)
		}
		targets[next] = old
	}
	return nil
}
