// SPDX-License-Identifier: MIT

package golden

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/visualaoi/aoid/internal/log"
	"github.com/visualaoi/aoid/internal/metrics"
)

// Promote copies the named alternative over best_golden.jpg, backing up
// the current best first. The alternative itself stays in place. This
// is the feedback loop: alternatives that keep matching rise to best.
func (l *Library) Promote(ctx context.Context, product string, roi int, alternative string) (SaveResult, error) {
	clean, err := CleanSampleName(alternative)
	if err != nil {
		return SaveResult{}, err
	}
	if clean == BestName {
		return SaveResult{}, fmt.Errorf("%w: %s is already the best", ErrBadName, BestName)
	}
	return l.installCopy(ctx, "promote", product, roi, clean)
}

// Restore installs a specific original_<ts>_old_best.jpg backup as the
// best again, backing up the current best first.
func (l *Library) Restore(ctx context.Context, product string, roi int, backup string) (SaveResult, error) {
	clean, err := CleanSampleName(backup)
	if err != nil {
		return SaveResult{}, err
	}
	if !strings.HasSuffix(clean, "_old_best.jpg") {
		return SaveResult{}, fmt.Errorf("%w: restore source must be an _old_best backup", ErrBadName)
	}
	return l.installCopy(ctx, "restore", product, roi, clean)
}

// installCopy is the shared back-up-then-copy sequence of Promote and
// Restore.
func (l *Library) installCopy(ctx context.Context, op, product string, roi int, source string) (SaveResult, error) {
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

	data, err := os.ReadFile(filepath.Join(dir, source))
	if errors.Is(err, os.ErrNotExist) {
		return SaveResult{}, fmt.Errorf("%w: %s", ErrNotFound, source)
	}
	if err != nil {
		metrics.IncGoldenOperation(op, "error")
		return SaveResult{}, fmt.Errorf("read %s source: %w", op, err)
	}

	backup, err := l.backupBest(dir)
	if err != nil {
		metrics.IncGoldenOperation(op, "error")
		return SaveResult{}, err
	}
	if err := l.writeBest(dir, data); err != nil {
		metrics.IncGoldenOperation(op, "error")
		return SaveResult{}, err
	}

	metrics.IncGoldenOperation(op, "ok")
	logger := log.WithComponentFromContext(ctx, "golden")
	logger.Info().
		Str("event", "golden."+op).
		Str(log.FieldProduct, product).
		Int(log.FieldROIIndex, roi).
		Str("source", source).
		Str("backup", backup).
		Msg("golden sample installed as best")
	return SaveResult{Written: BestName, Backup: backup}, nil
}
