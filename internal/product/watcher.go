// SPDX-License-Identifier: MIT

package product

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// StartWatcher drops cached configs when files beneath the products
// tree change. Operators edit config JSON directly on the shared mount,
// so the cache cannot trust its entries across external writes.
func (s *Store) StartWatcher(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(s.productsDir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch products dir: %w", err)
	}

	s.mu.Lock()
	s.watcher = watcher
	s.mu.Unlock()

	s.logger.Info().
		Str("event", "product.watcher_started").
		Str("path", s.productsDir).
		Msg("watching product configs for external changes")

	go s.watchLoop(ctx, watcher)
	return nil
}

func (s *Store) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Str("event", "product.watcher_stopped").Msg("product watcher stopped")
			_ = watcher.Close()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				s.invalidate(s.productOf(event.Name))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error().Err(err).Str("event", "product.watcher_error").Msg("product watcher error")
		}
	}
}

// productOf maps an event path to the product directory it belongs to.
func (s *Store) productOf(path string) string {
	rel, err := filepath.Rel(s.productsDir, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return ""
	}
	return strings.Split(rel, string(filepath.Separator))[0]
}

func (s *Store) invalidate(name string) {
	if name == "" {
		return
	}
	s.mu.Lock()
	_, had := s.cache[name]
	delete(s.cache, name)
	s.mu.Unlock()
	if had {
		s.logger.Debug().
			Str("event", "product.cache_invalidated").
			Str("product", name).
			Msg("cached config dropped after filesystem change")
	}
}

// watchProduct registers a product directory after its first load so
// config edits inside it are seen. Safe to call repeatedly.
func (s *Store) watchProduct(name string) {
	s.mu.Lock()
	watcher := s.watcher
	s.mu.Unlock()
	if watcher == nil {
		return
	}
	if err := watcher.Add(filepath.Join(s.productsDir, name)); err != nil {
		s.logger.Warn().Err(err).Str("product", name).Msg("watch product dir")
	}
}

// Close stops the filesystem watcher if one was started.
func (s *Store) Close() error {
	s.mu.Lock()
	watcher := s.watcher
	s.watcher = nil
	s.mu.Unlock()
	if watcher == nil {
		return nil
	}
	return watcher.Close()
}
