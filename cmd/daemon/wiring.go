// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/visualaoi/aoid/internal/analyzer"
	"github.com/visualaoi/aoid/internal/api"
	"github.com/visualaoi/aoid/internal/audit"
	"github.com/visualaoi/aoid/internal/cache"
	"github.com/visualaoi/aoid/internal/config"
	"github.com/visualaoi/aoid/internal/golden"
	"github.com/visualaoi/aoid/internal/health"
	"github.com/visualaoi/aoid/internal/inspect"
	"github.com/visualaoi/aoid/internal/linker"
	"github.com/visualaoi/aoid/internal/log"
	"github.com/visualaoi/aoid/internal/product"
	"github.com/visualaoi/aoid/internal/session"
	"github.com/visualaoi/aoid/internal/shared"
	"github.com/visualaoi/aoid/internal/stats"
)

// namedCloser is one shutdown step registered with the daemon manager.
type namedCloser struct {
	name  string
	close func(ctx context.Context) error
}

func closerFor(name string, fn func() error) namedCloser {
	return namedCloser{name: name, close: func(context.Context) error { return fn() }}
}

// app bundles everything main hands to the daemon manager.
type app struct {
	handler        http.Handler
	metricsHandler http.Handler
	sessions       *session.Manager
	closers        []namedCloser
}

// buildApp wires the stores, the inspection pipeline and the HTTP
// surface. Closers come back in startup order; the manager runs them
// LIFO on shutdown.
func buildApp(ctx context.Context, cfg config.AppConfig) (*app, error) {
	logger := log.WithComponent("main")

	store, err := product.NewStore(cfg.SharedRoot)
	if err != nil {
		return nil, fmt.Errorf("product store: %w", err)
	}
	// Operators edit configs directly on the shared mount; without the
	// watcher the store would serve cached ROIs forever.
	if err := store.StartWatcher(ctx); err != nil {
		return nil, fmt.Errorf("product watcher: %w", err)
	}
	folder, err := shared.New(cfg.SharedRoot, cfg.ClientMount, cfg.JPEGQuality)
	if err != nil {
		return nil, fmt.Errorf("shared folder: %w", err)
	}
	library := golden.NewLibrary(store)

	// Native inference engines plug in here; absent ones run simulated.
	registry := analyzer.NewRegistry(analyzer.Capabilities{}, library)
	for _, status := range registry.Warmup(ctx) {
		logger.Info().
			Str("capability", status.Name).
			Str("mode", status.Mode).
			Msg("analyzer capability ready")
	}

	closers := []namedCloser{closerFor("product_store", store.Close)}

	link, linkClosers, linkChecker := buildLinker(cfg)
	closers = append(closers, linkClosers...)

	proc := inspect.NewProcessor(folder, registry, store, library)
	agg := inspect.NewAggregator(link)
	orch := inspect.NewOrchestrator(store, folder, proc, agg, cfg.Workers)
	sessions := session.NewManager(store, folder, cfg.Session.Timeout, cfg.Session.SweepInterval)

	archive, err := audit.Open(filepath.Join(cfg.DataDir, "audit"), config.DefaultAuditTTL)
	if err != nil {
		return nil, fmt.Errorf("audit archive: %w", err)
	}
	closers = append(closers, closerFor("audit_archive", archive.Close))
	orch.AddHook(archive.Hook())

	statsStore, err := stats.NewStore(filepath.Join(cfg.DataDir, "stats.db"))
	if err != nil {
		return nil, fmt.Errorf("stats store: %w", err)
	}
	closers = append(closers, closerFor("stats_store", statsStore.Close))
	orch.AddHook(statsStore.Hook())

	hm := health.NewManager(cfg.Version)
	hm.RegisterChecker(health.NewDirWritableChecker("shared_root", cfg.SharedRoot))
	hm.RegisterChecker(health.NewDirWritableChecker("data_dir", cfg.DataDir))
	if linkChecker != nil {
		hm.RegisterChecker(linkChecker)
	}

	srv := api.NewServer(api.Deps{
		Config:   cfg,
		Store:    store,
		Library:  library,
		Sessions: sessions,
		Orch:     orch,
		Registry: registry,
		Health:   hm,
		Archive:  archive,
		Stats:    statsStore,
	})

	return &app{
		handler:        srv.Routes(),
		metricsHandler: promhttp.Handler(),
		sessions:       sessions,
		closers:        closers,
	}, nil
}

// buildLinker resolves the barcode linking chain from the config: no
// base URL means linking is off; with Redis the cache is shared across
// instances, otherwise an in-process TTL cache fills in.
func buildLinker(cfg config.AppConfig) (linker.Linker, []namedCloser, health.Checker) {
	logger := log.WithComponent("main")
	if cfg.Link.BaseURL == "" {
		return linker.Noop{}, nil, nil
	}

	client, err := linker.NewClient(linker.Options{
		BaseURL: cfg.Link.BaseURL,
		Timeout: cfg.Link.Timeout,
		Rate:    cfg.Link.Rate,
		Burst:   cfg.Link.Burst,
	})
	if err != nil {
		// Startup checks already validated the URL; treat a residual
		// failure as linking-off rather than refusing to boot.
		logger.Error().Err(err).Msg("link client init failed, linking disabled")
		return linker.Noop{}, nil, nil
	}

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		checker := health.NewPingChecker("redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("link cache on redis")
		return linker.NewCached(client, rdb, cfg.Link.CacheTTL),
			[]namedCloser{closerFor("redis", rdb.Close)}, checker
	}

	store := cache.New(cfg.Link.CacheTTL)
	logger.Info().Msg("link cache in process memory")
	closer := namedCloser{name: "link_cache", close: func(context.Context) error {
		store.Close()
		return nil
	}}
	return linker.NewMemCached(client, store, cfg.Link.CacheTTL), []namedCloser{closer}, nil
}
