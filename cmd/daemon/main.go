// SPDX-License-Identifier: MIT

// Command daemon runs the inspection server: the HTTP API, the
// Prometheus metrics endpoint and the session sweeper.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/visualaoi/aoid/internal/config"
	"github.com/visualaoi/aoid/internal/daemon"
	"github.com/visualaoi/aoid/internal/health"
	"github.com/visualaoi/aoid/internal/log"
	"github.com/visualaoi/aoid/internal/telemetry"
	"github.com/visualaoi/aoid/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("aoid %s (%s, %s)\n", version.Version, version.Commit, version.Date)
		return
	}

	cfg, err := config.NewLoader(*configPath, version.Version).Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log.Configure(log.Config{Level: cfg.LogLevel, Service: "aoid"})
	logger := log.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		logger.Fatal().Err(err).Msg("startup checks failed")
	}

	tele, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        config.ParseBool("AOI_TRACING_ENABLED", false),
		ServiceName:    "aoid",
		ServiceVersion: cfg.Version,
		Environment:    config.ParseString("AOI_ENV", "production"),
		ExporterType:   config.ParseString("AOI_TRACING_EXPORTER", "grpc"),
		Endpoint:       config.ParseString("AOI_TRACING_ENDPOINT", "localhost:4317"),
		SamplingRate:   config.ParseFloat("AOI_TRACING_SAMPLE_RATE", 0.1),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("telemetry init failed")
	}

	app, err := buildApp(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("wiring failed")
	}

	manager, err := daemon.NewManager(config.ServerConfigFromApp(cfg), daemon.Deps{
		Logger:         log.Base(),
		APIHandler:     app.handler,
		MetricsHandler: app.metricsHandler,
		MetricsAddr:    cfg.MetricsAddr,
		Tasks: []daemon.NamedTask{
			{Name: "session_sweeper", Run: app.sessions.Run},
		},
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("daemon init failed")
	}

	for _, c := range app.closers {
		manager.RegisterShutdownHook(c.name, c.close)
	}
	manager.RegisterShutdownHook("telemetry", tele.Shutdown)

	logger.Info().
		Str("version", cfg.Version).
		Str("shared_root", cfg.SharedRoot).
		Str("data_dir", cfg.DataDir).
		Msg("aoid starting")

	if err := manager.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("daemon exited with error")
		os.Exit(1)
	}
}
