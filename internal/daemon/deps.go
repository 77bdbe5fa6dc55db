// SPDX-License-Identifier: MIT

// Package daemon owns the process lifecycle: it runs the API and
// metrics servers plus the background tasks, and tears everything down
// in order on shutdown.
package daemon

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
)

// Task is a long-running background job (the session sweeper). It must
// return when its context is cancelled.
type Task func(ctx context.Context)

// NamedTask pairs a task with a name for logging.
type NamedTask struct {
	Name string
	Run  Task
}

// Deps carries everything the manager runs.
type Deps struct {
	Logger zerolog.Logger

	// APIHandler serves the inspection API. Required.
	APIHandler http.Handler

	// MetricsHandler serves Prometheus scrapes on MetricsAddr. An empty
	// MetricsAddr disables the metrics server.
	MetricsHandler http.Handler
	MetricsAddr    string

	// Tasks are started with the manager and cancelled on shutdown.
	Tasks []NamedTask
}

// Validate checks that the required dependencies are present.
func (d Deps) Validate() error {
	if d.APIHandler == nil {
		return fmt.Errorf("api handler is required")
	}
	if d.MetricsAddr != "" && d.MetricsHandler == nil {
		return fmt.Errorf("metrics address set without a metrics handler")
	}
	return nil
}
