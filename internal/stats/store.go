// SPDX-License-Identifier: MIT

// Package stats keeps long-running pass-rate counters per product and
// device in an embedded SQLite database. Like the audit archive it is
// fed from an inspection result hook and never fails an inspection.
package stats

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver (pure Go, no CGO)

	"github.com/visualaoi/aoid/internal/inspect"
	"github.com/visualaoi/aoid/internal/log"
)

// DeviceStats is the per-device rollup of one product.
type DeviceStats struct {
	DeviceID   int     `json:"device_id"`
	TotalROIs  int     `json:"total_rois"`
	PassedROIs int     `json:"passed_rois"`
	PassRate   float64 `json:"pass_rate"`
}

// ProductStats is the accumulated history of one product.
type ProductStats struct {
	Product    string        `json:"product_name"`
	Runs       int           `json:"runs"`
	PassedRuns int           `json:"passed_runs"`
	PassRate   float64       `json:"pass_rate"`
	LastRun    time.Time     `json:"last_run"`
	Devices    []DeviceStats `json:"devices"`
}

// Store provides SQLite persistence for inspection statistics.
type Store struct {
	db *sql.DB

	now func() time.Time
}

// NewStore opens the statistics database and runs migrations. WAL mode
// and busy_timeout keep concurrent hook writes from locking readers
// out.
func NewStore(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open stats database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping stats database: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS product_runs (
		product TEXT PRIMARY KEY,
		runs INTEGER NOT NULL DEFAULT 0,
		passed_runs INTEGER NOT NULL DEFAULT 0,
		last_run TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS device_rois (
		product TEXT NOT NULL,
		device_id INTEGER NOT NULL,
		total_rois INTEGER NOT NULL DEFAULT 0,
		passed_rois INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (product, device_id)
	);

	CREATE INDEX IF NOT EXISTS idx_device_rois_product ON device_rois(product);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record folds one finished inspection into the counters.
func (s *Store) Record(ctx context.Context, resp *inspect.Response) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	passed := 0
	if resp.Overall.Passed {
		passed = 1
	}
	_, err = tx.ExecContext(ctx, `
	INSERT INTO product_runs (product, runs, passed_runs, last_run)
	VALUES (?, 1, ?, ?)
	ON CONFLICT(product) DO UPDATE SET
		runs = runs + 1,
		passed_runs = passed_runs + excluded.passed_runs,
		last_run = excluded.last_run
	`, resp.ProductName, passed, s.now().UTC().Format(time.RFC3339))
	if err != nil {
		return err
	}

	for _, d := range resp.DeviceSummaries {
		_, err = tx.ExecContext(ctx, `
		INSERT INTO device_rois (product, device_id, total_rois, passed_rois)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(product, device_id) DO UPDATE SET
			total_rois = total_rois + excluded.total_rois,
			passed_rois = passed_rois + excluded.passed_rois
		`, resp.ProductName, d.DeviceID, d.TotalROIs, d.PassedROIs)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Summary returns the accumulated statistics for one product, or nil
// when the product has no recorded runs.
func (s *Store) Summary(ctx context.Context, product string) (*ProductStats, error) {
	var (
		ps         ProductStats
		lastRunStr string
	)
	err := s.db.QueryRowContext(ctx, `
	SELECT product, runs, passed_runs, last_run
	FROM product_runs
	WHERE product = ?
	`, product).Scan(&ps.Product, &ps.Runs, &ps.PassedRuns, &lastRunStr)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if t, perr := time.Parse(time.RFC3339, lastRunStr); perr == nil {
		ps.LastRun = t
	}
	if ps.Runs > 0 {
		ps.PassRate = float64(ps.PassedRuns) / float64(ps.Runs)
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT device_id, total_rois, passed_rois
	FROM device_rois
	WHERE product = ?
	ORDER BY device_id
	`, product)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var d DeviceStats
		if err := rows.Scan(&d.DeviceID, &d.TotalROIs, &d.PassedROIs); err != nil {
			return nil, err
		}
		if d.TotalROIs > 0 {
			d.PassRate = float64(d.PassedROIs) / float64(d.TotalROIs)
		}
		ps.Devices = append(ps.Devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &ps, nil
}

// Hook adapts the store into an inspection result observer. Failures
// are logged, never propagated.
func (s *Store) Hook() inspect.ResultHook {
	return func(ctx context.Context, resp *inspect.Response) {
		if err := s.Record(ctx, resp); err != nil {
			logger := log.WithComponentFromContext(ctx, "stats")
			logger.Warn().Err(err).
				Str(log.FieldProduct, resp.ProductName).
				Msg("recording inspection statistics failed")
		}
	}
}
