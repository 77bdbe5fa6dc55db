// SPDX-License-Identifier: MIT

// Package session tracks inspection sessions: one workspace on the
// shared filesystem per session, single-flight admission per session
// and an idle sweeper that reclaims abandoned workspaces.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/visualaoi/aoid/internal/log"
	"github.com/visualaoi/aoid/internal/metrics"
	"github.com/visualaoi/aoid/internal/product"
)

var (
	// ErrNotFound is returned for unknown or already closed sessions.
	ErrNotFound = errors.New("session not found")
	// ErrBusy is returned when a session already has an inspection in
	// flight; callers map it to 409.
	ErrBusy = errors.New("session busy")
)

// Session is the public snapshot of one tracked session. ClientInfo is
// whatever JSON the acquisition client sent on create, kept verbatim.
// LastResult is nil until the first inspection finishes.
type Session struct {
	ID          string          `json:"session_id"`
	Product     string          `json:"product_name"`
	ClientInfo  json.RawMessage `json:"client_info,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	LastActive  time.Time       `json:"last_active"`
	Busy        bool            `json:"busy"`
	Inspections int             `json:"inspection_count"`
	LastResult  *bool           `json:"last_result,omitempty"`
}

type entry struct {
	Session
	busy bool
}

// ProductSource validates that a session's product exists.
// *product.Store satisfies it.
type ProductSource interface {
	Load(ctx context.Context, name string) ([]product.ROI, error)
}

// Workspace creates and removes per-session directories.
// *shared.Folder satisfies it.
type Workspace interface {
	CreateWorkspace(id string) error
	RemoveWorkspace(id string) error
}

// Manager owns the session table. All methods are safe for concurrent
// use.
type Manager struct {
	products ProductSource
	ws       Workspace
	timeout  time.Duration
	sweep    time.Duration

	mu       sync.Mutex
	sessions map[string]*entry

	now func() time.Time
}

// NewManager wires the session manager. timeout is the idle lifetime;
// sweep the reaper interval.
func NewManager(products ProductSource, ws Workspace, timeout, sweep time.Duration) *Manager {
	return &Manager{
		products: products,
		ws:       ws,
		timeout:  timeout,
		sweep:    sweep,
		sessions: make(map[string]*entry),
		now:      time.Now,
	}
}

// Create validates the product, provisions a fresh workspace and
// registers the session. clientInfo may be nil.
func (m *Manager) Create(ctx context.Context, productName string, clientInfo json.RawMessage) (Session, error) {
	if _, err := m.products.Load(ctx, productName); err != nil {
		return Session{}, err
	}

	id := uuid.NewString()
	if err := m.ws.CreateWorkspace(id); err != nil {
		return Session{}, err
	}

	now := m.now()
	e := &entry{Session: Session{
		ID:         id,
		Product:    productName,
		ClientInfo: clientInfo,
		CreatedAt:  now,
		LastActive: now,
	}}

	m.mu.Lock()
	m.sessions[id] = e
	m.mu.Unlock()

	metrics.RecordSessionStarted()
	logger := log.WithComponentFromContext(ctx, "session")
	logger.Info().
		Str(log.FieldSessionID, id).
		Str(log.FieldProduct, productName).
		Msg("session created")
	return e.Session, nil
}

// Get returns a snapshot of one session.
func (m *Manager) Get(id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return m.snapshot(e), nil
}

// List returns all live sessions, oldest first.
func (m *Manager) List() []Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Session, 0, len(m.sessions))
	for _, e := range m.sessions {
		out = append(out, m.snapshot(e))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ActiveByProduct returns the ids of live sessions bound to a product.
// Rename refuses to move folders under an active session.
func (m *Manager) ActiveByProduct(productName string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, e := range m.sessions {
		if e.Product == productName {
			ids = append(ids, e.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

// Touch refreshes the idle clock of a session.
func (m *Manager) Touch(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	e.LastActive = m.now()
	return nil
}

// RecordResult bumps the session's inspection counter and retains the
// overall outcome of the run that just finished.
func (m *Manager) RecordResult(id string, passed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	e.Inspections++
	e.LastResult = &passed
	e.LastActive = m.now()
	return nil
}

// Acquire claims the session's single inspection slot. The returned
// release must be called when the inspection finishes. A second
// concurrent acquire fails with ErrBusy.
func (m *Manager) Acquire(id string) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if e.busy {
		return nil, ErrBusy
	}
	e.busy = true
	e.LastActive = m.now()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if e, ok := m.sessions[id]; ok {
				e.busy = false
				e.LastActive = m.now()
			}
		})
	}, nil
}

// Close removes a session and tears down its workspace. Sessions with
// an inspection in flight refuse to close.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if e.busy {
		m.mu.Unlock()
		return ErrBusy
	}
	delete(m.sessions, id)
	m.mu.Unlock()

	metrics.RecordSessionClosed()
	logger := log.WithComponentFromContext(ctx, "session")
	if err := m.ws.RemoveWorkspace(id); err != nil {
		logger.Warn().Err(err).Str(log.FieldSessionID, id).
			Msg("workspace cleanup failed")
		return err
	}
	logger.Info().
		Str(log.FieldSessionID, id).
		Str(log.FieldProduct, e.Product).
		Dur(log.FieldDuration, m.now().Sub(e.CreatedAt)).
		Msg("session closed")
	return nil
}

// Run drives the idle sweeper until the context is cancelled.
func (m *Manager) Run(ctx context.Context) {
	if m.timeout <= 0 {
		<-ctx.Done()
		return
	}
	interval := m.sweep
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger := log.WithComponent("session")
	logger.Info().
		Dur("timeout", m.timeout).
		Dur("interval", interval).
		Msg("idle sweeper running")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.expire(m.now())
		}
	}
}

// expire closes every idle, non-busy session older than the timeout.
func (m *Manager) expire(now time.Time) int {
	m.mu.Lock()
	var stale []*entry
	for id, e := range m.sessions {
		if !e.busy && now.Sub(e.LastActive) > m.timeout {
			delete(m.sessions, id)
			stale = append(stale, e)
		}
	}
	m.mu.Unlock()

	if len(stale) == 0 {
		return 0
	}
	logger := log.WithComponent("session")
	for _, e := range stale {
		if err := m.ws.RemoveWorkspace(e.ID); err != nil {
			logger.Warn().Err(err).Str(log.FieldSessionID, e.ID).
				Msg("expired workspace cleanup failed")
		}
		logger.Info().
			Str(log.FieldSessionID, e.ID).
			Str(log.FieldProduct, e.Product).
			Dur("idle", now.Sub(e.LastActive)).
			Msg("session expired")
	}
	metrics.RecordSessionExpired(len(stale))
	return len(stale)
}

func (m *Manager) snapshot(e *entry) Session {
	s := e.Session
	s.Busy = e.busy
	return s
}
