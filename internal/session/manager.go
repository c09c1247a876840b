// Package session hosts many isolated learner sessions, each backed by its own
// gate and persisted to a storage.Store after every change.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"forwardlab/internal/gate"
	"forwardlab/internal/lesson"
	"forwardlab/internal/matrix"
	"forwardlab/internal/model"
	"forwardlab/internal/platform/logger"
	"forwardlab/internal/storage"
)

var ErrSessionNotFound = errors.New("session not found")

type Config struct {
	Graph  *lesson.Graph
	Store  storage.Store
	Logger *logger.Logger
	Now    func() time.Time
}

// Summary describes one stored session for listings.
type Summary struct {
	ID        string       `json:"id"`
	Completed int          `json:"completed"`
	Total     int          `json:"total"`
	Active    model.StepID `json:"active"`
	Finished  bool         `json:"finished"`
	Attempts  int          `json:"attempts"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Manager serializes mutations per session. The index mutex guards only the
// sessions map; each entry carries its own mutex.
type Manager struct {
	graph *lesson.Graph
	store storage.Store
	log   *logger.Logger
	now   func() time.Time

	mu       sync.RWMutex
	sessions map[string]*entry
}

type entry struct {
	mu      sync.Mutex
	gate    *gate.Gate
	record  model.SessionRecord
	deleted bool
}

func NewManager(cfg Config) *Manager {
	m := &Manager{
		graph:    cfg.Graph,
		store:    cfg.Store,
		log:      cfg.Logger,
		now:      cfg.Now,
		sessions: make(map[string]*entry),
	}
	if m.graph == nil {
		m.graph = lesson.Default()
	}
	if m.store == nil {
		m.store = storage.NewMemoryStore()
	}
	if m.log == nil {
		m.log = logger.Nop()
	}
	if m.now == nil {
		m.now = func() time.Time { return time.Now().UTC() }
	}
	return m
}

func (m *Manager) Init(ctx context.Context) error {
	return m.store.Init(ctx)
}

func (m *Manager) Graph() *lesson.Graph {
	return m.graph
}

// Create starts a fresh session with only the source steps completed.
func (m *Manager) Create(ctx context.Context) (string, gate.Snapshot, error) {
	id := uuid.NewString()
	now := m.now()
	e := &entry{
		gate: gate.New(m.graph),
		record: model.SessionRecord{
			VersionedRecord: storage.CurrentVersion(),
			ID:              id,
			Attempts:        make(map[model.StepID]int),
			CreatedAt:       now,
			UpdatedAt:       now,
		},
	}
	snap := e.gate.State()
	e.record.Completed = append([]model.StepID(nil), snap.Completed...)

	if err := m.store.SaveSession(ctx, e.record); err != nil {
		return "", gate.Snapshot{}, fmt.Errorf("save session %s: %w", id, err)
	}

	m.mu.Lock()
	m.sessions[id] = e
	m.mu.Unlock()

	m.log.Info("session created", "session", id)
	return id, snap, nil
}

func (m *Manager) State(ctx context.Context, id string) (gate.Snapshot, error) {
	e, err := m.lock(ctx, id)
	if err != nil {
		return gate.Snapshot{}, err
	}
	defer e.mu.Unlock()
	return e.gate.State(), nil
}

// Validate submits candidate for step. Every comparison against a pending step
// counts as an attempt; rejected transitions leave the session untouched.
func (m *Manager) Validate(ctx context.Context, id string, step model.StepID, candidate matrix.Matrix) (gate.Result, gate.Snapshot, error) {
	e, err := m.lock(ctx, id)
	if err != nil {
		return gate.Result{}, gate.Snapshot{}, err
	}
	defer e.mu.Unlock()

	result, err := e.gate.Validate(step, candidate)
	if err != nil {
		m.log.Debug("validation rejected", "session", id, "step", step, "error", err)
		return result, e.gate.State(), err
	}

	snap := e.gate.State()
	next := e.record
	next.Attempts = make(map[model.StepID]int, len(e.record.Attempts)+1)
	for k, v := range e.record.Attempts {
		next.Attempts[k] = v
	}
	next.Attempts[step]++
	next.Completed = append([]model.StepID(nil), snap.Completed...)
	next.UpdatedAt = m.now()
	if err := m.store.SaveSession(ctx, next); err != nil {
		// The gate must not run ahead of the stored record.
		restored, restoreErr := gate.Restore(m.graph, e.record.Completed)
		if restoreErr == nil {
			e.gate = restored
		}
		return gate.Result{}, gate.Snapshot{}, fmt.Errorf("save session %s: %w", id, err)
	}
	e.record = next

	m.log.Info("step validated",
		"session", id,
		"step", step,
		"accepted", result.Accepted,
		"attempt", next.Attempts[step],
	)
	return result, snap, nil
}

// Reset returns the session to its initial state and clears attempt counts.
func (m *Manager) Reset(ctx context.Context, id string) (gate.Snapshot, error) {
	e, err := m.lock(ctx, id)
	if err != nil {
		return gate.Snapshot{}, err
	}
	defer e.mu.Unlock()

	fresh := gate.New(m.graph)
	snap := fresh.State()
	next := e.record
	next.Completed = append([]model.StepID(nil), snap.Completed...)
	next.Attempts = make(map[model.StepID]int)
	next.UpdatedAt = m.now()
	if err := m.store.SaveSession(ctx, next); err != nil {
		return gate.Snapshot{}, fmt.Errorf("save session %s: %w", id, err)
	}
	e.gate = fresh
	e.record = next

	m.log.Info("session reset", "session", id)
	return snap, nil
}

func (m *Manager) Delete(ctx context.Context, id string) error {
	e, err := m.lock(ctx, id)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	if err := m.store.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	e.deleted = true

	m.mu.Lock()
	if m.sessions[id] == e {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	m.log.Info("session deleted", "session", id)
	return nil
}

// List summarizes every stored session, oldest first.
func (m *Manager) List(ctx context.Context) ([]Summary, error) {
	records, err := m.store.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(records))
	for _, record := range records {
		g, err := gate.Restore(m.graph, record.Completed)
		if err != nil {
			return nil, fmt.Errorf("restore session %s: %w", record.ID, err)
		}
		snap := g.State()
		attempts := 0
		for _, n := range record.Attempts {
			attempts += n
		}
		out = append(out, Summary{
			ID:        record.ID,
			Completed: len(snap.Completed),
			Total:     m.graph.Len(),
			Active:    snap.Active,
			Finished:  snap.Finished,
			Attempts:  attempts,
			CreatedAt: record.CreatedAt,
			UpdatedAt: record.UpdatedAt,
		})
	}
	return out, nil
}

// lock returns the live entry for id with its mutex held, loading it from the
// store on first use.
func (m *Manager) lock(ctx context.Context, id string) (*entry, error) {
	e, err := m.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	if e.deleted {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return e, nil
}

func (m *Manager) lookup(ctx context.Context, id string) (*entry, error) {
	m.mu.RLock()
	e, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return e, nil
	}

	record, ok, err := m.store.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	g, err := gate.Restore(m.graph, record.Completed)
	if err != nil {
		return nil, fmt.Errorf("restore session %s: %w", id, err)
	}
	if record.Attempts == nil {
		record.Attempts = make(map[model.StepID]int)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[id]; ok {
		return existing, nil
	}
	e = &entry{gate: g, record: record}
	m.sessions[id] = e
	return e, nil
}
