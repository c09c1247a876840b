// Package forwardlab is the in-process API for the forward-pass lesson: a
// single-learner Lesson and a multi-session Client backed by a store.
package forwardlab

import (
	"context"
	"sync"

	"forwardlab/internal/gate"
	"forwardlab/internal/lesson"
	"forwardlab/internal/matrix"
	"forwardlab/internal/model"
	"forwardlab/internal/platform/logger"
	"forwardlab/internal/server"
	"forwardlab/internal/session"
	"forwardlab/internal/storage"
)

const defaultDBPath = "forwardlab.db"

type (
	Matrix         = matrix.Matrix
	StepID         = model.StepID
	Step           = model.Step
	Parameter      = model.Parameter
	Status         = gate.Status
	StepStatus     = gate.StepStatus
	Snapshot       = gate.Snapshot
	Result         = gate.Result
	SessionSummary = session.Summary
)

const (
	StatusLocked    = gate.StatusLocked
	StatusPending   = gate.StatusPending
	StatusCompleted = gate.StatusCompleted
	Tolerance       = gate.Tolerance
)

var (
	ErrInvalidStepTransition = gate.ErrInvalidStepTransition
	ErrUnknownStep           = gate.ErrUnknownStep
	ErrSessionNotFound       = session.ErrSessionNotFound
	ErrShapeMismatch         = matrix.ErrShapeMismatch
)

// Lesson drives one learner through the default 2-4-4-2 walkthrough.
type Lesson struct {
	graph *lesson.Graph

	mu   sync.Mutex
	gate *gate.Gate
}

func NewLesson() *Lesson {
	graph := lesson.Default()
	return &Lesson{graph: graph, gate: gate.New(graph)}
}

func (l *Lesson) Steps() []Step {
	return l.graph.Steps()
}

func (l *Lesson) Parameters() []Parameter {
	return l.graph.Parameters()
}

func (l *Lesson) Architecture() []int {
	return l.graph.Architecture()
}

func (l *Lesson) State() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gate.State()
}

func (l *Lesson) Validate(id StepID, candidate Matrix) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gate.Validate(id, candidate)
}

func (l *Lesson) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gate.Reset()
}

type Options struct {
	StoreKind string
	DBPath    string
	Logger    *logger.Logger
}

// Client hosts many isolated sessions over a storage backend.
type Client struct {
	store    storage.Store
	sessions *session.Manager
	log      *logger.Logger
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store: store,
		sessions: session.NewManager(session.Config{
			Graph:  lesson.Default(),
			Store:  store,
			Logger: log,
		}),
		log: log,
	}, nil
}

func (c *Client) Init(ctx context.Context) error {
	return c.sessions.Init(ctx)
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Steps() []Step {
	return c.sessions.Graph().Steps()
}

func (c *Client) Parameters() []Parameter {
	return c.sessions.Graph().Parameters()
}

func (c *Client) NewSession(ctx context.Context) (string, Snapshot, error) {
	return c.sessions.Create(ctx)
}

func (c *Client) State(ctx context.Context, id string) (Snapshot, error) {
	return c.sessions.State(ctx, id)
}

func (c *Client) Validate(ctx context.Context, id string, step StepID, candidate Matrix) (Result, Snapshot, error) {
	return c.sessions.Validate(ctx, id, step, candidate)
}

func (c *Client) Reset(ctx context.Context, id string) (Snapshot, error) {
	return c.sessions.Reset(ctx, id)
}

func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.sessions.Delete(ctx, id)
}

func (c *Client) Sessions(ctx context.Context) ([]SessionSummary, error) {
	return c.sessions.List(ctx)
}

// Serve runs the HTTP API on address until ctx is cancelled.
func (c *Client) Serve(ctx context.Context, address string, allowOrigins []string) error {
	srv := server.NewServer(server.RouterConfig{
		Sessions:     c.sessions,
		Logger:       c.log,
		AllowOrigins: allowOrigins,
	})
	return srv.Run(ctx, address)
}
