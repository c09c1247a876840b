package storage

import (
	"context"

	"forwardlab/internal/model"
)

// Store persists learner session snapshots. Each record belongs to exactly one
// session; stores never merge or share records across sessions.
type Store interface {
	Init(ctx context.Context) error
	SaveSession(ctx context.Context, session model.SessionRecord) error
	GetSession(ctx context.Context, id string) (model.SessionRecord, bool, error)
	DeleteSession(ctx context.Context, id string) error
	ListSessions(ctx context.Context) ([]model.SessionRecord, error)
}
