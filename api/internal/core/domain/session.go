package domain

import (
	"context"

	"github.com/google/uuid"
)

// Session is the transactional storage unit of work consumed by the
// encrypted store and the migration tool. A session is not safe for
// concurrent use; open one per unit of work via a SessionFactory.
type Session interface {
	// Add stages an insert-or-update of e in the current transaction.
	Add(ctx context.Context, e Entity) error
	Commit(ctx context.Context) error
	// Refresh reloads every attribute of e from storage.
	Refresh(ctx context.Context, e Entity) error
	// Get returns ErrNotFound when no row matches.
	Get(ctx context.Context, entityType string, id uuid.UUID) (Entity, error)
	Delete(ctx context.Context, e Entity) error
	Query(ctx context.Context, entityType string) ([]Entity, error)
	// Find returns rows whose attribute equals value.
	Find(ctx context.Context, entityType, attribute string, value any) ([]Entity, error)
	// Rollback discards uncommitted work. Safe to call with nothing pending.
	Rollback(ctx context.Context) error
}

// SessionFactory opens a fresh session.
type SessionFactory func() Session
