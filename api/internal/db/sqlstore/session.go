package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/core/domain"
)

// Session implements domain.Session over sqlx. Reads outside a transaction
// go straight to the pool; the first Add or Delete opens a transaction that
// lives until Commit or Rollback.
type Session struct {
	db      *sqlx.DB
	catalog *domain.Catalog
	tx      *sqlx.Tx
}

func NewSession(db *sqlx.DB, catalog *domain.Catalog) *Session {
	return &Session{db: db, catalog: catalog}
}

// Factory returns a domain.SessionFactory bound to db.
func Factory(db *sqlx.DB, catalog *domain.Catalog) domain.SessionFactory {
	return func() domain.Session { return NewSession(db, catalog) }
}

func (s *Session) ext() sqlx.ExtContext {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

func (s *Session) begin(ctx context.Context) error {
	if s.tx != nil {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	s.tx = tx
	return nil
}

// Add upserts every column of e keyed on id.
func (s *Session) Add(ctx context.Context, e domain.Entity) error {
	schema, err := s.catalog.Lookup(e.EntityType())
	if err != nil {
		return err
	}
	if err := s.begin(ctx); err != nil {
		return err
	}

	rec := schema.Record(e)
	cols := schema.Names()
	placeholders := make([]string, len(cols))
	updates := make([]string, 0, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		placeholders[i] = "?"
		args[i] = rec[c]
		if c != "id" {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", c, c))
		}
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (id) DO UPDATE SET %s",
		schema.Table,
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(updates, ", "),
	)
	if _, err := s.tx.ExecContext(ctx, s.tx.Rebind(query), args...); err != nil {
		return fmt.Errorf("upsert %s: %w", schema.Table, err)
	}
	return nil
}

func (s *Session) Commit(ctx context.Context) error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Session) Rollback(ctx context.Context) error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

func (s *Session) Refresh(ctx context.Context, e domain.Entity) error {
	schema, err := s.catalog.Lookup(e.EntityType())
	if err != nil {
		return err
	}
	rec, err := s.getRecord(ctx, schema, e.EntityID())
	if err != nil {
		return err
	}
	_, err = schema.Apply(e, rec)
	return err
}

func (s *Session) Get(ctx context.Context, entityType string, id uuid.UUID) (domain.Entity, error) {
	schema, err := s.catalog.Lookup(entityType)
	if err != nil {
		return nil, err
	}
	rec, err := s.getRecord(ctx, schema, id)
	if err != nil {
		return nil, err
	}
	return hydrate(schema, rec)
}

func (s *Session) Delete(ctx context.Context, e domain.Entity) error {
	schema, err := s.catalog.Lookup(e.EntityType())
	if err != nil {
		return err
	}
	if err := s.begin(ctx); err != nil {
		return err
	}
	query := s.tx.Rebind(fmt.Sprintf("DELETE FROM %s WHERE id = ?", schema.Table))
	if _, err := s.tx.ExecContext(ctx, query, e.EntityID()); err != nil {
		return fmt.Errorf("delete from %s: %w", schema.Table, err)
	}
	return nil
}

func (s *Session) Query(ctx context.Context, entityType string) ([]domain.Entity, error) {
	schema, err := s.catalog.Lookup(entityType)
	if err != nil {
		return nil, err
	}
	return s.selectEntities(ctx, schema, "", nil)
}

// Find only accepts attributes the schema declares; the name is spliced into SQL.
func (s *Session) Find(ctx context.Context, entityType, attribute string, value any) ([]domain.Entity, error) {
	schema, err := s.catalog.Lookup(entityType)
	if err != nil {
		return nil, err
	}
	if !schema.Has(attribute) {
		return nil, fmt.Errorf("%s has no attribute %q", entityType, attribute)
	}
	return s.selectEntities(ctx, schema, attribute+" = ?", []any{value})
}

func (s *Session) getRecord(ctx context.Context, schema *domain.Schema, id uuid.UUID) (domain.Record, error) {
	q := s.ext()
	query := q.Rebind(fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", strings.Join(schema.Names(), ", "), schema.Table))

	rec := make(map[string]any)
	if err := q.QueryRowxContext(ctx, query, id).MapScan(rec); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select from %s: %w", schema.Table, err)
	}
	return rec, nil
}

func (s *Session) selectEntities(ctx context.Context, schema *domain.Schema, where string, args []any) ([]domain.Entity, error) {
	q := s.ext()
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(schema.Names(), ", "), schema.Table)
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY id"

	rows, err := q.QueryxContext(ctx, q.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("select from %s: %w", schema.Table, err)
	}
	defer rows.Close()

	var out []domain.Entity
	for rows.Next() {
		rec := make(map[string]any)
		if err := rows.MapScan(rec); err != nil {
			return nil, fmt.Errorf("scan %s: %w", schema.Table, err)
		}
		e, err := hydrate(schema, rec)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func hydrate(schema *domain.Schema, rec domain.Record) (domain.Entity, error) {
	e := schema.New()
	if _, err := schema.Apply(e, rec); err != nil {
		return nil, fmt.Errorf("hydrate %s: %w", schema.EntityType, err)
	}
	return e, nil
}
