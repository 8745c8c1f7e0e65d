package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/core/domain"
)

// EncryptedRecordStore reads and writes whole entities through the field
// codec. Each mutating call is one transaction on the session. There is no
// version check: concurrent writers to one row resolve by commit order.
type EncryptedRecordStore struct {
	session domain.Session
	catalog *domain.Catalog
	codec   *FieldCodec
	now     func() time.Time
}

func NewEncryptedRecordStore(session domain.Session, catalog *domain.Catalog, codec *FieldCodec) *EncryptedRecordStore {
	return &EncryptedRecordStore{
		session: session,
		catalog: catalog,
		codec:   codec,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Save encrypts the registered fields, writes the ciphertext back onto e and
// persists it (add + commit + refresh). On return e holds ciphertext.
func (s *EncryptedRecordStore) Save(ctx context.Context, e domain.Entity) (domain.Entity, error) {
	schema, err := s.catalog.Lookup(e.EntityType())
	if err != nil {
		return nil, err
	}

	encrypted, err := s.codec.EncryptFields(schema.EntityType, schema.Record(e))
	if err != nil {
		return nil, err
	}
	if _, err := schema.Apply(e, encrypted); err != nil {
		return nil, fmt.Errorf("apply encrypted fields: %w", err)
	}

	if err := s.persist(ctx, e); err != nil {
		return nil, fmt.Errorf("save %s %s: %w", schema.EntityType, e.EntityID(), err)
	}
	return e, nil
}

// Load fetches an entity by id. A missing row yields domain.ErrNotFound and
// nothing else. With decrypt, registered fields are decrypted in memory only.
func (s *EncryptedRecordStore) Load(ctx context.Context, entityType string, id uuid.UUID, decrypt bool) (domain.Entity, error) {
	schema, err := s.catalog.Lookup(entityType)
	if err != nil {
		return nil, err
	}

	e, err := s.session.Get(ctx, entityType, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("load %s %s: %w", entityType, id, err)
	}

	if decrypt {
		if err := s.decryptInPlace(schema, e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Find loads every entity whose attribute equals value.
func (s *EncryptedRecordStore) Find(ctx context.Context, entityType, attribute string, value any, decrypt bool) ([]domain.Entity, error) {
	schema, err := s.catalog.Lookup(entityType)
	if err != nil {
		return nil, err
	}

	rows, err := s.session.Find(ctx, entityType, attribute, value)
	if err != nil {
		return nil, fmt.Errorf("find %s by %s: %w", entityType, attribute, err)
	}
	if decrypt {
		for _, e := range rows {
			if err := s.decryptInPlace(schema, e); err != nil {
				return nil, err
			}
		}
	}
	return rows, nil
}

// Update encrypts only the patch, applies every patched key that is a known,
// writable attribute, stamps updated_at and commits. Fields absent from the
// patch are untouched, so e must be loaded with decrypt=false: a decrypted
// entity would be written back in plaintext.
func (s *EncryptedRecordStore) Update(ctx context.Context, e domain.Entity, patch domain.Record) (domain.Entity, error) {
	schema, err := s.catalog.Lookup(e.EntityType())
	if err != nil {
		return nil, err
	}

	encrypted, err := s.codec.EncryptFields(schema.EntityType, patch)
	if err != nil {
		return nil, err
	}
	if _, err := schema.Patch(e, encrypted); err != nil {
		return nil, fmt.Errorf("apply update: %w", err)
	}
	if err := touch(schema, e, s.now()); err != nil {
		return nil, err
	}

	if err := s.persist(ctx, e); err != nil {
		return nil, fmt.Errorf("update %s %s: %w", schema.EntityType, e.EntityID(), err)
	}
	return e, nil
}

// Delete removes the entity in its own transaction.
func (s *EncryptedRecordStore) Delete(ctx context.Context, e domain.Entity) error {
	if err := s.session.Delete(ctx, e); err != nil {
		_ = s.session.Rollback(ctx)
		return fmt.Errorf("delete %s %s: %w", e.EntityType(), e.EntityID(), err)
	}
	if err := s.session.Commit(ctx); err != nil {
		_ = s.session.Rollback(ctx)
		return fmt.Errorf("delete %s %s: %w", e.EntityType(), e.EntityID(), err)
	}
	return nil
}

// persist runs add + commit + refresh, rolling back on any failure so a
// half-written entity never lingers in the session.
func (s *EncryptedRecordStore) persist(ctx context.Context, e domain.Entity) error {
	if err := s.session.Add(ctx, e); err != nil {
		_ = s.session.Rollback(ctx)
		return err
	}
	if err := s.session.Commit(ctx); err != nil {
		_ = s.session.Rollback(ctx)
		return err
	}
	return s.session.Refresh(ctx, e)
}

func (s *EncryptedRecordStore) decryptInPlace(schema *domain.Schema, e domain.Entity) error {
	decrypted := s.codec.DecryptFields(schema.EntityType, schema.Record(e))
	if _, err := schema.Apply(e, decrypted); err != nil {
		return fmt.Errorf("apply decrypted fields: %w", err)
	}
	return nil
}

// touch stamps the updated_at marker when the schema has one.
func touch(schema *domain.Schema, e domain.Entity, now time.Time) error {
	attr, ok := schema.Attribute("updated_at")
	if !ok {
		return nil
	}
	return attr.Set(e, now)
}
