package services_test

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/core/domain"
	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/core/services"
	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/infrastructure/crypto"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCipher(t *testing.T) *crypto.FieldCipher {
	t.Helper()
	key := make([]byte, crypto.KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	c, err := crypto.NewFieldCipher(key)
	require.NoError(t, err)
	return c
}

func newTestCodec(t *testing.T, cipher domain.FieldCipher) *services.FieldCodec {
	t.Helper()
	return services.NewFieldCodec(cipher, domain.DefaultSensitiveFieldRegistry(), discardLogger())
}

// ==============================================================================
// In-memory Session
// ==============================================================================

// memDB holds committed rows as records so entities handed out are copies.
type memDB struct {
	mu      sync.Mutex
	catalog *domain.Catalog
	rows    map[string]map[uuid.UUID]domain.Record

	// failAdd makes Add fail for the given ids.
	failAdd map[uuid.UUID]bool
	// commits counts successful commits that carried work.
	commits int
	// audit receives entries from services built over this db.
	audit *memAuditRepo
}

func newMemDB() *memDB {
	return &memDB{
		catalog: domain.DefaultCatalog(),
		rows:    make(map[string]map[uuid.UUID]domain.Record),
		failAdd: make(map[uuid.UUID]bool),
		audit:   &memAuditRepo{},
	}
}

func (db *memDB) factory() domain.SessionFactory {
	return func() domain.Session { return &memSession{db: db} }
}

// insert writes an entity directly, bypassing any codec.
func (db *memDB) insert(t *testing.T, e domain.Entity) {
	t.Helper()
	schema, err := db.catalog.Lookup(e.EntityType())
	require.NoError(t, err)
	db.mu.Lock()
	defer db.mu.Unlock()
	db.table(e.EntityType())[e.EntityID()] = schema.Record(e)
}

// raw returns the stored record exactly as persisted.
func (db *memDB) raw(entityType string, id uuid.UUID) domain.Record {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.table(entityType)[id].Clone()
}

func (db *memDB) snapshot(entityType string) map[uuid.UUID]domain.Record {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make(map[uuid.UUID]domain.Record)
	for id, rec := range db.table(entityType) {
		out[id] = rec.Clone()
	}
	return out
}

func (db *memDB) table(entityType string) map[uuid.UUID]domain.Record {
	t, ok := db.rows[entityType]
	if !ok {
		t = make(map[uuid.UUID]domain.Record)
		db.rows[entityType] = t
	}
	return t
}

type memOp struct {
	entityType string
	id         uuid.UUID
	rec        domain.Record // nil means delete
}

type memSession struct {
	db      *memDB
	pending []memOp
}

func (s *memSession) Add(_ context.Context, e domain.Entity) error {
	if s.db.failAdd[e.EntityID()] {
		return errors.New("simulated write failure")
	}
	schema, err := s.db.catalog.Lookup(e.EntityType())
	if err != nil {
		return err
	}
	s.pending = append(s.pending, memOp{entityType: e.EntityType(), id: e.EntityID(), rec: schema.Record(e)})
	return nil
}

func (s *memSession) Commit(_ context.Context) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if len(s.pending) > 0 {
		s.db.commits++
	}
	for _, op := range s.pending {
		if op.rec == nil {
			delete(s.db.table(op.entityType), op.id)
			continue
		}
		s.db.table(op.entityType)[op.id] = op.rec
	}
	s.pending = nil
	return nil
}

func (s *memSession) Rollback(_ context.Context) error {
	s.pending = nil
	return nil
}

func (s *memSession) Refresh(_ context.Context, e domain.Entity) error {
	schema, err := s.db.catalog.Lookup(e.EntityType())
	if err != nil {
		return err
	}
	rec := s.db.raw(e.EntityType(), e.EntityID())
	if rec == nil {
		return domain.ErrNotFound
	}
	_, err = schema.Apply(e, rec)
	return err
}

func (s *memSession) Get(_ context.Context, entityType string, id uuid.UUID) (domain.Entity, error) {
	schema, err := s.db.catalog.Lookup(entityType)
	if err != nil {
		return nil, err
	}
	rec := s.db.raw(entityType, id)
	if rec == nil {
		return nil, domain.ErrNotFound
	}
	return s.hydrate(schema, rec)
}

func (s *memSession) Delete(_ context.Context, e domain.Entity) error {
	s.pending = append(s.pending, memOp{entityType: e.EntityType(), id: e.EntityID()})
	return nil
}

func (s *memSession) Query(ctx context.Context, entityType string) ([]domain.Entity, error) {
	return s.filter(entityType, func(domain.Record) bool { return true })
}

func (s *memSession) Find(_ context.Context, entityType, attribute string, value any) ([]domain.Entity, error) {
	want := fmt.Sprint(value)
	return s.filter(entityType, func(rec domain.Record) bool { return fmt.Sprint(rec[attribute]) == want })
}

func (s *memSession) filter(entityType string, keep func(domain.Record) bool) ([]domain.Entity, error) {
	schema, err := s.db.catalog.Lookup(entityType)
	if err != nil {
		return nil, err
	}
	snapshot := s.db.snapshot(entityType)
	ids := make([]uuid.UUID, 0, len(snapshot))
	for id := range snapshot {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	var out []domain.Entity
	for _, id := range ids {
		if !keep(snapshot[id]) {
			continue
		}
		e, err := s.hydrate(schema, snapshot[id])
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *memSession) hydrate(schema *domain.Schema, rec domain.Record) (domain.Entity, error) {
	e := schema.New()
	if _, err := schema.Apply(e, rec); err != nil {
		return nil, err
	}
	return e, nil
}

// ==============================================================================
// In-memory Audit Repository
// ==============================================================================

type memAuditRepo struct {
	mu      sync.Mutex
	entries []domain.AuditLogEntry
	err     error
}

func (r *memAuditRepo) Append(_ context.Context, entry *domain.AuditLogEntry) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *memAuditRepo) List(_ context.Context, filter domain.AuditFilter) ([]domain.AuditLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.AuditLogEntry
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if filter.TenantID != uuid.Nil && e.TenantID != filter.TenantID {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// plaintextSettings builds a legacy row with every secret in plaintext.
func plaintextSettings(tenantID uuid.UUID) *domain.NotificationSettings {
	return &domain.NotificationSettings{
		ID:                uuid.New(),
		TenantID:          tenantID,
		EmailEnabled:      true,
		SMTPHost:          "smtp.example.com",
		SMTPPort:          587,
		SMTPUsername:      "mailer",
		SMTPPassword:      "smtp-pass-123",
		SMTPFromEmail:     "noreply@example.com",
		SMTPUseTLS:        true,
		SMSEnabled:        true,
		TwilioAccountSID:  "AC0123456789abcdef",
		TwilioAuthToken:   "twilio-token-xyz",
		PushEnabled:       true,
		FirebaseServerKey: "firebase-key-abc",
	}
}
