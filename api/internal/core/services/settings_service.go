package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/core/domain"
)

// notificationSettingsRules validates the plaintext patch before it reaches
// the store. Keys absent from the patch are not checked.
var notificationSettingsRules = map[string]any{
	"smtp_host":              "omitempty,max=255",
	"smtp_port":              "omitempty,min=1,max=65535",
	"smtp_username":          "omitempty,max=255",
	"smtp_password":          "omitempty,max=1024",
	"smtp_from_email":        "omitempty,email",
	"twilio_account_sid":     "omitempty,max=255",
	"twilio_auth_token":      "omitempty,max=1024",
	"twilio_whatsapp_number": "omitempty,max=32",
	"firebase_server_key":    "omitempty,max=4096",
}

// SettingsService manages one notification-settings row per tenant. Every
// mutation goes through the encrypted store and leaves a redacted audit entry.
type SettingsService struct {
	sessions domain.SessionFactory
	catalog  *domain.Catalog
	codec    *FieldCodec
	audit    *AuditLogger
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
	newID    func() uuid.UUID
}

func NewSettingsService(
	sessions domain.SessionFactory,
	catalog *domain.Catalog,
	codec *FieldCodec,
	audit *AuditLogger,
	logger *slog.Logger,
) *SettingsService {
	return &SettingsService{
		sessions: sessions,
		catalog:  catalog,
		codec:    codec,
		audit:    audit,
		validate: validator.New(),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.New,
	}
}

// GetMasked returns the tenant's settings with every secret replaced by a
// "<field>_set" flag. Nothing is decrypted.
func (s *SettingsService) GetMasked(ctx context.Context, tenantID uuid.UUID) (domain.Record, error) {
	session := s.sessions()
	defer func() { _ = session.Rollback(ctx) }()

	e, err := s.findForTenant(ctx, s.store(session), tenantID, false)
	if err != nil {
		return nil, err
	}
	return s.masked(e), nil
}

// GetDecrypted returns the tenant's settings with secrets in plaintext, for
// the notification senders. Never hand this to an HTTP response.
func (s *SettingsService) GetDecrypted(ctx context.Context, tenantID uuid.UUID) (*domain.NotificationSettings, error) {
	session := s.sessions()
	defer func() { _ = session.Rollback(ctx) }()

	e, err := s.findForTenant(ctx, s.store(session), tenantID, true)
	if err != nil {
		return nil, err
	}
	return e.(*domain.NotificationSettings), nil
}

// Upsert applies patch to the tenant's settings, creating the row on first
// write. It returns the masked result.
func (s *SettingsService) Upsert(
	ctx context.Context,
	actorID, tenantID uuid.UUID,
	patch map[string]any,
	meta domain.RequestMeta,
) (domain.Record, error) {
	schema, err := s.catalog.Lookup(domain.EntityNotificationSettings)
	if err != nil {
		return nil, err
	}
	// 1. Reject unknown, read-only or malformed keys before touching storage
	if err := s.validatePatch(schema, patch); err != nil {
		return nil, err
	}

	session := s.sessions()
	defer func() { _ = session.Rollback(ctx) }()
	store := s.store(session)

	// 2. Load raw: the store writes every column back, so a decrypted entity
	// would persist plaintext
	current, err := s.findForTenant(ctx, store, tenantID, false)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	var (
		saved  domain.Entity
		before domain.Record
		action domain.AuditAction
	)
	if current == nil {
		action = domain.AuditActionCreate
		before = domain.Record{}
		saved, err = s.create(ctx, store, schema, tenantID, patch)
	} else {
		action = domain.AuditActionUpdate
		before = s.codec.DecryptFields(schema.EntityType, schema.Record(current))
		saved, err = store.Update(ctx, current, patch)
	}
	if err != nil {
		return nil, err
	}

	// 🛡️ 3. Diff in plaintext, redact before the audit logger ever sees it
	after := s.codec.DecryptFields(schema.EntityType, schema.Record(saved))
	changes := DiffChanges(before, pick(after, patch))
	redacted := RedactChanges(s.codec.Registry(), schema.EntityType, changes)

	if _, err := s.audit.Record(ctx, actorID, tenantID, action, schema.EntityType, saved.EntityID().String(), redacted, meta); err != nil {
		return nil, err
	}

	s.logger.Info("Notification settings saved",
		slog.String("tenant_id", tenantID.String()),
		slog.String("action", string(action)),
		slog.Int("changed_fields", len(changes)))
	return s.masked(saved), nil
}

// Delete removes the tenant's settings row and audits the removal.
func (s *SettingsService) Delete(ctx context.Context, actorID, tenantID uuid.UUID, meta domain.RequestMeta) error {
	session := s.sessions()
	defer func() { _ = session.Rollback(ctx) }()
	store := s.store(session)

	current, err := s.findForTenant(ctx, store, tenantID, false)
	if err != nil {
		return err
	}
	if err := store.Delete(ctx, current); err != nil {
		return err
	}

	_, err = s.audit.Record(ctx, actorID, tenantID, domain.AuditActionDelete,
		current.EntityType(), current.EntityID().String(), map[string]any{}, meta)
	return err
}

func (s *SettingsService) create(
	ctx context.Context,
	store *EncryptedRecordStore,
	schema *domain.Schema,
	tenantID uuid.UUID,
	patch map[string]any,
) (domain.Entity, error) {
	now := s.now()
	n := &domain.NotificationSettings{
		ID:         s.newID(),
		TenantID:   tenantID,
		SMTPPort:   587,
		SMTPUseTLS: true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := schema.Patch(n, patch); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return store.Save(ctx, n)
}

func (s *SettingsService) validatePatch(schema *domain.Schema, patch map[string]any) error {
	if len(patch) == 0 {
		return fmt.Errorf("%w: empty patch", domain.ErrInvalidInput)
	}

	var rejected []string
	for k := range patch {
		attr, ok := schema.Attribute(k)
		if !ok || attr.ReadOnly {
			rejected = append(rejected, k)
		}
	}
	if len(rejected) > 0 {
		sort.Strings(rejected)
		return fmt.Errorf("%w: unknown or read-only fields: %s", domain.ErrInvalidInput, strings.Join(rejected, ", "))
	}

	// Type check against a scratch entity so conversion errors surface as input errors
	if _, err := schema.Patch(schema.New(), patch); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	if errs := s.validate.ValidateMap(patch, notificationSettingsRules); len(errs) > 0 {
		// 🛡️ Report field names only; values may be secrets
		fields := make([]string, 0, len(errs))
		for k := range errs {
			fields = append(fields, k)
		}
		sort.Strings(fields)
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(fields, ", "))
	}
	return nil
}

func (s *SettingsService) findForTenant(ctx context.Context, store *EncryptedRecordStore, tenantID uuid.UUID, decrypt bool) (domain.Entity, error) {
	rows, err := store.Find(ctx, domain.EntityNotificationSettings, "tenant_id", tenantID, decrypt)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.ErrNotFound
	}
	return rows[0], nil
}

func (s *SettingsService) masked(e domain.Entity) domain.Record {
	schema, _ := s.catalog.Lookup(e.EntityType())
	return s.codec.MaskFields(schema.EntityType, schema.Record(e))
}

func (s *SettingsService) store(session domain.Session) *EncryptedRecordStore {
	return NewEncryptedRecordStore(session, s.catalog, s.codec)
}

// pick keeps only the keys of rec that appear in keys.
func pick(rec domain.Record, keys map[string]any) domain.Record {
	out := make(domain.Record, len(keys))
	for k := range keys {
		if v, ok := rec[k]; ok {
			out[k] = v
		}
	}
	return out
}
