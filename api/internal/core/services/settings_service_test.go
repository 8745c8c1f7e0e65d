package services_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/core/domain"
	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/core/services"
	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/infrastructure/crypto"
)

type settingsFixture struct {
	db     *memDB
	cipher *crypto.FieldCipher
	audit  *memAuditRepo
	svc    *services.SettingsService
}

func newSettingsFixture(t *testing.T) *settingsFixture {
	t.Helper()
	db := newMemDB()
	cipher := newTestCipher(t)
	repo := &memAuditRepo{}
	svc := services.NewSettingsService(
		db.factory(),
		db.catalog,
		newTestCodec(t, cipher),
		services.NewAuditLogger(repo, discardLogger()),
		discardLogger(),
	)
	return &settingsFixture{db: db, cipher: cipher, audit: repo, svc: svc}
}

func TestSettingsService_Upsert_CreateThenUpdate(t *testing.T) {
	ctx := context.Background()
	f := newSettingsFixture(t)
	actor, tenant := uuid.New(), uuid.New()
	meta := domain.RequestMeta{OriginAddress: "192.0.2.10", ClientAgent: "admin-ui"}

	// 1. Create
	masked, err := f.svc.Upsert(ctx, actor, tenant, map[string]any{
		"email_enabled": true,
		"smtp_host":     "smtp.example.com",
		"smtp_password": "hunter2",
	}, meta)
	require.NoError(t, err)

	assert.NotContains(t, masked, "smtp_password")
	assert.Equal(t, true, masked["smtp_password_set"])
	assert.Equal(t, false, masked["twilio_auth_token_set"])
	assert.Equal(t, 587, masked["smtp_port"])

	id := masked["id"].(uuid.UUID)
	raw := f.db.raw(domain.EntityNotificationSettings, id)
	assert.True(t, f.cipher.LooksEncrypted(raw["smtp_password"].(string)))

	// 2. Update
	_, err = f.svc.Upsert(ctx, actor, tenant, map[string]any{
		"smtp_password": "correct-horse",
		"smtp_port":     float64(2525),
	}, meta)
	require.NoError(t, err)

	decrypted, err := f.svc.GetDecrypted(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, "correct-horse", decrypted.SMTPPassword)
	assert.Equal(t, 2525, decrypted.SMTPPort)
	assert.Equal(t, "smtp.example.com", decrypted.SMTPHost)

	// 🛡️ 3. Audit trail: one entry per mutation, secrets redacted
	require.Len(t, f.audit.entries, 2)
	assert.Equal(t, domain.AuditActionCreate, f.audit.entries[0].Action)
	assert.Equal(t, domain.AuditActionUpdate, f.audit.entries[1].Action)
	assert.Equal(t, "192.0.2.10", f.audit.entries[1].OriginAddress)

	update := f.audit.entries[1].Changes
	assert.Equal(t, map[string]any{"old": domain.RedactedValue, "new": domain.RedactedValue}, update["smtp_password"])
	assert.Equal(t, map[string]any{"old": 587, "new": 2525}, update["smtp_port"])

	for _, entry := range f.audit.entries {
		blob, err := json.Marshal(entry.Changes)
		require.NoError(t, err)
		assert.NotContains(t, string(blob), "hunter2")
		assert.NotContains(t, string(blob), "correct-horse")
	}
}

func TestSettingsService_Upsert_Validation(t *testing.T) {
	ctx := context.Background()
	f := newSettingsFixture(t)

	cases := []struct {
		name  string
		patch map[string]any
	}{
		{"Empty patch", map[string]any{}},
		{"Unknown field", map[string]any{"smtp_relay": "x"}},
		{"Read-only field", map[string]any{"tenant_id": uuid.New().String()}},
		{"Port out of range", map[string]any{"smtp_port": 70000}},
		{"Bad sender address", map[string]any{"smtp_from_email": "not-an-email"}},
		{"Wrong type", map[string]any{"smtp_port": "twenty-five"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Upsert(ctx, uuid.New(), uuid.New(), tc.patch, domain.RequestMeta{})
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}

	assert.Empty(t, f.db.snapshot(domain.EntityNotificationSettings))
	assert.Empty(t, f.audit.entries)
}

func TestSettingsService_GetMasked_NotFound(t *testing.T) {
	f := newSettingsFixture(t)
	_, err := f.svc.GetMasked(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSettingsService_GetMasked_LegacyRow(t *testing.T) {
	f := newSettingsFixture(t)
	tenant := uuid.New()
	f.db.insert(t, plaintextSettings(tenant))

	masked, err := f.svc.GetMasked(context.Background(), tenant)
	require.NoError(t, err)
	assert.Equal(t, true, masked["firebase_server_key_set"])
	assert.NotContains(t, masked, "firebase_server_key")
}

func TestSettingsService_Delete(t *testing.T) {
	ctx := context.Background()
	f := newSettingsFixture(t)
	actor, tenant := uuid.New(), uuid.New()

	_, err := f.svc.Upsert(ctx, actor, tenant, map[string]any{"push_enabled": true}, domain.RequestMeta{})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, actor, tenant, domain.RequestMeta{}))
	_, err = f.svc.GetMasked(ctx, tenant)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.Len(t, f.audit.entries, 2)
	assert.Equal(t, domain.AuditActionDelete, f.audit.entries[1].Action)

	assert.ErrorIs(t, f.svc.Delete(ctx, actor, tenant, domain.RequestMeta{}), domain.ErrNotFound)
}
