package sqlstore_test

import (
	"context"
	"crypto/rand"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/core/domain"
	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/core/services"
	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/db/sqlstore"
	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/infrastructure/crypto"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()
	db, err := sqlstore.Open(ctx, sqlstore.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlstore.EnsureSchema(ctx, db))
	return db
}

func sampleSettings() *domain.NotificationSettings {
	now := time.Now().UTC().Truncate(time.Second)
	return &domain.NotificationSettings{
		ID:              uuid.New(),
		TenantID:        uuid.New(),
		EmailEnabled:    true,
		SMTPHost:        "smtp.example.com",
		SMTPPort:        465,
		SMTPPassword:    "smtp-pass",
		SMTPUseTLS:      true,
		TwilioAuthToken: "twilio-token",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestSession_AddCommitGet(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	session := sqlstore.NewSession(db, domain.DefaultCatalog())

	s := sampleSettings()
	require.NoError(t, session.Add(ctx, s))
	require.NoError(t, session.Commit(ctx))

	e, err := session.Get(ctx, domain.EntityNotificationSettings, s.ID)
	require.NoError(t, err)
	got := e.(*domain.NotificationSettings)

	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, s.TenantID, got.TenantID)
	assert.Equal(t, 465, got.SMTPPort)
	assert.True(t, got.EmailEnabled)
	assert.False(t, got.SMSEnabled)
	assert.Equal(t, "smtp-pass", got.SMTPPassword)
	assert.True(t, s.CreatedAt.Equal(got.CreatedAt))
}

func TestSession_Get_NotFound(t *testing.T) {
	session := sqlstore.NewSession(openTestDB(t), domain.DefaultCatalog())
	_, err := session.Get(context.Background(), domain.EntityNotificationSettings, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSession_Rollback_DiscardsWrites(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	session := sqlstore.NewSession(db, domain.DefaultCatalog())

	s := sampleSettings()
	require.NoError(t, session.Add(ctx, s))
	require.NoError(t, session.Rollback(ctx))

	rows, err := session.Query(ctx, domain.EntityNotificationSettings)
	require.NoError(t, err)
	assert.Empty(t, rows)

	// nothing pending is fine
	assert.NoError(t, session.Rollback(ctx))
	assert.NoError(t, session.Commit(ctx))
}

func TestSession_Upsert_RefreshFindDelete(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	session := sqlstore.NewSession(db, domain.DefaultCatalog())

	s := sampleSettings()
	require.NoError(t, session.Add(ctx, s))
	require.NoError(t, session.Commit(ctx))

	s.SMTPHost = "relay.example.org"
	require.NoError(t, session.Add(ctx, s))
	require.NoError(t, session.Commit(ctx))

	stale := &domain.NotificationSettings{ID: s.ID}
	require.NoError(t, session.Refresh(ctx, stale))
	assert.Equal(t, "relay.example.org", stale.SMTPHost)

	found, err := session.Find(ctx, domain.EntityNotificationSettings, "tenant_id", s.TenantID)
	require.NoError(t, err)
	require.Len(t, found, 1)

	_, err = session.Find(ctx, domain.EntityNotificationSettings, "1=1; DROP TABLE audit_logs; --", "x")
	assert.Error(t, err)

	require.NoError(t, session.Delete(ctx, s))
	require.NoError(t, session.Commit(ctx))
	_, err = session.Get(ctx, domain.EntityNotificationSettings, s.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ==============================================================================
// End to end: legacy rows through the migration tool and the store
// ==============================================================================

func TestMigration_OverSQLite(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	catalog := domain.DefaultCatalog()
	factory := sqlstore.Factory(db, catalog)

	legacy := factory()
	for i := 0; i < 3; i++ {
		require.NoError(t, legacy.Add(ctx, sampleSettings()))
	}
	require.NoError(t, legacy.Commit(ctx))

	key := make([]byte, crypto.KeySize)
	_, _ = rand.Read(key)
	cipher, err := crypto.NewFieldCipher(key)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	codec := services.NewFieldCodec(cipher, domain.DefaultSensitiveFieldRegistry(), logger)
	auditRepo := sqlstore.NewAuditRepository(db)
	migrator := services.NewMigrationService(factory, catalog, cipher, codec, services.NewAuditLogger(auditRepo, logger), logger)

	dry, err := migrator.Migrate(ctx, domain.EntityNotificationSettings, true)
	require.NoError(t, err)
	assert.Equal(t, 3, dry.Changed)

	entries, err := auditRepo.List(ctx, domain.AuditFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries, "a dry run writes no audit entries")

	verify, err := migrator.Verify(ctx, domain.EntityNotificationSettings)
	require.NoError(t, err)
	assert.Equal(t, 3, verify.Unencrypted)

	live, err := migrator.Migrate(ctx, domain.EntityNotificationSettings, false)
	require.NoError(t, err)
	assert.Equal(t, 3, live.Changed)
	assert.Empty(t, live.Errors)

	entries, err = auditRepo.List(ctx, domain.AuditFilter{Action: domain.AuditActionMigrate})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, domain.RedactedValue, entries[0].Changes["smtp_password"].(map[string]any)["new"])

	verify, err = migrator.Verify(ctx, domain.EntityNotificationSettings)
	require.NoError(t, err)
	assert.True(t, verify.FullyProtected)
	assert.Equal(t, 3, verify.FullyEncrypted)

	store := services.NewEncryptedRecordStore(factory(), catalog, codec)
	rows, err := factory().Query(ctx, domain.EntityNotificationSettings)
	require.NoError(t, err)
	for _, row := range rows {
		e, err := store.Load(ctx, domain.EntityNotificationSettings, row.EntityID(), true)
		require.NoError(t, err)
		assert.Equal(t, "smtp-pass", e.(*domain.NotificationSettings).SMTPPassword)
		assert.True(t, cipher.LooksEncrypted(row.(*domain.NotificationSettings).SMTPPassword))
	}
}
