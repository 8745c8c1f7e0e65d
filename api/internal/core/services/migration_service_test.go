package services_test

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/core/domain"
	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/core/services"
	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/infrastructure/crypto"
)

// seedLegacyRows writes three plaintext rows, one partially encrypted row and
// one row without secrets, straight into storage.
func seedLegacyRows(t *testing.T, db *memDB, cipher domain.FieldCipher) (plaintextRows int) {
	t.Helper()
	for i := 0; i < 3; i++ {
		db.insert(t, plaintextSettings(uuid.New()))
	}

	partial := plaintextSettings(uuid.New())
	sealed, err := cipher.Encrypt(partial.SMTPPassword)
	require.NoError(t, err)
	partial.SMTPPassword = sealed
	db.insert(t, partial)

	db.insert(t, &domain.NotificationSettings{ID: uuid.New(), TenantID: uuid.New(), SMTPHost: "smtp.example.com"})
	return 4
}

func newMigrationService(t *testing.T, db *memDB, cipher domain.FieldCipher) *services.MigrationService {
	t.Helper()
	audit := services.NewAuditLogger(db.audit, discardLogger())
	return services.NewMigrationService(db.factory(), db.catalog, cipher, newTestCodec(t, cipher), audit, discardLogger())
}

func TestMigrationService_DryRun_IsSafe(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	cipher := newTestCipher(t)
	wouldChange := seedLegacyRows(t, db, cipher)
	before := db.snapshot(domain.EntityNotificationSettings)

	report, err := newMigrationService(t, db, cipher).Migrate(ctx, domain.EntityNotificationSettings, true)
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, 5, report.Total)
	assert.Equal(t, wouldChange, report.Changed)
	assert.Equal(t, 1, report.Skipped)
	assert.Empty(t, report.Errors)

	// 🛡️ Re-reading storage must yield the exact pre-run state
	assert.Equal(t, before, db.snapshot(domain.EntityNotificationSettings))
	assert.Zero(t, db.commits)
	assert.Empty(t, db.audit.entries, "a dry run writes no audit entries")
}

func TestMigrationService_Migrate(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	cipher := newTestCipher(t)
	expected := seedLegacyRows(t, db, cipher)
	svc := newMigrationService(t, db, cipher)

	report, err := svc.Migrate(ctx, domain.EntityNotificationSettings, false)
	require.NoError(t, err)
	assert.False(t, report.DryRun)
	assert.Equal(t, expected, report.Changed)
	assert.False(t, report.Failed())

	codec := newTestCodec(t, cipher)
	for id, rec := range db.snapshot(domain.EntityNotificationSettings) {
		assert.Empty(t, codec.PlaintextFields(domain.EntityNotificationSettings, rec), "row %s still holds plaintext", id)
		assert.Equal(t, "smtp.example.com", rec["smtp_host"])
	}

	t.Run("Decrypts back to the original values", func(t *testing.T) {
		rows, err := db.factory()().Query(ctx, domain.EntityNotificationSettings)
		require.NoError(t, err)
		for _, e := range rows {
			n := e.(*domain.NotificationSettings)
			if n.SMTPPassword == "" {
				continue
			}
			plaintext, err := cipher.Decrypt(n.SMTPPassword)
			require.NoError(t, err)
			assert.Equal(t, "smtp-pass-123", plaintext)
		}
	})

	t.Run("Every changed row is audited with redacted values", func(t *testing.T) {
		require.Len(t, db.audit.entries, expected)
		for _, entry := range db.audit.entries {
			assert.Equal(t, domain.AuditActionMigrate, entry.Action)
			assert.Equal(t, domain.EntityNotificationSettings, entry.ResourceType)
			assert.Equal(t, uuid.Nil, entry.ActorID)
			assert.NotEqual(t, uuid.Nil, entry.TenantID)
			assert.Equal(t, "settings-crypt/migrate", entry.ClientAgent)
			require.Contains(t, entry.Changes, "twilio_auth_token")
			assert.Equal(t, map[string]any{"old": domain.RedactedValue, "new": domain.RedactedValue}, entry.Changes["twilio_auth_token"])
			assert.NotContains(t, fmt.Sprint(entry.Changes), "twilio-token-xyz")
			assert.NotContains(t, fmt.Sprint(entry.Changes), "smtp-pass-123")
		}
	})

	t.Run("Second run changes nothing", func(t *testing.T) {
		again, err := svc.Migrate(ctx, domain.EntityNotificationSettings, false)
		require.NoError(t, err)
		assert.Zero(t, again.Changed)
		assert.Equal(t, 5, again.Skipped)
		assert.Len(t, db.audit.entries, expected)
	})
}

func TestMigrationService_AuditFailure_FailsRun(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	cipher := newTestCipher(t)
	row := plaintextSettings(uuid.New())
	db.insert(t, row)
	db.audit.err = errors.New("audit store down")

	report, err := newMigrationService(t, db, cipher).Migrate(ctx, domain.EntityNotificationSettings, false)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Changed)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, row.ID, report.Errors[0].EntityID)
	assert.True(t, cipher.LooksEncrypted(db.raw(domain.EntityNotificationSettings, row.ID)["smtp_password"].(string)))
}

func TestMigrationService_RowFailure_DoesNotAbortBatch(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	cipher := newTestCipher(t)

	good := plaintextSettings(uuid.New())
	bad := plaintextSettings(uuid.New())
	db.insert(t, good)
	db.insert(t, bad)
	db.failAdd[bad.ID] = true

	report, err := newMigrationService(t, db, cipher).Migrate(ctx, domain.EntityNotificationSettings, false)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1, report.Changed)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, bad.ID, report.Errors[0].EntityID)
	assert.True(t, report.Failed())

	assert.Equal(t, "smtp-pass-123", db.raw(domain.EntityNotificationSettings, bad.ID)["smtp_password"])
	assert.True(t, cipher.LooksEncrypted(db.raw(domain.EntityNotificationSettings, good.ID)["smtp_password"].(string)))
}

func TestMigrationService_Rotate(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()

	oldKey := make([]byte, crypto.KeySize)
	newKey := make([]byte, crypto.KeySize)
	_, _ = rand.Read(oldKey)
	_, _ = rand.Read(newKey)

	legacy, err := crypto.NewFieldCipher(oldKey)
	require.NoError(t, err)
	current, err := crypto.NewFieldCipher(newKey, oldKey)
	require.NoError(t, err)

	row := plaintextSettings(uuid.New())
	row.SMTPPassword, err = legacy.Encrypt(row.SMTPPassword)
	require.NoError(t, err)
	db.insert(t, row)

	svc := newMigrationService(t, db, current)

	verify, err := svc.Verify(ctx, domain.EntityNotificationSettings)
	require.NoError(t, err)
	assert.Equal(t, 1, fieldCoverage(verify, "smtp_password").RetiredKey)

	dry, err := svc.Rotate(ctx, domain.EntityNotificationSettings, true)
	require.NoError(t, err)
	assert.Equal(t, 1, dry.Changed)
	assert.True(t, current.NeedsRotation(db.raw(domain.EntityNotificationSettings, row.ID)["smtp_password"].(string)))

	assert.Empty(t, db.audit.entries)

	report, err := svc.Rotate(ctx, domain.EntityNotificationSettings, false)
	require.NoError(t, err)
	assert.Equal(t, services.ModeRotate, report.Mode)
	assert.Equal(t, 1, report.Changed)

	require.Len(t, db.audit.entries, 1)
	assert.Equal(t, domain.AuditActionRotate, db.audit.entries[0].Action)
	assert.Equal(t, row.TenantID, db.audit.entries[0].TenantID)
	assert.Equal(t, []string{"smtp_password"}, changedFields(db.audit.entries[0]))

	stored := db.raw(domain.EntityNotificationSettings, row.ID)["smtp_password"].(string)
	assert.False(t, current.NeedsRotation(stored))
	plaintext, err := current.Decrypt(stored)
	require.NoError(t, err)
	assert.Equal(t, "smtp-pass-123", plaintext)

	// plaintext secrets are left for migrate
	assert.Equal(t, "twilio-token-xyz", db.raw(domain.EntityNotificationSettings, row.ID)["twilio_auth_token"])
}

func TestMigrationService_Verify(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	cipher := newTestCipher(t)
	seedLegacyRows(t, db, cipher)
	svc := newMigrationService(t, db, cipher)

	report, err := svc.Verify(ctx, domain.EntityNotificationSettings)
	require.NoError(t, err)

	assert.Equal(t, 5, report.TotalRows)
	assert.Equal(t, 0, report.FullyEncrypted)
	assert.Equal(t, 1, report.PartiallyEncrypted)
	assert.Equal(t, 3, report.Unencrypted)
	assert.Equal(t, 1, report.NoSensitiveData)
	assert.False(t, report.FullyProtected)

	pw := fieldCoverage(report, "smtp_password")
	assert.Equal(t, 4, pw.Populated)
	assert.Equal(t, 1, pw.Encrypted)
	assert.Zero(t, pw.Undecryptable)

	_, err = svc.Migrate(ctx, domain.EntityNotificationSettings, false)
	require.NoError(t, err)

	report, err = svc.Verify(ctx, domain.EntityNotificationSettings)
	require.NoError(t, err)
	assert.Equal(t, 4, report.FullyEncrypted)
	assert.True(t, report.FullyProtected)

	t.Run("Foreign key material is undecryptable", func(t *testing.T) {
		foreign := newTestCipher(t)
		report, err := newMigrationService(t, db, foreign).Verify(ctx, domain.EntityNotificationSettings)
		require.NoError(t, err)
		assert.Equal(t, 4, fieldCoverage(report, "smtp_password").Undecryptable)
	})

	t.Run("Unknown entity type", func(t *testing.T) {
		_, err := svc.Verify(ctx, "shift")
		assert.ErrorIs(t, err, domain.ErrUnknownEntityType)
	})
}

func fieldCoverage(report *domain.VerifyReport, field string) domain.FieldCoverage {
	for _, f := range report.Fields {
		if f.Field == field {
			return f
		}
	}
	return domain.FieldCoverage{}
}

func changedFields(entry domain.AuditLogEntry) []string {
	names := make([]string, 0, len(entry.Changes))
	for k := range entry.Changes {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

