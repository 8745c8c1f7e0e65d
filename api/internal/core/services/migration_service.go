package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/core/domain"
	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/metrics"
)

const (
	ModeMigrate = "migrate"
	ModeRotate  = "rotate"
)

// MigrationService converts stored plaintext to ciphertext in place and
// reports coverage. It runs offline, one row at a time, in one session.
// Every row a live run rewrites gets one audit entry.
type MigrationService struct {
	sessions domain.SessionFactory
	catalog  *domain.Catalog
	cipher   domain.FieldCipher
	codec    *FieldCodec
	audit    *AuditLogger
	logger   *slog.Logger
	now      func() time.Time
}

func NewMigrationService(
	sessions domain.SessionFactory,
	catalog *domain.Catalog,
	cipher domain.FieldCipher,
	codec *FieldCodec,
	audit *AuditLogger,
	logger *slog.Logger,
) *MigrationService {
	return &MigrationService{
		sessions: sessions,
		catalog:  catalog,
		cipher:   cipher,
		codec:    codec,
		audit:    audit,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// migrationActions maps a run mode to its audit action.
var migrationActions = map[string]domain.AuditAction{
	ModeMigrate: domain.AuditActionMigrate,
	ModeRotate:  domain.AuditActionRotate,
}

// rowTransform returns the replacement for one stored value, or ok=false
// when the value needs no change.
type rowTransform func(value string) (replacement string, ok bool, err error)

// Migrate encrypts every registered field still holding plaintext. With
// dryRun nothing is written and the session is explicitly rolled back.
func (m *MigrationService) Migrate(ctx context.Context, entityType string, dryRun bool) (*domain.MigrationReport, error) {
	return m.run(ctx, entityType, ModeMigrate, dryRun, func(value string) (string, bool, error) {
		if m.cipher.LooksEncrypted(value) {
			return "", false, nil
		}
		ciphertext, err := m.cipher.Encrypt(value)
		return ciphertext, true, err
	})
}

// Rotate re-seals every envelope written under a retired key with the
// primary key. Plaintext is left for Migrate.
func (m *MigrationService) Rotate(ctx context.Context, entityType string, dryRun bool) (*domain.MigrationReport, error) {
	return m.run(ctx, entityType, ModeRotate, dryRun, func(value string) (string, bool, error) {
		if !m.cipher.NeedsRotation(value) {
			return "", false, nil
		}
		plaintext, err := m.cipher.Decrypt(value)
		if err != nil {
			return "", false, err
		}
		ciphertext, err := m.cipher.Encrypt(plaintext)
		return ciphertext, true, err
	})
}

func (m *MigrationService) run(ctx context.Context, entityType, mode string, dryRun bool, transform rowTransform) (*domain.MigrationReport, error) {
	schema, fields, err := m.protectedSchema(entityType)
	if err != nil {
		return nil, err
	}

	report := &domain.MigrationReport{
		EntityType: entityType,
		Mode:       mode,
		DryRun:     dryRun,
		Errors:     []domain.RowError{},
		StartedAt:  m.now(),
	}

	session := m.sessions()
	// 🛡️ Dry run: whatever happened, nothing survives the run
	defer func() {
		if dryRun {
			if err := session.Rollback(ctx); err != nil {
				m.logger.Error("Dry-run rollback failed", slog.String("entity_type", entityType), slog.Any("error", err))
			}
		}
	}()

	rows, err := session.Query(ctx, entityType)
	if err != nil {
		_ = session.Rollback(ctx)
		return nil, fmt.Errorf("%s %s: load rows: %w", mode, entityType, err)
	}

	m.logger.Info("Encryption migration started",
		slog.String("entity_type", entityType),
		slog.String("mode", mode),
		slog.Bool("dry_run", dryRun),
		slog.Int("rows", len(rows)))

	for _, e := range rows {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Total++

		changes, err := m.processRow(ctx, session, schema, fields, e, dryRun, transform)
		switch {
		case err != nil:
			// MigrationRowFailure: record, roll back this row, keep going
			if !dryRun {
				_ = session.Rollback(ctx)
			}
			report.Errors = append(report.Errors, domain.RowError{EntityID: e.EntityID(), Error: err.Error()})
			metrics.MigrationRows.WithLabelValues(entityType, mode, "error").Inc()
			m.logger.Warn("Migration row failed", slog.String("entity_type", entityType), slog.String("id", e.EntityID().String()), slog.Any("error", err))
		case len(changes) > 0:
			report.Changed++
			metrics.MigrationRows.WithLabelValues(entityType, mode, "changed").Inc()
			if dryRun {
				continue
			}
			if err := m.recordRow(ctx, schema, mode, e, changes); err != nil {
				// the row is committed; the missing audit entry still fails the run
				report.Errors = append(report.Errors, domain.RowError{EntityID: e.EntityID(), Error: err.Error()})
			}
		default:
			report.Skipped++
			metrics.MigrationRows.WithLabelValues(entityType, mode, "skipped").Inc()
		}
	}

	report.Duration = m.now().Sub(report.StartedAt)
	m.logger.Info("Encryption migration finished",
		slog.String("entity_type", entityType),
		slog.String("mode", mode),
		slog.Bool("dry_run", dryRun),
		slog.Int("total", report.Total),
		slog.Int("changed", report.Changed),
		slog.Int("skipped", report.Skipped),
		slog.Int("errors", len(report.Errors)))
	return report, nil
}

// processRow returns the {"field": {"old","new"}} changes it made (or would
// make). An empty map means the row needed nothing.
func (m *MigrationService) processRow(
	ctx context.Context,
	session domain.Session,
	schema *domain.Schema,
	fields []string,
	e domain.Entity,
	dryRun bool,
	transform rowTransform,
) (changes map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			changes, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()

	rec := schema.Record(e)
	updates := domain.Record{}
	changes = map[string]any{}
	for _, name := range fields {
		value, ok, err := sensitiveValue(rec, name)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		if !ok {
			continue
		}
		replacement, needed, err := transform(value)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		if needed {
			updates[name] = replacement
			changes[name] = map[string]any{"old": value, "new": replacement}
		}
	}

	if len(updates) == 0 || dryRun {
		return changes, nil
	}

	if _, err := schema.Apply(e, updates); err != nil {
		return nil, err
	}
	if err := touch(schema, e, m.now()); err != nil {
		return nil, err
	}
	if err := session.Add(ctx, e); err != nil {
		return nil, err
	}
	if err := session.Commit(ctx); err != nil {
		return nil, err
	}
	return changes, nil
}

// recordRow audits one rewritten row. The CLI has no actor, so the entry
// carries the nil actor and the tool name as client agent.
func (m *MigrationService) recordRow(ctx context.Context, schema *domain.Schema, mode string, e domain.Entity, changes map[string]any) error {
	var tenantID uuid.UUID
	if raw, ok := schema.Record(e)["tenant_id"].(uuid.UUID); ok {
		tenantID = raw
	}
	redacted := RedactChanges(m.codec.Registry(), schema.EntityType, changes)
	_, err := m.audit.Record(ctx, uuid.Nil, tenantID, migrationActions[mode], schema.EntityType,
		e.EntityID().String(), redacted, domain.RequestMeta{ClientAgent: "settings-crypt/" + mode})
	return err
}

// Verify is a read-only coverage pass. Rows without sensitive data are
// excluded from classification; FullyProtected requires zero partially- and
// un-encrypted rows.
func (m *MigrationService) Verify(ctx context.Context, entityType string) (*domain.VerifyReport, error) {
	schema, fields, err := m.protectedSchema(entityType)
	if err != nil {
		return nil, err
	}

	session := m.sessions()
	defer func() { _ = session.Rollback(ctx) }()

	rows, err := session.Query(ctx, entityType)
	if err != nil {
		return nil, fmt.Errorf("verify %s: load rows: %w", entityType, err)
	}

	coverage := make([]domain.FieldCoverage, len(fields))
	for i, name := range fields {
		coverage[i].Field = name
	}

	report := &domain.VerifyReport{EntityType: entityType, TotalRows: len(rows)}
	for _, e := range rows {
		rec := schema.Record(e)
		populated, encrypted := 0, 0
		for i, name := range fields {
			value, ok, err := sensitiveValue(rec, name)
			if !ok && err == nil {
				continue
			}
			populated++
			coverage[i].Populated++
			if err != nil || !m.cipher.LooksEncrypted(value) {
				continue
			}
			encrypted++
			coverage[i].Encrypted++
			if m.cipher.NeedsRotation(value) {
				coverage[i].RetiredKey++
			}
			if _, err := m.cipher.Decrypt(value); err != nil {
				coverage[i].Undecryptable++
			}
		}

		switch {
		case populated == 0:
			report.NoSensitiveData++
		case encrypted == populated:
			report.FullyEncrypted++
		case encrypted == 0:
			report.Unencrypted++
		default:
			report.PartiallyEncrypted++
		}
	}

	report.Fields = coverage
	report.FullyProtected = report.PartiallyEncrypted == 0 && report.Unencrypted == 0
	return report, nil
}

func (m *MigrationService) protectedSchema(entityType string) (*domain.Schema, []string, error) {
	schema, err := m.catalog.Lookup(entityType)
	if err != nil {
		return nil, nil, err
	}
	fields := m.codec.Registry().Fields(entityType)
	if len(fields) == 0 {
		return nil, nil, fmt.Errorf("%s has no registered sensitive fields", entityType)
	}
	return schema, fields, nil
}
