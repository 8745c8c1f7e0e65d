package services

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/core/domain"
)

// AuditLogger appends immutable change records. It stores the change map
// exactly as given: redaction is the caller's job (see RedactChanges).
type AuditLogger struct {
	repo   domain.AuditRepository
	logger *slog.Logger
	now    func() time.Time
	newID  func() uuid.UUID
}

func NewAuditLogger(repo domain.AuditRepository, logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.New,
	}
}

// Record appends one entry. The change map is copied so later caller
// mutations cannot rewrite history.
func (a *AuditLogger) Record(
	ctx context.Context,
	actorID, tenantID uuid.UUID,
	action domain.AuditAction,
	resourceType, resourceID string,
	changes map[string]any,
	meta domain.RequestMeta,
) (*domain.AuditLogEntry, error) {
	entry := &domain.AuditLogEntry{
		ID:            a.newID(),
		ActorID:       actorID,
		TenantID:      tenantID,
		Action:        action,
		ResourceType:  resourceType,
		ResourceID:    resourceID,
		Changes:       maps.Clone(changes),
		OriginAddress: meta.OriginAddress,
		ClientAgent:   meta.ClientAgent,
		CreatedAt:     a.now(),
	}
	if entry.Changes == nil {
		entry.Changes = map[string]any{}
	}

	if err := a.repo.Append(ctx, entry); err != nil {
		a.logger.Error("Failed to append audit entry",
			slog.String("action", string(action)),
			slog.String("resource_type", resourceType),
			slog.String("resource_id", resourceID),
			slog.Any("error", err))
		return nil, fmt.Errorf("append audit entry: %w", err)
	}
	return entry, nil
}

// List returns entries matching filter, newest first.
func (a *AuditLogger) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditLogEntry, error) {
	return a.repo.List(ctx, filter)
}

// RedactChanges replaces the value of every registered field of entityType
// with the redaction sentinel. Nested {"old","new"} diffs are redacted on
// both sides. The input is not mutated.
func RedactChanges(registry *domain.SensitiveFieldRegistry, entityType string, changes map[string]any) map[string]any {
	out := make(map[string]any, len(changes))
	for k, v := range changes {
		if !registry.IsSensitive(entityType, k) {
			out[k] = v
			continue
		}
		if diff, ok := v.(map[string]any); ok {
			redacted := make(map[string]any, len(diff))
			for side := range diff {
				redacted[side] = domain.RedactedValue
			}
			out[k] = redacted
			continue
		}
		out[k] = domain.RedactedValue
	}
	return out
}

// DiffChanges returns {"field": {"old": x, "new": y}} for every key of after
// whose value differs from before. Keys missing from before diff against nil.
func DiffChanges(before, after domain.Record) map[string]any {
	changes := make(map[string]any)
	for k, newValue := range after {
		oldValue := before[k]
		if equalValues(oldValue, newValue) {
			continue
		}
		changes[k] = map[string]any{"old": oldValue, "new": newValue}
	}
	return changes
}

func equalValues(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Equal(tb)
		}
	}
	return reflect.DeepEqual(a, b)
}
