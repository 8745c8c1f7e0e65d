package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/core/domain"
)

// auditRow is the storage shape of an audit entry; changes travel as JSON text.
type auditRow struct {
	ID            uuid.UUID `db:"id"`
	ActorID       uuid.UUID `db:"actor_id"`
	TenantID      uuid.UUID `db:"tenant_id"`
	Action        string    `db:"action"`
	ResourceType  string    `db:"resource_type"`
	ResourceID    string    `db:"resource_id"`
	Changes       string    `db:"changes"`
	OriginAddress string    `db:"origin_address"`
	ClientAgent   string    `db:"client_agent"`
	CreatedAt     time.Time `db:"created_at"`
}

// AuditRepository is the append-only audit log over sqlx.
type AuditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Append(ctx context.Context, entry *domain.AuditLogEntry) error {
	changes, err := json.Marshal(entry.Changes)
	if err != nil {
		return fmt.Errorf("encode audit changes: %w", err)
	}

	query := `
		INSERT INTO audit_logs (id, actor_id, tenant_id, action, resource_type, resource_id, changes, origin_address, client_agent, created_at)
		VALUES (:id, :actor_id, :tenant_id, :action, :resource_type, :resource_id, :changes, :origin_address, :client_agent, :created_at)
	`
	_, err = r.db.NamedExecContext(ctx, query, auditRow{
		ID:            entry.ID,
		ActorID:       entry.ActorID,
		TenantID:      entry.TenantID,
		Action:        string(entry.Action),
		ResourceType:  entry.ResourceType,
		ResourceID:    entry.ResourceID,
		Changes:       string(changes),
		OriginAddress: entry.OriginAddress,
		ClientAgent:   entry.ClientAgent,
		CreatedAt:     entry.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// List filters by tenant, action and resource type, newest first.
func (r *AuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditLogEntry, error) {
	query := `SELECT id, actor_id, tenant_id, action, resource_type, resource_id, changes, origin_address, client_agent, created_at FROM audit_logs WHERE 1=1`
	var args []any

	if filter.TenantID != uuid.Nil {
		query += " AND tenant_id = ?"
		args = append(args, filter.TenantID)
	}
	if filter.Action != "" {
		query += " AND action = ?"
		args = append(args, string(filter.Action))
	}
	if filter.ResourceType != "" {
		query += " AND resource_type = ?"
		args = append(args, filter.ResourceType)
	}

	query += " ORDER BY created_at DESC, id LIMIT ? OFFSET ?"
	args = append(args, filter.NormalizedLimit(), max(filter.Offset, 0))

	var rows []auditRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to fetch audit entries: %w", err)
	}

	entries := make([]domain.AuditLogEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (row auditRow) toDomain() (domain.AuditLogEntry, error) {
	changes := map[string]any{}
	if row.Changes != "" {
		if err := json.Unmarshal([]byte(row.Changes), &changes); err != nil {
			return domain.AuditLogEntry{}, fmt.Errorf("decode audit changes for %s: %w", row.ID, err)
		}
	}
	return domain.AuditLogEntry{
		ID:            row.ID,
		ActorID:       row.ActorID,
		TenantID:      row.TenantID,
		Action:        domain.AuditAction(row.Action),
		ResourceType:  row.ResourceType,
		ResourceID:    row.ResourceID,
		Changes:       changes,
		OriginAddress: row.OriginAddress,
		ClientAgent:   row.ClientAgent,
		CreatedAt:     row.CreatedAt,
	}, nil
}
