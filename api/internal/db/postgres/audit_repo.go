// api/internal/db/postgres/audit_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/core/domain"
)

type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// auditRecord mirrors audit_logs for pgx.RowToStructByName.
type auditRecord struct {
	ID            uuid.UUID      `db:"id"`
	ActorID       uuid.UUID      `db:"actor_id"`
	TenantID      uuid.UUID      `db:"tenant_id"`
	Action        string         `db:"action"`
	ResourceType  string         `db:"resource_type"`
	ResourceID    string         `db:"resource_id"`
	Changes       map[string]any `db:"changes"`
	OriginAddress string         `db:"origin_address"`
	ClientAgent   string         `db:"client_agent"`
	CreatedAt     time.Time      `db:"created_at"`
}

// 🛡️ Append is insert-only; the table has no update path from this service.
func (r *AuditRepository) Append(ctx context.Context, entry *domain.AuditLogEntry) error {
	changes, err := json.Marshal(entry.Changes)
	if err != nil {
		return fmt.Errorf("encode audit changes: %w", err)
	}

	query := `
		INSERT INTO audit_logs (id, actor_id, tenant_id, action, resource_type, resource_id, changes, origin_address, client_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9, $10)
	`
	_, err = r.pool.Exec(ctx, query,
		entry.ID,
		entry.ActorID,
		entry.TenantID,
		string(entry.Action),
		entry.ResourceType,
		entry.ResourceID,
		string(changes),
		entry.OriginAddress,
		entry.ClientAgent,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

/**
 * List builds a dynamic SQL query from the filter.
 * Tenant scoping is applied whenever the caller names a tenant.
 */
func (r *AuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditLogEntry, error) {
	query := `SELECT id, actor_id, tenant_id, action, resource_type, resource_id, changes, origin_address, client_agent, created_at FROM audit_logs WHERE 1=1`

	var args []any
	argCount := 1

	if filter.TenantID != uuid.Nil {
		query += fmt.Sprintf(" AND tenant_id = $%d", argCount)
		args = append(args, filter.TenantID)
		argCount++
	}

	if filter.Action != "" {
		query += fmt.Sprintf(" AND action = $%d", argCount)
		args = append(args, string(filter.Action))
		argCount++
	}

	if filter.ResourceType != "" {
		query += fmt.Sprintf(" AND resource_type = $%d", argCount)
		args = append(args, filter.ResourceType)
		argCount++
	}

	// 🛡️ Pagination limits
	query += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, filter.NormalizedLimit(), max(filter.Offset, 0))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch audit entries: %w", err)
	}
	defer rows.Close()

	records, err := pgx.CollectRows(rows, pgx.RowToStructByName[auditRecord])
	if err != nil {
		return nil, fmt.Errorf("failed to scan audit entries: %w", err)
	}

	entries := make([]domain.AuditLogEntry, len(records))
	for i, rec := range records {
		entries[i] = domain.AuditLogEntry{
			ID:            rec.ID,
			ActorID:       rec.ActorID,
			TenantID:      rec.TenantID,
			Action:        domain.AuditAction(rec.Action),
			ResourceType:  rec.ResourceType,
			ResourceID:    rec.ResourceID,
			Changes:       rec.Changes,
			OriginAddress: rec.OriginAddress,
			ClientAgent:   rec.ClientAgent,
			CreatedAt:     rec.CreatedAt,
		}
	}
	return entries, nil
}
