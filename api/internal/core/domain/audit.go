package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RedactedValue replaces registered-sensitive values in audit change maps.
const RedactedValue = "***REDACTED***"

type AuditAction string

const (
	AuditActionCreate  AuditAction = "create"
	AuditActionUpdate  AuditAction = "update"
	AuditActionDelete  AuditAction = "delete"
	AuditActionMigrate AuditAction = "encryption.migrate"
	AuditActionRotate  AuditAction = "encryption.rotate"
)

// AuditLogEntry is immutable once appended.
// 🛡️ Changes must already be redacted by the caller; the logger never inspects it.
type AuditLogEntry struct {
	ID            uuid.UUID      `json:"id"`
	ActorID       uuid.UUID      `json:"actor_id"`
	TenantID      uuid.UUID      `json:"tenant_id"`
	Action        AuditAction    `json:"action"`
	ResourceType  string         `json:"resource_type"`
	ResourceID    string         `json:"resource_id"`
	Changes       map[string]any `json:"changes"`
	OriginAddress string         `json:"origin_address,omitempty"`
	ClientAgent   string         `json:"client_agent,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// RequestMeta carries the caller's network identity into the audit trail.
type RequestMeta struct {
	OriginAddress string
	ClientAgent   string
}

// AuditFilter drives paginated listing. Zero values mean "any".
type AuditFilter struct {
	TenantID     uuid.UUID
	Action       AuditAction
	ResourceType string
	Limit        int
	Offset       int
}

// AuditRepository is append-only: there is no update or delete.
type AuditRepository interface {
	Append(ctx context.Context, entry *AuditLogEntry) error
	List(ctx context.Context, filter AuditFilter) ([]AuditLogEntry, error)
}

// NormalizedLimit clamps the page size the way every repository does.
func (f AuditFilter) NormalizedLimit() int {
	if f.Limit <= 0 || f.Limit > 100 {
		return 50
	}
	return f.Limit
}
