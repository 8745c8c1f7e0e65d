package domain

import (
	"time"

	"github.com/google/uuid"
)

// RowError is one MigrationRowFailure captured during a batch.
type RowError struct {
	EntityID uuid.UUID `json:"entity_id"`
	Error    string    `json:"error"`
}

// MigrationReport is produced per migrate/rotate run and never persisted.
type MigrationReport struct {
	EntityType string        `json:"entity_type"`
	Mode       string        `json:"mode"`
	DryRun     bool          `json:"dry_run"`
	Total      int           `json:"total"`
	Changed    int           `json:"changed"`
	Skipped    int           `json:"skipped"`
	Errors     []RowError    `json:"errors"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration_ns"`
}

// Failed reports whether any row failed.
func (r *MigrationReport) Failed() bool { return len(r.Errors) > 0 }

// FieldCoverage counts one registered field across all rows.
type FieldCoverage struct {
	Field         string `json:"field"`
	Populated     int    `json:"populated"`
	Encrypted     int    `json:"encrypted"`
	RetiredKey    int    `json:"retired_key"`
	Undecryptable int    `json:"undecryptable"`
}

// VerifyReport is the read-only coverage report.
type VerifyReport struct {
	EntityType         string          `json:"entity_type"`
	TotalRows          int             `json:"total_rows"`
	Fields             []FieldCoverage `json:"fields"`
	FullyEncrypted     int             `json:"fully_encrypted"`
	PartiallyEncrypted int             `json:"partially_encrypted"`
	Unencrypted        int             `json:"unencrypted"`
	NoSensitiveData    int             `json:"no_sensitive_data"`
	FullyProtected     bool            `json:"fully_protected"`
}

// Undecryptable sums values that look encrypted but no known key opens.
func (r *VerifyReport) Undecryptable() int {
	n := 0
	for _, f := range r.Fields {
		n += f.Undecryptable
	}
	return n
}
