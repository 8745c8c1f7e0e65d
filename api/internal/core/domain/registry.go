package domain

import "sort"

// SensitiveFieldRegistry is the static table of fields that must be
// encrypted at rest, per entity type. It is never mutated after construction.
type SensitiveFieldRegistry struct {
	fields map[string][]string
	lookup map[string]map[string]struct{}
}

// NewSensitiveFieldRegistry copies entries; field order is preserved.
func NewSensitiveFieldRegistry(entries map[string][]string) *SensitiveFieldRegistry {
	r := &SensitiveFieldRegistry{
		fields: make(map[string][]string, len(entries)),
		lookup: make(map[string]map[string]struct{}, len(entries)),
	}
	for entityType, names := range entries {
		r.fields[entityType] = append([]string(nil), names...)
		set := make(map[string]struct{}, len(names))
		for _, n := range names {
			set[n] = struct{}{}
		}
		r.lookup[entityType] = set
	}
	return r
}

// DefaultSensitiveFieldRegistry returns the production registry.
func DefaultSensitiveFieldRegistry() *SensitiveFieldRegistry {
	return NewSensitiveFieldRegistry(map[string][]string{
		EntityNotificationSettings: {
			"smtp_password",
			"twilio_account_sid",
			"twilio_auth_token",
			"firebase_server_key",
		},
	})
}

// Fields returns the ordered registered fields for entityType (nil if none).
func (r *SensitiveFieldRegistry) Fields(entityType string) []string {
	names := r.fields[entityType]
	if names == nil {
		return nil
	}
	return append([]string(nil), names...)
}

// IsSensitive reports whether field is registered for entityType.
func (r *SensitiveFieldRegistry) IsSensitive(entityType, field string) bool {
	_, ok := r.lookup[entityType][field]
	return ok
}

// Protects reports whether entityType has any registered field.
func (r *SensitiveFieldRegistry) Protects(entityType string) bool {
	return len(r.fields[entityType]) > 0
}

// EntityTypes returns every protected entity type, sorted.
func (r *SensitiveFieldRegistry) EntityTypes() []string {
	types := make([]string, 0, len(r.fields))
	for t := range r.fields {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
