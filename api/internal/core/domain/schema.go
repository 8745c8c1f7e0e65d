package domain

import (
	"fmt"
	"maps"
	"sort"

	"github.com/google/uuid"
)

// Entity is anything the storage session can persist.
type Entity interface {
	EntityType() string
	EntityID() uuid.UUID
}

// Record is the generic field-name → value view of an entity.
type Record map[string]any

// Clone returns a shallow copy so transforms never mutate caller maps.
func (r Record) Clone() Record {
	if r == nil {
		return Record{}
	}
	return maps.Clone(r)
}

// Attribute is one compiled accessor pair of a schema.
type Attribute struct {
	Name string
	// ReadOnly attributes are loaded from storage but never patched by callers.
	ReadOnly bool
	Get      func(Entity) any
	Set      func(Entity, any) error
}

// Schema is the per-entity-type accessor table. It replaces reflective
// attribute lookup: only names listed here exist for codecs and sessions.
type Schema struct {
	EntityType string
	Table      string
	New        func() Entity
	Attributes []Attribute

	index map[string]int
}

// NewSchema compiles the attribute index. Duplicate names panic at startup.
func NewSchema(entityType, table string, newFn func() Entity, attrs ...Attribute) *Schema {
	s := &Schema{
		EntityType: entityType,
		Table:      table,
		New:        newFn,
		Attributes: attrs,
		index:      make(map[string]int, len(attrs)),
	}
	for i, a := range attrs {
		if _, dup := s.index[a.Name]; dup {
			panic(fmt.Sprintf("schema %s: duplicate attribute %q", entityType, a.Name))
		}
		s.index[a.Name] = i
	}
	return s
}

// Attribute looks up an accessor by name.
func (s *Schema) Attribute(name string) (Attribute, bool) {
	i, ok := s.index[name]
	if !ok {
		return Attribute{}, false
	}
	return s.Attributes[i], true
}

// Has reports whether name is a known attribute.
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Names returns attribute names in declaration order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.Attributes))
	for i, a := range s.Attributes {
		names[i] = a.Name
	}
	return names
}

// Record serialises every attribute of e.
func (s *Schema) Record(e Entity) Record {
	rec := make(Record, len(s.Attributes))
	for _, a := range s.Attributes {
		rec[a.Name] = a.Get(e)
	}
	return rec
}

// Apply writes every known key of rec onto e and returns the applied names.
// Unknown keys are ignored.
func (s *Schema) Apply(e Entity, rec Record) ([]string, error) {
	return s.apply(e, rec, true)
}

// Patch is Apply for caller-supplied updates: read-only attributes are skipped.
func (s *Schema) Patch(e Entity, rec Record) ([]string, error) {
	return s.apply(e, rec, false)
}

func (s *Schema) apply(e Entity, rec Record, includeReadOnly bool) ([]string, error) {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	applied := make([]string, 0, len(keys))
	for _, k := range keys {
		a, ok := s.Attribute(k)
		if !ok || (a.ReadOnly && !includeReadOnly) {
			continue
		}
		if err := a.Set(e, rec[k]); err != nil {
			return applied, fmt.Errorf("%s.%s: %w", s.EntityType, k, err)
		}
		applied = append(applied, k)
	}
	return applied, nil
}

// Catalog maps entity type names to schemas. Static after construction.
type Catalog struct {
	schemas map[string]*Schema
}

func NewCatalog(schemas ...*Schema) *Catalog {
	c := &Catalog{schemas: make(map[string]*Schema, len(schemas))}
	for _, s := range schemas {
		c.schemas[s.EntityType] = s
	}
	return c
}

// DefaultCatalog holds every persisted entity type of the settings store.
func DefaultCatalog() *Catalog {
	return NewCatalog(NotificationSettingsSchema)
}

// Lookup returns the schema for entityType or ErrUnknownEntityType.
func (c *Catalog) Lookup(entityType string) (*Schema, error) {
	s, ok := c.schemas[entityType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntityType, entityType)
	}
	return s, nil
}

// Types returns the registered entity type names, sorted.
func (c *Catalog) Types() []string {
	types := make([]string, 0, len(c.schemas))
	for t := range c.schemas {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
