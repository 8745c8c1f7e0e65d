package domain

import (
	"time"

	"github.com/google/uuid"
)

// field builds a typed accessor pair for entity type E.
func field[E Entity, T any](name string, ptr func(E) *T, conv func(any) (T, error)) Attribute {
	return Attribute{
		Name: name,
		Get: func(e Entity) any {
			return *ptr(e.(E))
		},
		Set: func(e Entity, v any) error {
			val, err := conv(v)
			if err != nil {
				return err
			}
			*ptr(e.(E)) = val
			return nil
		},
	}
}

func StringField[E Entity](name string, ptr func(E) *string) Attribute {
	return field(name, ptr, asString)
}

func IntField[E Entity](name string, ptr func(E) *int) Attribute {
	return field(name, ptr, asInt)
}

func BoolField[E Entity](name string, ptr func(E) *bool) Attribute {
	return field(name, ptr, asBool)
}

func TimeField[E Entity](name string, ptr func(E) *time.Time) Attribute {
	return field(name, ptr, asTime)
}

func UUIDField[E Entity](name string, ptr func(E) *uuid.UUID) Attribute {
	return field(name, ptr, asUUID)
}

// Immutable marks the attribute read-only for patches.
func (a Attribute) Immutable() Attribute {
	a.ReadOnly = true
	return a
}
