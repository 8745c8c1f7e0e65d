package services

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/core/domain"
	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/metrics"
)

// FieldCodec applies the cipher to exactly the registered fields of a record.
// Every method returns a fresh map; inputs are never mutated.
type FieldCodec struct {
	cipher   domain.FieldCipher
	registry *domain.SensitiveFieldRegistry
	logger   *slog.Logger
}

func NewFieldCodec(
	cipher domain.FieldCipher,
	registry *domain.SensitiveFieldRegistry,
	logger *slog.Logger,
) *FieldCodec {
	return &FieldCodec{
		cipher:   cipher,
		registry: registry,
		logger:   logger,
	}
}

// Registry exposes the registry driving this codec.
func (c *FieldCodec) Registry() *domain.SensitiveFieldRegistry {
	return c.registry
}

// EncryptFields encrypts every registered, non-empty field that does not
// already look encrypted. Calling it twice equals calling it once.
func (c *FieldCodec) EncryptFields(entityType string, rec domain.Record) (domain.Record, error) {
	out := rec.Clone()
	for _, name := range c.registry.Fields(entityType) {
		value, ok, err := sensitiveValue(out, name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s must be text", domain.ErrInvalidInput, entityType, name)
		}
		if !ok {
			continue
		}
		if c.cipher.LooksEncrypted(value) {
			out[name] = value
			continue
		}

		ciphertext, err := c.cipher.Encrypt(value)
		if err != nil {
			// 🛡️ Name the field, never the value
			return nil, fmt.Errorf("encrypt %s.%s: %w", entityType, name, err)
		}
		out[name] = ciphertext
	}
	return out, nil
}

// DecryptFields decrypts every registered field that looks encrypted. A field
// that fails to decrypt keeps its stored value and is logged as a warning so
// an ordinary read never aborts on one bad field.
func (c *FieldCodec) DecryptFields(entityType string, rec domain.Record) domain.Record {
	out := rec.Clone()
	for _, name := range c.registry.Fields(entityType) {
		value, ok, err := sensitiveValue(out, name)
		if err != nil || !ok || !c.cipher.LooksEncrypted(value) {
			continue
		}

		plaintext, err := c.cipher.Decrypt(value)
		if err != nil {
			attrs := []any{slog.String("entity_type", entityType), slog.String("field", name)}
			if errors.Is(err, domain.ErrDecryptionFailure) {
				c.logger.Warn("Failed to decrypt field, keeping stored value", attrs...)
			} else {
				c.logger.Error("Unexpected cipher error, keeping stored value", append(attrs, slog.Any("error", err))...)
			}
			metrics.DecryptFallbacks.WithLabelValues(entityType, name).Inc()
			continue
		}
		out[name] = plaintext
	}
	return out
}

// MaskFields removes every registered field and adds a "<field>_set" flag
// (true when a non-empty value was present) so the record is safe to display.
func (c *FieldCodec) MaskFields(entityType string, rec domain.Record) domain.Record {
	out := rec.Clone()
	for _, name := range c.registry.Fields(entityType) {
		if _, present := out[name]; !present {
			continue
		}
		_, populated, err := sensitiveValue(out, name)
		delete(out, name)
		out[name+"_set"] = populated || err != nil
	}
	return out
}

// PlaintextFields lists registered fields holding a non-empty value that does
// not look encrypted. Values that are not text count as plaintext.
func (c *FieldCodec) PlaintextFields(entityType string, rec domain.Record) []string {
	var names []string
	for _, name := range c.registry.Fields(entityType) {
		value, ok, err := sensitiveValue(rec, name)
		if err != nil || (ok && !c.cipher.LooksEncrypted(value)) {
			names = append(names, name)
		}
	}
	return names
}

// sensitiveValue returns the field converted the way the schema setter will
// store it. ok is false for absent or empty values; err is set for values
// that cannot be stored as text at all.
func sensitiveValue(rec domain.Record, name string) (value string, ok bool, err error) {
	raw, present := rec[name]
	if !present {
		return "", false, nil
	}
	value, err = domain.TextValue(raw)
	if err != nil {
		return "", false, err
	}
	return value, value != "", nil
}
