package domain

// FieldCipher defines the contract for field-level encryption at rest.
// It enforces AEAD: a tampered envelope or a wrong key fails loudly.
type FieldCipher interface {
	// Encrypt returns a printable authenticated envelope. "" maps to "".
	Encrypt(plaintext string) (string, error)

	// Decrypt verifies and opens an envelope. "" maps to "".
	// Any failure wraps ErrDecryptionFailure.
	Decrypt(ciphertext string) (string, error)

	// LooksEncrypted is a heuristic, not an authoritative check.
	LooksEncrypted(value string) bool

	// NeedsRotation reports whether value looks encrypted under a retired key.
	NeedsRotation(value string) bool
}
