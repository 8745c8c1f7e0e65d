package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/core/domain"
)

const (
	// KeySize is the AES-256 key length.
	KeySize = 32

	// KDFIterations is the PBKDF2-HMAC-SHA256 work factor for operator secrets.
	KDFIterations = 100_000
)

// kdfSalt is fixed so the same operator secret always yields the same key
// across restarts and replicas.
var kdfSalt = []byte("hospitality-scheduler/settings-encryption/v1")

// KeyOrigin tells operators how the active key was obtained.
type KeyOrigin string

const (
	KeyOriginDirect  KeyOrigin = "direct"
	KeyOriginDerived KeyOrigin = "derived"
)

// KeySource is the raw key material read from the environment.
type KeySource struct {
	// EncryptionKey is a base64 encoded 32-byte key.
	EncryptionKey string
	// OperatorSecret is the lower-entropy fallback fed through PBKDF2.
	OperatorSecret string
	// PreviousKeys are retired base64 keys kept for decryption during rotation.
	PreviousKeys []string
}

// ResolveKey returns the active key. A missing or malformed direct key falls
// back to the operator secret; with neither, ErrKeyUnavailable.
func ResolveKey(src KeySource) ([]byte, KeyOrigin, error) {
	if key, err := ParseKey(src.EncryptionKey); err == nil {
		return key, KeyOriginDirect, nil
	}

	secret := strings.TrimSpace(src.OperatorSecret)
	if secret == "" {
		return nil, "", domain.ErrKeyUnavailable
	}
	return DeriveKey(secret), KeyOriginDerived, nil
}

// ParseKey decodes a base64 key in any of the standard or URL-safe alphabets,
// padded or not, and insists on exactly 32 bytes.
func ParseKey(value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("crypto: empty key")
	}

	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.RawURLEncoding,
	}
	for _, enc := range encodings {
		decoded, err := enc.DecodeString(value)
		if err != nil {
			continue
		}
		if len(decoded) != KeySize {
			return nil, fmt.Errorf("crypto: key must be %d bytes, got %d", KeySize, len(decoded))
		}
		return decoded, nil
	}
	return nil, fmt.Errorf("crypto: invalid key encoding")
}

// DeriveKey stretches an operator secret with PBKDF2-HMAC-SHA256.
func DeriveKey(secret string) []byte {
	return pbkdf2.Key([]byte(secret), kdfSalt, KDFIterations, KeySize, sha256.New)
}

// GenerateKey returns a fresh random key, base64 encoded for the environment.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("crypto: key generation failure: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// NewFieldCipherFromSource resolves the primary key and every retired key.
// It is meant to run once, at process start.
func NewFieldCipherFromSource(src KeySource) (*FieldCipher, KeyOrigin, error) {
	primary, origin, err := ResolveKey(src)
	if err != nil {
		return nil, "", err
	}

	retired := make([][]byte, 0, len(src.PreviousKeys))
	for i, raw := range src.PreviousKeys {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		key, err := ParseKey(raw)
		if err != nil {
			return nil, "", fmt.Errorf("previous key #%d: %w", i+1, err)
		}
		retired = append(retired, key)
	}

	c, err := NewFieldCipher(primary, retired...)
	if err != nil {
		return nil, "", err
	}
	return c, origin, nil
}
