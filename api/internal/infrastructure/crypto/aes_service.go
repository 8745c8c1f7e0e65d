package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/core/domain"
	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/metrics"
)

// Envelope layout, base64url encoded:
//
//	version(1) | key id(4) | nonce(12) | ciphertext | GCM tag(16)
//
// The 5-byte header is bound as associated data, so swapping the key id or
// version breaks authentication.
const (
	envelopeVersion byte = 0x01
	keyIDSize            = 4
	headerSize           = 1 + keyIDSize
	gcmNonceSize         = 12
	gcmTagSize           = 16
	minEnvelopeBytes     = headerSize + gcmNonceSize + gcmTagSize

	// MinEnvelopeLength is the shortest text LooksEncrypted will even try to parse.
	MinEnvelopeLength = 20
)

var envelopeEncoding = base64.URLEncoding

type sealer struct {
	id   uint32
	aead cipher.AEAD
}

// FieldCipher is the AES-256-GCM implementation of domain.FieldCipher.
// It encrypts with the primary key only; retired keys are decrypt-only.
type FieldCipher struct {
	// 🛡️ Pre-calculate the AEAD per key to avoid per-call allocations
	primary *sealer
	keys    map[uint32]*sealer
}

var _ domain.FieldCipher = (*FieldCipher)(nil)

// NewFieldCipher builds a cipher from a 32-byte primary key and optional
// retired keys. The caller keeps ownership of the key slices.
func NewFieldCipher(primary []byte, retired ...[]byte) (*FieldCipher, error) {
	p, err := newSealer(primary)
	if err != nil {
		return nil, err
	}

	c := &FieldCipher{
		primary: p,
		keys:    map[uint32]*sealer{p.id: p},
	}
	for _, k := range retired {
		s, err := newSealer(k)
		if err != nil {
			return nil, fmt.Errorf("crypto: retired key: %w", err)
		}
		if _, dup := c.keys[s.id]; dup {
			continue
		}
		c.keys[s.id] = s
	}
	return c, nil
}

func newSealer(key []byte) (*sealer, error) {
	if len(key) != KeySize {
		return nil, errors.New("crypto: key must be 32 bytes for AES-256")
	}

	// 🛡️ Work on a private copy and zeroize it once the block cipher holds the schedule
	k := append([]byte(nil), key...)
	defer func() {
		for i := range k {
			k[i] = 0
		}
	}()

	id := keyID(k)
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, fmt.Errorf("crypto: block cipher failure: %w", err)
	}
	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: GCM failure: %w", err)
	}
	return &sealer{id: id, aead: aesGCM}, nil
}

// keyID fingerprints a key: the first 4 bytes of its SHA-256.
func keyID(key []byte) uint32 {
	sum := sha256.Sum256(key)
	return binary.BigEndian.Uint32(sum[:keyIDSize])
}

// KeyID returns the primary key fingerprint, safe to log.
func (c *FieldCipher) KeyID() string {
	var b [keyIDSize]byte
	binary.BigEndian.PutUint32(b[:], c.primary.id)
	return hex.EncodeToString(b[:])
}

// Encrypt seals plaintext under the primary key. "" stays "".
func (c *FieldCipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	// Capacity = header + nonce + plaintext + tag
	out := make([]byte, headerSize+gcmNonceSize, headerSize+gcmNonceSize+len(plaintext)+gcmTagSize)
	out[0] = envelopeVersion
	binary.BigEndian.PutUint32(out[1:headerSize], c.primary.id)

	nonce := out[headerSize : headerSize+gcmNonceSize]
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		metrics.CipherOperations.WithLabelValues("encrypt", "error").Inc()
		return "", fmt.Errorf("crypto: nonce generation failure: %w", err)
	}

	out = c.primary.aead.Seal(out, nonce, []byte(plaintext), out[:headerSize])
	metrics.CipherOperations.WithLabelValues("encrypt", "ok").Inc()
	return envelopeEncoding.EncodeToString(out), nil
}

// Decrypt opens an envelope with whichever known key sealed it. "" stays "".
// 🛡️ Error messages never include the input, the plaintext or key material.
func (c *FieldCipher) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	plaintext, err := c.open(ciphertext)
	if err != nil {
		metrics.CipherOperations.WithLabelValues("decrypt", "error").Inc()
		return "", err
	}
	metrics.CipherOperations.WithLabelValues("decrypt", "ok").Inc()
	return string(plaintext), nil
}

func (c *FieldCipher) open(ciphertext string) ([]byte, error) {
	data, ok := parseEnvelope(ciphertext)
	if !ok {
		return nil, fmt.Errorf("%w: not an envelope", domain.ErrDecryptionFailure)
	}

	s, found := c.keys[binary.BigEndian.Uint32(data[1:headerSize])]
	if !found {
		return nil, fmt.Errorf("%w: unknown key", domain.ErrDecryptionFailure)
	}

	nonce := data[headerSize : headerSize+gcmNonceSize]
	plaintext, err := s.aead.Open(nil, nonce, data[headerSize+gcmNonceSize:], data[:headerSize])
	if err != nil {
		return nil, fmt.Errorf("%w: integrity violation - potential tampering detected", domain.ErrDecryptionFailure)
	}
	return plaintext, nil
}

// LooksEncrypted is the plaintext-vs-ciphertext heuristic. Short text is never
// an envelope; longer text is an envelope if it decodes and carries our
// version byte. A plaintext secret that happens to be valid base64url starting
// with 0x01 is a false positive; nothing on the row can rule that out.
func (c *FieldCipher) LooksEncrypted(value string) bool {
	if len(value) < MinEnvelopeLength {
		return false
	}
	_, ok := parseEnvelope(value)
	return ok
}

// NeedsRotation reports an envelope sealed under any key but the primary.
func (c *FieldCipher) NeedsRotation(value string) bool {
	if len(value) < MinEnvelopeLength {
		return false
	}
	data, ok := parseEnvelope(value)
	if !ok {
		return false
	}
	return binary.BigEndian.Uint32(data[1:headerSize]) != c.primary.id
}

func parseEnvelope(value string) ([]byte, bool) {
	data, err := envelopeEncoding.DecodeString(value)
	if err != nil {
		return nil, false
	}
	if len(data) < minEnvelopeBytes || data[0] != envelopeVersion {
		return nil, false
	}
	return data, true
}
