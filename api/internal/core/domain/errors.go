package domain

import "errors"

var (
	// ErrNotFound is returned by sessions and stores when no row matches.
	ErrNotFound = errors.New("record not found")

	// ErrKeyUnavailable means neither a direct key nor an operator secret was configured.
	// 🛡️ Fatal for any path that needs encryption; never retried.
	ErrKeyUnavailable = errors.New("encryption key unavailable")

	// ErrDecryptionFailure covers wrong key, corrupted envelope and non-envelope input.
	ErrDecryptionFailure = errors.New("decryption failure")

	// ErrUnknownEntityType is returned when a type has no schema in the catalog.
	ErrUnknownEntityType = errors.New("unknown entity type")

	// ErrInvalidInput wraps caller-supplied patches that fail validation.
	ErrInvalidInput = errors.New("invalid input")
)
