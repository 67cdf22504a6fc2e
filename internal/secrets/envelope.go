// Package secrets implements the credential envelope protecting
// user-supplied API secrets at rest. Values are stored as
// base64(IV || ciphertext) under AES-256-GCM with a fresh random
// 12-byte IV per encryption. The key is process-wide configuration,
// loaded once at startup and never persisted alongside the ciphertext.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// ivSize is the GCM nonce length prepended to every ciphertext.
const ivSize = 12

// minKeyBytes is the minimum raw key length after base64 decoding.
const minKeyBytes = 32

var (
	// ErrKeyNotConfigured is returned when no encryption key is supplied.
	ErrKeyNotConfigured = errors.New("secrets: encryption key not configured")

	// ErrKeyTooShort is returned when the decoded key is under 32 bytes.
	ErrKeyTooShort = errors.New("secrets: encryption key must be at least 32 bytes")
)

// Envelope encrypts and decrypts credential values. Safe for concurrent
// use.
type Envelope struct {
	gcm cipher.AEAD
}

// NewEnvelope builds an envelope from a base64-encoded key. Absence and
// insufficient length fail fast with distinguishable errors so a
// misconfigured deployment is caught at the point of first use.
func NewEnvelope(encodedKey string) (*Envelope, error) {
	if encodedKey == "" {
		return nil, ErrKeyNotConfigured
	}

	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("secrets: decode key: %w", err)
	}

	if len(key) < minKeyBytes {
		return nil, fmt.Errorf("%w: got %d", ErrKeyTooShort, len(key))
	}

	block, err := aes.NewCipher(key[:minKeyBytes])
	if err != nil {
		return nil, fmt.Errorf("secrets: %w", err)
	}

	gcm, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, fmt.Errorf("secrets: %w", err)
	}

	return &Envelope{gcm: gcm}, nil
}

// Encrypt encrypts plaintext and returns base64(IV || ciphertext).
func (e *Envelope) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("secrets: generate iv: %w", err)
	}

	sealed := e.gcm.Seal(iv, iv, []byte(plaintext), nil)

	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Any cryptographic failure -- wrong key,
// corrupted data, truncated IV -- yields ("", false) rather than an
// error: the stored value may have been encrypted under an older key,
// and callers must treat an unusable credential as absent, not as
// empty-string valid.
func (e *Envelope) Decrypt(encoded string) (string, bool) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", false
	}

	if len(data) <= ivSize {
		return "", false
	}

	plaintext, err := e.gcm.Open(nil, data[:ivSize], data[ivSize:], nil)
	if err != nil {
		return "", false
	}

	return string(plaintext), true
}
