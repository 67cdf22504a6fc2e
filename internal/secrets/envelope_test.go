package secrets_test

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rankforge/crawlpipe/internal/secrets"
)

// testKey is 32 bytes, base64-encoded.
var testKey = base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))

func newEnvelope(t *testing.T) *secrets.Envelope {
	t.Helper()

	env, err := secrets.NewEnvelope(testKey)
	require.NoError(t, err)

	return env
}

func TestNewEnvelope_KeyNotConfigured(t *testing.T) {
	t.Parallel()

	_, err := secrets.NewEnvelope("")
	require.ErrorIs(t, err, secrets.ErrKeyNotConfigured)
}

func TestNewEnvelope_KeyTooShort(t *testing.T) {
	t.Parallel()

	short := base64.StdEncoding.EncodeToString([]byte("too-short"))

	_, err := secrets.NewEnvelope(short)
	require.ErrorIs(t, err, secrets.ErrKeyTooShort)
}

func TestNewEnvelope_KeyNotBase64(t *testing.T) {
	t.Parallel()

	_, err := secrets.NewEnvelope("not!!!valid###base64")
	require.Error(t, err)
	assert.NotErrorIs(t, err, secrets.ErrKeyNotConfigured)
	assert.NotErrorIs(t, err, secrets.ErrKeyTooShort)
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	t.Parallel()

	env := newEnvelope(t)

	for _, plaintext := range []string{
		"apify_api_token_xyz",
		"sk-proj-abc123",
		"a",
		strings.Repeat("long-secret-", 100),
		"unicode: héllo wörld ✓",
	} {
		encoded, err := env.Encrypt(plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, encoded)

		decrypted, ok := env.Decrypt(encoded)
		require.True(t, ok, "decrypt should succeed for %q", plaintext)
		assert.Equal(t, plaintext, decrypted)
	}
}

func TestEncrypt_FreshIVPerCall(t *testing.T) {
	t.Parallel()

	env := newEnvelope(t)

	first, err := env.Encrypt("same-secret")
	require.NoError(t, err)

	second, err := env.Encrypt("same-secret")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestDecrypt_CorruptedCiphertext(t *testing.T) {
	t.Parallel()

	env := newEnvelope(t)

	encoded, err := env.Encrypt("secret-value")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)

	// Flip a byte inside the ciphertext body.
	raw[len(raw)-1] ^= 0xff
	corrupted := base64.StdEncoding.EncodeToString(raw)

	decrypted, ok := env.Decrypt(corrupted)
	assert.False(t, ok)
	assert.Empty(t, decrypted)
}

func TestDecrypt_NotBase64(t *testing.T) {
	t.Parallel()

	env := newEnvelope(t)

	decrypted, ok := env.Decrypt("@@@not base64@@@")
	assert.False(t, ok)
	assert.Empty(t, decrypted)
}

func TestDecrypt_TooShortForIV(t *testing.T) {
	t.Parallel()

	env := newEnvelope(t)

	decrypted, ok := env.Decrypt(base64.StdEncoding.EncodeToString([]byte("tiny")))
	assert.False(t, ok)
	assert.Empty(t, decrypted)
}

func TestDecrypt_WrongKey(t *testing.T) {
	t.Parallel()

	env := newEnvelope(t)

	otherKey := base64.StdEncoding.EncodeToString([]byte("ffffffffffffffffffffffffffffffff"))
	other, err := secrets.NewEnvelope(otherKey)
	require.NoError(t, err)

	encoded, err := env.Encrypt("secret-value")
	require.NoError(t, err)

	decrypted, ok := other.Decrypt(encoded)
	assert.False(t, ok)
	assert.Empty(t, decrypted)
}
