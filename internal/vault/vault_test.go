package vault

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v := New("test-encryption-key")

	secrets := []string{
		"api-key-123",
		"a",
		"exactly-sixteen!",
		strings.Repeat("long-secret-", 20),
	}

	for _, secret := range secrets {
		encrypted, err := v.Encrypt(secret)
		require.NoError(t, err)
		require.NotEqual(t, secret, encrypted)
		assert.Equal(t, secret, v.Decrypt(encrypted))
	}
}

func TestEncryptProducesIVPrefixedHex(t *testing.T) {
	v := New("test-encryption-key")

	encrypted, err := v.Encrypt("some-secret")
	require.NoError(t, err)

	parts := strings.SplitN(encrypted, ":", 2)
	require.Len(t, parts, 2)
	// 16-byte IV hex encoded
	assert.Len(t, parts[0], 32)
	assert.NotEmpty(t, parts[1])
}

func TestEncryptUsesFreshIV(t *testing.T) {
	v := New("test-encryption-key")

	first, err := v.Encrypt("same-plaintext")
	require.NoError(t, err)
	second, err := v.Encrypt("same-plaintext")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, "same-plaintext", v.Decrypt(first))
	assert.Equal(t, "same-plaintext", v.Decrypt(second))
}

func TestEmptyValuesPassThrough(t *testing.T) {
	v := New("test-encryption-key")

	encrypted, err := v.Encrypt("")
	require.NoError(t, err)
	assert.Equal(t, "", encrypted)
	assert.Equal(t, "", v.Decrypt(""))
}

func TestDecryptDegradesToEmptyString(t *testing.T) {
	v := New("test-encryption-key")

	malformed := []string{
		"no-separator",
		"nothex:deadbeef",
		"00112233445566778899aabbccddeeff:nothex",
		"0011:deadbeef",
		// IV ok, ciphertext not block aligned
		"00112233445566778899aabbccddeeff:deadbeef",
	}
	for _, input := range malformed {
		assert.Equal(t, "", v.Decrypt(input), "input %q", input)
	}
}

func TestDecryptWithWrongKey(t *testing.T) {
	v := New("test-encryption-key")
	other := New("a-different-key-entirely")

	encrypted, err := v.Encrypt("secret-value")
	require.NoError(t, err)

	// Wrong key never yields the original plaintext
	assert.NotEqual(t, "secret-value", other.Decrypt(encrypted))
}

func TestKeyNormalization(t *testing.T) {
	// Short and over-long keys both normalize to 32 bytes; values
	// written with one instance decrypt with another built from the
	// same raw key.
	long := "this-key-is-definitely-longer-than-thirty-two-bytes"

	v1 := New(long)
	v2 := New(long)

	encrypted, err := v1.Encrypt("portable")
	require.NoError(t, err)
	assert.Equal(t, "portable", v2.Decrypt(encrypted))
}
