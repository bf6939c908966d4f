package security

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCipherKey() []byte {
	return []byte("an example very very secret key.")
}

func TestFieldCipher_RoundTrip(t *testing.T) {
	t.Parallel()

	c, err := NewFieldCipher(testCipherKey())
	require.NoError(t, err)

	plaintext := []byte(`{"gold":250,"items":["axe"]}`)

	encoded, err := c.Encrypt(plaintext)
	require.NoError(t, err)
	require.NotEmpty(t, encoded)
	assert.NotContains(t, encoded, "gold")

	decrypted, err := c.Decrypt(encoded)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestFieldCipher_NoncesDiffer(t *testing.T) {
	t.Parallel()

	c, err := NewFieldCipher(testCipherKey())
	require.NoError(t, err)

	first, err := c.Encrypt([]byte("same payload"))
	require.NoError(t, err)
	second, err := c.Encrypt([]byte("same payload"))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestFieldCipher_TamperedCiphertext(t *testing.T) {
	t.Parallel()

	c, err := NewFieldCipher(testCipherKey())
	require.NoError(t, err)

	encoded, err := c.Encrypt([]byte("secret"))
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	tampered := base64.StdEncoding.EncodeToString(raw)

	_, err = c.Decrypt(tampered)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestFieldCipher_MalformedInput(t *testing.T) {
	t.Parallel()

	c, err := NewFieldCipher(testCipherKey())
	require.NoError(t, err)

	_, err = c.Decrypt("not valid base64 !!!")
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	_, err = c.Decrypt(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestNewFieldCipher_BadKeySize(t *testing.T) {
	t.Parallel()

	_, err := NewFieldCipher([]byte("too short"))
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}
