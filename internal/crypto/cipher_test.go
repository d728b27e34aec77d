package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "6368616e676520746869732070617373776f726420746f206120736563726574" // 32 bytes hex

func TestFieldCipher_RoundTrip(t *testing.T) {
	c, err := NewFieldCipher(testKey)
	require.NoError(t, err)

	ciphertext, nonce, tag, err := c.Encrypt([]byte("123456789"))
	require.NoError(t, err)
	assert.Len(t, nonce, 12)
	assert.Len(t, tag, 16)
	assert.NotEqual(t, []byte("123456789"), ciphertext)

	plaintext, err := c.Decrypt(ciphertext, nonce, tag)
	require.NoError(t, err)
	assert.Equal(t, "123456789", string(plaintext))
}

func TestFieldCipher_FreshNoncePerCall(t *testing.T) {
	c, err := NewFieldCipher(testKey)
	require.NoError(t, err)

	_, nonce1, _, err := c.Encrypt([]byte("same input"))
	require.NoError(t, err)
	_, nonce2, _, err := c.Encrypt([]byte("same input"))
	require.NoError(t, err)
	assert.NotEqual(t, nonce1, nonce2)
}

func TestFieldCipher_TamperedCiphertext(t *testing.T) {
	c, err := NewFieldCipher(testKey)
	require.NoError(t, err)

	ciphertext, nonce, tag, err := c.Encrypt([]byte("4111000011110000"))
	require.NoError(t, err)

	ciphertext[0] ^= 0xff
	_, err = c.Decrypt(ciphertext, nonce, tag)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestFieldCipher_TamperedTag(t *testing.T) {
	c, err := NewFieldCipher(testKey)
	require.NoError(t, err)

	ciphertext, nonce, tag, err := c.Encrypt([]byte("4111000011110000"))
	require.NoError(t, err)

	tag[len(tag)-1] ^= 0x01
	_, err = c.Decrypt(ciphertext, nonce, tag)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestFieldCipher_WrongKey(t *testing.T) {
	c1, err := NewFieldCipher(testKey)
	require.NoError(t, err)
	c2, err := NewFieldCipher("00000000000000000000000000000000000000000000000000000000000000ff")
	require.NoError(t, err)

	ciphertext, nonce, tag, err := c1.Encrypt([]byte("secret"))
	require.NoError(t, err)

	_, err = c2.Decrypt(ciphertext, nonce, tag)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestNewFieldCipher_FailsClosed(t *testing.T) {
	_, err := NewFieldCipher("")
	assert.ErrorIs(t, err, ErrNoKey)

	_, err = NewFieldCipher("deadbeef") // too short
	assert.Error(t, err)

	_, err = NewFieldCipher("not hex at all")
	assert.Error(t, err)
}
