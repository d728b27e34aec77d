// Package crypto encrypts bank account fields at rest with AES-256-GCM.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrNoKey means no encryption key is configured. The cipher fails
	// closed: it refuses to operate rather than silently skip encryption.
	ErrNoKey = errors.New("encryption key not configured")

	// ErrAuthenticationFailed means the ciphertext or tag did not
	// authenticate under the configured key.
	ErrAuthenticationFailed = errors.New("ciphertext authentication failed")
)

const tagSize = 16 // bytes, GCM default

// FieldCipher performs authenticated encryption of individual sensitive
// fields. The key lives only in process memory; it is never persisted.
type FieldCipher struct {
	gcm cipher.AEAD
}

// NewFieldCipher builds a cipher from a hex-encoded 256-bit key.
func NewFieldCipher(keyHex string) (*FieldCipher, error) {
	if keyHex == "" {
		return nil, ErrNoKey
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &FieldCipher{gcm: gcm}, nil
}

// Encrypt seals plaintext under a fresh random 96-bit nonce. The nonce is
// generated per call and never reused for this key.
func (c *FieldCipher) Encrypt(plaintext []byte) (ciphertext, nonce, tag []byte, err error) {
	if c == nil || c.gcm == nil {
		return nil, nil, nil, ErrNoKey
	}
	nonce = make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, nil, fmt.Errorf("generate nonce: %w", err)
	}
	sealed := c.gcm.Seal(nil, nonce, plaintext, nil)
	split := len(sealed) - tagSize
	return sealed[:split], nonce, sealed[split:], nil
}

// Decrypt opens ciphertext+tag under the given nonce. A bad tag surfaces as
// ErrAuthenticationFailed, never as missing data.
func (c *FieldCipher) Decrypt(ciphertext, nonce, tag []byte) ([]byte, error) {
	if c == nil || c.gcm == nil {
		return nil, ErrNoKey
	}
	if len(nonce) != c.gcm.NonceSize() || len(tag) != tagSize {
		return nil, ErrAuthenticationFailed
	}
	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	plaintext, err := c.gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}
