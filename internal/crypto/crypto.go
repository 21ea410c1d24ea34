// Package crypto seals metadata blobs with AES-256-GCM.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"

	"golang.org/x/crypto/sha3"
)

// sealedPrefix marks a sealed blob. Anything without it is plaintext.
var sealedPrefix = []byte("enc:")

// ErrTooShort is returned when a sealed blob is shorter than its nonce.
var ErrTooShort = errors.New("ciphertext too short")

// Cipher seals and opens byte slices.
type Cipher struct {
	gcm cipher.AEAD
}

// NewCipher creates a new cipher from a secret key.
// The key is hashed with SHA3-256 to get exactly 32 bytes for AES-256.
func NewCipher(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, errors.New("encryption secret cannot be empty")
	}

	key := sha3.Sum256([]byte(secret))

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Cipher{gcm: gcm}, nil
}

// Seal encrypts plaintext and returns prefix || nonce || ciphertext.
// Empty input is returned as-is, and so is input that is already sealed.
func (c *Cipher) Seal(plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 || IsSealed(plaintext) {
		return plaintext, nil
	}

	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(sealedPrefix)+len(nonce)+len(plaintext)+c.gcm.Overhead())
	out = append(out, sealedPrefix...)
	out = append(out, nonce...)
	return c.gcm.Seal(out, nonce, plaintext, nil), nil
}

// Open decrypts a sealed blob. Unsealed input passes through unchanged so
// stores written before a secret was configured stay readable.
func (c *Cipher) Open(data []byte) ([]byte, error) {
	if !IsSealed(data) {
		return data, nil
	}

	data = data[len(sealedPrefix):]
	nonceSize := c.gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, ErrTooShort
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	return c.gcm.Open(nil, nonce, ciphertext, nil)
}

// IsSealed returns true if data carries the sealed prefix.
func IsSealed(data []byte) bool {
	return bytes.HasPrefix(data, sealedPrefix)
}
