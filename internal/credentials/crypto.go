// Package credentials stores cloud credentials sealed at rest and resolves
// the process environment a provisioning attempt runs under.
package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// sealedPrefix marks a stored value as sealed so plaintext rows from
// before encryption was enabled are detected instead of misdecrypted.
const sealedPrefix = "enc::"

// FieldCipher seals and opens individual credential fields with
// AES-256-GCM. The key is derived from the configured passphrase.
type FieldCipher struct {
	aead cipher.AEAD
}

func NewFieldCipher(key string) (*FieldCipher, error) {
	if key == "" {
		return nil, errors.New("credentials key is required")
	}
	sum := sha256.Sum256([]byte(key))
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return &FieldCipher{aead: aead}, nil
}

// Seal encrypts a field value for storage. Empty values stay empty and
// already-sealed values pass through unchanged.
func (c *FieldCipher) Seal(plaintext string) (string, error) {
	if plaintext == "" || strings.HasPrefix(plaintext, sealedPrefix) {
		return plaintext, nil
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a sealed field value. Unsealed non-empty input is an
// error rather than a passthrough: credentials must never be stored
// or served in plaintext.
func (c *FieldCipher) Open(sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	if !strings.HasPrefix(sealed, sealedPrefix) {
		return "", errors.New("credential value is not sealed")
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sealed, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("decode sealed value: %w", err)
	}
	ns := c.aead.NonceSize()
	if len(raw) < ns {
		return "", errors.New("sealed value too short")
	}
	plaintext, err := c.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("open sealed value: %w", err)
	}
	return string(plaintext), nil
}
