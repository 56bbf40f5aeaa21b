// Package encryption seals stored message bodies with a symmetric key.
package encryption

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Placeholder replaces content that cannot be decrypted.
const Placeholder = "[Unable to decrypt message]"

var ErrMalformed = errors.New("malformed ciphertext")

type Cipher struct {
	aead cipher.AEAD
}

// New derives the key from secret. An empty secret yields a random
// process-local key, so ciphertext from a previous run becomes unreadable.
func New(secret string) (*Cipher, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if secret == "" {
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate key: %w", err)
		}
	} else {
		kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("whatsapp-assistant message key"))
		if _, err := io.ReadFull(kdf, key); err != nil {
			return nil, fmt.Errorf("derive key: %w", err)
		}
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt returns base64(nonce || sealed).
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *Cipher) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(raw) < c.aead.NonceSize() {
		return "", ErrMalformed
	}
	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// DecryptOrPlaceholder never fails; undecryptable input yields Placeholder.
func (c *Cipher) DecryptOrPlaceholder(encoded string) string {
	plain, err := c.Decrypt(encoded)
	if err != nil {
		return Placeholder
	}
	return plain
}
