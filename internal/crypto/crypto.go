// Package crypto holds the vault's key handling and value encryption primitives.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// KeySize is the length of root keys and KEKs.
const KeySize = 32

var (
	// ErrKeySize is returned for keys that are not KeySize bytes long.
	ErrKeySize = errors.New("key must be 32 bytes")
	// ErrNonceSize is returned when a stored nonce does not fit the cipher.
	ErrNonceSize = errors.New("nonce has the wrong length")
)

// GenerateRootKey returns KeySize random bytes.
func GenerateRootKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generating root key: %w", err)
	}
	return key, nil
}

// DeriveKEK expands rootKey with HKDF-SHA256, using info to separate uses of
// the same root key.
func DeriveKEK(rootKey []byte, info string) ([]byte, error) {
	if len(rootKey) != KeySize {
		return nil, ErrKeySize
	}
	kek := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, rootKey, nil, []byte(info)), kek); err != nil {
		return nil, fmt.Errorf("deriving KEK: %w", err)
	}
	return kek, nil
}

// ValueCipher seals individual secret values with AES-256-GCM under one key.
// A fresh random nonce is drawn for every value. It is safe for concurrent use.
type ValueCipher struct {
	aead cipher.AEAD
}

// NewValueCipher builds a ValueCipher for a KeySize key.
func NewValueCipher(key []byte) (*ValueCipher, error) {
	if len(key) != KeySize {
		return nil, ErrKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return &ValueCipher{aead: aead}, nil
}

// SealValue encrypts plaintext and returns the ciphertext and its nonce.
func (c *ValueCipher) SealValue(plaintext []byte) (ciphertext, nonce []byte, err error) {
	nonce = make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("generating nonce: %w", err)
	}
	return c.aead.Seal(nil, nonce, plaintext, nil), nonce, nil
}

// OpenValue decrypts a value produced by SealValue. It fails when the key,
// nonce or ciphertext do not match.
func (c *ValueCipher) OpenValue(ciphertext, nonce []byte) ([]byte, error) {
	if len(nonce) != c.aead.NonceSize() {
		return nil, ErrNonceSize
	}
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypting value: %w", err)
	}
	return plaintext, nil
}
