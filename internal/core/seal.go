package core

import (
	"errors"
	"sync"

	"github.com/org/envvault/internal/crypto"
)

const kekContext = "envvault-kek-v1"

// ErrSealed is returned by value operations while no KEK is loaded.
var ErrSealed = errors.New("vault is sealed")

// SealManager holds the KEK in memory while the vault is unsealed and
// encrypts/decrypts secret values with it.
type SealManager struct {
	mu     sync.RWMutex
	kek    []byte
	cipher *crypto.ValueCipher
	sealed bool
}

// NewSealManager creates a new SealManager in sealed state.
func NewSealManager() *SealManager {
	return &SealManager{sealed: true}
}

// IsSealed returns whether the vault is currently sealed.
func (s *SealManager) IsSealed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sealed
}

// UnsealWithRootKey derives the KEK from the root key and unseals.
func (s *SealManager) UnsealWithRootKey(rootKey []byte) error {
	kek, err := crypto.DeriveKEK(rootKey, kekContext)
	if err != nil {
		return err
	}
	c, err := crypto.NewValueCipher(kek)
	if err != nil {
		zeroBytes(kek)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	zeroBytes(s.kek)
	s.kek, s.cipher = kek, c
	s.sealed = false
	return nil
}

// Seal wipes the KEK from memory, sealing the vault.
func (s *SealManager) Seal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	zeroBytes(s.kek)
	s.kek, s.cipher = nil, nil
	s.sealed = true
}

// SealValue encrypts a secret value with the KEK.
func (s *SealManager) SealValue(plaintext []byte) (ciphertext, nonce []byte, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sealed {
		return nil, nil, ErrSealed
	}
	return s.cipher.SealValue(plaintext)
}

// OpenValue decrypts a value produced by SealValue.
func (s *SealManager) OpenValue(ciphertext, nonce []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sealed {
		return nil, ErrSealed
	}
	return s.cipher.OpenValue(ciphertext, nonce)
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
