package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/utils/v4"
)

const tokenPrefix = "evt_"

var (
	// ErrMissingToken is returned when a request carries no token.
	ErrMissingToken = errors.New("missing token")
	// ErrInvalidToken is returned when a token does not match.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenFileCorrupt is returned when the token file holds no usable token.
	ErrTokenFileCorrupt = errors.New("token file is corrupt")
)

// TokenService validates the local API token. Only its SHA-256 hash is kept
// in memory.
type TokenService struct {
	hash [sha256.Size]byte
}

// NewTokenService creates a TokenService accepting plaintext.
func NewTokenService(plaintext string) *TokenService {
	return &TokenService{hash: sha256.Sum256([]byte(plaintext))}
}

// LoadOrCreateToken reads the API token at path, generating one (mode 0600)
// when the file does not exist. created reports whether a token was written.
func LoadOrCreateToken(path string) (token string, created bool, err error) {
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		token = strings.TrimSpace(string(data))
		if !strings.HasPrefix(token, tokenPrefix) || len(token) == len(tokenPrefix) {
			return "", false, fmt.Errorf("%w: %s", ErrTokenFileCorrupt, path)
		}
		return token, false, nil
	case !errors.Is(err, os.ErrNotExist):
		return "", false, fmt.Errorf("reading token file: %w", err)
	}

	token, err = GenerateToken()
	if err != nil {
		return "", false, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", false, fmt.Errorf("creating token dir: %w", err)
	}
	if err := utils.AtomicWriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return "", false, fmt.Errorf("writing token file: %w", err)
	}
	return token, true, nil
}

// GenerateToken returns a new random opaque token.
func GenerateToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return tokenPrefix + base64.RawURLEncoding.EncodeToString(raw), nil
}

// ValidateToken checks plaintext against the configured token in constant time.
func (s *TokenService) ValidateToken(plaintext string) error {
	if plaintext == "" {
		return ErrMissingToken
	}
	h := sha256.Sum256([]byte(plaintext))
	if subtle.ConstantTimeCompare(h[:], s.hash[:]) != 1 {
		return ErrInvalidToken
	}
	return nil
}

// HashToken returns the SHA-256 hex hash of a plaintext token. Exported for use by middleware.
func HashToken(plaintext string) string {
	h := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(h[:])
}
