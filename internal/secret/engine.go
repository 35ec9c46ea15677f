package secret

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/org/envvault/internal/storage"
	"github.com/org/envvault/pkg/models"
)

// ErrValidation is returned for keys or values the vault cannot store.
var ErrValidation = errors.New("validation error")

// Sealer encrypts and decrypts secret values.
type Sealer interface {
	SealValue(plaintext []byte) (ciphertext, nonce []byte, err error)
	OpenValue(ciphertext, nonce []byte) ([]byte, error)
}

// Engine implements the secret operations on top of a SecretStore.
// Mutations hold the write lock until the store has committed; reads share
// the read lock, so a reader never sees half of a mutation.
type Engine struct {
	mu    sync.RWMutex
	store storage.SecretStore
	seal  Sealer
}

// NewEngine creates an Engine.
func NewEngine(store storage.SecretStore, seal Sealer) *Engine {
	return &Engine{store: store, seal: seal}
}

// ValidateKey checks that key is non-empty and reads back unchanged from a
// KEY=value line.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key must not be empty", ErrValidation)
	}
	if strings.ContainsAny(key, "=\r\n") {
		return fmt.Errorf("%w: key must not contain '=' or line breaks", ErrValidation)
	}
	if strings.TrimSpace(key) != key {
		return fmt.Errorf("%w: key must not start or end with whitespace", ErrValidation)
	}
	// KEY=value with a leading '#' is a comment line.
	if strings.HasPrefix(key, "#") {
		return fmt.Errorf("%w: key must not start with '#'", ErrValidation)
	}
	return nil
}

// ValidateValue checks that value fits on one line.
func ValidateValue(value string) error {
	if strings.ContainsAny(value, "\r\n") {
		return fmt.Errorf("%w: value must not contain line breaks", ErrValidation)
	}
	return nil
}

// Add stores value under key. An existing secret with the same key keeps its
// id and gets the new value; created reports whether a new id was allocated.
func (e *Engine) Add(ctx context.Context, key, value string) (item *models.SecretItem, created bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.add(ctx, key, value)
}

func (e *Engine) add(ctx context.Context, key, value string) (*models.SecretItem, bool, error) {
	if err := ValidateKey(key); err != nil {
		return nil, false, err
	}
	if err := ValidateValue(value); err != nil {
		return nil, false, err
	}
	ciphertext, nonce, err := e.seal.SealValue([]byte(value))
	if err != nil {
		return nil, false, fmt.Errorf("encrypting secret: %w", err)
	}
	id, created, err := e.store.UpsertSecret(ctx, key, ciphertext, nonce)
	if err != nil {
		return nil, false, fmt.Errorf("storing secret: %w", err)
	}
	return &models.SecretItem{ID: id, Key: key, ValueMasked: Mask(value)}, created, nil
}

// Update replaces the value of the secret with the given id.
func (e *Engine) Update(ctx context.Context, id int64, value string) error {
	if err := ValidateValue(value); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ciphertext, nonce, err := e.seal.SealValue([]byte(value))
	if err != nil {
		return fmt.Errorf("encrypting secret: %w", err)
	}
	if err := e.store.UpdateSecretValue(ctx, id, ciphertext, nonce); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return fmt.Errorf("updating secret: %w", err)
	}
	return nil
}

// Get returns the decrypted secret with the given id. This is the only
// single-secret cleartext path.
func (e *Engine) Get(ctx context.Context, id int64) (*models.Secret, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rec, err := e.store.GetSecret(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.open(rec)
}

// Delete hard-deletes the secret with the given id and reports whether it
// existed.
func (e *Engine) Delete(ctx context.Context, id int64) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	removed, err := e.store.DeleteSecret(ctx, id)
	if err != nil {
		return false, fmt.Errorf("deleting secret: %w", err)
	}
	return removed, nil
}

// List returns every secret, masked, in insertion order.
func (e *Engine) List(ctx context.Context) ([]models.SecretItem, error) {
	return e.Search(ctx, "")
}

// Search returns the masked secrets whose key contains query, ignoring case.
// Prefix matches come first; ties keep insertion order. An empty query lists
// everything.
func (e *Engine) Search(ctx context.Context, query string) ([]models.SecretItem, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	recs, err := e.store.ListSecrets(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing secrets: %w", err)
	}
	matched := matchRecords(recs, query)
	items := make([]models.SecretItem, 0, len(matched))
	for _, rec := range matched {
		s, err := e.open(rec)
		if err != nil {
			return nil, err
		}
		items = append(items, models.SecretItem{ID: s.ID, Key: s.Key, ValueMasked: Mask(s.Value)})
	}
	return items, nil
}

// ListFull returns every secret with its cleartext value, in insertion
// order. Used for export and shell sync only.
func (e *Engine) ListFull(ctx context.Context) ([]models.Secret, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.listFull(ctx)
}

func (e *Engine) listFull(ctx context.Context) ([]models.Secret, error) {
	recs, err := e.store.ListSecrets(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing secrets: %w", err)
	}
	secrets := make([]models.Secret, 0, len(recs))
	for _, rec := range recs {
		s, err := e.open(rec)
		if err != nil {
			return nil, err
		}
		secrets = append(secrets, *s)
	}
	return secrets, nil
}

// Count returns the number of stored secrets.
func (e *Engine) Count(ctx context.Context) (int64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.CountSecrets(ctx)
}

func (e *Engine) open(rec *models.SecretRecord) (*models.Secret, error) {
	plaintext, err := e.seal.OpenValue(rec.Ciphertext, rec.Nonce)
	if err != nil {
		return nil, fmt.Errorf("decrypting secret %d: %w", rec.ID, err)
	}
	return &models.Secret{
		ID:        rec.ID,
		Key:       rec.Key,
		Value:     string(plaintext),
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}, nil
}
