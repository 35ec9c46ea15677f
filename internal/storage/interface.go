package storage

import (
	"context"
	"errors"

	"github.com/org/envvault/pkg/models"
)

// ErrNotFound is returned when a requested secret does not exist.
var ErrNotFound = errors.New("not found")

// ErrUnavailable is returned when the store cannot be opened, created or read.
var ErrUnavailable = errors.New("storage unavailable")

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// SecretStore defines the persistence interface for the vault.
// Every mutating method has durably committed its change when it returns nil.
type SecretStore interface {
	// UpsertSecret stores a value under key. If a secret with that key exists
	// its value is replaced in place and created is false; otherwise a new id
	// is allocated.
	UpsertSecret(ctx context.Context, key string, ciphertext, nonce []byte) (id int64, created bool, err error)
	UpdateSecretValue(ctx context.Context, id int64, ciphertext, nonce []byte) error
	GetSecret(ctx context.Context, id int64) (*models.SecretRecord, error)
	// ListSecrets returns all secrets in insertion (id) order.
	ListSecrets(ctx context.Context) ([]*models.SecretRecord, error)
	// DeleteSecret hard-deletes a secret and reports whether a row was removed.
	DeleteSecret(ctx context.Context, id int64) (bool, error)

	CountSecrets(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
	Close()
}
