package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/org/envvault/pkg/models"

	// database/sql SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

var _ SecretStore = (*SQLiteBackend)(nil)

// sqliteParams makes every commit durable (WAL + synchronous=FULL) and takes
// the write lock at BEGIN so the key lookup in UpsertSecret cannot race.
const sqliteParams = "?_journal_mode=WAL&_synchronous=FULL&_busy_timeout=5000&_txlock=immediate"

// SQLiteBackend is a SecretStore backed by a single SQLite file.
type SQLiteBackend struct {
	db   *sql.DB
	path string
}

// NewSQLiteBackend opens (creating if absent) the database at path, checks
// its integrity and applies pending migrations.
func NewSQLiteBackend(ctx context.Context, path string) (*SQLiteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	if err := quickCheck(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	mdb, err := openSQLite(path)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := runMigrations(DriverSQLite, mdb); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteBackend{db: db, path: path}, nil
}

func openSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+sqliteParams)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	return db, nil
}

// quickCheck rejects files that are not SQLite databases or fail the
// integrity check.
func quickCheck(ctx context.Context, db *sql.DB) error {
	var result string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check`).Scan(&result); err != nil {
		return fmt.Errorf("checking database integrity: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database integrity check failed: %s", result)
	}
	return nil
}

// Path returns the database file path.
func (s *SQLiteBackend) Path() string { return s.path }

func (s *SQLiteBackend) Close() {
	s.db.Close()
}

func (s *SQLiteBackend) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteBackend) UpsertSecret(ctx context.Context, key string, ciphertext, nonce []byte) (int64, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, err
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC().Unix()
	var id int64
	created := false
	err = tx.QueryRowContext(ctx, `SELECT id FROM secrets WHERE key = ?`, key).Scan(&id)
	switch {
	case err == nil:
		_, err = tx.ExecContext(ctx,
			`UPDATE secrets SET value_ciphertext = ?, value_nonce = ?, updated_at = ? WHERE id = ?`,
			ciphertext, nonce, now, id,
		)
		if err != nil {
			return 0, false, fmt.Errorf("updating secret: %w", err)
		}
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx,
			`INSERT INTO secrets (key, value_ciphertext, value_nonce, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			key, ciphertext, nonce, now, now,
		)
		if err != nil {
			return 0, false, fmt.Errorf("inserting secret: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return 0, false, err
		}
		created = true
	default:
		return 0, false, fmt.Errorf("looking up secret key: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, false, err
	}
	return id, created, nil
}

func (s *SQLiteBackend) UpdateSecretValue(ctx context.Context, id int64, ciphertext, nonce []byte) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE secrets SET value_ciphertext = ?, value_nonce = ?, updated_at = ? WHERE id = ?`,
		ciphertext, nonce, time.Now().UTC().Unix(), id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteBackend) GetSecret(ctx context.Context, id int64) (*models.SecretRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, key, value_ciphertext, value_nonce, created_at, updated_at FROM secrets WHERE id = ?`,
		id,
	)
	rec, err := scanSQLiteRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

func (s *SQLiteBackend) ListSecrets(ctx context.Context) ([]*models.SecretRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, key, value_ciphertext, value_nonce, created_at, updated_at FROM secrets ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*models.SecretRecord
	for rows.Next() {
		rec, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *SQLiteBackend) DeleteSecret(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM secrets WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteBackend) CountSecrets(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM secrets`).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRecord(row rowScanner) (*models.SecretRecord, error) {
	var (
		rec                  models.SecretRecord
		createdAt, updatedAt int64
	)
	if err := row.Scan(&rec.ID, &rec.Key, &rec.Ciphertext, &rec.Nonce, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	rec.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &rec, nil
}
