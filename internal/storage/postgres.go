package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/org/envvault/pkg/models"
)

var _ SecretStore = (*PostgresBackend)(nil)

// PostgresBackend is a SecretStore backed by PostgreSQL.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend opens a pgxpool connection, applies pending migrations
// and returns a ready backend.
func NewPostgresBackend(ctx context.Context, connStr string) (*PostgresBackend, error) {
	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	if err := runMigrations(DriverPostgres, stdlib.OpenDB(*cfg.ConnConfig)); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresBackend{pool: pool}, nil
}

func (p *PostgresBackend) Close() {
	p.pool.Close()
}

func (p *PostgresBackend) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PostgresBackend) UpsertSecret(ctx context.Context, key string, ciphertext, nonce []byte) (int64, bool, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, false, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var id int64
	created := false
	err = tx.QueryRow(ctx,
		`SELECT id FROM envvault_secrets WHERE key = $1 FOR UPDATE`,
		key,
	).Scan(&id)
	switch {
	case err == nil:
		_, err = tx.Exec(ctx,
			`UPDATE envvault_secrets SET value_ciphertext = $1, value_nonce = $2, updated_at = NOW() WHERE id = $3`,
			ciphertext, nonce, id,
		)
		if err != nil {
			return 0, false, fmt.Errorf("updating secret: %w", err)
		}
	case errors.Is(err, pgx.ErrNoRows):
		err = tx.QueryRow(ctx,
			`INSERT INTO envvault_secrets (key, value_ciphertext, value_nonce)
			 VALUES ($1, $2, $3)
			 RETURNING id`,
			key, ciphertext, nonce,
		).Scan(&id)
		if err != nil {
			return 0, false, fmt.Errorf("inserting secret: %w", err)
		}
		created = true
	default:
		return 0, false, fmt.Errorf("looking up secret key: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, false, err
	}
	return id, created, nil
}

func (p *PostgresBackend) UpdateSecretValue(ctx context.Context, id int64, ciphertext, nonce []byte) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE envvault_secrets SET value_ciphertext = $1, value_nonce = $2, updated_at = NOW() WHERE id = $3`,
		ciphertext, nonce, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresBackend) GetSecret(ctx context.Context, id int64) (*models.SecretRecord, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id, key, value_ciphertext, value_nonce, created_at, updated_at
		 FROM envvault_secrets WHERE id = $1`,
		id,
	)
	return scanPostgresRecord(row)
}

func scanPostgresRecord(row pgx.Row) (*models.SecretRecord, error) {
	var rec models.SecretRecord
	err := row.Scan(&rec.ID, &rec.Key, &rec.Ciphertext, &rec.Nonce, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return &rec, nil
}

func (p *PostgresBackend) ListSecrets(ctx context.Context) ([]*models.SecretRecord, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, key, value_ciphertext, value_nonce, created_at, updated_at
		 FROM envvault_secrets ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*models.SecretRecord
	for rows.Next() {
		rec, err := scanPostgresRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (p *PostgresBackend) DeleteSecret(ctx context.Context, id int64) (bool, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM envvault_secrets WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (p *PostgresBackend) CountSecrets(ctx context.Context) (int64, error) {
	var count int64
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM envvault_secrets`).Scan(&count)
	return count, err
}
