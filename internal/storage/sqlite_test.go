package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) (*SQLiteBackend, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "vault.db")
	s, err := NewSQLiteBackend(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, path
}

func TestSQLiteUpsertAssignsIncreasingIDs(t *testing.T) {
	s, _ := newTestSQLite(t)
	ctx := context.Background()

	id1, created, err := s.UpsertSecret(ctx, "A", []byte("c1"), []byte("n1"))
	require.NoError(t, err)
	assert.True(t, created)

	id2, created, err := s.UpsertSecret(ctx, "B", []byte("c2"), []byte("n2"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Greater(t, id2, id1)
}

func TestSQLiteUpsertReplacesInPlace(t *testing.T) {
	s, _ := newTestSQLite(t)
	ctx := context.Background()

	id, _, err := s.UpsertSecret(ctx, "TOKEN", []byte("old"), []byte("n1"))
	require.NoError(t, err)
	again, created, err := s.UpsertSecret(ctx, "TOKEN", []byte("new"), []byte("n2"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id, again)

	recs, err := s.ListSecrets(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, []byte("new"), recs[0].Ciphertext)
	assert.Equal(t, []byte("n2"), recs[0].Nonce)
}

func TestSQLiteListKeepsInsertionOrder(t *testing.T) {
	s, _ := newTestSQLite(t)
	ctx := context.Background()

	for _, k := range []string{"ZED", "ALPHA", "MIKE"} {
		_, _, err := s.UpsertSecret(ctx, k, []byte("c"), []byte("n"))
		require.NoError(t, err)
	}
	// Replacing a value must not move the record.
	_, _, err := s.UpsertSecret(ctx, "ZED", []byte("c2"), []byte("n2"))
	require.NoError(t, err)

	recs, err := s.ListSecrets(ctx)
	require.NoError(t, err)
	var keys []string
	for _, r := range recs {
		keys = append(keys, r.Key)
	}
	assert.Equal(t, []string{"ZED", "ALPHA", "MIKE"}, keys)
}

func TestSQLiteDeleteReportsRemoval(t *testing.T) {
	s, _ := newTestSQLite(t)
	ctx := context.Background()

	id, _, err := s.UpsertSecret(ctx, "GONE", []byte("c"), []byte("n"))
	require.NoError(t, err)

	removed, err := s.DeleteSecret(ctx, id)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.DeleteSecret(ctx, id)
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = s.GetSecret(ctx, id)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLiteIDsAreNotReused(t *testing.T) {
	s, _ := newTestSQLite(t)
	ctx := context.Background()

	id, _, err := s.UpsertSecret(ctx, "ONE", []byte("c"), []byte("n"))
	require.NoError(t, err)
	_, err = s.DeleteSecret(ctx, id)
	require.NoError(t, err)

	next, _, err := s.UpsertSecret(ctx, "ONE", []byte("c"), []byte("n"))
	require.NoError(t, err)
	assert.Greater(t, next, id)
}

func TestSQLiteUpdateSecretValue(t *testing.T) {
	s, _ := newTestSQLite(t)
	ctx := context.Background()

	id, _, err := s.UpsertSecret(ctx, "K", []byte("c1"), []byte("n1"))
	require.NoError(t, err)
	require.NoError(t, s.UpdateSecretValue(ctx, id, []byte("c2"), []byte("n2")))

	rec, err := s.GetSecret(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "K", rec.Key)
	assert.Equal(t, []byte("c2"), rec.Ciphertext)

	err = s.UpdateSecretValue(ctx, id+100, []byte("c"), []byte("n"))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	s, path := newTestSQLite(t)
	ctx := context.Background()

	id, _, err := s.UpsertSecret(ctx, "PERSIST", []byte("cipher"), []byte("nonce"))
	require.NoError(t, err)
	s.Close()

	reopened, err := NewSQLiteBackend(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	rec, err := reopened.GetSecret(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "PERSIST", rec.Key)
	count, err := reopened.CountSecrets(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestOpenRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.db")
	garbage := bytes.Repeat([]byte("this is not a sqlite database "), 200)
	require.NoError(t, os.WriteFile(path, garbage, 0o600))

	_, err := Open(context.Background(), Options{Driver: DriverSQLite, DSN: path})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "mongo", DSN: "x"})
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestOpenRejectsUnwritableDir(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	// The parent "directory" is a regular file, so it can never be created.
	_, err := Open(context.Background(), Options{Driver: DriverSQLite, DSN: filepath.Join(blocker, "vault.db")})
	assert.True(t, errors.Is(err, ErrUnavailable))
}
