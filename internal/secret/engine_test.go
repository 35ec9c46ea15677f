package secret

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/org/envvault/internal/crypto"
	"github.com/org/envvault/internal/storage"
)

func newTestEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vault.db")
	store, err := storage.NewSQLiteBackend(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	root, err := crypto.GenerateRootKey()
	require.NoError(t, err)
	kek, err := crypto.DeriveKEK(root, "test")
	require.NoError(t, err)
	c, err := crypto.NewValueCipher(kek)
	require.NoError(t, err)
	return NewEngine(store, c), path
}

func TestAddReplacesExistingKey(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	first, created, err := e.Add(ctx, "API_KEY", "value-one-1234")
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := e.Add(ctx, "API_KEY", "value-two-5678")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	items, err := e.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)

	s, err := e.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "value-two-5678", s.Value)
}

func TestAddValidation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	for _, tc := range []struct{ key, value string }{
		{"", "v"},
		{"A=B", "v"},
		{"A\nB", "v"},
		{"OK", "line1\nline2"},
		{"OK", "carriage\rreturn"},
		{"#HASH", "v"},
		{" LEAD", "v"},
		{"TRAIL ", "v"},
		{"\u00a0NBSP", "v"},
	} {
		_, _, err := e.Add(ctx, tc.key, tc.value)
		assert.True(t, errors.Is(err, ErrValidation), "key=%q value=%q", tc.key, tc.value)
	}

	count, err := e.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	// Unconventional but representable keys are accepted as-is.
	_, _, err = e.Add(ctx, "lower.case-key", "v")
	require.NoError(t, err)
}

func TestListIsMasked(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	item, _, err := e.Add(ctx, "OPENAI_API_KEY", "sk-abc123")
	require.NoError(t, err)
	assert.Equal(t, "sk-a***23", item.ValueMasked)

	items, err := e.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "OPENAI_API_KEY", items[0].Key)
	assert.Equal(t, "sk-a***23", items[0].ValueMasked)

	s, err := e.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "sk-abc123", s.Value)
}

func TestGetUnknownID(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.Get(context.Background(), 42)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestUpdate(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	item, _, err := e.Add(ctx, "DB_PASSWORD", "hunter2-hunter2")
	require.NoError(t, err)
	require.NoError(t, e.Update(ctx, item.ID, "correct horse"))

	s, err := e.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "correct horse", s.Value)
	assert.Equal(t, "DB_PASSWORD", s.Key)

	assert.True(t, errors.Is(e.Update(ctx, item.ID+1, "x"), storage.ErrNotFound))
	assert.True(t, errors.Is(e.Update(ctx, item.ID, "a\nb"), ErrValidation))
}

func TestDelete(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	item, _, err := e.Add(ctx, "TMP", "temporary")
	require.NoError(t, err)

	removed, err := e.Delete(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = e.Delete(ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestSearchRanking(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	for _, k := range []string{"OPENAI_API_KEY", "API_URL", "STRIPE_KEY", "api_secret", "DATABASE_URL"} {
		_, _, err := e.Add(ctx, k, "some-long-value")
		require.NoError(t, err)
	}

	items, err := e.Search(ctx, "api")
	require.NoError(t, err)
	var keys []string
	for _, it := range items {
		keys = append(keys, it.Key)
	}
	assert.Equal(t, []string{"API_URL", "api_secret", "OPENAI_API_KEY"}, keys)

	all, err := e.Search(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 5)

	none, err := e.Search(ctx, "nope")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSearchMonotonicity(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	for _, k := range []string{"AWS_ACCESS_KEY", "AWS_SECRET", "GITHUB_TOKEN", "SLACK_WEBHOOK", "S3_BUCKET"} {
		_, _, err := e.Add(ctx, k, "value-value")
		require.NoError(t, err)
	}

	ids := func(q string) map[int64]bool {
		items, err := e.Search(ctx, q)
		require.NoError(t, err)
		set := make(map[int64]bool, len(items))
		for _, it := range items {
			set[it.ID] = true
		}
		return set
	}

	for _, pair := range [][2]string{{"a", "aws"}, {"s", "se"}, {"t", "tok"}, {"", "k"}} {
		short, long := ids(pair[0]), ids(pair[1])
		for id := range long {
			assert.True(t, short[id], "results for %q must include those for %q", pair[0], pair[1])
		}
	}
}

func TestValuesEncryptedAtRest(t *testing.T) {
	e, path := newTestEngine(t)
	ctx := context.Background()

	const value = "super-secret-plaintext-marker"
	_, _, err := e.Add(ctx, "MARKER", value)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	wal, _ := os.ReadFile(path + "-wal")
	assert.False(t, bytes.Contains(raw, []byte(value)))
	assert.False(t, bytes.Contains(wal, []byte(value)))
}

func TestConcurrentAddsKeepKeysUnique(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := e.Add(ctx, fmt.Sprintf("KEY_%d", i%5), fmt.Sprintf("value-%d", i))
			assert.NoError(t, err)
			_, err = e.List(ctx)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	count, err := e.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 5, count)
}

func TestMaskedListNeverContainsValue(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))
	const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	values := map[string]string{}
	for i := 0; i < 30; i++ {
		n := 1 + rng.Intn(40)
		b := make([]byte, n)
		for j := range b {
			b[j] = alphabet[rng.Intn(len(alphabet))]
		}
		key := fmt.Sprintf("K%d", i)
		values[key] = string(b)
		_, _, err := e.Add(ctx, key, string(b))
		require.NoError(t, err)
	}

	items, err := e.List(ctx)
	require.NoError(t, err)
	for _, it := range items {
		assert.NotEqual(t, values[it.Key], it.ValueMasked)
		assert.Equal(t, Mask(values[it.Key]), it.ValueMasked)
	}
}
