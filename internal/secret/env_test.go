package secret

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/org/envvault/pkg/models"
)

func TestDecodeEnv(t *testing.T) {
	res := DecodeEnv("FOO=bar\n# comment\n\nBAD_LINE\nBAZ=\"qux quux\"")
	assert.Equal(t, []models.EnvPair{{Key: "FOO", Value: "bar"}, {Key: "BAZ", Value: "qux quux"}}, res.Pairs)
	assert.Equal(t, 1, res.Skipped)
}

func TestDecodeEnvLineRules(t *testing.T) {
	text := "  # indented comment\r\n" +
		"WIN=crlf\r\n" +
		"   \n" +
		"=novalue\n" +
		"EMPTY=\n" +
		"SINGLE='a b'\n" +
		"URL=postgres://u:p@h/db?sslmode=disable\n" +
		"  SPACED = padded  \n" +
		"MISMATCH=\"open'\n" +
		"NESTED=\"'inner'\"\n"
	res := DecodeEnv(text)
	assert.Equal(t, []models.EnvPair{
		{Key: "WIN", Value: "crlf"},
		{Key: "EMPTY", Value: ""},
		{Key: "SINGLE", Value: "a b"},
		{Key: "URL", Value: "postgres://u:p@h/db?sslmode=disable"},
		{Key: "SPACED", Value: "padded"},
		{Key: "MISMATCH", Value: "\"open'"},
		{Key: "NESTED", Value: "'inner'"},
	}, res.Pairs)
	assert.Equal(t, 1, res.Skipped)
}

func TestEncodeEnv(t *testing.T) {
	assert.Equal(t, "", EncodeEnv(nil))
	assert.Equal(t, "OPENAI_API_KEY=sk-abc123\n", EncodeEnv([]models.EnvPair{{Key: "OPENAI_API_KEY", Value: "sk-abc123"}}))

	got := EncodeEnv([]models.EnvPair{
		{Key: "A", Value: "has space"},
		{Key: "B", Value: "a=b"},
		{Key: "C", Value: "'quoted'"},
		{Key: "D", Value: ""},
	})
	assert.Equal(t, "A=\"has space\"\nB=\"a=b\"\nC=\"'quoted'\"\nD=\n", got)
}

func TestEnvRoundTrip(t *testing.T) {
	pairs := []models.EnvPair{
		{Key: "PLAIN", Value: "value"},
		{Key: "SPACES", Value: "  leading and trailing  "},
		{Key: "EQUALS", Value: "k=v=w"},
		{Key: "DQ", Value: "\"already\""},
		{Key: "SQ", Value: "'already'"},
		{Key: "LONE", Value: "\""},
		{Key: "HASH", Value: "#not-a-comment"},
		{Key: "UNICODE", Value: "pässwörd ✓"},
		{Key: "EMPTY", Value: ""},
		{Key: "TAB", Value: "a\tb"},
		{Key: "NBSP", Value: "abc\u00a0"},
		{Key: "NEL", Value: "\u0085abc"},
		{Key: "ENQUAD", Value: "\u2000x\u2000"},
		{Key: "IDEO", Value: "a\u3000b"},
		{Key: "DOLLARS", Value: "pa$$word"},
		{Key: "SUBST", Value: "$(whoami)"},
		{Key: "TICKS", Value: "`id`"},
		{Key: "BACKSLASH", Value: `C:\dir`},
		{Key: "APOS", Value: "it's"},
		{Key: "BOTH", Value: `a"b'c`},
		{Key: "MIXED_QUOTES", Value: `"x'`},
	}
	res := DecodeEnv(EncodeEnv(pairs))
	assert.Equal(t, pairs, res.Pairs)
	assert.Zero(t, res.Skipped)
}

func TestEncodeEnvQuotesForShell(t *testing.T) {
	for _, tc := range []struct{ value, want string }{
		{"plain-value_1.2", "plain-value_1.2"},
		{"#hash", "#hash"},
		{"abc\u00a0", "\"abc\u00a0\""},
		{"pa$$word", "'pa$$word'"},
		{"$(whoami)", "'$(whoami)'"},
		{"`id`", "'`id`'"},
		{`C:\dir`, `'C:\dir'`},
		{`say "hi"`, `'say "hi"'`},
		{"a;b", "\"a;b\""},
		{"~/bin", "\"~/bin\""},
		{"it's", "\"it's\""},
		{"a|b&c", "\"a|b&c\""},
	} {
		got := EncodeEnv([]models.EnvPair{{Key: "K", Value: tc.value}})
		assert.Equal(t, "K="+tc.want+"\n", got, "value %q", tc.value)
	}
}

func TestValidKeysRoundTrip(t *testing.T) {
	for _, key := range []string{"PLAIN", "lower.case-key", "IN#SIDE", "A B", "ÜMLAUT"} {
		require.NoError(t, ValidateKey(key), key)
		res := DecodeEnv(EncodeEnv([]models.EnvPair{{Key: key, Value: "v"}}))
		assert.Equal(t, []models.EnvPair{{Key: key, Value: "v"}}, res.Pairs, "key %q", key)
	}

	// Keys that would be read back as a comment or trimmed are refused.
	for _, key := range []string{"#HASH", " LEAD", "TRAIL ", "\tTAB", "\u00a0NBSP", " #X", " "} {
		assert.ErrorIs(t, ValidateKey(key), ErrValidation, "key %q", key)
	}
}

func TestImportEnv(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	res, err := e.ImportEnv(ctx, "FOO=bar\n# comment\n\nBAD_LINE\nBAZ=\"qux quux\"")
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Applied: 2, Skipped: 1}, res)

	out, err := e.ExportEnv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "FOO=bar\nBAZ=\"qux quux\"\n", out)

	// Re-import is idempotent.
	res, err = e.ImportEnv(ctx, "FOO=bar\nBAZ=\"qux quux\"\n")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Applied)
	count, err := e.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestExportEnvEmptyVault(t *testing.T) {
	e, _ := newTestEngine(t)
	out, err := e.ExportEnv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "", out)
}
