package secret

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/org/envvault/pkg/models"
)

// DecodeResult is the outcome of parsing .env text.
type DecodeResult struct {
	Pairs []models.EnvPair
	// Skipped counts malformed lines. Blank lines and comments are not counted.
	Skipped int
}

// ImportResult reports what ImportEnv did with its input.
type ImportResult struct {
	Applied  int `json:"applied"`
	Skipped  int `json:"skipped"`
	Rejected int `json:"rejected"`
}

// DecodeEnv parses .env-style text. A line is a record when it contains '='
// and the trimmed text before the first '=' is non-empty. The value is the
// rest of the line, trimmed, with one layer of matching quotes removed.
func DecodeEnv(text string) DecodeResult {
	var res DecodeResult
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			res.Skipped++
			continue
		}
		res.Pairs = append(res.Pairs, models.EnvPair{Key: key, Value: stripQuotes(strings.TrimSpace(value))})
	}
	return res
}

// EncodeEnv renders pairs as KEY=VALUE lines in the given order. Values that
// would not read back unchanged, or that a shell sourcing the output would
// act on, are quoted. Double quotes are used unless the value holds a
// character the shell expands inside them and no single quote, in which case
// single quotes keep it literal.
func EncodeEnv(pairs []models.EnvPair) string {
	var b strings.Builder
	for _, p := range pairs {
		b.WriteString(p.Key)
		b.WriteByte('=')
		if q := quoteFor(p.Value); q != 0 {
			b.WriteByte(q)
			b.WriteString(p.Value)
			b.WriteByte(q)
		} else {
			b.WriteString(p.Value)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

const (
	// shellMeta is what a POSIX shell acts on in an unquoted assignment value.
	shellMeta = "|&;<>()~'\"`$\\"
	// dquoteActive keeps its meaning to a shell inside double quotes.
	dquoteActive = "$`\\\""
)

// quoteFor returns the quote to wrap v in, or 0 when v is written bare.
func quoteFor(v string) byte {
	if !needsQuoting(v) {
		return 0
	}
	if strings.ContainsAny(v, dquoteActive) && !strings.Contains(v, "'") {
		return '\''
	}
	return '"'
}

// needsQuoting reports whether v must be quoted. Decoding trims Unicode
// whitespace and strips a quote pair, so any space or quote character forces
// quoting.
func needsQuoting(v string) bool {
	return strings.IndexFunc(v, unicode.IsSpace) >= 0 || strings.ContainsAny(v, "="+shellMeta)
}

func stripQuotes(v string) string {
	if len(v) >= 2 {
		if q := v[0]; (q == '"' || q == '\'') && v[len(v)-1] == q {
			return v[1 : len(v)-1]
		}
	}
	return v
}

// ImportEnv decodes text and adds every pair with replace-on-conflict
// semantics. The whole import holds the write lock, so readers see either
// none or all of it. Pairs failing validation are counted as rejected and do
// not abort the import; storage errors do.
func (e *Engine) ImportEnv(ctx context.Context, text string) (ImportResult, error) {
	decoded := DecodeEnv(text)
	res := ImportResult{Skipped: decoded.Skipped}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, p := range decoded.Pairs {
		if _, _, err := e.add(ctx, p.Key, p.Value); err != nil {
			if errors.Is(err, ErrValidation) {
				res.Rejected++
				continue
			}
			return res, err
		}
		res.Applied++
	}
	return res, nil
}

// ExportEnv renders every secret, with full values, in insertion order.
func (e *Engine) ExportEnv(ctx context.Context) (string, error) {
	secrets, err := e.ListFull(ctx)
	if err != nil {
		return "", err
	}
	return EncodeEnv(Pairs(secrets)), nil
}

// Pairs projects secrets to key/value pairs.
func Pairs(secrets []models.Secret) []models.EnvPair {
	pairs := make([]models.EnvPair, len(secrets))
	for i, s := range secrets {
		pairs[i] = models.EnvPair{Key: s.Key, Value: s.Value}
	}
	return pairs
}
