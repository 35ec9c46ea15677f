// Package audit writes one JSON line per API request to a rotating file.
package audit

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/juju/lumberjack/v2"
	"github.com/rs/zerolog"

	"github.com/org/envvault/pkg/models"
)

// Options configures the audit file.
type Options struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// Logger writes structured audit entries.
type Logger struct {
	log    zerolog.Logger
	closer io.Closer
}

// NewLogger creates a Logger writing to a rotating file.
func NewLogger(opts Options) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(opts.File), 0o700); err != nil {
		return nil, err
	}
	w := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		Compress:   true,
	}
	return &Logger{log: zerolog.New(w), closer: w}, nil
}

// NewWriterLogger creates a Logger writing to w.
func NewWriterLogger(w io.Writer) *Logger {
	return &Logger{log: zerolog.New(w)}
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{log: zerolog.Nop()}
}

// LogRequest records an API request to the audit log.
// Secret keys and values must NEVER be passed here, only metadata.
func (l *Logger) LogRequest(entry *models.AuditEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	l.log.Log().
		Str("request_id", entry.RequestID).
		Time("time", entry.Timestamp).
		Str("operation", entry.Operation).
		Str("path", entry.Path).
		Str("status", entry.Status).
		Int("code", entry.ResponseCode).
		Int64("duration_ms", entry.ResponseTimeMs).
		Str("client", entry.ClientIP).
		Bool("authenticated", entry.Authenticated).
		Send()
}

// Close flushes and closes the underlying file.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
