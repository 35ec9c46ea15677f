// Package shellsync keeps the shell-sourced secrets file in step with the
// vault. The file is regenerated wholesale from the vault on every sync and
// replaced atomically, so a shell sourcing it never sees a partial write.
package shellsync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/juju/utils/v4"

	"github.com/org/envvault/internal/secret"
	"github.com/org/envvault/pkg/models"
)

// DefaultPath is the shell file location before home expansion.
const DefaultPath = "~/.envvault"

// ErrSyncIO is returned when the shell file cannot be written.
var ErrSyncIO = errors.New("shell sync write failed")

// Source supplies the full vault contents for a sync.
type Source interface {
	ListFull(ctx context.Context) ([]models.Secret, error)
}

// Manager writes the shell file.
type Manager struct {
	path string
	src  Source

	mu   sync.Mutex
	last []byte // content of the last successful write
}

// NewManager returns a Manager writing to path, which may start with "~".
func NewManager(path string, src Source) (*Manager, error) {
	if path == "" {
		path = DefaultPath
	}
	resolved, err := ExpandHome(path)
	if err != nil {
		return nil, err
	}
	return &Manager{path: resolved, src: src}, nil
}

// Path returns the absolute path of the shell file.
func (m *Manager) Path() string {
	return m.path
}

// Sync regenerates the shell file from the vault. Two syncs with no vault
// mutation in between write identical bytes.
func (m *Manager) Sync(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sync(ctx)
}

func (m *Manager) sync(ctx context.Context) error {
	secrets, err := m.src.ListFull(ctx)
	if err != nil {
		return fmt.Errorf("reading vault for shell sync: %w", err)
	}
	content := []byte(secret.EncodeEnv(secret.Pairs(secrets)))
	if err := utils.AtomicWriteFile(m.path, content, 0o600); err != nil {
		return fmt.Errorf("%w: %w", ErrSyncIO, err)
	}
	m.last = content
	return nil
}

// ExpandHome resolves a leading "~" to the user's home directory and returns
// an absolute path.
func ExpandHome(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		path = filepath.Join(home, path[1:])
	}
	return filepath.Abs(path)
}
