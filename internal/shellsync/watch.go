package shellsync

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultDebounce is how long Watch waits after the last event on the shell
// file before checking it.
const DefaultDebounce = 250 * time.Millisecond

// Watch restores the shell file whenever something other than the Manager
// changes or removes it. It watches the parent directory because the file
// itself is replaced by rename on every sync. Watch blocks until ctx is done.
func (m *Manager) Watch(ctx context.Context, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(m.path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(m.path), err)
	}

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != m.path || ev.Op == fsnotify.Chmod {
				continue
			}
			timer.Reset(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Str("path", m.path).Msg("shell file watcher error")
		case <-timer.C:
			repaired, err := m.RepairDrift(ctx)
			if err != nil {
				log.Error().Err(err).Str("path", m.path).Msg("failed to restore shell file")
				continue
			}
			if repaired {
				log.Info().Str("path", m.path).Msg("shell file changed outside envvault, restored")
			}
		}
	}
}

// RepairDrift re-syncs when the shell file no longer holds what the Manager
// last wrote. It reports whether a sync was needed.
func (m *Manager) RepairDrift(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := os.ReadFile(m.path)
	if err == nil && m.last != nil && bytes.Equal(current, m.last) {
		return false, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("%w: %w", ErrSyncIO, err)
	}
	return true, m.sync(ctx)
}
