package crypto

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOrCreateRootKeyCreatesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "vault.key")

	key, created, err := LoadOrCreateRootKey(path)
	if err != nil {
		t.Fatalf("LoadOrCreateRootKey failed: %v", err)
	}
	if !created {
		t.Error("expected a new key to be created")
	}
	if len(key) != KeySize {
		t.Errorf("expected %d bytes, got %d", KeySize, len(key))
	}

	fi, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat key file: %v", err)
	}
	if perm := fi.Mode().Perm(); perm != 0o600 {
		t.Errorf("expected mode 0600, got %o", perm)
	}

	again, created, err := LoadOrCreateRootKey(path)
	if err != nil {
		t.Fatalf("second LoadOrCreateRootKey failed: %v", err)
	}
	if created {
		t.Error("existing key must not be replaced")
	}
	if !bytes.Equal(key, again) {
		t.Error("reloaded key differs from the created one")
	}
}

func TestLoadOrCreateRootKeyCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.key")
	if err := os.WriteFile(path, []byte("not-hex\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, _, err := LoadOrCreateRootKey(path)
	if !errors.Is(err, ErrKeyFileCorrupt) {
		t.Errorf("expected ErrKeyFileCorrupt, got %v", err)
	}
}
