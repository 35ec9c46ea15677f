package auth

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestLoadOrCreateToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "api.token")

	tok, created, err := LoadOrCreateToken(path)
	if err != nil {
		t.Fatalf("LoadOrCreateToken: %v", err)
	}
	if !created || !strings.HasPrefix(tok, "evt_") {
		t.Fatalf("got %q, created=%v", tok, created)
	}
	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != 0o600 {
			t.Errorf("token file mode = %v, want 0600", info.Mode().Perm())
		}
	}

	again, created, err := LoadOrCreateToken(path)
	if err != nil {
		t.Fatalf("second LoadOrCreateToken: %v", err)
	}
	if created || again != tok {
		t.Fatalf("token changed on reload: %q -> %q", tok, again)
	}
}

func TestLoadOrCreateTokenCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api.token")
	if err := os.WriteFile(path, []byte("garbage\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := LoadOrCreateToken(path); !errors.Is(err, ErrTokenFileCorrupt) {
		t.Fatalf("expected ErrTokenFileCorrupt, got %v", err)
	}
}

func TestValidateToken(t *testing.T) {
	tok, err := GenerateToken()
	if err != nil {
		t.Fatal(err)
	}
	svc := NewTokenService(tok)

	if err := svc.ValidateToken(tok); err != nil {
		t.Errorf("valid token rejected: %v", err)
	}
	if err := svc.ValidateToken(""); !errors.Is(err, ErrMissingToken) {
		t.Errorf("empty token: %v", err)
	}
	if err := svc.ValidateToken(tok + "x"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("wrong token: %v", err)
	}
}

func TestHashToken(t *testing.T) {
	if HashToken("a") == HashToken("b") {
		t.Fatal("distinct tokens share a hash")
	}
	if len(HashToken("a")) != 64 {
		t.Fatal("expected hex SHA-256")
	}
}
