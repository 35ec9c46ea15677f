package crypto

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/utils/v4"
)

// ErrKeyFileCorrupt is returned when a key file exists but does not hold a
// hex-encoded 32-byte key.
var ErrKeyFileCorrupt = errors.New("key file is corrupt")

// LoadOrCreateRootKey reads the hex-encoded root key at path, generating and
// persisting a new one (mode 0600) when the file does not exist. created
// reports whether a new key was written.
func LoadOrCreateRootKey(path string) (key []byte, created bool, err error) {
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		key, err = hex.DecodeString(strings.TrimSpace(string(data)))
		if err != nil || len(key) != KeySize {
			return nil, false, fmt.Errorf("%w: %s", ErrKeyFileCorrupt, path)
		}
		return key, false, nil
	case !errors.Is(err, os.ErrNotExist):
		return nil, false, fmt.Errorf("reading key file: %w", err)
	}

	key, err = GenerateRootKey()
	if err != nil {
		return nil, false, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, false, fmt.Errorf("creating key dir: %w", err)
	}
	if err := utils.AtomicWriteFile(path, []byte(hex.EncodeToString(key)+"\n"), 0o600); err != nil {
		return nil, false, fmt.Errorf("writing key file: %w", err)
	}
	return key, true, nil
}
