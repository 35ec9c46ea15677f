package shellsync

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const hookComment = "# EnvVault secrets"

// DefaultProfiles are the shell profiles checked by InstallHook, relative to
// the home directory.
var DefaultProfiles = []string{".zshrc", ".bashrc", ".bash_profile"}

// InstallHook appends a line sourcing the shell file to every existing
// profile that does not reference it yet. Profiles are absolute or relative
// to home; missing ones are left alone. It returns the profiles it changed.
func (m *Manager) InstallHook(home string, profiles []string) ([]string, error) {
	if len(profiles) == 0 {
		profiles = DefaultProfiles
	}
	ref := m.shellRef(home)
	block := fmt.Sprintf("\n%s\n[ -f %s ] && { set -a; . %s; set +a; }\n", hookComment, ref, ref)

	var changed []string
	for _, p := range profiles {
		if !filepath.IsAbs(p) {
			p = filepath.Join(home, p)
		}
		data, err := os.ReadFile(p)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return changed, fmt.Errorf("reading %s: %w", p, err)
		}
		if m.referencedBy(string(data), ref) {
			continue
		}
		f, err := os.OpenFile(p, os.O_APPEND|os.O_WRONLY, 0)
		if err != nil {
			return changed, fmt.Errorf("opening %s: %w", p, err)
		}
		_, werr := f.WriteString(block)
		cerr := f.Close()
		if werr != nil {
			return changed, fmt.Errorf("writing %s: %w", p, werr)
		}
		if cerr != nil {
			return changed, fmt.Errorf("closing %s: %w", p, cerr)
		}
		changed = append(changed, p)
	}
	return changed, nil
}

// shellRef is how profiles refer to the shell file: "~/..." when it lives
// under home, otherwise the quoted absolute path.
func (m *Manager) shellRef(home string) string {
	if rel, err := filepath.Rel(home, m.path); err == nil && !strings.HasPrefix(rel, "..") && rel != "." {
		return "~/" + filepath.ToSlash(rel)
	}
	return "'" + m.path + "'"
}

func (m *Manager) referencedBy(profile, ref string) bool {
	for _, r := range []string{ref, m.path} {
		if strings.Contains(profile, ". "+r) || strings.Contains(profile, "source "+r) {
			return true
		}
	}
	return false
}
