// Package trust implements the trust store (component B): tracking which
// config paths the user has approved to be loaded and templated, with
// sha256 pinning in paranoid mode.
package trust

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"

	"github.com/rungtool/rung/internal/rerrors"
	"github.com/rungtool/rung/internal/rpath"
)

// promptMu serialises interactive trust prompts process-wide so concurrent
// config loaders never prompt twice for the same run (§4.1).
var promptMu sync.Mutex

// Store is the process-wide trust store. Reads are cheap filesystem scans;
// writes (Trust/Untrust/Ignore) take storeMu to avoid racing symlink
// creation against deletion for the same path.
type Store struct {
	dirs     *rpath.Dirs
	paranoid bool

	// ExtraTrustedPaths mirrors the MISE_TRUSTED_CONFIG_PATHS /
	// trusted_config_paths setting: paths always considered trusted.
	ExtraTrustedPaths []string

	// IsCI reports whether the current environment is a CI system (rule 3
	// of IsTrusted). Overridable for tests.
	IsCI func() bool

	// IsTTY reports whether stdin is a terminal, gating interactive prompts.
	IsTTY func() bool

	// Prompt asks the user to approve path and returns their answer.
	// The default implementation reads a line from stdin.
	Prompt func(path string) (bool, error)

	storeMu sync.Mutex
}

// New creates a Store rooted at dirs.
func New(dirs *rpath.Dirs, paranoid bool) *Store {
	return &Store{
		dirs:     dirs,
		paranoid: paranoid,
		IsCI:     defaultIsCI,
		IsTTY:    func() bool { return isatty.IsTerminal(os.Stdin.Fd()) },
		Prompt:   defaultPrompt,
	}
}

func defaultIsCI() bool {
	// Mirrors common CI detection: any of these vars being set is enough.
	for _, k := range []string{"CI", "CONTINUOUS_INTEGRATION", "GITHUB_ACTIONS"} {
		if v := os.Getenv(k); v != "" && v != "0" && v != "false" {
			return true
		}
	}
	return false
}

func defaultPrompt(path string) (bool, error) {
	fmt.Printf("rung is not configured to trust %s\nTrust it? [y/N] ", path)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, err
	}
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "y" || line == "yes", nil
}

// entryName implements the §6.1.4 trusted-configs filename format:
// <parent-name-truncated>-<filename-truncated>-<sha256-of-canonical-path>.
func entryName(canonPath string) string {
	dir := filepath.Dir(canonPath)
	base := filepath.Base(canonPath)
	parent := filepath.Base(dir)

	sum := sha256.Sum256([]byte(canonPath))
	hash := hex.EncodeToString(sum[:])

	return fmt.Sprintf("%s-%s-%s", truncate(parent, 16), truncate(base, 32), hash)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func (s *Store) entryPath(dir, canonPath string) string {
	return filepath.Join(dir, entryName(canonPath))
}

func (s *Store) hashPinPath(entryPath string) string {
	return entryPath + ".hash"
}

// ConfigTrustRoot returns the canonical path used as the trust key for
// path: path itself in paranoid mode, projectRoot otherwise (§4.1, glossary
// "Trust root"). projectRoot may be empty if the caller has none (global-only).
func (s *Store) ConfigTrustRoot(path, projectRoot string) string {
	if s.paranoid || projectRoot == "" {
		return path
	}
	return projectRoot
}

// IsTrusted implements §4.1's four-rule check. projectRoot is the nearest
// non-global config root owning path (empty if none).
func (s *Store) IsTrusted(path, projectRoot string) (bool, error) {
	canon, err := rpath.Canonical(path)
	if err != nil {
		return false, err
	}

	// Rule 1: configured trusted_config_paths / MISE_TRUSTED_CONFIG_PATHS.
	for _, p := range s.ExtraTrustedPaths {
		tp, err := rpath.Canonical(p)
		if err != nil {
			continue
		}
		if rpath.Under(tp, canon) {
			return true, nil
		}
	}

	// Rule 2: explicit trust-store entry, keyed by the trust root.
	root := s.ConfigTrustRoot(canon, projectRoot)
	entry := s.entryPath(s.dirs.TrustedConfigsDir(), root)
	if s.isIgnored(canon) {
		// An explicit ignore always loses to CI auto-trust (rule 3) per spec,
		// but wins over a stale trusted-configs entry.
		if _, err := os.Lstat(entry); err == nil {
			return false, nil
		}
	}
	if _, err := os.Lstat(entry); err == nil {
		if s.paranoid {
			return s.verifyPin(entry, canon)
		}
		return true, nil
	}

	// Rule 3: CI auto-trust, unless explicitly ignored.
	if s.IsCI() && !s.isIgnored(canon) {
		return true, nil
	}

	// Rule 4: paranoid pin match even without an explicit trust entry is
	// not possible (the pin lives alongside the entry); nothing left to check.
	return false, nil
}

func (s *Store) isIgnored(canon string) bool {
	entry := s.entryPath(s.dirs.IgnoredConfigsDir(), canon)
	_, err := os.Lstat(entry)
	return err == nil
}

func (s *Store) verifyPin(entry, canon string) (bool, error) {
	pinPath := s.hashPinPath(entry)
	pinned, err := os.ReadFile(pinPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	actual, err := sha256File(canon)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(pinned)) == actual, nil
}

func sha256File(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// Trust records path (or its trust root) as trusted, removes any ignore
// entry, and pins its sha256 in paranoid mode.
func (s *Store) Trust(path, projectRoot string) error {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	canon, err := rpath.Canonical(path)
	if err != nil {
		return err
	}
	root := s.ConfigTrustRoot(canon, projectRoot)

	if err := rpath.EnsureDir(s.dirs.TrustedConfigsDir()); err != nil {
		return err
	}
	entry := s.entryPath(s.dirs.TrustedConfigsDir(), root)
	if err := writeMarkerSymlink(entry, root); err != nil {
		return err
	}

	// Remove any ignore entry for this exact path.
	ignoreEntry := s.entryPath(s.dirs.IgnoredConfigsDir(), canon)
	_ = os.Remove(ignoreEntry)

	if s.paranoid {
		hash, err := sha256File(canon)
		if err != nil {
			return err
		}
		return os.WriteFile(s.hashPinPath(entry), []byte(hash+"\n"), 0o644)
	}
	return nil
}

// Untrust removes the trust entry (and pin) for path's trust root.
func (s *Store) Untrust(path, projectRoot string) error {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	canon, err := rpath.Canonical(path)
	if err != nil {
		return err
	}
	root := s.ConfigTrustRoot(canon, projectRoot)
	entry := s.entryPath(s.dirs.TrustedConfigsDir(), root)
	_ = os.Remove(s.hashPinPath(entry))
	return removeIfExists(entry)
}

// Ignore marks path (exact path, never a trust root) as explicitly
// distrusted, overriding CI auto-trust.
func (s *Store) Ignore(path string) error {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	canon, err := rpath.Canonical(path)
	if err != nil {
		return err
	}
	if err := rpath.EnsureDir(s.dirs.IgnoredConfigsDir()); err != nil {
		return err
	}
	entry := s.entryPath(s.dirs.IgnoredConfigsDir(), canon)
	return writeMarkerSymlink(entry, canon)
}

// TrustCheck enforces trust before a config file is loaded: returns nil if
// already trusted, prompts interactively if stdin is a TTY, and otherwise
// returns a KindUntrustedConfig error (§4.1, §7).
func (s *Store) TrustCheck(path, projectRoot string) error {
	trusted, err := s.IsTrusted(path, projectRoot)
	if err != nil {
		return err
	}
	if trusted {
		return nil
	}

	if !s.IsTTY() {
		return rerrors.New(rerrors.KindUntrustedConfig, fmt.Sprintf("config file is not trusted: %s", path)).
			WithHint("run `rung trust` to approve it")
	}

	promptMu.Lock()
	defer promptMu.Unlock()

	// Re-check under the lock: another loader may have just trusted it.
	trusted, err = s.IsTrusted(path, projectRoot)
	if err != nil {
		return err
	}
	if trusted {
		return nil
	}

	approved, err := s.Prompt(path)
	if err != nil {
		return err
	}
	if !approved {
		if err := s.Ignore(path); err != nil {
			return err
		}
		return rerrors.New(rerrors.KindUntrustedConfig, fmt.Sprintf("config file was not trusted: %s", path))
	}
	return s.Trust(path, projectRoot)
}

func writeMarkerSymlink(entry, target string) error {
	_ = os.Remove(entry)
	return os.Symlink(target, entry)
}

func removeIfExists(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
