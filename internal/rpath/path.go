// Package rpath provides path/FS utilities: canonicalisation, symlink-safe
// checks, ~ and env expansion, and the persisted-layout directory layout
// from the design spec's §6.4 (component A).
package rpath

import (
	"os"
	"path/filepath"
	"strings"
)

// Dirs holds the resolved $DATA/$CACHE/shims/bin directories for the
// current user. All defaults are relative to $HOME and overridable via env.
type Dirs struct {
	Data  string // $DATA  — default ~/.local/share/rung
	Cache string // $CACHE — default ~/.cache/rung
	State string // $DATA/state -- trust store, lockfile, logs
	Shims string // $DATA/shims
}

// New resolves Dirs from the environment, honouring RUNG_DATA_DIR /
// RUNG_CACHE_DIR overrides the way mise honours MISE_DATA_DIR / MISE_CACHE_DIR.
func New() (*Dirs, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	data := os.Getenv("RUNG_DATA_DIR")
	if data == "" {
		data = filepath.Join(home, ".local", "share", "rung")
	}
	cache := os.Getenv("RUNG_CACHE_DIR")
	if cache == "" {
		cache = filepath.Join(home, ".cache", "rung")
	}

	d, err := Expand(data)
	if err != nil {
		return nil, err
	}
	c, err := Expand(cache)
	if err != nil {
		return nil, err
	}

	return &Dirs{
		Data:  d,
		Cache: c,
		State: filepath.Join(d, "state"),
		Shims: filepath.Join(d, "shims"),
	}, nil
}

// InstallDir returns $DATA/installs/<backend>/<version>.
func (d *Dirs) InstallDir(backend, version string) string {
	return filepath.Join(d.Data, "installs", backend, version)
}

// DownloadsDir returns $DATA/downloads.
func (d *Dirs) DownloadsDir() string {
	return filepath.Join(d.Data, "downloads")
}

// TrustedConfigsDir returns $DATA/trusted-configs.
func (d *Dirs) TrustedConfigsDir() string {
	return filepath.Join(d.Data, "trusted-configs")
}

// IgnoredConfigsDir returns $DATA/ignored-configs.
func (d *Dirs) IgnoredConfigsDir() string {
	return filepath.Join(d.Data, "ignored-configs")
}

// BackendCacheDir returns $CACHE/<backend>.
func (d *Dirs) BackendCacheDir(backend string) string {
	return filepath.Join(d.Cache, backend)
}

// EnsureDir creates dir (and parents) if missing.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// Expand expands a leading "~" or "~/" to the user's home directory, and
// leaves every other path (including relative paths and $VAR references
// consumed elsewhere by the template engine) untouched.
func Expand(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" {
		return os.UserHomeDir()
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}

// Canonical resolves path to an absolute, symlink-free form for use as a
// trust-store or config-graph dedup key. A path that does not exist is
// returned as its cleaned absolute form, with no symlinks resolved.
func Canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return filepath.Clean(abs), nil
		}
		return "", err
	}
	return resolved, nil
}

// IsExecutable reports whether path exists and has any execute bit set.
func IsExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0o111 != 0
}

// IsInstalled reports whether installPath exists and is not a broken
// symlink (§3.3: "Considered installed iff install_path exists and is not
// a broken symlink").
func IsInstalled(installPath string) bool {
	if installPath == "" {
		return false
	}
	_, err := os.Stat(installPath)
	return err == nil
}

// IsBrokenSymlink reports whether path is a symlink whose target does not exist.
func IsBrokenSymlink(path string) bool {
	lst, err := os.Lstat(path)
	if err != nil || lst.Mode()&os.ModeSymlink == 0 {
		return false
	}
	_, err = os.Stat(path)
	return os.IsNotExist(err)
}

// Under reports whether child is canonically nested under root (or equal to it).
func Under(root, child string) bool {
	rel, err := filepath.Rel(root, child)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
