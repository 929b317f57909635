// Package lockfile reads and writes mise.lock (§6.1 item 3): a TOML
// sibling of the nearest structured config that pins resolved tool
// versions and, per platform, their checksums and asset URLs.
//
// Writes use the teacher's atomic tmpfile-then-rename pattern (grounded on
// internal/installer/place, which does the equivalent for installed
// artifacts) and are serialised by a gofrs/flock lock so two scheduler
// invocations on the same host don't race on the same lockfile.
package lockfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/pelletier/go-toml/v2"

	"github.com/rungtool/rung/internal/rerrors"
)

// Platform pins one (os, arch[, qualifier]) combination's checksum and
// download URL (§6.1 item 3).
type Platform struct {
	Checksum string `toml:"checksum,omitempty"`
	URL      string `toml:"url,omitempty"`
	Size     int64  `toml:"size,omitempty"`
}

// ToolLock pins one backend's resolved version plus per-platform artifacts.
type ToolLock struct {
	Version   string              `toml:"version"`
	Backend   string              `toml:"backend,omitempty"`
	Platforms map[string]Platform `toml:"platforms,omitempty"`
}

// File is the parsed form of mise.lock.
type File struct {
	Tools map[string]ToolLock `toml:"tools"`

	path string
}

// PlatformKey builds the "os-arch[-qualifier]" key used in [[tools.X.platforms.Y]]
// (§6.1 item 3: os ∈ {linux, macos, windows}, arch ∈ {x64, arm64, x86}).
func PlatformKey(osName, arch, qualifier string) string {
	if qualifier == "" {
		return fmt.Sprintf("%s-%s", osName, arch)
	}
	return fmt.Sprintf("%s-%s-%s", osName, arch, qualifier)
}

// Load reads and parses path. A missing file is not an error: it returns an
// empty, path-tagged File so callers can populate and Save it fresh.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{Tools: map[string]ToolLock{}, path: path}, nil
		}
		return nil, rerrors.Wrap(rerrors.KindIoError, "failed to read lockfile", err).WithDetail("path", path)
	}

	f := &File{path: path}
	if err := toml.Unmarshal(data, f); err != nil {
		return nil, rerrors.Wrap(rerrors.KindConfigParse, "failed to parse lockfile", err).WithDetail("path", path)
	}
	if f.Tools == nil {
		f.Tools = map[string]ToolLock{}
	}
	return f, nil
}

// Pin records (or overwrites) the resolved version for a backend.
func (f *File) Pin(backend, version string) {
	lock := f.Tools[backend]
	lock.Version = version
	lock.Backend = backend
	f.Tools[backend] = lock
}

// PinPlatform records the checksum/URL/size for one platform key under a
// backend, alongside its pinned version.
func (f *File) PinPlatform(backend, platformKey string, p Platform) {
	lock := f.Tools[backend]
	if lock.Platforms == nil {
		lock.Platforms = map[string]Platform{}
	}
	lock.Platforms[platformKey] = p
	f.Tools[backend] = lock
}

// Version returns the pinned version for a backend, if any.
func (f *File) Version(backend string) (string, bool) {
	lock, ok := f.Tools[backend]
	if !ok || lock.Version == "" {
		return "", false
	}
	return lock.Version, true
}

// Save serialises f back to its path using an atomic tmpfile+rename write,
// guarded by a per-path flock so concurrent scheduler runs don't interleave
// writes (§5: "serialised by a per-backend lock").
func (f *File) Save() error {
	if f.path == "" {
		return rerrors.New(rerrors.KindIoError, "lockfile has no path to save to")
	}

	lock := flock.New(f.path + ".flock")
	if err := lock.Lock(); err != nil {
		return rerrors.Wrap(rerrors.KindIoError, "failed to acquire lockfile lock", err).WithDetail("path", f.path)
	}
	defer lock.Unlock()

	data, err := toml.Marshal(f)
	if err != nil {
		return rerrors.Wrap(rerrors.KindConfigParse, "failed to encode lockfile", err)
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".mise.lock.*.tmp")
	if err != nil {
		return rerrors.Wrap(rerrors.KindIoError, "failed to create lockfile tmpfile", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return rerrors.Wrap(rerrors.KindIoError, "failed to write lockfile tmpfile", err)
	}
	if err := tmp.Close(); err != nil {
		return rerrors.Wrap(rerrors.KindIoError, "failed to close lockfile tmpfile", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return rerrors.Wrap(rerrors.KindIoError, "failed to rename lockfile into place", err)
	}
	return nil
}

// PathFor returns the expected mise.lock path sibling to a structured
// config file at configPath.
func PathFor(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), "mise.lock")
}
