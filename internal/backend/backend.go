// Package backend defines the plugin capability contract every tool
// backend (core, asdf, aqua, ubi, cargo, npm, …) implements, per §9 Design
// Notes: list_all_versions, install, uninstall, is_version_installed,
// list_bin_paths, parse_idiomatic_file, symlink_path, description. The
// individual plugin backends themselves are explicitly out of scope
// (spec.md §1 Non-goals: "the individual backend plugins... named by their
// interface only"); this package only fixes that interface plus the two
// built-ins (core, system) simple enough to ship directly.
package backend

import (
	"context"

	"github.com/rungtool/rung/internal/toolset"
)

// Backend is the capability contract a tool backend exposes to the
// resolver (component H).
type Backend interface {
	// Description is a short human-readable label, e.g. "Node.js (core)".
	Description() string

	// ListAllVersions enumerates known installable versions, newest first.
	// Implementations are expected to cache this themselves; the resolver
	// also caches per process (toolresolve's versionCache).
	ListAllVersions(ctx context.Context) ([]string, error)

	// IsVersionInstalled reports whether version is already present at
	// installPath without touching the network.
	IsVersionInstalled(installPath, version string) bool

	// Install installs version into installPath, downloading and
	// verifying it as needed. Must be idempotent when the version is
	// already installed.
	Install(ctx context.Context, installPath, version string) error

	// Uninstall removes an installed version's directory.
	Uninstall(ctx context.Context, installPath string) error

	// ListBinPaths returns the directories (relative to installPath) that
	// should be added to PATH for an installed version. Most backends
	// return []string{"bin"}.
	ListBinPaths(installPath, version string) ([]string, error)

	// ParseIdiomaticFile reads a per-tool idiomatic version file (.nvmrc,
	// .ruby-version, …) this backend recognises and returns the version
	// string it names, or ok=false if this backend doesn't own that file.
	ParseIdiomaticFile(path string) (version string, ok bool, err error)

	// SymlinkPath returns the path `rung use`-family commands should
	// symlink the resolved version at, e.g. for a "latest" alias pointer.
	SymlinkPath(installPath string) string
}

// Registry maps a backend's registry name (the portion of BackendArg.Full
// before ':', e.g. "node", "npm", "cargo") to its Backend implementation.
type Registry struct {
	byName map[string]Backend
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Backend)}
}

// Register adds a backend under name, overwriting any existing entry.
func (r *Registry) Register(name string, b Backend) {
	r.byName[name] = b
}

// Lookup returns the Backend registered for a BackendArg's registry name
// (the portion before ':', or the whole Full string if there is none).
func (r *Registry) Lookup(ba toolset.BackendArg) (Backend, bool) {
	b, ok := r.byName[registryName(ba)]
	return b, ok
}

func registryName(ba toolset.BackendArg) string {
	full := ba.Full
	for i := 0; i < len(full); i++ {
		if full[i] == ':' {
			return full[:i]
		}
	}
	return full
}
