package backend

import (
	"context"
	"fmt"
)

// systemBackend implements the "system" request kind (§3.2, §9): it never
// installs anything and always reports the ambient tool on PATH as
// installed, for requests like `node = "system"`.
type systemBackend struct {
	name string
}

// NewSystemBackend returns the Backend for a tool pinned to its
// already-installed system copy.
func NewSystemBackend(name string) Backend {
	return &systemBackend{name: name}
}

func (b *systemBackend) Description() string { return fmt.Sprintf("%s (system)", b.name) }

func (b *systemBackend) ListAllVersions(ctx context.Context) ([]string, error) {
	return []string{"system"}, nil
}

func (b *systemBackend) IsVersionInstalled(installPath, version string) bool { return true }

func (b *systemBackend) Install(ctx context.Context, installPath, version string) error {
	return nil
}

func (b *systemBackend) Uninstall(ctx context.Context, installPath string) error { return nil }

func (b *systemBackend) ListBinPaths(installPath, version string) ([]string, error) {
	return nil, nil
}

func (b *systemBackend) ParseIdiomaticFile(path string) (string, bool, error) {
	return "", false, nil
}

func (b *systemBackend) SymlinkPath(installPath string) string { return "" }
