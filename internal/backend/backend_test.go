package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rungtool/rung/internal/toolset"
)

type fakeBackend struct{ name string }

func (f *fakeBackend) Description() string { return f.name }
func (f *fakeBackend) ListAllVersions(ctx context.Context) ([]string, error) {
	return []string{"1.0.0"}, nil
}
func (f *fakeBackend) IsVersionInstalled(installPath, version string) bool { return false }
func (f *fakeBackend) Install(ctx context.Context, installPath, version string) error { return nil }
func (f *fakeBackend) Uninstall(ctx context.Context, installPath string) error        { return nil }
func (f *fakeBackend) ListBinPaths(installPath, version string) ([]string, error) {
	return []string{"bin"}, nil
}
func (f *fakeBackend) ParseIdiomaticFile(path string) (string, bool, error) { return "", false, nil }
func (f *fakeBackend) SymlinkPath(installPath string) string               { return installPath }

func TestRegistryLookupByRegistryName(t *testing.T) {
	r := NewRegistry()
	r.Register("node", &fakeBackend{name: "node"})

	b, ok := r.Lookup(toolset.ParseBackendArg("node"))
	require.True(t, ok)
	assert.Equal(t, "node", b.Description())

	b, ok = r.Lookup(toolset.ParseBackendArg("npm:prettier"))
	assert.False(t, ok)
	assert.Nil(t, b)
}

func TestRegistryLookupMissingBackend(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Lookup(toolset.ParseBackendArg("cargo:ripgrep"))
	assert.False(t, ok)
}

func TestSystemBackendAlwaysInstalled(t *testing.T) {
	b := NewSystemBackend("node")
	assert.True(t, b.IsVersionInstalled("", "system"))
	versions, err := b.ListAllVersions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"system"}, versions)
}
