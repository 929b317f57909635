package trust

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rungtool/rung/internal/rpath"
)

func newTestStore(t *testing.T) (*Store, *rpath.Dirs) {
	t.Helper()
	base := t.TempDir()
	dirs := &rpath.Dirs{Data: base, Cache: filepath.Join(base, "cache")}
	s := New(dirs, false)
	s.IsCI = func() bool { return false }
	s.IsTTY = func() bool { return false }
	return s, dirs
}

func writeProject(t *testing.T, root string) (configPath string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(root, 0o755))
	p := filepath.Join(root, "rung.toml")
	require.NoError(t, os.WriteFile(p, []byte("[tools]\n"), 0o644))
	return p
}

// TestTrustTransitivity covers invariant 1: trusting the project root
// trusts every config file under it; untrust reverses that.
func TestTrustTransitivity(t *testing.T) {
	s, _ := newTestStore(t)
	root := t.TempDir()
	child := filepath.Join(root, "pkg", "a")
	cfgRoot := writeProject(t, root)
	cfgChild := writeProject(t, child)

	trusted, err := s.IsTrusted(cfgRoot, root)
	require.NoError(t, err)
	assert.False(t, trusted)

	require.NoError(t, s.Trust(cfgRoot, root))

	trusted, err = s.IsTrusted(cfgRoot, root)
	require.NoError(t, err)
	assert.True(t, trusted)

	trusted, err = s.IsTrusted(cfgChild, root)
	require.NoError(t, err)
	assert.True(t, trusted, "trusting the project root must trust configs nested under it")

	require.NoError(t, s.Untrust(cfgRoot, root))

	trusted, err = s.IsTrusted(cfgRoot, root)
	require.NoError(t, err)
	assert.False(t, trusted)

	trusted, err = s.IsTrusted(cfgChild, root)
	require.NoError(t, err)
	assert.False(t, trusted)
}

func TestParanoidModePinsSha256(t *testing.T) {
	base := t.TempDir()
	dirs := &rpath.Dirs{Data: base}
	s := New(dirs, true)
	s.IsCI = func() bool { return false }

	root := t.TempDir()
	cfg := writeProject(t, root)

	require.NoError(t, s.Trust(cfg, root))
	trusted, err := s.IsTrusted(cfg, root)
	require.NoError(t, err)
	assert.True(t, trusted)

	// Mutate the file contents; the pinned sha256 should no longer match.
	require.NoError(t, os.WriteFile(cfg, []byte("[tools]\nnode = \"20\"\n"), 0o644))
	trusted, err = s.IsTrusted(cfg, root)
	require.NoError(t, err)
	assert.False(t, trusted, "paranoid mode must detect content drift via the pinned hash")
}

func TestIgnoreOverridesCIAutoTrust(t *testing.T) {
	s, _ := newTestStore(t)
	s.IsCI = func() bool { return true }

	root := t.TempDir()
	cfg := writeProject(t, root)

	trusted, err := s.IsTrusted(cfg, root)
	require.NoError(t, err)
	assert.True(t, trusted, "CI systems auto-trust by default")

	require.NoError(t, s.Ignore(cfg))

	trusted, err = s.IsTrusted(cfg, root)
	require.NoError(t, err)
	assert.False(t, trusted, "an explicit ignore overrides CI auto-trust")
}

func TestTrustCheckNonInteractiveFailsUntrusted(t *testing.T) {
	s, _ := newTestStore(t)
	root := t.TempDir()
	cfg := writeProject(t, root)

	err := s.TrustCheck(cfg, root)
	require.Error(t, err)
}
