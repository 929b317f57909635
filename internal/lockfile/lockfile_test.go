package lockfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsEmpty(t *testing.T) {
	f, err := Load(filepath.Join(t.TempDir(), "mise.lock"))
	require.NoError(t, err)
	_, ok := f.Version("node")
	assert.False(t, ok)
}

func TestPinAndSaveRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mise.lock")
	f, err := Load(path)
	require.NoError(t, err)

	f.Pin("node", "20.5.0")
	f.PinPlatform("node", PlatformKey("linux", "x64", ""), Platform{Checksum: "sha256:abc", URL: "https://example.com/node.tar.xz"})
	require.NoError(t, f.Save())

	_, err = os.Stat(path)
	require.NoError(t, err)

	reloaded, err := Load(path)
	require.NoError(t, err)
	v, ok := reloaded.Version("node")
	require.True(t, ok)
	assert.Equal(t, "20.5.0", v)
	assert.Equal(t, "sha256:abc", reloaded.Tools["node"].Platforms["linux-x64"].Checksum)
}
