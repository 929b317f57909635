package configwrite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPinVersion(t *testing.T) {
	t.Run("creates the file and [tools] table when absent", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "mise.toml")

		require.NoError(t, PinVersion(path, "node", "20.0.0"))

		doc, err := readDoc(path)
		require.NoError(t, err)
		tools := doc["tools"].(map[string]any)
		assert.Equal(t, "20.0.0", tools["node"])
	})

	t.Run("preserves unrelated keys already in the file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "mise.toml")
		require.NoError(t, os.WriteFile(path, []byte("[tools]\npython = \"3.12.0\"\n\n[settings]\nidiomatic_version_file_enable_tools = [\"node\"]\n"), 0o644))

		require.NoError(t, PinVersion(path, "node", "20.0.0"))

		doc, err := readDoc(path)
		require.NoError(t, err)
		tools := doc["tools"].(map[string]any)
		assert.Equal(t, "20.0.0", tools["node"])
		assert.Equal(t, "3.12.0", tools["python"])
		assert.Contains(t, doc, "settings")
	})

	t.Run("overwrites an existing pin", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "mise.toml")
		require.NoError(t, PinVersion(path, "node", "18.0.0"))
		require.NoError(t, PinVersion(path, "node", "20.0.0"))

		doc, err := readDoc(path)
		require.NoError(t, err)
		tools := doc["tools"].(map[string]any)
		assert.Equal(t, "20.0.0", tools["node"])
	})
}

func TestUnpinVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mise.toml")
	require.NoError(t, PinVersion(path, "node", "20.0.0"))
	require.NoError(t, PinVersion(path, "python", "3.12.0"))

	require.NoError(t, UnpinVersion(path, "node"))

	doc, err := readDoc(path)
	require.NoError(t, err)
	tools := doc["tools"].(map[string]any)
	assert.NotContains(t, tools, "node")
	assert.Equal(t, "3.12.0", tools["python"])
}

func TestUnpinVersion_missingFileIsNotAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mise.toml")
	require.NoError(t, UnpinVersion(path, "node"))
}

func TestSetAndUnsetSetting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mise.toml")

	require.NoError(t, SetSetting(path, "experimental", true))
	doc, err := readDoc(path)
	require.NoError(t, err)
	settings := doc["settings"].(map[string]any)
	assert.Equal(t, true, settings["experimental"])

	require.NoError(t, UnsetSetting(path, "experimental"))
	doc, err = readDoc(path)
	require.NoError(t, err)
	settings = doc["settings"].(map[string]any)
	assert.NotContains(t, settings, "experimental")
}

func TestAddTask(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mise.toml")

	require.NoError(t, AddTask(path, "build", []string{"go", "build", "./..."}))

	doc, err := readDoc(path)
	require.NoError(t, err)
	tasks := doc["tasks"].(map[string]any)
	entry := tasks["build"].(map[string]any)
	assert.Equal(t, "go build ./...", entry["run"])
}

func TestWriteIdiomaticVersion(t *testing.T) {
	t.Run("plain version file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".nvmrc")
		require.NoError(t, WriteIdiomaticVersion(path, "20.0.0"))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "20.0.0\n", string(data))
	})

	t.Run("rust-toolchain.toml writes toolchain.channel", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rust-toolchain.toml")
		require.NoError(t, WriteIdiomaticVersion(path, "1.75.0"))

		doc, err := readDoc(path)
		require.NoError(t, err)
		toolchain := doc["toolchain"].(map[string]any)
		assert.Equal(t, "1.75.0", toolchain["channel"])
	})
}
