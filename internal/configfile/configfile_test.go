package configfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rungtool/rung/internal/toolset"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadStructuredToolsAndEnv(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "rung.toml", `
[tools]
node = "20.5.0"
go = "prefix:1.22"

[env]
A = "1"
B = "{{ env.A }}2"
_.path = "./bin"
`)
	cf, err := Load(p)
	require.NoError(t, err)
	require.Len(t, cf.ToolReqs, 2)

	var node toolset.ToolRequest
	for _, r := range cf.ToolReqs {
		if r.Backend.Short == "node" {
			node = r
		}
	}
	assert.Equal(t, toolset.RequestVersion, node.Kind)
	assert.Equal(t, "20.5.0", node.Version)

	require.Len(t, cf.Env, 3)
	assert.Equal(t, EnvVal, cf.Env[0].Kind)
	assert.Equal(t, "A", cf.Env[0].Key)
	assert.Equal(t, EnvPath, cf.Env[2].Kind)
	assert.Equal(t, "./bin", cf.Env[2].Value)
}

func TestLoadStructuredUnknownKeyErrors(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "rung.toml", "bogus_key = true\n")
	_, err := Load(p)
	require.Error(t, err)
}

func TestLoadToolVersions(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, ".tool-versions", "# comment\nnode 20.5.0\npython 3.12.0 3.11.0\n")
	cf, err := Load(p)
	require.NoError(t, err)
	require.Len(t, cf.ToolReqs, 3)
	assert.Equal(t, "20.5.0", cf.ToolReqs[0].Version)
}

func TestLoadIdiomaticNvmrc(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, ".nvmrc", "v18.16.0\n")
	cf, err := Load(p)
	require.NoError(t, err)
	require.Len(t, cf.ToolReqs, 1)
	assert.Equal(t, "node", cf.ToolReqs[0].Backend.Short)
	assert.Equal(t, "18.16.0", cf.ToolReqs[0].Version)
}

func TestParseScalarRequestVariants(t *testing.T) {
	backend := toolset.ParseBackendArg("node")
	src := toolset.ToolSource{}

	r, err := parseScalarRequest(backend, "system", src, nil)
	require.NoError(t, err)
	assert.Equal(t, toolset.RequestSystem, r.Kind)

	r, err = parseScalarRequest(backend, "path:/opt/node", src, nil)
	require.NoError(t, err)
	assert.Equal(t, toolset.RequestPath, r.Kind)
	assert.Equal(t, "/opt/node", r.Path)

	r, err = parseScalarRequest(backend, "ref:main", src, nil)
	require.NoError(t, err)
	assert.Equal(t, toolset.RequestRef, r.Kind)
	assert.Equal(t, toolset.RefRef, r.RefKind)

	r, err = parseScalarRequest(backend, "sub-1:20.5.0", src, nil)
	require.NoError(t, err)
	assert.Equal(t, toolset.RequestSub, r.Kind)
	assert.Equal(t, "sub-1", r.Sub)
	assert.Equal(t, "20.5.0", r.SubOrig)
}
