package envresolve

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rungtool/rung/internal/configfile"
	"github.com/rungtool/rung/internal/configgraph"
)

// TestResolveScenarioS2 mirrors spec scenario S2: env directive order.
func TestResolveScenarioS2(t *testing.T) {
	root := "/proj"
	entries := []configgraph.EnvEntry{
		{Directive: configfile.EnvDirective{Kind: configfile.EnvVal, Key: "A", Value: "1"}, Origin: root + "/mise.toml", Root: root},
		{Directive: configfile.EnvDirective{Kind: configfile.EnvPath, Value: "./bin"}, Origin: root + "/mise.toml", Root: root},
		{Directive: configfile.EnvDirective{Kind: configfile.EnvVal, Key: "B", Value: "{{ env.A }}2"}, Origin: root + "/mise.toml", Root: root},
	}

	res, err := Resolve(entries, Options{ConfigRoot: root, Cwd: root, Phase: PreToolsOnly})
	require.NoError(t, err)

	assert.Equal(t, "1", res.Env["A"])
	assert.Equal(t, "12", res.Env["B"])
	require.Len(t, res.EnvPaths, 1)
	assert.Equal(t, filepath.Join(root, "bin"), res.EnvPaths[0])
}

func TestResolveRmAndWarn(t *testing.T) {
	entries := []configgraph.EnvEntry{
		{Directive: configfile.EnvDirective{Kind: configfile.EnvVal, Key: "A", Value: "1"}, Root: "/proj"},
		{Directive: configfile.EnvDirective{Kind: configfile.EnvRm, Key: "A"}, Root: "/proj"},
		{Directive: configfile.EnvDirective{Kind: configfile.EnvVal, Key: "C", Value: "{{ env.MISSING }}"}, Root: "/proj"},
	}
	var warned []string
	res, err := Resolve(entries, Options{Warn: func(m string) { warned = append(warned, m) }})
	require.NoError(t, err)

	_, ok := res.Env["A"]
	assert.False(t, ok)
	assert.True(t, res.EnvRemove["A"])
	assert.Equal(t, "", res.Env["C"])
	assert.NotEmpty(t, warned)
}
