package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderEnvAndConcat(t *testing.T) {
	ctx := Context{Env: map[string]string{"A": "1"}}
	got, err := Render(`{{ env.A }}2`, ctx, false, nil)
	require.NoError(t, err)
	assert.Equal(t, "12", got)
}

func TestRenderConfigRootAndCwd(t *testing.T) {
	ctx := Context{ConfigRoot: "/proj", Cwd: "/proj/sub"}
	got, err := Render(`{{ config_root }}/bin:{{ cwd }}`, ctx, false, nil)
	require.NoError(t, err)
	assert.Equal(t, "/proj/bin:/proj/sub", got)
}

func TestRenderMissingKeyWarnsNotErrors(t *testing.T) {
	var warned string
	ctx := Context{Env: map[string]string{}}
	got, err := Render(`{{ env.MISSING }}`, ctx, false, func(k string) { warned = k })
	require.NoError(t, err)
	assert.Equal(t, "", got)
	assert.Equal(t, "MISSING", warned)
}

func TestRenderStrictMissingKeyErrors(t *testing.T) {
	ctx := Context{Env: map[string]string{}}
	_, err := Render(`{{ env.MISSING }}`, ctx, true, nil)
	require.Error(t, err)
}

func TestRenderArgPlaceholder(t *testing.T) {
	rec := &Recorder{}
	got, err := RenderWithArgs(`echo {{ arg "name" }}`, Context{}, false, nil, rec)
	require.NoError(t, err)
	assert.Equal(t, "echo MISE_TASK_ARG:name:MISE_TASK_ARG", got)
	require.Len(t, rec.Specs, 1)
	assert.Equal(t, "arg", rec.Specs[0].Func)
	assert.Equal(t, "name", rec.Specs[0].Name)
}

func TestHasTemplate(t *testing.T) {
	assert.True(t, HasTemplate("{{ env.A }}"))
	assert.False(t, HasTemplate("plain"))
}
