package hooks

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rungtool/rung/internal/configfile"
)

func TestFiredEnterLeaveCD(t *testing.T) {
	all := []configfile.Hook{
		{Kind: KindEnter, Root: "/proj", Script: "echo enter"},
		{Kind: KindLeave, Root: "/proj", Script: "echo leave"},
		{Kind: KindCD, Root: "/proj", Script: "echo cd"},
	}

	entering := Fired(all, Transition{PreviousDir: "/home", CurrentDir: "/proj/sub"})
	require := assert.New(t)
	require.Len(entering, 2) // enter + cd
	kinds := []string{entering[0].Kind, entering[1].Kind}
	require.Contains(kinds, KindEnter)
	require.Contains(kinds, KindCD)

	leaving := Fired(all, Transition{PreviousDir: "/proj/sub", CurrentDir: "/home"})
	require.Len(leaving, 1)
	require.Equal(KindLeave, leaving[0].Kind)

	withinProject := Fired(all, Transition{PreviousDir: "/proj/a", CurrentDir: "/proj/b"})
	require.Len(withinProject, 1)
	require.Equal(KindCD, withinProject[0].Kind)
}

func TestEnvIncludesProjectRootAndDirs(t *testing.T) {
	h := configfile.Hook{Kind: KindEnter, Root: "/proj"}
	env := Env(h, Transition{PreviousDir: "/home", CurrentDir: "/proj"})
	assert.Equal(t, "/proj", env["MISE_PROJECT_ROOT"])
	assert.Equal(t, "/proj", env["MISE_ORIGINAL_CWD"])
	assert.Equal(t, "/home", env["MISE_PREVIOUS_DIR"])
}
