package pathcompose

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/rungtool/rung/internal/toolset"
)

// genDirList generates a short slice of plausible directory paths.
func genDirList(t *rapid.T, label string) []string {
	n := rapid.IntRange(0, 4).Draw(t, label+"_n")
	out := make([]string, n)
	for i := range out {
		out[i] = "/" + rapid.StringMatching(`[a-z]{1,8}`).Draw(t, label+"_dir") + "/bin"
	}
	return out
}

// TestComposeIsDeterministic checks invariant 4: composing twice with the
// same inputs yields byte-identical output, regardless of what those
// inputs happen to be.
func TestComposeIsDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		in := Inputs{
			SystemPath:   genDirList(t, "system"),
			EnvPaths:     genDirList(t, "env"),
			ConfigDirs:   genDirList(t, "config"),
			ToolAddPaths: genDirList(t, "tooladd"),
		}

		first := Compose(in)
		second := Compose(in)

		if len(first) != len(second) {
			t.Fatalf("non-deterministic length: %v vs %v", first, second)
		}
		for i := range first {
			if first[i] != second[i] {
				t.Fatalf("non-deterministic entry %d: %q vs %q", i, first[i], second[i])
			}
		}
	})
}

// TestComposeNeverDropsEnvPaths checks the survival half of invariant 5:
// _.path/path_dirs entries (represented here by EnvPaths) always survive
// into the output, no matter what else is mixed in. Their position relative
// to tool bin dirs is not checked here.
func TestComposeNeverDropsEnvPaths(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		envPaths := genDirList(t, "env")
		ts := toolset.NewToolset()
		if rapid.Bool().Draw(t, "add_tool") {
			ts.Add(toolset.ToolVersion{
				Backend:     toolset.ParseBackendArg("node"),
				Version:     "20.0.0",
				InstallPath: "/data/installs/node/20.0.0",
			})
		}

		out := Compose(Inputs{
			SystemPath: genDirList(t, "system"),
			EnvPaths:   envPaths,
			Toolset:    ts,
		})

		seen := map[string]bool{}
		for _, p := range out {
			seen[p] = true
		}
		for _, p := range envPaths {
			if !seen[p] {
				t.Fatalf("env path %q dropped from composed output %v", p, out)
			}
		}
	})
}
