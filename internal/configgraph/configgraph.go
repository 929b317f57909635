// Package configgraph implements the config graph (component E, §3.6,
// §4.3): discovering every ConfigFile that applies to a directory, ordering
// them by precedence, and merging their tool requests, env directives,
// tasks, and settings.
package configgraph

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rungtool/rung/internal/configfile"
	"github.com/rungtool/rung/internal/toolset"
	"github.com/rungtool/rung/internal/trust"
)

// defaultFilenames are the candidate config filenames considered at every
// directory on the walk, in the order given (§4.3 step 1).
var defaultFilenames = []string{
	"mise.toml", ".mise.toml", "rung.toml", ".rung.toml", ".tool-versions",
}

// Discovery walks from cwd up to root (typically $HOME or "/"), collecting
// every candidate config file it finds, plus global/system configs, in
// precedence order system -> global -> outer -> inner (§4.3).
type Discovery struct {
	// ExtraFilenames mirrors $MISE_OVERRIDE_CONFIG_FILENAMES: additional
	// filenames considered at every directory, highest precedence first.
	ExtraFilenames []string
	// Env, when set, causes mise.<env>.toml (or rung.<env>.toml) overlays to
	// be included at every level (§4.3 step 4, MISE_ENV).
	Env string
	// GlobalConfigFile is an absolute path to the user's global config, if any.
	GlobalConfigFile string
	// SystemConfigFile is an absolute path to the system-wide config, if any.
	SystemConfigFile string
	// IdiomaticEnabled toggles whether idiomatic per-tool files (.nvmrc, …)
	// are discovered alongside structured configs.
	IdiomaticEnabled bool
}

// candidateNames returns the filenames considered at every directory,
// nearest-file-wins ordering handled by caller (outer chain iterates root to
// cwd, so later entries in the overall list take precedence).
func (d *Discovery) candidateNames() []string {
	names := append([]string(nil), d.ExtraFilenames...)
	names = append(names, defaultFilenames...)
	if d.Env != "" {
		names = append(names, "mise."+d.Env+".toml", "rung."+d.Env+".toml")
	}
	return names
}

// Discover returns the list of config file paths that apply to cwd, ordered
// from lowest to highest precedence (system, global, then outer-to-inner
// directories, §3.6). Paths are deduplicated by canonical form.
func (d *Discovery) Discover(cwd string) ([]string, error) {
	seen := map[string]bool{}
	var out []string

	add := func(p string) {
		abs, err := filepath.Abs(p)
		if err != nil {
			return
		}
		if _, err := os.Stat(abs); err != nil {
			return
		}
		if seen[abs] {
			return
		}
		seen[abs] = true
		out = append(out, abs)
	}

	if d.SystemConfigFile != "" {
		add(d.SystemConfigFile)
	}
	if d.GlobalConfigFile != "" {
		add(d.GlobalConfigFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			add(filepath.Join(xdg, "mise", "config.toml"))
		} else {
			add(filepath.Join(home, ".config", "mise", "config.toml"))
		}
	}

	abs, err := filepath.Abs(cwd)
	if err != nil {
		return nil, err
	}
	home, _ := os.UserHomeDir()

	var chain []string
	dir := abs
	for {
		chain = append(chain, dir)
		if home != "" && dir == home {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	// chain is innermost-first (cwd, parent, ... home); reverse so we walk
	// outermost to innermost, letting deeper directories win precedence.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	for _, dir := range chain {
		for _, name := range d.candidateNames() {
			add(filepath.Join(dir, name))
		}
		if d.IdiomaticEnabled {
			for name := range configfile.IdiomaticFiles {
				add(filepath.Join(dir, name))
			}
		}
	}

	return out, nil
}

// Graph is the merged view of every discovered ConfigFile (§3.6, §4.3).
type Graph struct {
	Files []*configfile.ConfigFile // lowest to highest precedence
}

// Load discovers and loads (with trust checks) every applicable config file
// for cwd. Files that fail TrustCheck are skipped with the error returned
// only if strict is true (callers needing a Graph despite untrusted files —
// e.g. `rung trust --show` — should pass strict=false).
func Load(d *Discovery, cwd string, store *trust.Store, strict bool) (*Graph, error) {
	paths, err := d.Discover(cwd)
	if err != nil {
		return nil, err
	}

	g := &Graph{}
	projectRoot := ProjectRoot(paths, cwd)
	for _, p := range paths {
		if store != nil {
			if err := store.TrustCheck(p, projectRoot); err != nil {
				if strict {
					return nil, err
				}
				continue
			}
		}
		cf, err := configfile.Load(p)
		if err != nil {
			return nil, err
		}
		cf.ProjectRoot = projectRoot
		g.Files = append(g.Files, cf)
	}
	return g, nil
}

// ProjectRoot returns the nearest non-global config root among paths
// (glossary "Project root"): the directory of the highest-precedence
// (innermost) discovered file that isn't the global/system config.
func ProjectRoot(paths []string, cwd string) string {
	for i := len(paths) - 1; i >= 0; i-- {
		dir := filepath.Dir(paths[i])
		if strings.HasPrefix(dir, cwd) || strings.HasPrefix(cwd, dir) {
			return dir
		}
	}
	if len(paths) > 0 {
		return filepath.Dir(paths[len(paths)-1])
	}
	return cwd
}

// MergedToolRequests returns every tool request across the graph in
// file-precedence order (outer to inner); the version-decision winner for a
// backend is the request from the nearest (last) file that mentions it, but
// all requests remain visible for list_all_versions cross-references (§4.3).
func (g *Graph) MergedToolRequests() []toolset.ToolRequest {
	var out []toolset.ToolRequest
	for _, cf := range g.Files {
		out = append(out, cf.ToolReqs...)
	}
	return out
}

// WinningToolRequests collapses MergedToolRequests down to one request per
// backend: the one from the nearest (highest-precedence) file.
func (g *Graph) WinningToolRequests() []toolset.ToolRequest {
	winner := map[string]toolset.ToolRequest{}
	var order []string
	for _, cf := range g.Files {
		for _, r := range cf.ToolReqs {
			key := r.Backend.Full
			if _, ok := winner[key]; !ok {
				order = append(order, key)
			}
			winner[key] = r
		}
	}
	out := make([]toolset.ToolRequest, 0, len(order))
	for _, k := range order {
		out = append(out, winner[k])
	}
	return out
}

// EnvEntries returns every (directive, origin path) pair across the graph,
// outer to inner, file order preserved within each file (§3.7, §4.3).
type EnvEntry struct {
	Directive configfile.EnvDirective
	Origin    string
	Root      string
}

func (g *Graph) EnvEntries() []EnvEntry {
	var out []EnvEntry
	for _, cf := range g.Files {
		for _, d := range cf.Env {
			out = append(out, EnvEntry{Directive: d, Origin: cf.Path, Root: cf.ConfigRoot})
		}
	}
	return out
}

// Setting returns the value of key from the nearest (highest-precedence)
// file that defines it (§4.3: "Settings: shallow override, nearest wins").
func (g *Graph) Setting(key string) (any, bool) {
	for i := len(g.Files) - 1; i >= 0; i-- {
		if v, ok := g.Files[i].Settings[key]; ok {
			return v, true
		}
	}
	return nil, false
}

// Tasks returns the union of tasks across the graph; on name collision the
// nearer file wins (§4.3).
func (g *Graph) Tasks() []configfile.TaskSpec {
	byName := map[string]configfile.TaskSpec{}
	var order []string
	for _, cf := range g.Files {
		for _, t := range cf.Tasks {
			if _, ok := byName[t.Name]; !ok {
				order = append(order, t.Name)
			}
			byName[t.Name] = t
		}
	}
	sort.Strings(order)
	out := make([]configfile.TaskSpec, 0, len(order))
	for _, n := range order {
		out = append(out, byName[n])
	}
	return out
}

// Templates returns the union of task_templates across the graph, nearer
// file wins on name collision.
func (g *Graph) Templates() map[string]configfile.TaskSpec {
	out := map[string]configfile.TaskSpec{}
	for _, cf := range g.Files {
		for name, t := range cf.Templates {
			out[name] = t
		}
	}
	return out
}
