package depgraph

import (
	"path/filepath"
	"sort"

	"github.com/rungtool/rung/internal/task"
)

// Build constructs a Graph from the requested root task names against the
// full table of known tasks, expanding depends/depends_post/wait_for edges
// and glob patterns (§4.8). wait_for edges to a task outside the resulting
// run set are dropped silently (per SPEC_FULL's resolved open question).
func Build(rootNames []string, tasks map[string]*task.Task) (*Graph, error) {
	g := New()
	runSet := map[string]bool{}

	var include func(name string) error
	include = func(name string) error {
		if runSet[name] {
			return nil
		}
		t, ok := tasks[name]
		if !ok {
			return nil
		}
		runSet[name] = true
		g.AddNode(name, nil)

		for _, dep := range expandGlob(t.Depends(), tasks) {
			if err := include(dep); err != nil {
				return err
			}
		}
		for _, dep := range expandGlob(t.Spec.DependsPost, tasks) {
			if err := include(dep); err != nil {
				return err
			}
		}
		return nil
	}

	for _, name := range rootNames {
		if err := include(name); err != nil {
			return nil, err
		}
	}

	for name := range runSet {
		t := tasks[name]
		self := g.AddNode(name, nil)

		for _, dep := range expandGlob(t.Depends(), tasks) {
			if !runSet[dep] {
				continue
			}
			g.AddEdge(self, g.AddNode(dep, nil), EdgeDepends)
		}
		for _, dep := range expandGlob(t.Spec.WaitFor, tasks) {
			if !runSet[dep] {
				continue // §4.8: wait_for outside the run set is dropped silently
			}
			g.AddEdge(self, g.AddNode(dep, nil), EdgeWaitFor)
		}
		for _, post := range expandGlob(t.Spec.DependsPost, tasks) {
			if !runSet[post] {
				continue
			}
			// depends_post produces a reverse edge: the post-task depends on
			// its owner, so it runs after (§4.8 step 3).
			g.AddEdge(g.AddNode(post, nil), self, EdgeDependsPost)
		}
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// expandGlob resolves each pattern in names against the known task table,
// expanding "build:*"-style globs (§4.8 step 2) and passing through literal
// names that match no pattern characters.
func expandGlob(names []string, tasks map[string]*task.Task) []string {
	var out []string
	seen := map[string]bool{}
	add := func(n string) {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	for _, pattern := range names {
		if !hasGlobChars(pattern) {
			add(pattern)
			continue
		}
		var matches []string
		for name := range tasks {
			if ok, _ := filepath.Match(pattern, name); ok {
				matches = append(matches, name)
			}
		}
		sort.Strings(matches)
		for _, m := range matches {
			add(m)
		}
	}
	return out
}

func hasGlobChars(s string) bool {
	for _, r := range s {
		switch r {
		case '*', '?', '[':
			return true
		}
	}
	return false
}

// IsLinear reports whether repeated leaf-pop never yields more than one
// leaf at a time (§4.8: used to pick the interleave output mode).
func IsLinear(g *Graph) bool {
	layers, err := g.Layers()
	if err != nil {
		return false
	}
	for _, l := range layers {
		if len(l.Nodes) > 1 {
			return false
		}
	}
	return true
}
