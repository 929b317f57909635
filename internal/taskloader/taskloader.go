// Package taskloader implements task discovery (component K, §3.8, §4.7):
// collecting configfile.TaskSpec values from a config graph's `[tasks]`
// blocks, from file-based task directories (mise-tasks/, .mise-tasks/, …),
// and from monorepo subpackages, then applying extends via package task.
package taskloader

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/rungtool/rung/internal/configfile"
	"github.com/rungtool/rung/internal/configgraph"
	"github.com/rungtool/rung/internal/rerrors"
	"github.com/rungtool/rung/internal/task"
)

// Options configures discovery.
type Options struct {
	// ConfigRoot is the project root whose task directories get scanned.
	ConfigRoot string
	// Includes overrides the default task_config.includes search dirs.
	Includes []string
	// MonorepoExcludeDirs names directories skipped during subpackage walk
	// (in addition to whatever .gitignore already excludes).
	MonorepoExcludeDirs []string
	// GitignoreAware toggles whether .gitignore patterns are honored during
	// the monorepo subpackage walk (§DOMAIN STACK: K Task loader).
	GitignoreAware bool
	// IncludeMonorepo gates the subpackage walk entirely: only a config
	// graph rooted at experimental_monorepo_root = true sets this (§3.8,
	// §8 scenario S5 — subpackage tasks are invisible otherwise).
	IncludeMonorepo bool
}

// Load discovers every task visible from graph's `[tasks]` blocks plus file
// tasks under the configured task directories, resolves each through its
// extends chain, and returns the fully merged set keyed by task name
// (monorepo-prefixed where applicable).
func Load(graph *configgraph.Graph, opts Options) (map[string]*task.Task, error) {
	templates := graph.Templates()
	specs := append([]configfile.TaskSpec(nil), graph.Tasks()...)

	includes := opts.Includes
	if len(includes) == 0 {
		for _, cf := range graph.Files {
			if len(cf.TaskConfig.Includes) > 0 {
				includes = cf.TaskConfig.Includes
			}
		}
	}

	fileSpecs, err := discoverFileTasks(opts.ConfigRoot, includes)
	if err != nil {
		return nil, err
	}
	specs = append(specs, fileSpecs...)

	if opts.IncludeMonorepo && (opts.GitignoreAware || len(opts.MonorepoExcludeDirs) > 0) {
		subSpecs, err := discoverMonorepoTasks(opts.ConfigRoot, opts)
		if err != nil {
			return nil, err
		}
		specs = append(specs, subSpecs...)
	}

	out := make(map[string]*task.Task, len(specs))
	for _, spec := range specs {
		resolved, err := task.Resolve(spec, templates)
		if err != nil {
			return nil, err
		}
		out[resolved.Spec.Name] = resolved
	}
	return out, nil
}

// discoverFileTasks scans the configured task directories for executable
// files, each becoming one Script-kind task named after its relative path
// with slashes turned into colons (mise's file-task naming convention).
func discoverFileTasks(root string, includeDirs []string) ([]configfile.TaskSpec, error) {
	var out []configfile.TaskSpec
	for _, rel := range includeDirs {
		dir := filepath.Join(root, rel)
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}
		err = filepath.Walk(dir, func(path string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if fi.IsDir() {
				return nil
			}
			if fi.Mode()&0o111 == 0 {
				return nil // file tasks must be executable (§3.8: task directories)
			}
			relPath, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			name := strings.ReplaceAll(relPath, string(filepath.Separator), ":")
			spec, err := parseFileTask(path, name, root)
			if err != nil {
				return err
			}
			out = append(out, spec)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// parseFileTask reads a file task's leading "# mise key=value" header
// comments for metadata (description, alias, depends, depends_post,
// wait_for, dir, hide, raw, quiet), and turns the file itself into the
// task's single run script.
func parseFileTask(path, name, root string) (configfile.TaskSpec, error) {
	spec := configfile.TaskSpec{
		Name:         name,
		ConfigSource: path,
		ConfigRoot:   root,
		Run:          []configfile.RunEntry{{Kind: configfile.RunScript, Script: path}},
	}

	f, err := os.Open(path)
	if err != nil {
		return spec, rerrors.Wrap(rerrors.KindIoError, "failed to read file task", err).WithDetail("path", path)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#!") {
			continue
		}
		rest, ok := strings.CutPrefix(line, "#")
		if !ok {
			break // header block ends at the first non-comment line
		}
		rest = strings.TrimSpace(rest)
		rest, ok = strings.CutPrefix(rest, "mise ")
		if !ok {
			continue
		}
		applyFileTaskDirective(&spec, rest)
	}
	return spec, scanner.Err()
}

func applyFileTaskDirective(spec *configfile.TaskSpec, directive string) {
	key, value, ok := strings.Cut(directive, "=")
	if !ok {
		return
	}
	key = strings.TrimSpace(key)
	value = strings.Trim(strings.TrimSpace(value), `"'`)
	switch key {
	case "description":
		spec.Description = value
	case "alias":
		spec.Aliases = append(spec.Aliases, splitCSV(value)...)
	case "depends":
		spec.Depends = append(spec.Depends, splitCSV(value)...)
	case "depends_post":
		spec.DependsPost = append(spec.DependsPost, splitCSV(value)...)
	case "wait_for":
		spec.WaitFor = append(spec.WaitFor, splitCSV(value)...)
	case "dir":
		spec.Dir = value
	case "hide":
		spec.Hide, _ = strconv.ParseBool(value)
	case "raw":
		spec.Raw, _ = strconv.ParseBool(value)
	case "quiet":
		spec.Quiet, _ = strconv.ParseBool(value)
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// discoverMonorepoTasks walks root for nested config files that mark a
// monorepo subpackage, excluding MonorepoExcludeDirs and (when
// GitignoreAware) anything .gitignore would exclude. Each subpackage's own
// tasks are loaded and renamed to "//pkg/sub:taskname" (§3.8).
func discoverMonorepoTasks(root string, opts Options) ([]configfile.TaskSpec, error) {
	exclude := map[string]bool{".git": true, "node_modules": true}
	for _, d := range opts.MonorepoExcludeDirs {
		exclude[d] = true
	}

	var matcher gitignore.Matcher
	if opts.GitignoreAware {
		fs := osfs.New(root)
		patterns, err := gitignore.ReadPatterns(fs, nil)
		if err == nil {
			matcher = gitignore.NewMatcher(patterns)
		}
	}

	var subRoots []string
	err := filepath.Walk(root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		parts := strings.Split(rel, string(filepath.Separator))
		if fi.IsDir() {
			if exclude[fi.Name()] {
				return filepath.SkipDir
			}
			if matcher != nil && matcher.Match(parts, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if fi.Name() == "mise.toml" || fi.Name() == ".mise.toml" {
			subRoots = append(subRoots, filepath.Dir(path))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(subRoots)

	var out []configfile.TaskSpec
	for _, sub := range subRoots {
		pkgPath, _ := filepath.Rel(root, sub)
		d := &configgraph.Discovery{}
		g, err := configgraph.Load(d, sub, nil, false)
		if err != nil {
			continue
		}
		for _, spec := range g.Tasks() {
			spec.Name = task.MonorepoName(pkgPath, spec.Name)
			out = append(out, spec)
		}
	}
	return out, nil
}
