// Package configfile implements the three ConfigFile loader shapes (§4.2,
// §6.1): structured TOML, flat .tool-versions, and idiomatic per-tool
// version files. All three flatten into the common ConfigFile capability
// (§3.5) so the config graph (configgraph) never needs to know which shape
// produced a given file.
package configfile

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/rungtool/rung/internal/rerrors"
	"github.com/rungtool/rung/internal/toolset"
)

// EnvDirectiveKind enumerates the EnvDirective sum type (§3.7).
type EnvDirectiveKind string

const (
	EnvVal        EnvDirectiveKind = "val"
	EnvRm         EnvDirectiveKind = "rm"
	EnvPath       EnvDirectiveKind = "path"
	EnvFile       EnvDirectiveKind = "file"
	EnvSource     EnvDirectiveKind = "source"
	EnvPythonVenv EnvDirectiveKind = "python_venv"
	EnvModule     EnvDirectiveKind = "module"
)

// EnvDirective is one ordered entry of a config file's [env] table (§3.7).
type EnvDirective struct {
	Kind  EnvDirectiveKind
	Key   string // Val, Rm, Module
	Value string // Val, Path, File, Source path

	// PythonVenv fields.
	VenvPath         string
	VenvCreate       bool
	VenvPython       string
	UVCreateArgs     []string
	PythonCreateArgs []string
}

// RunEntry is one step of a Task's run list: exactly one field is set.
type RunEntryKind string

const (
	RunScript     RunEntryKind = "script"
	RunSingleTask RunEntryKind = "single_task"
	RunTaskGroup  RunEntryKind = "task_group"
)

type RunEntry struct {
	Kind   RunEntryKind
	Script string
	Task   string
	Tasks  []string
}

// TaskSpec is the raw, not-yet-merged task definition as read from a config
// file (§3.8). Template inheritance (extends) and rendering happen later in
// package task.
type TaskSpec struct {
	Name         string
	DisplayName  string
	Aliases      []string
	Description  string
	ConfigSource string
	ConfigRoot   string
	Depends      []string
	DependsPost  []string
	WaitFor      []string
	Env          map[string]string
	Tools        map[string]string
	Dir          string
	Hide         bool
	Raw          bool
	Quiet        bool
	Silent       string
	Sources      []string
	Outputs      []string
	Shell        string
	Run          []RunEntry
	RunWindows   []RunEntry
	File         string
	Timeout      string
	Extends      []string
}

// Hook is one entry of a config file's [hooks] table (§4.11).
type Hook struct {
	Kind   string // enter, leave, cd, preinstall, postinstall
	Root   string
	Script string
	Shell  string
}

// ConfigFile is the capability contract every loaded shape exposes (§3.5).
type ConfigFile struct {
	Path        string
	ConfigRoot  string
	ProjectRoot string

	MinVersion string
	ToolReqs   []toolset.ToolRequest
	Env        []EnvDirective
	EnvFile    string
	Vars       map[string]string
	Tasks      []TaskSpec
	Templates  map[string]TaskSpec
	TaskConfig TaskConfigSection
	Alias      map[string]map[string]string // backend -> alias -> version
	Plugins    map[string]string
	Settings   map[string]any
	WatchFiles []string
	Hooks      []Hook
	Redactions []string

	ExperimentalMonorepoRoot bool
}

// TaskConfigSection mirrors the task_config TOML table (§4.2, §4.7).
type TaskConfigSection struct {
	Includes []string
	Dir      string
}

var defaultTaskIncludes = []string{"mise-tasks", ".mise-tasks", ".mise/tasks", ".config/mise/tasks", "mise/tasks"}

// structuredDoc mirrors the raw TOML document shape (§6.1.1). Fields use
// `any` where the value may be scalar, array, or inline table, matching
// mise's permissive tool-entry grammar.
type structuredDoc struct {
	MinVersion  string                    `toml:"min_version"`
	Env         map[string]any            `toml:"env"`
	EnvFile     string                    `toml:"env_file"`
	Vars        map[string]string         `toml:"vars"`
	Tools       map[string]any            `toml:"tools"`
	Tasks       map[string]any            `toml:"tasks"`
	TaskTemplates map[string]any          `toml:"task_templates"`
	TaskConfig  *rawTaskConfig            `toml:"task_config"`
	Alias       map[string]map[string]string `toml:"alias"`
	Plugins     map[string]string         `toml:"plugins"`
	Settings    map[string]any            `toml:"settings"`
	WatchFiles  []string                  `toml:"watch_files"`
	Hooks       map[string]any            `toml:"hooks"`
	Redactions  []string                  `toml:"redactions"`

	ExperimentalMonorepoRoot bool `toml:"experimental_monorepo_root"`
}

type rawTaskConfig struct {
	Includes []string `toml:"includes"`
	Dir      string   `toml:"dir"`
}

var knownTopLevelKeys = map[string]bool{
	"min_version": true, "env": true, "env_file": true, "vars": true,
	"tools": true, "tasks": true, "task_templates": true, "task_config": true,
	"alias": true, "plugins": true, "settings": true, "watch_files": true,
	"hooks": true, "redactions": true, "experimental_monorepo_root": true,
}

// LoadStructured parses a structured TOML config file (shape 1, §4.2,
// §6.1.1). Unknown top-level keys are a hard ConfigParse error.
func LoadStructured(path string) (*ConfigFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, rerrors.Wrap(rerrors.KindIoError, "failed to read config file", err).WithDetail("path", path)
	}

	if err := checkUnknownKeys(raw, path); err != nil {
		return nil, err
	}

	var doc structuredDoc
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return nil, rerrors.Wrap(rerrors.KindConfigParse, "failed to parse TOML", err).WithDetail("path", path)
	}

	root := filepath.Dir(path)
	cf := &ConfigFile{
		Path:                     path,
		ConfigRoot:               root,
		MinVersion:               doc.MinVersion,
		EnvFile:                  doc.EnvFile,
		Vars:                     doc.Vars,
		Alias:                    doc.Alias,
		Plugins:                  doc.Plugins,
		Settings:                 doc.Settings,
		WatchFiles:               doc.WatchFiles,
		Redactions:               doc.Redactions,
		ExperimentalMonorepoRoot: doc.ExperimentalMonorepoRoot,
		Templates:                map[string]TaskSpec{},
	}

	cf.TaskConfig = TaskConfigSection{Includes: defaultTaskIncludes}
	if doc.TaskConfig != nil {
		if len(doc.TaskConfig.Includes) > 0 {
			cf.TaskConfig.Includes = doc.TaskConfig.Includes
		}
		cf.TaskConfig.Dir = doc.TaskConfig.Dir
	}

	reqs, err := parseToolsTable(doc.Tools, path)
	if err != nil {
		return nil, err
	}
	cf.ToolReqs = reqs

	cf.Env, err = parseEnvTable(doc.Env)
	if err != nil {
		return nil, rerrors.Wrap(rerrors.KindConfigParse, "failed to parse [env]", err).WithDetail("path", path)
	}
	if doc.EnvFile != "" {
		cf.Env = append([]EnvDirective{{Kind: EnvFile, Value: doc.EnvFile}}, cf.Env...)
	}

	for name, raw := range doc.Tasks {
		ts, err := parseTaskEntry(name, raw, path, root)
		if err != nil {
			return nil, err
		}
		cf.Tasks = append(cf.Tasks, ts)
	}
	sort.Slice(cf.Tasks, func(i, j int) bool { return cf.Tasks[i].Name < cf.Tasks[j].Name })

	for name, raw := range doc.TaskTemplates {
		ts, err := parseTaskEntry(name, raw, path, root)
		if err != nil {
			return nil, err
		}
		cf.Templates[name] = ts
	}

	cf.Hooks, err = parseHooksTable(doc.Hooks)
	if err != nil {
		return nil, err
	}

	return cf, nil
}

func checkUnknownKeys(raw []byte, path string) error {
	var generic map[string]any
	if err := toml.Unmarshal(raw, &generic); err != nil {
		return rerrors.Wrap(rerrors.KindConfigParse, "failed to parse TOML", err).WithDetail("path", path)
	}
	for k := range generic {
		if !knownTopLevelKeys[k] {
			return rerrors.New(rerrors.KindConfigParse, fmt.Sprintf("unknown config key %q", k)).
				WithDetail("path", path).WithDetail("key", k)
		}
	}
	return nil
}

func parseToolsTable(tools map[string]any, path string) ([]toolset.ToolRequest, error) {
	var out []toolset.ToolRequest
	src := toolset.ToolSource{Kind: "config", Path: path}

	names := make([]string, 0, len(tools))
	for k := range tools {
		names = append(names, k)
	}
	sort.Strings(names)

	for _, name := range names {
		backend := toolset.ParseBackendArg(name)
		reqs, err := parseToolValue(backend, tools[name], src)
		if err != nil {
			return nil, rerrors.Wrap(rerrors.KindConfigParse, fmt.Sprintf("invalid tool entry %q", name), err).WithDetail("path", path)
		}
		out = append(out, reqs...)
	}
	return out, nil
}

func parseToolValue(backend toolset.BackendArg, v any, src toolset.ToolSource) ([]toolset.ToolRequest, error) {
	switch val := v.(type) {
	case string:
		r, err := parseScalarRequest(backend, val, src, nil)
		if err != nil {
			return nil, err
		}
		return []toolset.ToolRequest{r}, nil
	case []any:
		var out []toolset.ToolRequest
		for _, item := range val {
			reqs, err := parseToolValue(backend, item, src)
			if err != nil {
				return nil, err
			}
			out = append(out, reqs...)
		}
		return out, nil
	case map[string]any:
		opts := map[string]string{}
		for k, ov := range val {
			if s, ok := ov.(string); ok {
				opts[k] = s
			}
		}
		for _, key := range []string{"path", "prefix", "ref", "version"} {
			if s, ok := val[key].(string); ok {
				r, err := parseScalarRequest(backend, valueWithPrefix(key, s), src, opts)
				if err != nil {
					return nil, err
				}
				return []toolset.ToolRequest{r}, nil
			}
		}
		return nil, fmt.Errorf("inline tool table must set version, path, prefix, or ref")
	default:
		return nil, fmt.Errorf("unsupported tool value type %T", v)
	}
}

func valueWithPrefix(key, val string) string {
	if key == "version" {
		return val
	}
	return key + ":" + val
}

// parseScalarRequest parses one of the scalar forms in §6.1.1: "1.2.3",
// "latest", "prefix:1", "ref:main", "path:/abs", "sub-1:20", "system".
func parseScalarRequest(backend toolset.BackendArg, val string, src toolset.ToolSource, opts map[string]string) (toolset.ToolRequest, error) {
	base := toolset.ToolRequest{Backend: backend, Source: src, Options: opts}

	if val == "system" {
		base.Kind = toolset.RequestSystem
		return base, nil
	}
	if after, ok := cut(val, "path:"); ok {
		base.Kind = toolset.RequestPath
		base.Path = after
		return base, nil
	}
	if after, ok := cut(val, "prefix:"); ok {
		base.Kind = toolset.RequestPrefix
		base.Prefix = after
		return base, nil
	}
	for _, kind := range []toolset.RefKind{toolset.RefRef, toolset.RefTag, toolset.RefBranch, toolset.RefRev} {
		if after, ok := cut(val, string(kind)+":"); ok {
			base.Kind = toolset.RequestRef
			base.RefKind = kind
			base.RefValue = after
			return base, nil
		}
	}
	if strings.HasPrefix(val, "sub-") {
		rest := strings.TrimPrefix(val, "sub-")
		n, after, ok := cutColon(rest)
		if !ok {
			return base, fmt.Errorf("invalid sub request %q", val)
		}
		base.Kind = toolset.RequestSub
		base.Sub = "sub-" + n
		base.SubOrig = after
		return base, nil
	}

	base.Kind = toolset.RequestVersion
	base.Version = val
	return base, nil
}

func cut(s, prefix string) (string, bool) {
	if strings.HasPrefix(s, prefix) {
		return s[len(prefix):], true
	}
	return "", false
}

func cutColon(s string) (before, after string, ok bool) {
	i := strings.Index(s, ":")
	if i < 0 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}

func parseEnvTable(env map[string]any) ([]EnvDirective, error) {
	var out []EnvDirective
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := env[k]
		if k == "_" {
			dirs, err := parseUnderscoreDirectives(v)
			if err != nil {
				return nil, err
			}
			out = append(out, dirs...)
			continue
		}
		switch val := v.(type) {
		case bool:
			if !val {
				out = append(out, EnvDirective{Kind: EnvRm, Key: k})
			}
		case string:
			out = append(out, EnvDirective{Kind: EnvVal, Key: k, Value: val})
		case int64:
			out = append(out, EnvDirective{Kind: EnvVal, Key: k, Value: strconv.FormatInt(val, 10)})
		default:
			out = append(out, EnvDirective{Kind: EnvVal, Key: k, Value: fmt.Sprintf("%v", val)})
		}
	}
	return out, nil
}

func parseUnderscoreDirectives(v any) ([]EnvDirective, error) {
	table, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("_ must be a table")
	}
	var out []EnvDirective
	for _, k := range []string{"path", "file", "source"} {
		raw, ok := table[k]
		if !ok {
			continue
		}
		kind := map[string]EnvDirectiveKind{"path": EnvPath, "file": EnvFile, "source": EnvSource}[k]
		switch val := raw.(type) {
		case string:
			out = append(out, EnvDirective{Kind: kind, Value: val})
		case []any:
			for _, item := range val {
				if s, ok := item.(string); ok {
					out = append(out, EnvDirective{Kind: kind, Value: s})
				}
			}
		}
	}
	if pv, ok := table["python"].(map[string]any); ok {
		if venv, ok := pv["venv"].(map[string]any); ok {
			d := EnvDirective{Kind: EnvPythonVenv}
			if s, ok := venv["path"].(string); ok {
				d.VenvPath = s
			}
			if b, ok := venv["create"].(bool); ok {
				d.VenvCreate = b
			}
			if s, ok := venv["python"].(string); ok {
				d.VenvPython = s
			}
			out = append(out, d)
		}
	}
	return out, nil
}

func parseTaskEntry(name string, raw any, path, root string) (TaskSpec, error) {
	ts := TaskSpec{Name: name, ConfigSource: path, ConfigRoot: root}
	table, ok := raw.(map[string]any)
	if !ok {
		if s, ok := raw.(string); ok {
			ts.Run = []RunEntry{{Kind: RunScript, Script: s}}
			return ts, nil
		}
		return ts, fmt.Errorf("task %q must be a string or table", name)
	}

	if s, ok := table["description"].(string); ok {
		ts.Description = s
	}
	if s, ok := table["dir"].(string); ok {
		ts.Dir = s
	}
	if s, ok := table["shell"].(string); ok {
		ts.Shell = s
	}
	if s, ok := table["file"].(string); ok {
		ts.File = s
	}
	if s, ok := table["timeout"].(string); ok {
		ts.Timeout = s
	}
	if b, ok := table["hide"].(bool); ok {
		ts.Hide = b
	}
	if b, ok := table["raw"].(bool); ok {
		ts.Raw = b
	}
	if b, ok := table["quiet"].(bool); ok {
		ts.Quiet = b
	}
	ts.Depends = stringSlice(table["depends"])
	ts.DependsPost = stringSlice(table["depends_post"])
	ts.WaitFor = stringSlice(table["wait_for"])
	ts.Aliases = stringSlice(table["alias"])
	ts.Sources = stringSlice(table["sources"])
	ts.Outputs = stringSlice(table["outputs"])
	ts.Extends = stringSlice(table["extends"])

	if envT, ok := table["env"].(map[string]any); ok {
		ts.Env = map[string]string{}
		for k, v := range envT {
			if s, ok := v.(string); ok {
				ts.Env[k] = s
			}
		}
	}
	if toolsT, ok := table["tools"].(map[string]any); ok {
		ts.Tools = map[string]string{}
		for k, v := range toolsT {
			if s, ok := v.(string); ok {
				ts.Tools[k] = s
			}
		}
	}

	ts.Run = parseRunField(table["run"])
	ts.RunWindows = parseRunField(table["run_windows"])
	if len(ts.Run) == 0 {
		if s, ok := table["run"].(string); ok {
			ts.Run = []RunEntry{{Kind: RunScript, Script: s}}
		}
	}

	return ts, nil
}

func parseRunField(v any) []RunEntry {
	switch val := v.(type) {
	case string:
		return []RunEntry{{Kind: RunScript, Script: val}}
	case []any:
		var out []RunEntry
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, RunEntry{Kind: RunScript, Script: s})
			}
		}
		return out
	default:
		return nil
	}
}

func stringSlice(v any) []string {
	switch val := v.(type) {
	case string:
		return []string{val}
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func parseHooksTable(hooks map[string]any) ([]Hook, error) {
	var out []Hook
	for kind, raw := range hooks {
		switch val := raw.(type) {
		case string:
			out = append(out, Hook{Kind: kind, Script: val})
		case map[string]any:
			h := Hook{Kind: kind}
			if s, ok := val["script"].(string); ok {
				h.Script = s
			}
			if s, ok := val["shell"].(string); ok {
				h.Shell = s
			}
			if s, ok := val["root"].(string); ok {
				h.Root = s
			}
			out = append(out, h)
		}
	}
	return out, nil
}

// LoadToolVersions parses a flat .tool-versions file (shape 2, §4.2,
// §6.1.2): lines of "<short> <version> [<version>...]", with '#' comments.
func LoadToolVersions(path string) (*ConfigFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, rerrors.Wrap(rerrors.KindIoError, "failed to read .tool-versions", err).WithDetail("path", path)
	}
	defer f.Close()

	root := filepath.Dir(path)
	cf := &ConfigFile{Path: path, ConfigRoot: root, Templates: map[string]TaskSpec{}}
	src := toolset.ToolSource{Kind: "config", Path: path}

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, rerrors.New(rerrors.KindConfigParse, fmt.Sprintf("malformed .tool-versions line %d", lineNo)).WithDetail("path", path)
		}
		backend := toolset.ParseBackendArg(fields[0])
		for _, v := range fields[1:] {
			req, err := parseScalarRequest(backend, v, src, nil)
			if err != nil {
				return nil, rerrors.Wrap(rerrors.KindConfigParse, fmt.Sprintf("invalid version on line %d", lineNo), err).WithDetail("path", path)
			}
			cf.ToolReqs = append(cf.ToolReqs, req)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, rerrors.Wrap(rerrors.KindIoError, "failed to scan .tool-versions", err).WithDetail("path", path)
	}
	return cf, nil
}

// IdiomaticParser parses a single idiomatic per-tool file (shape 3, §4.2)
// into one version string for a fixed backend. Kept as a function value so
// each idiomatic filename can supply its own trivial grammar.
type IdiomaticParser func(content []byte) (string, error)

// IdiomaticFiles maps a recognised idiomatic filename to its backend short
// name and parser. Grounded on the handful of per-ecosystem version files
// mise reads natively.
var IdiomaticFiles = map[string]struct {
	Backend string
	Parse   IdiomaticParser
}{
	".nvmrc":             {"node", parseFirstLine},
	".node-version":      {"node", parseFirstLine},
	".python-version":    {"python", parseFirstLine},
	".ruby-version":      {"ruby", parseFirstLine},
	".terraform-version": {"terraform", parseFirstLine},
	".go-version":        {"go", parseFirstLine},
	"rust-toolchain.toml": {"rust", parseRustToolchain},
}

func parseFirstLine(content []byte) (string, error) {
	scanner := bufio.NewScanner(strings.NewReader(string(content)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		line = strings.TrimPrefix(line, "v")
		if line != "" {
			return line, nil
		}
	}
	return "", fmt.Errorf("idiomatic file is empty")
}

func parseRustToolchain(content []byte) (string, error) {
	var doc struct {
		Toolchain struct {
			Channel string `toml:"channel"`
		} `toml:"toolchain"`
	}
	if err := toml.Unmarshal(content, &doc); err != nil {
		return "", err
	}
	if doc.Toolchain.Channel == "" {
		return "", fmt.Errorf("rust-toolchain.toml missing toolchain.channel")
	}
	return doc.Toolchain.Channel, nil
}

// LoadIdiomatic loads an idiomatic version file (shape 3) using the parser
// registered in IdiomaticFiles for filepath.Base(path).
func LoadIdiomatic(path string) (*ConfigFile, error) {
	def, ok := IdiomaticFiles[filepath.Base(path)]
	if !ok {
		return nil, fmt.Errorf("no idiomatic parser registered for %s", filepath.Base(path))
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, rerrors.Wrap(rerrors.KindIoError, "failed to read idiomatic version file", err).WithDetail("path", path)
	}
	version, err := def.Parse(content)
	if err != nil {
		return nil, rerrors.Wrap(rerrors.KindConfigParse, "failed to parse idiomatic version file", err).WithDetail("path", path)
	}

	root := filepath.Dir(path)
	backend := toolset.ParseBackendArg(def.Backend)
	src := toolset.ToolSource{Kind: "idiomatic", Path: path}
	req, err := parseScalarRequest(backend, version, src, nil)
	if err != nil {
		return nil, rerrors.Wrap(rerrors.KindConfigParse, "invalid version in idiomatic file", err).WithDetail("path", path)
	}

	return &ConfigFile{
		Path:       path,
		ConfigRoot: root,
		ToolReqs:   []toolset.ToolRequest{req},
		Templates:  map[string]TaskSpec{},
	}, nil
}

// Load loads path using the shape appropriate to its filename.
func Load(path string) (*ConfigFile, error) {
	base := filepath.Base(path)
	if base == ".tool-versions" {
		return LoadToolVersions(path)
	}
	if _, ok := IdiomaticFiles[base]; ok {
		return LoadIdiomatic(path)
	}
	return LoadStructured(path)
}
