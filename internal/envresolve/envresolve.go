// Package envresolve implements the env directive resolver (component F,
// §4.4): given the config graph's ordered EnvDirective list, it produces
// the final environment, PATH additions, and redactions.
package envresolve

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rungtool/rung/internal/configfile"
	"github.com/rungtool/rung/internal/configgraph"
	"github.com/rungtool/rung/internal/shellexec"
	"github.com/rungtool/rung/internal/template"
	"github.com/rungtool/rung/internal/trust"
)

// ToolsPhase selects which pass of the two-pass resolution lifecycle is
// running (§4.4 closing paragraph).
type ToolsPhase string

const (
	// PreToolsOnly runs before tool resolution, so env vars needed to
	// install tools are available.
	PreToolsOnly ToolsPhase = "pre_tools_only"
	// Both runs after tool resolution, so env vars referencing resolved
	// tool versions (tool_versions.X) work.
	Both ToolsPhase = "both"
)

// EnvResults is the resolver's output (§4.4).
type EnvResults struct {
	Env          map[string]string
	EnvRemove    map[string]bool
	EnvPaths     []string // ordered, from _.path directives
	ToolAddPaths []string // backend-declared extra dirs, populated by callers in the Both phase
	Redactions   []string
}

// Options configures a single resolve call.
type Options struct {
	ConfigRoot   string
	Cwd          string
	BaseEnv      map[string]string
	ToolVersions map[string]string // only populated meaningfully in the Both phase
	Phase        ToolsPhase
	Strict       bool

	// Trust is consulted before reading _.file targets and before running
	// _.source (§4.4, §4.1).
	Trust       *trust.Store
	ProjectRoot string

	// Shell runs "source" directive scripts; defaults to sh -c.
	Shell *shellexec.Executor

	// Warn receives missing-var-reference warnings (§4.4's "warned, not
	// errored" rule).
	Warn func(msg string)
}

// Resolve evaluates entries in order against opts.BaseEnv, producing the
// final EnvResults (§4.4). Template expansion sees the environment as
// modified so far by earlier directives in the same run.
func Resolve(entries []configgraph.EnvEntry, opts Options) (*EnvResults, error) {
	env := map[string]string{}
	for k, v := range opts.BaseEnv {
		env[k] = v
	}
	res := &EnvResults{Env: env, EnvRemove: map[string]bool{}}

	warn := opts.Warn
	if warn == nil {
		warn = func(string) {}
	}

	for _, e := range entries {
		d := e.Directive
		ctx := template.Context{ConfigRoot: e.Root, Cwd: opts.Cwd, Env: env, ToolVersions: opts.ToolVersions}

		switch d.Kind {
		case configfile.EnvVal:
			rendered, err := renderValue(d.Value, ctx, opts.Strict, e.Origin, warn)
			if err != nil {
				return nil, err
			}
			env[d.Key] = rendered
			delete(res.EnvRemove, d.Key)

		case configfile.EnvRm:
			delete(env, d.Key)
			res.EnvRemove[d.Key] = true

		case configfile.EnvPath:
			rendered, err := renderValue(d.Value, ctx, opts.Strict, e.Origin, warn)
			if err != nil {
				return nil, err
			}
			res.EnvPaths = append(res.EnvPaths, normalize(e.Root, rendered))

		case configfile.EnvFile:
			if err := applyEnvFile(e.Root, d.Value, opts, env, warn); err != nil {
				return nil, err
			}

		case configfile.EnvSource:
			if opts.Phase != Both {
				continue
			}
			if err := applySource(e.Root, d.Value, opts, env); err != nil {
				return nil, err
			}

		case configfile.EnvPythonVenv:
			if opts.Phase != Both {
				continue
			}
			if err := applyPythonVenv(e.Root, d, res, env); err != nil {
				return nil, err
			}

		case configfile.EnvModule:
			warn(fmt.Sprintf("module env directive %q not evaluated by this backend surface", d.Key))
		}
	}

	res.Env = env
	return res, nil
}

func renderValue(raw string, ctx template.Context, strict bool, origin string, warn func(string)) (string, error) {
	if !template.HasTemplate(raw) {
		return raw, nil
	}
	return template.Render(raw, ctx, strict, func(key string) {
		warn(fmt.Sprintf("%s: undefined reference %q", origin, key))
	})
}

func normalize(root, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Clean(filepath.Join(root, p))
}

func applyEnvFile(root, rel string, opts Options, env map[string]string, warn func(string)) error {
	path := normalize(root, rel)
	if opts.Trust != nil {
		if err := opts.Trust.TrustCheck(path, opts.ProjectRoot); err != nil {
			return err
		}
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			warn(fmt.Sprintf("env file %s not found", path))
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		v = strings.Trim(strings.TrimSpace(v), `"'`)
		env[k] = v
	}
	return scanner.Err()
}

func applySource(root, rel string, opts Options, env map[string]string) error {
	path := normalize(root, rel)
	if opts.Trust != nil {
		if err := opts.Trust.TrustCheck(path, opts.ProjectRoot); err != nil {
			return err
		}
	}
	executor := opts.Shell
	if executor == nil {
		executor = shellexec.NewExecutor(root)
	}

	// Diff-capture: source the file then dump the environment, so only the
	// vars it actually exported get merged in (§4.4).
	script := fmt.Sprintf(". %q && env -0", path)
	out, err := executor.ExecuteCapture(context.Background(), []string{script}, shellexec.Vars{}, env)
	if err != nil {
		return fmt.Errorf("env._.source %s: %w", path, err)
	}
	for _, kv := range strings.Split(out, "\x00") {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			env[k] = v
		}
	}
	return nil
}

func applyPythonVenv(root string, d configfile.EnvDirective, res *EnvResults, env map[string]string) error {
	venvDir := d.VenvPath
	if venvDir == "" {
		venvDir = ".venv"
	}
	venvDir = normalize(root, venvDir)

	if _, err := os.Stat(venvDir); os.IsNotExist(err) {
		if !d.VenvCreate {
			return nil
		}
		if err := createVenv(venvDir, d.VenvPython); err != nil {
			return err
		}
	}

	res.ToolAddPaths = append(res.ToolAddPaths, filepath.Join(venvDir, "bin"))
	env["VIRTUAL_ENV"] = venvDir
	return nil
}

func createVenv(venvDir, pythonBin string) error {
	if _, err := exec.LookPath("uv"); err == nil {
		cmd := exec.Command("uv", "venv", venvDir)
		return cmd.Run()
	}
	py := pythonBin
	if py == "" {
		py = "python3"
	}
	cmd := exec.Command(py, "-m", "venv", venvDir)
	return cmd.Run()
}
