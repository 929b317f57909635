//go:build e2e

package e2e

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	. "github.com/onsi/ginkgo/v2"
)

// executor runs rung commands against an isolated environment. rung has no
// container/registry install target the way tomei did, so only a native
// (temp-HOME, binary-on-disk) mode exists.
type executor interface {
	Exec(name string, args ...string) (string, error)
	ExecIn(dir, name string, args ...string) (string, error)
	ExecBash(script string) (string, error)
	Setup() error
	Cleanup() error
	Setenv(key, value string)
	Getenv(key string) string
	Home() string
	ProjectDir(name string) (string, error)
}

// nativeExecutor runs the built rung binary directly, with a temporary
// $HOME isolating each suite run's config/data/cache/state directories.
type nativeExecutor struct {
	testHome   string
	rungBinary string
	envVars    map[string]string
}

func (e *nativeExecutor) Exec(name string, args ...string) (string, error) {
	return e.ExecIn(e.testHome, name, args...)
}

func (e *nativeExecutor) ExecIn(dir, name string, args ...string) (string, error) {
	var cmd *exec.Cmd
	if name == "rung" {
		cmd = exec.Command(e.rungBinary, args...)
	} else {
		cmd = exec.Command(name, args...)
	}
	cmd.Env = e.buildEnv()
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	if name == "rung" {
		fmt.Fprintf(GinkgoWriter, "$ (%s) rung %v\n%s", dir, args, output)
		if err != nil {
			fmt.Fprintf(GinkgoWriter, "error: %v\n", err)
		}
	}
	return string(output), err
}

func (e *nativeExecutor) ExecBash(script string) (string, error) {
	script = strings.ReplaceAll(script, "~/", e.testHome+"/")
	script = strings.ReplaceAll(script, "$HOME", e.testHome)

	cmd := exec.Command("bash", "-c", script)
	cmd.Env = e.buildEnv()
	cmd.Dir = e.testHome
	output, err := cmd.CombinedOutput()
	return string(output), err
}

func (e *nativeExecutor) buildEnv() []string {
	env := append(os.Environ(), "HOME="+e.testHome)
	for k, v := range e.envVars {
		env = append(env, k+"="+v)
	}
	return env
}

func (e *nativeExecutor) Setup() error {
	var err error
	e.testHome, err = os.MkdirTemp("", "rung-e2e-")
	if err != nil {
		return fmt.Errorf("failed to create temp home: %w", err)
	}
	return nil
}

func (e *nativeExecutor) Cleanup() error {
	if e.testHome != "" {
		return os.RemoveAll(e.testHome)
	}
	return nil
}

func (e *nativeExecutor) Setenv(key, value string) {
	if e.envVars == nil {
		e.envVars = make(map[string]string)
	}
	e.envVars[key] = value
}

func (e *nativeExecutor) Getenv(key string) string {
	if e.envVars == nil {
		return ""
	}
	return e.envVars[key]
}

func (e *nativeExecutor) Home() string { return e.testHome }

// ProjectDir creates (if needed) and returns an isolated project directory
// for one scenario, so sibling scenarios' mise.toml files never collide.
func (e *nativeExecutor) ProjectDir(name string) (string, error) {
	dir := filepath.Join(e.testHome, "projects", name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// buildRungBinary compiles cmd/rung into a temp directory and returns the
// resulting binary's path.
func buildRungBinary() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to locate e2e package directory")
	}
	moduleRoot := filepath.Dir(filepath.Dir(filename))

	out := filepath.Join(os.TempDir(), fmt.Sprintf("rung-e2e-bin-%d", os.Getpid()))
	cmd := exec.Command("go", "build", "-o", out, "./cmd/rung")
	cmd.Dir = moduleRoot
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("failed to build rung binary: %w\n%s", err, output)
	}
	return out, nil
}

// newExecutor resolves which rung binary to drive.
//
// Environment variables:
//   - RUNG_E2E_BINARY: path to a pre-built rung binary. When unset, the
//     binary is built on the fly from this checkout via `go build`.
func newExecutor() (executor, error) {
	binary := os.Getenv("RUNG_E2E_BINARY")
	if binary == "" {
		built, err := buildRungBinary()
		if err != nil {
			return nil, err
		}
		binary = built
	}
	return &nativeExecutor{rungBinary: binary}, nil
}

var testExec executor
