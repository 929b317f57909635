// Package hooks implements the hook dispatcher (component O, §4.11):
// comparing the previous and current working directory on every shell
// prompt redraw to decide which enter/leave/cd hooks fire, plus the
// preinstall/postinstall hooks fired around tool installs.
package hooks

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rungtool/rung/internal/configfile"
	"github.com/rungtool/rung/internal/rerrors"
)

// Kind mirrors configfile.Hook.Kind's five values (§4.11).
const (
	KindEnter       = "enter"
	KindLeave       = "leave"
	KindCD          = "cd"
	KindPreinstall  = "preinstall"
	KindPostinstall = "postinstall"
)

// Transition describes a directory change the dispatcher should react to.
type Transition struct {
	PreviousDir string
	CurrentDir  string
}

// under reports whether dir is root or a descendant of root.
func under(dir, root string) bool {
	if root == "" {
		return false
	}
	dir = strings.TrimRight(dir, "/")
	root = strings.TrimRight(root, "/")
	return dir == root || strings.HasPrefix(dir, root+"/")
}

// Fired returns the hooks that should fire for this Transition, in
// declaration order (§4.11):
//   - enter(root) iff new dir is under root and old dir was not.
//   - leave(root) iff old dir was under root and new is not.
//   - cd(root) on any movement within root.
func Fired(hooks []configfile.Hook, t Transition) []configfile.Hook {
	var out []configfile.Hook
	for _, h := range hooks {
		switch h.Kind {
		case KindEnter:
			if under(t.CurrentDir, h.Root) && !under(t.PreviousDir, h.Root) {
				out = append(out, h)
			}
		case KindCD:
			if under(t.CurrentDir, h.Root) {
				out = append(out, h)
			}
		case KindLeave:
			if under(t.PreviousDir, h.Root) && !under(t.CurrentDir, h.Root) {
				out = append(out, h)
			}
		}
	}
	return out
}

// Env builds the MISE_PROJECT_ROOT / MISE_ORIGINAL_CWD / MISE_PREVIOUS_DIR
// triple a non-shell hook is run with (§4.11).
func Env(h configfile.Hook, t Transition) map[string]string {
	return map[string]string{
		"MISE_PROJECT_ROOT": h.Root,
		"MISE_ORIGINAL_CWD": t.CurrentDir,
		"MISE_PREVIOUS_DIR": t.PreviousDir,
	}
}

// Dispatch runs every hook in hooks that Fired selects for t. Hooks with a
// non-empty Shell field have their Script returned for shell-eval instead
// of being executed directly (§4.11: "Hooks with a shell field print their
// script for shell-eval; others are executed as child processes").
func Dispatch(ctx context.Context, hooks []configfile.Hook, t Transition) (shellEval []string, err error) {
	for _, h := range Fired(hooks, t) {
		if h.Shell != "" {
			shellEval = append(shellEval, h.Script)
			continue
		}
		if err := run(ctx, h, t); err != nil {
			return shellEval, err
		}
	}
	return shellEval, nil
}

func run(ctx context.Context, h configfile.Hook, t Transition) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", h.Script)
	cmd.Dir = h.Root
	env := Env(h, t)
	cmd.Env = append(cmd.Env, envSlice(env)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return rerrors.Wrap(rerrors.KindTaskExit, "hook command failed", err).
			WithDetail("kind", h.Kind).WithDetail("output", string(out))
	}
	return nil
}

func envSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	return out
}

// DispatchInstall runs every preinstall/postinstall hook for the given
// kind, unconditionally (they aren't gated by directory transitions).
func DispatchInstall(ctx context.Context, hooks []configfile.Hook, kind string, root string) error {
	for _, h := range hooks {
		if h.Kind != kind {
			continue
		}
		t := Transition{CurrentDir: root, PreviousDir: root}
		if h.Shell != "" {
			continue // install hooks have no interactive shell to eval into
		}
		if err := run(ctx, h, t); err != nil {
			return err
		}
	}
	return nil
}
