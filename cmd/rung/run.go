package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rungtool/rung/internal/configgraph"
	"github.com/rungtool/rung/internal/depgraph"
	"github.com/rungtool/rung/internal/envresolve"
	"github.com/rungtool/rung/internal/outrouter"
	"github.com/rungtool/rung/internal/pathcompose"
	"github.com/rungtool/rung/internal/rerrors"
	"github.com/rungtool/rung/internal/scheduler"
	"github.com/rungtool/rung/internal/task"
	"github.com/rungtool/rung/internal/taskloader"
	"github.com/rungtool/rung/internal/tasklog"
	"github.com/rungtool/rung/internal/template"
)

var (
	runJobs            int
	runContinueOnError bool
	runOutputMode      string
	runTimeout         string
)

var runCmd = &cobra.Command{
	Use:   "run <task> [task...] [-- args...]",
	Short: "Run one or more tasks and their dependencies",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().IntVarP(&runJobs, "jobs", "j", 0, "Max concurrent tasks (defaults to settings)")
	runCmd.Flags().BoolVarP(&runContinueOnError, "continue-on-error", "c", false, "Keep running sibling tasks after a failure")
	runCmd.Flags().StringVarP(&runOutputMode, "output", "o", "", "Output mode (interleave, prefix, keep_order, replacing, quiet, silent)")
	runCmd.Flags().StringVar(&runTimeout, "timeout", "", "Default per-task timeout, e.g. 30s")
}

// cmdExitError carries a task's exit code out through cobra's error return
// so main can set the process exit status without re-printing the message.
type cmdExitError struct{ code int }

func (e cmdExitError) Error() string { return fmt.Sprintf("task exited with code %d", e.code) }

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cwd := cwdOrDie()

	rootNames, extraArgs := splitTaskArgs(cmd, args)
	if len(rootNames) == 0 {
		return rerrors.New(rerrors.KindMissingTaskReference, "no task name given")
	}

	graph, err := loadGraph(cwd)
	if err != nil {
		return fmt.Errorf("failed to load config graph: %w", err)
	}

	root, isMonorepo := monorepoRoot(graph)
	tasks, err := taskloader.Load(graph, taskloader.Options{
		ConfigRoot:      cwd,
		GitignoreAware:  true,
		IncludeMonorepo: isMonorepo,
	})
	if err != nil {
		return fmt.Errorf("failed to load tasks: %w", err)
	}

	if isMonorepo {
		rootNames = expandMonorepoShorthand(rootNames, root, cwd)
	}

	dg, err := depgraph.Build(rootNames, tasks)
	if err != nil {
		return fmt.Errorf("failed to build task graph: %w", err)
	}

	jobs := runJobs
	if jobs <= 0 {
		jobs = cfg.Jobs
	}

	mode := outrouter.Mode(runOutputMode)
	if mode == "" {
		if jobs == 1 || depgraph.IsLinear(dg) {
			mode = outrouter.ModeInterleave
		} else {
			mode = outrouter.ModePrefix
		}
	}
	router := outrouter.New(mode, cmd.OutOrStdout())
	router.Start()
	defer router.Stop()

	logStore := tasklog.NewStore(filepath.Join(cfg.Dirs.State, "task-logs"))

	defaultTimeout, _ := time.ParseDuration(runTimeout)

	summary, err := scheduler.Run(ctx, dg, scheduler.Options{
		Jobs:               jobs,
		ContinueOnError:    runContinueOnError,
		Router:             router,
		Build:              buildTaskContext(graph, tasks, cwd, rootNames, extraArgs),
		DefaultTaskTimeout: defaultTimeout,
		Log:                logStore,
	})
	if err != nil {
		return err
	}
	if summary.FirstError != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "rung:", summary.FirstError)
		return cmdExitError{code: summary.ExitCode}
	}
	return nil
}

// splitTaskArgs separates leading task names from trailing args meant for
// the root tasks (the "--" convention mise's CLI uses). cobra reports the
// index of a literal "--" via ArgsLenAtDash; everything before it is a task
// name, everything after is trailing args passed through to each root task.
// Without a "--", every arg is a task name and there are no trailing args —
// `rung run a b c` runs three independent root tasks.
func splitTaskArgs(cmd *cobra.Command, args []string) (roots []string, trailing []string) {
	if dash := cmd.ArgsLenAtDash(); dash >= 0 {
		return args[:dash], args[dash:]
	}
	return args, nil
}

// expandMonorepoShorthand rewrites a leading ":name" root task reference
// into its fully-qualified "//pkg/sub:name" form, package-relative to cwd
// (§3.8, §8 scenario S5: "from inside pkg/a, `mise run :build` is
// equivalent [to `mise run //pkg/a:build`]").
func expandMonorepoShorthand(names []string, monorepoRoot, cwd string) []string {
	pkgPath, err := filepath.Rel(monorepoRoot, cwd)
	if err != nil {
		return names
	}
	out := make([]string, len(names))
	for i, name := range names {
		if rest, ok := strings.CutPrefix(name, ":"); ok && pkgPath != "." {
			out[i] = task.MonorepoName(pkgPath, rest)
		} else {
			out[i] = name
		}
	}
	return out
}

// buildTaskContext closes over the already-loaded config graph and task
// table to produce a scheduler.TaskContextBuilder: per node it resolves the
// active toolset and env (the same two-pass pre/both lifecycle env.go
// uses), composes PATH, and renders the task's run scripts.
func buildTaskContext(graph *configgraph.Graph, tasks map[string]*task.Task, cwd string, rootNames, extraArgs []string) scheduler.TaskContextBuilder {
	rootSet := map[string]bool{}
	for _, n := range rootNames {
		rootSet[n] = true
	}

	return func(ctx context.Context, n *depgraph.Node) (*scheduler.RunnableTask, error) {
		t, ok := tasks[n.Name]
		if !ok {
			return nil, rerrors.NewMissingTaskReferenceError(n.Name, []string{n.Name})
		}

		dir := cwd
		if t.Spec.Dir != "" {
			dir = filepath.Join(cwd, t.Spec.Dir)
		}

		ts, err := resolveToolset(ctx, graph, true)
		if err != nil {
			return nil, err
		}

		trust := trustStore()
		pre, err := envresolve.Resolve(graph.EnvEntries(), envresolve.Options{
			ConfigRoot: cwd, Cwd: dir, BaseEnv: currentEnv(),
			Phase: envresolve.PreToolsOnly, Trust: trust, ProjectRoot: cwd,
		})
		if err != nil {
			return nil, err
		}

		toolVersions := map[string]string{}
		for _, b := range ts.Backends() {
			if tv, ok := ts.Primary(b); ok {
				toolVersions[b] = tv.Version
			}
		}
		final, err := envresolve.Resolve(graph.EnvEntries(), envresolve.Options{
			ConfigRoot: cwd, Cwd: dir, BaseEnv: pre.Env, ToolVersions: toolVersions,
			Phase: envresolve.Both, Trust: trust, ProjectRoot: cwd,
		})
		if err != nil {
			return nil, err
		}
		for k := range t.Spec.Env {
			final.Env[k] = t.Spec.Env[k]
		}

		pathDirs := pathcompose.Compose(pathcompose.Inputs{
			SystemPath:   splitPath(final.Env["PATH"]),
			EnvPaths:     final.EnvPaths,
			ToolAddPaths: final.ToolAddPaths,
			Toolset:      ts,
			ProjectRoot:  cwd,
		})
		final.Env["PATH"] = pathcompose.Join(pathDirs)

		tctx := template.Context{ConfigRoot: cwd, Cwd: dir, Env: final.Env, ToolVersions: toolVersions}
		scripts, err := t.RenderScripts(tctx, false, func(string) {})
		if err != nil {
			return nil, err
		}

		if rootSet[n.Name] {
			scripts = scheduler.ExpandArgs(scripts, len(t.UsageSpec) > 0, extraArgs)
		}

		silent := outrouter.SilentStreams{}
		switch t.Spec.Silent {
		case "stdout":
			silent.Stdout = true
		case "stderr":
			silent.Stderr = true
		case "true", "both":
			silent.Stdout, silent.Stderr = true, true
		}

		return &scheduler.RunnableTask{
			Node: n, Task: t, Scripts: scripts, Dir: dir, Env: final.Env, Silent: silent,
		}, nil
	}
}

func splitPath(p string) []string {
	if p == "" {
		return nil
	}
	return strings.Split(p, string(os.PathListSeparator))
}
