// Package scheduler implements the task scheduler (component M, §4.9): a
// bounded-concurrency executor that pumps leaves off a depgraph.Graph,
// builds each task's toolset and env, runs its script entries in order,
// and aggregates pass/fail results.
//
// The semaphore-bounded goroutine-per-node pattern is grounded directly on
// the teacher's internal/installer/engine.executeNodesParallel (a
// golang.org/x/sync/semaphore permit pool plus a WaitGroup collecting
// joined errors); this package generalizes it from DAG "layers" to the
// depgraph's reactive leaf stream.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/rungtool/rung/internal/depgraph"
	"github.com/rungtool/rung/internal/outrouter"
	"github.com/rungtool/rung/internal/rerrors"
	"github.com/rungtool/rung/internal/shellexec"
	"github.com/rungtool/rung/internal/task"
	"github.com/rungtool/rung/internal/tasklog"
)

// RunnableTask bundles a resolved Task with the pieces the scheduler needs
// to actually execute it; these are built per-task by TaskContextBuilder,
// deferring to the toolset resolver / env resolver that own that logic.
type RunnableTask struct {
	Node    *depgraph.Node
	Task    *task.Task
	Scripts []string // rendered run scripts, in execution order
	Dir     string
	Env     map[string]string
	Silent  outrouter.SilentStreams
}

// TaskContextBuilder resolves a depgraph node into a RunnableTask. Kept as
// an injected function so the scheduler doesn't itself depend on the
// toolset resolver or env resolver — those build the Env/Dir/Scripts this
// package only consumes.
type TaskContextBuilder func(ctx context.Context, n *depgraph.Node) (*RunnableTask, error)

// Options configures a scheduler Run.
type Options struct {
	Jobs               int
	ContinueOnError    bool
	Router             *outrouter.Router
	Build              TaskContextBuilder
	DefaultTaskTimeout time.Duration // zero means no default timeout
	Log                *tasklog.Store // nil disables failure-log persistence
}

// Result is one task's outcome.
type Result struct {
	TaskName string
	Err      error
	ExitCode int
}

// Summary is the scheduler's final report (§4.9 step 3: "emit failure
// summary and exit with the first failed task's status").
type Summary struct {
	Results    []Result
	FirstError error
	ExitCode   int
}

// Run drives graph to completion: subscribing to its leaf stream, running
// each ready task under a bounded semaphore, and propagating completion
// back into the graph so dependents become ready in turn (§4.9).
func Run(ctx context.Context, graph *depgraph.Graph, opts Options) (*Summary, error) {
	if opts.Jobs <= 0 {
		opts.Jobs = 1
	}
	sem := semaphore.NewWeighted(int64(opts.Jobs))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu      sync.Mutex
		results []Result
		wg      sync.WaitGroup
		failed  bool
	)

	leaves := graph.Subscribe()
	for n := range leaves {
		if runCtx.Err() != nil {
			break
		}
		mu.Lock()
		stop := failed && !opts.ContinueOnError
		mu.Unlock()
		if stop {
			break
		}

		if err := sem.Acquire(runCtx, 1); err != nil {
			break
		}

		wg.Add(1)
		go func(n *depgraph.Node) {
			defer wg.Done()
			defer sem.Release(1)
			defer graph.Complete(n.ID)

			res := runOne(runCtx, n, opts)

			mu.Lock()
			results = append(results, res)
			if res.Err != nil {
				failed = true
				if !opts.ContinueOnError {
					cancel()
				}
			}
			mu.Unlock()
		}(n)
	}
	wg.Wait()

	summary := &Summary{Results: results}
	for _, r := range results {
		if r.Err != nil && summary.FirstError == nil {
			summary.FirstError = r.Err
			summary.ExitCode = r.ExitCode
		}
	}
	if opts.Log != nil {
		_ = opts.Log.Flush()
	}
	return summary, nil
}

func runOne(ctx context.Context, n *depgraph.Node, opts Options) Result {
	if opts.Router != nil {
		opts.Router.TaskStarted(n.Name)
	}
	if opts.Log != nil {
		opts.Log.RecordStart(n.Name, n.Args)
	}

	rt, err := opts.Build(ctx, n)
	if err != nil {
		finish(opts, n, err, 1)
		return Result{TaskName: n.Name, Err: err, ExitCode: 1}
	}

	taskCtx := ctx
	var cancelTimeout context.CancelFunc
	if timeout, ok := parseTimeout(rt.Task.Spec.Timeout, opts.DefaultTaskTimeout); ok {
		taskCtx, cancelTimeout = context.WithTimeout(ctx, timeout)
		defer cancelTimeout()
	}

	executor := shellexec.NewExecutor(rt.Dir)
	for _, script := range rt.Scripts {
		cb := func(line string) {
			if opts.Router != nil {
				opts.Router.Line(n.Name, "stdout", line, rt.Silent)
			}
			if opts.Log != nil {
				opts.Log.RecordOutput(n.Name, n.Args, line)
			}
		}
		if err := executor.ExecuteWithOutput(taskCtx, []string{script}, shellexec.Vars{}, rt.Env, cb); err != nil {
			code := exitCode(err)
			wrapped := rerrors.Wrap(rerrors.KindTaskExit, fmt.Sprintf("task %q exited with an error", n.Name), err).
				WithDetail("task", n.Name).WithDetail("exit_code", fmt.Sprint(code))
			finish(opts, n, wrapped, code)
			return Result{TaskName: n.Name, Err: wrapped, ExitCode: code}
		}
	}

	finish(opts, n, nil, 0)
	return Result{TaskName: n.Name, ExitCode: 0}
}

func finish(opts Options, n *depgraph.Node, err error, exitCode int) {
	if opts.Router != nil {
		opts.Router.TaskFinished(n.Name, err != nil)
	}
	if opts.Log == nil {
		return
	}
	if err != nil {
		opts.Log.RecordError(n.Name, n.Args, exitCode, err)
		return
	}
	opts.Log.RecordComplete(n.Name, n.Args)
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

func parseTimeout(spec string, def time.Duration) (time.Duration, bool) {
	if spec != "" {
		if d, err := time.ParseDuration(spec); err == nil {
			return d, true
		}
	}
	if def > 0 {
		return def, true
	}
	return 0, false
}

// ExpandArgs mirrors §4.9 step e's fallback: when a task's usage::Spec
// defines no arg()/flag()/option() placeholders, trailing CLI args are
// appended to the last run script verbatim. (Placeholder substitution
// itself happens earlier, during the per-task template render, since that
// is where the ArgSpec values are known.)
func ExpandArgs(scripts []string, hasUsageSpec bool, args []string) []string {
	if hasUsageSpec || len(scripts) == 0 || len(args) == 0 {
		return scripts
	}
	out := append([]string(nil), scripts...)
	last := len(out) - 1
	for _, a := range args {
		out[last] += " " + a
	}
	return out
}
