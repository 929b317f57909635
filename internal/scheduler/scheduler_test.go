package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rungtool/rung/internal/depgraph"
	"github.com/rungtool/rung/internal/task"
)

func buildFor(script string) TaskContextBuilder {
	return func(ctx context.Context, n *depgraph.Node) (*RunnableTask, error) {
		return &RunnableTask{
			Node:    n,
			Task:    &task.Task{},
			Scripts: []string{script},
			Env:     map[string]string{},
		}, nil
	}
}

// TestRunScenarioS6 mirrors spec scenario S6: three independent tasks where
// one fails; with --continue-on-error all three run and the summary
// reports the failure.
func TestRunScenarioS6(t *testing.T) {
	graph := depgraph.New()
	graph.AddNode("a", nil)
	graph.AddNode("b", nil)
	graph.AddNode("c", nil)

	builders := map[string]string{"a": "exit 0", "b": "exit 2", "c": "exit 0"}
	build := func(ctx context.Context, n *depgraph.Node) (*RunnableTask, error) {
		return &RunnableTask{Node: n, Task: &task.Task{}, Scripts: []string{builders[n.Name]}, Env: map[string]string{}}, nil
	}

	summary, err := Run(context.Background(), graph, Options{Jobs: 3, ContinueOnError: true, Build: build})
	require.NoError(t, err)
	require.Len(t, summary.Results, 3)
	assert.Equal(t, 2, summary.ExitCode)
}

func TestRunStopsOnFirstFailureWithoutContinueOnError(t *testing.T) {
	graph := depgraph.New()
	build := graph.AddNode("build", nil)
	lint := graph.AddNode("lint", nil)
	graph.AddEdge(build, lint, depgraph.EdgeDepends)

	failing := func(ctx context.Context, n *depgraph.Node) (*RunnableTask, error) {
		script := "exit 0"
		if n.Name == "lint" {
			script = "exit 1"
		}
		return &RunnableTask{Node: n, Task: &task.Task{}, Scripts: []string{script}, Env: map[string]string{}}, nil
	}

	summary, err := Run(context.Background(), graph, Options{Jobs: 2, Build: failing})
	require.NoError(t, err)
	require.NotEmpty(t, summary.Results)
	assert.Equal(t, 1, summary.ExitCode)
}

func TestExpandArgsAppendsToLastScriptWhenNoUsageSpec(t *testing.T) {
	out := ExpandArgs([]string{"echo one", "echo two"}, false, []string{"--flag"})
	assert.Equal(t, []string{"echo one", "echo two --flag"}, out)
}

func TestExpandArgsNoopWhenUsageSpecPresent(t *testing.T) {
	out := ExpandArgs([]string{"echo one"}, true, []string{"--flag"})
	assert.Equal(t, []string{"echo one"}, out)
}
