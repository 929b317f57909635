package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/rungtool/rung/internal/configgraph"
	"github.com/rungtool/rung/internal/configwrite"
	"github.com/rungtool/rung/internal/depgraph"
	"github.com/rungtool/rung/internal/task"
	"github.com/rungtool/rung/internal/taskloader"
)

func addTaskToConfig(path, name string, script []string) error {
	return configwrite.AddTask(path, name, script)
}

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Task lifecycle: add, edit, ls, deps, info, validate",
}

var taskLsExpand bool

var taskLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List known tasks",
	RunE:  runTaskLs,
}

var taskDepsFormat string

var taskDepsCmd = &cobra.Command{
	Use:   "deps <task> [task...]",
	Short: "Print the dependency graph for one or more tasks",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTaskDeps,
}

var taskInfoCmd = &cobra.Command{
	Use:   "info <task>",
	Short: "Print full task metadata",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskInfo,
}

var taskValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load every discovered task and report errors",
	RunE:  runTaskValidate,
}

var taskAddCmd = &cobra.Command{
	Use:   "add <name> -- <script...>",
	Short: "Add a task to the nearest config",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTaskAdd,
}

var taskEditCmd = &cobra.Command{
	Use:   "edit <task>",
	Short: "Open the config file that defines a task in $EDITOR",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskEdit,
}

func init() {
	taskLsCmd.Flags().BoolVarP(&taskLsExpand, "expand", "x", false, "Also list monorepo subpackage tasks (//pkg/...:task)")
	taskDepsCmd.Flags().StringVar(&taskDepsFormat, "format", "text", "Output format (text, json, yaml)")
	taskCmd.AddCommand(taskAddCmd, taskEditCmd, taskLsCmd, taskDepsCmd, taskInfoCmd, taskValidateCmd)
}

// taskDepsLayer and taskDepsOutput mirror the teacher's graph.PlanLayer /
// graph.PlanOutput shape (internal/graph/export.go), repurposed from
// resource-install layers to task dependency layers.
type taskDepsLayer struct {
	Index int      `json:"index" yaml:"index"`
	Tasks []string `json:"tasks" yaml:"tasks"`
}

type taskDepsOutput struct {
	Layers []taskDepsLayer `json:"layers" yaml:"layers"`
}

// loadTaskTable loads the task table visible from cwd. Monorepo subpackage
// tasks are included only when the config graph is rooted at
// experimental_monorepo_root = true (§3.8, §8 scenario S5); callers that
// need to run one of those tasks explicitly (e.g. `rung run //pkg/a:build`)
// still get them here, regardless of listing visibility.
func loadTaskTable(cwd string) (map[string]*task.Task, *configgraph.Graph, error) {
	graph, err := loadGraph(cwd)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config graph: %w", err)
	}
	_, isMonorepo := monorepoRoot(graph)
	tasks, err := taskloader.Load(graph, taskloader.Options{
		ConfigRoot:      cwd,
		GitignoreAware:  true,
		IncludeMonorepo: isMonorepo,
	})
	return tasks, graph, err
}

func runTaskLs(cmd *cobra.Command, _ []string) error {
	cwd := cwdOrDie()
	tasks, _, err := loadTaskTable(cwd)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(tasks))
	for name := range tasks {
		if !taskLsExpand && strings.HasPrefix(name, "//") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintln(w, "NAME\tDESCRIPTION")
	for _, name := range names {
		t := tasks[name]
		if t.Spec.Hide {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\n", name, t.Spec.Description)
	}
	return nil
}

func runTaskDeps(cmd *cobra.Command, args []string) error {
	cwd := cwdOrDie()
	tasks, _, err := loadTaskTable(cwd)
	if err != nil {
		return err
	}

	dg, err := depgraph.Build(args, tasks)
	if err != nil {
		return fmt.Errorf("failed to build task graph: %w", err)
	}

	layers, err := dg.Layers()
	if err != nil {
		return err
	}

	switch taskDepsFormat {
	case "json", "yaml":
		return exportTaskDeps(cmd, layers)
	default:
		for i, layer := range layers {
			fmt.Fprintf(cmd.OutOrStdout(), "layer %d:\n", i)
			for _, n := range layer.Nodes {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", n.Name)
			}
		}
		return nil
	}
}

func exportTaskDeps(cmd *cobra.Command, layers []depgraph.Layer) error {
	out := taskDepsOutput{Layers: make([]taskDepsLayer, len(layers))}
	for i, layer := range layers {
		names := make([]string, len(layer.Nodes))
		for j, n := range layer.Nodes {
			names[j] = n.Name
		}
		out.Layers[i] = taskDepsLayer{Index: i, Tasks: names}
	}

	if taskDepsFormat == "yaml" {
		data, err := yaml.MarshalWithOptions(out, yaml.Indent(2))
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func runTaskInfo(cmd *cobra.Command, args []string) error {
	cwd := cwdOrDie()
	tasks, _, err := loadTaskTable(cwd)
	if err != nil {
		return err
	}
	t, ok := tasks[args[0]]
	if !ok {
		return fmt.Errorf("no such task %q", args[0])
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(t.Spec)
}

func runTaskValidate(cmd *cobra.Command, _ []string) error {
	cwd := cwdOrDie()
	tasks, _, err := loadTaskTable(cwd)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(tasks))
	for name := range tasks {
		names = append(names, name)
	}
	if _, err := depgraph.Build(names, tasks); err != nil {
		return fmt.Errorf("task graph is invalid: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d tasks valid, no dependency cycles\n", len(tasks))
	return nil
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	cwd := cwdOrDie()
	name := args[0]
	script := args[1:]
	if len(script) == 0 {
		return fmt.Errorf("usage: rung task add <name> -- <script...>")
	}

	path := targetConfigPath(cwd)
	if err := addTaskToConfig(path, name, script); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "added task %q to %s\n", name, path)
	return nil
}

func runTaskEdit(cmd *cobra.Command, args []string) error {
	cwd := cwdOrDie()
	tasks, _, err := loadTaskTable(cwd)
	if err != nil {
		return err
	}
	t, ok := tasks[args[0]]
	if !ok {
		return fmt.Errorf("no such task %q", args[0])
	}
	path := t.Spec.ConfigSource
	if path == "" {
		return fmt.Errorf("task %q has no editable config source (file task or inline)", args[0])
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}
	c := exec.Command(editor, path)
	c.Stdin, c.Stdout, c.Stderr = os.Stdin, cmd.OutOrStdout(), cmd.ErrOrStderr()
	return c.Run()
}
