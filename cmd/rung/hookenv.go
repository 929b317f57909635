package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rungtool/rung/internal/configfile"
	"github.com/rungtool/rung/internal/envresolve"
	"github.com/rungtool/rung/internal/hooks"
	"github.com/rungtool/rung/internal/pathcompose"
)

var (
	hookEnvShell       string
	hookEnvPreviousDir string
)

var hookEnvCmd = &cobra.Command{
	Use:   "hook-env",
	Short: "Print the shell code a prompt hook evals on every redraw",
	Long: `hook-env re-resolves the active toolset/env for the current directory and
prints the shell commands needed to bring the shell's environment in sync,
plus any enter/leave/cd hook scripts that fired for this directory
transition (§4.11). Shells call this on every prompt redraw:

  eval "$(rung hook-env --shell bash)"`,
	RunE: runHookEnv,
}

func init() {
	hookEnvCmd.Flags().StringVar(&hookEnvShell, "shell", "posix", "Shell type (posix, fish)")
	hookEnvCmd.Flags().StringVar(&hookEnvPreviousDir, "prev-dir", "", "Previous working directory, for enter/leave hook detection")
}

func runHookEnv(cmd *cobra.Command, _ []string) error {
	cwd := cwdOrDie()
	graph, err := loadGraph(cwd)
	if err != nil {
		return fmt.Errorf("failed to load config graph: %w", err)
	}

	ts, err := resolveToolset(cmd.Context(), graph, false)
	if err != nil {
		return fmt.Errorf("failed to resolve toolset: %w", err)
	}

	trust := trustStore()
	pre, err := envresolve.Resolve(graph.EnvEntries(), envresolve.Options{
		ConfigRoot: cwd, Cwd: cwd, BaseEnv: currentEnv(),
		Phase: envresolve.PreToolsOnly, Trust: trust, ProjectRoot: cwd,
	})
	if err != nil {
		return err
	}
	toolVersions := map[string]string{}
	for _, b := range ts.Backends() {
		if tv, ok := ts.Primary(b); ok {
			toolVersions[b] = tv.Version
		}
	}
	final, err := envresolve.Resolve(graph.EnvEntries(), envresolve.Options{
		ConfigRoot: cwd, Cwd: cwd, BaseEnv: pre.Env, ToolVersions: toolVersions,
		Phase: envresolve.Both, Trust: trust, ProjectRoot: cwd,
	})
	if err != nil {
		return err
	}

	pathDirs := pathcompose.Compose(pathcompose.Inputs{
		SystemPath:   splitPath(currentEnv()["PATH"]),
		ShimsDir:     cfg.Dirs.Shims,
		EnvPaths:     final.EnvPaths,
		ToolAddPaths: final.ToolAddPaths,
		Toolset:      ts,
		ProjectRoot:  cwd,
	})

	var b strings.Builder
	writeExport(&b, hookEnvShell, "PATH", pathcompose.Join(pathDirs))
	for k, v := range final.Env {
		writeExport(&b, hookEnvShell, k, v)
	}
	for k := range final.EnvRemove {
		writeUnset(&b, hookEnvShell, k)
	}

	prevDir := hookEnvPreviousDir
	if prevDir == "" {
		prevDir = cwd
	}
	var allHooks []configfile.Hook
	for _, cf := range graph.Files {
		allHooks = append(allHooks, cf.Hooks...)
	}
	transition := hooks.Transition{PreviousDir: prevDir, CurrentDir: cwd}
	shellEval, err := hooks.Dispatch(cmd.Context(), allHooks, transition)
	if err != nil {
		return err
	}
	for _, line := range shellEval {
		b.WriteString(line)
		b.WriteString("\n")
	}

	fmt.Fprint(cmd.OutOrStdout(), b.String())
	return nil
}
