package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rungtool/rung/internal/envresolve"
	"github.com/rungtool/rung/internal/pathcompose"
)

var envShell string

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Print shell exports for the active toolset and env config",
	Long: `Print export statements for the resolved toolset's PATH entries and any
env directives from the config graph.

  eval "$(rung env)"`,
	RunE: runEnv,
}

func init() {
	envCmd.Flags().StringVar(&envShell, "shell", "posix", "Shell type (posix, fish)")
}

func runEnv(cmd *cobra.Command, _ []string) error {
	cwd := cwdOrDie()
	graph, err := loadGraph(cwd)
	if err != nil {
		return fmt.Errorf("failed to load config graph: %w", err)
	}

	ts, err := resolveToolset(cmd.Context(), graph, false)
	if err != nil {
		return fmt.Errorf("failed to resolve toolset: %w", err)
	}

	baseEnv := currentEnv()
	pre, err := envresolve.Resolve(graph.EnvEntries(), envresolve.Options{
		ConfigRoot:  cwd,
		Cwd:         cwd,
		BaseEnv:     baseEnv,
		Phase:       envresolve.PreToolsOnly,
		Trust:       trustStore(),
		ProjectRoot: cwd,
	})
	if err != nil {
		return fmt.Errorf("failed to resolve env directives: %w", err)
	}

	toolVersions := map[string]string{}
	for _, b := range ts.Backends() {
		if tv, ok := ts.Primary(b); ok {
			toolVersions[b] = tv.Version
		}
	}

	final, err := envresolve.Resolve(graph.EnvEntries(), envresolve.Options{
		ConfigRoot:   cwd,
		Cwd:          cwd,
		BaseEnv:      pre.Env,
		ToolVersions: toolVersions,
		Phase:        envresolve.Both,
		Trust:        trustStore(),
		ProjectRoot:  cwd,
	})
	if err != nil {
		return fmt.Errorf("failed to resolve env directives: %w", err)
	}

	systemPath := strings.Split(os.Getenv("PATH"), string(os.PathListSeparator))
	pathDirs := pathcompose.Compose(pathcompose.Inputs{
		SystemPath:   systemPath,
		EnvPaths:     final.EnvPaths,
		ToolAddPaths: final.ToolAddPaths,
		Toolset:      ts,
		ProjectRoot:  cwd,
	})

	// With no shims dir given, Compose ends with the original PATH entries
	// unchanged; those are emitted as a literal $PATH reference.
	pathValue := "$PATH"
	if added := pathDirs[:len(pathDirs)-len(systemPath)]; len(added) > 0 {
		pathValue = pathcompose.Join(added) + ":$PATH"
	}

	var b strings.Builder
	writeExport(&b, envShell, "PATH", pathValue)
	writeExport(&b, envShell, "RUNG_SHELL", envShell)
	for k, v := range final.Env {
		writeExport(&b, envShell, k, v)
	}
	for k := range final.EnvRemove {
		writeUnset(&b, envShell, k)
	}
	fmt.Fprint(cmd.OutOrStdout(), b.String())
	return nil
}

func currentEnv() map[string]string {
	env := map[string]string{}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

func writeExport(b *strings.Builder, shell, key, value string) {
	if shell == "fish" {
		fmt.Fprintf(b, "set -gx %s %q\n", key, value)
		return
	}
	fmt.Fprintf(b, "export %s=%q\n", key, value)
}

func writeUnset(b *strings.Builder, shell, key string) {
	if shell == "fish" {
		fmt.Fprintf(b, "set -e %s\n", key)
		return
	}
	fmt.Fprintf(b, "unset %s\n", key)
}
