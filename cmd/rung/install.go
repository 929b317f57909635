package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install every tool version required by the active config",
	Long: `Resolve the active config's tool requests and install any version not
already present, without printing activation exports (use "rung env" for
that).`,
	RunE: runInstall,
}

func runInstall(cmd *cobra.Command, _ []string) error {
	cwd := cwdOrDie()
	graph, err := loadGraph(cwd)
	if err != nil {
		return fmt.Errorf("failed to load config graph: %w", err)
	}

	ts, err := resolveToolset(cmd.Context(), graph, true)
	if err != nil {
		return fmt.Errorf("failed to resolve toolset: %w", err)
	}

	for _, b := range ts.Backends() {
		if tv, ok := ts.Primary(b); ok {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", b, tv.Version)
		}
	}
	return nil
}
