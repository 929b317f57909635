package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rungtool/rung/internal/toolset"
)

var whereCmd = &cobra.Command{
	Use:   "where <backend>",
	Short: "Print the install path of a resolved tool",
	Args:  cobra.ExactArgs(1),
	RunE:  runWhere,
}

func runWhere(cmd *cobra.Command, args []string) error {
	cwd := cwdOrDie()
	graph, err := loadGraph(cwd)
	if err != nil {
		return fmt.Errorf("failed to load config graph: %w", err)
	}

	ts, err := resolveToolset(cmd.Context(), graph, false)
	if err != nil {
		return fmt.Errorf("failed to resolve toolset: %w", err)
	}

	ba := toolset.ParseBackendArg(args[0])
	tv, ok := ts.Primary(ba.Full)
	if !ok {
		return fmt.Errorf("no resolved version for %q", args[0])
	}
	fmt.Fprintln(cmd.OutOrStdout(), tv.InstallPath)
	return nil
}
