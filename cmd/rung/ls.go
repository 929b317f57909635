package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rungtool/rung/internal/toolset"
)

var lsAll bool

var lsCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List resolved tool versions",
	RunE:    runLs,
}

func init() {
	lsCmd.Flags().BoolVarP(&lsAll, "all", "a", false, "Show every requested version, not only the winning one")
}

func runLs(cmd *cobra.Command, _ []string) error {
	cwd := cwdOrDie()
	graph, err := loadGraph(cwd)
	if err != nil {
		return fmt.Errorf("failed to load config graph: %w", err)
	}

	ts, err := resolveToolset(cmd.Context(), graph, false)
	if err != nil {
		return fmt.Errorf("failed to resolve toolset: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintln(w, "BACKEND\tVERSION\tSOURCE\tINSTALLED")
	for _, backend := range ts.Backends() {
		versions := ts.Versions(backend)
		if !lsAll {
			if tv, ok := ts.Primary(backend); ok {
				versions = []toolset.ToolVersion{tv}
			}
		}
		src := ts.Source[backend]
		for _, tv := range versions {
			fmt.Fprintf(w, "%s\t%s\t%s\t%v\n", backend, tv.Version, src.Kind, tv.Installed())
		}
	}
	return nil
}
