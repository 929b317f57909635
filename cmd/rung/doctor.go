package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rungtool/rung/internal/doctor"
)

var doctorNoColor bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose the resolved toolset and shims directory",
	Long: `Diagnose the environment for potential issues.

Checks for:
  - Shims with no backing backend in the resolved toolset
  - Tool names provided by more than one backend's bin directory
  - Resolved versions whose install directory has gone missing
  - Broken symlinks in the shims directory`,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorNoColor, "no-color", false, "Disable color output")
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	if doctorNoColor {
		color.NoColor = true
	}

	cwd := cwdOrDie()
	graph, err := loadGraph(cwd)
	if err != nil {
		return fmt.Errorf("failed to load config graph: %w", err)
	}

	ts, err := resolveToolset(cmd.Context(), graph, false)
	if err != nil {
		return fmt.Errorf("failed to resolve toolset: %w", err)
	}

	doc, err := doctor.New(&cfg.Dirs, ts)
	if err != nil {
		return fmt.Errorf("failed to create doctor: %w", err)
	}
	result, err := doc.Check(cmd.Context())
	if err != nil {
		return fmt.Errorf("doctor check failed: %w", err)
	}

	printDoctorResult(cmd, result)
	return nil
}

func printDoctorResult(cmd *cobra.Command, result *doctor.Result) {
	success := color.New(color.FgGreen).SprintFunc()
	warn := color.New(color.FgYellow).SprintFunc()
	fail := color.New(color.FgRed).SprintFunc()

	cmd.Println("Environment Health Check")
	cmd.Println()

	if !result.HasIssues() {
		fmt.Fprintf(cmd.OutOrStdout(), "%s No issues found. Environment is healthy.\n", success("OK"))
		return
	}

	if len(result.UnmanagedShims) > 0 {
		cmd.Printf("[%s]\n", warn("Unmanaged shims"))
		for _, tool := range result.UnmanagedShims {
			cmd.Printf("  %s %-16s %s\n", warn("!"), tool.Name, tool.Path)
		}
		cmd.Println()
	}

	if len(result.Conflicts) > 0 {
		cmd.Printf("[%s]\n", fail("Conflicts"))
		for _, conflict := range result.Conflicts {
			cmd.Printf("  %s %s: found in %s\n", fail("x"), conflict.Name, strings.Join(conflict.Locations, ", "))
			if conflict.ResolvedTo != "" {
				cmd.Printf("       PATH resolves to: %s\n", conflict.ResolvedTo)
			}
		}
		cmd.Println()
	}

	if len(result.StateIssues) > 0 {
		cmd.Printf("[%s]\n", fail("State issues"))
		for _, issue := range result.StateIssues {
			cmd.Printf("  %s %s: %s\n", fail("x"), issue.Name, issue.Message())
		}
		cmd.Println()
	}

	cmd.Printf("Summary: %d unmanaged, %d conflicts, %d state issues\n",
		len(result.UnmanagedShims), len(result.Conflicts), len(result.StateIssues))
}
