package main

import (
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rungtool/rung/internal/tasklog"
)

var logsListSessions bool

var logsCmd = &cobra.Command{
	Use:   "logs [task]",
	Short: "Show failed-task output from the last run",
	Long: `Show failed-task output from the last rung run session.

Without arguments, lists all failed tasks from the most recent session.
With a task argument, shows the full captured output for that task.

  rung logs                # list failed tasks from the last session
  rung logs build           # show full output for "build"
  rung logs --list          # list all sessions`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().BoolVar(&logsListSessions, "list", false, "List all log sessions")
}

func logsDir() string {
	return filepath.Join(cfg.Dirs.State, "task-logs")
}

func runLogs(cmd *cobra.Command, args []string) error {
	if logsListSessions {
		return listLogSessions(cmd)
	}
	if len(args) > 0 {
		return showTaskLog(cmd, args[0])
	}
	return showLatestLogSession(cmd)
}

func listLogSessions(cmd *cobra.Command) error {
	sessions, err := tasklog.ListSessions(logsDir())
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		cmd.Println("No log sessions found.")
		return nil
	}
	for _, s := range sessions {
		logs, err := tasklog.ReadSession(s.Dir)
		if err != nil {
			continue
		}
		cmd.Printf("  %s  (%d failed tasks)\n", s.ID, len(logs))
	}
	return nil
}

func showLatestLogSession(cmd *cobra.Command) error {
	sessions, err := tasklog.ListSessions(logsDir())
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		cmd.Println("No log sessions found.")
		return nil
	}

	latest := sessions[0]
	logs, err := tasklog.ReadSession(latest.Dir)
	if err != nil {
		return err
	}
	if len(logs) == 0 {
		cmd.Printf("No failed tasks in session %s.\n", latest.ID)
		return nil
	}

	fail := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(cmd.OutOrStdout(), "Session: %s\n\n", latest.ID)
	for _, l := range logs {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s %s\n", fail("FAILED"), l.TaskName)
	}
	cmd.Println()
	cmd.Println("Use 'rung logs <task>' to see its full output.")
	return nil
}

func showTaskLog(cmd *cobra.Command, name string) error {
	sessions, err := tasklog.ListSessions(logsDir())
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		cmd.Println("No log sessions found.")
		return nil
	}

	logs, err := tasklog.ReadSession(sessions[0].Dir)
	if err != nil {
		return err
	}
	for _, l := range logs {
		if l.TaskName == name {
			cmd.Print(l.Content)
			return nil
		}
	}
	return fmt.Errorf("no failed-task log named %q in the latest session", name)
}
