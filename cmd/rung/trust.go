package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var trustCmd = &cobra.Command{
	Use:   "trust [path]",
	Short: "Trust a config file (or the nearest one found)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTrust,
}

var trustUntrustCmd = &cobra.Command{
	Use:   "untrust [path]",
	Short: "Remove a config file's trust entry",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runUntrust,
}

var trustIgnoreCmd = &cobra.Command{
	Use:   "ignore <path>",
	Short: "Mark a config file as explicitly distrusted",
	Args:  cobra.ExactArgs(1),
	RunE:  runIgnore,
}

func init() {
	trustCmd.AddCommand(trustUntrustCmd, trustIgnoreCmd)
}

func trustTargetPath(cwd string, args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	return filepath.Join(cwd, "mise.toml")
}

func runTrust(cmd *cobra.Command, args []string) error {
	cwd := cwdOrDie()
	path := trustTargetPath(cwd, args)
	if err := trustStore().Trust(path, cwd); err != nil {
		return fmt.Errorf("failed to trust %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "trusted %s\n", path)
	return nil
}

func runUntrust(cmd *cobra.Command, args []string) error {
	cwd := cwdOrDie()
	path := trustTargetPath(cwd, args)
	if err := trustStore().Untrust(path, cwd); err != nil {
		return fmt.Errorf("failed to untrust %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "untrusted %s\n", path)
	return nil
}

func runIgnore(cmd *cobra.Command, args []string) error {
	path := args[0]
	if err := trustStore().Ignore(path); err != nil {
		return fmt.Errorf("failed to ignore %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "ignored %s\n", path)
	return nil
}
