package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/rungtool/rung/internal/configwrite"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Get, set, list, and unset config settings (nearest config wins)",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a setting's value",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsGet,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a setting in the nearest config",
	Args:  cobra.ExactArgs(2),
	RunE:  runSettingsSet,
}

var settingsUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a setting from the nearest config",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsUnset,
}

var settingsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List every setting visible from the config graph",
	RunE:  runSettingsLs,
}

func init() {
	settingsCmd.AddCommand(settingsGetCmd, settingsSetCmd, settingsUnsetCmd, settingsLsCmd)
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	cwd := cwdOrDie()
	graph, err := loadGraph(cwd)
	if err != nil {
		return fmt.Errorf("failed to load config graph: %w", err)
	}
	v, ok := graph.Setting(args[0])
	if !ok {
		return fmt.Errorf("setting %q is not set", args[0])
	}
	fmt.Fprintln(cmd.OutOrStdout(), v)
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	cwd := cwdOrDie()
	path := targetConfigPath(cwd)
	if err := configwrite.SetSetting(path, args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "set %s=%s in %s\n", args[0], args[1], path)
	return nil
}

func runSettingsUnset(cmd *cobra.Command, args []string) error {
	cwd := cwdOrDie()
	path := targetConfigPath(cwd)
	if err := configwrite.UnsetSetting(path, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "unset %s in %s\n", args[0], path)
	return nil
}

func runSettingsLs(cmd *cobra.Command, _ []string) error {
	cwd := cwdOrDie()
	graph, err := loadGraph(cwd)
	if err != nil {
		return fmt.Errorf("failed to load config graph: %w", err)
	}

	merged := map[string]any{}
	for _, cf := range graph.Files {
		for k, v := range cf.Settings {
			merged[k] = v
		}
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", k, merged[k])
	}
	return nil
}
