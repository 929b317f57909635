package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rungtool/rung/internal/configfile"
	"github.com/rungtool/rung/internal/configwrite"
	"github.com/rungtool/rung/internal/toolset"
)

var (
	useGlobal bool
	usePin    bool
)

var useCmd = &cobra.Command{
	Use:   "use <backend>@<version> [backend@version...]",
	Short: "Pin a tool version in ./mise.toml (or the global config with --global)",
	Long: `Pin a tool version in mise.toml in the current directory, creating the
file if needed, or in the user's global config with --global. Config files
in parent directories, and other config filenames, are not edited.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runUse,
}

var unuseCmd = &cobra.Command{
	Use:   "unuse <backend> [backend...]",
	Short: "Remove a tool pin from mise.toml in the current directory",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runUnuse,
}

func init() {
	useCmd.Flags().BoolVarP(&useGlobal, "global", "g", false, "Pin in the user's global config instead of the project's")
	useCmd.Flags().BoolVar(&usePin, "pin", false, "Also write the version to the idiomatic file in the current directory, if one governs this backend")
}

func runUse(cmd *cobra.Command, args []string) error {
	cwd := cwdOrDie()
	path := targetConfigPath(cwd)

	for _, arg := range args {
		backend, version, err := splitBackendVersion(arg)
		if err != nil {
			return err
		}
		if err := configwrite.PinVersion(path, backend, version); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "pinned %s@%s in %s\n", backend, version, path)

		if usePin {
			if idiomaticPath, ok := nearestIdiomaticFile(cwd, backend); ok {
				if err := configwrite.WriteIdiomaticVersion(idiomaticPath, version); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "also wrote %s\n", idiomaticPath)
			}
		}
	}
	return nil
}

// nearestIdiomaticFile reports the idiomatic version file in cwd governing
// backend, if one already exists there (§4.2 shape 3; "use --pin" only
// touches a file that already governs this backend, it never invents a new
// idiomatic filename).
func nearestIdiomaticFile(cwd, backend string) (string, bool) {
	for name, def := range configfile.IdiomaticFiles {
		if def.Backend != backend {
			continue
		}
		path := filepath.Join(cwd, name)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

func runUnuse(cmd *cobra.Command, args []string) error {
	cwd := cwdOrDie()
	path := targetConfigPath(cwd)

	for _, backend := range args {
		ba := toolset.ParseBackendArg(backend)
		if err := configwrite.UnpinVersion(path, ba.Full); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %s from %s\n", ba.Full, path)
	}
	return nil
}

// targetConfigPath picks the config file `use`/`unuse` edits: the user's
// global config with --global (same path configgraph.Discovery falls back
// to when no GlobalConfigFile override is set), else mise.toml in cwd
// (created if absent).
func targetConfigPath(cwd string) string {
	if useGlobal {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(cwd, "mise.toml")
		}
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "mise", "config.toml")
		}
		return filepath.Join(home, ".config", "mise", "config.toml")
	}
	return filepath.Join(cwd, "mise.toml")
}

func splitBackendVersion(arg string) (backend, version string, err error) {
	idx := -1
	for i := len(arg) - 1; i >= 0; i-- {
		if arg[i] == '@' {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", "", fmt.Errorf("expected <backend>@<version>, got %q", arg)
	}
	ba := toolset.ParseBackendArg(arg[:idx])
	return ba.Full, arg[idx+1:], nil
}
