// Command rung is a per-project/per-user runtime version manager and task
// runner: a config graph of pinned tool versions plus a task DAG, the way
// mise combines both into one tool.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rungtool/rung/internal/configgraph"
	"github.com/rungtool/rung/internal/rungconfig"
	"github.com/rungtool/rung/internal/trust"
)

// logLevelFlag implements pflag.Value for slog.Level.
type logLevelFlag struct {
	level slog.Level
}

func (f *logLevelFlag) String() string { return strings.ToLower(f.level.String()) }
func (f *logLevelFlag) Type() string   { return "string" }
func (f *logLevelFlag) Set(s string) error {
	switch strings.ToLower(s) {
	case "debug":
		f.level = slog.LevelDebug
	case "info":
		f.level = slog.LevelInfo
	case "warn":
		f.level = slog.LevelWarn
	case "error":
		f.level = slog.LevelError
	default:
		return fmt.Errorf("unknown log level %q (valid: debug, info, warn, error)", s)
	}
	return nil
}
func (f *logLevelFlag) Level() slog.Level { return f.level }

var (
	globalLogLevel = &logLevelFlag{level: slog.LevelWarn}
	globalNoColor  bool
	globalYes      bool // auto-trust/confirm prompts, mirrors --yes

	cfg *rungconfig.Config
)

var rootCmd = &cobra.Command{
	Use:   "rung",
	Short: "Per-project runtime version manager and task runner",
	Long: `rung manages per-project/per-user tool versions and tasks from a small
layered TOML config (mise.toml-compatible), the way mise does.

  rung use node@20       pin a tool version in ./mise.toml
  rung env               print shell exports for the active toolset
  rung run build         run a task (and its dependencies)
  rung task ls           list known tasks`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: globalLogLevel.Level()})))
		loaded, err := rungconfig.Load()
		if err != nil {
			return fmt.Errorf("failed to load rung config: %w", err)
		}
		if globalNoColor {
			loaded.NoColor = true
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Var(globalLogLevel, "log-level", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&globalNoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&globalYes, "yes", "y", false, "Assume yes for trust/confirmation prompts")
	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(
		versionCmd,
		useCmd,
		unuseCmd,
		installCmd,
		lsCmd,
		whereCmd,
		envCmd,
		trustCmd,
		runCmd,
		taskCmd,
		settingsCmd,
		doctorCmd,
		hookEnvCmd,
		logsCmd,
		completionCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr cmdExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		fmt.Fprintln(os.Stderr, "rung:", err)
		os.Exit(1)
	}
}

// trustStore builds this process's trust.Store from the loaded config.
// With --yes, the interactive trust prompt is answered with yes.
func trustStore() *trust.Store {
	s := trust.New(&cfg.Dirs, cfg.Paranoid)
	if globalYes {
		s.Prompt = func(string) (bool, error) { return true, nil }
	}
	return s
}

// loadGraph discovers and merges the config graph rooted at cwd, honouring
// the trust store (an untrusted file prompts on a TTY; --yes answers yes).
func loadGraph(cwd string) (*configgraph.Graph, error) {
	disc := &configgraph.Discovery{IdiomaticEnabled: true}
	store := trustStore()
	return configgraph.Load(disc, cwd, store, cfg.Paranoid)
}

// monorepoRoot returns the directory of the nearest loaded config file with
// experimental_monorepo_root = true, if any (§3.8, §8 scenario S5).
func monorepoRoot(graph *configgraph.Graph) (string, bool) {
	for i := len(graph.Files) - 1; i >= 0; i-- {
		if graph.Files[i].ExperimentalMonorepoRoot {
			return graph.Files[i].ConfigRoot, true
		}
	}
	return "", false
}

func cwdOrDie() string {
	wd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, "rung: failed to determine working directory:", err)
		os.Exit(1)
	}
	return wd
}
