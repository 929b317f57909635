// Package rungconfig holds process-level settings for rung itself — data
// dir, cache dir, paranoid mode, default shell, job concurrency — distinct
// from the user's project config graph (internal/configgraph), which this
// package's defaults merely seed paths for.
//
// Grounded on the teacher's internal/config.Config (default-path constants
// plus an env-var-overridable loader), adapted away from its CUE schema
// loading since rung's own settings are plain environment variables, not a
// user-editable config file.
package rungconfig

import (
	"os"
	"runtime"
	"strconv"

	"github.com/rungtool/rung/internal/rpath"
)

// Default behaviour constants (§6.3, RUNG_* env vars); directory defaults
// live in rpath.New.
const (
	DefaultShell = "sh"
	DefaultJobs  = 4
)

// Config is the resolved set of process-level settings. Its directory
// layout defers entirely to rpath.Dirs; Config adds the settings that
// aren't paths (paranoid mode, default shell, concurrency, logging).
type Config struct {
	Dirs rpath.Dirs

	Paranoid     bool // trust store keys each config file on itself and pins its sha256 (see trust.New)
	DefaultShell string
	Jobs         int
	LogFile      string
	LogFileLevel string
	NoColor      bool
}

// Load resolves Config from the environment, using rpath.New for the
// directory layout and the RUNG_* variables below for everything else
// (§6.3).
func Load() (*Config, error) {
	dirs, err := rpath.New()
	if err != nil {
		return nil, err
	}
	return &Config{
		Dirs:         *dirs,
		DefaultShell: envOr("RUNG_SHELL", defaultShellForPlatform()),
		Jobs:         intEnvOr("RUNG_JOBS", DefaultJobs),
		Paranoid:     boolEnvOr("RUNG_PARANOID", false),
		LogFile:      os.Getenv("RUNG_LOG_FILE"),
		LogFileLevel: envOr("RUNG_LOG_FILE_LEVEL", "info"),
		NoColor:      os.Getenv("NO_COLOR") != "",
	}, nil
}

func defaultShellForPlatform() string {
	if runtime.GOOS == "windows" {
		return "cmd"
	}
	return DefaultShell
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnvOr(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func boolEnvOr(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

