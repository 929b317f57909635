// Package doctor implements "rung doctor" (§4.12, supplemented): a
// read-only health check over the resolved toolset and the shims
// directory. It looks for shims left behind by backends no longer present
// in any config, tool names that resolve ambiguously because more than one
// backend's bin dir provides the same executable, and toolset entries whose
// install directory has gone missing since resolution.
package doctor

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rungtool/rung/internal/rpath"
	"github.com/rungtool/rung/internal/toolset"
)

// Doctor checks the health of the rung-managed environment.
type Doctor struct {
	dirs      *rpath.Dirs
	toolset   *toolset.Toolset
	scanPaths map[string]string // category -> directory; "shims" plus one entry per backend's bin dir
}

// Result contains the findings from a doctor check.
type Result struct {
	// UnmanagedShims holds shim files whose name doesn't match any backend
	// currently in the resolved toolset.
	UnmanagedShims []UnmanagedTool
	// Conflicts contains tool names provided by more than one backend's bin dir.
	Conflicts []Conflict
	// StateIssues contains toolset/install integrity problems.
	StateIssues []StateIssue
}

// UnmanagedTool represents a shim not backed by any resolved backend.
type UnmanagedTool struct {
	Name string
	Path string
}

// Conflict represents a tool name found in multiple bin directories.
type Conflict struct {
	Name       string
	Locations  []string // bin directories that all provide Name
	ResolvedTo string   // the path the shell's PATH would actually resolve to
}

// StateIssueKind represents the type of integrity issue.
type StateIssueKind string

const (
	// StateIssueMissingInstallDir indicates a resolved version's install directory is missing.
	StateIssueMissingInstallDir StateIssueKind = "missing_install_dir"
	// StateIssueBrokenSymlink indicates a shim's symlink target does not exist.
	StateIssueBrokenSymlink StateIssueKind = "broken_symlink"
)

// StateIssue represents an integrity problem.
type StateIssue struct {
	Kind   StateIssueKind
	Name   string // backend or shim name
	Path   string
	Target string // symlink target, for broken_symlink
}

// Message returns a human-readable description of the issue.
func (i StateIssue) Message() string {
	switch i.Kind {
	case StateIssueMissingInstallDir:
		return fmt.Sprintf("install directory not found at %s", i.Path)
	case StateIssueBrokenSymlink:
		if i.Target != "" {
			return fmt.Sprintf("symlink target %s does not exist", i.Target)
		}
		return fmt.Sprintf("broken symlink at %s", i.Path)
	default:
		return fmt.Sprintf("unknown issue at %s", i.Path)
	}
}

// New creates a Doctor over the already-resolved toolset ts.
func New(dirs *rpath.Dirs, ts *toolset.Toolset) (*Doctor, error) {
	scanPaths := map[string]string{"shims": dirs.Shims}

	for _, backend := range ts.Backends() {
		tv, ok := ts.Primary(backend)
		if !ok || tv.InstallPath == "" {
			continue
		}
		scanPaths[backend] = filepath.Join(tv.InstallPath, "bin")
	}

	return &Doctor{dirs: dirs, toolset: ts, scanPaths: scanPaths}, nil
}

// Check performs all health checks and returns the results.
func (d *Doctor) Check(ctx context.Context) (*Result, error) {
	result := &Result{}

	unmanaged, err := d.scanForUnmanaged()
	if err != nil {
		return nil, err
	}
	result.UnmanagedShims = unmanaged

	conflicts, err := d.detectConflicts()
	if err != nil {
		return nil, err
	}
	result.Conflicts = conflicts

	issues, err := d.checkStateIntegrity()
	if err != nil {
		return nil, err
	}
	result.StateIssues = issues

	return result, nil
}

// HasIssues returns true if there are any issues found.
func (r *Result) HasIssues() bool {
	return len(r.UnmanagedShims) > 0 || len(r.Conflicts) > 0 || len(r.StateIssues) > 0
}
