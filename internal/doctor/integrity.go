package doctor

import (
	"os"
	"path/filepath"

	"github.com/rungtool/rung/internal/rpath"
)

// checkStateIntegrity verifies the resolved toolset and shims directory
// still match the filesystem.
func (d *Doctor) checkStateIntegrity() ([]StateIssue, error) {
	var issues []StateIssue

	issues = append(issues, d.checkToolsetIntegrity()...)

	shimIssues, err := d.checkShimIntegrity()
	if err != nil {
		return nil, err
	}
	issues = append(issues, shimIssues...)

	return issues, nil
}

// checkToolsetIntegrity reports every resolved version whose install
// directory has disappeared since resolution (stale lockfile entry, or an
// install wiped out from under rung).
func (d *Doctor) checkToolsetIntegrity() []StateIssue {
	if d.toolset == nil {
		return nil
	}

	var issues []StateIssue
	for _, backend := range d.toolset.Backends() {
		for _, tv := range d.toolset.Versions(backend) {
			if tv.InstallPath == "" {
				continue
			}
			if !tv.Installed() {
				issues = append(issues, StateIssue{
					Kind: StateIssueMissingInstallDir,
					Name: backend,
					Path: tv.InstallPath,
				})
			}
		}
	}
	return issues
}

// checkShimIntegrity reports broken symlinks sitting in the shims directory.
func (d *Doctor) checkShimIntegrity() ([]StateIssue, error) {
	if d.dirs == nil || d.dirs.Shims == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(d.dirs.Shims)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var issues []StateIssue
	for _, entry := range entries {
		path := filepath.Join(d.dirs.Shims, entry.Name())
		if rpath.IsBrokenSymlink(path) {
			issues = append(issues, StateIssue{
				Kind: StateIssueBrokenSymlink,
				Name: entry.Name(),
				Path: path,
			})
		}
	}
	return issues, nil
}
