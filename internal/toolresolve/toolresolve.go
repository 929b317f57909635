// Package toolresolve implements the toolset resolver (component H, §4.5):
// turning merged tool requests into concrete installed ToolVersions using
// backend.Registry, lockfile pins, and alias tables, auto-installing via
// each backend's Install when requested.
package toolresolve

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/cenkalti/backoff/v5"
	"github.com/gofrs/flock"

	"github.com/rungtool/rung/internal/backend"
	"github.com/rungtool/rung/internal/lockfile"
	"github.com/rungtool/rung/internal/rerrors"
	"github.com/rungtool/rung/internal/rpath"
	"github.com/rungtool/rung/internal/toolset"
)

// Options configures a single resolve pass.
type Options struct {
	Dirs        *rpath.Dirs
	Registry    *backend.Registry
	Lock        *lockfile.File // nil means no pins
	Aliases     map[string]map[string]string // backend -> alias -> version, applied before range matching (§4.5: "Aliases are applied before range matching")
	AutoInstall bool

	// OnInstallStart/OnInstallDone, if set, bracket each backend.Install
	// call so a caller can drive a progress display; err is nil on success.
	OnInstallStart func(backend, version string)
	OnInstallDone  func(backend, version string, err error)
}

// versionCache memoises ListAllVersions results for the lifetime of a
// resolve pass, per §4.5 step 1: "ask the backend to enumerate known
// versions (cached)".
type versionCache struct {
	byBackend map[string][]string
}

func newVersionCache() *versionCache { return &versionCache{byBackend: map[string][]string{}} }

func (c *versionCache) get(ctx context.Context, name string, b backend.Backend) ([]string, error) {
	if v, ok := c.byBackend[name]; ok {
		return v, nil
	}
	versions, err := listAllVersionsWithRetry(ctx, b)
	if err != nil {
		return nil, err
	}
	c.byBackend[name] = versions
	return versions, nil
}

// listAllVersionsWithRetry wraps Backend.ListAllVersions in bounded
// exponential backoff, per the domain-stack wiring of
// cenkalti/backoff/v5 around "transient network failures".
func listAllVersionsWithRetry(ctx context.Context, b backend.Backend) ([]string, error) {
	return backoff.Retry(ctx, func() ([]string, error) {
		return b.ListAllVersions(ctx)
	}, backoff.WithMaxTries(4), backoff.WithBackOff(backoff.NewExponentialBackOff()))
}

// Resolve resolves every request into a Toolset (§4.5). requests is
// expected to already be backend-deduplicated per SPEC precedence rules
// (configgraph.Graph.WinningToolRequests plus CLI overrides appended last).
func Resolve(ctx context.Context, requests []toolset.ToolRequest, opts Options) (*toolset.Toolset, error) {
	ts := toolset.NewToolset()
	cache := newVersionCache()

	for _, req := range requests {
		tv, err := resolveOne(ctx, req, opts, cache)
		if err != nil {
			return nil, err
		}
		ts.Add(tv)
		ts.Source[req.Backend.Full] = req.Source

		if opts.AutoInstall && !tv.Installed() {
			if opts.OnInstallStart != nil {
				opts.OnInstallStart(req.Backend.Full, tv.Version)
			}
			err := install(ctx, req.Backend, tv, opts)
			if opts.OnInstallDone != nil {
				opts.OnInstallDone(req.Backend.Full, tv.Version, err)
			}
			if err != nil {
				return nil, err
			}
		}
	}
	return ts, nil
}

func resolveOne(ctx context.Context, req toolset.ToolRequest, opts Options, cache *versionCache) (toolset.ToolVersion, error) {
	name := req.Backend.Full

	switch req.Kind {
	case toolset.RequestSystem:
		return toolset.ToolVersion{Backend: req.Backend, Request: req, Version: "system"}, nil

	case toolset.RequestPath:
		return toolset.ToolVersion{Backend: req.Backend, Request: req, Version: "path:" + req.Path, InstallPath: req.Path}, nil

	case toolset.RequestRef:
		version := string(req.RefKind) + ":" + req.RefValue
		return toolset.ToolVersion{
			Backend: req.Backend, Request: req, Version: version,
			InstallPath: installPath(opts, req.Backend, version),
		}, nil
	}

	b, ok := opts.Registry.Lookup(req.Backend)
	if !ok {
		return toolset.ToolVersion{}, rerrors.New(rerrors.KindBackendResolve, "no backend registered for tool").
			WithDetail("backend", name)
	}
	versions, err := cache.get(ctx, name, b)
	if err != nil {
		return toolset.ToolVersion{}, rerrors.Wrap(rerrors.KindBackendResolve, "failed to list backend versions", err).
			WithDetail("backend", name)
	}

	switch req.Kind {
	case toolset.RequestVersion:
		resolved, err := resolveVersion(req, versions, opts)
		if err != nil {
			return toolset.ToolVersion{}, err
		}
		return toolset.ToolVersion{Backend: req.Backend, Request: req, Version: resolved, InstallPath: installPath(opts, req.Backend, resolved)}, nil

	case toolset.RequestPrefix:
		resolved, err := highestWithPrefix(versions, req.Prefix)
		if err != nil {
			return toolset.ToolVersion{}, err
		}
		return toolset.ToolVersion{Backend: req.Backend, Request: req, Version: resolved, InstallPath: installPath(opts, req.Backend, resolved)}, nil

	case toolset.RequestSub:
		resolved, err := resolveSub(req, versions)
		if err != nil {
			return toolset.ToolVersion{}, err
		}
		return toolset.ToolVersion{Backend: req.Backend, Request: req, Version: resolved, InstallPath: installPath(opts, req.Backend, resolved)}, nil
	}

	return toolset.ToolVersion{}, rerrors.New(rerrors.KindBackendResolve, "unknown tool request kind").WithDetail("backend", name)
}

func installPath(opts Options, ba toolset.BackendArg, version string) string {
	if opts.Dirs == nil {
		return ""
	}
	return opts.Dirs.InstallDir(ba.Short, version)
}

// resolveVersion applies §4.5 step 2's Version handling: alias
// substitution, then "latest" (lockfile pin if present, else newest
// stable), else a semver range/prefix match.
func resolveVersion(req toolset.ToolRequest, versions []string, opts Options) (string, error) {
	want := applyAlias(req.Backend.Full, req.Version, opts.Aliases)

	if want == "latest" {
		if opts.Lock != nil {
			if pinned, ok := opts.Lock.Version(req.Backend.Full); ok {
				return pinned, nil
			}
		}
		return newestStable(versions)
	}

	if isExactVersion(want, versions) {
		return want, nil
	}

	return highestMatchingRange(versions, want)
}

func applyAlias(backendName, version string, aliases map[string]map[string]string) string {
	if m, ok := aliases[backendName]; ok {
		if v, ok := m[version]; ok {
			return v
		}
	}
	return version
}

func isExactVersion(v string, versions []string) bool {
	for _, c := range versions {
		if c == v {
			return true
		}
	}
	return false
}

// newestStable returns the highest version in versions that doesn't parse
// as a semver pre-release, falling back to the first (assumed
// newest-first) entry when none are valid semver.
func newestStable(versions []string) (string, error) {
	var best *semver.Version
	var bestRaw string
	for _, v := range versions {
		parsed, err := semver.NewVersion(v)
		if err != nil || parsed.Prerelease() != "" {
			continue
		}
		if best == nil || parsed.GreaterThan(best) {
			best = parsed
			bestRaw = v
		}
	}
	if best != nil {
		return bestRaw, nil
	}
	if len(versions) == 0 {
		return "", rerrors.New(rerrors.KindVersionNotInstalled, "backend reported no versions")
	}
	return versions[0], nil
}

// highestMatchingRange returns the highest version in versions satisfying
// a semver constraint string (range, or a bare version used as a
// minimum-prefix match when it doesn't parse as a constraint).
func highestMatchingRange(versions []string, want string) (string, error) {
	constraint, err := semver.NewConstraint(want)
	if err == nil {
		var best *semver.Version
		var bestRaw string
		for _, v := range versions {
			parsed, perr := semver.NewVersion(v)
			if perr != nil || !constraint.Check(parsed) {
				continue
			}
			if best == nil || parsed.GreaterThan(best) {
				best = parsed
				bestRaw = v
			}
		}
		if best != nil {
			return bestRaw, nil
		}
	}
	return highestWithPrefix(versions, want)
}

func highestWithPrefix(versions []string, prefix string) (string, error) {
	var best *semver.Version
	var bestRaw string
	for _, v := range versions {
		if !strings.HasPrefix(v, prefix) {
			continue
		}
		parsed, err := semver.NewVersion(v)
		if err != nil {
			if bestRaw == "" {
				bestRaw = v
			}
			continue
		}
		if best == nil || parsed.GreaterThan(best) {
			best = parsed
			bestRaw = v
		}
	}
	if bestRaw == "" {
		return "", rerrors.New(rerrors.KindVersionNotInstalled, "no version matches").WithDetail("prefix", prefix)
	}
	return bestRaw, nil
}

// resolveSub implements "sub-N:orig" arithmetic (§3.2, §4.5): resolve
// orig_version to a concrete version (itself possibly a prefix), then
// subtract N from its minor component.
func resolveSub(req toolset.ToolRequest, versions []string) (string, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(req.Sub, "sub-"))
	if err != nil {
		return "", rerrors.Wrap(rerrors.KindBackendResolve, "invalid sub-N request", err).WithDetail("sub", req.Sub)
	}

	origResolved, err := highestWithPrefix(versions, req.SubOrig)
	if err != nil {
		origResolved = req.SubOrig
	}
	parsed, err := semver.NewVersion(origResolved)
	if err != nil {
		return "", rerrors.Wrap(rerrors.KindBackendResolve, "sub-N base version is not semver", err).WithDetail("version", origResolved)
	}
	minor := int(parsed.Minor()) - n
	if minor < 0 {
		return "", rerrors.New(rerrors.KindBackendResolve, "sub-N subtraction underflows minor version").
			WithDetail("base", origResolved).WithDetail("n", fmt.Sprint(n))
	}
	target := fmt.Sprintf("%d.%d", parsed.Major(), minor)
	return highestWithPrefix(versions, target)
}

// install acquires the per-backend disk lock (§5) and installs tv if still
// missing once the lock is held (another process may have raced us).
func install(ctx context.Context, ba toolset.BackendArg, tv toolset.ToolVersion, opts Options) error {
	b, ok := opts.Registry.Lookup(ba)
	if !ok {
		return rerrors.New(rerrors.KindBackendResolve, "no backend registered for tool").WithDetail("backend", ba.Full)
	}

	lockPath := opts.Dirs.InstallDir(ba.Short, ".lock")
	if err := rpath.EnsureDir(opts.Dirs.InstallDir(ba.Short, "")); err != nil {
		return rerrors.Wrap(rerrors.KindIoError, "failed to create install dir", err)
	}
	fl := flock.New(lockPath)
	lockCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()
	locked, err := fl.TryLockContext(lockCtx, 500*time.Millisecond)
	if err != nil || !locked {
		return rerrors.Wrap(rerrors.KindIoError, "failed to acquire backend install lock", err).WithDetail("backend", ba.Full)
	}
	defer fl.Unlock()

	if b.IsVersionInstalled(tv.InstallPath, tv.Version) {
		return nil
	}
	if err := b.Install(ctx, tv.InstallPath, tv.Version); err != nil {
		return rerrors.Wrap(rerrors.KindBackendResolve, "tool install failed", err).
			WithDetail("backend", ba.Full).WithDetail("version", tv.Version)
	}
	return nil
}
