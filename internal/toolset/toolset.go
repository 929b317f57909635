// Package toolset implements the core data model shared by config loading,
// resolution, and PATH composition (§3.1-§3.4): backend identifiers, the
// ToolRequest sum type, resolved ToolVersions, and the ordered Toolset they
// merge into.
package toolset

import (
	"fmt"

	"github.com/rungtool/rung/internal/rpath"
)

// BackendArg identifies a tool backend and its logical short name (§3.1).
// Equality is by Full; a BackendArg is immutable once parsed.
type BackendArg struct {
	Short string
	Full  string
	Opts  map[string]string
}

// ParseBackendArg parses a backend identifier such as "node", "npm:prettier"
// or "ubi:BurntSushi/ripgrep[exe=rg]" into short/full/opts form.
func ParseBackendArg(raw string) BackendArg {
	full := raw
	short := raw
	opts := map[string]string{}

	if i := indexByte(raw, '['); i >= 0 && raw[len(raw)-1] == ']' {
		opts = parseOpts(raw[i+1 : len(raw)-1])
		full = raw[:i]
		short = full
	}
	if i := indexByte(short, ':'); i >= 0 {
		short = short[i+1:]
	}
	if i := indexByte(short, '/'); i >= 0 {
		short = short[i+1:]
	}
	return BackendArg{Short: short, Full: full, Opts: opts}
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func parseOpts(raw string) map[string]string {
	opts := map[string]string{}
	key, val := "", ""
	inVal := false
	flush := func() {
		if key != "" {
			opts[key] = val
		}
		key, val = "", ""
		inVal = false
	}
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c == ',':
			flush()
		case c == '=' && !inVal:
			inVal = true
		case inVal:
			val += string(c)
		default:
			key += string(c)
		}
	}
	flush()
	return opts
}

// ToolSource identifies where a ToolRequest or the winning entry of a
// Toolset came from: a config file path, a CLI argument, or an idiomatic
// version file.
type ToolSource struct {
	Kind string // "config", "cli", "idiomatic"
	Path string
}

// RequestKind enumerates the ToolRequest sum-type variants (§3.2).
type RequestKind string

const (
	RequestVersion RequestKind = "version"
	RequestPrefix  RequestKind = "prefix"
	RequestRef     RequestKind = "ref"
	RequestPath    RequestKind = "path"
	RequestSub     RequestKind = "sub"
	RequestSystem  RequestKind = "system"
)

// RefKind enumerates the Ref variant's sub-kind.
type RefKind string

const (
	RefRef    RefKind = "ref"
	RefTag    RefKind = "tag"
	RefBranch RefKind = "branch"
	RefRev    RefKind = "rev"
)

// ToolRequest is the sum type of §3.2: exactly one of the fields relevant to
// Kind is populated. Represented as a flat struct (rather than an interface
// per variant) because every consumer needs to switch on Kind and the
// fields are few; this mirrors how the config loader naturally produces it
// from a TOML scalar/table.
type ToolRequest struct {
	Kind    RequestKind
	Backend BackendArg

	Version string // Kind == Version
	Source  ToolSource
	Options map[string]string

	Prefix string // Kind == Prefix

	RefKind  RefKind
	RefValue string // Kind == Ref

	Path string // Kind == Path

	Sub     string // Kind == Sub, e.g. "sub-1"
	SubOrig string // the original version string Sub is relative to
}

func (r ToolRequest) String() string {
	switch r.Kind {
	case RequestVersion:
		return r.Version
	case RequestPrefix:
		return "prefix:" + r.Prefix
	case RequestRef:
		return string(r.RefKind) + ":" + r.RefValue
	case RequestPath:
		return "path:" + r.Path
	case RequestSub:
		return fmt.Sprintf("%s:%s", r.Sub, r.SubOrig)
	case RequestSystem:
		return "system"
	default:
		return "unknown"
	}
}

// ToolVersion is the resolved form of a ToolRequest (§3.3).
type ToolVersion struct {
	Backend       BackendArg
	Version       string // exact resolved version string
	Request       ToolRequest
	InstallPath   string
	SymlinkTarget string
}

// Installed reports whether tv is considered installed (§3.3): its install
// path exists and is not a broken symlink. A System request is always
// considered installed — it shadows nothing and relies on the ambient tool.
func (tv ToolVersion) Installed() bool {
	if tv.Request.Kind == RequestSystem {
		return true
	}
	return rpath.IsInstalled(tv.InstallPath)
}

// Toolset is the ordered mapping BackendArg -> []ToolVersion produced by
// merging the config graph, CLI overrides, and the lockfile (§3.4). Order is
// preserved from the merge: for each backend, entry 0 is the one whose bin
// dir gets highest PATH priority.
type Toolset struct {
	order   []string // Full backend keys, merge order
	entries map[string][]ToolVersion
	Source  map[string]ToolSource // highest-priority source per backend
}

// NewToolset creates an empty Toolset.
func NewToolset() *Toolset {
	return &Toolset{entries: make(map[string][]ToolVersion), Source: make(map[string]ToolSource)}
}

// Add appends a resolved ToolVersion under its backend, creating the
// backend's entry in merge order on first use.
func (t *Toolset) Add(tv ToolVersion) {
	key := tv.Backend.Full
	if _, ok := t.entries[key]; !ok {
		t.order = append(t.order, key)
	}
	t.entries[key] = append(t.entries[key], tv)
}

// Backends returns backend keys in merge order.
func (t *Toolset) Backends() []string {
	return append([]string(nil), t.order...)
}

// Versions returns the resolved ToolVersions for backend, in priority order.
func (t *Toolset) Versions(backend string) []ToolVersion {
	return t.entries[backend]
}

// Primary returns the highest-priority ToolVersion for backend, if any.
func (t *Toolset) Primary(backend string) (ToolVersion, bool) {
	vs := t.entries[backend]
	if len(vs) == 0 {
		return ToolVersion{}, false
	}
	return vs[0], true
}

// Len returns the number of distinct backends in the toolset.
func (t *Toolset) Len() int { return len(t.order) }
