// Package pathcompose implements the PATH composer (component I, §4.6):
// combining the system PATH, config path_dirs, a venv path, backend-declared
// extra paths, and resolved tool bin dirs into one final, deterministic
// ordering.
package pathcompose

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rungtool/rung/internal/toolset"
)

// Inputs bundles every composition input (§4.6).
type Inputs struct {
	SystemPath    []string // original $PATH entries, in order
	ShimsDir      string   // the user's shims directory, if any; see step 6
	EnvPaths      []string // from _.path directives, inner-most first
	ConfigDirs    []string // config path_dirs, outer to inner
	VenvPath      string   // UV/venv bin dir, empty if none
	ToolAddPaths  []string // backend-declared extra dirs
	Toolset       *toolset.Toolset
	ProjectRoot   string
}

// Compose builds the final PATH directory list per §4.6's six-step order.
// Its output is a pure function of its inputs and is safe to cache by
// (project_root, sorted installed versions) — see Cache below.
func Compose(in Inputs) []string {
	var front []string // never deduplicated against system PATH (§4.6 closing para)
	front = append(front, in.EnvPaths...)
	front = append(front, in.ConfigDirs...)

	var deduped []string // deduplicated against system PATH
	if in.VenvPath != "" {
		deduped = append(deduped, in.VenvPath)
	}
	deduped = append(deduped, in.ToolAddPaths...)
	if in.Toolset != nil {
		for _, backend := range in.Toolset.Backends() {
			if tv, ok := in.Toolset.Primary(backend); ok && tv.InstallPath != "" {
				deduped = append(deduped, binDirFor(tv))
			}
		}
	}

	preShims, postShims := splitAtShims(in.SystemPath, in.ShimsDir)

	systemSet := map[string]bool{}
	for _, p := range in.SystemPath {
		systemSet[p] = true
	}
	deduped = dedupAdjacentPreserveFirst(dedupAgainst(deduped, systemSet))

	out := make([]string, 0, len(front)+len(preShims)+len(deduped)+len(postShims))
	out = append(out, preShims...)
	out = append(out, front...)
	out = append(out, deduped...)
	out = append(out, postShims...)
	return out
}

func binDirFor(tv toolset.ToolVersion) string {
	return filepath.Join(tv.InstallPath, "bin")
}

// splitAtShims implements §4.6 step 6: entries before the shims dir in the
// original PATH are "pre-mise" and stay in front; entries after (and the
// shims entry itself) are "post-mise". Absent shims, everything is post.
func splitAtShims(systemPath []string, shimsDir string) (pre, post []string) {
	if shimsDir == "" {
		return nil, systemPath
	}
	idx := -1
	for i, p := range systemPath {
		if filepath.Clean(p) == filepath.Clean(shimsDir) {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, systemPath
	}
	return append([]string(nil), systemPath[:idx]...), append([]string(nil), systemPath[idx:]...)
}

// dedupAgainst removes entries from list that already appear in against, as
// per §4.6: "Tool paths are deduplicated against the original PATH."
func dedupAgainst(list []string, against map[string]bool) []string {
	var out []string
	for _, p := range list {
		if against[p] {
			continue
		}
		out = append(out, p)
	}
	return out
}

// dedupAdjacentPreserveFirst removes duplicate entries anywhere in the
// slice, keeping the first (highest-precedence) occurrence.
func dedupAdjacentPreserveFirst(list []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(list))
	for _, p := range list {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// Join renders a composed PATH list into a colon-separated string.
func Join(dirs []string) string {
	return strings.Join(dirs, ":")
}

// cacheKey is (project_root, sorted installed versions) per §4.6's closing
// paragraph: "cached per (project_root, sorted_installed_versions)".
func cacheKey(projectRoot string, versions []string) string {
	sorted := append([]string(nil), versions...)
	h := sha256.New()
	h.Write([]byte(projectRoot))
	for _, v := range sorted {
		h.Write([]byte{0})
		h.Write([]byte(v))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Cache memoises Compose results keyed by (project_root, sorted installed
// versions), satisfying the determinism + caching requirement of §4.6 and
// invariant 4 of §8.
type Cache struct {
	mu    sync.Mutex
	byKey map[string][]string
}

// NewCache creates an empty Cache.
func NewCache() *Cache {
	return &Cache{byKey: make(map[string][]string)}
}

// Get composes (or returns the cached composition for) in, keyed by
// projectRoot and the sorted list of "<backend>@<version>" strings that
// describe the currently installed toolset.
func (c *Cache) Get(projectRoot string, versionKeys []string, in Inputs) []string {
	key := cacheKey(projectRoot, versionKeys)

	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok := c.byKey[key]; ok {
		return cached
	}
	result := Compose(in)
	c.byKey[key] = result
	return result
}
