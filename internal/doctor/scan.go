package doctor

import (
	"os"
	"path/filepath"
	"strings"
)

// executableBits is the Unix permission bitmask for executable files (owner/group/other execute).
const executableBits os.FileMode = 0111

// scanForUnmanaged scans the shims directory for shims whose name doesn't
// match any backend in the resolved toolset. Bin directories derived from
// the toolset itself are never scanned here: everything under them was put
// there by rung's own install, by definition.
func (d *Doctor) scanForUnmanaged() ([]UnmanagedTool, error) {
	shimsDir, ok := d.scanPaths["shims"]
	if !ok {
		return nil, nil
	}

	entries, err := os.ReadDir(shimsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var unmanaged []UnmanagedTool
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		fullPath := filepath.Join(shimsDir, name)
		info, err := os.Stat(fullPath)
		if err != nil || info.IsDir() {
			continue
		}
		if info.Mode()&executableBits == 0 {
			continue
		}

		if !d.isManagedShim(name) {
			unmanaged = append(unmanaged, UnmanagedTool{Name: name, Path: fullPath})
		}
	}

	return unmanaged, nil
}

// isManagedShim reports whether name matches a backend's short name
// currently present in the resolved toolset.
func (d *Doctor) isManagedShim(name string) bool {
	if d.toolset == nil {
		return false
	}
	for _, backend := range d.toolset.Backends() {
		if tv, ok := d.toolset.Primary(backend); ok && tv.Backend.Short == name {
			return true
		}
	}
	return false
}
