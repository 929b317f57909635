// Package configwrite implements the write-back half of `rung use`/`rung
// unuse` (§4.2's structured TOML shape, supplemented): editing a config
// file's [tools] table in place, and, for `use --pin`, an idiomatic per-tool
// version file (.nvmrc, rust-toolchain.toml, ...). .tool-versions files are
// not written by this package.
//
// Grounded on internal/configfile's own pelletier/go-toml/v2 usage (the
// loader side of the same shape); this is its write-side counterpart.
package configwrite

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/rungtool/rung/internal/rerrors"
)

// PinVersion sets backend = version in path's [tools] table, creating the
// file (and table) if necessary. Existing keys the document doesn't
// recognize are preserved verbatim since the document is decoded generically.
func PinVersion(path, backend, version string) error {
	doc, err := readDoc(path)
	if err != nil {
		return err
	}
	tools, _ := doc["tools"].(map[string]any)
	if tools == nil {
		tools = map[string]any{}
	}
	tools[backend] = version
	doc["tools"] = tools
	return writeDoc(path, doc)
}

// UnpinVersion removes backend from path's [tools] table, if present.
func UnpinVersion(path, backend string) error {
	doc, err := readDoc(path)
	if err != nil {
		return err
	}
	tools, _ := doc["tools"].(map[string]any)
	if tools != nil {
		delete(tools, backend)
		doc["tools"] = tools
	}
	return writeDoc(path, doc)
}

// SetSetting sets key = value in path's [settings] table.
func SetSetting(path, key string, value any) error {
	doc, err := readDoc(path)
	if err != nil {
		return err
	}
	settings, _ := doc["settings"].(map[string]any)
	if settings == nil {
		settings = map[string]any{}
	}
	settings[key] = value
	doc["settings"] = settings
	return writeDoc(path, doc)
}

// UnsetSetting removes key from path's [settings] table.
func UnsetSetting(path, key string) error {
	doc, err := readDoc(path)
	if err != nil {
		return err
	}
	settings, _ := doc["settings"].(map[string]any)
	if settings != nil {
		delete(settings, key)
		doc["settings"] = settings
	}
	return writeDoc(path, doc)
}

// AddTask appends a task named name running the given script words (joined
// with single spaces) to path's [tasks] table.
func AddTask(path, name string, script []string) error {
	doc, err := readDoc(path)
	if err != nil {
		return err
	}
	tasksTable, _ := doc["tasks"].(map[string]any)
	if tasksTable == nil {
		tasksTable = map[string]any{}
	}
	joined := ""
	for i, s := range script {
		if i > 0 {
			joined += " "
		}
		joined += s
	}
	tasksTable[name] = map[string]any{"run": joined}
	doc["tasks"] = tasksTable
	return writeDoc(path, doc)
}

// WriteIdiomaticVersion overwrites an idiomatic per-tool version file (e.g.
// .nvmrc) with version, for "use --pin" (§4.2 shape 3, supplemented).
// rust-toolchain.toml is a structured TOML document rather than a bare
// version string, so it round-trips through the same generic-map path as
// PinVersion's [tools] table, keyed under toolchain.channel.
func WriteIdiomaticVersion(path, version string) error {
	if filepath.Base(path) == "rust-toolchain.toml" {
		doc, err := readDoc(path)
		if err != nil {
			return err
		}
		toolchain, _ := doc["toolchain"].(map[string]any)
		if toolchain == nil {
			toolchain = map[string]any{}
		}
		toolchain["channel"] = version
		doc["toolchain"] = toolchain
		return writeDoc(path, doc)
	}
	if err := os.WriteFile(path, []byte(version+"\n"), 0o644); err != nil {
		return rerrors.Wrap(rerrors.KindIoError, "failed to write idiomatic version file", err).WithDetail("path", path)
	}
	return nil
}

func readDoc(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, rerrors.Wrap(rerrors.KindIoError, "failed to read config for write-back", err).WithDetail("path", path)
	}
	doc := map[string]any{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, rerrors.Wrap(rerrors.KindConfigParse, "failed to parse config for write-back", err).WithDetail("path", path)
	}
	return doc, nil
}

func writeDoc(path string, doc map[string]any) error {
	data, err := toml.Marshal(doc)
	if err != nil {
		return rerrors.Wrap(rerrors.KindConfigParse, "failed to render config", err).WithDetail("path", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return rerrors.Wrap(rerrors.KindIoError, "failed to write config", err).WithDetail("path", path)
	}
	return nil
}
