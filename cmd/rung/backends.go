package main

import (
	"fmt"

	"github.com/rungtool/rung/internal/backend"
	"github.com/rungtool/rung/internal/backend/extract"
	"github.com/rungtool/rung/internal/rpath"
)

// builtinCoreTools lists the runtimes core ships directly rather than via a
// plugin (§9 Design Notes). Individual plugin backends (asdf/aqua/ubi/cargo
// /npm/...) are out of scope; this is a small, concrete demonstration of the
// core.Backend wiring, not an attempt at plugin parity.
var builtinCoreTools = []backend.CoreTool{
	{
		Name:        "direnv",
		Description: "direnv (core)",
		Owner:       "direnv", Repo: "direnv", TagPrefix: "v",
		Archive:    extract.ArchiveTypeRaw,
		BinaryName: "direnv",
		DownloadURL: func(version, goos, goarch string) string {
			return fmt.Sprintf("https://github.com/direnv/direnv/releases/download/v%s/direnv.%s-%s", version, goos, archAlias(goarch))
		},
		IdiomaticFiles: []string{".envrc"},
	},
	{
		Name:        "shellcheck",
		Description: "ShellCheck (core)",
		Owner:       "koalaman", Repo: "shellcheck", TagPrefix: "v",
		Archive:    extract.ArchiveTypeTarXz,
		BinaryName: "shellcheck",
		DownloadURL: func(version, goos, goarch string) string {
			return fmt.Sprintf("https://github.com/koalaman/shellcheck/releases/download/v%s/shellcheck-v%s.%s.%s.tar.xz", version, version, goos, archAlias(goarch))
		},
	},
}

func archAlias(goarch string) string {
	switch goarch {
	case "amd64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	default:
		return goarch
	}
}

// registerBuiltinBackends wires every builtinCoreTool into reg. The resolver
// only ever consults the registry for Version/Prefix/Sub requests —
// System/Ref/Path requests are resolved by its own Kind switch without a
// backend lookup — so no "system" backend is registered.
func registerBuiltinBackends(reg *backend.Registry, dirs *rpath.Dirs) {
	for _, tool := range builtinCoreTools {
		reg.Register(tool.Name, backend.NewCoreBackend(tool, dirs))
	}
}
