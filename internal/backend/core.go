package backend

import (
	"context"
	"fmt"
	"net/http"
	"runtime"

	"github.com/rungtool/rung/internal/backend/download"
	"github.com/rungtool/rung/internal/backend/extract"
	"github.com/rungtool/rung/internal/backend/place"
	"github.com/rungtool/rung/internal/github"
	"github.com/rungtool/rung/internal/rpath"
)

// CoreTool describes a runtime bundled directly into the core backend
// rather than delegated to a plugin (§9 Design Notes: core ships the
// handful of runtimes common enough to not need a plugin round-trip).
type CoreTool struct {
	Name        string
	Description string

	// GitHub repo releases are enumerated and resolved from, e.g. "nodejs", "node".
	Owner, Repo, TagPrefix string

	// DownloadURL builds the release asset URL for a resolved version and
	// the current GOOS/GOARCH.
	DownloadURL func(version, goos, goarch string) string
	Archive     extract.ArchiveType
	BinaryName  string

	// IdiomaticFiles are filenames (not paths) this tool owns for
	// ParseIdiomaticFile, e.g. ".node-version", ".nvmrc".
	IdiomaticFiles []string
}

// coreBackend implements Backend for a single bundled runtime by
// downloading and extracting upstream GitHub release archives (§9: "core
// backends may shell out to a downloader/extractor, same as a plugin
// would").
type coreBackend struct {
	tool       CoreTool
	httpClient *http.Client
	downloader download.Downloader
	dirs       *rpath.Dirs
}

// NewCoreBackend wires a CoreTool descriptor to the download/extract/place
// pipeline shared with plugin-style backends.
func NewCoreBackend(tool CoreTool, dirs *rpath.Dirs) Backend {
	return &coreBackend{
		tool:       tool,
		httpClient: github.NewHTTPClient(github.Token()),
		downloader: download.NewDownloader(),
		dirs:       dirs,
	}
}

func (b *coreBackend) Description() string { return b.tool.Description }

func (b *coreBackend) ListAllVersions(ctx context.Context) ([]string, error) {
	return github.ListReleases(ctx, b.httpClient, b.tool.Owner, b.tool.Repo, b.tool.TagPrefix, 3)
}

func (b *coreBackend) IsVersionInstalled(installPath, version string) bool {
	return rpath.IsInstalled(installPath)
}

func (b *coreBackend) Install(ctx context.Context, installPath, version string) error {
	url := b.tool.DownloadURL(version, runtime.GOOS, runtime.GOARCH)
	destPath := b.dirs.DownloadsDir() + "/" + b.tool.Name + "-" + version + archiveSuffix(b.tool.Archive)

	archivePath, err := b.downloader.Download(ctx, url, destPath)
	if err != nil {
		return fmt.Errorf("download %s %s: %w", b.tool.Name, version, err)
	}

	extractor, err := extract.NewExtractor(b.tool.Archive)
	if err != nil {
		return err
	}
	if err := rpath.EnsureDir(installPath); err != nil {
		return err
	}
	f, err := openForExtract(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	return extractor.Extract(f, installPath)
}

func (b *coreBackend) Uninstall(ctx context.Context, installPath string) error {
	return (&noopPlacer{}).Cleanup(installPath)
}

func (b *coreBackend) ListBinPaths(installPath, version string) ([]string, error) {
	return []string{"bin"}, nil
}

func (b *coreBackend) ParseIdiomaticFile(path string) (string, bool, error) {
	for _, name := range b.tool.IdiomaticFiles {
		if pathBase(path) == name {
			v, err := readTrimmedFile(path)
			return v, err == nil, err
		}
	}
	return "", false, nil
}

func (b *coreBackend) SymlinkPath(installPath string) string {
	return installPath + "/bin/" + b.tool.BinaryName
}

// noopPlacer reuses place.Placer's Cleanup semantics (remove-if-exists)
// without needing a configured tools/bin directory pair.
type noopPlacer struct{}

func (noopPlacer) Cleanup(path string) error {
	return place.NewPlacer("", "").Cleanup(path)
}

func archiveSuffix(a extract.ArchiveType) string {
	switch a {
	case extract.ArchiveTypeTarGz:
		return ".tar.gz"
	case extract.ArchiveTypeTarXz:
		return ".tar.xz"
	case extract.ArchiveTypeZip:
		return ".zip"
	default:
		return ""
	}
}
