package main

import (
	"context"
	"os"

	"github.com/rungtool/rung/internal/backend"
	"github.com/rungtool/rung/internal/configgraph"
	"github.com/rungtool/rung/internal/installprogress"
	"github.com/rungtool/rung/internal/lockfile"
	"github.com/rungtool/rung/internal/toolresolve"
	"github.com/rungtool/rung/internal/toolset"
)

// resolveToolset resolves a config graph's winning tool requests into a
// concrete Toolset, honouring the sibling mise.lock pin file (sited next
// to the innermost discovered config) and auto-installing missing versions
// when autoInstall is set. Installs drive a spinner-bar progress display on
// stderr.
func resolveToolset(ctx context.Context, graph *configgraph.Graph, autoInstall bool) (*toolset.Toolset, error) {
	reg := backend.NewRegistry()
	registerBuiltinBackends(reg, &cfg.Dirs)

	var lock *lockfile.File
	aliases := map[string]map[string]string{}
	if len(graph.Files) > 0 {
		innermost := graph.Files[len(graph.Files)-1]
		l, err := lockfile.Load(lockfile.PathFor(innermost.Path))
		if err != nil {
			return nil, err
		}
		lock = l
		for _, cf := range graph.Files {
			for backendName, table := range cf.Alias {
				if aliases[backendName] == nil {
					aliases[backendName] = map[string]string{}
				}
				for alias, v := range table {
					aliases[backendName][alias] = v
				}
			}
		}
	}

	var reporter *installprogress.Reporter
	if autoInstall {
		reporter = installprogress.New(os.Stderr)
		defer reporter.Wait()
	}

	return toolresolve.Resolve(ctx, graph.WinningToolRequests(), toolresolve.Options{
		Dirs:           &cfg.Dirs,
		Registry:       reg,
		Lock:           lock,
		Aliases:        aliases,
		AutoInstall:    autoInstall,
		OnInstallStart: reporterStart(reporter),
		OnInstallDone:  reporterDone(reporter),
	})
}

func reporterStart(r *installprogress.Reporter) func(string, string) {
	if r == nil {
		return nil
	}
	return r.Start
}

func reporterDone(r *installprogress.Reporter) func(string, string, error) {
	if r == nil {
		return nil
	}
	return r.Done
}
