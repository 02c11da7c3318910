// Package jsroll is the build pipeline: the single entry point that
// normalizes a caller's configuration, drives the module graph through one
// build, and returns a Handle the caller uses to generate (and optionally
// write) one or more output bundles from that build. Plugin hook dispatch is
// threaded through internal/plugin at every phase boundary.
package jsroll

import (
	"context"
	"sync"

	"github.com/coldog/jsroll/internal/graph"
	"github.com/coldog/jsroll/internal/options"
	"github.com/coldog/jsroll/internal/perf"
	"github.com/coldog/jsroll/internal/plugin"
	"github.com/coldog/jsroll/internal/watch"
)

var (
	curWatcherMu sync.Mutex
	curWatcher   *watch.Handle
)

// SetWatcher installs the process-scoped watch handle the next Rollup call
// will register discovered module paths against, then clear. A watch-mode
// front end (out of this package's scope) calls this once per rebuild cycle
// it wants to observe; Rollup consumes and clears it before any suspension
// point, so a concurrent caller can never observe the same handle handed to
// two builds.
func SetWatcher(h *watch.Handle) {
	curWatcherMu.Lock()
	curWatcher = h
	curWatcherMu.Unlock()
}

func takeWatcher() *watch.Handle {
	curWatcherMu.Lock()
	defer curWatcherMu.Unlock()
	h := curWatcher
	curWatcher = nil
	return h
}

// Rollup runs the build phase exactly once and returns a Handle for
// generating output from the resulting module graph.
func Rollup(ctx context.Context, raw *options.RawInput) (*Handle, error) {
	in, err := options.NormalizeInput(raw, pluginOptionsHook(raw))
	if err != nil {
		return nil, err
	}

	var timings *perf.Timings
	if in.Perf {
		timings = perf.New(nil)
	}
	stop := timings.Start("build")
	defer stop()

	watchHandle := takeWatcher()
	g := graph.New(in, watchHandle)
	driver := g.PluginDriver()

	if err := driver.RunParallel(ctx, buildStartSelect); err != nil {
		return nil, err
	}

	_, buildErr := g.Build(ctx, in.Input, in.ManualChunks, in.InlineDynamicImports, in.PreserveModules)

	buildEndErr := driver.RunParallel(ctx, buildEndSelect(buildErr))
	if buildEndErr != nil {
		return nil, buildEndErr
	}
	if buildErr != nil {
		return nil, buildErr
	}

	return &Handle{in: in, graph: g, watch: watchHandle, timings: timings}, nil
}

// pluginOptionsHook threads raw through every plugin's Options hook in
// declaration order, each replacement (when non-nil) becoming the input to
// the next -- the "options" hook's first-special dispatch mode.
func pluginOptionsHook(raw *options.RawInput) options.PluginOptionsHook {
	return func(in *options.RawInput) (*options.RawInput, error) {
		cur := in
		for _, p := range raw.Plugins {
			if p == nil || p.Options == nil {
				continue
			}
			replacement, err := p.Options(cur)
			if err != nil {
				return nil, err
			}
			if replacement != nil {
				cur = replacement
			}
		}
		return cur, nil
	}
}

func buildStartSelect(_ int, p *options.Plugin) plugin.Hook {
	if p.BuildStart == nil {
		return nil
	}
	return p.BuildStart
}

func buildEndSelect(buildErr error) plugin.Select[*options.Plugin] {
	return func(_ int, p *options.Plugin) plugin.Hook {
		if p.BuildEnd == nil {
			return nil
		}
		return func(ctx context.Context) error {
			return p.BuildEnd(ctx, buildErr)
		}
	}
}
