// Package graph is the module graph walker and (module-granularity)
// tree-shaker. It resolves entries, parses the reachable module set, splits
// it into chunks along dynamic-import boundaries, and exposes exactly the
// surface pkg/jsroll needs (see Graph and Chunk below), so the orchestrator
// never reaches past it into parsing or resolution details.
package graph

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/coldog/jsroll/internal/asset"
	"github.com/coldog/jsroll/internal/bundle"
	"github.com/coldog/jsroll/internal/dag"
	"github.com/coldog/jsroll/internal/options"
	"github.com/coldog/jsroll/internal/plugin"
	"github.com/coldog/jsroll/internal/watch"
	"github.com/coldog/jsroll/pkg/module"
	"github.com/coldog/jsroll/pkg/resolve"
)

// Cache is an opaque snapshot handed back to callers that reuse caches
// across builds. It carries enough to skip re-parsing unchanged modules on a
// subsequent build.
type Cache struct {
	ModuleHashes map[string]string
}

// Graph owns the parsed module set, the emitted asset map, and the chunk
// list produced by the last Build call.
type Graph struct {
	in          *options.Input
	watchHandle *watch.Handle
	driver      *plugin.Driver[*options.Plugin]

	mu         sync.Mutex
	modules    map[string]*module.Module
	assets     map[string]*asset.Asset
	watchFiles []string
	chunks     []*Chunk
	entryRefs  []entryRef
}

// New constructs a Graph. watchHandle may be nil when the caller isn't in
// watch mode.
func New(in *options.Input, watchHandle *watch.Handle) *Graph {
	return &Graph{
		in:          in,
		watchHandle: watchHandle,
		driver:      plugin.New(in.Plugins),
		modules:     map[string]*module.Module{},
		assets:      map[string]*asset.Asset{},
	}
}

// PluginDriver exposes the Extension Driver so the Build/Generate
// Orchestrators can dispatch hooks without the Graph owning orchestration.
func (g *Graph) PluginDriver() *plugin.Driver[*options.Plugin] {
	return g.driver
}

// WatchFiles returns every module path discovered by the last Build call.
func (g *Graph) WatchFiles() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.watchFiles...)
}

// AssetsByID returns the assets emitted so far, keyed by logical name.
func (g *Graph) AssetsByID() map[string]*asset.Asset {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]*asset.Asset, len(g.assets))
	for k, v := range g.assets {
		out[k] = v
	}
	return out
}

// EmitAsset registers a new asset (used by the per-call asset-emission
// handles the Generate Orchestrator installs for generateBundle).
func (g *Graph) EmitAsset(a *asset.Asset) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.assets[a.Name] = a
}

// GetCache returns a snapshot of the content hash of every loaded module.
// No build reads a snapshot back: every build parses all of its modules.
func (g *Graph) GetCache() *Cache {
	g.mu.Lock()
	defer g.mu.Unlock()
	hashes := make(map[string]string, len(g.modules))
	for id, m := range g.modules {
		hashes[id] = m.Hash
	}
	return &Cache{ModuleHashes: hashes}
}

// entryRef pairs a resolved module id with its logical name (the map key
// for named inputs, or the basename-derived name otherwise).
type entryRef struct {
	name string
	id   string
}

// Build resolves entries, parses the reachable module graph, and returns
// the partitioned chunk list. It runs once per Rollup call.
func (g *Graph) Build(ctx context.Context, entries options.EntrySpec, manualChunks options.ManualChunksFunc, inlineDynamicImports, preserveModules bool) ([]*Chunk, error) {
	refs, err := g.resolveEntries(entries)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	g.entryRefs = refs
	g.mu.Unlock()

	if err := g.parseAll(ctx, refs); err != nil {
		return nil, err
	}

	g.mu.Lock()
	for id := range g.modules {
		g.watchFiles = append(g.watchFiles, id)
	}
	g.mu.Unlock()

	if g.watchHandle != nil {
		if err := g.watchHandle.Watch(g.watchFiles...); err != nil {
			log.Warn().Err(err).Msg("graph: failed to register watch paths")
		}
	}

	g.warnUnresolvableDynamicImports()

	var chunks []*Chunk
	switch {
	case preserveModules:
		chunks = g.partitionPreserveModules(refs)
	default:
		chunks, err = g.partitionDefault(refs, manualChunks, inlineDynamicImports)
		if err != nil {
			return nil, err
		}
	}

	g.mu.Lock()
	g.chunks = chunks
	g.mu.Unlock()
	return chunks, nil
}

func (g *Graph) resolveEntries(entries options.EntrySpec) ([]entryRef, error) {
	cwd, err := filepath.Abs(".")
	if err != nil {
		return nil, err
	}

	var refs []entryRef
	switch entries.Kind {
	case options.EntrySingle:
		id, err := resolve.Resolve(cwd, entries.Single)
		if err != nil {
			return nil, fmt.Errorf("could not resolve entry %q: %w", entries.Single, err)
		}
		refs = append(refs, entryRef{name: entryName(id), id: id})
	case options.EntryList:
		for _, spec := range entries.List {
			id, err := resolve.Resolve(cwd, spec)
			if err != nil {
				return nil, fmt.Errorf("could not resolve entry %q: %w", spec, err)
			}
			refs = append(refs, entryRef{name: entryName(id), id: id})
		}
	case options.EntryNamed:
		for _, name := range sortedKeys(entries.Named) {
			spec := entries.Named[name]
			id, err := resolve.Resolve(cwd, spec)
			if err != nil {
				return nil, fmt.Errorf("could not resolve entry %q: %w", spec, err)
			}
			refs = append(refs, entryRef{name: name, id: id})
		}
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("no entry modules specified")
	}
	return refs, nil
}

func entryName(id string) string {
	base := filepath.Base(id)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

// parseAll discovers and parses every module reachable from refs, via both
// static and dynamic import edges, using the shared DAG engine for
// concurrent parsing. It does not yet decide chunk membership -- that is
// partitionDefault/partitionPreserveModules's job.
func (g *Graph) parseAll(ctx context.Context, refs []entryRef) error {
	frontier := map[string]bool{}
	for _, r := range refs {
		frontier[r.id] = true
	}

	for len(frontier) > 0 {
		ids := make([]string, 0, len(frontier))
		for id := range frontier {
			ids = append(ids, id)
		}
		frontier = map[string]bool{}

		discovered := make([][]string, len(ids))
		var discMu sync.Mutex

		d := &dag.DAG{
			Concurrency: 8,
			Nodes:       map[int][]int{},
			Process: func(ctx context.Context, nodeID int) error {
				id := ids[nodeID]
				mod, err := g.parseOne(id)
				if err != nil {
					return err
				}
				// Dynamic import targets are always discovered and parsed
				// here regardless of inlineDynamicImports: inlining only
				// changes whether they get their own chunk, not whether
				// their code is needed.
				next := append([]string{}, mod.StaticSpecifiers()...)
				next = append(next, mod.DynamicSpecifiers()...)

				var children []string
				for _, spec := range next {
					childID, err := resolve.Resolve(filepath.Dir(id), spec)
					if err != nil {
						log.Warn().Str("from", id).Str("specifier", spec).Err(err).Msg("graph: failed to resolve import")
						continue
					}
					children = append(children, childID)
				}
				discMu.Lock()
				discovered[nodeID] = children
				discMu.Unlock()
				return nil
			},
		}
		for i := range ids {
			d.Nodes[i] = nil // parsing one module has no dependency on another module's parse
		}
		if err := d.Solve(ctx); err != nil {
			return err
		}

		for _, children := range discovered {
			for _, childID := range children {
				g.mu.Lock()
				_, already := g.modules[childID]
				g.mu.Unlock()
				if !already {
					frontier[childID] = true
				}
			}
		}
	}
	return nil
}

func (g *Graph) parseOne(id string) (*module.Module, error) {
	g.mu.Lock()
	if m, ok := g.modules[id]; ok {
		g.mu.Unlock()
		return m, nil
	}
	g.mu.Unlock()

	src, err := readFile(id)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", id, err)
	}
	mod := module.Parse(id, src)

	g.mu.Lock()
	g.modules[id] = mod
	g.mu.Unlock()
	return mod, nil
}

// warnUnresolvableDynamicImports emits DYNAMIC_IMPORT_WILL_NOT_SPLIT for
// every module with a non-literal import() argument: such a call site can't
// be resolved to a chunk boundary, so the bundler keeps it inline rather
// than failing the build.
func (g *Graph) warnUnresolvableDynamicImports() {
	if g.in.OnWarn == nil {
		return
	}
	g.mu.Lock()
	ids := make([]string, 0, len(g.modules))
	for id, mod := range g.modules {
		if mod.HasUnresolvableDynamicImport() {
			ids = append(ids, id)
		}
	}
	g.mu.Unlock()
	sort.Strings(ids)
	for _, id := range ids {
		g.in.OnWarn(&options.Warning{
			Code:    "DYNAMIC_IMPORT_WILL_NOT_SPLIT",
			Message: fmt.Sprintf("%s: a dynamic import argument could not be resolved to a literal specifier, so it will not be split into its own chunk", id),
		}, func(*options.Warning) {
			log.Warn().Str("module", id).Msg("dynamic import will not split")
		})
	}
}

// warnFunc adapts the caller's WarnHandler to the plain sink internal/render
// takes, threading the default structured-log fallback through.
func (g *Graph) warnFunc() func(*options.Warning) {
	if g.in.OnWarn == nil {
		return nil
	}
	return func(w *options.Warning) {
		g.in.OnWarn(w, func(w *options.Warning) {
			log.Warn().Str("code", w.Code).Msg(w.Message)
		})
	}
}

// EntryModuleIDs returns the resolved ids of the true user-provided entries
// (not dynamic-import-target facades), in resolution order -- the inputBase
// computation the Generate Orchestrator needs only ever looks at these.
func (g *Graph) EntryModuleIDs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := make([]string, len(g.entryRefs))
	for i, r := range g.entryRefs {
		ids[i] = r.id
	}
	return ids
}

// Chunks returns the chunk list produced by the last Build call.
func (g *Graph) Chunks() []*Chunk {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*Chunk(nil), g.chunks...)
}

// FinaliseAssets builds the initial OutputBundle, finalizing every standing
// (previously emitted but not yet named) asset against pattern.
func (g *Graph) FinaliseAssets(pattern string) (*bundle.Bundle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	b := bundle.New()
	used := map[string]bool{}
	for _, a := range g.assets {
		if a.Finalized() {
			b.Set(a.FileName, &bundle.AssetEntry{FileName: a.FileName, Source: a.Source, IsAsset: true})
			used[a.FileName] = true
			continue
		}
		if err := asset.FinaliseAsset(a, b, pattern, used); err != nil {
			return nil, err
		}
	}
	return b, nil
}
