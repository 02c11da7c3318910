package jsroll

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/coldog/jsroll/internal/asset"
	"github.com/coldog/jsroll/internal/bundle"
	"github.com/coldog/jsroll/internal/dag"
	"github.com/coldog/jsroll/internal/graph"
	"github.com/coldog/jsroll/internal/options"
	"github.com/coldog/jsroll/internal/plugin"
	"github.com/coldog/jsroll/internal/render"
	"github.com/coldog/jsroll/pkg/resolve"
)

// Generate runs the generate phase with isWrite=false and returns the
// finalized bundle without touching the filesystem.
func (h *Handle) Generate(ctx context.Context, rawOut *options.RawOutput) (*GenerateResult, error) {
	b, _, err := h.generate(ctx, rawOut, false)
	if err != nil {
		return nil, err
	}
	return &GenerateResult{Bundle: b}, nil
}

// generate is the shared pipeline body Generate and Write both drive; it
// also hands the caller the normalized Output so Write can reuse it for the
// write-target validation and the writes themselves.
func (h *Handle) generate(ctx context.Context, rawOut *options.RawOutput, isWrite bool) (*bundle.Bundle, *options.Output, error) {
	stop := h.timings.Start("generate")
	defer stop()

	chunks := h.graph.Chunks()
	driver := h.graph.PluginDriver()

	out, err := options.NormalizeOutput(rawOut, h.in, len(chunks) > 1)
	if err != nil {
		return nil, nil, err
	}

	b, err := h.graph.FinaliseAssets(out.AssetFileNames)
	if err != nil {
		return nil, nil, err
	}

	inputBase := resolve.CommonDir(h.graph.EntryModuleIDs())

	if err := driver.RunParallel(ctx, renderStartSelect); err != nil {
		renderErr := driver.RunParallel(ctx, renderErrorSelect(err))
		if renderErr != nil {
			return nil, nil, renderErr
		}
		return nil, nil, err
	}

	addons, err := resolveAddons(ctx, driver)
	if err != nil {
		if renderErr := driver.RunParallel(ctx, renderErrorSelect(err)); renderErr != nil {
			return nil, nil, renderErr
		}
		return nil, nil, err
	}

	if h.takeOptimizeGate(out.OptimizeChunks) {
		chunks = h.graph.OptimizeChunks(chunks, h.in.ChunkGroupingSize)
	}

	if genErr := prerenderChunks(out, inputBase, chunks); genErr != nil {
		if renderErr := driver.RunParallel(ctx, renderErrorSelect(genErr)); renderErr != nil {
			return nil, nil, renderErr
		}
		return nil, nil, genErr
	}

	nameChunks(out, addons, inputBase, h.in.PreserveModules, chunks)

	warnDeprecatedOnGenerate(driver, h.in.OnWarn)

	entries, renderErr2 := renderChunksParallel(ctx, out, addons, chunks, driver)
	if renderErr2 != nil {
		if renderErr := driver.RunParallel(ctx, renderErrorSelect(renderErr2)); renderErr != nil {
			return nil, nil, renderErr
		}
		return nil, nil, renderErr2
	}
	for _, e := range entries {
		b.Set(e.FileName, e)
	}

	used := map[string]bool{}
	for _, name := range b.FileNames() {
		used[name] = true
	}
	emit := asset.NewEmitter(h.graph.AssetsByID(), out.AssetFileNames, used)

	if err := driver.RunSequential(ctx, generateBundleSelect(out, b, emit, isWrite)); err != nil {
		return nil, nil, err
	}

	if err := emit.FinaliseAll(); err != nil {
		return nil, nil, err
	}
	_ = emit.Each(func(a *asset.Asset) error {
		if !b.Has(a.FileName) {
			b.Set(a.FileName, &bundle.AssetEntry{FileName: a.FileName, Source: a.Source, IsAsset: true})
		}
		return nil
	})

	return b, out, nil
}

func renderStartSelect(_ int, p *options.Plugin) plugin.Hook {
	if p.RenderStart == nil {
		return nil
	}
	return p.RenderStart
}

func renderErrorSelect(renderErr error) plugin.Select[*options.Plugin] {
	return func(_ int, p *options.Plugin) plugin.Hook {
		if p.RenderError == nil {
			return nil
		}
		return func(ctx context.Context) error {
			return p.RenderError(ctx, renderErr)
		}
	}
}

func generateBundleSelect(out *options.Output, b *bundle.Bundle, emit *asset.Emitter, isWrite bool) plugin.Select[*options.Plugin] {
	return func(_ int, p *options.Plugin) plugin.Hook {
		if p.GenerateBundle == nil {
			return nil
		}
		return func(ctx context.Context) error {
			return p.GenerateBundle(ctx, out, b, emit, isWrite)
		}
	}
}

// warnDeprecatedOnGenerate emits one PLUGIN_WARNING per plugin that still
// implements the deprecated ongenerate hook, naming its declaration position
// (1-based) so the author can find it in their plugin list.
func warnDeprecatedOnGenerate(driver *plugin.Driver[*options.Plugin], onWarn options.WarnHandler) {
	if onWarn == nil {
		return
	}
	for i, p := range driver.Plugins {
		if p.OnGenerate == nil {
			continue
		}
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("at position %d", i+1)
		} else {
			name = fmt.Sprintf("%s (at position %d)", name, i+1)
		}
		onWarn(&options.Warning{
			Code:       "PLUGIN_WARNING",
			PluginCode: "ONGENERATE_HOOK_DEPRECATED",
			Message:    fmt.Sprintf("the ongenerate hook used by plugin %s is deprecated; use generateBundle instead", name),
		}, func(*options.Warning) {})
	}
}

// resolveAddons concatenates every plugin's banner/footer/intro/outro
// contribution in declaration order (not first-wins: every plugin that
// implements an addon hook contributes to that addon's final text).
func resolveAddons(ctx context.Context, driver *plugin.Driver[*options.Plugin]) (render.Addons, error) {
	var a render.Addons
	for _, p := range driver.Plugins {
		if p.Banner != nil {
			s, err := p.Banner(ctx)
			if err != nil {
				return a, err
			}
			a.Banner = join(a.Banner, s)
		}
		if p.Footer != nil {
			s, err := p.Footer(ctx)
			if err != nil {
				return a, err
			}
			a.Footer = join(a.Footer, s)
		}
		if p.Intro != nil {
			s, err := p.Intro(ctx)
			if err != nil {
				return a, err
			}
			a.Intro = join(a.Intro, s)
		}
		if p.Outro != nil {
			s, err := p.Outro(ctx)
			if err != nil {
				return a, err
			}
			a.Outro = join(a.Outro, s)
		}
	}
	return a, nil
}

func join(existing, next string) string {
	if next == "" {
		return existing
	}
	if existing == "" {
		return next
	}
	return existing + "\n" + next
}

// prerenderChunks runs both pre-render passes: export-mode resolution, then
// each chunk's own dependency-ordered skeleton.
func prerenderChunks(out *options.Output, inputBase string, chunks []*graph.Chunk) error {
	for _, c := range chunks {
		if err := c.GenerateInternalExports(out); err != nil {
			return err
		}
	}
	for _, c := range chunks {
		if err := c.PreRender(out, inputBase); err != nil {
			return err
		}
	}
	return nil
}

// nameChunks assigns every chunk's final output id: a single explicit
// output.file short-circuits straight to its basename
// (valid only for a single chunk, already enforced by NormalizeOutput);
// preserveModules mirrors the source tree; otherwise entryFileNames names
// facade chunks and chunkFileNames names the rest, with usedIds shared
// across the whole chunk set so collisions are caught globally.
func nameChunks(out *options.Output, addons render.Addons, inputBase string, preserveModules bool, chunks []*graph.Chunk) {
	usedIDs := map[string]bool{}

	if out.File != "" && len(chunks) == 1 {
		chunks[0].GenerateID(filepath.Base(out.File), "", addons, out, usedIDs)
		return
	}

	for _, c := range chunks {
		if preserveModules {
			id := c.GenerateIDPreserveModules(inputBase)
			usedIDs[id] = true
			continue
		}
		pattern := out.ChunkFileNames
		if c.IsEntryModuleFacade() {
			pattern = out.EntryFileNames
		}
		c.GenerateID(pattern, "", addons, out, usedIDs)
	}
}

// renderChunksParallel renders every chunk concurrently via the shared DAG
// engine (chunk renders have no dependency on one another once membership
// and naming are fixed), dispatching each chunk's deprecated `ongenerate`
// hook as it completes.
func renderChunksParallel(ctx context.Context, out *options.Output, addons render.Addons, chunks []*graph.Chunk, driver *plugin.Driver[*options.Plugin]) ([]*bundle.ChunkEntry, error) {
	entries := make([]*bundle.ChunkEntry, len(chunks))

	d := &dag.DAG{
		Concurrency: 8,
		Nodes:       map[int][]int{},
		Process: func(ctx context.Context, nodeID int) error {
			c := chunks[nodeID]
			code, srcMap, err := c.Render(out, addons)
			if err != nil {
				return err
			}

			entries[nodeID] = &bundle.ChunkEntry{
				FileName: c.ID(),
				IsEntry:  c.IsEntryModuleFacade(),
				Imports:  c.ImportIDs(),
				Exports:  c.ExportNames(),
				Modules:  c.RenderedModules(),
				Code:     code,
				Map:      srcMap,
			}

			return driver.RunParallel(ctx, onGenerateSelect(c.ID()))
		},
	}
	for i := range chunks {
		d.Nodes[i] = nil
	}
	if err := d.Solve(ctx); err != nil {
		return nil, err
	}
	return entries, nil
}

func onGenerateSelect(chunkID string) plugin.Select[*options.Plugin] {
	return func(_ int, p *options.Plugin) plugin.Hook {
		if p.OnGenerate == nil {
			return nil
		}
		return func(ctx context.Context) error {
			return p.OnGenerate(ctx, chunkID)
		}
	}
}
