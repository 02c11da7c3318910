package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/coldog/jsroll/internal/bundle"
	"github.com/coldog/jsroll/internal/options"
	"github.com/coldog/jsroll/internal/render"
	"github.com/coldog/jsroll/pkg/module"
	"github.com/coldog/jsroll/pkg/resolve"
)

// Chunk is a set of modules destined for one output file, plus everything
// needed to name, link, and render that file.
type Chunk struct {
	g *Graph

	entryModuleID   string
	isFacade        bool
	preserveModules bool
	name            string

	modules        []string
	crossImports   []*Chunk
	dynamicImports []*Chunk

	id         string // assigned by GenerateID/GenerateIDPreserveModules
	exportMode render.ExportMode
	exports    []string
	ordered    []string // modules, topologically sorted for emission
}

// ID returns this chunk's assigned output file id, or "" before
// GenerateID/GenerateIDPreserveModules has run.
func (c *Chunk) ID() string {
	return c.id
}

// EntryModule returns the chunk's entry module id and whether it has one
// (a shared chunk extracted from overlapping static imports has none).
func (c *Chunk) EntryModule() (string, bool) {
	return c.entryModuleID, c.entryModuleID != ""
}

// IsEntryModuleFacade reports whether this chunk corresponds 1:1 with a
// user entry or a dynamic-import target, as opposed to an extracted shared
// chunk or a manualChunks group.
func (c *Chunk) IsEntryModuleFacade() bool {
	return c.isFacade
}

// RenderedModules returns the module ids this chunk will emit, in
// dependency order once PreRender has run (insertion order before that).
func (c *Chunk) RenderedModules() []string {
	if len(c.ordered) > 0 {
		return append([]string(nil), c.ordered...)
	}
	return append([]string(nil), c.modules...)
}

// ImportIDs returns the other chunks this chunk statically depends on.
// Valid only after naming (GenerateID/GenerateIDPreserveModules) has run on
// every chunk, since it reports their final file ids.
func (c *Chunk) ImportIDs() []string {
	ids := make([]string, 0, len(c.crossImports))
	for _, dep := range c.crossImports {
		ids = append(ids, dep.id)
	}
	return ids
}

// ExportNames returns the externally visible names this chunk's entry
// module exposes, per the export mode GenerateInternalExports resolved.
func (c *Chunk) ExportNames() []string {
	return append([]string(nil), c.exports...)
}

// ExportMode returns the rollup-style export mode ("none", "default", or
// "named") GenerateInternalExports resolved for this chunk.
func (c *Chunk) ExportMode() string {
	return string(c.exportMode)
}

// GenerateInternalExports resolves this chunk's export surface from its
// entry module's static exports. Non-facade (shared/manual) chunks have no
// externally meaningful export surface of their own -- other chunks reach
// their contents via require(), not via the chunk's own export statement.
func (c *Chunk) GenerateInternalExports(out *options.Output) error {
	if c.entryModuleID == "" {
		c.exportMode = render.ExportNone
		return nil
	}
	mod := c.g.moduleByID(c.entryModuleID)
	if mod == nil {
		return fmt.Errorf("chunk: entry module %q not found", c.entryModuleID)
	}
	names := mod.ExportNames()
	switch {
	case len(names) == 0:
		c.exportMode = render.ExportNone
	case len(names) == 1 && names[0] == "default":
		c.exportMode = render.ExportDefault
	default:
		c.exportMode = render.ExportNamed
		sort.Strings(names)
	}
	c.exports = names
	return nil
}

// PreRender performs the bookkeeping that must happen once every chunk's
// membership is final but before any chunk has been named: a stable
// topological ordering of the chunk's own modules (dependency-before-
// dependent, falling back to discovery order on a cycle) so concatenation
// in render.Render produces a module's dependencies above its own code.
func (c *Chunk) PreRender(out *options.Output, inputBase string) error {
	members := map[string]bool{}
	for _, id := range c.modules {
		members[id] = true
	}

	visited := map[string]bool{}
	inStack := map[string]bool{}
	var order []string
	var visit func(id string)
	visit = func(id string) {
		if visited[id] || inStack[id] {
			return
		}
		inStack[id] = true
		if mod := c.g.moduleByID(id); mod != nil {
			for _, spec := range mod.StaticSpecifiers() {
				childID, err := resolve.Resolve(filepath.Dir(id), spec)
				if err != nil || !members[childID] {
					continue
				}
				visit(childID)
			}
		}
		inStack[id] = false
		visited[id] = true
		order = append(order, id)
	}

	sorted := append([]string(nil), c.modules...)
	sort.Strings(sorted)
	for _, id := range sorted {
		visit(id)
	}
	c.ordered = order
	return nil
}

// GenerateIDPreserveModules assigns this chunk's file id by mirroring its
// module's path relative to inputBase, bypassing entryFileNames/
// chunkFileNames entirely (preserveModules forbids the usual facade/shared
// naming scheme since every module gets its own 1:1 output file).
func (c *Chunk) GenerateIDPreserveModules(inputBase string) string {
	rel, err := filepath.Rel(inputBase, c.entryModuleID)
	if err != nil {
		rel = filepath.Base(c.entryModuleID)
	}
	rel = filepath.ToSlash(rel)
	ext := filepath.Ext(rel)
	if ext == "" {
		ext = ".js"
	} else {
		rel = strings.TrimSuffix(rel, ext)
		ext = ".js"
	}
	c.id = rel + ext
	return c.id
}

// GenerateID assigns this chunk's output file name by substituting
// [name]/[hash]/[extname] into pattern (entryFileNames for facade chunks,
// chunkFileNames otherwise), deduplicating against usedIDs exactly like
// internal/asset's FinaliseAsset does for emitted assets.
func (c *Chunk) GenerateID(pattern, patternName string, addons render.Addons, out *options.Output, usedIDs map[string]bool) string {
	name := patternName
	if name == "" {
		name = c.name
	}
	hash := c.contentHash(addons)

	replacer := strings.NewReplacer("[name]", name, "[hash]", hash, "[extname]", ".js")
	id := replacer.Replace(pattern)

	base, ext := id, filepath.Ext(id)
	if ext != "" {
		base = strings.TrimSuffix(id, ext)
	}
	candidate := id
	for n := 2; usedIDs[candidate]; n++ {
		candidate = fmt.Sprintf("%s%d%s", base, n, ext)
	}
	usedIDs[candidate] = true
	c.id = candidate
	return candidate
}

// contentHash hashes the chunk's member module hashes (and any addon text,
// since a changed banner should still bust the cache the way a changed
// module would), truncated the same way internal/asset hashes assets.
func (c *Chunk) contentHash(addons render.Addons) string {
	h := sha256.New()
	ids := append([]string(nil), c.modules...)
	sort.Strings(ids)
	for _, id := range ids {
		if mod := c.g.moduleByID(id); mod != nil {
			h.Write([]byte(mod.Hash))
		}
	}
	h.Write([]byte(addons.Banner + addons.Footer + addons.Intro + addons.Outro))
	return hex.EncodeToString(h.Sum(nil))[:8]
}

// Render produces this chunk's final code and (when requested) source map
// via internal/render, translating cross-chunk dependencies into their
// already-assigned file ids.
func (c *Chunk) Render(out *options.Output, addons render.Addons) (string, *bundle.SourceMap, error) {
	modules := make([]*module.Module, 0, len(c.ordered))
	ids := c.ordered
	if len(ids) == 0 {
		ids = c.modules
	}
	for _, id := range ids {
		if mod := c.g.moduleByID(id); mod != nil {
			modules = append(modules, mod)
		}
	}

	crossIDs := make([]string, 0, len(c.crossImports))
	for _, dep := range c.crossImports {
		crossIDs = append(crossIDs, relativeChunkRef(c.id, dep.id))
	}

	in := render.Input{
		Modules:       modules,
		EntryModuleID: c.entryModuleID,
		ExportNames:   c.exports,
		ExportMode:    c.exportMode,
		CrossChunkIDs: crossIDs,
		Name:          out.Name,
		Globals:       out.Globals,
		Warn:          c.g.warnFunc(),
	}
	return render.Render(in, out, addons)
}

func relativeChunkRef(from, to string) string {
	rel, err := filepath.Rel(filepath.Dir(from), to)
	if err != nil {
		rel = to
	}
	rel = filepath.ToSlash(rel)
	if !strings.HasPrefix(rel, ".") {
		rel = "./" + rel
	}
	return rel
}

func (g *Graph) moduleByID(id string) *module.Module {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.modules[id]
}
