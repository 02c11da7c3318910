// Package bundle defines the OutputBundle data model: the map of final file
// names to either rendered chunk entries or finalized assets that a generate
// call produces. It has no dependencies on the option/plugin/graph packages
// so that all of them can depend on it without creating an import cycle.
package bundle

import "sort"

// EntryKind orders bundle entries for the deterministic output list the
// spec requires: entry chunks, then secondary chunks, then assets.
type EntryKind int

const (
	KindEntryChunk EntryKind = iota
	KindSecondaryChunk
	KindAsset
)

// Entry is implemented by ChunkEntry and AssetEntry.
type Entry interface {
	entryFileName() string
	entryKind() EntryKind
}

// ChunkEntry is a rendered code chunk.
type ChunkEntry struct {
	FileName string
	IsEntry  bool
	Imports  []string
	Exports  []string
	Modules  []string
	Code     string
	Map      *SourceMap
}

func (c *ChunkEntry) entryFileName() string { return c.FileName }
func (c *ChunkEntry) entryKind() EntryKind {
	if c.IsEntry {
		return KindEntryChunk
	}
	return KindSecondaryChunk
}

// AssetEntry is an arbitrary binary/text blob placed into the bundle by an
// extension, outside of the render pipeline.
type AssetEntry struct {
	FileName string
	Source   []byte
	IsAsset  bool
}

func (a *AssetEntry) entryFileName() string { return a.FileName }
func (a *AssetEntry) entryKind() EntryKind  { return KindAsset }

// SourceMap is the minimal shape the Writer and render package need; the
// VLQ encoding itself lives in internal/render.
type SourceMap struct {
	Version    int      `json:"version"`
	Sources    []string `json:"sources"`
	SourceRoot string   `json:"sourceRoot,omitempty"`
	Names      []string `json:"names"`
	Mappings   string   `json:"mappings"`
	File       string   `json:"file,omitempty"`
}

// Bundle is the OutputBundle: a fresh instance is created per generate call.
type Bundle struct {
	entries map[string]Entry
	order   []string // insertion order, for the stable-sort tiebreak
}

// New returns an empty bundle.
func New() *Bundle {
	return &Bundle{entries: map[string]Entry{}}
}

// Set inserts or replaces the entry keyed by fileName.
func (b *Bundle) Set(fileName string, e Entry) {
	if _, exists := b.entries[fileName]; !exists {
		b.order = append(b.order, fileName)
	}
	b.entries[fileName] = e
}

// Get returns the entry for fileName, or nil if absent.
func (b *Bundle) Get(fileName string) Entry {
	return b.entries[fileName]
}

// Has reports whether fileName is already present.
func (b *Bundle) Has(fileName string) bool {
	_, ok := b.entries[fileName]
	return ok
}

// Delete removes fileName from the bundle (extensions may drop assets they
// decide not to emit after all).
func (b *Bundle) Delete(fileName string) {
	delete(b.entries, fileName)
}

// Len returns the number of entries currently in the bundle.
func (b *Bundle) Len() int {
	return len(b.entries)
}

// Ordered returns bundle entries sorted by EntryKind (entry chunks first,
// then secondary chunks, then assets), with insertion order preserved
// within each class.
func (b *Bundle) Ordered() []Entry {
	out := make([]Entry, 0, len(b.entries))
	for _, name := range b.order {
		if e, ok := b.entries[name]; ok {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].entryKind() < out[j].entryKind()
	})
	return out
}

// FileNames returns every file name currently in the bundle, in the same
// order as Ordered.
func (b *Bundle) FileNames() []string {
	entries := b.Ordered()
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.entryFileName()
	}
	return names
}
