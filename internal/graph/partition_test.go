package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldog/jsroll/internal/options"
)

func TestPartitionManualChunksGroupsPinnedModules(t *testing.T) {
	dir := t.TempDir()
	vendorA := writeSource(t, dir, "vendorA.js", "export const a = 1;\n")
	vendorB := writeSource(t, dir, "vendorB.js", "export const b = 2;\n")
	main := writeSource(t, dir, "main.js", "import { a } from './vendorA.js';\nimport { b } from './vendorB.js';\n")

	manualChunks := func(id string) string {
		if id == vendorA || id == vendorB {
			return "vendor"
		}
		return ""
	}

	in := &options.Input{Input: options.EntrySpec{Kind: options.EntrySingle, Single: main}, ManualChunks: manualChunks}
	g := New(in, nil)

	chunks, err := g.Build(context.Background(), in.Input, manualChunks, false, false)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	var vendorChunk *Chunk
	for _, c := range chunks {
		if !c.IsEntryModuleFacade() {
			vendorChunk = c
		}
	}
	require.NotNil(t, vendorChunk)
	assert.ElementsMatch(t, []string{vendorA, vendorB}, vendorChunk.RenderedModules())
}

func TestPartitionUnresolvableDynamicImportIsSkippedNotFatal(t *testing.T) {
	dir := t.TempDir()
	main := writeSource(t, dir, "main.js", "const p = './x.js';\nexport function load() { return import(p); }\n")

	in := &options.Input{Input: options.EntrySpec{Kind: options.EntrySingle, Single: main}}
	g := New(in, nil)

	chunks, err := g.Build(context.Background(), in.Input, nil, false, false)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
}

func TestDiscoverDynamicTargetsDeterministicOrder(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "b.js", "export const b = 1;\n")
	writeSource(t, dir, "a.js", "export const a = 1;\n")
	main := writeSource(t, dir, "main.js", "export function load() {\n  return Promise.all([import('./a.js'), import('./b.js')]);\n}\n")

	in := &options.Input{Input: options.EntrySpec{Kind: options.EntrySingle, Single: main}}
	g := New(in, nil)
	chunks, err := g.Build(context.Background(), in.Input, nil, false, false)
	require.NoError(t, err)
	// main, a.js, b.js all become their own facade chunk (no sharing, no
	// static overlap), so discovery order must not duplicate or drop one.
	assert.Len(t, chunks, 3)
}
