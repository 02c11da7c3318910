package graph

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldog/jsroll/internal/options"
)

func writeSource(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

// TestBuildSplitsSharedAndDynamicChunks is the canonical splitting scenario:
// two entries statically share a dependency, and that dependency also has a
// dynamic import. The shared dependency must be extracted into its own
// chunk (not duplicated into both entry chunks), and the dynamic-import
// target must become its own facade chunk.
func TestBuildSplitsSharedAndDynamicChunks(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "dyndep.js", "export const x = 2;\n")
	writeSource(t, dir, "dep.js", "export const shared = 1;\nexport function load() { return import('./dyndep.js'); }\n")
	main1 := writeSource(t, dir, "main1.js", "import { shared } from './dep.js';\nconsole.log(shared);\n")
	main2 := writeSource(t, dir, "main2.js", "import { shared } from './dep.js';\nconsole.log(shared);\n")

	in := &options.Input{Input: options.EntrySpec{Kind: options.EntryList, List: []string{main1, main2}}}
	g := New(in, nil)

	chunks, err := g.Build(context.Background(), in.Input, nil, false, false)
	require.NoError(t, err)
	require.Len(t, chunks, 4)

	var facades, shared int
	var dynFacadeFound bool
	for _, c := range chunks {
		if c.IsEntryModuleFacade() {
			facades++
			id, _ := c.EntryModule()
			if id == filepath.Join(dir, "dyndep.js") {
				dynFacadeFound = true
			}
		} else {
			shared++
			assert.Contains(t, c.RenderedModules(), filepath.Join(dir, "dep.js"))
		}
	}
	assert.Equal(t, 3, facades, "main1, main2, and dyndep.js each get their own facade chunk")
	assert.Equal(t, 1, shared, "dep.js is shared by both entries and gets its own chunk")
	assert.True(t, dynFacadeFound)
}

func TestBuildPreserveModulesOneChunkPerModule(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "dep.js", "export const shared = 1;\n")
	main := writeSource(t, dir, "main.js", "import { shared } from './dep.js';\n")

	in := &options.Input{Input: options.EntrySpec{Kind: options.EntrySingle, Single: main}, PreserveModules: true}
	g := New(in, nil)

	chunks, err := g.Build(context.Background(), in.Input, nil, false, true)
	require.NoError(t, err)
	assert.Len(t, chunks, 2)
}

func TestBuildInlineDynamicImportsFoldsDynamicTargetIntoSingleChunk(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "dyndep.js", "export const x = 2;\n")
	main := writeSource(t, dir, "main.js", "export function load() { return import('./dyndep.js'); }\n")

	in := &options.Input{Input: options.EntrySpec{Kind: options.EntrySingle, Single: main}, InlineDynamicImports: true}
	g := New(in, nil)

	chunks, err := g.Build(context.Background(), in.Input, nil, true, false)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].RenderedModules(), filepath.Join(dir, "dyndep.js"))
}

func TestGraphWatchFilesIncludesEveryDiscoveredModule(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "dep.js", "export const shared = 1;\n")
	main := writeSource(t, dir, "main.js", "import { shared } from './dep.js';\n")

	in := &options.Input{Input: options.EntrySpec{Kind: options.EntrySingle, Single: main}}
	g := New(in, nil)
	_, err := g.Build(context.Background(), in.Input, nil, false, false)
	require.NoError(t, err)

	files := g.WatchFiles()
	assert.Len(t, files, 2)
}
