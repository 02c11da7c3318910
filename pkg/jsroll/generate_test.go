package jsroll

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldog/jsroll/internal/asset"
	"github.com/coldog/jsroll/internal/bundle"
	"github.com/coldog/jsroll/internal/options"
)

func TestGenerateWarnsDeprecatedOnGenerateNamingPosition(t *testing.T) {
	dir := t.TempDir()
	main := writeSource(t, dir, "main.js", "export const a = 1;\n")

	var warnings []*options.Warning
	first := &options.Plugin{Name: "first"}
	second := &options.Plugin{
		Name:       "legacy",
		OnGenerate: func(ctx context.Context, chunkID string) error { return nil },
	}

	h, err := Rollup(context.Background(), &options.RawInput{
		Input:   options.EntrySpec{Kind: options.EntrySingle, Single: main},
		Plugins: []*options.Plugin{first, second},
		OnWarn: func(w *options.Warning, def func(*options.Warning)) {
			warnings = append(warnings, w)
		},
	})
	require.NoError(t, err)

	_, err = h.Generate(context.Background(), &options.RawOutput{Format: options.FormatESM})
	require.NoError(t, err)

	require.Len(t, warnings, 1)
	assert.Equal(t, "PLUGIN_WARNING", warnings[0].Code)
	assert.Equal(t, "ONGENERATE_HOOK_DEPRECATED", warnings[0].PluginCode)
	assert.Contains(t, warnings[0].Message, "position 2")
}

func TestGenerateBundleEmittedAssetLandsInBundle(t *testing.T) {
	dir := t.TempDir()
	main := writeSource(t, dir, "main.js", "export const a = 1;\n")

	p := &options.Plugin{
		Name: "emitter",
		GenerateBundle: func(ctx context.Context, out *options.Output, b *bundle.Bundle, emit *asset.Emitter, isWrite bool) error {
			emit.EmitAsset("logo.svg", []byte("<svg/>"))
			return nil
		},
	}

	h, err := Rollup(context.Background(), &options.RawInput{
		Input:   options.EntrySpec{Kind: options.EntrySingle, Single: main},
		Plugins: []*options.Plugin{p},
	})
	require.NoError(t, err)

	result, err := h.Generate(context.Background(), &options.RawOutput{Format: options.FormatESM})
	require.NoError(t, err)

	entries := result.Bundle.Ordered()
	require.Len(t, entries, 2)
	chunk, ok := entries[0].(*bundle.ChunkEntry)
	require.True(t, ok)
	assert.True(t, chunk.IsEntry)
	a, ok := entries[1].(*bundle.AssetEntry)
	require.True(t, ok)
	assert.True(t, a.IsAsset)
	assert.Contains(t, a.FileName, "logo")
	assert.Equal(t, []byte("<svg/>"), a.Source)
}

func TestGenerateBundleEmittedAssetScopedToOneCall(t *testing.T) {
	dir := t.TempDir()
	main := writeSource(t, dir, "main.js", "export const a = 1;\n")

	calls := 0
	p := &options.Plugin{
		Name: "emit-once",
		GenerateBundle: func(ctx context.Context, out *options.Output, b *bundle.Bundle, emit *asset.Emitter, isWrite bool) error {
			calls++
			if calls == 1 {
				emit.EmitAsset("once.txt", []byte("only the first generate"))
			}
			return nil
		},
	}

	h, err := Rollup(context.Background(), &options.RawInput{
		Input:   options.EntrySpec{Kind: options.EntrySingle, Single: main},
		Plugins: []*options.Plugin{p},
	})
	require.NoError(t, err)

	first, err := h.Generate(context.Background(), &options.RawOutput{Format: options.FormatESM})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Bundle.Len())

	second, err := h.Generate(context.Background(), &options.RawOutput{Format: options.FormatESM})
	require.NoError(t, err)
	assert.Equal(t, 1, second.Bundle.Len())
}

func TestGenerateBundleAssetWithoutSourceFailsGenerate(t *testing.T) {
	dir := t.TempDir()
	main := writeSource(t, dir, "main.js", "export const a = 1;\n")

	p := &options.Plugin{
		Name: "sourceless",
		GenerateBundle: func(ctx context.Context, out *options.Output, b *bundle.Bundle, emit *asset.Emitter, isWrite bool) error {
			emit.EmitAsset("pending.bin", nil)
			return nil
		},
	}

	h, err := Rollup(context.Background(), &options.RawInput{
		Input:   options.EntrySpec{Kind: options.EntrySingle, Single: main},
		Plugins: []*options.Plugin{p},
	})
	require.NoError(t, err)

	_, err = h.Generate(context.Background(), &options.RawOutput{Format: options.FormatESM})
	require.Error(t, err)
	assert.ErrorIs(t, err, asset.ErrUnfinalized)
}

func TestGenerateMultiEntrySharedDynamicNaming(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "dyndep.js", "export const lazy = true;\n")
	writeSource(t, dir, "dep.js", "export const shared = 1;\nimport('./dyndep.js');\n")
	main1 := writeSource(t, dir, "main1.js", "import { shared } from './dep.js';\nconsole.log(shared);\n")
	main2 := writeSource(t, dir, "main2.js", "import { shared } from './dep.js';\nconsole.log(shared + 1);\n")

	h, err := Rollup(context.Background(), &options.RawInput{
		Input: options.EntrySpec{Kind: options.EntryList, List: []string{main1, main2}},
	})
	require.NoError(t, err)

	result, err := h.Generate(context.Background(), &options.RawOutput{Format: options.FormatESM})
	require.NoError(t, err)

	names := result.Bundle.FileNames()
	require.Len(t, names, 4)
	assert.Equal(t, "main1.js", names[0])
	assert.Equal(t, "main2.js", names[1])
	assert.Equal(t, "dyndep.js", names[2])
	assert.Regexp(t, `^chunk-[0-9a-f]+\.js$`, names[3])
}

func TestGenerateRepeatedCallsProduceEqualFileNames(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "dep.js", "export const shared = 1;\n")
	main1 := writeSource(t, dir, "main1.js", "import { shared } from './dep.js';\nconsole.log(shared);\n")
	main2 := writeSource(t, dir, "main2.js", "import { shared } from './dep.js';\nconsole.log(shared);\n")

	h, err := Rollup(context.Background(), &options.RawInput{
		Input: options.EntrySpec{Kind: options.EntryList, List: []string{main1, main2}},
	})
	require.NoError(t, err)

	first, err := h.Generate(context.Background(), &options.RawOutput{Format: options.FormatESM})
	require.NoError(t, err)
	second, err := h.Generate(context.Background(), &options.RawOutput{Format: options.FormatESM})
	require.NoError(t, err)

	assert.Equal(t, first.Bundle.FileNames(), second.Bundle.FileNames())
}

func TestGenerateBundleFileNamesAreUnique(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "dep.js", "export const shared = 1;\n")
	main1 := writeSource(t, dir, "main1.js", "import { shared } from './dep.js';\n")
	main2 := writeSource(t, dir, "main2.js", "import { shared } from './dep.js';\n")

	h, err := Rollup(context.Background(), &options.RawInput{
		Input: options.EntrySpec{Kind: options.EntryList, List: []string{main1, main2}},
	})
	require.NoError(t, err)

	result, err := h.Generate(context.Background(), &options.RawOutput{Format: options.FormatESM})
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, name := range result.Bundle.FileNames() {
		assert.False(t, seen[name], "duplicate file name %q", name)
		seen[name] = true
	}
}

func TestOptimizeGateFiresAtMostOncePerHandle(t *testing.T) {
	h := &Handle{}
	assert.False(t, h.takeOptimizeGate(false))
	assert.True(t, h.takeOptimizeGate(true))
	assert.False(t, h.takeOptimizeGate(true))
	assert.False(t, h.takeOptimizeGate(false))
}

func TestGenerateDispatchesRenderErrorOnFailure(t *testing.T) {
	dir := t.TempDir()
	main := writeSource(t, dir, "main.js", "export const a = 1;\n")

	var got error
	boom := &options.Plugin{
		Name:        "boom",
		RenderStart: func(ctx context.Context) error { return assert.AnError },
		RenderError: func(ctx context.Context, err error) error {
			got = err
			return nil
		},
	}

	h, err := Rollup(context.Background(), &options.RawInput{
		Input:   options.EntrySpec{Kind: options.EntrySingle, Single: main},
		Plugins: []*options.Plugin{boom},
	})
	require.NoError(t, err)

	_, err = h.Generate(context.Background(), &options.RawOutput{Format: options.FormatESM})
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.ErrorIs(t, got, assert.AnError)
}
