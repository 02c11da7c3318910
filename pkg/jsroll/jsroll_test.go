package jsroll

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldog/jsroll/internal/bundle"
	"github.com/coldog/jsroll/internal/options"
)

func writeSource(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestRollupAndGenerateESMSingleEntry(t *testing.T) {
	dir := t.TempDir()
	main := writeSource(t, dir, "main.js", "export const value = 42;\nconsole.log(value);\n")

	h, err := Rollup(context.Background(), &options.RawInput{
		Input: options.EntrySpec{Kind: options.EntrySingle, Single: main},
	})
	require.NoError(t, err)
	require.NotNil(t, h)

	result, err := h.Generate(context.Background(), &options.RawOutput{Format: options.FormatESM})
	require.NoError(t, err)
	require.Equal(t, 1, result.Bundle.Len())

	names := result.Bundle.FileNames()
	require.Len(t, names, 1)
	assert.Equal(t, "main.js", names[0])
}

func TestRollupRejectsMissingEntry(t *testing.T) {
	_, err := Rollup(context.Background(), &options.RawInput{})
	require.Error(t, err)
}

func TestHandleGenerateRejectsMissingFormat(t *testing.T) {
	dir := t.TempDir()
	main := writeSource(t, dir, "main.js", "export const a = 1;\n")

	h, err := Rollup(context.Background(), &options.RawInput{
		Input: options.EntrySpec{Kind: options.EntrySingle, Single: main},
	})
	require.NoError(t, err)

	_, err = h.Generate(context.Background(), &options.RawOutput{})
	require.Error(t, err)
}

func TestHandleWriteWritesFilesToDir(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()
	main := writeSource(t, srcDir, "main.js", "export const value = 42;\n")

	h, err := Rollup(context.Background(), &options.RawInput{
		Input: options.EntrySpec{Kind: options.EntrySingle, Single: main},
	})
	require.NoError(t, err)

	_, err = h.Write(context.Background(), &options.RawOutput{Format: options.FormatESM, Dir: outDir})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(outDir, "main.js"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "value")
	assert.True(t, len(data) > 0 && data[len(data)-1] == '\n')
}

func TestHandleWriteRequiresFileOrDir(t *testing.T) {
	dir := t.TempDir()
	main := writeSource(t, dir, "main.js", "export const a = 1;\n")

	h, err := Rollup(context.Background(), &options.RawInput{
		Input: options.EntrySpec{Kind: options.EntrySingle, Single: main},
	})
	require.NoError(t, err)

	_, err = h.Write(context.Background(), &options.RawOutput{Format: options.FormatESM})
	require.Error(t, err)
	var oerr *options.Error
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, options.KindMissingOptions, oerr.Kind)
	assert.Equal(t, "You must specify output.file", oerr.Error())
}

func TestWritePerOutputConfigRejectsWithoutTargetAndNoWarnings(t *testing.T) {
	dir := t.TempDir()
	main := writeSource(t, dir, "main.js", "export const a = 1;\n")

	var warnings []*options.Warning
	h, err := Rollup(context.Background(), &options.RawInput{
		Input: options.EntrySpec{Kind: options.EntrySingle, Single: main},
		OnWarn: func(w *options.Warning, def func(*options.Warning)) {
			warnings = append(warnings, w)
		},
	})
	require.NoError(t, err)

	// A caller with several output configs drives Write once per config;
	// each call must fail the same way when no file/dir is given.
	for _, out := range []*options.RawOutput{
		{Format: options.FormatCJS},
		{Format: options.FormatESM},
	} {
		_, err := h.Write(context.Background(), out)
		require.Error(t, err)
		var oerr *options.Error
		require.ErrorAs(t, err, &oerr)
		assert.Equal(t, options.KindMissingOptions, oerr.Kind)
		assert.Equal(t, "You must specify output.file", oerr.Error())
	}
	assert.Empty(t, warnings)
}

func TestRollupDispatchesBuildStartAndBuildEnd(t *testing.T) {
	dir := t.TempDir()
	main := writeSource(t, dir, "main.js", "export const a = 1;\n")

	var startCalled, endCalled bool
	var endErr error
	p := &options.Plugin{
		Name: "tracker",
		BuildStart: func(ctx context.Context) error {
			startCalled = true
			return nil
		},
		BuildEnd: func(ctx context.Context, buildErr error) error {
			endCalled = true
			endErr = buildErr
			return nil
		},
	}

	_, err := Rollup(context.Background(), &options.RawInput{
		Input:   options.EntrySpec{Kind: options.EntrySingle, Single: main},
		Plugins: []*options.Plugin{p},
	})
	require.NoError(t, err)
	assert.True(t, startCalled)
	assert.True(t, endCalled)
	assert.NoError(t, endErr)
}

func TestHandleGenerateAppliesBannerAddon(t *testing.T) {
	dir := t.TempDir()
	main := writeSource(t, dir, "main.js", "export const a = 1;\n")

	p := &options.Plugin{
		Name:   "banner",
		Banner: func(ctx context.Context) (string, error) { return "/* built by jsroll */", nil },
	}

	h, err := Rollup(context.Background(), &options.RawInput{
		Input:   options.EntrySpec{Kind: options.EntrySingle, Single: main},
		Plugins: []*options.Plugin{p},
	})
	require.NoError(t, err)

	result, err := h.Generate(context.Background(), &options.RawOutput{Format: options.FormatESM})
	require.NoError(t, err)

	chunk, ok := result.Bundle.Get("main.js").(*bundle.ChunkEntry)
	require.True(t, ok)
	assert.Contains(t, chunk.Code, "built by jsroll")
}

func TestGenerateResultLegacyAccessorsPanic(t *testing.T) {
	r := &GenerateResult{}
	assert.Panics(t, func() { r.Code() })
	assert.Panics(t, func() { r.Map() })
}

func TestHandleCacheNilWhenDisabled(t *testing.T) {
	dir := t.TempDir()
	main := writeSource(t, dir, "main.js", "export const a = 1;\n")
	disabled := false

	h, err := Rollup(context.Background(), &options.RawInput{
		Input: options.EntrySpec{Kind: options.EntrySingle, Single: main},
		Cache: &disabled,
	})
	require.NoError(t, err)
	assert.Nil(t, h.Cache())
}

func TestHandleGetTimingsAbsentWithoutPerf(t *testing.T) {
	dir := t.TempDir()
	main := writeSource(t, dir, "main.js", "export const a = 1;\n")

	h, err := Rollup(context.Background(), &options.RawInput{
		Input: options.EntrySpec{Kind: options.EntrySingle, Single: main},
	})
	require.NoError(t, err)

	_, ok := h.GetTimings()
	assert.False(t, ok)
}

func TestHandleGetTimingsPresentWithPerf(t *testing.T) {
	dir := t.TempDir()
	main := writeSource(t, dir, "main.js", "export const a = 1;\n")

	h, err := Rollup(context.Background(), &options.RawInput{
		Input: options.EntrySpec{Kind: options.EntrySingle, Single: main},
		Perf:  true,
	})
	require.NoError(t, err)

	_, err = h.Generate(context.Background(), &options.RawOutput{Format: options.FormatESM})
	require.NoError(t, err)

	timings, ok := h.GetTimings()
	assert.True(t, ok)
	assert.Contains(t, timings, "build")
	assert.Contains(t, timings, "generate")
}
