package render

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldog/jsroll/internal/options"
	"github.com/coldog/jsroll/pkg/module"
)

func writeModuleFile(t *testing.T, dir, name, src string) *module.Module {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return module.Parse(path, []byte(src))
}

func TestRenderESMEntryNamedExports(t *testing.T) {
	dir := t.TempDir()
	dep := writeModuleFile(t, dir, "dep.js", "export const value = 1;\n")
	entry := writeModuleFile(t, dir, "main.js", "import { value } from './dep.js';\nconsole.log(value);\n")

	in := Input{
		Modules:       []*module.Module{dep, entry},
		EntryModuleID: entry.ID,
		ExportNames:   []string{"value"},
		ExportMode:    ExportNamed,
	}
	out := &options.Output{Format: options.FormatESM, Sourcemap: options.SourcemapOff}

	code, srcMap, err := Render(in, out, Addons{})
	require.NoError(t, err)
	assert.Nil(t, srcMap)
	assert.Contains(t, code, `__jsroll_modules__["`+dep.ID+`"]`)
	assert.Contains(t, code, `__jsroll_modules__["`+entry.ID+`"]`)
	assert.Contains(t, code, `require("`+dep.ID+`")["value"]`)
	assert.Contains(t, code, `__jsroll_require__("`+entry.ID+`")`)
	assert.Contains(t, code, `export const value = __jsroll_entry__["value"];`)
	// the original ESM import line must be stripped from the factory body
	assert.NotContains(t, code, "import { value } from")
}

func TestRenderCJSWithCrossChunkRequire(t *testing.T) {
	dir := t.TempDir()
	entry := writeModuleFile(t, dir, "main.js", "var shared = 1;\n")
	in := Input{
		Modules:       []*module.Module{entry},
		EntryModuleID: entry.ID,
		ExportMode:    ExportNamed,
		CrossChunkIDs: []string{"./chunk-abc123.js"},
	}
	out := &options.Output{Format: options.FormatCJS}

	code, _, err := Render(in, out, Addons{})
	require.NoError(t, err)
	assert.Contains(t, code, `require("./chunk-abc123.js")`)
	assert.Contains(t, code, "module.exports = __jsroll_entry__;")
}

func TestRenderIIFEUsesGlobalName(t *testing.T) {
	dir := t.TempDir()
	entry := writeModuleFile(t, dir, "main.js", "exports.default = 42;\n")
	in := Input{Modules: []*module.Module{entry}, EntryModuleID: entry.ID, ExportMode: ExportDefault}
	out := &options.Output{Format: options.FormatIIFE, Name: "MyLib"}

	code, _, err := Render(in, out, Addons{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(code, "(function() {"))
	assert.Contains(t, code, `"MyLib"`)
}

func TestRenderAddonsAreSpliced(t *testing.T) {
	dir := t.TempDir()
	entry := writeModuleFile(t, dir, "main.js", "exports.default = 1;\n")
	in := Input{Modules: []*module.Module{entry}, EntryModuleID: entry.ID, ExportMode: ExportDefault}
	out := &options.Output{Format: options.FormatESM}

	code, _, err := Render(in, out, Addons{Banner: "/* banner */", Footer: "/* footer */", Intro: "/* intro */", Outro: "/* outro */"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(code, "/* banner */"))
	assert.True(t, strings.HasSuffix(strings.TrimSpace(code), "/* footer */"))
	assert.Contains(t, code, "/* intro */")
	assert.Contains(t, code, "/* outro */")
}

func TestRenderCJSSourcemapRoundTrip(t *testing.T) {
	dir := t.TempDir()
	entry := writeModuleFile(t, dir, "main.js", "console.log(42);\n")

	in := Input{
		Modules:       []*module.Module{entry},
		EntryModuleID: entry.ID,
		ExportMode:    ExportNone,
	}
	out := &options.Output{Format: options.FormatCJS, Sourcemap: options.SourcemapExternal}

	code, srcMap, err := Render(in, out, Addons{})
	require.NoError(t, err)
	require.NotNil(t, srcMap)
	require.Equal(t, []string{entry.ID}, srcMap.Sources)

	// Find the generated line actually carrying the statement; the prelude
	// and factory wrapper push it well past line 0.
	genLine := -1
	for i, l := range strings.Split(code, "\n") {
		if strings.Contains(l, "console.log(42)") {
			genLine = i
			break
		}
	}
	require.GreaterOrEqual(t, genLine, 1)

	decoded := decodeMappings(t, srcMap.Mappings)
	require.Greater(t, len(decoded), genLine)
	require.NotNil(t, decoded[genLine], "generated line %d has no mapping", genLine)
	assert.Equal(t, 0, decoded[genLine].source)
	assert.Equal(t, 0, decoded[genLine].line, "expected line 1 of the original source")

	// Lines outside the module body (the runtime prelude at the top) stay
	// unmapped.
	assert.Nil(t, decoded[0])
}

func TestRenderTwoModuleSourcemapMapsEachBody(t *testing.T) {
	dir := t.TempDir()
	dep := writeModuleFile(t, dir, "dep.js", "var first = 1;\nvar second = 2;\n")
	entry := writeModuleFile(t, dir, "main.js", "import './dep.js';\nconsole.log(42);\n")

	in := Input{
		Modules:       []*module.Module{dep, entry},
		EntryModuleID: entry.ID,
		ExportMode:    ExportNone,
	}
	out := &options.Output{Format: options.FormatESM, Sourcemap: options.SourcemapExternal}

	code, srcMap, err := Render(in, out, Addons{})
	require.NoError(t, err)
	require.NotNil(t, srcMap)

	decoded := decodeMappings(t, srcMap.Mappings)
	lines := strings.Split(code, "\n")
	require.Greater(t, len(decoded), 0)

	find := func(substr string) int {
		for i, l := range lines {
			if strings.Contains(l, substr) {
				return i
			}
		}
		t.Fatalf("generated code has no line containing %q", substr)
		return -1
	}

	second := find("var second = 2;")
	require.Greater(t, len(decoded), second)
	require.NotNil(t, decoded[second])
	assert.Equal(t, 0, decoded[second].source)
	assert.Equal(t, 1, decoded[second].line)

	logLine := find("console.log(42)")
	require.Greater(t, len(decoded), logLine)
	require.NotNil(t, decoded[logLine])
	assert.Equal(t, 1, decoded[logLine].source)
	assert.Equal(t, 1, decoded[logLine].line)
}

func TestRenderUMDWarnsMissingGlobalName(t *testing.T) {
	dir := t.TempDir()
	entry := writeModuleFile(t, dir, "main.js", "import _ from 'lodash';\nconsole.log(_);\n")

	var warnings []*options.Warning
	in := Input{
		Modules:       []*module.Module{entry},
		EntryModuleID: entry.ID,
		ExportMode:    ExportNone,
		Warn:          func(w *options.Warning) { warnings = append(warnings, w) },
	}
	out := &options.Output{Format: options.FormatUMD}

	_, _, err := Render(in, out, Addons{})
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, "MISSING_GLOBAL_NAME", warnings[0].Code)
	assert.Contains(t, warnings[0].Message, "'lodash'")
}

func TestRenderUMDMissingNameWithExportsFails(t *testing.T) {
	dir := t.TempDir()
	entry := writeModuleFile(t, dir, "main.js", "export const x = 1;\n")

	in := Input{
		Modules:       []*module.Module{entry},
		EntryModuleID: entry.ID,
		ExportNames:   []string{"x"},
		ExportMode:    ExportNamed,
	}
	out := &options.Output{Format: options.FormatUMD}

	_, _, err := Render(in, out, Addons{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"output.name"`)
}

func TestRenderUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	entry := writeModuleFile(t, dir, "main.js", "")
	in := Input{Modules: []*module.Module{entry}}
	out := &options.Output{Format: "es6"}

	_, _, err := Render(in, out, Addons{})
	assert.Error(t, err)
}
