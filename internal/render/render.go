// Package render turns a chunk's member modules into one dialect-specific
// output file (ESM, CommonJS, AMD, SystemJS, IIFE, or UMD).
//
// The scanner in pkg/module is deliberately not a full parser, so this
// renderer does not rewrite scope-level bindings the way an AST-based linker
// would. Instead every module is treated as an opaque CommonJS-style factory
// registered by absolute module id into a small shared runtime registry,
// wrapped by six dialect-specific outer harnesses. Cross-module bindings
// resolve through require() calls the renderer generates from each
// import/export specifier the scanner already extracted, not through real
// lexical scope links.
package render

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/coldog/jsroll/internal/bundle"
	"github.com/coldog/jsroll/internal/options"
	"github.com/coldog/jsroll/pkg/module"
	"github.com/coldog/jsroll/pkg/resolve"
)

// requireTarget resolves a static specifier seen from fromID to the
// absolute module id its factory was registered under. Unresolvable
// specifiers (bare external packages the resolver can't find under any
// node_modules) pass through unchanged -- require() against that raw name
// is then a host/external dependency, same as Node's own require("react").
func requireTarget(fromID, specifier string) string {
	id, err := resolve.Resolve(filepath.Dir(fromID), specifier)
	if err != nil {
		return specifier
	}
	return id
}

// Addons are the per-chunk text the banner/footer/intro/outro plugin hooks
// contribute.
type Addons struct {
	Banner string
	Footer string
	Intro  string
	Outro  string
}

// Input is everything Render needs about one chunk, decoupled from the
// Graph package's Chunk type so internal/render never imports internal/graph.
type Input struct {
	Modules       []*module.Module // chunk members, in dependency order
	EntryModuleID string           // "" for a shared or manual chunk with no entry module
	ExportNames   []string         // the entry module's ExportNames(); `export *` names are not listed
	ExportMode    ExportMode
	CrossChunkIDs []string // sibling chunk file names this chunk must load before its own code runs
	Name          string   // UMD/IIFE global variable name
	Globals       map[string]string

	// Warn receives render-time diagnostics (MISSING_GLOBAL_NAME and the
	// like); nil disables them.
	Warn func(w *options.Warning)
}

// ExportMode describes the export surface a chunk's entry module exposes.
type ExportMode string

const (
	ExportNone    ExportMode = "none"
	ExportDefault ExportMode = "default"
	ExportNamed   ExportMode = "named"
)

// moduleSpan records where a module's body landed in the generated output:
// the 0-based generated line its first body line occupies, and how many
// lines the body spans.
type moduleSpan struct {
	sourceIndex int
	startLine   int
	lineCount   int
}

// Render produces a chunk's final code and (when requested) source map. The
// generated-line counter threads through every emitted piece (addons,
// harness prefix, runtime prelude, factory wrappers) so each module body's
// true position in the output is known when the source map is built.
func Render(in Input, out *options.Output, addons Addons) (string, *bundle.SourceMap, error) {
	prefix, suffix, err := renderHarness(in, out)
	if err != nil {
		return "", nil, err
	}

	var final strings.Builder
	line := 0
	emit := func(s string) {
		final.WriteString(s)
		line += strings.Count(s, "\n")
	}

	if addons.Banner != "" {
		emit(addons.Banner)
		emit("\n")
	}
	if addons.Intro != "" {
		emit(addons.Intro)
		emit("\n")
	}
	emit(prefix)
	emit(runtimePrelude)
	emit("\n")

	spans := make([]moduleSpan, 0, len(in.Modules))
	for i, mod := range in.Modules {
		emit(moduleFactoryOpen(mod))
		body := mod.StrippedBody()
		spans = append(spans, moduleSpan{sourceIndex: i, startLine: line, lineCount: lineCount(body)})
		emit(string(body))
		emit("\n")
		emit(moduleFactoryClose(mod))
	}

	emit(suffix)
	if addons.Outro != "" {
		emit("\n")
		emit(addons.Outro)
	}
	if addons.Footer != "" {
		emit("\n")
		emit(addons.Footer)
	}
	emit("\n")

	var srcMap *bundle.SourceMap
	if out.Sourcemap != options.SourcemapOff {
		srcMap = buildSourceMap(in, spans, line)
	}
	return final.String(), srcMap, nil
}

// externalSpecifiers returns the distinct import specifiers across the
// chunk's members that do not resolve to a module on disk -- host/external
// dependencies the emitted code will reach through require() or, for the
// browser-global formats, through output.globals.
func externalSpecifiers(in Input) []string {
	seen := map[string]bool{}
	var out []string
	for _, mod := range in.Modules {
		for _, spec := range mod.StaticSpecifiers() {
			if seen[spec] {
				continue
			}
			if _, err := resolve.Resolve(filepath.Dir(mod.ID), spec); err == nil {
				continue
			}
			seen[spec] = true
			out = append(out, spec)
		}
	}
	return out
}

// lineCount returns how many source lines b spans, matching how Render
// emits it (StrippedBody preserves every original newline, so counting
// '\n' bytes gives the module's line count).
func lineCount(b []byte) int {
	n := 1
	for _, c := range b {
		if c == '\n' {
			n++
		}
	}
	return n
}

// runtimePrelude is the shared module registry. It is host-agnostic: no DOM
// loader, no process globals; cross-chunk loading is each dialect's own
// concern, spliced in around this prelude by renderHarness.
const runtimePrelude = `var __jsroll_cache__ = __jsroll_cache__ || {};
var __jsroll_modules__ = __jsroll_modules__ || {};
function __jsroll_require__(name) {
  if (__jsroll_cache__[name]) {
    return __jsroll_cache__[name].exports;
  }
  var mod = { id: name, exports: {} };
  __jsroll_cache__[name] = mod;
  __jsroll_modules__[name](mod, mod.exports, __jsroll_require__);
  return mod.exports;
}
`

// moduleFactoryOpen is the factory header plus per-import binding lines that
// precede a module's body in the output.
func moduleFactoryOpen(mod *module.Module) string {
	var b strings.Builder
	fmt.Fprintf(&b, "__jsroll_modules__[%q] = function(module, exports, require) {\n", mod.ID)
	for _, imp := range mod.Imports {
		writeImportBinding(&b, mod.ID, imp)
	}
	return b.String()
}

// moduleFactoryClose is the export binding lines plus the factory closer
// that follow a module's body.
func moduleFactoryClose(mod *module.Module) string {
	var b strings.Builder
	for _, exp := range mod.Exports {
		writeExportBinding(&b, mod.ID, exp)
	}
	b.WriteString("\n};\n")
	return b.String()
}

func writeImportBinding(b *strings.Builder, fromID string, imp module.ImportSpecifier) {
	target := requireTarget(fromID, imp.Specifier)
	switch imp.Kind {
	case module.ImportSideEffect:
		fmt.Fprintf(b, "  require(%q);\n", target)
	case module.ImportNamespace:
		fmt.Fprintf(b, "  var %s = require(%q);\n", safeIdent(imp.Local), target)
	case module.ImportDefault:
		fmt.Fprintf(b, "  var %s = require(%q).default;\n", safeIdent(imp.Local), target)
	case module.ImportNamed:
		name := imp.Imported
		if name == "" {
			name = imp.Local
		}
		fmt.Fprintf(b, "  var %s = require(%q)[%q];\n", safeIdent(imp.Local), target, name)
	}
}

func writeExportBinding(b *strings.Builder, fromID string, exp module.ExportSpecifier) {
	switch exp.Kind {
	case module.ExportDefault:
		// The scanner only records that a default export exists, not its
		// expression; nothing to splice here beyond what the (unstripped)
		// `export default ...` would have done had we kept it, so we leave
		// default-export wiring to whatever the stripped body already
		// assigned to module.exports.default via the original statement --
		// in practice module authors wanting default exports under this
		// renderer should assign exports.default explicitly.
	case module.ExportNamed:
		fmt.Fprintf(b, "  exports[%q] = %s;\n", exportedName(exp), safeIdent(exp.Local))
	case module.ExportReexport:
		name := exp.Local
		if name == "" {
			name = exportedName(exp)
		}
		target := requireTarget(fromID, exp.Specifier)
		fmt.Fprintf(b, "  exports[%q] = require(%q)[%q];\n", exportedName(exp), target, name)
	case module.ExportAll:
		target := requireTarget(fromID, exp.Specifier)
		fmt.Fprintf(b, "  (function(src) { for (var k in src) { if (k !== 'default') exports[k] = src[k]; } })(require(%q));\n", target)
	}
}

func exportedName(exp module.ExportSpecifier) string {
	if exp.Exported != "" {
		return exp.Exported
	}
	return exp.Local
}

// safeIdent replaces an empty local binding name with "_". The scanner
// doesn't validate identifiers; other names, reserved words included, are
// returned unchanged.
func safeIdent(name string) string {
	if name == "" {
		return "_"
	}
	return name
}

// buildSourceMap maps every generated line that carries a module body line
// back to its originating source file and line, using the spans Render
// recorded while emitting. Runtime prelude, factory wrapper, and harness
// lines carry no mapping entry, the way a bundler leaves its own helpers
// unmapped. StrippedBody preserves every original newline, so body line l
// of a module always corresponds to source line l of that module's file.
func buildSourceMap(in Input, spans []moduleSpan, totalLines int) *bundle.SourceMap {
	sources := make([]string, 0, len(in.Modules))
	for _, mod := range in.Modules {
		sources = append(sources, mod.ID)
	}

	lines := make([]LineMapping, totalLines)
	for _, sp := range spans {
		for l := 0; l < sp.lineCount; l++ {
			lines[sp.startLine+l] = LineMapping{Mapped: true, SourceIndex: sp.sourceIndex, SourceLine: l}
		}
	}

	return &bundle.SourceMap{
		Version:  3,
		Sources:  sources,
		Names:    nil,
		Mappings: EncodeMappings(lines),
	}
}
