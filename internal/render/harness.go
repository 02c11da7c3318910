package render

import (
	"fmt"
	"strings"

	"github.com/coldog/jsroll/internal/options"
)

// warnBrowserGlobals emits the diagnostics the browser-global formats (IIFE
// and UMD) need before their harness text is usable: MISSING_GLOBAL_NAME for
// every external import with no output.globals mapping, and the
// missing-output-name message when the chunk exports something but the
// caller gave the bundle no global variable to hang those exports on.
func warnBrowserGlobals(in Input, out *options.Output) error {
	for _, spec := range externalSpecifiers(in) {
		if _, ok := out.Globals[spec]; ok {
			continue
		}
		if in.Warn != nil {
			in.Warn(&options.Warning{
				Code:    "MISSING_GLOBAL_NAME",
				Message: fmt.Sprintf("No name was provided for external module '%s' in output.globals - guessing '%s'", spec, spec),
			})
		}
	}
	if out.Name == "" && in.ExportMode != ExportNone && in.EntryModuleID != "" {
		if out.Format == options.FormatUMD {
			return fmt.Errorf(`You must supply "output.name" for UMD bundles that have exports`)
		}
		if in.Warn != nil {
			in.Warn(&options.Warning{
				Message: fmt.Sprintf(`If you do not supply "output.name", you may not be able to access the exports of an %s bundle`, strings.ToUpper(string(out.Format))),
			})
		}
	}
	return nil
}

// renderHarness returns the dialect-specific text that wraps the module
// registry body: prefix comes before it (module-loading boilerplate, outer
// function openers), suffix comes after (entry evaluation, export wiring,
// outer function closers).
func renderHarness(in Input, out *options.Output) (prefix, suffix string, err error) {
	switch out.Format {
	case options.FormatESM:
		return esmHarness(in)
	case options.FormatCJS:
		return cjsHarness(in)
	case options.FormatAMD:
		return amdHarness(in)
	case options.FormatSystem:
		return systemHarness(in)
	case options.FormatIIFE:
		return iifeHarness(in, out)
	case options.FormatUMD:
		return umdHarness(in, out)
	default:
		return "", "", fmt.Errorf("render: unsupported output format %q", out.Format)
	}
}

func esmHarness(in Input) (string, string, error) {
	var prefix strings.Builder
	for _, dep := range in.CrossChunkIDs {
		fmt.Fprintf(&prefix, "import %q;\n", dep)
	}

	var suffix strings.Builder
	if in.EntryModuleID != "" {
		fmt.Fprintf(&suffix, "var __jsroll_entry__ = __jsroll_require__(%q);\n", in.EntryModuleID)
		writeExportSurface(&suffix, in, esmExport)
	}
	return prefix.String(), suffix.String(), nil
}

func cjsHarness(in Input) (string, string, error) {
	var prefix strings.Builder
	for _, dep := range in.CrossChunkIDs {
		fmt.Fprintf(&prefix, "require(%q);\n", dep)
	}

	var suffix strings.Builder
	if in.EntryModuleID != "" {
		fmt.Fprintf(&suffix, "var __jsroll_entry__ = __jsroll_require__(%q);\n", in.EntryModuleID)
		switch in.ExportMode {
		case ExportDefault:
			suffix.WriteString("module.exports = __jsroll_entry__.default;\n")
		case ExportNamed:
			suffix.WriteString("module.exports = __jsroll_entry__;\n")
		}
	}
	return prefix.String(), suffix.String(), nil
}

func amdHarness(in Input) (string, string, error) {
	deps := make([]string, len(in.CrossChunkIDs))
	params := make([]string, len(in.CrossChunkIDs))
	for i, dep := range in.CrossChunkIDs {
		deps[i] = fmt.Sprintf("%q", dep)
		params[i] = fmt.Sprintf("__dep%d__", i)
	}

	var prefix strings.Builder
	fmt.Fprintf(&prefix, "define([%s], function(%s) {\n", strings.Join(deps, ", "), strings.Join(params, ", "))

	var suffix strings.Builder
	if in.EntryModuleID != "" {
		fmt.Fprintf(&suffix, "var __jsroll_entry__ = __jsroll_require__(%q);\n", in.EntryModuleID)
		switch in.ExportMode {
		case ExportDefault:
			suffix.WriteString("return __jsroll_entry__.default;\n")
		case ExportNamed:
			suffix.WriteString("return __jsroll_entry__;\n")
		default:
			suffix.WriteString("return undefined;\n")
		}
	}
	suffix.WriteString("});\n")
	return prefix.String(), suffix.String(), nil
}

// systemHarness emits a SystemJS registration. It shares the AMD-style
// dependency-array shape since both formats are, at this level of fidelity,
// "declare deps, run a factory" registries; a real SystemJS transform would
// also rewrite live-binding setters, which is out of reach without an AST.
func systemHarness(in Input) (string, string, error) {
	deps := make([]string, len(in.CrossChunkIDs))
	for i, dep := range in.CrossChunkIDs {
		deps[i] = fmt.Sprintf("%q", dep)
	}

	var prefix strings.Builder
	fmt.Fprintf(&prefix, "System.register([%s], function(exports, module) {\n  return {\n    setters: [],\n    execute: function() {\n", strings.Join(deps, ", "))

	var suffix strings.Builder
	if in.EntryModuleID != "" {
		fmt.Fprintf(&suffix, "var __jsroll_entry__ = __jsroll_require__(%q);\n", in.EntryModuleID)
		switch in.ExportMode {
		case ExportDefault:
			suffix.WriteString("exports('default', __jsroll_entry__.default);\n")
		case ExportNamed:
			suffix.WriteString("Object.keys(__jsroll_entry__).forEach(function(k) { exports(k, __jsroll_entry__[k]); });\n")
		}
	}
	suffix.WriteString("    }\n  };\n});\n")
	return prefix.String(), suffix.String(), nil
}

// iifeHarness and umdHarness only ever apply to single-chunk builds (the
// option normalizer rejects multi-chunk IIFE/UMD output), so there is never
// a CrossChunkIDs list to thread through here.
func iifeHarness(in Input, out *options.Output) (string, string, error) {
	if err := warnBrowserGlobals(in, out); err != nil {
		return "", "", err
	}
	global := out.Name
	if global == "" {
		global = "Bundle"
	}

	var prefix strings.Builder
	prefix.WriteString("(function() {\n")

	var suffix strings.Builder
	if in.EntryModuleID != "" {
		fmt.Fprintf(&suffix, "var __jsroll_entry__ = __jsroll_require__(%q);\n", in.EntryModuleID)
		switch in.ExportMode {
		case ExportDefault:
			fmt.Fprintf(&suffix, "(typeof self !== 'undefined' ? self : this)[%q] = __jsroll_entry__.default;\n", global)
		case ExportNamed:
			fmt.Fprintf(&suffix, "(typeof self !== 'undefined' ? self : this)[%q] = __jsroll_entry__;\n", global)
		}
	}
	suffix.WriteString("})();\n")
	return prefix.String(), suffix.String(), nil
}

func umdHarness(in Input, out *options.Output) (string, string, error) {
	if err := warnBrowserGlobals(in, out); err != nil {
		return "", "", err
	}
	global := out.Name
	if global == "" {
		global = "Bundle"
	}

	var prefix strings.Builder
	prefix.WriteString("(function(root, factory) {\n")
	prefix.WriteString("  if (typeof define === 'function' && define.amd) { define([], factory); }\n")
	prefix.WriteString("  else if (typeof module === 'object' && module.exports) { module.exports = factory(); }\n")
	fmt.Fprintf(&prefix, "  else { root[%q] = factory(); }\n", global)
	prefix.WriteString("}(typeof self !== 'undefined' ? self : this, function() {\n")

	var suffix strings.Builder
	if in.EntryModuleID != "" {
		fmt.Fprintf(&suffix, "var __jsroll_entry__ = __jsroll_require__(%q);\n", in.EntryModuleID)
		switch in.ExportMode {
		case ExportDefault:
			suffix.WriteString("return __jsroll_entry__.default;\n")
		case ExportNamed:
			suffix.WriteString("return __jsroll_entry__;\n")
		default:
			suffix.WriteString("return undefined;\n")
		}
	}
	suffix.WriteString("}));\n")
	return prefix.String(), suffix.String(), nil
}

func esmExport(name string) string {
	return fmt.Sprintf("export const %s = __jsroll_entry__[%q];\n", name, name)
}

func writeExportSurface(b *strings.Builder, in Input, esmNamedFn func(string) string) {
	switch in.ExportMode {
	case ExportDefault:
		b.WriteString("export default __jsroll_entry__.default;\n")
	case ExportNamed:
		for _, name := range in.ExportNames {
			b.WriteString(esmNamedFn(name))
		}
	}
}
