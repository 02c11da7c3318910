package options

import "strings"

// OutputFormat is the closed set of supported output dialects.
type OutputFormat string

const (
	FormatAMD    OutputFormat = "amd"
	FormatCJS    OutputFormat = "cjs"
	FormatSystem OutputFormat = "system"
	FormatESM    OutputFormat = "esm"
	FormatIIFE   OutputFormat = "iife"
	FormatUMD    OutputFormat = "umd"
)

var validFormats = map[OutputFormat]bool{
	FormatAMD: true, FormatCJS: true, FormatSystem: true,
	FormatESM: true, FormatIIFE: true, FormatUMD: true,
}

// SourcemapMode selects whether/how a source map is emitted.
type SourcemapMode int

const (
	SourcemapOff SourcemapMode = iota
	SourcemapExternal
	SourcemapInline
)

// RawOutput is the caller-supplied, not-yet-validated per-call output
// configuration.
type RawOutput struct {
	Format OutputFormat

	File string
	Dir  string

	EntryFileNames string
	ChunkFileNames string
	AssetFileNames string

	Sourcemap     SourcemapMode
	SourcemapFile string

	Globals map[string]string
	Name    string

	OptimizeChunks bool

	UnknownFields []string
}

// Output is the normalized OutputConfig.
type Output struct {
	Format OutputFormat

	File string
	Dir  string

	EntryFileNames string
	ChunkFileNames string
	AssetFileNames string

	Sourcemap     SourcemapMode
	SourcemapFile string

	Globals map[string]string
	Name    string

	OptimizeChunks bool
}

const (
	defaultEntryFileNames = "[name].js"
	defaultChunkFileNames = "[name]-[hash].js"
	defaultAssetFileNames = "[name]-[hash][extname]"
)

// NormalizeOutput validates raw against the OutputConfig invariants,
// layering the Input's output defaults beneath whatever the caller passed,
// and checking the format. multiChunk is supplied by the caller, which alone
// knows the chunk count; the rules it gates stay out of this package's
// reach otherwise.
func NormalizeOutput(raw *RawOutput, in *Input, multiChunk bool) (*Output, error) {
	if raw == nil {
		return nil, missingOptions("You must supply an output options object to rollup.generate/write")
	}

	warn := in.OnWarn
	for _, key := range raw.UnknownFields {
		emitWarning(warn, &Warning{Code: string(KindUnknownOption), Message: "unknown output option: " + key})
	}

	out := &Output{
		Format:         raw.Format,
		File:           raw.File,
		Dir:            raw.Dir,
		EntryFileNames: firstNonEmpty(raw.EntryFileNames, in.Output.EntryFileNames, defaultEntryFileNames),
		ChunkFileNames: firstNonEmpty(raw.ChunkFileNames, in.Output.ChunkFileNames, defaultChunkFileNames),
		AssetFileNames: firstNonEmpty(raw.AssetFileNames, in.Output.AssetFileNames, defaultAssetFileNames),
		Sourcemap:      raw.Sourcemap,
		SourcemapFile:  raw.SourcemapFile,
		Globals:        mergeGlobals(in.Output.Globals, raw.Globals),
		Name:           firstNonEmpty(raw.Name, in.Output.Name),
		OptimizeChunks: raw.OptimizeChunks,
	}
	if out.Format == "" {
		out.Format = in.Output.Format
	}

	if err := checkOutputOptions(out); err != nil {
		return nil, err
	}
	if err := validateOutput(out, in, multiChunk); err != nil {
		return nil, err
	}
	return out, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func mergeGlobals(defaults, override map[string]string) map[string]string {
	if len(defaults) == 0 && len(override) == 0 {
		return nil
	}
	merged := make(map[string]string, len(defaults)+len(override))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}

func checkOutputOptions(out *Output) error {
	if out.Format == "" {
		return invalidOption("You must specify output.format, which can be one of 'amd', 'cjs', 'system', 'esm', 'iife' or 'umd'", "")
	}
	if strings.EqualFold(string(out.Format), "es6") {
		return invalidOption(`The "es6" output format is deprecated, please use "esm" instead`, "")
	}
	if !validFormats[out.Format] {
		return invalidOption("invalid output.format: "+string(out.Format), "")
	}
	return nil
}

func validateOutput(out *Output, in *Input, multiChunk bool) error {
	if out.File != "" && out.Dir != "" {
		return invalidOption("You must set either output.file for a single-file build or output.dir when generating multiple chunks, not both", "")
	}

	if in.Input.Kind == EntryNamed && out.File != "" {
		return invalidOption("You must set output.dir instead of output.file when providing named inputs.", "")
	}

	if multiChunk {
		if out.File != "" {
			return invalidOption("You must set output.dir instead of output.file when generating multiple chunks.", "")
		}
		if out.Format == FormatUMD || out.Format == FormatIIFE {
			return invalidOption("UMD and IIFE output formats are not supported for code-splitting builds.", "")
		}
		if out.SourcemapFile != "" {
			return invalidOption("output.sourcemapFile is not supported for code-splitting builds.", "")
		}
	}

	if in.PreserveModules && out.File != "" {
		return invalidOption("You must set output.dir, not output.file, when using the preserveModules option.", "")
	}

	if in.InlineDynamicImports && out.OptimizeChunks {
		return invalidOption("inlineDynamicImports forbids chunk post-optimization (optimizeChunks).", "")
	}
	if in.PreserveModules && out.OptimizeChunks {
		return invalidOption("preserveModules forbids chunk post-optimization (optimizeChunks).", "")
	}

	return nil
}

// RequireWriteTarget enforces write's own missing-options check before the
// generate phase runs: a write needs file or dir. A nil raw falls through
// so NormalizeOutput can report the missing options object itself.
func RequireWriteTarget(raw *RawOutput) error {
	if raw != nil && raw.File == "" && raw.Dir == "" {
		return missingOptions("You must specify output.file")
	}
	return nil
}
