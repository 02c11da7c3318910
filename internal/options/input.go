package options

// EntrySpecKind distinguishes the three caller-facing shapes of the entry
// option: a single specifier, an ordered list, or a logical-name mapping.
type EntrySpecKind int

const (
	EntrySingle EntrySpecKind = iota
	EntryList
	EntryNamed
)

// EntrySpec models the three caller-facing entry shapes (single specifier,
// ordered list, logical-name mapping) as a small closed sum type instead of
// an `any` field, so normalization can switch exhaustively over Kind.
type EntrySpec struct {
	Kind   EntrySpecKind
	Single string
	List   []string
	Named  map[string]string
}

// Count returns how many distinct entry modules this spec names.
func (e EntrySpec) Count() int {
	switch e.Kind {
	case EntrySingle:
		if e.Single == "" {
			return 0
		}
		return 1
	case EntryList:
		return len(e.List)
	case EntryNamed:
		return len(e.Named)
	}
	return 0
}

// Specifiers returns every raw specifier this spec names, in a stable
// order (map iteration is sorted by logical name for EntryNamed).
func (e EntrySpec) Specifiers() []string {
	switch e.Kind {
	case EntrySingle:
		if e.Single == "" {
			return nil
		}
		return []string{e.Single}
	case EntryList:
		return append([]string(nil), e.List...)
	case EntryNamed:
		names := make([]string, 0, len(e.Named))
		for name := range e.Named {
			names = append(names, name)
		}
		sortStrings(names)
		out := make([]string, 0, len(names))
		for _, name := range names {
			out = append(out, e.Named[name])
		}
		return out
	}
	return nil
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// ManualChunksFunc lets the caller hint which chunk a module should land in.
// Returning "" defers to the default partitioning.
type ManualChunksFunc func(moduleID string) string

// OutputDefaults carries the InputConfig's `output` field, layered beneath
// whatever the caller passes directly to Generate/Write.
type OutputDefaults struct {
	Format         OutputFormat
	EntryFileNames string
	ChunkFileNames string
	AssetFileNames string
	Sourcemap      SourcemapMode
	Globals        map[string]string
	Name           string
}

// RawInput is the caller-supplied, not-yet-validated configuration object.
// UnknownFields captures any top-level keys the caller set outside the
// recognized set, for the UNKNOWN_OPTION warning.
type RawInput struct {
	Input                EntrySpec
	Plugins              []*Plugin
	Cache                *bool // nil means "true" (the default); false disables cache reuse
	PreserveModules      bool
	InlineDynamicImports bool
	ManualChunks         ManualChunksFunc
	ChunkGroupingSize    int
	OnWarn               WarnHandler
	Perf                 bool
	ParserPlugins        []*Plugin
	Output               OutputDefaults

	// UnknownFields is populated by callers that decode from a loosely
	// typed source (JSON, CLI flags merged from a config file) and want
	// unrecognized keys surfaced as warnings rather than silently ignored.
	UnknownFields []string
}

// Input is the normalized, immutable InputConfig.
type Input struct {
	Input                EntrySpec
	Plugins              []*Plugin
	Cache                bool
	PreserveModules      bool
	InlineDynamicImports bool
	ManualChunks         ManualChunksFunc
	ChunkGroupingSize    int
	OnWarn               WarnHandler
	Perf                 bool
	ParserPlugins        []*Plugin
	Output               OutputDefaults
}

// NormalizeInput validates and merges raw against the InputConfig
// invariants, running every plugin's `options` hook along the way.
func NormalizeInput(raw *RawInput, driver PluginOptionsHook) (*Input, error) {
	if raw == nil {
		return nil, missingOptions("You must supply an options object to rollup")
	}

	warn := raw.OnWarn
	if warn == nil {
		warn = defaultWarnHandler
	}
	for _, key := range raw.UnknownFields {
		emitWarning(warn, &Warning{Code: string(KindUnknownOption), Message: "unknown option: " + key})
	}

	raw.Plugins = NonNil(raw.Plugins)

	cur := raw
	if driver != nil {
		replacement, err := driver(cur)
		if err != nil {
			return nil, err
		}
		if replacement != nil {
			cur = replacement
			cur.Plugins = NonNil(cur.Plugins)
		}
	}

	in := &Input{
		Input:                cur.Input,
		Plugins:              cur.Plugins,
		Cache:                cur.Cache == nil || *cur.Cache,
		PreserveModules:      cur.PreserveModules,
		InlineDynamicImports: cur.InlineDynamicImports,
		ManualChunks:         cur.ManualChunks,
		ChunkGroupingSize:    cur.ChunkGroupingSize,
		OnWarn:               warn,
		Perf:                 cur.Perf,
		ParserPlugins:        cur.ParserPlugins,
		Output:               cur.Output,
	}

	if err := validateInput(in); err != nil {
		return nil, err
	}
	return in, nil
}

// PluginOptionsHook runs every plugin's `options` hook in declaration order,
// threading each replacement config into the next plugin.
type PluginOptionsHook func(in *RawInput) (*RawInput, error)

func validateInput(in *Input) error {
	if in.InlineDynamicImports {
		if in.ManualChunks != nil {
			return invalidOption("inlineDynamicImports forbids manualChunks", "")
		}
		if in.Input.Count() != 1 {
			return invalidOption("inlineDynamicImports requires exactly one entry", "")
		}
	}
	if in.PreserveModules {
		if in.InlineDynamicImports {
			return invalidOption("preserveModules forbids inlineDynamicImports", "")
		}
		if in.ManualChunks != nil {
			return invalidOption("preserveModules forbids manualChunks", "")
		}
	}
	return nil
}

func defaultWarnHandler(w *Warning, def func(*Warning)) {
	logWarning(w)
}

func emitWarning(h WarnHandler, w *Warning) {
	h(w, logWarning)
}
