package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/coldog/jsroll/internal/options"
	"github.com/coldog/jsroll/pkg/jsroll"
	"github.com/coldog/jsroll/pkg/util"
)

var (
	flagConfig          string
	flagRoot            string
	flagFormat          string
	flagFile            string
	flagDir             string
	flagName            string
	flagSourcemap       string
	flagEntryFileNames  string
	flagChunkFileNames  string
	flagAssetFileNames  string
	flagPreserveModules bool
	flagInlineDynamic   bool
	flagPerf            bool
	flagVerbose         bool
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jsroll [entry...]",
		Short: "Bundle JavaScript modules into chunks",
		Long: `jsroll resolves the dependency graph of one or more entry modules,
splits it into chunks along dynamic-import boundaries, and writes each chunk
in the chosen output format (amd, cjs, system, esm, iife, umd).

Defaults are read from a jsroll config file (jsroll.yaml in the project root,
or --config) and overridden by flags.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			zerolog.SetGlobalLevel(zerolog.WarnLevel)
			if flagVerbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
			return loadConfig(cmd)
		},
		RunE: runBuild,
	}

	cmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to config file (default: jsroll.yaml in the project root)")
	cmd.PersistentFlags().StringVar(&flagRoot, "root", ".", "project root to resolve entries from")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "increase log verbosity")

	cmd.Flags().StringVarP(&flagFormat, "format", "f", "", "output format: amd, cjs, system, esm, iife or umd")
	cmd.Flags().StringVarP(&flagFile, "file", "o", "", "single output file (single-chunk builds only)")
	cmd.Flags().StringVarP(&flagDir, "dir", "d", "", "output directory")
	cmd.Flags().StringVarP(&flagName, "name", "n", "", "global variable name for iife/umd output")
	cmd.Flags().StringVar(&flagSourcemap, "sourcemap", "", "sourcemap mode: external or inline")
	cmd.Flags().StringVar(&flagEntryFileNames, "entry-file-names", "", "entry chunk name pattern, e.g. [name].js")
	cmd.Flags().StringVar(&flagChunkFileNames, "chunk-file-names", "", "shared chunk name pattern, e.g. [name]-[hash].js")
	cmd.Flags().StringVar(&flagAssetFileNames, "asset-file-names", "", "asset name pattern, e.g. [name]-[hash][extname]")
	cmd.Flags().BoolVar(&flagPreserveModules, "preserve-modules", false, "emit one chunk per input module")
	cmd.Flags().BoolVar(&flagInlineDynamic, "inline-dynamic-imports", false, "fold dynamic imports into the entry chunk")
	cmd.Flags().BoolVar(&flagPerf, "perf", false, "print per-phase timings after the build")

	return cmd
}

// loadConfig layers the config file beneath the flags: any key the caller
// did not set on the command line falls through to the file.
func loadConfig(cmd *cobra.Command) error {
	viper.SetConfigName("jsroll")
	viper.SetConfigType("yaml")
	if flagConfig != "" {
		viper.SetConfigFile(flagConfig)
	} else {
		viper.AddConfigPath(flagRoot)
	}
	viper.SetEnvPrefix("JSROLL")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if flagConfig != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}

	for key, target := range map[string]*string{
		"format":         &flagFormat,
		"file":           &flagFile,
		"dir":            &flagDir,
		"name":           &flagName,
		"sourcemap":      &flagSourcemap,
		"entryFileNames": &flagEntryFileNames,
		"chunkFileNames": &flagChunkFileNames,
		"assetFileNames": &flagAssetFileNames,
	} {
		if *target == "" && viper.IsSet(key) {
			*target = viper.GetString(key)
		}
	}
	if !cmd.Flags().Changed("preserve-modules") && viper.IsSet("preserveModules") {
		flagPreserveModules = viper.GetBool("preserveModules")
	}
	if !cmd.Flags().Changed("inline-dynamic-imports") && viper.IsSet("inlineDynamicImports") {
		flagInlineDynamic = viper.GetBool("inlineDynamicImports")
	}
	return nil
}

func runBuild(cmd *cobra.Command, args []string) error {
	popd, err := util.Pushd(flagRoot)
	if err != nil {
		return err
	}
	defer popd()

	in := &options.RawInput{
		Input:                entrySpec(args),
		PreserveModules:      flagPreserveModules,
		InlineDynamicImports: flagInlineDynamic,
		Perf:                 flagPerf,
		OnWarn: func(w *options.Warning, def func(*options.Warning)) {
			def(w)
		},
	}

	h, err := jsroll.Rollup(cmd.Context(), in)
	if err != nil {
		return err
	}

	out := &options.RawOutput{
		Format:         options.OutputFormat(strings.ToLower(flagFormat)),
		File:           flagFile,
		Dir:            flagDir,
		Name:           flagName,
		EntryFileNames: flagEntryFileNames,
		ChunkFileNames: flagChunkFileNames,
		AssetFileNames: flagAssetFileNames,
		Sourcemap:      sourcemapMode(flagSourcemap),
	}

	result, err := h.Write(cmd.Context(), out)
	if err != nil {
		return err
	}

	for _, name := range result.Bundle.FileNames() {
		log.Info().Str("file", name).Msg("wrote")
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}

	if timings, ok := h.GetTimings(); ok {
		for _, phase := range []string{"build", "generate", "write"} {
			if d, ok := timings[phase]; ok {
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s\n", phase, d)
			}
		}
	}
	return nil
}

// entrySpec maps the CLI argument shapes onto the entry option: plain paths
// become a list, and any "name=path" argument switches the whole set to the
// named-input map form (which in turn requires --dir).
func entrySpec(args []string) options.EntrySpec {
	named := map[string]string{}
	hasNamed := false
	for _, a := range args {
		if i := strings.IndexByte(a, '='); i > 0 {
			named[a[:i]] = a[i+1:]
			hasNamed = true
		}
	}
	if hasNamed {
		for _, a := range args {
			if !strings.ContainsRune(a, '=') {
				base := strings.TrimSuffix(a, ".js")
				named[base] = a
			}
		}
		return options.EntrySpec{Kind: options.EntryNamed, Named: named}
	}
	if len(args) == 1 {
		return options.EntrySpec{Kind: options.EntrySingle, Single: args[0]}
	}
	return options.EntrySpec{Kind: options.EntryList, List: args}
}

func sourcemapMode(s string) options.SourcemapMode {
	switch strings.ToLower(s) {
	case "external", "true":
		return options.SourcemapExternal
	case "inline":
		return options.SourcemapInline
	default:
		return options.SourcemapOff
	}
}
