package jsroll

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/coldog/jsroll/internal/bundle"
	"github.com/coldog/jsroll/internal/dag"
	"github.com/coldog/jsroll/internal/options"
	"github.com/coldog/jsroll/internal/plugin"
)

// Write runs the generate phase with isWrite=true, then persists every
// bundle entry to the configured file or directory.
func (h *Handle) Write(ctx context.Context, rawOut *options.RawOutput) (*GenerateResult, error) {
	if err := options.RequireWriteTarget(rawOut); err != nil {
		return nil, err
	}
	b, out, err := h.generate(ctx, rawOut, true)
	if err != nil {
		return nil, err
	}

	stop := h.timings.Start("write")
	defer stop()

	driver := h.graph.PluginDriver()
	targetDir := out.Dir
	if targetDir == "" {
		targetDir = filepath.Dir(out.File)
	}

	entries := b.Ordered()
	d := &dag.DAG{
		Concurrency: 8,
		Nodes:       map[int][]int{},
		Process: func(ctx context.Context, nodeID int) error {
			return writeEntry(ctx, targetDir, entries[nodeID], out, driver)
		},
	}
	for i := range entries {
		d.Nodes[i] = nil
	}
	if err := d.Solve(ctx); err != nil {
		return nil, err
	}

	return &GenerateResult{Bundle: b}, nil
}

func writeEntry(ctx context.Context, targetDir string, entry bundle.Entry, out *options.Output, driver *plugin.Driver[*options.Plugin]) error {
	switch e := entry.(type) {
	case *bundle.AssetEntry:
		path := filepath.Join(targetDir, e.FileName)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, e.Source, 0o644); err != nil {
			return err
		}
		return driver.RunSequential(ctx, onWriteSelect(entry))
	case *bundle.ChunkEntry:
		return writeChunk(ctx, targetDir, e, out, driver)
	default:
		return fmt.Errorf("jsroll: unknown bundle entry type %T", entry)
	}
}

func writeChunk(ctx context.Context, targetDir string, e *bundle.ChunkEntry, out *options.Output, driver *plugin.Driver[*options.Plugin]) error {
	path := filepath.Join(targetDir, e.FileName)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	code := e.Code
	switch out.Sourcemap {
	case options.SourcemapExternal:
		if e.Map != nil {
			mapPath := path + ".map"
			mapJSON, err := json.Marshal(e.Map)
			if err != nil {
				return err
			}
			if err := os.WriteFile(mapPath, mapJSON, 0o644); err != nil {
				return err
			}
			code += "//# sourceMappingURL=" + filepath.Base(e.FileName) + ".map\n"
		}
	case options.SourcemapInline:
		if e.Map != nil {
			mapJSON, err := json.Marshal(e.Map)
			if err != nil {
				return err
			}
			code += "//# sourceMappingURL=data:application/json;base64," + base64.StdEncoding.EncodeToString(mapJSON) + "\n"
		}
	}
	if len(code) == 0 || code[len(code)-1] != '\n' {
		code += "\n"
	}

	if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
		return err
	}
	return driver.RunSequential(ctx, onWriteSelect(e))
}

func onWriteSelect(entry bundle.Entry) plugin.Select[*options.Plugin] {
	return func(_ int, p *options.Plugin) plugin.Hook {
		if p.OnWrite == nil {
			return nil
		}
		return func(ctx context.Context) error {
			return p.OnWrite(ctx, entry)
		}
	}
}
