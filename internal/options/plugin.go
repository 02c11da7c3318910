package options

import (
	"context"

	"github.com/coldog/jsroll/internal/asset"
	"github.com/coldog/jsroll/internal/bundle"
)

// Plugin is a tagged record of optional hook implementations -- an
// extension in spec vocabulary, "plugin" in the field name the rest of the
// ecosystem uses. Dispatch is by field presence, never by a type switch or
// marker interface: a plugin author only sets the hooks they implement.
type Plugin struct {
	Name string

	// Options may return a replacement RawInput (nil/unchanged is fine).
	Options func(in *RawInput) (*RawInput, error)

	BuildStart func(ctx context.Context) error
	BuildEnd   func(ctx context.Context, buildErr error) error

	RenderStart func(ctx context.Context) error

	// OnGenerate is deprecated; using it produces a PLUGIN_WARNING naming
	// the plugin's declaration position.
	OnGenerate func(ctx context.Context, chunkID string) error

	RenderError func(ctx context.Context, err error) error

	// GenerateBundle runs sequentially after all chunks have rendered. The
	// emit handle scopes any asset the plugin emits here to the current
	// generate call.
	GenerateBundle func(ctx context.Context, out *Output, b *bundle.Bundle, emit *asset.Emitter, isWrite bool) error

	OnWrite func(ctx context.Context, entry bundle.Entry) error

	// Addon contributions, concatenated across every plugin in declaration
	// order to build banner/footer/intro/outro text for a render.
	Banner func(ctx context.Context) (string, error)
	Footer func(ctx context.Context) (string, error)
	Intro  func(ctx context.Context) (string, error)
	Outro  func(ctx context.Context) (string, error)
}

// NonNil drops nil plugin entries silently rather than treating them as
// plugins with no hooks, so callers can build their plugin list with
// conditional entries that resolve to nil.
func NonNil(plugins []*Plugin) []*Plugin {
	out := make([]*Plugin, 0, len(plugins))
	for _, p := range plugins {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}
