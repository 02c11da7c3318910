package jsroll

import (
	"sync"
	"time"

	"github.com/coldog/jsroll/internal/graph"
	"github.com/coldog/jsroll/internal/options"
	"github.com/coldog/jsroll/internal/perf"
	"github.com/coldog/jsroll/internal/watch"
)

// Handle is the public value returned once per top-level Rollup call.
// Generate and Write may be called any number of times.
type Handle struct {
	in      *options.Input
	graph   *graph.Graph
	watch   *watch.Handle
	timings *perf.Timings

	mu        sync.Mutex
	optimized bool
}

// Cache returns a snapshot of this handle's module hashes. RawInput.Cache
// is only an on/off flag, so a snapshot cannot be passed to a later build,
// and later builds re-parse every module. Absent (returns nil) when the
// caller disabled caching.
func (h *Handle) Cache() *graph.Cache {
	if !h.in.Cache {
		return nil
	}
	return h.graph.GetCache()
}

// WatchFiles returns every module path discovered by this handle's build.
func (h *Handle) WatchFiles() []string {
	return h.graph.WatchFiles()
}

// GetTimings returns the recorded phase durations and true when the handle
// was built with Perf enabled; otherwise (nil, false).
func (h *Handle) GetTimings() (map[string]time.Duration, bool) {
	if h.timings == nil {
		return nil, false
	}
	return h.timings.Snapshot(), true
}

// takeOptimizeGate reports whether this call is the one that should run the
// chunk post-optimizer: true at most once per handle, on the first Generate
// or Write call that requests it. Later calls skip the pass even when they
// request it too.
func (h *Handle) takeOptimizeGate(requested bool) bool {
	if !requested {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.optimized {
		return false
	}
	h.optimized = true
	return true
}
