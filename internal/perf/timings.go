// Package perf records per-phase wall-clock timings behind the Perf option,
// backing the public handle's GetTimings. Methods are nil-safe so an
// unconfigured tracker is a no-op, and the phase vocabulary is open since
// the pipeline's phases (build, generate, write) repeat per call.
package perf

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// Timings records wall-clock duration per named phase across a single
// handle's lifetime. Safe for concurrent use; a nil *Timings is a valid,
// inert no-op (so callers holding a nil tracker don't need to branch).
type Timings struct {
	mu    sync.Mutex
	spans map[string]time.Duration
	order []string

	registry *prom.HistogramVec
}

// New returns a Timings tracker. If reg is non-nil, every recorded span is
// also observed into a "jsroll_phase_duration_seconds" histogram on that
// registry, labeled by phase.
func New(reg *prom.Registry) *Timings {
	t := &Timings{spans: map[string]time.Duration{}}
	if reg != nil {
		t.registry = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "jsroll",
			Name:      "phase_duration_seconds",
			Help:      "Duration of each build pipeline phase",
			Buckets:   prom.DefBuckets,
		}, []string{"phase"})
		reg.MustRegister(t.registry)
	}
	return t
}

// Start begins timing `phase` and returns a function that records its
// duration when called. Intended as `defer t.Start("build")()`.
func (t *Timings) Start(phase string) func() {
	if t == nil {
		return func() {}
	}
	begin := time.Now()
	return func() {
		t.record(phase, time.Since(begin))
	}
}

func (t *Timings) record(phase string, d time.Duration) {
	t.mu.Lock()
	if _, seen := t.spans[phase]; !seen {
		t.order = append(t.order, phase)
	}
	t.spans[phase] = d
	t.mu.Unlock()

	if t.registry != nil {
		t.registry.WithLabelValues(phase).Observe(d.Seconds())
	}
}

// Snapshot returns a copy of every phase timed so far, as a map (so without
// order); Phases gives the order in which they were first recorded.
func (t *Timings) Snapshot() map[string]time.Duration {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]time.Duration, len(t.spans))
	for k, v := range t.spans {
		out[k] = v
	}
	return out
}

// Phases returns the phase names in the order they were first recorded.
func (t *Timings) Phases() []string {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.order...)
}
