// Package watch provides the process-scoped watcher handle: a mutable
// single-slot cell set by external watch-mode code and consumed exactly once
// by the next top-level build call, wrapping an fsnotify watcher that tracks
// every module the build discovered so a rebuild can be triggered on change.
package watch

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Handle wraps an *fsnotify.Watcher with single-consumer semantics: Take
// returns the watcher the first time it is called and (nil, false) on every
// call after, so a racing caller can never observe the same watcher handed
// to two builds.
type Handle struct {
	watcher *fsnotify.Watcher
	taken   bool
	mu      sync.Mutex
}

// New creates a Handle around a freshly constructed fsnotify watcher.
func New() (*Handle, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Handle{watcher: w}, nil
}

// Watch adds paths to the underlying watcher. Safe to call before Take.
func (h *Handle) Watch(paths ...string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.watcher == nil {
		return nil
	}
	for _, p := range paths {
		if err := h.watcher.Add(p); err != nil {
			return err
		}
	}
	return nil
}

// Take consumes the handle: the first caller gets the watcher, every
// subsequent caller gets (nil, false), so a racing caller can never see the
// same watcher twice. The build itself does not call Take: it takes the
// Handle from the slot that jsroll.SetWatcher fills.
func (h *Handle) Take() (*fsnotify.Watcher, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.taken {
		return nil, false
	}
	h.taken = true
	log.Debug().Msg("watch: handle consumed by build")
	return h.watcher, true
}

// Events proxies the watcher's event channel for callers that want to
// trigger a rebuild on change, without needing to have called Take first
// (watch-mode front ends observe events continuously across many builds;
// only Take's ownership handoff is single-shot).
func (h *Handle) Events() <-chan fsnotify.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.watcher == nil {
		return nil
	}
	return h.watcher.Events
}

// Close releases the underlying OS watch descriptors.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.watcher == nil {
		return nil
	}
	return h.watcher.Close()
}
