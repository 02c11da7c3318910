// Package plugin implements the Extension Driver: the three dispatch modes
// the core uses to invoke ordered, polymorphic plugin hooks. The driver is
// deliberately generic over the hook being invoked -- it knows nothing
// about options.Plugin's field names -- so options (which owns the Plugin
// type) never needs to import this package, avoiding a cycle.
package plugin

import (
	"context"
	"errors"
	"sync"
)

// Hook is one extracted, ready-to-call hook implementation, or nil when the
// owning plugin didn't implement it.
type Hook func(ctx context.Context) error

// Select extracts the relevant hook from plugin index i. Returning nil
// means that plugin has no implementation for this hook.
type Select[P any] func(i int, p P) Hook

// Driver dispatches hooks over an ordered plugin list.
type Driver[P any] struct {
	Plugins []P
}

// New constructs a Driver over the given ordered plugin list.
func New[P any](plugins []P) *Driver[P] {
	return &Driver[P]{Plugins: plugins}
}

// RunParallel starts every plugin's hook concurrently and awaits all of
// them. Any failure fails the aggregate; no ordering between plugins is
// guaranteed or required.
func (d *Driver[P]) RunParallel(ctx context.Context, sel Select[P]) error {
	var wg sync.WaitGroup
	errs := make([]error, len(d.Plugins))

	for i, p := range d.Plugins {
		hook := sel(i, p)
		if hook == nil {
			continue
		}
		wg.Add(1)
		go func(i int, hook Hook) {
			defer wg.Done()
			errs[i] = hook(ctx)
		}(i, hook)
	}
	wg.Wait()

	return errors.Join(errs...)
}

// RunSequential invokes each plugin's hook in declaration order, awaiting
// each before starting the next. Unlike RunParallel, hooks here commonly
// mutate shared state (a bundle, a rewrite context) between calls; the
// driver itself holds no opinion on that state, it only serializes access.
func (d *Driver[P]) RunSequential(ctx context.Context, sel Select[P]) error {
	for i, p := range d.Plugins {
		hook := sel(i, p)
		if hook == nil {
			continue
		}
		if err := hook(ctx); err != nil {
			return err
		}
	}
	return nil
}

// RunFirstNonEmpty invokes hooks in declaration order until one reports it
// produced a value (via ok), short-circuiting the rest. Exhaustion without
// any plugin reporting ok returns ok=false.
func RunFirstNonEmpty[P any, R any](ctx context.Context, plugins []P, sel func(i int, p P) (func(ctx context.Context) (R, bool, error), bool)) (R, bool, error) {
	var zero R
	for i, p := range plugins {
		fn, has := sel(i, p)
		if !has || fn == nil {
			continue
		}
		v, ok, err := fn(ctx)
		if err != nil {
			return zero, false, err
		}
		if ok {
			return v, true, nil
		}
	}
	return zero, false, nil
}
