package plugin

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlugin struct {
	name string
	run  func(ctx context.Context) error
}

func TestRunParallelAllSucceed(t *testing.T) {
	var calls int32
	plugins := []fakePlugin{
		{name: "a", run: func(ctx context.Context) error { atomic.AddInt32(&calls, 1); return nil }},
		{name: "b", run: func(ctx context.Context) error { atomic.AddInt32(&calls, 1); return nil }},
		{name: "c"}, // no hook
	}
	d := New(plugins)
	err := d.RunParallel(context.Background(), func(i int, p fakePlugin) Hook {
		if p.run == nil {
			return nil
		}
		return p.run
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls)
}

func TestRunParallelAggregatesErrors(t *testing.T) {
	plugins := []fakePlugin{
		{run: func(ctx context.Context) error { return errors.New("boom a") }},
		{run: func(ctx context.Context) error { return errors.New("boom b") }},
	}
	d := New(plugins)
	err := d.RunParallel(context.Background(), func(i int, p fakePlugin) Hook { return p.run })
	require.Error(t, err)
}

func TestRunSequentialOrderAndShortCircuit(t *testing.T) {
	var mu sync.Mutex
	var order []string
	plugins := []fakePlugin{
		{name: "first", run: func(ctx context.Context) error {
			mu.Lock()
			order = append(order, "first")
			mu.Unlock()
			return nil
		}},
		{name: "second", run: func(ctx context.Context) error {
			mu.Lock()
			order = append(order, "second")
			mu.Unlock()
			return errors.New("stop here")
		}},
		{name: "third", run: func(ctx context.Context) error {
			mu.Lock()
			order = append(order, "third")
			mu.Unlock()
			return nil
		}},
	}
	d := New(plugins)
	err := d.RunSequential(context.Background(), func(i int, p fakePlugin) Hook { return p.run })
	require.Error(t, err)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestRunFirstNonEmpty(t *testing.T) {
	plugins := []fakePlugin{{name: "a"}, {name: "b"}, {name: "c"}}
	v, ok, err := RunFirstNonEmpty(context.Background(), plugins, func(i int, p fakePlugin) (func(context.Context) (string, bool, error), bool) {
		if p.name != "b" {
			return nil, false
		}
		return func(ctx context.Context) (string, bool, error) {
			return "from-b", true, nil
		}, true
	})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "from-b", v)
}

func TestRunFirstNonEmptyExhausted(t *testing.T) {
	plugins := []fakePlugin{{name: "a"}, {name: "b"}}
	_, ok, err := RunFirstNonEmpty(context.Background(), plugins, func(i int, p fakePlugin) (func(context.Context) (string, bool, error), bool) {
		return nil, false
	})
	require.NoError(t, err)
	require.False(t, ok)
}
