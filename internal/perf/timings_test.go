package perf

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimingsRecordsPhasesInOrder(t *testing.T) {
	tm := New(nil)
	done := tm.Start("build")
	time.Sleep(time.Millisecond)
	done()

	done2 := tm.Start("generate")
	time.Sleep(time.Millisecond)
	done2()

	assert.Equal(t, []string{"build", "generate"}, tm.Phases())
	snap := tm.Snapshot()
	require.Contains(t, snap, "build")
	require.Contains(t, snap, "generate")
	assert.Greater(t, snap["build"], time.Duration(0))
}

func TestTimingsNilIsInert(t *testing.T) {
	var tm *Timings
	done := tm.Start("noop")
	assert.NotPanics(t, func() { done() })
	assert.Nil(t, tm.Snapshot())
}

func TestTimingsObservesIntoRegistry(t *testing.T) {
	reg := prom.NewRegistry()
	tm := New(reg)
	tm.Start("build")()

	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, mfs)
}
