// Package dag runs a set of interdependent jobs to completion using a fixed
// worker pool. It has no notion of modules, chunks, or bundling: it is the
// generic concurrency primitive shared by the module-graph walk (internal/graph)
// and the per-chunk render and file-write fan-outs (pkg/jsroll), so every
// fan-out in the pipeline goes through the same scheduler.
package dag

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrUnsolvable is returned when no further work can be scheduled and nothing
// is in flight, which happens when the node set contains a cycle or a node
// depends on an id that is not in the node set.
var ErrUnsolvable = errors.New("dag: unsolvable graph (cycle or missing dependency)")

type result struct {
	id  int
	err error
}

type job struct {
	id   int
	ctx  context.Context
	done chan result
}

// ProcessFunc does the actual work for a single node.
type ProcessFunc func(ctx context.Context, id int) error

// DAG schedules ProcessFunc over Nodes, a map from node id to the ids it
// depends on. A node only starts once all of its dependencies have completed
// successfully.
type DAG struct {
	Concurrency int
	Nodes       map[int][]int
	Process     ProcessFunc

	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	inFlight  map[int]bool
	completed map[int]bool
	work      chan job
	done      chan result
	err       error
}

func (g *DAG) init() {
	g.completed = map[int]bool{}
	g.inFlight = map[int]bool{}
	concurrency := g.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	g.work = make(chan job, concurrency)
	g.done = make(chan result)
	g.ctx, g.cancel = context.WithCancel(context.Background())
}

// Solve runs every node to completion, or returns the first error
// encountered (including ErrUnsolvable for a cyclic graph).
func (g *DAG) Solve(ctx context.Context) error {
	g.init()

	concurrency := g.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	g.wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go g.worker(i)
	}
	err := g.pump(ctx)
	g.wg.Wait()
	return err
}

func (g *DAG) worker(i int) {
	defer g.wg.Done()
	for j := range g.work {
		err := g.Process(j.ctx, j.id)
		j.done <- result{id: j.id, err: err}
	}
}

func (g *DAG) pump(ctx context.Context) error {
	defer close(g.work)

	if !g.sendWork(true) {
		return ErrUnsolvable
	}

	for !g.finished() || g.working() {
		select {
		case d := <-g.done:
			g.complete(d.id)
			if d.err != nil {
				g.fail(d.err)
			}
			if !g.finished() {
				sent := g.sendWork(false)
				if !sent && !g.working() {
					return ErrUnsolvable
				}
			}
		case <-ctx.Done():
			log.Debug().Msg("dag: context cancelled, draining in-flight work")
			g.fail(ctx.Err())
		}
	}

	return g.err
}

func (g *DAG) fail(err error) {
	if g.err == nil {
		g.err = err
	}
	g.cancel()
}

func (g *DAG) working() bool {
	return len(g.inFlight) > 0
}

func (g *DAG) finished() bool {
	return g.err != nil || len(g.completed) >= len(g.Nodes)
}

func (g *DAG) complete(id int) {
	g.completed[id] = true
	delete(g.inFlight, id)
}

func (g *DAG) sendWork(block bool) (sent bool) {
	for id := range g.Nodes {
		if !g.ready(id) {
			continue
		}
		j := job{id: id, ctx: g.ctx, done: g.done}
		if block {
			g.work <- j
		} else {
			select {
			case g.work <- j:
			default:
				return
			}
		}
		g.inFlight[id] = true
		sent = true
	}
	return
}

func (g *DAG) ready(id int) bool {
	if g.inFlight[id] || g.completed[id] {
		return false
	}
	for _, dep := range g.Nodes[id] {
		if !g.completed[dep] {
			return false
		}
	}
	return true
}
