// Package scheduler plans the minimal sub-DAG of QC tests for a
// request, fetches the observations it needs, and executes it with
// bounded concurrency, streaming each test's result back to the
// caller as soon as it is ready.
//
// Run state is owned by a single goroutine per run; workers report
// completions over a channel and never touch it, so no lock guards
// it.
package scheduler

import (
	"context"
	"runtime"
	"time"

	"github.com/metno/rove/internal/catalog"
	"github.com/metno/rove/internal/dag"
	"github.com/metno/rove/internal/dataswitch"
	"github.com/metno/rove/internal/harness"
	"github.com/metno/rove/internal/logger"
	"github.com/metno/rove/internal/qc"
	"github.com/metno/rove/internal/qcerrors"
	"golang.org/x/sync/errgroup"
)

// Config tunes pool sizes and the default request deadline.
type Config struct {
	IOPoolSize      int
	ComputePoolSize int
	RequestDeadline time.Duration
}

// WithDefaults fills zero fields: io = 2xNumCPU, compute = NumCPU,
// deadline = 60s.
func (c Config) WithDefaults() Config {
	if c.IOPoolSize <= 0 {
		c.IOPoolSize = 2 * runtime.NumCPU()
	}
	if c.ComputePoolSize <= 0 {
		c.ComputePoolSize = runtime.NumCPU()
	}
	if c.RequestDeadline <= 0 {
		c.RequestDeadline = 60 * time.Second
	}
	return c
}

// Scheduler binds the immutable, process-wide Catalog/DAG/Switch
// singletons to a Config.
type Scheduler struct {
	cat *catalog.Catalog
	d   *dag.DAG
	sw  *dataswitch.Switch
	cfg Config
}

// New builds a Scheduler. cat and d must describe the same test set;
// d is normally built once via dag.Build(cat) at process start.
func New(cat *catalog.Catalog, d *dag.DAG, sw *dataswitch.Switch, cfg Config) *Scheduler {
	return &Scheduler{cat: cat, d: d, sw: sw, cfg: cfg.WithDefaults()}
}

// Item is one element of a run's output stream: exactly one of
// Result or Err is set. An Err item is always the last item sent.
// Consumers must drain the channel until it closes; the terminal item
// is delivered even when the run context is already cancelled.
type Item struct {
	Result qc.Result
	Err    error
}

// nodeState tracks one sub-DAG node's lifecycle. An index is in
// exactly one of these states at any moment.
type nodeState int

const (
	statePending nodeState = iota
	stateInflight
	stateDone
)

type completion struct {
	idx    int
	result qc.Result
	err    error
}

// runDAG is the state machine at the heart of the Scheduler: it owns
// the run state exclusively and is the only goroutine that ever
// mutates it. buildInput assembles a harness.Input for one node from
// the request's fixed observations plus this run's parent-result
// cache. deadline bounds the whole run; past it the stream closes
// with Cancelled.
func (s *Scheduler) runDAG(ctx context.Context, deadline time.Time, sub *dag.SubDAG, buildInput func(n dag.Node, parents map[qc.TestID]qc.Result) harness.Input) <-chan Item {
	out := make(chan Item)

	go func() {
		defer close(out)

		runCtx, cancel := context.WithDeadline(ctx, deadline)
		defer cancel()

		n := len(sub.Nodes())
		if n == 0 {
			return
		}

		states := make([]nodeState, n)
		childrenCompleted := make([]int, n)
		cache := make(map[qc.TestID]qc.Result, n)
		completions := make(chan completion, n)

		var compute errgroup.Group
		compute.SetLimit(s.cfg.ComputePoolSize)

		dispatch := func(idx int) {
			states[idx] = stateInflight
			node := sub.Nodes()[idx]
			parentIdxs := sub.Parents(idx)
			parents := make(map[qc.TestID]qc.Result, len(parentIdxs))
			for _, p := range parentIdxs {
				pid := sub.Nodes()[p].Descriptor.ID
				parents[pid] = cache[pid]
			}
			in := buildInput(node, parents)
			// compute.Go blocks its caller once the pool's SetLimit is
			// saturated; run the acquire in its own goroutine so the
			// run-state loop below never blocks waiting for a free
			// slot while a completion is waiting to be drained.
			go func() {
				compute.Go(func() error {
					res, err := harness.Invoke(node.Descriptor, in)
					select {
					case completions <- completion{idx: idx, result: res, err: err}:
					case <-runCtx.Done():
					}
					return nil
				})
			}()
		}

		pendingCount := n
		for _, idx := range sub.Roots() {
			dispatch(idx)
		}

		for pendingCount > 0 {
			select {
			case c := <-completions:
				if c.err != nil {
					logger.Error(ctx, "test failed", "test", sub.Nodes()[c.idx].Descriptor.ID, "error", c.err)
					out <- Item{Err: c.err}
					return
				}

				states[c.idx] = stateDone
				pendingCount--
				cache[c.result.TestID] = c.result

				if !emit(runCtx, out, Item{Result: c.result}) {
					out <- Item{Err: qcerrors.Wrap(qcerrors.Cancelled, runCtx.Err(), "run cancelled")}
					return
				}

				for _, child := range sub.Children(c.idx) {
					childrenCompleted[child]++
					if childrenCompleted[child] == len(sub.Parents(child)) && states[child] == statePending {
						dispatch(child)
					}
				}

			case <-runCtx.Done():
				out <- Item{Err: qcerrors.Wrap(qcerrors.Cancelled, runCtx.Err(), "run cancelled")}
				return
			}
		}
	}()

	return out
}

// emit sends item on out, honoring downstream backpressure and run
// cancellation. It reports whether the send succeeded. Terminal error
// items bypass emit and use a plain send: the consumer drains until
// close, so the last item must not be lost to a cancellation race.
func emit(ctx context.Context, out chan<- Item, item Item) bool {
	select {
	case out <- item:
		return true
	case <-ctx.Done():
		return false
	}
}

// plan extracts the sub-DAG for the requested tests, failing fast
// with UnknownTest. Empty and duplicate test lists are accepted:
// dag.Extract treats required as a set.
func (s *Scheduler) plan(tests []qc.TestID) (*dag.SubDAG, error) {
	if len(tests) == 0 {
		return s.d.Extract(nil)
	}
	return s.d.Extract(tests)
}
