package scheduler

import (
	"context"
	"sort"
	"time"

	"github.com/metno/rove/internal/dag"
	"github.com/metno/rove/internal/dataswitch"
	"github.com/metno/rove/internal/harness"
	"github.com/metno/rove/internal/qc"
	"github.com/metno/rove/internal/qcerrors"
	"golang.org/x/sync/errgroup"
)

// SeriesRequest is the scheduler-level shape of a series validation.
// Start/End nil means the whole series as reported by the connector.
type SeriesRequest struct {
	Locator string
	Start   *time.Time
	End     *time.Time
	Tests   []qc.TestID

	// Deadline overrides the configured request deadline when > 0.
	Deadline time.Duration
}

// SpatialRequest is the scheduler-level shape of a spatial
// validation. The primary locator's stations take precedence over
// BackingSources for any overlapping StationID.
type SpatialRequest struct {
	Locator        string
	BackingSources []string
	Time           time.Time
	Polygon        dataswitch.Polygon
	Tests          []qc.TestID

	// Deadline overrides the configured request deadline when > 0.
	Deadline time.Duration
}

// RunSeries fetches the requested series observation and executes the
// extracted sub-DAG against it, streaming one Item per node.
func (s *Scheduler) RunSeries(ctx context.Context, req SeriesRequest) (<-chan Item, error) {
	if req.Start != nil && req.End != nil && req.Start.After(*req.End) {
		return nil, qcerrors.New(qcerrors.InvalidArgument, "start_time %s is after end_time %s", req.Start, req.End)
	}

	sub, err := s.plan(req.Tests)
	if err != nil {
		return nil, err
	}

	requestDeadline := time.Now().Add(s.deadlineFor(req.Deadline))
	rc := dataswitch.NewRequestCache(s.sw)
	connDeadline := dataswitch.DeadlineBudget(requestDeadline, 1.0)
	obs, err := rc.FetchSeries(ctx, req.Locator, req.Start, req.End, connDeadline)
	if err != nil {
		return nil, err
	}

	build := func(n dag.Node, parents map[qc.TestID]qc.Result) harness.Input {
		return harness.Input{Series: &obs, Parents: parents}
	}
	return s.runDAG(ctx, requestDeadline, sub, build), nil
}

// RunSpatial fetches the primary and backing-source spatial
// observations concurrently on the I/O pool, merges them, and
// executes the extracted sub-DAG against the result.
func (s *Scheduler) RunSpatial(ctx context.Context, req SpatialRequest) (<-chan Item, error) {
	if len(req.Polygon) > 0 && len(req.Polygon) < 3 {
		return nil, qcerrors.New(qcerrors.InvalidArgument, "polygon has %d points, need >= 3", len(req.Polygon))
	}

	sub, err := s.plan(req.Tests)
	if err != nil {
		return nil, err
	}

	requestDeadline := time.Now().Add(s.deadlineFor(req.Deadline))
	obs, err := s.fetchMergedSpatial(ctx, req, requestDeadline)
	if err != nil {
		return nil, err
	}

	build := func(n dag.Node, parents map[qc.TestID]qc.Result) harness.Input {
		return harness.Input{Spatial: &obs, Parents: parents}
	}
	return s.runDAG(ctx, requestDeadline, sub, build), nil
}

func (s *Scheduler) deadlineFor(override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	return s.cfg.RequestDeadline
}

// fetchMergedSpatial fetches the primary locator and every backing
// source concurrently on the I/O pool, then merges them:
// non-overlapping stations from backing sources are appended, and the
// primary's station wins whenever a StationID repeats. All fetches
// share one RequestCache, so a backing source that repeats the
// primary locator (or another backing source) is fetched at most
// once.
func (s *Scheduler) fetchMergedSpatial(ctx context.Context, req SpatialRequest, requestDeadline time.Time) (qc.SpatialObs, error) {
	locators := append([]string{req.Locator}, req.BackingSources...)
	results := make([]qc.SpatialObs, len(locators))
	rc := dataswitch.NewRequestCache(s.sw)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.IOPoolSize)
	for i, locator := range locators {
		i, locator := i, locator
		g.Go(func() error {
			// Recomputed right before the fetch runs, so a fetch that
			// waited behind the I/O pool's limit is budgeted against
			// what's actually left of the request deadline, not the
			// full deadline the request started with.
			connDeadline := dataswitch.DeadlineBudget(requestDeadline, 1.0)
			obs, err := rc.FetchSpatial(gctx, locator, req.Time, req.Polygon, connDeadline)
			if err != nil {
				return err
			}
			results[i] = obs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return qc.SpatialObs{}, err
	}

	merged := qc.SpatialObs{Time: req.Time}
	seen := make(map[string]bool)
	for _, obs := range results {
		for _, st := range obs.Stations {
			if seen[st.StationID] {
				continue
			}
			seen[st.StationID] = true
			merged.Stations = append(merged.Stations, st)
		}
	}
	sort.Slice(merged.Stations, func(i, j int) bool {
		return merged.Stations[i].StationID < merged.Stations[j].StationID
	})
	return merged, nil
}
