// Package harness is the adapter layer between the Scheduler and the
// QC algorithms: it invokes each algorithm with its own native
// argument shape and normalizes the result into the uniform qc.Result
// envelope. Invoke is synchronous and may be CPU-heavy; callers run it
// on a worker suitable for blocking numeric work.
package harness

import (
	"fmt"

	"github.com/metno/rove/internal/catalog"
	"github.com/metno/rove/internal/qc"
	"github.com/metno/rove/internal/qcerrors"
)

// SeriesAlgo is the native signature for a series-test algorithm: the
// station's observations plus the already-computed results of its
// parent tests (keyed by TestID), producing one flag per timestamp.
type SeriesAlgo func(obs qc.SeriesObs, parents map[qc.TestID]qc.Result) ([]qc.SeriesFlagged, error)

// SpatialAlgo is the native signature for a spatial-test algorithm:
// the slice's observations plus parent results, producing one flag
// per station.
type SpatialAlgo func(obs qc.SpatialObs, seriesByStation map[string]qc.SeriesObs, parents map[qc.TestID]qc.Result) ([]qc.SpatialFlagged, error)

// Input bundles everything a single Invoke call needs: the raw
// observations fetched by the Data Switch, and the already completed
// parent results for this run.
type Input struct {
	Series  *qc.SeriesObs
	Spatial *qc.SpatialObs

	// SeriesByStation lets a spatial test whose catalog entry declares
	// a series-test dependency read each station's own series. The
	// scheduler does not populate it, so it is nil in every run it
	// starts, whether or not such a dependency is declared.
	SeriesByStation map[string]qc.SeriesObs

	Parents map[qc.TestID]qc.Result
}

// Invoke dispatches desc to its registered algorithm and normalizes
// the result. It never panics on a mismatched Algo type: a
// catalog/algorithm mismatch is an Internal error, since it reflects
// a construction-time bug, not a data problem.
func Invoke(desc catalog.Descriptor, in Input) (qc.Result, error) {
	switch desc.Kind {
	case qc.SeriesTest:
		fn, ok := desc.Algo.(SeriesAlgo)
		if !ok {
			return qc.Result{}, qcerrors.New(qcerrors.Internal, "test %q has no registered SeriesAlgo", desc.ID)
		}
		if in.Series == nil {
			return qc.Result{}, qcerrors.New(qcerrors.Internal, "test %q invoked without series observations", desc.ID)
		}
		flags, err := fn(*in.Series, in.Parents)
		if err != nil {
			return qc.Result{}, qcerrors.ForTest(string(desc.ID), err)
		}
		return qc.Result{
			TestID: desc.ID,
			Kind:   qc.SeriesTest,
			Series: &qc.SeriesResult{TestID: desc.ID, Points: flags},
		}, nil

	case qc.SpatialTest:
		fn, ok := desc.Algo.(SpatialAlgo)
		if !ok {
			return qc.Result{}, qcerrors.New(qcerrors.Internal, "test %q has no registered SpatialAlgo", desc.ID)
		}
		if in.Spatial == nil {
			return qc.Result{}, qcerrors.New(qcerrors.Internal, "test %q invoked without spatial observations", desc.ID)
		}
		flags, err := fn(*in.Spatial, in.SeriesByStation, in.Parents)
		if err != nil {
			return qc.Result{}, qcerrors.ForTest(string(desc.ID), err)
		}
		return qc.Result{
			TestID:  desc.ID,
			Kind:    qc.SpatialTest,
			Spatial: &qc.SpatialResult{TestID: desc.ID, Points: flags},
		}, nil

	default:
		return qc.Result{}, qcerrors.New(qcerrors.Internal, "test %q has unknown kind %v", desc.ID, desc.Kind)
	}
}

// parentSeriesFlags looks up a single parent's per-timestamp flags by
// timestamp, for algorithms that branch on an upstream test's
// outcome (e.g. skip a point already flagged Invalid by a prior
// check).
func parentSeriesFlags(parents map[qc.TestID]qc.Result, id qc.TestID) (map[int64]qc.Flag, error) {
	r, ok := parents[id]
	if !ok {
		return nil, fmt.Errorf("missing parent result for %q", id)
	}
	if r.Series == nil {
		return nil, fmt.Errorf("parent %q is not a series result", id)
	}
	out := make(map[int64]qc.Flag, len(r.Series.Points))
	for _, p := range r.Series.Points {
		out[p.Time.Unix()] = p.Flag
	}
	return out, nil
}
