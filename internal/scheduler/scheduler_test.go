package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/metno/rove/internal/catalog"
	"github.com/metno/rove/internal/dag"
	"github.com/metno/rove/internal/dataswitch"
	"github.com/metno/rove/internal/harness"
	"github.com/metno/rove/internal/qc"
	"github.com/metno/rove/internal/qcerrors"
	"github.com/stretchr/testify/require"
)

// chainAlgo is a pass-through series algorithm used to exercise
// scheduling without any real numerics: it flags every point Pass
// unless told to fail.
func chainAlgo(fail bool) harness.SeriesAlgo {
	return func(obs qc.SeriesObs, _ map[qc.TestID]qc.Result) ([]qc.SeriesFlagged, error) {
		if fail {
			return nil, qcerrors.New(qcerrors.Internal, "synthetic failure")
		}
		out := make([]qc.SeriesFlagged, len(obs.Points))
		for i, p := range obs.Points {
			out[i] = qc.SeriesFlagged{Time: p.Time, Flag: qc.Pass}
		}
		return out, nil
	}
}

// buildScenario builds a diamond-shaped battery: t1 (root),
// t2/t3 <- t1, t4 <- t2, t5 <- t3, t6 <- t4,t5.
func buildScenario(t *testing.T, failTest qc.TestID) (*catalog.Catalog, *dag.DAG) {
	t.Helper()
	regs := []catalog.Registration{
		{ID: "t1", Kind: qc.SeriesTest, Algo: harness.SeriesAlgo(chainAlgo(failTest == "t1"))},
		{ID: "t2", Kind: qc.SeriesTest, Deps: []qc.TestID{"t1"}, Algo: harness.SeriesAlgo(chainAlgo(failTest == "t2"))},
		{ID: "t3", Kind: qc.SeriesTest, Deps: []qc.TestID{"t1"}, Algo: harness.SeriesAlgo(chainAlgo(failTest == "t3"))},
		{ID: "t4", Kind: qc.SeriesTest, Deps: []qc.TestID{"t2"}, Algo: harness.SeriesAlgo(chainAlgo(failTest == "t4"))},
		{ID: "t5", Kind: qc.SeriesTest, Deps: []qc.TestID{"t3"}, Algo: harness.SeriesAlgo(chainAlgo(failTest == "t5"))},
		{ID: "t6", Kind: qc.SeriesTest, Deps: []qc.TestID{"t4", "t5"}, Algo: harness.SeriesAlgo(chainAlgo(failTest == "t6"))},
	}
	cat, err := catalog.Build(regs)
	require.NoError(t, err)
	d, err := dag.Build(cat)
	require.NoError(t, err)
	return cat, d
}

type fakeConnector struct {
	obs qc.SeriesObs
	err error
}

func (f *fakeConnector) FetchSeries(ctx context.Context, tail string, start, end *time.Time, deadline time.Time) (qc.SeriesObs, error) {
	return f.obs, f.err
}

func (f *fakeConnector) FetchSpatial(ctx context.Context, tail string, at time.Time, polygon dataswitch.Polygon, deadline time.Time) (qc.SpatialObs, error) {
	return qc.SpatialObs{}, nil
}

func newTestSeriesObs() qc.SeriesObs {
	return qc.SeriesObs{
		StationID: "s1",
		Points: []qc.SeriesPoint{
			{Time: time.Unix(0, 0), Value: 1},
			{Time: time.Unix(3600, 0), Value: 2},
		},
	}
}

func TestRunSeriesEmitsEveryNodeExactlyOnceInTopologicalOrder(t *testing.T) {
	cat, d := buildScenario(t, "")
	sw := dataswitch.New(map[string]dataswitch.DataConnector{"obs": &fakeConnector{obs: newTestSeriesObs()}})
	sc := New(cat, d, sw, Config{})

	items, err := sc.RunSeries(context.Background(), SeriesRequest{Locator: "obs:s1", Tests: []qc.TestID{"t6"}})
	require.NoError(t, err)

	seen := map[qc.TestID]bool{}
	order := []qc.TestID{}
	for item := range items {
		require.NoError(t, item.Err)
		seen[item.Result.TestID] = true
		order = append(order, item.Result.TestID)
	}
	require.Len(t, seen, 6)
	require.True(t, indexOf(order, "t1") < indexOf(order, "t2"))
	require.True(t, indexOf(order, "t1") < indexOf(order, "t3"))
	require.True(t, indexOf(order, "t2") < indexOf(order, "t4"))
	require.True(t, indexOf(order, "t3") < indexOf(order, "t5"))
	require.True(t, indexOf(order, "t4") < indexOf(order, "t6"))
	require.True(t, indexOf(order, "t5") < indexOf(order, "t6"))
}

func TestRunSeriesDisconnectedSubsetOnlyRunsAncestors(t *testing.T) {
	cat, d := buildScenario(t, "")
	sw := dataswitch.New(map[string]dataswitch.DataConnector{"obs": &fakeConnector{obs: newTestSeriesObs()}})
	sc := New(cat, d, sw, Config{})

	items, err := sc.RunSeries(context.Background(), SeriesRequest{Locator: "obs:s1", Tests: []qc.TestID{"t2", "t3"}})
	require.NoError(t, err)

	seen := map[qc.TestID]bool{}
	for item := range items {
		require.NoError(t, item.Err)
		seen[item.Result.TestID] = true
	}
	require.Len(t, seen, 3)
	require.True(t, seen["t1"])
	require.True(t, seen["t2"])
	require.True(t, seen["t3"])
	require.False(t, seen["t4"])
}

func TestRunSeriesUnknownTestFailsFastBeforeAnyEmission(t *testing.T) {
	cat, d := buildScenario(t, "")
	sw := dataswitch.New(map[string]dataswitch.DataConnector{"obs": &fakeConnector{obs: newTestSeriesObs()}})
	sc := New(cat, d, sw, Config{})

	_, err := sc.RunSeries(context.Background(), SeriesRequest{Locator: "obs:s1", Tests: []qc.TestID{"tX"}})
	require.Error(t, err)
	require.Equal(t, qcerrors.UnknownTest, qcerrors.KindOf(err))
}

func TestRunSeriesDataErrorYieldsZeroEmissions(t *testing.T) {
	cat, d := buildScenario(t, "")
	sw := dataswitch.New(map[string]dataswitch.DataConnector{"obs": &fakeConnector{err: qcerrors.New(qcerrors.Internal, "boom")}})
	sc := New(cat, d, sw, Config{})

	_, err := sc.RunSeries(context.Background(), SeriesRequest{Locator: "obs:s1", Tests: []qc.TestID{"t1"}})
	require.Error(t, err)
	require.Equal(t, qcerrors.DataError, qcerrors.KindOf(err))
}

func TestRunSeriesHarnessFailureClosesStreamWithFewerEmissionsThanSubDAG(t *testing.T) {
	cat, d := buildScenario(t, "t4")
	sw := dataswitch.New(map[string]dataswitch.DataConnector{"obs": &fakeConnector{obs: newTestSeriesObs()}})
	sc := New(cat, d, sw, Config{})

	items, err := sc.RunSeries(context.Background(), SeriesRequest{Locator: "obs:s1", Tests: []qc.TestID{"t6"}})
	require.NoError(t, err)

	var results, errs int
	for item := range items {
		if item.Err != nil {
			errs++
			require.Equal(t, qcerrors.TestFailure, qcerrors.KindOf(item.Err))
			continue
		}
		results++
	}
	require.Equal(t, 1, errs)
	require.Less(t, results, 6)
}

func TestRunSeriesCancellationClosesStreamWithCancelled(t *testing.T) {
	slow := harness.SeriesAlgo(func(obs qc.SeriesObs, _ map[qc.TestID]qc.Result) ([]qc.SeriesFlagged, error) {
		time.Sleep(50 * time.Millisecond)
		out := make([]qc.SeriesFlagged, len(obs.Points))
		for i, p := range obs.Points {
			out[i] = qc.SeriesFlagged{Time: p.Time, Flag: qc.Pass}
		}
		return out, nil
	})
	regs := []catalog.Registration{
		{ID: "t1", Kind: qc.SeriesTest, Algo: slow},
		{ID: "t2", Kind: qc.SeriesTest, Deps: []qc.TestID{"t1"}, Algo: slow},
		{ID: "t3", Kind: qc.SeriesTest, Deps: []qc.TestID{"t2"}, Algo: slow},
	}
	cat, err := catalog.Build(regs)
	require.NoError(t, err)
	d, err := dag.Build(cat)
	require.NoError(t, err)
	sw := dataswitch.New(map[string]dataswitch.DataConnector{"obs": &fakeConnector{obs: newTestSeriesObs()}})
	sc := New(cat, d, sw, Config{ComputePoolSize: 1})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	items, err := sc.RunSeries(ctx, SeriesRequest{Locator: "obs:s1", Tests: []qc.TestID{"t3"}})
	require.NoError(t, err)

	first := <-items
	require.NoError(t, first.Err)
	require.Equal(t, qc.TestID("t1"), first.Result.TestID)

	// t2 is mid-invocation; cancelling now must end the stream with
	// Cancelled before t2's result is ever emitted.
	cancel()

	results := 1
	var gotCancelled bool
	for item := range items {
		if item.Err != nil {
			require.Equal(t, qcerrors.Cancelled, qcerrors.KindOf(item.Err))
			gotCancelled = true
			continue
		}
		results++
	}
	require.True(t, gotCancelled)
	require.Less(t, results, 3)
}

func TestRunSeriesEmptyTestsListSucceedsWithNoEmissions(t *testing.T) {
	cat, d := buildScenario(t, "")
	sw := dataswitch.New(map[string]dataswitch.DataConnector{"obs": &fakeConnector{obs: newTestSeriesObs()}})
	sc := New(cat, d, sw, Config{})

	items, err := sc.RunSeries(context.Background(), SeriesRequest{Locator: "obs:s1"})
	require.NoError(t, err)

	for item := range items {
		t.Fatalf("expected no emissions, got %+v", item)
	}
}

func TestRunSeriesDeadlineElapsedClosesWithCancelled(t *testing.T) {
	slow := harness.SeriesAlgo(func(obs qc.SeriesObs, _ map[qc.TestID]qc.Result) ([]qc.SeriesFlagged, error) {
		time.Sleep(200 * time.Millisecond)
		return []qc.SeriesFlagged{}, nil
	})
	cat, err := catalog.Build([]catalog.Registration{{ID: "t1", Kind: qc.SeriesTest, Algo: slow}})
	require.NoError(t, err)
	d, err := dag.Build(cat)
	require.NoError(t, err)
	sw := dataswitch.New(map[string]dataswitch.DataConnector{"obs": &fakeConnector{obs: newTestSeriesObs()}})
	sc := New(cat, d, sw, Config{})

	items, err := sc.RunSeries(context.Background(), SeriesRequest{
		Locator:  "obs:s1",
		Tests:    []qc.TestID{"t1"},
		Deadline: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	var gotCancelled bool
	for item := range items {
		require.Error(t, item.Err)
		require.Equal(t, qcerrors.Cancelled, qcerrors.KindOf(item.Err))
		gotCancelled = true
	}
	require.True(t, gotCancelled)
}

func TestRunSpatialRejectsShortPolygon(t *testing.T) {
	cat, d := buildScenario(t, "")
	sw := dataswitch.New(map[string]dataswitch.DataConnector{"obs": &fakeConnector{}})
	sc := New(cat, d, sw, Config{})

	_, err := sc.RunSpatial(context.Background(), SpatialRequest{
		Locator: "obs:s1",
		Tests:   []qc.TestID{"t1"},
		Polygon: dataswitch.Polygon{{Lat: 0, Lon: 0}, {Lat: 1, Lon: 1}},
	})
	require.Error(t, err)
	require.Equal(t, qcerrors.InvalidArgument, qcerrors.KindOf(err))
}

func indexOf(order []qc.TestID, id qc.TestID) int {
	for i, v := range order {
		if v == id {
			return i
		}
	}
	return -1
}
