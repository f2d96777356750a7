package dataswitch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/metno/rove/internal/qc"
	"github.com/metno/rove/internal/qcerrors"
	"github.com/stretchr/testify/require"
)

type countingConnector struct {
	calls atomic.Int64
	obs   qc.SeriesObs
	err   error
}

func (c *countingConnector) FetchSeries(_ context.Context, tail string, _, _ *time.Time, _ time.Time) (qc.SeriesObs, error) {
	c.calls.Add(1)
	return c.obs, c.err
}

func (c *countingConnector) FetchSpatial(_ context.Context, _ string, _ time.Time, _ Polygon, _ time.Time) (qc.SpatialObs, error) {
	return qc.SpatialObs{}, nil
}

func TestParseLocator(t *testing.T) {
	source, tail, err := ParseLocator("rest:station-18700")
	require.NoError(t, err)
	require.Equal(t, "rest", source)
	require.Equal(t, "station-18700", tail)

	_, _, err = ParseLocator("no-colon-here")
	require.Error(t, err)
	require.Equal(t, qcerrors.InvalidLocator, qcerrors.KindOf(err))

	_, _, err = ParseLocator("1bad:tail")
	require.Error(t, err)
	require.Equal(t, qcerrors.InvalidLocator, qcerrors.KindOf(err))
}

func TestSwitchUnknownSource(t *testing.T) {
	sw := New(map[string]DataConnector{})
	_, err := sw.FetchSeries(context.Background(), "missing:x", nil, nil, time.Now())
	require.Error(t, err)
	require.Equal(t, qcerrors.UnknownSource, qcerrors.KindOf(err))
}

func TestSwitchWrapsConnectorErrorAsDataError(t *testing.T) {
	conn := &countingConnector{err: qcerrors.New(qcerrors.Internal, "boom")}
	sw := New(map[string]DataConnector{"rest": conn})
	_, err := sw.FetchSeries(context.Background(), "rest:18700", nil, nil, time.Now())
	require.Error(t, err)
	require.Equal(t, qcerrors.DataError, qcerrors.KindOf(err))
}

func TestRequestCacheDeduplicatesFetches(t *testing.T) {
	conn := &countingConnector{obs: qc.SeriesObs{StationID: "18700"}}
	sw := New(map[string]DataConnector{"rest": conn})
	cache := NewRequestCache(sw)

	for i := 0; i < 5; i++ {
		_, err := cache.FetchSeries(context.Background(), "rest:18700", nil, nil, time.Now())
		require.NoError(t, err)
	}

	require.Equal(t, int64(1), conn.calls.Load())
}

func TestRequestCacheDistinctWindowsFetchSeparately(t *testing.T) {
	conn := &countingConnector{}
	sw := New(map[string]DataConnector{"rest": conn})
	cache := NewRequestCache(sw)

	t0 := time.Unix(0, 0)
	t1 := time.Unix(3600, 0)
	t2 := time.Unix(7200, 0)

	_, err := cache.FetchSeries(context.Background(), "rest:18700", &t0, &t1, time.Now())
	require.NoError(t, err)
	_, err = cache.FetchSeries(context.Background(), "rest:18700", &t0, &t2, time.Now())
	require.NoError(t, err)

	require.Equal(t, int64(2), conn.calls.Load())
}
