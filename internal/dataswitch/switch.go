// Package dataswitch implements the capability registry that maps a
// locator's source prefix to a DataConnector, and the per-request
// dispatch, deadline enforcement, and fetch de-duplication around it.
package dataswitch

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/metno/rove/internal/qc"
	"github.com/metno/rove/internal/qcerrors"
)

// Polygon is a closed region used to bound a spatial fetch. A nil or
// empty Polygon means the whole globe.
type Polygon []qc.GeoPoint

// DataConnector is the capability every concrete data source
// implements. Implementations must be safe for concurrent use from
// many requests at once.
type DataConnector interface {
	FetchSeries(ctx context.Context, tail string, start, end *time.Time, deadline time.Time) (qc.SeriesObs, error)
	FetchSpatial(ctx context.Context, tail string, at time.Time, polygon Polygon, deadline time.Time) (qc.SpatialObs, error)
}

// Switch is the immutable, process-wide registry of connectors,
// keyed by source name.
type Switch struct {
	connectors map[string]DataConnector
}

// New builds a Switch from a fixed set of named connectors.
func New(connectors map[string]DataConnector) *Switch {
	cp := make(map[string]DataConnector, len(connectors))
	for k, v := range connectors {
		cp[k] = v
	}
	return &Switch{connectors: cp}
}

// validSource reports whether s matches the locator source grammar,
// [A-Za-z_][A-Za-z0-9_]*.
func validSource(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// ParseLocator splits a "<source>:<tail>" locator into its source and
// tail, failing with InvalidLocator on a missing separator or
// malformed source.
func ParseLocator(locator string) (source, tail string, err error) {
	idx := strings.IndexByte(locator, ':')
	if idx < 0 {
		return "", "", qcerrors.New(qcerrors.InvalidLocator, "locator %q has no ':' separator", locator)
	}
	source, tail = locator[:idx], locator[idx+1:]
	if !validSource(source) {
		return "", "", qcerrors.New(qcerrors.InvalidLocator, "locator %q has malformed source %q", locator, source)
	}
	if strings.IndexByte(tail, 0) >= 0 {
		return "", "", qcerrors.New(qcerrors.InvalidLocator, "locator %q tail contains NUL", locator)
	}
	return source, tail, nil
}

func (s *Switch) lookup(source string) (DataConnector, error) {
	c, ok := s.connectors[source]
	if !ok {
		return nil, qcerrors.New(qcerrors.UnknownSource, "unknown data source %q", source)
	}
	return c, nil
}

// FetchSeries parses locator, dispatches to the matching connector,
// and wraps any connector failure as a DataError.
func (s *Switch) FetchSeries(ctx context.Context, locator string, start, end *time.Time, deadline time.Time) (qc.SeriesObs, error) {
	source, tail, err := ParseLocator(locator)
	if err != nil {
		return qc.SeriesObs{}, err
	}
	conn, err := s.lookup(source)
	if err != nil {
		return qc.SeriesObs{}, err
	}
	obs, err := conn.FetchSeries(ctx, tail, start, end, deadline)
	if err != nil {
		return qc.SeriesObs{}, qcerrors.Wrap(qcerrors.DataError, err, "fetch_series %s failed", locator)
	}
	return obs, nil
}

// FetchSpatial parses locator, dispatches to the matching connector,
// and wraps any connector failure as a DataError.
func (s *Switch) FetchSpatial(ctx context.Context, locator string, at time.Time, polygon Polygon, deadline time.Time) (qc.SpatialObs, error) {
	source, tail, err := ParseLocator(locator)
	if err != nil {
		return qc.SpatialObs{}, err
	}
	conn, err := s.lookup(source)
	if err != nil {
		return qc.SpatialObs{}, err
	}
	obs, err := conn.FetchSpatial(ctx, tail, at, polygon, deadline)
	if err != nil {
		return qc.SpatialObs{}, qcerrors.Wrap(qcerrors.DataError, err, "fetch_spatial %s failed", locator)
	}
	return obs, nil
}

// DeadlineBudget derives a connector deadline from the remaining time
// on a request: fraction of whatever is left before requestDeadline.
func DeadlineBudget(requestDeadline time.Time, fraction float64) time.Time {
	remaining := time.Until(requestDeadline)
	if remaining <= 0 {
		return time.Now()
	}
	return time.Now().Add(time.Duration(float64(remaining) * fraction))
}

// fetchKey identifies one (source, tail, window) fetch for per-request
// deduplication.
type fetchKey struct {
	locator string
	start   time.Time
	end     time.Time
}

// RequestCache deduplicates fetches within a single scheduler run: a
// second call for the same (source, tail, window) blocks on the
// first's result instead of re-fetching. Never shared across runs.
type RequestCache struct {
	sw *Switch

	mu      sync.Mutex
	series  map[fetchKey]*seriesCall
	spatial map[fetchKey]*spatialCall
}

type seriesCall struct {
	done chan struct{}
	obs  qc.SeriesObs
	err  error
}

type spatialCall struct {
	done chan struct{}
	obs  qc.SpatialObs
	err  error
}

// NewRequestCache wraps sw for the lifetime of a single scheduler run.
func NewRequestCache(sw *Switch) *RequestCache {
	return &RequestCache{
		sw:      sw,
		series:  make(map[fetchKey]*seriesCall),
		spatial: make(map[fetchKey]*spatialCall),
	}
}

func windowKey(locator string, start, end *time.Time) fetchKey {
	k := fetchKey{locator: locator}
	if start != nil {
		k.start = *start
	}
	if end != nil {
		k.end = *end
	}
	return k
}

// FetchSeries fetches via the wrapped Switch at most once per
// distinct (locator, window) for the lifetime of this RequestCache.
func (c *RequestCache) FetchSeries(ctx context.Context, locator string, start, end *time.Time, deadline time.Time) (qc.SeriesObs, error) {
	key := windowKey(locator, start, end)

	c.mu.Lock()
	call, inflight := c.series[key]
	if !inflight {
		call = &seriesCall{done: make(chan struct{})}
		c.series[key] = call
	}
	c.mu.Unlock()

	if inflight {
		select {
		case <-call.done:
			return call.obs, call.err
		case <-ctx.Done():
			return qc.SeriesObs{}, qcerrors.Wrap(qcerrors.Cancelled, ctx.Err(), "fetch_series %s cancelled", locator)
		}
	}

	call.obs, call.err = c.sw.FetchSeries(ctx, locator, start, end, deadline)
	close(call.done)
	return call.obs, call.err
}

// FetchSpatial fetches via the wrapped Switch at most once per
// distinct (locator, timestamp) for the lifetime of this RequestCache.
func (c *RequestCache) FetchSpatial(ctx context.Context, locator string, at time.Time, polygon Polygon, deadline time.Time) (qc.SpatialObs, error) {
	key := fetchKey{locator: locator, start: at}

	c.mu.Lock()
	call, inflight := c.spatial[key]
	if !inflight {
		call = &spatialCall{done: make(chan struct{})}
		c.spatial[key] = call
	}
	c.mu.Unlock()

	if inflight {
		select {
		case <-call.done:
			return call.obs, call.err
		case <-ctx.Done():
			return qc.SpatialObs{}, qcerrors.Wrap(qcerrors.Cancelled, ctx.Err(), "fetch_spatial %s cancelled", locator)
		}
	}

	call.obs, call.err = c.sw.FetchSpatial(ctx, locator, at, polygon, deadline)
	close(call.done)
	return call.obs, call.err
}
