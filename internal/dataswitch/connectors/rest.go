// Package connectors provides reference DataConnector implementations
// over HTTP (resty), Redis, and Postgres — the concrete data sources a
// deployment plugs in behind the Data Switch.
package connectors

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/metno/rove/internal/dataswitch"
	"github.com/metno/rove/internal/qc"
)

// restSeriesPoint/restSeriesPayload/restSpatialPayload mirror the
// JSON shape an observation store's HTTP API returns.
type restSeriesPoint struct {
	Time    time.Time `json:"time"`
	Value   float64   `json:"value"`
	Missing bool      `json:"missing"`
}

type restSeriesPayload struct {
	StationID string            `json:"station_id"`
	Lat       float32           `json:"lat"`
	Lon       float32           `json:"lon"`
	IntervalS int               `json:"interval_seconds"`
	Points    []restSeriesPoint `json:"points"`
}

type restSpatialStation struct {
	StationID string  `json:"station_id"`
	Lat       float32 `json:"lat"`
	Lon       float32 `json:"lon"`
	Value     float64 `json:"value"`
	Missing   bool    `json:"missing"`
}

type restSpatialPayload struct {
	Time     time.Time            `json:"time"`
	Stations []restSpatialStation `json:"stations"`
}

// RESTConnector fetches observations from an HTTP observation store.
type RESTConnector struct {
	client  *resty.Client
	baseURL string
}

// NewRESTConnector builds a RESTConnector against baseURL.
func NewRESTConnector(baseURL string) *RESTConnector {
	return &RESTConnector{
		client:  resty.New(),
		baseURL: baseURL,
	}
}

var _ dataswitch.DataConnector = (*RESTConnector)(nil)

// FetchSeries implements dataswitch.DataConnector. The deadline is
// applied through the request context, not the shared client, which
// serves many requests concurrently.
func (r *RESTConnector) FetchSeries(ctx context.Context, tail string, start, end *time.Time, deadline time.Time) (qc.SeriesObs, error) {
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	req := r.client.R().SetContext(ctx)
	if start != nil {
		req.SetQueryParam("start", start.Format(time.RFC3339))
	}
	if end != nil {
		req.SetQueryParam("end", end.Format(time.RFC3339))
	}

	var payload restSeriesPayload
	resp, err := req.SetResult(&payload).Get(fmt.Sprintf("%s/series/%s", r.baseURL, tail))
	if err != nil {
		return qc.SeriesObs{}, err
	}
	if resp.IsError() {
		return qc.SeriesObs{}, fmt.Errorf("rest connector: status %d", resp.StatusCode())
	}

	obs := qc.SeriesObs{
		StationID: payload.StationID,
		Location:  qc.GeoPoint{Lat: payload.Lat, Lon: payload.Lon},
		Interval:  time.Duration(payload.IntervalS) * time.Second,
		Points:    make([]qc.SeriesPoint, len(payload.Points)),
	}
	for i, p := range payload.Points {
		obs.Points[i] = qc.SeriesPoint{Time: p.Time, Value: p.Value, Missing: p.Missing}
	}
	return obs, nil
}

// FetchSpatial implements dataswitch.DataConnector.
func (r *RESTConnector) FetchSpatial(ctx context.Context, tail string, at time.Time, polygon dataswitch.Polygon, deadline time.Time) (qc.SpatialObs, error) {
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	req := r.client.R().SetContext(ctx).SetQueryParam("time", at.Format(time.RFC3339))

	var payload restSpatialPayload
	resp, err := req.SetResult(&payload).Get(fmt.Sprintf("%s/spatial/%s", r.baseURL, tail))
	if err != nil {
		return qc.SpatialObs{}, err
	}
	if resp.IsError() {
		return qc.SpatialObs{}, fmt.Errorf("rest connector: status %d", resp.StatusCode())
	}

	obs := qc.SpatialObs{Time: payload.Time, Stations: make([]qc.SpatialStation, len(payload.Stations))}
	for i, s := range payload.Stations {
		obs.Stations[i] = qc.SpatialStation{
			StationID: s.StationID,
			Location:  qc.GeoPoint{Lat: s.Lat, Lon: s.Lon},
			Value:     s.Value,
			Missing:   s.Missing,
		}
	}
	if len(polygon) >= 3 {
		obs.Stations = filterWithinPolygon(obs.Stations, polygon)
	}
	return obs, nil
}

// filterWithinPolygon keeps only stations inside polygon, using a
// standard even-odd ray-casting point-in-polygon test.
func filterWithinPolygon(stations []qc.SpatialStation, polygon dataswitch.Polygon) []qc.SpatialStation {
	out := stations[:0:0]
	for _, s := range stations {
		if pointInPolygon(s.Location, polygon) {
			out = append(out, s)
		}
	}
	return out
}

func pointInPolygon(p qc.GeoPoint, poly dataswitch.Polygon) bool {
	inside := false
	n := len(poly)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		pi, pj := poly[i], poly[j]
		intersects := (pi.Lon > p.Lon) != (pj.Lon > p.Lon) &&
			p.Lat < (pj.Lat-pi.Lat)*(p.Lon-pi.Lon)/(pj.Lon-pi.Lon)+pi.Lat
		if intersects {
			inside = !inside
		}
	}
	return inside
}
