package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/metno/rove/internal/dataswitch"
	"github.com/metno/rove/internal/qc"
	"github.com/redis/go-redis/v9"
)

// RedisConnector reads "hot" station data cached by an upstream
// ingest pipeline — low-latency access to the most recent series
// window or spatial slice for a station/timestamp, keyed by tail.
type RedisConnector struct {
	rdb *redis.Client
}

// NewRedisConnector wraps an existing go-redis client.
func NewRedisConnector(rdb *redis.Client) *RedisConnector {
	return &RedisConnector{rdb: rdb}
}

var _ dataswitch.DataConnector = (*RedisConnector)(nil)

type redisSeriesPoint struct {
	T time.Time `json:"t"`
	V float64   `json:"v"`
	M bool      `json:"m,omitempty"`
}

type redisSeriesRecord struct {
	Lat       float32            `json:"lat"`
	Lon       float32            `json:"lon"`
	IntervalS int                `json:"interval_s"`
	Points    []redisSeriesPoint `json:"points"`
}

// FetchSeries implements dataswitch.DataConnector. Keys are stored as
// "series:<tail>"; start/end are applied client-side since Redis
// holds only a bounded recent window per station.
func (c *RedisConnector) FetchSeries(ctx context.Context, tail string, start, end *time.Time, deadline time.Time) (qc.SeriesObs, error) {
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	raw, err := c.rdb.Get(ctx, "series:"+tail).Bytes()
	if err != nil {
		return qc.SeriesObs{}, fmt.Errorf("redis connector: get series:%s: %w", tail, err)
	}

	var rec redisSeriesRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return qc.SeriesObs{}, fmt.Errorf("redis connector: decode series:%s: %w", tail, err)
	}

	obs := qc.SeriesObs{
		StationID: tail,
		Location:  qc.GeoPoint{Lat: rec.Lat, Lon: rec.Lon},
		Interval:  time.Duration(rec.IntervalS) * time.Second,
	}
	for _, p := range rec.Points {
		if start != nil && p.T.Before(*start) {
			continue
		}
		if end != nil && p.T.After(*end) {
			continue
		}
		obs.Points = append(obs.Points, qc.SeriesPoint{Time: p.T, Value: p.V, Missing: p.M})
	}
	return obs, nil
}

type redisSpatialEntry struct {
	StationID string  `json:"station_id"`
	Lat       float32 `json:"lat"`
	Lon       float32 `json:"lon"`
	Value     float64 `json:"value"`
	Missing   bool    `json:"missing,omitempty"`
}

// FetchSpatial implements dataswitch.DataConnector. tail names a
// spatial-set key ("spatial:<tail>:<unix-ts>") holding every station
// reporting at that instant.
func (c *RedisConnector) FetchSpatial(ctx context.Context, tail string, at time.Time, polygon dataswitch.Polygon, deadline time.Time) (qc.SpatialObs, error) {
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	key := fmt.Sprintf("spatial:%s:%d", tail, at.Unix())
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return qc.SpatialObs{}, fmt.Errorf("redis connector: get %s: %w", key, err)
	}

	var entries []redisSpatialEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return qc.SpatialObs{}, fmt.Errorf("redis connector: decode %s: %w", key, err)
	}

	obs := qc.SpatialObs{Time: at}
	for _, e := range entries {
		loc := qc.GeoPoint{Lat: e.Lat, Lon: e.Lon}
		if len(polygon) >= 3 && !pointInPolygon(loc, polygon) {
			continue
		}
		obs.Stations = append(obs.Stations, qc.SpatialStation{
			StationID: e.StationID,
			Location:  loc,
			Value:     e.Value,
			Missing:   e.Missing,
		})
	}
	return obs, nil
}
