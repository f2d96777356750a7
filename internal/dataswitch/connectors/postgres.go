package connectors

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metno/rove/internal/dataswitch"
	"github.com/metno/rove/internal/qc"
)

// PostgresConnector queries an observation warehouse for series and
// spatial data by station id and time window, via pgx's connection
// pool.
type PostgresConnector struct {
	pool *pgxpool.Pool
}

// NewPostgresConnector wraps an existing pgx pool.
func NewPostgresConnector(pool *pgxpool.Pool) *PostgresConnector {
	return &PostgresConnector{pool: pool}
}

var _ dataswitch.DataConnector = (*PostgresConnector)(nil)

const seriesQuery = `
SELECT ts, value, is_missing, lat, lon, interval_seconds
FROM observations
WHERE station_id = $1 AND ($2::timestamptz IS NULL OR ts >= $2) AND ($3::timestamptz IS NULL OR ts <= $3)
ORDER BY ts ASC`

// FetchSeries implements dataswitch.DataConnector.
func (p *PostgresConnector) FetchSeries(ctx context.Context, tail string, start, end *time.Time, deadline time.Time) (qc.SeriesObs, error) {
	qctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	rows, err := p.pool.Query(qctx, seriesQuery, tail, start, end)
	if err != nil {
		return qc.SeriesObs{}, fmt.Errorf("postgres connector: query series for %s: %w", tail, err)
	}
	defer rows.Close()

	obs := qc.SeriesObs{StationID: tail}
	var haveLocation bool
	for rows.Next() {
		var (
			ts        time.Time
			value     float64
			missing   bool
			lat, lon  float32
			intervalS int
		)
		if err := rows.Scan(&ts, &value, &missing, &lat, &lon, &intervalS); err != nil {
			return qc.SeriesObs{}, fmt.Errorf("postgres connector: scan series row: %w", err)
		}
		if !haveLocation {
			obs.Location = qc.GeoPoint{Lat: lat, Lon: lon}
			obs.Interval = time.Duration(intervalS) * time.Second
			haveLocation = true
		}
		obs.Points = append(obs.Points, qc.SeriesPoint{Time: ts, Value: value, Missing: missing})
	}
	if err := rows.Err(); err != nil {
		return qc.SeriesObs{}, fmt.Errorf("postgres connector: iterate series rows: %w", err)
	}
	return obs, nil
}

const spatialQuery = `
SELECT station_id, lat, lon, value, is_missing
FROM observations
WHERE backing_source = $1 AND ts = $2`

// FetchSpatial implements dataswitch.DataConnector.
func (p *PostgresConnector) FetchSpatial(ctx context.Context, tail string, at time.Time, polygon dataswitch.Polygon, deadline time.Time) (qc.SpatialObs, error) {
	qctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	rows, err := p.pool.Query(qctx, spatialQuery, tail, at)
	if err != nil {
		return qc.SpatialObs{}, fmt.Errorf("postgres connector: query spatial for %s: %w", tail, err)
	}
	defer rows.Close()

	obs := qc.SpatialObs{Time: at}
	for rows.Next() {
		var (
			stationID string
			lat, lon  float32
			value     float64
			missing   bool
		)
		if err := rows.Scan(&stationID, &lat, &lon, &value, &missing); err != nil {
			return qc.SpatialObs{}, fmt.Errorf("postgres connector: scan spatial row: %w", err)
		}
		loc := qc.GeoPoint{Lat: lat, Lon: lon}
		if len(polygon) >= 3 && !pointInPolygon(loc, polygon) {
			continue
		}
		obs.Stations = append(obs.Stations, qc.SpatialStation{StationID: stationID, Location: loc, Value: value, Missing: missing})
	}
	if err := rows.Err(); err != nil {
		return qc.SpatialObs{}, fmt.Errorf("postgres connector: iterate spatial rows: %w", err)
	}
	return obs, nil
}
