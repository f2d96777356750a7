// Package wire holds the request/response message shapes for the
// request surface and the codec that puts them on the grpc-go
// transport without a protoc-generated stub: the message types here
// are plain Go structs carrying JSON tags, registered under the codec
// name "json" (see codec.go).
package wire

import "github.com/metno/rove/internal/qc"

// GeoPoint mirrors qc.GeoPoint on the wire: float32 lat/lon,
// round-tripping bit-exactly for finite values.
type GeoPoint struct {
	Lat float32 `json:"lat"`
	Lon float32 `json:"lon"`
}

func fromQCPoint(p qc.GeoPoint) GeoPoint { return GeoPoint{Lat: p.Lat, Lon: p.Lon} }
func (p GeoPoint) toQC() qc.GeoPoint     { return qc.GeoPoint{Lat: p.Lat, Lon: p.Lon} }

// ValidateSeriesRequest names a series, an optional time window, and
// the tests to run. StartTime and EndTime are Unix nanosecond
// timestamps; zero means unset, deferring to the connector-reported
// series bounds.
type ValidateSeriesRequest struct {
	SeriesID  string   `json:"series_id"`
	StartTime int64    `json:"start_time,omitempty"`
	EndTime   int64    `json:"end_time,omitempty"`
	Tests     []string `json:"tests"`

	// RequestDeadline bounds this request in nanoseconds; zero falls
	// back to the server's configured default.
	RequestDeadline int64 `json:"request_deadline,omitempty"`
}

// SeriesPointResult pairs a timestamp with its assigned flag.
type SeriesPointResult struct {
	Time int64   `json:"time"`
	Flag qc.Flag `json:"flag"`
}

// ValidateSeriesResponse carries one completed test's flags; the
// stream delivers one per test in the extracted sub-DAG.
type ValidateSeriesResponse struct {
	Test    string              `json:"test"`
	Results []SeriesPointResult `json:"results"`
}

// ValidateSpatialRequest names a spatial slice, optional backing
// sources, a timestamp, and the tests to run. An empty Polygon means
// the whole globe.
type ValidateSpatialRequest struct {
	SpatialID      string     `json:"spatial_id"`
	BackingSources []string   `json:"backing_sources,omitempty"`
	Time           int64      `json:"time"`
	Tests          []string   `json:"tests"`
	Polygon        []GeoPoint `json:"polygon,omitempty"`

	// RequestDeadline bounds this request in nanoseconds; zero falls
	// back to the server's configured default.
	RequestDeadline int64 `json:"request_deadline,omitempty"`
}

// SpatialPointResult pairs a station location with its assigned flag.
type SpatialPointResult struct {
	Location GeoPoint `json:"location"`
	Flag     qc.Flag  `json:"flag"`
}

// ValidateSpatialResponse carries one completed spatial test's flags.
type ValidateSpatialResponse struct {
	Test    string               `json:"test"`
	Results []SpatialPointResult `json:"results"`
}

// FromQCGeoPoints converts a slice of qc.GeoPoint to wire GeoPoints.
func FromQCGeoPoints(pts []qc.GeoPoint) []GeoPoint {
	out := make([]GeoPoint, len(pts))
	for i, p := range pts {
		out[i] = fromQCPoint(p)
	}
	return out
}

// ToQCGeoPoints converts wire GeoPoints back to qc.GeoPoint.
func ToQCGeoPoints(pts []GeoPoint) []qc.GeoPoint {
	out := make([]qc.GeoPoint, len(pts))
	for i, p := range pts {
		out[i] = p.toQC()
	}
	return out
}
