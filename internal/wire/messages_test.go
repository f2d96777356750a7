package wire

import (
	"encoding/json"
	"testing"

	"github.com/metno/rove/internal/qc"
	"github.com/stretchr/testify/require"
)

func TestGeoPointRoundTripsBitExactly(t *testing.T) {
	pts := []qc.GeoPoint{
		{Lat: 59.91, Lon: 10.75},
		{Lat: -33.87, Lon: 151.21},
		{Lat: 0, Lon: 0},
	}

	wirePts := FromQCGeoPoints(pts)
	back := ToQCGeoPoints(wirePts)
	require.Equal(t, pts, back)
}

func TestValidateSeriesRequestJSONRoundTrip(t *testing.T) {
	req := ValidateSeriesRequest{
		SeriesID:  "obs:station1",
		StartTime: 1000,
		EndTime:   2000,
		Tests:     []string{"t1", "t2"},
	}

	b, err := jsonCodec{}.Marshal(&req)
	require.NoError(t, err)

	var decoded ValidateSeriesRequest
	require.NoError(t, jsonCodec{}.Unmarshal(b, &decoded))
	require.Equal(t, req, decoded)
}

func TestValidateSpatialResponseJSONRoundTrip(t *testing.T) {
	resp := ValidateSpatialResponse{
		Test: "buddy_check",
		Results: []SpatialPointResult{
			{Location: GeoPoint{Lat: 1, Lon: 2}, Flag: qc.Fail},
			{Location: GeoPoint{Lat: 3, Lon: 4}, Flag: qc.Pass},
		},
	}

	b, err := json.Marshal(&resp)
	require.NoError(t, err)

	var decoded ValidateSpatialResponse
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.Equal(t, resp, decoded)
}

func TestJSONCodecName(t *testing.T) {
	require.Equal(t, "json", jsonCodec{}.Name())
	require.Equal(t, "json", CodecName)
}
