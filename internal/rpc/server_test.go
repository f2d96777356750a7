package rpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/metno/rove/internal/catalog"
	"github.com/metno/rove/internal/dag"
	"github.com/metno/rove/internal/dataswitch"
	"github.com/metno/rove/internal/harness"
	"github.com/metno/rove/internal/qc"
	"github.com/metno/rove/internal/scheduler"
	"github.com/metno/rove/internal/wire"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type passConnector struct{}

func (passConnector) FetchSeries(ctx context.Context, tail string, start, end *time.Time, deadline time.Time) (qc.SeriesObs, error) {
	return qc.SeriesObs{
		StationID: tail,
		Points: []qc.SeriesPoint{
			{Time: time.Unix(0, 0), Value: 1},
			{Time: time.Unix(3600, 0), Value: 2},
		},
	}, nil
}

func (passConnector) FetchSpatial(ctx context.Context, tail string, at time.Time, polygon dataswitch.Polygon, deadline time.Time) (qc.SpatialObs, error) {
	return qc.SpatialObs{Time: at}, nil
}

func startTestServer(t *testing.T) string {
	t.Helper()

	regs := []catalog.Registration{
		{ID: "t1", Kind: qc.SeriesTest, Algo: harness.SeriesAlgo(func(obs qc.SeriesObs, _ map[qc.TestID]qc.Result) ([]qc.SeriesFlagged, error) {
			out := make([]qc.SeriesFlagged, len(obs.Points))
			for i, p := range obs.Points {
				out[i] = qc.SeriesFlagged{Time: p.Time, Flag: qc.Pass}
			}
			return out, nil
		})},
	}
	cat, err := catalog.Build(regs)
	require.NoError(t, err)
	d, err := dag.Build(cat)
	require.NoError(t, err)
	sw := dataswitch.New(map[string]dataswitch.DataConnector{"obs": passConnector{}})
	sc := scheduler.New(cat, d, sw, scheduler.Config{})

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	grpcServer := grpc.NewServer()
	RegisterValidationServer(grpcServer, NewServer(sc))
	go func() { _ = grpcServer.Serve(lis) }()
	t.Cleanup(grpcServer.Stop)

	return lis.Addr().String()
}

func TestValidateSeriesEndToEnd(t *testing.T) {
	addr := startTestServer(t)

	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(wire.CodecName)),
	)
	require.NoError(t, err)
	defer conn.Close()

	client := NewClient(conn)
	out, errc := client.ValidateSeries(context.Background(), &wire.ValidateSeriesRequest{
		SeriesID: "obs:station1",
		Tests:    []string{"t1"},
	})

	var got []*wire.ValidateSeriesResponse
	for resp := range out {
		got = append(got, resp)
	}
	require.NoError(t, <-errc)
	require.Len(t, got, 1)
	require.Equal(t, "t1", got[0].Test)
	require.Len(t, got[0].Results, 2)
	require.Equal(t, qc.Pass, got[0].Results[0].Flag)
}
