package rpc

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/metno/rove/internal/dataswitch"
	"github.com/metno/rove/internal/logger"
	"github.com/metno/rove/internal/qc"
	"github.com/metno/rove/internal/qcerrors"
	"github.com/metno/rove/internal/scheduler"
	"github.com/metno/rove/internal/wire"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Server implements Handler by delegating every request to a
// scheduler.Scheduler and applying no business logic of its own.
type Server struct {
	sc *scheduler.Scheduler
}

// NewServer wraps sc for registration via RegisterValidationServer.
func NewServer(sc *scheduler.Scheduler) *Server {
	return &Server{sc: sc}
}

var _ Handler = (*Server)(nil)

// ValidateSeries implements Handler.
func (s *Server) ValidateSeries(stream grpc.ServerStream) error {
	var req wire.ValidateSeriesRequest
	if err := stream.RecvMsg(&req); err != nil {
		return err
	}

	ctx := withRunID(stream.Context())
	tests := toTestIDs(req.Tests)
	if req.StartTime != 0 && req.EndTime != 0 && req.StartTime > req.EndTime {
		return toGRPCError(qcerrors.New(qcerrors.InvalidArgument, "start_time after end_time"))
	}

	logger.Info(ctx, "validate series", "series_id", req.SeriesID, "tests", req.Tests)
	items, err := s.sc.RunSeries(ctx, scheduler.SeriesRequest{
		Locator:  req.SeriesID,
		Start:    timePtr(req.StartTime),
		End:      timePtr(req.EndTime),
		Tests:    tests,
		Deadline: time.Duration(req.RequestDeadline),
	})
	if err != nil {
		return toGRPCError(err)
	}

	for item := range items {
		if item.Err != nil {
			return toGRPCError(item.Err)
		}
		if err := stream.SendMsg(seriesResponse(item.Result)); err != nil {
			logger.Warn(ctx, "send series response failed", "test", item.Result.TestID, "error", err)
			go drain(items)
			return err
		}
	}
	return nil
}

// ValidateSpatial implements Handler.
func (s *Server) ValidateSpatial(stream grpc.ServerStream) error {
	var req wire.ValidateSpatialRequest
	if err := stream.RecvMsg(&req); err != nil {
		return err
	}

	ctx := withRunID(stream.Context())
	polygon := dataswitch.Polygon(wire.ToQCGeoPoints(req.Polygon))
	if len(polygon) > 0 && len(polygon) < 3 {
		return toGRPCError(qcerrors.New(qcerrors.InvalidArgument, "polygon has %d points, need >= 3", len(polygon)))
	}

	logger.Info(ctx, "validate spatial", "spatial_id", req.SpatialID, "tests", req.Tests)
	items, err := s.sc.RunSpatial(ctx, scheduler.SpatialRequest{
		Locator:        req.SpatialID,
		BackingSources: req.BackingSources,
		Time:           time.Unix(0, req.Time),
		Polygon:        polygon,
		Tests:          toTestIDs(req.Tests),
		Deadline:       time.Duration(req.RequestDeadline),
	})
	if err != nil {
		return toGRPCError(err)
	}

	for item := range items {
		if item.Err != nil {
			return toGRPCError(item.Err)
		}
		if err := stream.SendMsg(spatialResponse(item.Result)); err != nil {
			logger.Warn(ctx, "send spatial response failed", "test", item.Result.TestID, "error", err)
			go drain(items)
			return err
		}
	}
	return nil
}

// drain consumes the remainder of an abandoned scheduler stream so
// its goroutine can deliver the terminal item and exit. Returning the
// handler cancels the stream context, so the scheduler winds down
// after at most one more item.
func drain(items <-chan scheduler.Item) {
	for range items {
	}
}

// withRunID tags ctx's logger with a fresh run ID, so every log line
// emitted while servicing one request (including the scheduler's own
// "test failed" line and this handler's "send ... response failed"
// lines) can be correlated
// back to that request in a multi-tenant log stream.
func withRunID(ctx context.Context) context.Context {
	l := logger.FromContext(ctx).With("run_id", uuid.NewString())
	return logger.WithLogger(ctx, l)
}

func toTestIDs(ids []string) []qc.TestID {
	out := make([]qc.TestID, len(ids))
	for i, id := range ids {
		out[i] = qc.TestID(id)
	}
	return out
}

func timePtr(unixNano int64) *time.Time {
	if unixNano == 0 {
		return nil
	}
	t := time.Unix(0, unixNano)
	return &t
}

func seriesResponse(res qc.Result) *wire.ValidateSeriesResponse {
	out := &wire.ValidateSeriesResponse{Test: string(res.TestID)}
	if res.Series != nil {
		out.Results = make([]wire.SeriesPointResult, len(res.Series.Points))
		for i, p := range res.Series.Points {
			out.Results[i] = wire.SeriesPointResult{Time: p.Time.UnixNano(), Flag: p.Flag}
		}
	}
	return out
}

func spatialResponse(res qc.Result) *wire.ValidateSpatialResponse {
	out := &wire.ValidateSpatialResponse{Test: string(res.TestID)}
	if res.Spatial != nil {
		out.Results = make([]wire.SpatialPointResult, len(res.Spatial.Points))
		for i, p := range res.Spatial.Points {
			out.Results[i] = wire.SpatialPointResult{Location: wire.FromQCGeoPoints([]qc.GeoPoint{p.Location})[0], Flag: p.Flag}
		}
	}
	return out
}

// toGRPCError maps the error taxonomy onto grpc status codes so a
// caller's generic grpc client sees a conventional error without
// needing to know this taxonomy.
func toGRPCError(err error) error {
	kind := qcerrors.KindOf(err)
	var code codes.Code
	switch kind {
	case qcerrors.InvalidLocator, qcerrors.InvalidArgument:
		code = codes.InvalidArgument
	case qcerrors.UnknownSource, qcerrors.UnknownTest:
		code = codes.NotFound
	case qcerrors.DataError:
		code = codes.Unavailable
	case qcerrors.TestFailure:
		code = codes.Internal
	case qcerrors.Cancelled:
		code = codes.Canceled
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}
