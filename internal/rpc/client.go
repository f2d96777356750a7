package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/metno/rove/internal/wire"
	"google.golang.org/grpc"
)

// Client is a thin wrapper over a *grpc.ClientConn that calls
// ValidateSeries/ValidateSpatial without a protoc-generated stub,
// using grpc.ClientConn.NewStream directly against the hand-built
// StreamDesc in ServiceDesc.
type Client struct {
	conn *grpc.ClientConn
}

// NewClient wraps an already-dialed connection. Callers dial with
// grpc.NewClient(addr, grpc.WithDefaultCallOptions(grpc.CallContentSubtype(wire.CodecName)), ...)
// so every call on conn defaults to the "json" codec.
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// ValidateSeries opens a ValidateSeries stream and returns a channel
// of decoded responses. The channel is closed when the stream ends;
// a final error (if any) is returned via the second channel's single
// value.
func (c *Client) ValidateSeries(ctx context.Context, req *wire.ValidateSeriesRequest) (<-chan *wire.ValidateSeriesResponse, <-chan error) {
	out := make(chan *wire.ValidateSeriesResponse)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		desc := streamDescByName(ServiceDesc, "ValidateSeries")
		stream, err := c.conn.NewStream(ctx, desc, fmt.Sprintf("/%s/%s", ServiceName, "ValidateSeries"))
		if err != nil {
			errc <- err
			return
		}
		if err := stream.SendMsg(req); err != nil {
			errc <- err
			return
		}
		if err := stream.CloseSend(); err != nil {
			errc <- err
			return
		}

		for {
			var resp wire.ValidateSeriesResponse
			if err := stream.RecvMsg(&resp); err != nil {
				if !errors.Is(err, io.EOF) {
					errc <- err
				}
				return
			}
			out <- &resp
		}
	}()

	return out, errc
}

// ValidateSpatial is the spatial analogue of ValidateSeries.
func (c *Client) ValidateSpatial(ctx context.Context, req *wire.ValidateSpatialRequest) (<-chan *wire.ValidateSpatialResponse, <-chan error) {
	out := make(chan *wire.ValidateSpatialResponse)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		desc := streamDescByName(ServiceDesc, "ValidateSpatial")
		stream, err := c.conn.NewStream(ctx, desc, fmt.Sprintf("/%s/%s", ServiceName, "ValidateSpatial"))
		if err != nil {
			errc <- err
			return
		}
		if err := stream.SendMsg(req); err != nil {
			errc <- err
			return
		}
		if err := stream.CloseSend(); err != nil {
			errc <- err
			return
		}

		for {
			var resp wire.ValidateSpatialResponse
			if err := stream.RecvMsg(&resp); err != nil {
				if !errors.Is(err, io.EOF) {
					errc <- err
				}
				return
			}
			out <- &resp
		}
	}()

	return out, errc
}

func streamDescByName(svc grpc.ServiceDesc, name string) *grpc.StreamDesc {
	for i := range svc.Streams {
		if svc.Streams[i].StreamName == name {
			return &svc.Streams[i]
		}
	}
	panic(fmt.Sprintf("rpc: no stream method %q in service %q", name, svc.ServiceName))
}
