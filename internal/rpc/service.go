// Package rpc is the request surface: the two server-streaming RPCs
// that parse a request, invoke the Scheduler, and ferry its result
// stream outward, applying no business logic of their own.
//
// No protoc-generated stub exists here — generating one requires the
// protoc toolchain, which this build does not invoke. The service is
// instead registered by hand: a grpc.ServiceDesc naming plain Go
// structs (internal/wire) as request/response types, carried over
// genuine grpc-go transport using the "json" codec registered in
// internal/wire. This keeps the transport, framing, and streaming
// semantics real while sidestepping code generation.
package rpc

import (
	"google.golang.org/grpc"
)

// ServiceName is the gRPC service name under which ValidateSeries and
// ValidateSpatial are registered.
const ServiceName = "rove.v1.Validation"

// ServiceDesc is the hand-built analogue of a protoc-generated
// *_grpc.pb.go's ServiceDesc: it tells grpc-go how to dispatch an
// incoming stream for this service without a generated registration
// function.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Handler)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "ValidateSeries",
			Handler:       validateSeriesHandler,
			ServerStreams: true,
		},
		{
			StreamName:    "ValidateSpatial",
			Handler:       validateSpatialHandler,
			ServerStreams: true,
		},
	},
	Metadata: "rove/validation.proto",
}

// Handler is the server-side contract RegisterValidationServer binds
// to the ServiceDesc above.
type Handler interface {
	ValidateSeries(stream grpc.ServerStream) error
	ValidateSpatial(stream grpc.ServerStream) error
}

func validateSeriesHandler(srv any, stream grpc.ServerStream) error {
	return srv.(Handler).ValidateSeries(stream)
}

func validateSpatialHandler(srv any, stream grpc.ServerStream) error {
	return srv.(Handler).ValidateSpatial(stream)
}

// RegisterValidationServer registers srv's handlers with s, mirroring
// a protoc-generated RegisterXServer function.
func RegisterValidationServer(s *grpc.Server, srv Handler) {
	s.RegisterService(&ServiceDesc, srv)
}
