// Package statuspb exposes a driver.Run's status over gRPC (spec §5: "a
// status service should be able to report run state, tally, and flux
// statistics without reaching into run internals").
//
// Grounded on the teacher's internal/lidar/visualiser gRPC service
// (grpc_server.go's Server/RegisterService pattern): a hand-authored
// grpc.ServiceDesc plays the role protoc-gen-go-grpc's generated code
// plays there. Messages use the protobuf library's pre-built well-known
// types (structpb.Struct, emptypb.Empty) instead of a generated .pb.go,
// so the wire format is still real protobuf, just without a .proto file
// and codegen step this pack never retrieved.
package statuspb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// StatusServiceServer is the server-side contract for the status service.
type StatusServiceServer interface {
	GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// StatusServiceClient is the client-side contract for the status service.
type StatusServiceClient interface {
	GetStatus(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type statusServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewStatusServiceClient wraps a connection for calling the status service.
func NewStatusServiceClient(cc grpc.ClientConnInterface) StatusServiceClient {
	return &statusServiceClient{cc: cc}
}

func (c *statusServiceClient) GetStatus(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/ppp.driver.StatusService/GetStatus", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func statusServiceGetStatusHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StatusServiceServer).GetStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/ppp.driver.StatusService/GetStatus"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(StatusServiceServer).GetStatus(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc is the descriptor a gRPC server registers the status service
// under, hand-authored in the shape protoc-gen-go-grpc would emit.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: "ppp.driver.StatusService",
	HandlerType: (*StatusServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetStatus",
			Handler:    statusServiceGetStatusHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/driver/statuspb/status.proto",
}

// RegisterStatusServiceServer registers srv as the handler for the status
// service on s, mirroring the teacher's RegisterService helper.
func RegisterStatusServiceServer(s grpc.ServiceRegistrar, srv StatusServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}
