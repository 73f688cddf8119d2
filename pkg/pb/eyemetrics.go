// Package pb holds the EyeMetrics gRPC service contract. Payloads are the
// well-known Struct and Empty messages so no generated message code is needed.
package pb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "eyemonitor.v1.EyeMetrics"

	EyeMetrics_GetStats_FullMethodName      = "/eyemonitor.v1.EyeMetrics/GetStats"
	EyeMetrics_AnalyzeFrame_FullMethodName  = "/eyemonitor.v1.EyeMetrics/AnalyzeFrame"
	EyeMetrics_StreamSamples_FullMethodName = "/eyemonitor.v1.EyeMetrics/StreamSamples"
)

// EyeMetricsClient is the client API for the EyeMetrics service.
type EyeMetricsClient interface {
	GetStats(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	AnalyzeFrame(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	StreamSamples(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (EyeMetrics_StreamSamplesClient, error)
}

type eyeMetricsClient struct {
	cc grpc.ClientConnInterface
}

func NewEyeMetricsClient(cc grpc.ClientConnInterface) EyeMetricsClient {
	return &eyeMetricsClient{cc}
}

func (c *eyeMetricsClient) GetStats(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, EyeMetrics_GetStats_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *eyeMetricsClient) AnalyzeFrame(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, EyeMetrics_AnalyzeFrame_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *eyeMetricsClient) StreamSamples(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (EyeMetrics_StreamSamplesClient, error) {
	stream, err := c.cc.NewStream(ctx, &EyeMetrics_ServiceDesc.Streams[0], EyeMetrics_StreamSamples_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	x := &eyeMetricsStreamSamplesClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type EyeMetrics_StreamSamplesClient interface {
	Recv() (*structpb.Struct, error)
	grpc.ClientStream
}

type eyeMetricsStreamSamplesClient struct {
	grpc.ClientStream
}

func (x *eyeMetricsStreamSamplesClient) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// EyeMetricsServer is the server API for the EyeMetrics service.
type EyeMetricsServer interface {
	GetStats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	AnalyzeFrame(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StreamSamples(*emptypb.Empty, EyeMetrics_StreamSamplesServer) error
}

// UnimplementedEyeMetricsServer can be embedded to satisfy EyeMetricsServer.
type UnimplementedEyeMetricsServer struct{}

func (UnimplementedEyeMetricsServer) GetStats(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetStats not implemented")
}

func (UnimplementedEyeMetricsServer) AnalyzeFrame(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method AnalyzeFrame not implemented")
}

func (UnimplementedEyeMetricsServer) StreamSamples(*emptypb.Empty, EyeMetrics_StreamSamplesServer) error {
	return status.Error(codes.Unimplemented, "method StreamSamples not implemented")
}

func RegisterEyeMetricsServer(s grpc.ServiceRegistrar, srv EyeMetricsServer) {
	s.RegisterService(&EyeMetrics_ServiceDesc, srv)
}

func _EyeMetrics_GetStats_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EyeMetricsServer).GetStats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: EyeMetrics_GetStats_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(EyeMetricsServer).GetStats(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _EyeMetrics_AnalyzeFrame_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EyeMetricsServer).AnalyzeFrame(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: EyeMetrics_AnalyzeFrame_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(EyeMetricsServer).AnalyzeFrame(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _EyeMetrics_StreamSamples_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(emptypb.Empty)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(EyeMetricsServer).StreamSamples(m, &eyeMetricsStreamSamplesServer{stream})
}

type EyeMetrics_StreamSamplesServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type eyeMetricsStreamSamplesServer struct {
	grpc.ServerStream
}

func (x *eyeMetricsStreamSamplesServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

var EyeMetrics_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EyeMetricsServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetStats",
			Handler:    _EyeMetrics_GetStats_Handler,
		},
		{
			MethodName: "AnalyzeFrame",
			Handler:    _EyeMetrics_AnalyzeFrame_Handler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamSamples",
			Handler:       _EyeMetrics_StreamSamples_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "eyemonitor/v1/eyemetrics.proto",
}
