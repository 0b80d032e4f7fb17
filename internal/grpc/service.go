package grpc

import (
	"context"

	"google.golang.org/grpc"

	gbinbound "github.com/linkerd/linkerd2-sub001/internal/gen/inbound"
	gboutbound "github.com/linkerd/linkerd2-sub001/internal/gen/outbound"
	inboundsrv "github.com/linkerd/linkerd2-sub001/internal/grpc/inbound"
	outboundsrv "github.com/linkerd/linkerd2-sub001/internal/grpc/outbound"
)

// InboundPortRequest and OutboundTargetRequest are this module's
// request wire shapes for the two discovery RPCs (spec.md §6.1's
// InboundServerPolicies/OutboundPolicies field sets, restricted to the
// fields those RPCs actually take). Marshaled with the jsonCodec
// registered in codec.go rather than protobuf, since
// internal/gen/{inbound,outbound} are hand-authored structs, not
// generated proto.Message implementations (protobuf codegen is out of
// scope, see DESIGN.md).
type InboundPortRequest struct {
	Workload string
	Port     uint32
}

type OutboundTargetRequest struct {
	Target          string
	SourceNamespace string
}

// RegisterInboundServerPolicies wires srv's GetPort/WatchPort methods
// onto grpcSrv as a real gRPC service (spec.md §2, §6.1): unlike the
// internal/httpapi adapter, a client dialing with
// grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)) gets
// an actual grpc.ClientConn talking to an actual registered service,
// not an HTTP+JSON endpoint.
func RegisterInboundServerPolicies(grpcSrv *grpc.Server, srv *inboundsrv.Server) {
	grpcSrv.RegisterService(&inboundServiceDesc, srv)
}

func RegisterOutboundPolicies(grpcSrv *grpc.Server, srv *outboundsrv.Server) {
	grpcSrv.RegisterService(&outboundServiceDesc, srv)
}

var inboundServiceDesc = grpc.ServiceDesc{
	ServiceName: "io.linkerd.proxy.inbound.InboundServerPolicies",
	HandlerType: (*inboundsrv.Server)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetPort", Handler: inboundGetPortHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "WatchPort", Handler: inboundWatchPortHandler, ServerStreams: true},
	},
	Metadata: "inbound.proto",
}

var outboundServiceDesc = grpc.ServiceDesc{
	ServiceName: "io.linkerd.proxy.outbound.OutboundPolicies",
	HandlerType: (*outboundsrv.Server)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Get", Handler: outboundGetHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: outboundWatchHandler, ServerStreams: true},
	},
	Metadata: "outbound.proto",
}

func inboundGetPortHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(InboundPortRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return callInboundGetPort(ctx, srv.(*inboundsrv.Server), in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/io.linkerd.proxy.inbound.InboundServerPolicies/GetPort"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return callInboundGetPort(ctx, srv.(*inboundsrv.Server), req.(*InboundPortRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func callInboundGetPort(ctx context.Context, srv *inboundsrv.Server, req *InboundPortRequest) (*gbinbound.Server, error) {
	out, err := srv.GetPort(ctx, req.Workload, req.Port)
	if err != nil {
		return nil, StatusError(err)
	}
	return &out, nil
}

func inboundWatchPortHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(InboundPortRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	s := srv.(*inboundsrv.Server)
	err := s.WatchPort(stream.Context(), in.Workload, in.Port, func(v gbinbound.Server) error {
		return stream.SendMsg(&v)
	})
	if err != nil {
		return StatusError(err)
	}
	return nil
}

func outboundGetHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(OutboundTargetRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return callOutboundGet(ctx, srv.(*outboundsrv.Server), in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/io.linkerd.proxy.outbound.OutboundPolicies/Get"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return callOutboundGet(ctx, srv.(*outboundsrv.Server), req.(*OutboundTargetRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func callOutboundGet(ctx context.Context, srv *outboundsrv.Server, req *OutboundTargetRequest) (*gboutbound.OutboundPolicy, error) {
	out, err := srv.Get(ctx, req.Target, req.SourceNamespace)
	if err != nil {
		return nil, StatusError(err)
	}
	return &out, nil
}

func outboundWatchHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(OutboundTargetRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	s := srv.(*outboundsrv.Server)
	err := s.Watch(stream.Context(), in.Target, in.SourceNamespace, func(v gboutbound.OutboundPolicy) error {
		return stream.SendMsg(&v)
	})
	if err != nil {
		return StatusError(err)
	}
	return nil
}
