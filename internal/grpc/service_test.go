package grpc

import (
	"context"
	"net"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	gbinbound "github.com/linkerd/linkerd2-sub001/internal/gen/inbound"
	grpcinbound "github.com/linkerd/linkerd2-sub001/internal/grpc/inbound"
	idxinbound "github.com/linkerd/linkerd2-sub001/internal/index/inbound"
)

// TestInboundServicePoliciesServedOverRealGRPC dials the hand-written
// ServiceDesc registered in service.go through an actual
// google.golang.org/grpc client connection (no HTTP+JSON adapter
// involved), proving GetPort is reachable as a genuine gRPC method.
func TestInboundServicePoliciesServedOverRealGRPC(t *testing.T) {
	index := idxinbound.NewIndex(idxinbound.Config{ClusterDefaultPolicy: "all-unauthenticated", ClusterDefaultTimeout: 10}, logr.Discard())
	index.ApplyWorkload(idxinbound.Workload{Namespace: "ns-0", Name: "pod-0", Ports: map[uint16]struct{}{80: {}}})
	srv := grpcinbound.NewServer(index, logr.Discard())

	grpcSrv := grpc.NewServer()
	RegisterInboundServerPolicies(grpcSrv, srv)

	lis := bufconn.Listen(1024 * 1024)
	go func() { _ = grpcSrv.Serve(lis) }()
	defer grpcSrv.Stop()

	dialer := func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }
	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	require.NoError(t, err)
	defer conn.Close()

	req := &InboundPortRequest{Workload: "ns-0:pod-0", Port: 80}
	var resp gbinbound.Server
	err = conn.Invoke(context.Background(), "/io.linkerd.proxy.inbound.InboundServerPolicies/GetPort", req, &resp)
	require.NoError(t, err)
	require.Equal(t, "all-unauthenticated", resp.Ref.Name)
}
