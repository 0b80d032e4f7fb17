package inbound

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/require"

	gen "github.com/linkerd/linkerd2-sub001/internal/gen/inbound"
	idx "github.com/linkerd/linkerd2-sub001/internal/index/inbound"
	"github.com/linkerd/linkerd2-sub001/internal/k8s"
	"github.com/linkerd/linkerd2-sub001/internal/selector"
)

func testConfig() idx.Config {
	return idx.Config{ClusterDefaultPolicy: "all-unauthenticated", ClusterDefaultTimeout: 10}
}

func TestGetPortResolvesWorkloadToken(t *testing.T) {
	index := idx.NewIndex(testConfig(), logr.Discard())
	index.ApplyWorkload(idx.Workload{Namespace: "ns-0", Name: "pod-0", Labels: selector.Labels{"app": "pod-0"}, Ports: map[uint16]struct{}{2222: {}}})
	srv := NewServer(index, logr.Discard())

	out, err := srv.GetPort(context.Background(), "ns-0:pod-0", 2222)
	require.NoError(t, err)
	require.Equal(t, "all-unauthenticated", out.Ref.Name)
}

func TestGetPortUnknownWorkloadIsNotFound(t *testing.T) {
	index := idx.NewIndex(testConfig(), logr.Discard())
	srv := NewServer(index, logr.Discard())

	_, err := srv.GetPort(context.Background(), "ns-0:missing", 2222)
	require.Error(t, err)
	var notFound *k8s.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestGetPortMalformedTokenIsInvalidArgument(t *testing.T) {
	index := idx.NewIndex(testConfig(), logr.Discard())
	srv := NewServer(index, logr.Discard())

	_, err := srv.GetPort(context.Background(), "not-a-token", 2222)
	require.Error(t, err)
	var invalidArg *k8s.InvalidArgumentError
	require.ErrorAs(t, err, &invalidArg)
}

func TestWatchPortDeliversCurrentValueThenStops(t *testing.T) {
	index := idx.NewIndex(testConfig(), logr.Discard())
	index.ApplyWorkload(idx.Workload{Namespace: "ns-0", Name: "pod-0", Ports: map[uint16]struct{}{80: {}}})
	srv := NewServer(index, logr.Discard())

	var got []gen.Server
	ctx, cancel := context.WithCancel(context.Background())
	err := srv.WatchPort(ctx, "ns-0:pod-0", 80, func(v gen.Server) error {
		got = append(got, v)
		cancel()
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
}
