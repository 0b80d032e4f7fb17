package outbound

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/require"

	gen "github.com/linkerd/linkerd2-sub001/internal/gen/outbound"
	idx "github.com/linkerd/linkerd2-sub001/internal/index/outbound"
	"github.com/linkerd/linkerd2-sub001/internal/k8s"
)

func testConfig() idx.Config {
	return idx.Config{ClusterDomain: "cluster.local"}
}

func TestGetResolvesKnownAuthority(t *testing.T) {
	index := idx.NewIndex(testConfig(), logr.Discard())
	index.ApplyService(idx.ServiceResource{Namespace: "ns-0", Name: "svc-0", Ports: map[uint16]struct{}{80: {}}})
	srv := NewServer(index, logr.Discard())

	out, err := srv.Get(context.Background(), "svc-0.ns-0.svc.cluster.local:80", "ns-0")
	require.NoError(t, err)
	require.Equal(t, "svc-0", out.Ref.Name)
}

func TestGetUnknownAuthorityIsNotFound(t *testing.T) {
	index := idx.NewIndex(testConfig(), logr.Discard())
	srv := NewServer(index, logr.Discard())

	_, err := srv.Get(context.Background(), "missing.ns-0.svc.cluster.local:80", "ns-0")
	require.Error(t, err)
	var notFound *k8s.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

// TestGetNonAuthorityTargetIsNotFound covers the literal boundary
// case: an authority without the cluster domain suffix never parses
// as an authority and isn't a literal ip:port either, so it resolves
// to not-found rather than invalid-argument.
func TestGetNonAuthorityTargetIsNotFound(t *testing.T) {
	index := idx.NewIndex(testConfig(), logr.Discard())
	srv := NewServer(index, logr.Discard())

	_, err := srv.Get(context.Background(), "svc-0.ns-0.svc.other-cluster", "ns-0")
	require.Error(t, err)
	var notFound *k8s.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestGetMalformedPortIsInvalidArgument(t *testing.T) {
	index := idx.NewIndex(testConfig(), logr.Discard())
	srv := NewServer(index, logr.Discard())

	_, err := srv.Get(context.Background(), "10.0.0.1:notaport", "ns-0")
	require.Error(t, err)
	var invalidArg *k8s.InvalidArgumentError
	require.ErrorAs(t, err, &invalidArg)
}

func TestWatchDeliversCurrentValueThenStops(t *testing.T) {
	index := idx.NewIndex(testConfig(), logr.Discard())
	index.ApplyService(idx.ServiceResource{Namespace: "ns-0", Name: "svc-0", Ports: map[uint16]struct{}{80: {}}})
	srv := NewServer(index, logr.Discard())

	var calls int
	ctx, cancel := context.WithCancel(context.Background())
	err := srv.Watch(ctx, "svc-0.ns-0.svc.cluster.local:80", "ns-0", func(v gen.OutboundPolicy) error {
		calls++
		cancel()
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}
