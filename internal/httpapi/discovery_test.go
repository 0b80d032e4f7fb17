package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/require"

	grpcinbound "github.com/linkerd/linkerd2-sub001/internal/grpc/inbound"
	grpcoutbound "github.com/linkerd/linkerd2-sub001/internal/grpc/outbound"
	idxinbound "github.com/linkerd/linkerd2-sub001/internal/index/inbound"
	idxoutbound "github.com/linkerd/linkerd2-sub001/internal/index/outbound"
)

func newTestDiscovery() *Discovery {
	inIdx := idxinbound.NewIndex(idxinbound.Config{ClusterDefaultPolicy: "all-unauthenticated", ClusterDefaultTimeout: 10}, logr.Discard())
	inIdx.ApplyWorkload(idxinbound.Workload{Namespace: "ns-0", Name: "pod-0", Ports: map[uint16]struct{}{80: {}}})

	outIdx := idxoutbound.NewIndex(idxoutbound.Config{ClusterDomain: "cluster.local"}, logr.Discard())
	outIdx.ApplyService(idxoutbound.ServiceResource{Namespace: "ns-0", Name: "svc-0", Ports: map[uint16]struct{}{80: {}}})

	return NewDiscovery(grpcinbound.NewServer(inIdx, logr.Discard()), grpcoutbound.NewServer(outIdx, logr.Discard()), logr.Discard())
}

func TestGetInboundPortOK(t *testing.T) {
	d := newTestDiscovery()
	mux := http.NewServeMux()
	d.Register(mux)

	req := httptest.NewRequest(http.MethodGet, "/inbound/port?workload=ns-0:pod-0&port=80", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestGetInboundPortUnknownWorkloadIs404(t *testing.T) {
	d := newTestDiscovery()
	mux := http.NewServeMux()
	d.Register(mux)

	req := httptest.NewRequest(http.MethodGet, "/inbound/port?workload=ns-0:missing&port=80", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetInboundPortBadPortIs400(t *testing.T) {
	d := newTestDiscovery()
	mux := http.NewServeMux()
	d.Register(mux)

	req := httptest.NewRequest(http.MethodGet, "/inbound/port?workload=ns-0:pod-0&port=notanumber", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOutboundPolicyOK(t *testing.T) {
	d := newTestDiscovery()
	mux := http.NewServeMux()
	d.Register(mux)

	req := httptest.NewRequest(http.MethodGet, "/outbound/policy?target=svc-0.ns-0.svc.cluster.local:80&source_namespace=ns-0", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestGetOutboundPolicyUnknownTargetIs404(t *testing.T) {
	d := newTestDiscovery()
	mux := http.NewServeMux()
	d.Register(mux)

	req := httptest.NewRequest(http.MethodGet, "/outbound/policy?target=missing.ns-0.svc.cluster.local:80&source_namespace=ns-0", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
