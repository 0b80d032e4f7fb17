package status

import (
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/linkerd/linkerd2-sub001/internal/k8s"
	"github.com/stretchr/testify/require"
)

func TestGRPCRouteWinsConflictOverHTTPRoute(t *testing.T) {
	idx := NewIndex(logr.Discard())

	parent := ParentRef{Group: "core", Kind: "Service", Namespace: "ns-0", Name: "svc-0", Port: 80, HasPort: true}

	httpRef := k8s.GroupKindNamespaceName{Group: "gateway.networking.k8s.io", Kind: "HTTPRoute", Namespace: "ns-0", Name: "http-0"}
	grpcRef := k8s.GroupKindNamespaceName{Group: "gateway.networking.k8s.io", Kind: "GRPCRoute", Namespace: "ns-0", Name: "grpc-0"}

	idx.ApplyRoute(RouteEntry{Ref: httpRef, Generation: 1, ParentRefs: []ParentRef{parent}, ResolvedRefs: true, CreationTime: time.Unix(100, 0), HasCreationTime: true})
	idx.ApplyRoute(RouteEntry{Ref: grpcRef, Generation: 1, ParentRefs: []ParentRef{parent}, ResolvedRefs: true, CreationTime: time.Unix(200, 0), HasCreationTime: true})

	httpStatus, ok := idx.Get(httpRef)
	require.True(t, ok)
	require.Len(t, httpStatus.Parents, 1)
	require.Equal(t, ConditionFalse, httpStatus.Parents[0].Conditions[0].Status)
	require.Equal(t, ReasonRouteConflict, httpStatus.Parents[0].Conditions[0].Reason)

	grpcStatus, ok := idx.Get(grpcRef)
	require.True(t, ok)
	require.Equal(t, ConditionTrue, grpcStatus.Parents[0].Conditions[0].Status)
	require.Equal(t, ReasonAccepted, grpcStatus.Parents[0].Conditions[0].Reason)
}

func TestResolvedRefsFalseSurfacesBackendNotFound(t *testing.T) {
	idx := NewIndex(logr.Discard())
	parent := ParentRef{Kind: "Service", Namespace: "ns-0", Name: "svc-0", Port: 80, HasPort: true}
	ref := k8s.GroupKindNamespaceName{Kind: "HTTPRoute", Namespace: "ns-0", Name: "http-0"}

	idx.ApplyRoute(RouteEntry{Ref: ref, ParentRefs: []ParentRef{parent}, ResolvedRefs: false, RefsMessage: "backendRef \"svc-1\" not found"})

	st, ok := idx.Get(ref)
	require.True(t, ok)
	require.Equal(t, ConditionFalse, st.Parents[0].Conditions[1].Status)
	require.Equal(t, ReasonBackendNotFound, st.Parents[0].Conditions[1].Reason)
}

func TestDeleteRouteClearsSlotAndRecomputesSurvivors(t *testing.T) {
	idx := NewIndex(logr.Discard())
	parent := ParentRef{Kind: "Service", Namespace: "ns-0", Name: "svc-0", Port: 80, HasPort: true}
	a := k8s.GroupKindNamespaceName{Kind: "HTTPRoute", Namespace: "ns-0", Name: "a"}
	b := k8s.GroupKindNamespaceName{Kind: "HTTPRoute", Namespace: "ns-0", Name: "b"}

	idx.ApplyRoute(RouteEntry{Ref: a, ParentRefs: []ParentRef{parent}, ResolvedRefs: true})
	idx.ApplyRoute(RouteEntry{Ref: b, ParentRefs: []ParentRef{parent}, ResolvedRefs: true})

	idx.DeleteRoute(a)
	_, ok := idx.Get(a)
	require.False(t, ok)

	stB, ok := idx.Get(b)
	require.True(t, ok)
	require.Equal(t, ConditionTrue, stB.Parents[0].Conditions[0].Status)
}
