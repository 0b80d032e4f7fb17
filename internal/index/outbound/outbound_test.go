package outbound

import (
	"testing"

	"github.com/go-logr/logr"
	"github.com/linkerd/linkerd2-sub001/internal/selector"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{ClusterDomain: "cluster.local"}
}

func TestDefaultRouteSynthesizedWhenNoRoutesAttach(t *testing.T) {
	idx := NewIndex(testConfig(), logr.Discard())
	idx.ApplyService(ServiceResource{
		Namespace: "ns-0",
		Name:      "svc-0",
		Ports:     map[uint16]struct{}{80: {}},
	})

	slot := idx.Watch(ParentKindService, "ns-0", "svc-0", 80, "consumer")
	snap, present, _ := slot.Get()
	require.True(t, present)
	require.Len(t, snap.HTTPRoutes, 1)
	require.Equal(t, "svc-0-default", snap.HTTPRoutes[0].Ref.Name)
	require.Len(t, snap.HTTPRoutes[0].Rules, 1)
	require.Len(t, snap.HTTPRoutes[0].Rules[0].Backends, 1)
	require.Equal(t, BackendKindBalancer, snap.HTTPRoutes[0].Rules[0].Backends[0].Kind)
}

func TestProducerRouteVisibleToEveryConsumer(t *testing.T) {
	idx := NewIndex(testConfig(), logr.Discard())
	idx.ApplyService(ServiceResource{Namespace: "producer", Name: "svc-0", Ports: map[uint16]struct{}{80: {}}})
	idx.ApplyHTTPRoute(HTTPRouteResource{
		Namespace:  "producer",
		Name:       "route-0",
		ParentRefs: []RouteParentRef{{Kind: "Service", Namespace: "producer", Name: "svc-0", Port: 80, HasPort: true}},
		Rules: []HTTPRuleResource{{
			Matches:  []HTTPMatch{{PathPrefix: "/"}},
			Backends: []BackendRef{{Kind: "Service", Namespace: "producer", Name: "svc-0", Port: 80, HasPort: true, Weight: 1}},
		}},
	})

	for _, consumer := range []string{"consumer-a", "consumer-b"} {
		slot := idx.Watch(ParentKindService, "producer", "svc-0", 80, consumer)
		snap, present, _ := slot.Get()
		require.True(t, present)
		require.Len(t, snap.HTTPRoutes, 1)
		require.Equal(t, "route-0", snap.HTTPRoutes[0].Ref.Name)
	}
}

func TestConsumerLocalRouteOnlyVisibleToItsOwnNamespace(t *testing.T) {
	idx := NewIndex(testConfig(), logr.Discard())
	idx.ApplyService(ServiceResource{Namespace: "producer", Name: "svc-0", Ports: map[uint16]struct{}{80: {}}})
	idx.ApplyHTTPRoute(HTTPRouteResource{
		Namespace:  "consumer-a",
		Name:       "override",
		ParentRefs: []RouteParentRef{{Kind: "Service", Namespace: "producer", Name: "svc-0", Port: 80, HasPort: true}},
		Rules: []HTTPRuleResource{{
			Matches:  []HTTPMatch{{PathPrefix: "/"}},
			Backends: []BackendRef{{Kind: "Service", Namespace: "producer", Name: "svc-0", Port: 80, HasPort: true, Weight: 1}},
		}},
	})

	slotA := idx.Watch(ParentKindService, "producer", "svc-0", 80, "consumer-a")
	snapA, present, _ := slotA.Get()
	require.True(t, present)
	require.Len(t, snapA.HTTPRoutes, 1)
	require.Equal(t, "override", snapA.HTTPRoutes[0].Ref.Name)

	slotB := idx.Watch(ParentKindService, "producer", "svc-0", 80, "consumer-b")
	snapB, present, _ := slotB.Get()
	require.True(t, present)
	require.Len(t, snapB.HTTPRoutes, 1)
	require.Equal(t, "svc-0-default", snapB.HTTPRoutes[0].Ref.Name)
}

func TestEgressNetworkDenyDefaultsToFailureInjector(t *testing.T) {
	idx := NewIndex(testConfig(), logr.Discard())
	idx.ApplyEgressNetwork(EgressNetworkResource{
		Namespace:     "ns-0",
		Name:          "egress-0",
		TrafficPolicy: "Deny",
		Accepted:      true,
	})

	slot := idx.Watch(ParentKindEgressNetwork, "ns-0", "egress-0", 443, "ns-0")
	snap, present, _ := slot.Get()
	require.True(t, present)
	require.Len(t, snap.HTTPRoutes, 1)
	backend := snap.HTTPRoutes[0].Rules[0].Backends[0]
	require.Equal(t, BackendKindFailureInjector, backend.Kind)
	require.Equal(t, uint32(403), backend.FailureStatus)

	idx.ApplyHTTPRoute(HTTPRouteResource{
		Namespace:  "ns-0",
		Name:       "allow-path",
		ParentRefs: []RouteParentRef{{Kind: "EgressNetwork", Namespace: "ns-0", Name: "egress-0", Port: 443, HasPort: true}},
		Rules: []HTTPRuleResource{{
			Matches:  []HTTPMatch{{PathPrefix: "/health"}},
			Backends: []BackendRef{{Kind: "EgressNetwork", Namespace: "ns-0", Name: "egress-0", Port: 443, HasPort: true, Weight: 1}},
		}},
	})

	snap2, present, _ := slot.Get()
	require.True(t, present)
	require.Len(t, snap2.HTTPRoutes, 1)
	require.Equal(t, "allow-path", snap2.HTTPRoutes[0].Ref.Name)
	// An explicitly attached route forwards normally even though the
	// parent EgressNetwork denies traffic by default: only the
	// synthesized catch-all route fails closed.
	require.Equal(t, BackendKindForwardEgress, snap2.HTTPRoutes[0].Rules[0].Backends[0].Kind)
}

func TestByAuthorityParsesServiceFQDN(t *testing.T) {
	idx := NewIndex(testConfig(), logr.Discard())
	idx.ApplyService(ServiceResource{Namespace: "ns-0", Name: "svc-0", Ports: map[uint16]struct{}{80: {}}})

	l, ok := idx.ByAuthority("svc-0.ns-0.svc.cluster.local:8080")
	require.True(t, ok)
	require.Equal(t, ParentKindService, l.Kind)
	require.Equal(t, "ns-0", l.Namespace)
	require.Equal(t, "svc-0", l.Name)
	require.Equal(t, uint16(8080), l.Port)

	l2, ok := idx.ByAuthority("svc-0.ns-0.svc.cluster.local")
	require.True(t, ok)
	require.Equal(t, uint16(80), l2.Port)

	_, ok = idx.ByAuthority("not-a-service-authority")
	require.False(t, ok)
}

func TestByIPPrefersExactClusterIPThenMostSpecificEgressCIDR(t *testing.T) {
	idx := NewIndex(testConfig(), logr.Discard())
	idx.ApplyService(ServiceResource{Namespace: "ns-0", Name: "svc-0", ClusterIPs: []string{"10.0.0.1"}, Ports: map[uint16]struct{}{80: {}}})

	net1, err := selector.ParseNetwork("10.0.0.0/8", nil)
	require.NoError(t, err)
	net2, err := selector.ParseNetwork("10.0.0.0/24", nil)
	require.NoError(t, err)
	idx.ApplyEgressNetwork(EgressNetworkResource{
		Namespace:     "ns-0",
		Name:          "wide",
		TrafficPolicy: "Allow",
		Accepted:      true,
		Networks:      []selector.Network{net1},
	})
	idx.ApplyEgressNetwork(EgressNetworkResource{
		Namespace:     "ns-0",
		Name:          "narrow",
		TrafficPolicy: "Allow",
		Accepted:      true,
		Networks:      []selector.Network{net2},
	})

	l, ok := idx.ByIP("10.0.0.1", "ns-0", 80)
	require.True(t, ok)
	require.Equal(t, ParentKindService, l.Kind)

	l2, ok := idx.ByIP("10.0.0.99", "ns-0", 443)
	require.True(t, ok)
	require.Equal(t, ParentKindEgressNetwork, l2.Kind)
	require.Equal(t, "narrow", l2.Name)
}
