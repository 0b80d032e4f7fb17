package inbound

import (
	"testing"

	"github.com/go-logr/logr"
	"github.com/linkerd/linkerd2-sub001/internal/selector"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		ClusterDefaultPolicy:  "all-unauthenticated",
		ClusterDefaultTimeout: 10,
		ProbeNetworks:         nil,
	}
}

func TestDefaultUnauthenticatedInbound(t *testing.T) {
	idx := NewIndex(testConfig(), logr.Discard())
	idx.ApplyWorkload(Workload{
		Namespace: "ns-0",
		Name:      "pod-0",
		Labels:    selector.Labels{"app": "pod-0"},
		Ports:     map[uint16]struct{}{2222: {}},
	})

	snap, ok := idx.Get("ns-0", "pod-0", 2222)
	require.True(t, ok)
	require.Equal(t, DefaultRef("all-unauthenticated"), snap.Reference)
	require.Equal(t, ProtocolDetect, snap.Protocol.Kind)
	require.Equal(t, uint32(10), uint32(snap.Protocol.DetectTimeout.Seconds()))

	auth, ok := snap.Authorizations[DefaultServerAuthorizationRef]
	require.True(t, ok)
	require.True(t, auth.Unauthenticated)
	require.Len(t, auth.Networks, 2)

	_, hasDefault := snap.HTTPRoutes[defaultRouteRef]
	require.True(t, hasDefault)
}

func TestServerSelectsPodThenAuthzAdded(t *testing.T) {
	idx := NewIndex(testConfig(), logr.Discard())
	idx.ApplyWorkload(Workload{
		Namespace: "ns-0",
		Name:      "pod-0",
		Labels:    selector.Labels{"app": "pod-0"},
		Ports:     map[uint16]struct{}{2222: {}},
	})
	idx.ApplyServer(ServerResource{
		Namespace:   "ns-0",
		Name:        "srv-0",
		PodSelector: selector.LabelSelector{MatchLabels: selector.Labels{"app": "pod-0"}},
		Port:        selector.PortRef{Number: 2222},
		Protocol:    Protocol{Kind: ProtocolHTTP1},
	})

	snap, ok := idx.Get("ns-0", "pod-0", 2222)
	require.True(t, ok)
	require.Equal(t, NamedRef("srv-0"), snap.Reference)
	require.Equal(t, ProtocolHTTP1, snap.Protocol.Kind)
	// only the always-on probe authorization is present so far
	require.Len(t, snap.Authorizations, 1)

	idx.ApplyServerAuthorization(ServerAuthorizationResource{
		Namespace:  "ns-0",
		Name:       "authz-0",
		ServerName: "srv-0",
		Client:     ClientAuthorization{MeshTLSUnauthenticated: true},
	})

	snap2, ok := idx.Get("ns-0", "pod-0", 2222)
	require.True(t, ok)
	ref := AuthorizationRef{Group: "policy.linkerd.io", Kind: "serverauthorization", Name: "authz-0"}
	_, ok = snap2.Authorizations[ref]
	require.True(t, ok)
}

func TestServerAuthorizationSelectorMatchesServerLabels(t *testing.T) {
	idx := NewIndex(testConfig(), logr.Discard())
	idx.ApplyWorkload(Workload{
		Namespace: "ns-0",
		Name:      "pod-0",
		Labels:    selector.Labels{"app": "pod-0"},
		Ports:     map[uint16]struct{}{2222: {}},
	})
	idx.ApplyServer(ServerResource{
		Namespace:   "ns-0",
		Name:        "srv-0",
		Labels:      selector.Labels{"env": "prod"},
		PodSelector: selector.LabelSelector{MatchLabels: selector.Labels{"app": "pod-0"}},
		Port:        selector.PortRef{Number: 2222},
	})
	idx.ApplyServerAuthorization(ServerAuthorizationResource{
		Namespace:    "ns-0",
		Name:         "authz-0",
		ServerSel:    selector.LabelSelector{MatchLabels: selector.Labels{"env": "prod"}},
		HasServerSel: true,
		Client:       ClientAuthorization{Unauthenticated: true},
	})

	snap, ok := idx.Get("ns-0", "pod-0", 2222)
	require.True(t, ok)
	ref := AuthorizationRef{Group: "policy.linkerd.io", Kind: "serverauthorization", Name: "authz-0"}
	_, ok = snap.Authorizations[ref]
	require.True(t, ok)

	idx.ApplyServer(ServerResource{
		Namespace:   "ns-0",
		Name:        "srv-0",
		Labels:      selector.Labels{"env": "staging"},
		PodSelector: selector.LabelSelector{MatchLabels: selector.Labels{"app": "pod-0"}},
		Port:        selector.PortRef{Number: 2222},
	})
	snap2, ok := idx.Get("ns-0", "pod-0", 2222)
	require.True(t, ok)
	_, ok = snap2.Authorizations[ref]
	require.False(t, ok)
}

func TestServerConflictPicksLexicographicallyFirst(t *testing.T) {
	idx := NewIndex(testConfig(), logr.Discard())
	idx.ApplyWorkload(Workload{
		Namespace: "ns-0",
		Name:      "pod-0",
		Labels:    selector.Labels{"app": "pod-0"},
		Ports:     map[uint16]struct{}{80: {}},
	})
	idx.ApplyServer(ServerResource{Namespace: "ns-0", Name: "zzz", PodSelector: selector.LabelSelector{MatchLabels: selector.Labels{"app": "pod-0"}}, Port: selector.PortRef{Number: 80}})
	idx.ApplyServer(ServerResource{Namespace: "ns-0", Name: "aaa", PodSelector: selector.LabelSelector{MatchLabels: selector.Labels{"app": "pod-0"}}, Port: selector.PortRef{Number: 80}})

	snap, ok := idx.Get("ns-0", "pod-0", 80)
	require.True(t, ok)
	require.Equal(t, NamedRef("aaa"), snap.Reference)
}

func TestWorkloadDeleteClearsSlot(t *testing.T) {
	idx := NewIndex(testConfig(), logr.Discard())
	idx.ApplyWorkload(Workload{Namespace: "ns-0", Name: "pod-0", Ports: map[uint16]struct{}{80: {}}})
	_, ok := idx.Get("ns-0", "pod-0", 80)
	require.True(t, ok)

	idx.DeleteWorkload("ns-0", "pod-0")
	_, ok = idx.Get("ns-0", "pod-0", 80)
	require.False(t, ok)
}

func TestRebuildFromFinalStateMatchesIncrementalApply(t *testing.T) {
	// Event-order independence (spec.md §8): applying pod then server
	// then authz yields the same snapshot as applying them in reverse.
	build := func(order []int) InboundServer {
		idx := NewIndex(testConfig(), logr.Discard())
		steps := []func(){
			func() {
				idx.ApplyWorkload(Workload{Namespace: "ns", Name: "p", Labels: selector.Labels{"app": "p"}, Ports: map[uint16]struct{}{80: {}}})
			},
			func() {
				idx.ApplyServer(ServerResource{Namespace: "ns", Name: "s", PodSelector: selector.LabelSelector{MatchLabels: selector.Labels{"app": "p"}}, Port: selector.PortRef{Number: 80}})
			},
			func() {
				idx.ApplyServerAuthorization(ServerAuthorizationResource{Namespace: "ns", Name: "sa", ServerName: "s", Client: ClientAuthorization{Unauthenticated: true}})
			},
		}
		for _, i := range order {
			steps[i]()
		}
		snap, _ := idx.Get("ns", "p", 80)
		return snap
	}

	forward := build([]int{0, 1, 2})
	backward := build([]int{2, 1, 0})
	require.Equal(t, forward.Reference, backward.Reference)
	require.Equal(t, len(forward.Authorizations), len(backward.Authorizations))
}
