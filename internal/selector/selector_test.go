package selector

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLabelSelectorMatches(t *testing.T) {
	sel := LabelSelector{
		MatchLabels: Labels{"app": "foo"},
		MatchExpressions: []LabelSelectorRequirement{
			{Key: "tier", Operator: LabelSelectorOpIn, Values: []string{"backend", "worker"}},
		},
	}
	require.True(t, sel.Matches(Labels{"app": "foo", "tier": "backend"}))
	require.False(t, sel.Matches(Labels{"app": "foo", "tier": "frontend"}))
	require.False(t, sel.Matches(Labels{"tier": "backend"}))
}

func TestEmptySelectorMatchesEverything(t *testing.T) {
	var sel LabelSelector
	require.True(t, sel.Matches(Labels{"anything": "goes"}))
	require.True(t, sel.Matches(nil))
}

func TestPortRefMatchesWorkloadPort(t *testing.T) {
	byNumber := PortRef{Number: 8080}
	require.True(t, byNumber.MatchesWorkloadPort(8080, nil))
	require.False(t, byNumber.MatchesWorkloadPort(8081, nil))

	byName := PortRef{Name: "admin"}
	named := map[string]uint16{"admin": 9990}
	require.True(t, byName.MatchesWorkloadPort(9990, named))
	require.False(t, byName.MatchesWorkloadPort(1234, named))
}

func TestNetworkContainsWithExcept(t *testing.T) {
	n, err := ParseNetwork("10.0.0.0/8", []string{"10.1.0.0/16"})
	require.NoError(t, err)
	require.True(t, n.Contains(net.ParseIP("10.2.3.4")))
	require.False(t, n.Contains(net.ParseIP("10.1.3.4")))
	require.False(t, n.Contains(net.ParseIP("192.168.0.1")))
}

func TestMostSpecificCIDR(t *testing.T) {
	wide, _ := ParseNetwork("10.0.0.0/8", nil)
	narrow, _ := ParseNetwork("10.0.0.0/24", nil)
	idx := MostSpecificCIDR([]Network{wide, narrow}, net.ParseIP("10.0.0.5"))
	require.Equal(t, 1, idx)
	require.Equal(t, -1, MostSpecificCIDR([]Network{wide, narrow}, net.ParseIP("192.168.1.1")))
}

func TestIdentityMatches(t *testing.T) {
	require.True(t, IdentityMatches("foo.ns.serviceaccount.identity.linkerd.cluster.local", "foo.ns.serviceaccount.identity.linkerd.cluster.local"))
	require.True(t, IdentityMatches("*.ns.serviceaccount.identity.linkerd.cluster.local", "foo.ns.serviceaccount.identity.linkerd.cluster.local"))
	require.False(t, IdentityMatches("*.ns.serviceaccount.identity.linkerd.cluster.local", "foo.other-ns.serviceaccount.identity.linkerd.cluster.local"))
}
