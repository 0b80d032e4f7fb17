package v1alpha1

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidDefaultPolicy(t *testing.T) {
	p, ok := ValidDefaultPolicy("all-unauthenticated")
	require.True(t, ok)
	require.Equal(t, DefaultPolicyAllUnauthenticated, p)

	_, ok = ValidDefaultPolicy("not-a-policy")
	require.False(t, ok)
}

func TestEgressNetworkAccepted(t *testing.T) {
	s := EgressNetworkStatus{Conditions: []Condition{{Type: "Accepted", Status: "False"}}}
	require.False(t, s.Accepted())
	s.Conditions = append(s.Conditions, Condition{Type: "Accepted", Status: "True"})
	require.True(t, s.Accepted())
}
