package k8s

import "testing"

import "github.com/stretchr/testify/require"

func TestParseWorkloadTokenPod(t *testing.T) {
	ref, err := ParseWorkloadToken("ns-0:pod-0")
	require.NoError(t, err)
	require.Equal(t, WorkloadRef{Kind: WorkloadKindPod, Namespace: "ns-0", Name: "pod-0"}, ref)
}

func TestParseWorkloadTokenExternal(t *testing.T) {
	ref, err := ParseWorkloadToken(`{"kind":{"External":"ext-0"},"namespace":"ns-0"}`)
	require.NoError(t, err)
	require.Equal(t, WorkloadRef{Kind: WorkloadKindExternal, Namespace: "ns-0", Name: "ext-0"}, ref)
}

func TestParseWorkloadTokenInvalid(t *testing.T) {
	cases := []string{"", "ns-0:", ":pod-0", "not-a-token", `{"kind":{"External":""},"namespace":"ns"}`, `{"kind":{"External":"n"},"namespace":""}`}
	for _, c := range cases {
		_, err := ParseWorkloadToken(c)
		require.Error(t, err, c)
		var iae *InvalidArgumentError
		require.ErrorAs(t, err, &iae)
	}
}

func TestParsePort(t *testing.T) {
	_, err := ParsePort(0)
	require.Error(t, err)
	_, err = ParsePort(65536)
	require.Error(t, err)
	p, err := ParsePort(8080)
	require.NoError(t, err)
	require.Equal(t, Port(8080), p)
}

func TestGKNNLess(t *testing.T) {
	a := GroupKindNamespaceName{Group: "policy.linkerd.io", Kind: "server", Namespace: "ns", Name: "a"}
	b := GroupKindNamespaceName{Group: "policy.linkerd.io", Kind: "server", Namespace: "ns", Name: "b"}
	require.True(t, a.Less(b))
	require.False(t, b.Less(a))
	require.False(t, a.Less(a))
}
