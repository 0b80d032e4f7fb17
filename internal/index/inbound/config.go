package inbound

import "github.com/linkerd/linkerd2-sub001/internal/selector"

// Config carries the cluster-wide defaults the inbound index needs to
// resolve policy when no more specific signal is present (spec.md §6.3
// flags --default-policy, --probe-networks, --cluster-networks).
type Config struct {
	ClusterDefaultPolicy string
	ClusterDefaultTimeout uint32 // seconds, detect-protocol timeout
	ProbeNetworks         []selector.Network
	ClusterNetworks       []selector.Network
	// TrustDomain is the mesh-TLS trust domain (spec.md §6.3
	// --identity-domain) used to build the default ServiceAccount
	// identity string when an AuthorizationPolicy references one
	// directly rather than through a MeshTLSAuthentication.
	TrustDomain string
}

func (c Config) trustDomainOrFallback() string {
	if c.TrustDomain == "" {
		return "identity.linkerd.cluster.local"
	}
	return c.TrustDomain
}

func (c Config) defaultTimeoutOrFallback() uint32 {
	if c.ClusterDefaultTimeout == 0 {
		return 10
	}
	return c.ClusterDefaultTimeout
}
