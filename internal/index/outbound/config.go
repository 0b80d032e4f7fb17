package outbound

import "github.com/linkerd/linkerd2-sub001/internal/selector"

// Config carries the cluster-wide defaults the outbound index needs
// (spec.md §6.3 --cluster-domain, --default-opaque-ports,
// --allow-l5d-request-headers, --global-egress-network-namespace).
type Config struct {
	ClusterDomain  string
	DefaultOpaquePorts map[uint16]struct{}
	ClusterNetworks    []selector.Network

	// AllowL5DRequestHeaders gates whether l5d-* request headers set by
	// the proxy survive a route's own header-modifier filters
	// (SPEC_FULL.md §10, grounded on original_source/policy-controller/grpc/src/outbound/http.rs).
	AllowL5DRequestHeaders bool

	// GlobalEgressNetworkNamespace is a namespace whose EgressNetworks
	// are visible cluster-wide rather than only to lookups from their
	// own namespace (SPEC_FULL.md §10).
	GlobalEgressNetworkNamespace string
}
