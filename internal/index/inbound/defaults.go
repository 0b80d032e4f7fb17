package inbound

import (
	"github.com/linkerd/linkerd2-sub001/internal/selector"
)

var (
	allNetworksV4 = mustNetwork("0.0.0.0/0")
	allNetworksV6 = mustNetwork("::/0")
)

func mustNetwork(cidr string) selector.Network {
	n, err := selector.ParseNetwork(cidr, nil)
	if err != nil {
		panic(err)
	}
	return n
}

// DefaultServerAuthorizationRef is the synthetic authorization
// reference attached to every default-policy authorization, used in
// place of a real CR name since none backs it.
var DefaultServerAuthorizationRef = AuthorizationRef{Group: "policy.linkerd.io", Kind: "default"}

// ProbeAuthorizationRef labels the always-present probe authorization
// (spec.md §4.1 step 2: "Always include a probe authorization").
var ProbeAuthorizationRef = AuthorizationRef{Group: "policy.linkerd.io", Kind: "default", Name: "probe"}

// canonicalDefaultAuthorizations synthesizes the authorization set for
// a default-policy value (spec.md §3.3 invariant 1, §8 scenario 1).
func canonicalDefaultAuthorizations(policy string, clusterNetworks []selector.Network) map[AuthorizationRef]ClientAuthorization {
	switch policy {
	case "all-unauthenticated":
		return map[AuthorizationRef]ClientAuthorization{
			DefaultServerAuthorizationRef: {
				Networks:        []selector.Network{allNetworksV4, allNetworksV6},
				Unauthenticated: true,
			},
		}
	case "all-authenticated":
		return map[AuthorizationRef]ClientAuthorization{
			DefaultServerAuthorizationRef: {
				Networks:               []selector.Network{allNetworksV4, allNetworksV6},
				MeshTLSUnauthenticated: true,
			},
		}
	case "cluster-unauthenticated":
		return map[AuthorizationRef]ClientAuthorization{
			DefaultServerAuthorizationRef: {
				Networks:        clusterNetworks,
				Unauthenticated: true,
			},
		}
	case "cluster-authenticated":
		return map[AuthorizationRef]ClientAuthorization{
			DefaultServerAuthorizationRef: {
				Networks:               clusterNetworks,
				MeshTLSUnauthenticated: true,
			},
		}
	case "deny":
		return map[AuthorizationRef]ClientAuthorization{}
	default:
		// Invalid default policy names are never persisted past
		// admission; treat unrecognized values as deny rather than
		// panicking (spec.md §4.1 "Failure semantics").
		return map[AuthorizationRef]ClientAuthorization{}
	}
}

// probeAuthorization returns the always-on probe authorization over
// the configured probe networks (spec.md §4.1 step 2, §4.2 invariant 2).
func probeAuthorization(probeNetworks []selector.Network) ClientAuthorization {
	return ClientAuthorization{
		Networks:        probeNetworks,
		Unauthenticated: true,
	}
}

// probeRouteRef is the synthesized GKNN for the always-present probe
// HTTP route (spec.md §4.1 invariant 2).
var probeRouteRef = RouteRef{Group: "policy.linkerd.io", Kind: "default-route", Name: "probe"}

// defaultRouteRef is the synthesized GKNN for the default catch-all
// HTTP route present when no explicit routes attach (spec.md §3.3
// invariant 2).
var defaultRouteRef = RouteRef{Group: "policy.linkerd.io", Kind: "default-route", Name: "default"}

func probeHTTPRoute(probeNetworks []selector.Network) HTTPRoute {
	return HTTPRoute{
		Matches: []HTTPRouteMatch{
			{Path: "/live", Method: "GET"},
			{Path: "/ready", Method: "GET"},
		},
		Authorizations: map[AuthorizationRef]ClientAuthorization{
			ProbeAuthorizationRef: probeAuthorization(probeNetworks),
		},
	}
}

func defaultHTTPRoute(authzs map[AuthorizationRef]ClientAuthorization) HTTPRoute {
	return HTTPRoute{
		Matches:        []HTTPRouteMatch{{Path: "/"}},
		Authorizations: authzs,
	}
}
