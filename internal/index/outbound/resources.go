package outbound

import (
	"time"

	"github.com/linkerd/linkerd2-sub001/internal/selector"
)

// ServiceResource is the index's internal view of a core/v1 Service
// relevant to outbound policy (spec.md §3.2).
type ServiceResource struct {
	Namespace   string
	Name        string
	ClusterIPs  []string
	Ports       map[uint16]struct{}
	Annotations map[string]string
}

const (
	AnnotationOpaquePorts  = "config.linkerd.io/opaque-ports"
	AnnotationRetryHTTP    = "retry.linkerd.io/http"
	AnnotationRetryLimit   = "retry.linkerd.io/limit"
	AnnotationRetryTimeout = "retry.linkerd.io/timeout"
	AnnotationTimeoutRequest  = "timeout.linkerd.io/request"
	AnnotationTimeoutResponse = "timeout.linkerd.io/response"
	AnnotationTimeoutIdle     = "timeout.linkerd.io/idle"
)

// EgressNetworkResource is the index's internal view of an
// EgressNetwork (spec.md §3.2); only Accepted networks participate.
type EgressNetworkResource struct {
	Namespace     string
	Name          string
	Networks      []selector.Network
	TrafficPolicy string // "Allow" | "Deny"
	Accepted      bool
	Annotations   map[string]string
}

// RouteParentRef names the parent a route rule attaches to: Server
// (handled by the inbound index), Service, or EgressNetwork.
type RouteParentRef struct {
	Kind      string // "Service" | "EgressNetwork"
	Namespace string
	Name      string
	Port      uint16
	HasPort   bool
}

// BackendRef is a route rule's reference to a destination, prior to
// resolution against the index (spec.md §3.3 invariant 8).
type BackendRef struct {
	Group  string // "" or "core" for in-group; anything else is "accepted but unresolved"
	Kind   string // "Service", "EgressNetwork", or something else entirely
	Namespace string
	Name   string
	Port   uint16
	HasPort bool
	Weight uint32
}

// HTTPRouteResource is the outbound index's internal view of an
// HTTPRoute or GRPCRoute object (the two share a shape for outbound
// purposes: hostnames, per-rule matches/filters/backends).
type HTTPRouteResource struct {
	Namespace       string
	Name            string
	Kind            string // "HTTPRoute" | "GRPCRoute", for GKNN only
	ParentRefs      []RouteParentRef
	Hostnames       []string
	Rules           []HTTPRuleResource
	CreationTime    time.Time
	HasCreationTime bool
}

type HTTPRuleResource struct {
	Matches  []HTTPMatch
	Filters  []HTTPFilter
	Backends []BackendRef
	Retry    *Retry
	Timeouts Timeouts
}

// TCPRouteResource / TLSRouteResource are TCPRoute/TLSRoute objects: a
// single rule with a weighted backend set (spec.md §3.2 invariant:
// "exactly one rule").
type TCPRouteResource struct {
	Namespace       string
	Name            string
	ParentRefs      []RouteParentRef
	Backends        []BackendRef
	CreationTime    time.Time
	HasCreationTime bool
}

type TLSRouteResource struct {
	Namespace       string
	Name            string
	ParentRefs      []RouteParentRef
	SNIs            []string
	Backends        []BackendRef
	CreationTime    time.Time
	HasCreationTime bool
}
