// Package inbound implements the inbound index (spec.md §4.1): a
// per-(workload, port) state machine joining pods/external workloads,
// Servers, ServerAuthorizations/AuthorizationPolicies, and
// HTTPRoutes/GRPCRoutes into InboundServer snapshots, broadcast over
// watch.Slot instances keyed by (namespace, workload, port).
package inbound

import (
	"time"

	"github.com/linkerd/linkerd2-sub001/internal/k8s"
	"github.com/linkerd/linkerd2-sub001/internal/selector"
)

// ServerRef is either the synthesized default policy or a named
// Server (spec.md §4.1 "reference").
type ServerRef struct {
	IsDefault bool
	Default   string // DefaultPolicy value, when IsDefault
	Name      string // Server name, when !IsDefault
}

func DefaultRef(policy string) ServerRef { return ServerRef{IsDefault: true, Default: policy} }
func NamedRef(name string) ServerRef     { return ServerRef{IsDefault: false, Name: name} }

// ProtocolKind enumerates the wire protocol hints an InboundServer can
// carry (spec.md §4.1).
type ProtocolKind int

const (
	ProtocolDetect ProtocolKind = iota
	ProtocolHTTP1
	ProtocolHTTP2
	ProtocolGRPC
	ProtocolOpaque
	ProtocolTLS
)

type Protocol struct {
	Kind           ProtocolKind
	DetectTimeout  time.Duration // meaningful only when Kind == ProtocolDetect
}

// AuthorizationRef identifies the resource that contributed a
// ClientAuthorization, used both as a map key and for wire labelling.
type AuthorizationRef struct {
	Group string
	Kind  string
	Name  string
}

// ClientAuthorization is one admitted-client rule: a set of networks
// and/or an authentication requirement.
type ClientAuthorization struct {
	Networks        []selector.Network
	Unauthenticated bool
	// MeshTLSIdentities is nil unless authentication requires MeshTLS;
	// an empty-but-non-nil slice means "any authenticated identity".
	MeshTLSIdentities     []string
	MeshTLSUnauthenticated bool
}

// HTTPRouteRef / GRPCRouteRef key the per-server route maps by GKNN.
type RouteRef = k8s.GroupKindNamespaceName

type HTTPRouteMatch struct {
	Path    string // exact or prefix form resolved by the route object
	Method  string
	Headers map[string]string
}

type HTTPRoute struct {
	Hostnames        []string
	Matches          []HTTPRouteMatch
	Authorizations   map[AuthorizationRef]ClientAuthorization
	CreationTime     time.Time
	HasCreationTime  bool
}

type GRPCRoute struct {
	Hostnames       []string
	Authorizations  map[AuthorizationRef]ClientAuthorization
	CreationTime    time.Time
	HasCreationTime bool
}

// RateLimit is the resolved per-server rate-limit policy.
type RateLimit struct {
	Total    uint32
	Identity *uint32
	Overrides map[string]uint32 // ServiceAccount "ns/name" -> rps
}

// InboundServer is the per-(workload,port) snapshot delivered to
// watchers and encoded onto the gRPC wire (spec.md §4.1).
type InboundServer struct {
	Reference      ServerRef
	Authorizations map[AuthorizationRef]ClientAuthorization
	Protocol       Protocol
	HTTPRoutes     map[RouteRef]HTTPRoute
	GRPCRoutes     map[RouteRef]GRPCRoute
	RateLimit      *RateLimit
}
