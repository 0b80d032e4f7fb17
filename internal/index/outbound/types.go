// Package outbound implements the outbound index (spec.md §4.2): a
// per-(parent, port, source-namespace) state machine joining
// Services/EgressNetworks with HTTPRoute/GRPCRoute/TLSRoute/TCPRoute
// objects into OutboundPolicy snapshots.
package outbound

import (
	"time"

	"github.com/linkerd/linkerd2-sub001/internal/k8s"
)

type ParentKind int

const (
	ParentKindService ParentKind = iota
	ParentKindEgressNetwork
)

// ParentKey is the outbound index's primary key (spec.md §4.2 "Key").
type ParentKey struct {
	Kind            ParentKind
	ParentNamespace string
	ParentName      string
	Port            uint16
	SourceNamespace string
}

// FailureAccrualConsecutive is the only failure-accrual strategy named
// in spec.md §4.2.
type FailureAccrualConsecutive struct {
	MaxFailures uint32
	Backoff     time.Duration
}

type FailureAccrual struct {
	Consecutive *FailureAccrualConsecutive
}

// BackendKind distinguishes the four encodings spec.md §4.2 names.
type BackendKind int

const (
	BackendKindBalancer BackendKind = iota
	BackendKindInvalidService
	BackendKindForwardAddr
	BackendKindForwardEgress
	BackendKindFailureInjector
)

// ForwardAddr is a literal IP:port destination (spec.md §4.2 "Addr:
// Forward with weighted address").
type ForwardAddr struct {
	IP   string
	Port uint16
}

type PeakEWMA struct {
	DefaultRTT time.Duration
	Decay      time.Duration
}

type Queue struct {
	Capacity        uint32
	FailfastTimeout time.Duration
}

// Backend is a single weighted destination within a route rule
// (spec.md §4.2 "Backend encoding").
type Backend struct {
	Kind   BackendKind
	Weight uint32

	// BackendKindBalancer
	Authority string
	EWMA      PeakEWMA
	Queue     Queue

	// BackendKindForwardAddr
	Addr ForwardAddr

	// BackendKindFailureInjector / BackendKindInvalidService
	FailureStatus  uint32
	FailureMessage string

	// BackendKindForwardEgress
	EgressNetwork k8s.ResourceId
	HasOriginalDst bool
}

// HTTPFilter enumerates the per-rule filters spec.md §4.2 names.
type HTTPFilterKind int

const (
	HTTPFilterRequestHeaderModifier HTTPFilterKind = iota
	HTTPFilterResponseHeaderModifier
	HTTPFilterRedirect
	HTTPFilterFailureInjector
)

type HeaderModifier struct {
	Add    map[string]string
	Set    map[string]string
	Remove []string
}

type Redirect struct {
	Scheme   string
	Hostname string
	Port     uint16
	Status   uint32
}

type FailureInjector struct {
	Status  uint32
	Message string
	Ratio   float64
}

type HTTPFilter struct {
	Kind            HTTPFilterKind
	HeaderModifier  *HeaderModifier
	Redirect        *Redirect
	FailureInjector *FailureInjector
}

type HTTPMatch struct {
	PathExact  string
	PathPrefix string
	PathRegex  string
	Method     string
	Headers    map[string]string
	Query      map[string]string
}

type Retry struct {
	Limit       uint32
	Conditions  []string
	PerTryTimeout time.Duration
}

type Timeouts struct {
	Request  time.Duration
	Idle     time.Duration
	Response time.Duration
}

// HTTPRule is one rule of an HTTP/gRPC route: matches, filters, a
// weighted backend set, retry and timeout policy (spec.md §4.2).
type HTTPRule struct {
	Matches  []HTTPMatch
	Filters  []HTTPFilter
	Backends []Backend
	Retry    *Retry
	Timeouts Timeouts
}

// HTTPRouteOut is the outbound view of an HTTPRoute/GRPCRoute: ordered
// rules plus the route's own metadata for sort ordering.
type HTTPRouteOut struct {
	Ref             k8s.GroupKindNamespaceName
	Hostnames       []string
	Rules           []HTTPRule
	CreationTime    time.Time
	HasCreationTime bool
}

// TCPRouteOut / TLSRouteOut / OpaqueRouteOut are the parallel
// structures spec.md §4.2 calls for; TCP/TLS routes have a single rule
// with no HTTP-specific matches or filters.
type TCPRouteOut struct {
	Ref             k8s.GroupKindNamespaceName
	Backends        []Backend
	CreationTime    time.Time
	HasCreationTime bool
}

type TLSRouteOut struct {
	Ref             k8s.GroupKindNamespaceName
	SNIs            []string
	Backends        []Backend
	CreationTime    time.Time
	HasCreationTime bool
}

type OpaqueRouteOut = TCPRouteOut

// OutboundPolicy is the per-key snapshot delivered to watchers and
// encoded onto the gRPC wire (spec.md §4.2 "Value").
type OutboundPolicy struct {
	ParentKind      ParentKind
	ParentNamespace string
	ParentName      string
	Port            uint16

	Opaque          bool
	FailureAccrual  *FailureAccrual

	HTTPRoutes   []HTTPRouteOut
	OpaqueRoutes []OpaqueRouteOut
	TLSRoutes    []TLSRouteOut
	TCPRoutes    []TCPRouteOut
}
