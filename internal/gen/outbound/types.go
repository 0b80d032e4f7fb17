// Package outbound defines the wire shape of the outbound discovery
// protocol (spec.md §6.1, linkerd2-proxy-api's outbound.proto): the
// messages returned by OutboundPolicies.Get/Watch. Plain Go structs,
// not generated code (see DESIGN.md).
package outbound

type Ref struct {
	Group     string
	Kind      string
	Namespace string
	Name      string
}

type Metadata struct {
	Group     string
	Kind      string
	Namespace string
	Name      string
}

type WeightedAddr struct {
	Addr   string
	Weight uint32
}

type PeakEwma struct {
	DefaultRttMs uint32
	DecayMs      uint32
}

type Queue struct {
	Capacity          uint32
	FailfastTimeoutMs uint32
}

type Balance struct {
	Metadata Metadata
	Authority string
	Ewma      PeakEwma
	Queue     Queue
}

type Forward struct {
	Metadata Metadata
	Addr     string // ip:port
}

type ForwardOriginalDst struct {
	Metadata Metadata
}

type FailureInjectorBackend struct {
	HttpStatus uint32
	Message    string
}

// BackendKind is a Go-idiomatic stand-in for the oneof the real proto
// message uses to distinguish backend encodings.
type BackendKind int

const (
	BackendBalance BackendKind = iota
	BackendForward
	BackendForwardOriginalDst
	BackendFailureInjector
)

type Backend struct {
	Kind               BackendKind
	Weight             uint32
	Balance            *Balance
	Forward            *Forward
	ForwardOriginalDst *ForwardOriginalDst
	FailureInjector    *FailureInjectorBackend
}

type HeaderModifierFilter struct {
	Add    map[string]string
	Set    map[string]string
	Remove []string
}

type RedirectFilter struct {
	Scheme   string
	Host     string
	Port     uint32
	Status   uint32
}

type FailureInjectorFilter struct {
	Status  uint32
	Message string
	Ratio   float32
}

type HttpFilterKind int

const (
	HttpFilterRequestHeaderModifier HttpFilterKind = iota
	HttpFilterResponseHeaderModifier
	HttpFilterRedirect
	HttpFilterFailureInjector
)

type HttpFilter struct {
	Kind            HttpFilterKind
	HeaderModifier  *HeaderModifierFilter
	Redirect        *RedirectFilter
	FailureInjector *FailureInjectorFilter
}

type HttpRouteMatch struct {
	PathExact  string
	PathPrefix string
	PathRegex  string
	Method     string
	Headers    map[string]string
	Query      map[string]string
}

type RetryPolicy struct {
	Limit         uint32
	Conditions    []string
	PerTryTimeoutMs uint32
}

type Timeouts struct {
	RequestMs  uint32
	IdleMs     uint32
	ResponseMs uint32
}

type HttpRouteRule struct {
	Matches  []HttpRouteMatch
	Filters  []HttpFilter
	Backends []Backend
	Retry    *RetryPolicy
	Timeouts Timeouts
}

type HttpRoute struct {
	Ref       Ref
	Hostnames []string
	Rules     []HttpRouteRule
}

type OpaqueRoute struct {
	Ref      Ref
	Backends []Backend
}

type TlsRoute struct {
	Ref      Ref
	Snis     []string
	Backends []Backend
}

type TcpRoute struct {
	Ref      Ref
	Backends []Backend
}

type ConsecutiveFailureAccrual struct {
	MaxFailures uint32
	BackoffMs   uint32
}

type FailureAccrual struct {
	Consecutive *ConsecutiveFailureAccrual
}

// OutboundPolicy is the top-level message returned by Get/sent on
// Watch (spec.md §6.1 "OutboundPolicy message").
type OutboundPolicy struct {
	Ref            Ref
	Opaque         bool
	FailureAccrual *FailureAccrual
	HttpRoutes     []HttpRoute
	OpaqueRoutes   []OpaqueRoute
	TlsRoutes      []TlsRoute
	TcpRoutes      []TcpRoute
}
