// Package inbound defines the wire shape of the inbound discovery
// protocol (spec.md §6.1, linkerd2-proxy-api's inbound.proto): the
// messages returned by InboundServerPolicies.GetPort/WatchPort, named
// and nested to match the real protobuf message set field-for-field.
// These are plain Go structs, not generated code — the actual protoc
// codegen step is out of scope (see DESIGN.md).
package inbound

type ProxyProtocolKind int

const (
	ProxyProtocolDetect ProxyProtocolKind = iota
	ProxyProtocolHttp1
	ProxyProtocolHttp2
	ProxyProtocolGrpc
	ProxyProtocolOpaque
	ProxyProtocolTls
)

type ProxyProtocol struct {
	Kind          ProxyProtocolKind
	DetectTimeout uint32 // seconds; 0 means unset
}

type Network struct {
	Cidr   string
	Except []string
}

type IdentityMatch struct {
	Suffixes []string
}

type Tls struct {
	ClientIdentities *IdentityMatch // nil means unauthenticated
}

type PermitNetworks struct {
	Networks []Network
}

type Authn struct {
	PermitUnauthenticated bool
	PermitNetworks        *PermitNetworks
	PermitMeshTls         *Tls
}

type Authz struct {
	Networks      []Network
	Authn         *Authn
	Labels        map[string]string
	Ref           Ref
}

type Ref struct {
	Group string
	Kind  string
	Name  string
}

type HttpHeaderMatch struct {
	Name  string
	Exact string
	Regex string
}

type HttpRouteMatch struct {
	PathExact  string
	PathPrefix string
	PathRegex  string
	Method     string
	Headers    []HttpHeaderMatch
}

type HttpRoute struct {
	Ref             Ref
	Hostnames       []string
	Matches         []HttpRouteMatch
	Authorizations  []Authz
	IsRetryable     bool
}

type GrpcRoute struct {
	Ref            Ref
	Hostnames      []string
	Authorizations []Authz
}

type RateLimitOverride struct {
	ClientIdentity string
	RequestsPerSecond uint32
}

type HttpLocalRateLimit struct {
	TotalRequestsPerSecond uint32
	IdentityRequestsPerSecond *uint32
	Overrides                 []RateLimitOverride
}

// Server is the top-level message returned by GetPort/sent on
// WatchPort (spec.md §6.1 "InboundServer message").
type Server struct {
	Ref            Ref
	ServerIpAddress string
	Protocol       ProxyProtocol
	Authorizations []Authz
	HttpRoutes     []HttpRoute
	GrpcRoutes     []GrpcRoute
	RateLimit      *HttpLocalRateLimit
}
