// Package inbound implements the InboundServerPolicies discovery
// service (spec.md §6.1): it parses proxy-supplied workload tokens and
// ports, resolves them against the inbound index, and encodes
// snapshots onto the wire shape in internal/gen/inbound.
//
// Server is the request/response and streaming logic; the parent
// internal/grpc package registers it onto a real grpc.Server via a
// hand-written grpc.ServiceDesc (see internal/grpc/service.go and
// DESIGN.md) since no generated linkerd2-proxy-api stubs are available
// (protoc codegen is out of scope).
package inbound

import (
	"context"
	"sort"

	"github.com/go-logr/logr"

	gen "github.com/linkerd/linkerd2-sub001/internal/gen/inbound"
	idx "github.com/linkerd/linkerd2-sub001/internal/index/inbound"
	"github.com/linkerd/linkerd2-sub001/internal/k8s"
	"github.com/linkerd/linkerd2-sub001/internal/selector"
)

// Server implements the request parsing and encoding side of the
// inbound discovery RPCs.
type Server struct {
	log   logr.Logger
	index *idx.Index
}

func NewServer(index *idx.Index, log logr.Logger) *Server {
	return &Server{log: log.WithName("inbound-grpc"), index: index}
}

// GetPort implements the one-shot RPC: parse the workload token and
// port, resolve the current snapshot, encode it (spec.md §4.4).
func (s *Server) GetPort(ctx context.Context, workloadToken string, portNum uint32) (gen.Server, error) {
	ref, err := k8s.ParseWorkloadToken(workloadToken)
	if err != nil {
		return gen.Server{}, err
	}
	port, err := k8s.ParsePort(portNum)
	if err != nil {
		return gen.Server{}, err
	}
	snap, ok := s.index.Get(ref.Namespace, ref.Name, uint16(port))
	if !ok {
		return gen.Server{}, k8s.NotFound("no inbound server found for %s/%s", ref.Namespace, ref.Name)
	}
	return Encode(snap), nil
}

// WatchPort implements the streaming RPC: every value the slot
// delivers (current value first, then on each subsequent change) is
// encoded and handed to send. send returning an error stops the watch
// and is propagated to the caller; ctx cancellation stops it cleanly.
func (s *Server) WatchPort(ctx context.Context, workloadToken string, portNum uint32, send func(gen.Server) error) error {
	ref, err := k8s.ParseWorkloadToken(workloadToken)
	if err != nil {
		return err
	}
	port, err := k8s.ParsePort(portNum)
	if err != nil {
		return err
	}

	slot := s.index.Watch(ref.Namespace, ref.Name, uint16(port))
	var sendErr error
	slot.Watch(ctx.Done(), func(value idx.InboundServer, present bool) bool {
		if !present {
			return true
		}
		if err := send(Encode(value)); err != nil {
			sendErr = err
			return false
		}
		return true
	})
	return sendErr
}

// Encode converts an index snapshot into the discovery wire shape
// (spec.md §6.1 "wire encoding"). Go map iteration order is never used
// to decide anything observable; output is sorted by (group, kind,
// name) for determinism across ticks with identical content.
func Encode(s idx.InboundServer) gen.Server {
	out := gen.Server{
		Protocol: encodeProtocol(s.Protocol),
	}
	if s.Reference.IsDefault {
		out.Ref = gen.Ref{Kind: "default", Name: s.Reference.Default}
	} else {
		out.Ref = gen.Ref{Group: "policy.linkerd.io", Kind: "server", Name: s.Reference.Name}
	}

	out.Authorizations = encodeAuthzMap(s.Authorizations)

	for ref, r := range s.HTTPRoutes {
		out.HttpRoutes = append(out.HttpRoutes, gen.HttpRoute{
			Ref:            genRef(ref),
			Hostnames:      r.Hostnames,
			Matches:        encodeHTTPMatches(r.Matches),
			Authorizations: encodeAuthzMap(r.Authorizations),
		})
	}
	sort.Slice(out.HttpRoutes, func(i, j int) bool { return refLess(out.HttpRoutes[i].Ref, out.HttpRoutes[j].Ref) })

	for ref, r := range s.GRPCRoutes {
		out.GrpcRoutes = append(out.GrpcRoutes, gen.GrpcRoute{
			Ref:            genRef(ref),
			Hostnames:      r.Hostnames,
			Authorizations: encodeAuthzMap(r.Authorizations),
		})
	}
	sort.Slice(out.GrpcRoutes, func(i, j int) bool { return refLess(out.GrpcRoutes[i].Ref, out.GrpcRoutes[j].Ref) })

	if s.RateLimit != nil {
		rl := gen.HttpLocalRateLimit{TotalRequestsPerSecond: s.RateLimit.Total, IdentityRequestsPerSecond: s.RateLimit.Identity}
		var names []string
		for name := range s.RateLimit.Overrides {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			rl.Overrides = append(rl.Overrides, gen.RateLimitOverride{ClientIdentity: name, RequestsPerSecond: s.RateLimit.Overrides[name]})
		}
		out.RateLimit = &rl
	}

	return out
}

func refLess(a, b gen.Ref) bool {
	if a.Group != b.Group {
		return a.Group < b.Group
	}
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	return a.Name < b.Name
}

func genRef(r idx.RouteRef) gen.Ref {
	return gen.Ref{Group: r.Group, Kind: r.Kind, Name: r.Name}
}

func encodeProtocol(p idx.Protocol) gen.ProxyProtocol {
	out := gen.ProxyProtocol{}
	switch p.Kind {
	case idx.ProtocolHTTP1:
		out.Kind = gen.ProxyProtocolHttp1
	case idx.ProtocolHTTP2:
		out.Kind = gen.ProxyProtocolHttp2
	case idx.ProtocolGRPC:
		out.Kind = gen.ProxyProtocolGrpc
	case idx.ProtocolOpaque:
		out.Kind = gen.ProxyProtocolOpaque
	case idx.ProtocolTLS:
		out.Kind = gen.ProxyProtocolTls
	default:
		out.Kind = gen.ProxyProtocolDetect
		out.DetectTimeout = uint32(p.DetectTimeout.Seconds())
	}
	return out
}

func encodeHTTPMatches(matches []idx.HTTPRouteMatch) []gen.HttpRouteMatch {
	out := make([]gen.HttpRouteMatch, 0, len(matches))
	for _, m := range matches {
		var headers []gen.HttpHeaderMatch
		var names []string
		for k := range m.Headers {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			headers = append(headers, gen.HttpHeaderMatch{Name: k, Exact: m.Headers[k]})
		}
		out = append(out, gen.HttpRouteMatch{PathPrefix: m.Path, Method: m.Method, Headers: headers})
	}
	return out
}

func encodeAuthzMap(m map[idx.AuthorizationRef]idx.ClientAuthorization) []gen.Authz {
	var keys []idx.AuthorizationRef
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Group != keys[j].Group {
			return keys[i].Group < keys[j].Group
		}
		if keys[i].Kind != keys[j].Kind {
			return keys[i].Kind < keys[j].Kind
		}
		return keys[i].Name < keys[j].Name
	})
	out := make([]gen.Authz, 0, len(keys))
	for _, k := range keys {
		c := m[k]
		authz := gen.Authz{Ref: gen.Ref{Group: k.Group, Kind: k.Kind, Name: k.Name}}
		for _, n := range c.Networks {
			authz.Networks = append(authz.Networks, encodeNetwork(n))
		}
		authn := &gen.Authn{}
		switch {
		case c.Unauthenticated:
			authn.PermitUnauthenticated = true
		case c.MeshTLSUnauthenticated:
			authn.PermitMeshTls = &gen.Tls{}
		case len(c.MeshTLSIdentities) > 0:
			authn.PermitMeshTls = &gen.Tls{ClientIdentities: &gen.IdentityMatch{Suffixes: c.MeshTLSIdentities}}
		}
		authz.Authn = authn
		out = append(out, authz)
	}
	return out
}

func encodeNetwork(n selector.Network) gen.Network {
	out := gen.Network{}
	if n.CIDR != nil {
		out.Cidr = n.CIDR.String()
	}
	for _, ex := range n.Except {
		if ex != nil {
			out.Except = append(out.Except, ex.String())
		}
	}
	return out
}
