// Package outbound implements the OutboundPolicies discovery service
// (spec.md §6.1): it resolves a target (an authority string or a
// literal IP:port) to a parent key, resolves that key against the
// outbound index, and encodes snapshots onto the wire shape in
// internal/gen/outbound.
//
// As with internal/grpc/inbound, the parent internal/grpc package
// registers Server onto a real grpc.Server via a hand-written
// grpc.ServiceDesc (see internal/grpc/service.go and DESIGN.md), since
// no generated linkerd2-proxy-api stubs are available.
package outbound

import (
	"context"
	"net"
	"strconv"

	"github.com/go-logr/logr"

	gen "github.com/linkerd/linkerd2-sub001/internal/gen/outbound"
	idx "github.com/linkerd/linkerd2-sub001/internal/index/outbound"
	"github.com/linkerd/linkerd2-sub001/internal/k8s"
)

type Server struct {
	log   logr.Logger
	index *idx.Index
}

func NewServer(index *idx.Index, log logr.Logger) *Server {
	return &Server{log: log.WithName("outbound-grpc"), index: index}
}

// resolveTarget implements spec.md §6.1's target resolution: try
// authority parsing first (the proxy's normal outbound path), fall
// back to a literal IP:port destination.
func (s *Server) resolveTarget(target, sourceNamespace string) (idx.Lookup, error) {
	if l, ok := s.index.ByAuthority(target); ok {
		return l, nil
	}
	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		return idx.Lookup{}, k8s.NotFound("target %s is neither a known authority nor an ip:port", target)
	}
	p, err := strconv.Atoi(portStr)
	if err != nil || p <= 0 || p > 65535 {
		return idx.Lookup{}, &k8s.InvalidArgumentError{Msg: "invalid port in target " + target}
	}
	if l, ok := s.index.ByIP(host, sourceNamespace, uint16(p)); ok {
		return l, nil
	}
	return idx.Lookup{}, k8s.NotFound("no service or egress network found for %s", target)
}

// Get implements the one-shot RPC (spec.md §4.4).
func (s *Server) Get(ctx context.Context, target, sourceNamespace string) (gen.OutboundPolicy, error) {
	l, err := s.resolveTarget(target, sourceNamespace)
	if err != nil {
		return gen.OutboundPolicy{}, err
	}
	snap, ok := s.index.Get(l.Kind, l.Namespace, l.Name, l.Port, sourceNamespace)
	if !ok {
		return gen.OutboundPolicy{}, k8s.NotFound("no outbound policy found for %s", target)
	}
	return Encode(snap), nil
}

// Watch implements the streaming RPC.
func (s *Server) Watch(ctx context.Context, target, sourceNamespace string, send func(gen.OutboundPolicy) error) error {
	l, err := s.resolveTarget(target, sourceNamespace)
	if err != nil {
		return err
	}
	slot := s.index.Watch(l.Kind, l.Namespace, l.Name, l.Port, sourceNamespace)
	var sendErr error
	slot.Watch(ctx.Done(), func(value idx.OutboundPolicy, present bool) bool {
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

func Encode(p idx.OutboundPolicy) gen.OutboundPolicy {
	out := gen.OutboundPolicy{
		Ref:    gen.Ref{Kind: parentKindString(p.ParentKind), Namespace: p.ParentNamespace, Name: p.ParentName},
		Opaque: p.Opaque,
	}
	for _, r := range p.HTTPRoutes {
		out.HttpRoutes = append(out.HttpRoutes, encodeHTTPRoute(r))
	}
	for _, r := range p.OpaqueRoutes {
		out.OpaqueRoutes = append(out.OpaqueRoutes, encodeOpaqueRoute(r))
	}
	for _, r := range p.TLSRoutes {
		out.TlsRoutes = append(out.TlsRoutes, encodeTLSRoute(r))
	}
	for _, r := range p.TCPRoutes {
		out.TcpRoutes = append(out.TcpRoutes, gen.TcpRoute(encodeOpaqueRoute(r)))
	}
	return out
}

func parentKindString(k idx.ParentKind) string {
	if k == idx.ParentKindEgressNetwork {
		return "EgressNetwork"
	}
	return "Service"
}

func encodeRef(r k8s.GroupKindNamespaceName) gen.Ref {
	return gen.Ref{Group: r.Group, Kind: r.Kind, Namespace: r.Namespace, Name: r.Name}
}

func encodeHTTPRoute(r idx.HTTPRouteOut) gen.HttpRoute {
	out := gen.HttpRoute{Ref: encodeRef(r.Ref), Hostnames: r.Hostnames}
	for _, rule := range r.Rules {
		out.Rules = append(out.Rules, encodeHTTPRule(rule))
	}
	return out
}

func encodeHTTPRule(r idx.HTTPRule) gen.HttpRouteRule {
	out := gen.HttpRouteRule{
		Timeouts: gen.Timeouts{
			RequestMs:  uint32(r.Timeouts.Request.Milliseconds()),
			IdleMs:     uint32(r.Timeouts.Idle.Milliseconds()),
			ResponseMs: uint32(r.Timeouts.Response.Milliseconds()),
		},
	}
	for _, m := range r.Matches {
		out.Matches = append(out.Matches, gen.HttpRouteMatch{
			PathExact:  m.PathExact,
			PathPrefix: m.PathPrefix,
			PathRegex:  m.PathRegex,
			Method:     m.Method,
			Headers:    m.Headers,
			Query:      m.Query,
		})
	}
	for _, f := range r.Filters {
		out.Filters = append(out.Filters, encodeFilter(f))
	}
	for _, b := range r.Backends {
		out.Backends = append(out.Backends, encodeBackend(b))
	}
	if r.Retry != nil {
		out.Retry = &gen.RetryPolicy{
			Limit:           r.Retry.Limit,
			Conditions:      r.Retry.Conditions,
			PerTryTimeoutMs: uint32(r.Retry.PerTryTimeout.Milliseconds()),
		}
	}
	return out
}

func encodeFilter(f idx.HTTPFilter) gen.HttpFilter {
	out := gen.HttpFilter{}
	switch f.Kind {
	case idx.HTTPFilterRequestHeaderModifier:
		out.Kind = gen.HttpFilterRequestHeaderModifier
		if f.HeaderModifier != nil {
			out.HeaderModifier = &gen.HeaderModifierFilter{Add: f.HeaderModifier.Add, Set: f.HeaderModifier.Set, Remove: f.HeaderModifier.Remove}
		}
	case idx.HTTPFilterResponseHeaderModifier:
		out.Kind = gen.HttpFilterResponseHeaderModifier
		if f.HeaderModifier != nil {
			out.HeaderModifier = &gen.HeaderModifierFilter{Add: f.HeaderModifier.Add, Set: f.HeaderModifier.Set, Remove: f.HeaderModifier.Remove}
		}
	case idx.HTTPFilterRedirect:
		out.Kind = gen.HttpFilterRedirect
		if f.Redirect != nil {
			out.Redirect = &gen.RedirectFilter{Scheme: f.Redirect.Scheme, Host: f.Redirect.Hostname, Port: uint32(f.Redirect.Port), Status: f.Redirect.Status}
		}
	case idx.HTTPFilterFailureInjector:
		out.Kind = gen.HttpFilterFailureInjector
		if f.FailureInjector != nil {
			out.FailureInjector = &gen.FailureInjectorFilter{Status: f.FailureInjector.Status, Message: f.FailureInjector.Message, Ratio: float32(f.FailureInjector.Ratio)}
		}
	}
	return out
}

func encodeBackend(b idx.Backend) gen.Backend {
	out := gen.Backend{Weight: b.Weight}
	switch b.Kind {
	case idx.BackendKindBalancer:
		out.Kind = gen.BackendBalance
		out.Balance = &gen.Balance{
			Authority: b.Authority,
			Ewma:      gen.PeakEwma{DefaultRttMs: uint32(b.EWMA.DefaultRTT.Milliseconds()), DecayMs: uint32(b.EWMA.Decay.Milliseconds())},
			Queue:     gen.Queue{Capacity: b.Queue.Capacity, FailfastTimeoutMs: uint32(b.Queue.FailfastTimeout.Milliseconds())},
		}
	case idx.BackendKindForwardAddr:
		out.Kind = gen.BackendForward
		out.Forward = &gen.Forward{Addr: b.Addr.IP + ":" + strconv.Itoa(int(b.Addr.Port))}
	case idx.BackendKindForwardEgress:
		out.Kind = gen.BackendForwardOriginalDst
		out.ForwardOriginalDst = &gen.ForwardOriginalDst{Metadata: gen.Metadata{Namespace: b.EgressNetwork.Namespace, Name: b.EgressNetwork.Name}}
	case idx.BackendKindInvalidService, idx.BackendKindFailureInjector:
		out.Kind = gen.BackendFailureInjector
		out.FailureInjector = &gen.FailureInjectorBackend{HttpStatus: b.FailureStatus, Message: b.FailureMessage}
	}
	return out
}

func encodeOpaqueRoute(r idx.OpaqueRouteOut) gen.OpaqueRoute {
	out := gen.OpaqueRoute{Ref: encodeRef(r.Ref)}
	for _, b := range r.Backends {
		out.Backends = append(out.Backends, encodeBackend(b))
	}
	return out
}

func encodeTLSRoute(r idx.TLSRouteOut) gen.TlsRoute {
	out := gen.TlsRoute{Ref: encodeRef(r.Ref), Snis: r.SNIs}
	for _, b := range r.Backends {
		out.Backends = append(out.Backends, encodeBackend(b))
	}
	return out
}
