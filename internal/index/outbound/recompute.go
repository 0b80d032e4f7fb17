package outbound

import (
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/linkerd/linkerd2-sub001/internal/k8s"
)

func parentKindString(k ParentKind) string {
	if k == ParentKindEgressNetwork {
		return "EgressNetwork"
	}
	return "Service"
}

// recomputeParentLocked recomputes every (port, source-namespace) key
// currently known for a parent, plus any new ports a route now refers
// to. Must be called with idx.mu held for writing.
func (idx *Index) recomputeParentLocked(kind ParentKind, ns, name string) {
	ports := map[uint16]struct{}{}

	if kind == ParentKindService {
		if svc, ok := idx.services[ns][name]; ok {
			for p := range svc.Ports {
				ports[p] = struct{}{}
			}
		}
	}

	for key := range idx.slots {
		if key.Kind == kind && key.ParentNamespace == ns && key.ParentName == name {
			ports[key.Port] = struct{}{}
		}
	}

	kindStr := parentKindString(kind)
	for _, nr := range idx.routes {
		for _, r := range nr.httpRoutes {
			addRoutePorts(ports, r.ParentRefs, kindStr, ns, name)
		}
		for _, r := range nr.tcpRoutes {
			addRoutePorts(ports, r.ParentRefs, kindStr, ns, name)
		}
		for _, r := range nr.tlsRoutes {
			addRoutePorts(ports, r.ParentRefs, kindStr, ns, name)
		}
	}

	for port := range ports {
		for srcNS := range idx.sourceNamespaces {
			idx.recomputeKeyLocked(ParentKey{Kind: kind, ParentNamespace: ns, ParentName: name, Port: port, SourceNamespace: srcNS})
		}
		// Watch registers its source namespace before creating a slot,
		// so the loop above reaches every watched key for this port.
	}
}

func addRoutePorts(ports map[uint16]struct{}, refs []RouteParentRef, kindStr, ns, name string) {
	for _, pr := range refs {
		if pr.Kind == kindStr && pr.Namespace == ns && pr.Name == name && pr.HasPort {
			ports[pr.Port] = struct{}{}
		}
	}
}

// recomputeKeyLocked rebuilds the snapshot for a single key and writes
// it to its slot, creating the slot if necessary. Must be called with
// idx.mu held for writing.
func (idx *Index) recomputeKeyLocked(key ParentKey) {
	idx.metrics.RecordRecompute("outbound")
	snap, ok := idx.computeSnapshot(key)
	if !ok {
		idx.slot(key).Clear()
		return
	}
	idx.slot(key).Set(snap, outboundPolicyEqual)
}

func outboundPolicyEqual(a, b OutboundPolicy) bool {
	return reflect.DeepEqual(a, b)
}

// computeSnapshot implements spec.md §4.2's resolution: gather the
// parent's visible routes, resolve each rule's backends, and fall back
// to a single synthesized default route when nothing attaches.
func (idx *Index) computeSnapshot(key ParentKey) (OutboundPolicy, bool) {
	var annotations map[string]string
	opaque := false

	switch key.Kind {
	case ParentKindService:
		svc, ok := idx.services[key.ParentNamespace][key.ParentName]
		if !ok {
			return OutboundPolicy{}, false
		}
		annotations = svc.Annotations
	case ParentKindEgressNetwork:
		eg, ok := idx.egress[key.ParentNamespace][key.ParentName]
		if !ok || !eg.Accepted {
			return OutboundPolicy{}, false
		}
		annotations = eg.Annotations
	}

	if isOpaquePort(key.Port, annotations, idx.cfg.DefaultOpaquePorts) {
		opaque = true
	}

	snap := OutboundPolicy{
		ParentKind:      key.Kind,
		ParentNamespace: key.ParentNamespace,
		ParentName:      key.ParentName,
		Port:            key.Port,
		Opaque:          opaque,
	}

	httpRoutes := idx.visibleHTTPRoutes(key)
	tcpRoutes := idx.visibleTCPRoutes(key)
	tlsRoutes := idx.visibleTLSRoutes(key)

	if len(httpRoutes) > 0 {
		for _, r := range httpRoutes {
			snap.HTTPRoutes = append(snap.HTTPRoutes, idx.encodeHTTPRoute(key, r))
		}
	}
	if len(tlsRoutes) > 0 {
		for _, r := range tlsRoutes {
			snap.TLSRoutes = append(snap.TLSRoutes, idx.encodeTLSRoute(key, r))
		}
	}
	if len(tcpRoutes) > 0 {
		for _, r := range tcpRoutes {
			snap.TCPRoutes = append(snap.TCPRoutes, idx.encodeTCPRoute(key, r))
		}
	}

	if len(snap.HTTPRoutes) == 0 && len(snap.TLSRoutes) == 0 && len(snap.TCPRoutes) == 0 {
		if opaque {
			snap.OpaqueRoutes = []OpaqueRouteOut{idx.defaultOpaqueRoute(key)}
		} else {
			snap.HTTPRoutes = []HTTPRouteOut{idx.defaultHTTPRoute(key)}
		}
	}

	return snap, true
}

// routeVisible implements the producer/consumer visibility rule
// (spec.md §3.3 invariant 7): a route created in the parent's own
// namespace is visible to every source namespace; a route created
// elsewhere is visible only to its own namespace.
func routeVisible(routeNamespace string, key ParentKey) bool {
	if routeNamespace == key.ParentNamespace {
		return true
	}
	return routeNamespace == key.SourceNamespace
}

func (idx *Index) visibleHTTPRoutes(key ParentKey) []*HTTPRouteResource {
	kindStr := parentKindString(key.Kind)
	var out []*HTTPRouteResource
	for _, nr := range idx.routes {
		for _, r := range nr.httpRoutes {
			if !routeVisible(r.Namespace, key) {
				continue
			}
			if !matchesParent(r.ParentRefs, kindStr, key) {
				continue
			}
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return routeLess(out[i].CreationTime, out[i].HasCreationTime, gknn(out[i].Kind, out[i].Namespace, out[i].Name),
		out[j].CreationTime, out[j].HasCreationTime, gknn(out[j].Kind, out[j].Namespace, out[j].Name)) })
	return out
}

func (idx *Index) visibleTCPRoutes(key ParentKey) []*TCPRouteResource {
	kindStr := parentKindString(key.Kind)
	var out []*TCPRouteResource
	for _, nr := range idx.routes {
		for _, r := range nr.tcpRoutes {
			if !routeVisible(r.Namespace, key) {
				continue
			}
			if !matchesParent(r.ParentRefs, kindStr, key) {
				continue
			}
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return routeLess(out[i].CreationTime, out[i].HasCreationTime, gknn("TCPRoute", out[i].Namespace, out[i].Name),
			out[j].CreationTime, out[j].HasCreationTime, gknn("TCPRoute", out[j].Namespace, out[j].Name))
	})
	return out
}

func (idx *Index) visibleTLSRoutes(key ParentKey) []*TLSRouteResource {
	kindStr := parentKindString(key.Kind)
	var out []*TLSRouteResource
	for _, nr := range idx.routes {
		for _, r := range nr.tlsRoutes {
			if !routeVisible(r.Namespace, key) {
				continue
			}
			if !matchesParent(r.ParentRefs, kindStr, key) {
				continue
			}
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return routeLess(out[i].CreationTime, out[i].HasCreationTime, gknn("TLSRoute", out[i].Namespace, out[i].Name),
			out[j].CreationTime, out[j].HasCreationTime, gknn("TLSRoute", out[j].Namespace, out[j].Name))
	})
	return out
}

func matchesParent(refs []RouteParentRef, kindStr string, key ParentKey) bool {
	for _, pr := range refs {
		if pr.Kind != kindStr || pr.Namespace != key.ParentNamespace || pr.Name != key.ParentName {
			continue
		}
		if pr.HasPort && pr.Port != key.Port {
			continue
		}
		return true
	}
	return false
}

func gknn(kind, ns, name string) k8s.GroupKindNamespaceName {
	group := "gateway.networking.k8s.io"
	if kind == "" {
		kind = "HTTPRoute"
	}
	return k8s.GroupKindNamespaceName{Group: group, Kind: kind, Namespace: ns, Name: name}
}

// routeLess implements spec.md §3.3 invariant 4: creation-timestamp
// ascending, timestamped routes before untimestamped ones, GKNN as the
// final tiebreaker.
func routeLess(at time.Time, aHas bool, ag k8s.GroupKindNamespaceName, bt time.Time, bHas bool, bg k8s.GroupKindNamespaceName) bool {
	if aHas != bHas {
		return aHas
	}
	if aHas && bHas && !at.Equal(bt) {
		return at.Before(bt)
	}
	return ag.Less(bg)
}

func (idx *Index) encodeHTTPRoute(key ParentKey, r *HTTPRouteResource) HTTPRouteOut {
	out := HTTPRouteOut{
		Ref:             gknn(r.Kind, r.Namespace, r.Name),
		Hostnames:       r.Hostnames,
		CreationTime:    r.CreationTime,
		HasCreationTime: r.HasCreationTime,
	}
	for _, rule := range r.Rules {
		out.Rules = append(out.Rules, HTTPRule{
			Matches:  rule.Matches,
			Filters:  idx.filterHeaders(rule.Filters),
			Backends: idx.resolveBackends(key, rule.Backends),
			Retry:    idx.retryForRule(rule, key),
			Timeouts: idx.timeoutsForRule(rule, key),
		})
	}
	return out
}

func (idx *Index) encodeTCPRoute(key ParentKey, r *TCPRouteResource) TCPRouteOut {
	return TCPRouteOut{
		Ref:             gknn("TCPRoute", r.Namespace, r.Name),
		Backends:        idx.resolveBackends(key, r.Backends),
		CreationTime:    r.CreationTime,
		HasCreationTime: r.HasCreationTime,
	}
}

func (idx *Index) encodeTLSRoute(key ParentKey, r *TLSRouteResource) TLSRouteOut {
	return TLSRouteOut{
		Ref:             gknn("TLSRoute", r.Namespace, r.Name),
		SNIs:            r.SNIs,
		Backends:        idx.resolveBackends(key, r.Backends),
		CreationTime:    r.CreationTime,
		HasCreationTime: r.HasCreationTime,
	}
}

// filterHeaders strips l5d-* entries from request-header-modifier
// filters unless the controller was started with
// --allow-l5d-request-headers (SPEC_FULL.md §10).
func (idx *Index) filterHeaders(filters []HTTPFilter) []HTTPFilter {
	if idx.cfg.AllowL5DRequestHeaders {
		return filters
	}
	out := make([]HTTPFilter, 0, len(filters))
	for _, f := range filters {
		if f.Kind == HTTPFilterRequestHeaderModifier && f.HeaderModifier != nil {
			f.HeaderModifier = stripL5DHeaders(f.HeaderModifier)
		}
		out = append(out, f)
	}
	return out
}

func stripL5DHeaders(h *HeaderModifier) *HeaderModifier {
	cp := &HeaderModifier{Remove: h.Remove}
	if len(h.Add) > 0 {
		cp.Add = map[string]string{}
		for k, v := range h.Add {
			if !strings.HasPrefix(strings.ToLower(k), "l5d-") {
				cp.Add[k] = v
			}
		}
	}
	if len(h.Set) > 0 {
		cp.Set = map[string]string{}
		for k, v := range h.Set {
			if !strings.HasPrefix(strings.ToLower(k), "l5d-") {
				cp.Set[k] = v
			}
		}
	}
	return cp
}

// resolveBackends encodes each BackendRef into a wire Backend per
// spec.md §4.2 "Backend encoding": Service -> Balancer, EgressNetwork
// -> Forward with original-dest, anything unresolved, of another kind,
// or outside the core group -> InvalidService. No BackendRef is encoded
// as a forward to a literal address. Used for backends named by an
// explicitly attached route.
func (idx *Index) resolveBackends(key ParentKey, refs []BackendRef) []Backend {
	out := make([]Backend, 0, len(refs))
	for _, ref := range refs {
		out = append(out, idx.resolveBackend(key, ref, false))
	}
	return out
}

// resolveBackend encodes a single BackendRef. isSynthesizedDefault is
// true only when this backend is the parent-targeting backend of the
// default route synthesized for a parent with no attached routes
// (defaultHTTPRoute/defaultOpaqueRoute below); an EgressNetwork with
// TrafficPolicy Deny fails traffic only on that default path (spec.md
// §8 scenario 6: an explicitly attached route to a Deny EgressNetwork
// still forwards, only the synthesized catch-all 403s).
func (idx *Index) resolveBackend(key ParentKey, ref BackendRef, isSynthesizedDefault bool) Backend {
	if ref.Group != "" && ref.Group != "core" {
		return invalidServiceBackend(ref, "unsupported backend group "+ref.Group)
	}
	switch ref.Kind {
	case "Service":
		if _, ok := idx.services[ref.Namespace][ref.Name]; !ok {
			return invalidServiceBackend(ref, "service not found")
		}
		port := ref.Port
		if !ref.HasPort {
			port = key.Port
		}
		authority := ref.Name + "." + ref.Namespace + ".svc." + idx.cfg.ClusterDomain
		if port != 0 {
			authority = authority + ":" + strconv.Itoa(int(port))
		}
		return Backend{
			Kind:      BackendKindBalancer,
			Weight:    ref.Weight,
			Authority: authority,
			EWMA:      PeakEWMA{DefaultRTT: 30 * time.Millisecond, Decay: 10 * time.Second},
			Queue:     Queue{Capacity: 100, FailfastTimeout: time.Second},
		}
	case "EgressNetwork":
		eg, ok := idx.egress[ref.Namespace][ref.Name]
		if !ok || !eg.Accepted {
			return invalidServiceBackend(ref, "egress network not found")
		}
		if isSynthesizedDefault && eg.TrafficPolicy == "Deny" {
			return Backend{Kind: BackendKindFailureInjector, Weight: ref.Weight, FailureStatus: 403, FailureMessage: "egress network denies traffic"}
		}
		return Backend{
			Kind:           BackendKindForwardEgress,
			Weight:         ref.Weight,
			EgressNetwork:  k8s.ResourceId{Namespace: ref.Namespace, Name: ref.Name},
			HasOriginalDst: true,
		}
	default:
		return invalidServiceBackend(ref, "unsupported backend kind "+ref.Kind)
	}
}

func invalidServiceBackend(ref BackendRef, msg string) Backend {
	return Backend{Kind: BackendKindInvalidService, Weight: ref.Weight, FailureStatus: 500, FailureMessage: msg}
}

// defaultHTTPRoute and defaultOpaqueRoute synthesize the single
// catch-all rule emitted when nothing attaches to the parent (spec.md
// §4.2 "default route synthesis").
func (idx *Index) defaultHTTPRoute(key ParentKey) HTTPRouteOut {
	backend := idx.resolveBackend(key, BackendRef{Kind: parentKindString(key.Kind), Namespace: key.ParentNamespace, Name: key.ParentName, Port: key.Port, HasPort: true, Weight: 1}, true)
	return HTTPRouteOut{
		Ref: gknn("HTTPRoute", key.ParentNamespace, key.ParentName+"-default"),
		Rules: []HTTPRule{
			{
				Matches:  []HTTPMatch{{PathPrefix: "/"}},
				Backends: []Backend{backend},
				Timeouts: Timeouts{Request: time.Duration(idx.cfg.defaultRequestTimeoutSeconds()) * time.Second},
			},
		},
	}
}

func (idx *Index) defaultOpaqueRoute(key ParentKey) OpaqueRouteOut {
	backend := idx.resolveBackend(key, BackendRef{Kind: parentKindString(key.Kind), Namespace: key.ParentNamespace, Name: key.ParentName, Port: key.Port, HasPort: true, Weight: 1}, true)
	return OpaqueRouteOut{
		Ref:      gknn("TCPRoute", key.ParentNamespace, key.ParentName+"-default"),
		Backends: []Backend{backend},
	}
}

func (cfg Config) defaultRequestTimeoutSeconds() uint32 { return 0 }

func isOpaquePort(port uint16, annotations map[string]string, defaults map[uint16]struct{}) bool {
	if _, ok := defaults[port]; ok {
		return true
	}
	v, ok := annotations[AnnotationOpaquePorts]
	if !ok {
		return false
	}
	return portListContains(v, port)
}

// portListContains parses a comma-separated list of ports and port
// ranges ("8080,9090-9095") as used by config.linkerd.io/opaque-ports.
func portListContains(list string, port uint16) bool {
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			loN, err1 := strconv.Atoi(lo)
			hiN, err2 := strconv.Atoi(hi)
			if err1 == nil && err2 == nil && int(port) >= loN && int(port) <= hiN {
				return true
			}
			continue
		}
		n, err := strconv.Atoi(part)
		if err == nil && uint16(n) == port {
			return true
		}
	}
	return false
}

func (idx *Index) retryForRule(rule HTTPRuleResource, key ParentKey) *Retry {
	if rule.Retry != nil {
		return rule.Retry
	}
	return retryFromAnnotations(annotationsForKey(idx, key))
}

func retryFromAnnotations(annotations map[string]string) *Retry {
	v, ok := annotations[AnnotationRetryHTTP]
	if !ok || v == "" {
		return nil
	}
	r := &Retry{Conditions: []string{v}, Limit: 1}
	if l, ok := annotations[AnnotationRetryLimit]; ok {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			r.Limit = uint32(n)
		}
	}
	if t, ok := annotations[AnnotationRetryTimeout]; ok {
		if d, err := time.ParseDuration(t); err == nil {
			r.PerTryTimeout = d
		}
	}
	return r
}

func (idx *Index) timeoutsForRule(rule HTTPRuleResource, key ParentKey) Timeouts {
	t := rule.Timeouts
	annotations := annotationsForKey(idx, key)
	if t.Request == 0 {
		if v, ok := annotations[AnnotationTimeoutRequest]; ok {
			if d, err := time.ParseDuration(v); err == nil {
				t.Request = d
			}
		}
	}
	if t.Idle == 0 {
		if v, ok := annotations[AnnotationTimeoutIdle]; ok {
			if d, err := time.ParseDuration(v); err == nil {
				t.Idle = d
			}
		}
	}
	if t.Response == 0 {
		if v, ok := annotations[AnnotationTimeoutResponse]; ok {
			if d, err := time.ParseDuration(v); err == nil {
				t.Response = d
			}
		}
	}
	return t
}

func annotationsForKey(idx *Index, key ParentKey) map[string]string {
	if key.Kind == ParentKindService {
		if svc, ok := idx.services[key.ParentNamespace][key.ParentName]; ok {
			return svc.Annotations
		}
		return nil
	}
	if eg, ok := idx.egress[key.ParentNamespace][key.ParentName]; ok {
		return eg.Annotations
	}
	return nil
}
