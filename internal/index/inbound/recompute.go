package inbound

import (
	"reflect"
	"sort"
	"time"

	"github.com/linkerd/linkerd2-sub001/internal/selector"
)

// recomputeNamespace rebuilds every (workload, port) snapshot in ns and
// overwrites the corresponding watch slots, as spec.md §3.4 and §4.1
// require. It must be called with idx.mu held for writing.
func (idx *Index) recomputeNamespace(ns string) {
	n, ok := idx.ns[ns]
	if !ok {
		return
	}
	idx.metrics.RecordRecompute("inbound")
	for name, w := range n.workloads {
		ports := exposedPorts(w)
		for port := range ports {
			key := WorkloadPortKey{Namespace: ns, Workload: name, Port: port}
			snap := idx.computeSnapshot(ns, n, w, port)
			idx.slot(key).Set(snap, inboundServerEqual)
		}
	}
}

func exposedPorts(w *Workload) map[uint16]struct{} {
	if len(w.Ports) > 0 {
		return w.Ports
	}
	out := map[uint16]struct{}{}
	for _, p := range w.NamedPorts {
		out[p] = struct{}{}
	}
	return out
}

func inboundServerEqual(a, b InboundServer) bool {
	return reflect.DeepEqual(a, b)
}

// computeSnapshot implements spec.md §4.1's three-step recomputation
// for a single (workload, port).
func (idx *Index) computeSnapshot(ns string, n *namespaceState, w *Workload, port uint16) InboundServer {
	srv, conflicted := idx.resolveServerResource(n, w, port)

	var snap InboundServer
	if srv != nil {
		snap.Protocol = srv.Protocol
		if snap.Protocol.Kind == ProtocolDetect && snap.Protocol.DetectTimeout == 0 {
			snap.Protocol.DetectTimeout = time.Duration(idx.cfg.defaultTimeoutOrFallback()) * time.Second
		}
		snap.Reference = NamedRef(srv.Name)
		snap.Authorizations = idx.namedServerAuthorizations(n, srv)
		snap.HTTPRoutes, snap.GRPCRoutes = idx.routesForServer(n, srv.Name)
		snap.RateLimit = idx.rateLimitForServer(n, srv.Name)
	} else {
		policy := idx.resolveDefaultPolicy(n, w)
		snap.Reference = DefaultRef(policy)
		snap.Protocol = Protocol{Kind: ProtocolDetect, DetectTimeout: time.Duration(idx.cfg.defaultTimeoutOrFallback()) * time.Second}
		snap.Authorizations = canonicalDefaultAuthorizations(policy, idx.cfg.ClusterNetworks)
	}

	// The probe authorization is always present (spec.md §4.1 step 2,
	// invariant 2); the default route is added only when no explicit
	// route attaches, and the probe route only when probe networks are
	// configured.
	if snap.Authorizations == nil {
		snap.Authorizations = map[AuthorizationRef]ClientAuthorization{}
	}
	snap.Authorizations[ProbeAuthorizationRef] = probeAuthorization(idx.cfg.ProbeNetworks)

	if snap.HTTPRoutes == nil {
		snap.HTTPRoutes = map[RouteRef]HTTPRoute{}
	}
	if len(snap.HTTPRoutes) == 0 {
		snap.HTTPRoutes[defaultRouteRef] = defaultHTTPRoute(snap.Authorizations)
	}
	if len(idx.cfg.ProbeNetworks) > 0 {
		snap.HTTPRoutes[probeRouteRef] = probeHTTPRoute(idx.cfg.ProbeNetworks)
	}
	if snap.GRPCRoutes == nil {
		snap.GRPCRoutes = map[RouteRef]GRPCRoute{}
	}

	_ = conflicted // the losing Server names are not reported anywhere
	return snap
}

// resolveServerResource enumerates Servers in n selecting (w, port),
// applying the conflict rule of spec.md §3.3 invariant 3: on overlap,
// the lexicographically first Server name wins and the losing names
// are returned. The caller discards them; the conflict is not recorded
// in any status.
func (idx *Index) resolveServerResource(n *namespaceState, w *Workload, port uint16) (*ServerResource, []string) {
	var matches []*ServerResource
	for _, s := range n.servers {
		if s.External != w.External {
			continue
		}
		if !s.PodSelector.Matches(w.Labels) {
			continue
		}
		if !s.Port.MatchesWorkloadPort(port, w.NamedPorts) {
			continue
		}
		matches = append(matches, s)
	}
	if len(matches) == 0 {
		return nil, nil
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Name < matches[j].Name })
	winner := matches[0]
	var conflicted []string
	for _, m := range matches[1:] {
		conflicted = append(conflicted, m.Name)
	}
	return winner, conflicted
}

// resolveDefaultPolicy implements the annotation resolution chain of
// spec.md §3.3 invariant 1: workload annotation, then namespace
// annotation, then cluster default.
func (idx *Index) resolveDefaultPolicy(n *namespaceState, w *Workload) string {
	if v, ok := w.DefaultPolicyAnnotation(); ok {
		if _, valid := validPolicy(v); valid {
			return v
		}
	}
	if v, ok := n.annotations[AnnotationDefaultInboundPolicy]; ok {
		if _, valid := validPolicy(v); valid {
			return v
		}
	}
	return idx.cfg.ClusterDefaultPolicy
}

func validPolicy(v string) (string, bool) {
	switch v {
	case "all-unauthenticated", "all-authenticated", "cluster-unauthenticated", "cluster-authenticated", "deny":
		return v, true
	default:
		return "", false
	}
}

// namedServerAuthorizations collects ServerAuthorizations targeting srv
// by name, plus AuthorizationPolicies targeting srv, its namespace, or
// any HTTPRoute/GRPCRoute attached to it (spec.md §4.1 step 2).
func (idx *Index) namedServerAuthorizations(n *namespaceState, srv *ServerResource) map[AuthorizationRef]ClientAuthorization {
	out := map[AuthorizationRef]ClientAuthorization{}

	for name, sa := range n.serverAuthzs {
		targetsServer := false
		if sa.ServerName != "" {
			targetsServer = sa.ServerName == srv.Name
		} else if sa.HasServerSel {
			targetsServer = sa.ServerSel.Matches(srv.Labels)
		}
		if !targetsServer {
			continue
		}
		out[AuthorizationRef{Group: "policy.linkerd.io", Kind: "serverauthorization", Name: name}] = sa.Client
	}

	attachedRouteNames := map[string]struct{}{}
	for name, r := range n.httpRoutes {
		if r.ParentServer == srv.Name {
			attachedRouteNames[name] = struct{}{}
		}
	}
	for name, r := range n.grpcRoutes {
		if r.ParentServer == srv.Name {
			attachedRouteNames[name] = struct{}{}
		}
	}

	for name, ap := range n.authzPolicies {
		if ap.Illegal {
			continue
		}
		targets := false
		switch ap.TargetKind {
		case "Server":
			targets = ap.TargetName == srv.Name
		case "Namespace":
			targets = ap.TargetName == srv.Namespace
		case "HTTPRoute", "GRPCRoute":
			_, targets = attachedRouteNames[ap.TargetName]
		}
		if !targets {
			continue
		}
		client, ok := idx.clientAuthorizationFor(n, ap)
		if !ok {
			continue
		}
		out[AuthorizationRef{Group: "policy.linkerd.io", Kind: "authorizationpolicy", Name: name}] = client
	}

	return out
}

// clientAuthorizationFor resolves an AuthorizationPolicy's required
// authentication reference into a ClientAuthorization (spec.md §4.1
// step 2, §4.5 "at most one ref each").
func (idx *Index) clientAuthorizationFor(n *namespaceState, ap *AuthorizationPolicyResource) (ClientAuthorization, bool) {
	var client ClientAuthorization
	found := false

	if ap.RequiredNetworkAuthn != "" {
		na, ok := n.networkAuthns[ap.RequiredNetworkAuthn]
		if !ok {
			return ClientAuthorization{}, false
		}
		client.Networks = na.Networks
		found = true
	}
	if ap.RequiredMeshTLSAuthn != "" {
		mta, ok := n.meshTLSAuthns[ap.RequiredMeshTLSAuthn]
		if !ok {
			return ClientAuthorization{}, false
		}
		if len(mta.Identities) == 0 {
			client.MeshTLSUnauthenticated = true
		} else {
			client.MeshTLSIdentities = mta.Identities
		}
		found = true
	}
	if ap.RequiredServiceAccount != nil {
		client.MeshTLSIdentities = append(client.MeshTLSIdentities, idx.serviceAccountIdentity(*ap.RequiredServiceAccount))
		found = true
	}
	if !found {
		return ClientAuthorization{}, false
	}
	return client, true
}

func (idx *Index) serviceAccountIdentity(sa ServiceAccountID) string {
	return sa.Name + "." + sa.Namespace + ".serviceaccount." + idx.cfg.trustDomainOrFallback()
}

// routesForServer collects HTTPRoute/GRPCRoute objects parented to srv,
// keyed by GKNN, each carrying the authorizations whose target is that
// specific route (spec.md §4.1 step 3).
func (idx *Index) routesForServer(n *namespaceState, serverName string) (map[RouteRef]HTTPRoute, map[RouteRef]GRPCRoute) {
	httpRoutes := map[RouteRef]HTTPRoute{}
	for name, r := range n.httpRoutes {
		if r.ParentServer != serverName {
			continue
		}
		ref := RouteRef{Group: "gateway.networking.k8s.io", Kind: "HTTPRoute", Namespace: r.Namespace, Name: name}
		httpRoutes[ref] = HTTPRoute{
			Hostnames:       r.Hostnames,
			Matches:         r.HTTPMatches,
			Authorizations:  idx.authorizationsForRoute(n, "HTTPRoute", name),
			CreationTime:    r.CreationTime,
			HasCreationTime: r.HasCreationTime,
		}
	}
	grpcRoutes := map[RouteRef]GRPCRoute{}
	for name, r := range n.grpcRoutes {
		if r.ParentServer != serverName {
			continue
		}
		ref := RouteRef{Group: "gateway.networking.k8s.io", Kind: "GRPCRoute", Namespace: r.Namespace, Name: name}
		grpcRoutes[ref] = GRPCRoute{
			Hostnames:       r.Hostnames,
			Authorizations:  idx.authorizationsForRoute(n, "GRPCRoute", name),
			CreationTime:    r.CreationTime,
			HasCreationTime: r.HasCreationTime,
		}
	}
	return httpRoutes, grpcRoutes
}

func (idx *Index) authorizationsForRoute(n *namespaceState, kind, routeName string) map[AuthorizationRef]ClientAuthorization {
	out := map[AuthorizationRef]ClientAuthorization{}
	for name, ap := range n.authzPolicies {
		if ap.Illegal || ap.TargetKind != kind || ap.TargetName != routeName {
			continue
		}
		client, ok := idx.clientAuthorizationFor(n, ap)
		if !ok {
			continue
		}
		out[AuthorizationRef{Group: "policy.linkerd.io", Kind: "authorizationpolicy", Name: name}] = client
	}
	return out
}

func (idx *Index) rateLimitForServer(n *namespaceState, serverName string) *RateLimit {
	for _, rl := range n.rateLimits {
		if rl.ServerName != serverName {
			continue
		}
		return &RateLimit{Total: rl.Total, Identity: rl.Identity, Overrides: rl.Overrides}
	}
	return nil
}
