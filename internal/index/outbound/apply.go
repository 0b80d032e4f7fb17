package outbound

// Every Apply/Delete method mutates the store and then recomputes every
// (port, source-namespace) key that the changed resource could affect,
// mirroring the inbound index's lifecycle (spec.md §3.4) generalized to
// the outbound key's extra SourceNamespace dimension.

func (idx *Index) ApplyService(s ServiceResource) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	ns, ok := idx.services[s.Namespace]
	if !ok {
		ns = map[string]*ServiceResource{}
		idx.services[s.Namespace] = ns
	}
	cp := s
	ns[s.Name] = &cp
	idx.recomputeParentLocked(ParentKindService, s.Namespace, s.Name)
}

func (idx *Index) DeleteService(namespace, name string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.services[namespace], name)
	idx.clearParentSlotsLocked(ParentKindService, namespace, name)
}

func (idx *Index) ApplyEgressNetwork(e EgressNetworkResource) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	ns, ok := idx.egress[e.Namespace]
	if !ok {
		ns = map[string]*EgressNetworkResource{}
		idx.egress[e.Namespace] = ns
	}
	cp := e
	ns[e.Name] = &cp
	idx.recomputeParentLocked(ParentKindEgressNetwork, e.Namespace, e.Name)
}

func (idx *Index) DeleteEgressNetwork(namespace, name string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.egress[namespace], name)
	idx.clearParentSlotsLocked(ParentKindEgressNetwork, namespace, name)
}

func (idx *Index) ApplyHTTPRoute(r HTTPRouteResource) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	r.Kind = "HTTPRoute"
	cp := r
	idx.routesFor(r.Namespace).httpRoutes[r.Name] = &cp
	idx.recomputeForRouteParentsLocked(r.ParentRefs)
}

func (idx *Index) DeleteHTTPRoute(namespace, name string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.deleteRoute(namespace, name, func(nr *namespaceRoutes) *HTTPRouteResource {
		r := nr.httpRoutes[name]
		delete(nr.httpRoutes, name)
		return r
	})
}

func (idx *Index) ApplyGRPCRoute(r HTTPRouteResource) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	r.Kind = "GRPCRoute"
	cp := r
	idx.routesFor(r.Namespace).httpRoutes[r.Name] = &cp
	idx.recomputeForRouteParentsLocked(r.ParentRefs)
}

func (idx *Index) DeleteGRPCRoute(namespace, name string) {
	idx.DeleteHTTPRoute(namespace, name)
}

func (idx *Index) ApplyTCPRoute(r TCPRouteResource) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	cp := r
	idx.routesFor(r.Namespace).tcpRoutes[r.Name] = &cp
	idx.recomputeForRouteParentsLocked(r.ParentRefs)
}

func (idx *Index) DeleteTCPRoute(namespace, name string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	nr := idx.routesFor(namespace)
	r := nr.tcpRoutes[name]
	delete(nr.tcpRoutes, name)
	if r != nil {
		idx.recomputeForRouteParentsLocked(r.ParentRefs)
	}
}

func (idx *Index) ApplyTLSRoute(r TLSRouteResource) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	cp := r
	idx.routesFor(r.Namespace).tlsRoutes[r.Name] = &cp
	idx.recomputeForRouteParentsLocked(r.ParentRefs)
}

func (idx *Index) DeleteTLSRoute(namespace, name string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	nr := idx.routesFor(namespace)
	r := nr.tlsRoutes[name]
	delete(nr.tlsRoutes, name)
	if r != nil {
		idx.recomputeForRouteParentsLocked(r.ParentRefs)
	}
}

func (idx *Index) deleteRoute(namespace, name string, remove func(*namespaceRoutes) *HTTPRouteResource) {
	nr := idx.routesFor(namespace)
	r := remove(nr)
	if r != nil {
		idx.recomputeForRouteParentsLocked(r.ParentRefs)
	}
}

func (idx *Index) recomputeForRouteParentsLocked(refs []RouteParentRef) {
	for _, pr := range refs {
		var kind ParentKind
		switch pr.Kind {
		case "Service":
			kind = ParentKindService
		case "EgressNetwork":
			kind = ParentKindEgressNetwork
		default:
			continue
		}
		idx.recomputeParentLocked(kind, pr.Namespace, pr.Name)
	}
}

func (idx *Index) clearParentSlotsLocked(kind ParentKind, namespace, name string) {
	for key, s := range idx.slots {
		if key.Kind == kind && key.ParentNamespace == namespace && key.ParentName == name {
			s.Clear()
			delete(idx.slots, key)
		}
	}
}
