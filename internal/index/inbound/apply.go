package inbound

// Every Apply/Delete method follows spec.md §3.4's lifecycle: (a)
// mutate the store, (b) recompute affected (workload,port) keys within
// the touched namespace, (c) overwrite watch slots with new snapshots.
// All of them run under the index write lock so informer delivery
// order (spec.md §5) is preserved as index application order.

func (idx *Index) ApplyNamespace(name string, annotations map[string]string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	n := idx.namespace(name)
	n.annotations = annotations
	idx.recomputeNamespace(name)
}

func (idx *Index) DeleteNamespace(name string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.ns, name)
	idx.clearNamespaceSlots(name)
}

func (idx *Index) ApplyWorkload(w Workload) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	n := idx.namespace(w.Namespace)
	cp := w
	n.workloads[w.Name] = &cp
	idx.recomputeNamespace(w.Namespace)
}

func (idx *Index) DeleteWorkload(namespace, name string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	n := idx.namespace(namespace)
	delete(n.workloads, name)
	idx.clearWorkloadSlots(namespace, name)
	idx.recomputeNamespace(namespace)
}

// NodeDisappeared clears every workload anchored to the given node
// (spec.md §3.2 Workload lifecycle: "destroyed on ... node disappearance
// if the node was the pod's anchor").
func (idx *Index) NodeDisappeared(nodeName string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for nsName, n := range idx.ns {
		changed := false
		for name, w := range n.workloads {
			if w.Node == nodeName {
				delete(n.workloads, name)
				idx.clearWorkloadSlots(nsName, name)
				changed = true
			}
		}
		if changed {
			idx.recomputeNamespace(nsName)
		}
	}
}

func (idx *Index) ApplyServer(s ServerResource) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	n := idx.namespace(s.Namespace)
	cp := s
	n.servers[s.Name] = &cp
	idx.recomputeNamespace(s.Namespace)
}

func (idx *Index) DeleteServer(namespace, name string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	n := idx.namespace(namespace)
	delete(n.servers, name)
	idx.recomputeNamespace(namespace)
}

func (idx *Index) ApplyServerAuthorization(s ServerAuthorizationResource) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	n := idx.namespace(s.Namespace)
	cp := s
	n.serverAuthzs[s.Name] = &cp
	idx.recomputeNamespace(s.Namespace)
}

func (idx *Index) DeleteServerAuthorization(namespace, name string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	n := idx.namespace(namespace)
	delete(n.serverAuthzs, name)
	idx.recomputeNamespace(namespace)
}

func (idx *Index) ApplyAuthorizationPolicy(p AuthorizationPolicyResource) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	n := idx.namespace(p.Namespace)
	cp := p
	n.authzPolicies[p.Name] = &cp
	idx.recomputeNamespace(p.Namespace)
}

func (idx *Index) DeleteAuthorizationPolicy(namespace, name string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	n := idx.namespace(namespace)
	delete(n.authzPolicies, name)
	idx.recomputeNamespace(namespace)
}

func (idx *Index) ApplyNetworkAuthentication(r NetworkAuthenticationResource) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	n := idx.namespace(r.Namespace)
	cp := r
	n.networkAuthns[r.Name] = &cp
	idx.recomputeNamespace(r.Namespace)
}

func (idx *Index) DeleteNetworkAuthentication(namespace, name string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	n := idx.namespace(namespace)
	delete(n.networkAuthns, name)
	idx.recomputeNamespace(namespace)
}

func (idx *Index) ApplyMeshTLSAuthentication(r MeshTLSAuthenticationResource) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	n := idx.namespace(r.Namespace)
	cp := r
	n.meshTLSAuthns[r.Name] = &cp
	idx.recomputeNamespace(r.Namespace)
}

func (idx *Index) DeleteMeshTLSAuthentication(namespace, name string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	n := idx.namespace(namespace)
	delete(n.meshTLSAuthns, name)
	idx.recomputeNamespace(namespace)
}

func (idx *Index) ApplyHTTPRoute(r RouteResource) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	n := idx.namespace(r.Namespace)
	cp := r
	n.httpRoutes[r.Name] = &cp
	idx.recomputeNamespace(r.Namespace)
}

func (idx *Index) DeleteHTTPRoute(namespace, name string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	n := idx.namespace(namespace)
	delete(n.httpRoutes, name)
	idx.recomputeNamespace(namespace)
}

func (idx *Index) ApplyGRPCRoute(r RouteResource) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	n := idx.namespace(r.Namespace)
	cp := r
	n.grpcRoutes[r.Name] = &cp
	idx.recomputeNamespace(r.Namespace)
}

func (idx *Index) DeleteGRPCRoute(namespace, name string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	n := idx.namespace(namespace)
	delete(n.grpcRoutes, name)
	idx.recomputeNamespace(namespace)
}

func (idx *Index) ApplyRateLimit(r RateLimitResource) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	n := idx.namespace(r.Namespace)
	cp := r
	n.rateLimits[r.Name] = &cp
	idx.recomputeNamespace(r.Namespace)
}

func (idx *Index) DeleteRateLimit(namespace, name string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	n := idx.namespace(namespace)
	delete(n.rateLimits, name)
	idx.recomputeNamespace(namespace)
}

func (idx *Index) clearWorkloadSlots(namespace, workload string) {
	for key, s := range idx.slots {
		if key.Namespace == namespace && key.Workload == workload {
			s.Clear()
			delete(idx.slots, key)
		}
	}
}

func (idx *Index) clearNamespaceSlots(namespace string) {
	for key, s := range idx.slots {
		if key.Namespace == namespace {
			s.Clear()
			delete(idx.slots, key)
		}
	}
}
