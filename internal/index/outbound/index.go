package outbound

import (
	"sync"

	"github.com/go-logr/logr"
	"github.com/linkerd/linkerd2-sub001/internal/watch"
)

// namespaceRoutes holds the route-like resources created in a single
// namespace; a route's own namespace plus its parent's namespace
// together decide producer/consumer visibility (spec.md §3.3 invariant
// 7, §4.2 "Route visibility policy").
type namespaceRoutes struct {
	httpRoutes map[string]*HTTPRouteResource // also carries GRPCRoute objects, Kind field distinguishes
	tcpRoutes  map[string]*TCPRouteResource
	tlsRoutes  map[string]*TLSRouteResource
}

func newNamespaceRoutes() *namespaceRoutes {
	return &namespaceRoutes{
		httpRoutes: map[string]*HTTPRouteResource{},
		tcpRoutes:  map[string]*TCPRouteResource{},
		tlsRoutes:  map[string]*TLSRouteResource{},
	}
}

// Metrics is the subset of internal/metrics.Registry this index
// needs, injected so the index package never imports the metrics
// package directly.
type Metrics interface {
	RecordRecompute(index string)
}

type noopMetrics struct{}

func (noopMetrics) RecordRecompute(string) {}

// Index is the outbound policy index (spec.md §4.2).
type Index struct {
	mu      sync.RWMutex
	cfg     Config
	log     logr.Logger
	metrics Metrics

	services map[string]map[string]*ServiceResource       // namespace -> name -> resource
	egress   map[string]map[string]*EgressNetworkResource  // namespace -> name -> resource
	routes   map[string]*namespaceRoutes                   // namespace -> routes created there

	slots map[ParentKey]*watch.Slot[OutboundPolicy]

	// sourceNamespaces tracks every source namespace that has ever
	// watched, so a route/parent change can recompute every key a
	// consumer might be looking at even if that source namespace has
	// no resources of its own.
	sourceNamespaces map[string]struct{}
}

func NewIndex(cfg Config, log logr.Logger) *Index {
	return &Index{
		cfg:              cfg,
		log:              log.WithName("outbound-index"),
		metrics:          noopMetrics{},
		services:         map[string]map[string]*ServiceResource{},
		egress:           map[string]map[string]*EgressNetworkResource{},
		routes:           map[string]*namespaceRoutes{},
		slots:            map[ParentKey]*watch.Slot[OutboundPolicy]{},
		sourceNamespaces: map[string]struct{}{},
	}
}

// SetMetrics installs the recompute counter; called once at startup.
func (idx *Index) SetMetrics(m Metrics) {
	idx.metrics = m
}

func (idx *Index) routesFor(ns string) *namespaceRoutes {
	r, ok := idx.routes[ns]
	if !ok {
		r = newNamespaceRoutes()
		idx.routes[ns] = r
	}
	return r
}

func (idx *Index) slot(key ParentKey) *watch.Slot[OutboundPolicy] {
	s, ok := idx.slots[key]
	if !ok {
		s = watch.NewSlot[OutboundPolicy]()
		idx.slots[key] = s
	}
	return s
}

// Get returns the current snapshot for a parent/port/source-namespace,
// used by the one-shot Get RPC (spec.md §4.4).
func (idx *Index) Get(kind ParentKind, parentNS, parentName string, port uint16, sourceNS string) (OutboundPolicy, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	key := ParentKey{Kind: kind, ParentNamespace: parentNS, ParentName: parentName, Port: port, SourceNamespace: sourceNS}
	s, ok := idx.slots[key]
	if !ok {
		return OutboundPolicy{}, false
	}
	v, present, _ := s.Get()
	return v, present
}

// Watch subscribes to a parent/port/source-namespace key.
func (idx *Index) Watch(kind ParentKind, parentNS, parentName string, port uint16, sourceNS string) *watch.Slot[OutboundPolicy] {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.sourceNamespaces[sourceNS] = struct{}{}
	key := ParentKey{Kind: kind, ParentNamespace: parentNS, ParentName: parentName, Port: port, SourceNamespace: sourceNS}
	s := idx.slot(key)
	idx.recomputeKeyLocked(key)
	return s
}
