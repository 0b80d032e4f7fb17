package inbound

import (
	"sync"

	"github.com/go-logr/logr"
	"github.com/linkerd/linkerd2-sub001/internal/k8s"
	"github.com/linkerd/linkerd2-sub001/internal/watch"
)

// WorkloadPortKey is the inbound index's primary key (spec.md §4.1
// "Key").
type WorkloadPortKey struct {
	Namespace string
	Workload  string
	Port      uint16
}

// namespaceState holds every resource kind the inbound index watches,
// partitioned by namespace so recomputation only ever needs to scan one
// namespace's worth of state (spec.md design note §9: "flat,
// namespace-partitioned stores keyed by name").
type namespaceState struct {
	annotations map[string]string // the Namespace object's own annotations

	workloads      map[string]*Workload
	servers        map[string]*ServerResource
	serverAuthzs   map[string]*ServerAuthorizationResource
	authzPolicies  map[string]*AuthorizationPolicyResource
	networkAuthns  map[string]*NetworkAuthenticationResource
	meshTLSAuthns  map[string]*MeshTLSAuthenticationResource
	httpRoutes     map[string]*RouteResource
	grpcRoutes     map[string]*RouteResource
	rateLimits     map[string]*RateLimitResource
}

func newNamespaceState() *namespaceState {
	return &namespaceState{
		workloads:     map[string]*Workload{},
		servers:       map[string]*ServerResource{},
		serverAuthzs:  map[string]*ServerAuthorizationResource{},
		authzPolicies: map[string]*AuthorizationPolicyResource{},
		networkAuthns: map[string]*NetworkAuthenticationResource{},
		meshTLSAuthns: map[string]*MeshTLSAuthenticationResource{},
		httpRoutes:    map[string]*RouteResource{},
		grpcRoutes:    map[string]*RouteResource{},
		rateLimits:    map[string]*RateLimitResource{},
	}
}

// Metrics is the subset of internal/metrics.Registry this index needs,
// injected so the index package never imports the metrics package
// directly (the same inversion status.Patcher uses for status.PatchQueue).
type Metrics interface {
	RecordRecompute(index string)
}

type noopMetrics struct{}

func (noopMetrics) RecordRecompute(string) {}

// Index is the inbound policy index (spec.md §4.1). It is safe for
// concurrent use: mutations take the write lock; the gRPC encoder
// clones a snapshot reference under a read lock only long enough to
// hand it to a watcher (spec.md §5).
type Index struct {
	mu      sync.RWMutex
	cfg     Config
	log     logr.Logger
	metrics Metrics
	ns      map[string]*namespaceState
	slots   map[WorkloadPortKey]*watch.Slot[InboundServer]
}

func NewIndex(cfg Config, log logr.Logger) *Index {
	return &Index{
		cfg:     cfg,
		log:     log.WithName("inbound-index"),
		metrics: noopMetrics{},
		ns:      map[string]*namespaceState{},
		slots:   map[WorkloadPortKey]*watch.Slot[InboundServer]{},
	}
}

// SetMetrics installs the recompute counter; called once at startup.
func (idx *Index) SetMetrics(m Metrics) {
	idx.metrics = m
}

func (idx *Index) namespace(ns string) *namespaceState {
	n, ok := idx.ns[ns]
	if !ok {
		n = newNamespaceState()
		idx.ns[ns] = n
	}
	return n
}

func (idx *Index) slot(key WorkloadPortKey) *watch.Slot[InboundServer] {
	s, ok := idx.slots[key]
	if !ok {
		s = watch.NewSlot[InboundServer]()
		idx.slots[key] = s
	}
	return s
}

// Get returns the current snapshot for a (workload, port), used by the
// one-shot GetPort RPC (spec.md §4.4).
func (idx *Index) Get(ns, workload string, port uint16) (InboundServer, bool) {
	idx.mu.RLock()
	key := WorkloadPortKey{Namespace: ns, Workload: workload, Port: port}
	s, ok := idx.slots[key]
	idx.mu.RUnlock()
	if !ok {
		return InboundServer{}, false
	}
	v, present, _ := s.Get()
	return v, present
}

// Watch subscribes to a (workload, port)'s slot; see watch.Slot.Watch
// for delivery semantics. It always returns a slot, creating an absent
// one if the key is not yet known, so a watcher started before its
// workload exists still observes the eventual first snapshot.
func (idx *Index) Watch(ns, workload string, port uint16) *watch.Slot[InboundServer] {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.slot(WorkloadPortKey{Namespace: ns, Workload: workload, Port: port})
}

// GKNN re-exported for callers that only need the shared key type.
type GKNN = k8s.GroupKindNamespaceName
