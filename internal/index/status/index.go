package status

import (
	"sort"
	"sync"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/linkerd/linkerd2-sub001/internal/k8s"
	"github.com/linkerd/linkerd2-sub001/internal/watch"
)

// parentKey groups every route referencing the same parent/port so a
// conflict can be resolved across route kinds (spec.md §4.3 "conflict
// resolution is computed per (parent, port)").
type parentKey struct {
	Group     string
	Kind      string
	Namespace string
	Name      string
	Port      uint16
}

// Index computes per-route status and exposes it over watch.Slot so the
// patch queue can react to changes without re-scanning every route on
// every tick.
type Index struct {
	mu sync.RWMutex
	log logr.Logger

	routes map[k8s.GroupKindNamespaceName]*RouteEntry
	slots  map[k8s.GroupKindNamespaceName]*watch.Slot[RouteStatus]

	// onChange, if set, is called after a route's computed status
	// changes so a PatchQueue can Enqueue it without this package
	// depending on patch.go's queue (spec.md §4.3's decoupling between
	// status computation and status patching).
	onChange func(k8s.GroupKindNamespaceName)
}

func NewIndex(log logr.Logger) *Index {
	return &Index{
		log:    log.WithName("status-index"),
		routes: map[k8s.GroupKindNamespaceName]*RouteEntry{},
		slots:  map[k8s.GroupKindNamespaceName]*watch.Slot[RouteStatus]{},
	}
}

// OnChange registers the callback invoked whenever a route's computed
// status is (re)written. Meant to be wired once at startup, typically
// to a PatchQueue's Enqueue.
func (idx *Index) OnChange(fn func(k8s.GroupKindNamespaceName)) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.onChange = fn
}

func (idx *Index) slot(ref k8s.GroupKindNamespaceName) *watch.Slot[RouteStatus] {
	s, ok := idx.slots[ref]
	if !ok {
		s = watch.NewSlot[RouteStatus]()
		idx.slots[ref] = s
	}
	return s
}

// Watch subscribes to a route's computed status.
func (idx *Index) Watch(ref k8s.GroupKindNamespaceName) *watch.Slot[RouteStatus] {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.slot(ref)
}

func (idx *Index) Get(ref k8s.GroupKindNamespaceName) (RouteStatus, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	s, ok := idx.slots[ref]
	if !ok {
		return RouteStatus{}, false
	}
	v, present, _ := s.Get()
	return v, present
}

// ApplyRoute records or updates a route's entry and recomputes status
// for every parent it (or its prior version) referenced.
func (idx *Index) ApplyRoute(e RouteEntry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var touched []ParentRef
	if old, ok := idx.routes[e.Ref]; ok {
		touched = append(touched, old.ParentRefs...)
	}
	touched = append(touched, e.ParentRefs...)

	cp := e
	idx.routes[e.Ref] = &cp
	idx.recomputeParents(touched)
}

func (idx *Index) DeleteRoute(ref k8s.GroupKindNamespaceName) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	old, ok := idx.routes[ref]
	delete(idx.routes, ref)
	if s, ok := idx.slots[ref]; ok {
		s.Clear()
		delete(idx.slots, ref)
	}
	if ok {
		idx.recomputeParents(old.ParentRefs)
	}
}

func parentKeyOf(p ParentRef) parentKey {
	return parentKey{Group: p.Group, Kind: p.Kind, Namespace: p.Namespace, Name: p.Name, Port: p.Port}
}

// recomputeParents rebuilds status for every route attached to any of
// the given parents. Must be called with idx.mu held for writing.
func (idx *Index) recomputeParents(parents []ParentRef) {
	keySet := sets.New[parentKey]()
	for _, p := range parents {
		keySet.Insert(parentKeyOf(p))
	}

	affectedRoutes := sets.New[k8s.GroupKindNamespaceName]()
	for k := range keySet {
		for ref, e := range idx.routes {
			for _, p := range e.ParentRefs {
				if parentKeyOf(p) == k {
					affectedRoutes.Insert(ref)
					break
				}
			}
		}
	}

	builds := map[k8s.GroupKindNamespaceName]*routeStatusBuild{}
	for k := range keySet {
		idx.recomputeOneParent(k, affectedRoutes, builds)
	}

	for ref := range affectedRoutes {
		idx.writeRouteStatus(ref, builds)
	}
}

// routeStatusBuild accumulates the per-parent conditions computed for
// each route as parents are processed one at a time.
type routeStatusBuild struct {
	parents map[parentKey]ParentStatus
}

func ensureBuild(builds map[k8s.GroupKindNamespaceName]*routeStatusBuild, ref k8s.GroupKindNamespaceName) *routeStatusBuild {
	b, ok := builds[ref]
	if !ok {
		b = &routeStatusBuild{parents: map[parentKey]ParentStatus{}}
		builds[ref] = b
	}
	return b
}

// recomputeOneParent resolves the GEP-1426 conflict for a single
// (parent, port) and stashes each attached route's resulting
// ParentStatus into builds, consumed by writeRouteStatus. Must be
// called with idx.mu held for writing.
func (idx *Index) recomputeOneParent(k parentKey, affected sets.Set[k8s.GroupKindNamespaceName], builds map[k8s.GroupKindNamespaceName]*routeStatusBuild) {
	type attached struct {
		ref   k8s.GroupKindNamespaceName
		entry *RouteEntry
		pref  ParentRef
	}
	var routes []attached
	for ref, e := range idx.routes {
		for _, p := range e.ParentRefs {
			if parentKeyOf(p) != k {
				continue
			}
			routes = append(routes, attached{ref: ref, entry: e, pref: p})
		}
	}
	if len(routes) == 0 {
		return
	}

	bestRank := 4
	for _, r := range routes {
		if rank := routeTypeRank(r.ref.Kind); rank < bestRank {
			bestRank = rank
		}
	}

	sort.Slice(routes, func(i, j int) bool {
		ti, tj := routes[i].entry, routes[j].entry
		if ti.HasCreationTime != tj.HasCreationTime {
			return ti.HasCreationTime
		}
		if ti.HasCreationTime && tj.HasCreationTime && !ti.CreationTime.Equal(tj.CreationTime) {
			return ti.CreationTime.Before(tj.CreationTime)
		}
		return routes[i].ref.Less(routes[j].ref)
	})

	for _, r := range routes {
		b := ensureBuild(builds, r.ref)
		accepted := Condition{Type: ConditionTypeAccepted, Status: ConditionTrue, Reason: ReasonAccepted, ObservedGeneration: r.entry.Generation}
		if routeTypeRank(r.ref.Kind) != bestRank {
			accepted = Condition{
				Type:               ConditionTypeAccepted,
				Status:             ConditionFalse,
				Reason:             ReasonRouteConflict,
				Message:            "conflicts with a higher-precedence route kind attached to the same parent and port",
				ObservedGeneration: r.entry.Generation,
			}
		}
		resolved := Condition{Type: ConditionTypeResolvedRefs, Status: ConditionTrue, Reason: ReasonResolvedRefs, ObservedGeneration: r.entry.Generation}
		if !r.entry.ResolvedRefs {
			resolved = Condition{
				Type:               ConditionTypeResolvedRefs,
				Status:             ConditionFalse,
				Reason:             ReasonBackendNotFound,
				Message:            r.entry.RefsMessage,
				ObservedGeneration: r.entry.Generation,
			}
		}
		b.parents[k] = ParentStatus{ParentRef: r.pref, Conditions: []Condition{accepted, resolved}}
		affected.Insert(r.ref)
	}
}

func (idx *Index) writeRouteStatus(ref k8s.GroupKindNamespaceName, builds map[k8s.GroupKindNamespaceName]*routeStatusBuild) {
	e, ok := idx.routes[ref]
	if !ok {
		return
	}
	b, ok := builds[ref]
	if !ok {
		return
	}
	var parents []ParentStatus
	for _, p := range e.ParentRefs {
		if ps, ok := b.parents[parentKeyOf(p)]; ok {
			parents = append(parents, ps)
		}
	}
	idx.slot(ref).Set(RouteStatus{Ref: ref, Parents: parents}, routeStatusEqual)
	if idx.onChange != nil {
		idx.onChange(ref)
	}
}

func routeStatusEqual(a, b RouteStatus) bool {
	if a.Ref != b.Ref || len(a.Parents) != len(b.Parents) {
		return false
	}
	for i := range a.Parents {
		if a.Parents[i].ParentRef != b.Parents[i].ParentRef {
			return false
		}
		if len(a.Parents[i].Conditions) != len(b.Parents[i].Conditions) {
			return false
		}
		for j := range a.Parents[i].Conditions {
			if a.Parents[i].Conditions[j] != b.Parents[i].Conditions[j] {
				return false
			}
		}
	}
	return true
}
