// Package status implements the status index (spec.md §4.3): GEP-1426
// route-conflict detection and the Accepted/ResolvedRefs condition
// computation that feeds the patch queue.
package status

import (
	"time"

	"github.com/linkerd/linkerd2-sub001/internal/k8s"
)

type ConditionStatus string

const (
	ConditionTrue    ConditionStatus = "True"
	ConditionFalse   ConditionStatus = "False"
	ConditionUnknown ConditionStatus = "Unknown"
)

const (
	ConditionTypeAccepted     = "Accepted"
	ConditionTypeResolvedRefs = "ResolvedRefs"

	ReasonAccepted      = "Accepted"
	ReasonRouteConflict = "RouteReasonConflicted"
	ReasonNoMatchingParent = "NoMatchingParent"

	ReasonResolvedRefs    = "ResolvedRefs"
	ReasonBackendNotFound = "BackendNotFound"
)

type Condition struct {
	Type               string
	Status             ConditionStatus
	Reason             string
	Message            string
	ObservedGeneration int64
}

// ParentRef is the target a route status entry reports against: a
// Server (inbound) or a Service/EgressNetwork (outbound).
type ParentRef struct {
	Group     string
	Kind      string
	Namespace string
	Name      string
	Port      uint16
	HasPort   bool
}

type ParentStatus struct {
	ParentRef  ParentRef
	Conditions []Condition
}

// RouteStatus is the computed status.parents entry set for a single
// route object.
type RouteStatus struct {
	Ref     k8s.GroupKindNamespaceName
	Parents []ParentStatus
}

// RouteEntry is the status index's internal view of a route object:
// enough to compute conflicts and ResolvedRefs without re-reading the
// inbound/outbound indexes.
type RouteEntry struct {
	Ref             k8s.GroupKindNamespaceName
	Generation      int64
	CreationTime    time.Time
	HasCreationTime bool
	ParentRefs      []ParentRef

	// ResolvedRefs is false when any backendRef in the route is
	// unresolvable (spec.md §4.3 "ResolvedRefs" condition); the caller
	// (inbound/outbound index) supplies this, the status index does not
	// re-derive it.
	ResolvedRefs bool
	RefsMessage  string
}

// routeTypeRank implements GEP-1426's route-kind precedence: lower rank
// wins a conflict. GRPCRoute > HTTPRoute > TLSRoute > TCPRoute.
func routeTypeRank(kind string) int {
	switch kind {
	case "GRPCRoute":
		return 0
	case "HTTPRoute":
		return 1
	case "TLSRoute":
		return 2
	case "TCPRoute":
		return 3
	default:
		return 4
	}
}
