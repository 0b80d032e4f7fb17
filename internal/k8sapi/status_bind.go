package k8sapi

import (
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/linkerd/linkerd2-sub001/internal/index/status"
	"github.com/linkerd/linkerd2-sub001/internal/k8s"
)

// routeEntryFromUnstructured builds the status index's view of a route
// object. ResolvedRefs is derived structurally from backendRefs
// (spec.md §3.3 invariant 8: a backendRef outside the Service/
// EgressNetwork group-kind pair is "accepted but unresolved") rather
// than by querying the outbound index's live Service/EgressNetwork
// set, since the status index is deliberately decoupled from the
// inbound/outbound stores (status/patch.go) and re-adding that
// coupling here would reintroduce the cross-index dependency spec.md
// §4.3 avoids.
func routeEntryFromUnstructured(u *unstructured.Unstructured, kind string) status.RouteEntry {
	spec := nestedMap(u.Object, "spec")
	e := status.RouteEntry{
		Ref: k8s.GroupKindNamespaceName{Group: gatewayGroup, Kind: kind, Namespace: u.GetNamespace(), Name: u.GetName()},
		Generation: u.GetGeneration(),
		ResolvedRefs: true,
	}
	e.CreationTime, e.HasCreationTime = creationTime(u)

	for _, p := range nestedSlice(spec, "parentRefs") {
		pm, ok := p.(map[string]interface{})
		if !ok {
			continue
		}
		pkind := nestedString(pm, "kind")
		if pkind == "" {
			pkind = "Service"
		}
		ns := nestedString(pm, "namespace")
		if ns == "" {
			ns = u.GetNamespace()
		}
		ref := status.ParentRef{Kind: pkind, Namespace: ns, Name: nestedString(pm, "name")}
		if pkind == "Server" || pkind == "EgressNetwork" {
			ref.Group = policyGroup
		}
		if n, ok := nestedInt64(pm, "port"); ok {
			ref.Port, ref.HasPort = uint16(n), true
		}
		e.ParentRefs = append(e.ParentRefs, ref)
	}

	for _, rule := range nestedSlice(spec, "rules") {
		rm, ok := rule.(map[string]interface{})
		if !ok {
			continue
		}
		for _, b := range nestedSlice(rm, "backendRefs") {
			bm, ok := b.(map[string]interface{})
			if !ok {
				continue
			}
			group := nestedString(bm, "group")
			bkind := nestedString(bm, "kind")
			if bkind == "" {
				bkind = "Service"
			}
			if (group == "" || group == "core") && (bkind == "Service" || bkind == "EgressNetwork") {
				continue
			}
			e.ResolvedRefs = false
			e.RefsMessage = "backendRef kind " + bkind + " is not supported"
		}
	}
	return e
}
