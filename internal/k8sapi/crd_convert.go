package k8sapi

import (
	"strconv"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/linkerd/linkerd2-sub001/internal/index/inbound"
	"github.com/linkerd/linkerd2-sub001/internal/index/outbound"
	"github.com/linkerd/linkerd2-sub001/internal/selector"
)

func externalWorkloadFromUnstructured(u *unstructured.Unstructured) inbound.Workload {
	spec := nestedMap(u.Object, "spec")
	named := map[string]uint16{}
	ports := map[uint16]struct{}{}
	for _, p := range nestedSlice(spec, "ports") {
		pm, ok := p.(map[string]interface{})
		if !ok {
			continue
		}
		n, _ := nestedInt64(pm, "port")
		port := uint16(n)
		ports[port] = struct{}{}
		if name := nestedString(pm, "name"); name != "" {
			named[name] = port
		}
	}
	var ips []string
	for _, ip := range nestedSlice(spec, "workloadIPs") {
		im, ok := ip.(map[string]interface{})
		if !ok {
			continue
		}
		ips = append(ips, nestedString(im, "ip"))
	}
	return inbound.Workload{
		Namespace:   u.GetNamespace(),
		Name:        u.GetName(),
		External:    true,
		Labels:      selector.Labels(u.GetLabels()),
		Annotations: u.GetAnnotations(),
		IPs:         ips,
		NamedPorts:  named,
		Ports:       ports,
	}
}

func parentRefsFromSpec(spec map[string]interface{}, namespace string) []outbound.RouteParentRef {
	var refs []outbound.RouteParentRef
	for _, p := range nestedSlice(spec, "parentRefs") {
		pm, ok := p.(map[string]interface{})
		if !ok {
			continue
		}
		kind := nestedString(pm, "kind")
		if kind == "" {
			kind = "Service"
		}
		ns := nestedString(pm, "namespace")
		if ns == "" {
			ns = namespace
		}
		ref := outbound.RouteParentRef{Kind: kind, Namespace: ns, Name: nestedString(pm, "name")}
		if n, ok := nestedInt64(pm, "port"); ok {
			ref.Port, ref.HasPort = uint16(n), true
		}
		refs = append(refs, ref)
	}
	return refs
}

func inboundParentServer(spec map[string]interface{}) string {
	for _, p := range nestedSlice(spec, "parentRefs") {
		pm, ok := p.(map[string]interface{})
		if !ok {
			continue
		}
		kind := nestedString(pm, "kind")
		if kind == "" || kind == "Server" {
			return nestedString(pm, "name")
		}
	}
	return ""
}

// inboundRouteFromUnstructured projects an HTTPRoute/GRPCRoute into the
// inbound index's view: only the Server-parented subset matters there
// (spec.md §4.1 default-route synthesis and probe matching).
func inboundRouteFromUnstructured(u *unstructured.Unstructured) inbound.RouteResource {
	spec := nestedMap(u.Object, "spec")
	r := inbound.RouteResource{
		Namespace:    u.GetNamespace(),
		Name:         u.GetName(),
		ParentServer: inboundParentServer(spec),
		Hostnames:    nestedStringSlice(spec, "hostnames"),
	}
	r.CreationTime, r.HasCreationTime = creationTime(u)
	for _, rule := range nestedSlice(spec, "rules") {
		rm, ok := rule.(map[string]interface{})
		if !ok {
			continue
		}
		for _, m := range nestedSlice(rm, "matches") {
			mm, ok := m.(map[string]interface{})
			if !ok {
				continue
			}
			r.HTTPMatches = append(r.HTTPMatches, inboundHTTPMatch(mm))
		}
	}
	return r
}

func inboundHTTPMatch(mm map[string]interface{}) inbound.HTTPRouteMatch {
	match := inbound.HTTPRouteMatch{Headers: map[string]string{}}
	path := nestedMap(mm, "path")
	if path != nil {
		match.Path = nestedString(path, "value")
	}
	method := nestedMap(mm, "method")
	if v, found, _ := unstructured.NestedString(mm, "method"); found {
		match.Method = v
	} else if method != nil {
		match.Method = nestedString(method, "value")
	}
	for _, h := range nestedSlice(mm, "headers") {
		hm, ok := h.(map[string]interface{})
		if !ok {
			continue
		}
		match.Headers[nestedString(hm, "name")] = nestedString(hm, "value")
	}
	return match
}

func backendRefFromSpec(bm map[string]interface{}, namespace string) outbound.BackendRef {
	group := nestedString(bm, "group")
	kind := nestedString(bm, "kind")
	if kind == "" {
		kind = "Service"
	}
	ns := nestedString(bm, "namespace")
	if ns == "" {
		ns = namespace
	}
	b := outbound.BackendRef{Group: group, Kind: kind, Namespace: ns, Name: nestedString(bm, "name"), Weight: 1}
	if n, ok := nestedInt64(bm, "port"); ok {
		b.Port, b.HasPort = uint16(n), true
	}
	if n, ok := nestedInt64(bm, "weight"); ok {
		b.Weight = uint32(n)
	}
	return b
}

func httpFilterFromSpec(fm map[string]interface{}) outbound.HTTPFilter {
	switch nestedString(fm, "type") {
	case "RequestHeaderModifier":
		hm := nestedMap(fm, "requestHeaderModifier")
		return outbound.HTTPFilter{Kind: outbound.HTTPFilterRequestHeaderModifier, HeaderModifier: headerModifierFromSpec(hm)}
	case "ResponseHeaderModifier":
		hm := nestedMap(fm, "responseHeaderModifier")
		return outbound.HTTPFilter{Kind: outbound.HTTPFilterResponseHeaderModifier, HeaderModifier: headerModifierFromSpec(hm)}
	case "RequestRedirect":
		rm := nestedMap(fm, "requestRedirect")
		redirect := &outbound.Redirect{Scheme: nestedString(rm, "scheme"), Hostname: nestedString(rm, "hostname")}
		if n, ok := nestedInt64(rm, "port"); ok {
			redirect.Port = uint16(n)
		}
		if n, ok := nestedInt64(rm, "statusCode"); ok {
			redirect.Status = uint32(n)
		}
		return outbound.HTTPFilter{Kind: outbound.HTTPFilterRedirect, Redirect: redirect}
	default:
		return outbound.HTTPFilter{Kind: outbound.HTTPFilterRequestHeaderModifier, HeaderModifier: &outbound.HeaderModifier{}}
	}
}

func headerModifierFromSpec(hm map[string]interface{}) *outbound.HeaderModifier {
	mod := &outbound.HeaderModifier{Add: map[string]string{}, Set: map[string]string{}}
	for _, h := range nestedSlice(hm, "add") {
		e, ok := h.(map[string]interface{})
		if !ok {
			continue
		}
		mod.Add[nestedString(e, "name")] = nestedString(e, "value")
	}
	for _, h := range nestedSlice(hm, "set") {
		e, ok := h.(map[string]interface{})
		if !ok {
			continue
		}
		mod.Set[nestedString(e, "name")] = nestedString(e, "value")
	}
	mod.Remove = nestedStringSlice(hm, "remove")
	return mod
}

func outboundHTTPMatch(mm map[string]interface{}) outbound.HTTPMatch {
	match := outbound.HTTPMatch{Headers: map[string]string{}, Query: map[string]string{}}
	if path := nestedMap(mm, "path"); path != nil {
		switch nestedString(path, "type") {
		case "Exact":
			match.PathExact = nestedString(path, "value")
		case "RegularExpression":
			match.PathRegex = nestedString(path, "value")
		default:
			match.PathPrefix = nestedString(path, "value")
		}
	}
	if method := nestedString(mm, "method"); method != "" {
		match.Method = method
	}
	for _, h := range nestedSlice(mm, "headers") {
		hm, ok := h.(map[string]interface{})
		if !ok {
			continue
		}
		match.Headers[nestedString(hm, "name")] = nestedString(hm, "value")
	}
	for _, q := range nestedSlice(mm, "queryParams") {
		qm, ok := q.(map[string]interface{})
		if !ok {
			continue
		}
		match.Query[nestedString(qm, "name")] = nestedString(qm, "value")
	}
	return match
}

func outboundHTTPRouteFromUnstructured(u *unstructured.Unstructured, kind string) outbound.HTTPRouteResource {
	spec := nestedMap(u.Object, "spec")
	r := outbound.HTTPRouteResource{
		Namespace:  u.GetNamespace(),
		Name:       u.GetName(),
		Kind:       kind,
		ParentRefs: parentRefsFromSpec(spec, u.GetNamespace()),
		Hostnames:  nestedStringSlice(spec, "hostnames"),
	}
	r.CreationTime, r.HasCreationTime = creationTime(u)
	for _, rule := range nestedSlice(spec, "rules") {
		rm, ok := rule.(map[string]interface{})
		if !ok {
			continue
		}
		hr := outbound.HTTPRuleResource{Timeouts: timeoutsFromSpec(nestedMap(rm, "timeouts"))}
		for _, m := range nestedSlice(rm, "matches") {
			mm, ok := m.(map[string]interface{})
			if !ok {
				continue
			}
			hr.Matches = append(hr.Matches, outboundHTTPMatch(mm))
		}
		for _, f := range nestedSlice(rm, "filters") {
			fm, ok := f.(map[string]interface{})
			if !ok {
				continue
			}
			hr.Filters = append(hr.Filters, httpFilterFromSpec(fm))
		}
		for _, b := range nestedSlice(rm, "backendRefs") {
			bm, ok := b.(map[string]interface{})
			if !ok {
				continue
			}
			hr.Backends = append(hr.Backends, backendRefFromSpec(bm, u.GetNamespace()))
		}
		hr.Retry = retryFromAnnotations(u.GetAnnotations())
		r.Rules = append(r.Rules, hr)
	}
	return r
}

func timeoutsFromSpec(tm map[string]interface{}) outbound.Timeouts {
	var t outbound.Timeouts
	if d, ok := parseDurationField(tm, "request"); ok {
		t.Request = d
	}
	if d, ok := parseDurationField(tm, "backendRequest"); ok {
		t.Response = d
	}
	return t
}

func parseDurationField(m map[string]interface{}, field string) (time.Duration, bool) {
	s := nestedString(m, field)
	if s == "" {
		return 0, false
	}
	return parseGoDuration(s)
}

// parseGoDuration parses a Gateway API Duration string, the same
// subset of Go's duration syntax admission's validator accepts.
func parseGoDuration(s string) (time.Duration, bool) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, false
	}
	return d, true
}

// retryFromAnnotations implements the retry.linkerd.io/* annotation
// trio (outbound.ServiceResource's AnnotationRetryHTTP/Limit/Timeout),
// mirrored here for routes that carry the same annotations directly.
func retryFromAnnotations(annotations map[string]string) *outbound.Retry {
	if annotations[outbound.AnnotationRetryHTTP] == "" {
		return nil
	}
	retry := &outbound.Retry{Conditions: strings.Split(annotations[outbound.AnnotationRetryHTTP], ",")}
	if v := annotations[outbound.AnnotationRetryLimit]; v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			retry.Limit = uint32(n)
		}
	}
	if v := annotations[outbound.AnnotationRetryTimeout]; v != "" {
		if d, ok := parseGoDuration(v); ok {
			retry.PerTryTimeout = d
		}
	}
	return retry
}

func tlsRouteFromUnstructured(u *unstructured.Unstructured) outbound.TLSRouteResource {
	spec := nestedMap(u.Object, "spec")
	r := outbound.TLSRouteResource{
		Namespace:  u.GetNamespace(),
		Name:       u.GetName(),
		ParentRefs: parentRefsFromSpec(spec, u.GetNamespace()),
	}
	r.CreationTime, r.HasCreationTime = creationTime(u)
	for _, rule := range nestedSlice(spec, "rules") {
		rm, ok := rule.(map[string]interface{})
		if !ok {
			continue
		}
		r.SNIs = append(r.SNIs, nestedStringSlice(rm, "sniNames")...)
		for _, b := range nestedSlice(rm, "backendRefs") {
			bm, ok := b.(map[string]interface{})
			if !ok {
				continue
			}
			r.Backends = append(r.Backends, backendRefFromSpec(bm, u.GetNamespace()))
		}
	}
	return r
}

func tcpRouteFromUnstructured(u *unstructured.Unstructured) outbound.TCPRouteResource {
	spec := nestedMap(u.Object, "spec")
	r := outbound.TCPRouteResource{
		Namespace:  u.GetNamespace(),
		Name:       u.GetName(),
		ParentRefs: parentRefsFromSpec(spec, u.GetNamespace()),
	}
	r.CreationTime, r.HasCreationTime = creationTime(u)
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
			r.Backends = append(r.Backends, backendRefFromSpec(bm, u.GetNamespace()))
		}
	}
	return r
}
