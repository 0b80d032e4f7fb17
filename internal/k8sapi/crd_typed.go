package k8sapi

import (
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/util/intstr"

	v1alpha1 "github.com/linkerd/linkerd2-sub001/api/v1alpha1"
	"github.com/linkerd/linkerd2-sub001/internal/index/inbound"
	"github.com/linkerd/linkerd2-sub001/internal/index/outbound"
	"github.com/linkerd/linkerd2-sub001/internal/selector"
)

// decodeTyped converts a dynamic informer's unstructured object into
// one of this project's own api/v1alpha1 types. Every policy.linkerd.io
// kind has a real typed Go representation (unlike the upstream Gateway
// API route kinds, deliberately not redeclared here per
// api/v1alpha1/groupversion.go), so decoding through the typed struct
// gives the conversion functions below compile-time field safety
// instead of manual unstructured field-path lookups.
func decodeTyped(u *unstructured.Unstructured, out interface{}) error {
	return runtime.DefaultUnstructuredConverter.FromUnstructured(u.Object, out)
}

func portRefFromTyped(p intstr.IntOrString) selector.PortRef {
	if p.Type == intstr.String {
		return selector.PortRef{Name: p.StrVal}
	}
	return selector.PortRef{Number: uint16(p.IntValue())}
}

func labelSelectorFromTyped(sel *metav1.LabelSelector) selector.LabelSelector {
	out := selector.LabelSelector{MatchLabels: selector.Labels{}}
	if sel == nil {
		return out
	}
	if sel.MatchLabels != nil {
		out.MatchLabels = selector.Labels(sel.MatchLabels)
	}
	for _, e := range sel.MatchExpressions {
		var values []string
		values = append(values, e.Values...)
		out.MatchExpressions = append(out.MatchExpressions, selector.LabelSelectorRequirement{
			Key:      e.Key,
			Operator: selector.LabelSelectorOperator(e.Operator),
			Values:   values,
		})
	}
	return out
}

func protocolFromTyped(kind v1alpha1.ServerProtocol) inbound.Protocol {
	switch kind {
	case v1alpha1.ServerProtocolHTTP1:
		return inbound.Protocol{Kind: inbound.ProtocolHTTP1}
	case v1alpha1.ServerProtocolHTTP2:
		return inbound.Protocol{Kind: inbound.ProtocolHTTP2}
	case v1alpha1.ServerProtocolGRPC:
		return inbound.Protocol{Kind: inbound.ProtocolGRPC}
	case v1alpha1.ServerProtocolOpaque:
		return inbound.Protocol{Kind: inbound.ProtocolOpaque}
	case v1alpha1.ServerProtocolTLS:
		return inbound.Protocol{Kind: inbound.ProtocolTLS}
	default:
		return inbound.Protocol{Kind: inbound.ProtocolDetect, DetectTimeout: 10 * time.Second}
	}
}

func serverFromTyped(s *v1alpha1.Server) inbound.ServerResource {
	r := inbound.ServerResource{
		Namespace: s.Namespace,
		Name:      s.Name,
		Labels:    selector.Labels(s.Labels),
		Port:      portRefFromTyped(s.Spec.Port),
		Protocol:  protocolFromTyped(s.Spec.ProxyProtocol),
	}
	if s.Spec.AccessPolicy != nil {
		r.AccessPolicy = *s.Spec.AccessPolicy
	}
	if s.Spec.ExternalWorkloadSelector != nil {
		r.External = true
		r.PodSelector = labelSelectorFromTyped(s.Spec.ExternalWorkloadSelector)
	} else {
		r.PodSelector = labelSelectorFromTyped(s.Spec.PodSelector)
	}
	return r
}

func networkFromTyped(n v1alpha1.Network) (selector.Network, error) {
	return selector.ParseNetwork(n.Cidr, n.Except)
}

func clientAuthorizationFromTyped(c v1alpha1.Client) inbound.ClientAuthorization {
	ca := inbound.ClientAuthorization{Unauthenticated: c.Unauthenticated}
	for _, n := range c.Networks {
		if net, err := networkFromTyped(n); err == nil {
			ca.Networks = append(ca.Networks, net)
		}
	}
	if c.MeshTLS != nil {
		ca.MeshTLSUnauthenticated = c.MeshTLS.UnauthenticatedTLS
		ca.MeshTLSIdentities = append(ca.MeshTLSIdentities, c.MeshTLS.Identities...)
		for _, sa := range c.MeshTLS.ServiceAccounts {
			ns := sa.Namespace
			ca.MeshTLSIdentities = append(ca.MeshTLSIdentities, ns+"/"+sa.Name)
		}
	}
	return ca
}

func serverAuthzFromTyped(s *v1alpha1.ServerAuthorization) inbound.ServerAuthorizationResource {
	r := inbound.ServerAuthorizationResource{
		Namespace: s.Namespace,
		Name:      s.Name,
		Client:    clientAuthorizationFromTyped(s.Spec.Client),
	}
	if s.Spec.Server.Name != "" {
		r.ServerName = s.Spec.Server.Name
	} else {
		r.ServerSel = labelSelectorFromTyped(s.Spec.Server.Selector)
		r.HasServerSel = true
	}
	return r
}

// authzPolicyFromTyped mirrors admission's mixed-kind and
// at-most-one-per-kind rule (spec.md §9 design note, second open
// question): an object that reached the store despite violating the
// rule the webhook enforces is treated as illegal and contributes no
// authorization.
func authzPolicyFromTyped(p *v1alpha1.AuthorizationPolicy) inbound.AuthorizationPolicyResource {
	r := inbound.AuthorizationPolicyResource{
		Namespace:  p.Namespace,
		Name:       p.Name,
		TargetKind: p.Spec.TargetRef.Kind,
		TargetName: p.Spec.TargetRef.Name,
	}

	var networkRefs, meshTLSRefs, saRefs int
	var sa *inbound.ServiceAccountID
	for _, ref := range p.Spec.RequiredAuthenticationRefs {
		switch ref.Kind {
		case "NetworkAuthentication":
			r.RequiredNetworkAuthn = ref.Name
			networkRefs++
		case "MeshTLSAuthentication":
			r.RequiredMeshTLSAuthn = ref.Name
			meshTLSRefs++
		case "ServiceAccount":
			ns := p.Namespace
			if ref.Group != nil && *ref.Group != "" {
				ns = *ref.Group
			}
			sa = &inbound.ServiceAccountID{Namespace: ns, Name: ref.Name}
			saRefs++
		}
	}
	if networkRefs > 1 || meshTLSRefs > 1 || saRefs > 1 || (meshTLSRefs > 0 && saRefs > 0) {
		r.Illegal = true
		return r
	}
	r.RequiredServiceAccount = sa
	return r
}

func networkAuthnFromTyped(n *v1alpha1.NetworkAuthentication) inbound.NetworkAuthenticationResource {
	r := inbound.NetworkAuthenticationResource{Namespace: n.Namespace, Name: n.Name}
	for _, nw := range n.Spec.Networks {
		if net, err := networkFromTyped(nw); err == nil {
			r.Networks = append(r.Networks, net)
		}
	}
	return r
}

func meshTLSAuthnFromTyped(m *v1alpha1.MeshTLSAuthentication) inbound.MeshTLSAuthenticationResource {
	r := inbound.MeshTLSAuthenticationResource{Namespace: m.Namespace, Name: m.Name}
	r.Identities = append(r.Identities, m.Spec.Identities...)
	for _, ref := range m.Spec.IdentityRefs {
		ns := m.Namespace
		if ref.Group != nil && *ref.Group != "" {
			ns = *ref.Group
		}
		r.Identities = append(r.Identities, "*."+ns+".serviceaccount.identity."+ref.Name)
	}
	return r
}

func rateLimitFromTyped(rl *v1alpha1.HttpLocalRateLimitPolicy) inbound.RateLimitResource {
	r := inbound.RateLimitResource{
		Namespace:  rl.Namespace,
		Name:       rl.Name,
		ServerName: rl.Spec.TargetRef.Name,
		Total:      rl.Spec.Total.RequestsPerSecond,
		Overrides:  map[string]uint32{},
	}
	if rl.Spec.Identity != nil {
		v := rl.Spec.Identity.RequestsPerSecond
		r.Identity = &v
	}
	for _, o := range rl.Spec.Overrides {
		for _, ref := range o.ClientRefs {
			ns := ref.Namespace
			if ns == "" {
				ns = rl.Namespace
			}
			r.Overrides[ns+"/"+ref.Name] = o.RequestsPerSecond
		}
	}
	return r
}

func egressNetworkFromTyped(e *v1alpha1.EgressNetwork) outbound.EgressNetworkResource {
	r := outbound.EgressNetworkResource{
		Namespace:     e.Namespace,
		Name:          e.Name,
		TrafficPolicy: string(e.Spec.TrafficPolicy),
		Annotations:   e.Annotations,
		Accepted:      e.Status.Accepted(),
	}
	for _, n := range e.Spec.Networks {
		if net, err := networkFromTyped(n); err == nil {
			r.Networks = append(r.Networks, net)
		}
	}
	return r
}
