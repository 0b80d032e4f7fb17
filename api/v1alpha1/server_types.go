package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/util/intstr"
)

// +kubebuilder:rbac:groups=policy.linkerd.io,resources=servers,verbs=get;list;watch

// +genclient
// +kubebuilder:object:root=true
// +kubebuilder:resource:categories=linkerd-policy,shortName=srv
// +kubebuilder:subresource:status
//
// Server selects a set of workloads by label and matches a port on
// each selected workload; it is the unit inbound authorizations and
// routes attach to (spec.md §3.2).
type Server struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec ServerSpec `json:"spec"`
	// +optional
	Status ServerStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true
type ServerList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Server `json:"items"`
}

// ServerProtocol enumerates the proxy-protocol hints a Server can
// declare; "" defers to protocol detection (spec.md §4.1 step 1).
type ServerProtocol string

const (
	ServerProtocolHTTP1  ServerProtocol = "HTTP/1"
	ServerProtocolHTTP2  ServerProtocol = "HTTP/2"
	ServerProtocolGRPC   ServerProtocol = "gRPC"
	ServerProtocolOpaque ServerProtocol = "opaque"
	ServerProtocolTLS    ServerProtocol = "TLS"
)

// DefaultPolicy enumerates the synthesized default-policy values
// (spec.md §3.3 invariant 1).
type DefaultPolicy string

const (
	DefaultPolicyAllUnauthenticated     DefaultPolicy = "all-unauthenticated"
	DefaultPolicyAllAuthenticated       DefaultPolicy = "all-authenticated"
	DefaultPolicyClusterAuthenticated   DefaultPolicy = "cluster-authenticated"
	DefaultPolicyClusterUnauthenticated DefaultPolicy = "cluster-unauthenticated"
	DefaultPolicyDeny                   DefaultPolicy = "deny"
)

// ValidDefaultPolicy reports whether s names one of the canonical
// default-policy values, used by both admission (Server.accessPolicy)
// and the inbound index's annotation resolution chain.
func ValidDefaultPolicy(s string) (DefaultPolicy, bool) {
	switch DefaultPolicy(s) {
	case DefaultPolicyAllUnauthenticated, DefaultPolicyAllAuthenticated,
		DefaultPolicyClusterAuthenticated, DefaultPolicyClusterUnauthenticated,
		DefaultPolicyDeny:
		return DefaultPolicy(s), true
	default:
		return "", false
	}
}

type ServerSpec struct {
	// PodSelector selects the workloads this Server applies to.
	// +optional
	PodSelector *metav1.LabelSelector `json:"podSelector,omitempty"`

	// ExternalWorkloadSelector selects external workloads instead of
	// pods; at most one of PodSelector/ExternalWorkloadSelector is set.
	// +optional
	ExternalWorkloadSelector *metav1.LabelSelector `json:"externalWorkloadSelector,omitempty"`

	// Port is matched against a selected workload's container ports by
	// number or by name.
	Port intstr.IntOrString `json:"port"`

	// +optional
	ProxyProtocol ServerProtocol `json:"proxyProtocol,omitempty"`

	// AccessPolicy names a default policy for this Server. If set, it
	// must parse as a DefaultPolicy (checked by admission). The inbound
	// index copies it onto ServerResource but does not use it when
	// computing a port's authorizations.
	// +optional
	AccessPolicy *string `json:"accessPolicy,omitempty"`
}

type ServerStatus struct {
	// +optional
	Conditions []Condition `json:"conditions,omitempty"`
}

func (in *Server) DeepCopyInto(out *Server) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	in.Spec.DeepCopyInto(&out.Spec)
	out.Status = *in.Status.DeepCopy()
}

func (in *Server) DeepCopy() *Server {
	if in == nil {
		return nil
	}
	out := new(Server)
	in.DeepCopyInto(out)
	return out
}

func (in *Server) DeepCopyObject() runtime.Object { return in.DeepCopy() }

func (in *ServerSpec) DeepCopyInto(out *ServerSpec) {
	*out = *in
	if in.PodSelector != nil {
		out.PodSelector = in.PodSelector.DeepCopy()
	}
	if in.ExternalWorkloadSelector != nil {
		out.ExternalWorkloadSelector = in.ExternalWorkloadSelector.DeepCopy()
	}
	if in.AccessPolicy != nil {
		v := *in.AccessPolicy
		out.AccessPolicy = &v
	}
}

func (in *ServerStatus) DeepCopy() *ServerStatus {
	if in == nil {
		return nil
	}
	out := new(ServerStatus)
	*out = *in
	if in.Conditions != nil {
		out.Conditions = append([]Condition(nil), in.Conditions...)
	}
	return out
}

func (in *ServerList) DeepCopyObject() runtime.Object {
	out := new(ServerList)
	out.TypeMeta = in.TypeMeta
	in.ListMeta.DeepCopyInto(&out.ListMeta)
	if in.Items != nil {
		out.Items = make([]Server, len(in.Items))
		for i := range in.Items {
			in.Items[i].DeepCopyInto(&out.Items[i])
		}
	}
	return out
}
