package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

// +kubebuilder:rbac:groups=policy.linkerd.io,resources=egressnetworks,verbs=get;list;watch
// +kubebuilder:rbac:groups=policy.linkerd.io,resources=egressnetworks/status,verbs=get;update;patch

// +genclient
// +kubebuilder:object:root=true
// +kubebuilder:resource:categories=linkerd-policy,shortName=egressnet
// +kubebuilder:subresource:status
//
// EgressNetwork is an outbound parent: a named CIDR set with a
// traffic-policy, participating in outbound route attachment once its
// Accepted condition is true (spec.md §3.2).
type EgressNetwork struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec EgressNetworkSpec `json:"spec"`
	// +optional
	Status EgressNetworkStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true
type EgressNetworkList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []EgressNetwork `json:"items"`
}

// TrafficPolicy enumerates how traffic not matched by any attached
// route is treated.
type TrafficPolicy string

const (
	TrafficPolicyAllow TrafficPolicy = "Allow"
	TrafficPolicyDeny  TrafficPolicy = "Deny"
)

type EgressNetworkSpec struct {
	// +optional
	Networks []Network `json:"networks,omitempty"`

	// +kubebuilder:validation:Enum=Allow;Deny
	TrafficPolicy TrafficPolicy `json:"trafficPolicy"`
}

type EgressNetworkStatus struct {
	// +optional
	Conditions []Condition `json:"conditions,omitempty"`
}

// Accepted reports whether the EgressNetwork's status carries a
// True/Accepted condition (spec.md §3.2: "its status must be Accepted
// before it participates").
func (s EgressNetworkStatus) Accepted() bool {
	for _, c := range s.Conditions {
		if c.Type == "Accepted" && c.Status == "True" {
			return true
		}
	}
	return false
}

func (in *EgressNetwork) DeepCopyInto(out *EgressNetwork) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	out.Spec.Networks = append([]Network(nil), in.Spec.Networks...)
	out.Spec.TrafficPolicy = in.Spec.TrafficPolicy
	out.Status.Conditions = append([]Condition(nil), in.Status.Conditions...)
}

func (in *EgressNetwork) DeepCopy() *EgressNetwork {
	if in == nil {
		return nil
	}
	out := new(EgressNetwork)
	in.DeepCopyInto(out)
	return out
}

func (in *EgressNetwork) DeepCopyObject() runtime.Object { return in.DeepCopy() }

func (in *EgressNetworkList) DeepCopyObject() runtime.Object {
	out := new(EgressNetworkList)
	out.TypeMeta = in.TypeMeta
	in.ListMeta.DeepCopyInto(&out.ListMeta)
	if in.Items != nil {
		out.Items = make([]EgressNetwork, len(in.Items))
		for i := range in.Items {
			in.Items[i].DeepCopyInto(&out.Items[i])
		}
	}
	return out
}
