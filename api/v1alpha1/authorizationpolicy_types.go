package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

// +kubebuilder:rbac:groups=policy.linkerd.io,resources=authorizationpolicies,verbs=get;list;watch

// +genclient
// +kubebuilder:object:root=true
// +kubebuilder:resource:categories=linkerd-policy,shortName=authzpolicy
//
// AuthorizationPolicy grants access to a Server, an HTTPRoute/GRPCRoute,
// or a Namespace, conditioned on one reference each of MeshTLS/Network/
// ServiceAccount authentication (spec.md §3.2, §4.5).
type AuthorizationPolicy struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec AuthorizationPolicySpec `json:"spec"`
}

// +kubebuilder:object:root=true
type AuthorizationPolicyList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []AuthorizationPolicy `json:"items"`
}

type AuthorizationPolicySpec struct {
	TargetRef PolicyTargetReference `json:"targetRef"`

	// +kubebuilder:validation:MinItems=1
	RequiredAuthenticationRefs []RequiredAuthenticationRef `json:"requiredAuthenticationRefs"`
}

func (in *AuthorizationPolicy) DeepCopyInto(out *AuthorizationPolicy) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	out.Spec = in.Spec
	out.Spec.RequiredAuthenticationRefs = append([]RequiredAuthenticationRef(nil), in.Spec.RequiredAuthenticationRefs...)
}

func (in *AuthorizationPolicy) DeepCopy() *AuthorizationPolicy {
	if in == nil {
		return nil
	}
	out := new(AuthorizationPolicy)
	in.DeepCopyInto(out)
	return out
}

func (in *AuthorizationPolicy) DeepCopyObject() runtime.Object { return in.DeepCopy() }

func (in *AuthorizationPolicyList) DeepCopyObject() runtime.Object {
	out := new(AuthorizationPolicyList)
	out.TypeMeta = in.TypeMeta
	in.ListMeta.DeepCopyInto(&out.ListMeta)
	if in.Items != nil {
		out.Items = make([]AuthorizationPolicy, len(in.Items))
		for i := range in.Items {
			in.Items[i].DeepCopyInto(&out.Items[i])
		}
	}
	return out
}
