package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

// +kubebuilder:rbac:groups=policy.linkerd.io,resources=networkauthentications,verbs=get;list;watch

// +genclient
// +kubebuilder:object:root=true
// +kubebuilder:resource:categories=linkerd-policy,shortName=netauthn
//
// NetworkAuthentication names a set of networks an AuthorizationPolicy
// can reference (spec.md §3.2).
type NetworkAuthentication struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec NetworkAuthenticationSpec `json:"spec"`
}

// +kubebuilder:object:root=true
type NetworkAuthenticationList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []NetworkAuthentication `json:"items"`
}

type NetworkAuthenticationSpec struct {
	// +kubebuilder:validation:MinItems=1
	Networks []Network `json:"networks"`
}

func (in *NetworkAuthentication) DeepCopyInto(out *NetworkAuthentication) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	out.Spec.Networks = append([]Network(nil), in.Spec.Networks...)
}

func (in *NetworkAuthentication) DeepCopy() *NetworkAuthentication {
	if in == nil {
		return nil
	}
	out := new(NetworkAuthentication)
	in.DeepCopyInto(out)
	return out
}

func (in *NetworkAuthentication) DeepCopyObject() runtime.Object { return in.DeepCopy() }

func (in *NetworkAuthenticationList) DeepCopyObject() runtime.Object {
	out := new(NetworkAuthenticationList)
	out.TypeMeta = in.TypeMeta
	in.ListMeta.DeepCopyInto(&out.ListMeta)
	if in.Items != nil {
		out.Items = make([]NetworkAuthentication, len(in.Items))
		for i := range in.Items {
			in.Items[i].DeepCopyInto(&out.Items[i])
		}
	}
	return out
}

// +kubebuilder:rbac:groups=policy.linkerd.io,resources=meshtlsauthentications,verbs=get;list;watch

// +genclient
// +kubebuilder:object:root=true
// +kubebuilder:resource:categories=linkerd-policy,shortName=meshtlsauthn
//
// MeshTLSAuthentication names a set of mesh identities an
// AuthorizationPolicy can reference (spec.md §3.2).
type MeshTLSAuthentication struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec MeshTLSAuthenticationSpec `json:"spec"`
}

// +kubebuilder:object:root=true
type MeshTLSAuthenticationList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []MeshTLSAuthentication `json:"items"`
}

type MeshTLSAuthenticationSpec struct {
	// +optional
	Identities []string `json:"identities,omitempty"`
	// +optional
	IdentityRefs []TypedLocalObjectReference `json:"identityRefs,omitempty"`
}

func (in *MeshTLSAuthentication) DeepCopyInto(out *MeshTLSAuthentication) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	out.Spec.Identities = append([]string(nil), in.Spec.Identities...)
	out.Spec.IdentityRefs = append([]TypedLocalObjectReference(nil), in.Spec.IdentityRefs...)
}

func (in *MeshTLSAuthentication) DeepCopy() *MeshTLSAuthentication {
	if in == nil {
		return nil
	}
	out := new(MeshTLSAuthentication)
	in.DeepCopyInto(out)
	return out
}

func (in *MeshTLSAuthentication) DeepCopyObject() runtime.Object { return in.DeepCopy() }

func (in *MeshTLSAuthenticationList) DeepCopyObject() runtime.Object {
	out := new(MeshTLSAuthenticationList)
	out.TypeMeta = in.TypeMeta
	in.ListMeta.DeepCopyInto(&out.ListMeta)
	if in.Items != nil {
		out.Items = make([]MeshTLSAuthentication, len(in.Items))
		for i := range in.Items {
			in.Items[i].DeepCopyInto(&out.Items[i])
		}
	}
	return out
}
