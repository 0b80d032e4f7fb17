package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

// +kubebuilder:rbac:groups=policy.linkerd.io,resources=serverauthorizations,verbs=get;list;watch

// +genclient
// +kubebuilder:object:root=true
// +kubebuilder:resource:categories=linkerd-policy,shortName=saz
//
// ServerAuthorization grants a set of clients access to the workloads
// matched by a named Server (spec.md §3.2).
type ServerAuthorization struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec ServerAuthorizationSpec `json:"spec"`
}

// +kubebuilder:object:root=true
type ServerAuthorizationList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []ServerAuthorization `json:"items"`
}

type ServerAuthorizationSpec struct {
	Server ServerSelector `json:"server"`
	Client Client         `json:"client"`
}

// ServerSelector references the target Server either by name or by a
// label selector over Servers (at most one is meaningful; name wins
// when both are set).
type ServerSelector struct {
	// +optional
	Name string `json:"name,omitempty"`
	// +optional
	Selector *metav1.LabelSelector `json:"selector,omitempty"`
}

// Client describes the set of callers this authorization admits.
type Client struct {
	// +optional
	Networks []Network `json:"networks,omitempty"`
	// +optional
	Unauthenticated bool `json:"unauthenticated,omitempty"`
	// +optional
	MeshTLS *MeshTLSClient `json:"meshTLS,omitempty"`
}

type MeshTLSClient struct {
	// +optional
	UnauthenticatedTLS bool `json:"unauthenticatedTLS,omitempty"`
	// +optional
	Identities []string `json:"identities,omitempty"`
	// +optional
	ServiceAccounts []ServiceAccountRef `json:"serviceAccounts,omitempty"`
}

type ServiceAccountRef struct {
	// +optional
	Namespace string `json:"namespace,omitempty"`
	Name      string `json:"name"`
}

func (in *ServerAuthorization) DeepCopyInto(out *ServerAuthorization) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	in.Spec.DeepCopyInto(&out.Spec)
}

func (in *ServerAuthorization) DeepCopy() *ServerAuthorization {
	if in == nil {
		return nil
	}
	out := new(ServerAuthorization)
	in.DeepCopyInto(out)
	return out
}

func (in *ServerAuthorization) DeepCopyObject() runtime.Object { return in.DeepCopy() }

func (in *ServerAuthorizationSpec) DeepCopyInto(out *ServerAuthorizationSpec) {
	*out = *in
	if in.Server.Selector != nil {
		out.Server.Selector = in.Server.Selector.DeepCopy()
	}
	if in.Client.Networks != nil {
		out.Client.Networks = append([]Network(nil), in.Client.Networks...)
	}
	if in.Client.MeshTLS != nil {
		m := *in.Client.MeshTLS
		m.Identities = append([]string(nil), in.Client.MeshTLS.Identities...)
		m.ServiceAccounts = append([]ServiceAccountRef(nil), in.Client.MeshTLS.ServiceAccounts...)
		out.Client.MeshTLS = &m
	}
}

func (in *ServerAuthorizationList) DeepCopyObject() runtime.Object {
	out := new(ServerAuthorizationList)
	out.TypeMeta = in.TypeMeta
	in.ListMeta.DeepCopyInto(&out.ListMeta)
	if in.Items != nil {
		out.Items = make([]ServerAuthorization, len(in.Items))
		for i := range in.Items {
			in.Items[i].DeepCopyInto(&out.Items[i])
		}
	}
	return out
}
