package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

// +kubebuilder:rbac:groups=policy.linkerd.io,resources=httplocalratelimitpolicies,verbs=get;list;watch

// +genclient
// +kubebuilder:object:root=true
// +kubebuilder:resource:categories=linkerd-policy,shortName=ratelimit
//
// HttpLocalRateLimitPolicy targets a Server and carries a total
// requests-per-second budget, an optional identity-scoped budget, and
// per-client overrides (spec.md §3.2, §4.5).
type HttpLocalRateLimitPolicy struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec HttpLocalRateLimitPolicySpec `json:"spec"`
	// +optional
	Status HttpLocalRateLimitPolicyStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true
type HttpLocalRateLimitPolicyList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []HttpLocalRateLimitPolicy `json:"items"`
}

type HttpLocalRateLimitPolicySpec struct {
	TargetRef PolicyTargetReference `json:"targetRef"`

	Total Limit `json:"total"`
	// +optional
	Identity *Limit `json:"identity,omitempty"`
	// +optional
	Overrides []Override `json:"overrides,omitempty"`
}

// Limit is a requests-per-second budget.
type Limit struct {
	RequestsPerSecond uint32 `json:"requestsPerSecond"`
}

// Override raises or lowers the effective limit for a specific set of
// ServiceAccount clients.
type Override struct {
	RequestsPerSecond uint32              `json:"requestsPerSecond"`
	ClientRefs        []ServiceAccountRef `json:"clientRefs"`
}

type HttpLocalRateLimitPolicyStatus struct {
	// +optional
	Conditions []Condition `json:"conditions,omitempty"`
}

func (in *HttpLocalRateLimitPolicy) DeepCopyInto(out *HttpLocalRateLimitPolicy) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	out.Spec = in.Spec
	if in.Spec.Identity != nil {
		v := *in.Spec.Identity
		out.Spec.Identity = &v
	}
	if in.Spec.Overrides != nil {
		out.Spec.Overrides = make([]Override, len(in.Spec.Overrides))
		for i, o := range in.Spec.Overrides {
			out.Spec.Overrides[i] = Override{
				RequestsPerSecond: o.RequestsPerSecond,
				ClientRefs:        append([]ServiceAccountRef(nil), o.ClientRefs...),
			}
		}
	}
	if in.Status.Conditions != nil {
		out.Status.Conditions = append([]Condition(nil), in.Status.Conditions...)
	}
}

func (in *HttpLocalRateLimitPolicy) DeepCopy() *HttpLocalRateLimitPolicy {
	if in == nil {
		return nil
	}
	out := new(HttpLocalRateLimitPolicy)
	in.DeepCopyInto(out)
	return out
}

func (in *HttpLocalRateLimitPolicy) DeepCopyObject() runtime.Object { return in.DeepCopy() }

func (in *HttpLocalRateLimitPolicyList) DeepCopyObject() runtime.Object {
	out := new(HttpLocalRateLimitPolicyList)
	out.TypeMeta = in.TypeMeta
	in.ListMeta.DeepCopyInto(&out.ListMeta)
	if in.Items != nil {
		out.Items = make([]HttpLocalRateLimitPolicy, len(in.Items))
		for i := range in.Items {
			in.Items[i].DeepCopyInto(&out.Items[i])
		}
	}
	return out
}
