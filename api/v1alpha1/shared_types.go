package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// TypedLocalObjectReference mirrors corev1.TypedLocalObjectReference
// but is redeclared here so this package has no core/v1 import of its
// own (kept minimal per the teacher's per-resource type files).
type TypedLocalObjectReference struct {
	// +optional
	Group *string `json:"group,omitempty"`
	Kind  string  `json:"kind"`
	Name  string  `json:"name"`
}

// NetworkAuthentication / MeshTLSAuthentication target sets are
// referenced from an AuthorizationPolicy by name; at most one of each
// kind is allowed per policy (spec.md §3.2, enforced in admission).
type RequiredAuthenticationRef = TypedLocalObjectReference

// PolicyTargetReference is the generic "what does this policy attach
// to" shape shared by AuthorizationPolicy and HttpLocalRateLimitPolicy.
// +kubebuilder:validation:XValidation:rule="!has(self.group) || self.group == '' || self.group == 'policy.linkerd.io'",message="group must be core or policy.linkerd.io"
type PolicyTargetReference struct {
	// +optional
	Group string `json:"group,omitempty"`
	Kind  string `json:"kind"`
	Name  string `json:"name"`
}

// Network is a CIDR plus a set of CIDRs to exclude from it. Admission
// requires every Except entry to be strictly contained in Cidr and not
// equal to it (spec.md §4.5).
type Network struct {
	Cidr string `json:"cidr"`
	// +optional
	Except []string `json:"except,omitempty"`
}

// Condition is the generic status condition shape used by every
// resource's `status.conditions`.
type Condition struct {
	Type               string      `json:"type"`
	Status             string      `json:"status"`
	Reason             string      `json:"reason,omitempty"`
	Message            string      `json:"message,omitempty"`
	LastTransitionTime metav1.Time `json:"lastTransitionTime,omitempty"`
	ObservedGeneration int64       `json:"observedGeneration,omitempty"`
}
