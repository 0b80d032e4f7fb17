// Package v1alpha1 contains the policy.linkerd.io/v1alpha1 API types
// consumed by the indexer: Server, ServerAuthorization,
// AuthorizationPolicy, NetworkAuthentication, MeshTLSAuthentication,
// HttpLocalRateLimitPolicy, and EgressNetwork. Route kinds
// (HTTPRoute/GRPCRoute/TLSRoute/TCPRoute) and Service are the upstream
// Gateway API and core/v1 types and are not redeclared here.
//
// +kubebuilder:object:generate=true
// +groupName=policy.linkerd.io
package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

const GroupName = "policy.linkerd.io"

// GroupVersion is the identity of the policy.linkerd.io API group's
// v1alpha1 version.
var GroupVersion = schema.GroupVersion{Group: GroupName, Version: "v1alpha1"}

// SchemeBuilder collects the AddToScheme funcs contributed by this
// package, in the controller-runtime convention used throughout the
// teacher's api/v1alpha1 package.
var (
	SchemeBuilder = runtime.NewSchemeBuilder(addKnownTypes)
	AddToScheme   = SchemeBuilder.AddToScheme
)

func addKnownTypes(scheme *runtime.Scheme) error {
	scheme.AddKnownTypes(GroupVersion,
		&Server{}, &ServerList{},
		&ServerAuthorization{}, &ServerAuthorizationList{},
		&AuthorizationPolicy{}, &AuthorizationPolicyList{},
		&NetworkAuthentication{}, &NetworkAuthenticationList{},
		&MeshTLSAuthentication{}, &MeshTLSAuthenticationList{},
		&HttpLocalRateLimitPolicy{}, &HttpLocalRateLimitPolicyList{},
		&EgressNetwork{}, &EgressNetworkList{},
	)
	metav1.AddToGroupVersion(scheme, GroupVersion)
	return nil
}

// Resource returns a GroupResource for the given unqualified resource
// name, the same helper the teacher's api packages expose for RBAC
// markers and client builders.
func Resource(resource string) schema.GroupResource {
	return GroupVersion.WithResource(resource).GroupResource()
}
