package inbound

import (
	"time"

	"github.com/linkerd/linkerd2-sub001/internal/selector"
)

// ServerResource is the index's internal view of a Server CR,
// independent of the Kubernetes API type (api/v1alpha1.Server converts
// into this at the informer boundary).
type ServerResource struct {
	Namespace     string
	Name          string
	Labels        selector.Labels // the Server object's own metadata.labels
	PodSelector   selector.LabelSelector
	External      bool
	Port          selector.PortRef
	Protocol      Protocol
	AccessPolicy  string // "" unless explicitly set
}

// ServerAuthorizationResource is the index's internal view of a
// ServerAuthorization CR.
type ServerAuthorizationResource struct {
	Namespace    string
	Name         string
	ServerName   string // "" if selecting by label
	ServerSel    selector.LabelSelector
	HasServerSel bool
	Client       ClientAuthorization
}

// AuthorizationPolicyResource is the index's internal view of an
// AuthorizationPolicy CR. TargetKind is one of "Server", "HTTPRoute",
// "GRPCRoute", "Namespace".
type AuthorizationPolicyResource struct {
	Namespace  string
	Name       string
	TargetKind string
	TargetName string

	RequiredNetworkAuthn  string // NetworkAuthentication name, "" if none
	RequiredMeshTLSAuthn  string // MeshTLSAuthentication name, "" if none
	RequiredServiceAccount *ServiceAccountID
	// Illegal marks a persisted object that violates the admission
	// invariant of "at most one of each auth kind" (spec.md design note
	// §9 second open question): such an object emits no authorization.
	Illegal bool
}

type ServiceAccountID struct {
	Namespace string
	Name      string
}

// NetworkAuthenticationResource / MeshTLSAuthenticationResource are the
// index's internal views of the two named-authentication-set CRs.
type NetworkAuthenticationResource struct {
	Namespace string
	Name      string
	Networks  []selector.Network
}

type MeshTLSAuthenticationResource struct {
	Namespace  string
	Name       string
	Identities []string // literal identities and resolved *.ns.serviceaccount... suffixes
}

// RouteResource is the shared shape of HTTPRoute/GRPCRoute as the
// inbound index sees them: parent references restricted to Server
// (outbound parents are handled by the outbound index), plus match
// predicates needed for default-route synthesis and probe attachment.
type RouteResource struct {
	Namespace       string
	Name            string
	ParentServer    string
	Hostnames       []string
	HTTPMatches     []HTTPRouteMatch
	CreationTime    time.Time
	HasCreationTime bool
}

// RateLimitResource is the index's internal view of an
// HttpLocalRateLimitPolicy CR.
type RateLimitResource struct {
	Namespace  string
	Name       string
	ServerName string
	Total      uint32
	Identity   *uint32
	Overrides  map[string]uint32 // "ns/name" ServiceAccount -> rps
}
