package admission

import (
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"
)

// The structs below mirror only the fields of each CRD's spec that
// admission must validate (spec.md §4.5); the full typed conversion
// into index resources happens at the informer boundary, not here.

type objectMeta struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

type typedObject struct {
	Metadata objectMeta      `json:"metadata"`
	Spec     json.RawMessage `json:"spec"`
}

type authorizationPolicySpec struct {
	TargetRef struct {
		Group string `json:"group"`
		Kind  string `json:"kind"`
		Name  string `json:"name"`
	} `json:"targetRef"`
	RequiredAuthenticationRefs []struct {
		Group string `json:"group"`
		Kind  string `json:"kind"`
		Name  string `json:"name"`
	} `json:"requiredAuthenticationRefs"`
}

func validateAuthorizationPolicy(namespace string, raw json.RawMessage) error {
	var spec authorizationPolicySpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return fmt.Errorf("decoding spec: %w", err)
	}
	switch spec.TargetRef.Kind {
	case "Server", "HTTPRoute", "GRPCRoute":
	case "Namespace":
		if spec.TargetRef.Name != "" && spec.TargetRef.Name != namespace {
			return fmt.Errorf("targetRef kind Namespace must reference its own namespace %q, got %q", namespace, spec.TargetRef.Name)
		}
	default:
		return fmt.Errorf("unsupported targetRef kind %q", spec.TargetRef.Kind)
	}

	var networkRefs, meshTLSRefs, saRefs int
	for _, ref := range spec.RequiredAuthenticationRefs {
		switch ref.Kind {
		case "NetworkAuthentication":
			networkRefs++
		case "MeshTLSAuthentication":
			meshTLSRefs++
		case "ServiceAccount":
			saRefs++
		default:
			return fmt.Errorf("unsupported requiredAuthenticationRefs kind %q", ref.Kind)
		}
	}
	if networkRefs > 1 {
		return fmt.Errorf("at most one NetworkAuthentication ref is allowed, got %d", networkRefs)
	}
	if meshTLSRefs > 1 {
		return fmt.Errorf("at most one MeshTLSAuthentication ref is allowed, got %d", meshTLSRefs)
	}
	if saRefs > 1 {
		return fmt.Errorf("at most one ServiceAccount ref is allowed, got %d", saRefs)
	}
	if meshTLSRefs > 0 && saRefs > 0 {
		return fmt.Errorf("MeshTLSAuthentication and ServiceAccount refs cannot be mixed on one AuthorizationPolicy")
	}
	return nil
}

type serverSpec struct {
	AccessPolicy string `json:"accessPolicy"`
}

var validDefaultPolicies = map[string]bool{
	"all-unauthenticated": true, "all-authenticated": true,
	"cluster-unauthenticated": true, "cluster-authenticated": true, "deny": true,
}

func validateServer(raw json.RawMessage) error {
	var spec serverSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return fmt.Errorf("decoding spec: %w", err)
	}
	if spec.AccessPolicy != "" && !validDefaultPolicies[spec.AccessPolicy] {
		return fmt.Errorf("accessPolicy %q is not a valid default policy", spec.AccessPolicy)
	}
	return nil
}

type networksSpec struct {
	Networks []struct {
		Cidr   string   `json:"cidr"`
		Except []string `json:"except"`
	} `json:"networks"`
}

// validateNetworks implements the shared NetworkAuthentication/
// EgressNetwork rule: nonempty networks, and for each CIDR every
// except must be strictly contained in it.
func validateNetworks(raw json.RawMessage) error {
	var spec networksSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return fmt.Errorf("decoding spec: %w", err)
	}
	if len(spec.Networks) == 0 {
		return fmt.Errorf("networks must be nonempty")
	}
	for _, n := range spec.Networks {
		_, cidr, err := net.ParseCIDR(n.Cidr)
		if err != nil {
			return fmt.Errorf("invalid cidr %q: %w", n.Cidr, err)
		}
		for _, e := range n.Except {
			_, exCidr, err := net.ParseCIDR(e)
			if err != nil {
				return fmt.Errorf("invalid except cidr %q: %w", e, err)
			}
			if exCidr.String() == cidr.String() {
				return fmt.Errorf("except %q must not equal cidr %q", e, n.Cidr)
			}
			if !cidrContains(cidr, exCidr) {
				return fmt.Errorf("except %q is not contained in cidr %q", e, n.Cidr)
			}
		}
	}
	return nil
}

// cidrContains reports whether every address in inner is also in
// outer: inner's prefix must be at least as long and inner's base
// address must fall within outer.
func cidrContains(outer, inner *net.IPNet) bool {
	outerOnes, outerBits := outer.Mask.Size()
	innerOnes, innerBits := inner.Mask.Size()
	if outerBits != innerBits || innerOnes < outerOnes {
		return false
	}
	return outer.Contains(inner.IP)
}

type routeMatch struct {
	Path *struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	} `json:"path"`
}

type backendRef struct {
	Group *string `json:"group"`
	Kind  *string `json:"kind"`
	Port  *uint16 `json:"port"`
}

type routeFilter struct {
	Type string `json:"type"`
}

type httpRouteRule struct {
	Matches        []routeMatch `json:"matches"`
	Filters        []routeFilter `json:"filters"`
	BackendRefs    []backendRef `json:"backendRefs"`
	Timeouts       *struct {
		Request        string `json:"request"`
		BackendRequest string `json:"backendRequest"`
	} `json:"timeouts"`
}

type httpRouteSpec struct {
	ParentRefs []struct {
		Group string  `json:"group"`
		Kind  string  `json:"kind"`
		Port  *uint16 `json:"port"`
	} `json:"parentRefs"`
	Rules []httpRouteRule `json:"rules"`
}

var supportedHTTPFilterTypes = map[string]bool{
	"RequestHeaderModifier": true, "ResponseHeaderModifier": true,
	"RequestRedirect": true, "ExtensionRef": true,
}

func validateHTTPOrGRPCRoute(raw json.RawMessage) error {
	var spec httpRouteSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return fmt.Errorf("decoding spec: %w", err)
	}
	for _, rule := range spec.Rules {
		for _, m := range rule.Matches {
			if m.Path != nil && !strings.HasPrefix(m.Path.Value, "/") {
				return fmt.Errorf("match path %q must be absolute", m.Path.Value)
			}
		}
		for _, f := range rule.Filters {
			if !supportedHTTPFilterTypes[f.Type] {
				return fmt.Errorf("unsupported filter type %q", f.Type)
			}
		}
		for _, b := range rule.BackendRefs {
			group := ""
			if b.Group != nil {
				group = *b.Group
			}
			kind := "Service"
			if b.Kind != nil {
				kind = *b.Kind
			}
			if (group == "" || group == "core") && kind == "Service" {
				if b.Port == nil || *b.Port == 0 {
					return fmt.Errorf("backendRef to Service must set a nonzero port")
				}
			}
		}
		if rule.Timeouts != nil {
			req, reqOK := parseDuration(rule.Timeouts.Request)
			backend, backendOK := parseDuration(rule.Timeouts.BackendRequest)
			if reqOK && req < 0 {
				return fmt.Errorf("timeouts.request must be non-negative")
			}
			if backendOK && backend < 0 {
				return fmt.Errorf("timeouts.backendRequest must be non-negative")
			}
			if reqOK && backendOK && backend > req {
				return fmt.Errorf("timeouts.backendRequest must be <= timeouts.request")
			}
		}
	}
	return nil
}

// parseDuration parses a Gateway API Duration (e.g. "5s", "250ms"),
// which is a subset of Go's own duration syntax. Empty strings are
// reported as not-ok rather than an error, since an unset timeout is
// legal.
func parseDuration(s string) (d time.Duration, ok bool) {
	if s == "" {
		return 0, false
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return 0, false
	}
	return dur, true
}

type tlsOrTCPRouteSpec struct {
	ParentRefs []struct {
		Group string  `json:"group"`
		Kind  string  `json:"kind"`
		Port  *uint16 `json:"port"`
	} `json:"parentRefs"`
	Rules []struct {
		BackendRefs []backendRef `json:"backendRefs"`
	} `json:"rules"`
}

func validateTLSOrTCPRoute(raw json.RawMessage) error {
	var spec tlsOrTCPRouteSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return fmt.Errorf("decoding spec: %w", err)
	}
	if len(spec.Rules) != 1 {
		return fmt.Errorf("exactly one rule is required, got %d", len(spec.Rules))
	}
	for _, ref := range spec.ParentRefs {
		if ref.Kind == "EgressNetwork" && (ref.Port == nil || *ref.Port == 0) {
			return fmt.Errorf("parentRef to EgressNetwork requires a nonzero port")
		}
	}
	return nil
}

type rateLimitSpec struct {
	TargetRef struct {
		Kind string `json:"kind"`
	} `json:"targetRef"`
	Total *struct {
		RequestsPerSecond uint32 `json:"requestsPerSecond"`
	} `json:"total"`
	Identity *struct {
		RequestsPerSecond uint32 `json:"requestsPerSecond"`
	} `json:"identity"`
	Overrides []struct {
		ClientRefs []struct {
			Kind string `json:"kind"`
		} `json:"clientRefs"`
		RequestsPerSecond uint32 `json:"requestsPerSecond"`
	} `json:"overrides"`
}

func validateRateLimitPolicy(raw json.RawMessage) error {
	var spec rateLimitSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return fmt.Errorf("decoding spec: %w", err)
	}
	if spec.TargetRef.Kind != "Server" {
		return fmt.Errorf("targetRef kind must be Server, got %q", spec.TargetRef.Kind)
	}
	if spec.Total == nil || spec.Total.RequestsPerSecond == 0 {
		return fmt.Errorf("total.requestsPerSecond must be > 0")
	}
	if spec.Identity != nil && spec.Identity.RequestsPerSecond > spec.Total.RequestsPerSecond {
		return fmt.Errorf("identity.requestsPerSecond must be <= total.requestsPerSecond")
	}
	for _, o := range spec.Overrides {
		for _, ref := range o.ClientRefs {
			if ref.Kind != "ServiceAccount" {
				return fmt.Errorf("override clientRefs kind must be ServiceAccount, got %q", ref.Kind)
			}
		}
		if o.RequestsPerSecond > spec.Total.RequestsPerSecond {
			return fmt.Errorf("override requestsPerSecond must be <= total.requestsPerSecond")
		}
	}
	return nil
}
