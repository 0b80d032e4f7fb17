// Package selector implements the matching primitives shared by the
// inbound and outbound indexes: label selectors against workloads,
// port-name/number resolution, network/CIDR matching, and
// identity-suffix matching for MeshTLS authentication.
package selector

import (
	"net"
	"strings"
)

// Labels is a plain string map, matching the shape informers deliver
// for ObjectMeta.Labels.
type Labels map[string]string

// LabelSelector is a minimal reimplementation of
// metav1.LabelSelector's matching semantics (equality + set-based
// match expressions), kept dependency-free here so the selector engine
// has no apimachinery import of its own; the k8s-facing types convert
// into this shape at the index boundary.
type LabelSelector struct {
	MatchLabels      Labels
	MatchExpressions []LabelSelectorRequirement
}

type LabelSelectorOperator string

const (
	LabelSelectorOpIn           LabelSelectorOperator = "In"
	LabelSelectorOpNotIn        LabelSelectorOperator = "NotIn"
	LabelSelectorOpExists       LabelSelectorOperator = "Exists"
	LabelSelectorOpDoesNotExist LabelSelectorOperator = "DoesNotExist"
)

type LabelSelectorRequirement struct {
	Key      string
	Operator LabelSelectorOperator
	Values   []string
}

// Matches reports whether the given labels satisfy the selector. An
// empty selector (no match labels, no match expressions) matches
// everything, matching Kubernetes' own semantics.
func (s LabelSelector) Matches(labels Labels) bool {
	for k, v := range s.MatchLabels {
		if labels[k] != v {
			return false
		}
	}
	for _, req := range s.MatchExpressions {
		if !req.matches(labels) {
			return false
		}
	}
	return true
}

func (r LabelSelectorRequirement) matches(labels Labels) bool {
	v, ok := labels[r.Key]
	switch r.Operator {
	case LabelSelectorOpExists:
		return ok
	case LabelSelectorOpDoesNotExist:
		return !ok
	case LabelSelectorOpIn:
		if !ok {
			return false
		}
		return contains(r.Values, v)
	case LabelSelectorOpNotIn:
		if !ok {
			return true
		}
		return !contains(r.Values, v)
	default:
		return false
	}
}

func contains(haystack []string, needle string) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}

// PortRef is a Server's port target: either a number or a name,
// resolved against a workload's declared container ports (spec.md
// §3.2 Server).
type PortRef struct {
	Number uint16
	Name   string
}

func (p PortRef) IsNumber() bool { return p.Number != 0 }

// MatchesWorkloadPort reports whether this PortRef selects the given
// exposed port on a workload whose named ports are supplied in
// namedPorts (name -> port number).
func (p PortRef) MatchesWorkloadPort(port uint16, namedPorts map[string]uint16) bool {
	if p.IsNumber() {
		return p.Number == port
	}
	if p.Name == "" {
		return false
	}
	n, ok := namedPorts[p.Name]
	return ok && n == port
}

// Network is a CIDR plus a set of excluded sub-CIDRs (NetworkAuthentication
// / cluster-networks shape, spec.md §3.2).
type Network struct {
	CIDR   *net.IPNet
	Except []*net.IPNet
}

// ParseNetwork parses a CIDR string plus an optional set of except
// CIDRs. It is the runtime counterpart of the admission-time CIDR
// containment check (spec.md §4.5).
func ParseNetwork(cidr string, except []string) (Network, error) {
	_, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return Network{}, err
	}
	n := Network{CIDR: ipnet}
	for _, e := range except {
		_, exNet, err := net.ParseCIDR(e)
		if err != nil {
			return Network{}, err
		}
		n.Except = append(n.Except, exNet)
	}
	return n, nil
}

// Contains reports whether ip is in this network's CIDR and not in any
// of its except sub-CIDRs.
func (n Network) Contains(ip net.IP) bool {
	if n.CIDR == nil || !n.CIDR.Contains(ip) {
		return false
	}
	for _, ex := range n.Except {
		if ex.Contains(ip) {
			return false
		}
	}
	return true
}

// NetworkMatches reports whether ip matches any network in the set.
func NetworkMatches(networks []Network, ip net.IP) bool {
	for _, n := range networks {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// MostSpecificCIDR returns the index of the network in networks whose
// CIDR has the longest prefix length covering ip, or -1 if none match.
// Used by the outbound index's by-IP lookup to pick between an
// EgressNetwork and an overlapping Service clusterIP range (spec.md
// §4.2).
func MostSpecificCIDR(networks []Network, ip net.IP) int {
	best := -1
	bestOnes := -1
	for i, n := range networks {
		if !n.Contains(ip) {
			continue
		}
		ones, _ := n.CIDR.Mask.Size()
		if ones > bestOnes {
			bestOnes = ones
			best = i
		}
	}
	return best
}

// IdentityMatches implements MeshTLS identity-suffix matching: an
// authorized identity may be a literal SPIFFE-style identity name or a
// suffix match of the form "*.ns.serviceaccount.identity.linkerd.cluster.local".
func IdentityMatches(pattern, identity string) bool {
	if pattern == identity {
		return true
	}
	if strings.HasPrefix(pattern, "*.") {
		suffix := pattern[1:] // keep the leading dot
		return strings.HasSuffix(identity, suffix)
	}
	return false
}

// AnyIdentityMatches reports whether identity satisfies any pattern in
// the set.
func AnyIdentityMatches(patterns []string, identity string) bool {
	for _, p := range patterns {
		if IdentityMatches(p, identity) {
			return true
		}
	}
	return false
}
