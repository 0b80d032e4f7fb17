package outbound

import (
	"net"
	"strconv"
	"strings"

	"github.com/linkerd/linkerd2-sub001/internal/selector"
)

// Lookup identifies a resolved parent: the result of a by-IP or
// by-authority query (spec.md §4.4 Get/Watch addressing).
type Lookup struct {
	Kind      ParentKind
	Namespace string
	Name      string
	Port      uint16
}

// ByIP resolves a literal destination IP to a Service (exact clusterIP
// match) or an EgressNetwork (longest-prefix CIDR match). EgressNetworks
// are only candidates when they live in sourceNamespace or in the
// cluster-wide --global-egress-network-namespace (SPEC_FULL.md §10).
func (idx *Index) ByIP(ip string, sourceNamespace string, port uint16) (Lookup, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	for ns, svcs := range idx.services {
		for name, svc := range svcs {
			for _, cip := range svc.ClusterIPs {
				if cip == ip {
					return Lookup{Kind: ParentKindService, Namespace: ns, Name: name, Port: port}, true
				}
			}
		}
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return Lookup{}, false
	}

	type owner struct{ ns, name string }
	var nets []selector.Network
	var owners []owner
	for ns, egs := range idx.egress {
		if ns != sourceNamespace && (idx.cfg.GlobalEgressNetworkNamespace == "" || ns != idx.cfg.GlobalEgressNetworkNamespace) {
			continue
		}
		for name, eg := range egs {
			if !eg.Accepted {
				continue
			}
			for _, n := range eg.Networks {
				nets = append(nets, n)
				owners = append(owners, owner{ns, name})
			}
		}
	}
	i := selector.MostSpecificCIDR(nets, parsed)
	if i < 0 {
		return Lookup{}, false
	}
	return Lookup{Kind: ParentKindEgressNetwork, Namespace: owners[i].ns, Name: owners[i].name, Port: port}, true
}

// ByAuthority parses "<name>.<namespace>.svc.<cluster-domain>[:port]"
// (default port 80 when omitted) into a Service lookup. Any other shape
// is not-found rather than an error: callers fall back to ByIP.
func (idx *Index) ByAuthority(authority string) (Lookup, bool) {
	host := authority
	port := uint16(80)
	if h, p, err := net.SplitHostPort(authority); err == nil {
		host = h
		if n, err := strconv.Atoi(p); err == nil && n > 0 && n <= 65535 {
			port = uint16(n)
		}
	}

	suffix := ".svc." + idx.cfg.ClusterDomain
	if !strings.HasSuffix(host, suffix) {
		return Lookup{}, false
	}
	prefix := strings.TrimSuffix(host, suffix)
	parts := strings.SplitN(prefix, ".", 2)
	if len(parts) != 2 {
		return Lookup{}, false
	}
	name, namespace := parts[0], parts[1]
	if name == "" || namespace == "" {
		return Lookup{}, false
	}
	return Lookup{Kind: ParentKindService, Namespace: namespace, Name: name, Port: port}, true
}
