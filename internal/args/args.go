// Package args binds the policy controller's runtime configuration:
// cobra flags for everything named in spec.md §6.3, and envconfig for
// the two environment variables (HOSTNAME, LINKERD_POLICY_CONTROLLER_LOG)
// the teacher's bootstrap pattern reserves for env rather than flags.
package args

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"

	"github.com/linkerd/linkerd2-sub001/internal/index/inbound"
	"github.com/linkerd/linkerd2-sub001/internal/index/outbound"
	"github.com/linkerd/linkerd2-sub001/internal/selector"
)

// Env holds the two variables spec.md §6.3 reserves for the
// environment rather than flags.
type Env struct {
	Hostname string `envconfig:"HOSTNAME"`
	LogLevel string `envconfig:"LINKERD_POLICY_CONTROLLER_LOG" default:"info"`
}

func LoadEnv() (Env, error) {
	var e Env
	if err := envconfig.Process("", &e); err != nil {
		return Env{}, fmt.Errorf("reading environment: %w", err)
	}
	return e, nil
}

// Flags is every long-form flag named in spec.md §6.3, bound by
// cmd/policy-controller/main.go onto a cobra.Command.
type Flags struct {
	GRPCAddr                    string
	GRPCHealthAddr              string
	AdminAddr                   string
	ServerAddr                  string
	AdmissionControllerDisabled bool
	ClusterNetworks             string
	IdentityDomain              string
	ClusterDomain               string
	DefaultPolicy               string
	PolicyDeploymentName        string
	ControlPlaneNamespace       string
	ProbeNetworks               string
	DefaultOpaquePorts          string
	PatchTimeoutMs              uint32
	AllowL5DRequestHeaders      bool
	GlobalEgressNetworkNamespace string
	Kubeconfig                  string
}

func BindFlags(cmd *cobra.Command) *Flags {
	f := &Flags{}
	fs := cmd.Flags()
	fs.StringVar(&f.GRPCAddr, "grpc-addr", "0.0.0.0:8090", "address to serve the gRPC discovery services on")
	fs.StringVar(&f.GRPCHealthAddr, "grpc-health-addr", "0.0.0.0:8091", "address to serve the gRPC health/reflection services on")
	fs.StringVar(&f.AdminAddr, "admin-addr", "0.0.0.0:9990", "address to serve the admin/metrics server on")
	fs.StringVar(&f.ServerAddr, "server-addr", "0.0.0.0:9443", "address to serve the admission webhook on")
	fs.BoolVar(&f.AdmissionControllerDisabled, "admission-controller-disabled", false, "disable the admission webhook server")
	fs.StringVar(&f.ClusterNetworks, "cluster-networks", "", "comma-separated CIDRs considered part of the cluster network")
	fs.StringVar(&f.IdentityDomain, "identity-domain", "identity.linkerd.cluster.local", "trust domain used to build default mesh-TLS identities")
	fs.StringVar(&f.ClusterDomain, "cluster-domain", "cluster.local", "cluster DNS domain used to build service authorities")
	fs.StringVar(&f.DefaultPolicy, "default-policy", "all-unauthenticated", "default inbound policy for ports with no Server: all-unauthenticated|all-authenticated|cluster-unauthenticated|cluster-authenticated|deny")
	fs.StringVar(&f.PolicyDeploymentName, "policy-deployment-name", "linkerd-destination", "name of this controller's Lease holder for leader election")
	fs.StringVar(&f.ControlPlaneNamespace, "control-plane-namespace", "linkerd", "namespace the controller's Lease lives in")
	fs.StringVar(&f.ProbeNetworks, "probe-networks", "", "comma-separated CIDRs treated as kubelet probe sources")
	fs.StringVar(&f.DefaultOpaquePorts, "default-opaque-ports", "", "comma-separated ports/ranges treated as opaque-protocol by default")
	fs.Uint32Var(&f.PatchTimeoutMs, "patch-timeout-ms", 30000, "per-attempt status patch timeout in milliseconds; parsed but not applied, status patch attempts run without a per-attempt deadline")
	fs.BoolVar(&f.AllowL5DRequestHeaders, "allow-l5d-request-headers", false, "permit l5d-* request header modifiers instead of stripping them")
	fs.StringVar(&f.GlobalEgressNetworkNamespace, "global-egress-network-namespace", "", "namespace whose EgressNetworks are visible cluster-wide")
	fs.StringVar(&f.Kubeconfig, "kubeconfig", "", "path to a kubeconfig file; defaults to in-cluster config")
	return f
}

// ParseNetworks parses a comma-separated CIDR flag (--probe-networks,
// --cluster-networks) into a selector.Network list (no except-list support at the
// flag level; except-lists only apply to EgressNetwork spec fields).
func ParseNetworks(csv string) ([]selector.Network, error) {
	if strings.TrimSpace(csv) == "" {
		return nil, nil
	}
	var out []selector.Network
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := selector.ParseNetwork(part, nil)
		if err != nil {
			return nil, fmt.Errorf("parsing network %q: %w", part, err)
		}
		out = append(out, n)
	}
	return out, nil
}

// ParseDefaultOpaquePorts parses "8080,9090-9095" into a port set, the
// same shape the outbound/inbound indexes use for opaque-port defaults.
func ParseDefaultOpaquePorts(csv string) (map[uint16]struct{}, error) {
	out := map[uint16]struct{}{}
	if strings.TrimSpace(csv) == "" {
		return out, nil
	}
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			loN, err := strconv.Atoi(lo)
			if err != nil {
				return nil, fmt.Errorf("invalid port range %q", part)
			}
			hiN, err := strconv.Atoi(hi)
			if err != nil {
				return nil, fmt.Errorf("invalid port range %q", part)
			}
			for p := loN; p <= hiN; p++ {
				out[uint16(p)] = struct{}{}
			}
			continue
		}
		p, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid port %q", part)
		}
		out[uint16(p)] = struct{}{}
	}
	return out, nil
}

func validDefaultPolicy(v string) bool {
	switch v {
	case "all-unauthenticated", "all-authenticated", "cluster-unauthenticated", "cluster-authenticated", "deny":
		return true
	default:
		return false
	}
}

// InboundConfig builds the inbound index's Config from flags.
func InboundConfig(f *Flags) (inbound.Config, error) {
	if !validDefaultPolicy(f.DefaultPolicy) {
		return inbound.Config{}, fmt.Errorf("invalid --default-policy %q", f.DefaultPolicy)
	}
	probe, err := ParseNetworks(f.ProbeNetworks)
	if err != nil {
		return inbound.Config{}, err
	}
	cluster, err := ParseNetworks(f.ClusterNetworks)
	if err != nil {
		return inbound.Config{}, err
	}
	return inbound.Config{
		ClusterDefaultPolicy: f.DefaultPolicy,
		ProbeNetworks:        probe,
		ClusterNetworks:      cluster,
		TrustDomain:          f.IdentityDomain,
	}, nil
}

// OutboundConfig builds the outbound index's Config from flags.
func OutboundConfig(f *Flags) (outbound.Config, error) {
	opaque, err := ParseDefaultOpaquePorts(f.DefaultOpaquePorts)
	if err != nil {
		return outbound.Config{}, err
	}
	cluster, err := ParseNetworks(f.ClusterNetworks)
	if err != nil {
		return outbound.Config{}, err
	}
	return outbound.Config{
		DefaultOpaquePorts:           opaque,
		ClusterDomain:                f.ClusterDomain,
		ClusterNetworks:              cluster,
		AllowL5DRequestHeaders:       f.AllowL5DRequestHeaders,
		GlobalEgressNetworkNamespace: f.GlobalEgressNetworkNamespace,
	}, nil
}
