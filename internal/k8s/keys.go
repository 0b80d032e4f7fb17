// Package k8s defines the identity and addressing primitives shared
// across the inbound index, the outbound index, the status index, and
// the gRPC discovery server: resource identifiers, workload tokens, and
// port numbers.
package k8s

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ResourceId identifies a resource within a single kind: namespace and
// name are unique together but say nothing about the resource's kind.
type ResourceId struct {
	Namespace string
	Name      string
}

func (id ResourceId) String() string {
	return id.Namespace + "/" + id.Name
}

func (id ResourceId) IsZero() bool {
	return id.Namespace == "" && id.Name == ""
}

// GroupKindNamespaceName is globally unique across every kind the
// indexer watches. Route references and status targets are always
// expressed as a GKNN.
type GroupKindNamespaceName struct {
	Group     string
	Kind      string
	Namespace string
	Name      string
}

func (g GroupKindNamespaceName) String() string {
	group := g.Group
	if group == "" {
		group = "core"
	}
	return fmt.Sprintf("%s/%s/%s/%s", group, g.Kind, g.Namespace, g.Name)
}

func (g GroupKindNamespaceName) ResourceId() ResourceId {
	return ResourceId{Namespace: g.Namespace, Name: g.Name}
}

// Less defines the GKNN total order used as the final tiebreaker in
// route sort order (spec.md §3.3 invariant 4).
func (g GroupKindNamespaceName) Less(o GroupKindNamespaceName) bool {
	if g.Group != o.Group {
		return g.Group < o.Group
	}
	if g.Kind != o.Kind {
		return g.Kind < o.Kind
	}
	if g.Namespace != o.Namespace {
		return g.Namespace < o.Namespace
	}
	return g.Name < o.Name
}

// WorkloadKind distinguishes the two kinds of workload a token can
// reference.
type WorkloadKind int

const (
	WorkloadKindPod WorkloadKind = iota
	WorkloadKindExternal
)

// WorkloadRef is the parsed form of a workload token sent by a proxy on
// every inbound discovery RPC.
type WorkloadRef struct {
	Kind      WorkloadKind
	Namespace string
	Name      string
}

func (w WorkloadRef) ResourceId() ResourceId {
	return ResourceId{Namespace: w.Namespace, Name: w.Name}
}

// externalWorkloadToken is the JSON wire shape for an external-workload
// token: {"kind":{"External":"<name>"},"namespace":"<ns>"}.
type externalWorkloadToken struct {
	Kind      externalWorkloadKind `json:"kind"`
	Namespace string               `json:"namespace"`
}

type externalWorkloadKind struct {
	External string `json:"External"`
}

// InvalidArgumentError marks an error that must be surfaced to RPC and
// webhook callers as invalid-argument / admission-deny rather than any
// other status (spec.md §7).
type InvalidArgumentError struct {
	Msg string
}

func (e *InvalidArgumentError) Error() string { return e.Msg }

func invalidArgument(format string, args ...any) error {
	return &InvalidArgumentError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError marks a well-formed target that resolves to nothing:
// a workload, port, authority, or target the caller named correctly
// but that does not exist in the indexes (spec.md §4.4, §7). Distinct
// from InvalidArgumentError, which marks a target the caller named
// incorrectly.
type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string { return e.Msg }

func NotFound(format string, args ...any) error {
	return &NotFoundError{Msg: fmt.Sprintf(format, args...)}
}

// ParseWorkloadToken parses the textual workload identifier sent by a
// proxy. Pod references are "{ns}:{name}"; external-workload references
// are the JSON object documented above. Empty namespace or name is
// always invalid-argument (spec.md §3.1).
func ParseWorkloadToken(token string) (WorkloadRef, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return WorkloadRef{}, invalidArgument("empty workload token")
	}

	if strings.HasPrefix(token, "{") {
		var ext externalWorkloadToken
		if err := json.Unmarshal([]byte(token), &ext); err != nil {
			return WorkloadRef{}, invalidArgument("malformed external workload token: %v", err)
		}
		if ext.Namespace == "" || ext.Kind.External == "" {
			return WorkloadRef{}, invalidArgument("external workload token missing namespace or name")
		}
		return WorkloadRef{Kind: WorkloadKindExternal, Namespace: ext.Namespace, Name: ext.Kind.External}, nil
	}

	parts := strings.SplitN(token, ":", 2)
	if len(parts) != 2 {
		return WorkloadRef{}, invalidArgument("workload token %q must be of the form ns:name", token)
	}
	ns, name := parts[0], parts[1]
	if ns == "" || name == "" {
		return WorkloadRef{}, invalidArgument("workload token %q has an empty namespace or name", token)
	}
	return WorkloadRef{Kind: WorkloadKindPod, Namespace: ns, Name: name}, nil
}

// Port validates a proxy-supplied port number: 1..65535, zero is never
// valid (spec.md §3.1).
type Port uint16

func ParsePort(p uint32) (Port, error) {
	if p == 0 || p > 65535 {
		return 0, invalidArgument("port %d out of range 1..65535", p)
	}
	return Port(p), nil
}
