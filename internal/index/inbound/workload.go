package inbound

import "github.com/linkerd/linkerd2-sub001/internal/selector"

// Workload is the namespace-partitioned representation of a pod or
// external workload (spec.md §3.2). It is owned exclusively by the
// inbound index.
type Workload struct {
	Namespace   string
	Name        string
	External    bool
	Labels      selector.Labels
	Annotations map[string]string
	Node        string
	IPs         []string
	// NamedPorts maps a container port name to its number.
	NamedPorts map[string]uint16
	// Ports is every exposed container port number, independent of
	// whether it has a name.
	Ports map[uint16]struct{}
}

const (
	AnnotationDefaultInboundPolicy = "config.linkerd.io/default-inbound-policy"
)

// DefaultPolicyAnnotation returns the workload's own
// default-inbound-policy annotation, if it names a valid policy
// (spec.md §4.1 step 1 resolution chain, first link).
func (w *Workload) DefaultPolicyAnnotation() (string, bool) {
	if w == nil {
		return "", false
	}
	v, ok := w.Annotations[AnnotationDefaultInboundPolicy]
	return v, ok
}
