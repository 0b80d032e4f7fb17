package k8sapi

import (
	"context"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/dynamic"

	"github.com/linkerd/linkerd2-sub001/internal/k8s"
)

// Patcher implements status.Patcher (internal/index/status/patch.go)
// against the real apiserver's status subresource via the dynamic
// client, looked up by the route's recorded group/kind.
type Patcher struct {
	dyn dynamic.Interface
}

func NewPatcher(dyn dynamic.Interface) *Patcher {
	return &Patcher{dyn: dyn}
}

var routeResourceByKind = map[string]string{
	"HTTPRoute": "httproutes",
	"GRPCRoute": "grpcroutes",
	"TLSRoute":  "tlsroutes",
	"TCPRoute":  "tcproutes",
}

func (p *Patcher) PatchStatus(ctx context.Context, ref k8s.GroupKindNamespaceName, mergePatch []byte) error {
	resource, ok := routeResourceByKind[ref.Kind]
	if !ok {
		return fmt.Errorf("no known resource mapping for route kind %q", ref.Kind)
	}
	group := ref.Group
	if group == "" {
		group = gatewayGroup
	}
	gvr := schema.GroupVersionResource{Group: group, Version: gatewayVer, Resource: resource}
	_, err := p.dyn.Resource(gvr).Namespace(ref.Namespace).Patch(ctx, ref.Name, types.MergePatchType, mergePatch, metav1.PatchOptions{}, "status")
	return err
}
