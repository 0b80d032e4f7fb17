package k8sapi

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/dynamic/dynamicinformer"
	"k8s.io/client-go/tools/cache"
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"

	v1alpha1 "github.com/linkerd/linkerd2-sub001/api/v1alpha1"
	"github.com/linkerd/linkerd2-sub001/internal/index/inbound"
	"github.com/linkerd/linkerd2-sub001/internal/index/outbound"
	"github.com/linkerd/linkerd2-sub001/internal/index/status"
	"github.com/linkerd/linkerd2-sub001/internal/k8s"
)

const (
	policyGroup = "policy.linkerd.io"
	policyVer   = "v1alpha1"
)

// gatewayGroup/gatewayVer name the Gateway API kinds this controller
// watches as informer-bound unstructured objects (spec.md §3.2); taken
// from the upstream scheme registration rather than retyped here, so a
// future Gateway API version bump only needs a go.mod update.
var (
	gatewayGroup = gatewayv1.GroupVersion.Group
	gatewayVer   = gatewayv1.GroupVersion.Version
)

func gvr(group, version, resource string) schema.GroupVersionResource {
	return schema.GroupVersionResource{Group: group, Version: version, Resource: resource}
}

// crdHandler is registered against one GVR's dynamic informer; applyFn
// and deleteFn translate the unstructured object into the owning
// index's Apply*/Delete* call.
type crdHandler struct {
	resource schema.GroupVersionResource
	applyFn  func(*unstructured.Unstructured) error
	deleteFn func(namespace, name string)
}

// bindCRDs wires every policy.linkerd.io and gateway.networking.k8s.io
// kind the indexes consume into a dynamic informer each, since these
// kinds are defined by this project and have no generated typed client
// in the example corpus (spec.md §3.2 resource kinds).
func bindCRDs(ctx context.Context, dyn dynamic.Interface, in *inbound.Index, out *outbound.Index, st *status.Index, log logr.Logger) {
	log = log.WithName("k8sapi-crd")
	factory := dynamicinformer.NewDynamicSharedInformerFactory(dyn, 0)

	statusRef := func(kind, namespace, name string) k8s.GroupKindNamespaceName {
		return k8s.GroupKindNamespaceName{Group: gatewayGroup, Kind: kind, Namespace: namespace, Name: name}
	}

	handlers := []crdHandler{
		{gvr(policyGroup, policyVer, "servers"), func(u *unstructured.Unstructured) error {
			var typed v1alpha1.Server
			if err := decodeTyped(u, &typed); err != nil {
				return err
			}
			in.ApplyServer(serverFromTyped(&typed))
			return nil
		}, in.DeleteServer},
		{gvr(policyGroup, policyVer, "serverauthorizations"), func(u *unstructured.Unstructured) error {
			var typed v1alpha1.ServerAuthorization
			if err := decodeTyped(u, &typed); err != nil {
				return err
			}
			in.ApplyServerAuthorization(serverAuthzFromTyped(&typed))
			return nil
		}, in.DeleteServerAuthorization},
		{gvr(policyGroup, policyVer, "authorizationpolicies"), func(u *unstructured.Unstructured) error {
			var typed v1alpha1.AuthorizationPolicy
			if err := decodeTyped(u, &typed); err != nil {
				return err
			}
			in.ApplyAuthorizationPolicy(authzPolicyFromTyped(&typed))
			return nil
		}, in.DeleteAuthorizationPolicy},
		{gvr(policyGroup, policyVer, "networkauthentications"), func(u *unstructured.Unstructured) error {
			var typed v1alpha1.NetworkAuthentication
			if err := decodeTyped(u, &typed); err != nil {
				return err
			}
			in.ApplyNetworkAuthentication(networkAuthnFromTyped(&typed))
			return nil
		}, in.DeleteNetworkAuthentication},
		{gvr(policyGroup, policyVer, "meshtlsauthentications"), func(u *unstructured.Unstructured) error {
			var typed v1alpha1.MeshTLSAuthentication
			if err := decodeTyped(u, &typed); err != nil {
				return err
			}
			in.ApplyMeshTLSAuthentication(meshTLSAuthnFromTyped(&typed))
			return nil
		}, in.DeleteMeshTLSAuthentication},
		{gvr(policyGroup, policyVer, "httplocalratelimitpolicies"), func(u *unstructured.Unstructured) error {
			var typed v1alpha1.HttpLocalRateLimitPolicy
			if err := decodeTyped(u, &typed); err != nil {
				return err
			}
			in.ApplyRateLimit(rateLimitFromTyped(&typed))
			return nil
		}, in.DeleteRateLimit},
		{gvr(policyGroup, policyVer, "externalworkloads"), func(u *unstructured.Unstructured) error {
			in.ApplyWorkload(externalWorkloadFromUnstructured(u))
			return nil
		}, in.DeleteWorkload},

		{gvr(policyGroup, policyVer, "egressnetworks"), func(u *unstructured.Unstructured) error {
			var typed v1alpha1.EgressNetwork
			if err := decodeTyped(u, &typed); err != nil {
				return err
			}
			out.ApplyEgressNetwork(egressNetworkFromTyped(&typed))
			return nil
		}, out.DeleteEgressNetwork},
		{gvr(gatewayGroup, gatewayVer, "httproutes"), func(u *unstructured.Unstructured) error {
			in.ApplyHTTPRoute(inboundRouteFromUnstructured(u))
			out.ApplyHTTPRoute(outboundHTTPRouteFromUnstructured(u, "HTTPRoute"))
			st.ApplyRoute(routeEntryFromUnstructured(u, "HTTPRoute"))
			return nil
		}, func(namespace, name string) {
			in.DeleteHTTPRoute(namespace, name)
			out.DeleteHTTPRoute(namespace, name)
			st.DeleteRoute(statusRef("HTTPRoute", namespace, name))
		}},
		{gvr(gatewayGroup, gatewayVer, "grpcroutes"), func(u *unstructured.Unstructured) error {
			in.ApplyGRPCRoute(inboundRouteFromUnstructured(u))
			out.ApplyGRPCRoute(outboundHTTPRouteFromUnstructured(u, "GRPCRoute"))
			st.ApplyRoute(routeEntryFromUnstructured(u, "GRPCRoute"))
			return nil
		}, func(namespace, name string) {
			in.DeleteGRPCRoute(namespace, name)
			out.DeleteGRPCRoute(namespace, name)
			st.DeleteRoute(statusRef("GRPCRoute", namespace, name))
		}},
		{gvr(gatewayGroup, gatewayVer, "tlsroutes"), func(u *unstructured.Unstructured) error {
			out.ApplyTLSRoute(tlsRouteFromUnstructured(u))
			st.ApplyRoute(routeEntryFromUnstructured(u, "TLSRoute"))
			return nil
		}, func(namespace, name string) {
			out.DeleteTLSRoute(namespace, name)
			st.DeleteRoute(statusRef("TLSRoute", namespace, name))
		}},
		{gvr(gatewayGroup, gatewayVer, "tcproutes"), func(u *unstructured.Unstructured) error {
			out.ApplyTCPRoute(tcpRouteFromUnstructured(u))
			st.ApplyRoute(routeEntryFromUnstructured(u, "TCPRoute"))
			return nil
		}, func(namespace, name string) {
			out.DeleteTCPRoute(namespace, name)
			st.DeleteRoute(statusRef("TCPRoute", namespace, name))
		}},
	}

	for _, h := range handlers {
		h := h
		informer := factory.ForResource(h.resource).Informer()
		informer.AddEventHandler(cache.ResourceEventHandlerFuncs{
			AddFunc: func(obj interface{}) { applyCRD(h, obj, log) },
			UpdateFunc: func(_, obj interface{}) { applyCRD(h, obj, log) },
			DeleteFunc: func(obj interface{}) {
				u, ok := asUnstructured(obj)
				if !ok {
					return
				}
				h.deleteFn(u.GetNamespace(), u.GetName())
			},
		})
	}

	factory.Start(ctx.Done())
}

func applyCRD(h crdHandler, obj interface{}, log logr.Logger) {
	u, ok := asUnstructured(obj)
	if !ok {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Info("dropping malformed object", "resource", h.resource.Resource, "namespace", u.GetNamespace(), "name", u.GetName(), "panic", r)
		}
	}()
	if err := h.applyFn(u); err != nil {
		log.Info("dropping object that failed to decode", "resource", h.resource.Resource, "namespace", u.GetNamespace(), "name", u.GetName(), "error", err.Error())
	}
}

func asUnstructured(obj interface{}) (*unstructured.Unstructured, bool) {
	u, ok := obj.(*unstructured.Unstructured)
	if !ok {
		if tomb, ok := obj.(cache.DeletedFinalStateUnknown); ok {
			u, ok = tomb.Obj.(*unstructured.Unstructured)
			return u, ok
		}
		return nil, false
	}
	return u, true
}

func creationTime(u *unstructured.Unstructured) (time.Time, bool) {
	ts := u.GetCreationTimestamp()
	if ts.IsZero() {
		return time.Time{}, false
	}
	return ts.Time, true
}

func nestedString(obj map[string]interface{}, fields ...string) string {
	v, _, _ := unstructured.NestedString(obj, fields...)
	return v
}

func nestedStringSlice(obj map[string]interface{}, fields ...string) []string {
	v, _, _ := unstructured.NestedStringSlice(obj, fields...)
	return v
}

func nestedInt64(obj map[string]interface{}, fields ...string) (int64, bool) {
	v, ok, _ := unstructured.NestedInt64(obj, fields...)
	return v, ok
}

func nestedSlice(obj map[string]interface{}, fields ...string) []interface{} {
	v, _, _ := unstructured.NestedSlice(obj, fields...)
	return v
}

func nestedMap(obj map[string]interface{}, fields ...string) map[string]interface{} {
	v, _, _ := unstructured.NestedMap(obj, fields...)
	return v
}

