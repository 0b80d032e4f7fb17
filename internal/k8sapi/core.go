package k8sapi

import (
	"context"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/informers"
	"k8s.io/client-go/tools/cache"

	"github.com/go-logr/logr"

	"github.com/linkerd/linkerd2-sub001/internal/index/inbound"
	"github.com/linkerd/linkerd2-sub001/internal/index/outbound"
	"github.com/linkerd/linkerd2-sub001/internal/selector"
)

// bindCore wires the core/v1 informers (Namespace, Pod, Node, Service)
// into the inbound and outbound indexes. It mirrors the CRD bindings in
// crd.go but uses the typed SharedInformerFactory since these kinds
// never change shape underneath the controller.
func bindCore(ctx context.Context, factory informers.SharedInformerFactory, in *inbound.Index, out *outbound.Index, log logr.Logger) {
	log = log.WithName("k8sapi-core")

	nsInformer := factory.Core().V1().Namespaces().Informer()
	nsInformer.AddEventHandler(cache.ResourceEventHandlerFuncs{
		AddFunc: func(obj interface{}) { applyNamespace(in, obj) },
		UpdateFunc: func(_, obj interface{}) { applyNamespace(in, obj) },
		DeleteFunc: func(obj interface{}) {
			if ns, ok := asNamespace(obj); ok {
				in.DeleteNamespace(ns.Name)
			}
		},
	})

	podInformer := factory.Core().V1().Pods().Informer()
	podInformer.AddEventHandler(cache.ResourceEventHandlerFuncs{
		AddFunc: func(obj interface{}) { applyPod(in, obj, log) },
		UpdateFunc: func(_, obj interface{}) { applyPod(in, obj, log) },
		DeleteFunc: func(obj interface{}) {
			if pod, ok := asPod(obj); ok {
				in.DeleteWorkload(pod.Namespace, pod.Name)
			}
		},
	})

	nodeInformer := factory.Core().V1().Nodes().Informer()
	nodeInformer.AddEventHandler(cache.ResourceEventHandlerFuncs{
		DeleteFunc: func(obj interface{}) {
			if node, ok := asNode(obj); ok {
				in.NodeDisappeared(node.Name)
			}
		},
	})

	svcInformer := factory.Core().V1().Services().Informer()
	svcInformer.AddEventHandler(cache.ResourceEventHandlerFuncs{
		AddFunc: func(obj interface{}) { applyService(out, obj) },
		UpdateFunc: func(_, obj interface{}) { applyService(out, obj) },
		DeleteFunc: func(obj interface{}) {
			if svc, ok := asService(obj); ok {
				out.DeleteService(svc.Namespace, svc.Name)
			}
		},
	})
}

func asNamespace(obj interface{}) (*corev1.Namespace, bool) {
	ns, ok := obj.(*corev1.Namespace)
	if !ok {
		if tomb, ok := obj.(cache.DeletedFinalStateUnknown); ok {
			ns, ok = tomb.Obj.(*corev1.Namespace)
			return ns, ok
		}
		return nil, false
	}
	return ns, true
}

func applyNamespace(in *inbound.Index, obj interface{}) {
	ns, ok := asNamespace(obj)
	if !ok {
		return
	}
	in.ApplyNamespace(ns.Name, ns.Annotations)
}

func asPod(obj interface{}) (*corev1.Pod, bool) {
	pod, ok := obj.(*corev1.Pod)
	if !ok {
		if tomb, ok := obj.(cache.DeletedFinalStateUnknown); ok {
			pod, ok = tomb.Obj.(*corev1.Pod)
			return pod, ok
		}
		return nil, false
	}
	return pod, true
}

func applyPod(in *inbound.Index, obj interface{}, log logr.Logger) {
	pod, ok := asPod(obj)
	if !ok {
		return
	}
	in.ApplyWorkload(workloadFromPod(pod))
}

// workloadFromPod converts a core/v1 Pod into the inbound index's
// Workload shape (spec.md §3.2): every named and unnamed container
// port, the pod's IPs, and its scheduled node.
func workloadFromPod(pod *corev1.Pod) inbound.Workload {
	named := map[string]uint16{}
	ports := map[uint16]struct{}{}
	for _, c := range pod.Spec.Containers {
		for _, p := range c.Ports {
			port := uint16(p.ContainerPort)
			ports[port] = struct{}{}
			if p.Name != "" {
				named[p.Name] = port
			}
		}
	}

	var ips []string
	for _, ip := range pod.Status.PodIPs {
		ips = append(ips, ip.IP)
	}
	if len(ips) == 0 && pod.Status.PodIP != "" {
		ips = append(ips, pod.Status.PodIP)
	}

	return inbound.Workload{
		Namespace:   pod.Namespace,
		Name:        pod.Name,
		External:    false,
		Labels:      selector.Labels(pod.Labels),
		Annotations: pod.Annotations,
		Node:        pod.Spec.NodeName,
		IPs:         ips,
		NamedPorts:  named,
		Ports:       ports,
	}
}

func asNode(obj interface{}) (*corev1.Node, bool) {
	node, ok := obj.(*corev1.Node)
	if !ok {
		if tomb, ok := obj.(cache.DeletedFinalStateUnknown); ok {
			node, ok = tomb.Obj.(*corev1.Node)
			return node, ok
		}
		return nil, false
	}
	return node, true
}

func asService(obj interface{}) (*corev1.Service, bool) {
	svc, ok := obj.(*corev1.Service)
	if !ok {
		if tomb, ok := obj.(cache.DeletedFinalStateUnknown); ok {
			svc, ok = tomb.Obj.(*corev1.Service)
			return svc, ok
		}
		return nil, false
	}
	return svc, true
}

func applyService(out *outbound.Index, obj interface{}) {
	svc, ok := asService(obj)
	if !ok {
		return
	}
	out.ApplyService(serviceFromCore(svc))
}

func serviceFromCore(svc *corev1.Service) outbound.ServiceResource {
	ports := map[uint16]struct{}{}
	for _, p := range svc.Spec.Ports {
		ports[uint16(p.Port)] = struct{}{}
	}
	var ips []string
	if svc.Spec.ClusterIP != "" && svc.Spec.ClusterIP != corev1.ClusterIPNone {
		ips = append(ips, svc.Spec.ClusterIP)
	}
	for _, ip := range svc.Spec.ClusterIPs {
		if ip != "" && ip != corev1.ClusterIPNone && ip != svc.Spec.ClusterIP {
			ips = append(ips, ip)
		}
	}
	return outbound.ServiceResource{
		Namespace:   svc.Namespace,
		Name:        svc.Name,
		ClusterIPs:  ips,
		Ports:       ports,
		Annotations: svc.Annotations,
	}
}
