// Package k8sapi binds the inbound, outbound, and status indexes to a
// real Kubernetes apiserver: typed informers for core/v1 resources,
// dynamic informers for the policy.linkerd.io and
// gateway.networking.k8s.io CRDs, and a status.Patcher that issues the
// computed route-status merge patches.
package k8sapi

import (
	"fmt"

	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Clients bundles the two client shapes the informer bindings need: a
// typed clientset for core/v1 (Pod, Service, Node, Namespace) and a
// dynamic client for every CRD kind, so adding a new policy kind never
// requires regenerating a typed client.
type Clients struct {
	Typed   kubernetes.Interface
	Dynamic dynamic.Interface
	Config  *rest.Config
}

// NewClients builds a Clients from in-cluster config, falling back to
// kubeconfigPath when set (spec.md §6.3 --kubeconfig, used only for
// local development against a real cluster).
func NewClients(kubeconfigPath string) (*Clients, error) {
	cfg, err := loadConfig(kubeconfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading kubeconfig: %w", err)
	}

	typed, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("building typed client: %w", err)
	}
	dyn, err := dynamic.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("building dynamic client: %w", err)
	}
	return &Clients{Typed: typed, Dynamic: dyn, Config: cfg}, nil
}

func loadConfig(kubeconfigPath string) (*rest.Config, error) {
	if kubeconfigPath == "" {
		if cfg, err := rest.InClusterConfig(); err == nil {
			return cfg, nil
		}
	}
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfigPath != "" {
		rules.ExplicitPath = kubeconfigPath
	}
	overrides := &clientcmd.ConfigOverrides{}
	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides).ClientConfig()
}
