// Package leaderelection wraps client-go's Lease-based leader election
// (spec.md §2's "leader election" component, §6.3's
// --policy-deployment-name/--control-plane-namespace/HOSTNAME) and
// exposes the result as a watch.Bool so the status patch queue can gate
// writes on it without a direct client-go dependency.
package leaderelection

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"

	"github.com/linkerd/linkerd2-sub001/internal/watch"
)

const (
	leaseDuration = 30 * time.Second
	renewDeadline = 20 * time.Second
	retryPeriod   = 5 * time.Second
)

// Run claims the named Lease and blocks until ctx is cancelled,
// updating isLeader on every transition. It is meant to run in its own
// goroutine; the returned error is only non-nil if the Lease object
// itself could not be constructed (a malformed identity, say), not for
// ordinary leadership churn.
func Run(ctx context.Context, client kubernetes.Interface, namespace, leaseName, identity string, isLeader *watch.Bool, log logr.Logger) error {
	lock, err := resourcelock.New(
		resourcelock.LeasesResourceLock,
		namespace,
		leaseName,
		client.CoreV1(),
		client.CoordinationV1(),
		resourcelock.ResourceLockConfig{Identity: identity},
	)
	if err != nil {
		return err
	}

	le, err := leaderelection.NewLeaderElector(leaderelection.LeaderElectionConfig{
		Lock:          lock,
		LeaseDuration: leaseDuration,
		RenewDeadline: renewDeadline,
		RetryPeriod:   retryPeriod,
		Callbacks: leaderelection.LeaderCallbacks{
			OnStartedLeading: func(ctx context.Context) {
				log.Info("acquired leadership", "identity", identity)
				isLeader.SetForce(true)
			},
			OnStoppedLeading: func() {
				log.Info("lost leadership", "identity", identity)
				isLeader.SetForce(false)
			},
		},
	})
	if err != nil {
		return err
	}

	le.Run(ctx)
	isLeader.SetForce(false)
	return nil
}
