package k8sapi

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/client-go/informers"

	"github.com/linkerd/linkerd2-sub001/internal/index/inbound"
	"github.com/linkerd/linkerd2-sub001/internal/index/outbound"
	"github.com/linkerd/linkerd2-sub001/internal/index/status"
)

// resyncPeriod forces a periodic re-list so a missed or dropped watch
// event eventually self-heals, matching how the teacher's own
// informer-based controllers are configured.
const resyncPeriod = 10 * time.Minute

// Bind starts every informer feeding the inbound, outbound, and status
// indexes from clients, and blocks until their caches have synced or
// ctx is cancelled.
func Bind(ctx context.Context, clients *Clients, in *inbound.Index, out *outbound.Index, st *status.Index, log logr.Logger) error {
	factory := informers.NewSharedInformerFactory(clients.Typed, resyncPeriod)
	bindCore(ctx, factory, in, out, log)
	factory.Start(ctx.Done())

	bindCRDs(ctx, clients.Dynamic, in, out, st, log)

	synced := factory.WaitForCacheSync(ctx.Done())
	for kind, ok := range synced {
		if !ok {
			return fmt.Errorf("cache for %v never synced", kind)
		}
	}
	return nil
}
