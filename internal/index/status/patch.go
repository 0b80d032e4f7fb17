package status

import (
	"context"
	"encoding/json"
	"time"

	retry "github.com/avast/retry-go/v4"
	jsonpatch "github.com/evanphx/json-patch"
	"github.com/go-logr/logr"
	"github.com/mitchellh/hashstructure"
	"k8s.io/client-go/util/workqueue"
	"k8s.io/utils/ptr"

	"github.com/linkerd/linkerd2-sub001/internal/k8s"
	"github.com/linkerd/linkerd2-sub001/internal/watch"
)

// Patcher issues a JSON merge patch against a route's status
// subresource. Implemented by the informer-bindings layer, which knows
// each route kind's REST mapping; the status index only computes
// bytes.
type Patcher interface {
	PatchStatus(ctx context.Context, ref k8s.GroupKindNamespaceName, mergePatch []byte) error
}

// queueCapacity is the patch-queue length (spec.md §4.3 "~10,000 pending
// patches") at which Enqueue logs a warning. The item is still added:
// the rate-limiting workqueue holds at most one pending entry per route
// key, and nothing else caps its length.
const queueCapacity = 10000

// Metrics is the subset of internal/metrics.Registry the patch queue
// needs, injected the same way Patcher is so this package never
// imports the metrics package directly.
type Metrics interface {
	RecordPatch(outcome string)
	RecordPatchRetry()
}

type noopMetrics struct{}

func (noopMetrics) RecordPatch(string) {}
func (noopMetrics) RecordPatchRetry()  {}

// PatchQueue drains computed RouteStatus values into apiserver status
// patches, gated on leadership. A failed patch is requeued with
// rate-limited backoff. There is no periodic reconciliation: a route is
// patched again only when the status index enqueues it again.
type PatchQueue struct {
	log      logr.Logger
	patcher  Patcher
	isLeader *watch.Bool
	metrics  Metrics
	queue    workqueue.RateLimitingInterface

	lastAppliedHash map[k8s.GroupKindNamespaceName]uint64
}

func NewPatchQueue(log logr.Logger, patcher Patcher, isLeader *watch.Bool) *PatchQueue {
	return &PatchQueue{
		log:             log.WithName("status-patch-queue"),
		patcher:         patcher,
		isLeader:        isLeader,
		metrics:         noopMetrics{},
		queue:           workqueue.NewRateLimitingQueue(workqueue.DefaultControllerRateLimiter()),
		lastAppliedHash: map[k8s.GroupKindNamespaceName]uint64{},
	}
}

// SetMetrics installs the patch/retry counters; called once at startup.
func (q *PatchQueue) SetMetrics(m Metrics) {
	q.metrics = m
}

// Enqueue schedules ref for a status patch. Safe to call repeatedly;
// the workqueue collapses duplicate pending keys on its own, and
// computeAndApply additionally skips a patch whose content hash
// matches what was last successfully applied.
func (q *PatchQueue) Enqueue(ref k8s.GroupKindNamespaceName) {
	if q.queue.Len() >= queueCapacity {
		q.log.Info("patch queue at capacity, dropping oldest work is not possible; backlog will drain", "capacity", queueCapacity)
	}
	q.queue.Add(ref)
}

// Run drains the queue until ctx is cancelled. get() is the status
// index's Get method, injected so PatchQueue does not import Index
// directly and can be driven by tests with a stub.
func (q *PatchQueue) Run(ctx context.Context, get func(k8s.GroupKindNamespaceName) (RouteStatus, bool), workers int) {
	for i := 0; i < workers; i++ {
		go q.runWorker(ctx, get)
	}
	<-ctx.Done()
	q.queue.ShutDown()
}

func (q *PatchQueue) runWorker(ctx context.Context, get func(k8s.GroupKindNamespaceName) (RouteStatus, bool)) {
	for q.processNext(ctx, get) {
	}
}

func (q *PatchQueue) processNext(ctx context.Context, get func(k8s.GroupKindNamespaceName) (RouteStatus, bool)) bool {
	item, shutdown := q.queue.Get()
	if shutdown {
		return false
	}
	defer q.queue.Done(item)

	ref := item.(k8s.GroupKindNamespaceName)
	isLeader, _, _ := q.isLeader.Get()
	if !isLeader {
		// Not leader: drop the work item rather than retry-looping.
		// Nothing re-enqueues it when leadership is acquired later; the
		// route is patched only after its status is recomputed again.
		q.queue.Forget(item)
		return true
	}

	status, ok := get(ref)
	if !ok {
		q.queue.Forget(item)
		return true
	}

	if err := q.applyOne(ctx, ref, status); err != nil {
		q.log.Error(err, "status patch failed, requeueing", "route", ref.String())
		q.queue.AddRateLimited(item)
		return true
	}
	q.queue.Forget(item)
	return true
}

func (q *PatchQueue) applyOne(ctx context.Context, ref k8s.GroupKindNamespaceName, status RouteStatus) error {
	hash, hashOK := uint64(0), false
	if h, err := hashstructure.Hash(status, nil); err == nil {
		hash, hashOK = h, true
		if last, ok := q.lastAppliedHash[ref]; ok && last == hash {
			return nil
		}
	}

	patch, err := mergePatchFor(status)
	if err != nil {
		return err
	}

	attempt := 0
	err = retry.Do(
		func() error {
			if attempt > 0 {
				q.metrics.RecordPatchRetry()
			}
			attempt++
			return q.patcher.PatchStatus(ctx, ref, patch)
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(100*time.Millisecond),
	)
	if err != nil {
		q.metrics.RecordPatch("error")
		return err
	}
	q.metrics.RecordPatch("ok")
	if hashOK {
		q.lastAppliedHash[ref] = hash
	}
	return nil
}

// wireParentStatus mirrors the Gateway API status.parents shape: one
// entry per parentRef with its own condition list.
type wireParentStatus struct {
	ParentRef struct {
		Group       string `json:"group,omitempty"`
		Kind        string `json:"kind,omitempty"`
		Namespace   string `json:"namespace,omitempty"`
		Name        string `json:"name"`
		Port        *int32 `json:"port,omitempty"`
	} `json:"parentRef"`
	ControllerName string          `json:"controllerName"`
	Conditions     []wireCondition `json:"conditions"`
}

type wireCondition struct {
	Type               string `json:"type"`
	Status             string `json:"status"`
	Reason             string `json:"reason"`
	Message            string `json:"message,omitempty"`
	ObservedGeneration int64  `json:"observedGeneration,omitempty"`
}

const controllerName = "linkerd.io/policy-controller"

func mergePatchFor(status RouteStatus) ([]byte, error) {
	var parents []wireParentStatus
	for _, p := range status.Parents {
		wp := wireParentStatus{ControllerName: controllerName}
		wp.ParentRef.Group = p.ParentRef.Group
		wp.ParentRef.Kind = p.ParentRef.Kind
		wp.ParentRef.Namespace = p.ParentRef.Namespace
		wp.ParentRef.Name = p.ParentRef.Name
		if p.ParentRef.HasPort {
			wp.ParentRef.Port = ptr.To(int32(p.ParentRef.Port))
		}
		for _, c := range p.Conditions {
			wp.Conditions = append(wp.Conditions, wireCondition{
				Type:               c.Type,
				Status:             string(c.Status),
				Reason:             c.Reason,
				Message:            c.Message,
				ObservedGeneration: c.ObservedGeneration,
			})
		}
		parents = append(parents, wp)
	}

	body := map[string]any{"status": map[string]any{"parents": parents}}
	full, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	// A merge patch over an empty object is the document itself; this
	// round-trip through jsonpatch.CreateMergePatch keeps the wire
	// format identical to every other JSON merge patch this controller
	// issues (spec.md §4.3 "status is always applied as a merge patch").
	empty := []byte(`{}`)
	return jsonpatch.CreateMergePatch(empty, full)
}
