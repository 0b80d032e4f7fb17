// Package metrics exposes the controller's Prometheus registry and the
// gRPC interceptors that instrument the discovery services (spec.md
// §2's "observability" component, carried as ambient stack per
// SPEC_FULL.md §0 even though spec.md's body never names a metric).
package metrics

import (
	"context"
	"time"

	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
)

// Registry bundles the counters/histograms this controller exports.
// Index recompute and status-patch counters are updated by the index
// and patch-queue packages directly; the gRPC ones are wired through
// UnaryServerInterceptor/StreamServerInterceptor below.
type Registry struct {
	reg *prometheus.Registry

	grpcRequestsTotal   *prometheus.CounterVec
	grpcRequestDuration *prometheus.HistogramVec

	recomputesTotal *prometheus.CounterVec
	patchesTotal    *prometheus.CounterVec
	patchRetries    prometheus.Counter
}

func NewRegistry() *Registry {
	r := &Registry{reg: prometheus.NewRegistry()}

	r.grpcRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "policy_controller_grpc_requests_total",
		Help: "Total discovery gRPC requests, by method and whether it errored.",
	}, []string{"method", "code"})

	r.grpcRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "policy_controller_grpc_request_duration_seconds",
		Help:    "Latency of discovery gRPC unary requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	r.recomputesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "policy_controller_index_recomputes_total",
		Help: "Total snapshot recomputations performed by an index.",
	}, []string{"index"})

	r.patchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "policy_controller_status_patches_total",
		Help: "Total status patches attempted, by outcome.",
	}, []string{"outcome"})

	r.patchRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "policy_controller_status_patch_retries_total",
		Help: "Total status patch attempts that were retried after a failure.",
	})

	r.reg.MustRegister(
		r.grpcRequestsTotal, r.grpcRequestDuration,
		r.recomputesTotal, r.patchesTotal, r.patchRetries,
	)
	return r
}

func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

func (r *Registry) RecordRecompute(index string) {
	r.recomputesTotal.WithLabelValues(index).Inc()
}

func (r *Registry) RecordPatch(outcome string) {
	r.patchesTotal.WithLabelValues(outcome).Inc()
}

func (r *Registry) RecordPatchRetry() {
	r.patchRetries.Inc()
}

// UnaryServerInterceptor times and counts one-shot RPCs (GetPort/Get).
func (r *Registry) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		r.grpcRequestDuration.WithLabelValues(info.FullMethod).Observe(time.Since(start).Seconds())
		r.grpcRequestsTotal.WithLabelValues(info.FullMethod, codeLabel(err)).Inc()
		return resp, err
	}
}

// StreamServerInterceptor counts watch streams by method and final
// outcome; duration isn't meaningful for a long-lived stream.
func (r *Registry) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		err := handler(srv, ss)
		r.grpcRequestsTotal.WithLabelValues(info.FullMethod, codeLabel(err)).Inc()
		return err
	}
}

func codeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return "error"
}

// ChainUnary/ChainStream compose this registry's interceptors with any
// others a server wants (e.g. recovery, logging), using the teacher's
// go-grpc-middleware chaining helpers rather than hand-rolled wrapping.
func (r *Registry) ChainUnary(others ...grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	return grpc_middleware.ChainUnaryServer(append([]grpc.UnaryServerInterceptor{r.UnaryServerInterceptor()}, others...)...)
}

func (r *Registry) ChainStream(others ...grpc.StreamServerInterceptor) grpc.StreamServerInterceptor {
	return grpc_middleware.ChainStreamServer(append([]grpc.StreamServerInterceptor{r.StreamServerInterceptor()}, others...)...)
}
