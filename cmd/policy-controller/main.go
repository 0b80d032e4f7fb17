// Command policy-controller runs the Linkerd policy controller
// described by spec.md: it watches Server/ServerAuthorization/
// AuthorizationPolicy/NetworkAuthentication/MeshTLSAuthentication/
// HttpLocalRateLimitPolicy/ExternalWorkload/EgressNetwork and Gateway
// API route objects, maintains the inbound, outbound, and status
// indexes, serves the discovery protocol, runs the admission webhook,
// and patches route status under leader election.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/linkerd/linkerd2-sub001/internal/admission"
	"github.com/linkerd/linkerd2-sub001/internal/args"
	internalgrpc "github.com/linkerd/linkerd2-sub001/internal/grpc"
	grpcinbound "github.com/linkerd/linkerd2-sub001/internal/grpc/inbound"
	grpcoutbound "github.com/linkerd/linkerd2-sub001/internal/grpc/outbound"
	"github.com/linkerd/linkerd2-sub001/internal/httpapi"
	"github.com/linkerd/linkerd2-sub001/internal/index/inbound"
	"github.com/linkerd/linkerd2-sub001/internal/index/outbound"
	"github.com/linkerd/linkerd2-sub001/internal/index/status"
	"github.com/linkerd/linkerd2-sub001/internal/k8sapi"
	"github.com/linkerd/linkerd2-sub001/internal/leaderelection"
	applog "github.com/linkerd/linkerd2-sub001/internal/log"
	"github.com/linkerd/linkerd2-sub001/internal/metrics"
	"github.com/linkerd/linkerd2-sub001/internal/watch"
)

const statusPatchWorkers = 4

func main() {
	cmd := &cobra.Command{
		Use:   "policy-controller",
		Short: "Linkerd policy controller: serves proxy discovery, patches route status, admits policy CRs",
	}
	flags := args.BindFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context(), flags)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	cmd.SetContext(ctx)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, flags *args.Flags) error {
	env, err := args.LoadEnv()
	if err != nil {
		return err
	}
	logger, err := applog.New(env.LogLevel)
	if err != nil {
		return err
	}
	logger = logger.WithName("policy-controller")

	inboundCfg, err := args.InboundConfig(flags)
	if err != nil {
		return err
	}
	outboundCfg, err := args.OutboundConfig(flags)
	if err != nil {
		return err
	}

	reg := metrics.NewRegistry()
	inIdx := inbound.NewIndex(inboundCfg, logger)
	inIdx.SetMetrics(reg)
	outIdx := outbound.NewIndex(outboundCfg, logger)
	outIdx.SetMetrics(reg)
	statusIdx := status.NewIndex(logger)

	clients, err := k8sapi.NewClients(flags.Kubeconfig)
	if err != nil {
		return fmt.Errorf("building kubernetes clients: %w", err)
	}

	isLeader := watch.NewBool(false)
	patcher := k8sapi.NewPatcher(clients.Dynamic)
	patchQueue := status.NewPatchQueue(logger, patcher, isLeader)
	patchQueue.SetMetrics(reg)
	statusIdx.OnChange(patchQueue.Enqueue)

	identity := env.Hostname
	if identity == "" {
		identity = flags.PolicyDeploymentName
	}

	spawn, groupCtx := errGroup(ctx)

	spawn(func() error {
		return leaderelection.Run(ctx, clients.Typed, flags.ControlPlaneNamespace, flags.PolicyDeploymentName, identity, isLeader, logger)
	})

	spawn(func() error {
		patchQueue.Run(groupCtx, statusIdx.Get, statusPatchWorkers)
		return nil
	})

	if err := k8sapi.Bind(ctx, clients, inIdx, outIdx, statusIdx, logger); err != nil {
		return fmt.Errorf("starting informers: %w", err)
	}
	logger.Info("informer caches synced")

	inSrv := grpcinbound.NewServer(inIdx, logger)
	outSrv := grpcoutbound.NewServer(outIdx, logger)

	spawn(func() error { return serveDiscovery(groupCtx, flags, inSrv, outSrv, reg, logger) })
	spawn(func() error { return serveAdmin(groupCtx, flags, inSrv, outSrv, reg, logger) })
	if !flags.AdmissionControllerDisabled {
		spawn(func() error { return serveAdmission(groupCtx, flags, logger) })
	}

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// errGroup is a minimal fan-out/fan-in helper in the teacher's style:
// every registered function runs in its own goroutine; the first
// non-nil error cancels the shared context so siblings unwind, and the
// returned context is what each goroutine should select on.
func errGroup(parent context.Context) (func(func() error), context.Context) {
	ctx, cancel := context.WithCancel(parent)
	register := func(fn func() error) {
		go func() {
			if err := fn(); err != nil {
				cancel()
			}
		}()
	}
	return register, ctx
}

// serveDiscovery stands up a single real grpc.Server carrying the two
// discovery services (spec.md §2, §6.1): InboundServerPolicies and
// OutboundPolicies are registered via internal/grpc's hand-written
// grpc.ServiceDesc (grpc-go doesn't require the protoc-generated
// Register*Server helpers; RegisterService takes a ServiceDesc
// directly) alongside health checking and reflection. It listens on
// flags.GRPCAddr, the address a linkerd2-proxy discovery client
// actually dials, and a second time on flags.GRPCHealthAddr so a
// liveness probe can reach health/reflection over the default proto
// codec without needing the discovery services' json content-subtype
// (see internal/grpc/codec.go). internal/httpapi's HTTP+JSON view of
// the same two Server values is mounted on the admin server for
// ad-hoc inspection (curl, browser) rather than proxy consumption.
func serveDiscovery(ctx context.Context, flags *args.Flags, inSrv *grpcinbound.Server, outSrv *grpcoutbound.Server, reg *metrics.Registry, log logr.Logger) error {
	grpcSrv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(reg.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(reg.StreamServerInterceptor()),
	)
	internalgrpc.RegisterInboundServerPolicies(grpcSrv, inSrv)
	internalgrpc.RegisterOutboundPolicies(grpcSrv, outSrv)

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)
	reflection.Register(grpcSrv)

	lis, err := net.Listen("tcp", flags.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", flags.GRPCAddr, err)
	}
	healthLis, err := net.Listen("tcp", flags.GRPCHealthAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", flags.GRPCHealthAddr, err)
	}
	go func() {
		<-ctx.Done()
		grpcSrv.GracefulStop()
	}()
	go func() {
		if err := grpcSrv.Serve(healthLis); err != nil {
			log.Error(err, "grpc health listener stopped")
		}
	}()
	if err := grpcSrv.Serve(lis); err != nil && ctx.Err() == nil {
		return fmt.Errorf("grpc discovery server stopped: %w", err)
	}
	return nil
}

// serveAdmin serves metrics and health probes, plus internal/httpapi's
// HTTP+JSON mirror of the discovery services (under /debug) for
// ad-hoc inspection with curl; the real discovery traffic goes to the
// grpc.Server in serveDiscovery, not here.
func serveAdmin(ctx context.Context, flags *args.Flags, inSrv *grpcinbound.Server, outSrv *grpcoutbound.Server, reg *metrics.Registry, log logr.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg.Gatherer(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	debug := http.NewServeMux()
	httpapi.NewDiscovery(inSrv, outSrv, log).Register(debug)
	mux.Handle("/debug/", http.StripPrefix("/debug", debug))
	srv := &http.Server{Addr: flags.AdminAddr, Handler: mux}
	return runHTTPServer(ctx, srv, log)
}

func serveAdmission(ctx context.Context, flags *args.Flags, log logr.Logger) error {
	handler := admission.NewHandler(log)
	srv := &http.Server{Addr: flags.ServerAddr, Handler: handler}
	return runHTTPServer(ctx, srv, log)
}

func runHTTPServer(ctx context.Context, srv *http.Server, log logr.Logger) error {
	errs := make(chan error, 1)
	go func() { errs <- srv.ListenAndServe() }()
	select {
	case err := <-errs:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
