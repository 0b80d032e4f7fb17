// Package httpapi exposes the inbound/outbound discovery RPCs
// (internal/grpc/inbound, internal/grpc/outbound) over plain HTTP+JSON,
// for curl-friendly debugging. The primary transport for these two
// services is the real grpc.Server internal/grpc registers them onto
// (see internal/grpc/service.go); this package is a secondary view of
// the exact same Server values, mounted under /debug on the admin
// server by cmd/policy-controller/main.go, not something a
// linkerd2-proxy discovery client talks to. One JSON GET per one-shot
// RPC, one chunked newline-delimited-JSON GET per streaming RPC,
// calling the same Server methods the grpc.ServiceDesc handlers call.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-logr/logr"

	gbInbound "github.com/linkerd/linkerd2-sub001/internal/gen/inbound"
	gbOutbound "github.com/linkerd/linkerd2-sub001/internal/gen/outbound"
	"github.com/linkerd/linkerd2-sub001/internal/grpc/inbound"
	"github.com/linkerd/linkerd2-sub001/internal/grpc/outbound"
	"github.com/linkerd/linkerd2-sub001/internal/k8s"
)

type Discovery struct {
	log     logr.Logger
	inbound *inbound.Server
	outbound *outbound.Server
}

func NewDiscovery(in *inbound.Server, out *outbound.Server, log logr.Logger) *Discovery {
	return &Discovery{log: log.WithName("httpapi"), inbound: in, outbound: out}
}

func (d *Discovery) Register(mux *http.ServeMux) {
	mux.HandleFunc("/inbound/port", d.getInboundPort)
	mux.HandleFunc("/inbound/port/watch", d.watchInboundPort)
	mux.HandleFunc("/outbound/policy", d.getOutboundPolicy)
	mux.HandleFunc("/outbound/policy/watch", d.watchOutboundPolicy)
}

func statusFor(err error) int {
	if _, ok := err.(*k8s.InvalidArgumentError); ok {
		return http.StatusBadRequest
	}
	if _, ok := err.(*k8s.NotFoundError); ok {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func parsePortParam(r *http.Request) (uint32, error) {
	q := r.URL.Query()
	n, err := parseUint32(q.Get("port"))
	if err != nil {
		return 0, &k8s.InvalidArgumentError{Msg: "invalid port query parameter"}
	}
	return n, nil
}

func parseUint32(s string) (uint32, error) {
	var n uint64
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, &k8s.InvalidArgumentError{Msg: "not a number: " + s}
		}
		n = n*10 + uint64(c-'0')
	}
	if s == "" {
		return 0, &k8s.InvalidArgumentError{Msg: "missing value"}
	}
	return uint32(n), nil
}

func (d *Discovery) getInboundPort(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("workload")
	port, err := parsePortParam(r)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	snap, err := d.inbound.GetPort(r.Context(), token, port)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, snap)
}

// watchInboundPort streams one JSON object per line, flushing after
// each, until the client disconnects. http.Flusher support is required
// of the admin server's transport (net/http's default server
// provides it).
func (d *Discovery) watchInboundPort(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("workload")
	port, err := parsePortParam(r)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	err = d.inbound.WatchPort(r.Context(), token, port, func(v gbInbound.Server) error {
		if err := enc.Encode(v); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	if err != nil && r.Context().Err() == nil {
		d.log.Error(err, "inbound watch stream ended")
	}
}

func (d *Discovery) getOutboundPolicy(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("target")
	source := r.URL.Query().Get("source_namespace")
	snap, err := d.outbound.Get(r.Context(), target, source)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, snap)
}

func (d *Discovery) watchOutboundPolicy(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("target")
	source := r.URL.Query().Get("source_namespace")
	w.Header().Set("Content-Type", "application/x-ndjson")
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	err := d.outbound.Watch(r.Context(), target, source, func(v gbOutbound.OutboundPolicy) error {
		if err := enc.Encode(v); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	if err != nil && r.Context().Err() == nil {
		d.log.Error(err, "outbound watch stream ended")
	}
}
