// Package grpc maps this module's typed errors onto gRPC status
// codes (spec.md §7): internal/index and internal/k8s return plain Go
// errors, and only the RPC boundary here knows about
// google.golang.org/grpc/status.
package grpc

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/linkerd/linkerd2-sub001/internal/k8s"
)

// StatusError converts err into a gRPC status error. InvalidArgumentError
// and NotFoundError map to their matching code; anything else is
// reported as Internal rather than leaking implementation detail to
// the proxy.
func StatusError(err error) error {
	if err == nil {
		return nil
	}
	var invalidArg *k8s.InvalidArgumentError
	if errors.As(err, &invalidArg) {
		return status.Error(codes.InvalidArgument, invalidArg.Error())
	}
	var notFound *k8s.NotFoundError
	if errors.As(err, &notFound) {
		return status.Error(codes.NotFound, notFound.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
