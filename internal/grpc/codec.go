// Package grpc registers the two discovery services
// (InboundServerPolicies, OutboundPolicies) as real gRPC services on a
// grpc.Server (spec.md §2, §6.1), and maps this module's typed errors
// onto gRPC status codes at that boundary.
package grpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// codecName is the content-subtype these services negotiate:
// application/grpc+json rather than the usual application/grpc+proto.
// internal/gen/{inbound,outbound} are hand-authored Go structs field-
// matched to linkerd2-proxy-api's inbound.proto/outbound.proto, not
// generated proto.Message implementations — running protoc is out of
// scope (see DESIGN.md) — so they can't be marshaled with grpc-go's
// built-in proto codec. Registering under a distinct subtype, rather
// than overriding "proto" globally, keeps every other proto-based
// service in the same process (health, reflection) on the real
// protobuf wire format. A client must dial with
// grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)), or
// use grpc.CallContentSubtype per-call, to reach these two services.
const codecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return codecName }

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	return b, nil
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal into %T: %w", v, err)
	}
	return nil
}
