package server

import (
	"encoding/json"
	"errors"

	"connectrpc.com/connect"
	"github.com/fxamacker/cbor/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/chazu/blockflow/host"
)

// ---------------------------------------------------------------------------
// Codecs
// ---------------------------------------------------------------------------

// jsonCodec carries plain Go structs over Connect. Connect's built-in JSON
// codec only handles protobuf messages.
type jsonCodec struct{}

func (jsonCodec) Name() string                   { return "json" }
func (jsonCodec) Marshal(v any) ([]byte, error)   { return json.Marshal(v) }
func (jsonCodec) Unmarshal(b []byte, v any) error { return json.Unmarshal(b, v) }

// cborCodec carries plain Go structs over gRPC.
type cborCodec struct{}

func (cborCodec) Name() string                   { return "cbor" }
func (cborCodec) Marshal(v any) ([]byte, error)   { return cbor.Marshal(v) }
func (cborCodec) Unmarshal(b []byte, v any) error { return cbor.Unmarshal(b, v) }

// ---------------------------------------------------------------------------
// Error mapping
// ---------------------------------------------------------------------------

func connectCode(err error) connect.Code {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, host.ErrUnknownScene):
		return connect.CodeNotFound
	case errors.Is(err, ErrInvalidArgument):
		return connect.CodeInvalidArgument
	case errors.Is(err, host.ErrStopped):
		return connect.CodeUnavailable
	}
	return connect.CodeInternal
}

func connectError(err error) error {
	return connect.NewError(connectCode(err), err)
}

func grpcError(err error) error {
	var code codes.Code
	switch connectCode(err) {
	case connect.CodeNotFound:
		code = codes.NotFound
	case connect.CodeInvalidArgument:
		code = codes.InvalidArgument
	case connect.CodeUnavailable:
		code = codes.Unavailable
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}
