package server

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"google.golang.org/grpc"
)

// procedure returns the RPC path of method.
func procedure(method string) string { return "/" + ServiceName + "/" + method }

// ---------------------------------------------------------------------------
// Connect (HTTP/JSON)
// ---------------------------------------------------------------------------

func handleConnect[Req, Res any](mux *http.ServeMux, method string, fn func(context.Context, *Req) (*Res, error)) {
	path := procedure(method)
	mux.Handle(path, connect.NewUnaryHandler(path,
		func(ctx context.Context, req *connect.Request[Req]) (*connect.Response[Res], error) {
			res, err := fn(ctx, req.Msg)
			if err != nil {
				return nil, connectError(err)
			}
			return connect.NewResponse(res), nil
		},
		connect.WithCodec(jsonCodec{}),
	))
}

func registerConnect(mux *http.ServeMux, s ControlServer) {
	handleConnect(mux, "Status", s.Status)
	handleConnect(mux, "ExecuteBlock", s.ExecuteBlock)
	handleConnect(mux, "StopBlock", s.StopBlock)
	handleConnect(mux, "SendMessage", s.SendMessage)
	handleConnect(mux, "SetVariable", s.SetVariable)
	handleConnect(mux, "Save", s.Save)
	handleConnect(mux, "Load", s.Load)
}

// ---------------------------------------------------------------------------
// gRPC (CBOR)
// ---------------------------------------------------------------------------

func unaryMethod[Req, Res any](method string, call func(ControlServer, context.Context, *Req) (*Res, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, req any) (any, error) {
				res, err := call(srv.(ControlServer), ctx, req.(*Req))
				if err != nil {
					return nil, grpcError(err)
				}
				return res, nil
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: procedure(method)}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var controlServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("Status", ControlServer.Status),
		unaryMethod("ExecuteBlock", ControlServer.ExecuteBlock),
		unaryMethod("StopBlock", ControlServer.StopBlock),
		unaryMethod("SendMessage", ControlServer.SendMessage),
		unaryMethod("SetVariable", ControlServer.SetVariable),
		unaryMethod("Save", ControlServer.Save),
		unaryMethod("Load", ControlServer.Load),
	},
	Streams: []grpc.StreamDesc{},
}

// NewGRPCServer returns a gRPC server speaking CBOR with s registered.
func NewGRPCServer(s ControlServer, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.ForceServerCodec(cborCodec{})}, opts...)
	gs := grpc.NewServer(opts...)
	gs.RegisterService(&controlServiceDesc, s)
	return gs
}

// ControlClient calls the control service over a gRPC connection.
type ControlClient struct {
	cc grpc.ClientConnInterface
}

func NewControlClient(cc grpc.ClientConnInterface) *ControlClient {
	return &ControlClient{cc: cc}
}

func invoke[Req, Res any](ctx context.Context, c *ControlClient, method string, req *Req) (*Res, error) {
	res := new(Res)
	if err := c.cc.Invoke(ctx, procedure(method), req, res, grpc.ForceCodec(cborCodec{})); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *ControlClient) Status(ctx context.Context, req *StatusRequest) (*StatusResponse, error) {
	return invoke[StatusRequest, StatusResponse](ctx, c, "Status", req)
}

func (c *ControlClient) ExecuteBlock(ctx context.Context, req *ExecuteBlockRequest) (*ExecuteBlockResponse, error) {
	return invoke[ExecuteBlockRequest, ExecuteBlockResponse](ctx, c, "ExecuteBlock", req)
}

func (c *ControlClient) StopBlock(ctx context.Context, req *StopBlockRequest) (*StopBlockResponse, error) {
	return invoke[StopBlockRequest, StopBlockResponse](ctx, c, "StopBlock", req)
}

func (c *ControlClient) SendMessage(ctx context.Context, req *SendMessageRequest) (*SendMessageResponse, error) {
	return invoke[SendMessageRequest, SendMessageResponse](ctx, c, "SendMessage", req)
}

func (c *ControlClient) SetVariable(ctx context.Context, req *SetVariableRequest) (*SetVariableResponse, error) {
	return invoke[SetVariableRequest, SetVariableResponse](ctx, c, "SetVariable", req)
}

func (c *ControlClient) Save(ctx context.Context, req *SaveRequest) (*SaveResponse, error) {
	return invoke[SaveRequest, SaveResponse](ctx, c, "Save", req)
}

func (c *ControlClient) Load(ctx context.Context, req *LoadRequest) (*LoadResponse, error) {
	return invoke[LoadRequest, LoadResponse](ctx, c, "Load", req)
}
