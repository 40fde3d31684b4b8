// Package rpc describes the duomatch.v1.Backend gRPC service shared by the
// server and the terminal client.
//
// Messages are protobuf well-known types carried by the default proto
// codec, so the service is declared by hand instead of generated.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "duomatch.v1.Backend"

const (
	MethodPing        = "/" + ServiceName + "/Ping"
	MethodRegister    = "/" + ServiceName + "/Register"
	MethodGetSalt     = "/" + ServiceName + "/GetSalt"
	MethodLogin       = "/" + ServiceName + "/Login"
	MethodGetDocument = "/" + ServiceName + "/GetDocument"
	MethodSetDocument = "/" + ServiceName + "/SetDocument"
)

// Struct field names used in requests and responses.
const (
	FieldUsername    = "username"
	FieldSalt        = "salt"
	FieldVerifier    = "verifier"
	FieldUserID      = "user_id"
	FieldAccessToken = "access_token"
	FieldCollection  = "collection"
	FieldID          = "id"
	FieldData        = "data"
)

// BackendServer is implemented by the gRPC server.
type BackendServer interface {
	Ping(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
	Register(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSalt(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error)
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetDocument(context.Context, *structpb.Struct) (*emptypb.Empty, error)
}

// RegisterBackendServer registers srv on s.
func RegisterBackendServer(s grpc.ServiceRegistrar, srv BackendServer) {
	s.RegisterService(&ServiceDesc, srv)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BackendServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Ping",
			Handler: unary(MethodPing, func() *emptypb.Empty { return &emptypb.Empty{} },
				func(s BackendServer, ctx context.Context, in *emptypb.Empty) (proto.Message, error) {
					return s.Ping(ctx, in)
				}),
		},
		{
			MethodName: "Register",
			Handler: unary(MethodRegister, newStruct,
				func(s BackendServer, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
					return s.Register(ctx, in)
				}),
		},
		{
			MethodName: "GetSalt",
			Handler: unary(MethodGetSalt, func() *wrapperspb.StringValue { return &wrapperspb.StringValue{} },
				func(s BackendServer, ctx context.Context, in *wrapperspb.StringValue) (proto.Message, error) {
					return s.GetSalt(ctx, in)
				}),
		},
		{
			MethodName: "Login",
			Handler: unary(MethodLogin, newStruct,
				func(s BackendServer, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
					return s.Login(ctx, in)
				}),
		},
		{
			MethodName: "GetDocument",
			Handler: unary(MethodGetDocument, newStruct,
				func(s BackendServer, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
					return s.GetDocument(ctx, in)
				}),
		},
		{
			MethodName: "SetDocument",
			Handler: unary(MethodSetDocument, newStruct,
				func(s BackendServer, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
					return s.SetDocument(ctx, in)
				}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "duomatch/v1/backend.proto",
}

func newStruct() *structpb.Struct { return &structpb.Struct{} }

// unary builds the method handler the generated code would have produced.
func unary[Req proto.Message](
	fullMethod string,
	newReq func() Req,
	call func(BackendServer, context.Context, Req) (proto.Message, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := newReq()
		if err := dec(in); err != nil {
			return nil, err
		}
		s := srv.(BackendServer)
		if interceptor == nil {
			return call(s, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(s, ctx, req.(Req))
		})
	}
}
