package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/dmitrijs2005/duomatch/internal/common"
	"github.com/dmitrijs2005/duomatch/internal/docstore"
	"github.com/dmitrijs2005/duomatch/internal/rpc"
)

// clientCollections are the collections reachable over the API. Accounts
// stay server-side.
var clientCollections = map[string]bool{
	common.CollectionUsers:   true,
	common.CollectionInvites: true,
}

func (s *GRPCServer) Ping(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return wrapperspb.String("OK"), nil
}

func (s *GRPCServer) Register(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	username, err := rpc.StringField(req, rpc.FieldUsername)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	salt, err := rpc.BytesField(req, rpc.FieldSalt)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	verifier, err := rpc.BytesField(req, rpc.FieldVerifier)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	userID, err := s.accounts.Register(ctx, username, salt, verifier)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return structpb.NewStruct(map[string]any{rpc.FieldUserID: userID})
}

func (s *GRPCServer) GetSalt(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "username is required")
	}

	salt, err := s.accounts.GetSalt(ctx, req.GetValue())
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return wrapperspb.Bytes(salt), nil
}

func (s *GRPCServer) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	username, err := rpc.StringField(req, rpc.FieldUsername)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	verifier, err := rpc.BytesField(req, rpc.FieldVerifier)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	userID, token, err := s.accounts.Login(ctx, username, verifier)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return structpb.NewStruct(map[string]any{
		rpc.FieldUserID:      userID,
		rpc.FieldAccessToken: token,
	})
}

func (s *GRPCServer) GetDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	collection, id, err := s.documentKey(req)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	doc, err := s.store.Get(ctx, collection, id)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	out, err := rpc.DocumentToStruct(doc)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return out, nil
}

func (s *GRPCServer) SetDocument(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	collection, id, err := s.documentKey(req)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	data := req.GetFields()[rpc.FieldData].GetStructValue()
	if data == nil {
		return nil, status.Error(codes.InvalidArgument, "data must be an object")
	}

	if err := s.store.Set(ctx, collection, id, rpc.StructToDocument(data)); err != nil {
		return nil, s.toStatus(ctx, err)
	}

	userID, _ := userIDFromContext(ctx)
	s.logger.Info(ctx, "document saved", "collection", collection, "id", id, "by", userID)
	return &emptypb.Empty{}, nil
}

func (s *GRPCServer) documentKey(req *structpb.Struct) (string, string, error) {
	collection, err := rpc.StringField(req, rpc.FieldCollection)
	if err != nil {
		return "", "", err
	}
	id, err := rpc.StringField(req, rpc.FieldID)
	if err != nil {
		return "", "", err
	}
	if err := docstore.ValidateKey(collection, id); err != nil {
		return "", "", err
	}
	if !clientCollections[collection] {
		return "", "", common.ErrorForbidden
	}
	return collection, id, nil
}

// toStatus maps domain errors to gRPC codes. Unknown errors are logged and
// reported as Internal without detail.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, common.ErrorAlreadyExists):
		return status.Error(codes.AlreadyExists, "already exists")
	case errors.Is(err, common.ErrorUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, common.ErrorForbidden):
		return status.Error(codes.PermissionDenied, "forbidden")
	case errors.Is(err, common.ErrorValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	default:
		s.logger.Error(ctx, "request failed", "error", err)
		return status.Error(codes.Internal, "internal error")
	}
}
