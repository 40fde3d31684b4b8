// Package api is the client side of the duomatch.v1.Backend service. The
// GRPCClient doubles as the client's docstore.Store: document reads and
// writes go to the backend with the current access token attached.
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/dmitrijs2005/duomatch/internal/common"
	"github.com/dmitrijs2005/duomatch/internal/docstore"
	"github.com/dmitrijs2005/duomatch/internal/rpc"
)

const defaultCallTimeout = 12 * time.Second

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	callTimeout time.Duration

	mu          sync.RWMutex
	accessToken string
}

var _ docstore.Store = (*GRPCClient)(nil)

// New connects lazily to endpointURL. Extra dial options are appended to
// the defaults (insecure transport, token interceptor).
func New(endpointURL string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, callTimeout: defaultCallTimeout}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, dialOpts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	md.Set(common.AccessTokenHeaderName, token)
	return metadata.NewOutgoingContext(ctx, md)
}

func (c *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if token := c.AccessToken(); token != "" {
		ctx = withAccessToken(ctx, token)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

// SetAccessToken replaces the token sent with every call; "" sends none.
func (c *GRPCClient) SetAccessToken(token string) {
	c.mu.Lock()
	c.accessToken = token
	c.mu.Unlock()
}

func (c *GRPCClient) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

func (c *GRPCClient) invoke(ctx context.Context, method string, req, reply any) error {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	return mapError(c.conn.Invoke(ctx, method, req, reply))
}

// Register creates an account and returns its user id.
func (c *GRPCClient) Register(ctx context.Context, userName string, salt, verifier []byte) (string, error) {
	req, err := structpb.NewStruct(map[string]any{
		rpc.FieldUsername: userName,
		rpc.FieldSalt:     rpc.EncodeBytes(salt),
		rpc.FieldVerifier: rpc.EncodeBytes(verifier),
	})
	if err != nil {
		return "", err
	}

	resp := &structpb.Struct{}
	if err := c.invoke(ctx, rpc.MethodRegister, req, resp); err != nil {
		return "", err
	}
	return rpc.StringField(resp, rpc.FieldUserID)
}

func (c *GRPCClient) GetSalt(ctx context.Context, userName string) ([]byte, error) {
	resp := &wrapperspb.BytesValue{}
	if err := c.invoke(ctx, rpc.MethodGetSalt, wrapperspb.String(userName), resp); err != nil {
		return nil, err
	}
	return resp.GetValue(), nil
}

// Login authenticates and keeps the returned access token for later calls.
func (c *GRPCClient) Login(ctx context.Context, userName string, verifier []byte) (string, string, error) {
	req, err := structpb.NewStruct(map[string]any{
		rpc.FieldUsername: userName,
		rpc.FieldVerifier: rpc.EncodeBytes(verifier),
	})
	if err != nil {
		return "", "", err
	}

	resp := &structpb.Struct{}
	if err := c.invoke(ctx, rpc.MethodLogin, req, resp); err != nil {
		return "", "", err
	}

	userID, err := rpc.StringField(resp, rpc.FieldUserID)
	if err != nil {
		return "", "", err
	}
	token, err := rpc.StringField(resp, rpc.FieldAccessToken)
	if err != nil {
		return "", "", err
	}

	c.SetAccessToken(token)
	return userID, token, nil
}

func (c *GRPCClient) Ping(ctx context.Context) error {
	resp := &wrapperspb.StringValue{}
	if err := c.invoke(ctx, rpc.MethodPing, &emptypb.Empty{}, resp); err != nil {
		return err
	}
	if resp.GetValue() != "OK" {
		return ErrUnavailable
	}
	return nil
}

// Get reads a document from the backend store.
func (c *GRPCClient) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	req, err := structpb.NewStruct(map[string]any{rpc.FieldCollection: collection, rpc.FieldID: id})
	if err != nil {
		return nil, err
	}

	resp := &structpb.Struct{}
	if err := c.invoke(ctx, rpc.MethodGetDocument, req, resp); err != nil {
		return nil, err
	}
	return rpc.StructToDocument(resp), nil
}

// Set replaces a document in the backend store.
func (c *GRPCClient) Set(ctx context.Context, collection, id string, doc docstore.Document) error {
	data, err := rpc.DocumentToStruct(doc)
	if err != nil {
		return err
	}

	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		rpc.FieldCollection: structpb.NewStringValue(collection),
		rpc.FieldID:         structpb.NewStringValue(id),
		rpc.FieldData:       structpb.NewStructValue(data),
	}}
	return c.invoke(ctx, rpc.MethodSetDocument, req, &emptypb.Empty{})
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		return common.ErrorNotFound
	case codes.AlreadyExists:
		return common.ErrorAlreadyExists
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", common.ErrorValidation, st.Message())
	case codes.Unauthenticated:
		return ErrUnauthorized
	case codes.PermissionDenied:
		return common.ErrorForbidden
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
