// Package userpb defines the user.UserService gRPC contract. Messages are
// protobuf well-known types so no generated code is needed.
package userpb

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "user.UserService"

const (
	methodCreateUser       = "/user.UserService/CreateUser"
	methodGetUser          = "/user.UserService/GetUser"
	methodValidateUser     = "/user.UserService/ValidateUser"
	methodAuthenticateUser = "/user.UserService/AuthenticateUser"
)

// User is the wire view of an account; it never carries the password hash.
type User struct {
	ID        string
	Username  string
	Email     string
	Phone     string
	Role      string
	IsActive  bool
	IsBlocked bool
	CreatedAt time.Time
}

func (u *User) ToStruct() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"id":         structpb.NewStringValue(u.ID),
		"username":   structpb.NewStringValue(u.Username),
		"email":      structpb.NewStringValue(u.Email),
		"phone":      structpb.NewStringValue(u.Phone),
		"role":       structpb.NewStringValue(u.Role),
		"is_active":  structpb.NewBoolValue(u.IsActive),
		"is_blocked": structpb.NewBoolValue(u.IsBlocked),
		"created_at": structpb.NewStringValue(u.CreatedAt.UTC().Format(time.RFC3339)),
	}}
}

func UserFromStruct(s *structpb.Struct) *User {
	u := &User{
		ID:        str(s, "id"),
		Username:  str(s, "username"),
		Email:     str(s, "email"),
		Phone:     str(s, "phone"),
		Role:      str(s, "role"),
		IsActive:  boolean(s, "is_active"),
		IsBlocked: boolean(s, "is_blocked"),
	}
	if ts, err := time.Parse(time.RFC3339, str(s, "created_at")); err == nil {
		u.CreatedAt = ts
	}
	return u
}

type CreateUserRequest struct {
	Username string
	Email    string
	Phone    string
	Password string
	Role     string
}

func (r *CreateUserRequest) ToStruct() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"username": structpb.NewStringValue(r.Username),
		"email":    structpb.NewStringValue(r.Email),
		"phone":    structpb.NewStringValue(r.Phone),
		"password": structpb.NewStringValue(r.Password),
		"role":     structpb.NewStringValue(r.Role),
	}}
}

func CreateUserRequestFromStruct(s *structpb.Struct) *CreateUserRequest {
	return &CreateUserRequest{
		Username: str(s, "username"),
		Email:    str(s, "email"),
		Phone:    str(s, "phone"),
		Password: str(s, "password"),
		Role:     str(s, "role"),
	}
}

type AuthRequest struct {
	Email    string
	Password string
}

type AuthResponse struct {
	UserID string
	OK     bool
}

func str(s *structpb.Struct, k string) string {
	if s == nil {
		return ""
	}
	return s.GetFields()[k].GetStringValue()
}

func boolean(s *structpb.Struct, k string) bool {
	if s == nil {
		return false
	}
	return s.GetFields()[k].GetBoolValue()
}

// UserServiceServer is implemented by the user service.
type UserServiceServer interface {
	CreateUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetUser(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	ValidateUser(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
	AuthenticateUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterUserServiceServer(s grpc.ServiceRegistrar, srv UserServiceServer) {
	s.RegisterService(&UserService_ServiceDesc, srv)
}

func unary[In any, Out any](method string, call func(UserServiceServer, context.Context, *In) (*Out, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(In)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(UserServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(UserServiceServer), ctx, req.(*In))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var UserService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*UserServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateUser", Handler: unary(methodCreateUser, UserServiceServer.CreateUser)},
		{MethodName: "GetUser", Handler: unary(methodGetUser, UserServiceServer.GetUser)},
		{MethodName: "ValidateUser", Handler: unary(methodValidateUser, UserServiceServer.ValidateUser)},
		{MethodName: "AuthenticateUser", Handler: unary(methodAuthenticateUser, UserServiceServer.AuthenticateUser)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "user.proto",
}

// Client is a typed wrapper over a gRPC connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

func (c *Client) CreateUser(ctx context.Context, in *CreateUserRequest, opts ...grpc.CallOption) (*User, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodCreateUser, in.ToStruct(), out, opts...); err != nil {
		return nil, err
	}
	return UserFromStruct(out), nil
}

func (c *Client) GetUser(ctx context.Context, id string, opts ...grpc.CallOption) (*User, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodGetUser, wrapperspb.String(id), out, opts...); err != nil {
		return nil, err
	}
	return UserFromStruct(out), nil
}

func (c *Client) ValidateUser(ctx context.Context, id string, opts ...grpc.CallOption) (bool, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, methodValidateUser, wrapperspb.String(id), out, opts...); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

func (c *Client) AuthenticateUser(ctx context.Context, in *AuthRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		"email":    structpb.NewStringValue(in.Email),
		"password": structpb.NewStringValue(in.Password),
	}}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodAuthenticateUser, req, out, opts...); err != nil {
		return nil, err
	}
	return &AuthResponse{UserID: str(out, "user_id"), OK: boolean(out, "ok")}, nil
}
