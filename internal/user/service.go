package user

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	pb "github.com/MikeMC777/ecom-ledger/internal/userpb"
)

type Service struct {
	repo Repository
	log  *zap.Logger
}

func NewService(repo Repository, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, log: log}
}

var _ pb.UserServiceServer = (*Service)(nil)

func toPB(u *User) *pb.User {
	return &pb.User{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Phone:     u.Phone,
		Role:      u.Role,
		IsActive:  u.IsActive,
		IsBlocked: u.IsBlocked,
		CreatedAt: u.CreatedAt,
	}
}

// CreateUser
func (s *Service) CreateUser(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := pb.CreateUserRequestFromStruct(in)
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return nil, status.Error(codes.InvalidArgument, "username, email and password are required")
	}
	role := strings.ToLower(req.Role)
	switch role {
	case "":
		role = RoleUser
	case RoleUser, RoleAdmin:
	default:
		return nil, status.Errorf(codes.InvalidArgument, "unknown role %q", req.Role)
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "hash error: %v", err)
	}
	u := &User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        strings.ToLower(req.Email),
		Phone:        req.Phone,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, ErrAlreadyExist) {
			return nil, status.Error(codes.AlreadyExists, "user exists (username/email)")
		}
		s.log.Error("create_user_failed", zap.Error(err))
		return nil, status.Errorf(codes.Internal, "create error: %v", err)
	}
	s.log.Info("user_created", zap.String("user_id", u.ID), zap.String("role", u.Role))
	return toPB(u).ToStruct(), nil
}

// GetUser
func (s *Service) GetUser(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	if in.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	u, err := s.repo.GetByID(ctx, in.GetValue())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, status.Error(codes.NotFound, "user not found")
		}
		return nil, status.Errorf(codes.Internal, "get error: %v", err)
	}
	return toPB(u).ToStruct(), nil
}

// ValidateUser reports whether the id exists and may act.
func (s *Service) ValidateUser(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	if in.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	u, err := s.repo.GetByID(ctx, in.GetValue())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return wrapperspb.Bool(false), nil
		}
		return nil, status.Errorf(codes.Internal, "validate error: %v", err)
	}
	return wrapperspb.Bool(u.IsActive && !u.IsBlocked), nil
}

func (s *Service) AuthenticateUser(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	email := strings.ToLower(strings.TrimSpace(in.GetFields()["email"].GetStringValue()))
	password := in.GetFields()["password"].GetStringValue()
	if email == "" || password == "" {
		return nil, status.Error(codes.InvalidArgument, "email and password are required")
	}
	deny := &structpb.Struct{Fields: map[string]*structpb.Value{"ok": structpb.NewBoolValue(false)}}

	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return deny, nil
		}
		return nil, status.Errorf(codes.Internal, "auth error: %v", err)
	}
	if !u.IsActive || u.IsBlocked || !CheckPassword(u.PasswordHash, password) {
		return deny, nil
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"ok":      structpb.NewBoolValue(true),
		"user_id": structpb.NewStringValue(u.ID),
	}}, nil
}
