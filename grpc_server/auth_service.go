package grpcserver

import (
	"context"

	"user-admin/services"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type authServer struct {
	authService services.AuthService
	log         *zap.Logger
}

func NewAuthServer(as services.AuthService, log *zap.Logger) AuthServer {
	return &authServer{authService: as, log: log.Named("grpc.auth")}
}

func (s *authServer) Login(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	email, _ := stringField(in, "email")
	password, _ := stringField(in, "password")
	token, user, err := s.authService.Login(ctx, email, password)
	if err != nil {
		st := toStatus(err)
		if status.Code(st) == codes.Internal {
			s.log.Error("Login failed", zap.Error(err))
		}
		return nil, st
	}
	return newStruct(map[string]interface{}{"token": token, "user": userMap(user)})
}

// CheckPermission answers for the caller identified by the bearer token.
func (s *authServer) CheckPermission(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	permission, _ := stringField(in, "permission")
	if permission == "" {
		return nil, status.Error(codes.InvalidArgument, "permission is required")
	}

	granted, err := s.authService.CheckPermission(ctx, requestingUser(ctx), permission)
	if err != nil {
		s.log.Error("Error checking permissions", zap.String("permission", permission), zap.Error(err))
		return nil, status.Error(codes.Internal, "error checking permissions")
	}
	return newStruct(map[string]interface{}{"granted": granted})
}
