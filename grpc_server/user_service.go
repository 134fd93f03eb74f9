package grpcserver

import (
	"context"

	"user-admin/interceptors"
	"user-admin/services"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// userAdminServer implements UserAdminServer on top of services.UserService.
type userAdminServer struct {
	userService services.UserService
	log         *zap.Logger
}

// NewUserAdminServer creates a new gRPC user admin server.
func NewUserAdminServer(us services.UserService, log *zap.Logger) UserAdminServer {
	return &userAdminServer{userService: us, log: log.Named("grpc.users")}
}

func (s *userAdminServer) fail(err error) error {
	st := toStatus(err)
	if status.Code(st) == codes.Internal {
		s.log.Error("Unhandled service error", zap.Error(err))
	}
	return st
}

// requestingUser returns the id set by the auth interceptor, or 0.
func requestingUser(ctx context.Context) uint {
	id, _ := interceptors.GetUserIDFromContext(ctx)
	return id
}

// badRequest hides argument errors from callers that fail the guard.
func (s *userAdminServer) badRequest(ctx context.Context, err error) error {
	if aerr := s.userService.Authorize(ctx, requestingUser(ctx)); aerr != nil {
		return s.fail(aerr)
	}
	return err
}

func (s *userAdminServer) ListUsers(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	page, _ := intField(in, "page")
	pageSize, _ := intField(in, "page_size")

	result, err := s.userService.ListUsers(ctx, requestingUser(ctx), page, pageSize)
	if err != nil {
		return nil, s.fail(err)
	}

	users := make([]interface{}, len(result.Users))
	for i := range result.Users {
		users[i] = userMap(&result.Users[i])
	}
	return newStruct(map[string]interface{}{
		"users":     users,
		"total":     result.Total,
		"page":      result.Page,
		"page_size": result.PageSize,
		"last_page": result.LastPage,
	})
}

func (s *userAdminServer) GetUser(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := userID(in)
	if err != nil {
		return nil, s.badRequest(ctx, err)
	}
	user, err := s.userService.GetUser(ctx, requestingUser(ctx), id)
	if err != nil {
		return nil, s.fail(err)
	}
	return newStruct(userMap(user))
}

func (s *userAdminServer) CreateUser(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	input := &services.CreateUserInput{}
	input.Name, _ = stringField(in, "name")
	input.Email, _ = stringField(in, "email")
	input.Password, _ = stringField(in, "password")
	input.ConfirmPassword, _ = stringField(in, "confirm_password")
	roles, _, err := stringList(in, "roles")
	if err != nil {
		return nil, s.badRequest(ctx, status.Error(codes.InvalidArgument, err.Error()))
	}
	input.Roles = roles

	user, err := s.userService.CreateUser(ctx, requestingUser(ctx), input)
	if err != nil {
		return nil, s.fail(err)
	}
	return messageWithUser(services.MsgUserCreated, user)
}

func (s *userAdminServer) UpdateUser(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := userID(in)
	if err != nil {
		return nil, s.badRequest(ctx, err)
	}

	input := &services.UpdateUserInput{
		Name:            optionalString(in, "name"),
		Email:           optionalString(in, "email"),
		Password:        optionalString(in, "password"),
		ConfirmPassword: optionalString(in, "confirm_password"),
	}
	roles, present, err := stringList(in, "roles")
	if err != nil {
		return nil, s.badRequest(ctx, status.Error(codes.InvalidArgument, err.Error()))
	}
	if present {
		input.Roles = &roles
	}

	user, err := s.userService.UpdateUser(ctx, requestingUser(ctx), id, input)
	if err != nil {
		return nil, s.fail(err)
	}
	return messageWithUser(services.MsgUserUpdated, user)
}

func (s *userAdminServer) ToggleEnabled(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := userID(in)
	if err != nil {
		return nil, s.badRequest(ctx, err)
	}
	user, err := s.userService.ToggleEnabled(ctx, requestingUser(ctx), id)
	if err != nil {
		return nil, s.fail(err)
	}
	message := services.MsgUserEnabled
	if !user.IsEnabled() {
		message = services.MsgUserDisabled
	}
	return messageWithUser(message, user)
}

func (s *userAdminServer) DeleteUser(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := userID(in)
	if err != nil {
		return nil, s.badRequest(ctx, err)
	}
	if err := s.userService.DeleteUser(ctx, requestingUser(ctx), id); err != nil {
		return nil, s.fail(err)
	}
	return messageWithUser(services.MsgUserDeleted, nil)
}
