package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Every RPC here takes and returns a google.protobuf.Struct, so the service
// descriptors are declared directly instead of generated from a .proto file.

const (
	UserAdminServiceName = "useradmin.v1.UserAdmin"
	AuthServiceName      = "useradmin.v1.Auth"
	RegistryServiceName  = "useradmin.v1.Registry"
)

// FullMethod returns the "/service/method" name used on the wire.
func FullMethod(service, method string) string {
	return "/" + service + "/" + method
}

type structCall func(srv interface{}, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call structCall) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv, ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func method(service, name string, call structCall) grpc.MethodDesc {
	return grpc.MethodDesc{MethodName: name, Handler: unaryHandler(FullMethod(service, name), call)}
}

// UserAdminServer is the gRPC face of services.UserService.
type UserAdminServer interface {
	ListUsers(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	GetUser(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	CreateUser(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	UpdateUser(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	ToggleEnabled(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	DeleteUser(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var userAdminServiceDesc = grpc.ServiceDesc{
	ServiceName: UserAdminServiceName,
	HandlerType: (*UserAdminServer)(nil),
	Methods: []grpc.MethodDesc{
		method(UserAdminServiceName, "ListUsers", func(srv interface{}, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
			return srv.(UserAdminServer).ListUsers(ctx, in)
		}),
		method(UserAdminServiceName, "GetUser", func(srv interface{}, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
			return srv.(UserAdminServer).GetUser(ctx, in)
		}),
		method(UserAdminServiceName, "CreateUser", func(srv interface{}, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
			return srv.(UserAdminServer).CreateUser(ctx, in)
		}),
		method(UserAdminServiceName, "UpdateUser", func(srv interface{}, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
			return srv.(UserAdminServer).UpdateUser(ctx, in)
		}),
		method(UserAdminServiceName, "ToggleEnabled", func(srv interface{}, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
			return srv.(UserAdminServer).ToggleEnabled(ctx, in)
		}),
		method(UserAdminServiceName, "DeleteUser", func(srv interface{}, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
			return srv.(UserAdminServer).DeleteUser(ctx, in)
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "useradmin/v1/user_admin.proto",
}

// AuthServer issues tokens and answers permission checks.
type AuthServer interface {
	Login(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	CheckPermission(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var authServiceDesc = grpc.ServiceDesc{
	ServiceName: AuthServiceName,
	HandlerType: (*AuthServer)(nil),
	Methods: []grpc.MethodDesc{
		method(AuthServiceName, "Login", func(srv interface{}, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
			return srv.(AuthServer).Login(ctx, in)
		}),
		method(AuthServiceName, "CheckPermission", func(srv interface{}, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
			return srv.(AuthServer).CheckPermission(ctx, in)
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "useradmin/v1/auth.proto",
}

// RegistryServer exposes service discovery to other services.
type RegistryServer interface {
	Discover(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	List(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var registryServiceDesc = grpc.ServiceDesc{
	ServiceName: RegistryServiceName,
	HandlerType: (*RegistryServer)(nil),
	Methods: []grpc.MethodDesc{
		method(RegistryServiceName, "Discover", func(srv interface{}, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
			return srv.(RegistryServer).Discover(ctx, in)
		}),
		method(RegistryServiceName, "List", func(srv interface{}, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
			return srv.(RegistryServer).List(ctx, in)
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "useradmin/v1/registry.proto",
}
