package grpcserver

import (
	"user-admin/auth"
	"user-admin/interceptors"
	"user-admin/registry"
	"user-admin/services"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// PublicMethods skip token authentication.
var PublicMethods = []string{
	FullMethod(AuthServiceName, "Login"),
	healthpb.Health_Check_FullMethodName,
}

// Deps are the collaborators NewServer wires into the gRPC services.
type Deps struct {
	Users  services.UserService
	Auth   services.AuthService
	Tokens *auth.TokenIssuer
	// Registry is optional; the Registry service is only exposed when set.
	Registry registry.ServiceRegistry
	Logger   *zap.Logger
}

// NewServer builds the gRPC server with logging and auth interceptors and the
// standard health service. The returned health server starts as SERVING.
func NewServer(deps Deps, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	opts = append(opts, grpc.ChainUnaryInterceptor(
		interceptors.ZapLoggingInterceptor(deps.Logger.Named("grpc")),
		interceptors.AuthInterceptor(deps.Tokens, PublicMethods...),
	))
	s := grpc.NewServer(opts...)

	s.RegisterService(&userAdminServiceDesc, NewUserAdminServer(deps.Users, deps.Logger))
	s.RegisterService(&authServiceDesc, NewAuthServer(deps.Auth, deps.Logger))
	if deps.Registry != nil {
		s.RegisterService(&registryServiceDesc, NewRegistryServer(deps.Registry, deps.Logger))
	}

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(UserAdminServiceName, healthpb.HealthCheckResponse_SERVING)
	return s, hs
}
