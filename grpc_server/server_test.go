package grpcserver

import (
	"context"
	"net"
	"testing"
	"time"

	"user-admin/auth"
	"user-admin/fixtures"
	"user-admin/models"
	"user-admin/registry"
	"user-admin/repositories"
	"user-admin/services"

	consulapi "github.com/hashicorp/consul/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
	"gorm.io/gorm"
)

type grpcEnv struct {
	db     *gorm.DB
	conn   *grpc.ClientConn
	tokens *auth.TokenIssuer
	admin  *models.User
	plain  *models.User
}

func newGRPCEnv(t *testing.T) *grpcEnv {
	t.Helper()
	return newGRPCEnvWithRegistry(t, nil)
}

func newGRPCEnvWithRegistry(t *testing.T, reg registry.ServiceRegistry) *grpcEnv {
	t.Helper()
	db := fixtures.NewDB(t)
	admin := fixtures.CreateAdminUser(t, db)
	plain := fixtures.CreateUser(t, db, "Plain", "plain@example.com", models.RoleUser)

	log := zaptest.NewLogger(t)
	store := repositories.NewStore(db)
	tokens := auth.NewTokenIssuer([]byte("test-secret"), time.Hour, "user-admin")
	server, _ := NewServer(Deps{
		Users:    services.NewUserService(store, log),
		Auth:     services.NewAuthService(store, tokens, log),
		Tokens:   tokens,
		Registry: reg,
		Logger:   log,
	})

	lis := bufconn.Listen(1024 * 1024)
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &grpcEnv{db: db, conn: conn, tokens: tokens, admin: admin, plain: plain}
}

func (e *grpcEnv) invoke(t *testing.T, as *models.User, service, method string, in map[string]interface{}) (*structpb.Struct, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if as != nil {
		token, err := e.tokens.GenerateToken(as)
		require.NoError(t, err)
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
	}

	req, err := structpb.NewStruct(in)
	require.NoError(t, err)
	out := new(structpb.Struct)
	err = e.conn.Invoke(ctx, FullMethod(service, method), req, out)
	return out, err
}

func TestUserAdminRequiresToken(t *testing.T) {
	e := newGRPCEnv(t)

	_, err := e.invoke(t, nil, UserAdminServiceName, "ListUsers", nil)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestUserAdminForbidden(t *testing.T) {
	e := newGRPCEnv(t)
	before := fixtures.CountUsers(t, e.db)

	_, err := e.invoke(t, e.plain, UserAdminServiceName, "ListUsers", nil)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = e.invoke(t, e.plain, UserAdminServiceName, "CreateUser", map[string]interface{}{"name": "Eve"})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	// a missing id is not reported to callers without the permission
	_, err = e.invoke(t, e.plain, UserAdminServiceName, "DeleteUser", nil)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	assert.Equal(t, before, fixtures.CountUsers(t, e.db))
}

func TestUserAdminLifecycle(t *testing.T) {
	e := newGRPCEnv(t)

	out, err := e.invoke(t, e.admin, UserAdminServiceName, "CreateUser", map[string]interface{}{
		"name":             "Ana",
		"email":            "ana@example.com",
		"password":         "secret",
		"confirm_password": "secret",
		"roles":            []interface{}{models.RoleUser},
	})
	require.NoError(t, err)
	assert.Equal(t, "User created successfully", out.Fields["message"].GetStringValue())
	user := out.Fields["user"].GetStructValue()
	id := user.Fields["id"].GetNumberValue()
	assert.Equal(t, "ana@example.com", user.Fields["email"].GetStringValue())

	out, err = e.invoke(t, e.admin, UserAdminServiceName, "ListUsers", map[string]interface{}{"page": 1, "page_size": 10})
	require.NoError(t, err)
	assert.EqualValues(t, 3, out.Fields["total"].GetNumberValue())
	assert.Len(t, out.Fields["users"].GetListValue().GetValues(), 3)

	out, err = e.invoke(t, e.admin, UserAdminServiceName, "UpdateUser", map[string]interface{}{"id": id, "name": "Ana Maria"})
	require.NoError(t, err)
	assert.Equal(t, "User updated successfully.", out.Fields["message"].GetStringValue())
	user = out.Fields["user"].GetStructValue()
	assert.Equal(t, "Ana Maria", user.Fields["name"].GetStringValue())
	assert.Equal(t, "ana@example.com", user.Fields["email"].GetStringValue())

	out, err = e.invoke(t, e.admin, UserAdminServiceName, "ToggleEnabled", map[string]interface{}{"id": id})
	require.NoError(t, err)
	assert.Equal(t, "User disabled successfully", out.Fields["message"].GetStringValue())
	assert.False(t, out.Fields["user"].GetStructValue().Fields["enabled"].GetBoolValue())

	out, err = e.invoke(t, e.admin, UserAdminServiceName, "GetUser", map[string]interface{}{"id": id})
	require.NoError(t, err)
	assert.Equal(t, "Enable", out.Fields["toggle_action"].GetStringValue())

	out, err = e.invoke(t, e.admin, UserAdminServiceName, "DeleteUser", map[string]interface{}{"id": id})
	require.NoError(t, err)
	assert.Equal(t, "User deleted successfully", out.Fields["message"].GetStringValue())

	_, err = e.invoke(t, e.admin, UserAdminServiceName, "GetUser", map[string]interface{}{"id": id})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestUserAdminValidationDetails(t *testing.T) {
	e := newGRPCEnv(t)

	_, err := e.invoke(t, e.admin, UserAdminServiceName, "CreateUser", map[string]interface{}{
		"name":             "Dup",
		"email":            e.plain.Email,
		"password":         "secret",
		"confirm_password": "secret",
	})
	st := status.Convert(err)
	require.Equal(t, codes.InvalidArgument, st.Code())
	require.Len(t, st.Details(), 1)
	detail, ok := st.Details()[0].(*structpb.Struct)
	require.True(t, ok)
	assert.Equal(t, "The email has already been taken.",
		detail.Fields["email"].GetListValue().GetValues()[0].GetStringValue())

	_, err = e.invoke(t, e.admin, UserAdminServiceName, "UpdateUser", map[string]interface{}{"name": "x"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = e.invoke(t, e.admin, UserAdminServiceName, "CreateUser", map[string]interface{}{"roles": "Admin"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestAuthService(t *testing.T) {
	e := newGRPCEnv(t)

	out, err := e.invoke(t, nil, AuthServiceName, "Login", map[string]interface{}{
		"email":    e.plain.Email,
		"password": fixtures.DefaultPassword,
	})
	require.NoError(t, err)
	claims, err := e.tokens.ParseAndValidateToken(out.Fields["token"].GetStringValue())
	require.NoError(t, err)
	assert.Equal(t, e.plain.ID, claims.UserID)

	_, err = e.invoke(t, nil, AuthServiceName, "Login", map[string]interface{}{"email": e.plain.Email, "password": "bad"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = e.invoke(t, nil, AuthServiceName, "Login", map[string]interface{}{"email": " PLAIN@Example.com", "password": fixtures.DefaultPassword})
	require.NoError(t, err)

	_, err = e.invoke(t, nil, AuthServiceName, "CheckPermission", map[string]interface{}{"permission": models.PermManageUsers})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	out, err = e.invoke(t, e.admin, AuthServiceName, "CheckPermission", map[string]interface{}{"permission": models.PermManageUsers})
	require.NoError(t, err)
	assert.True(t, out.Fields["granted"].GetBoolValue())

	out, err = e.invoke(t, e.plain, AuthServiceName, "CheckPermission", map[string]interface{}{"permission": models.PermManageUsers})
	require.NoError(t, err)
	assert.False(t, out.Fields["granted"].GetBoolValue())
}

func TestHealthService(t *testing.T) {
	e := newGRPCEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := healthpb.NewHealthClient(e.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: UserAdminServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}

func TestLoginMissingFieldsCarryDetails(t *testing.T) {
	e := newGRPCEnv(t)

	_, err := e.invoke(t, nil, AuthServiceName, "Login", map[string]interface{}{"email": e.plain.Email})
	st := status.Convert(err)
	require.Equal(t, codes.InvalidArgument, st.Code())
	require.Len(t, st.Details(), 1)
	detail, ok := st.Details()[0].(*structpb.Struct)
	require.True(t, ok)
	assert.Equal(t, "The password field is required.",
		detail.Fields["password"].GetListValue().GetValues()[0].GetStringValue())
	assert.NotContains(t, detail.Fields, "email")
}

func TestRegistryServiceOnlyWithRegistry(t *testing.T) {
	e := newGRPCEnv(t)

	_, err := e.invoke(t, e.admin, RegistryServiceName, "Discover", map[string]interface{}{"name": "user-admin"})
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}

type stubRegistry struct {
	services map[string][]string
}

func (stubRegistry) Register(registry.Instance, *consulapi.AgentServiceCheck) error { return nil }

func (stubRegistry) Deregister(string) error { return nil }

func (r stubRegistry) Discover(name string, _ string) ([]string, error) {
	if _, ok := r.services[name]; !ok {
		return nil, registry.ErrNoInstances
	}
	return []string{"10.0.0.1:8080"}, nil
}

func (r stubRegistry) List() (map[string][]string, error) {
	return r.services, nil
}

func TestRegistryServiceRequiresToken(t *testing.T) {
	e := newGRPCEnvWithRegistry(t, stubRegistry{services: map[string][]string{"user-admin": {"http"}}})

	_, err := e.invoke(t, nil, RegistryServiceName, "Discover", map[string]interface{}{"name": "user-admin"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = e.invoke(t, nil, RegistryServiceName, "List", nil)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestRegistryService(t *testing.T) {
	e := newGRPCEnvWithRegistry(t, stubRegistry{services: map[string][]string{
		"user-admin": {"http", "grpc"},
		"consul":     {},
	}})

	out, err := e.invoke(t, e.plain, RegistryServiceName, "Discover", map[string]interface{}{"name": "user-admin"})
	require.NoError(t, err)
	assert.True(t, out.Fields["found"].GetBoolValue())
	assert.Equal(t, "10.0.0.1:8080", out.Fields["addresses"].GetListValue().GetValues()[0].GetStringValue())

	out, err = e.invoke(t, e.plain, RegistryServiceName, "Discover", map[string]interface{}{"name": "billing"})
	require.NoError(t, err)
	assert.False(t, out.Fields["found"].GetBoolValue())

	out, err = e.invoke(t, e.plain, RegistryServiceName, "List", nil)
	require.NoError(t, err)
	listed := out.Fields["services"].GetStructValue().GetFields()
	require.Contains(t, listed, "user-admin")
	require.Contains(t, listed, "consul")
	assert.Len(t, listed["user-admin"].GetListValue().GetValues(), 2)
}
