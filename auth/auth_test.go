package auth_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"user-admin/auth"
	"user-admin/fixtures"
	"user-admin/models"
	"user-admin/repositories"

	restful "github.com/emicklei/go-restful/v3"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testSecret = []byte("test-secret")

func newIssuer() *auth.TokenIssuer {
	return auth.NewTokenIssuer(testSecret, time.Hour, "user-admin")
}

func signed(t *testing.T, method jwt.SigningMethod, key interface{}, claims *auth.CustomClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestGenerateToken(t *testing.T) {
	tokens := newIssuer()
	user := &models.User{Model: gorm.Model{ID: 7}, Email: "ana@example.com"}

	token, err := tokens.GenerateToken(user)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := tokens.ParseAndValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "ana@example.com", claims.Email)
	assert.Equal(t, "user-admin", claims.Issuer)
	assert.Equal(t, "7", claims.Subject)
}

func TestParseAndValidateTokenFailures(t *testing.T) {
	tokens := newIssuer()
	past := time.Now().Add(-2 * time.Hour)

	t.Run("Malformed", func(t *testing.T) {
		_, err := tokens.ParseAndValidateToken("not-a-token")
		assert.EqualError(t, err, "malformed token")
	})

	t.Run("Expired", func(t *testing.T) {
		token := signed(t, jwt.SigningMethodHS256, testSecret, &auth.CustomClaims{
			UserID: 1,
			RegisteredClaims: jwt.RegisteredClaims{
				IssuedAt:  jwt.NewNumericDate(past),
				ExpiresAt: jwt.NewNumericDate(past.Add(time.Hour)),
			},
		})
		_, err := tokens.ParseAndValidateToken(token)
		assert.EqualError(t, err, "token is either expired or not active yet")
	})

	t.Run("Wrong secret", func(t *testing.T) {
		token := signed(t, jwt.SigningMethodHS256, []byte("other-secret"), &auth.CustomClaims{UserID: 1})
		_, err := tokens.ParseAndValidateToken(token)
		assert.EqualError(t, err, "invalid token signature")
	})

	t.Run("Unsigned", func(t *testing.T) {
		token := signed(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, &auth.CustomClaims{UserID: 1})
		_, err := tokens.ParseAndValidateToken(token)
		assert.Error(t, err)
	})
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		token   string
		wantErr string
	}{
		{header: "Bearer abc", token: "abc"},
		{header: "bearer abc", token: "abc"},
		{header: "", wantErr: "authorization header required"},
		{header: "abc", wantErr: "invalid authorization header format"},
		{header: "Basic abc", wantErr: "invalid authorization header format"},
		{header: "Bearer ", wantErr: "invalid authorization header format"},
	}
	for _, tt := range tests {
		token, err := auth.BearerToken(tt.header)
		if tt.wantErr != "" {
			assert.EqualError(t, err, tt.wantErr, tt.header)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.token, token)
	}
}

func protectedContainer(tokens *auth.TokenIssuer) *restful.Container {
	ws := new(restful.WebService)
	ws.Path("/protected").Filter(auth.AuthFilter(tokens))
	ws.Route(ws.GET("").To(func(req *restful.Request, resp *restful.Response) {
		id, ok := auth.RequestingUserID(req)
		if !ok {
			resp.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = fmt.Fprintf(resp, "user %d", id)
	}))
	c := restful.NewContainer()
	c.Add(ws)
	return c
}

func TestAuthFilter(t *testing.T) {
	tokens := newIssuer()
	c := protectedContainer(tokens)

	// Test case 1: No token
	t.Run("No token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		w := httptest.NewRecorder()
		c.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "authorization header required")
	})

	// Test case 2: Invalid token
	t.Run("Invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer garbage")
		w := httptest.NewRecorder()
		c.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "malformed token")
	})

	// Test case 3: Valid token
	t.Run("Valid token", func(t *testing.T) {
		token, err := tokens.GenerateToken(&models.User{Model: gorm.Model{ID: 3}})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		c.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "user 3", w.Body.String())
	})
}

func TestUserHasPermissions(t *testing.T) {
	db := fixtures.NewDB(t)
	fixtures.SeedRoles(t, db)
	roles := repositories.NewRoleRepository(db)
	ctx := context.Background()

	admin := fixtures.CreateUser(t, db, "Admin", "admin@example.com", models.RoleAdmin)
	plain := fixtures.CreateUser(t, db, "Plain", "plain@example.com", models.RoleUser)

	ok, err := auth.UserHasPermissions(ctx, roles, admin.ID, models.PermManageUsers, models.PermReadProfile)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = auth.UserHasPermissions(ctx, roles, plain.ID, models.PermManageUsers)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = auth.UserHasPermissions(ctx, roles, plain.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = auth.UserHasPermissions(ctx, roles, 9999, models.PermManageUsers)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
