package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"user-admin/models"
	"user-admin/repositories"

	restful "github.com/emicklei/go-restful/v3"
	"github.com/golang-jwt/jwt/v4"
)

// UserIDAttribute is the request attribute AuthFilter stores the caller's id under.
const UserIDAttribute = "user_id"

// CustomClaims are the claims carried by access tokens.
type CustomClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and validates HS256 access tokens.
type TokenIssuer struct {
	key    []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewTokenIssuer(secret []byte, ttl time.Duration, issuer string) *TokenIssuer {
	return &TokenIssuer{key: secret, ttl: ttl, issuer: issuer, now: time.Now}
}

// GenerateToken creates a new JWT for the given user.
func (t *TokenIssuer) GenerateToken(user *models.User) (string, error) {
	now := t.now()
	claims := &CustomClaims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    t.issuer,
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			Audience:  []string{t.issuer + "-users"},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.key)
}

// ParseAndValidateToken : used by the REST filter and the gRPC interceptor
func (t *TokenIssuer) ParseAndValidateToken(tokenString string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.key, nil
	})

	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) {
			if ve.Errors&jwt.ValidationErrorMalformed != 0 {
				return nil, errors.New("malformed token")
			} else if ve.Errors&(jwt.ValidationErrorExpired|jwt.ValidationErrorNotValidYet) != 0 {
				return nil, errors.New("token is either expired or not active yet")
			} else if ve.Errors&jwt.ValidationErrorSignatureInvalid != 0 {
				return nil, errors.New("invalid token signature")
			}
		}
		return nil, fmt.Errorf("couldn't handle this token: %w", err)
	}

	if claims, ok := token.Claims.(*CustomClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("authorization header required")
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", errors.New("invalid authorization header format")
	}
	return parts[1], nil
}

// AuthFilter creates a go-restful FilterFunction for JWT authentication.
func AuthFilter(tokens *TokenIssuer) restful.FilterFunction {
	return func(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
		tokenString, err := BearerToken(req.HeaderParameter("Authorization"))
		if err != nil {
			_ = resp.WriteHeaderAndJson(http.StatusUnauthorized, map[string]string{"message": err.Error()}, restful.MIME_JSON)
			return
		}

		claims, err := tokens.ParseAndValidateToken(tokenString)
		if err != nil {
			_ = resp.WriteHeaderAndJson(http.StatusUnauthorized, map[string]string{"message": err.Error()}, restful.MIME_JSON)
			return
		}

		req.SetAttribute(UserIDAttribute, claims.UserID)
		chain.ProcessFilter(req, resp)
	}
}

// RequestingUserID returns the caller id stored by AuthFilter.
func RequestingUserID(req *restful.Request) (uint, bool) {
	userID, ok := req.Attribute(UserIDAttribute).(uint)
	return userID, ok
}

// UserHasPermissions checks if the user has all required permissions
func UserHasPermissions(ctx context.Context, roles repositories.RoleRepository, userID uint, requiredPermissions ...string) (bool, error) {
	if len(requiredPermissions) == 0 {
		return true, nil
	}

	userPermissions, err := roles.PermissionsOfUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("checking permissions for user %d: %w", userID, err)
	}

	for _, reqPerm := range requiredPermissions {
		if _, ok := userPermissions[reqPerm]; !ok {
			return false, nil
		}
	}
	return true, nil
}
