package services

import (
	"context"
	"errors"
	"fmt"

	"user-admin/auth"
	"user-admin/models"
	"user-admin/repositories"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AuthService exchanges credentials for access tokens and answers
// permission queries for already authenticated callers.
type AuthService interface {
	Login(ctx context.Context, email, password string) (string, *models.User, error)
	CheckPermission(ctx context.Context, userID uint, permission string) (bool, error)
}

type authService struct {
	store  repositories.Store
	tokens *auth.TokenIssuer
	log    *zap.Logger
}

func NewAuthService(store repositories.Store, tokens *auth.TokenIssuer, log *zap.Logger) AuthService {
	return &authService{store: store, tokens: tokens, log: log.Named("auth")}
}

type loginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Login fails with a *ValidationError when either credential is blank.
func (s *authService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	in := loginInput{Email: normalizeEmail(email), Password: password}
	verr := &ValidationError{}
	if err := validateStruct(&in, verr); err != nil {
		return "", nil, err
	}
	if err := verr.orNil(); err != nil {
		return "", nil, err
	}

	user, err := s.store.Users().FindByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("looking up user: %w", err)
	}
	if err := auth.VerifyPassword(user.Password, password); err != nil {
		return "", nil, ErrInvalidCredentials
	}
	if !user.IsEnabled() {
		s.log.Info("Login refused for disabled account", zap.Uint("user_id", user.ID))
		return "", nil, ErrAccountDisabled
	}

	token, err := s.tokens.GenerateToken(user)
	if err != nil {
		return "", nil, fmt.Errorf("could not generate token: %w", err)
	}
	return token, user, nil
}

// CheckPermission reports false for unknown and disabled users.
func (s *authService) CheckPermission(ctx context.Context, userID uint, permission string) (bool, error) {
	user, err := s.store.Users().FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("looking up user: %w", err)
	}
	if !user.IsEnabled() {
		return false, nil
	}
	return auth.UserHasPermissions(ctx, s.store.Roles(), userID, permission)
}
