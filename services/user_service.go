package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"user-admin/auth"
	"user-admin/models"
	"user-admin/repositories"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Notices returned alongside successful writes.
const (
	MsgUserCreated  = "User created successfully"
	MsgUserUpdated  = "User updated successfully."
	MsgUserDeleted  = "User deleted successfully"
	MsgUserEnabled  = "User enabled successfully"
	MsgUserDisabled = "User disabled successfully"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// UserService is the user-management core. Every method takes the id of the
// requesting user and fails with ErrForbidden, before looking at its other
// arguments, unless that user is enabled and holds the manage-users permission.
type UserService interface {
	// Authorize runs the guard alone, for callers that must reject a request
	// before it reaches an operation.
	Authorize(ctx context.Context, actorID uint) error
	ListUsers(ctx context.Context, actorID uint, page int, pageSize int) (*UserPage, error)
	GetUser(ctx context.Context, actorID uint, userID uint) (*models.User, error)
	// CreateForm returns the role names a new user can be given.
	CreateForm(ctx context.Context, actorID uint) (*UserForm, error)
	EditForm(ctx context.Context, actorID uint, userID uint) (*UserForm, error)
	CreateUser(ctx context.Context, actorID uint, input *CreateUserInput) (*models.User, error)
	UpdateUser(ctx context.Context, actorID uint, userID uint, input *UpdateUserInput) (*models.User, error)
	// ToggleEnabled sets enabled_at to now when it is null and clears it otherwise.
	ToggleEnabled(ctx context.Context, actorID uint, userID uint) (*models.User, error)
	DeleteUser(ctx context.Context, actorID uint, userID uint) error
}

// --- Structs for Input/Output ---
type CreateUserInput struct {
	Name            string   `json:"name" validate:"required,max=255"`
	Email           string   `json:"email" validate:"required,email,max=191"`
	Password        string   `json:"password" validate:"required"`
	ConfirmPassword string   `json:"confirm_password" validate:"required,eqfield=Password"`
	Roles           []string `json:"roles" validate:"dive,required"`
}

// UpdateUserInput changes only the fields that are non-nil. Roles, when
// present, replaces the user's whole role set; an empty list removes all roles.
type UpdateUserInput struct {
	Name            *string   `json:"name" validate:"omitempty,max=255"`
	Email           *string   `json:"email" validate:"omitempty,email,max=191"`
	Password        *string   `json:"password"`
	ConfirmPassword *string   `json:"confirm_password"`
	Roles           *[]string `json:"roles" validate:"omitempty,dive,required"`
}

type UserPage struct {
	Users    []models.User
	Total    int64
	Page     int
	PageSize int
	LastPage int
}

type UserForm struct {
	User  *models.User
	Roles []string
}

type Option func(*userService)

// WithClock replaces time.Now when stamping enabled_at.
func WithClock(now func() time.Time) Option {
	return func(s *userService) { s.now = now }
}

// WithDefaultPageSize sets the page size used when a caller passes none.
func WithDefaultPageSize(n int) Option {
	return func(s *userService) {
		if n > 0 {
			s.defaultPageSize = n
		}
	}
}

type userService struct {
	store           repositories.Store
	log             *zap.Logger
	now             func() time.Time
	defaultPageSize int
}

var _ UserService = (*userService)(nil)

// NewUserService creates a new UserService instance
func NewUserService(store repositories.Store, log *zap.Logger, opts ...Option) UserService {
	s := &userService{
		store:           store,
		log:             log.Named("users"),
		now:             time.Now,
		defaultPageSize: DefaultPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *userService) Authorize(ctx context.Context, actorID uint) error {
	return s.authorize(ctx, actorID)
}

// authorize is the guard at the top of every operation.
func (s *userService) authorize(ctx context.Context, actorID uint) error {
	if actorID == 0 {
		return ErrForbidden
	}

	actor, err := s.store.Users().FindByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrForbidden
		}
		return fmt.Errorf("loading requesting user: %w", err)
	}
	if !actor.IsEnabled() {
		return ErrForbidden
	}

	granted, err := auth.UserHasPermissions(ctx, s.store.Roles(), actorID, models.PermManageUsers)
	if err != nil {
		return err
	}
	if !granted {
		s.log.Debug("Permission denied", zap.Uint("actor_id", actorID), zap.String("permission", models.PermManageUsers))
		return ErrForbidden
	}
	return nil
}

func findUser(ctx context.Context, users repositories.UserRepository, id uint) (*models.User, error) {
	user, err := users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading user %d: %w", id, err)
	}
	return user, nil
}

// resolveRoles records unknown names in verr and loads the known roles.
func resolveRoles(ctx context.Context, roles repositories.RoleRepository, names []string, verr *ValidationError) ([]models.Role, error) {
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		ok, err := roles.RoleExists(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("checking role %q: %w", name, err)
		}
		if !ok {
			verr.add("roles", fmt.Sprintf("The selected role %s is invalid.", name))
		}
	}
	if verr.has("roles") {
		return nil, nil
	}
	found, err := roles.FindByNames(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("loading roles: %w", err)
	}
	return found, nil
}

const msgEmailTaken = "The email has already been taken."

// normalizeEmail makes addresses compare case-insensitively.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// emailConflict turns a unique-index violation from a concurrent writer into
// the same field error the lookup gives.
func emailConflict(err error) (*ValidationError, bool) {
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, false
	}
	verr := &ValidationError{}
	verr.add("email", msgEmailTaken)
	return verr, true
}

// checkEmailFree records a conflict unless email is unused or owned by ownerID.
func checkEmailFree(ctx context.Context, users repositories.UserRepository, email string, ownerID uint, verr *ValidationError) error {
	existing, err := users.FindByEmail(ctx, email)
	if err == nil {
		if existing.ID != ownerID {
			verr.add("email", msgEmailTaken)
		}
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return fmt.Errorf("checking email uniqueness: %w", err)
}

func (s *userService) ListUsers(ctx context.Context, actorID uint, page int, pageSize int) (*UserPage, error) {
	if err := s.authorize(ctx, actorID); err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = s.defaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	total, err := s.store.Users().Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting users: %w", err)
	}
	lastPage := int((total + int64(pageSize) - 1) / int64(pageSize))
	if lastPage < 1 {
		lastPage = 1
	}
	if page > lastPage {
		return &UserPage{Users: []models.User{}, Total: total, Page: page, PageSize: pageSize, LastPage: lastPage}, nil
	}

	users, total, err := s.store.Users().ListPage(ctx, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return &UserPage{Users: users, Total: total, Page: page, PageSize: pageSize, LastPage: lastPage}, nil
}

func (s *userService) GetUser(ctx context.Context, actorID uint, userID uint) (*models.User, error) {
	if err := s.authorize(ctx, actorID); err != nil {
		return nil, err
	}
	return findUser(ctx, s.store.Users(), userID)
}

func (s *userService) CreateForm(ctx context.Context, actorID uint) (*UserForm, error) {
	if err := s.authorize(ctx, actorID); err != nil {
		return nil, err
	}
	roles, err := s.store.Roles().ListNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing roles: %w", err)
	}
	return &UserForm{Roles: roles}, nil
}

func (s *userService) EditForm(ctx context.Context, actorID uint, userID uint) (*UserForm, error) {
	if err := s.authorize(ctx, actorID); err != nil {
		return nil, err
	}
	user, err := findUser(ctx, s.store.Users(), userID)
	if err != nil {
		return nil, err
	}
	roles, err := s.store.Roles().ListNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing roles: %w", err)
	}
	return &UserForm{User: user, Roles: roles}, nil
}

func (s *userService) CreateUser(ctx context.Context, actorID uint, input *CreateUserInput) (*models.User, error) {
	if err := s.authorize(ctx, actorID); err != nil {
		return nil, err
	}

	input.Name = strings.TrimSpace(input.Name)
	input.Email = normalizeEmail(input.Email)

	verr := &ValidationError{}
	if err := validateStruct(input, verr); err != nil {
		return nil, err
	}
	if !verr.has("password") && strings.TrimSpace(input.Password) == "" {
		verr.add("password", "The password field is required.")
	}

	var created *models.User
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		if !verr.has("email") {
			if err := checkEmailFree(ctx, tx.Users(), input.Email, 0, verr); err != nil {
				return err
			}
		}
		roles, err := resolveRoles(ctx, tx.Roles(), input.Roles, verr)
		if err != nil {
			return err
		}
		if err := verr.orNil(); err != nil {
			return err
		}

		hashed, err := auth.HashPassword(input.Password)
		if err != nil {
			return fmt.Errorf("could not hash password: %w", err)
		}
		user := &models.User{Name: input.Name, Email: input.Email, Password: hashed}
		if err := tx.Users().Create(ctx, user); err != nil {
			if verr, ok := emailConflict(err); ok {
				return verr
			}
			return fmt.Errorf("failed to create user: %w", err)
		}
		if len(roles) > 0 {
			if err := tx.Users().ReplaceRoles(ctx, user, roles); err != nil {
				return fmt.Errorf("failed to assign roles: %w", err)
			}
		}

		created, err = findUser(ctx, tx.Users(), user.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("User created", zap.Uint("actor_id", actorID), zap.Uint("user_id", created.ID), zap.Strings("roles", created.RoleNames()))
	return created, nil
}

func (s *userService) UpdateUser(ctx context.Context, actorID uint, userID uint, input *UpdateUserInput) (*models.User, error) {
	if err := s.authorize(ctx, actorID); err != nil {
		return nil, err
	}

	var updated *models.User
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		user, err := findUser(ctx, tx.Users(), userID)
		if err != nil {
			return err
		}

		verr := &ValidationError{}
		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			input.Name = &name
			if name == "" {
				verr.add("name", "The name field is required.")
			}
		}
		if input.Email != nil {
			email := normalizeEmail(*input.Email)
			input.Email = &email
		}
		if err := validateStruct(input, verr); err != nil {
			return err
		}
		if input.Password != nil {
			switch {
			case strings.TrimSpace(*input.Password) == "":
				verr.add("password", "The password field is required.")
			case input.ConfirmPassword == nil || *input.ConfirmPassword != *input.Password:
				verr.add("confirm_password", "The password confirmation does not match.")
			}
		}
		if input.Email != nil && !verr.has("email") {
			if err := checkEmailFree(ctx, tx.Users(), *input.Email, user.ID, verr); err != nil {
				return err
			}
		}
		var roles []models.Role
		if input.Roles != nil {
			if roles, err = resolveRoles(ctx, tx.Roles(), *input.Roles, verr); err != nil {
				return err
			}
		}
		if err := verr.orNil(); err != nil {
			return err
		}

		// --- Update Fields ---
		needsSave := false
		if input.Name != nil && user.Name != *input.Name {
			user.Name = *input.Name
			needsSave = true
		}
		if input.Email != nil && user.Email != *input.Email {
			user.Email = *input.Email
			needsSave = true
		}
		if input.Password != nil {
			hashed, err := auth.HashPassword(*input.Password)
			if err != nil {
				return fmt.Errorf("could not hash new password: %w", err)
			}
			user.Password = hashed
			needsSave = true
		}
		if needsSave {
			if err := tx.Users().Save(ctx, user); err != nil {
				if verr, ok := emailConflict(err); ok {
					return verr
				}
				return fmt.Errorf("failed to save user updates: %w", err)
			}
		}
		if input.Roles != nil {
			if err := tx.Users().ReplaceRoles(ctx, user, roles); err != nil {
				return fmt.Errorf("failed to replace roles: %w", err)
			}
		}

		updated, err = findUser(ctx, tx.Users(), user.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("User updated", zap.Uint("actor_id", actorID), zap.Uint("user_id", userID))
	return updated, nil
}

func (s *userService) ToggleEnabled(ctx context.Context, actorID uint, userID uint) (*models.User, error) {
	if err := s.authorize(ctx, actorID); err != nil {
		return nil, err
	}

	var toggled *models.User
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		user, err := findUser(ctx, tx.Users(), userID)
		if err != nil {
			return err
		}

		var at *time.Time
		if user.IsEnabled() {
			now := s.now()
			at = &now
		}
		if err := tx.Users().SetEnabledAt(ctx, user.ID, at); err != nil {
			return fmt.Errorf("failed to toggle user: %w", err)
		}
		user.EnabledAt = at
		toggled = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("User toggled", zap.Uint("actor_id", actorID), zap.Uint("user_id", userID), zap.Bool("enabled", toggled.IsEnabled()))
	return toggled, nil
}

func (s *userService) DeleteUser(ctx context.Context, actorID uint, userID uint) error {
	if err := s.authorize(ctx, actorID); err != nil {
		return err
	}

	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		user, err := findUser(ctx, tx.Users(), userID)
		if err != nil {
			return err
		}
		if err := tx.Users().Delete(ctx, user); err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("User deleted", zap.Uint("actor_id", actorID), zap.Uint("user_id", userID))
	return nil
}
