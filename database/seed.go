package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"user-admin/auth"
	"user-admin/config"
	"user-admin/models"
	"user-admin/repositories"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type permissionSeed struct {
	Name        string
	Description string
}

var seedPermissions = []permissionSeed{
	{Name: models.PermManageUsers, Description: "Ability to list, create, edit, toggle and delete users"},
	{Name: models.PermManageRoles, Description: "Ability to manage roles and permissions"},
	{Name: models.PermReadProfile, Description: "Ability to read own user profile"},
}

type roleSeed struct {
	Name        string
	Description string
	// Permissions is nil for roles that receive every seeded permission.
	Permissions []string
}

var seedRoles = []roleSeed{
	{Name: models.RoleAdmin, Description: "Administrator with full access"},
	{Name: models.RoleUser, Description: "Standard user", Permissions: []string{models.PermReadProfile}},
}

// SeedRolesAndPermissions creates the base permissions and roles. The Admin
// role is synced with every permission that exists at seed time. Safe to rerun.
func SeedRolesAndPermissions(ctx context.Context, db *gorm.DB, log *zap.Logger) error {
	return repositories.NewStore(db).Transaction(ctx, func(tx repositories.Store) error {
		roles := tx.Roles()
		for _, p := range seedPermissions {
			if _, err := roles.EnsurePermission(ctx, p.Name, p.Description); err != nil {
				return fmt.Errorf("failed to seed permission %s: %w", p.Name, err)
			}
		}

		all, err := roles.ListPermissionNames(ctx)
		if err != nil {
			return fmt.Errorf("failed to list permissions: %w", err)
		}

		for _, r := range seedRoles {
			if _, err := roles.EnsureRole(ctx, r.Name, r.Description); err != nil {
				return fmt.Errorf("failed to seed role %s: %w", r.Name, err)
			}
			perms := r.Permissions
			if perms == nil {
				perms = all
			}
			if err := roles.SyncPermissionsToRole(ctx, r.Name, perms); err != nil {
				return fmt.Errorf("failed to sync permissions of role %s: %w", r.Name, err)
			}
			log.Info("Seeded role", zap.String("role", r.Name), zap.Strings("permissions", perms))
		}
		return nil
	})
}

// SeedAdminUser creates the configured administrator and assigns the Admin
// role. An existing account with the same email is left untouched.
func SeedAdminUser(ctx context.Context, db *gorm.DB, admin config.AdminConfig, log *zap.Logger) error {
	admin.Email = strings.ToLower(strings.TrimSpace(admin.Email))
	return repositories.NewStore(db).Transaction(ctx, func(tx repositories.Store) error {
		_, err := tx.Users().FindByEmail(ctx, admin.Email)
		if err == nil {
			log.Info("Admin user already present", zap.String("email", admin.Email))
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to look up admin user: %w", err)
		}

		hashed, err := auth.HashPassword(admin.Password)
		if err != nil {
			return fmt.Errorf("failed to hash admin password: %w", err)
		}
		user := &models.User{Name: admin.Name, Email: admin.Email, Password: hashed}
		if err := tx.Users().Create(ctx, user); err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}
		if err := tx.Roles().AssignRole(ctx, user.ID, models.RoleAdmin); err != nil {
			return fmt.Errorf("failed to assign admin role: %w", err)
		}
		log.Info("Created admin user", zap.String("email", admin.Email))
		return nil
	})
}

// Seed runs every seeder in order.
func Seed(ctx context.Context, db *gorm.DB, admin config.AdminConfig, log *zap.Logger) error {
	if err := SeedRolesAndPermissions(ctx, db, log); err != nil {
		return err
	}
	return SeedAdminUser(ctx, db, admin, log)
}
