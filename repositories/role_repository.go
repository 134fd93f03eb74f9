package repositories

import (
	"context"
	"fmt"
	"sort"

	"user-admin/models"

	"gorm.io/gorm"
)

// RoleRepository is the role/permission registry. Calls are not retried.
type RoleRepository interface {
	RoleExists(ctx context.Context, name string) (bool, error)
	FindByNames(ctx context.Context, names []string) ([]models.Role, error)
	ListNames(ctx context.Context) ([]string, error)
	// PermissionsOfUser returns the union of permissions over the user's roles.
	PermissionsOfUser(ctx context.Context, userID uint) (map[string]struct{}, error)
	AssignRole(ctx context.Context, userID uint, roleName string) error
	// SyncPermissionsToRole makes permissionNames the role's exact permission set.
	SyncPermissionsToRole(ctx context.Context, roleName string, permissionNames []string) error
	EnsureRole(ctx context.Context, name, description string) (*models.Role, error)
	EnsurePermission(ctx context.Context, name, description string) (*models.Permission, error)
	ListPermissionNames(ctx context.Context) ([]string, error)
}

type roleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) RoleExists(ctx context.Context, name string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Role{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindByNames returns the roles that exist among names, ordered by name.
func (r *roleRepository) FindByNames(ctx context.Context, names []string) ([]models.Role, error) {
	var roles []models.Role
	if len(names) == 0 {
		return roles, nil
	}
	err := r.db.WithContext(ctx).Where("name IN ?", names).Order("name").Find(&roles).Error
	return roles, err
}

func (r *roleRepository) ListNames(ctx context.Context) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).Model(&models.Role{}).Order("name").Pluck("name", &names).Error
	return names, err
}

func (r *roleRepository) PermissionsOfUser(ctx context.Context, userID uint) (map[string]struct{}, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Preload("Roles.Permissions").First(&user, userID).Error; err != nil {
		return nil, err
	}

	perms := make(map[string]struct{})
	for _, role := range user.Roles {
		for _, perm := range role.Permissions {
			perms[perm.Name] = struct{}{}
		}
	}
	return perms, nil
}

func (r *roleRepository) findRole(ctx context.Context, name string) (*models.Role, error) {
	var role models.Role
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&role).Error; err != nil {
		return nil, fmt.Errorf("role %q: %w", name, err)
	}
	return &role, nil
}

func (r *roleRepository) AssignRole(ctx context.Context, userID uint, roleName string) error {
	role, err := r.findRole(ctx, roleName)
	if err != nil {
		return err
	}
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return fmt.Errorf("user %d: %w", userID, err)
	}
	return r.db.WithContext(ctx).Model(&user).Association("Roles").Append(role)
}

func (r *roleRepository) SyncPermissionsToRole(ctx context.Context, roleName string, permissionNames []string) error {
	role, err := r.findRole(ctx, roleName)
	if err != nil {
		return err
	}

	assoc := r.db.WithContext(ctx).Model(role).Association("Permissions")
	if len(permissionNames) == 0 {
		return assoc.Clear()
	}

	var perms []models.Permission
	if err := r.db.WithContext(ctx).Where("name IN ?", permissionNames).Find(&perms).Error; err != nil {
		return err
	}
	if missing := missingNames(permissionNames, perms); len(missing) > 0 {
		return fmt.Errorf("unknown permissions %v: %w", missing, gorm.ErrRecordNotFound)
	}
	return assoc.Replace(perms)
}

func missingNames(want []string, found []models.Permission) []string {
	have := make(map[string]struct{}, len(found))
	for _, p := range found {
		have[p.Name] = struct{}{}
	}
	var missing []string
	for _, name := range want {
		if _, ok := have[name]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

func (r *roleRepository) EnsureRole(ctx context.Context, name, description string) (*models.Role, error) {
	role := models.Role{Name: name, Description: description}
	err := r.db.WithContext(ctx).Where(models.Role{Name: name}).FirstOrCreate(&role).Error
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) EnsurePermission(ctx context.Context, name, description string) (*models.Permission, error) {
	perm := models.Permission{Name: name, Description: description}
	err := r.db.WithContext(ctx).Where(models.Permission{Name: name}).FirstOrCreate(&perm).Error
	if err != nil {
		return nil, err
	}
	return &perm, nil
}

func (r *roleRepository) ListPermissionNames(ctx context.Context) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).Model(&models.Permission{}).Order("name").Pluck("name", &names).Error
	return names, err
}
