package repositories

import (
	"context"
	"math"
	"strings"
	"time"

	"user-admin/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository interface defines User-related database operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uint) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	// Save writes the user's own columns; role links are managed by ReplaceRoles.
	Save(ctx context.Context, user *models.User) error
	SetEnabledAt(ctx context.Context, id uint, at *time.Time) error
	ReplaceRoles(ctx context.Context, user *models.User, roles []models.Role) error
	// Delete removes the row and its role links permanently.
	Delete(ctx context.Context, user *models.User) error
	ListPage(ctx context.Context, page int, pageSize int) ([]models.User, int64, error)
	Count(ctx context.Context) (int64, error)
}

// userRepository implements the UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func preloadRoles(db *gorm.DB) *gorm.DB {
	return db.Preload("Roles", func(db *gorm.DB) *gorm.DB {
		return db.Order("roles.name")
	})
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(user).Error
}

// FindByID finds a User by ID with its roles loaded
func (r *userRepository) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := preloadRoles(r.db.WithContext(ctx)).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("LOWER(email) = ?", strings.ToLower(email)).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Save(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(user).Error
}

func (r *userRepository) SetEnabledAt(ctx context.Context, id uint, at *time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("enabled_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *userRepository) ReplaceRoles(ctx context.Context, user *models.User, roles []models.Role) error {
	assoc := r.db.WithContext(ctx).Model(user).Association("Roles")
	if len(roles) == 0 {
		return assoc.Clear()
	}
	return assoc.Replace(roles)
}

func (r *userRepository) Delete(ctx context.Context, user *models.User) error {
	db := r.db.WithContext(ctx)
	if err := db.Model(user).Association("Roles").Clear(); err != nil {
		return err
	}
	return db.Unscoped().Delete(&models.User{}, user.ID).Error
}

// ListPage returns one page of users ordered by id, plus the total count.
func (r *userRepository) ListPage(ctx context.Context, page int, pageSize int) ([]models.User, int64, error) {
	db := r.db.WithContext(ctx)
	var users []models.User
	var total int64

	if err := db.Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if page < 1 || pageSize < 1 || page-1 > math.MaxInt/pageSize {
		return []models.User{}, total, nil
	}
	offset := (page - 1) * pageSize

	result := preloadRoles(db).Order("id").Offset(offset).Limit(pageSize).Find(&users)
	if result.Error != nil {
		return nil, 0, result.Error
	}

	return users, total, nil
}

func (r *userRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Count(&total).Error
	return total, err
}
