// Package fixtures builds isolated databases and accounts for tests. Every
// builder works on the *gorm.DB it is handed, so no state leaks between tests.
package fixtures

import (
	"context"
	"fmt"
	"testing"

	"user-admin/database"
	"user-admin/models"
	"user-admin/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultPassword is the plaintext password of every fixture account.
const DefaultPassword = "password"

// NewDB opens a private in-memory sqlite database with all migrations applied.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	_, err = database.Migrate(context.Background(), db)
	require.NoError(t, err)
	return db
}

// SeedRoles creates the Admin and User roles with their permissions.
func SeedRoles(t testing.TB, db *gorm.DB) {
	t.Helper()
	require.NoError(t, database.SeedRolesAndPermissions(context.Background(), db, zaptest.NewLogger(t)))
}

func hash(t testing.TB, password string) string {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hashed)
}

// CreateUser inserts an enabled account with DefaultPassword and the given roles.
func CreateUser(t testing.TB, db *gorm.DB, name, email string, roles ...string) *models.User {
	t.Helper()
	ctx := context.Background()
	store := repositories.NewStore(db)

	user := &models.User{Name: name, Email: email, Password: hash(t, DefaultPassword)}
	require.NoError(t, store.Users().Create(ctx, user))
	for _, role := range roles {
		require.NoError(t, store.Roles().AssignRole(ctx, user.ID, role))
	}

	loaded, err := store.Users().FindByID(ctx, user.ID)
	require.NoError(t, err)
	return loaded
}

// CreateUsers inserts n role-less accounts with unique emails.
func CreateUsers(t testing.TB, db *gorm.DB, n int) []*models.User {
	t.Helper()
	users := make([]*models.User, 0, n)
	for i := 0; i < n; i++ {
		id := uuid.NewString()[:8]
		users = append(users, CreateUser(t, db, "User "+id, "user-"+id+"@example.com"))
	}
	return users
}

// CreateAdminUser seeds roles and returns a fresh account holding the Admin role.
func CreateAdminUser(t testing.TB, db *gorm.DB) *models.User {
	t.Helper()
	SeedRoles(t, db)
	id := uuid.NewString()[:8]
	return CreateUser(t, db, "Admin "+id, "admin-"+id+"@example.com", models.RoleAdmin)
}

// CountUsers returns the number of rows in the users table.
func CountUsers(t testing.TB, db *gorm.DB) int64 {
	t.Helper()
	n, err := repositories.NewUserRepository(db).Count(context.Background())
	require.NoError(t, err)
	return n
}
