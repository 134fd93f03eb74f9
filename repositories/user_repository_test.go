package repositories_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"user-admin/fixtures"
	"user-admin/models"
	"user-admin/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestFindByIDLoadsRolesInNameOrder(t *testing.T) {
	db := fixtures.NewDB(t)
	fixtures.SeedRoles(t, db)
	user := fixtures.CreateUser(t, db, "Ana", "ana@example.com", models.RoleUser, models.RoleAdmin)

	found, err := repositories.NewUserRepository(db).FindByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", found.Email)
	require.Len(t, found.Roles, 2)
	assert.Equal(t, models.RoleAdmin, found.Roles[0].Name)
	assert.Equal(t, models.RoleUser, found.Roles[1].Name)
}

func TestFindMissingUser(t *testing.T) {
	db := fixtures.NewDB(t)
	repo := repositories.NewUserRepository(db)

	_, err := repo.FindByID(context.Background(), 42)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = repo.FindByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSaveDoesNotTouchRoles(t *testing.T) {
	db := fixtures.NewDB(t)
	fixtures.SeedRoles(t, db)
	user := fixtures.CreateUser(t, db, "Ana", "ana@example.com", models.RoleUser)
	repo := repositories.NewUserRepository(db)
	ctx := context.Background()

	user.Name = "Ana Maria"
	user.Roles = nil
	require.NoError(t, repo.Save(ctx, user))

	found, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana Maria", found.Name)
	assert.Equal(t, []string{models.RoleUser}, found.RoleNames())
}

func TestSetEnabledAt(t *testing.T) {
	db := fixtures.NewDB(t)
	user := fixtures.CreateUser(t, db, "Ana", "ana@example.com")
	repo := repositories.NewUserRepository(db)
	ctx := context.Background()

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SetEnabledAt(ctx, user.ID, &at))
	found, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, found.EnabledAt)
	assert.True(t, at.Equal(*found.EnabledAt))
	assert.False(t, found.IsEnabled())

	require.NoError(t, repo.SetEnabledAt(ctx, user.ID, nil))
	found, err = repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, found.EnabledAt)

	err = repo.SetEnabledAt(ctx, 9999, &at)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestReplaceRoles(t *testing.T) {
	db := fixtures.NewDB(t)
	fixtures.SeedRoles(t, db)
	user := fixtures.CreateUser(t, db, "Ana", "ana@example.com", models.RoleAdmin)
	store := repositories.NewStore(db)
	ctx := context.Background()

	roles, err := store.Roles().FindByNames(ctx, []string{models.RoleUser})
	require.NoError(t, err)
	require.NoError(t, store.Users().ReplaceRoles(ctx, user, roles))

	found, err := store.Users().FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{models.RoleUser}, found.RoleNames())

	require.NoError(t, store.Users().ReplaceRoles(ctx, found, nil))
	found, err = store.Users().FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, found.Roles)
}

func TestDeleteRemovesRowAndRoleLinks(t *testing.T) {
	db := fixtures.NewDB(t)
	fixtures.SeedRoles(t, db)
	user := fixtures.CreateUser(t, db, "Ana", "ana@example.com", models.RoleAdmin, models.RoleUser)
	repo := repositories.NewUserRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Delete(ctx, user))

	_, err := repo.FindByID(ctx, user.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var rows int64
	require.NoError(t, db.Unscoped().Model(&models.User{}).Where("id = ?", user.ID).Count(&rows).Error)
	assert.Zero(t, rows)
	require.NoError(t, db.Table("user_roles").Where("user_id = ?", user.ID).Count(&rows).Error)
	assert.Zero(t, rows)

	// the email can be reused once the row is gone
	fixtures.CreateUser(t, db, "Ana", "ana@example.com")
}

func TestListPage(t *testing.T) {
	db := fixtures.NewDB(t)
	created := fixtures.CreateUsers(t, db, 5)
	repo := repositories.NewUserRepository(db)
	ctx := context.Background()

	page, total, err := repo.ListPage(ctx, 1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, created[0].ID, page[0].ID)
	assert.Equal(t, created[1].ID, page[1].ID)

	page, _, err = repo.ListPage(ctx, 3, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, created[4].ID, page[0].ID)

	page, total, err = repo.ListPage(ctx, 4, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Empty(t, page)
}

func TestListPageHugePageDoesNotWrap(t *testing.T) {
	db := fixtures.NewDB(t)
	fixtures.CreateUsers(t, db, 3)
	repo := repositories.NewUserRepository(db)

	page, total, err := repo.ListPage(context.Background(), math.MaxInt, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Empty(t, page)
}

func TestFindByEmailIgnoresCase(t *testing.T) {
	db := fixtures.NewDB(t)
	user := fixtures.CreateUser(t, db, "Ana", "ana@example.com")

	found, err := repositories.NewUserRepository(db).FindByEmail(context.Background(), "ANA@Example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
}

func TestCreateDuplicateEmailIsDuplicatedKey(t *testing.T) {
	db := fixtures.NewDB(t)
	fixtures.CreateUser(t, db, "Ana", "ana@example.com")

	err := repositories.NewUserRepository(db).Create(context.Background(), &models.User{Name: "Other", Email: "ana@example.com", Password: "x"})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestTransactionRollsBack(t *testing.T) {
	db := fixtures.NewDB(t)
	store := repositories.NewStore(db)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.Transaction(ctx, func(tx repositories.Store) error {
		if err := tx.Users().Create(ctx, &models.User{Name: "Ana", Email: "ana@example.com", Password: "x"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, fixtures.CountUsers(t, db))

	err = store.Transaction(ctx, func(tx repositories.Store) error {
		return tx.Users().Create(ctx, &models.User{Name: "Ana", Email: "ana@example.com", Password: "x"})
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, fixtures.CountUsers(t, db))
}
