package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"user-admin/models"

	"github.com/pressly/goose/v3"
	"gorm.io/gorm"
)

// versionTable is where goose records applied versions.
const versionTable = "goose_db_version"

// Migration is one reversible schema step. Versions sort in application order.
type Migration struct {
	Version int64
	ID      string
	Up      func(tx *gorm.DB) error
	Down    func(tx *gorm.DB) error
}

// usersV1 is the users table before enabled_at existed.
type usersV1 struct {
	gorm.Model
	Name     string `gorm:"not null"`
	Email    string `gorm:"uniqueIndex;size:191;not null"`
	Password string `gorm:"not null"`
}

func (usersV1) TableName() string {
	return "users"
}

// restoreUserIndexes recreates indexes that a table rebuild (sqlite column drop) loses.
func restoreUserIndexes(tx *gorm.DB) error {
	m := tx.Migrator()
	for _, idx := range []string{"Email", "DeletedAt"} {
		if !m.HasIndex(&usersV1{}, idx) {
			if err := m.CreateIndex(&usersV1{}, idx); err != nil {
				return err
			}
		}
	}
	return nil
}

// Migrations lists every schema step in order.
var Migrations = []Migration{
	{
		Version: 20211201000000,
		ID:      "2021_12_01_000000_create_users_roles_permissions",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&usersV1{}, &models.Permission{}, &models.Role{})
		},
		Down: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable("role_permissions", "user_roles", &models.Role{}, &models.Permission{}, "users")
		},
	},
	{
		Version: 20211229125131,
		ID:      "2021_12_29_125131_add_enabled_at_column_to_users",
		Up: func(tx *gorm.DB) error {
			if tx.Migrator().HasColumn(&models.User{}, "EnabledAt") {
				return nil
			}
			return tx.Migrator().AddColumn(&models.User{}, "EnabledAt")
		},
		Down: func(tx *gorm.DB) error {
			if !tx.Migrator().HasColumn(&models.User{}, "EnabledAt") {
				return nil
			}
			if err := tx.Migrator().DropColumn(&models.User{}, "EnabledAt"); err != nil {
				return err
			}
			return restoreUserIndexes(tx)
		},
	},
}

// MigrationStatus reports whether a migration has been applied.
type MigrationStatus struct {
	ID        string
	Applied   bool
	AppliedAt *time.Time
}

func gooseDialect(db *gorm.DB) (goose.Dialect, error) {
	switch name := db.Dialector.Name(); name {
	case DriverSQLite:
		return goose.DialectSQLite3, nil
	case DriverMySQL:
		return goose.DialectMySQL, nil
	case DriverPostgres:
		return goose.DialectPostgres, nil
	default:
		return "", fmt.Errorf("no migration dialect for %q", name)
	}
}

// onTx runs fn against gorm bound to the transaction goose opened.
func onTx(db *gorm.DB, fn func(tx *gorm.DB) error) *goose.GoFunc {
	return &goose.GoFunc{
		RunTx: func(ctx context.Context, sqlTx *sql.Tx) error {
			tx := db.Session(&gorm.Session{NewDB: true, Context: ctx})
			tx.Statement.ConnPool = sqlTx
			return fn(tx)
		},
	}
}

func newProvider(db *gorm.DB) (*goose.Provider, error) {
	dialect, err := gooseDialect(db)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	steps := make([]*goose.Migration, 0, len(Migrations))
	for _, m := range Migrations {
		steps = append(steps, goose.NewGoMigration(m.Version, onTx(db, m.Up), onTx(db, m.Down)))
	}
	return goose.NewProvider(dialect, sqlDB, nil,
		goose.WithGoMigrations(steps...),
		goose.WithDisableGlobalRegistry(true),
	)
}

func migrationID(version int64) string {
	for _, m := range Migrations {
		if m.Version == version {
			return m.ID
		}
	}
	return fmt.Sprint(version)
}

// Migrate applies every pending migration and returns the IDs it ran.
func Migrate(ctx context.Context, db *gorm.DB) ([]string, error) {
	p, err := newProvider(db)
	if err != nil {
		return nil, err
	}
	results, err := p.Up(ctx)
	ran := make([]string, 0, len(results))
	for _, res := range results {
		if res.Error == nil {
			ran = append(ran, migrationID(res.Source.Version))
		}
	}
	if err != nil {
		return ran, fmt.Errorf("migration failed: %w", err)
	}
	return ran, nil
}

// ErrNothingToRollback is returned by Rollback on an unmigrated database.
var ErrNothingToRollback = errors.New("no applied migrations to roll back")

// Rollback reverts the most recently applied migration.
func Rollback(ctx context.Context, db *gorm.DB) (string, error) {
	if !db.WithContext(ctx).Migrator().HasTable(versionTable) {
		return "", ErrNothingToRollback
	}
	p, err := newProvider(db)
	if err != nil {
		return "", err
	}
	res, err := p.Down(ctx)
	if errors.Is(err, goose.ErrNoNextVersion) {
		return "", ErrNothingToRollback
	}
	if err != nil {
		return "", fmt.Errorf("rollback failed: %w", err)
	}
	return migrationID(res.Source.Version), nil
}

// Status lists every known migration with its application time.
func Status(ctx context.Context, db *gorm.DB) ([]MigrationStatus, error) {
	out := make([]MigrationStatus, 0, len(Migrations))
	if !db.WithContext(ctx).Migrator().HasTable(versionTable) {
		for _, m := range Migrations {
			out = append(out, MigrationStatus{ID: m.ID})
		}
		return out, nil
	}

	p, err := newProvider(db)
	if err != nil {
		return nil, err
	}
	statuses, err := p.Status(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range statuses {
		st := MigrationStatus{ID: migrationID(s.Source.Version)}
		if s.State == goose.StateApplied {
			at := s.AppliedAt
			st.Applied = true
			st.AppliedAt = &at
		}
		out = append(out, st)
	}
	return out, nil
}
