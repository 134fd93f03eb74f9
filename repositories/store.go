package repositories

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the repositories that share one database handle, so a
// service can run several of them inside a single transaction.
type Store interface {
	Users() UserRepository
	Roles() RoleRepository
	// Transaction runs fn against a Store bound to one transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

type gormStore struct {
	db *gorm.DB
}

// NewStore creates a Store backed by gorm.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Users() UserRepository {
	return NewUserRepository(s.db)
}

func (s *gormStore) Roles() RoleRepository {
	return NewRoleRepository(s.db)
}

func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}
