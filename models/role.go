package models

import "gorm.io/gorm"

// Seeded role names.
const (
	RoleAdmin = "Admin"
	RoleUser  = "User"
)

type Role struct {
	gorm.Model
	Name        string `gorm:"uniqueIndex;size:191;not null"`
	Description string
	Permissions []Permission `gorm:"many2many:role_permissions;"` // Many-to-Many relationship with Permission
	Users       []User       `gorm:"many2many:user_roles;"`
}
