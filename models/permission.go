package models

import "gorm.io/gorm"

// Seeded permission names. PermManageUsers gates every user-management operation.
const (
	PermManageUsers = "manage-users"
	PermManageRoles = "roles:manage"
	PermReadProfile = "profile:read"
)

// Permission is a named capability granted through roles.
type Permission struct {
	gorm.Model
	Name        string `gorm:"uniqueIndex;size:191;not null"`
	Description string
	Roles       []Role `gorm:"many2many:role_permissions;"`
}
