package models

import (
	"sort"
	"time"

	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Name     string `gorm:"not null"`
	Email    string `gorm:"uniqueIndex;size:191;not null"`
	Password string `gorm:"not null" json:"-"` // Don't expose password hash
	// EnabledAt records when the account was switched off; a nil value means the account is active.
	EnabledAt *time.Time
	Roles     []Role `gorm:"many2many:user_roles;"`
}

// IsEnabled reports whether the account may authenticate and act.
func (u *User) IsEnabled() bool {
	return u.EnabledAt == nil
}

// ToggleLabel is the action offered for the account in the user list.
func (u *User) ToggleLabel() string {
	if u.IsEnabled() {
		return "Disable"
	}
	return "Enable"
}

// RoleNames returns the names of the loaded roles in alphabetical order.
func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	sort.Strings(names)
	return names
}

// HasRole only looks at the roles already loaded on the struct.
func (u *User) HasRole(name string) bool {
	for _, r := range u.Roles {
		if r.Name == name {
			return true
		}
	}
	return false
}
