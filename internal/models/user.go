// Package models contains the domain types shared by storage, services and
// HTTP handlers: users, helpdesk action records, chat sessions and the error
// taxonomy used to map failures onto HTTP status codes.
package models

import "time"

// Role is the access level of a user account.
type Role string

const (
	// RoleMaster can promote and demote other accounts.
	RoleMaster Role = "master"
	// RoleAdmin manages users and every helpdesk action.
	RoleAdmin Role = "admin"
	// RoleUser is the default role given at registration.
	RoleUser Role = "user"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleMaster, RoleAdmin, RoleUser:
		return true
	}
	return false
}

// User is a registered portal account.
type User struct {
	ID           string    `json:"id"`
	NPK          string    `json:"npk"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Verified     bool      `json:"verified"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UserUpdate carries the optional fields of an administrative user update.
// Nil fields are left untouched.
type UserUpdate struct {
	Email        *string
	NPK          *string
	PasswordHash *string
	Verified     *bool
}
