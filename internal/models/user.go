// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package models

import "time"

// Roles, from most to least privileged.
const (
	RoleAdmin    = "admin"
	RoleManager  = "manager"
	RoleEditor   = "editor"
	RoleCustomer = "customer"
)

// ValidRoles lists every assignable role.
var ValidRoles = []string{RoleAdmin, RoleManager, RoleEditor, RoleCustomer}

// IsValidRole reports whether role is assignable.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}

// User is a customer or staff account.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	Language     string     `json:"language,omitempty"`
	Active       bool       `json:"active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsStaff reports whether the user may enter the admin area at all.
func (u *User) IsStaff() bool {
	return u.Role == RoleAdmin || u.Role == RoleManager || u.Role == RoleEditor
}
