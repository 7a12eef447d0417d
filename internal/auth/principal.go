// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package auth

import (
	"context"

	"github.com/tomtom215/souq/internal/models"
)

// Authentication methods recorded on a Principal.
const (
	MethodSession = "session"
	MethodBearer  = "bearer"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID    string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	Role      string `json:"role"`
	Language  string `json:"language,omitempty"`
	Method    string `json:"method"`
	SessionID string `json:"-"`
}

// IsStaff reports whether the principal may enter the admin area.
func (p *Principal) IsStaff() bool {
	return p != nil && p.Role != "" && p.Role != models.RoleCustomer
}

// PrincipalFromUser builds a principal for u.
func PrincipalFromUser(u *models.User, method string) *Principal {
	return &Principal{
		UserID:   u.ID,
		Email:    u.Email,
		Name:     u.Name,
		Role:     u.Role,
		Language: u.Language,
		Method:   method,
	}
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the request principal, or nil for anonymous
// requests.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}
