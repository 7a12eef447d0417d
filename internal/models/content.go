// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package models

import (
	"time"

	"github.com/tomtom215/souq/internal/i18n"
)

// Post statuses.
const (
	PostDraft     = "draft"
	PostPublished = "published"
)

// Post is a blog article.
type Post struct {
	ID           string            `json:"id"`
	Slug         string            `json:"slug"`
	AuthorID     string            `json:"author_id,omitempty"`
	Status       string            `json:"status"`
	Translations i18n.Translations `json:"translations"`
	CoverImage   string            `json:"cover_image,omitempty"`
	PublishedAt  *time.Time        `json:"published_at,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// PostFilter narrows post listings.
type PostFilter struct {
	Status        string
	PublishedOnly bool // status published and published_at <= now
	Search        string
	Limit         int
	Offset        int
}

// Setting is one storefront setting. Value holds JSON.
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AuditEvent records an admin mutation.
type AuditEvent struct {
	ID         string                 `json:"id"`
	ActorID    string                 `json:"actor_id"`
	ActorEmail string                 `json:"actor_email"`
	Action     string                 `json:"action"`
	EntityType string                 `json:"entity_type"`
	EntityID   string                 `json:"entity_id"`
	Details    map[string]interface{} `json:"details,omitempty"`
	IP         string                 `json:"ip,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// AuditFilter narrows audit listings.
type AuditFilter struct {
	ActorID    string
	EntityType string
	EntityID   string
	Action     string
	Limit      int
	Offset     int
}
