// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

// Package blog serves published posts localized to the request language
// and implements the admin post operations.
package blog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/souq/internal/database"
	"github.com/tomtom215/souq/internal/i18n"
	"github.com/tomtom215/souq/internal/logging"
	"github.com/tomtom215/souq/internal/models"
	"github.com/tomtom215/souq/internal/validation"
)

// ErrNotFound is returned for unknown posts and, on the storefront, for
// drafts and posts scheduled in the future.
var ErrNotFound = errors.New("blog: post not found")

// Store is the post persistence. *database.DB implements it.
type Store interface {
	ListPosts(ctx context.Context, f models.PostFilter) ([]models.Post, int, error)
	GetPost(ctx context.Context, id string) (*models.Post, error)
	GetPostBySlug(ctx context.Context, slug string) (*models.Post, error)
	CreatePost(ctx context.Context, p *models.Post) error
	UpdatePost(ctx context.Context, p *models.Post) error
	DeletePost(ctx context.Context, id string) error
}

// PostView is a post resolved for one language.
type PostView struct {
	ID              string     `json:"id"`
	Slug            string     `json:"slug"`
	Title           string     `json:"title"`
	Excerpt         string     `json:"excerpt,omitempty"`
	Body            string     `json:"body,omitempty"`
	MetaDescription string     `json:"meta_description,omitempty"`
	CoverImage      string     `json:"cover_image,omitempty"`
	AuthorID        string     `json:"author_id,omitempty"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
}

// Listing is a page of localized posts.
type Listing struct {
	Posts  []PostView `json:"posts"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

// Service implements the storefront and admin blog.
type Service struct {
	store    Store
	registry *i18n.Registry
	now      func() time.Time
}

// NewService creates a blog service.
func NewService(store Store, registry *i18n.Registry) *Service {
	return &Service{store: store, registry: registry, now: time.Now}
}

// Published lists published posts, newest first. Bodies are omitted from
// listings.
func (s *Service) Published(ctx context.Context, lang string, limit, offset int) (*Listing, error) {
	posts, total, err := s.store.ListPosts(ctx, models.PostFilter{PublishedOnly: true, Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	out := &Listing{Posts: make([]PostView, 0, len(posts)), Total: total, Limit: limit, Offset: offset}
	for i := range posts {
		v := s.localize(&posts[i], lang)
		v.Body = ""
		out.Posts = append(out.Posts, v)
	}
	return out, nil
}

// Post returns a published post by slug.
func (s *Service) Post(ctx context.Context, slug, lang string) (*PostView, error) {
	p, err := s.store.GetPostBySlug(ctx, slug)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if !s.visible(p) {
		return nil, ErrNotFound
	}
	v := s.localize(p, lang)
	return &v, nil
}

func (s *Service) visible(p *models.Post) bool {
	return p.Status == models.PostPublished && p.PublishedAt != nil && !p.PublishedAt.After(s.now())
}

func (s *Service) localize(p *models.Post, lang string) PostView {
	def := s.registry.Default()
	return PostView{
		ID:              p.ID,
		Slug:            p.Slug,
		Title:           p.Translations.Get(lang, "title", def),
		Excerpt:         p.Translations.Get(lang, "excerpt", def),
		Body:            p.Translations.Get(lang, "body", def),
		MetaDescription: p.Translations.Get(lang, "meta_description", def),
		CoverImage:      p.CoverImage,
		AuthorID:        p.AuthorID,
		PublishedAt:     p.PublishedAt,
	}
}

// AdminList lists posts of any status with their translations.
func (s *Service) AdminList(ctx context.Context, f models.PostFilter) ([]models.Post, int, error) {
	f.PublishedOnly = false
	return s.store.ListPosts(ctx, f)
}

// AdminGet returns a post by ID regardless of status.
func (s *Service) AdminGet(ctx context.Context, id string) (*models.Post, error) {
	p, err := s.store.GetPost(ctx, id)
	return p, mapNotFound(err)
}

// Create validates and stores a new post. A post created as published
// gets published_at set to now when none is given.
func (s *Service) Create(ctx context.Context, p *models.Post) error {
	if err := s.prepare(p); err != nil {
		return err
	}
	if err := s.store.CreatePost(ctx, p); err != nil {
		return err
	}
	logging.Ctx(ctx).Info().Str("post", p.ID).Str("slug", p.Slug).Str("status", p.Status).Msg("Post created")
	return nil
}

// Update validates and saves a post.
func (s *Service) Update(ctx context.Context, p *models.Post) error {
	if p.ID == "" {
		return ErrNotFound
	}
	if err := s.prepare(p); err != nil {
		return err
	}
	return mapNotFound(s.store.UpdatePost(ctx, p))
}

// Delete removes a post.
func (s *Service) Delete(ctx context.Context, id string) error {
	return mapNotFound(s.store.DeletePost(ctx, id))
}

// Publish makes a post visible. published_at is kept when already set, so
// republishing does not reorder the blog.
func (s *Service) Publish(ctx context.Context, id string) (*models.Post, error) {
	return s.setStatus(ctx, id, models.PostPublished)
}

// Unpublish returns a post to draft.
func (s *Service) Unpublish(ctx context.Context, id string) (*models.Post, error) {
	return s.setStatus(ctx, id, models.PostDraft)
}

func (s *Service) setStatus(ctx context.Context, id, status string) (*models.Post, error) {
	p, err := s.AdminGet(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Status = status
	if status == models.PostPublished && p.PublishedAt == nil {
		now := s.now().UTC()
		p.PublishedAt = &now
	}
	if err := s.store.UpdatePost(ctx, p); err != nil {
		return nil, mapNotFound(err)
	}
	logging.Ctx(ctx).Info().Str("post", p.ID).Str("status", status).Msg("Post status changed")
	return p, nil
}

func (s *Service) prepare(p *models.Post) error {
	def := s.registry.Default()
	if p.Translations == nil {
		p.Translations = i18n.Translations{}
	}
	p.Translations.Prune(s.registry.Codes(), models.PostFields)
	if err := p.Translations.RequireDefault(def, "title"); err != nil {
		return validation.NewFieldError("translations", "required", err.Error())
	}
	if p.Status == "" {
		p.Status = models.PostDraft
	}
	if p.Slug == "" {
		p.Slug = slugFor(p.Translations.Get(def, "title", ""))
	}
	if verr := validation.ValidateStruct(postInput{Slug: p.Slug, Status: p.Status, CoverImage: p.CoverImage}); verr != nil {
		return verr
	}
	if p.Status == models.PostPublished && p.PublishedAt == nil {
		now := s.now().UTC()
		p.PublishedAt = &now
	}
	return nil
}

type postInput struct {
	Slug       string `json:"slug" validate:"required,slug,max=160"`
	Status     string `json:"status" validate:"oneof=draft published"`
	CoverImage string `json:"cover_image" validate:"omitempty,url,max=500"`
}

func slugFor(title string) string {
	if slug := validation.Slugify(title); slug != "" {
		return slug
	}
	return "post-" + strings.SplitN(uuid.New().String(), "-", 2)[0]
}

func mapNotFound(err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
