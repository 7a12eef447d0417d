// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/souq/internal/audit"
	"github.com/tomtom215/souq/internal/models"
)

type postBody struct {
	models.Post
}

func (b *postBody) bindForm(f formValues) error {
	var err error
	p := &b.Post
	p.Slug = f.str("slug")
	p.Status = f.str("status")
	p.CoverImage = f.str("cover_image")
	if p.PublishedAt, err = f.time("published_at"); err != nil {
		return err
	}
	p.Translations, err = f.translations(models.PostFields)
	return err
}

type campaignBody struct {
	models.Campaign
}

func (b *campaignBody) bindForm(f formValues) error {
	var err error
	c := &b.Campaign
	c.Recurrence = f.str("recurrence")
	if c.ScheduledAt, err = f.time("scheduled_at"); err != nil {
		return err
	}
	c.Translations, err = f.translations(models.CampaignFields)
	return err
}

// ---- posts ----

// AdminPosts lists posts of any status.
//
// @Summary List posts
// @Tags Admin
// @Produce json
// @Param status query string false "draft or published"
// @Param q query string false "Search"
// @Param limit query integer false "Page size (max 100)"
// @Param offset query integer false "Items to skip"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/posts [get]
func (h *Handler) AdminPosts(w http.ResponseWriter, r *http.Request) {
	limit, offset := page(r)
	list, total, err := h.blog.AdminList(r.Context(), models.PostFilter{
		Status: r.URL.Query().Get("status"),
		Search: r.URL.Query().Get("q"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	NewResponseWriter(w, r).SuccessWithPagination(list, NewPagination(total, len(list), limit, offset))
}

// AdminPost returns a post with every translation.
//
// @Summary Get a post
// @Tags Admin
// @Produce json
// @Param id path string true "Identifier"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/posts/{id} [get]
func (h *Handler) AdminPost(w http.ResponseWriter, r *http.Request) {
	p, err := h.blog.AdminGet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	WriteSuccess(w, r, p)
}

// AdminCreatePost adds a post authored by the caller.
//
// @Summary Create a post
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body models.Post true "Request body"
// @Success 201 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/posts [post]
func (h *Handler) AdminCreatePost(w http.ResponseWriter, r *http.Request) {
	var body postBody
	if err := bind(w, r, &body); err != nil {
		respondError(w, r, err)
		return
	}
	p := &body.Post
	p.ID = ""
	p.AuthorID = principal(r).UserID
	if err := h.blog.Create(r.Context(), p); err != nil {
		respondError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.ActionCreate, audit.EntityPost, p.ID, map[string]interface{}{"slug": p.Slug, "status": p.Status})
	NewResponseWriter(w, r).Created(p)
}

// AdminUpdatePost replaces a post's content. The author is kept.
//
// @Summary Update a post
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Identifier"
// @Param request body models.Post true "Request body"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/posts/{id} [put]
func (h *Handler) AdminUpdatePost(w http.ResponseWriter, r *http.Request) {
	existing, err := h.blog.AdminGet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	var body postBody
	if err := bind(w, r, &body); err != nil {
		respondError(w, r, err)
		return
	}
	p := &body.Post
	p.ID = existing.ID
	p.AuthorID = existing.AuthorID
	if p.PublishedAt == nil {
		p.PublishedAt = existing.PublishedAt
	}
	if err := h.blog.Update(r.Context(), p); err != nil {
		respondError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.ActionUpdate, audit.EntityPost, p.ID, map[string]interface{}{"slug": p.Slug})
	WriteSuccess(w, r, p)
}

// AdminDeletePost removes a post.
//
// @Summary Delete a post
// @Tags Admin
// @Produce json
// @Param id path string true "Identifier"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/posts/{id} [delete]
func (h *Handler) AdminDeletePost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.blog.Delete(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.ActionDelete, audit.EntityPost, id, nil)
	w.WriteHeader(http.StatusNoContent)
}

// AdminPublishPost makes a post visible on the storefront.
//
// @Summary Publish a post
// @Tags Admin
// @Produce json
// @Param id path string true "Identifier"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/posts/{id}/publish [post]
func (h *Handler) AdminPublishPost(w http.ResponseWriter, r *http.Request) {
	p, err := h.blog.Publish(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.ActionPublish, audit.EntityPost, p.ID, map[string]interface{}{"slug": p.Slug})
	WriteSuccess(w, r, p)
}

// AdminUnpublishPost returns a post to draft.
//
// @Summary Unpublish a post
// @Tags Admin
// @Produce json
// @Param id path string true "Identifier"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/posts/{id}/unpublish [post]
func (h *Handler) AdminUnpublishPost(w http.ResponseWriter, r *http.Request) {
	p, err := h.blog.Unpublish(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.ActionUnpublish, audit.EntityPost, p.ID, map[string]interface{}{"slug": p.Slug})
	WriteSuccess(w, r, p)
}

// ---- subscribers ----

// AdminSubscribers lists subscribers together with per-status counts.
//
// @Summary List subscribers
// @Tags Admin
// @Produce json
// @Param status query string false "pending, confirmed or unsubscribed"
// @Param limit query integer false "Page size (max 100)"
// @Param offset query integer false "Items to skip"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/subscribers [get]
func (h *Handler) AdminSubscribers(w http.ResponseWriter, r *http.Request) {
	limit, offset := page(r)
	list, total, err := h.newsletter.ListSubscribers(r.Context(), r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		respondError(w, r, err)
		return
	}
	counts, err := h.newsletter.SubscriberCounts(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	NewResponseWriter(w, r).SuccessWithPagination(map[string]interface{}{
		"subscribers": list,
		"counts":      counts,
	}, NewPagination(total, len(list), limit, offset))
}

// AdminDeleteSubscriber removes a subscriber outright.
//
// @Summary Delete a subscriber
// @Tags Admin
// @Produce json
// @Param id path string true "Identifier"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/subscribers/{id} [delete]
func (h *Handler) AdminDeleteSubscriber(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.newsletter.DeleteSubscriber(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.ActionDelete, audit.EntitySubscriber, id, nil)
	w.WriteHeader(http.StatusNoContent)
}

// ---- campaigns ----

// AdminCampaigns lists campaigns.
//
// @Summary List campaigns
// @Tags Admin
// @Produce json
// @Param status query string false "Campaign status"
// @Param limit query integer false "Page size (max 100)"
// @Param offset query integer false "Items to skip"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/campaigns [get]
func (h *Handler) AdminCampaigns(w http.ResponseWriter, r *http.Request) {
	limit, offset := page(r)
	list, total, err := h.newsletter.ListCampaigns(r.Context(), r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		respondError(w, r, err)
		return
	}
	NewResponseWriter(w, r).SuccessWithPagination(list, NewPagination(total, len(list), limit, offset))
}

// AdminCampaign returns a campaign with its delivery totals.
//
// @Summary Get a campaign
// @Tags Admin
// @Produce json
// @Param id path string true "Identifier"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/campaigns/{id} [get]
func (h *Handler) AdminCampaign(w http.ResponseWriter, r *http.Request) {
	stats, err := h.newsletter.Stats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	WriteSuccess(w, r, stats)
}

// AdminCreateCampaign adds a draft or scheduled campaign.
//
// @Summary Create a campaign
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body models.Campaign true "Request body"
// @Success 201 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/campaigns [post]
func (h *Handler) AdminCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body campaignBody
	if err := bind(w, r, &body); err != nil {
		respondError(w, r, err)
		return
	}
	c := &body.Campaign
	c.ID = ""
	c.CreatedBy = principal(r).UserID
	if err := h.newsletter.CreateCampaign(r.Context(), c); err != nil {
		respondError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.ActionCreate, audit.EntityCampaign, c.ID, map[string]interface{}{
		"status": c.Status, "recurrence": c.Recurrence,
	})
	NewResponseWriter(w, r).Created(c)
}

// AdminUpdateCampaign replaces a campaign's content and schedule.
//
// @Summary Update a campaign
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Identifier"
// @Param request body models.Campaign true "Request body"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/campaigns/{id} [put]
func (h *Handler) AdminUpdateCampaign(w http.ResponseWriter, r *http.Request) {
	var body campaignBody
	if err := bind(w, r, &body); err != nil {
		respondError(w, r, err)
		return
	}
	c := &body.Campaign
	c.ID = chi.URLParam(r, "id")
	if err := h.newsletter.UpdateCampaign(r.Context(), c); err != nil {
		respondError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.ActionUpdate, audit.EntityCampaign, c.ID, map[string]interface{}{"status": c.Status})
	WriteSuccess(w, r, c)
}

// AdminDeleteCampaign removes a campaign that is not sending.
//
// @Summary Delete a campaign
// @Tags Admin
// @Produce json
// @Param id path string true "Identifier"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/campaigns/{id} [delete]
func (h *Handler) AdminDeleteCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.newsletter.DeleteCampaign(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.ActionDelete, audit.EntityCampaign, id, nil)
	w.WriteHeader(http.StatusNoContent)
}

// AdminSendCampaign delivers a campaign now. The request blocks until the
// run finishes.
//
// @Summary Send a campaign now
// @Description Blocks until the run completes.
// @Tags Admin
// @Produce json
// @Param id path string true "Identifier"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/campaigns/{id}/send [post]
func (h *Handler) AdminSendCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, err := h.newsletter.SendNow(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.ActionSend, audit.EntityCampaign, id, map[string]interface{}{
		"recipients": res.Recipients, "sent": res.Sent, "failed": res.Failed,
	})
	WriteSuccess(w, r, res)
}

// AdminCampaignDeliveries lists the per-recipient delivery records.
//
// @Summary List campaign deliveries
// @Tags Admin
// @Produce json
// @Param id path string true "Identifier"
// @Param limit query integer false "Page size (max 100)"
// @Param offset query integer false "Items to skip"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/campaigns/{id}/deliveries [get]
func (h *Handler) AdminCampaignDeliveries(w http.ResponseWriter, r *http.Request) {
	limit, offset := page(r)
	list, err := h.newsletter.ListDeliveries(r.Context(), chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		respondError(w, r, err)
		return
	}
	WriteSuccess(w, r, list)
}
