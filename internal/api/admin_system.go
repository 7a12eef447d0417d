// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/souq/internal/audit"
	"github.com/tomtom215/souq/internal/auth"
	"github.com/tomtom215/souq/internal/database"
	"github.com/tomtom215/souq/internal/i18n"
	"github.com/tomtom215/souq/internal/logging"
	"github.com/tomtom215/souq/internal/models"
	"github.com/tomtom215/souq/internal/payment"
	"github.com/tomtom215/souq/internal/validation"
	"github.com/tomtom215/souq/internal/websocket"
)

// ---- dashboard ----

// AdminDashboard returns sales, stock and subscriber figures for the last
// ?days (default 30, at most 365).
//
// @Summary Dashboard statistics
// @Description Order counts, 30-day revenue, low stock, subscribers and recent orders.
// @Tags Admin
// @Produce json
// @Success 200 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/dashboard [get]
func (h *Handler) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	days := getIntParam(r, "days", 30)
	if days < 1 || days > 365 {
		days = 30
	}
	since := time.Now().UTC().AddDate(0, 0, -days)
	stats, err := h.db.GetDashboardStats(r.Context(), since, h.cfg.Store.LowStockThreshold+1)
	if err != nil {
		respondError(w, r, err)
		return
	}
	WriteSuccess(w, r, stats)
}

// ---- languages ----

type languageBody struct {
	i18n.Language
}

type languageInput struct {
	Code       string `json:"code" validate:"required,langcode"`
	Name       string `json:"name" validate:"required,max=60"`
	NativeName string `json:"native_name" validate:"required,max=60"`
	Direction  string `json:"direction" validate:"omitempty,oneof=ltr rtl"`
	SortOrder  int    `json:"sort_order" validate:"gte=0,lte=1000"`
}

func (b *languageBody) bindForm(f formValues) error {
	var err error
	l := &b.Language
	l.Code = f.str("code")
	l.Name = f.str("name")
	l.NativeName = f.str("native_name")
	l.Direction = f.str("direction")
	l.IsDefault = f.bool("is_default")
	l.Active = f.bool("active")
	l.SortOrder, err = f.int("sort_order")
	return err
}

// reloadLanguages refreshes the registry after a language change and drops
// cached catalog pages, which are keyed by language.
func (h *Handler) reloadLanguages(ctx context.Context) error {
	if err := h.languages.Reload(ctx, h.db); err != nil {
		return err
	}
	h.catalog.InvalidateCache()
	return nil
}

// AdminLanguages lists every language, including inactive ones.
//
// @Summary List all languages
// @Tags Admin
// @Produce json
// @Success 200 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/languages [get]
func (h *Handler) AdminLanguages(w http.ResponseWriter, r *http.Request) {
	list, err := h.db.ListLanguages(r.Context(), false)
	if err != nil {
		respondError(w, r, err)
		return
	}
	WriteSuccess(w, r, list)
}

// AdminSaveLanguage creates or updates the language in the path. Saving
// with is_default moves the default to it.
//
// @Summary Create or update a language
// @Description Setting is_default moves the default to this language.
// @Tags Admin
// @Accept json
// @Produce json
// @Param code path string true "Language code"
// @Param request body i18n.Language true "Request body"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/languages/{code} [put]
func (h *Handler) AdminSaveLanguage(w http.ResponseWriter, r *http.Request) {
	var body languageBody
	if err := bind(w, r, &body); err != nil {
		respondError(w, r, err)
		return
	}
	l := &body.Language
	l.Code = strings.ToLower(chi.URLParam(r, "code"))
	if err := validateRequest(&languageInput{
		Code: l.Code, Name: l.Name, NativeName: l.NativeName, Direction: l.Direction, SortOrder: l.SortOrder,
	}); err != nil {
		respondError(w, r, err)
		return
	}
	wasDefault := h.languages.Default() == l.Code

	if err := h.db.SaveLanguage(r.Context(), l); err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.reloadLanguages(r.Context()); err != nil {
		respondError(w, r, err)
		return
	}

	h.audit.Record(r.Context(), audit.ActionUpdate, audit.EntityLanguage, l.Code, map[string]interface{}{
		"active": l.Active, "direction": l.Direction,
	})
	if l.IsDefault && !wasDefault {
		h.audit.Record(r.Context(), audit.ActionSetDefault, audit.EntityLanguage, l.Code, nil)
	}
	WriteSuccess(w, r, l)
}

// AdminDeleteLanguage removes a non-default language. Existing
// translations in it are kept but no longer served.
//
// @Summary Delete a language
// @Description The default language cannot be deleted.
// @Tags Admin
// @Produce json
// @Param code path string true "Language code"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/languages/{code} [delete]
func (h *Handler) AdminDeleteLanguage(w http.ResponseWriter, r *http.Request) {
	code := strings.ToLower(chi.URLParam(r, "code"))
	if err := h.db.DeleteLanguage(r.Context(), code); err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.reloadLanguages(r.Context()); err != nil {
		respondError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.ActionDelete, audit.EntityLanguage, code, nil)
	w.WriteHeader(http.StatusNoContent)
}

// ---- gateways ----

// gatewayView is a gateway's configuration and admin settings.
type gatewayView struct {
	Slug         string            `json:"slug"`
	Configured   bool              `json:"configured"`
	Enabled      bool              `json:"enabled"`
	SortOrder    int               `json:"sort_order"`
	Fee          int64             `json:"fee,omitempty"`
	Translations i18n.Translations `json:"translations"`
	UpdatedAt    *time.Time        `json:"updated_at,omitempty"`
}

type gatewayBody struct {
	Enabled      *bool             `json:"enabled"`
	SortOrder    *int              `json:"sort_order"`
	Translations i18n.Translations `json:"translations"`
}

func (b *gatewayBody) bindForm(f formValues) error {
	enabled := f.bool("enabled")
	b.Enabled = &enabled
	if f.has("sort_order") {
		n, err := f.int("sort_order")
		if err != nil {
			return err
		}
		b.SortOrder = &n
	}
	tr, err := f.translations(models.GatewayFields)
	if err != nil {
		return err
	}
	if len(tr) > 0 {
		b.Translations = tr
	}
	return nil
}

// AdminGateways lists every supported gateway. A gateway without stored
// settings is enabled when configured.
//
// @Summary List gateways
// @Tags Admin
// @Produce json
// @Success 200 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/gateways [get]
func (h *Handler) AdminGateways(w http.ResponseWriter, r *http.Request) {
	stored, err := h.db.ListGatewaySettings(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	bySlug := make(map[string]models.GatewaySetting, len(stored))
	for _, s := range stored {
		bySlug[s.Slug] = s
	}
	configured := map[string]bool{}
	for _, s := range h.payments.Configured() {
		configured[s] = true
	}

	out := make([]gatewayView, 0, len(payment.Slugs))
	for i, slug := range payment.Slugs {
		v := gatewayView{
			Slug:         slug,
			Configured:   configured[slug],
			Enabled:      configured[slug],
			SortOrder:    i,
			Fee:          h.payments.Fee(slug),
			Translations: i18n.Translations{},
		}
		if s, ok := bySlug[slug]; ok {
			v.Enabled = v.Configured && s.Enabled
			v.SortOrder = s.SortOrder
			v.Translations = s.Translations
			at := s.UpdatedAt
			v.UpdatedAt = &at
		}
		out = append(out, v)
	}
	WriteSuccess(w, r, out)
}

// AdminUpdateGateway switches a gateway on or off and saves its localized
// title and instructions. Omitted fields keep their stored values.
//
// @Summary Update a gateway
// @Description Enable or disable, reorder, and edit titles and instructions.
// @Tags Admin
// @Accept json
// @Produce json
// @Param slug path string true "Gateway slug"
// @Param request body gatewayBody true "Request body"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/gateways/{slug} [put]
func (h *Handler) AdminUpdateGateway(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if !payment.IsKnown(slug) {
		respondError(w, r, payment.ErrUnknownGateway)
		return
	}
	var body gatewayBody
	if err := bind(w, r, &body); err != nil {
		respondError(w, r, err)
		return
	}

	setting, err := h.db.GetGatewaySetting(r.Context(), slug)
	if errors.Is(err, database.ErrNotFound) {
		setting = &models.GatewaySetting{Slug: slug, Enabled: true, Translations: i18n.Translations{}}
	} else if err != nil {
		respondError(w, r, err)
		return
	}
	wasEnabled := setting.Enabled
	if body.Enabled != nil {
		setting.Enabled = *body.Enabled
	}
	if body.SortOrder != nil {
		setting.SortOrder = *body.SortOrder
	}
	if body.Translations != nil {
		body.Translations.Prune(h.languages.Codes(), models.GatewayFields)
		setting.Translations = body.Translations
	}
	if setting.Enabled {
		if _, err := h.payments.Lookup(slug); err != nil {
			respondError(w, r, validation.NewFieldError("enabled", "configured", slug+" has no credentials configured"))
			return
		}
	}

	if err := h.db.SaveGatewaySetting(r.Context(), setting); err != nil {
		respondError(w, r, err)
		return
	}
	action := audit.ActionUpdate
	if setting.Enabled != wasEnabled {
		action = audit.ActionDisable
		if setting.Enabled {
			action = audit.ActionEnable
		}
	}
	h.audit.Record(r.Context(), action, audit.EntityGateway, slug, map[string]interface{}{
		"enabled": setting.Enabled, "sort_order": setting.SortOrder,
	})
	WriteSuccess(w, r, setting)
}

// ---- users ----

type staffRequest struct {
	auth.Registration
	Role string `json:"role" validate:"required,oneof=admin manager editor customer"`
}

type roleRequest struct {
	Role   string `json:"role" validate:"required,oneof=admin manager editor customer"`
	Active *bool  `json:"active"`
}

// AdminUsers lists accounts, optionally by ?role and ?q.
//
// @Summary List users
// @Tags Admin
// @Produce json
// @Param role query string false "Role"
// @Param q query string false "Email or name"
// @Param limit query integer false "Page size (max 100)"
// @Param offset query integer false "Items to skip"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/users [get]
func (h *Handler) AdminUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := page(r)
	role := r.URL.Query().Get("role")
	if role != "" && !models.IsValidRole(role) {
		respondError(w, r, errInvalidRole)
		return
	}
	list, total, err := h.db.ListUsers(r.Context(), role, r.URL.Query().Get("q"), limit, offset)
	if err != nil {
		respondError(w, r, err)
		return
	}
	NewResponseWriter(w, r).SuccessWithPagination(list, NewPagination(total, len(list), limit, offset))
}

// AdminCreateUser creates an account with any role.
//
// @Summary Create a user
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body staffRequest true "Request body"
// @Success 201 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/users [post]
func (h *Handler) AdminCreateUser(w http.ResponseWriter, r *http.Request) {
	var req staffRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Language == "" {
		req.Language = h.languages.Default()
	}
	if err := validateRequest(&req); err != nil {
		respondError(w, r, err)
		return
	}
	u, err := h.auth.CreateUser(r.Context(), req.Registration, req.Role)
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.ActionCreate, audit.EntityUser, u.ID, map[string]interface{}{"role": u.Role})
	NewResponseWriter(w, r).Created(u)
}

// AdminUpdateUser changes a user's role and active flag. Admins cannot
// demote or deactivate themselves.
//
// @Summary Change role or active flag
// @Description Admins cannot demote or deactivate themselves.
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Identifier"
// @Param request body roleRequest true "Request body"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/users/{id} [put]
func (h *Handler) AdminUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := validateRequest(&req); err != nil {
		respondError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	active := req.Active == nil || *req.Active
	if p := principal(r); p.UserID == id && (req.Role != p.Role || !active) {
		respondError(w, r, validation.NewFieldError("role", "self", "you cannot change your own role or deactivate yourself"))
		return
	}
	u, err := h.auth.SetRole(r.Context(), id, req.Role, active)
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.ActionUpdate, audit.EntityUser, u.ID, map[string]interface{}{
		"role": u.Role, "active": u.Active,
	})
	WriteSuccess(w, r, u)
}

// ---- settings ----

type settingsBody struct {
	ContactEmail *string           `json:"contact_email"`
	ContactPhone *string           `json:"contact_phone"`
	Translations i18n.Translations `json:"translations"`
}

type settingsInput struct {
	ContactEmail string `json:"contact_email" validate:"omitempty,email,max=254"`
	ContactPhone string `json:"contact_phone" validate:"omitempty,max=40"`
}

func (b *settingsBody) bindForm(f formValues) error {
	if f.has(settingContactEmail) {
		v := f.str(settingContactEmail)
		b.ContactEmail = &v
	}
	if f.has(settingContactPhone) {
		v := f.str(settingContactPhone)
		b.ContactPhone = &v
	}
	tr, err := f.translations(models.SettingFields)
	if err != nil {
		return err
	}
	if len(tr) > 0 {
		b.Translations = tr
	}
	return nil
}

// AdminSettings returns the stored storefront settings with every
// translation.
//
// @Summary Get all settings
// @Tags Admin
// @Produce json
// @Success 200 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/settings [get]
func (h *Handler) AdminSettings(w http.ResponseWriter, r *http.Request) {
	values, tr, err := h.storeSettings(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	WriteSuccess(w, r, map[string]interface{}{
		"contact_email": values[settingContactEmail],
		"contact_phone": values[settingContactPhone],
		"translations":  tr,
	})
}

// AdminSaveSettings updates the submitted settings; omitted ones are kept.
//
// @Summary Save settings
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body settingsBody true "Request body"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/settings [put]
func (h *Handler) AdminSaveSettings(w http.ResponseWriter, r *http.Request) {
	var body settingsBody
	if err := bind(w, r, &body); err != nil {
		respondError(w, r, err)
		return
	}
	in := settingsInput{}
	values := map[string]string{}
	if body.ContactEmail != nil {
		in.ContactEmail = strings.TrimSpace(*body.ContactEmail)
		values[settingContactEmail] = in.ContactEmail
	}
	if body.ContactPhone != nil {
		in.ContactPhone = strings.TrimSpace(*body.ContactPhone)
		values[settingContactPhone] = in.ContactPhone
	}
	if err := validateRequest(&in); err != nil {
		respondError(w, r, err)
		return
	}
	if body.Translations != nil {
		body.Translations.Prune(h.languages.Codes(), models.SettingFields)
		values[settingTranslations] = body.Translations.JSON()
	}
	if len(values) == 0 {
		respondError(w, r, errInvalidBody)
		return
	}

	if err := h.db.SaveSettings(r.Context(), values); err != nil {
		respondError(w, r, err)
		return
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	h.audit.Record(r.Context(), audit.ActionUpdate, audit.EntitySetting, "store", map[string]interface{}{"keys": keys})
	h.AdminSettings(w, r)
}

// ---- audit and diagnostics ----

// AdminAudit lists audit events, newest first.
//
// @Summary Audit log
// @Tags Admin
// @Produce json
// @Param actor_id query string false "Actor"
// @Param entity_type query string false "Entity type"
// @Param entity_id query string false "Entity ID"
// @Param action query string false "Action"
// @Param limit query integer false "Page size (max 100)"
// @Param offset query integer false "Items to skip"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/audit [get]
func (h *Handler) AdminAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := page(r)
	list, total, err := h.audit.List(r.Context(), models.AuditFilter{
		ActorID:    q.Get("actor_id"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		Action:     q.Get("action"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	NewResponseWriter(w, r).SuccessWithPagination(list, NewPagination(total, len(list), limit, offset))
}

// AdminPerformance returns per-route latency figures and catalog cache
// statistics.
//
// @Summary Request latency statistics
// @Tags Admin
// @Produce json
// @Success 200 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/performance [get]
func (h *Handler) AdminPerformance(w http.ResponseWriter, r *http.Request) {
	data := map[string]interface{}{"catalog_cache": h.catalog.CacheStats()}
	if h.perf != nil {
		data["endpoints"] = h.perf.GetStats()
		data["recent"] = h.perf.GetRecentMetrics(getIntParam(r, "recent", 20))
	}
	WriteSuccess(w, r, data)
}

// AdminWebSocket upgrades to the live dashboard feed.
//
// @Summary Live order feed
// @Description Upgrades to a websocket that receives order events.
// @Tags Admin
// @Produce json
// @Success 101 "Switching Protocols"
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/ws [get]
func (h *Handler) AdminWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		NewResponseWriter(w, r).ServiceUnavailable("live updates are disabled")
		return
	}
	logging.Ctx(r.Context()).Debug().Str("user_id", principal(r).UserID).Msg("Dashboard websocket connecting")
	websocket.Serve(h.hub, h.upgrader, w, r, principal(r).UserID)
}
