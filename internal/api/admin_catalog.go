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

// productBody is an admin product submission. JSON prices are minor
// units; form prices are major units in the store currency.
type productBody struct {
	models.Product
	currency string
}

func (b *productBody) bindForm(f formValues) error {
	var err error
	p := &b.Product
	p.SKU = f.str("sku")
	p.Slug = f.str("slug")
	p.CategoryID = f.str("category_id")
	if p.Price, err = f.money("price", b.currency); err != nil {
		return err
	}
	if p.CompareAtPrice, err = f.money("compare_at_price", b.currency); err != nil {
		return err
	}
	if p.Stock, err = f.int("stock"); err != nil {
		return err
	}
	p.TrackStock = f.bool("track_stock")
	p.Active = f.bool("active")
	p.Featured = f.bool("featured")
	p.Images = f.list("images")
	p.Translations, err = f.translations(models.ProductFields)
	return err
}

type categoryBody struct {
	models.Category
}

func (b *categoryBody) bindForm(f formValues) error {
	var err error
	c := &b.Category
	c.Slug = f.str("slug")
	c.ParentID = f.str("parent_id")
	if c.SortOrder, err = f.int("sort_order"); err != nil {
		return err
	}
	c.Active = f.bool("active")
	c.Translations, err = f.translations(models.CategoryFields)
	return err
}

type stockRequest struct {
	Delta int `json:"delta" validate:"required,gte=-100000,lte=100000"`
}

// AdminProducts lists products of any state.
//
// @Summary List products
// @Tags Admin
// @Produce json
// @Param q query string false "Search"
// @Param category_id query string false "Category ID"
// @Param sort query string false "Sort order"
// @Param featured query boolean false "Featured flag"
// @Param active query boolean false "Only active products"
// @Param stock_below query integer false "Stock threshold"
// @Param limit query integer false "Page size (max 100)"
// @Param offset query integer false "Items to skip"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/products [get]
func (h *Handler) AdminProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := page(r)
	f := models.ProductFilter{
		Search:   q.Get("q"),
		Featured: getBoolParam(r, "featured"),
		Sort:     q.Get("sort"),
		Limit:    limit,
		Offset:   offset,
	}
	if id := q.Get("category_id"); id != "" {
		f.CategoryIDs = []string{id}
	}
	if active := getBoolParam(r, "active"); active != nil && *active {
		f.ActiveOnly = true
	}
	if below := getIntParam(r, "stock_below", 0); below > 0 {
		f.StockBelow = below
	}
	list, total, err := h.catalog.AdminListProducts(r.Context(), f)
	if err != nil {
		respondError(w, r, err)
		return
	}
	NewResponseWriter(w, r).SuccessWithPagination(list, NewPagination(total, len(list), limit, offset))
}

// AdminLowStock lists products at or below the low-stock threshold.
//
// @Summary Low-stock products
// @Tags Admin
// @Produce json
// @Param limit query integer false "Maximum rows"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/products/low-stock [get]
func (h *Handler) AdminLowStock(w http.ResponseWriter, r *http.Request) {
	limit, _ := page(r)
	list, err := h.catalog.LowStock(r.Context(), limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	WriteSuccess(w, r, list)
}

// AdminProduct returns one product with every translation.
//
// @Summary Get a product
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
// @Router /api/v1/admin/products/{id} [get]
func (h *Handler) AdminProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.AdminGetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	WriteSuccess(w, r, p)
}

// AdminCreateProduct adds a product.
//
// @Summary Create a product
// @Description Accepts JSON or form fields; form prices are in major units.
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body models.Product true "Request body"
// @Success 201 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/products [post]
func (h *Handler) AdminCreateProduct(w http.ResponseWriter, r *http.Request) {
	body := productBody{currency: h.catalog.Currency()}
	if err := bind(w, r, &body); err != nil {
		respondError(w, r, err)
		return
	}
	p := &body.Product
	p.ID = ""
	if err := h.catalog.CreateProduct(r.Context(), p); err != nil {
		respondError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.ActionCreate, audit.EntityProduct, p.ID, map[string]interface{}{"sku": p.SKU})
	NewResponseWriter(w, r).Created(p)
}

// AdminUpdateProduct replaces every mutable field of a product.
//
// @Summary Update a product
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Identifier"
// @Param request body models.Product true "Request body"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/products/{id} [put]
func (h *Handler) AdminUpdateProduct(w http.ResponseWriter, r *http.Request) {
	body := productBody{currency: h.catalog.Currency()}
	if err := bind(w, r, &body); err != nil {
		respondError(w, r, err)
		return
	}
	p := &body.Product
	p.ID = chi.URLParam(r, "id")
	if err := h.catalog.UpdateProduct(r.Context(), p); err != nil {
		respondError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.ActionUpdate, audit.EntityProduct, p.ID, map[string]interface{}{
		"sku": p.SKU, "price": p.Price, "active": p.Active,
	})
	WriteSuccess(w, r, p)
}

// AdminDeleteProduct removes a product.
//
// @Summary Delete a product
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
// @Router /api/v1/admin/products/{id} [delete]
func (h *Handler) AdminDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.catalog.DeleteProduct(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.ActionDelete, audit.EntityProduct, id, nil)
	w.WriteHeader(http.StatusNoContent)
}

// AdminAdjustStock adds a signed delta to a product's stock.
//
// @Summary Adjust stock
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Identifier"
// @Param request body stockRequest true "Request body"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/products/{id}/stock [post]
func (h *Handler) AdminAdjustStock(w http.ResponseWriter, r *http.Request) {
	var req stockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := validateRequest(&req); err != nil {
		respondError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	stock, err := h.catalog.AdjustStock(r.Context(), id, req.Delta)
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.ActionUpdate, audit.EntityProduct, id, map[string]interface{}{
		"stock_delta": req.Delta, "stock": stock,
	})
	WriteSuccess(w, r, map[string]interface{}{"id": id, "stock": stock})
}

// AdminCategories lists every category, active or not.
//
// @Summary List categories
// @Tags Admin
// @Produce json
// @Success 200 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/categories [get]
func (h *Handler) AdminCategories(w http.ResponseWriter, r *http.Request) {
	list, err := h.catalog.AdminListCategories(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	WriteSuccess(w, r, list)
}

// AdminCreateCategory adds a category.
//
// @Summary Create a category
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body models.Category true "Request body"
// @Success 201 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/categories [post]
func (h *Handler) AdminCreateCategory(w http.ResponseWriter, r *http.Request) {
	var body categoryBody
	if err := bind(w, r, &body); err != nil {
		respondError(w, r, err)
		return
	}
	c := &body.Category
	c.ID = ""
	if err := h.catalog.CreateCategory(r.Context(), c); err != nil {
		respondError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.ActionCreate, audit.EntityCategory, c.ID, map[string]interface{}{"slug": c.Slug})
	NewResponseWriter(w, r).Created(c)
}

// AdminUpdateCategory replaces a category.
//
// @Summary Update a category
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Identifier"
// @Param request body models.Category true "Request body"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Security BearerAuth
// @Security SessionCookie
// @Router /api/v1/admin/categories/{id} [put]
func (h *Handler) AdminUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var body categoryBody
	if err := bind(w, r, &body); err != nil {
		respondError(w, r, err)
		return
	}
	c := &body.Category
	c.ID = chi.URLParam(r, "id")
	if err := h.catalog.UpdateCategory(r.Context(), c); err != nil {
		respondError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.ActionUpdate, audit.EntityCategory, c.ID, map[string]interface{}{"slug": c.Slug})
	WriteSuccess(w, r, c)
}

// AdminDeleteCategory removes a category with no products or children.
//
// @Summary Delete a category
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
// @Router /api/v1/admin/categories/{id} [delete]
func (h *Handler) AdminDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.catalog.DeleteCategory(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	h.audit.Record(r.Context(), audit.ActionDelete, audit.EntityCategory, id, nil)
	w.WriteHeader(http.StatusNoContent)
}
