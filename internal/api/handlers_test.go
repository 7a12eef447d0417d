// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/souq/internal/audit"
	"github.com/tomtom215/souq/internal/auth"
	"github.com/tomtom215/souq/internal/authz"
	"github.com/tomtom215/souq/internal/blog"
	"github.com/tomtom215/souq/internal/cart"
	"github.com/tomtom215/souq/internal/catalog"
	"github.com/tomtom215/souq/internal/config"
	"github.com/tomtom215/souq/internal/database"
	"github.com/tomtom215/souq/internal/events"
	"github.com/tomtom215/souq/internal/i18n"
	"github.com/tomtom215/souq/internal/models"
	"github.com/tomtom215/souq/internal/newsletter"
	"github.com/tomtom215/souq/internal/newsletter/delivery"
	"github.com/tomtom215/souq/internal/orders"
	"github.com/tomtom215/souq/internal/payment"
	"github.com/tomtom215/souq/internal/testinfra"
)

const testPassword = "correct-horse-battery"

type nopSender struct{}

func (nopSender) Deliver(_ context.Context, msgs []*delivery.Message) *delivery.Report {
	return &delivery.Report{Results: make([]delivery.Result, len(msgs)), Successful: len(msgs)}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

type apiFixture struct {
	t          *testing.T
	db         *database.DB
	server     *httptest.Server
	auth       *auth.Service
	catalog    *catalog.Service
	auditStore *audit.MemoryStore
	events     *events.Recorder
	product    *models.Product
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	ctx := context.Background()
	f := &apiFixture{t: t, db: testinfra.NewDB(t), events: &events.Recorder{}, auditStore: audit.NewMemoryStore(100)}

	require.NoError(t, f.db.SaveLanguage(ctx, &i18n.Language{
		Code: "ar", Name: "Arabic", NativeName: "العربية", Direction: i18n.RTL, Active: true, SortOrder: 1,
	}))
	registry := i18n.NewRegistry("en")
	require.NoError(t, registry.Reload(ctx, f.db))

	cfg := &config.Config{
		Server:   config.ServerConfig{BaseURL: "https://shop.test"},
		Security: config.SecurityConfig{JWTSecret: strings.Repeat("s", 32), TokenTTL: time.Hour},
		Store:    config.StoreConfig{Name: "Souq", Currency: "USD", LowStockThreshold: 3},
	}

	f.catalog = catalog.NewService(f.db, registry, catalog.Config{Currency: "USD", LowStockThreshold: 3})
	t.Cleanup(f.catalog.Close)
	carts := cart.NewService(cart.NewMemoryStore(), f.catalog, time.Hour, "USD")
	gateways := payment.NewRegistryFromConfig(&config.PaymentsConfig{
		Timeout:      5 * time.Second,
		BankTransfer: config.BankTransferConfig{Enabled: true, IBAN: "KW00TEST"},
		COD:          config.CODConfig{Enabled: true, Fee: 200},
	}, f.db)
	orderSvc := orders.NewService(f.db, carts, gateways, f.events, orders.Config{
		Currency:        "USD",
		BaseURL:         cfg.Server.BaseURL,
		StoreName:       "Souq",
		Pricing:         orders.Pricing{TaxRateBasisPoints: 500, ShippingFlat: 700},
		PendingOrderTTL: time.Hour,
	})

	tokens, err := auth.NewTokenManager(cfg.Security.JWTSecret, time.Hour)
	require.NoError(t, err)
	f.auth = auth.NewService(f.db, auth.NewMemorySessionStore(), tokens,
		auth.NewLockoutManager(testinfra.NewKV(t), auth.DefaultLockoutConfig()),
		auth.ServiceConfig{BcryptCost: bcrypt.MinCost})

	enforcer, err := authz.NewEnforcer(authz.EnforcerConfig{})
	require.NoError(t, err)

	auditLogger := audit.NewLogger(f.auditStore, config.AuditConfig{Enabled: true})
	t.Cleanup(func() { _ = auditLogger.Close() })

	h, err := NewHandler(Deps{
		Config:     cfg,
		DB:         f.db,
		Languages:  registry,
		Catalog:    f.catalog,
		Carts:      carts,
		Orders:     orderSvc,
		Payments:   gateways,
		Blog:       blog.NewService(f.db, registry),
		Newsletter: newsletter.NewService(f.db, registry, nopSender{}, newsletter.Config{StoreName: "Souq", BaseURL: cfg.Server.BaseURL}),
		Auth:       f.auth,
		Authz:      enforcer,
		Audit:      auditLogger,
	})
	require.NoError(t, err)

	f.server = httptest.NewServer(h.Routes())
	t.Cleanup(f.server.Close)

	f.product = &models.Product{
		SKU: "MUG-01",
		Translations: i18n.Translations{
			"en": {"name": "Coffee Mug"},
			"ar": {"name": "كوب قهوة"},
		},
		Price:      2500,
		Stock:      10,
		TrackStock: true,
		Active:     true,
	}
	require.NoError(t, f.catalog.CreateProduct(ctx, f.product))
	return f
}

// client returns an HTTP client with its own cookie jar, standing in for
// one browser.
func (f *apiFixture) client() *http.Client {
	jar, err := cookiejar.New(nil)
	require.NoError(f.t, err)
	return &http.Client{Jar: jar}
}

func (f *apiFixture) staff(role string) *http.Client {
	email := role + "@souq.test"
	_, err := f.auth.CreateUser(context.Background(), auth.Registration{
		Email: email, Name: role, Password: testPassword,
	}, role)
	require.NoError(f.t, err)

	c := f.client()
	status, _ := f.do(c, http.MethodPost, "/api/v1/auth/login", loginRequest{Email: email, Password: testPassword})
	require.Equal(f.t, http.StatusOK, status)
	return c
}

func (f *apiFixture) do(c *http.Client, method, path string, body interface{}) (int, envelope) {
	f.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(f.t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, f.server.URL+path, rd)
	require.NoError(f.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return f.send(c, req)
}

func (f *apiFixture) send(c *http.Client, req *http.Request) (int, envelope) {
	f.t.Helper()
	resp, err := c.Do(req)
	require.NoError(f.t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(f.t, err)
	if len(raw) > 0 {
		require.NoError(f.t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func TestStorefront_LanguagesAndDirection(t *testing.T) {
	f := newAPIFixture(t)
	c := f.client()

	status, env := f.do(c, http.MethodGet, "/api/v1/languages", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "en", env.Meta.Language)
	assert.Equal(t, i18n.LTR, env.Meta.Direction)

	var langs struct {
		Default   string          `json:"default"`
		Languages []i18n.Language `json:"languages"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &langs))
	assert.Equal(t, "en", langs.Default)
	assert.Len(t, langs.Languages, 2)

	// ?lang sets the cookie, so the next request stays in Arabic.
	status, env = f.do(c, http.MethodGet, "/api/v1/catalog/products/"+f.product.Slug+"?lang=ar", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, i18n.RTL, env.Meta.Direction)

	status, env = f.do(c, http.MethodGet, "/api/v1/catalog/products/"+f.product.Slug, nil)
	require.Equal(t, http.StatusOK, status)
	var p catalog.ProductView
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "كوب قهوة", p.Name)
	assert.Equal(t, "ar", env.Meta.Language)
}

func TestStorefront_UnknownRoute(t *testing.T) {
	f := newAPIFixture(t)

	status, env := f.do(f.client(), http.MethodGet, "/api/v1/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrCodeNotFound, env.Error.Code)
}

func TestCart_EmptyWithoutCookie(t *testing.T) {
	f := newAPIFixture(t)

	status, env := f.do(f.client(), http.MethodGet, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, status)
	var view struct {
		Lines []cart.Line `json:"lines"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Empty(t, view.Lines)
}

func TestCheckout_OfflineGateways(t *testing.T) {
	tests := []struct {
		gateway string
		fee     int64
	}{
		{payment.SlugBankTransfer, 0},
		{payment.SlugCOD, 200},
	}
	for _, tt := range tests {
		t.Run(tt.gateway, func(t *testing.T) {
			f := newAPIFixture(t)
			c := f.client()

			status, _ := f.do(c, http.MethodPost, "/api/v1/cart/items", addItemRequest{ProductID: f.product.ID, Quantity: 2})
			require.Equal(t, http.StatusOK, status)

			status, env := f.do(c, http.MethodGet, "/api/v1/cart", nil)
			require.Equal(t, http.StatusOK, status)
			var view cartResponse
			require.NoError(t, json.Unmarshal(env.Data, &view))
			require.Len(t, view.Lines, 1)
			assert.Equal(t, int64(5000), view.Totals.Subtotal)

			status, env = f.do(c, http.MethodPost, "/api/v1/checkout", orders.CheckoutRequest{
				Email:   "buyer@example.com",
				Gateway: tt.gateway,
				ShippingAddress: models.Address{
					Name: "Buyer", Line1: "1 Gulf Road", City: "Kuwait City", Country: "KW",
				},
			})
			require.Equal(t, http.StatusCreated, status, "%+v", env.Error)

			var co orders.Checkout
			require.NoError(t, json.Unmarshal(env.Data, &co))
			require.NotNil(t, co.Order)
			assert.Equal(t, tt.fee, co.Order.Fee)
			assert.Equal(t, co.Order.Subtotal+co.Order.Shipping+co.Order.Tax+co.Order.Fee, co.Order.Total)
			assert.NotEmpty(t, co.AccessToken)
			assert.Empty(t, co.RedirectURL)

			p, err := f.catalog.AdminGetProduct(context.Background(), f.product.ID)
			require.NoError(t, err)
			assert.Equal(t, 8, p.Stock)

			// The cart was cleared.
			status, env = f.do(c, http.MethodGet, "/api/v1/cart", nil)
			require.Equal(t, http.StatusOK, status)
			require.NoError(t, json.Unmarshal(env.Data, &view))
			assert.Empty(t, view.Lines)

			status, env = f.do(c, http.MethodGet, "/api/v1/orders/"+co.Order.Number+"?token="+co.AccessToken, nil)
			require.Equal(t, http.StatusOK, status)

			status, _ = f.do(c, http.MethodGet, "/api/v1/orders/"+co.Order.Number+"?token=wrong", nil)
			assert.Equal(t, http.StatusNotFound, status)
		})
	}
}

func TestCheckout_WithoutCart(t *testing.T) {
	f := newAPIFixture(t)

	status, env := f.do(f.client(), http.MethodPost, "/api/v1/checkout", orders.CheckoutRequest{
		Email: "buyer@example.com", Gateway: payment.SlugCOD,
	})
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrCodeBadRequest, env.Error.Code)
}

func TestPaymentWebhook_UnknownGateway(t *testing.T) {
	f := newAPIFixture(t)

	status, env := f.do(f.client(), http.MethodPost, "/webhooks/payments/bitcoin", map[string]string{"id": "evt_1"})
	assert.Equal(t, http.StatusNotFound, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrCodeNotFound, env.Error.Code)
}

func TestAuth_RegisterMeLogout(t *testing.T) {
	f := newAPIFixture(t)
	c := f.client()

	status, env := f.do(c, http.MethodPost, "/api/v1/auth/register", auth.Registration{
		Email: "layla@example.com", Name: "Layla", Password: testPassword,
	})
	require.Equal(t, http.StatusOK, status, "%+v", env.Error)

	status, env = f.do(c, http.MethodGet, "/api/v1/auth/me", nil)
	require.Equal(t, http.StatusOK, status)
	var me struct {
		User        auth.Principal      `json:"user"`
		Permissions map[string][]string `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, "layla@example.com", me.User.Email)
	assert.Equal(t, models.RoleCustomer, me.User.Role)
	assert.Empty(t, me.Permissions)

	status, _ = f.do(c, http.MethodPost, "/api/v1/auth/logout", nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = f.do(c, http.MethodGet, "/api/v1/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	// Duplicate email.
	status, env = f.do(f.client(), http.MethodPost, "/api/v1/auth/register", auth.Registration{
		Email: "layla@example.com", Name: "Layla", Password: testPassword,
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, ErrCodeConflict, env.Error.Code)
}

func TestAuth_LoginRejectsBadPassword(t *testing.T) {
	f := newAPIFixture(t)
	_, err := f.auth.Register(context.Background(), auth.Registration{
		Email: "omar@example.com", Name: "Omar", Password: testPassword,
	})
	require.NoError(t, err)

	status, env := f.do(f.client(), http.MethodPost, "/api/v1/auth/login", loginRequest{Email: "omar@example.com", Password: "nope-nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, ErrCodeUnauthorized, env.Error.Code)
}

func TestAuth_BearerToken(t *testing.T) {
	f := newAPIFixture(t)
	_, err := f.auth.Register(context.Background(), auth.Registration{
		Email: "sara@example.com", Name: "Sara", Password: testPassword,
	})
	require.NoError(t, err)

	c := f.client()
	status, env := f.do(c, http.MethodPost, "/api/v1/auth/token", loginRequest{Email: "sara@example.com", Password: testPassword})
	require.Equal(t, http.StatusOK, status)
	var tok tokenResponse
	require.NoError(t, json.Unmarshal(env.Data, &tok))
	assert.Equal(t, "Bearer", tok.TokenType)

	req, err := http.NewRequest(http.MethodGet, f.server.URL+"/api/v1/account/orders", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	status, _ = f.send(c, req)
	assert.Equal(t, http.StatusOK, status)
}

func TestAdmin_Authorization(t *testing.T) {
	f := newAPIFixture(t)

	status, _ := f.do(f.client(), http.MethodGet, "/api/v1/admin/products", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	customer := f.client()
	status, _ = f.do(customer, http.MethodPost, "/api/v1/auth/register", auth.Registration{
		Email: "shopper@example.com", Name: "Shopper", Password: testPassword,
	})
	require.Equal(t, http.StatusOK, status)
	status, _ = f.do(customer, http.MethodGet, "/api/v1/admin/products", nil)
	assert.Equal(t, http.StatusForbidden, status)

	editor := f.staff(models.RoleEditor)
	status, _ = f.do(editor, http.MethodGet, "/api/v1/admin/products", nil)
	assert.Equal(t, http.StatusOK, status)
	status, env := f.do(editor, http.MethodPost, "/api/v1/admin/products", map[string]interface{}{
		"sku": "TEA-01", "price": 900, "translations": map[string]map[string]string{"en": {"name": "Tea"}},
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, ErrCodeForbidden, env.Error.Code)
	status, _ = f.do(editor, http.MethodGet, "/api/v1/admin/users", nil)
	assert.Equal(t, http.StatusForbidden, status)

	manager := f.staff(models.RoleManager)
	status, _ = f.do(manager, http.MethodGet, "/api/v1/admin/orders", nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = f.do(manager, http.MethodGet, "/api/v1/admin/posts", nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestAdmin_MePermissions(t *testing.T) {
	f := newAPIFixture(t)
	editor := f.staff(models.RoleEditor)

	status, env := f.do(editor, http.MethodGet, "/api/v1/auth/me", nil)
	require.Equal(t, http.StatusOK, status)
	var me struct {
		Permissions map[string][]string `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Contains(t, me.Permissions, authz.ObjectBlog)
	assert.NotContains(t, me.Permissions, authz.ObjectUsers)
}

func TestAdmin_CreateProductIsAudited(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.staff(models.RoleAdmin)

	status, env := f.do(admin, http.MethodPost, "/api/v1/admin/products", map[string]interface{}{
		"sku":          "TEA-01",
		"price":        900,
		"stock":        5,
		"track_stock":  true,
		"active":       true,
		"translations": map[string]map[string]string{"en": {"name": "Mint Tea"}, "ar": {"name": "شاي بالنعناع"}},
	})
	require.Equal(t, http.StatusCreated, status, "%+v", env.Error)
	var p models.Product
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "mint-tea", p.Slug)

	assert.Eventually(t, func() bool {
		events, _, err := f.auditStore.ListAuditEvents(context.Background(), models.AuditFilter{
			EntityType: audit.EntityProduct, EntityID: p.ID,
		})
		return err == nil && len(events) == 1 && events[0].ActorEmail == "admin@souq.test"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestAdmin_CreateProductFromForm(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.staff(models.RoleAdmin)

	form := url.Values{
		"sku":                    {"DATES-1KG"},
		"price":                  {"12.50"},
		"stock":                  {"40"},
		"track_stock":            {"on"},
		"active":                 {"on"},
		"translations[en][name]": {"Medjool Dates"},
		"translations[ar][name]": {"تمر مجدول"},
	}
	req, err := http.NewRequest(http.MethodPost, f.server.URL+"/api/v1/admin/products", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	status, env := f.send(admin, req)
	require.Equal(t, http.StatusCreated, status, "%+v", env.Error)
	var p models.Product
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, int64(1250), p.Price)
	assert.Equal(t, 40, p.Stock)
	assert.True(t, p.Active)
	assert.Equal(t, "تمر مجدول", p.Translations["ar"]["name"])
}

func TestAdmin_ValidationError(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.staff(models.RoleAdmin)

	status, env := f.do(admin, http.MethodPost, "/api/v1/admin/products", map[string]interface{}{
		"sku":          "bad sku!",
		"price":        -1,
		"translations": map[string]map[string]string{"en": {"name": "Broken"}},
	})
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrCodeValidationFailed, env.Error.Code)
}

func TestAdmin_CannotDemoteSelf(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.staff(models.RoleAdmin)

	u, err := f.db.GetUserByEmail(context.Background(), "admin@souq.test")
	require.NoError(t, err)

	status, _ := f.do(admin, http.MethodPut, "/api/v1/admin/users/"+u.ID, map[string]interface{}{"role": models.RoleEditor})
	assert.Equal(t, http.StatusBadRequest, status)
}
