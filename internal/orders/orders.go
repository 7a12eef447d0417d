// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

// Package orders turns carts into orders and drives the fulfilment and
// payment state machines.
//
// Fulfilment: pending -> processing -> shipped -> completed, with pending
// and processing orders cancellable. Payment: unpaid -> pending -> paid or
// failed, and paid -> refunded. Every change is a conditional update in
// the database, so concurrent webhooks, returns and admin actions cannot
// apply the same transition twice.
package orders

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tomtom215/souq/internal/cart"
	"github.com/tomtom215/souq/internal/database"
	"github.com/tomtom215/souq/internal/events"
	"github.com/tomtom215/souq/internal/logging"
	"github.com/tomtom215/souq/internal/metrics"
	"github.com/tomtom215/souq/internal/models"
	"github.com/tomtom215/souq/internal/payment"
	"github.com/tomtom215/souq/internal/validation"
)

var (
	// ErrNotFound is returned for unknown orders and wrong access tokens.
	ErrNotFound = errors.New("order not found")

	// ErrEmptyCart is returned when checking out an empty cart.
	ErrEmptyCart = errors.New("cart is empty")

	// ErrInsufficientStock is returned when a line can no longer be
	// reserved.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrInvalidTransition is returned for status changes the state
	// machine does not allow.
	ErrInvalidTransition = errors.New("invalid order status transition")

	// ErrAmountMismatch is returned when a provider reports a different
	// amount or currency than the order total.
	ErrAmountMismatch = errors.New("payment amount does not match order total")

	// ErrPaymentUnavailable is returned when the order was placed but the
	// gateway could not start the payment.
	ErrPaymentUnavailable = errors.New("payment could not be started")
)

// Store is the persistence the service needs; *database.DB implements it.
type Store interface {
	CreateOrder(ctx context.Context, o *models.Order) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	GetOrderByNumber(ctx context.Context, number string) (*models.Order, error)
	GetOrderByPaymentReference(ctx context.Context, gateway, reference string) (*models.Order, error)
	ListOrders(ctx context.Context, f models.OrderFilter) ([]models.Order, int, error)
	TransitionOrder(ctx context.Context, t models.OrderTransition) (*models.Order, error)
	SetOrderPaymentReference(ctx context.Context, orderID, reference string) error
	ListStalePendingOrders(ctx context.Context, before time.Time, offline []string, limit int) ([]models.Order, error)
	RecordPaymentTransaction(ctx context.Context, t *models.PaymentTransaction) error
	ListPaymentTransactions(ctx context.Context, orderID string) ([]models.PaymentTransaction, error)
	RecordPaymentEvent(ctx context.Context, gateway, eventID, eventType, orderID string) (bool, error)
	ForgetPaymentEvent(ctx context.Context, gateway, eventID string) error
}

// Carts is the cart service as checkout uses it.
type Carts interface {
	View(ctx context.Context, id, lang string) (*cart.View, error)
	Clear(ctx context.Context, id string) error
}

// Gateways resolves payment gateways; *payment.Registry implements it.
type Gateways interface {
	Get(ctx context.Context, slug string) (payment.Gateway, error)
	Lookup(slug string) (payment.Gateway, error)
	Fee(slug string) int64
}

// Config configures the service.
type Config struct {
	Currency        string
	BaseURL         string // public origin used for provider return URLs
	StoreName       string
	Pricing         Pricing
	PendingOrderTTL time.Duration
}

// Service places and manages orders.
type Service struct {
	store    Store
	carts    Carts
	gateways Gateways
	events   events.Publisher
	cfg      Config
	now      func() time.Time
}

// NewService creates the order service. publisher may be nil.
func NewService(store Store, carts Carts, gateways Gateways, publisher events.Publisher, cfg Config) *Service {
	if cfg.PendingOrderTTL <= 0 {
		cfg.PendingOrderTTL = 2 * time.Hour
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Service{store: store, carts: carts, gateways: gateways, events: publisher, cfg: cfg, now: time.Now}
}

// CheckoutRequest is the customer's checkout form.
type CheckoutRequest struct {
	Email           string         `json:"email" validate:"required,email,max=254"`
	Phone           string         `json:"phone" validate:"omitempty,max=40"`
	Gateway         string         `json:"gateway" validate:"required,max=40"`
	ShippingAddress models.Address `json:"shipping_address" validate:"required"`
	Notes           string         `json:"notes" validate:"max=1000"`

	Language string `json:"-"`
	UserID   string `json:"-"`
}

// Checkout is the result of placing an order.
type Checkout struct {
	Order        *models.Order     `json:"order"`
	AccessToken  string            `json:"access_token"`
	RedirectURL  string            `json:"redirect_url,omitempty"`
	Instructions map[string]string `json:"instructions,omitempty"`
	Removed      []string          `json:"removed,omitempty"`
}

// PlaceOrder checks out a cart. Stock is reserved and the order inserted
// in one transaction; the cart is then cleared and the payment started.
// When the gateway fails after the order exists, the checkout is returned
// together with ErrPaymentUnavailable and the order expires later.
func (s *Service) PlaceOrder(ctx context.Context, cartID string, req CheckoutRequest) (*Checkout, error) {
	if verr := validation.ValidateStruct(req); verr != nil {
		return nil, verr
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	gw, err := s.gateways.Get(ctx, req.Gateway)
	if err != nil {
		return nil, err
	}

	view, err := s.carts.View(ctx, cartID, req.Language)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if len(view.Lines) == 0 {
		return nil, ErrEmptyCart
	}
	for _, l := range view.Lines {
		if !l.Available {
			return nil, fmt.Errorf("%w: %s", ErrInsufficientStock, l.Product.SKU)
		}
	}

	totals := s.Totals(view.Lines, req.Gateway)
	token, err := newAccessToken()
	if err != nil {
		return nil, err
	}
	o := &models.Order{
		UserID:          req.UserID,
		Email:           req.Email,
		Phone:           req.Phone,
		Language:        req.Language,
		Currency:        s.cfg.Currency,
		Status:          models.OrderPending,
		PaymentStatus:   models.PaymentUnpaid,
		Gateway:         gw.Slug(),
		Subtotal:        totals.Subtotal,
		Shipping:        totals.Shipping,
		Tax:             totals.Tax,
		Fee:             totals.Fee,
		Total:           totals.Total,
		ShippingAddress: req.ShippingAddress,
		Notes:           strings.TrimSpace(req.Notes),
		AccessToken:     token,
	}
	for _, l := range view.Lines {
		item := models.OrderItem{
			ProductID: l.Product.ID,
			SKU:       l.Product.SKU,
			Name:      l.Product.Name,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
			LineTotal: l.LineTotal,
		}
		if p, ok := view.Products[l.Product.ID]; ok {
			item.Restock = p.TrackStock
		}
		o.Items = append(o.Items, item)
	}

	if err := s.store.CreateOrder(ctx, o); err != nil {
		if errors.Is(err, database.ErrInsufficientStock) {
			return nil, fmt.Errorf("%w: %v", ErrInsufficientStock, err)
		}
		return nil, err
	}
	log := logging.Ctx(ctx).With().Str("order", o.Number).Str("gateway", o.Gateway).Logger()
	log.Info().Int64("total", o.Total).Str("currency", o.Currency).Int("items", len(o.Items)).Msg("Order placed")
	metrics.RecordOrderPlaced(o.Gateway, o.Currency, o.Total)

	if err := s.carts.Clear(ctx, cartID); err != nil {
		log.Warn().Err(err).Msg("Failed to clear cart after checkout")
	}
	events.PublishBestEffort(ctx, s.events, events.OrderPlaced{
		OrderID: o.ID, Number: o.Number, TotalMinor: o.Total, Currency: o.Currency, Gateway: o.Gateway, At: o.CreatedAt,
	})

	checkout := &Checkout{Order: o, AccessToken: token, Removed: view.Removed}
	res, err := gw.Purchase(ctx, s.purchaseRequest(o, req))
	if err != nil {
		log.Error().Err(err).Msg("Payment start failed")
		s.recordTransaction(ctx, o, &payment.Result{Status: models.PaymentFailed, Message: err.Error()})
		if updated, terr := s.store.TransitionOrder(ctx, models.OrderTransition{
			OrderID: o.ID, FromPayment: models.PaymentUnpaid, ToPayment: models.PaymentFailed,
		}); terr == nil {
			checkout.Order = withItems(updated, o)
		}
		metrics.RecordPayment(o.Gateway, string(models.PaymentFailed))
		return checkout, fmt.Errorf("%w: %v", ErrPaymentUnavailable, err)
	}

	checkout.RedirectURL = res.RedirectURL
	checkout.Instructions = res.Instructions
	s.recordTransaction(ctx, o, &payment.Result{Status: res.Status, ExternalID: res.ExternalID, Amount: o.Total, Currency: o.Currency, Message: "purchase started"})

	t := models.OrderTransition{
		OrderID:     o.ID,
		FromPayment: models.PaymentUnpaid,
		ToPayment:   res.Status,
		Reference:   res.ExternalID,
	}
	if res.Fulfil {
		t.From, t.To = models.OrderPending, models.OrderProcessing
	}
	updated, err := s.store.TransitionOrder(ctx, t)
	if err != nil {
		// The payment is started; a webhook or the expiry job settles the order.
		log.Error().Err(err).Msg("Failed to record payment start")
		return checkout, nil
	}
	checkout.Order = withItems(updated, o)
	metrics.RecordPayment(o.Gateway, string(res.Status))
	if res.Fulfil {
		s.statusChanged(ctx, checkout.Order, models.OrderPending)
	}
	return checkout, nil
}

func (s *Service) purchaseRequest(o *models.Order, req CheckoutRequest) payment.PurchaseRequest {
	q := url.Values{"order": {o.Number}, "token": {o.AccessToken}}.Encode()
	desc := "Order " + o.Number
	if s.cfg.StoreName != "" {
		desc = s.cfg.StoreName + " " + desc
	}
	return payment.PurchaseRequest{
		OrderID:     o.ID,
		OrderNumber: o.Number,
		Amount:      o.Total,
		Currency:    o.Currency,
		Email:       o.Email,
		Name:        req.ShippingAddress.Name,
		Phone:       o.Phone,
		Language:    o.Language,
		Description: desc,
		ReturnURL:   s.cfg.BaseURL + "/api/v1/checkout/return/" + o.Gateway + "?" + q,
		CancelURL:   s.cfg.BaseURL + "/api/v1/checkout/cancel/" + o.Gateway + "?" + q,
		WebhookURL:  s.cfg.BaseURL + "/webhooks/payments/" + o.Gateway,
	}
}

func newAccessToken() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate access token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// withItems keeps the items of prev when updated was loaded without them.
func withItems(updated, prev *models.Order) *models.Order {
	if len(updated.Items) == 0 {
		updated.Items = prev.Items
	}
	return updated
}

// Lookup returns an order for a guest who holds its access token.
func (s *Service) Lookup(ctx context.Context, number, token string) (*models.Order, error) {
	o, err := s.store.GetOrderByNumber(ctx, number)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(o.AccessToken)) != 1 {
		return nil, ErrNotFound
	}
	return o, nil
}

// Get returns an order by ID.
func (s *Service) Get(ctx context.Context, id string) (*models.Order, error) {
	o, err := s.store.GetOrder(ctx, id)
	return o, mapNotFound(err)
}

// Detail is an order with its payment history.
type Detail struct {
	*models.Order
	Transactions []models.PaymentTransaction `json:"transactions"`
}

// GetDetail returns an order with its payment history.
func (s *Service) GetDetail(ctx context.Context, id string) (*Detail, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	txs, err := s.store.ListPaymentTransactions(ctx, id)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []models.PaymentTransaction{}
	}
	return &Detail{Order: o, Transactions: txs}, nil
}

// List returns one page of orders.
func (s *Service) List(ctx context.Context, f models.OrderFilter) ([]models.Order, int, error) {
	return s.store.ListOrders(ctx, f)
}

// ListForUser returns a customer's orders, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string, limit, offset int) ([]models.Order, int, error) {
	if userID == "" {
		return []models.Order{}, 0, nil
	}
	return s.store.ListOrders(ctx, models.OrderFilter{UserID: userID, Limit: limit, Offset: offset})
}

var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderPending:    {models.OrderProcessing, models.OrderCancelled},
	models.OrderProcessing: {models.OrderShipped, models.OrderCancelled},
	models.OrderShipped:    {models.OrderCompleted},
}

// CanTransition reports whether the fulfilment state machine allows
// from -> to.
func CanTransition(from, to models.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// UpdateStatus moves an order to a new fulfilment status. Cancelling
// returns reserved stock.
func (s *Service) UpdateStatus(ctx context.Context, id string, to models.OrderStatus) (*models.Order, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}

	updated, err := s.store.TransitionOrder(ctx, models.OrderTransition{
		OrderID: id,
		From:    o.Status,
		To:      to,
		Restock: to == models.OrderCancelled,
	})
	if errors.Is(err, database.ErrConflict) {
		return nil, fmt.Errorf("%w: order changed concurrently", ErrInvalidTransition)
	}
	if err != nil {
		return nil, mapNotFound(err)
	}
	logging.Ctx(ctx).Info().Str("order", o.Number).Str("from", string(o.Status)).Str("to", string(to)).
		Msg("Order status changed")
	s.statusChanged(ctx, updated, o.Status)
	return updated, nil
}

// Cancel cancels an order and returns its stock.
func (s *Service) Cancel(ctx context.Context, id string) (*models.Order, error) {
	return s.UpdateStatus(ctx, id, models.OrderCancelled)
}

func (s *Service) statusChanged(ctx context.Context, o *models.Order, from models.OrderStatus) {
	if o.Status == from {
		return
	}
	events.PublishBestEffort(ctx, s.events, events.OrderStatusChanged{
		OrderID: o.ID, Number: o.Number, From: string(from), To: string(o.Status), At: o.UpdatedAt,
	})
}

func (s *Service) recordTransaction(ctx context.Context, o *models.Order, r *payment.Result) {
	tx := &models.PaymentTransaction{
		OrderID:    o.ID,
		Gateway:    o.Gateway,
		ExternalID: r.ExternalID,
		Status:     r.Status,
		Amount:     r.Amount,
		Currency:   r.Currency,
		Message:    r.Message,
		Raw:        r.Raw,
	}
	if tx.Currency == "" {
		tx.Currency = o.Currency
	}
	if err := s.store.RecordPaymentTransaction(ctx, tx); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("order", o.Number).Msg("Failed to record payment transaction")
	}
}

func mapNotFound(err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// HTTPStatus maps service errors to HTTP status codes.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrEmptyCart), errors.Is(err, payment.ErrUnknownGateway), errors.Is(err, payment.ErrGatewayDisabled):
		return http.StatusBadRequest
	case errors.Is(err, ErrInsufficientStock), errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrAmountMismatch):
		return http.StatusConflict
	case errors.Is(err, ErrPaymentUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
