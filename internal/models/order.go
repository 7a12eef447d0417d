// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package models

import "time"

// OrderStatus tracks fulfilment.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
)

// PaymentStatus tracks money, independently of fulfilment.
type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// Address is a shipping address.
type Address struct {
	Name       string `json:"name" validate:"required,max=120"`
	Phone      string `json:"phone" validate:"omitempty,max=40"`
	Line1      string `json:"line1" validate:"required,max=200"`
	Line2      string `json:"line2" validate:"omitempty,max=200"`
	City       string `json:"city" validate:"required,max=100"`
	Region     string `json:"region" validate:"omitempty,max=100"`
	PostalCode string `json:"postal_code" validate:"omitempty,max=20"`
	Country    string `json:"country" validate:"required,iso3166_1_alpha2"`
}

// Order is a placed order. Amounts are minor units of Currency.
type Order struct {
	ID               string        `json:"id"`
	Number           string        `json:"number"`
	UserID           string        `json:"user_id,omitempty"`
	Email            string        `json:"email"`
	Phone            string        `json:"phone,omitempty"`
	Language         string        `json:"language"`
	Currency         string        `json:"currency"`
	Status           OrderStatus   `json:"status"`
	PaymentStatus    PaymentStatus `json:"payment_status"`
	Gateway          string        `json:"gateway"`
	PaymentReference string        `json:"payment_reference,omitempty"`
	Subtotal         int64         `json:"subtotal"`
	Shipping         int64         `json:"shipping"`
	Tax              int64         `json:"tax"`
	Fee              int64         `json:"fee"`
	Total            int64         `json:"total"`
	ShippingAddress  Address       `json:"shipping_address"`
	Notes            string        `json:"notes,omitempty"`
	AccessToken      string        `json:"-"`
	Items            []OrderItem   `json:"items,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
	PaidAt           *time.Time    `json:"paid_at,omitempty"`
	CancelledAt      *time.Time    `json:"cancelled_at,omitempty"`
}

// OrderItem is one line of an order with a snapshot of the product at
// checkout time.
type OrderItem struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	LineTotal int64  `json:"line_total"`
	Restock   bool   `json:"-"` // product tracks stock; cancelling returns units
}

// OrderFilter narrows order listings.
type OrderFilter struct {
	Status        OrderStatus
	PaymentStatus PaymentStatus
	Gateway       string
	UserID        string
	Search        string // order number or email
	From          *time.Time
	To            *time.Time
	Limit         int
	Offset        int
}

// OrderTransition is a conditional status update. It only applies when the
// order is still in From/FromPayment.
type OrderTransition struct {
	OrderID     string
	From        OrderStatus
	To          OrderStatus
	FromPayment PaymentStatus
	ToPayment   PaymentStatus
	Reference   string // provider reference; empty keeps the current one
	Restock     bool
	At          time.Time
}
