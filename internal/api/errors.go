// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/souq/internal/auth"
	"github.com/tomtom215/souq/internal/blog"
	"github.com/tomtom215/souq/internal/cart"
	"github.com/tomtom215/souq/internal/catalog"
	"github.com/tomtom215/souq/internal/database"
	"github.com/tomtom215/souq/internal/logging"
	"github.com/tomtom215/souq/internal/newsletter"
	"github.com/tomtom215/souq/internal/orders"
	"github.com/tomtom215/souq/internal/payment"
	"github.com/tomtom215/souq/internal/validation"
)

// Request errors raised by the handlers themselves.
var (
	errBodyTooLarge = errors.New("request body too large")
	errInvalidBody  = errors.New("invalid request body")
	errNoCart       = errors.New("cart is empty")
	errInvalidRole  = errors.New("invalid role")

	errUnsupportedLanguage = errors.New("unsupported language")
)

// statusFor maps a service error to an HTTP status and error code.
func statusFor(err error) (int, string) {
	var verr *validation.RequestValidationError
	var perr *payment.ProviderError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, ErrCodeValidationFailed
	case errors.As(err, &perr):
		return http.StatusBadGateway, ErrCodeExternalService

	case errors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge, ErrCodeBadRequest
	case errors.Is(err, errInvalidBody), errors.Is(err, errNoCart),
		errors.Is(err, errInvalidRole), errors.Is(err, errUnsupportedLanguage):
		return http.StatusBadRequest, ErrCodeBadRequest

	case errors.Is(err, database.ErrNotFound), errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, orders.ErrNotFound), errors.Is(err, blog.ErrNotFound),
		errors.Is(err, newsletter.ErrNotFound), errors.Is(err, cart.ErrItemNotInCart),
		errors.Is(err, payment.ErrUnknownGateway):
		return http.StatusNotFound, ErrCodeNotFound

	case errors.Is(err, cart.ErrInsufficientStock), errors.Is(err, orders.ErrInsufficientStock),
		errors.Is(err, database.ErrInsufficientStock):
		return http.StatusConflict, ErrCodeInsufficientStock
	case errors.Is(err, orders.ErrInvalidTransition):
		return http.StatusConflict, ErrCodeInvalidTransition
	case errors.Is(err, database.ErrDuplicate), errors.Is(err, database.ErrConflict),
		errors.Is(err, auth.ErrEmailTaken), errors.Is(err, newsletter.ErrCampaignBusy),
		errors.Is(err, orders.ErrAmountMismatch), errors.Is(err, cart.ErrProductUnavailable),
		errors.Is(err, database.ErrDefaultLanguage), errors.Is(err, payment.ErrReferenceMismatch):
		return http.StatusConflict, ErrCodeConflict

	case errors.Is(err, orders.ErrEmptyCart), errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, payment.ErrGatewayDisabled), errors.Is(err, payment.ErrNotSupported),
		errors.Is(err, payment.ErrMissingParameter), errors.Is(err, payment.ErrInvalidSignature),
		errors.Is(err, newsletter.ErrInvalidToken), errors.Is(err, auth.ErrWeakPassword):
		return http.StatusBadRequest, ErrCodeBadRequest

	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, ErrCodeUnauthorized
	case errors.Is(err, auth.ErrAccountDisabled):
		return http.StatusForbidden, ErrCodeForbidden
	case errors.Is(err, auth.ErrAccountLocked):
		return http.StatusTooManyRequests, ErrCodeAccountLocked

	case errors.Is(err, orders.ErrPaymentUnavailable):
		return http.StatusBadGateway, ErrCodeExternalService
	}
	return http.StatusInternalServerError, ErrCodeInternalError
}

// respondError renders err with the status statusFor picks. Validation
// failures carry their field details; unexpected errors are logged and
// replaced by a generic message.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	rw := NewResponseWriter(w, r)

	var verr *validation.RequestValidationError
	if errors.As(err, &verr) {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	status, code := statusFor(err)
	switch {
	case status >= http.StatusInternalServerError && code == ErrCodeInternalError:
		logging.Ctx(r.Context()).Error().Err(err).Str("path", sanitizeLogValue(r.URL.Path)).Msg("Request failed")
		rw.InternalError("An internal error occurred")
	case code == ErrCodeExternalService:
		logging.Ctx(r.Context()).Error().Err(err).Str("path", sanitizeLogValue(r.URL.Path)).Msg("Payment provider failed")
		rw.Error(status, code, "The payment provider is unavailable, please try again")
	default:
		rw.Error(status, code, err.Error())
	}
}
