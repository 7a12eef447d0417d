// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package payment

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/souq/internal/logging"
	"github.com/tomtom215/souq/internal/metrics"
)

const maxProviderResponse = 1 << 20

// apiClient performs provider API calls through the gateway's breaker.
type apiClient struct {
	gateway string
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

func newAPIClient(gateway, baseURL string, timeout time.Duration, bs BreakerSettings) *apiClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &apiClient{
		gateway: gateway,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		breaker: newBreaker(gateway, bs),
	}
}

// call sends one request. body may be nil, []byte, url.Values-encoded
// string or any JSON-encodable value. prepare sets auth and extra headers.
func (c *apiClient) call(ctx context.Context, op, method, path string, body interface{}, prepare func(*http.Request), out interface{}) error {
	var (
		payload     []byte
		contentType string
		err         error
	)
	switch b := body.(type) {
	case nil:
	case formBody:
		payload, contentType = []byte(b), "application/x-www-form-urlencoded"
	case []byte:
		payload, contentType = b, "application/json"
	default:
		payload, err = json.Marshal(b)
		if err != nil {
			return fmt.Errorf("%s %s: encode request: %w", c.gateway, op, err)
		}
		contentType = "application/json"
	}

	start := time.Now()
	raw, err := c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		req.Header.Set("Accept", "application/json")
		if prepare != nil {
			prepare(req)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderResponse))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return data, &ProviderError{Gateway: c.gateway, Operation: op, StatusCode: resp.StatusCode, Body: truncate(string(data), 512)}
		}
		return data, nil
	})
	metrics.RecordGatewayCall(c.gateway, op, time.Since(start))
	recordBreakerResult(c.breaker.Name(), err)

	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("gateway", c.gateway).Str("operation", op).
			Dur("duration", time.Since(start)).Msg("Payment provider call failed")
		return fmt.Errorf("%s %s: %w", c.gateway, op, err)
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("%s %s: decode response: %w", c.gateway, op, err)
		}
	}
	return nil
}

// formBody marks a url-encoded request body.
type formBody string

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func bearer(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}
