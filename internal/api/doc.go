// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

/*
Package api provides the HTTP JSON API of the storefront and the admin
backend.

Every response uses the APIResponse envelope. Storefront responses also
report the resolved language and its text direction in meta, so clients
can lay out right-to-left content without a second request.

Route groups:

 1. Storefront (/api/v1/):
    - health, languages, settings
    - catalog categories and products
    - cart, checkout, payment return and cancel pages
    - order lookup by number and access token
    - blog, newsletter subscription
    - authentication and the customer account

 2. Payment webhooks (/webhooks/payments/{gateway}):
    signed provider notifications. They are exempt from CSRF and are
    rate limited separately.

 3. Admin (/api/v1/admin/):
    staff only. Every group is guarded by a Casbin object (catalog, orders,
    blog and so on); the HTTP method selects the read, write or delete
    action. Mutations are written to the audit log.

 4. Metrics (/metrics): Prometheus exposition.

 5. API documentation (/swagger/): Swagger UI over the document the docs
    package registers. Handlers carry swag annotations.

Admin create and update endpoints accept JSON bodies with a
"translations" object, or form bodies using translations[lang][field]
keys.

Middleware order (outermost first):

	RequestID -> RealIP -> audit IP -> Prometheus -> performance ->
	security headers -> CORS -> compression -> rate limit ->
	language -> authentication -> CSRF -> authorization
*/
package api
