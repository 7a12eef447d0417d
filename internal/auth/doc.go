// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

/*
Package auth implements local accounts, sessions and API tokens.

# Accounts

Service registers customers, authenticates email/password logins with
bcrypt, changes passwords and bootstraps the first admin account.
Failed logins run a dummy bcrypt comparison so unknown emails and wrong
passwords take the same time. Repeated failures lock the email for an
exponentially growing period (LockoutManager).

# Sessions

Browser clients receive an opaque session ID in the souq_session cookie
(HttpOnly, SameSite=Lax). Sessions live in a SessionStore: BadgerSessionStore
in production, MemorySessionStore in tests and single-process development.

# Tokens

API clients exchange credentials for an HS256 JWT at /api/v1/auth/token
and send it as "Authorization: Bearer <token>".

# Middleware

Middleware.Authenticate resolves the principal from a bearer token first,
then from the session cookie, and stores it on the request context.
RequireAuth rejects anonymous requests. CSRF enforces a double-submit
token on cookie-authenticated unsafe requests; bearer requests are exempt.
*/
package auth
