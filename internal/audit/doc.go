// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

// Package audit records admin mutations for accountability.
//
// Every admin create, update, delete and state change is recorded as an
// event carrying the actor, the action, the affected entity, free-form
// details, the client IP and the time. Events are stored in DuckDB through
// the database package and can be listed by actor, entity or action.
//
// # Architecture
//
// The logger uses a producer-consumer pattern:
//
//	Logger.Record() -> Event Buffer (chan) -> Async Writer -> Store
//	                       |                      |
//	                   Non-blocking           Background goroutine
//
// Events are buffered in a channel so handlers never wait on the database.
// When the buffer is full the event is dropped with a warning. Close drains
// the buffer before returning.
//
// # Actor and source
//
// The actor is taken from the authenticated principal in the request
// context. The client IP is attached by Middleware, which must run after
// chi's RealIP middleware so proxies are honoured.
//
// # Retention
//
// Cleanup deletes events older than the configured retention. It is run
// by the maintenance cron job; a retention of zero keeps events forever.
package audit
