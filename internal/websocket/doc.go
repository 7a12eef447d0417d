// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

/*
Package websocket serves the admin live order feed.

A Hub owns the set of connected admin clients and fans messages out to
them. Each Client runs a read pump (pings, close detection) and a write
pump (messages, keepalive pings). The Bridge subscribes to the domain
event topics on the events router and forwards every event to the hub,
so the dashboard sees orders and payments as they happen:

	events.Bus ──► events.Router ──► Bridge ──► Hub ──► Client...

Messages are JSON objects of the form {"type": ..., "data": ...}. The
type of a forwarded event is its topic, for example "orders.placed".

Slow clients whose send buffer is full are disconnected rather than
allowed to block the broadcast loop.
*/
package websocket
