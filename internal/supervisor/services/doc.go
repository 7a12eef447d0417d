// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

// Package services adapts Souq components to suture.Service.
//
// Components keep their own lifecycle shape (Start/Stop, Run/Close,
// ListenAndServe/Shutdown); the wrappers here translate that into a
// context-driven Serve that returns ctx.Err() on a clean stop and a
// wrapped error when the supervisor should restart them. Wrappers depend
// on small interfaces so they can be tested without the real server, hub
// or scheduler.
package services
