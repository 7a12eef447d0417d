// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

/*
Package cache provides a thread-safe, generic in-memory cache with TTL
expiration.

The storefront uses it for localized read models that are expensive to
rebuild and cheap to invalidate: category trees per language and product
listing pages. Admin writes drop the affected key prefix.

# Usage

	trees := cache.New[[]CategoryNode](5 * time.Minute)
	defer trees.Close()

	nodes, err := trees.GetOrLoad("tree:"+lang, func() ([]CategoryNode, error) {
	    return buildTree(ctx, lang)
	})

	// After a category write:
	trees.DeletePrefix("tree:")

GetOrLoad collapses concurrent misses for the same key into one load.
Expired entries are removed lazily on Get and by a cleanup goroutine that
runs every five minutes until Close.
*/
package cache
