// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

// Package kv wraps the Badger database shared by carts and sessions.
//
// Values are JSON documents stored under prefixed keys with native Badger
// TTLs, so expired carts and sessions disappear without a sweep.
package kv

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/souq/internal/config"
	"github.com/tomtom215/souq/internal/logging"
)

var (
	// ErrNotFound is returned when a key does not exist or has expired.
	ErrNotFound = errors.New("kv: key not found")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("kv: store closed")
)

// Store is a JSON document store on top of Badger.
type Store struct {
	db *badger.DB

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the Badger database described by cfg.
func Open(cfg *config.KVConfig) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("kv: nil config")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("kv: path is required unless in_memory is set")
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Msg("KV store opened")
	return &Store{db: db}, nil
}

// OpenInMemory opens a throwaway in-memory store.
func OpenInMemory() (*Store, error) {
	return Open(&config.KVConfig{InMemory: true})
}

// DB exposes the underlying Badger handle.
func (s *Store) DB() *badger.DB {
	return s.db
}

func (s *Store) check() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Get decodes the value at key into dst.
func (s *Store) Get(_ context.Context, key string, dst interface{}) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, dst)
		})
	})
}

// Set encodes value at key. A positive ttl expires the key.
func (s *Store) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := s.check(); err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), data)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
}

// SetMany writes several keys atomically with the same ttl.
func (s *Store) SetMany(_ context.Context, values map[string]interface{}, ttl time.Duration) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		for key, value := range values {
			data, err := json.Marshal(value)
			if err != nil {
				return fmt.Errorf("marshal %s: %w", key, err)
			}
			e := badger.NewEntry([]byte(key), data)
			if ttl > 0 {
				e = e.WithTTL(ttl)
			}
			if err := txn.SetEntry(e); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes keys. Missing keys are not an error.
func (s *Store) Delete(_ context.Context, keys ...string) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete([]byte(key)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Scan calls fn for every live key under prefix. Returning false from fn
// stops the iteration.
func (s *Store) Scan(_ context.Context, prefix string, fn func(key string, value []byte) bool) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var keep bool
			err := item.Value(func(val []byte) error {
				keep = fn(string(item.KeyCopy(nil)), val)
				return nil
			})
			if err != nil {
				return err
			}
			if !keep {
				return nil
			}
		}
		return nil
	})
}

// Update runs fn inside a read-write Badger transaction.
func (s *Store) Update(fn func(txn *badger.Txn) error) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.db.Update(fn)
}

// RunGC reclaims value log space. ErrNoRewrite means there was nothing to do.
func (s *Store) RunGC() error {
	if err := s.check(); err != nil {
		return err
	}
	if s.db.Opts().InMemory {
		return nil
	}
	for {
		err := s.db.RunValueLogGC(0.5)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// Close closes the database. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.db.Close()
}
