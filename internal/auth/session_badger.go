// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/souq/internal/kv"
)

// Key prefixes for Badger storage
const (
	sessionKeyPrefix     = "session:"
	sessionUserKeyPrefix = "session_user:"
)

// BadgerSessionStore implements SessionStore on the shared KV store. Keys
// carry a Badger TTL matching the session expiry.
type BadgerSessionStore struct {
	store *kv.Store
}

// NewBadgerSessionStore creates a Badger-backed session store.
func NewBadgerSessionStore(store *kv.Store) *BadgerSessionStore {
	return &BadgerSessionStore{store: store}
}

func sessionKey(id string) []byte {
	return []byte(sessionKeyPrefix + id)
}

func sessionUserKey(userID, id string) []byte {
	return []byte(sessionUserKeyPrefix + userID + ":" + id)
}

func writeSession(txn *badger.Txn, session *Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return ErrSessionExpired
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := txn.SetEntry(badger.NewEntry(sessionKey(session.ID), data).WithTTL(ttl)); err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	userEntry := badger.NewEntry(sessionUserKey(session.UserID, session.ID), []byte(session.ID)).WithTTL(ttl)
	if err := txn.SetEntry(userEntry); err != nil {
		return fmt.Errorf("set user mapping: %w", err)
	}
	return nil
}

func readSession(txn *badger.Txn, id string) (*Session, error) {
	item, err := txn.Get(sessionKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	var session Session
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &session)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

// Create stores a new session.
func (s *BadgerSessionStore) Create(_ context.Context, session *Session) error {
	return s.store.Update(func(txn *badger.Txn) error {
		return writeSession(txn, session)
	})
}

// Get retrieves a session by ID.
func (s *BadgerSessionStore) Get(_ context.Context, id string) (*Session, error) {
	var session *Session
	err := s.store.DB().View(func(txn *badger.Txn) error {
		var err error
		session, err = readSession(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if session.IsExpired() {
		return nil, ErrSessionExpired
	}
	return session, nil
}

// Delete removes a session and its user mapping.
func (s *BadgerSessionStore) Delete(_ context.Context, id string) error {
	return s.store.Update(func(txn *badger.Txn) error {
		session, err := readSession(txn, id)
		if errors.Is(err, ErrSessionNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := txn.Delete(sessionKey(id)); err != nil {
			return err
		}
		return txn.Delete(sessionUserKey(session.UserID, id))
	})
}

// DeleteByUserID removes all sessions for a user.
func (s *BadgerSessionStore) DeleteByUserID(_ context.Context, userID string) (int, error) {
	count := 0
	err := s.store.Update(func(txn *badger.Txn) error {
		ids, err := userSessionIDs(txn, userID)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := txn.Delete(sessionKey(id)); err != nil {
				return err
			}
			if err := txn.Delete(sessionUserKey(userID, id)); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	return count, err
}

func userSessionIDs(txn *badger.Txn, userID string) ([]string, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = []byte(sessionUserKeyPrefix + userID + ":")
	it := txn.NewIterator(opts)
	defer it.Close()

	var ids []string
	for it.Rewind(); it.Valid(); it.Next() {
		key := string(it.Item().Key())
		ids = append(ids, key[strings.LastIndex(key, ":")+1:])
	}
	return ids, nil
}

// GetByUserID returns the live sessions of a user.
func (s *BadgerSessionStore) GetByUserID(_ context.Context, userID string) ([]*Session, error) {
	var sessions []*Session
	err := s.store.DB().View(func(txn *badger.Txn) error {
		ids, err := userSessionIDs(txn, userID)
		if err != nil {
			return err
		}
		for _, id := range ids {
			session, err := readSession(txn, id)
			if errors.Is(err, ErrSessionNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if !session.IsExpired() {
				sessions = append(sessions, session)
			}
		}
		return nil
	})
	return sessions, err
}

// Touch records access and rewrites both keys with the new TTL.
func (s *BadgerSessionStore) Touch(_ context.Context, id string, newExpiry time.Time) error {
	return s.store.Update(func(txn *badger.Txn) error {
		session, err := readSession(txn, id)
		if err != nil {
			return err
		}
		session.LastAccessedAt = time.Now()
		session.ExpiresAt = newExpiry
		return writeSession(txn, session)
	})
}

// CleanupExpired deletes sessions whose expiry passed before their TTL
// fired, for example after a clock change.
func (s *BadgerSessionStore) CleanupExpired(ctx context.Context) (int, error) {
	var expired []*Session
	err := s.store.Scan(ctx, sessionKeyPrefix, func(_ string, value []byte) bool {
		var session Session
		if json.Unmarshal(value, &session) == nil && session.IsExpired() {
			expired = append(expired, &session)
		}
		return true
	})
	if err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}

	err = s.store.Update(func(txn *badger.Txn) error {
		for _, session := range expired {
			if err := txn.Delete(sessionKey(session.ID)); err != nil {
				return err
			}
			if err := txn.Delete(sessionUserKey(session.UserID, session.ID)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(expired), nil
}
