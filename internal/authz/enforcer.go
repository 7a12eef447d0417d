// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

// Package authz provides role-based access control for the admin API using
// Casbin. The model and policy are embedded; a policy file on disk may
// replace the embedded policy.
package authz

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"

	"github.com/tomtom215/souq/internal/cache"
	"github.com/tomtom215/souq/internal/metrics"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// Admin resources.
const (
	ObjectDashboard  = "dashboard"
	ObjectCatalog    = "catalog"
	ObjectOrders     = "orders"
	ObjectGateways   = "gateways"
	ObjectBlog       = "blog"
	ObjectNewsletter = "newsletter"
	ObjectLanguages  = "languages"
	ObjectUsers      = "users"
	ObjectSettings   = "settings"
	ObjectAudit      = "audit"
)

// Actions.
const (
	ActionRead   = "read"
	ActionWrite  = "write"
	ActionDelete = "delete"
)

// Objects lists every admin resource.
var Objects = []string{
	ObjectDashboard, ObjectCatalog, ObjectOrders, ObjectGateways, ObjectBlog,
	ObjectNewsletter, ObjectLanguages, ObjectUsers, ObjectSettings, ObjectAudit,
}

// EnforcerConfig holds configuration for the Casbin enforcer.
type EnforcerConfig struct {
	// PolicyPath replaces the embedded policy when the file exists.
	PolicyPath string

	// CacheTTL is how long decisions are cached. Zero disables caching.
	CacheTTL time.Duration
}

// Enforcer wraps the Casbin enforcer with a decision cache.
type Enforcer struct {
	enforcer *casbin.SyncedEnforcer
	cache    *cache.Cache[bool]
	fromFile bool
}

// NewEnforcer creates an enforcer from the embedded model.
func NewEnforcer(cfg EnforcerConfig) (*Enforcer, error) {
	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer
	fromFile := cfg.PolicyPath != "" && fileExists(cfg.PolicyPath)
	if fromFile {
		enforcer, err = casbin.NewSyncedEnforcer(m, fileadapter.NewAdapter(cfg.PolicyPath))
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err == nil {
			err = loadEmbeddedPolicy(enforcer, embeddedPolicy)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	e := &Enforcer{enforcer: enforcer, fromFile: fromFile}
	if cfg.CacheTTL > 0 {
		e.cache = cache.New[bool](cfg.CacheTTL)
	}
	return e, nil
}

// loadEmbeddedPolicy parses the embedded policy CSV.
func loadEmbeddedPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		ptype, rule := parts[0], parts[1:]

		switch {
		case ptype == "p" && len(rule) == 3:
			if _, err := enforcer.AddPolicy(rule[0], rule[1], rule[2]); err != nil {
				return fmt.Errorf("failed to add policy %v: %w", rule, err)
			}
		case ptype == "g" && len(rule) == 2:
			if _, err := enforcer.AddGroupingPolicy(rule[0], rule[1]); err != nil {
				return fmt.Errorf("failed to add grouping policy %v: %w", rule, err)
			}
		default:
			return fmt.Errorf("malformed policy line %q", line)
		}
	}
	return nil
}

func cacheKey(subject, object, action string) string {
	return subject + ":" + object + ":" + action
}

// Enforce checks if subject (a role) can perform action on object.
func (e *Enforcer) Enforce(subject, object, action string) (bool, error) {
	key := cacheKey(subject, object, action)
	if e.cache != nil {
		if allowed, ok := e.cache.Get(key); ok {
			metrics.AuthzCacheHits.Inc()
			return allowed, nil
		}
	}

	allowed, err := e.enforcer.Enforce(subject, object, action)
	if err != nil {
		return false, fmt.Errorf("enforcement failed: %w", err)
	}

	if e.cache != nil {
		e.cache.Set(key, allowed)
	}
	return allowed, nil
}

// Permissions returns, for role, the allowed actions on every admin
// resource. The admin UI uses it to hide sections.
func (e *Enforcer) Permissions(role string) (map[string][]string, error) {
	out := make(map[string][]string, len(Objects))
	for _, object := range Objects {
		for _, action := range []string{ActionRead, ActionWrite, ActionDelete} {
			ok, err := e.Enforce(role, object, action)
			if err != nil {
				return nil, err
			}
			if ok {
				out[object] = append(out[object], action)
			}
		}
	}
	return out, nil
}

// AddPolicy grants role action on object at runtime.
func (e *Enforcer) AddPolicy(role, object, action string) (bool, error) {
	added, err := e.enforcer.AddPolicy(role, object, action)
	if err != nil {
		return false, fmt.Errorf("failed to add policy: %w", err)
	}
	e.invalidate()
	return added, nil
}

// RemovePolicy revokes a grant at runtime.
func (e *Enforcer) RemovePolicy(role, object, action string) (bool, error) {
	removed, err := e.enforcer.RemovePolicy(role, object, action)
	if err != nil {
		return false, fmt.Errorf("failed to remove policy: %w", err)
	}
	e.invalidate()
	return removed, nil
}

// Reload re-reads the policy file. It is a no-op for the embedded policy.
func (e *Enforcer) Reload() error {
	if !e.fromFile {
		return nil
	}
	if err := e.enforcer.LoadPolicy(); err != nil {
		return err
	}
	e.invalidate()
	return nil
}

// GetPolicy returns all policy rules.
func (e *Enforcer) GetPolicy() [][]string {
	//nolint:errcheck // GetPolicy only fails on a nil model
	policies, _ := e.enforcer.GetPolicy()
	return policies
}

func (e *Enforcer) invalidate() {
	if e.cache != nil {
		e.cache.Clear()
	}
}

// Close releases the decision cache.
func (e *Enforcer) Close() {
	if e.cache != nil {
		e.cache.Close()
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
