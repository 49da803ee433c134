// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package rbac implements role-based access checks over entity instances.
// The gate itself is storage-agnostic: role membership and where-clause
// evaluation are supplied as closures by the runtime, which keeps this
// package free of evaluator and resolver imports.
package rbac

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/agentlang-ai/agentlang/pkg/ast"
	"github.com/agentlang-ai/agentlang/pkg/instance"
	"github.com/agentlang-ai/agentlang/pkg/schema"
	"github.com/agentlang-ai/agentlang/pkg/types"
)

// Operations a rule may allow.
const (
	OpCreate = "create"
	OpRead   = "read"
	OpUpdate = "update"
	OpDelete = "delete"
)

// AdminRole is the role name that bypasses per-entity rules.
const AdminRole = "admin"

// RoleLookup returns the role names assigned to a user. The runtime backs
// this with a kernel-mode query against auth/UserRole.
type RoleLookup func(ctx context.Context, userID string) ([]string, error)

// AdminLookup reports whether the user is a registered administrator.
type AdminLookup func(ctx context.Context, userID string) (bool, error)

// PredicateEval evaluates a rule's where clause against a candidate
// instance on behalf of a user.
type PredicateEval func(ctx context.Context, where ast.Pattern, inst *instance.Instance, userID string) (bool, error)

// Config controls gate behaviour.
type Config struct {
	// Enabled gates everything: a disabled gate allows every access.
	Enabled bool

	// RulesEnabled controls rule evaluation. When false, any
	// authenticated user passes and only admin bypass is meaningful.
	RulesEnabled bool

	// AdminUser is allowed everything regardless of rules.
	AdminUser string

	Logger *zap.Logger
}

// Gate answers "may this user perform this operation on this instance".
type Gate struct {
	cfg    Config
	roles  RoleLookup
	admins AdminLookup
	eval   PredicateEval
	logger *zap.Logger

	mu        sync.RWMutex
	roleCache map[string][]string
}

// New builds a gate. Any of the lookups may be nil; a nil RoleLookup
// yields no roles, a nil AdminLookup only honours cfg.AdminUser, and a
// nil PredicateEval treats every where clause as satisfied.
func New(cfg Config, roles RoleLookup, admins AdminLookup, eval PredicateEval) *Gate {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		cfg:       cfg,
		roles:     roles,
		admins:    admins,
		eval:      eval,
		logger:    logger,
		roleCache: make(map[string][]string),
	}
}

// Enabled reports whether the gate performs any checks at all.
func (g *Gate) Enabled() bool { return g.cfg.Enabled }

// Invalidate drops the cached roles of one user. Called when auth/UserRole
// rows for that user change.
func (g *Gate) Invalidate(userID string) {
	g.mu.Lock()
	delete(g.roleCache, userID)
	g.mu.Unlock()
}

// InvalidateAll drops the whole role cache.
func (g *Gate) InvalidateAll() {
	g.mu.Lock()
	g.roleCache = make(map[string][]string)
	g.mu.Unlock()
}

// Check decides whether userID may perform op on inst under the entity's
// rules. An empty rule list leaves the entity open to any authenticated
// user. Callers translate a false result into silent filtering for reads
// and a KindUnauthorised error for writes.
func (g *Gate) Check(ctx context.Context, userID, op string, rules []*schema.RBACRule, inst *instance.Instance) (bool, error) {
	if !g.cfg.Enabled {
		return true, nil
	}
	// Empty user means the runtime itself (kernel mode).
	if userID == "" {
		return true, nil
	}
	admin, err := g.isAdmin(ctx, userID)
	if err != nil {
		return false, err
	}
	if admin {
		return true, nil
	}
	if !g.cfg.RulesEnabled || len(rules) == 0 {
		return true, nil
	}

	userRoles, err := g.userRoles(ctx, userID)
	if err != nil {
		return false, err
	}
	// The admin role allows everything, independent of per-entity rules.
	for _, r := range userRoles {
		if r == AdminRole {
			return true, nil
		}
	}

	for _, rule := range rules {
		if !rule.Allows(op) || !matchesRole(rule.Roles, userRoles) {
			continue
		}
		if rule.Where == nil || g.eval == nil {
			return true, nil
		}
		ok, err := g.eval(ctx, rule.Where, inst, userID)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	g.logger.Debug("rbac denied",
		zap.String("user", userID),
		zap.String("op", op),
		zap.String("entity", entityName(inst)))
	return false, nil
}

// Deny builds the error surfaced for a rejected write.
func Deny(userID, op, fqName string) error {
	return types.NewError(types.KindUnauthorised, "user %q may not %s %s", userID, op, fqName)
}

func (g *Gate) isAdmin(ctx context.Context, userID string) (bool, error) {
	if g.cfg.AdminUser != "" && userID == g.cfg.AdminUser {
		return true, nil
	}
	if g.admins == nil {
		return false, nil
	}
	return g.admins(ctx, userID)
}

func (g *Gate) userRoles(ctx context.Context, userID string) ([]string, error) {
	g.mu.RLock()
	cached, ok := g.roleCache[userID]
	g.mu.RUnlock()
	if ok {
		return cached, nil
	}
	var roles []string
	if g.roles != nil {
		var err error
		roles, err = g.roles(ctx, userID)
		if err != nil {
			return nil, err
		}
	}
	g.mu.Lock()
	g.roleCache[userID] = roles
	g.mu.Unlock()
	return roles, nil
}

func matchesRole(ruleRoles, userRoles []string) bool {
	for _, rr := range ruleRoles {
		if rr == "*" {
			return true
		}
		for _, ur := range userRoles {
			if rr == ur {
				return true
			}
		}
	}
	return false
}

func entityName(inst *instance.Instance) string {
	if inst == nil {
		return ""
	}
	return inst.FQName
}
