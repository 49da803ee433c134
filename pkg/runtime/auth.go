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
package runtime

import (
	"context"

	"github.com/agentlang-ai/agentlang/pkg/ast"
	"github.com/agentlang-ai/agentlang/pkg/instance"
	"github.com/agentlang-ai/agentlang/pkg/rbac"
	"github.com/agentlang-ai/agentlang/pkg/resolver"
	"github.com/agentlang-ai/agentlang/pkg/schema"
	"github.com/agentlang-ai/agentlang/pkg/types"
)

const (
	authModuleName = "auth"
	userRoleFQ     = "auth/UserRole"
	adminFQ        = "auth/Admin"
)

// installAuthModule registers the built-in auth module: role assignments
// and the administrator list.
func installAuthModule(reg *schema.Registry) {
	if _, ok := reg.Module(authModuleName); ok {
		return
	}
	m := schema.NewModule(authModuleName)
	// Only administrators may touch role assignments; anything looser lets
	// a user grant themselves the admin role.
	adminOnly := []*schema.RBACRule{{
		Roles: []string{rbac.AdminRole},
		Allow: []string{rbac.OpCreate, rbac.OpRead, rbac.OpUpdate, rbac.OpDelete},
	}}
	userRole, err := schema.NewEntity(authModuleName, "UserRole", []*schema.Attribute{
		{Name: "user", Type: types.TString, Indexed: true},
		{Name: "role", Type: types.TString},
	}, schema.EntityMeta{UniqueTuples: [][]string{{"user", "role"}}, RBAC: adminOnly})
	if err != nil {
		panic(err)
	}
	admin, err := schema.NewEntity(authModuleName, "Admin", []*schema.Attribute{
		{Name: "user", Type: types.TString, Unique: true},
	}, schema.EntityMeta{RBAC: adminOnly})
	if err != nil {
		panic(err)
	}
	if err := m.AddEntity(userRole); err != nil {
		panic(err)
	}
	if err := m.AddEntity(admin); err != nil {
		panic(err)
	}
	reg.AddModule(m)
}

// lookupRoles backs the gate's role cache with a kernel-mode query against
// auth/UserRole, using the current invocation's transaction.
func (rt *Runtime) lookupRoles(ctx context.Context, userID string) ([]string, error) {
	env := envFromContext(ctx)
	if env == nil {
		return nil, nil
	}
	rows, err := rt.kernelQuery(ctx, env, userRoleFQ, "user", userID)
	if err != nil {
		return nil, err
	}
	roles := make([]string, 0, len(rows))
	for _, row := range rows {
		if r, ok := row.Attr("role"); ok {
			roles = append(roles, types.String(r))
		}
	}
	return roles, nil
}

// lookupAdmin reports membership in auth/Admin.
func (rt *Runtime) lookupAdmin(ctx context.Context, userID string) (bool, error) {
	env := envFromContext(ctx)
	if env == nil {
		return false, nil
	}
	rows, err := rt.kernelQuery(ctx, env, adminFQ, "user", userID)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

func (rt *Runtime) kernelQuery(ctx context.Context, env *Environment, fq, attr, value string) ([]*instance.Instance, error) {
	r, txn, err := env.resolverFor(ctx, fq)
	if err != nil {
		return nil, err
	}
	q := instance.NewQuery(fq,
		map[string]any{attr: value},
		map[string]ast.Op{attr: ast.OpEq})
	return r.QueryInstances(ctx, txn, resolver.AuthInfo{}, q, false)
}

// evalRBACWhere evaluates a rule's where predicate in kernel mode with
// "this" bound to the candidate instance and "auth" to the session.
func (rt *Runtime) evalRBACWhere(ctx context.Context, where ast.Pattern, inst *instance.Instance, userID string) (bool, error) {
	env := envFromContext(ctx)
	if env == nil {
		return true, nil
	}
	child := env.kernelChild()
	child.Bind("this", inst)
	child.Bind("auth", map[string]any{"user": userID})
	v, err := rt.evalPattern(ctx, child, where)
	if err != nil {
		return false, err
	}
	return types.Truthy(v), nil
}

// checkWrite gates a create/update/delete. Denial is an error; reads are
// filtered silently instead (see filterRead).
func (rt *Runtime) checkWrite(ctx context.Context, env *Environment, ent *schema.Entity, op string, inst *instance.Instance) error {
	if env.kernel || !rt.Gate.Enabled() {
		return nil
	}
	ok, err := rt.Gate.Check(ctx, env.userID, op, ent.Meta.RBAC, inst)
	if err != nil {
		return err
	}
	if !ok {
		return rbac.Deny(env.userID, op, ent.FQName())
	}
	return nil
}

// filterRead drops instances the user may not read. The caller never
// learns whether hidden rows existed.
func (rt *Runtime) filterRead(ctx context.Context, env *Environment, ent *schema.Entity, insts []*instance.Instance) (any, error) {
	out := make([]any, 0, len(insts))
	for _, inst := range insts {
		inst.AuthUserID = env.userID
		if !env.kernel && rt.Gate.Enabled() {
			ok, err := rt.Gate.Check(ctx, env.userID, rbac.OpRead, ent.Meta.RBAC, inst)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		out = append(out, inst)
	}
	return out, nil
}

// noteAuthWrite invalidates the role cache when auth assignments change.
func (rt *Runtime) noteAuthWrite(ent *schema.Entity, inst *instance.Instance) {
	fq := ent.FQName()
	if fq != userRoleFQ && fq != adminFQ {
		return
	}
	if u, ok := inst.Attr("user"); ok {
		rt.Gate.Invalidate(types.String(u))
		return
	}
	rt.Gate.InvalidateAll()
}
