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
package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentlang-ai/agentlang/pkg/ast"
	"github.com/agentlang-ai/agentlang/pkg/instance"
	"github.com/agentlang-ai/agentlang/pkg/schema"
	"github.com/agentlang-ai/agentlang/pkg/types"
)

func staticRoles(m map[string][]string, calls *int) RoleLookup {
	return func(_ context.Context, userID string) ([]string, error) {
		if calls != nil {
			*calls++
		}
		return m[userID], nil
	}
}

func TestGate_DisabledAllowsEverything(t *testing.T) {
	g := New(Config{Enabled: false}, nil, nil, nil)
	ok, err := g.Check(context.Background(), "anyone", OpDelete,
		[]*schema.RBACRule{{Roles: []string{"admin"}, Allow: []string{"read"}}}, nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGate_KernelBypass(t *testing.T) {
	g := New(Config{Enabled: true, RulesEnabled: true}, staticRoles(nil, nil), nil, nil)
	ok, err := g.Check(context.Background(), "", OpDelete,
		[]*schema.RBACRule{{Roles: []string{"admin"}, Allow: []string{"read"}}}, nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGate_EmptyRulesOpen(t *testing.T) {
	g := New(Config{Enabled: true, RulesEnabled: true}, staticRoles(nil, nil), nil, nil)
	ok, err := g.Check(context.Background(), "alice", OpCreate, nil, nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGate_RuleMatching(t *testing.T) {
	roles := map[string][]string{"alice": {"editor"}, "bob": {"viewer"}}
	g := New(Config{Enabled: true, RulesEnabled: true}, staticRoles(roles, nil), nil, nil)
	rules := []*schema.RBACRule{
		{Roles: []string{"editor"}, Allow: []string{OpCreate, OpUpdate}},
		{Roles: []string{"viewer"}, Allow: []string{OpRead}},
	}

	ok, err := g.Check(context.Background(), "alice", OpUpdate, rules, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Check(context.Background(), "bob", OpUpdate, rules, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = g.Check(context.Background(), "bob", OpRead, rules, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	// no roles at all
	ok, err = g.Check(context.Background(), "mallory", OpRead, rules, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGate_WildcardRole(t *testing.T) {
	g := New(Config{Enabled: true, RulesEnabled: true}, staticRoles(nil, nil), nil, nil)
	rules := []*schema.RBACRule{{Roles: []string{"*"}, Allow: []string{OpRead}}}
	ok, err := g.Check(context.Background(), "anyone", OpRead, rules, nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGate_AdminBypass(t *testing.T) {
	rules := []*schema.RBACRule{{Roles: []string{"editor"}, Allow: []string{OpRead}}}

	g := New(Config{Enabled: true, RulesEnabled: true, AdminUser: "root"}, staticRoles(nil, nil), nil, nil)
	ok, err := g.Check(context.Background(), "root", OpDelete, rules, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	admins := func(_ context.Context, userID string) (bool, error) {
		return userID == "ops", nil
	}
	g = New(Config{Enabled: true, RulesEnabled: true}, staticRoles(nil, nil), admins, nil)
	ok, err = g.Check(context.Background(), "ops", OpDelete, rules, nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGate_AdminRoleAllowsUnlistedOps(t *testing.T) {
	roles := map[string][]string{"root": {AdminRole}}
	g := New(Config{Enabled: true, RulesEnabled: true}, staticRoles(roles, nil), nil, nil)

	// No rule mentions admin; the role still allows every operation.
	rules := []*schema.RBACRule{{Roles: []string{"editor"}, Allow: []string{OpRead}}}
	for _, op := range []string{OpCreate, OpRead, OpUpdate, OpDelete} {
		ok, err := g.Check(context.Background(), "root", op, rules, nil)
		require.NoError(t, err)
		assert.True(t, ok, op)
	}
}

func TestGate_WherePredicate(t *testing.T) {
	roles := map[string][]string{"alice": {"owner"}}
	where := &ast.Binary{Op: "=="} // opaque to the gate, inspected by eval
	eval := func(_ context.Context, w ast.Pattern, inst *instance.Instance, userID string) (bool, error) {
		assert.Same(t, ast.Pattern(where), w)
		return inst.Attrs["owner"] == userID, nil
	}
	g := New(Config{Enabled: true, RulesEnabled: true}, staticRoles(roles, nil), nil, eval)
	rules := []*schema.RBACRule{{Roles: []string{"owner"}, Allow: []string{OpUpdate}, Where: where}}

	mine := instance.New("Shop/Order", map[string]any{"owner": "alice"})
	ok, err := g.Check(context.Background(), "alice", OpUpdate, rules, mine)
	require.NoError(t, err)
	assert.True(t, ok)

	theirs := instance.New("Shop/Order", map[string]any{"owner": "bob"})
	ok, err = g.Check(context.Background(), "alice", OpUpdate, rules, theirs)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGate_RoleCache(t *testing.T) {
	calls := 0
	roles := map[string][]string{"alice": {"editor"}}
	g := New(Config{Enabled: true, RulesEnabled: true}, staticRoles(roles, &calls), nil, nil)
	rules := []*schema.RBACRule{{Roles: []string{"editor"}, Allow: []string{OpRead}}}

	for i := 0; i < 3; i++ {
		_, err := g.Check(context.Background(), "alice", OpRead, rules, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, calls)

	g.Invalidate("alice")
	_, err := g.Check(context.Background(), "alice", OpRead, rules, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	g.InvalidateAll()
	_, err = g.Check(context.Background(), "alice", OpRead, rules, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDeny(t *testing.T) {
	err := Deny("bob", OpDelete, "Shop/Order")
	assert.Equal(t, types.KindUnauthorised, types.KindOf(err))
	assert.Contains(t, err.Error(), "bob")
	assert.Contains(t, err.Error(), "Shop/Order")
}
