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
package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentlang-ai/agentlang/pkg/types"
)

func newTestModule(t *testing.T) *Module {
	t.Helper()
	m := NewModule("Shop")

	customer, err := NewEntity("Shop", "Customer", []*Attribute{
		{Name: "id", Type: types.TInt, ID: true},
		{Name: "email", Type: types.TEmail, Unique: true},
	}, EntityMeta{})
	require.NoError(t, err)
	require.NoError(t, m.AddEntity(customer))

	order, err := NewEntity("Shop", "Order", []*Attribute{
		{Name: "id", Type: types.TInt, ID: true},
		{Name: "total", Type: types.TNumber, Optional: true},
	}, EntityMeta{})
	require.NoError(t, err)
	require.NoError(t, m.AddEntity(order))

	item, err := NewEntity("Shop", "Item", []*Attribute{
		{Name: "id", Type: types.TInt, ID: true},
		{Name: "sku", Type: types.TString},
	}, EntityMeta{})
	require.NoError(t, err)
	require.NoError(t, m.AddEntity(item))

	require.NoError(t, m.AddRelationship(&Relationship{
		Name: "CustomerOrder", Module: "Shop", Kind: Contains,
		From: "Shop/Customer", To: "Shop/Order",
	}))
	require.NoError(t, m.AddRelationship(&Relationship{
		Name: "OrderItem", Module: "Shop", Kind: Contains,
		From: "Shop/Order", To: "Shop/Item",
	}))
	return m
}

func TestNewEntity_SingleID(t *testing.T) {
	_, err := NewEntity("M", "Bad", []*Attribute{
		{Name: "a", Type: types.TInt, ID: true},
		{Name: "b", Type: types.TInt, ID: true},
	}, EntityMeta{})
	require.Error(t, err)
	assert.Equal(t, types.KindValidation, types.KindOf(err))
}

func TestNewEntity_GeneratedID(t *testing.T) {
	e, err := NewEntity("M", "Note", []*Attribute{
		{Name: "text", Type: types.TString},
	}, EntityMeta{})
	require.NoError(t, err)
	assert.Equal(t, GeneratedIDAttr, e.IDAttr().Name)
	assert.Equal(t, DefaultUUID, e.IDAttr().DefaultKind)
}

func TestNewRecord_DuplicateAttr(t *testing.T) {
	_, err := NewRecord("M", "R", []*Attribute{
		{Name: "x", Type: types.TInt},
		{Name: "x", Type: types.TString},
	})
	require.Error(t, err)
}

func TestModule_DuplicateDefinition(t *testing.T) {
	m := newTestModule(t)
	dup, err := NewEntity("Shop", "Customer", []*Attribute{
		{Name: "id", Type: types.TInt, ID: true},
	}, EntityMeta{})
	require.NoError(t, err)
	require.Error(t, m.AddEntity(dup))
}

func TestRegistry_Resolve(t *testing.T) {
	reg := NewRegistry()
	reg.AddModule(newTestModule(t))

	e, err := reg.Entity("Shop/Customer", "")
	require.NoError(t, err)
	assert.Equal(t, "Shop/Customer", e.FQName())

	// unqualified against the active module
	e, err = reg.Entity("Order", "Shop")
	require.NoError(t, err)
	assert.Equal(t, "Shop/Order", e.FQName())

	_, err = reg.Entity("Missing", "Shop")
	assert.Equal(t, types.KindNotFound, types.KindOf(err))

	_, err = reg.Entity("Nope/Thing", "")
	assert.Equal(t, types.KindValidation, types.KindOf(err))
}

func TestGraph_Contains(t *testing.T) {
	reg := NewRegistry()
	reg.AddModule(newTestModule(t))

	g, err := reg.Graph("Shop")
	require.NoError(t, err)

	kids := g.ContainsChildren("Shop/Customer")
	require.Len(t, kids, 1)
	assert.Equal(t, "Shop/Order", kids[0].To)

	parent, ok := g.ContainsParent("Shop/Item")
	require.True(t, ok)
	assert.Equal(t, "Shop/Order", parent.From)

	_, ok = g.ContainsParent("Shop/Customer")
	assert.False(t, ok)
}

func TestRegistry_UniqueSets(t *testing.T) {
	reg := NewRegistry()
	m := newTestModule(t)
	m.Entities["Customer"].Meta.UniqueTuples = [][]string{{"id", "email"}}
	reg.AddModule(m)

	sets := reg.UniqueSets(m.Entities["Customer"])
	assert.Contains(t, sets, []string{"email"})
	assert.Contains(t, sets, []string{"id", "email"})
}

func TestRelationship_RefColumn(t *testing.T) {
	oneMany := &Relationship{Name: "DeptEmployee", Kind: Between, Card: OneMany}
	assert.True(t, oneMany.UsesRefColumn())
	assert.Equal(t, "DeptEmployee", oneMany.RefColumn())

	manyMany := &Relationship{Name: "TagPost", Kind: Between, Card: ManyMany}
	assert.False(t, manyMany.UsesRefColumn())

	contains := &Relationship{Name: "CustomerOrder", Kind: Contains}
	assert.False(t, contains.UsesRefColumn())
}

func TestSplitFQ(t *testing.T) {
	mod, entry := SplitFQ("Shop/Customer")
	assert.Equal(t, "Shop", mod)
	assert.Equal(t, "Customer", entry)

	mod, entry = SplitFQ("Customer")
	assert.Equal(t, "", mod)
	assert.Equal(t, "Customer", entry)
}

func TestRBACRule_Allows(t *testing.T) {
	r := &RBACRule{Roles: []string{"editor"}, Allow: []string{"create", "read"}}
	assert.True(t, r.Allows("create"))
	assert.False(t, r.Allows("delete"))
}
