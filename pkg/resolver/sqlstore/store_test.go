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
package sqlstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/agentlang-ai/agentlang/internal/sqlitedriver"
	"github.com/agentlang-ai/agentlang/pkg/ast"
	"github.com/agentlang-ai/agentlang/pkg/instance"
	"github.com/agentlang-ai/agentlang/pkg/resolver"
	"github.com/agentlang-ai/agentlang/pkg/schema"
	"github.com/agentlang-ai/agentlang/pkg/types"
)

var noAuth = resolver.AuthInfo{}

func newTestStore(t *testing.T) (*Store, *schema.Module) {
	t.Helper()
	m := schema.NewModule("Shop")

	customer, err := schema.NewEntity("Shop", "Customer", []*schema.Attribute{
		{Name: "id", Type: types.TInt, ID: true},
		{Name: "name", Type: types.TString},
		{Name: "email", Type: types.TEmail, Unique: true},
	}, schema.EntityMeta{})
	require.NoError(t, err)
	require.NoError(t, m.AddEntity(customer))

	order, err := schema.NewEntity("Shop", "Order", []*schema.Attribute{
		{Name: "id", Type: types.TInt, ID: true},
		{Name: "cust", Type: types.TInt},
		{Name: "year", Type: types.TInt},
		{Name: "total", Type: types.TNumber},
		{Name: "note", Type: types.TString, Optional: true},
	}, schema.EntityMeta{})
	require.NoError(t, err)
	require.NoError(t, m.AddEntity(order))

	tag, err := schema.NewEntity("Shop", "Tag", []*schema.Attribute{
		{Name: "id", Type: types.TInt, ID: true},
		{Name: "label", Type: types.TString},
	}, schema.EntityMeta{})
	require.NoError(t, err)
	require.NoError(t, m.AddEntity(tag))

	require.NoError(t, m.AddRelationship(&schema.Relationship{
		Name: "CustomerOrder", Module: "Shop", Kind: schema.Contains,
		From: "Shop/Customer", To: "Shop/Order",
	}))
	require.NoError(t, m.AddRelationship(&schema.Relationship{
		Name: "OrderTag", Module: "Shop", Kind: schema.Between,
		From: "Shop/Order", To: "Shop/Tag", Card: schema.ManyMany,
	}))

	reg := schema.NewRegistry()
	reg.AddModule(m)

	s, err := New(reg, Config{DSN: filepath.Join(t.TempDir(), "shop.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.EnsureSchema(context.Background(), m))
	return s, m
}

func mkCustomer(t *testing.T, s *Store, id int64, name, email string) *instance.Instance {
	t.Helper()
	ctx := context.Background()
	inst := instance.New("Shop/Customer", map[string]any{
		"id": id, "name": name, "email": email,
	})
	inst.SetPath(instance.RootPath("Shop", "Customer", id))
	created, err := s.CreateInstance(ctx, "", noAuth, inst)
	require.NoError(t, err)
	return created
}

func mkOrder(t *testing.T, s *Store, parent *instance.Instance, id, cust, year int64, total float64) *instance.Instance {
	t.Helper()
	ctx := context.Background()
	inst := instance.New("Shop/Order", map[string]any{
		"id": id, "cust": cust, "year": year, "total": total,
	})
	inst.SetPath(instance.ChildPath(parent.Path(), "CustomerOrder", "Order", id))
	created, err := s.CreateInstance(ctx, "", noAuth, inst)
	require.NoError(t, err)
	return created
}

func TestStore_CreateFetchRoundtrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	created := mkCustomer(t, s, 1, "ada", "ada@example.com")
	assert.Equal(t, int64(1), created.Attrs["id"])
	assert.Equal(t, "ada", created.Attrs["name"])
	assert.Equal(t, "/Shop/Customer/1", created.Path())
	assert.False(t, created.Deleted())

	rows, err := s.QueryInstances(ctx, "", noAuth,
		instance.NewQuery("Shop/Customer", map[string]any{"email": "ada@example.com"}, nil), false)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0].Attrs["id"])
}

func TestStore_UniqueViolation(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	mkCustomer(t, s, 1, "ada", "ada@example.com")

	dup := instance.New("Shop/Customer", map[string]any{
		"id": int64(2), "name": "imposter", "email": "ada@example.com",
	})
	_, err := s.CreateInstance(ctx, "", noAuth, dup)
	require.Error(t, err)
	assert.Equal(t, types.KindUnique, types.KindOf(err))
}

func TestStore_Upsert(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	mkCustomer(t, s, 1, "ada", "ada@example.com")

	again := instance.New("Shop/Customer", map[string]any{
		"id": int64(1), "name": "ada lovelace", "email": "ada@example.com",
	})
	updated, err := s.UpsertInstance(ctx, "", noAuth, again)
	require.NoError(t, err)
	assert.Equal(t, "ada lovelace", updated.Attrs["name"])

	all, err := s.QueryInstances(ctx, "", noAuth, instance.NewQuery("Shop/Customer", nil, nil), true)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStore_Update(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	created := mkCustomer(t, s, 1, "ada", "ada@example.com")

	updated, err := s.UpdateInstance(ctx, "", noAuth, created, map[string]any{"name": "countess"})
	require.NoError(t, err)
	assert.Equal(t, "countess", updated.Attrs["name"])
	assert.Equal(t, "ada@example.com", updated.Attrs["email"])

	ghost := instance.New("Shop/Customer", map[string]any{"id": int64(99)})
	_, err = s.UpdateInstance(ctx, "", noAuth, ghost, map[string]any{"name": "x"})
	require.Error(t, err)
	assert.Equal(t, types.KindNotFound, types.KindOf(err))
}

func TestStore_QueryOps(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	cust := mkCustomer(t, s, 1, "ada", "ada@example.com")
	mkOrder(t, s, cust, 10, 1, 2023, 5)
	mkOrder(t, s, cust, 11, 1, 2024, 50)
	mkOrder(t, s, cust, 12, 1, 2024, 120)

	q := instance.NewQuery("Shop/Order",
		map[string]any{"total": float64(40)},
		map[string]ast.Op{"total": ast.OpGe})
	rows, err := s.QueryInstances(ctx, "", noAuth, q, false)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(11), rows[0].Attrs["id"])

	q = instance.NewQuery("Shop/Order",
		map[string]any{"year": []any{2023, 2024}},
		map[string]ast.Op{"year": ast.OpIn})
	rows, err = s.QueryInstances(ctx, "", noAuth, q, false)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	q = instance.NewQuery("Shop/Order",
		map[string]any{"total": []any{10, 60}},
		map[string]ast.Op{"total": ast.OpBetween})
	rows, err = s.QueryInstances(ctx, "", noAuth, q, false)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(11), rows[0].Attrs["id"])
}

func TestStore_SoftDeleteAndPurge(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	mkCustomer(t, s, 1, "ada", "ada@example.com")
	mkCustomer(t, s, 2, "bob", "bob@example.com")

	matched, err := s.DeleteInstance(ctx, "", noAuth,
		instance.NewQuery("Shop/Customer", map[string]any{"id": int64(1)}, nil), false)
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.True(t, matched[0].Deleted())

	live, err := s.QueryInstances(ctx, "", noAuth, instance.NewQuery("Shop/Customer", nil, nil), true)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, int64(2), live[0].Attrs["id"])

	// deleting nothing is not an error here; the evaluator decides what a
	// miss means
	matched, err = s.DeleteInstance(ctx, "", noAuth,
		instance.NewQuery("Shop/Customer", map[string]any{"id": int64(42)}, nil), false)
	require.NoError(t, err)
	assert.Empty(t, matched)

	_, err = s.DeleteInstance(ctx, "", noAuth,
		instance.NewQuery("Shop/Customer", map[string]any{"id": int64(2)}, nil), true)
	require.NoError(t, err)
	var n int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM "al__shop__customer" WHERE "id" = 2`).Scan(&n))
	assert.Equal(t, 0, n)
}

func TestStore_CascadeByPathPrefix(t *testing.T) {
	s, m := newTestStore(t)
	ctx := context.Background()
	cust := mkCustomer(t, s, 1, "ada", "ada@example.com")
	mkOrder(t, s, cust, 10, 1, 2024, 5)
	mkOrder(t, s, cust, 11, 1, 2024, 9)

	other := mkCustomer(t, s, 2, "bob", "bob@example.com")
	mkOrder(t, s, other, 20, 2, 2024, 7)

	require.NoError(t, s.DeleteByPathPrefix(ctx, "", noAuth, m.Entities["Order"], cust.Path(), false))

	left, err := s.QueryInstances(ctx, "", noAuth, instance.NewQuery("Shop/Order", nil, nil), true)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, int64(20), left[0].Attrs["id"])
}

func TestStore_QueryChildInstances(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	ada := mkCustomer(t, s, 1, "ada", "ada@example.com")
	bob := mkCustomer(t, s, 2, "bob", "bob@example.com")
	mkOrder(t, s, ada, 10, 1, 2024, 5)
	mkOrder(t, s, ada, 11, 1, 2024, 9)
	mkOrder(t, s, bob, 20, 2, 2024, 7)

	kids, err := s.QueryChildInstances(ctx, "", noAuth, ada.Path(),
		instance.NewQuery("Shop/Order", nil, nil))
	require.NoError(t, err)
	require.Len(t, kids, 2)

	kids, err = s.QueryChildInstances(ctx, "", noAuth, ada.Path(),
		instance.NewQuery("Shop/Order", map[string]any{"total": float64(6)}, map[string]ast.Op{"total": ast.OpGt}))
	require.NoError(t, err)
	require.Len(t, kids, 1)
	assert.Equal(t, int64(11), kids[0].Attrs["id"])
}

func TestStore_ConnectAndQueryConnected(t *testing.T) {
	s, m := newTestStore(t)
	ctx := context.Background()
	cust := mkCustomer(t, s, 1, "ada", "ada@example.com")
	order := mkOrder(t, s, cust, 10, 1, 2024, 5)

	urgent := instance.New("Shop/Tag", map[string]any{"id": int64(1), "label": "urgent"})
	urgent.SetPath(instance.RootPath("Shop", "Tag", 1))
	_, err := s.CreateInstance(ctx, "", noAuth, urgent)
	require.NoError(t, err)
	gift := instance.New("Shop/Tag", map[string]any{"id": int64(2), "label": "gift"})
	gift.SetPath(instance.RootPath("Shop", "Tag", 2))
	_, err = s.CreateInstance(ctx, "", noAuth, gift)
	require.NoError(t, err)

	rel := m.Relationships["OrderTag"]
	_, err = s.ConnectInstances(ctx, "", noAuth, order, urgent, rel, false)
	require.NoError(t, err)
	_, err = s.ConnectInstances(ctx, "", noAuth, order, gift, rel, false)
	require.NoError(t, err)

	tags, err := s.QueryConnectedInstances(ctx, "", noAuth, rel, order,
		instance.NewQuery("Shop/Tag", nil, nil))
	require.NoError(t, err)
	require.Len(t, tags, 2)

	tags, err = s.QueryConnectedInstances(ctx, "", noAuth, rel, order,
		instance.NewQuery("Shop/Tag", map[string]any{"label": "gift"}, nil))
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, int64(2), tags[0].Attrs["id"])

	orders, err := s.QueryConnectedInstances(ctx, "", noAuth, rel, urgent,
		instance.NewQuery("Shop/Order", nil, nil))
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, int64(10), orders[0].Attrs["id"])
}

func TestStore_QueryByJoin(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	ada := mkCustomer(t, s, 1, "ada", "ada@example.com")
	bob := mkCustomer(t, s, 2, "bob", "bob@example.com")
	mkOrder(t, s, ada, 10, 1, 2024, 10)
	mkOrder(t, s, ada, 11, 1, 2024, 5)
	mkOrder(t, s, bob, 20, 2, 2023, 7)

	q := &resolver.JoinQuery{
		Src: "Shop/Customer",
		Joins: []resolver.JoinInfo{{
			Kind:   ast.JoinInner,
			Target: "Shop/Order",
			Left:   resolver.ColumnRef{Entity: "Shop/Order", Attr: "cust"},
			Right:  resolver.ColumnRef{Entity: "Shop/Customer", Attr: "id"},
		}},
		Into: []resolver.IntoCol{
			{Alias: "name", Col: resolver.ColumnRef{Entity: "Shop/Customer", Attr: "name"}},
			{Alias: "total", Agg: "sum", Col: resolver.ColumnRef{Entity: "Shop/Order", Attr: "total"}},
			{Alias: "orders", Agg: "count", Col: resolver.ColumnRef{Entity: "Shop/Order", Attr: "id"}},
		},
		Where: []resolver.WhereClause{{
			Col: resolver.ColumnRef{Entity: "Shop/Order", Attr: "year"}, Op: ast.OpEq, Value: 2024,
		}},
		GroupBy: []resolver.ColumnRef{{Entity: "Shop/Customer", Attr: "name"}},
		OrderBy: []resolver.ColumnRef{{Entity: "Shop/Customer", Attr: "name"}},
	}
	rows, err := s.QueryByJoin(ctx, "", noAuth, q)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ada", rows[0]["name"])
	assert.Equal(t, float64(15), rows[0]["total"])
	assert.Equal(t, int64(2), rows[0]["orders"])

	q.Into = nil
	_, err = s.QueryByJoin(ctx, "", noAuth, q)
	require.Error(t, err)
	assert.Equal(t, types.KindJoinPlanning, types.KindOf(err))
}

func TestStore_FullTextSearch(t *testing.T) {
	s, m := newTestStore(t)
	ctx := context.Background()
	mkCustomer(t, s, 1, "ada lovelace", "ada@example.com")
	mkCustomer(t, s, 2, "alan turing", "alan@example.com")

	hits, err := s.FullTextSearch(ctx, "", noAuth, m.Entities["Customer"], "lovelace", nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(1), hits[0].Attrs["id"])

	hits, err = s.FullTextSearch(ctx, "", noAuth, m.Entities["Customer"], "example.com", map[string]any{"limit": 1})
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	_, err = s.FullTextSearch(ctx, "", noAuth, m.Entities["Customer"], "  ", nil)
	require.Error(t, err)
	assert.Equal(t, types.KindSearchUnavailable, types.KindOf(err))
}

func TestStore_TransactionRollback(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	txn, err := s.StartTransaction(ctx)
	require.NoError(t, err)
	inst := instance.New("Shop/Customer", map[string]any{
		"id": int64(1), "name": "ada", "email": "ada@example.com",
	})
	_, err = s.CreateInstance(ctx, txn, noAuth, inst)
	require.NoError(t, err)
	require.NoError(t, s.RollbackTransaction(ctx, txn))

	rows, err := s.QueryInstances(ctx, "", noAuth, instance.NewQuery("Shop/Customer", nil, nil), true)
	require.NoError(t, err)
	assert.Empty(t, rows)

	txn, err = s.StartTransaction(ctx)
	require.NoError(t, err)
	_, err = s.CreateInstance(ctx, txn, noAuth, inst)
	require.NoError(t, err)
	require.NoError(t, s.CommitTransaction(ctx, txn))

	rows, err = s.QueryInstances(ctx, "", noAuth, instance.NewQuery("Shop/Customer", nil, nil), true)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
