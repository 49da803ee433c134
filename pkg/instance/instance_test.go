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
package instance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentlang-ai/agentlang/pkg/schema"
	"github.com/agentlang-ai/agentlang/pkg/types"
)

func TestPaths(t *testing.T) {
	root := RootPath("Shop", "Customer", int64(7))
	assert.Equal(t, "/Shop/Customer/7", root)

	child := ChildPath(root, "CustomerOrder", "Order", "o1")
	assert.Equal(t, "/Shop/Customer/7/CustomerOrder/Order/o1", child)

	assert.Equal(t, "/Shop/Customer/7/%", PathPrefix(root))
	assert.Equal(t, "o1", PathID(child))
}

func TestInstance_PathAndDeleted(t *testing.T) {
	i := New("Shop/Customer", map[string]any{"id": int64(1)})
	assert.Equal(t, "", i.Path())

	i.SetPath("/Shop/Customer/1")
	assert.Equal(t, "/Shop/Customer/1", i.Path())

	assert.False(t, i.Deleted())
	i.SetAttr(schema.DeletedAttr, true)
	assert.True(t, i.Deleted())
}

func TestInstance_Query(t *testing.T) {
	q := NewQuery("Shop/Customer", map[string]any{"email": "a@b.co"}, nil)
	assert.True(t, q.IsQuery())
	assert.False(t, New("Shop/Customer", nil).IsQuery())
}

func TestInstance_AttachRelated(t *testing.T) {
	parent := New("Shop/Customer", map[string]any{"id": int64(1)})
	o1 := New("Shop/Order", map[string]any{"id": int64(10)})
	o2 := New("Shop/Order", map[string]any{"id": int64(11)})

	parent.AttachRelated("CustomerOrder", o1)
	parent.AttachRelated("CustomerOrder", o2)

	kids := parent.RelatedBy("CustomerOrder")
	require.Len(t, kids, 2)
	assert.Equal(t, int64(10), kids[0].Attrs["id"])
}

func TestToPlain_HidesPassword(t *testing.T) {
	ent, err := schema.NewEntity("Auth", "User", []*schema.Attribute{
		{Name: "id", Type: types.TInt, ID: true},
		{Name: "name", Type: types.TString},
		{Name: "secret", Type: types.TPassword},
	}, schema.EntityMeta{})
	require.NoError(t, err)

	i := New("Auth/User", map[string]any{
		"id": int64(1), "name": "dev", "secret": "hunter2",
	})
	i.SetPath("/Auth/User/1")

	plain := i.ToPlain(ent.Record)
	assert.Equal(t, "dev", plain["name"])
	assert.NotContains(t, plain, "secret")
	assert.Equal(t, "/Auth/User/1", plain[schema.PathAttr])
}

func TestToPlain_Related(t *testing.T) {
	parent := New("Shop/Customer", map[string]any{"id": int64(1)})
	child := New("Shop/Order", map[string]any{"id": int64(2)})
	parent.AttachRelated("CustomerOrder", child)

	plain := parent.ToPlain(nil)
	rel, ok := plain["CustomerOrder"].([]any)
	require.True(t, ok)
	require.Len(t, rel, 1)
}

func TestClone_Isolation(t *testing.T) {
	i := New("Shop/Customer", map[string]any{"id": int64(1)})
	c := i.Clone()
	c.SetAttr("id", int64(2))
	assert.Equal(t, int64(1), i.Attrs["id"])
}

func TestIDValue(t *testing.T) {
	ent, err := schema.NewEntity("Shop", "Customer", []*schema.Attribute{
		{Name: "id", Type: types.TInt, ID: true},
	}, schema.EntityMeta{})
	require.NoError(t, err)

	i := New("Shop/Customer", map[string]any{"id": 9})
	assert.Equal(t, int64(9), i.IDValue(ent))
}
