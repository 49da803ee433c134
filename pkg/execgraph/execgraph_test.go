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
package execgraph

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/agentlang-ai/agentlang/internal/sqlitedriver"
	"github.com/agentlang-ai/agentlang/pkg/ast"
	"github.com/agentlang-ai/agentlang/pkg/schema"
	"github.com/agentlang-ai/agentlang/pkg/types"
)

func lit(v any) ast.Statement {
	return ast.Statement{Pattern: &ast.Lit{Value: v}}
}

func TestCompile_NodeKinds(t *testing.T) {
	wf := &schema.Workflow{
		Name:   "Flow",
		Module: "M",
		Statements: []ast.Statement{
			{Pattern: &ast.Crud{FQName: "M/E"}},
			{Pattern: &ast.Delete{Target: &ast.Crud{FQName: "M/E"}}},
			{Pattern: &ast.If{
				Cond: &ast.Lit{Value: true},
				Then: []ast.Statement{lit(1)},
				Else: []ast.Statement{lit(2)},
			}},
			{Pattern: &ast.ForEach{
				Var:    "x",
				Source: &ast.ListLit{},
				Body:   []ast.Statement{lit(3)},
			}},
			{Pattern: &ast.Return{Inner: &ast.Lit{Value: 0}}},
			{Pattern: &ast.Suspend{Inner: &ast.Lit{Value: 0}}},
			{Pattern: &ast.Search{FQName: "M/E", Query: "q"}},
			{Pattern: &ast.Binary{Op: "+", X: &ast.Lit{Value: 1}, Y: &ast.Lit{Value: 2}}},
		},
	}
	g := Compile(wf)
	assert.Equal(t, "M/Flow", g.Workflow)
	require.Len(t, g.Nodes, 8)

	kinds := make([]NodeKind, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		kinds = append(kinds, n.Kind)
	}
	assert.Equal(t, []NodeKind{
		NodeCrud, NodeDelete, NodeIf, NodeForEach,
		NodeReturn, NodeSuspend, NodeSearch, NodeExpr,
	}, kinds)

	assert.Len(t, g.Nodes[2].Then, 1)
	assert.Len(t, g.Nodes[2].Else, 1)
	assert.Len(t, g.Nodes[3].Body, 1)
}

// fakeEnv is the minimal binding scope the walker needs.
type fakeEnv struct{ bindings map[string]any }

func newFakeEnv() *fakeEnv { return &fakeEnv{bindings: map[string]any{}} }

func (e *fakeEnv) Bind(name string, v any)  { e.bindings[name] = v }
func (e *fakeEnv) Snapshot() map[string]any { return e.bindings }

func litEval(t *testing.T) StatementEvaluator {
	t.Helper()
	return func(_ context.Context, st ast.Statement, _ int) (any, error) {
		switch p := st.Pattern.(type) {
		case *ast.Lit:
			return types.Normalize(p.Value), nil
		case *ast.Return:
			inner := p.Inner.(*ast.Lit)
			return nil, &ReturnRequest{Value: types.Normalize(inner.Value)}
		case *ast.Suspend:
			inner := p.Inner.(*ast.Lit)
			return nil, &SuspendRequest{Partial: types.Normalize(inner.Value)}
		}
		t.Fatalf("unexpected pattern %T", st.Pattern)
		return nil, nil
	}
}

func TestWalker_LastValue(t *testing.T) {
	wf := &schema.Workflow{Name: "F", Module: "M", Statements: []ast.Statement{lit(1), lit(2), lit(3)}}
	w := &Walker{}
	v, err := w.Run(context.Background(), Compile(wf), newFakeEnv(), "", 0, litEval(t))
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)
}

func TestWalker_ReturnStopsWalk(t *testing.T) {
	wf := &schema.Workflow{Name: "F", Module: "M", Statements: []ast.Statement{
		lit(1),
		{Pattern: &ast.Return{Inner: &ast.Lit{Value: 42}}},
		lit(3),
	}}
	w := &Walker{}
	v, err := w.Run(context.Background(), Compile(wf), newFakeEnv(), "", 0, litEval(t))
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)
}

func TestWalker_SuspendWithoutStore(t *testing.T) {
	wf := &schema.Workflow{Name: "F", Module: "M", Statements: []ast.Statement{
		{Pattern: &ast.Suspend{Inner: &ast.Lit{Value: 1}}},
	}}
	w := &Walker{}
	_, err := w.Run(context.Background(), Compile(wf), newFakeEnv(), "", 0, litEval(t))
	require.Error(t, err)
	assert.Equal(t, types.KindConfig, types.KindOf(err))
}

func TestWalker_SuspendAndResume(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "susp.db"), nil)
	require.NoError(t, err)
	defer store.Close()

	wf := &schema.Workflow{Name: "F", Module: "M", Statements: []ast.Statement{
		lit(1),
		{Pattern: &ast.Suspend{Inner: &ast.Lit{Value: "pending"}}, Alias: "approval"},
		lit("done"),
	}}
	g := Compile(wf)
	w := &Walker{Store: store}
	env := newFakeEnv()
	env.Bind("request", "r1")

	v, err := w.Run(context.Background(), g, env, "alice", 0, litEval(t))
	require.NoError(t, err)
	pair, ok := v.([]any)
	require.True(t, ok)
	require.Len(t, pair, 2)
	assert.Equal(t, "pending", pair[0])

	id, ok := pair[1].(string)
	require.True(t, ok)

	susp, err := store.Load(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "M/F", susp.Workflow)
	assert.Equal(t, "alice", susp.UserID)
	assert.Equal(t, 2, susp.NextIndex)
	assert.Equal(t, "approval", susp.Alias)
	assert.Equal(t, "r1", susp.Bindings["request"])
	assert.Equal(t, "pending", susp.Partial)

	resumeEnv := newFakeEnv()
	for k, val := range susp.Bindings {
		resumeEnv.Bind(k, val)
	}
	v, err = w.Resume(context.Background(), g, resumeEnv, susp, "approved", litEval(t), nil)
	require.NoError(t, err)
	assert.Equal(t, "done", v)
	assert.Equal(t, "approved", resumeEnv.bindings["approval"])
}

func TestWalker_FramedSuspendAndResume(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "susp.db"), nil)
	require.NoError(t, err)
	defer store.Close()

	// The loop body suspends; the evaluator reports its position through
	// frames on the request.
	wf := &schema.Workflow{Name: "F", Module: "M", Statements: []ast.Statement{
		{Pattern: &ast.ForEach{
			Var:    "x",
			Source: &ast.ListLit{},
			Body:   []ast.Statement{lit(1)},
		}},
		lit("after"),
	}}
	g := Compile(wf)
	w := &Walker{Store: store}

	eval := func(_ context.Context, st ast.Statement, _ int) (any, error) {
		if _, ok := st.Pattern.(*ast.ForEach); ok {
			sus := &SuspendRequest{Partial: "waiting"}
			sus.TagAlias("step")
			sus.Frames = []Frame{{
				Kind:      FrameForEach,
				Index:     1,
				Var:       "x",
				Current:   float64(10),
				Remaining: []any{float64(20)},
			}}
			return nil, sus
		}
		return st.Pattern.(*ast.Lit).Value, nil
	}
	v, err := w.Run(context.Background(), g, newFakeEnv(), "", 0, eval)
	require.NoError(t, err)
	pair := v.([]any)
	require.Len(t, pair, 2)
	id := pair[1].(string)

	susp, err := store.Load(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "step", susp.Alias)
	require.Len(t, susp.Frames, 1)
	assert.Equal(t, FrameForEach, susp.Frames[0].Kind)
	assert.Equal(t, 1, susp.Frames[0].Index)
	assert.Equal(t, []any{float64(20)}, susp.Frames[0].Remaining)

	// Resume hands the frames to the finisher for the interrupted node,
	// then continues the walk.
	var finishedFrames []Frame
	finish := func(_ context.Context, st ast.Statement, frames []Frame, resumeValue any) (any, error) {
		require.IsType(t, &ast.ForEach{}, st.Pattern)
		finishedFrames = frames
		assert.Equal(t, "go", resumeValue)
		return []any{resumeValue}, nil
	}
	resumeEnv := newFakeEnv()
	v, err = w.Resume(context.Background(), g, resumeEnv, susp,
		"go",
		func(_ context.Context, st ast.Statement, _ int) (any, error) {
			return st.Pattern.(*ast.Lit).Value, nil
		},
		finish)
	require.NoError(t, err)
	assert.Equal(t, "after", v)
	require.Len(t, finishedFrames, 1)
	assert.Equal(t, "go", resumeEnv.bindings["step"])
}

func TestStore_Roundtrip(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "susp.db"), nil)
	require.NoError(t, err)
	defer store.Close()

	susp := &Suspension{
		Workflow:  "M/F",
		Module:    "M",
		UserID:    "bob",
		NextIndex: 4,
		Alias:     "step",
		Bindings:  map[string]any{"n": float64(7)},
		Partial:   map[string]any{"state": "waiting"},
	}
	require.NoError(t, store.Save(context.Background(), susp))
	require.NotEmpty(t, susp.ID)

	got, err := store.Load(context.Background(), susp.ID)
	require.NoError(t, err)
	assert.Equal(t, susp.Workflow, got.Workflow)
	assert.Equal(t, susp.NextIndex, got.NextIndex)
	assert.Equal(t, float64(7), got.Bindings["n"])
	assert.False(t, got.CreatedAt.IsZero())

	require.NoError(t, store.Delete(context.Background(), susp.ID))
	_, err = store.Load(context.Background(), susp.ID)
	assert.Equal(t, types.KindNotFound, types.KindOf(err))
}
