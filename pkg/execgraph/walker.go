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
	"errors"

	"go.uber.org/zap"

	"github.com/agentlang-ai/agentlang/pkg/ast"
	"github.com/agentlang-ai/agentlang/pkg/types"
)

// Env is the binding scope the walker touches: the resume-value binding on
// resume, and the snapshot persisted on suspension.
type Env interface {
	Bind(name string, v any)
	Snapshot() map[string]any
}

// StatementEvaluator runs one top-level statement in the caller's
// environment, including its alias binding and catch handling.
type StatementEvaluator func(ctx context.Context, st ast.Statement, index int) (any, error)

// FrameResumer finishes a statement that suspended inside a nested block,
// continuing from the positions the frames record. The resume value stands
// in for the suspend pattern's result.
type FrameResumer func(ctx context.Context, st ast.Statement, frames []Frame, resumeValue any) (any, error)

// Walker drives a compiled workflow graph statement by statement.
type Walker struct {
	Store  *Store
	Logger *zap.Logger
}

// Run executes the graph from startAt. A return request stops the walk with
// its value; a suspend request persists the execution state and yields
// [partial, suspensionID]. The value of the workflow is the value of its
// last statement.
func (w *Walker) Run(ctx context.Context, g *Graph, env Env, userID string, startAt int, eval StatementEvaluator) (any, error) {
	return w.run(ctx, g, env, userID, startAt, nil, eval)
}

func (w *Walker) run(ctx context.Context, g *Graph, env Env, userID string, startAt int, last any, eval StatementEvaluator) (any, error) {
	for i := startAt; i < len(g.Nodes); i++ {
		node := g.Nodes[i]
		v, err := eval(ctx, node.Stmt, i)
		if err != nil {
			return w.unwind(ctx, g, env, userID, node, err)
		}
		last = v
	}
	return last, nil
}

// unwind translates a control signal: a return yields its value, a suspend
// persists the execution state; anything else stays an error.
func (w *Walker) unwind(ctx context.Context, g *Graph, env Env, userID string, node *Node, err error) (any, error) {
	var ret *ReturnRequest
	if errors.As(err, &ret) {
		return ret.Value, nil
	}
	var sus *SuspendRequest
	if errors.As(err, &sus) {
		return w.suspend(ctx, g, env, userID, node, sus)
	}
	return nil, err
}

// Resume continues a suspended workflow: the resume value completes the
// suspended statement (bound under its alias). When the suspension carries
// frames the interrupted top-level statement is finished through the frame
// resumer first, then the walk proceeds.
func (w *Walker) Resume(ctx context.Context, g *Graph, env Env, susp *Suspension, resumeValue any, eval StatementEvaluator, finish FrameResumer) (any, error) {
	if susp.Alias != "" {
		env.Bind(susp.Alias, resumeValue)
	}
	var last any
	if len(susp.Frames) > 0 {
		if finish == nil {
			return nil, types.NewError(types.KindConfig, "suspension %s has nested frames but no frame resumer", susp.ID)
		}
		node := g.Nodes[susp.NextIndex-1]
		v, err := finish(ctx, node.Stmt, susp.Frames, resumeValue)
		if err != nil {
			return w.unwind(ctx, g, env, susp.UserID, node, err)
		}
		last = v
	}
	return w.run(ctx, g, env, susp.UserID, susp.NextIndex, last, eval)
}

func (w *Walker) suspend(ctx context.Context, g *Graph, env Env, userID string, node *Node, sus *SuspendRequest) (any, error) {
	if w.Store == nil {
		return nil, types.NewError(types.KindConfig, "suspend requested but no suspension store is configured")
	}
	alias := node.Stmt.Alias
	if len(sus.Frames) > 0 {
		alias = sus.Alias
	}
	susp := &Suspension{
		Workflow:  g.Workflow,
		Module:    g.Module,
		UserID:    userID,
		NextIndex: node.Index + 1,
		Alias:     alias,
		Frames:    sus.Frames,
		Bindings:  env.Snapshot(),
		Partial:   sus.Partial,
	}
	if err := w.Store.Save(ctx, susp); err != nil {
		return nil, err
	}
	if w.Logger != nil {
		w.Logger.Debug("walker suspended",
			zap.String("workflow", g.Workflow),
			zap.Int("statement", node.Index))
	}
	return []any{sus.Partial, susp.ID}, nil
}
