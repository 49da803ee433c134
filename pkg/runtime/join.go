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
	"strings"

	"github.com/agentlang-ai/agentlang/pkg/ast"
	"github.com/agentlang-ai/agentlang/pkg/resolver"
	"github.com/agentlang-ai/agentlang/pkg/types"
)

// evalJoin compiles a join/aggregation pattern into the resolver's join
// query form and returns the projected rows.
func (rt *Runtime) evalJoin(ctx context.Context, env *Environment, c *ast.Crud) (any, error) {
	if len(c.Into) == 0 {
		return nil, types.NewError(types.KindJoinPlanning, "join query on %s needs an @into projection", c.FQName)
	}
	src, err := rt.Schemas.Entity(c.FQName, env.module)
	if err != nil {
		return nil, err
	}
	q := &resolver.JoinQuery{
		Src:      src.FQName(),
		Desc:     c.Desc,
		Distinct: c.Distinct,
		Limit:    c.Limit,
	}
	for _, j := range c.Joins {
		target, err := rt.Schemas.Entity(j.Target, env.module)
		if err != nil {
			return nil, err
		}
		right, err := rt.columnRef(env, j.Ref)
		if err != nil {
			return nil, err
		}
		q.Joins = append(q.Joins, resolver.JoinInfo{
			Kind:   j.Kind,
			Target: target.FQName(),
			Left:   resolver.ColumnRef{Entity: target.FQName(), Attr: j.Attr},
			Right:  right,
		})
	}
	for _, in := range c.Into {
		col, err := rt.columnRef(env, in.Ref)
		if err != nil {
			return nil, err
		}
		q.Into = append(q.Into, resolver.IntoCol{Alias: in.Alias, Agg: in.Agg, Col: col})
	}
	// Query attributes of the source pattern become filters on its columns.
	for _, e := range c.Entries {
		if !e.Query || e.Value == nil {
			continue
		}
		v, err := rt.evalPattern(ctx, env, e.Value)
		if err != nil {
			return nil, err
		}
		op := e.Op
		if op == "" {
			op = ast.OpEq
		}
		q.Where = append(q.Where, resolver.WhereClause{
			Col:   resolver.ColumnRef{Entity: src.FQName(), Attr: e.Name},
			Op:    op,
			Value: v,
		})
	}
	for _, w := range c.Where {
		col, err := rt.columnRef(env, w.Ref)
		if err != nil {
			return nil, err
		}
		v, err := rt.evalPattern(ctx, env, w.Value)
		if err != nil {
			return nil, err
		}
		op := w.Op
		if op == "" {
			op = ast.OpEq
		}
		q.Where = append(q.Where, resolver.WhereClause{Col: col, Op: op, Value: v})
	}
	for _, g := range c.GroupBy {
		col, err := rt.columnRef(env, g)
		if err != nil {
			return nil, err
		}
		q.GroupBy = append(q.GroupBy, col)
	}
	for _, o := range c.OrderBy {
		col, err := rt.columnRef(env, o)
		if err != nil {
			return nil, err
		}
		q.OrderBy = append(q.OrderBy, col)
	}

	r, txn, err := env.resolverFor(ctx, src.FQName())
	if err != nil {
		return nil, err
	}
	rows, err := r.QueryByJoin(ctx, txn, env.auth(), q)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(rows))
	for _, row := range rows {
		out = append(out, row)
	}
	return out, nil
}

// columnRef parses "Entity.attr" (the entity possibly module-qualified)
// into a fully-qualified column reference.
func (rt *Runtime) columnRef(env *Environment, ref string) (resolver.ColumnRef, error) {
	i := strings.LastIndex(ref, ".")
	if i <= 0 || i == len(ref)-1 {
		return resolver.ColumnRef{}, types.NewError(types.KindJoinPlanning, "column reference %q is not Entity.attr", ref)
	}
	ent, err := rt.Schemas.Entity(ref[:i], env.module)
	if err != nil {
		return resolver.ColumnRef{}, err
	}
	return resolver.ColumnRef{Entity: ent.FQName(), Attr: ref[i+1:]}, nil
}
