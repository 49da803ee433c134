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
	"fmt"
	"strings"

	"github.com/spf13/cast"

	"github.com/agentlang-ai/agentlang/pkg/ast"
	"github.com/agentlang-ai/agentlang/pkg/resolver"
	"github.com/agentlang-ai/agentlang/pkg/schema"
	"github.com/agentlang-ai/agentlang/pkg/types"
)

type joinPlan struct {
	aliases map[string]string // entity FQName → table alias
}

func (p *joinPlan) column(c resolver.ColumnRef) (string, error) {
	alias, ok := p.aliases[c.Entity]
	if !ok {
		return "", types.NewError(types.KindJoinPlanning, "entity %s is not part of the join", c.Entity)
	}
	return alias + "." + Quote(c.Attr), nil
}

// QueryByJoin executes a compiled join/aggregation query and returns
// projected plain rows keyed by the @into aliases.
func (s *Store) QueryByJoin(ctx context.Context, txn resolver.Txn, auth resolver.AuthInfo, q *resolver.JoinQuery) ([]map[string]any, error) {
	if len(q.Into) == 0 {
		return nil, types.NewError(types.KindJoinPlanning, "join query has no @into projection")
	}
	srcEnt, err := s.entityFor(q.Src)
	if err != nil {
		return nil, err
	}
	plan := &joinPlan{aliases: map[string]string{q.Src: "t0"}}
	var from strings.Builder
	fmt.Fprintf(&from, "%s AS t0", Quote(tableName(q.Src)))
	for i, j := range q.Joins {
		alias := fmt.Sprintf("t%d", i+1)
		if _, dup := plan.aliases[j.Target]; dup {
			return nil, types.NewError(types.KindJoinPlanning, "entity %s joined twice", j.Target)
		}
		plan.aliases[j.Target] = alias
		var kw string
		switch j.Kind {
		case ast.JoinInner, "":
			kw = "INNER JOIN"
		case ast.JoinLeft:
			kw = "LEFT JOIN"
		case ast.JoinRight:
			kw = "RIGHT JOIN"
		case ast.JoinFull:
			kw = "FULL JOIN"
		default:
			return nil, types.NewError(types.KindJoinPlanning, "unknown join kind %q", j.Kind)
		}
		left, err := plan.column(j.Left)
		if err != nil {
			return nil, err
		}
		right, err := plan.column(j.Right)
		if err != nil {
			return nil, err
		}
		// The deleted filter rides the ON clause so outer joins keep their
		// null rows.
		fmt.Fprintf(&from, " %s %s AS %s ON %s = %s AND %s.%s = 0",
			kw, Quote(tableName(j.Target)), alias, left, right, alias, Quote(schema.DeletedAttr))
	}

	proj := make([]string, 0, len(q.Into))
	for _, col := range q.Into {
		expr, err := plan.column(col.Col)
		if err != nil {
			return nil, err
		}
		switch col.Agg {
		case "":
		case "sum", "avg", "min", "max", "count":
			expr = strings.ToUpper(col.Agg) + "(" + expr + ")"
		default:
			return nil, types.NewError(types.KindJoinPlanning, "unknown aggregate %q", col.Agg)
		}
		proj = append(proj, expr+" AS "+Quote(col.Alias))
	}

	var args []any
	conds := []string{"t0." + Quote(schema.DeletedAttr) + " = 0"}
	for _, w := range q.Where {
		col, err := plan.column(w.Col)
		if err != nil {
			return nil, err
		}
		v := types.Normalize(w.Value)
		cond, err := opSQL(col, w.Op, v, &args)
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}

	distinct := ""
	if q.Distinct {
		distinct = "DISTINCT "
	}
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s%s FROM %s WHERE %s", distinct, strings.Join(proj, ", "), from.String(), strings.Join(conds, " AND "))

	if len(q.GroupBy) > 0 {
		cols := make([]string, len(q.GroupBy))
		for i, g := range q.GroupBy {
			c, err := plan.column(g)
			if err != nil {
				return nil, err
			}
			cols[i] = c
		}
		b.WriteString(" GROUP BY " + strings.Join(cols, ", "))
	}
	if len(q.OrderBy) > 0 {
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		cols := make([]string, len(q.OrderBy))
		for i, o := range q.OrderBy {
			c, err := plan.column(o)
			if err != nil {
				return nil, err
			}
			cols[i] = c + " " + dir
		}
		// Ties break by the source id ascending; grouping may exclude the
		// id column, so the tiebreak only applies to ungrouped queries.
		if len(q.GroupBy) == 0 {
			cols = append(cols, "t0."+Quote(srcEnt.IDAttr().Name)+" ASC")
		}
		b.WriteString(" ORDER BY " + strings.Join(cols, ", "))
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}

	rows, err := s.on(txn).QueryContext(ctx, s.dialect.Rebind(b.String()), args...)
	if err != nil {
		return nil, types.WrapError(types.KindJoinPlanning, err, "join over %s", q.Src)
	}
	defer func() { _ = rows.Close() }()

	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(q.Into))
		ptrs := make([]any, len(q.Into))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, types.WrapError(types.KindResolverUnavailable, err, "scan join row")
		}
		row := make(map[string]any, len(q.Into))
		for i, col := range q.Into {
			row[col.Alias] = s.decodeJoinValue(col, vals[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, types.WrapError(types.KindResolverUnavailable, err, "iterate join rows")
	}
	return out, nil
}

func (s *Store) decodeJoinValue(col resolver.IntoCol, v any) any {
	if v == nil {
		return nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	switch col.Agg {
	case "sum", "avg":
		return cast.ToFloat64(v)
	case "count":
		return cast.ToInt64(v)
	}
	ent, err := s.entityFor(col.Col.Entity)
	if err == nil {
		if attr, ok := ent.Attr(col.Col.Attr); ok {
			return decodeValue(attr, v)
		}
	}
	return types.Normalize(v)
}
