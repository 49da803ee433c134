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
	"sort"
	"strings"

	"github.com/agentlang-ai/agentlang/pkg/ast"
	"github.com/agentlang-ai/agentlang/pkg/instance"
	"github.com/agentlang-ai/agentlang/pkg/resolver"
	"github.com/agentlang-ai/agentlang/pkg/schema"
	"github.com/agentlang-ai/agentlang/pkg/types"
)

// opSQL renders one comparison condition, appending its arguments.
func opSQL(col string, op ast.Op, v any, args *[]any) (string, error) {
	switch op {
	case ast.OpEq:
		if v == nil {
			return col + " IS NULL", nil
		}
		*args = append(*args, v)
		return col + " = ?", nil
	case ast.OpNe:
		if v == nil {
			return col + " IS NOT NULL", nil
		}
		*args = append(*args, v)
		return col + " != ?", nil
	case ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
		*args = append(*args, v)
		return fmt.Sprintf("%s %s ?", col, op), nil
	case ast.OpLike:
		*args = append(*args, v)
		return col + " LIKE ?", nil
	case ast.OpIn:
		items, ok := types.Normalize(v).([]any)
		if !ok {
			return "", types.NewError(types.KindTypeMismatch, "operator in needs an array value")
		}
		if len(items) == 0 {
			return "1 = 0", nil
		}
		marks := make([]string, len(items))
		for i, it := range items {
			marks[i] = "?"
			*args = append(*args, types.Normalize(it))
		}
		return fmt.Sprintf("%s IN (%s)", col, strings.Join(marks, ", ")), nil
	case ast.OpBetween:
		pair, ok := types.Normalize(v).([]any)
		if !ok || len(pair) != 2 {
			return "", types.NewError(types.KindTypeMismatch, "operator between needs a two-element array")
		}
		*args = append(*args, types.Normalize(pair[0]), types.Normalize(pair[1]))
		return col + " BETWEEN ? AND ?", nil
	}
	return "", types.NewError(types.KindInternal, "unknown operator %q", op)
}

// whereFor builds the WHERE clause for a query or concrete instance.
// Concrete instances match by id; live rows only unless includeDeleted.
func (s *Store) whereFor(ent *schema.Entity, inst *instance.Instance, includeDeleted bool) (string, []any, error) {
	var conds []string
	var args []any
	if inst.IsQuery() {
		names := make([]string, 0, len(inst.QueryAttrs))
		for n := range inst.QueryAttrs {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			attr, ok := ent.Attr(n)
			if !ok {
				// Relationship reference columns are queryable too.
				attr = &schema.Attribute{Name: n, Type: types.TString}
			}
			op := ast.OpEq
			if inst.QueryOps != nil {
				if o, found := inst.QueryOps[n]; found {
					op = o
				}
			}
			v := inst.QueryAttrs[n]
			if op != ast.OpIn && op != ast.OpBetween && v != nil {
				ev, err := encodeValue(attr, v)
				if err != nil {
					return "", nil, types.WrapError(types.KindTypeMismatch, err, "encode query %s.%s", ent.FQName(), n)
				}
				v = ev
			}
			cond, err := opSQL(Quote(n), op, v, &args)
			if err != nil {
				return "", nil, err
			}
			conds = append(conds, cond)
		}
	} else if id := inst.IDValue(ent); id != nil {
		ev, err := encodeValue(ent.IDAttr(), id)
		if err != nil {
			return "", nil, types.WrapError(types.KindTypeMismatch, err, "encode %s id", ent.FQName())
		}
		conds = append(conds, Quote(ent.IDAttr().Name)+" = ?")
		args = append(args, ev)
	}
	if !includeDeleted {
		conds = append(conds, Quote(schema.DeletedAttr)+" = 0")
	}
	if len(conds) == 0 {
		return "", args, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// selectWhere fetches entity rows matching a prepared WHERE clause, ordered
// by id ascending.
func (s *Store) selectWhere(ctx context.Context, txn resolver.Txn, ent *schema.Entity, where string, args []any) ([]*instance.Instance, error) {
	cols := s.columnsFor(ent)
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = Quote(c.Name)
	}
	q := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s ASC",
		strings.Join(names, ", "), Quote(tableName(ent.FQName())), where, Quote(ent.IDAttr().Name))
	rows, err := s.on(txn).QueryContext(ctx, s.dialect.Rebind(q), args...)
	if err != nil {
		return nil, types.WrapError(s.dialect.MapError(err), err, "query %s", ent.FQName())
	}
	defer func() { _ = rows.Close() }()
	return s.scanInstances(rows, ent)
}

func (s *Store) scanInstances(rows rowScanner, ent *schema.Entity) ([]*instance.Instance, error) {
	cols := s.columnsFor(ent)
	var out []*instance.Instance
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, types.WrapError(types.KindResolverUnavailable, err, "scan %s", ent.FQName())
		}
		inst := instance.New(ent.FQName(), nil)
		for i, c := range cols {
			if vals[i] == nil {
				continue
			}
			inst.SetAttr(c.Name, decodeValue(c, vals[i]))
		}
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, types.WrapError(types.KindResolverUnavailable, err, "iterate %s", ent.FQName())
	}
	return out, nil
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func (s *Store) fetchByID(ctx context.Context, txn resolver.Txn, ent *schema.Entity, id any) (*instance.Instance, error) {
	ev, err := encodeValue(ent.IDAttr(), id)
	if err != nil {
		return nil, types.WrapError(types.KindTypeMismatch, err, "encode %s id", ent.FQName())
	}
	insts, err := s.selectWhere(ctx, txn, ent,
		" WHERE "+Quote(ent.IDAttr().Name)+" = ?", []any{ev})
	if err != nil {
		return nil, err
	}
	if len(insts) == 0 {
		return nil, types.NewError(types.KindNotFound, "%s id %v not found", ent.FQName(), id)
	}
	return insts[0], nil
}

// QueryInstances runs a query-pattern instance; queryAll ignores attribute
// conditions and returns every live row.
func (s *Store) QueryInstances(ctx context.Context, txn resolver.Txn, auth resolver.AuthInfo, inst *instance.Instance, queryAll bool) ([]*instance.Instance, error) {
	ent, err := s.entityFor(inst.FQName)
	if err != nil {
		return nil, err
	}
	probe := inst
	if queryAll {
		probe = instance.NewQuery(inst.FQName, nil, nil)
	}
	where, args, err := s.whereFor(ent, probe, false)
	if err != nil {
		return nil, err
	}
	return s.selectWhere(ctx, txn, ent, where, args)
}

// QueryChildInstances scopes a child query to the containment subtree under
// parentPath via prefix match.
func (s *Store) QueryChildInstances(ctx context.Context, txn resolver.Txn, auth resolver.AuthInfo, parentPath string, inst *instance.Instance) ([]*instance.Instance, error) {
	ent, err := s.entityFor(inst.FQName)
	if err != nil {
		return nil, err
	}
	where, args, err := s.whereFor(ent, inst, false)
	if err != nil {
		return nil, err
	}
	pathCond := Quote(schema.PathAttr) + " LIKE ?"
	if where == "" {
		where = " WHERE " + pathCond
	} else {
		where += " AND " + pathCond
	}
	args = append(args, instance.PathPrefix(parentPath))
	return s.selectWhere(ctx, txn, ent, where, args)
}

// QueryConnectedInstances returns instances related to connected through a
// between relationship, applying inst's own query attributes on top.
func (s *Store) QueryConnectedInstances(ctx context.Context, txn resolver.Txn, auth resolver.AuthInfo, rel *schema.Relationship, connected, inst *instance.Instance) ([]*instance.Instance, error) {
	targetEnt, err := s.entityFor(inst.FQName)
	if err != nil {
		return nil, err
	}
	where, args, err := s.whereFor(targetEnt, inst, false)
	if err != nil {
		return nil, err
	}
	connectedOnFrom := connected.FQName == rel.From
	if rel.UsesRefColumn() {
		connEnt, err := s.entityFor(connected.FQName)
		if err != nil {
			return nil, err
		}
		var cond string
		var arg any
		if connectedOnFrom {
			// Target rows carry the reference column.
			cond = Quote(rel.RefColumn()) + " = ?"
			arg = types.String(connected.IDValue(connEnt))
		} else {
			// Target is the From side: match its id to the connected row's
			// reference column.
			cond = Quote(targetEnt.IDAttr().Name) + " = ?"
			ref, _ := connected.Attr(rel.RefColumn())
			arg = types.String(ref)
		}
		if where == "" {
			where = " WHERE " + cond
		} else {
			where += " AND " + cond
		}
		args = append(args, arg)
		return s.selectWhere(ctx, txn, targetEnt, where, args)
	}
	connEnt, err := s.entityFor(connected.FQName)
	if err != nil {
		return nil, err
	}
	matchCol, linkCol := linkToCol, linkFromCol
	if !connectedOnFrom {
		matchCol, linkCol = linkFromCol, linkToCol
	}
	cond := fmt.Sprintf("CAST(%s AS TEXT) IN (SELECT %s FROM %s WHERE %s = ?)",
		Quote(targetEnt.IDAttr().Name), Quote(matchCol), Quote(linkTableName(rel)), Quote(linkCol))
	if where == "" {
		where = " WHERE " + cond
	} else {
		where += " AND " + cond
	}
	args = append(args, types.String(connected.IDValue(connEnt)))
	return s.selectWhere(ctx, txn, targetEnt, where, args)
}
