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

	"github.com/agentlang-ai/agentlang/pkg/instance"
	"github.com/agentlang-ai/agentlang/pkg/resolver"
	"github.com/agentlang-ai/agentlang/pkg/schema"
	"github.com/agentlang-ai/agentlang/pkg/types"
)

// CreateInstance inserts a fully-attributed instance. An id collision
// surfaces as UniqueViolation.
func (s *Store) CreateInstance(ctx context.Context, txn resolver.Txn, auth resolver.AuthInfo, inst *instance.Instance) (*instance.Instance, error) {
	return s.insert(ctx, txn, inst, false)
}

// UpsertInstance inserts or, on id collision, updates the existing row.
func (s *Store) UpsertInstance(ctx context.Context, txn resolver.Txn, auth resolver.AuthInfo, inst *instance.Instance) (*instance.Instance, error) {
	return s.insert(ctx, txn, inst, true)
}

func (s *Store) insert(ctx context.Context, txn resolver.Txn, inst *instance.Instance, upsert bool) (*instance.Instance, error) {
	ent, err := s.entityFor(inst.FQName)
	if err != nil {
		return nil, err
	}
	var cols []string
	var marks []string
	var args []any
	var updates []string
	idCol := ent.IDAttr().Name
	for _, a := range s.columnsFor(ent) {
		v, ok := inst.Attrs[a.Name]
		if !ok {
			continue
		}
		ev, err := encodeValue(a, v)
		if err != nil {
			return nil, types.WrapError(types.KindTypeMismatch, err, "encode %s.%s", inst.FQName, a.Name)
		}
		cols = append(cols, Quote(a.Name))
		marks = append(marks, "?")
		args = append(args, ev)
		if a.Name != idCol && a.Name != schema.PathAttr {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", Quote(a.Name), Quote(a.Name)))
		}
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		Quote(tableName(inst.FQName)), strings.Join(cols, ", "), strings.Join(marks, ", "))
	if upsert {
		if len(updates) == 0 {
			q += fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", Quote(idCol))
		} else {
			q += fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", Quote(idCol), strings.Join(updates, ", "))
		}
	}
	if _, err := s.on(txn).ExecContext(ctx, s.dialect.Rebind(q), args...); err != nil {
		return nil, types.WrapError(s.dialect.MapError(err), err, "create %s", inst.FQName)
	}
	return s.fetchByID(ctx, txn, ent, inst.IDValue(ent))
}

// UpdateInstance applies newAttrs to one matched instance and returns the
// stored row.
func (s *Store) UpdateInstance(ctx context.Context, txn resolver.Txn, auth resolver.AuthInfo, inst *instance.Instance, newAttrs map[string]any) (*instance.Instance, error) {
	ent, err := s.entityFor(inst.FQName)
	if err != nil {
		return nil, err
	}
	id := inst.IDValue(ent)
	if id == nil {
		return nil, types.NewError(types.KindNotFound, "update %s without an id", inst.FQName)
	}
	var sets []string
	var args []any
	for _, a := range s.columnsFor(ent) {
		v, ok := newAttrs[a.Name]
		if !ok || a.ID || a.Name == schema.PathAttr {
			continue
		}
		ev, err := encodeValue(a, v)
		if err != nil {
			return nil, types.WrapError(types.KindTypeMismatch, err, "encode %s.%s", inst.FQName, a.Name)
		}
		sets = append(sets, Quote(a.Name)+" = ?")
		args = append(args, ev)
	}
	if len(sets) == 0 {
		return s.fetchByID(ctx, txn, ent, id)
	}
	idArg, err := encodeValue(ent.IDAttr(), id)
	if err != nil {
		return nil, types.WrapError(types.KindTypeMismatch, err, "encode %s id", inst.FQName)
	}
	args = append(args, idArg)
	q := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		Quote(tableName(inst.FQName)), strings.Join(sets, ", "), Quote(ent.IDAttr().Name))
	res, err := s.on(txn).ExecContext(ctx, s.dialect.Rebind(q), args...)
	if err != nil {
		return nil, types.WrapError(s.dialect.MapError(err), err, "update %s", inst.FQName)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, types.NewError(types.KindNotFound, "update matched no %s row", inst.FQName)
	}
	return s.fetchByID(ctx, txn, ent, id)
}

// DeleteInstance soft-deletes (or purges) rows matching the query instance
// and returns them.
func (s *Store) DeleteInstance(ctx context.Context, txn resolver.Txn, auth resolver.AuthInfo, inst *instance.Instance, purge bool) ([]*instance.Instance, error) {
	ent, err := s.entityFor(inst.FQName)
	if err != nil {
		return nil, err
	}
	where, args, err := s.whereFor(ent, inst, false)
	if err != nil {
		return nil, err
	}
	matched, err := s.selectWhere(ctx, txn, ent, where, args)
	if err != nil {
		return nil, err
	}
	if len(matched) == 0 {
		return nil, nil
	}
	var q string
	if purge {
		q = fmt.Sprintf("DELETE FROM %s%s", Quote(tableName(inst.FQName)), where)
	} else {
		q = fmt.Sprintf("UPDATE %s SET %s = 1%s", Quote(tableName(inst.FQName)), Quote(schema.DeletedAttr), where)
	}
	if _, err := s.on(txn).ExecContext(ctx, s.dialect.Rebind(q), args...); err != nil {
		return nil, types.WrapError(s.dialect.MapError(err), err, "delete %s", inst.FQName)
	}
	for _, m := range matched {
		m.SetAttr(schema.DeletedAttr, true)
	}
	return matched, nil
}

// PurgeByPathPrefix removes every row of the entity whose path falls under
// the given prefix. Used by the evaluator's cascade after triggers have run.
func (s *Store) PurgeByPathPrefix(ctx context.Context, txn resolver.Txn, entity *schema.Entity, prefix string, purge bool) error {
	var q string
	if purge {
		q = fmt.Sprintf("DELETE FROM %s WHERE %s LIKE ?", Quote(tableName(entity.FQName())), Quote(schema.PathAttr))
	} else {
		q = fmt.Sprintf("UPDATE %s SET %s = 1 WHERE %s LIKE ?",
			Quote(tableName(entity.FQName())), Quote(schema.DeletedAttr), Quote(schema.PathAttr))
	}
	if _, err := s.on(txn).ExecContext(ctx, s.dialect.Rebind(q), instance.PathPrefix(prefix)); err != nil {
		return types.WrapError(s.dialect.MapError(err), err, "cascade %s", entity.FQName())
	}
	return nil
}

// DeleteByPathPrefix satisfies the resolver cascade contract.
func (s *Store) DeleteByPathPrefix(ctx context.Context, txn resolver.Txn, auth resolver.AuthInfo, entity *schema.Entity, prefix string, purge bool) error {
	return s.PurgeByPathPrefix(ctx, txn, entity, prefix, purge)
}

// ConnectInstances links two instances through a between relationship:
// a reference-column write for one-to-one/one-to-many, a link record
// otherwise.
func (s *Store) ConnectInstances(ctx context.Context, txn resolver.Txn, auth resolver.AuthInfo, a, b *instance.Instance, rel *schema.Relationship, orUpdate bool) (*instance.Instance, error) {
	fromEnt, err := s.entityFor(rel.From)
	if err != nil {
		return nil, err
	}
	toEnt, err := s.entityFor(rel.To)
	if err != nil {
		return nil, err
	}
	fromID := types.String(a.IDValue(fromEnt))
	toID := types.String(b.IDValue(toEnt))
	if rel.UsesRefColumn() {
		q := fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ?",
			Quote(tableName(rel.To)), Quote(rel.RefColumn()), Quote(toEnt.IDAttr().Name))
		idArg, err := encodeValue(toEnt.IDAttr(), b.IDValue(toEnt))
		if err != nil {
			return nil, types.WrapError(types.KindTypeMismatch, err, "encode %s id", rel.To)
		}
		if _, err := s.on(txn).ExecContext(ctx, s.dialect.Rebind(q), fromID, idArg); err != nil {
			return nil, types.WrapError(s.dialect.MapError(err), err, "connect %s", rel.FQName())
		}
		b.SetAttr(rel.RefColumn(), fromID)
		return b, nil
	}
	cols := []string{Quote(linkFromCol), Quote(linkToCol)}
	marks := []string{"?", "?"}
	args := []any{fromID, toID}
	link := instance.New(rel.FQName(), map[string]any{linkFromCol: fromID, linkToCol: toID})
	for _, ra := range rel.Attrs {
		v, ok := b.Attrs[ra.Name]
		if !ok {
			continue
		}
		ev, err := encodeValue(ra, v)
		if err != nil {
			return nil, types.WrapError(types.KindTypeMismatch, err, "encode %s.%s", rel.FQName(), ra.Name)
		}
		cols = append(cols, Quote(ra.Name))
		marks = append(marks, "?")
		args = append(args, ev)
		link.SetAttr(ra.Name, v)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		Quote(linkTableName(rel)), strings.Join(cols, ", "), strings.Join(marks, ", "))
	if orUpdate {
		q += fmt.Sprintf(" ON CONFLICT (%s, %s) DO NOTHING", Quote(linkFromCol), Quote(linkToCol))
	}
	if _, err := s.on(txn).ExecContext(ctx, s.dialect.Rebind(q), args...); err != nil {
		return nil, types.WrapError(s.dialect.MapError(err), err, "connect %s", rel.FQName())
	}
	return link, nil
}
