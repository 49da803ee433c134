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

// Package sqlstore is the default SQL resolver. One table per entity, one
// link table per many-to-many relationship; soft deletes via __deleted__;
// contains scoping via __path__ prefix match.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/agentlang-ai/agentlang/pkg/resolver"
	"github.com/agentlang-ai/agentlang/pkg/schema"
	"github.com/agentlang-ai/agentlang/pkg/types"
)

// Config configures a Store.
type Config struct {
	// DSN is the driver connection string; for sqlite a file path or
	// "file::memory:?cache=shared".
	DSN string

	// Dialect defaults to SQLiteDialect.
	Dialect Dialect

	// ResolverName defaults to "default".
	ResolverName string

	Logger *zap.Logger
}

// Store implements resolver.Resolver over database/sql.
type Store struct {
	name    string
	db      *sql.DB
	dialect Dialect
	reg     *schema.Registry
	logger  *zap.Logger

	mu   sync.Mutex
	txns map[resolver.Txn]*sql.Tx
}

// New opens a store. For sqlite, WAL mode and a busy timeout are applied to
// match the concurrency profile of shared database files.
func New(reg *schema.Registry, cfg Config) (*Store, error) {
	if cfg.Dialect == nil {
		cfg.Dialect = SQLiteDialect{}
	}
	if cfg.ResolverName == "" {
		cfg.ResolverName = resolver.DefaultName
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	db, err := sql.Open(cfg.Dialect.DriverName(), cfg.DSN)
	if err != nil {
		return nil, types.WrapError(types.KindResolverUnavailable, err, "open %s", cfg.Dialect.Name())
	}
	if cfg.Dialect.Name() == "sqlite" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, types.WrapError(types.KindResolverUnavailable, err, "enable WAL mode")
		}
		if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
			_ = db.Close()
			return nil, types.WrapError(types.KindResolverUnavailable, err, "set busy timeout")
		}
		// A single connection keeps in-memory databases and transactions
		// coherent under database/sql pooling.
		db.SetMaxOpenConns(1)
	}
	return &Store{
		name:    cfg.ResolverName,
		db:      db,
		dialect: cfg.Dialect,
		reg:     reg,
		logger:  cfg.Logger,
		txns:    make(map[resolver.Txn]*sql.Tx),
	}, nil
}

// Name returns the resolver name used by the router.
func (s *Store) Name() string { return s.name }

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the handle for stores layered on top (suspension store).
func (s *Store) DB() *sql.DB { return s.db }

// StartTransaction begins a transaction and returns its opaque id.
func (s *Store) StartTransaction(ctx context.Context) (resolver.Txn, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", types.WrapError(types.KindResolverUnavailable, err, "begin transaction")
	}
	id := resolver.Txn(uuid.NewString())
	s.mu.Lock()
	s.txns[id] = tx
	s.mu.Unlock()
	return id, nil
}

// CommitTransaction commits and forgets the transaction.
func (s *Store) CommitTransaction(ctx context.Context, txn resolver.Txn) error {
	tx, err := s.take(txn)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return types.WrapError(types.KindResolverUnavailable, err, "commit")
	}
	return nil
}

// RollbackTransaction rolls back and forgets the transaction.
func (s *Store) RollbackTransaction(ctx context.Context, txn resolver.Txn) error {
	tx, err := s.take(txn)
	if err != nil {
		return err
	}
	if err := tx.Rollback(); err != nil {
		return types.WrapError(types.KindResolverUnavailable, err, "rollback")
	}
	return nil
}

func (s *Store) take(txn resolver.Txn) (*sql.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txns[txn]
	if !ok {
		return nil, types.NewError(types.KindResolverUnavailable, "unknown transaction %s", txn)
	}
	delete(s.txns, txn)
	return tx, nil
}

// execer abstracts *sql.Tx and *sql.DB.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// on returns the execution target for a transaction id; an empty id runs
// directly against the pool.
func (s *Store) on(txn resolver.Txn) execer {
	if txn == "" {
		return s.db
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx, ok := s.txns[txn]; ok {
		return tx
	}
	return s.db
}

// tableName maps Module/Entity to a table: dots and slashes become
// underscores, lowercased.
func tableName(fqName string) string {
	n := strings.ToLower(fqName)
	n = strings.ReplaceAll(n, ".", "_")
	n = strings.ReplaceAll(n, "/", "__")
	return "al__" + n
}

// linkTableName maps a relationship to its link table.
func linkTableName(rel *schema.Relationship) string {
	n := strings.ToLower(rel.Module + "__" + rel.Name)
	n = strings.ReplaceAll(n, ".", "_")
	return "al_rel__" + n
}

const (
	linkFromCol = "from_id"
	linkToCol   = "to_id"
)

// EnsureSchema creates the tables backing a module's entities and
// relationships.
func (s *Store) EnsureSchema(ctx context.Context, m *schema.Module) error {
	for _, name := range m.EntityOrder {
		ent := m.Entities[name]
		if err := s.createEntityTable(ctx, ent, m); err != nil {
			return err
		}
	}
	for _, rel := range m.Relationships {
		if rel.Kind == schema.Between && !rel.UsesRefColumn() {
			if err := s.createLinkTable(ctx, rel); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) createEntityTable(ctx context.Context, ent *schema.Entity, m *schema.Module) error {
	var cols []string
	for _, a := range ent.Attrs {
		col := Quote(a.Name) + " " + s.dialect.ColumnType(a)
		if a.ID {
			col += " PRIMARY KEY"
		} else if a.Unique {
			col += " UNIQUE"
		}
		cols = append(cols, col)
	}
	// Reference columns for one-to-one / one-to-many between relationships
	// where this entity is the To side.
	for _, rel := range m.Relationships {
		if rel.UsesRefColumn() && rel.To == ent.FQName() {
			cols = append(cols, Quote(rel.RefColumn())+" TEXT")
		}
	}
	cols = append(cols,
		Quote(schema.PathAttr)+" TEXT",
		Quote(schema.DeletedAttr)+" "+s.dialect.ColumnType(&schema.Attribute{Type: types.TBoolean})+" DEFAULT 0",
	)
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", Quote(tableName(ent.FQName())), strings.Join(cols, ", "))
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return types.WrapError(types.KindResolverUnavailable, err, "create table for %s", ent.FQName())
	}
	for _, tuple := range ent.Meta.UniqueTuples {
		quoted := make([]string, len(tuple))
		for i, c := range tuple {
			quoted[i] = Quote(c)
		}
		idx := fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s)",
			Quote(tableName(ent.FQName())+"__uq_"+strings.Join(tuple, "_")),
			Quote(tableName(ent.FQName())), strings.Join(quoted, ", "))
		if _, err := s.db.ExecContext(ctx, idx); err != nil {
			return types.WrapError(types.KindResolverUnavailable, err, "create unique index for %s", ent.FQName())
		}
	}
	for _, a := range ent.Attrs {
		if !a.Indexed {
			continue
		}
		idx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
			Quote(tableName(ent.FQName())+"__ix_"+a.Name),
			Quote(tableName(ent.FQName())), Quote(a.Name))
		if _, err := s.db.ExecContext(ctx, idx); err != nil {
			return types.WrapError(types.KindResolverUnavailable, err, "create index for %s", ent.FQName())
		}
	}
	return nil
}

func (s *Store) createLinkTable(ctx context.Context, rel *schema.Relationship) error {
	cols := []string{
		Quote(linkFromCol) + " TEXT NOT NULL",
		Quote(linkToCol) + " TEXT NOT NULL",
	}
	for _, a := range rel.Attrs {
		cols = append(cols, Quote(a.Name)+" "+s.dialect.ColumnType(a))
	}
	cols = append(cols, fmt.Sprintf("UNIQUE (%s, %s)", Quote(linkFromCol), Quote(linkToCol)))
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", Quote(linkTableName(rel)), strings.Join(cols, ", "))
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return types.WrapError(types.KindResolverUnavailable, err, "create link table for %s", rel.FQName())
	}
	return nil
}

// entityFor resolves the schema definition backing an instance.
func (s *Store) entityFor(fqName string) (*schema.Entity, error) {
	mod, _ := schema.SplitFQ(fqName)
	return s.reg.Entity(fqName, mod)
}

// encodeValue converts a runtime value to its driver representation.
func encodeValue(a *schema.Attribute, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	v = types.Normalize(v)
	switch a.Type {
	case types.TInt:
		return cast.ToInt64E(v)
	case types.TNumber, types.TDecimal, types.TFloat:
		return cast.ToFloat64E(v)
	case types.TBoolean:
		b, err := cast.ToBoolE(v)
		if err != nil {
			return nil, err
		}
		if b {
			return int64(1), nil
		}
		return int64(0), nil
	case types.TDate, types.TTime, types.TDateTime:
		if t, ok := v.(time.Time); ok {
			return t.UTC().Format(time.RFC3339Nano), nil
		}
		return types.String(v), nil
	case types.TMap, types.TArray, types.TAny, types.TRef:
		switch v.(type) {
		case string, int64, float64, bool:
			return v, nil
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(raw), nil
	default:
		return types.String(v), nil
	}
}

// decodeValue converts a scanned driver value back to the runtime form.
func decodeValue(a *schema.Attribute, v any) any {
	if v == nil {
		return nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	v = types.Normalize(v)
	switch a.Type {
	case types.TInt:
		return cast.ToInt64(v)
	case types.TNumber, types.TDecimal, types.TFloat:
		return cast.ToFloat64(v)
	case types.TBoolean:
		return cast.ToBool(v)
	case types.TMap:
		if s, ok := v.(string); ok {
			var m map[string]any
			if json.Unmarshal([]byte(s), &m) == nil {
				return m
			}
		}
		return v
	case types.TArray:
		if s, ok := v.(string); ok {
			var arr []any
			if json.Unmarshal([]byte(s), &arr) == nil {
				return arr
			}
		}
		return v
	default:
		return v
	}
}

// columnsFor lists the persisted columns of an entity in declaration order,
// including relationship reference columns and the reserved pair.
func (s *Store) columnsFor(ent *schema.Entity) []*schema.Attribute {
	cols := make([]*schema.Attribute, 0, len(ent.Attrs)+2)
	cols = append(cols, ent.Attrs...)
	for _, rel := range s.reg.RelationshipsOf(ent.FQName()) {
		if rel.UsesRefColumn() && rel.To == ent.FQName() {
			cols = append(cols, &schema.Attribute{Name: rel.RefColumn(), Type: types.TString, Optional: true})
		}
	}
	cols = append(cols,
		&schema.Attribute{Name: schema.PathAttr, Type: types.TPath, Optional: true},
		&schema.Attribute{Name: schema.DeletedAttr, Type: types.TBoolean, Optional: true},
	)
	return cols
}
