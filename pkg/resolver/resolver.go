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

// Package resolver defines the storage backend contract the evaluator runs
// against, the registry that routes entities to resolvers, and the policy
// envelope (timeout, retry, circuit breaker) wrapped around every backend.
package resolver

import (
	"context"

	"github.com/agentlang-ai/agentlang/pkg/ast"
	"github.com/agentlang-ai/agentlang/pkg/instance"
	"github.com/agentlang-ai/agentlang/pkg/schema"
)

// Txn is an opaque transaction id issued by a resolver.
type Txn string

// AuthInfo accompanies every resolver call.
type AuthInfo struct {
	UserID        string
	ReadForUpdate bool
	ReadForDelete bool
}

// ColumnRef names one column of a join query: fully-qualified entity plus
// attribute.
type ColumnRef struct {
	Entity string
	Attr   string
}

// JoinInfo is one compiled join clause with its single equality condition.
type JoinInfo struct {
	Kind   ast.JoinKind
	Target string
	Left   ColumnRef
	Right  ColumnRef
}

// IntoCol projects one output column, optionally aggregated
// ("sum", "count", "avg", "min", "max").
type IntoCol struct {
	Alias string
	Agg   string
	Col   ColumnRef
}

// WhereClause filters a join query.
type WhereClause struct {
	Col   ColumnRef
	Op    ast.Op
	Value any
}

// JoinQuery is the compiled form of a join/aggregation pattern handed to
// QueryByJoin.
type JoinQuery struct {
	Src      string
	Joins    []JoinInfo
	Into     []IntoCol
	Where    []WhereClause
	GroupBy  []ColumnRef
	OrderBy  []ColumnRef
	Desc     bool
	Distinct bool
	Limit    int
}

// Resolver is the contract every storage backend implements. Instances
// passed to writes arrive fully attributed with their __path__ computed;
// reads return instances with the full stored attribute map.
type Resolver interface {
	Name() string

	StartTransaction(ctx context.Context) (Txn, error)
	CommitTransaction(ctx context.Context, txn Txn) error
	RollbackTransaction(ctx context.Context, txn Txn) error

	CreateInstance(ctx context.Context, txn Txn, auth AuthInfo, inst *instance.Instance) (*instance.Instance, error)
	UpsertInstance(ctx context.Context, txn Txn, auth AuthInfo, inst *instance.Instance) (*instance.Instance, error)
	UpdateInstance(ctx context.Context, txn Txn, auth AuthInfo, inst *instance.Instance, newAttrs map[string]any) (*instance.Instance, error)
	DeleteInstance(ctx context.Context, txn Txn, auth AuthInfo, inst *instance.Instance, purge bool) ([]*instance.Instance, error)

	// DeleteByPathPrefix removes (or soft-deletes) every row of the entity
	// whose path lies under prefix. The evaluator drives contains cascades
	// through this after triggers have fired.
	DeleteByPathPrefix(ctx context.Context, txn Txn, auth AuthInfo, entity *schema.Entity, prefix string, purge bool) error

	QueryInstances(ctx context.Context, txn Txn, auth AuthInfo, inst *instance.Instance, queryAll bool) ([]*instance.Instance, error)
	QueryChildInstances(ctx context.Context, txn Txn, auth AuthInfo, parentPath string, inst *instance.Instance) ([]*instance.Instance, error)
	QueryConnectedInstances(ctx context.Context, txn Txn, auth AuthInfo, rel *schema.Relationship, connected, inst *instance.Instance) ([]*instance.Instance, error)
	QueryByJoin(ctx context.Context, txn Txn, auth AuthInfo, q *JoinQuery) ([]map[string]any, error)

	ConnectInstances(ctx context.Context, txn Txn, auth AuthInfo, a, b *instance.Instance, rel *schema.Relationship, orUpdate bool) (*instance.Instance, error)
	FullTextSearch(ctx context.Context, txn Txn, auth AuthInfo, entity *schema.Entity, query string, opts map[string]any) ([]*instance.Instance, error)

	// EnsureSchema materializes storage for a module's entities and link
	// tables. Called at module load.
	EnsureSchema(ctx context.Context, module *schema.Module) error

	Close() error
}
