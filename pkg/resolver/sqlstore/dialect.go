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
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/agentlang-ai/agentlang/pkg/schema"
	"github.com/agentlang-ai/agentlang/pkg/types"
)

// Dialect abstracts the SQL differences between the supported drivers.
// SQL text is generated with "?" placeholders and rebound per dialect.
type Dialect interface {
	Name() string
	DriverName() string
	// Rebind rewrites "?" placeholders into the dialect's form.
	Rebind(query string) string
	// ColumnType maps an attribute to a column type.
	ColumnType(a *schema.Attribute) string
	// MapError classifies a driver error into the resolver taxonomy.
	MapError(err error) types.Kind
}

// Quote quotes an identifier. Both supported dialects use double quotes.
func Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, ``) + `"`
}

// SQLiteDialect targets the "sqlite3" driver registered by
// internal/sqlitedriver.
type SQLiteDialect struct{}

func (SQLiteDialect) Name() string           { return "sqlite" }
func (SQLiteDialect) DriverName() string     { return "sqlite3" }
func (SQLiteDialect) Rebind(q string) string { return q }

func (SQLiteDialect) ColumnType(a *schema.Attribute) string {
	switch a.Type {
	case types.TInt:
		return "INTEGER"
	case types.TNumber, types.TDecimal, types.TFloat:
		return "REAL"
	case types.TBoolean:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

func (SQLiteDialect) MapError(err error) types.Kind {
	if err == nil {
		return ""
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return types.KindUnique
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return types.KindForeignKey
	case strings.Contains(msg, "CHECK constraint failed"):
		return types.KindConstraint
	case strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "unable to open"),
		strings.Contains(msg, "bad connection"):
		return types.KindResolverUnavailable
	default:
		return types.KindConstraint
	}
}

// PostgresDialect targets lib/pq.
type PostgresDialect struct{}

func (PostgresDialect) Name() string       { return "postgres" }
func (PostgresDialect) DriverName() string { return "postgres" }

func (PostgresDialect) Rebind(q string) string {
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (PostgresDialect) ColumnType(a *schema.Attribute) string {
	switch a.Type {
	case types.TInt:
		return "BIGINT"
	case types.TNumber, types.TFloat:
		return "DOUBLE PRECISION"
	case types.TDecimal:
		return "NUMERIC"
	case types.TBoolean:
		// 0/1 keeps the deleted-flag predicates identical across dialects.
		return "SMALLINT"
	default:
		return "TEXT"
	}
}

func (PostgresDialect) MapError(err error) types.Kind {
	if err == nil {
		return ""
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return types.KindUnique
		case "23503":
			return types.KindForeignKey
		case "23514", "23502":
			return types.KindConstraint
		case "08000", "08003", "08006", "57P01":
			return types.KindResolverUnavailable
		}
		return types.KindConstraint
	}
	if strings.Contains(err.Error(), "connection refused") {
		return types.KindResolverUnavailable
	}
	return types.KindConstraint
}
