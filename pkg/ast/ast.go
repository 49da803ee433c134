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

// Package ast defines the typed syntax tree for workflow statements and
// patterns. The parser that produces these trees is an external collaborator;
// the evaluator and the execution-graph compiler both consume them.
package ast

// Op is a query/comparison operator attached to a query attribute.
type Op string

const (
	OpEq      Op = "="
	OpNe      Op = "!="
	OpLt      Op = "<"
	OpLe      Op = "<="
	OpGt      Op = ">"
	OpGe      Op = ">="
	OpIn      Op = "in"
	OpLike    Op = "like"
	OpBetween Op = "between"
)

// ParseOp resolves the operator suffix of a query attribute (`?<=`, `?like`).
// The `<>` spelling is an alias for `!=`.
func ParseOp(s string) (Op, bool) {
	switch s {
	case "", "=":
		return OpEq, true
	case "!=", "<>":
		return OpNe, true
	case "<":
		return OpLt, true
	case "<=":
		return OpLe, true
	case ">":
		return OpGt, true
	case ">=":
		return OpGe, true
	case "in":
		return OpIn, true
	case "like":
		return OpLike, true
	case "between":
		return OpBetween, true
	}
	return "", false
}

// Statement is one step of a workflow: a pattern plus result binding and
// error handling annotations.
type Statement struct {
	Pattern Pattern

	// Alias binds the result under a single name (`@as name`).
	Alias string

	// AliasList destructures an array result (`@as [a, b, _, rest]`);
	// "_" skips an element and a trailing name captures the remainder.
	AliasList []string

	// Catch maps error kinds to recovery patterns.
	Catch []CatchClause
}

// CatchClause recovers from an error whose kind matches Kind
// ("not_found", "error", or a custom raised kind).
type CatchClause struct {
	Kind    string
	Recover Pattern
}

// Pattern is the single syntactic form for CRUD, query, control flow, and
// expression evaluation.
type Pattern interface{ pattern() }

// Lit is a literal scalar value.
type Lit struct{ Value any }

// Ref is a dotted reference `a.b.c`: alias → attribute → nested instance.
type Ref struct{ Parts []string }

// Call invokes a registered plug-in function.
type Call struct {
	Name string
	Args []Pattern
}

// MapLit is a literal map; entry order is preserved.
type MapLit struct{ Entries []MapEntry }

// MapEntry is one key/value pair of a MapLit.
type MapEntry struct {
	Key   string
	Value Pattern
}

// ListLit is a literal array.
type ListLit struct{ Items []Pattern }

// Unary applies "-" or "not" to an operand.
type Unary struct {
	Op string
	X  Pattern
}

// Binary applies an arithmetic ("+", "-", "*", "/", "%"), relational
// ("==", "!=", "<", "<=", ">", ">=") or logical ("and", "or") operator.
// Logical operators short-circuit.
type Binary struct {
	Op   string
	X, Y Pattern
}

// AttrEntry is one attribute inside a CRUD map. Query is true for `k?` forms;
// Op defaults to OpEq.
type AttrEntry struct {
	Name  string
	Query bool
	Op    Op
	Value Pattern
}

// RelEntry nests related patterns under a relationship name inside a CRUD
// map: `RelName {child}` or `RelName [c1, c2]`.
type RelEntry struct {
	Name  string
	Items []Pattern
	List  bool
}

// JoinKind selects the SQL join flavor of a join clause.
type JoinKind string

const (
	JoinInner JoinKind = "inner"
	JoinLeft  JoinKind = "left"
	JoinRight JoinKind = "right"
	JoinFull  JoinKind = "full"
)

// JoinClause joins one more entity into a query. Exactly one equality
// condition is allowed: Attr on the target equals the dotted Ref.
type JoinClause struct {
	Kind   JoinKind
	Target string
	Attr   string
	Ref    string
}

// IntoEntry projects one output column of a join query. Agg is empty for a
// plain column or one of "sum", "count", "avg", "min", "max".
type IntoEntry struct {
	Alias string
	Agg   string
	Ref   string
}

// WhereEntry filters a join query on a dotted column reference.
type WhereEntry struct {
	Ref   string
	Op    Op
	Value Pattern
}

// Crud is the CRUD map pattern `{FQName {...}, <relationships>, <hints>}`.
// Classification: no query entries → create; all query entries or QueryAll →
// read; a mix → update.
type Crud struct {
	FQName   string
	QueryAll bool
	Entries  []AttrEntry
	Rels     []RelEntry

	// Hints. Keyword order in source is fixed:
	// joins → @into → @where → @groupBy → @orderBy → @distinct.
	Upsert   bool
	From     Pattern
	Joins    []JoinClause
	Into     []IntoEntry
	Where    []WhereEntry
	GroupBy  []string
	OrderBy  []string
	Desc     bool
	Distinct bool
	Limit    int
}

// Delete wraps an inner CRUD pattern; Purge removes rows instead of setting
// the deleted flag. Contains children cascade either way.
type Delete struct {
	Target *Crud
	Purge  bool
}

// ForEach evaluates Body once per element of the array-valued Source with
// Var bound in a child scope.
type ForEach struct {
	Var    string
	Source Pattern
	Body   []Statement
}

// If branches on a condition; the last statement of the taken branch is the
// pattern's value. A missing Else yields false.
type If struct {
	Cond Pattern
	Then []Statement
	Else []Statement
}

// Return evaluates Inner, sets it as the workflow result, and exits the
// enclosing workflow.
type Return struct{ Inner Pattern }

// Suspend evaluates Inner, persists the execution state, and yields
// [partialResult, suspensionID].
type Suspend struct{ Inner Pattern }

// Search routes a full-text query to the entity's resolver.
type Search struct {
	FQName string
	Query  string
	Opts   map[string]any
}

func (*Lit) pattern()     {}
func (*Ref) pattern()     {}
func (*Call) pattern()    {}
func (*MapLit) pattern()  {}
func (*ListLit) pattern() {}
func (*Unary) pattern()   {}
func (*Binary) pattern()  {}
func (*Crud) pattern()    {}
func (*Delete) pattern()  {}
func (*ForEach) pattern() {}
func (*If) pattern()      {}
func (*Return) pattern()  {}
func (*Suspend) pattern() {}
func (*Search) pattern()  {}
