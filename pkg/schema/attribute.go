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

// Package schema holds record, entity, relationship, workflow and agent
// definitions plus the process-wide module registry and relationship graph.
package schema

import (
	"github.com/agentlang-ai/agentlang/pkg/ast"
	"github.com/agentlang-ai/agentlang/pkg/types"
)

// Reserved attribute names carried on every persisted instance.
const (
	GeneratedIDAttr = "__id__"
	PathAttr        = "__path__"
	DeletedAttr     = "__deleted__"
)

// DefaultKind selects how a missing attribute value is produced.
type DefaultKind string

const (
	DefaultNone          DefaultKind = ""
	DefaultLiteral       DefaultKind = "literal"
	DefaultUUID          DefaultKind = "uuid"
	DefaultNow           DefaultKind = "now"
	DefaultAutoincrement DefaultKind = "autoincrement"
)

// Attribute is one named, typed slot of a record schema.
type Attribute struct {
	Name string
	Type types.AttrType

	// ElemType is the element type for Array attributes.
	ElemType types.AttrType

	ID       bool
	Unique   bool
	Optional bool
	Indexed  bool

	DefaultKind  DefaultKind
	DefaultValue any

	Enum  []any
	OneOf string // "Entity.attr" membership constraint
	Ref   string // "Entity.attr" foreign key

	// Expr makes the attribute derived: its stored value is the expression
	// evaluated over the instance's other attributes unless the caller
	// supplied a literal.
	Expr ast.Pattern

	Comment string
}

// Derived reports whether the attribute carries an @expr expression.
func (a *Attribute) Derived() bool { return a.Expr != nil }

// Validate coerces v against the attribute's type, enum, and optionality.
func (a *Attribute) Validate(v any) (any, error) {
	if v == nil {
		if a.Optional || a.DefaultKind != DefaultNone || a.Derived() || a.ID {
			return nil, nil
		}
		return nil, types.NewError(types.KindTypeMismatch, "attribute %s is required", a.Name)
	}
	cv, err := a.Type.Coerce(v)
	if err != nil {
		return nil, types.WrapError(types.KindTypeMismatch, err, "attribute %s", a.Name)
	}
	if len(a.Enum) > 0 {
		if err := types.CheckEnum(a.Enum, cv); err != nil {
			return nil, types.WrapError(types.KindEnum, err, "attribute %s", a.Name)
		}
	}
	return cv, nil
}
