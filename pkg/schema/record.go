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
package schema

import (
	"github.com/agentlang-ai/agentlang/pkg/ast"
	"github.com/agentlang-ai/agentlang/pkg/types"
)

// Record is an ordered named schema of typed attributes.
type Record struct {
	Name   string
	Module string
	Attrs  []*Attribute

	byName map[string]*Attribute
}

// NewRecord builds a record and indexes its attributes.
// Duplicate attribute names are a ValidationError.
func NewRecord(module, name string, attrs []*Attribute) (*Record, error) {
	r := &Record{Name: name, Module: module, byName: make(map[string]*Attribute, len(attrs))}
	for _, a := range attrs {
		if _, dup := r.byName[a.Name]; dup {
			return nil, types.NewError(types.KindValidation, "duplicate attribute %s in %s/%s", a.Name, module, name)
		}
		r.Attrs = append(r.Attrs, a)
		r.byName[a.Name] = a
	}
	return r, nil
}

// FQName returns the fully-qualified Module/Name form.
func (r *Record) FQName() string { return r.Module + "/" + r.Name }

// Attr looks up an attribute by name.
func (r *Record) Attr(name string) (*Attribute, bool) {
	a, ok := r.byName[name]
	return a, ok
}

// UserAttrs returns the declared attributes excluding generated reserved ones.
func (r *Record) UserAttrs() []*Attribute {
	out := make([]*Attribute, 0, len(r.Attrs))
	for _, a := range r.Attrs {
		if a.Name != GeneratedIDAttr {
			out = append(out, a)
		}
	}
	return out
}

// RBACRule gates access to an entity's instances.
type RBACRule struct {
	// Roles the rule applies to; "*" matches every user.
	Roles []string
	// Allow lists the permitted operations: create, read, update, delete.
	Allow []string
	// Where, when present, is a predicate over this.* and auth.*.
	Where ast.Pattern
}

// Allows reports whether the rule covers the operation.
func (r *RBACRule) Allows(op string) bool {
	for _, a := range r.Allow {
		if a == op {
			return true
		}
	}
	return false
}

// EntityMeta carries trigger bindings, RBAC rules, and tags.
type EntityMeta struct {
	// Before/After map an operation ("create", "update", "delete") to the
	// workflow dispatched around it, inside the same transaction.
	Before map[string]string
	After  map[string]string

	RBAC []*RBACRule

	// Config marks the module's configuration entity.
	Config bool

	// UniqueTuples lists composite unique attribute sets (@with_unique).
	UniqueTuples [][]string
}

// Entity is a record whose instances are persistent.
type Entity struct {
	*Record
	Meta EntityMeta

	idAttr *Attribute
}

// NewEntity builds an entity, enforcing the single-id invariant. When no
// attribute is marked @id, a generated __id__ UUID attribute is appended.
func NewEntity(module, name string, attrs []*Attribute, meta EntityMeta) (*Entity, error) {
	var id *Attribute
	for _, a := range attrs {
		if !a.ID {
			continue
		}
		if id != nil {
			return nil, types.NewError(types.KindValidation, "entity %s/%s has more than one id attribute", module, name)
		}
		id = a
	}
	if id == nil {
		id = &Attribute{Name: GeneratedIDAttr, Type: types.TUUID, ID: true, DefaultKind: DefaultUUID}
		attrs = append(attrs, id)
	}
	rec, err := NewRecord(module, name, attrs)
	if err != nil {
		return nil, err
	}
	return &Entity{Record: rec, Meta: meta, idAttr: id}, nil
}

// IDAttr returns the entity's single id attribute.
func (e *Entity) IDAttr() *Attribute { return e.idAttr }

// BeforeWorkflow returns the before-trigger workflow for an operation.
func (e *Entity) BeforeWorkflow(op string) (string, bool) {
	w, ok := e.Meta.Before[op]
	return w, ok
}

// AfterWorkflow returns the after-trigger workflow for an operation.
func (e *Entity) AfterWorkflow(op string) (string, bool) {
	w, ok := e.Meta.After[op]
	return w, ok
}

// Event is a record whose instances trigger workflows.
type Event struct {
	*Record
}

// NewEvent builds an event record.
func NewEvent(module, name string, attrs []*Attribute) (*Event, error) {
	rec, err := NewRecord(module, name, attrs)
	if err != nil {
		return nil, err
	}
	return &Event{Record: rec}, nil
}
