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

// RelKind distinguishes containment from association.
type RelKind string

const (
	// Contains is strict ownership: a child's lifetime is bounded by its
	// parent and deleting the parent cascades.
	Contains RelKind = "contains"
	// Between is an association with cardinality.
	Between RelKind = "between"
)

// Cardinality applies to between relationships. Default is many-to-many.
type Cardinality string

const (
	OneOne   Cardinality = "one_one"
	OneMany  Cardinality = "one_many"
	ManyMany Cardinality = "many_many"
)

// Relationship is an ordered pair of entities connected by containment or
// association. Between relationships may carry their own attribute schema,
// persisted on the link record.
type Relationship struct {
	Name   string
	Module string
	Kind   RelKind

	// From/To are fully-qualified entity names; for contains, From is the
	// parent and To the child.
	From string
	To   string

	Card  Cardinality
	Attrs []*Attribute
}

// FQName returns the fully-qualified Module/Name form.
func (r *Relationship) FQName() string { return r.Module + "/" + r.Name }

// UsesRefColumn reports whether the relationship is realized as a reference
// column on the To side rather than a link record.
func (r *Relationship) UsesRefColumn() bool {
	return r.Kind == Between && (r.Card == OneOne || r.Card == OneMany)
}

// RefColumn is the name of the scalar reference column holding the From-side
// id on the To side for one-to-one and one-to-many relationships.
func (r *Relationship) RefColumn() string { return r.Name }

// InverseAlias is the scalar alias column a one-to-one relationship exposes
// on the From side; the relationship graph caches which side owns it.
func (r *Relationship) InverseAlias() string { return r.Name + "__inverse" }
