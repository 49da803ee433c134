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

// Package instance models typed record values: attributes, hierarchy path,
// query projections, and the related-instance map populated by nested
// relationship patterns.
package instance

import (
	"strings"

	"github.com/agentlang-ai/agentlang/pkg/ast"
	"github.com/agentlang-ai/agentlang/pkg/schema"
	"github.com/agentlang-ai/agentlang/pkg/types"
)

// Instance is a value of a record type in memory or storage.
type Instance struct {
	FQName string
	Attrs  map[string]any

	// QueryAttrs/QueryOps are present when the instance represents a query
	// pattern: attribute name → comparison value and operator.
	QueryAttrs map[string]any
	QueryOps   map[string]ast.Op

	// Related maps a relationship name to attached child/related instances.
	// Attachment is append-only within one evaluation pass.
	Related  map[string][]*Instance
	relOrder []string

	// AuthUserID is the active session's user id; every operation is gated
	// on it.
	AuthUserID string
}

// New constructs an instance from a fully-qualified name and attributes.
func New(fqName string, attrs map[string]any) *Instance {
	if attrs == nil {
		attrs = make(map[string]any)
	}
	return &Instance{FQName: fqName, Attrs: attrs}
}

// NewQuery constructs a query-pattern instance.
func NewQuery(fqName string, queryAttrs map[string]any, queryOps map[string]ast.Op) *Instance {
	return &Instance{
		FQName:     fqName,
		Attrs:      make(map[string]any),
		QueryAttrs: queryAttrs,
		QueryOps:   queryOps,
	}
}

// IsQuery reports whether the instance carries query attributes.
func (i *Instance) IsQuery() bool { return len(i.QueryAttrs) > 0 }

// Attr looks up an attribute value.
func (i *Instance) Attr(name string) (any, bool) {
	v, ok := i.Attrs[name]
	return v, ok
}

// SetAttr assigns an attribute value.
func (i *Instance) SetAttr(name string, v any) { i.Attrs[name] = v }

// Path returns the instance's __path__ string.
func (i *Instance) Path() string {
	if p, ok := i.Attrs[schema.PathAttr]; ok {
		return types.String(p)
	}
	return ""
}

// SetPath assigns __path__. The path is immutable after creation; callers
// only set it while materializing a create pattern.
func (i *Instance) SetPath(p string) { i.Attrs[schema.PathAttr] = p }

// Deleted reports the soft-delete flag.
func (i *Instance) Deleted() bool {
	v, ok := i.Attrs[schema.DeletedAttr]
	return ok && types.Truthy(v)
}

// IDValue returns the instance's id attribute value for the given entity.
func (i *Instance) IDValue(e *schema.Entity) any {
	v := i.Attrs[e.IDAttr().Name]
	return types.Normalize(v)
}

// AttachRelated appends related instances under a relationship name.
func (i *Instance) AttachRelated(rel string, insts ...*Instance) {
	if i.Related == nil {
		i.Related = make(map[string][]*Instance)
	}
	if _, seen := i.Related[rel]; !seen {
		i.relOrder = append(i.relOrder, rel)
	}
	i.Related[rel] = append(i.Related[rel], insts...)
}

// RelatedBy returns the instances attached under a relationship name.
func (i *Instance) RelatedBy(rel string) []*Instance {
	if i.Related == nil {
		return nil
	}
	return i.Related[rel]
}

// Clone copies the instance's attributes and query projection. Related
// instances are shared, not copied.
func (i *Instance) Clone() *Instance {
	c := &Instance{
		FQName:     i.FQName,
		Attrs:      make(map[string]any, len(i.Attrs)),
		AuthUserID: i.AuthUserID,
	}
	for k, v := range i.Attrs {
		c.Attrs[k] = v
	}
	if i.QueryAttrs != nil {
		c.QueryAttrs = make(map[string]any, len(i.QueryAttrs))
		for k, v := range i.QueryAttrs {
			c.QueryAttrs[k] = v
		}
	}
	if i.QueryOps != nil {
		c.QueryOps = make(map[string]ast.Op, len(i.QueryOps))
		for k, v := range i.QueryOps {
			c.QueryOps[k] = v
		}
	}
	return c
}

// ToPlain emits the user-visible projection: declared attributes in schema
// order (when the record is known), then related instances recursively under
// their relationship names. Reserved attributes other than __path__ are
// dropped; Password values are never emitted.
func (i *Instance) ToPlain(rec *schema.Record) map[string]any {
	out := make(map[string]any)
	if rec != nil {
		for _, a := range rec.Attrs {
			if a.Name == schema.GeneratedIDAttr {
				out[a.Name] = i.Attrs[a.Name]
				continue
			}
			if a.Type == types.TPassword {
				continue
			}
			if v, ok := i.Attrs[a.Name]; ok {
				out[a.Name] = v
			}
		}
	} else {
		for k, v := range i.Attrs {
			if k == schema.DeletedAttr {
				continue
			}
			out[k] = v
		}
	}
	if p := i.Path(); p != "" {
		out[schema.PathAttr] = p
	}
	for _, rel := range i.relOrder {
		kids := i.Related[rel]
		plain := make([]any, 0, len(kids))
		for _, k := range kids {
			plain = append(plain, k.ToPlain(nil))
		}
		out[rel] = plain
	}
	return out
}

// RootPath encodes the position of a root entity instance:
// /Module/Entity/<id>.
func RootPath(module, entity string, id any) string {
	return "/" + module + "/" + entity + "/" + types.String(id)
}

// ChildPath appends a contains step to a parent path:
// <parent>/<Relationship>/<Entity>/<id>.
func ChildPath(parentPath, rel, entity string, id any) string {
	return parentPath + "/" + rel + "/" + entity + "/" + types.String(id)
}

// PathPrefix is the LIKE prefix matching every descendant of a path.
func PathPrefix(path string) string { return path + "/%" }

// PathID extracts the trailing id segment of a path.
func PathID(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return ""
}
