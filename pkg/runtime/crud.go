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
package runtime

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/agentlang-ai/agentlang/pkg/agents"
	"github.com/agentlang-ai/agentlang/pkg/ast"
	"github.com/agentlang-ai/agentlang/pkg/instance"
	"github.com/agentlang-ai/agentlang/pkg/rbac"
	"github.com/agentlang-ai/agentlang/pkg/resolver"
	"github.com/agentlang-ai/agentlang/pkg/schema"
	"github.com/agentlang-ai/agentlang/pkg/types"
)

// crudParts is the evaluated form of a CRUD map: plain assignments, query
// attributes with operators, and the set of user-supplied attribute names
// (which derived attributes must not overwrite).
type crudParts struct {
	plain     map[string]any
	queries   map[string]any
	ops       map[string]ast.Op
	userKeys  map[string]bool
	queryLike bool
}

// evalCrud dispatches a CRUD map pattern. The name decides the target:
// event invocation, agent invocation, or entity CRUD classified by the
// shape of its entries.
func (rt *Runtime) evalCrud(ctx context.Context, env *Environment, c *ast.Crud) (any, error) {
	if len(c.Joins) > 0 || len(c.Into) > 0 {
		return rt.evalJoin(ctx, env, c)
	}
	if ev, err := rt.Schemas.Event(c.FQName, env.module); err == nil {
		return rt.invokeEvent(ctx, env, ev, c)
	}
	if ag, err := rt.Schemas.Agent(c.FQName, env.module); err == nil {
		return rt.invokeAgent(ctx, env, ag, c)
	}
	ent, err := rt.Schemas.Entity(c.FQName, env.module)
	if err != nil {
		return nil, err
	}

	parts, err := rt.evalEntries(ctx, env, c)
	if err != nil {
		return nil, err
	}

	switch {
	case (c.QueryAll || parts.queryLike) && len(parts.plain) > 0:
		return rt.updateEntities(ctx, env, ent, c, parts)
	case c.QueryAll || parts.queryLike:
		return rt.readEntities(ctx, env, ent, c, parts)
	default:
		return rt.createEntity(ctx, env, ent, c, parts)
	}
}

func (rt *Runtime) evalEntries(ctx context.Context, env *Environment, c *ast.Crud) (*crudParts, error) {
	parts := &crudParts{
		plain:    make(map[string]any),
		queries:  make(map[string]any),
		ops:      make(map[string]ast.Op),
		userKeys: make(map[string]bool),
	}
	if c.From != nil {
		fv, err := rt.evalPattern(ctx, env, c.From)
		if err != nil {
			return nil, err
		}
		for k, v := range fromAttrs(fv) {
			parts.plain[k] = types.Normalize(v)
			parts.userKeys[k] = true
		}
	}
	for _, e := range c.Entries {
		if e.Query {
			parts.queryLike = true
			if e.Value == nil {
				continue
			}
			v, err := rt.evalPattern(ctx, env, e.Value)
			if err != nil {
				return nil, err
			}
			parts.queries[e.Name] = v
			op := e.Op
			if op == "" {
				op = ast.OpEq
			}
			parts.ops[e.Name] = op
			continue
		}
		v, err := rt.evalPattern(ctx, env, e.Value)
		if err != nil {
			return nil, err
		}
		parts.plain[e.Name] = v
		parts.userKeys[e.Name] = true
	}
	return parts, nil
}

// fromAttrs flattens an @from source into attribute assignments. The
// copied values count as user-supplied literals for derived attributes.
func fromAttrs(v any) map[string]any {
	if arr := asList(v); len(arr) == 1 {
		v = arr[0]
	}
	switch x := v.(type) {
	case map[string]any:
		return x
	case *instance.Instance:
		out := make(map[string]any, len(x.Attrs))
		for k, av := range x.Attrs {
			if k == schema.PathAttr || k == schema.DeletedAttr || k == schema.GeneratedIDAttr {
				continue
			}
			out[k] = av
		}
		return out
	}
	return nil
}

// --- create ---

func (rt *Runtime) createEntity(ctx context.Context, env *Environment, ent *schema.Entity, c *ast.Crud, parts *crudParts) (any, error) {
	attrs := make(map[string]any, len(parts.plain))
	for k, v := range parts.plain {
		attrs[k] = v
	}
	if err := rt.checkAttrNames(ent, attrs); err != nil {
		return nil, err
	}
	applyDefaults(ent, attrs)
	if err := validateAttrs(ent, attrs); err != nil {
		return nil, err
	}
	if err := rt.recomputeDerived(ctx, env, ent, attrs, parts.userKeys); err != nil {
		return nil, err
	}

	inst := instance.New(ent.FQName(), attrs)
	inst.AuthUserID = env.userID
	if err := rt.assignPath(env, ent, inst); err != nil {
		return nil, err
	}

	if err := rt.checkWrite(ctx, env, ent, rbac.OpCreate, inst); err != nil {
		return nil, err
	}
	if err := rt.fireTrigger(ctx, env, ent, "create", true, inst); err != nil {
		return nil, err
	}

	r, txn, err := env.resolverFor(ctx, ent.FQName())
	if err != nil {
		return nil, err
	}
	var stored *instance.Instance
	if c.Upsert {
		stored, err = r.UpsertInstance(ctx, txn, env.auth(), inst)
	} else {
		stored, err = r.CreateInstance(ctx, txn, env.auth(), inst)
	}
	if err != nil {
		return nil, err
	}
	stored.AuthUserID = env.userID

	if err := rt.processRelEntries(ctx, env, ent, stored, c.Rels, false); err != nil {
		return nil, err
	}
	if err := rt.fireTrigger(ctx, env, ent, "create", false, stored); err != nil {
		return nil, err
	}
	rt.noteAuthWrite(ent, stored)
	return stored, nil
}

// assignPath computes __path__ before the instance is stored. Inside a
// contains scope the path extends the parent's; otherwise the instance is
// a root.
func (rt *Runtime) assignPath(env *Environment, ent *schema.Entity, inst *instance.Instance) error {
	id := inst.IDValue(ent)
	if id == nil {
		return types.NewError(types.KindValidation, "%s instance has no id value", ent.FQName())
	}
	if env.parentRel != nil && env.parentRel.Kind == schema.Contains && env.parentInst != nil {
		parentPath := env.parentInst.Path()
		if parentPath == "" {
			return types.NewError(types.KindInternal, "contains parent %s has no path", env.parentInst.FQName)
		}
		inst.SetPath(instance.ChildPath(parentPath, env.parentRel.Name, ent.Name, id))
		return nil
	}
	inst.SetPath(instance.RootPath(ent.Module, ent.Name, id))
	return nil
}

// checkAttrNames rejects assignments to names the entity does not declare.
// Reference columns of incoming one-to-one/one-to-many relationships are
// legal targets.
func (rt *Runtime) checkAttrNames(ent *schema.Entity, attrs map[string]any) error {
	for name := range attrs {
		if _, ok := ent.Attr(name); ok {
			continue
		}
		if name == schema.PathAttr || name == schema.DeletedAttr {
			continue
		}
		if rt.isRefColumn(ent, name) {
			continue
		}
		return types.NewError(types.KindValidation, "%s has no attribute %s", ent.FQName(), name)
	}
	return nil
}

func (rt *Runtime) isRefColumn(ent *schema.Entity, name string) bool {
	for _, rel := range rt.Schemas.RelationshipsOf(ent.FQName()) {
		if rel.UsesRefColumn() && rel.To == ent.FQName() && rel.RefColumn() == name {
			return true
		}
	}
	return false
}

func applyDefaults(ent *schema.Entity, attrs map[string]any) {
	for _, a := range ent.Attrs {
		if _, ok := attrs[a.Name]; ok {
			continue
		}
		switch a.DefaultKind {
		case schema.DefaultLiteral:
			attrs[a.Name] = a.DefaultValue
		case schema.DefaultUUID:
			attrs[a.Name] = uuid.NewString()
		case schema.DefaultNow:
			attrs[a.Name] = time.Now().UTC()
		}
		// autoincrement is assigned by storage
	}
}

func validateAttrs(ent *schema.Entity, attrs map[string]any) error {
	for _, a := range ent.Attrs {
		v, err := a.Validate(attrs[a.Name])
		if err != nil {
			return err
		}
		if v == nil {
			continue
		}
		attrs[a.Name] = v
	}
	return nil
}

// recomputeDerived evaluates every @expr attribute in declared order.
// Later expressions always see the computed value of earlier ones, even
// when the user overrode an attribute with a literal; the literal only
// wins in the stored result.
func (rt *Runtime) recomputeDerived(ctx context.Context, env *Environment, ent *schema.Entity, attrs map[string]any, userKeys map[string]bool) error {
	child := env.Child()
	for k, v := range attrs {
		child.Bind(k, v)
	}
	for _, a := range ent.Attrs {
		if !a.Derived() {
			continue
		}
		v, err := rt.evalPattern(ctx, child, a.Expr)
		if err != nil {
			return types.WrapError(types.KindOf(err), err, "derive %s.%s", ent.FQName(), a.Name)
		}
		cv, err := a.Type.Coerce(v)
		if err != nil {
			return types.WrapError(types.KindTypeMismatch, err, "derive %s.%s", ent.FQName(), a.Name)
		}
		child.Bind(a.Name, cv)
		if !userKeys[a.Name] {
			attrs[a.Name] = cv
		}
	}
	return nil
}

// --- read ---

func (rt *Runtime) readEntities(ctx context.Context, env *Environment, ent *schema.Entity, c *ast.Crud, parts *crudParts) (any, error) {
	insts, err := rt.fetch(ctx, env, ent, c, parts, resolver.AuthInfo{UserID: env.userID})
	if err != nil {
		return nil, err
	}
	allowed, err := rt.filterRead(ctx, env, ent, insts)
	if err != nil {
		return nil, err
	}
	if len(c.Rels) > 0 {
		list, _ := allowed.([]any)
		for _, item := range list {
			inst, ok := item.(*instance.Instance)
			if !ok {
				continue
			}
			if err := rt.processRelEntries(ctx, env, ent, inst, c.Rels, true); err != nil {
				return nil, err
			}
		}
	}
	return allowed, nil
}

// fetch runs the storage query for a read/update/delete pattern, honoring
// the relationship scope the pattern appears in.
func (rt *Runtime) fetch(ctx context.Context, env *Environment, ent *schema.Entity, c *ast.Crud, parts *crudParts, auth resolver.AuthInfo) ([]*instance.Instance, error) {
	qinst := instance.NewQuery(ent.FQName(), parts.queries, parts.ops)
	qinst.AuthUserID = env.userID
	r, txn, err := env.resolverFor(ctx, ent.FQName())
	if err != nil {
		return nil, err
	}
	if env.parentRel != nil && env.parentInst != nil {
		switch env.parentRel.Kind {
		case schema.Contains:
			parent := env.parentInst.Path() + "/" + env.parentRel.Name
			return r.QueryChildInstances(ctx, txn, auth, parent, qinst)
		case schema.Between:
			return r.QueryConnectedInstances(ctx, txn, auth, env.parentRel, env.parentInst, qinst)
		}
	}
	return r.QueryInstances(ctx, txn, auth, qinst, c.QueryAll || len(parts.queries) == 0)
}

// --- update ---

func (rt *Runtime) updateEntities(ctx context.Context, env *Environment, ent *schema.Entity, c *ast.Crud, parts *crudParts) (any, error) {
	if err := rt.checkAttrNames(ent, parts.plain); err != nil {
		return nil, err
	}
	targets, err := rt.fetch(ctx, env, ent, c, parts, resolver.AuthInfo{UserID: env.userID, ReadForUpdate: true})
	if err != nil {
		return nil, err
	}
	// Zero matches update nothing, same as a delete over an empty set.
	if len(targets) == 0 {
		return []any{}, nil
	}
	r, txn, err := env.resolverFor(ctx, ent.FQName())
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(targets))
	for _, target := range targets {
		if err := rt.checkWrite(ctx, env, ent, rbac.OpUpdate, target); err != nil {
			return nil, err
		}
		merged := make(map[string]any, len(target.Attrs))
		for k, v := range target.Attrs {
			merged[k] = v
		}
		for k, v := range parts.plain {
			merged[k] = v
		}
		if err := validateAttrs(ent, merged); err != nil {
			return nil, err
		}
		if err := rt.recomputeDerived(ctx, env, ent, merged, parts.userKeys); err != nil {
			return nil, err
		}
		if err := rt.fireTrigger(ctx, env, ent, "update", true, target); err != nil {
			return nil, err
		}
		updated, err := r.UpdateInstance(ctx, txn, env.auth(), target, merged)
		if err != nil {
			return nil, err
		}
		updated.AuthUserID = env.userID
		if err := rt.fireTrigger(ctx, env, ent, "update", false, updated); err != nil {
			return nil, err
		}
		rt.noteAuthWrite(ent, updated)
		out = append(out, updated)
	}
	return out, nil
}

// --- delete ---

func (rt *Runtime) evalDelete(ctx context.Context, env *Environment, d *ast.Delete) (any, error) {
	ent, err := rt.Schemas.Entity(d.Target.FQName, env.module)
	if err != nil {
		return nil, err
	}
	parts, err := rt.evalEntries(ctx, env, d.Target)
	if err != nil {
		return nil, err
	}
	matches, err := rt.fetch(ctx, env, ent, d.Target, parts, resolver.AuthInfo{UserID: env.userID, ReadForDelete: true})
	if err != nil {
		return nil, err
	}
	r, txn, err := env.resolverFor(ctx, ent.FQName())
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(matches))
	for _, m := range matches {
		if err := rt.checkWrite(ctx, env, ent, rbac.OpDelete, m); err != nil {
			return nil, err
		}
		if err := rt.fireTrigger(ctx, env, ent, "delete", true, m); err != nil {
			return nil, err
		}
		if err := rt.cascadeDelete(ctx, env, ent, m, d.Purge); err != nil {
			return nil, err
		}
		byID := instance.NewQuery(ent.FQName(), map[string]any{
			ent.IDAttr().Name: m.IDValue(ent),
		}, map[string]ast.Op{ent.IDAttr().Name: ast.OpEq})
		deleted, err := r.DeleteInstance(ctx, txn, env.auth(), byID, d.Purge)
		if err != nil {
			return nil, err
		}
		if err := rt.fireTrigger(ctx, env, ent, "delete", false, m); err != nil {
			return nil, err
		}
		rt.noteAuthWrite(ent, m)
		for _, del := range deleted {
			del.AuthUserID = env.userID
			out = append(out, del)
		}
	}
	return out, nil
}

// cascadeDelete removes every contains descendant under the instance's
// path, entity by entity down the relationship graph.
func (rt *Runtime) cascadeDelete(ctx context.Context, env *Environment, ent *schema.Entity, m *instance.Instance, purge bool) error {
	path := m.Path()
	if path == "" {
		return nil
	}
	descendants := map[string]bool{}
	rt.collectContainsDescendants(ent.FQName(), descendants)
	for fq := range descendants {
		child, err := rt.Schemas.Entity(fq, "")
		if err != nil {
			return err
		}
		r, txn, err := env.resolverFor(ctx, fq)
		if err != nil {
			return err
		}
		if err := r.DeleteByPathPrefix(ctx, txn, env.auth(), child, path, purge); err != nil {
			return err
		}
	}
	return nil
}

func (rt *Runtime) collectContainsDescendants(entityFQ string, seen map[string]bool) {
	mod, _ := schema.SplitFQ(entityFQ)
	g, err := rt.Schemas.Graph(mod)
	if err != nil {
		return
	}
	for _, e := range g.ContainsChildren(entityFQ) {
		if seen[e.To] {
			continue
		}
		seen[e.To] = true
		rt.collectContainsDescendants(e.To, seen)
	}
}

// --- relationships ---

// processRelEntries walks the nested relationship patterns of a CRUD map.
// On create, contains children are created under the parent's path and
// between targets are connected; on read, nested patterns query through
// the relationship and attach their results.
func (rt *Runtime) processRelEntries(ctx context.Context, env *Environment, ent *schema.Entity, parent *instance.Instance, rels []ast.RelEntry, reading bool) error {
	for _, re := range rels {
		rel, err := rt.Schemas.Relationship(re.Name, env.module)
		if err != nil {
			return err
		}
		child := env.childForRel(parent, rel)
		for _, item := range re.Items {
			v, err := rt.evalPattern(ctx, child, item)
			if err != nil {
				return err
			}
			attached, err := rt.attachRelResult(ctx, env, rel, parent, v, reading)
			if err != nil {
				return err
			}
			parent.AttachRelated(rel.Name, attached...)
		}
	}
	return nil
}

func (rt *Runtime) attachRelResult(ctx context.Context, env *Environment, rel *schema.Relationship, parent *instance.Instance, v any, reading bool) ([]*instance.Instance, error) {
	var insts []*instance.Instance
	switch x := v.(type) {
	case *instance.Instance:
		insts = []*instance.Instance{x}
	case []*instance.Instance:
		insts = x
	case []any:
		for _, item := range x {
			if i, ok := item.(*instance.Instance); ok {
				insts = append(insts, i)
			}
		}
	case nil:
	default:
		return nil, types.NewError(types.KindTypeMismatch, "relationship %s pattern produced %T", rel.Name, v)
	}
	// Between links are explicit records; contains is implied by the path.
	if !reading && rel.Kind == schema.Between {
		fromEnt, err := rt.Schemas.Entity(rel.From, "")
		if err != nil {
			return nil, err
		}
		r, txn, err := env.resolverFor(ctx, rel.To)
		if err != nil {
			return nil, err
		}
		for _, other := range insts {
			a, b := parent, other
			if parent.FQName != fromEnt.FQName() {
				a, b = other, parent
			}
			if _, err := r.ConnectInstances(ctx, txn, env.auth(), a, b, rel, false); err != nil {
				return nil, err
			}
		}
	}
	return insts, nil
}

// --- event and agent invocation ---

// invokeEvent runs the event's workflow inside the caller's transaction
// scope. The event's attributes bind under its local name.
func (rt *Runtime) invokeEvent(ctx context.Context, env *Environment, ev *schema.Event, c *ast.Crud) (any, error) {
	attrs := make(map[string]any, len(c.Entries))
	for _, e := range c.Entries {
		if e.Query {
			return nil, types.NewError(types.KindValidation, "event %s cannot take query attributes", ev.FQName())
		}
		v, err := rt.evalPattern(ctx, env, e.Value)
		if err != nil {
			return nil, err
		}
		attrs[e.Name] = v
	}
	return rt.dispatchEvent(ctx, env, ev, attrs)
}

// dispatchEvent coerces attributes and runs the event's workflow in a child
// scope of env. Shared by pattern-form invocation and the agent executor.
func (rt *Runtime) dispatchEvent(ctx context.Context, env *Environment, ev *schema.Event, attrs map[string]any) (any, error) {
	coerced, err := coerceEventAttrs(ev, attrs)
	if err != nil {
		return nil, err
	}
	wf, err := rt.Schemas.Workflow(ev.Name, ev.Module)
	if err != nil {
		return nil, err
	}
	child := env.childInModule(ev.Module)
	child.Bind(ev.Name, coerced)
	return rt.runWorkflowBody(ctx, child, wf.Statements)
}

// invokeAgent hands the pattern's attributes to the agent hook. The
// "message" attribute becomes the user message; everything else travels as
// context. Exec lets the hook realise tool calls as event dispatches inside
// the caller's transaction.
func (rt *Runtime) invokeAgent(ctx context.Context, env *Environment, ag *schema.Agent, c *ast.Crud) (any, error) {
	attrs := make(map[string]any, len(c.Entries))
	for _, e := range c.Entries {
		v, err := rt.evalPattern(ctx, env, e.Value)
		if err != nil {
			return nil, err
		}
		attrs[e.Name] = v
	}
	req := &agents.Request{
		Agent:   ag,
		Message: types.String(attrs["message"]),
		Context: attrs,
		Exec: func(ctx context.Context, fqEvent string, evAttrs map[string]any) (any, error) {
			ev, err := rt.Schemas.Event(fqEvent, env.module)
			if err != nil {
				return nil, err
			}
			return rt.dispatchEvent(ctx, env, ev, evAttrs)
		},
	}
	return rt.AgentHook.Invoke(ctx, req)
}
