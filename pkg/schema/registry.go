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
	"sort"
	"sync"

	"github.com/agentlang-ai/agentlang/pkg/types"
)

// Registry is the process-wide catalog of loaded modules. Mutations happen
// at load/unload time; callers serialize them outside request handling.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]*Module
	graphs  map[string]*Graph
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		modules: make(map[string]*Module),
		graphs:  make(map[string]*Graph),
	}
}

// AddModule registers a module; reloading replaces the previous definition
// and invalidates the cached relationship graph.
func (r *Registry) AddModule(m *Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules[m.Name] = m
	delete(r.graphs, m.Name)
}

// RemoveModule unloads a module and its graph.
func (r *Registry) RemoveModule(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.modules, name)
	delete(r.graphs, name)
}

// Module looks up a loaded module by name.
func (r *Registry) Module(name string) (*Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[name]
	return m, ok
}

// ModuleNames lists loaded modules in sorted order.
func (r *Registry) ModuleNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.modules))
	for n := range r.modules {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// resolve splits a possibly-qualified name against an active module.
// Unqualified names resolve in activeModule; qualified names bypass it.
func (r *Registry) resolve(name, activeModule string) (*Module, string, error) {
	mod, entry := SplitFQ(name)
	if mod == "" {
		mod = activeModule
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[mod]
	if !ok {
		return nil, "", types.NewError(types.KindValidation, "module %q is not loaded", mod)
	}
	return m, entry, nil
}

// Entity resolves an entity by name. Unqualified names resolve against the
// active module.
func (r *Registry) Entity(name, activeModule string) (*Entity, error) {
	m, entry, err := r.resolve(name, activeModule)
	if err != nil {
		return nil, err
	}
	if e, ok := m.Entities[entry]; ok {
		return e, nil
	}
	return nil, types.NewError(types.KindNotFound, "entity %s/%s is not defined", m.Name, entry)
}

// Record resolves a record, entity, or event schema by name.
func (r *Registry) Record(name, activeModule string) (*Record, error) {
	m, entry, err := r.resolve(name, activeModule)
	if err != nil {
		return nil, err
	}
	if e, ok := m.Entities[entry]; ok {
		return e.Record, nil
	}
	if ev, ok := m.Events[entry]; ok {
		return ev.Record, nil
	}
	if rec, ok := m.Records[entry]; ok {
		return rec, nil
	}
	return nil, types.NewError(types.KindNotFound, "record %s/%s is not defined", m.Name, entry)
}

// Event resolves an event definition by name.
func (r *Registry) Event(name, activeModule string) (*Event, error) {
	m, entry, err := r.resolve(name, activeModule)
	if err != nil {
		return nil, err
	}
	if ev, ok := m.Events[entry]; ok {
		return ev, nil
	}
	return nil, types.NewError(types.KindNotFound, "event %s/%s is not defined", m.Name, entry)
}

// Workflow resolves a workflow by name.
func (r *Registry) Workflow(name, activeModule string) (*Workflow, error) {
	m, entry, err := r.resolve(name, activeModule)
	if err != nil {
		return nil, err
	}
	if w, ok := m.Workflows[entry]; ok {
		return w, nil
	}
	return nil, types.NewError(types.KindNotFound, "workflow %s/%s is not defined", m.Name, entry)
}

// Agent resolves an agent definition by name.
func (r *Registry) Agent(name, activeModule string) (*Agent, error) {
	m, entry, err := r.resolve(name, activeModule)
	if err != nil {
		return nil, err
	}
	if a, ok := m.Agents[entry]; ok {
		return a, nil
	}
	return nil, types.NewError(types.KindNotFound, "agent %s/%s is not defined", m.Name, entry)
}

// Relationship resolves a relationship by name.
func (r *Registry) Relationship(name, activeModule string) (*Relationship, error) {
	m, entry, err := r.resolve(name, activeModule)
	if err != nil {
		return nil, err
	}
	if rel, ok := m.Relationships[entry]; ok {
		return rel, nil
	}
	return nil, types.NewError(types.KindNotFound, "relationship %s/%s is not defined", m.Name, entry)
}

// RelationshipsOf lists every relationship touching the fully-qualified
// entity, across all loaded modules.
func (r *Registry) RelationshipsOf(entityFQ string) []*Relationship {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Relationship
	for _, m := range r.modules {
		for _, rel := range m.Relationships {
			if rel.From == entityFQ || rel.To == entityFQ {
				out = append(out, rel)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FQName() < out[j].FQName() })
	return out
}

// UniqueSets returns the unique attribute tuples of an entity: every
// single @unique attribute plus the declared composite sets.
func (r *Registry) UniqueSets(e *Entity) [][]string {
	var sets [][]string
	for _, a := range e.Attrs {
		if a.Unique {
			sets = append(sets, []string{a.Name})
		}
	}
	sets = append(sets, e.Meta.UniqueTuples...)
	return sets
}

// Graph returns the relationship graph for a module, building and caching
// it on first use.
func (r *Registry) Graph(module string) (*Graph, error) {
	r.mu.RLock()
	if g, ok := r.graphs[module]; ok {
		r.mu.RUnlock()
		return g, nil
	}
	m, ok := r.modules[module]
	r.mu.RUnlock()
	if !ok {
		return nil, types.NewError(types.KindValidation, "module %q is not loaded", module)
	}
	g := buildGraph(m)
	r.mu.Lock()
	r.graphs[module] = g
	r.mu.Unlock()
	return g, nil
}
