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
	"strings"

	"github.com/agentlang-ai/agentlang/pkg/ast"
	"github.com/agentlang-ai/agentlang/pkg/types"
)

// Workflow is a named, ordered statement sequence implementing the body of
// an event.
type Workflow struct {
	Name       string
	Module     string
	Statements []ast.Statement
}

// FQName returns the fully-qualified Module/Name form.
func (w *Workflow) FQName() string { return w.Module + "/" + w.Name }

// Agent is an LLM-backed handler definition. The runtime never talks to a
// provider directly; invocation goes through the agent hook.
type Agent struct {
	Name        string
	Module      string
	Role        string
	Instruction string
	LLM         string
	Tools       []string
	Flows       []string
	Scenarios   []string
	Directives  []string
	Glossary    map[string]string
}

// FQName returns the fully-qualified Module/Name form.
func (a *Agent) FQName() string { return a.Module + "/" + a.Name }

// Module groups the definitions loaded from one source module. Names within
// a module are unique across all definition kinds.
type Module struct {
	Name string

	Records       map[string]*Record
	Entities      map[string]*Entity
	Events        map[string]*Event
	Relationships map[string]*Relationship
	Workflows     map[string]*Workflow
	Agents        map[string]*Agent

	// EntityOrder preserves declaration order for schema creation.
	EntityOrder []string

	// Init holds standalone statements evaluated once at module load.
	Init []ast.Statement

	// ResolverBindings maps a local entity name to a named resolver;
	// unlisted entities use the default resolver.
	ResolverBindings map[string]string
}

// NewModule creates an empty module.
func NewModule(name string) *Module {
	return &Module{
		Name:             name,
		Records:          make(map[string]*Record),
		Entities:         make(map[string]*Entity),
		Events:           make(map[string]*Event),
		Relationships:    make(map[string]*Relationship),
		Workflows:        make(map[string]*Workflow),
		Agents:           make(map[string]*Agent),
		ResolverBindings: make(map[string]string),
	}
}

func (m *Module) nameTaken(name string) bool {
	if _, ok := m.Records[name]; ok {
		return true
	}
	if _, ok := m.Entities[name]; ok {
		return true
	}
	if _, ok := m.Events[name]; ok {
		return true
	}
	if _, ok := m.Relationships[name]; ok {
		return true
	}
	return false
}

// AddEntity registers an entity definition.
func (m *Module) AddEntity(e *Entity) error {
	if m.nameTaken(e.Name) {
		return types.NewError(types.KindValidation, "duplicate definition %s in module %s", e.Name, m.Name)
	}
	m.Entities[e.Name] = e
	m.EntityOrder = append(m.EntityOrder, e.Name)
	return nil
}

// AddRecord registers a plain record definition.
func (m *Module) AddRecord(r *Record) error {
	if m.nameTaken(r.Name) {
		return types.NewError(types.KindValidation, "duplicate definition %s in module %s", r.Name, m.Name)
	}
	m.Records[r.Name] = r
	return nil
}

// AddEvent registers an event definition.
func (m *Module) AddEvent(e *Event) error {
	if m.nameTaken(e.Name) {
		return types.NewError(types.KindValidation, "duplicate definition %s in module %s", e.Name, m.Name)
	}
	m.Events[e.Name] = e
	return nil
}

// AddRelationship registers a relationship definition.
func (m *Module) AddRelationship(r *Relationship) error {
	if m.nameTaken(r.Name) {
		return types.NewError(types.KindValidation, "duplicate definition %s in module %s", r.Name, m.Name)
	}
	if r.Kind == Between && r.Card == "" {
		r.Card = ManyMany
	}
	m.Relationships[r.Name] = r
	return nil
}

// AddWorkflow registers a workflow. Workflows share the event namespace: an
// event's workflow carries the event's name.
func (m *Module) AddWorkflow(w *Workflow) error {
	if _, dup := m.Workflows[w.Name]; dup {
		return types.NewError(types.KindValidation, "duplicate workflow %s in module %s", w.Name, m.Name)
	}
	m.Workflows[w.Name] = w
	return nil
}

// AddAgent registers an agent definition.
func (m *Module) AddAgent(a *Agent) error {
	if _, dup := m.Agents[a.Name]; dup {
		return types.NewError(types.KindValidation, "duplicate agent %s in module %s", a.Name, m.Name)
	}
	m.Agents[a.Name] = a
	return nil
}

// ConfigEntity returns the entity tagged as the module's configuration
// entity, if any.
func (m *Module) ConfigEntity() (*Entity, bool) {
	for _, name := range m.EntityOrder {
		if e := m.Entities[name]; e.Meta.Config {
			return e, true
		}
	}
	return nil, false
}

// SplitFQ splits "Module/Entry" at the first slash. Module names may contain
// dots but never slashes. The second return is empty for unqualified names.
func SplitFQ(name string) (module, entry string) {
	if i := strings.Index(name, "/"); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

// JoinFQ builds the fully-qualified Module/Entry form.
func JoinFQ(module, entry string) string { return module + "/" + entry }
