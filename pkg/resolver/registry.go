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
package resolver

import (
	"sync"

	"github.com/agentlang-ai/agentlang/pkg/types"
)

// Factory produces the resolver for an invocation. Factories typically
// return one shared long-lived instance; isolation comes from transaction
// ids, and the host owns the instance's lifecycle.
type Factory func() (Resolver, error)

// DefaultName is the registry's fallback resolver name.
const DefaultName = "default"

// Registry maps fully-qualified entity names to resolver factories. Absent
// a binding, the default resolver handles the entity.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	bindings  map[string]string
}

// NewRegistry creates an empty resolver registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		bindings:  make(map[string]string),
	}
}

// RegisterFactory installs a named resolver factory. Registering under
// DefaultName sets the fallback.
func (r *Registry) RegisterFactory(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Bind routes a fully-qualified entity name to a named resolver.
func (r *Registry) Bind(entityFQ, resolverName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[entityFQ] = resolverName
}

// NameFor returns the resolver name handling the entity.
func (r *Registry) NameFor(entityFQ string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n, ok := r.bindings[entityFQ]; ok {
		return n
	}
	return DefaultName
}

// New instantiates the named resolver.
func (r *Registry) New(name string) (Resolver, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, types.NewError(types.KindConfig, "no resolver factory registered under %q", name)
	}
	return f()
}
