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
	"sync"

	"go.uber.org/zap"

	"github.com/agentlang-ai/agentlang/pkg/instance"
	"github.com/agentlang-ai/agentlang/pkg/resolver"
	"github.com/agentlang-ai/agentlang/pkg/schema"
)

// txnState holds the per-invocation resolver instances and their open
// transactions. Every environment of one invocation shares the same state;
// only the root commits or rolls back.
type txnState struct {
	mu        sync.Mutex
	resolvers map[string]resolver.Resolver
	txns      map[string]resolver.Txn
	order     []string
}

// Environment is one lexical scope of a running workflow. Child scopes see
// parent bindings; sibling scopes are isolated. The relationship context
// (parentInst/parentRel) steers nested CRUD patterns.
type Environment struct {
	rt     *Runtime
	parent *Environment

	module string
	userID string
	kernel bool

	bindings map[string]any

	parentInst *instance.Instance
	parentRel  *schema.Relationship

	state *txnState
}

func newRootEnv(rt *Runtime, module, userID string) *Environment {
	return &Environment{
		rt:       rt,
		module:   module,
		userID:   userID,
		bindings: make(map[string]any),
		state: &txnState{
			resolvers: make(map[string]resolver.Resolver),
			txns:      make(map[string]resolver.Txn),
		},
	}
}

// Child opens a nested scope sharing the invocation's transactions.
func (e *Environment) Child() *Environment {
	return &Environment{
		rt:         e.rt,
		parent:     e,
		module:     e.module,
		userID:     e.userID,
		kernel:     e.kernel,
		bindings:   make(map[string]any),
		parentInst: e.parentInst,
		parentRel:  e.parentRel,
		state:      e.state,
	}
}

// childInModule opens a nested scope with a different active module, used
// when an event invocation crosses module boundaries.
func (e *Environment) childInModule(module string) *Environment {
	c := e.Child()
	c.module = module
	c.parentInst = nil
	c.parentRel = nil
	return c
}

// childForRel opens a nested scope positioned under a relationship of a
// concrete instance; nested CRUD patterns read/create through it.
func (e *Environment) childForRel(parent *instance.Instance, rel *schema.Relationship) *Environment {
	c := e.Child()
	c.parentInst = parent
	c.parentRel = rel
	return c
}

// kernelChild opens a nested scope that bypasses access checks. Used for
// role lookups and rule predicates.
func (e *Environment) kernelChild() *Environment {
	c := e.Child()
	c.kernel = true
	c.parentInst = nil
	c.parentRel = nil
	return c
}

// Bind assigns a name in this scope.
func (e *Environment) Bind(name string, v any) { e.bindings[name] = v }

// Lookup resolves a name through the scope chain.
func (e *Environment) Lookup(name string) (any, bool) {
	for env := e; env != nil; env = env.parent {
		if v, ok := env.bindings[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Snapshot flattens the scope chain into a serializable map for
// suspension. Instances are reduced to their plain attribute form.
func (e *Environment) Snapshot() map[string]any {
	out := make(map[string]any)
	var chain []*Environment
	for env := e; env != nil; env = env.parent {
		chain = append(chain, env)
	}
	// root first so inner scopes override
	for i := len(chain) - 1; i >= 0; i-- {
		for k, v := range chain[i].bindings {
			out[k] = plainValue(v)
		}
	}
	return out
}

// Plain reduces a workflow result to JSON-friendly values: instances
// become their plain attribute maps, recursively.
func Plain(v any) any { return plainValue(v) }

func plainValue(v any) any {
	switch x := v.(type) {
	case *instance.Instance:
		return x.ToPlain(nil)
	case []*instance.Instance:
		arr := make([]any, 0, len(x))
		for _, i := range x {
			arr = append(arr, i.ToPlain(nil))
		}
		return arr
	case []any:
		arr := make([]any, 0, len(x))
		for _, item := range x {
			arr = append(arr, plainValue(item))
		}
		return arr
	default:
		return v
	}
}

// auth is the identity attached to resolver calls from this scope.
func (e *Environment) auth() resolver.AuthInfo {
	if e.kernel {
		return resolver.AuthInfo{}
	}
	return resolver.AuthInfo{UserID: e.userID}
}

// resolverFor returns the resolver handling the entity, with the
// invocation's transaction on it, starting one on first use.
func (e *Environment) resolverFor(ctx context.Context, entityFQ string) (resolver.Resolver, resolver.Txn, error) {
	name := e.rt.Resolvers.NameFor(entityFQ)
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	r, ok := e.state.resolvers[name]
	if !ok {
		inner, err := e.rt.Resolvers.New(name)
		if err != nil {
			return nil, "", err
		}
		r = resolver.WrapWithPolicy(inner, e.rt.policy)
		e.state.resolvers[name] = r
	}
	txn, ok := e.state.txns[name]
	if !ok {
		var err error
		txn, err = r.StartTransaction(ctx)
		if err != nil {
			return nil, "", err
		}
		e.state.txns[name] = txn
		e.state.order = append(e.state.order, name)
	}
	return r, txn, nil
}

// commitAll commits every open transaction in start order. With several
// resolvers in play the commit is best-effort: a failure is reported but
// later commits still run.
func (e *Environment) commitAll(ctx context.Context) error {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	var firstErr error
	for _, name := range e.state.order {
		r := e.state.resolvers[name]
		if err := r.CommitTransaction(ctx, e.state.txns[name]); err != nil {
			e.rt.logger.Error("commit failed",
				zap.String("resolver", name), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	e.state.txns = make(map[string]resolver.Txn)
	e.state.order = nil
	return firstErr
}

// rollbackAll rolls back every open transaction in reverse start order.
func (e *Environment) rollbackAll(ctx context.Context) {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	for i := len(e.state.order) - 1; i >= 0; i-- {
		name := e.state.order[i]
		r := e.state.resolvers[name]
		if err := r.RollbackTransaction(ctx, e.state.txns[name]); err != nil {
			e.rt.logger.Warn("rollback failed",
				zap.String("resolver", name), zap.Error(err))
		}
	}
	e.state.txns = make(map[string]resolver.Txn)
	e.state.order = nil
}

type envCtxKey struct{}

func withEnv(ctx context.Context, env *Environment) context.Context {
	return context.WithValue(ctx, envCtxKey{}, env)
}

func envFromContext(ctx context.Context) *Environment {
	env, _ := ctx.Value(envCtxKey{}).(*Environment)
	return env
}
