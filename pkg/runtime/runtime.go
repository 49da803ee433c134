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

// Package runtime evaluates workflow statements against the loaded module
// registry: CRUD patterns, control flow, triggers, derived attributes,
// access control, and suspend/resume.
package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentlang-ai/agentlang/pkg/agents"
	"github.com/agentlang-ai/agentlang/pkg/ast"
	"github.com/agentlang-ai/agentlang/pkg/config"
	"github.com/agentlang-ai/agentlang/pkg/execgraph"
	"github.com/agentlang-ai/agentlang/pkg/rbac"
	"github.com/agentlang-ai/agentlang/pkg/resolver"
	"github.com/agentlang-ai/agentlang/pkg/schema"
	"github.com/agentlang-ai/agentlang/pkg/types"
)

// Func is a plug-in function callable from patterns. The environment of
// the calling scope comes last, so functions can read bindings of the
// running workflow.
type Func func(ctx context.Context, args []any, env *Environment) (any, error)

// Options configures a Runtime. Zero values give a quiet, auth-disabled
// runtime with default resolver policy and no suspension store.
type Options struct {
	Config      *config.Config
	Logger      *zap.Logger
	AgentHook   agents.Invoker
	Policy      *resolver.PolicyConfig
	Suspensions *execgraph.Store
}

// Runtime owns the evaluator and its collaborators.
type Runtime struct {
	Schemas     *schema.Registry
	Resolvers   *resolver.Registry
	Gate        *rbac.Gate
	AgentHook   agents.Invoker
	Suspensions *execgraph.Store

	cfg    *config.Config
	policy resolver.PolicyConfig
	logger *zap.Logger

	mu    sync.RWMutex
	funcs map[string]Func
}

// New builds a runtime over a schema registry and resolver registry.
func New(schemas *schema.Registry, resolvers *resolver.Registry, opts Options) *Runtime {
	cfg := opts.Config
	if cfg == nil {
		cfg = &config.Config{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	policy := resolver.DefaultPolicyConfig()
	if opts.Policy != nil {
		policy = *opts.Policy
	}
	hook := opts.AgentHook
	if hook == nil {
		hook = &agents.NopInvoker{Logger: logger}
	}
	rt := &Runtime{
		Schemas:     schemas,
		Resolvers:   resolvers,
		AgentHook:   hook,
		Suspensions: opts.Suspensions,
		cfg:         cfg,
		policy:      policy,
		logger:      logger,
		funcs:       make(map[string]Func),
	}
	rt.Gate = rbac.New(rbac.Config{
		Enabled:      cfg.AuthEnabled,
		RulesEnabled: cfg.RBACEnabled,
		AdminUser:    cfg.AdminUser,
		Logger:       logger,
	}, rt.lookupRoles, rt.lookupAdmin, rt.evalRBACWhere)
	if cfg.AuthEnabled {
		installAuthModule(schemas)
	}
	rt.registerBuiltins()
	return rt
}

// RegisterFunction installs a plug-in function under a name.
func (rt *Runtime) RegisterFunction(name string, f Func) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.funcs[name] = f
}

func (rt *Runtime) function(name string) (Func, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	f, ok := rt.funcs[name]
	return f, ok
}

func (rt *Runtime) registerBuiltins() {
	rt.funcs["now"] = func(_ context.Context, _ []any, _ *Environment) (any, error) {
		return time.Now().UTC(), nil
	}
	rt.funcs["uuid"] = func(_ context.Context, _ []any, _ *Environment) (any, error) {
		return uuid.NewString(), nil
	}
	rt.funcs["str"] = func(_ context.Context, args []any, _ *Environment) (any, error) {
		if len(args) != 1 {
			return nil, types.NewError(types.KindValidation, "str expects one argument")
		}
		return types.String(args[0]), nil
	}
	rt.funcs["len"] = func(_ context.Context, args []any, _ *Environment) (any, error) {
		if len(args) != 1 {
			return nil, types.NewError(types.KindValidation, "len expects one argument")
		}
		switch x := args[0].(type) {
		case string:
			return int64(len(x)), nil
		case []any:
			return int64(len(x)), nil
		case map[string]any:
			return int64(len(x)), nil
		case nil:
			return int64(0), nil
		}
		return nil, types.NewError(types.KindTypeMismatch, "len is not defined for %T", args[0])
	}
}

// LoadModule registers a module, materializes its storage on every resolver
// it touches, applies resolver bindings, and runs its init statements.
func (rt *Runtime) LoadModule(ctx context.Context, m *schema.Module) error {
	rt.Schemas.AddModule(m)

	for local, rname := range m.ResolverBindings {
		rt.Resolvers.Bind(schema.JoinFQ(m.Name, local), rname)
	}

	names := map[string]bool{resolver.DefaultName: true}
	for _, rname := range m.ResolverBindings {
		names[rname] = true
	}
	for rname := range names {
		r, err := rt.Resolvers.New(rname)
		if err != nil {
			return err
		}
		if err := r.EnsureSchema(ctx, m); err != nil {
			return err
		}
	}
	// The built-in auth entities live wherever the default resolver does.
	if rt.cfg.AuthEnabled {
		if authMod, ok := rt.Schemas.Module(authModuleName); ok {
			r, err := rt.Resolvers.New(resolver.DefaultName)
			if err != nil {
				return err
			}
			if err := r.EnsureSchema(ctx, authMod); err != nil {
				return err
			}
		}
	}
	rt.logger.Info("module loaded",
		zap.String("module", m.Name),
		zap.Int("entities", len(m.Entities)))

	if len(m.Init) == 0 {
		return nil
	}
	env := newRootEnv(rt, m.Name, "")
	env.kernel = true
	if _, err := rt.runWorkflowBody(withEnv(ctx, env), env, m.Init); err != nil {
		env.rollbackAll(ctx)
		return err
	}
	return env.commitAll(ctx)
}

// RunEvent validates the event's attributes and executes its workflow in a
// fresh transaction scope. The result is the workflow's value; on
// suspension it is [partialResult, suspensionID] and the work done so far
// is committed.
func (rt *Runtime) RunEvent(ctx context.Context, userID, fqEvent string, attrs map[string]any) (any, error) {
	ev, err := rt.Schemas.Event(fqEvent, "")
	if err != nil {
		return nil, err
	}
	coerced, err := coerceEventAttrs(ev, attrs)
	if err != nil {
		return nil, err
	}
	wf, err := rt.Schemas.Workflow(ev.Name, ev.Module)
	if err != nil {
		return nil, err
	}

	env := newRootEnv(rt, ev.Module, userID)
	env.Bind(ev.Name, coerced)
	ctx = withEnv(ctx, env)

	g := execgraph.Compile(wf)
	walker := &execgraph.Walker{Store: rt.Suspensions, Logger: rt.logger}
	result, err := walker.Run(ctx, g, env, userID, 0, func(ctx context.Context, st ast.Statement, _ int) (any, error) {
		return rt.evalStatement(ctx, env, st)
	})
	if err != nil {
		env.rollbackAll(ctx)
		rt.logger.Debug("event failed",
			zap.String("event", fqEvent),
			zap.String("error", types.Scrub(err.Error())))
		return nil, err
	}
	if cerr := env.commitAll(ctx); cerr != nil {
		return nil, cerr
	}
	return result, nil
}

// Resume continues a suspended workflow. The resume value completes the
// suspended statement; the final (or next partial) result is returned.
func (rt *Runtime) Resume(ctx context.Context, suspensionID string, resumeValue any) (any, error) {
	if rt.Suspensions == nil {
		return nil, types.NewError(types.KindConfig, "no suspension store is configured")
	}
	susp, err := rt.Suspensions.Load(ctx, suspensionID)
	if err != nil {
		return nil, err
	}
	wf, err := rt.Schemas.Workflow(susp.Workflow, "")
	if err != nil {
		return nil, err
	}

	env := newRootEnv(rt, susp.Module, susp.UserID)
	for k, v := range susp.Bindings {
		env.Bind(k, v)
	}
	ctx = withEnv(ctx, env)

	g := execgraph.Compile(wf)
	walker := &execgraph.Walker{Store: rt.Suspensions, Logger: rt.logger}
	result, err := walker.Resume(ctx, g, env, susp, resumeValue,
		func(ctx context.Context, st ast.Statement, _ int) (any, error) {
			return rt.evalStatement(ctx, env, st)
		},
		func(ctx context.Context, st ast.Statement, frames []execgraph.Frame, v any) (any, error) {
			return rt.finishStatement(ctx, env, st, frames, len(frames)-1, v)
		})
	if err != nil {
		env.rollbackAll(ctx)
		return nil, err
	}
	if cerr := env.commitAll(ctx); cerr != nil {
		return nil, cerr
	}
	if derr := rt.Suspensions.Delete(ctx, suspensionID); derr != nil {
		rt.logger.Warn("suspension cleanup failed",
			zap.String("suspension", suspensionID), zap.Error(derr))
	}
	return result, nil
}

func coerceEventAttrs(ev *schema.Event, attrs map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(attrs))
	for name := range attrs {
		if _, ok := ev.Attr(name); !ok {
			return nil, types.NewError(types.KindValidation, "event %s has no attribute %s", ev.FQName(), name)
		}
	}
	for _, a := range ev.Attrs {
		v, err := a.Validate(attrs[a.Name])
		if err != nil {
			return nil, err
		}
		if v != nil {
			out[a.Name] = v
		}
	}
	return out, nil
}
