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

// Package agents defines the invocation boundary for LLM-backed agents.
// The evaluator treats an agent call like any other event dispatch; what
// actually answers is pluggable, so deployments can wire a provider client
// without the core ever importing one.
package agents

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/agentlang-ai/agentlang/pkg/schema"
	"github.com/agentlang-ai/agentlang/pkg/types"
)

// Request carries one agent invocation. Message is the rendered user
// input; Context holds the event attributes that triggered the call. Exec,
// when set, runs an event in the invoking environment so tool calls commit
// with the surrounding transaction.
type Request struct {
	Agent   *schema.Agent
	Message string
	Context map[string]any
	Exec    StatementExecutor
}

// Invoker produces an agent's response to a request. Implementations may
// call a provider, replay a canned script, or delegate to a tool runner.
type Invoker interface {
	Invoke(ctx context.Context, req *Request) (any, error)
}

// StatementExecutor lets an invoker run workflow statements on behalf of
// the agent, e.g. to realise tool calls as event invocations. Supplied by
// the runtime to avoid an import cycle.
type StatementExecutor func(ctx context.Context, fqEvent string, attrs map[string]any) (any, error)

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, req *Request) (any, error)

// Invoke implements Invoker.
func (f InvokerFunc) Invoke(ctx context.Context, req *Request) (any, error) {
	return f(ctx, req)
}

// NopInvoker is the default hook. It fails loudly so a module that
// declares agents without wiring a provider surfaces a clear error
// instead of a silent nil result.
type NopInvoker struct {
	Logger *zap.Logger
}

// Invoke implements Invoker.
func (n *NopInvoker) Invoke(_ context.Context, req *Request) (any, error) {
	logger := n.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Warn("agent invoked with no provider wired",
		zap.String("agent", req.Agent.FQName()))
	return nil, types.NewError(types.KindResolverUnavailable,
		"no agent provider configured for %s", req.Agent.FQName())
}

// Prompt renders the system prompt for an agent from its declared role,
// instruction, directives, and glossary.
func Prompt(a *schema.Agent) string {
	var b strings.Builder
	if a.Role != "" {
		b.WriteString("Role: ")
		b.WriteString(a.Role)
		b.WriteString("\n")
	}
	if a.Instruction != "" {
		b.WriteString(a.Instruction)
		b.WriteString("\n")
	}
	for _, d := range a.Directives {
		b.WriteString("- ")
		b.WriteString(d)
		b.WriteString("\n")
	}
	if len(a.Glossary) > 0 {
		b.WriteString("Glossary:\n")
		for _, term := range sortedKeys(a.Glossary) {
			b.WriteString("  ")
			b.WriteString(term)
			b.WriteString(": ")
			b.WriteString(a.Glossary[term])
			b.WriteString("\n")
		}
	}
	return b.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
