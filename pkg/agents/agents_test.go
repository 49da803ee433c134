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
package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentlang-ai/agentlang/pkg/schema"
	"github.com/agentlang-ai/agentlang/pkg/types"
)

func TestNopInvoker(t *testing.T) {
	n := &NopInvoker{}
	_, err := n.Invoke(context.Background(), &Request{
		Agent: &schema.Agent{Name: "Helper", Module: "Support"},
	})
	require.Error(t, err)
	assert.Equal(t, types.KindResolverUnavailable, types.KindOf(err))
	assert.Contains(t, err.Error(), "Support/Helper")
}

func TestInvokerFunc(t *testing.T) {
	f := InvokerFunc(func(_ context.Context, req *Request) (any, error) {
		return "echo: " + req.Message, nil
	})
	out, err := f.Invoke(context.Background(), &Request{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", out)
}

func TestPrompt(t *testing.T) {
	a := &schema.Agent{
		Name:        "Triage",
		Module:      "Support",
		Role:        "support engineer",
		Instruction: "Classify incoming tickets.",
		Directives:  []string{"be brief", "never guess"},
		Glossary:    map[string]string{"sev1": "total outage", "sev2": "degraded"},
	}
	p := Prompt(a)
	assert.Contains(t, p, "Role: support engineer")
	assert.Contains(t, p, "Classify incoming tickets.")
	assert.Contains(t, p, "- be brief")
	// glossary terms render sorted
	assert.Regexp(t, `(?s)sev1.*sev2`, p)
}

func TestPrompt_Empty(t *testing.T) {
	assert.Equal(t, "", Prompt(&schema.Agent{Name: "Blank", Module: "M"}))
}
