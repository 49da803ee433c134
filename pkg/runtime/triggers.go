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

	"go.uber.org/zap"

	"github.com/agentlang-ai/agentlang/pkg/instance"
	"github.com/agentlang-ai/agentlang/pkg/schema"
)

// fireTrigger dispatches the entity's before/after workflow for an
// operation, in the same transaction scope as the operation itself. The
// affected instance binds under the entity's simple name, so a Team
// trigger reads it as $Team; a trigger failure aborts the operation.
func (rt *Runtime) fireTrigger(ctx context.Context, env *Environment, ent *schema.Entity, op string, before bool, inst *instance.Instance) error {
	var name string
	var ok bool
	if before {
		name, ok = ent.BeforeWorkflow(op)
	} else {
		name, ok = ent.AfterWorkflow(op)
	}
	if !ok {
		return nil
	}
	wf, err := rt.Schemas.Workflow(name, ent.Module)
	if err != nil {
		return err
	}
	child := env.childInModule(wf.Module)
	child.Bind(ent.Name, inst)
	rt.logger.Debug("trigger fired",
		zap.String("entity", ent.FQName()),
		zap.String("op", op),
		zap.Bool("before", before),
		zap.String("workflow", wf.FQName()))
	_, err = rt.runWorkflowBody(ctx, child, wf.Statements)
	return err
}
