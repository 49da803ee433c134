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
	"errors"

	"github.com/agentlang-ai/agentlang/pkg/ast"
	"github.com/agentlang-ai/agentlang/pkg/execgraph"
	"github.com/agentlang-ai/agentlang/pkg/instance"
	"github.com/agentlang-ai/agentlang/pkg/types"
)

// evalStatement evaluates one statement: pattern, catch recovery, and
// result binding.
func (rt *Runtime) evalStatement(ctx context.Context, env *Environment, st ast.Statement) (any, error) {
	v, err := rt.evalPattern(ctx, env, st.Pattern)
	if err != nil {
		// Control signals pass through catch untouched.
		var ret *execgraph.ReturnRequest
		if errors.As(err, &ret) {
			return nil, err
		}
		var sus *execgraph.SuspendRequest
		if errors.As(err, &sus) {
			sus.TagAlias(st.Alias)
			return nil, err
		}
		v, err = rt.recover(ctx, env, st.Catch, err)
		if err != nil {
			return nil, err
		}
	}
	if st.Alias != "" {
		env.Bind(st.Alias, v)
	}
	if len(st.AliasList) > 0 {
		if err := destructure(env, st.AliasList, v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// recover matches the error's kind against catch clauses. "error" is the
// catch-all; NotFound is caught as "not_found". The handler sees the
// exception bound under "err".
func (rt *Runtime) recover(ctx context.Context, env *Environment, clauses []ast.CatchClause, cause error) (any, error) {
	if len(clauses) == 0 {
		return nil, cause
	}
	name := types.KindOf(cause).CatchName()
	for _, c := range clauses {
		if c.Kind != name && c.Kind != "error" {
			continue
		}
		child := env.Child()
		child.Bind("err", map[string]any{
			"kind":    string(types.KindOf(cause)),
			"message": types.Scrub(cause.Error()),
		})
		return rt.evalPattern(ctx, child, c.Recover)
	}
	return nil, cause
}

// destructure binds an array result against an alias list. "_" skips an
// element; when the result is longer than the list, the last name captures
// the remainder as an array.
func destructure(env *Environment, names []string, v any) error {
	arr := asList(v)
	if arr == nil {
		return types.NewError(types.KindTypeMismatch, "cannot destructure %T into %d names", v, len(names))
	}
	for i, name := range names {
		if name == "_" {
			continue
		}
		if i == len(names)-1 && len(arr) > len(names) {
			env.Bind(name, arr[i:])
			return nil
		}
		if i < len(arr) {
			env.Bind(name, arr[i])
		} else {
			env.Bind(name, nil)
		}
	}
	return nil
}

func asList(v any) []any {
	switch x := v.(type) {
	case []any:
		return x
	case []*instance.Instance:
		out := make([]any, 0, len(x))
		for _, i := range x {
			out = append(out, i)
		}
		return out
	case []map[string]any:
		out := make([]any, 0, len(x))
		for _, m := range x {
			out = append(out, m)
		}
		return out
	}
	return nil
}

func (rt *Runtime) evalPattern(ctx context.Context, env *Environment, p ast.Pattern) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, types.WrapError(types.KindInternal, err, "evaluation cancelled")
	}
	switch x := p.(type) {
	case *ast.Lit:
		return types.Normalize(x.Value), nil
	case *ast.Ref:
		return rt.resolveRef(env, x.Parts)
	case *ast.Call:
		return rt.evalCall(ctx, env, x)
	case *ast.MapLit:
		out := make(map[string]any, len(x.Entries))
		for _, e := range x.Entries {
			v, err := rt.evalPattern(ctx, env, e.Value)
			if err != nil {
				return nil, err
			}
			out[e.Key] = v
		}
		return out, nil
	case *ast.ListLit:
		out := make([]any, 0, len(x.Items))
		for _, item := range x.Items {
			v, err := rt.evalPattern(ctx, env, item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case *ast.Unary:
		return rt.evalUnary(ctx, env, x)
	case *ast.Binary:
		return rt.evalBinary(ctx, env, x)
	case *ast.Crud:
		return rt.evalCrud(ctx, env, x)
	case *ast.Delete:
		return rt.evalDelete(ctx, env, x)
	case *ast.ForEach:
		return rt.evalForEach(ctx, env, x)
	case *ast.If:
		return rt.evalIf(ctx, env, x)
	case *ast.Return:
		v, err := rt.evalPattern(ctx, env, x.Inner)
		if err != nil {
			return nil, err
		}
		return nil, &execgraph.ReturnRequest{Value: v}
	case *ast.Suspend:
		v, err := rt.evalPattern(ctx, env, x.Inner)
		if err != nil {
			return nil, err
		}
		return nil, &execgraph.SuspendRequest{Partial: v}
	case *ast.Search:
		return rt.evalSearch(ctx, env, x)
	case nil:
		return nil, nil
	}
	return nil, types.NewError(types.KindInternal, "unhandled pattern %T", p)
}

// resolveRef walks a dotted reference: binding, then attribute, related
// instances, or map keys. A single-element query result is unwrapped so
// `result.attr` works on reads that matched one row. An unbound root name
// is an error; a missing intermediate yields nil, so optional data reads
// as absent instead of failing the workflow.
func (rt *Runtime) resolveRef(env *Environment, parts []string) (any, error) {
	v, ok := env.Lookup(parts[0])
	if !ok {
		return nil, types.NewError(types.KindValidation, "reference %s is not bound", parts[0])
	}
	for _, part := range parts[1:] {
		if arr := asList(v); len(arr) == 1 {
			v = arr[0]
		}
		switch cur := v.(type) {
		case *instance.Instance:
			if a, ok := cur.Attr(part); ok {
				v = types.Normalize(a)
				continue
			}
			if kids := cur.RelatedBy(part); kids != nil {
				v = kids
				continue
			}
			return nil, nil
		case map[string]any:
			mv, ok := cur[part]
			if !ok {
				return nil, nil
			}
			v = types.Normalize(mv)
		default:
			return nil, nil
		}
	}
	return v, nil
}

func (rt *Runtime) evalCall(ctx context.Context, env *Environment, c *ast.Call) (any, error) {
	f, ok := rt.function(c.Name)
	if !ok {
		return nil, types.NewError(types.KindValidation, "function %q is not registered", c.Name)
	}
	args := make([]any, 0, len(c.Args))
	for _, a := range c.Args {
		v, err := rt.evalPattern(ctx, env, a)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return f(ctx, args, env)
}

func (rt *Runtime) evalUnary(ctx context.Context, env *Environment, u *ast.Unary) (any, error) {
	v, err := rt.evalPattern(ctx, env, u.X)
	if err != nil {
		return nil, err
	}
	switch u.Op {
	case "-":
		return types.Arith("-", int64(0), v)
	case "not":
		return !types.Truthy(v), nil
	}
	return nil, types.NewError(types.KindInternal, "unknown unary operator %q", u.Op)
}

func (rt *Runtime) evalBinary(ctx context.Context, env *Environment, b *ast.Binary) (any, error) {
	// Logical operators short-circuit; everything else is strict.
	switch b.Op {
	case "and":
		x, err := rt.evalPattern(ctx, env, b.X)
		if err != nil {
			return nil, err
		}
		if !types.Truthy(x) {
			return false, nil
		}
		y, err := rt.evalPattern(ctx, env, b.Y)
		if err != nil {
			return nil, err
		}
		return types.Truthy(y), nil
	case "or":
		x, err := rt.evalPattern(ctx, env, b.X)
		if err != nil {
			return nil, err
		}
		if types.Truthy(x) {
			return true, nil
		}
		y, err := rt.evalPattern(ctx, env, b.Y)
		if err != nil {
			return nil, err
		}
		return types.Truthy(y), nil
	}
	x, err := rt.evalPattern(ctx, env, b.X)
	if err != nil {
		return nil, err
	}
	y, err := rt.evalPattern(ctx, env, b.Y)
	if err != nil {
		return nil, err
	}
	switch b.Op {
	case "==", "=":
		return types.Equal(x, y), nil
	case "!=", "<>":
		return !types.Equal(x, y), nil
	case "<", "<=", ">", ">=":
		c, err := types.Compare(x, y)
		if err != nil {
			return nil, err
		}
		switch b.Op {
		case "<":
			return c < 0, nil
		case "<=":
			return c <= 0, nil
		case ">":
			return c > 0, nil
		default:
			return c >= 0, nil
		}
	case "+", "-", "*", "/", "%":
		return types.Arith(b.Op, x, y)
	}
	return nil, types.NewError(types.KindInternal, "unknown operator %q", b.Op)
}

// evalIf runs the taken branch in a child scope, so branch aliases stay
// confined. A missing else branch yields false.
func (rt *Runtime) evalIf(ctx context.Context, env *Environment, f *ast.If) (any, error) {
	cond, err := rt.evalPattern(ctx, env, f.Cond)
	if err != nil {
		return nil, err
	}
	branch, taken := f.Then, "then"
	if !types.Truthy(cond) {
		branch, taken = f.Else, "else"
	}
	if len(branch) == 0 {
		return false, nil
	}
	child := env.Child()
	v, err := rt.runBlock(ctx, child, branch)
	if err != nil {
		return nil, retagIf(err, taken)
	}
	return v, nil
}

// evalForEach evaluates the body once per source element with the loop
// variable bound in a child scope. The result collects the last statement
// value of each iteration.
func (rt *Runtime) evalForEach(ctx context.Context, env *Environment, fe *ast.ForEach) (any, error) {
	src, err := rt.evalPattern(ctx, env, fe.Source)
	if err != nil {
		return nil, err
	}
	arr := asList(src)
	if arr == nil {
		if src == nil {
			return []any{}, nil
		}
		return nil, types.NewError(types.KindTypeMismatch, "for-each source is %T, not an array", src)
	}
	out := make([]any, 0, len(arr))
	for k, item := range arr {
		child := env.Child()
		child.Bind(fe.Var, item)
		v, err := rt.runBlock(ctx, child, fe.Body)
		if err != nil {
			return nil, retagForEach(err, fe.Var, item, arr[k+1:], out)
		}
		out = append(out, v)
	}
	return out, nil
}

// runBlock runs statements of a nested block; return and suspend signals
// propagate to the enclosing workflow. A suspend pushes a frame recording
// where in this block to pick up on resume.
func (rt *Runtime) runBlock(ctx context.Context, env *Environment, stmts []ast.Statement) (any, error) {
	var last any
	for i, st := range stmts {
		v, err := rt.evalStatement(ctx, env, st)
		if err != nil {
			return nil, pushBlockFrame(err, i+1)
		}
		last = v
	}
	return last, nil
}

// pushBlockFrame appends an unclaimed frame for a suspend unwinding
// through a block; the enclosing if/for-each claims it on the way out.
func pushBlockFrame(err error, next int) error {
	var sus *execgraph.SuspendRequest
	if errors.As(err, &sus) {
		sus.Frames = append(sus.Frames, execgraph.Frame{Index: next})
	}
	return err
}

// retagIf claims the newest suspension frame for an if construct.
func retagIf(err error, branch string) error {
	var sus *execgraph.SuspendRequest
	if errors.As(err, &sus) && len(sus.Frames) > 0 {
		fr := &sus.Frames[len(sus.Frames)-1]
		fr.Kind = execgraph.FrameIf
		fr.Branch = branch
	}
	return err
}

// retagForEach claims the newest suspension frame for a for-each: the
// in-flight element, the elements still to do, and the values collected so
// far, all flattened for persistence.
func retagForEach(err error, varName string, current any, remaining, collected []any) error {
	var sus *execgraph.SuspendRequest
	if errors.As(err, &sus) && len(sus.Frames) > 0 {
		fr := &sus.Frames[len(sus.Frames)-1]
		fr.Kind = execgraph.FrameForEach
		fr.Var = varName
		fr.Current = plainValue(current)
		fr.Remaining = plainList(remaining)
		fr.Collected = plainList(collected)
	}
	return err
}

func plainList(items []any) []any {
	out := make([]any, 0, len(items))
	for _, item := range items {
		out = append(out, plainValue(item))
	}
	return out
}

// finishStatement completes a top-level statement that suspended inside a
// nested block, with the resume value standing in for the suspend
// pattern's result. Alias binding and catch handling mirror evalStatement.
func (rt *Runtime) finishStatement(ctx context.Context, env *Environment, st ast.Statement, frames []execgraph.Frame, depth int, resumeValue any) (any, error) {
	v, err := rt.finishPattern(ctx, env, st.Pattern, frames, depth, resumeValue)
	if err != nil {
		var ret *execgraph.ReturnRequest
		if errors.As(err, &ret) {
			return nil, err
		}
		var sus *execgraph.SuspendRequest
		if errors.As(err, &sus) {
			sus.TagAlias(st.Alias)
			return nil, err
		}
		v, err = rt.recover(ctx, env, st.Catch, err)
		if err != nil {
			return nil, err
		}
	}
	if st.Alias != "" {
		env.Bind(st.Alias, v)
	}
	if len(st.AliasList) > 0 {
		if err := destructure(env, st.AliasList, v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// finishPattern re-enters the construct a frame describes: the recorded
// branch of an if, or the interrupted iteration of a for-each followed by
// the remaining elements.
func (rt *Runtime) finishPattern(ctx context.Context, env *Environment, p ast.Pattern, frames []execgraph.Frame, depth int, resumeValue any) (any, error) {
	fr := frames[depth]
	switch x := p.(type) {
	case *ast.If:
		branch := x.Then
		if fr.Branch == "else" {
			branch = x.Else
		}
		child := env.Child()
		v, err := rt.finishBlock(ctx, child, branch, frames, depth, resumeValue)
		if err != nil {
			return nil, retagIf(err, fr.Branch)
		}
		return v, nil
	case *ast.ForEach:
		out := append([]any{}, fr.Collected...)
		child := env.Child()
		child.Bind(fr.Var, fr.Current)
		v, err := rt.finishBlock(ctx, child, x.Body, frames, depth, resumeValue)
		if err != nil {
			return nil, retagForEach(err, fr.Var, fr.Current, fr.Remaining, out)
		}
		out = append(out, v)
		for k, item := range fr.Remaining {
			child := env.Child()
			child.Bind(x.Var, item)
			v, err := rt.runBlock(ctx, child, x.Body)
			if err != nil {
				return nil, retagForEach(err, x.Var, item, fr.Remaining[k+1:], out)
			}
			out = append(out, v)
		}
		return out, nil
	}
	return nil, types.NewError(types.KindInternal, "suspension frame does not match pattern %T", p)
}

// finishBlock resumes a statement list mid-way. The statement before the
// frame's index either holds deeper frames and is finished through them,
// or was the suspend point itself, whose value is the resume value; the
// rest of the block runs normally.
func (rt *Runtime) finishBlock(ctx context.Context, env *Environment, stmts []ast.Statement, frames []execgraph.Frame, depth int, resumeValue any) (any, error) {
	fr := frames[depth]
	last := resumeValue
	if depth > 0 {
		v, err := rt.finishStatement(ctx, env, stmts[fr.Index-1], frames, depth-1, resumeValue)
		if err != nil {
			return nil, pushBlockFrame(err, fr.Index)
		}
		last = v
	}
	for i := fr.Index; i < len(stmts); i++ {
		v, err := rt.evalStatement(ctx, env, stmts[i])
		if err != nil {
			return nil, pushBlockFrame(err, i+1)
		}
		last = v
	}
	return last, nil
}

// runWorkflowBody runs a full workflow body: a return signal stops it and
// becomes its value, staying confined to this workflow.
func (rt *Runtime) runWorkflowBody(ctx context.Context, env *Environment, stmts []ast.Statement) (any, error) {
	var last any
	for _, st := range stmts {
		v, err := rt.evalStatement(ctx, env, st)
		if err != nil {
			var ret *execgraph.ReturnRequest
			if errors.As(err, &ret) {
				return ret.Value, nil
			}
			return nil, err
		}
		last = v
	}
	return last, nil
}

func (rt *Runtime) evalSearch(ctx context.Context, env *Environment, s *ast.Search) (any, error) {
	ent, err := rt.Schemas.Entity(s.FQName, env.module)
	if err != nil {
		return nil, err
	}
	r, txn, err := env.resolverFor(ctx, ent.FQName())
	if err != nil {
		return nil, err
	}
	insts, err := r.FullTextSearch(ctx, txn, env.auth(), ent, s.Query, s.Opts)
	if err != nil {
		return nil, err
	}
	return rt.filterRead(ctx, env, ent, insts)
}
