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

// Package execgraph compiles workflow statement lists into a node graph and
// walks it with suspend/resume support. The walker never evaluates patterns
// itself; the evaluator is injected as a callback, which keeps this package
// independent of the runtime.
package execgraph

import (
	"github.com/agentlang-ai/agentlang/pkg/ast"
	"github.com/agentlang-ai/agentlang/pkg/schema"
)

// NodeKind classifies a compiled workflow step.
type NodeKind string

const (
	NodeCrud    NodeKind = "crud"
	NodeDelete  NodeKind = "delete"
	NodeIf      NodeKind = "if"
	NodeForEach NodeKind = "foreach"
	NodeReturn  NodeKind = "return"
	NodeSuspend NodeKind = "suspend"
	NodeSearch  NodeKind = "search"
	NodeExpr    NodeKind = "expr"
)

// Node is one compiled workflow step. Branch and loop bodies are compiled
// into sub-lists so tooling can inspect the full shape of a workflow.
type Node struct {
	Kind  NodeKind
	Index int
	Stmt  ast.Statement

	Then []*Node
	Else []*Node
	Body []*Node
}

// Graph is the compiled form of one workflow.
type Graph struct {
	Workflow string
	Module   string
	Nodes    []*Node
}

// Compile builds the execution graph of a workflow.
func Compile(wf *schema.Workflow) *Graph {
	return &Graph{
		Workflow: wf.FQName(),
		Module:   wf.Module,
		Nodes:    compileList(wf.Statements),
	}
}

func compileList(stmts []ast.Statement) []*Node {
	nodes := make([]*Node, 0, len(stmts))
	for i, st := range stmts {
		n := &Node{Index: i, Stmt: st}
		switch p := st.Pattern.(type) {
		case *ast.Crud:
			n.Kind = NodeCrud
		case *ast.Delete:
			n.Kind = NodeDelete
		case *ast.If:
			n.Kind = NodeIf
			n.Then = compileList(p.Then)
			n.Else = compileList(p.Else)
		case *ast.ForEach:
			n.Kind = NodeForEach
			n.Body = compileList(p.Body)
		case *ast.Return:
			n.Kind = NodeReturn
		case *ast.Suspend:
			n.Kind = NodeSuspend
		case *ast.Search:
			n.Kind = NodeSearch
		default:
			n.Kind = NodeExpr
		}
		nodes = append(nodes, n)
	}
	return nodes
}

// ReturnRequest unwinds the workflow with a final value. Raised by the
// evaluator for a return pattern, absorbed by the walker.
type ReturnRequest struct{ Value any }

func (*ReturnRequest) Error() string { return "workflow returned" }

// Frame kinds; the zero kind marks a frame not yet claimed by its
// enclosing construct.
const (
	FrameIf      = "if"
	FrameForEach = "foreach"
)

// Frame records suspension progress inside one nested block. Index is the
// position of the next statement to run in that block; the other fields
// describe the construct owning the block: the taken branch of an if, or
// the loop variable plus the in-flight and remaining elements of a
// for-each. Values are stored in plain JSON form.
type Frame struct {
	Kind      string `json:"kind"`
	Index     int    `json:"index"`
	Branch    string `json:"branch,omitempty"`
	Var       string `json:"var,omitempty"`
	Current   any    `json:"current,omitempty"`
	Remaining []any  `json:"remaining,omitempty"`
	Collected []any  `json:"collected,omitempty"`
}

// SuspendRequest unwinds the workflow carrying the partial result of the
// suspend pattern. As it crosses nested blocks the evaluator pushes a
// Frame per block, innermost first, so resume can re-enter a branch or a
// loop mid-way. The walker persists the execution state and yields
// [partial, suspensionID] to the caller.
type SuspendRequest struct {
	Partial any
	Alias   string
	Frames  []Frame

	aliasSet bool
}

func (*SuspendRequest) Error() string { return "execution suspended" }

// TagAlias records the suspended statement's result binding. The innermost
// statement on the unwind path wins; later calls are ignored.
func (s *SuspendRequest) TagAlias(alias string) {
	if s.aliasSet {
		return
	}
	s.aliasSet = true
	s.Alias = alias
}
