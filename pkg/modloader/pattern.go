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
package modloader

import (
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/agentlang-ai/agentlang/pkg/ast"
	"github.com/agentlang-ai/agentlang/pkg/types"
)

// decoder turns manifest YAML nodes into AST patterns. Mapping nodes are
// walked through the raw node tree because entry order is significant.
type decoder struct {
	module string
}

// Reserved mapping keys of a statement.
const (
	keyAs    = "as"
	keyCatch = "catch"
)

var controlKeys = map[string]bool{
	"if": true, "for_each": true, "delete": true, "return": true,
	"suspend": true, "search": true, "call": true,
}

var binaryOps = map[string]bool{
	"+": true, "-": true, "*": true, "/": true, "%": true,
	"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
	"and": true, "or": true,
}

// kv is one mapping entry.
type kv struct {
	key   string
	value *yaml.Node
}

func mappingPairs(node *yaml.Node) ([]kv, error) {
	if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		node = node.Content[0]
	}
	if node.Kind != yaml.MappingNode {
		return nil, types.NewError(types.KindParse, "expected a mapping at line %d", node.Line)
	}
	pairs := make([]kv, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		pairs = append(pairs, kv{key: node.Content[i].Value, value: node.Content[i+1]})
	}
	return pairs, nil
}

// statements decodes a statement list.
func (d *decoder) statements(nodes []yaml.Node) ([]ast.Statement, error) {
	out := make([]ast.Statement, 0, len(nodes))
	for i := range nodes {
		st, err := d.statement(&nodes[i])
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func (d *decoder) statementsFromSeq(node *yaml.Node) ([]ast.Statement, error) {
	if node == nil {
		return nil, nil
	}
	if node.Kind != yaml.SequenceNode {
		return nil, types.NewError(types.KindParse, "expected a statement list at line %d", node.Line)
	}
	out := make([]ast.Statement, 0, len(node.Content))
	for _, item := range node.Content {
		st, err := d.statement(item)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// statement splits a mapping into the pattern body and its as/catch
// annotations.
func (d *decoder) statement(node *yaml.Node) (ast.Statement, error) {
	var st ast.Statement
	pairs, err := mappingPairs(node)
	if err != nil {
		return st, err
	}
	var body []kv
	for _, p := range pairs {
		switch p.key {
		case keyAs:
			if p.value.Kind == yaml.SequenceNode {
				for _, n := range p.value.Content {
					st.AliasList = append(st.AliasList, n.Value)
				}
			} else {
				st.Alias = p.value.Value
			}
		case keyCatch:
			clauses, err := d.catchClauses(p.value)
			if err != nil {
				return st, err
			}
			st.Catch = clauses
		default:
			body = append(body, p)
		}
	}
	pat, err := d.patternFromPairs(body, node.Line)
	if err != nil {
		return st, err
	}
	st.Pattern = pat
	return st, nil
}

func (d *decoder) catchClauses(node *yaml.Node) ([]ast.CatchClause, error) {
	pairs, err := mappingPairs(node)
	if err != nil {
		return nil, err
	}
	out := make([]ast.CatchClause, 0, len(pairs))
	for _, p := range pairs {
		recover, err := d.pattern(p.value)
		if err != nil {
			return nil, err
		}
		out = append(out, ast.CatchClause{Kind: p.key, Recover: recover})
	}
	return out, nil
}

// pattern decodes any pattern node: scalars, "$" references, operator
// lists, control maps, CRUD maps, and plain map/list literals.
func (d *decoder) pattern(node *yaml.Node) (ast.Pattern, error) {
	if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		node = node.Content[0]
	}
	switch node.Kind {
	case yaml.ScalarNode:
		return d.scalar(node)
	case yaml.SequenceNode:
		return d.sequence(node)
	case yaml.MappingNode:
		pairs, err := mappingPairs(node)
		if err != nil {
			return nil, err
		}
		return d.patternFromPairs(pairs, node.Line)
	}
	return nil, types.NewError(types.KindParse, "cannot decode pattern at line %d", node.Line)
}

// scalar decodes literals and references. A string starting with "$" is a
// dotted reference; "$$" escapes a literal dollar string.
func (d *decoder) scalar(node *yaml.Node) (ast.Pattern, error) {
	var v any
	if err := node.Decode(&v); err != nil {
		return nil, types.WrapError(types.KindParse, err, "scalar at line %d", node.Line)
	}
	if s, ok := v.(string); ok {
		if strings.HasPrefix(s, "$$") {
			return ast.L(s[1:]), nil
		}
		if strings.HasPrefix(s, "$") {
			return ast.R(strings.Split(s[1:], ".")...), nil
		}
	}
	return ast.L(types.Normalize(v)), nil
}

// sequence decodes ["+", a, b] operator forms and plain list literals.
func (d *decoder) sequence(node *yaml.Node) (ast.Pattern, error) {
	items := node.Content
	if len(items) > 0 && items[0].Kind == yaml.ScalarNode {
		op := items[0].Value
		if binaryOps[op] && len(items) == 3 {
			x, err := d.pattern(items[1])
			if err != nil {
				return nil, err
			}
			y, err := d.pattern(items[2])
			if err != nil {
				return nil, err
			}
			return &ast.Binary{Op: op, X: x, Y: y}, nil
		}
		if (op == "not" || op == "neg") && len(items) == 2 {
			x, err := d.pattern(items[1])
			if err != nil {
				return nil, err
			}
			if op == "neg" {
				op = "-"
			}
			return &ast.Unary{Op: op, X: x}, nil
		}
	}
	list := &ast.ListLit{}
	for _, item := range items {
		p, err := d.pattern(item)
		if err != nil {
			return nil, err
		}
		list.Items = append(list.Items, p)
	}
	return list, nil
}

func (d *decoder) patternFromPairs(pairs []kv, line int) (ast.Pattern, error) {
	if len(pairs) == 0 {
		return &ast.MapLit{}, nil
	}
	for _, p := range pairs {
		if controlKeys[p.key] {
			return d.control(pairs, line)
		}
	}
	for _, p := range pairs {
		if isEntityKey(p.key) {
			return d.crud(pairs, line)
		}
	}
	m := &ast.MapLit{}
	for _, p := range pairs {
		v, err := d.pattern(p.value)
		if err != nil {
			return nil, err
		}
		m.Entries = append(m.Entries, ast.MapEntry{Key: p.key, Value: v})
	}
	return m, nil
}

// isEntityKey reports whether a mapping key names a definition: qualified
// with a slash, or capitalized by convention.
func isEntityKey(key string) bool {
	key = strings.TrimSuffix(key, "?")
	if strings.Contains(key, "/") {
		return true
	}
	r := []rune(key)
	return len(r) > 0 && unicode.IsUpper(r[0])
}

func (d *decoder) control(pairs []kv, line int) (ast.Pattern, error) {
	get := func(name string) *yaml.Node {
		for _, p := range pairs {
			if p.key == name {
				return p.value
			}
		}
		return nil
	}
	switch {
	case get("if") != nil:
		cond, err := d.pattern(get("if"))
		if err != nil {
			return nil, err
		}
		then, err := d.statementsFromSeq(get("then"))
		if err != nil {
			return nil, err
		}
		els, err := d.statementsFromSeq(get("else"))
		if err != nil {
			return nil, err
		}
		return &ast.If{Cond: cond, Then: then, Else: els}, nil

	case get("for_each") != nil:
		src, err := d.pattern(get("for_each"))
		if err != nil {
			return nil, err
		}
		v := "%"
		if n := get("var"); n != nil {
			v = n.Value
		}
		body, err := d.statementsFromSeq(get("do"))
		if err != nil {
			return nil, err
		}
		return &ast.ForEach{Var: v, Source: src, Body: body}, nil

	case get("delete") != nil:
		inner, err := d.pattern(get("delete"))
		if err != nil {
			return nil, err
		}
		crud, ok := inner.(*ast.Crud)
		if !ok {
			return nil, types.NewError(types.KindParse, "delete needs an entity pattern at line %d", line)
		}
		purge := false
		if n := get("purge"); n != nil {
			purge = n.Value == "true"
		}
		return &ast.Delete{Target: crud, Purge: purge}, nil

	case get("return") != nil:
		inner, err := d.pattern(get("return"))
		if err != nil {
			return nil, err
		}
		return &ast.Return{Inner: inner}, nil

	case get("suspend") != nil:
		inner, err := d.pattern(get("suspend"))
		if err != nil {
			return nil, err
		}
		return &ast.Suspend{Inner: inner}, nil

	case get("search") != nil:
		return d.search(get("search"))

	case get("call") != nil:
		call := &ast.Call{Name: get("call").Value}
		if args := get("args"); args != nil {
			if args.Kind != yaml.SequenceNode {
				return nil, types.NewError(types.KindParse, "call args must be a list at line %d", line)
			}
			for _, a := range args.Content {
				p, err := d.pattern(a)
				if err != nil {
					return nil, err
				}
				call.Args = append(call.Args, p)
			}
		}
		return call, nil
	}
	return nil, types.NewError(types.KindParse, "unrecognized control pattern at line %d", line)
}

func (d *decoder) search(node *yaml.Node) (ast.Pattern, error) {
	pairs, err := mappingPairs(node)
	if err != nil {
		return nil, err
	}
	s := &ast.Search{}
	for _, p := range pairs {
		switch p.key {
		case "entity":
			s.FQName = p.value.Value
		case "query":
			s.Query = p.value.Value
		case "options":
			var opts map[string]any
			if err := p.value.Decode(&opts); err != nil {
				return nil, types.WrapError(types.KindParse, err, "search options")
			}
			s.Opts = opts
		}
	}
	if s.FQName == "" || s.Query == "" {
		return nil, types.NewError(types.KindParse, "search needs entity and query")
	}
	return s, nil
}
