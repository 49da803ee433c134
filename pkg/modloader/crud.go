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
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/agentlang-ai/agentlang/pkg/ast"
	"github.com/agentlang-ai/agentlang/pkg/types"
)

var joinKeys = map[string]ast.JoinKind{
	"join":       ast.JoinInner,
	"left_join":  ast.JoinLeft,
	"right_join": ast.JoinRight,
	"full_join":  ast.JoinFull,
}

// crud decodes an entity pattern: the capitalized key carries the name and
// attribute body, sibling keys carry the hints. A trailing "?" on the name
// selects every instance.
func (d *decoder) crud(pairs []kv, line int) (ast.Pattern, error) {
	c := &ast.Crud{Limit: 0}
	var bodySeen bool
	for _, p := range pairs {
		if isEntityKey(p.key) {
			if bodySeen {
				return nil, types.NewError(types.KindParse, "pattern at line %d names more than one entity", line)
			}
			bodySeen = true
			c.FQName = strings.TrimSuffix(p.key, "?")
			c.QueryAll = strings.HasSuffix(p.key, "?")
			if err := d.crudBody(c, p.value); err != nil {
				return nil, err
			}
			continue
		}
		if err := d.crudHint(c, p); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// crudBody splits the attribute mapping into plain entries, query entries
// (`attr?`, `attr?<op>`), and nested relationship patterns (capitalized
// keys with a map or list value).
func (d *decoder) crudBody(c *ast.Crud, node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Value == "" {
		return nil
	}
	pairs, err := mappingPairs(node)
	if err != nil {
		return err
	}
	for _, p := range pairs {
		if isEntityKey(p.key) && (p.value.Kind == yaml.MappingNode || p.value.Kind == yaml.SequenceNode) {
			re := ast.RelEntry{Name: p.key}
			if p.value.Kind == yaml.SequenceNode {
				re.List = true
				for _, item := range p.value.Content {
					pat, err := d.pattern(item)
					if err != nil {
						return err
					}
					re.Items = append(re.Items, pat)
				}
			} else {
				pat, err := d.pattern(p.value)
				if err != nil {
					return err
				}
				re.Items = []ast.Pattern{pat}
			}
			c.Rels = append(c.Rels, re)
			continue
		}
		entry, err := d.attrEntry(p)
		if err != nil {
			return err
		}
		c.Entries = append(c.Entries, entry)
	}
	return nil
}

func (d *decoder) attrEntry(p kv) (ast.AttrEntry, error) {
	name := p.key
	var entry ast.AttrEntry
	if i := strings.Index(name, "?"); i >= 0 {
		opStr := name[i+1:]
		op, ok := ast.ParseOp(opStr)
		if !ok {
			return entry, types.NewError(types.KindParse, "unknown query operator %q on %s", opStr, name)
		}
		entry.Name = name[:i]
		entry.Query = true
		entry.Op = op
	} else {
		entry.Name = name
		entry.Op = ast.OpEq
	}
	if p.value.Kind == yaml.ScalarNode && p.value.Tag == "!!null" {
		return entry, nil
	}
	v, err := d.pattern(p.value)
	if err != nil {
		return entry, err
	}
	entry.Value = v
	return entry, nil
}

func (d *decoder) crudHint(c *ast.Crud, p kv) error {
	if kind, ok := joinKeys[p.key]; ok {
		return d.joins(c, kind, p.value)
	}
	switch p.key {
	case "upsert":
		c.Upsert = p.value.Value == "true"
	case "from":
		from, err := d.pattern(p.value)
		if err != nil {
			return err
		}
		c.From = from
	case "into":
		return d.into(c, p.value)
	case "where":
		return d.where(c, p.value)
	case "group_by":
		return decodeStrings(p.value, &c.GroupBy)
	case "order_by":
		return decodeStrings(p.value, &c.OrderBy)
	case "desc":
		c.Desc = p.value.Value == "true"
	case "distinct":
		c.Distinct = p.value.Value == "true"
	case "limit":
		n, err := strconv.Atoi(p.value.Value)
		if err != nil {
			return types.WrapError(types.KindParse, err, "limit at line %d", p.value.Line)
		}
		c.Limit = n
	default:
		return types.NewError(types.KindParse, "unknown pattern key %q at line %d", p.key, p.value.Line)
	}
	return nil
}

// joins decodes join clauses:
//
//	join:
//	  - {entity: Expense, on: [dept, Dept.id]}
func (d *decoder) joins(c *ast.Crud, kind ast.JoinKind, node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return types.NewError(types.KindParse, "join must be a list at line %d", node.Line)
	}
	for _, item := range node.Content {
		pairs, err := mappingPairs(item)
		if err != nil {
			return err
		}
		jc := ast.JoinClause{Kind: kind}
		for _, p := range pairs {
			switch p.key {
			case "entity":
				jc.Target = p.value.Value
			case "on":
				if p.value.Kind != yaml.SequenceNode || len(p.value.Content) != 2 {
					return types.NewError(types.KindParse, "join on must be [attr, Entity.attr] at line %d", p.value.Line)
				}
				jc.Attr = p.value.Content[0].Value
				jc.Ref = p.value.Content[1].Value
			default:
				return types.NewError(types.KindParse, "unknown join key %q at line %d", p.key, p.value.Line)
			}
		}
		if jc.Target == "" || jc.Attr == "" || jc.Ref == "" {
			return types.NewError(types.KindParse, "join clause at line %d is incomplete", item.Line)
		}
		c.Joins = append(c.Joins, jc)
	}
	return nil
}

// into decodes the projection:
//
//	into: {total: {sum: Expense.amount}, name: Dept.name}
func (d *decoder) into(c *ast.Crud, node *yaml.Node) error {
	pairs, err := mappingPairs(node)
	if err != nil {
		return err
	}
	for _, p := range pairs {
		entry := ast.IntoEntry{Alias: p.key}
		switch p.value.Kind {
		case yaml.ScalarNode:
			entry.Ref = p.value.Value
		case yaml.MappingNode:
			inner, err := mappingPairs(p.value)
			if err != nil {
				return err
			}
			if len(inner) != 1 {
				return types.NewError(types.KindParse, "into %s needs exactly one aggregate at line %d", p.key, p.value.Line)
			}
			entry.Agg = inner[0].key
			entry.Ref = inner[0].value.Value
		default:
			return types.NewError(types.KindParse, "into %s has an invalid form at line %d", p.key, p.value.Line)
		}
		c.Into = append(c.Into, entry)
	}
	return nil
}

// where decodes filter triples:
//
//	where: [[Expense.year, "=", 2024]]
func (d *decoder) where(c *ast.Crud, node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return types.NewError(types.KindParse, "where must be a list at line %d", node.Line)
	}
	for _, item := range node.Content {
		if item.Kind != yaml.SequenceNode || len(item.Content) != 3 {
			return types.NewError(types.KindParse, "where clause must be [ref, op, value] at line %d", item.Line)
		}
		op, ok := ast.ParseOp(item.Content[1].Value)
		if !ok {
			return types.NewError(types.KindParse, "unknown where operator %q at line %d", item.Content[1].Value, item.Line)
		}
		v, err := d.pattern(item.Content[2])
		if err != nil {
			return err
		}
		c.Where = append(c.Where, ast.WhereEntry{
			Ref:   item.Content[0].Value,
			Op:    op,
			Value: v,
		})
	}
	return nil
}

func decodeStrings(node *yaml.Node, out *[]string) error {
	if node.Kind != yaml.SequenceNode {
		return types.NewError(types.KindParse, "expected a string list at line %d", node.Line)
	}
	for _, item := range node.Content {
		*out = append(*out, item.Value)
	}
	return nil
}
