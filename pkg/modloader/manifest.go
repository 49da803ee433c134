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

// Package modloader reads module manifests: YAML files declaring entities,
// relationships, events, workflows, and agents, with workflow statements in
// pattern-map form. Manifests are validated against an embedded JSON schema
// before decoding.
package modloader

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/agentlang-ai/agentlang/pkg/schema"
	"github.com/agentlang-ai/agentlang/pkg/types"
)

// Manifest mirrors the YAML layout of a module file. Workflow statements
// and expression fields stay as raw nodes; the pattern decoder needs the
// original key order.
type Manifest struct {
	Module        string         `yaml:"module"`
	Records       []RecordSpec   `yaml:"records"`
	Entities      []EntitySpec   `yaml:"entities"`
	Events        []RecordSpec   `yaml:"events"`
	Relationships []RelSpec      `yaml:"relationships"`
	Workflows     []WorkflowSpec `yaml:"workflows"`
	Agents        []AgentSpec    `yaml:"agents"`

	Resolvers map[string]string `yaml:"resolvers"`
	Init      []yaml.Node       `yaml:"init"`
}

// RecordSpec declares a record or event schema.
type RecordSpec struct {
	Name       string     `yaml:"name"`
	Attributes []AttrSpec `yaml:"attributes"`
}

// EntitySpec declares a persistent entity.
type EntitySpec struct {
	Name       string     `yaml:"name"`
	Attributes []AttrSpec `yaml:"attributes"`

	RBAC   []RBACSpec        `yaml:"rbac"`
	Before map[string]string `yaml:"before"`
	After  map[string]string `yaml:"after"`
	Config bool              `yaml:"config"`
	Unique [][]string        `yaml:"unique"`
}

// AttrSpec declares one attribute. Default accepts a literal or one of the
// generator markers "$uuid", "$now", "$auto".
type AttrSpec struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Elem     string `yaml:"elem"`
	ID       bool   `yaml:"id"`
	Unique   bool   `yaml:"unique"`
	Optional bool   `yaml:"optional"`
	Indexed  bool   `yaml:"indexed"`

	// Value nodes, not pointers: yaml.v3 only captures raw nodes into
	// yaml.Node values. An absent field leaves Kind zero.
	Default yaml.Node `yaml:"default"`
	Enum    []any     `yaml:"enum"`
	OneOf   string    `yaml:"one_of"`
	Ref     string    `yaml:"ref"`
	Expr    yaml.Node `yaml:"expr"`
	Comment string    `yaml:"comment"`
}

// RBACSpec declares one access rule.
type RBACSpec struct {
	Roles []string  `yaml:"roles"`
	Allow []string  `yaml:"allow"`
	Where yaml.Node `yaml:"where"`
}

// RelSpec declares a relationship.
type RelSpec struct {
	Name        string     `yaml:"name"`
	Type        string     `yaml:"type"` // contains | between
	From        string     `yaml:"from"`
	To          string     `yaml:"to"`
	Cardinality string     `yaml:"cardinality"`
	Attributes  []AttrSpec `yaml:"attributes"`
}

// WorkflowSpec declares a workflow body.
type WorkflowSpec struct {
	Name       string      `yaml:"name"`
	Statements []yaml.Node `yaml:"statements"`
}

// AgentSpec declares an agent definition.
type AgentSpec struct {
	Name        string            `yaml:"name"`
	Role        string            `yaml:"role"`
	Instruction string            `yaml:"instruction"`
	LLM         string            `yaml:"llm"`
	Tools       []string          `yaml:"tools"`
	Flows       []string          `yaml:"flows"`
	Scenarios   []string          `yaml:"scenarios"`
	Directives  []string          `yaml:"directives"`
	Glossary    map[string]string `yaml:"glossary"`
}

// LoadFile reads, validates, and decodes one module manifest.
func LoadFile(path string) (*schema.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.WrapError(types.KindConfig, err, "read manifest %s", path)
	}
	return Load(data)
}

// Load validates and decodes a module manifest from raw YAML.
func Load(data []byte) (*schema.Module, error) {
	if err := validateManifest(data); err != nil {
		return nil, err
	}
	var mf Manifest
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, types.WrapError(types.KindParse, err, "decode manifest")
	}
	return buildModule(&mf)
}

func buildModule(mf *Manifest) (*schema.Module, error) {
	if mf.Module == "" {
		return nil, types.NewError(types.KindValidation, "manifest has no module name")
	}
	m := schema.NewModule(mf.Module)
	d := &decoder{module: mf.Module}

	for _, rs := range mf.Records {
		attrs, err := d.attributes(rs.Attributes)
		if err != nil {
			return nil, err
		}
		rec, err := schema.NewRecord(mf.Module, rs.Name, attrs)
		if err != nil {
			return nil, err
		}
		if err := m.AddRecord(rec); err != nil {
			return nil, err
		}
	}

	for _, es := range mf.Entities {
		attrs, err := d.attributes(es.Attributes)
		if err != nil {
			return nil, err
		}
		meta := schema.EntityMeta{
			Before:       es.Before,
			After:        es.After,
			Config:       es.Config,
			UniqueTuples: es.Unique,
		}
		for i := range es.RBAC {
			rs := &es.RBAC[i]
			rule := &schema.RBACRule{Roles: rs.Roles, Allow: rs.Allow}
			if rs.Where.Kind != 0 {
				where, err := d.pattern(&rs.Where)
				if err != nil {
					return nil, err
				}
				rule.Where = where
			}
			meta.RBAC = append(meta.RBAC, rule)
		}
		ent, err := schema.NewEntity(mf.Module, es.Name, attrs, meta)
		if err != nil {
			return nil, err
		}
		if err := m.AddEntity(ent); err != nil {
			return nil, err
		}
	}

	for _, es := range mf.Events {
		attrs, err := d.attributes(es.Attributes)
		if err != nil {
			return nil, err
		}
		ev, err := schema.NewEvent(mf.Module, es.Name, attrs)
		if err != nil {
			return nil, err
		}
		if err := m.AddEvent(ev); err != nil {
			return nil, err
		}
	}

	for _, rs := range mf.Relationships {
		rel, err := d.relationship(rs)
		if err != nil {
			return nil, err
		}
		if err := m.AddRelationship(rel); err != nil {
			return nil, err
		}
	}

	for i := range mf.Workflows {
		ws := &mf.Workflows[i]
		stmts, err := d.statements(ws.Statements)
		if err != nil {
			return nil, types.WrapError(types.KindOf(err), err, "workflow %s", ws.Name)
		}
		wf := &schema.Workflow{Name: ws.Name, Module: mf.Module, Statements: stmts}
		if err := m.AddWorkflow(wf); err != nil {
			return nil, err
		}
	}

	for _, as := range mf.Agents {
		ag := &schema.Agent{
			Name:        as.Name,
			Module:      mf.Module,
			Role:        as.Role,
			Instruction: as.Instruction,
			LLM:         as.LLM,
			Tools:       as.Tools,
			Flows:       as.Flows,
			Scenarios:   as.Scenarios,
			Directives:  as.Directives,
			Glossary:    as.Glossary,
		}
		if err := m.AddAgent(ag); err != nil {
			return nil, err
		}
	}

	init, err := d.statements(mf.Init)
	if err != nil {
		return nil, types.WrapError(types.KindOf(err), err, "module init")
	}
	m.Init = init

	for local, rname := range mf.Resolvers {
		m.ResolverBindings[local] = rname
	}
	return m, nil
}

func (d *decoder) relationship(rs RelSpec) (*schema.Relationship, error) {
	rel := &schema.Relationship{
		Name:   rs.Name,
		Module: d.module,
		From:   d.qualify(rs.From),
		To:     d.qualify(rs.To),
	}
	switch rs.Type {
	case "contains":
		rel.Kind = schema.Contains
	case "between", "":
		rel.Kind = schema.Between
	default:
		return nil, types.NewError(types.KindValidation, "relationship %s has unknown type %q", rs.Name, rs.Type)
	}
	switch rs.Cardinality {
	case "":
	case "one_one":
		rel.Card = schema.OneOne
	case "one_many":
		rel.Card = schema.OneMany
	case "many_many":
		rel.Card = schema.ManyMany
	default:
		return nil, types.NewError(types.KindValidation, "relationship %s has unknown cardinality %q", rs.Name, rs.Cardinality)
	}
	attrs, err := d.attributes(rs.Attributes)
	if err != nil {
		return nil, err
	}
	rel.Attrs = attrs
	return rel, nil
}

func (d *decoder) attributes(specs []AttrSpec) ([]*schema.Attribute, error) {
	out := make([]*schema.Attribute, 0, len(specs))
	for _, as := range specs {
		a, err := d.attribute(as)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (d *decoder) attribute(as AttrSpec) (*schema.Attribute, error) {
	t, err := types.ParseAttrType(as.Type)
	if err != nil {
		return nil, types.WrapError(types.KindValidation, err, "attribute %s", as.Name)
	}
	a := &schema.Attribute{
		Name:     as.Name,
		Type:     t,
		ID:       as.ID,
		Unique:   as.Unique,
		Optional: as.Optional,
		Indexed:  as.Indexed,
		Enum:     as.Enum,
		OneOf:    as.OneOf,
		Ref:      as.Ref,
		Comment:  as.Comment,
	}
	if as.Elem != "" {
		et, err := types.ParseAttrType(as.Elem)
		if err != nil {
			return nil, types.WrapError(types.KindValidation, err, "attribute %s element type", as.Name)
		}
		a.ElemType = et
	}
	if as.Default.Kind != 0 {
		var dv any
		if err := as.Default.Decode(&dv); err != nil {
			return nil, types.WrapError(types.KindParse, err, "attribute %s default", as.Name)
		}
		switch dv {
		case "$uuid":
			a.DefaultKind = schema.DefaultUUID
		case "$now":
			a.DefaultKind = schema.DefaultNow
		case "$auto":
			a.DefaultKind = schema.DefaultAutoincrement
		default:
			a.DefaultKind = schema.DefaultLiteral
			a.DefaultValue = types.Normalize(dv)
		}
	}
	if as.Expr.Kind != 0 {
		expr, err := d.pattern(&as.Expr)
		if err != nil {
			return nil, types.WrapError(types.KindOf(err), err, "attribute %s expr", as.Name)
		}
		a.Expr = expr
	}
	return a, nil
}

// qualify prefixes an unqualified entity name with the manifest's module.
func (d *decoder) qualify(name string) string {
	if name == "" {
		return name
	}
	if mod, _ := schema.SplitFQ(name); mod != "" {
		return name
	}
	return schema.JoinFQ(d.module, name)
}
