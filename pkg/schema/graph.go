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
package schema

// Edge connects two entities in a module's relationship graph.
type Edge struct {
	From string // fully-qualified entity name
	To   string
	Rel  *Relationship

	// InverseOwner names the side carrying the scalar inverse alias for
	// one-to-one relationships; empty otherwise.
	InverseOwner string
}

// Graph is the directed relationship graph of one module: nodes are
// fully-qualified entity names, edges are typed by the connecting
// relationship. Contains edges form a forest by construction.
type Graph struct {
	Module string
	edges  []Edge
	out    map[string][]Edge
	in     map[string][]Edge
}

func buildGraph(m *Module) *Graph {
	g := &Graph{
		Module: m.Name,
		out:    make(map[string][]Edge),
		in:     make(map[string][]Edge),
	}
	for _, rel := range m.Relationships {
		e := Edge{From: rel.From, To: rel.To, Rel: rel}
		if rel.Kind == Between && rel.Card == OneOne {
			e.InverseOwner = rel.From
		}
		g.edges = append(g.edges, e)
		g.out[rel.From] = append(g.out[rel.From], e)
		g.in[rel.To] = append(g.in[rel.To], e)
	}
	return g
}

// Edges returns every edge in the graph.
func (g *Graph) Edges() []Edge { return g.edges }

// OutEdges returns edges leaving the entity.
func (g *Graph) OutEdges(entityFQ string) []Edge { return g.out[entityFQ] }

// InEdges returns edges arriving at the entity.
func (g *Graph) InEdges(entityFQ string) []Edge { return g.in[entityFQ] }

// ContainsChildren returns the contains edges whose parent is the entity,
// the basis for cascade deletes and path construction.
func (g *Graph) ContainsChildren(entityFQ string) []Edge {
	var out []Edge
	for _, e := range g.out[entityFQ] {
		if e.Rel.Kind == Contains {
			out = append(out, e)
		}
	}
	return out
}

// ContainsParent returns the contains edge whose child is the entity, if
// any. Containment is a forest, so there is at most one.
func (g *Graph) ContainsParent(entityFQ string) (Edge, bool) {
	for _, e := range g.in[entityFQ] {
		if e.Rel.Kind == Contains {
			return e, true
		}
	}
	return Edge{}, false
}

// BetweenEdges returns the association edges touching the entity, on either
// side. Used by join planning.
func (g *Graph) BetweenEdges(entityFQ string) []Edge {
	var out []Edge
	for _, e := range g.out[entityFQ] {
		if e.Rel.Kind == Between {
			out = append(out, e)
		}
	}
	for _, e := range g.in[entityFQ] {
		if e.Rel.Kind == Between {
			out = append(out, e)
		}
	}
	return out
}
