// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph holds the skill tree topology: nodes, undirected connections
// and class metadata.
//
// A Graph is built once per dataset load by Load and is read-only afterwards.
// Every other planner component (spatial index, pathfinding, allocation store,
// search) holds a pointer to the same Graph and never mutates it.
//
// # Thread Safety
//
// Graph is immutable after Load and safe for concurrent reads. Node values
// share their Stats and ConnectedTo slices with the Graph; callers MUST NOT
// mutate them.
package graph

// Graph is the loaded, validated skill tree.
type Graph struct {
	version     string
	nodes       map[string]Node
	order       []string
	connections []Connection
	adjacency   map[string][]string
	classes     []ClassInfo
	classByID   map[string]ClassInfo
	bounds      Bounds
}

// Version returns the dataset version string.
func (g *Graph) Version() string { return g.version }

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.order) }

// Node looks up a node by ID.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Has reports whether id names a node in the graph.
func (g *Graph) Has(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Nodes returns every node in dataset order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// NodeMap returns a copy of the ID → Node map.
func (g *Graph) NodeMap() map[string]Node {
	out := make(map[string]Node, len(g.nodes))
	for id, n := range g.nodes {
		out[id] = n
	}
	return out
}

// Connections returns the deduplicated connection list in insertion order.
func (g *Graph) Connections() []Connection {
	return append([]Connection(nil), g.connections...)
}

// Neighbors returns the IDs adjacent to id in insertion order.
func (g *Graph) Neighbors(id string) []string {
	return append([]string(nil), g.adjacency[id]...)
}

// Classes returns the declared classes in dataset order.
func (g *Graph) Classes() []ClassInfo {
	return append([]ClassInfo(nil), g.classes...)
}

// Class looks up a class by ID.
func (g *Graph) Class(id string) (ClassInfo, bool) {
	c, ok := g.classByID[id]
	return c, ok
}

// RootForClass resolves the root node a class starts from.
//
// A declared startNodeId wins; Load guarantees it names a root. Otherwise the first node (dataset order) with
// IsRoot set and a matching ClassRequirement is used, which also covers
// classes that are not listed in the dataset's class table.
func (g *Graph) RootForClass(classID string) (Node, bool) {
	if classID == "" {
		return Node{}, false
	}
	if c, ok := g.classByID[classID]; ok && c.StartNodeID != "" {
		n, ok := g.nodes[c.StartNodeID]
		return n, ok
	}
	for _, id := range g.order {
		n := g.nodes[id]
		if n.IsRoot && n.ClassRequirement == classID {
			return n, true
		}
	}
	return Node{}, false
}

// Bounds returns the declared bounds, or the extent of all node positions
// when the dataset did not declare any.
func (g *Graph) Bounds() Bounds { return g.bounds }
