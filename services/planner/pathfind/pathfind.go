// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pathfind answers the two connectivity questions the allocation
// store asks on every mutation:
//
//   - which unallocated nodes must be taken to reach a target, and
//   - whether removing an allocated node would strand any other allocated node.
//
// Both are breadth-first searches over an undirected adjacency map and run
// in O(V+E).
//
// # Path convention
//
// Returned paths EXCLUDE the already-allocated anchor node and are ordered
// from the anchor side towards the target, with the target last. For the
// chain root→a→b→c with only root allocated, the path to c is [a b c]. Every
// element of a returned path therefore still needs to be paid for.
package pathfind

import (
	"github.com/AleutianAI/treeplanner/services/planner/graph"
)

// Set is a set of node IDs.
type Set map[string]struct{}

// NewSet builds a Set from IDs.
func NewSet(ids ...string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Adjacency maps a node ID to its neighbours in insertion order.
type Adjacency map[string][]string

// BuildAdjacency turns a connection list into a symmetric adjacency map.
// Duplicate unordered pairs are added once.
func BuildAdjacency(connections []graph.Connection) Adjacency {
	adj := make(Adjacency)
	seen := make(map[[2]string]struct{}, len(connections))
	for _, c := range connections {
		if c.From == c.To {
			continue
		}
		k := [2]string{c.From, c.To}
		if c.To < c.From {
			k = [2]string{c.To, c.From}
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		adj[c.From] = append(adj[c.From], c.To)
		adj[c.To] = append(adj[c.To], c.From)
	}
	return adj
}

// FindShortestPath returns the nodes that must be allocated to connect
// targetID to the allocated set.
//
// It builds a fresh adjacency from connections; use a Finder to amortise
// that across calls. See Finder.ShortestPath for the semantics.
func FindShortestPath(targetID string, allocated Set, nodes map[string]graph.Node, connections []graph.Connection) ([]string, bool) {
	return NewFinder(nodes, BuildAdjacency(connections)).ShortestPath(targetID, allocated)
}

// CanDeallocate reports whether nodeID can be removed from allocated without
// disconnecting any other allocated node from a root.
//
// See Finder.CanRemove for the semantics.
func CanDeallocate(nodeID string, allocated Set, nodes map[string]graph.Node, connections []graph.Connection) bool {
	return NewFinder(nodes, BuildAdjacency(connections)).CanRemove(nodeID, allocated)
}
