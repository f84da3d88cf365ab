// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pathfind

import (
	"github.com/AleutianAI/treeplanner/services/planner/graph"
)

// Finder runs path queries against one graph.
//
// # Thread Safety
//
// Finder holds no mutable state after construction and is safe for
// concurrent use.
type Finder struct {
	nodes map[string]graph.Node
	adj   Adjacency
}

// NewFinder creates a Finder over the given nodes and adjacency.
func NewFinder(nodes map[string]graph.Node, adj Adjacency) *Finder {
	return &Finder{nodes: nodes, adj: adj}
}

// FromGraph creates a Finder using the graph's own adjacency.
func FromGraph(g *graph.Graph) *Finder {
	return NewFinder(g.NodeMap(), BuildAdjacency(g.Connections()))
}

// ShortestPath finds the cheapest (fewest edges) set of nodes to allocate so
// that targetID joins the allocated set.
//
// # Description
//
// A root target is directly allocatable and yields [targetID]. A target that
// is already allocated yields an empty path. Otherwise BFS runs outward from
// the target and stops at the first discovered allocated node; the path
// excludes that anchor. Among equal-length paths the first one found under
// adjacency insertion order wins.
//
// # Outputs
//
//   - []string: Nodes to allocate, anchor side first, target last.
//   - bool: False when the target is unknown or no allocated node is
//     reachable from it.
func (f *Finder) ShortestPath(targetID string, allocated Set) ([]string, bool) {
	n, ok := f.nodes[targetID]
	if !ok {
		return nil, false
	}
	if allocated.Has(targetID) {
		return []string{}, true
	}
	if n.IsRoot {
		return []string{targetID}, true
	}
	return f.ConnectingPath(targetID, allocated)
}

// ConnectingPath is ShortestPath without the root shortcut: even a root
// target must reach an allocated node through the graph.
func (f *Finder) ConnectingPath(targetID string, allocated Set) ([]string, bool) {
	if _, ok := f.nodes[targetID]; !ok {
		return nil, false
	}
	if allocated.Has(targetID) {
		return []string{}, true
	}
	if len(allocated) == 0 {
		return nil, false
	}

	parent := map[string]string{targetID: ""}
	queue := []string{targetID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, next := range f.adj[current] {
			if _, visited := parent[next]; visited {
				continue
			}
			if allocated.Has(next) {
				// Walk back from current to the target.
				path := []string{current}
				for p := parent[current]; p != ""; p = parent[p] {
					path = append(path, p)
				}
				return path, true
			}
			parent[next] = current
			queue = append(queue, next)
		}
	}
	return nil, false
}

// CanRemove reports whether nodeID can leave the allocated set.
//
// # Description
//
// Roots can never be removed. Otherwise the node is dropped from a copy of
// the allocated set and BFS runs from every remaining allocated root,
// travelling only through remaining allocated nodes. Removal is safe only if
// that search reaches every remaining allocated node.
func (f *Finder) CanRemove(nodeID string, allocated Set) bool {
	n, ok := f.nodes[nodeID]
	if !ok || n.IsRoot {
		return false
	}
	return f.Connected(allocated, nodeID)
}

// Connected reports whether every node in allocated (minus the optional
// excluded ID) is reachable from a root inside the allocated set. An empty
// remainder is trivially connected; a non-empty remainder without any root
// is not.
func (f *Finder) Connected(allocated Set, excluded string) bool {
	remaining := len(allocated)
	if excluded != "" && allocated.Has(excluded) {
		remaining--
	}
	if remaining == 0 {
		return true
	}
	return len(f.reachable(allocated, excluded)) == remaining
}

// Dependents returns the allocated nodes that would be stranded if nodeID
// were removed, in no particular order. It is empty when CanRemove is true.
func (f *Finder) Dependents(nodeID string, allocated Set) []string {
	if !allocated.Has(nodeID) {
		return nil
	}
	visited := f.reachable(allocated, nodeID)
	var out []string
	for id := range allocated {
		if id != nodeID && !visited.Has(id) {
			out = append(out, id)
		}
	}
	return out
}

// reachable runs BFS from every allocated root other than excluded, moving
// only through allocated nodes, and returns the visited set.
func (f *Finder) reachable(allocated Set, excluded string) Set {
	visited := make(Set, len(allocated))
	var queue []string
	for id := range allocated {
		if id == excluded {
			continue
		}
		if n, ok := f.nodes[id]; ok && n.IsRoot {
			visited[id] = struct{}{}
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range f.adj[current] {
			if next == excluded || !allocated.Has(next) || visited.Has(next) {
				continue
			}
			visited[next] = struct{}{}
			queue = append(queue, next)
		}
	}
	return visited
}
