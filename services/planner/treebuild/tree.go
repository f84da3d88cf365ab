// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package treebuild

import (
	"github.com/AleutianAI/treeplanner/services/planner/graph"
)

// StatTotal separates flat and percent contributions of one stat type.
type StatTotal struct {
	Flat    float64
	Percent float64
}

// Tree is a lightweight node/edge view with its own path and stat helpers,
// for callers working from synthesized connections without a full
// allocation store.
type Tree struct {
	nodes map[string]graph.Node
	adj   map[string][]string
}

// NewTree indexes nodes and connections. Connections naming unknown nodes
// are ignored.
func NewTree(nodes []graph.Node, conns []graph.Connection) *Tree {
	t := &Tree{
		nodes: make(map[string]graph.Node, len(nodes)),
		adj:   make(map[string][]string, len(nodes)),
	}
	for _, n := range nodes {
		t.nodes[n.ID] = n
	}
	for _, c := range conns {
		if _, ok := t.nodes[c.From]; !ok {
			continue
		}
		if _, ok := t.nodes[c.To]; !ok {
			continue
		}
		t.adj[c.From] = append(t.adj[c.From], c.To)
		t.adj[c.To] = append(t.adj[c.To], c.From)
	}
	return t
}

// Path returns the shortest path from one node to another, both ends
// included, or nil when they are not connected.
func (t *Tree) Path(from, to string) []string {
	if _, ok := t.nodes[from]; !ok {
		return nil
	}
	if _, ok := t.nodes[to]; !ok {
		return nil
	}
	if from == to {
		return []string{from}
	}

	prev := map[string]string{from: from}
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range t.adj[cur] {
			if _, seen := prev[next]; seen {
				continue
			}
			prev[next] = cur
			if next == to {
				return unwind(prev, from, to)
			}
			queue = append(queue, next)
		}
	}
	return nil
}

func unwind(prev map[string]string, from, to string) []string {
	var rev []string
	for cur := to; cur != from; cur = prev[cur] {
		rev = append(rev, cur)
	}
	rev = append(rev, from)
	out := make([]string, len(rev))
	for i, id := range rev {
		out[len(rev)-1-i] = id
	}
	return out
}

// Aggregate sums numeric modifiers of the given nodes per stat type,
// keeping flat and percent values apart. Unknown IDs are skipped.
func (t *Tree) Aggregate(ids []string) map[graph.StatType]StatTotal {
	out := make(map[graph.StatType]StatTotal)
	for _, id := range ids {
		n, ok := t.nodes[id]
		if !ok {
			continue
		}
		for _, m := range n.Stats {
			if m.Value.IsText {
				continue
			}
			tot := out[m.Type]
			if m.IsPercent {
				tot.Percent += m.Value.Number
			} else {
				tot.Flat += m.Value.Number
			}
			out[m.Type] = tot
		}
	}
	return out
}
