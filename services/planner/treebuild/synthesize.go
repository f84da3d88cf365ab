// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package treebuild derives a sparse connection set from node coordinates
// for datasets that ship positions but no edges, and turns free-text stat
// lines into typed modifiers once at load time.
package treebuild

import (
	"math"

	"github.com/AleutianAI/treeplanner/services/planner/graph"
)

// Options tunes Synthesize. Distances are in normalised tree space, where
// the longer side of the node extent spans 1.0.
type Options struct {
	// MaxEdge is the longest edge Prim may use to attach a node of the
	// given kind.
	MaxEdge map[graph.NodeKind]float64

	// FallbackRadius bounds the attach step for nodes Prim left out.
	FallbackRadius float64

	// ExtraRadius bounds the extra edges given to hub kinds.
	ExtraRadius float64

	// ExtraDegree is the degree a hub kind is topped up to.
	ExtraDegree map[graph.NodeKind]int
}

// DefaultOptions returns the standard cutoffs.
func DefaultOptions() Options {
	return Options{
		MaxEdge: map[graph.NodeKind]float64{
			graph.KindSmall:      0.06,
			graph.KindMastery:    0.07,
			graph.KindNotable:    0.09,
			graph.KindKeystone:   0.12,
			graph.KindStart:      0.10,
			graph.KindAscendancy: 0.10,
		},
		FallbackRadius: 0.15,
		ExtraRadius:    0.05,
		ExtraDegree: map[graph.NodeKind]int{
			graph.KindNotable:  3,
			graph.KindKeystone: 4,
		},
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxEdge == nil {
		o.MaxEdge = d.MaxEdge
	}
	if o.FallbackRadius <= 0 {
		o.FallbackRadius = d.FallbackRadius
	}
	if o.ExtraRadius <= 0 {
		o.ExtraRadius = d.ExtraRadius
	}
	if o.ExtraDegree == nil {
		o.ExtraDegree = d.ExtraDegree
	}
	return o
}

func (o Options) maxEdge(k graph.NodeKind) float64 {
	if v, ok := o.MaxEdge[k]; ok {
		return v
	}
	return o.MaxEdge[graph.KindSmall]
}

// Synthesize builds connections for nodes.
//
// # Description
//
// Runs in three passes, all deterministic for a given input order:
//
//  1. Prim's algorithm from a seed (the first start node, else the node
//     nearest the centre). A node may only join over an edge no longer than
//     MaxEdge for its kind. Ties go to the earlier node.
//  2. Nodes Prim could not reach attach to their nearest connected node
//     within FallbackRadius, repeated until no node attaches.
//  3. Notable and keystone nodes gain edges to unlinked neighbours within
//     ExtraRadius, nearest first, until their degree reaches ExtraDegree.
//
// Prim uses an O(n²) best-distance array; datasets are a few thousand nodes.
//
// # Outputs
//
//   - []graph.Connection: Edges in the order they were added.
func Synthesize(nodes []graph.Node, opts Options) []graph.Connection {
	if len(nodes) < 2 {
		return nil
	}
	opts = opts.withDefaults()
	pos := normalise(nodes)
	n := len(nodes)

	dist := func(i, j int) float64 {
		return math.Hypot(pos[i][0]-pos[j][0], pos[i][1]-pos[j][1])
	}

	var out []graph.Connection
	linked := make(map[[2]int]struct{})
	degree := make([]int, n)
	connect := func(i, j int) {
		k := [2]int{min(i, j), max(i, j)}
		if _, dup := linked[k]; dup {
			return
		}
		linked[k] = struct{}{}
		degree[i]++
		degree[j]++
		out = append(out, graph.Connection{From: nodes[i].ID, To: nodes[j].ID})
	}

	// Pass 1: Prim.
	inTree := make([]bool, n)
	best := make([]float64, n)
	from := make([]int, n)
	seed := seedIndex(nodes, pos)
	inTree[seed] = true
	for j := range best {
		best[j] = dist(seed, j)
		from[j] = seed
	}
	for {
		pick := -1
		for j := 0; j < n; j++ {
			if inTree[j] || best[j] > opts.maxEdge(nodes[j].Kind) {
				continue
			}
			if pick == -1 || best[j] < best[pick] {
				pick = j
			}
		}
		if pick == -1 {
			break
		}
		inTree[pick] = true
		connect(from[pick], pick)
		for j := 0; j < n; j++ {
			if !inTree[j] {
				if d := dist(pick, j); d < best[j] {
					best[j] = d
					from[j] = pick
				}
			}
		}
	}

	// Pass 2: fallback attach.
	for progress := true; progress; {
		progress = false
		for i := 0; i < n; i++ {
			if inTree[i] {
				continue
			}
			target, bestD := -1, opts.FallbackRadius
			for j := 0; j < n; j++ {
				if !inTree[j] {
					continue
				}
				if d := dist(i, j); d <= bestD && (target == -1 || d < bestD) {
					target, bestD = j, d
				}
			}
			if target >= 0 {
				inTree[i] = true
				connect(target, i)
				progress = true
			}
		}
	}

	// Pass 3: hub top-up.
	for i := 0; i < n; i++ {
		want := opts.ExtraDegree[nodes[i].Kind]
		if want == 0 || degree[i] >= want {
			continue
		}
		for _, j := range nearestWithin(i, n, opts.ExtraRadius, dist) {
			if degree[i] >= want {
				break
			}
			connect(i, j)
		}
	}
	return out
}

// nearestWithin returns indices within r of i, nearest first, ties by index.
func nearestWithin(i, n int, r float64, dist func(int, int) float64) []int {
	type cand struct {
		idx int
		d   float64
	}
	var cands []cand
	for j := 0; j < n; j++ {
		if j == i {
			continue
		}
		if d := dist(i, j); d <= r {
			cands = append(cands, cand{j, d})
		}
	}
	// Insertion sort keeps equal distances in index order.
	for a := 1; a < len(cands); a++ {
		for b := a; b > 0 && cands[b].d < cands[b-1].d; b-- {
			cands[b], cands[b-1] = cands[b-1], cands[b]
		}
	}
	out := make([]int, len(cands))
	for k, c := range cands {
		out[k] = c.idx
	}
	return out
}

func seedIndex(nodes []graph.Node, pos [][2]float64) int {
	for i, n := range nodes {
		if n.Kind == graph.KindStart {
			return i
		}
	}
	seed, bestD := 0, math.Inf(1)
	for i, p := range pos {
		if d := math.Hypot(p[0]-0.5, p[1]-0.5); d < bestD {
			seed, bestD = i, d
		}
	}
	return seed
}

// normalise maps positions into [0,1] by the longer side of their extent.
// Inputs already inside the unit square are returned unchanged.
func normalise(nodes []graph.Node) [][2]float64 {
	pos := make([][2]float64, len(nodes))
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for i, n := range nodes {
		pos[i] = [2]float64{n.X, n.Y}
		minX, maxX = math.Min(minX, n.X), math.Max(maxX, n.X)
		minY, maxY = math.Min(minY, n.Y), math.Max(maxY, n.Y)
	}
	if minX >= 0 && minY >= 0 && maxX <= 1 && maxY <= 1 {
		return pos
	}
	span := math.Max(maxX-minX, maxY-minY)
	if span == 0 {
		span = 1
	}
	for i := range pos {
		pos[i][0] = (pos[i][0] - minX) / span
		pos[i][1] = (pos[i][1] - minY) / span
	}
	return pos
}

// Complete fills in connections for a dataset that declares none. Datasets
// that already have edges are returned unchanged.
func Complete(ds graph.Dataset, opts Options) graph.Dataset {
	if ds.HasConnections() {
		return ds
	}
	ds.Connections = Synthesize(ds.Nodes, opts)
	return ds
}
