// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package spatial answers viewport and nearest-node queries over node
// positions using an R-tree.
//
// Each node is inserted as a square box of side 2*NodeRadius centred on its
// position. The index is immutable once built; a dataset reload builds a
// new one.
package spatial

import (
	"context"
	"math"
	"sort"

	"github.com/tidwall/rtree"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/treeplanner/services/planner/graph"
)

const (
	// DefaultNodeRadius is the half-extent of each node's box.
	DefaultNodeRadius = 20.0

	// DefaultNearestWindow is the half-extent of the candidate window used by
	// FindNearest.
	DefaultNearestWindow = 150.0
)

var tracer = otel.Tracer("planner.spatial")

// BBox is an axis-aligned query box. Min and Max are inclusive.
type BBox struct {
	MinX, MinY, MaxX, MaxY float64
}

// Around returns the box of half-extent r centred on (x, y).
func Around(x, y, r float64) BBox {
	return BBox{MinX: x - r, MinY: y - r, MaxX: x + r, MaxY: y + r}
}

func (b BBox) min() [2]float64 { return [2]float64{b.MinX, b.MinY} }
func (b BBox) max() [2]float64 { return [2]float64{b.MaxX, b.MaxY} }

// Options configures Build.
type Options struct {
	NodeRadius    float64
	NearestWindow float64
}

// Index is a read-only R-tree over nodes.
//
// # Thread Safety
//
// Safe for concurrent reads. The underlying tree is never written after
// Build returns.
type Index struct {
	tree   rtree.RTreeG[graph.Node]
	radius float64
	window float64
}

// Build bulk-inserts every node.
func Build(nodes []graph.Node, opts Options) *Index {
	if opts.NodeRadius <= 0 {
		opts.NodeRadius = DefaultNodeRadius
	}
	if opts.NearestWindow <= 0 {
		opts.NearestWindow = DefaultNearestWindow
	}
	idx := &Index{radius: opts.NodeRadius, window: opts.NearestWindow}
	for _, n := range nodes {
		box := Around(n.X, n.Y, idx.radius)
		idx.tree.Insert(box.min(), box.max(), n)
	}
	return idx
}

// Len returns the number of indexed nodes.
func (idx *Index) Len() int { return idx.tree.Len() }

// QueryViewport returns every node whose box intersects b, in no particular
// order.
func (idx *Index) QueryViewport(b BBox) []graph.Node {
	var out []graph.Node
	idx.tree.Search(b.min(), b.max(), func(_, _ [2]float64, n graph.Node) bool {
		out = append(out, n)
		return true
	})
	return out
}

// QueryViewportContext is QueryViewport inside a trace span.
func (idx *Index) QueryViewportContext(ctx context.Context, b BBox) []graph.Node {
	_, span := tracer.Start(ctx, "spatial.QueryViewport")
	defer span.End()
	out := idx.QueryViewport(b)
	span.SetAttributes(attribute.Int("spatial.results", len(out)))
	return out
}

// Neighbor is a FindNearest result.
type Neighbor struct {
	Node     graph.Node
	Distance float64
}

// FindNearest returns up to k nodes closest to (x, y), nearest first.
//
// # Description
//
// Only nodes whose boxes intersect a window of half-extent NearestWindow
// around the point are considered. If fewer than k nodes fall inside that
// window, fewer than k are returned even when farther nodes exist; this
// trades recall for a bounded search. Candidates are ordered by exact
// Euclidean distance, ties by node ID.
func (idx *Index) FindNearest(x, y float64, k int) []Neighbor {
	if k <= 0 {
		return nil
	}
	var cands []Neighbor
	for _, n := range idx.QueryViewport(Around(x, y, idx.window)) {
		cands = append(cands, Neighbor{Node: n, Distance: math.Hypot(n.X-x, n.Y-y)})
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].Distance != cands[j].Distance {
			return cands[i].Distance < cands[j].Distance
		}
		return cands[i].Node.ID < cands[j].Node.ID
	})
	if len(cands) > k {
		cands = cands[:k]
	}
	return cands
}
