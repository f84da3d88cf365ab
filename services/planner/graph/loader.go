// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var datasetValidate = validator.New()

// Load validates a decoded dataset and builds the immutable Graph.
//
// # Description
//
// Runs struct-tag validation, then the cross-reference checks that tags
// cannot express: duplicate node IDs, connections and connectedTo entries
// naming unknown nodes, class start nodes that are missing or not roots, and
// negative point costs. Node connectedTo lists are merged into the
// connection set; duplicate unordered pairs and self-loops are dropped. A
// zero pointCost becomes DefaultPointCost.
//
// # Inputs
//
//   - ctx: Context for tracing.
//   - ds: The decoded dataset.
//
// # Outputs
//
//   - *Graph: The read-only graph.
//   - error: A *LoadError when the dataset is malformed.
func Load(ctx context.Context, ds Dataset) (*Graph, error) {
	ctx, span := tracer.Start(ctx, "graph.Load")
	defer span.End()
	start := time.Now()

	g, err := build(ds)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordLoadMetrics(ctx, time.Since(start), 0, 0, false)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("dataset.version", g.version),
		attribute.Int("graph.nodes", len(g.order)),
		attribute.Int("graph.connections", len(g.connections)),
	)
	recordLoadMetrics(ctx, time.Since(start), len(g.order), len(g.connections), true)
	return g, nil
}

func build(ds Dataset) (*Graph, error) {
	if err := datasetValidate.Struct(ds); err != nil {
		return nil, &LoadError{Reason: "validation", Err: err}
	}

	g := &Graph{
		version:   ds.Version,
		nodes:     make(map[string]Node, len(ds.Nodes)),
		order:     make([]string, 0, len(ds.Nodes)),
		adjacency: make(map[string][]string, len(ds.Nodes)),
		classByID: make(map[string]ClassInfo, len(ds.Classes)),
	}

	for _, n := range ds.Nodes {
		if _, dup := g.nodes[n.ID]; dup {
			return nil, loadErrorf("duplicate node", "node %q declared twice", n.ID)
		}
		switch {
		case n.PointCost < 0:
			return nil, loadErrorf("point cost", "node %q has negative point cost %d", n.ID, n.PointCost)
		case n.PointCost == 0:
			n.PointCost = DefaultPointCost
		}
		g.nodes[n.ID] = n
		g.order = append(g.order, n.ID)
	}

	seen := make(map[[2]string]struct{}, len(ds.Connections))
	addConnection := func(c Connection) error {
		if !g.Has(c.From) || !g.Has(c.To) {
			return loadErrorf("dangling connection", "connection %s-%s references unknown node", c.From, c.To)
		}
		if c.From == c.To {
			return nil
		}
		k := c.key()
		if _, dup := seen[k]; dup {
			return nil
		}
		seen[k] = struct{}{}
		g.connections = append(g.connections, c)
		g.adjacency[c.From] = append(g.adjacency[c.From], c.To)
		g.adjacency[c.To] = append(g.adjacency[c.To], c.From)
		return nil
	}
	for _, c := range ds.Connections {
		if err := addConnection(c); err != nil {
			return nil, err
		}
	}
	for _, id := range g.order {
		for _, other := range g.nodes[id].ConnectedTo {
			if err := addConnection(Connection{From: id, To: other}); err != nil {
				return nil, err
			}
		}
	}

	for _, c := range ds.Classes {
		if _, dup := g.classByID[c.ID]; dup {
			return nil, loadErrorf("duplicate class", "class %q declared twice", c.ID)
		}
		if c.StartNodeID != "" {
			start, ok := g.nodes[c.StartNodeID]
			if !ok {
				return nil, loadErrorf("class start", "class %q starts at unknown node %q", c.ID, c.StartNodeID)
			}
			if !start.IsRoot {
				return nil, loadErrorf("class start", "class %q starts at non-root node %q", c.ID, c.StartNodeID)
			}
		}
		g.classByID[c.ID] = c
		g.classes = append(g.classes, c)
	}

	if ds.Bounds != nil {
		g.bounds = *ds.Bounds
	} else {
		g.bounds = computeBounds(ds.Nodes)
	}
	return g, nil
}

func computeBounds(nodes []Node) Bounds {
	b := Bounds{
		MinX: math.Inf(1), MinY: math.Inf(1),
		MaxX: math.Inf(-1), MaxY: math.Inf(-1),
	}
	for _, n := range nodes {
		b.MinX = math.Min(b.MinX, n.X)
		b.MinY = math.Min(b.MinY, n.Y)
		b.MaxX = math.Max(b.MaxX, n.X)
		b.MaxY = math.Max(b.MaxY, n.Y)
	}
	return b
}
