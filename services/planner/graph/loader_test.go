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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chainDataset() Dataset {
	return Dataset{
		Version: "1.0",
		Classes: []ClassInfo{{ID: "warrior", Name: "Warrior", StartNodeID: "root"}},
		Nodes: []Node{
			{ID: "root", Name: "Warrior Start", Kind: KindStart, IsRoot: true, ClassRequirement: "warrior"},
			{ID: "a", Name: "Might", Kind: KindSmall, X: 10, ConnectedTo: []string{"root"}},
			{ID: "b", Name: "Brawn", Kind: KindSmall, X: 20},
			{ID: "c", Name: "Juggernaut", Kind: KindNotable, X: 30, PointCost: 2},
		},
		Connections: []Connection{
			{From: "root", To: "a"},
			{From: "b", To: "a"},
			{From: "a", To: "b"}, // duplicate, reversed
			{From: "b", To: "c"},
		},
	}
}

func TestLoad_BuildsGraph(t *testing.T) {
	g, err := Load(context.Background(), chainDataset())
	require.NoError(t, err)

	assert.Equal(t, "1.0", g.Version())
	assert.Equal(t, 4, g.Len())
	assert.Len(t, g.Connections(), 3, "duplicate pairs must collapse")
	assert.Equal(t, []string{"a"}, g.Neighbors("root"))
	assert.ElementsMatch(t, []string{"root", "b"}, g.Neighbors("a"))

	c, ok := g.Node("c")
	require.True(t, ok)
	assert.Equal(t, 2, c.PointCost)

	a, _ := g.Node("a")
	assert.Equal(t, DefaultPointCost, a.PointCost)

	ids := make([]string, 0, g.Len())
	for _, n := range g.Nodes() {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"root", "a", "b", "c"}, ids, "dataset order preserved")

	b := g.Bounds()
	assert.Equal(t, 0.0, b.MinX)
	assert.Equal(t, 30.0, b.MaxX)
}

func TestLoad_RootForClass(t *testing.T) {
	t.Run("declared start node", func(t *testing.T) {
		g, err := Load(context.Background(), chainDataset())
		require.NoError(t, err)
		root, ok := g.RootForClass("warrior")
		require.True(t, ok)
		assert.Equal(t, "root", root.ID)
	})

	t.Run("flagged root without class table", func(t *testing.T) {
		ds := chainDataset()
		ds.Classes = nil
		g, err := Load(context.Background(), ds)
		require.NoError(t, err)
		root, ok := g.RootForClass("warrior")
		require.True(t, ok)
		assert.Equal(t, "root", root.ID)
	})

	t.Run("unknown class", func(t *testing.T) {
		g, err := Load(context.Background(), chainDataset())
		require.NoError(t, err)
		_, ok := g.RootForClass("mage")
		assert.False(t, ok)
	})
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Dataset)
		reason string
	}{
		{"missing id", func(d *Dataset) { d.Nodes[1].ID = "" }, "validation"},
		{"missing name", func(d *Dataset) { d.Nodes[1].Name = "" }, "validation"},
		{"bad kind", func(d *Dataset) { d.Nodes[1].Kind = "legendary" }, "validation"},
		{"no nodes", func(d *Dataset) { d.Nodes = nil }, "validation"},
		{"duplicate node", func(d *Dataset) { d.Nodes[2].ID = "a" }, "duplicate node"},
		{"negative cost", func(d *Dataset) { d.Nodes[1].PointCost = -1 }, "point cost"},
		{"dangling connection", func(d *Dataset) { d.Connections[0].To = "ghost" }, "dangling connection"},
		{"dangling connectedTo", func(d *Dataset) { d.Nodes[1].ConnectedTo = []string{"ghost"} }, "dangling connection"},
		{"unknown class start", func(d *Dataset) { d.Classes[0].StartNodeID = "ghost" }, "class start"},
		{"non-root class start", func(d *Dataset) { d.Classes[0].StartNodeID = "a" }, "class start"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := chainDataset()
			tt.mutate(&ds)

			g, err := Load(context.Background(), ds)
			require.Error(t, err)
			assert.Nil(t, g)
			assert.True(t, errors.Is(err, ErrMalformedDataset))

			var le *LoadError
			require.ErrorAs(t, err, &le)
			assert.Equal(t, tt.reason, le.Reason)
		})
	}
}

func TestLoad_DropsSelfLoops(t *testing.T) {
	ds := chainDataset()
	ds.Connections = append(ds.Connections, Connection{From: "c", To: "c"})
	g, err := Load(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, g.Neighbors("c"))
}

func TestDecode(t *testing.T) {
	data := []byte(`{
		"version": "2",
		"nodes": [
			{"id": "n1", "name": "Start", "kind": "start", "isRoot": true,
			 "stats": [{"type": "life", "name": "Maximum Life", "value": 10},
			           {"type": "other", "name": "Keystone", "value": "Cannot Evade"}]}
		],
		"connections": []
	}`)

	ds, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, ds.Nodes, 1)
	stats := ds.Nodes[0].Stats
	require.Len(t, stats, 2)
	assert.Equal(t, Num(10), stats[0].Value)
	assert.Equal(t, Text("Cannot Evade"), stats[1].Value)
	assert.False(t, ds.HasConnections())

	_, err = Decode([]byte(`{not json`))
	assert.ErrorIs(t, err, ErrMalformedDataset)
}

func TestStatValue_JSON(t *testing.T) {
	b, err := Num(1.5).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "1.5", string(b))

	b, err = Text("x").MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"x"`, string(b))

	var v StatValue
	assert.Error(t, v.UnmarshalJSON([]byte(`true`)))
	assert.Equal(t, "12", Num(12).String())
}
