// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/treeplanner/services/planner/graph"
	"github.com/AleutianAI/treeplanner/services/planner/treebuild"
)

// rawTree is the input of synthesize: positioned nodes with free-text stats
// and no edges.
type rawTree struct {
	Version string              `json:"version"`
	Classes []graph.ClassInfo   `json:"classes"`
	Nodes   []treebuild.RawNode `json:"nodes"`
}

func newSynthesizeCmd(a *app) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "synthesize <raw.json>",
		Short: "Build a connected dataset from position-only nodes",
		Long: `synthesize reads {version, classes, nodes} where every node has a
position, a kind and free-text stat lines, parses the stats, links the nodes
into a tree and writes a dataset the loader accepts.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var raw rawTree
			if err := json.Unmarshal(data, &raw); err != nil {
				return fmt.Errorf("decode %s: %w", args[0], err)
			}

			nodes := treebuild.FromRaw(raw.Nodes)
			ds := graph.Dataset{
				Version:     raw.Version,
				Classes:     raw.Classes,
				Nodes:       nodes,
				Connections: treebuild.Synthesize(nodes, treebuild.DefaultOptions()),
			}
			g, err := graph.Load(cmd.Context(), ds)
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			enc := json.NewEncoder(&buf)
			enc.SetIndent("", "  ")
			if err := enc.Encode(ds); err != nil {
				return err
			}
			if outPath == "" {
				_, err = cmd.OutOrStdout().Write(buf.Bytes())
				return err
			}
			if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
				return err
			}
			a.out.Success(fmt.Sprintf("wrote %s: %d nodes, %d connections", outPath, g.Len(), len(g.Connections())))
			summarize(a, g, treebuild.NewTree(ds.Nodes, g.Connections()))
			return nil
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "", "write the dataset here instead of stdout")
	return cmd
}

// summarize reports, per class, how many nodes its start node reaches and
// the flat/percent stat totals of the whole tree.
func summarize(a *app, g *graph.Graph, tree *treebuild.Tree) {
	nodes := g.Nodes()
	for _, c := range g.Classes() {
		root, ok := g.RootForClass(c.ID)
		if !ok {
			a.out.Warning(fmt.Sprintf("class %s has no start node", c.ID))
			continue
		}
		reached := 0
		for _, n := range nodes {
			if tree.Path(root.ID, n.ID) != nil {
				reached++
			}
		}
		a.out.Row("reachable", c.ID, fmt.Sprintf("%d/%d", reached, len(nodes)))
		if reached < len(nodes) {
			a.out.Warning(fmt.Sprintf("%d nodes unreachable from %s", len(nodes)-reached, root.ID))
		}
	}

	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	totals := tree.Aggregate(ids)
	keys := make([]graph.StatType, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	if len(keys) > 0 {
		a.out.Title("Stat totals")
	}
	for _, k := range keys {
		tot := totals[k]
		a.out.Row(string(k),
			strconv.FormatFloat(tot.Flat, 'f', -1, 64),
			strconv.FormatFloat(tot.Percent, 'f', -1, 64)+"%")
	}
}
