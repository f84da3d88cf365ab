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
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/treeplanner/services/planner/allocation"
	"github.com/AleutianAI/treeplanner/services/planner/graph"
	"github.com/AleutianAI/treeplanner/services/planner/spatial"
)

func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Show the loaded dataset, its classes and node counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			st := svc.Status()
			g, _ := svc.Graph()
			a.out.Title("Skill tree")
			a.out.KeyValue("source", st.Source)
			a.out.KeyValue("version", st.Version)
			a.out.KeyValue("nodes", st.Nodes)
			a.out.KeyValue("connections", len(g.Connections()))
			a.out.KeyValue("synthesized", st.Synthesized)
			b := g.Bounds()
			a.out.KeyValue("bounds", fmt.Sprintf("%g,%g %g,%g", b.MinX, b.MinY, b.MaxX, b.MaxY))

			kinds := make(map[graph.NodeKind]int)
			for _, n := range g.Nodes() {
				kinds[n.Kind]++
			}
			a.out.Title("Kinds")
			for _, k := range []graph.NodeKind{graph.KindStart, graph.KindSmall, graph.KindNotable, graph.KindKeystone, graph.KindMastery, graph.KindAscendancy} {
				if kinds[k] > 0 {
					a.out.KeyValue(string(k), kinds[k])
				}
			}

			a.out.Title("Classes")
			for _, c := range g.Classes() {
				root := "-"
				if n, ok := g.RootForClass(c.ID); ok {
					root = n.ID
				}
				a.out.Row(c.ID, c.Name, root)
			}
			return nil
		},
	}
}

func newPathCmd(a *app) *cobra.Command {
	var class string
	cmd := &cobra.Command{
		Use:   "path <node-id>",
		Short: "Show the nodes a class must take to reach a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			store, err := svc.Store()
			if err != nil {
				return err
			}
			if err := store.SelectClass(class); err != nil {
				return err
			}
			path, cost, err := store.PlanContext(cmd.Context(), args[0])
			if err != nil {
				return describeRejection(err)
			}
			a.out.Path(path)
			a.out.KeyValue("cost", cost)
			a.out.KeyValue("remaining", store.MaxPoints()-store.TotalPoints()-cost)
			return nil
		},
	}
	cmd.Flags().StringVar(&class, "class", "", "class whose start node anchors the path")
	_ = cmd.MarkFlagRequired("class")
	return cmd
}

func newPlanCmd(a *app) *cobra.Command {
	var (
		class string
		save  string
	)
	cmd := &cobra.Command{
		Use:   "plan <node-id>...",
		Short: "Allocate nodes in order and show the resulting build",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := a.service(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			store, err := svc.Store()
			if err != nil {
				return err
			}
			if err := store.SelectClass(class); err != nil {
				return err
			}

			rejected := 0
			for _, id := range args {
				path, err := store.Allocate(id)
				if err != nil {
					rejected++
					a.out.Warning(describeRejection(err).Error())
					continue
				}
				if len(path) > 0 {
					a.out.Success(fmt.Sprintf("%s (+%d)", id, len(path)))
				}
			}

			a.out.Title("Build")
			a.out.KeyValue("class", store.SelectedClass())
			a.out.KeyValue("points", a.out.ProgressBar(store.TotalPoints(), store.MaxPoints(), 30))
			a.out.KeyValue("nodes", strings.Join(store.AllocatedIDs(), ","))
			printStats(a, store.Stats())

			if save != "" {
				b, err := svc.SaveBuild(ctx, save)
				if err != nil {
					return err
				}
				a.out.Success("saved " + b.Name)
			}
			if rejected > 0 {
				return fmt.Errorf("%d of %d nodes rejected", rejected, len(args))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&class, "class", "", "class to plan for")
	cmd.Flags().StringVar(&save, "save", "", "save the resulting build under this name")
	_ = cmd.MarkFlagRequired("class")
	return cmd
}

func printStats(a *app, stats map[graph.StatType]float64) {
	if len(stats) == 0 {
		return
	}
	keys := make([]graph.StatType, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	a.out.Title("Stats")
	for _, k := range keys {
		a.out.KeyValue(string(k), strconv.FormatFloat(stats[k], 'f', -1, 64))
	}
}

// describeRejection turns a RejectedError into a one-line message.
func describeRejection(err error) error {
	var rej *allocation.RejectedError
	if !errors.As(err, &rej) {
		return err
	}
	switch rej.Reason {
	case allocation.ReasonBudgetExceeded:
		return fmt.Errorf("%s: needs %d points, %d left", rej.NodeID, rej.Cost, rej.Available)
	case allocation.ReasonHasDependents:
		return fmt.Errorf("%s: still required by %s", rej.NodeID, strings.Join(rej.Dependents, ","))
	default:
		return err
	}
}

func newSearchCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>...",
		Short: "Find nodes by name, description or stat",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := a.service(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			results, err := svc.Search(ctx, strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			for _, r := range results {
				a.out.Row(strconv.Itoa(r.Score), r.Node.ID, r.Node.Name)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "k", 0, "maximum results (default from config)")
	return cmd
}

func newNearestCmd(a *app) *cobra.Command {
	var k int
	cmd := &cobra.Command{
		Use:   "nearest <x> <y>",
		Short: "List the nodes closest to a point",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			coords, err := parseFloats(args)
			if err != nil {
				return err
			}
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			near, err := svc.FindNearest(coords[0], coords[1], k)
			if err != nil {
				return err
			}
			for _, n := range near {
				a.out.Row(n.Node.ID, strconv.FormatFloat(n.Distance, 'f', 2, 64))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&k, "count", "k", 5, "number of nodes")
	return cmd
}

func newViewportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "viewport <min-x> <min-y> <max-x> <max-y>",
		Short: "List the nodes visible in a rectangle",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseFloats(args)
			if err != nil {
				return err
			}
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			nodes, err := svc.QueryViewport(cmd.Context(), spatial.BBox{MinX: v[0], MinY: v[1], MaxX: v[2], MaxY: v[3]})
			if err != nil {
				return err
			}
			slices.SortFunc(nodes, func(x, y graph.Node) int { return strings.Compare(x.ID, y.ID) })
			for _, n := range nodes {
				a.out.Row(n.ID, string(n.Kind), n.Name)
			}
			return nil
		},
	}
}

func parseFloats(args []string) ([]float64, error) {
	out := make([]float64, len(args))
	for i, s := range args {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", s)
		}
		out[i] = f
	}
	return out, nil
}
