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
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newBuildsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "builds",
		Short: "Manage saved builds",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved builds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, err := a.service(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			builds, err := svc.ListBuilds(ctx)
			if err != nil {
				return err
			}
			for _, b := range builds {
				a.out.Row(b.Name, b.Snapshot.ClassID, strconv.Itoa(b.Snapshot.TotalPoints), b.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}

	var apply bool
	show := &cobra.Command{
		Use:   "show <name>",
		Short: "Show a saved build",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := a.service(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			b, err := svc.LoadBuild(ctx, args[0])
			if err != nil {
				return err
			}
			a.out.Title(b.Name)
			a.out.KeyValue("id", b.ID)
			a.out.KeyValue("class", b.Snapshot.ClassID)
			a.out.KeyValue("points", b.Snapshot.TotalPoints)
			a.out.KeyValue("version", b.Snapshot.Version)
			a.out.KeyValue("nodes", strings.Join(b.Snapshot.AllocatedNodeIDs, ","))
			if !apply {
				return nil
			}

			if _, err := svc.RestoreBuild(ctx, args[0]); err != nil {
				return err
			}
			store, _ := svc.Store()
			printStats(a, store.Stats())
			return nil
		},
	}
	show.Flags().BoolVar(&apply, "stats", false, "restore the build against the loaded tree and show its stat totals")

	del := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a saved build",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := a.service(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			if err := svc.DeleteBuild(ctx, args[0]); err != nil {
				return err
			}
			a.out.Success("deleted " + args[0])
			return nil
		},
	}

	cmd.AddCommand(list, show, del)
	return cmd
}
