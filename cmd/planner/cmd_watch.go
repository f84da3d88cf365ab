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
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/treeplanner/services/planner/telemetry"
)

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Load the tree and reload it whenever a file source changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, err := a.service(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			if addr := a.cfg.Telemetry.MetricsAddr; addr != "" {
				go func() {
					if err := telemetry.ServeMetrics(ctx, addr); err != nil {
						slog.Error("metrics server stopped", slog.String("error", err.Error()))
					}
				}()
			}

			st := svc.Status()
			a.out.Success("loaded " + st.Source + " (" + st.Version + ")")
			return svc.Watch(ctx)
		},
	}
}
