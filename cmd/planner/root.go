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
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/treeplanner/pkg/logging"
	"github.com/AleutianAI/treeplanner/pkg/ux"
	"github.com/AleutianAI/treeplanner/services/planner"
	"github.com/AleutianAI/treeplanner/services/planner/config"
	"github.com/AleutianAI/treeplanner/services/planner/telemetry"
)

// app holds state shared by every subcommand for one invocation.
type app struct {
	configPath string
	format     string

	cfg      *config.Config
	logger   *logging.Logger
	out      *ux.Printer
	shutdown func(context.Context) error
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "planner",
		Short: "Plan skill tree point allocations",
		Long: `planner loads a skill tree dataset from files, HTTP, S3, GCS or the
built-in seed tree and answers path, budget and search questions about it.`,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&a.format, "format", "", "output style: full, minimal or machine (default: detect)")

	root.AddCommand(
		newInspectCmd(a),
		newPathCmd(a),
		newPlanCmd(a),
		newSearchCmd(a),
		newNearestCmd(a),
		newViewportCmd(a),
		newSynthesizeCmd(a),
		newBuildsCmd(a),
		newWatchCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: "planner",
		Format:  logging.Format(cfg.Logging.Format),
		Output:  cmd.ErrOrStderr(),
	})
	slog.SetDefault(a.logger.Slog())

	var personality ux.PersonalityLevel
	if a.format != "" {
		personality = ux.ParsePersonalityLevel(a.format)
	}
	a.out = ux.NewPrinter(cmd.OutOrStdout(), personality)

	tc := telemetry.DefaultConfig()
	tc.TraceExporter = cfg.Telemetry.TraceExporter
	tc.MetricExporter = cfg.Telemetry.MetricExporter
	tc.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	a.shutdown, err = telemetry.Init(cmd.Context(), tc)
	if err != nil {
		return err
	}
	return nil
}

func (a *app) teardown(cmd *cobra.Command, _ []string) error {
	var err error
	if a.shutdown != nil {
		err = a.shutdown(context.WithoutCancel(cmd.Context()))
	}
	if a.logger != nil {
		_ = a.logger.Close()
	}
	return err
}

// service opens and loads the planner. Callers close it.
func (a *app) service(ctx context.Context) (*planner.Service, error) {
	svc, err := planner.New(ctx, planner.Options{Config: a.cfg, Logger: a.logger.Slog()})
	if err != nil {
		return nil, err
	}
	if err := svc.Load(ctx); err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("load skill tree: %w", err)
	}
	return svc, nil
}
