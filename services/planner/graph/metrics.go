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
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level tracer and meter for graph operations.
var (
	tracer = otel.Tracer("planner.graph")
	meter  = otel.Meter("planner.graph")
)

var (
	loadLatency       metric.Float64Histogram
	loadTotal         metric.Int64Counter
	nodesLoaded       metric.Int64Histogram
	connectionsLoaded metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		loadLatency, err = meter.Float64Histogram(
			"planner_graph_load_duration_seconds",
			metric.WithDescription("Duration of dataset to graph builds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		loadTotal, err = meter.Int64Counter(
			"planner_graph_load_total",
			metric.WithDescription("Total number of graph builds"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		nodesLoaded, err = meter.Int64Histogram(
			"planner_graph_nodes",
			metric.WithDescription("Number of nodes per loaded graph"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		connectionsLoaded, err = meter.Int64Histogram(
			"planner_graph_connections",
			metric.WithDescription("Number of deduplicated connections per loaded graph"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordLoadMetrics(ctx context.Context, duration time.Duration, nodeCount, connCount int, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.Bool("success", success))
	loadLatency.Record(ctx, duration.Seconds(), attrs)
	loadTotal.Add(ctx, 1, attrs)

	if success {
		nodesLoaded.Record(ctx, int64(nodeCount))
		connectionsLoaded.Record(ctx, int64(connCount))
	}
}
