// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package allocation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_allocation_operations_total",
		Help: "Allocation store operations by operation and result",
	}, []string{"op", "result"})

	rejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_allocation_rejections_total",
		Help: "Rejected allocation store mutations by reason",
	}, []string{"reason"})

	pathLength = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "planner_allocation_path_nodes",
		Help:    "Number of nodes committed by a single allocate call",
		Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
	})

	historyDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "planner_allocation_history_dropped_total",
		Help: "Undo entries discarded because the history was full",
	})
)

func observe(op string, err error) {
	if err == nil {
		operationsTotal.WithLabelValues(op, "ok").Inc()
		return
	}
	operationsTotal.WithLabelValues(op, "rejected").Inc()
	if r := ReasonOf(err); r != "" {
		rejectionsTotal.WithLabelValues(string(r)).Inc()
	}
}
