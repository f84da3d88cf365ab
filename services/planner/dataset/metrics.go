// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dataset

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_dataset_fetch_total",
		Help: "Dataset fetch attempts by source kind and result",
	}, []string{"kind", "result"})

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "planner_dataset_fetch_duration_seconds",
		Help:    "Time to fetch, decode and load one dataset source",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	reloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_dataset_reloads_total",
		Help: "Watcher-triggered reloads by result",
	}, []string{"result"})
)

func sourceKind(s Source) string {
	switch s.(type) {
	case *FileSource:
		return "file"
	case *HTTPSource:
		return "http"
	case *S3Source:
		return "s3"
	case *GCSSource:
		return "gcs"
	case EmbeddedSource:
		return "embedded"
	default:
		return "other"
	}
}
