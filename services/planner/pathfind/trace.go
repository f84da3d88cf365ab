// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pathfind

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("planner.pathfind")

// ShortestPathContext is ShortestPath wrapped in a trace span.
func (f *Finder) ShortestPathContext(ctx context.Context, targetID string, allocated Set) ([]string, bool) {
	_, span := tracer.Start(ctx, "pathfind.ShortestPath")
	defer span.End()

	path, ok := f.ShortestPath(targetID, allocated)
	span.SetAttributes(pathAttributes(targetID, allocated, path, ok)...)
	return path, ok
}

// ConnectingPathContext is ConnectingPath wrapped in a trace span.
func (f *Finder) ConnectingPathContext(ctx context.Context, targetID string, allocated Set) ([]string, bool) {
	_, span := tracer.Start(ctx, "pathfind.ConnectingPath")
	defer span.End()

	path, ok := f.ConnectingPath(targetID, allocated)
	span.SetAttributes(pathAttributes(targetID, allocated, path, ok)...)
	return path, ok
}

func pathAttributes(targetID string, allocated Set, path []string, ok bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("path.target", targetID),
		attribute.Int("path.allocated", len(allocated)),
		attribute.Int("path.length", len(path)),
		attribute.Bool("path.found", ok),
	}
}
