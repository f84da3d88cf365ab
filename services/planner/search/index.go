// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package search implements case-insensitive node search by name,
// description and stat text.
package search

import (
	"context"
	"slices"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/treeplanner/services/planner/graph"
)

const (
	// DefaultLimit is used when Search is called with k <= 0.
	DefaultLimit = 20

	// DefaultCacheSize is the result cache capacity.
	DefaultCacheSize = 256
)

// Match scores, highest first.
const (
	ScoreExact     = 100
	ScorePrefix    = 75
	ScoreSubstring = 50
	ScoreDetail    = 25
)

var tracer = otel.Tracer("planner.search")

// Result is one scored match.
type Result struct {
	Node  graph.Node
	Score int
}

type entry struct {
	node   graph.Node
	name   string // lower-cased
	detail string // lower-cased description and stat names, newline-joined
}

// Index is an immutable search index over one graph.
//
// # Thread Safety
//
// Safe for concurrent use.
type Index struct {
	entries []entry
	cache   *resultCache
}

// Build indexes nodes. cacheSize <= 0 uses DefaultCacheSize.
func Build(nodes []graph.Node, cacheSize int) *Index {
	idx := &Index{
		entries: make([]entry, 0, len(nodes)),
		cache:   newResultCache(cacheSize),
	}
	for _, n := range nodes {
		parts := []string{n.Description}
		for _, s := range n.Stats {
			parts = append(parts, s.Name)
			if s.Value.IsText {
				parts = append(parts, s.Value.Text)
			}
		}
		idx.entries = append(idx.entries, entry{
			node:   n,
			name:   strings.ToLower(n.Name),
			detail: strings.ToLower(strings.Join(parts, "\n")),
		})
	}
	return idx
}

// Search returns up to k nodes matching query.
//
// # Description
//
// Matching is case-insensitive on the trimmed query. A node scores
// ScoreExact when its name equals the query, ScorePrefix when the name
// starts with it, ScoreSubstring when the name contains it and ScoreDetail
// when only its description or a stat matches. Results are ordered by
// score, then name, then ID. An empty query returns nothing.
//
// # Inputs
//
//   - ctx: Context for tracing.
//   - query: Search text.
//   - k: Maximum results; DefaultLimit when <= 0.
func (idx *Index) Search(ctx context.Context, query string, k int) []Result {
	_, span := tracer.Start(ctx, "search.Search")
	defer span.End()

	q := strings.ToLower(strings.TrimSpace(query))
	if k <= 0 {
		k = DefaultLimit
	}
	span.SetAttributes(attribute.String("search.query", q), attribute.Int("search.limit", k))
	if q == "" {
		return nil
	}

	key := cacheKey{query: q, limit: k}
	if cached, ok := idx.cache.get(key); ok {
		span.SetAttributes(attribute.Bool("search.cache_hit", true))
		return slices.Clone(cached)
	}

	var results []Result
	for _, e := range idx.entries {
		if s := score(e, q); s > 0 {
			results = append(results, Result{Node: e.node, Score: s})
		}
	}
	slices.SortFunc(results, func(a, b Result) int {
		if a.Score != b.Score {
			return b.Score - a.Score
		}
		if c := strings.Compare(a.Node.Name, b.Node.Name); c != 0 {
			return c
		}
		return strings.Compare(a.Node.ID, b.Node.ID)
	})
	if len(results) > k {
		results = results[:k]
	}

	idx.cache.set(key, results)
	span.SetAttributes(attribute.Int("search.results", len(results)))
	return slices.Clone(results)
}

func score(e entry, q string) int {
	switch {
	case e.name == q:
		return ScoreExact
	case strings.HasPrefix(e.name, q):
		return ScorePrefix
	case strings.Contains(e.name, q):
		return ScoreSubstring
	case strings.Contains(e.detail, q):
		return ScoreDetail
	}
	return 0
}

// Len returns the number of indexed nodes.
func (idx *Index) Len() int { return len(idx.entries) }

// CacheStats returns result cache counters.
func (idx *Index) CacheStats() CacheStats {
	return CacheStats{
		Hits:      idx.cache.hits.Load(),
		Misses:    idx.cache.misses.Load(),
		Evictions: idx.cache.evictions.Load(),
		Size:      idx.cache.len(),
	}
}
