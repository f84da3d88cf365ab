// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/treeplanner/services/planner/graph"
)

func sampleNodes() []graph.Node {
	return []graph.Node{
		{ID: "n1", Name: "Life", Kind: graph.KindSmall},
		{ID: "n2", Name: "Life Leech", Kind: graph.KindNotable},
		{ID: "n3", Name: "Vital Life Mastery", Kind: graph.KindMastery},
		{ID: "n4", Name: "Constitution", Kind: graph.KindNotable,
			Stats: []graph.StatModifier{{Type: graph.StatLife, Name: "maximum Life", Value: graph.Num(8), IsPercent: true}}},
		{ID: "n5", Name: "Iron Will", Kind: graph.KindKeystone, Description: "Strength bonus applies to spell damage"},
		{ID: "n0", Name: "Life", Kind: graph.KindSmall},
		{ID: "n6", Name: "Unwavering", Kind: graph.KindKeystone,
			Stats: []graph.StatModifier{{Type: graph.StatOther, Name: "Keystone", Value: graph.Text("Cannot be Stunned")}}},
	}
}

func resultIDs(rs []Result) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Node.ID
	}
	return out
}

func TestSearch_Scoring(t *testing.T) {
	idx := Build(sampleNodes(), 0)
	ctx := context.Background()

	rs := idx.Search(ctx, "  LIFE ", 10)
	require.Len(t, rs, 5)
	assert.Equal(t, []string{"n0", "n1", "n2", "n3", "n4"}, resultIDs(rs))
	assert.Equal(t, []int{ScoreExact, ScoreExact, ScorePrefix, ScoreSubstring, ScoreDetail},
		[]int{rs[0].Score, rs[1].Score, rs[2].Score, rs[3].Score, rs[4].Score})
}

func TestSearch_DescriptionAndTextStats(t *testing.T) {
	idx := Build(sampleNodes(), 0)
	ctx := context.Background()

	assert.Equal(t, []string{"n5"}, resultIDs(idx.Search(ctx, "spell damage", 5)))
	assert.Equal(t, []string{"n6"}, resultIDs(idx.Search(ctx, "stunned", 5)))
}

func TestSearch_LimitsAndEmpty(t *testing.T) {
	idx := Build(sampleNodes(), 0)
	ctx := context.Background()

	assert.Len(t, idx.Search(ctx, "life", 2), 2)
	assert.Len(t, idx.Search(ctx, "life", 0), 5, "default limit")
	assert.Nil(t, idx.Search(ctx, "   ", 5))
	assert.Empty(t, idx.Search(ctx, "zzz", 5))
}

func TestSearch_CacheHitsAndEviction(t *testing.T) {
	idx := Build(sampleNodes(), 2)
	ctx := context.Background()

	first := idx.Search(ctx, "life", 3)
	first[0].Score = -1 // callers cannot corrupt the cache
	second := idx.Search(ctx, "Life", 3)
	assert.Equal(t, ScoreExact, second[0].Score)

	stats := idx.CacheStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)

	idx.Search(ctx, "iron", 3)
	idx.Search(ctx, "vital", 3)
	stats = idx.CacheStats()
	assert.Equal(t, int64(1), stats.Evictions)
	assert.Equal(t, 2, stats.Size)
	assert.Equal(t, 7, idx.Len())
}
