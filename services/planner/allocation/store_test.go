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
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/treeplanner/services/planner/graph"
	"github.com/AleutianAI/treeplanner/services/planner/pathfind"
)

// forkGraph is root→a→b→c plus root→d. c costs 2. "witch" has its own
// unconnected root w.
func forkGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g, err := graph.Load(context.Background(), graph.Dataset{
		Version: "3.25",
		Classes: []graph.ClassInfo{
			{ID: "warrior", Name: "Warrior", StartNodeID: "root"},
			{ID: "ranger", Name: "Ranger"},
		},
		Nodes: []graph.Node{
			{ID: "root", Name: "Warrior Start", Kind: graph.KindStart, IsRoot: true, ClassRequirement: "warrior"},
			{ID: "a", Name: "Might", Kind: graph.KindSmall, Stats: []graph.StatModifier{
				{Type: graph.StatStrength, Name: "Strength", Value: graph.Num(10)},
			}},
			{ID: "b", Name: "Vigour", Kind: graph.KindSmall, Stats: []graph.StatModifier{
				{Type: graph.StatLife, Name: "Life", Value: graph.Num(5), IsPercent: true},
				{Type: graph.StatStrength, Name: "Strength", Value: graph.Num(4)},
			}},
			{ID: "c", Name: "Juggernaut", Kind: graph.KindKeystone, PointCost: 2, Stats: []graph.StatModifier{
				{Type: graph.StatOther, Name: "Keystone", Value: graph.Text("Cannot be Stunned")},
			}},
			{ID: "d", Name: "Agility", Kind: graph.KindSmall},
			{ID: "w", Name: "Witch Start", Kind: graph.KindStart, IsRoot: true, ClassRequirement: "witch"},
		},
		Connections: []graph.Connection{
			{From: "root", To: "a"},
			{From: "a", To: "b"},
			{From: "b", To: "c"},
			{From: "root", To: "d"},
		},
	})
	require.NoError(t, err)
	return g
}

func fixedClock() time.Time { return time.UnixMilli(1700000000000) }

func newStore(t *testing.T, maxPoints int) *Store {
	t.Helper()
	return New(forkGraph(t), Options{MaxPoints: maxPoints, Now: fixedClock})
}

// assertInvariants checks budget and connectivity on the committed state.
func assertInvariants(t *testing.T, s *Store) {
	t.Helper()
	sum := 0
	for _, n := range s.AllocatedNodes() {
		sum += n.PointCost
	}
	assert.Equal(t, sum, s.TotalPoints(), "total equals sum of costs")
	assert.LessOrEqual(t, s.TotalPoints(), s.MaxPoints(), "within budget")

	f := pathfind.FromGraph(s.Graph())
	assert.True(t, f.Connected(pathfind.NewSet(s.AllocatedIDs()...), ""), "connected to a root")

	if class := s.SelectedClass(); class != "" && len(s.AllocatedIDs()) > 0 {
		root, ok := s.Graph().RootForClass(class)
		require.True(t, ok)
		assert.True(t, s.IsAllocated(root.ID), "class root allocated")
	}
}

func TestSetClass(t *testing.T) {
	s := newStore(t, 10)

	require.True(t, s.SetClass("warrior"))
	assert.Equal(t, "warrior", s.SelectedClass())
	assert.Equal(t, []string{"root"}, s.AllocatedIDs())
	assert.Equal(t, 1, s.TotalPoints())
	assert.False(t, s.CanUndo())
	assertInvariants(t, s)

	t.Run("flagged root without class table entry", func(t *testing.T) {
		require.True(t, s.SetClass("witch"))
		assert.Equal(t, []string{"w"}, s.AllocatedIDs())
		assert.Equal(t, 1, s.TotalPoints())
	})

	t.Run("known class without root", func(t *testing.T) {
		err := s.SelectClass("ranger")
		assert.Equal(t, ReasonNoRoot, ReasonOf(err))
		assert.Equal(t, "witch", s.SelectedClass(), "state untouched")
	})

	t.Run("unknown class", func(t *testing.T) {
		assert.False(t, s.SetClass("templar"))
		assert.Equal(t, ReasonUnknownClass, ReasonOf(s.SelectClass("templar")))
	})
}

func TestAllocate_ChainScenario(t *testing.T) {
	s := newStore(t, 10)
	require.True(t, s.SetClass("warrior"))

	path, err := s.Allocate("c")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, path)
	assert.Equal(t, []string{"root", "a", "b", "c"}, s.AllocatedIDs())
	assert.Equal(t, 5, s.TotalPoints())
	assertInvariants(t, s)

	assert.False(t, s.DeallocateNode("a"), "a has dependents")
	err = s.Deallocate("a")
	var re *RejectedError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ReasonHasDependents, re.Reason)
	assert.Equal(t, []string{"b", "c"}, re.Dependents)

	assert.False(t, s.DeallocateNode("root"))
	assert.Equal(t, ReasonRootNode, ReasonOf(s.Deallocate("root")))

	assert.True(t, s.DeallocateNode("c"))
	assert.Equal(t, 3, s.TotalPoints())
	assertInvariants(t, s)
}

func TestDeallocate_BranchScenario(t *testing.T) {
	s := newStore(t, 10)
	require.True(t, s.SetClass("warrior"))
	require.True(t, s.AllocateNode("a"))
	require.True(t, s.AllocateNode("d"))

	assert.True(t, s.DeallocateNode("d"))
	assert.Equal(t, []string{"root", "a"}, s.AllocatedIDs())
	assertInvariants(t, s)
}

func TestAllocate_Rejections(t *testing.T) {
	tests := []struct {
		name      string
		maxPoints int
		setup     func(*Store)
		target    string
		reason    Reason
	}{
		{"unknown node", 10, func(s *Store) { s.SetClass("warrior") }, "ghost", ReasonUnknownNode},
		{"already allocated", 10, func(s *Store) { s.SetClass("warrior"); s.AllocateNode("a") }, "a", ReasonAlreadyAllocated},
		{"root already allocated", 10, func(s *Store) { s.SetClass("warrior") }, "root", ReasonAlreadyAllocated},
		{"no path to other class root", 10, func(s *Store) { s.SetClass("warrior") }, "w", ReasonNoPath},
		{"nothing allocated", 10, func(*Store) {}, "a", ReasonNoPath},
		{"target alone over budget", 1, func(s *Store) { s.SetClass("warrior") }, "a", ReasonBudgetExceeded},
		{"full path over budget", 4, func(s *Store) { s.SetClass("warrior") }, "c", ReasonBudgetExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t, tt.maxPoints)
			tt.setup(s)
			before := s.ExportState()
			canUndo := s.CanUndo()

			assert.False(t, s.CanAllocate(tt.target))
			_, err := s.Allocate(tt.target)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrRejected))
			assert.Equal(t, tt.reason, ReasonOf(err))

			assert.Equal(t, before, s.ExportState(), "state untouched")
			assert.Equal(t, canUndo, s.CanUndo())
		})
	}
}

func TestAllocate_RootWhenEmpty(t *testing.T) {
	s := newStore(t, 10)
	require.True(t, s.AllocateNode("root"))
	assert.Equal(t, []string{"root"}, s.AllocatedIDs())
	assert.Equal(t, "", s.SelectedClass())
	assert.True(t, s.CanUndo())

	require.True(t, s.Undo())
	assert.Empty(t, s.AllocatedIDs())
}

func TestAllocate_BudgetExactlyFits(t *testing.T) {
	s := newStore(t, 5)
	require.True(t, s.SetClass("warrior"))
	require.True(t, s.AllocateNode("c"))
	assert.Equal(t, 5, s.TotalPoints())
	assert.False(t, s.CanAllocate("d"))
}

func TestDeallocate_Rejections(t *testing.T) {
	s := newStore(t, 10)
	require.True(t, s.SetClass("warrior"))

	assert.Equal(t, ReasonUnknownNode, ReasonOf(s.Deallocate("ghost")))
	assert.Equal(t, ReasonNotAllocated, ReasonOf(s.Deallocate("a")))
}

func TestUndoRedo_InverseLaw(t *testing.T) {
	s := newStore(t, 20)
	require.True(t, s.SetClass("warrior"))
	start := s.ExportState()

	require.True(t, s.AllocateNode("c"))
	require.True(t, s.AllocateNode("d"))
	require.True(t, s.DeallocateNode("c"))
	require.True(t, s.DeallocateNode("d"))
	end := s.ExportState()

	for i := 0; i < 4; i++ {
		require.True(t, s.Undo(), "undo %d", i)
		assertInvariants(t, s)
	}
	assert.False(t, s.Undo(), "undo on empty stack is a no-op")
	assert.Equal(t, start.AllocatedNodeIDs, s.AllocatedIDs())
	assert.Equal(t, start.TotalPoints, s.TotalPoints())

	for i := 0; i < 4; i++ {
		require.True(t, s.Redo(), "redo %d", i)
		assertInvariants(t, s)
	}
	assert.False(t, s.Redo())
	assert.Equal(t, end.AllocatedNodeIDs, s.AllocatedIDs())
	assert.Equal(t, end.TotalPoints, s.TotalPoints())
}

func TestUndo_PathIsOneEntry(t *testing.T) {
	s := newStore(t, 10)
	require.True(t, s.SetClass("warrior"))
	require.True(t, s.AllocateNode("c"))

	h := s.History()
	require.Len(t, h, 1)
	assert.Equal(t, []string{"a", "b", "c"}, h[0].NodeIDs)
	assert.Equal(t, fixedClock(), h[0].Timestamp)

	require.True(t, s.Undo())
	assert.Equal(t, []string{"root"}, s.AllocatedIDs())
	assert.Equal(t, 1, s.TotalPoints())
}

func TestNewActionClearsRedo(t *testing.T) {
	s := newStore(t, 10)
	require.True(t, s.SetClass("warrior"))
	require.True(t, s.AllocateNode("a"))
	require.True(t, s.Undo())
	require.True(t, s.CanRedo())

	require.True(t, s.AllocateNode("d"))
	assert.False(t, s.CanRedo())
}

func TestHistoryDepthBounded(t *testing.T) {
	s := New(forkGraph(t), Options{MaxPoints: 20, HistoryDepth: 2})
	require.True(t, s.SetClass("warrior"))
	require.True(t, s.AllocateNode("a"))
	require.True(t, s.AllocateNode("b"))
	require.True(t, s.AllocateNode("d"))

	assert.True(t, s.Undo())
	assert.True(t, s.Undo())
	assert.False(t, s.Undo(), "oldest entry dropped")
	assert.Equal(t, []string{"root", "a"}, s.AllocatedIDs())
}

func TestReset(t *testing.T) {
	s := newStore(t, 10)
	require.True(t, s.SetClass("warrior"))
	require.True(t, s.AllocateNode("c"))
	require.True(t, s.Undo())

	s.Reset()
	assert.Equal(t, []string{"root"}, s.AllocatedIDs())
	assert.Equal(t, 1, s.TotalPoints())
	assert.False(t, s.CanUndo())
	assert.False(t, s.CanRedo())

	empty := newStore(t, 10)
	empty.Reset()
	assert.Empty(t, empty.AllocatedIDs())
}

func TestStats(t *testing.T) {
	s := newStore(t, 10)
	require.True(t, s.SetClass("warrior"))
	require.True(t, s.AllocateNode("c"))

	stats := s.Stats()
	assert.Equal(t, 14.0, stats[graph.StatStrength])
	assert.Equal(t, 5.0, stats[graph.StatLife])
	_, hasText := stats[graph.StatOther]
	assert.False(t, hasText, "text values are not summed")
}

func TestLoadSkillTree(t *testing.T) {
	s := newStore(t, 10)
	require.True(t, s.SetClass("warrior"))
	require.True(t, s.AllocateNode("c"))

	t.Run("keeps class and re-allocates root", func(t *testing.T) {
		s.LoadSkillTree(forkGraph(t))
		assert.Equal(t, "warrior", s.SelectedClass())
		assert.Equal(t, []string{"root"}, s.AllocatedIDs())
		assert.False(t, s.CanUndo())
	})

	t.Run("drops class missing from new graph", func(t *testing.T) {
		g, err := graph.Load(context.Background(), graph.Dataset{
			Nodes: []graph.Node{{ID: "x", Name: "X", Kind: graph.KindStart, IsRoot: true}},
		})
		require.NoError(t, err)
		s.LoadSkillTree(g)
		assert.Equal(t, "", s.SelectedClass())
		assert.Empty(t, s.AllocatedIDs())
		assert.Equal(t, 0, s.TotalPoints())
	})
}

func TestPlanContext(t *testing.T) {
	s := newStore(t, 10)
	require.True(t, s.SetClass("warrior"))
	ctx := context.Background()

	path, cost, err := s.PlanContext(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, path)
	assert.Equal(t, 4, cost)
	assert.Equal(t, []string{"root"}, s.AllocatedIDs(), "planning does not allocate")

	planned, plannedCost, err := s.Plan("c")
	require.NoError(t, err)
	assert.Equal(t, path, planned)
	assert.Equal(t, cost, plannedCost)

	_, _, err = s.PlanContext(ctx, "w")
	var rej *RejectedError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, ReasonNoPath, rej.Reason, "foreign root must connect once a class is selected")
}
