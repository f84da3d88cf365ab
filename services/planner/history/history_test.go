// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRing_PushPopNewest(t *testing.T) {
	r := NewRing[int](3)
	assert.Equal(t, 3, r.Cap())

	_, ok := r.PopNewest()
	assert.False(t, ok)

	assert.False(t, r.Push(1))
	assert.False(t, r.Push(2))
	assert.False(t, r.Push(3))
	assert.True(t, r.Push(4), "oldest dropped at capacity")
	assert.Equal(t, []int{2, 3, 4}, r.Slice())

	for _, want := range []int{4, 3, 2} {
		v, ok := r.PopNewest()
		require.True(t, ok)
		assert.Equal(t, want, v)
	}
	assert.Equal(t, 0, r.Len())
	assert.Nil(t, r.Slice())
}

func TestRing_WrapAfterPop(t *testing.T) {
	r := NewRing[string](2)
	r.Push("a")
	r.Push("b")
	r.PopNewest()
	r.Push("c")
	r.Push("d")
	assert.Equal(t, []string{"c", "d"}, r.Slice())
}

func TestRing_DefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultDepth, NewRing[int](0).Cap())
}

func TestRing_CloneIsIndependent(t *testing.T) {
	r := NewRing[int](4)
	r.Push(1)
	c := r.Clone()
	c.Push(2)
	assert.Equal(t, []int{1}, r.Slice())
	assert.Equal(t, []int{1, 2}, c.Slice())
}

func TestStack_UndoRedoFlow(t *testing.T) {
	s := NewStack(10)
	now := time.Now()
	assert.False(t, s.CanUndo())
	assert.False(t, s.CanRedo())

	s.Record(Entry{Type: ActionAllocate, NodeIDs: []string{"a", "b"}, Timestamp: now})
	require.True(t, s.CanUndo())

	e, ok := s.PopUndo()
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, e.NodeIDs)
	s.PushRedo(e)
	assert.True(t, s.CanRedo())
	assert.False(t, s.CanUndo())

	e, ok = s.PopRedo()
	require.True(t, ok)
	s.PushUndo(e)
	assert.True(t, s.CanUndo())
	assert.False(t, s.CanRedo())
}

func TestStack_RecordClearsRedo(t *testing.T) {
	s := NewStack(10)
	s.Record(Entry{Type: ActionAllocate, NodeIDs: []string{"a"}})
	e, _ := s.PopUndo()
	s.PushRedo(e)
	require.True(t, s.CanRedo())

	s.Record(Entry{Type: ActionAllocate, NodeIDs: []string{"b"}})
	assert.False(t, s.CanRedo())
}

func TestStack_BoundedDepth(t *testing.T) {
	s := NewStack(2)
	s.Record(Entry{NodeIDs: []string{"1"}})
	s.Record(Entry{NodeIDs: []string{"2"}})
	assert.True(t, s.Record(Entry{NodeIDs: []string{"3"}}))

	entries := s.UndoEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, []string{"2"}, entries[0].NodeIDs)
	assert.Equal(t, []string{"3"}, entries[1].NodeIDs)
}

func TestStack_RecordCopiesIDs(t *testing.T) {
	s := NewStack(2)
	ids := []string{"x"}
	s.Record(Entry{NodeIDs: ids})
	ids[0] = "mutated"
	e, _ := s.PopUndo()
	assert.Equal(t, []string{"x"}, e.NodeIDs)
}

func TestActionType_Inverse(t *testing.T) {
	assert.Equal(t, ActionDeallocate, ActionAllocate.Inverse())
	assert.Equal(t, ActionAllocate, ActionDeallocate.Inverse())
}
