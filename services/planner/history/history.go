// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package history records allocation actions for undo and redo.
//
// Each Entry captures exactly the node IDs one user action added or removed.
// Undo applies the inverse of the newest entry; Redo re-applies it. Both
// stacks are bounded (DefaultDepth), and any new action clears the redo
// stack.
package history

import (
	"slices"
	"time"
)

// ActionType identifies what a history entry did.
type ActionType string

const (
	ActionAllocate   ActionType = "allocate"
	ActionDeallocate ActionType = "deallocate"
)

// Inverse returns the action that undoes t.
func (t ActionType) Inverse() ActionType {
	if t == ActionAllocate {
		return ActionDeallocate
	}
	return ActionAllocate
}

// Entry is one undoable action.
type Entry struct {
	Type      ActionType `json:"type"`
	NodeIDs   []string   `json:"nodeIds"`
	Timestamp time.Time  `json:"timestamp"`
}

// Stack pairs the bounded undo and redo rings.
//
// # Thread Safety
//
// NOT safe for concurrent use.
type Stack struct {
	undo *Ring[Entry]
	redo *Ring[Entry]
}

// NewStack creates an empty stack holding up to depth entries per side.
func NewStack(depth int) *Stack {
	return &Stack{undo: NewRing[Entry](depth), redo: NewRing[Entry](depth)}
}

// Record pushes a new user action and clears the redo side.
//
// # Outputs
//
//   - bool: True when the oldest undo entry was dropped.
func (s *Stack) Record(e Entry) bool {
	e.NodeIDs = slices.Clone(e.NodeIDs)
	s.redo.Clear()
	return s.undo.Push(e)
}

// PopUndo removes the newest undo entry. The caller applies its inverse and
// then calls PushRedo with the same entry.
func (s *Stack) PopUndo() (Entry, bool) { return s.undo.PopNewest() }

// PopRedo removes the newest redo entry.
func (s *Stack) PopRedo() (Entry, bool) { return s.redo.PopNewest() }

// PushRedo stores an undone entry so it can be redone.
func (s *Stack) PushRedo(e Entry) { s.redo.Push(e) }

// PushUndo stores a redone entry without touching the redo side.
func (s *Stack) PushUndo(e Entry) { s.undo.Push(e) }

// CanUndo reports whether an undo entry exists.
func (s *Stack) CanUndo() bool { return s.undo.Len() > 0 }

// CanRedo reports whether a redo entry exists.
func (s *Stack) CanRedo() bool { return s.redo.Len() > 0 }

// UndoEntries returns undo entries oldest first.
func (s *Stack) UndoEntries() []Entry { return s.undo.Slice() }

// Clear empties both sides.
func (s *Stack) Clear() {
	s.undo.Clear()
	s.redo.Clear()
}

// Clone returns an independent copy of both sides.
func (s *Stack) Clone() *Stack {
	return &Stack{undo: s.undo.Clone(), redo: s.redo.Clone()}
}
