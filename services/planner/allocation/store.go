// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package allocation owns the allocated-node state of one build.
//
// A Store keeps four invariants in every committed state:
//
//  1. TotalPoints equals the sum of PointCost over allocated nodes.
//  2. TotalPoints never exceeds MaxPoints.
//  3. A non-empty allocation is connected and contains a root (the selected
//     class's root when a class is selected).
//  4. The class root is only removed by Reset, SetClass, Undo or a graph
//     reload, never by DeallocateNode.
//
// Every mutation works on a clone of the current state and replaces it in
// one step, so a rejected call never leaves a partial change behind.
package allocation

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/AleutianAI/treeplanner/services/planner/graph"
	"github.com/AleutianAI/treeplanner/services/planner/history"
	"github.com/AleutianAI/treeplanner/services/planner/pathfind"
)

// DefaultMaxPoints is the point budget used when Options.MaxPoints is zero.
const DefaultMaxPoints = 123

// Options configures a Store.
type Options struct {
	// MaxPoints is the point budget. Zero means DefaultMaxPoints.
	MaxPoints int

	// HistoryDepth bounds each of the undo and redo stacks. Zero means
	// history.DefaultDepth.
	HistoryDepth int

	// Logger receives debug output. Nil means slog.Default().
	Logger *slog.Logger

	// Now is the clock used for history entries and snapshots.
	Now func() time.Time
}

type state struct {
	class     string
	allocated pathfind.Set
	total     int
	history   *history.Stack
}

func (st *state) clone() *state {
	c := &state{
		class:     st.class,
		allocated: make(pathfind.Set, len(st.allocated)),
		total:     st.total,
		history:   st.history.Clone(),
	}
	for id := range st.allocated {
		c.allocated[id] = struct{}{}
	}
	return c
}

// Store is the allocation state machine.
//
// # Thread Safety
//
// All methods are safe for concurrent use; at most one mutation is in flight
// at a time.
type Store struct {
	mu     sync.RWMutex
	g      *graph.Graph
	finder *pathfind.Finder
	st     *state

	maxPoints int
	depth     int
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Store over g with nothing allocated and no class selected.
func New(g *graph.Graph, opts Options) *Store {
	if opts.MaxPoints <= 0 {
		opts.MaxPoints = DefaultMaxPoints
	}
	if opts.HistoryDepth <= 0 {
		opts.HistoryDepth = history.DefaultDepth
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Store{
		maxPoints: opts.MaxPoints,
		depth:     opts.HistoryDepth,
		logger:    opts.Logger.With(slog.String("component", "allocation")),
		now:       opts.Now,
	}
	s.g = g
	s.finder = pathfind.FromGraph(g)
	s.st = s.emptyState("")
	return s
}

func (s *Store) emptyState(class string) *state {
	return &state{
		class:     class,
		allocated: make(pathfind.Set),
		history:   history.NewStack(s.depth),
	}
}

// Graph returns the graph the store currently allocates against.
func (s *Store) Graph() *graph.Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.g
}

// LoadSkillTree swaps in a new graph.
//
// # Description
//
// Allocation and history are cleared. The selected class is kept and its
// root re-allocated when the new graph still resolves one; otherwise the
// class is cleared too.
func (s *Store) LoadSkillTree(g *graph.Graph) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.g = g
	s.finder = pathfind.FromGraph(g)

	class := s.st.class
	next := s.emptyState("")
	if class != "" {
		if root, ok := g.RootForClass(class); ok && root.PointCost <= s.maxPoints {
			next.class = class
			next.allocated[root.ID] = struct{}{}
			next.total = root.PointCost
		} else {
			s.logger.Warn("selected class has no root in new graph, clearing",
				slog.String("class", class))
		}
	}
	s.st = next
	observe("load", nil)
	s.logger.Debug("skill tree loaded",
		slog.String("version", g.Version()),
		slog.Int("nodes", g.Len()))
}

// SetClass resets the build and allocates the class root.
//
// Returns false when the class is unknown or has no root.
func (s *Store) SetClass(classID string) bool {
	return s.SelectClass(classID) == nil
}

// SelectClass is SetClass with a typed rejection.
func (s *Store) SelectClass(classID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.selectClass(classID)
	observe("set_class", err)
	return err
}

func (s *Store) selectClass(classID string) error {
	root, ok := s.g.RootForClass(classID)
	if !ok {
		if _, known := s.g.Class(classID); known {
			return reject(ReasonNoRoot, classID)
		}
		return reject(ReasonUnknownClass, classID)
	}
	if root.PointCost > s.maxPoints {
		return &RejectedError{Reason: ReasonBudgetExceeded, NodeID: root.ID, Cost: root.PointCost, Available: s.maxPoints}
	}

	next := s.emptyState(classID)
	next.allocated[root.ID] = struct{}{}
	next.total = root.PointCost
	s.st = next

	s.logger.Debug("class selected", slog.String("class", classID), slog.String("root", root.ID))
	return nil
}

// AllocateNode allocates nodeID plus every unallocated node on the shortest
// path connecting it to the current allocation.
func (s *Store) AllocateNode(nodeID string) bool {
	_, err := s.Allocate(nodeID)
	return err == nil
}

// Allocate is AllocateNode returning the newly allocated IDs, anchor side
// first and nodeID last.
//
// # Description
//
// Checks run in order: unknown node, already allocated, target cost against
// the remaining budget, path existence, full path cost against the remaining
// budget. A root is reachable without a path only while nothing is
// allocated. The whole path is recorded as one undo entry and the redo stack
// is cleared.
//
// # Outputs
//
//   - []string: IDs committed by this call.
//   - error: *RejectedError on refusal; state is unchanged.
func (s *Store) Allocate(nodeID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.allocate(nodeID)
	observe("allocate", err)
	return path, err
}

func (s *Store) allocate(nodeID string) ([]string, error) {
	path, cost, err := s.plan(context.Background(), nodeID)
	if err != nil {
		return nil, err
	}

	next := s.st.clone()
	for _, id := range path {
		next.allocated[id] = struct{}{}
	}
	next.total += cost
	if next.history.Record(history.Entry{Type: history.ActionAllocate, NodeIDs: path, Timestamp: s.now()}) {
		historyDropped.Inc()
	}
	s.st = next

	pathLength.Observe(float64(len(path)))
	s.logger.Debug("nodes allocated",
		slog.String("target", nodeID),
		slog.Any("path", path),
		slog.Int("total_points", next.total))
	return slices.Clone(path), nil
}

// plan runs every allocate check without mutating. Callers hold s.mu.
func (s *Store) plan(ctx context.Context, nodeID string) ([]string, int, error) {
	n, ok := s.g.Node(nodeID)
	if !ok {
		return nil, 0, reject(ReasonUnknownNode, nodeID)
	}
	if s.st.allocated.Has(nodeID) {
		return nil, 0, reject(ReasonAlreadyAllocated, nodeID)
	}
	available := s.maxPoints - s.st.total
	if n.PointCost > available {
		return nil, 0, &RejectedError{Reason: ReasonBudgetExceeded, NodeID: nodeID, Cost: n.PointCost, Available: available}
	}

	var path []string
	if len(s.st.allocated) == 0 {
		path, ok = s.finder.ShortestPathContext(ctx, nodeID, s.st.allocated)
	} else {
		path, ok = s.finder.ConnectingPathContext(ctx, nodeID, s.st.allocated)
	}
	if !ok {
		return nil, 0, reject(ReasonNoPath, nodeID)
	}

	cost := s.costOf(path)
	if cost > available {
		return nil, 0, &RejectedError{Reason: ReasonBudgetExceeded, NodeID: nodeID, Cost: cost, Available: available}
	}
	return path, cost, nil
}

// Plan reports what Allocate would commit without changing state.
func (s *Store) Plan(nodeID string) ([]string, int, error) {
	return s.PlanContext(context.Background(), nodeID)
}

// PlanContext is Plan with the path search traced under ctx.
func (s *Store) PlanContext(ctx context.Context, nodeID string) ([]string, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	path, cost, err := s.plan(ctx, nodeID)
	return slices.Clone(path), cost, err
}

// CanAllocate reports whether Allocate would succeed.
func (s *Store) CanAllocate(nodeID string) bool {
	_, _, err := s.Plan(nodeID)
	return err == nil
}

// DeallocateNode removes exactly nodeID when no other allocated node depends
// on it for connectivity.
func (s *Store) DeallocateNode(nodeID string) bool {
	return s.Deallocate(nodeID) == nil
}

// Deallocate is DeallocateNode with a typed rejection.
func (s *Store) Deallocate(nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.deallocate(nodeID)
	observe("deallocate", err)
	return err
}

func (s *Store) deallocate(nodeID string) error {
	n, ok := s.g.Node(nodeID)
	if !ok {
		return reject(ReasonUnknownNode, nodeID)
	}
	if !s.st.allocated.Has(nodeID) {
		return reject(ReasonNotAllocated, nodeID)
	}
	if n.IsRoot {
		return reject(ReasonRootNode, nodeID)
	}
	if !s.finder.CanRemove(nodeID, s.st.allocated) {
		deps := s.finder.Dependents(nodeID, s.st.allocated)
		slices.Sort(deps)
		return &RejectedError{Reason: ReasonHasDependents, NodeID: nodeID, Dependents: deps}
	}

	next := s.st.clone()
	delete(next.allocated, nodeID)
	next.total -= n.PointCost
	if next.history.Record(history.Entry{Type: history.ActionDeallocate, NodeIDs: []string{nodeID}, Timestamp: s.now()}) {
		historyDropped.Inc()
	}
	s.st = next

	s.logger.Debug("node deallocated", slog.String("node", nodeID), slog.Int("total_points", next.total))
	return nil
}

// Reset clears the allocation and both history stacks, keeping the selected
// class and its root.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.emptyState(s.st.class)
	if next.class != "" {
		if root, ok := s.g.RootForClass(next.class); ok {
			next.allocated[root.ID] = struct{}{}
			next.total = root.PointCost
		}
	}
	s.st = next
	observe("reset", nil)
}

// Undo reverts the newest history entry. Returns false when there is
// nothing to undo.
func (s *Store) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.st.clone()
	e, ok := next.history.PopUndo()
	if !ok {
		return false
	}
	s.apply(next, e.Type.Inverse(), e.NodeIDs)
	next.history.PushRedo(e)
	s.st = next
	observe("undo", nil)
	return true
}

// Redo re-applies the newest undone entry. Returns false when there is
// nothing to redo.
func (s *Store) Redo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.st.clone()
	e, ok := next.history.PopRedo()
	if !ok {
		return false
	}
	s.apply(next, e.Type, e.NodeIDs)
	next.history.PushUndo(e)
	s.st = next
	observe("redo", nil)
	return true
}

func (s *Store) apply(st *state, action history.ActionType, ids []string) {
	for _, id := range ids {
		n, _ := s.g.Node(id)
		switch action {
		case history.ActionAllocate:
			if !st.allocated.Has(id) {
				st.allocated[id] = struct{}{}
				st.total += n.PointCost
			}
		case history.ActionDeallocate:
			if st.allocated.Has(id) {
				delete(st.allocated, id)
				st.total -= n.PointCost
			}
		}
	}
}

func (s *Store) costOf(ids []string) int {
	total := 0
	for _, id := range ids {
		n, _ := s.g.Node(id)
		total += n.PointCost
	}
	return total
}

// IsAllocated reports whether nodeID is allocated.
func (s *Store) IsAllocated(nodeID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.allocated.Has(nodeID)
}

// AllocatedIDs returns the allocated IDs in dataset order.
func (s *Store) AllocatedIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orderedIDs()
}

func (s *Store) orderedIDs() []string {
	out := make([]string, 0, len(s.st.allocated))
	for _, n := range s.g.Nodes() {
		if s.st.allocated.Has(n.ID) {
			out = append(out, n.ID)
		}
	}
	return out
}

// AllocatedNodes returns the allocated nodes in dataset order.
func (s *Store) AllocatedNodes() []graph.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]graph.Node, 0, len(s.st.allocated))
	for _, n := range s.g.Nodes() {
		if s.st.allocated.Has(n.ID) {
			out = append(out, n)
		}
	}
	return out
}

// TotalPoints returns the points spent.
func (s *Store) TotalPoints() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.total
}

// MaxPoints returns the point budget.
func (s *Store) MaxPoints() int { return s.maxPoints }

// SelectedClass returns the selected class ID, or "".
func (s *Store) SelectedClass() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.class
}

// CanUndo reports whether Undo would do anything.
func (s *Store) CanUndo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.history.CanUndo()
}

// CanRedo reports whether Redo would do anything.
func (s *Store) CanRedo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.history.CanRedo()
}

// History returns the undo entries, oldest first.
func (s *Store) History() []history.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.history.UndoEntries()
}

// Stats sums numeric modifier values per stat type over allocated nodes.
// Percent and flat values are added together; text values are skipped.
func (s *Store) Stats() map[graph.StatType]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[graph.StatType]float64)
	for id := range s.st.allocated {
		n, _ := s.g.Node(id)
		for _, m := range n.Stats {
			if m.Value.IsText {
				continue
			}
			out[m.Type] += m.Value.Number
		}
	}
	return out
}
