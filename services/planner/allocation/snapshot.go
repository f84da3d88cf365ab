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
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/treeplanner/services/planner/pathfind"
)

// Snapshot is the serializable form of a build.
type Snapshot struct {
	ClassID          string   `json:"classId"`
	AllocatedNodeIDs []string `json:"allocatedNodeIds"`
	TotalPoints      int      `json:"totalPoints"`
	Version          string   `json:"version"`
	Timestamp        int64    `json:"timestamp"`
}

// Time returns Timestamp as a time.Time.
func (s Snapshot) Time() time.Time {
	return time.UnixMilli(s.Timestamp)
}

// MarshalSnapshot encodes s as JSON.
func MarshalSnapshot(s Snapshot) ([]byte, error) {
	return json.Marshal(s)
}

// UnmarshalSnapshot decodes a JSON snapshot.
func UnmarshalSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	return s, nil
}

// ExportState captures the current allocation. IDs are in dataset order.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		ClassID:          s.st.class,
		AllocatedNodeIDs: s.orderedIDs(),
		TotalPoints:      s.st.total,
		Version:          s.g.Version(),
		Timestamp:        s.now().UnixMilli(),
	}
}

// ImportState replaces the allocation with snap.
//
// # Description
//
// The snapshot is checked against the loaded graph before anything changes:
// every ID must exist, the class (if any) must resolve to a root that is part
// of the allocation, the recomputed cost must fit the budget and the set must
// be connected to a root. TotalPoints is recomputed from node costs; a stored
// total that disagrees is logged and ignored, as is a version mismatch.
// History is cleared on success.
//
// # Outputs
//
//   - error: Wraps ErrInvalidSnapshot on failure; state is unchanged.
func (s *Store) ImportState(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.importState(snap)
	if err != nil {
		operationsTotal.WithLabelValues("import", "rejected").Inc()
		return err
	}
	operationsTotal.WithLabelValues("import", "ok").Inc()
	return nil
}

func (s *Store) importState(snap Snapshot) error {
	if snap.Version != "" && snap.Version != s.g.Version() {
		s.logger.Warn("snapshot version differs from loaded dataset",
			slog.String("snapshot_version", snap.Version),
			slog.String("dataset_version", s.g.Version()))
	}

	set := make(pathfind.Set, len(snap.AllocatedNodeIDs))
	total := 0
	for _, id := range snap.AllocatedNodeIDs {
		n, ok := s.g.Node(id)
		if !ok {
			return fmt.Errorf("%w: unknown node %q", ErrInvalidSnapshot, id)
		}
		if set.Has(id) {
			continue
		}
		set[id] = struct{}{}
		total += n.PointCost
	}

	if snap.ClassID != "" {
		root, ok := s.g.RootForClass(snap.ClassID)
		if !ok {
			return fmt.Errorf("%w: class %q has no root", ErrInvalidSnapshot, snap.ClassID)
		}
		if !set.Has(root.ID) {
			return fmt.Errorf("%w: class root %q not allocated", ErrInvalidSnapshot, root.ID)
		}
	}
	if total > s.maxPoints {
		return fmt.Errorf("%w: %d points exceeds budget %d", ErrInvalidSnapshot, total, s.maxPoints)
	}
	if !s.finder.Connected(set, "") {
		return fmt.Errorf("%w: allocation is not connected to a root", ErrInvalidSnapshot)
	}
	if snap.TotalPoints != total {
		s.logger.Warn("snapshot total points recomputed",
			slog.Int("stored", snap.TotalPoints),
			slog.Int("computed", total))
	}

	next := s.emptyState(snap.ClassID)
	next.allocated = set
	next.total = total
	s.st = next
	return nil
}
