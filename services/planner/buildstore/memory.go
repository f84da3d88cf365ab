// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package buildstore

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

// Memory is a map-backed Store.
type Memory struct {
	mu     sync.RWMutex
	builds map[string]Build
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{builds: make(map[string]Build)}
}

func (m *Memory) Save(_ context.Context, b Build) (Build, error) {
	if err := checkName(b.Name); err != nil {
		return Build{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var prev *Build
	if existing, ok := m.builds[b.Name]; ok {
		prev = &existing
	}
	b = stamp(b, prev, time.Now())
	b.Snapshot.AllocatedNodeIDs = slices.Clone(b.Snapshot.AllocatedNodeIDs)
	m.builds[b.Name] = b
	return b, nil
}

func (m *Memory) Load(_ context.Context, name string) (Build, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.builds[name]
	if !ok {
		return Build{}, ErrNotFound
	}
	b.Snapshot.AllocatedNodeIDs = slices.Clone(b.Snapshot.AllocatedNodeIDs)
	return b, nil
}

func (m *Memory) List(_ context.Context) ([]Build, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Build, 0, len(m.builds))
	for _, b := range m.builds {
		b.Snapshot.AllocatedNodeIDs = slices.Clone(b.Snapshot.AllocatedNodeIDs)
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b Build) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (m *Memory) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.builds[name]; !ok {
		return ErrNotFound
	}
	delete(m.builds, name)
	return nil
}

func (m *Memory) Close() error { return nil }
