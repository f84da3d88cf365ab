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

// DefaultDepth is the number of actions kept when no depth is configured.
const DefaultDepth = 100

// Ring is a fixed-capacity circular buffer used as a bounded LIFO.
//
// # Description
//
// Push is O(1). When full, Push overwrites the oldest entry, so the newest
// Depth entries always survive. PopNewest removes from the write end, which
// is what an undo stack needs.
//
// # Thread Safety
//
// NOT safe for concurrent use; the owning store serialises access.
type Ring[T any] struct {
	data  []T
	head  int // next write position
	count int
}

// NewRing creates a ring with the given capacity (DefaultDepth when <= 0).
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = DefaultDepth
	}
	return &Ring[T]{data: make([]T, capacity)}
}

// Push appends item, dropping the oldest entry when at capacity.
//
// # Outputs
//
//   - bool: True when an older entry was dropped to make room.
func (r *Ring[T]) Push(item T) bool {
	r.data[r.head] = item
	r.head = (r.head + 1) % len(r.data)
	if r.count == len(r.data) {
		return true
	}
	r.count++
	return false
}

// PopNewest removes and returns the most recently pushed item.
func (r *Ring[T]) PopNewest() (T, bool) {
	var zero T
	if r.count == 0 {
		return zero, false
	}
	r.head = (r.head - 1 + len(r.data)) % len(r.data)
	item := r.data[r.head]
	r.data[r.head] = zero
	r.count--
	return item, true
}

// Slice returns the items oldest first. The result is a copy.
func (r *Ring[T]) Slice() []T {
	if r.count == 0 {
		return nil
	}
	out := make([]T, r.count)
	tail := (r.head - r.count + len(r.data)) % len(r.data)
	for i := range out {
		out[i] = r.data[(tail+i)%len(r.data)]
	}
	return out
}

// Len returns the number of stored items.
func (r *Ring[T]) Len() int { return r.count }

// Cap returns the capacity.
func (r *Ring[T]) Cap() int { return len(r.data) }

// Clear drops every item.
func (r *Ring[T]) Clear() {
	clear(r.data)
	r.head = 0
	r.count = 0
}

// Clone returns an independent copy. Items are copied by value.
func (r *Ring[T]) Clone() *Ring[T] {
	c := &Ring[T]{data: make([]T, len(r.data)), head: r.head, count: r.count}
	copy(c.data, r.data)
	return c
}
