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
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRejected is matched by every *RejectedError.
	ErrRejected = errors.New("allocation rejected")

	// ErrInvalidSnapshot is returned by ImportState when a snapshot cannot be
	// applied to the loaded graph.
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)

// Reason is a machine-readable rejection code.
type Reason string

const (
	ReasonUnknownNode      Reason = "UNKNOWN_NODE"
	ReasonAlreadyAllocated Reason = "ALREADY_ALLOCATED"
	ReasonBudgetExceeded   Reason = "BUDGET_EXCEEDED"
	ReasonNoPath           Reason = "NO_PATH"
	ReasonNotAllocated     Reason = "NOT_ALLOCATED"
	ReasonRootNode         Reason = "ROOT_NODE"
	ReasonHasDependents    Reason = "HAS_DEPENDENTS"
	ReasonUnknownClass     Reason = "UNKNOWN_CLASS"
	ReasonNoRoot           Reason = "NO_ROOT"
)

// RejectedError explains why an allocate, deallocate or class change was
// refused. State is never modified when one is returned.
type RejectedError struct {
	Reason Reason
	NodeID string

	// Cost and Available are set for BUDGET_EXCEEDED.
	Cost      int
	Available int

	// Dependents is set for HAS_DEPENDENTS.
	Dependents []string
}

func (e *RejectedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Reason, e.NodeID)
	switch e.Reason {
	case ReasonBudgetExceeded:
		fmt.Fprintf(&b, " (needs %d, %d available)", e.Cost, e.Available)
	case ReasonHasDependents:
		fmt.Fprintf(&b, " (would strand %s)", strings.Join(e.Dependents, ", "))
	}
	return b.String()
}

// Is matches ErrRejected.
func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

func reject(reason Reason, id string) *RejectedError {
	return &RejectedError{Reason: reason, NodeID: id}
}

// ReasonOf extracts the rejection code from err, or "" if err is not a
// *RejectedError.
func ReasonOf(err error) Reason {
	var re *RejectedError
	if errors.As(err, &re) {
		return re.Reason
	}
	return ""
}
