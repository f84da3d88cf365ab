// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"errors"
	"fmt"
)

// ErrMalformedDataset matches every *LoadError via errors.Is.
var ErrMalformedDataset = errors.New("malformed dataset")

// LoadError reports a dataset that cannot be turned into a Graph.
//
// Callers are expected to fall back to another data source when they see it.
type LoadError struct {
	// Reason is a short machine-friendly description ("decode", "validation",
	// "duplicate node", ...).
	Reason string

	// Err is the underlying cause, if any.
	Err error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("load dataset: %s: %v", e.Reason, e.Err)
	}
	return "load dataset: " + e.Reason
}

// Unwrap returns the underlying cause.
func (e *LoadError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrMalformedDataset) match any LoadError.
func (e *LoadError) Is(target error) bool { return target == ErrMalformedDataset }

func loadErrorf(reason, format string, args ...any) *LoadError {
	return &LoadError{Reason: reason, Err: fmt.Errorf(format, args...)}
}
