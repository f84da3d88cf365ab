// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dataset

import (
	"context"
	_ "embed"
)

// EmbeddedName is the URI that selects the built-in seed tree.
const EmbeddedName = "embedded"

//go:embed seed/tree.json
var seedTree []byte

// EmbeddedSource serves the seed tree compiled into the binary. It is the
// usual last entry of a fallback chain.
type EmbeddedSource struct{}

// Embedded returns the seed tree source.
func Embedded() EmbeddedSource { return EmbeddedSource{} }

// Name returns EmbeddedName.
func (EmbeddedSource) Name() string { return EmbeddedName }

// Fetch returns a copy of the seed tree.
func (EmbeddedSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]byte(nil), seedTree...), nil
}
