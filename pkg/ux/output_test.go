// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePersonalityLevel(t *testing.T) {
	tests := map[string]PersonalityLevel{
		"full":    PersonalityFull,
		"":        PersonalityFull,
		"bogus":   PersonalityFull,
		"Minimal": PersonalityMinimal,
		"m":       PersonalityMinimal,
		"machine": PersonalityMachine,
		" quiet ": PersonalityMachine,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParsePersonalityLevel(in), in)
	}
}

func TestDetectPersonality(t *testing.T) {
	t.Setenv(EnvPersonality, "")
	assert.Equal(t, PersonalityMachine, DetectPersonality(&bytes.Buffer{}))

	t.Setenv(EnvPersonality, "minimal")
	assert.Equal(t, PersonalityMinimal, DetectPersonality(&bytes.Buffer{}))
}

func TestPrinter_Machine(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, PersonalityMachine)

	p.Title("ignored")
	p.Muted("ignored")
	p.Success("saved")
	p.Warning("careful")
	p.Error("broken")
	p.KeyValue("nodes", 13)
	p.Row("a", "b")
	p.Path([]string{"x", "y"})

	assert.Equal(t, "OK\tsaved\nWARN\tcareful\nERROR\tbroken\nnodes\t13\na\tb\nx\ty\n", buf.String())
	assert.Equal(t, "3/10", p.ProgressBar(3, 10, 20))
}

func TestPrinter_Minimal(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, PersonalityMinimal)

	p.Success("saved")
	p.Path([]string{"root", "a"})
	p.Box("Build", "tank")

	assert.Equal(t, "✓ saved\nroot → a\nBuild\ntank\n", buf.String())
	assert.Equal(t, "█████░░░░░ 5/10", p.ProgressBar(5, 10, 10))
	assert.Equal(t, "██ 9/4", p.ProgressBar(9, 4, 2))
}
