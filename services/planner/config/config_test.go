// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "planner.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 123, cfg.Allocation.MaxPoints)
	assert.Equal(t, 100, cfg.Allocation.HistoryDepth)
	assert.Equal(t, 20.0, cfg.Spatial.NodeRadius)
	assert.Equal(t, 150.0, cfg.Spatial.NearestWindow)
	assert.Equal(t, []string{"embedded"}, cfg.Dataset.Sources)
	assert.Equal(t, 2*time.Second, cfg.Dataset.ReloadInterval)
	assert.Equal(t, "memory", cfg.Persistence.Driver)
}

func TestLoad_FileOverlaysDefaults(t *testing.T) {
	path := writeFile(t, `
allocation:
  max_points: 40
dataset:
  sources: [./tree.json, embedded]
persistence:
  driver: sqlite
  path: /tmp/builds.db
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 40, cfg.Allocation.MaxPoints)
	assert.Equal(t, 100, cfg.Allocation.HistoryDepth, "absent keys keep defaults")
	assert.Equal(t, []string{"./tree.json", "embedded"}, cfg.Dataset.Sources)
	assert.Equal(t, "sqlite", cfg.Persistence.Driver)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PLANNER_ALLOCATION_MAX_POINTS", "77")
	t.Setenv("PLANNER_DATASET_SOURCES", "s3://trees/poe.json,embedded")
	t.Setenv("PLANNER_DATASET_S3_PATH_STYLE", "true")
	t.Setenv("PLANNER_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 77, cfg.Allocation.MaxPoints)
	assert.Equal(t, []string{"s3://trees/poe.json", "embedded"}, cfg.Dataset.Sources)
	assert.True(t, cfg.Dataset.S3.PathStyle)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero budget", "allocation:\n  max_points: 0\n"},
		{"unknown driver", "persistence:\n  driver: mongo\n"},
		{"badger without path", "persistence:\n  driver: badger\n"},
		{"postgres without dsn", "persistence:\n  driver: postgres\n"},
		{"no sources", "dataset:\n  sources: []\n"},
		{"bad level", "logging:\n  level: loud\n"},
		{"otlp without endpoint", "telemetry:\n  trace_exporter: otlp\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.body))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "allocation: [unclosed"))
	assert.Error(t, err)

	t.Setenv("PLANNER_ALLOCATION_MAX_POINTS", "many")
	_, err = Load("")
	assert.Error(t, err)
}

func TestMarshal_RoundTrip(t *testing.T) {
	cfg := Default()
	data, err := cfg.Marshal()
	require.NoError(t, err)

	path := writeFile(t, string(data))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
