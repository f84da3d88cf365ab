// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package buildstore persists named allocation snapshots.
//
// Four backends share one contract: memory (tests and throwaway sessions),
// badger (embedded), sqlite and postgres. Builds
// are keyed by name; saving an existing name overwrites its snapshot but
// keeps its ID and creation time.
package buildstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/treeplanner/pkg/validation"
	"github.com/AleutianAI/treeplanner/services/planner/allocation"
)

var (
	// ErrNotFound is returned when no build has the requested name.
	ErrNotFound = errors.New("build not found")

	// ErrInvalidName is returned for names that fail
	// validation.ValidateName.
	ErrInvalidName = errors.New("invalid build name")

	// ErrUnknownDriver is returned by Open for unsupported drivers.
	ErrUnknownDriver = errors.New("unknown buildstore driver")
)

// MaxNameLength bounds build names.
const MaxNameLength = validation.MaxNameLength

// Build is a saved snapshot.
type Build struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Snapshot  allocation.Snapshot `json:"snapshot"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// Store persists builds.
//
// Implementations are safe for concurrent use.
type Store interface {
	// Save inserts or overwrites the build named b.Name and returns the
	// stored record with ID and timestamps filled in.
	Save(ctx context.Context, b Build) (Build, error)

	// Load returns the named build or ErrNotFound.
	Load(ctx context.Context, name string) (Build, error)

	// List returns every build ordered by name.
	List(ctx context.Context) ([]Build, error)

	// Delete removes the named build or returns ErrNotFound.
	Delete(ctx context.Context, name string) error

	Close() error
}

// Config selects and configures a backend.
type Config struct {
	// Driver is one of memory, badger, sqlite, postgres.
	Driver string

	// Path is the badger directory or sqlite file.
	Path string

	// DSN is the postgres connection string.
	DSN string

	Logger *slog.Logger
}

// Open creates the configured backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	switch cfg.Driver {
	case "", "memory":
		return NewMemory(), nil
	case "badger":
		bc := DefaultBadgerConfig()
		bc.Path = cfg.Path
		bc.Logger = cfg.Logger
		return OpenBadger(bc)
	case "sqlite":
		return OpenSQLite(ctx, cfg.Path)
	case "postgres":
		return OpenPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

func checkName(name string) error {
	if err := validation.ValidateName(name); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	return nil
}

// stamp fills ID and timestamps for b, carrying them over from prev when
// the build already exists.
func stamp(b Build, prev *Build, now time.Time) Build {
	now = now.UTC().Truncate(time.Millisecond)
	if prev != nil {
		b.ID = prev.ID
		b.CreatedAt = prev.CreatedAt
	} else {
		b.ID = uuid.NewString()
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	return b
}
