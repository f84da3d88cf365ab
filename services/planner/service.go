// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package planner composes the skill tree planner: it loads a dataset
// through the fallback chain, builds the spatial and search indexes over the
// resulting graph, and owns the allocation store and the saved-build
// backend.
//
// # Reloads
//
// Reload fetches a fresh graph and swaps every index in one step. The
// allocation store is kept and re-pointed at the new graph, so callers
// holding it keep a valid handle. A failed reload leaves the previous graph
// in place and records the error in Status.
package planner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/treeplanner/pkg/validation"
	"github.com/AleutianAI/treeplanner/services/planner/allocation"
	"github.com/AleutianAI/treeplanner/services/planner/buildstore"
	"github.com/AleutianAI/treeplanner/services/planner/config"
	"github.com/AleutianAI/treeplanner/services/planner/dataset"
	"github.com/AleutianAI/treeplanner/services/planner/graph"
	"github.com/AleutianAI/treeplanner/services/planner/search"
	"github.com/AleutianAI/treeplanner/services/planner/spatial"
)

var tracer = otel.Tracer("planner.service")

// Options configures New.
type Options struct {
	// Config is required.
	Config *config.Config

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Sources replaces Config.Dataset.Sources when non-nil.
	Sources []dataset.Source

	// Builds replaces the backend named by Config.Persistence when non-nil.
	// The service closes it on Close either way.
	Builds buildstore.Store

	// Now is passed to the allocation store.
	Now func() time.Time
}

// Status describes the most recent load attempt.
type Status struct {
	Loaded      bool
	Source      string
	Version     string
	Nodes       int
	Synthesized bool
	LoadedAt    time.Time

	// Err is the error of the last attempt, nil when it succeeded.
	Err error
}

// Service is the planner's composition root.
//
// # Thread Safety
//
// Safe for concurrent use. Queries take a read lock; Load and Reload swap
// the indexes under the write lock.
type Service struct {
	cfg     *config.Config
	logger  *slog.Logger
	sources []dataset.Source
	loader  *dataset.Loader
	builds  buildstore.Store
	now     func() time.Time

	mu      sync.RWMutex
	graph   *graph.Graph
	spatial *spatial.Index
	search  *search.Index
	store   *allocation.Store
	status  Status
}

// New wires a Service without loading anything.
//
// # Inputs
//
//   - ctx: Used to open the build store.
//   - opts: Options; Config is required.
//
// # Outputs
//
//   - *Service: Ready for Load.
//   - error: Source parse or build store failures.
func New(ctx context.Context, opts Options) (*Service, error) {
	if opts.Config == nil {
		return nil, ErrNilConfig
	}
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sources := opts.Sources
	if sources == nil {
		var err error
		sources, err = dataset.ParseSources(cfg.Dataset.Sources, dataset.SourceOptions{
			S3: dataset.S3Options{
				Region:    cfg.Dataset.S3.Region,
				Endpoint:  cfg.Dataset.S3.Endpoint,
				PathStyle: cfg.Dataset.S3.PathStyle,
			},
			GCS: dataset.GCSOptions{CredentialsFile: cfg.Dataset.GCS.CredentialsFile},
		})
		if err != nil {
			return nil, err
		}
	}

	loader, err := dataset.NewLoader(sources, dataset.LoaderOptions{
		FetchTimeout: cfg.Dataset.FetchTimeout,
		Synthesize:   cfg.Dataset.Synthesize,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	builds := opts.Builds
	if builds == nil {
		builds, err = buildstore.Open(ctx, buildstore.Config{
			Driver: cfg.Persistence.Driver,
			Path:   cfg.Persistence.Path,
			DSN:    cfg.Persistence.DSN,
			Logger: logger,
		})
		if err != nil {
			return nil, fmt.Errorf("open build store: %w", err)
		}
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "planner")),
		sources: sources,
		loader:  loader,
		builds:  builds,
		now:     now,
	}, nil
}

// Load fetches the dataset and installs it. It is the same as Reload; the
// separate name reads better at startup.
func (s *Service) Load(ctx context.Context) error {
	return s.Reload(ctx)
}

// Reload fetches the dataset through the fallback chain and swaps it in.
//
// # Outputs
//
//   - error: The loader error when every source failed. The previously
//     loaded graph, if any, stays active.
func (s *Service) Reload(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "planner.Reload")
	defer span.End()

	res, err := s.loader.Load(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.mu.Lock()
		s.status.Err = err
		s.mu.Unlock()
		s.logger.Error("dataset load failed", slog.String("error", err.Error()))
		return err
	}

	g := res.Graph
	sp := spatial.Build(g.Nodes(), spatial.Options{
		NodeRadius:    s.cfg.Spatial.NodeRadius,
		NearestWindow: s.cfg.Spatial.NearestWindow,
	})
	idx := search.Build(g.Nodes(), s.cfg.Search.CacheSize)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.graph = g
	s.spatial = sp
	s.search = idx
	if s.store == nil {
		s.store = allocation.New(g, allocation.Options{
			MaxPoints:    s.cfg.Allocation.MaxPoints,
			HistoryDepth: s.cfg.Allocation.HistoryDepth,
			Logger:       s.logger,
			Now:          s.now,
		})
	} else {
		s.store.LoadSkillTree(g)
	}
	s.status = Status{
		Loaded:      true,
		Source:      res.Source,
		Version:     g.Version(),
		Nodes:       g.Len(),
		Synthesized: res.Synthesized,
		LoadedAt:    s.now(),
	}
	span.SetAttributes(
		attribute.String("dataset.source", res.Source),
		attribute.String("dataset.version", g.Version()),
	)
	return nil
}

// Status reports the last load attempt.
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Sources returns the dataset fallback chain.
func (s *Service) Sources() []dataset.Source {
	return append([]dataset.Source(nil), s.sources...)
}

// Graph returns the active graph.
func (s *Service) Graph() (*graph.Graph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.graph == nil {
		return nil, ErrNotLoaded
	}
	return s.graph, nil
}

// Store returns the allocation store. The same store is returned across
// reloads.
func (s *Service) Store() (*allocation.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.store == nil {
		return nil, ErrNotLoaded
	}
	return s.store, nil
}

// Node looks up a node in the active graph.
func (s *Service) Node(id string) (graph.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.graph == nil {
		return graph.Node{}, false
	}
	return s.graph.Node(id)
}

// QueryViewport returns the nodes whose boxes intersect b.
func (s *Service) QueryViewport(ctx context.Context, b spatial.BBox) ([]graph.Node, error) {
	s.mu.RLock()
	idx := s.spatial
	s.mu.RUnlock()
	if idx == nil {
		return nil, ErrNotLoaded
	}
	return idx.QueryViewportContext(ctx, b), nil
}

// FindNearest returns up to k nodes closest to (x, y).
func (s *Service) FindNearest(x, y float64, k int) ([]spatial.Neighbor, error) {
	s.mu.RLock()
	idx := s.spatial
	s.mu.RUnlock()
	if idx == nil {
		return nil, ErrNotLoaded
	}
	return idx.FindNearest(x, y, k), nil
}

// Search runs a name query. k <= 0 uses the configured default limit.
func (s *Service) Search(ctx context.Context, query string, k int) ([]search.Result, error) {
	s.mu.RLock()
	idx := s.search
	s.mu.RUnlock()
	if idx == nil {
		return nil, ErrNotLoaded
	}
	if k <= 0 {
		k = s.cfg.Search.DefaultLimit
	}
	return idx.Search(ctx, query, k), nil
}

// SaveBuild stores the current allocation under name, overwriting any
// existing build with that name. Surrounding space is trimmed.
func (s *Service) SaveBuild(ctx context.Context, name string) (buildstore.Build, error) {
	store, err := s.Store()
	if err != nil {
		return buildstore.Build{}, err
	}
	name, err = validation.SanitizeName(name)
	if err != nil {
		return buildstore.Build{}, fmt.Errorf("%w: %v", buildstore.ErrInvalidName, err)
	}
	b, err := s.builds.Save(ctx, buildstore.Build{Name: name, Snapshot: store.ExportState()})
	if err != nil {
		return buildstore.Build{}, err
	}
	s.logger.Info("build saved",
		slog.String("name", b.Name),
		slog.Int("nodes", len(b.Snapshot.AllocatedNodeIDs)))
	return b, nil
}

// RestoreBuild loads a saved build into the allocation store.
//
// # Outputs
//
//   - buildstore.Build: The restored record.
//   - error: buildstore.ErrNotFound, or an error wrapping
//     allocation.ErrInvalidSnapshot when the build no longer fits the
//     loaded graph. The allocation is unchanged on error.
func (s *Service) RestoreBuild(ctx context.Context, name string) (buildstore.Build, error) {
	store, err := s.Store()
	if err != nil {
		return buildstore.Build{}, err
	}
	b, err := s.builds.Load(ctx, name)
	if err != nil {
		return buildstore.Build{}, err
	}
	if err := store.ImportState(b.Snapshot); err != nil {
		return buildstore.Build{}, fmt.Errorf("restore %q: %w", name, err)
	}
	return b, nil
}

// ListBuilds returns saved builds ordered by name.
func (s *Service) ListBuilds(ctx context.Context) ([]buildstore.Build, error) {
	return s.builds.List(ctx)
}

// LoadBuild returns a saved build without applying it.
func (s *Service) LoadBuild(ctx context.Context, name string) (buildstore.Build, error) {
	return s.builds.Load(ctx, name)
}

// DeleteBuild removes a saved build.
func (s *Service) DeleteBuild(ctx context.Context, name string) error {
	return s.builds.Delete(ctx, name)
}

// Watch reloads whenever a file source changes, until ctx ends.
//
// Returns dataset.ErrNothingToWatch when the chain has no file sources.
func (s *Service) Watch(ctx context.Context) error {
	w, err := dataset.NewWatcher(s.sources, s.Reload, dataset.WatcherOptions{
		Interval: s.cfg.Dataset.ReloadInterval,
		Logger:   s.logger,
	})
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

// Close releases the build store and any source clients.
func (s *Service) Close() error {
	var errs []error
	for _, src := range s.sources {
		if c, ok := src.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	errs = append(errs, s.builds.Close())
	return errors.Join(errs...)
}
