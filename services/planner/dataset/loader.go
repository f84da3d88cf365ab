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
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/treeplanner/services/planner/graph"
	"github.com/AleutianAI/treeplanner/services/planner/treebuild"
)

// DefaultFetchTimeout bounds a single source attempt.
const DefaultFetchTimeout = 10 * time.Second

// LoaderOptions configures a Loader.
type LoaderOptions struct {
	// FetchTimeout bounds each source attempt. Zero means DefaultFetchTimeout.
	FetchTimeout time.Duration

	// Synthesize builds connections for datasets that declare none.
	Synthesize bool

	// Synth tunes synthesis. The zero value uses treebuild.DefaultOptions.
	Synth treebuild.Options

	// Logger receives per-source failures. Nil means slog.Default().
	Logger *slog.Logger
}

// Result is a successfully loaded dataset.
type Result struct {
	Graph *graph.Graph

	// Source names the source that produced Graph.
	Source string

	// Synthesized is true when connections were generated.
	Synthesized bool

	// Skipped holds the errors of sources tried before Source.
	Skipped []error
}

// Loader tries its sources in order and returns the first that loads.
//
// # Thread Safety
//
// Safe for concurrent use. Concurrent Load calls share one attempt.
type Loader struct {
	sources []Source
	opts    LoaderOptions
	logger  *slog.Logger
	group   singleflight.Group
}

// NewLoader creates a Loader over a fallback chain.
func NewLoader(sources []Source, opts LoaderOptions) (*Loader, error) {
	if len(sources) == 0 {
		return nil, ErrNoSources
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		sources: append([]Source(nil), sources...),
		opts:    opts,
		logger:  logger.With(slog.String("component", "dataset")),
	}, nil
}

// Sources returns the fallback chain.
func (l *Loader) Sources() []Source {
	return append([]Source(nil), l.sources...)
}

// Load walks the fallback chain.
//
// # Description
//
// Each source is fetched under its own timeout, decoded, completed with
// synthesized connections when enabled and the dataset has none, and then
// validated by graph.Load. The first source to pass wins. Calls that
// overlap an in-flight Load wait for and share its result. The shared load
// runs detached from any one caller's cancellation and is bounded by the
// per-source timeout; a caller whose ctx ends stops waiting on its own.
//
// # Outputs
//
//   - *Result: The loaded graph and where it came from.
//   - error: Wraps ErrAllSourcesFailed and every per-source error when
//     nothing loaded, or the context error if ctx ended first.
func (l *Loader) Load(ctx context.Context) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch := l.group.DoChan("load", func() (any, error) {
		return l.load(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*Result), nil
	}
}

func (l *Loader) load(ctx context.Context) (*Result, error) {
	var errs []error
	for _, src := range l.sources {
		kind := sourceKind(src)
		start := time.Now()
		g, synthesized, err := l.try(ctx, src)
		fetchDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		if err != nil {
			fetchTotal.WithLabelValues(kind, "error").Inc()
			l.logger.Warn("dataset source failed",
				slog.String("source", src.Name()),
				slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			continue
		}

		fetchTotal.WithLabelValues(kind, "ok").Inc()
		l.logger.Info("dataset loaded",
			slog.String("source", src.Name()),
			slog.String("version", g.Version()),
			slog.Int("nodes", g.Len()),
			slog.Bool("synthesized", synthesized))
		return &Result{Graph: g, Source: src.Name(), Synthesized: synthesized, Skipped: errs}, nil
	}
	return nil, fmt.Errorf("%w: %w", ErrAllSourcesFailed, errors.Join(errs...))
}

func (l *Loader) try(ctx context.Context, src Source) (*graph.Graph, bool, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, l.opts.FetchTimeout)
	defer cancel()

	data, err := src.Fetch(fetchCtx)
	if err != nil {
		return nil, false, err
	}
	ds, err := graph.Decode(data)
	if err != nil {
		return nil, false, err
	}

	synthesized := false
	if l.opts.Synthesize && !ds.HasConnections() {
		ds = treebuild.Complete(ds, l.opts.Synth)
		synthesized = true
	}

	g, err := graph.Load(ctx, ds)
	if err != nil {
		return nil, false, err
	}
	return g, synthesized, nil
}
