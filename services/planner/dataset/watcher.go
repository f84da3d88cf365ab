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
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
)

// DefaultSettle is the pause between a change event and the reload it
// triggers, letting editors finish writing.
const DefaultSettle = 50 * time.Millisecond

// ErrNothingToWatch is returned when no file sources are present.
var ErrNothingToWatch = errors.New("no file sources to watch")

// ReloadFunc is invoked for each throttled change.
type ReloadFunc func(ctx context.Context) error

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	// Interval is the minimum time between reloads. Zero disables throttling.
	Interval time.Duration

	// Settle delays each reload after the triggering event. Zero means
	// DefaultSettle.
	Settle time.Duration

	Logger *slog.Logger
}

// Watcher reloads when a file source changes on disk.
//
// # Description
//
// The parent directory of every FileSource is watched so that atomic
// rename-on-save is seen. Write, create and rename events naming a watched
// file schedule one reload; events that arrive while a reload is pending
// are folded into it. A token bucket keeps reloads at least Interval apart.
type Watcher struct {
	files   map[string]struct{}
	dirs    []string
	reload  ReloadFunc
	limiter *rate.Limiter
	settle  time.Duration
	logger  *slog.Logger
}

// NewWatcher creates a Watcher over the file sources in sources. Other
// source kinds are ignored.
func NewWatcher(sources []Source, reload ReloadFunc, opts WatcherOptions) (*Watcher, error) {
	if reload == nil {
		return nil, errors.New("reload func is required")
	}
	files := make(map[string]struct{})
	seenDir := make(map[string]struct{})
	var dirs []string
	for _, s := range sources {
		fs, ok := s.(*FileSource)
		if !ok {
			continue
		}
		abs, err := filepath.Abs(fs.Path())
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", fs.Path(), err)
		}
		files[abs] = struct{}{}
		dir := filepath.Dir(abs)
		if _, ok := seenDir[dir]; !ok {
			seenDir[dir] = struct{}{}
			dirs = append(dirs, dir)
		}
	}
	if len(files) == 0 {
		return nil, ErrNothingToWatch
	}

	limit := rate.Inf
	if opts.Interval > 0 {
		limit = rate.Every(opts.Interval)
	}
	settle := opts.Settle
	if settle <= 0 {
		settle = DefaultSettle
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		files:   files,
		dirs:    dirs,
		reload:  reload,
		limiter: rate.NewLimiter(limit, 1),
		settle:  settle,
		logger:  logger.With(slog.String("component", "dataset.watch")),
	}, nil
}

// Files returns the absolute paths being watched.
func (w *Watcher) Files() []string {
	out := make([]string, 0, len(w.files))
	for f := range w.files {
		out = append(out, f)
	}
	return out
}

// Run watches until ctx is cancelled. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	for _, dir := range w.dirs {
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	w.logger.Info("watching dataset files", slog.Int("files", len(w.files)))

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if pending != nil || !w.relevant(event) {
				continue
			}
			delay := w.limiter.Reserve().Delay()
			if delay < w.settle {
				delay = w.settle
			}
			pending = time.After(delay)

		case <-pending:
			pending = nil
			w.fire(ctx)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	return w.relevantName(event.Name)
}

func (w *Watcher) relevantName(name string) bool {
	abs, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	_, ok := w.files[abs]
	return ok
}

func (w *Watcher) fire(ctx context.Context) {
	if err := w.reload(ctx); err != nil {
		reloadsTotal.WithLabelValues("error").Inc()
		w.logger.Warn("dataset reload failed", slog.String("error", err.Error()))
		return
	}
	reloadsTotal.WithLabelValues("ok").Inc()
}
