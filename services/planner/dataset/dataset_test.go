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
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/treeplanner/services/planner/graph"
)

const tinyTree = `{
  "version": "tiny",
  "classes": [{"id": "warrior", "startNodeId": "root"}],
  "nodes": [
    {"id": "root", "name": "Root", "kind": "start", "x": 0, "y": 0, "isRoot": true},
    {"id": "a", "name": "A", "kind": "small", "x": 10, "y": 0}
  ],
  "connections": [{"from": "root", "to": "a"}]
}`

// unlinkedTree has no edges; all nodes sit inside the unit square.
const unlinkedTree = `{
  "version": "unlinked",
  "nodes": [
    {"id": "s", "name": "S", "kind": "start", "x": 0, "y": 0, "isRoot": true},
    {"id": "m", "name": "M", "kind": "small", "x": 0.05, "y": 0},
    {"id": "n", "name": "N", "kind": "small", "x": 0.1, "y": 0}
  ]
}`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

type staticSource struct {
	name string
	data string
	err  error
}

func (s staticSource) Name() string { return s.name }

func (s staticSource) Fetch(ctx context.Context) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []byte(s.data), nil
}

type fakeS3 struct {
	body   string
	err    error
	bucket string
	key    string
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.bucket = aws.ToString(in.Bucket)
	f.key = aws.ToString(in.Key)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

func TestParseSource(t *testing.T) {
	tests := []struct {
		uri  string
		name string
		kind string
	}{
		{"embedded", "embedded", "embedded"},
		{"/data/tree.json", "file:///data/tree.json", "file"},
		{"file:///data/tree.json", "file:///data/tree.json", "file"},
		{"https://example.com/tree.json", "https://example.com/tree.json", "http"},
		{"s3://bucket/trees/v1.json", "s3://bucket/trees/v1.json", "s3"},
		{"gs://bucket/trees/v1.json", "gs://bucket/trees/v1.json", "gcs"},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			src, err := ParseSource(tt.uri, SourceOptions{})
			require.NoError(t, err)
			assert.Equal(t, tt.name, src.Name())
			assert.Equal(t, tt.kind, sourceKind(src))
		})
	}

	for _, bad := range []string{"", "  ", "ftp://host/tree.json", "s3://bucket", "gs:///object"} {
		t.Run("invalid "+bad, func(t *testing.T) {
			_, err := ParseSource(bad, SourceOptions{})
			assert.ErrorIs(t, err, ErrUnsupportedSource)
		})
	}
}

func TestParseSources_StopsAtFirstError(t *testing.T) {
	_, err := ParseSources([]string{"embedded", "ftp://x/y"}, SourceOptions{})
	assert.ErrorIs(t, err, ErrUnsupportedSource)

	srcs, err := ParseSources([]string{"/a.json", "embedded"}, SourceOptions{})
	require.NoError(t, err)
	require.Len(t, srcs, 2)
	assert.Equal(t, "embedded", srcs[1].Name())
}

func TestEmbeddedSource_LoadsSeedTree(t *testing.T) {
	data, err := Embedded().Fetch(context.Background())
	require.NoError(t, err)

	ds, err := graph.Decode(data)
	require.NoError(t, err)
	g, err := graph.Load(context.Background(), ds)
	require.NoError(t, err)

	assert.Equal(t, "seed-1", g.Version())
	assert.Equal(t, 13, g.Len())
	assert.Len(t, g.Classes(), 2)
	root, ok := g.RootForClass("ranger")
	require.True(t, ok)
	assert.Equal(t, "ranger_start", root.ID)

	// Callers get their own copy.
	data[0] = 'x'
	again, _ := Embedded().Fetch(context.Background())
	assert.Equal(t, byte('{'), again[0])
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "tree.json", tinyTree)

	data, err := NewFileSource(p).Fetch(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, tinyTree, string(data))

	_, err = NewFileSource(filepath.Join(dir, "missing.json")).Fetch(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewFileSource(p).Fetch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tree.json":
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, tinyTree)
		default:
			http.Error(w, "nope", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	data, err := NewHTTPSource(srv.URL+"/tree.json", srv.Client()).Fetch(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, tinyTree, string(data))

	_, err = NewHTTPSource(srv.URL+"/other.json", nil).Fetch(context.Background())
	assert.ErrorIs(t, err, ErrHTTPStatus)
}

func TestS3Source(t *testing.T) {
	fake := &fakeS3{body: tinyTree}
	src := NewS3Source("trees", "poe/v1.json", S3Options{})
	src.client = fake

	data, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, tinyTree, string(data))
	assert.Equal(t, "trees", fake.bucket)
	assert.Equal(t, "poe/v1.json", fake.key)

	boom := errors.New("access denied")
	src.client = &fakeS3{err: boom}
	_, err = src.Fetch(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestGCSSource(t *testing.T) {
	src := NewGCSSource("trees", "poe/v1.json", GCSOptions{})
	var gotBucket, gotObject string
	src.open = func(_ context.Context, bucket, object string) (io.ReadCloser, error) {
		gotBucket, gotObject = bucket, object
		return io.NopCloser(strings.NewReader(tinyTree)), nil
	}

	data, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, tinyTree, string(data))
	assert.Equal(t, "trees", gotBucket)
	assert.Equal(t, "poe/v1.json", gotObject)
	assert.NoError(t, src.Close())
}

func TestReadLimited(t *testing.T) {
	data, err := readLimited(strings.NewReader("abc"))
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))

	_, err = readLimited(io.LimitReader(zeroReader{}, MaxDatasetSize+10))
	assert.ErrorIs(t, err, ErrTooLarge)
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

func TestNewLoader_NoSources(t *testing.T) {
	_, err := NewLoader(nil, LoaderOptions{})
	assert.ErrorIs(t, err, ErrNoSources)
}

func TestLoader_FallsBackInOrder(t *testing.T) {
	dir := t.TempDir()
	sources := []Source{
		NewFileSource(filepath.Join(dir, "missing.json")),
		staticSource{name: "broken", data: "{not json"},
		staticSource{name: "tiny", data: tinyTree},
		Embedded(),
	}
	l, err := NewLoader(sources, LoaderOptions{})
	require.NoError(t, err)

	res, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tiny", res.Source)
	assert.Equal(t, "tiny", res.Graph.Version())
	assert.False(t, res.Synthesized)
	require.Len(t, res.Skipped, 2)
	assert.ErrorIs(t, res.Skipped[0], os.ErrNotExist)
	assert.ErrorIs(t, res.Skipped[1], graph.ErrMalformedDataset)
}

func TestLoader_AllFail(t *testing.T) {
	boom := errors.New("unreachable")
	l, err := NewLoader([]Source{
		staticSource{name: "a", err: boom},
		staticSource{name: "b", data: `{"nodes": []}`},
	}, LoaderOptions{})
	require.NoError(t, err)

	_, err = l.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllSourcesFailed)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, graph.ErrMalformedDataset)
	assert.Contains(t, err.Error(), "a: unreachable")
}

func TestLoader_Synthesize(t *testing.T) {
	src := []Source{staticSource{name: "unlinked", data: unlinkedTree}}

	l, err := NewLoader(src, LoaderOptions{Synthesize: true})
	require.NoError(t, err)
	res, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Synthesized)
	assert.Len(t, res.Graph.Connections(), 2)
	assert.ElementsMatch(t, []string{"s", "n"}, res.Graph.Neighbors("m"))

	l, err = NewLoader(src, LoaderOptions{})
	require.NoError(t, err)
	res, err = l.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Synthesized)
	assert.Empty(t, res.Graph.Connections())
}

func TestLoader_CancelledContext(t *testing.T) {
	l, err := NewLoader([]Source{Embedded()}, LoaderOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// gatedSource blocks Fetch until release is closed.
type gatedSource struct {
	started chan struct{}
	release chan struct{}
}

func (g gatedSource) Name() string { return "gated" }

func (g gatedSource) Fetch(ctx context.Context) ([]byte, error) {
	select {
	case g.started <- struct{}{}:
	default:
	}
	select {
	case <-g.release:
		return []byte(tinyTree), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestLoader_CallerCancelDoesNotFailSharedLoad(t *testing.T) {
	src := gatedSource{started: make(chan struct{}, 1), release: make(chan struct{})}
	l, err := NewLoader([]Source{src}, LoaderOptions{})
	require.NoError(t, err)

	type outcome struct {
		res *Result
		err error
	}
	ctxA, cancelA := context.WithCancel(context.Background())
	doneA := make(chan outcome, 1)
	go func() {
		res, err := l.Load(ctxA)
		doneA <- outcome{res, err}
	}()
	<-src.started

	doneB := make(chan outcome, 1)
	go func() {
		res, err := l.Load(context.Background())
		doneB <- outcome{res, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	a := <-doneA
	assert.ErrorIs(t, a.err, context.Canceled)
	assert.Nil(t, a.res)

	close(src.release)
	b := <-doneB
	require.NoError(t, b.err)
	assert.Equal(t, "gated", b.res.Source)
}

func TestNewWatcher(t *testing.T) {
	noop := func(context.Context) error { return nil }

	_, err := NewWatcher([]Source{Embedded()}, noop, WatcherOptions{})
	assert.ErrorIs(t, err, ErrNothingToWatch)

	_, err = NewWatcher([]Source{NewFileSource("/tmp/x.json")}, nil, WatcherOptions{})
	assert.Error(t, err)

	w, err := NewWatcher([]Source{NewFileSource("/tmp/a.json"), Embedded(), NewFileSource("/tmp/b.json")}, noop, WatcherOptions{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"/tmp/a.json", "/tmp/b.json"}, w.Files())
	assert.Len(t, w.dirs, 1)
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "tree.json", tinyTree)
	writeFile(t, dir, "other.json", "{}")

	reloads := make(chan struct{}, 8)
	w, err := NewWatcher([]Source{NewFileSource(p)}, func(context.Context) error {
		reloads <- struct{}{}
		return nil
	}, WatcherOptions{Settle: 10 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Writes are retried until the watcher is registered and reacts.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(p, []byte(tinyTree), 0o644)
		select {
		case <-reloads:
			return true
		default:
			return false
		}
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcher_IgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "tree.json")
	w, err := NewWatcher([]Source{NewFileSource(p)}, func(context.Context) error { return nil }, WatcherOptions{})
	require.NoError(t, err)

	assert.False(t, w.relevantName(filepath.Join(dir, "other.json")))
	assert.True(t, w.relevantName(p))
}
