// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dataset fetches skill tree resources from local files, HTTP, S3,
// GCS or the embedded seed tree, and turns the first one that loads into a
// graph.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// MaxDatasetSize caps how many bytes a single fetch may return.
const MaxDatasetSize = 64 << 20

var (
	// ErrNoSources is returned when a loader is built with an empty list.
	ErrNoSources = errors.New("no dataset sources configured")

	// ErrAllSourcesFailed wraps the joined per-source errors when every
	// source in the fallback chain failed.
	ErrAllSourcesFailed = errors.New("all dataset sources failed")

	// ErrUnsupportedSource is returned by ParseSource for unknown schemes.
	ErrUnsupportedSource = errors.New("unsupported dataset source")

	// ErrTooLarge is returned when a source yields more than MaxDatasetSize.
	ErrTooLarge = errors.New("dataset exceeds maximum size")

	// ErrHTTPStatus is returned for non-2xx HTTP responses.
	ErrHTTPStatus = errors.New("unexpected http status")
)

// Source fetches the raw bytes of one dataset.
type Source interface {
	// Name identifies the source in logs and metrics.
	Name() string

	// Fetch returns the full resource. Implementations honour ctx.
	Fetch(ctx context.Context) ([]byte, error)
}

// SourceOptions carries client settings shared by the remote sources.
type SourceOptions struct {
	HTTPClient *http.Client
	S3         S3Options
	GCS        GCSOptions
}

// ParseSource builds a Source from a URI.
//
// # Inputs
//
//   - uri: One of "embedded", "http://...", "https://...",
//     "s3://bucket/key", "gs://bucket/object", "file:///path" or a bare path.
//   - opts: Client settings for the remote schemes.
//
// # Outputs
//
//   - Source: The source, not yet fetched.
//   - error: ErrUnsupportedSource for unknown schemes or missing parts.
func ParseSource(uri string, opts SourceOptions) (Source, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil, fmt.Errorf("%w: empty uri", ErrUnsupportedSource)
	}
	if uri == EmbeddedName {
		return Embedded(), nil
	}
	if !strings.Contains(uri, "://") {
		return NewFileSource(uri), nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrUnsupportedSource, uri, err)
	}

	switch u.Scheme {
	case "file":
		return NewFileSource(u.Path), nil
	case "http", "https":
		return NewHTTPSource(uri, opts.HTTPClient), nil
	case "s3", "gs":
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return nil, fmt.Errorf("%w: %q needs bucket and key", ErrUnsupportedSource, uri)
		}
		if u.Scheme == "s3" {
			return NewS3Source(u.Host, key, opts.S3), nil
		}
		return NewGCSSource(u.Host, key, opts.GCS), nil
	default:
		return nil, fmt.Errorf("%w: scheme %q", ErrUnsupportedSource, u.Scheme)
	}
}

// ParseSources parses a list of URIs in order.
func ParseSources(uris []string, opts SourceOptions) ([]Source, error) {
	out := make([]Source, 0, len(uris))
	for _, uri := range uris {
		s, err := ParseSource(uri, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// readLimited reads r fully, failing with ErrTooLarge past MaxDatasetSize.
func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxDatasetSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxDatasetSize {
		return nil, ErrTooLarge
	}
	return data, nil
}
