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
	"fmt"
	"io"
	"sync"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSOptions configures the GCS client. An empty CredentialsFile uses
// application default credentials.
type GCSOptions struct {
	CredentialsFile string
}

// objectOpener opens one object for reading.
type objectOpener func(ctx context.Context, bucket, object string) (io.ReadCloser, error)

// GCSSource fetches a dataset object from Google Cloud Storage.
//
// # Thread Safety
//
// Safe for concurrent use. The storage client is created on first Fetch
// and kept until Close.
type GCSSource struct {
	bucket string
	object string
	opts   GCSOptions

	mu     sync.Mutex
	client *storage.Client
	open   objectOpener
}

// NewGCSSource creates a GCSSource for gs://bucket/object.
func NewGCSSource(bucket, object string, opts GCSOptions) *GCSSource {
	s := &GCSSource{bucket: bucket, object: object, opts: opts}
	s.open = s.openWithClient
	return s
}

// Name returns the gs URI.
func (s *GCSSource) Name() string { return "gs://" + s.bucket + "/" + s.object }

func (s *GCSSource) openWithClient(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	s.mu.Lock()
	if s.client == nil {
		var clientOpts []option.ClientOption
		if s.opts.CredentialsFile != "" {
			clientOpts = append(clientOpts, option.WithCredentialsFile(s.opts.CredentialsFile))
		}
		c, err := storage.NewClient(ctx, clientOpts...)
		if err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
		}
		s.client = c
	}
	client := s.client
	s.mu.Unlock()

	return client.Bucket(bucket).Object(object).NewReader(ctx)
}

// Fetch downloads the object.
func (s *GCSSource) Fetch(ctx context.Context) ([]byte, error) {
	r, err := s.open(ctx, s.bucket, s.object)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.Name(), err)
	}
	defer r.Close()
	return readLimited(r)
}

// Close releases the storage client if one was created.
func (s *GCSSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}
