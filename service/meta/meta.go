// Package meta loads deployment documents (authorization policy, user
// directory) from any location supported by afs: local files, mem://,
// cloud storage. ${env.KEY} expressions in a document are expanded before
// it is parsed.
package meta

import (
	"context"
	"fmt"

	"github.com/viant/afs"
)

// Service downloads and expands documents.
type Service struct {
	fs     afs.Service
	lookup func(string) string
}

// Option customises a Service.
type Option func(*Service)

// WithLookup replaces os.Getenv as the ${env.KEY} source.
func WithLookup(lookup func(string) string) Option {
	return func(s *Service) { s.lookup = lookup }
}

// New creates a Service; a nil fs means afs.New().
func New(fs afs.Service, options ...Option) *Service {
	if fs == nil {
		fs = afs.New()
	}
	ret := &Service{fs: fs}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Download returns the expanded content of URL.
func (s *Service) Download(ctx context.Context, URL string) ([]byte, error) {
	if URL == "" {
		return nil, fmt.Errorf("meta: empty URL")
	}
	data, err := s.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("meta: failed to download %s: %w", URL, err)
	}
	return []byte(ExpandEnv(string(data), s.lookup)), nil
}

// Exists reports whether URL can be read.
func (s *Service) Exists(ctx context.Context, URL string) (bool, error) {
	return s.fs.Exists(ctx, URL)
}
