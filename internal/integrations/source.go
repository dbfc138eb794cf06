// Package integrations resolves dataset references submitted to the run
// service. A reference has the form scheme://rest; each scheme is served by
// one registered source.
package integrations

import (
	"context"
	"fmt"
	"strings"
)

// DatasetSource fetches raw dataset documents by reference.
type DatasetSource interface {
	// Scheme is the reference prefix this source serves, e.g. "file".
	Scheme() string
	// Fetch returns the raw YAML document for ref (the part after
	// scheme://).
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// Registry maps reference schemes to sources.
type Registry struct {
	sources map[string]DatasetSource
}

func NewRegistry(srcs ...DatasetSource) *Registry {
	r := &Registry{sources: map[string]DatasetSource{}}
	for _, s := range srcs {
		r.sources[s.Scheme()] = s
	}
	return r
}

// Resolve splits ref into scheme and rest and dispatches to the matching
// source.
func (r *Registry) Resolve(ctx context.Context, ref string) ([]byte, error) {
	scheme, rest, ok := strings.Cut(ref, "://")
	if !ok {
		return nil, fmt.Errorf("dataset ref %q: missing scheme", ref)
	}
	src, ok := r.sources[scheme]
	if !ok {
		return nil, fmt.Errorf("dataset ref %q: no source for scheme %q", ref, scheme)
	}
	return src.Fetch(ctx, rest)
}
