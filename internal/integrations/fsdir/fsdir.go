// Package fsdir serves dataset references from a local directory, the
// default source for file://name refs.
package fsdir

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type Source struct {
	Dir string
}

// New creates a source rooted at dir. Refs resolve to dir/<ref>, with path
// escapes rejected.
func New(dir string) Source {
	return Source{Dir: dir}
}

func (s Source) Scheme() string { return "file" }

func (s Source) Fetch(ctx context.Context, ref string) ([]byte, error) {
	clean := filepath.Clean(ref)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return nil, fmt.Errorf("dataset ref %q escapes the dataset directory", ref)
	}
	data, err := os.ReadFile(filepath.Join(s.Dir, clean))
	if err != nil {
		return nil, fmt.Errorf("read dataset %q: %w", ref, err)
	}
	return data, nil
}
