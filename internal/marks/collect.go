package marks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"filemarker/internal/inspect"
	"filemarker/internal/logging"

	"golang.org/x/sync/errgroup"
)

// Source records the marks one file contributed.
type Source struct {
	Path     string   `json:"path"`
	Language string   `json:"language"`
	Marks    []string `json:"marks"`
}

// Collector inspects files and unions their marks.
type Collector struct {
	registry *inspect.Registry
	workers  int
}

// NewCollector creates a Collector. workers bounds concurrent inspections.
func NewCollector(registry *inspect.Registry, workers int) *Collector {
	if registry == nil {
		registry = inspect.DefaultRegistry()
	}
	if workers < 1 {
		workers = 1
	}
	return &Collector{registry: registry, workers: workers}
}

// Collect inspects every file for variable and returns the union of the marks
// along with the per-file sources in input order. Files without a registered
// inspector are skipped. The first inspection failure cancels the rest.
func (c *Collector) Collect(ctx context.Context, files []string, variable string) (Set, []Source, error) {
	timer := logging.StartTimer(logging.CategorySelect, "Mark collection")
	defer timer.Stop()

	results := make([]*Source, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			in := c.registry.ForPath(path)
			if in == nil {
				logging.SelectDebug("Skipping %s: no inspector for %q", path, filepath.Ext(path))
				return nil
			}
			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			names, err := in.Inspect(path, content, variable)
			if err != nil {
				return err
			}
			logging.SelectDebug("%s: %s -> %v", in.Language(), path, names)
			results[i] = &Source{Path: path, Language: in.Language(), Marks: names}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	set := NewSet()
	sources := make([]Source, 0, len(files))
	for _, src := range results {
		if src == nil {
			continue
		}
		set.Add(src.Marks...)
		sources = append(sources, *src)
	}

	logging.Select("Collected %d marks from %d/%d files", set.Len(), len(sources), len(files))
	return set, sources, nil
}
