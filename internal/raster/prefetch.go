package raster

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Prefetcher warms the render cache for pages around the one being viewed.
// A generation counter tracks the current view; results arriving for a
// stale generation are discarded, never applied to the new view.
type Prefetcher struct {
	src *Source
	gen atomic.Uint64
}

// NewPrefetcher wraps a source.
func NewPrefetcher(src *Source) *Prefetcher {
	return &Prefetcher{src: src}
}

// Invalidate marks all in-flight prefetches stale. Called when the view
// changes (zoom, rotation, navigation away).
func (p *Prefetcher) Invalidate() {
	p.gen.Add(1)
}

// Prefetch rasterizes the pages within radius of page at the given view
// parameters on background workers. It returns once all workers finish;
// rasterization failures during prefetch are ignored, the interactive path
// reports them.
func (p *Prefetcher) Prefetch(ctx context.Context, page int, zoom float64, rotation int, radius int) error {
	gen := p.gen.Load()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(2)

	for off := -radius; off <= radius; off++ {
		target := page + off
		if off == 0 || target < 0 || target >= p.src.Pages() {
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if p.gen.Load() != gen {
				// View moved on; the result would be stale.
				return nil
			}
			if _, err := p.src.Rasterize(target, zoom, rotation); err != nil {
				return nil
			}
			if p.gen.Load() != gen {
				// Completed after the view changed: discard.
				p.src.cache.InvalidatePage(target)
			}
			return nil
		})
	}

	return g.Wait()
}
