// Package raster wraps the external page rasterizer (go-fitz) behind the
// engine's boundary. Rasterization may fail; callers degrade to a
// placeholder background instead of failing the annotation layer.
package raster

import (
	"fmt"
	"image"
	"sync"

	"github.com/gen2brain/go-fitz"
)

// Error marks a failed rasterization. Never fatal to the annotation layer.
type Error struct {
	Page int
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("rasterize page %d: %v", e.Page, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Source rasterizes pages of one document. fitz documents are not safe for
// concurrent use, so calls are serialized; the cache soaks up the cost.
type Source struct {
	mu    sync.Mutex
	doc   *fitz.Document
	pages int
	cache *Cache
}

// NewSource opens the document at path for rasterization. cacheBytes
// bounds the render cache; zero disables caching.
func NewSource(path string, cacheBytes int64) (*Source, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open rasterizer for %s: %w", path, err)
	}
	return &Source{
		doc:   doc,
		pages: doc.NumPage(),
		cache: NewCache(cacheBytes),
	}, nil
}

// Pages returns the page count.
func (s *Source) Pages() int { return s.pages }

// Close releases the underlying document.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil
	}
	err := s.doc.Close()
	s.doc = nil
	s.cache.Clear()
	return err
}

// Rasterize renders a page at the given zoom and rotation. Results are
// cached; rotation is applied to the bitmap since the rasterizer itself
// renders unrotated pages.
func (s *Source) Rasterize(page int, zoom float64, rotation int) (image.Image, error) {
	if page < 0 || page >= s.pages {
		return nil, &Error{Page: page, Err: fmt.Errorf("page out of range (%d pages)", s.pages)}
	}
	if zoom <= 0 {
		return nil, &Error{Page: page, Err: fmt.Errorf("zoom %v", zoom)}
	}

	key := Key{Page: page, Zoom: zoom, Rotation: normRotation(rotation)}
	if img, ok := s.cache.Get(key); ok {
		return img, nil
	}

	s.mu.Lock()
	if s.doc == nil {
		s.mu.Unlock()
		return nil, &Error{Page: page, Err: fmt.Errorf("source closed")}
	}
	img, err := s.doc.ImageDPI(page, 72.0*zoom)
	s.mu.Unlock()
	if err != nil {
		return nil, &Error{Page: page, Err: err}
	}

	out := rotateImage(img, key.Rotation)
	s.cache.Put(key, out)
	return out, nil
}

// InvalidatePage drops cached renders of one page.
func (s *Source) InvalidatePage(page int) {
	s.cache.InvalidatePage(page)
}

// Invalidate drops the whole render cache.
func (s *Source) Invalidate() {
	s.cache.Clear()
}

func normRotation(deg int) int {
	r := deg % 360
	if r < 0 {
		r += 360
	}
	return r
}

// rotateImage turns the bitmap by a right angle, clockwise in screen
// coordinates.
func rotateImage(src image.Image, rotation int) image.Image {
	if rotation == 0 {
		return src
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	var dst *image.RGBA
	switch rotation {
	case 90, 270:
		dst = image.NewRGBA(image.Rect(0, 0, h, w))
	default:
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := src.At(b.Min.X+x, b.Min.Y+y)
			switch rotation {
			case 90:
				dst.Set(h-1-y, x, c)
			case 180:
				dst.Set(w-1-x, h-1-y, c)
			case 270:
				dst.Set(y, w-1-x, c)
			}
		}
	}
	return dst
}
