// Package document ties one open PDF to its annotation layer, history,
// raster source, and view state. A Session is the unit everything above
// this package talks to.
package document

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"pdfmark/internal/annot"
	"pdfmark/internal/codec"
	"pdfmark/internal/geom"
	"pdfmark/internal/history"
	"pdfmark/internal/input"
	"pdfmark/internal/library"
	"pdfmark/internal/pdfio"
	"pdfmark/internal/raster"
	"pdfmark/internal/render"
	"pdfmark/internal/store"
)

// Session is an open document with its live editing state. All edit and
// save paths hold mu, so a save always sees a consistent layer.
type Session struct {
	mu  sync.Mutex
	log logrus.FieldLogger

	lib   *library.Library
	docID int64

	pdf *pdfio.Document
	src *raster.Source
	pre *raster.Prefetcher

	store *store.Store
	hist  *history.Stack
	in    *input.Handler

	view  library.ViewState
	dirty bool
	stale atomic.Bool

	// Warnings collected while loading the layer. Informational only.
	Warnings []codec.Warning
}

// open loads or creates the layer for the PDF at path.
func open(lib *library.Library, path string, cacheBytes int64, log logrus.FieldLogger) (*Session, error) {
	pdf, err := pdfio.Open(path)
	if err != nil {
		return nil, err
	}

	src, err := raster.NewSource(path, cacheBytes)
	if err != nil {
		pdf.Close()
		return nil, err
	}

	doc, err := lib.FindOrCreateDocument(path, pdf.Hash, pdf.Pages)
	if err != nil {
		src.Close()
		pdf.Close()
		return nil, err
	}

	st, warnings, err := lib.LoadLayer(doc.ID)
	if err != nil {
		src.Close()
		pdf.Close()
		return nil, err
	}
	for _, w := range warnings {
		log.WithField("doc", path).Warn(w.String())
	}

	vs, err := lib.LoadViewState(doc.ID)
	if err != nil {
		src.Close()
		pdf.Close()
		return nil, err
	}
	if vs.Page >= pdf.Pages {
		vs = library.DefaultViewState()
	}

	hist := history.NewStack(st)
	s := &Session{
		log:      log.WithField("doc", path),
		lib:      lib,
		docID:    doc.ID,
		pdf:      pdf,
		src:      src,
		pre:      raster.NewPrefetcher(src),
		store:    st,
		hist:     hist,
		in:       input.NewHandler(st, hist, log),
		view:     vs,
		Warnings: warnings,
	}

	s.log.WithFields(logrus.Fields{
		"pages":       pdf.Pages,
		"annotations": st.Len(),
		"page":        vs.Page,
	}).Info("session opened")
	return s, nil
}

// Close saves pending changes and releases the PDF and raster handles.
func (s *Session) Close() error {
	if err := s.Save(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src.Close()
	return s.pdf.Close()
}

// Store exposes the annotation layer for read-only callers.
func (s *Session) Store() *store.Store { return s.store }

// History exposes the undo stack.
func (s *Session) History() *history.Stack { return s.hist }

// Input exposes the gesture handler, pre-wired to this session's view.
func (s *Session) Input() *input.Handler {
	s.mu.Lock()
	vs := s.view
	s.mu.Unlock()
	if v, err := s.viewFor(vs); err == nil {
		s.in.SetView(v, vs.Page)
	}
	return s.in
}

// Pages returns the page count of the open PDF.
func (s *Session) Pages() int { return s.pdf.Pages }

// Path returns the PDF's file path.
func (s *Session) Path() string { return s.pdf.Path }

// Stale reports whether the PDF changed on disk since it was opened.
func (s *Session) Stale() bool { return s.stale.Load() }

func (s *Session) markStale() {
	if s.stale.CompareAndSwap(false, true) {
		s.log.Warn("file changed on disk, annotations may be misplaced")
	}
}

// View returns the current view parameters.
func (s *Session) View() library.ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// SetView replaces the view parameters. Invalid values are rejected so a
// bad zoom can never reach the renderer.
func (s *Session) SetView(vs library.ViewState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if vs.Page < 0 || vs.Page >= s.pdf.Pages {
		return fmt.Errorf("page %d out of range [0,%d)", vs.Page, s.pdf.Pages)
	}
	v, err := s.viewFor(vs)
	if err != nil {
		return err
	}
	if err := v.Valid(); err != nil {
		return err
	}
	s.view = vs
	s.dirty = true
	return nil
}

// Prefetch rasterizes pages around the current one in the background.
func (s *Session) Prefetch(ctx context.Context, radius int) error {
	vs := s.View()
	return s.pre.Prefetch(ctx, vs.Page, vs.Zoom, vs.Rotation, radius)
}

// Render composites the current page under the current view.
func (s *Session) Render(page int) (image.Image, error) {
	s.mu.Lock()
	vs := s.view
	s.mu.Unlock()
	vs.Page = page

	v, err := s.viewFor(vs)
	if err != nil {
		return nil, err
	}

	base, err := s.src.Rasterize(page, vs.Zoom, vs.Rotation)
	if err != nil {
		// Degraded render: the annotation layer still composites over a
		// blank placeholder when the page bitmap is unavailable.
		s.log.WithError(err).WithField("page", page).Warn("rasterization failed, using placeholder")
		base = nil
	}

	return render.Composite(base, v, s.store.Page(page))
}

func (s *Session) viewFor(vs library.ViewState) (geom.View, error) {
	w, h, err := s.pdf.PageSize(vs.Page)
	if err != nil {
		return geom.View{}, err
	}
	return geom.View{
		PageWidth:  w,
		PageHeight: h,
		Zoom:       vs.Zoom,
		Rotation:   vs.Rotation,
		PanX:       vs.ScrollX,
		PanY:       vs.ScrollY,
	}, nil
}

// Save compacts the layer and writes it with the view state in one pass.
// Undo history survives: commands carry their own payloads.
func (s *Session) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := s.store.Compact()
	if dropped > 0 {
		s.log.WithField("tombstones", dropped).Debug("compacted before save")
	}

	if err := s.lib.SaveLayer(s.docID, s.store.Live()); err != nil {
		return err
	}
	if err := s.lib.SaveViewState(s.docID, s.view); err != nil {
		return err
	}
	s.dirty = false
	s.log.WithField("annotations", s.store.Len()).Debug("layer saved")
	return nil
}

// ExportLayer writes the annotation layer as a JSON sidecar file.
func (s *Session) ExportLayer(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := codec.Encode(s.store)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ImportLayer merges a JSON sidecar into the session as undoable creates.
// Records whose id already exists are skipped.
func (s *Session) ImportLayer(path string) (int, []codec.Warning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, nil, err
	}
	imported, warnings, err := codec.Decode(data)
	if err != nil {
		return 0, warnings, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, a := range imported.Live() {
		if a.Page >= s.pdf.Pages {
			warnings = append(warnings, codec.Warning{ID: a.ID, Kind: string(a.Kind), Reason: "page out of range"})
			continue
		}
		if _, exists := s.store.Get(a.ID); exists {
			continue
		}
		s.hist.Execute(history.NewCreate(a))
		n++
	}
	s.dirty = n > 0
	return n, warnings, nil
}

// ImportEmbedded pulls the PDF's own annotation objects into the layer as
// undoable creates.
func (s *Session) ImportEmbedded() (int, error) {
	found, err := s.pdf.ImportAnnotations()
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range found {
		a.Seq = s.store.NextSeq()
		s.hist.Execute(history.NewCreate(a))
	}
	if len(found) > 0 {
		s.dirty = true
	}
	return len(found), nil
}

// ExportPDF writes an annotated copy of the document. The source file is
// never touched.
func (s *Session) ExportPDF(path string) error {
	s.mu.Lock()
	annots := s.store.Live()
	s.mu.Unlock()
	return s.pdf.ExportAnnotated(path, annots)
}

// Annotations returns the live annotations for listing.
func (s *Session) Annotations() []*annot.Annotation {
	return s.store.Live()
}
