package document

import (
	"image/color"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/mgmeyers/unipdf/v3/model"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfmark/internal/annot"
	"pdfmark/internal/config"
	"pdfmark/internal/history"
	"pdfmark/internal/input"
	"pdfmark/internal/library"
)

func writeBlankPDF(t *testing.T, path string, pages int) {
	t.Helper()

	w := model.NewPdfWriter()
	for i := 0; i < pages; i++ {
		page := model.NewPdfPage()
		page.MediaBox = &model.PdfRectangle{Llx: 0, Lly: 0, Urx: 612, Ury: 792}
		require.NoError(t, w.AddPage(page))
	}

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, w.Write(f))
}

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Library.Path = filepath.Join(dir, "library.db")
	cfg.Render.CacheBytes = 1 << 20

	log := logrus.New()
	log.SetOutput(io.Discard)

	m, err := NewManager(cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	pdf := filepath.Join(dir, "doc.pdf")
	writeBlankPDF(t, pdf, 3)
	return m, pdf
}

func TestOpenIsIdempotent(t *testing.T) {
	m, pdf := newTestManager(t)

	a, err := m.Open(pdf)
	require.NoError(t, err)
	b, err := m.Open(pdf)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 3, a.Pages())
}

func TestEditSaveReopen(t *testing.T) {
	m, pdf := newTestManager(t)

	s, err := m.Open(pdf)
	require.NoError(t, err)

	in := s.Input()
	in.SetTool(input.ToolNote)
	require.NoError(t, in.Down(r2.Point{X: 100, Y: 100}))
	created, err := in.Up(r2.Point{X: 100, Y: 100})
	require.NoError(t, err)
	require.NotNil(t, created)

	vs := library.DefaultViewState()
	vs.Page = 2
	vs.Zoom = 1.5
	require.NoError(t, s.SetView(vs))

	require.NoError(t, m.CloseSession(pdf))

	// A fresh session loads the layer and view state from the library.
	s2, err := m.Open(pdf)
	require.NoError(t, err)
	assert.Equal(t, 1, s2.Store().Len())
	got, ok := s2.Store().Get(created.ID)
	require.True(t, ok)
	assert.Equal(t, annot.Note, got.Kind)

	view := s2.View()
	assert.Equal(t, 2, view.Page)
	assert.Equal(t, 1.5, view.Zoom)
}

func TestUndoSurvivesSave(t *testing.T) {
	m, pdf := newTestManager(t)

	s, err := m.Open(pdf)
	require.NoError(t, err)

	n := &annot.Annotation{
		ID:     annot.NewID(),
		Kind:   annot.Note,
		Anchor: r2.Point{X: 10, Y: 10},
		Style:  annot.DefaultStyle(),
	}
	s.History().Execute(history.NewCreate(n))
	stored, _ := s.Store().Get(n.ID)
	s.History().Execute(history.NewDelete(stored))

	// Save compacts the tombstone away.
	require.NoError(t, s.Save())
	assert.Equal(t, 0, s.Store().Len())

	require.True(t, s.History().Undo())
	assert.Equal(t, 1, s.Store().Len())
}

func TestSetViewRejectsBadParameters(t *testing.T) {
	m, pdf := newTestManager(t)

	s, err := m.Open(pdf)
	require.NoError(t, err)

	vs := library.DefaultViewState()
	vs.Page = 99
	assert.Error(t, s.SetView(vs))

	vs = library.DefaultViewState()
	vs.Zoom = -1
	assert.Error(t, s.SetView(vs))

	vs = library.DefaultViewState()
	vs.Rotation = 45
	assert.Error(t, s.SetView(vs))
}

func TestRenderProducesPageSizedImage(t *testing.T) {
	m, pdf := newTestManager(t)

	s, err := m.Open(pdf)
	require.NoError(t, err)

	img, err := s.Render(0)
	require.NoError(t, err)
	assert.Equal(t, 612, img.Bounds().Dx())
	assert.Equal(t, 792, img.Bounds().Dy())
}

func TestRenderDegradesWhenRasterizationFails(t *testing.T) {
	m, pdf := newTestManager(t)

	s, err := m.Open(pdf)
	require.NoError(t, err)

	h := &annot.Annotation{
		ID:   annot.NewID(),
		Kind: annot.Highlight,
		Quads: []annot.Quad{
			annot.QuadFromRect(r2.RectFromPoints(r2.Point{X: 100, Y: 500}, r2.Point{X: 300, Y: 600})),
		},
		Style: annot.Style{Color: "#ffd400", Opacity: 1},
	}
	s.History().Execute(history.NewCreate(h))

	// Closing the raster source makes every Rasterize call fail.
	require.NoError(t, s.src.Close())

	img, err := s.Render(0)
	require.NoError(t, err)
	require.Equal(t, 612, img.Bounds().Dx())
	require.Equal(t, 792, img.Bounds().Dy())

	// Annotations still composite over the white placeholder.
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	outside := color.RGBAModel.Convert(img.At(50, 50)).(color.RGBA)
	assert.Equal(t, white, outside)

	inside := color.RGBAModel.Convert(img.At(200, 250)).(color.RGBA)
	assert.Less(t, inside.B, uint8(250), "highlight tint survives the degraded render")
}

func TestLayerExportImport(t *testing.T) {
	m, pdf := newTestManager(t)

	s, err := m.Open(pdf)
	require.NoError(t, err)

	n := &annot.Annotation{
		ID:     annot.NewID(),
		Kind:   annot.Note,
		Anchor: r2.Point{X: 10, Y: 10},
		Text:   "exported",
		Style:  annot.DefaultStyle(),
	}
	s.History().Execute(history.NewCreate(n))

	layer := filepath.Join(filepath.Dir(pdf), "layer.json")
	require.NoError(t, s.ExportLayer(layer))

	// Importing into the same session skips the existing id.
	count, warnings, err := s.ImportLayer(layer)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, 0, count)
	assert.Equal(t, 1, s.Store().Len())

	// A different document accepts it.
	other := filepath.Join(filepath.Dir(pdf), "other.pdf")
	writeBlankPDF(t, other, 3)
	s2, err := m.Open(other)
	require.NoError(t, err)

	count, warnings, err = s2.ImportLayer(layer)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, 1, count)
}
