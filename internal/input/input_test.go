package input

import (
	"io"
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfmark/internal/annot"
	"pdfmark/internal/geom"
	"pdfmark/internal/history"
	"pdfmark/internal/store"
)

func newHarness() (*store.Store, *history.Stack, *Handler) {
	st := store.New()
	h := history.NewStack(st)
	log := logrus.New()
	log.SetOutput(io.Discard)

	in := NewHandler(st, h, log)
	in.SetView(geom.View{PageWidth: 612, PageHeight: 792, Zoom: 1}, 0)
	return st, h, in
}

func TestStrokeGestureIsOneCommand(t *testing.T) {
	st, hist, in := newHarness()
	in.SetTool(ToolStroke)

	require.NoError(t, in.Down(r2.Point{X: 100, Y: 100}))
	for i := 1; i < 49; i++ {
		in.Move(r2.Point{X: 100 + float64(i), Y: 100 + float64(i%7)})
	}
	a, err := in.Up(r2.Point{X: 150, Y: 100})
	require.NoError(t, err)
	require.NotNil(t, a)

	assert.Equal(t, 1, hist.Len(), "fifty samples collapse into one command")
	assert.Equal(t, 1, st.Len())

	got, ok := st.Get(a.ID)
	require.True(t, ok)
	assert.Equal(t, annot.Stroke, got.Kind)
	assert.Less(t, len(got.Points), 50, "path is simplified")
	assert.GreaterOrEqual(t, len(got.Points), 2)

	require.True(t, hist.Undo())
	assert.Equal(t, 0, st.Len(), "one undo removes the whole stroke")
}

func TestStrokePointsOutliveNextGesture(t *testing.T) {
	_, _, in := newHarness()
	in.SetTool(ToolStroke)

	// Two samples pass through smoothing and simplification unchanged.
	require.NoError(t, in.Down(r2.Point{X: 100, Y: 100}))
	a, err := in.Up(r2.Point{X: 150, Y: 150})
	require.NoError(t, err)
	require.NotNil(t, a)

	want := append([]r2.Point(nil), a.Points...)

	// The next gesture reuses the handler's sample buffer.
	require.NoError(t, in.Down(r2.Point{X: 300, Y: 300}))
	in.Move(r2.Point{X: 310, Y: 310})
	_, err = in.Up(r2.Point{X: 320, Y: 320})
	require.NoError(t, err)

	assert.Equal(t, want, a.Points, "committed stroke keeps its own points")
}

func TestNonFiniteSamplesDropped(t *testing.T) {
	st, hist, in := newHarness()
	in.SetTool(ToolStroke)

	err := in.Down(r2.Point{X: math.NaN(), Y: 10})
	assert.Error(t, err)
	assert.Equal(t, 0, hist.Len())

	require.NoError(t, in.Down(r2.Point{X: 10, Y: 10}))
	in.Move(r2.Point{X: math.Inf(1), Y: 10})
	in.Move(r2.Point{X: 20, Y: math.NaN()})
	in.Move(r2.Point{X: 30, Y: 30})
	a, err := in.Up(r2.Point{X: 40, Y: 40})
	require.NoError(t, err)

	got, _ := st.Get(a.ID)
	for _, p := range got.Points {
		assert.False(t, math.IsNaN(p.X) || math.IsInf(p.X, 0))
		assert.False(t, math.IsNaN(p.Y) || math.IsInf(p.Y, 0))
	}
}

func TestGestureInDocSpaceUnderZoom(t *testing.T) {
	st, _, in := newHarness()
	in.SetView(geom.View{PageWidth: 612, PageHeight: 792, Zoom: 2}, 0)
	in.SetTool(ToolNote)

	require.NoError(t, in.Down(r2.Point{X: 200, Y: 200}))
	a, err := in.Up(r2.Point{X: 200, Y: 200})
	require.NoError(t, err)

	got, _ := st.Get(a.ID)
	// View pixel (200, 200) at zoom 2 is doc point (100, 792-100).
	assert.InDelta(t, 100, got.Anchor.X, 1e-6)
	assert.InDelta(t, 692, got.Anchor.Y, 1e-6)
}

func TestHighlightGesture(t *testing.T) {
	st, _, in := newHarness()
	in.SetTool(ToolHighlight)

	require.NoError(t, in.Down(r2.Point{X: 10, Y: 100}))
	a, err := in.Up(r2.Point{X: 110, Y: 120})
	require.NoError(t, err)

	got, _ := st.Get(a.ID)
	require.Equal(t, annot.Highlight, got.Kind)
	require.Len(t, got.Quads, 1)

	b := got.BoundsRect()
	assert.InDelta(t, 10, b.X.Lo, 1e-6)
	assert.InDelta(t, 110, b.X.Hi, 1e-6)
}

func TestDegenerateGesturesRejected(t *testing.T) {
	st, hist, in := newHarness()

	in.SetTool(ToolHighlight)
	require.NoError(t, in.Down(r2.Point{X: 50, Y: 50}))
	_, err := in.Up(r2.Point{X: 50, Y: 50})
	assert.Error(t, err, "zero-area highlight")

	in.SetTool(ToolLine)
	require.NoError(t, in.Down(r2.Point{X: 50, Y: 50}))
	_, err = in.Up(r2.Point{X: 50, Y: 50})
	assert.Error(t, err, "zero-length line")

	assert.Equal(t, 0, hist.Len())
	assert.Equal(t, 0, st.Len())
}

func TestEraserDeletesTopmost(t *testing.T) {
	st, hist, in := newHarness()

	bottom := &annot.Annotation{
		ID: annot.NewID(), Kind: annot.Rect, Z: 0,
		Bounds: r2.RectFromPoints(r2.Point{X: 0, Y: 0}, r2.Point{X: 100, Y: 100}),
		Style:  annot.DefaultStyle(),
	}
	top := &annot.Annotation{
		ID: annot.NewID(), Kind: annot.Rect, Z: 1,
		Bounds: r2.RectFromPoints(r2.Point{X: 0, Y: 0}, r2.Point{X: 100, Y: 100}),
		Style:  annot.DefaultStyle(),
	}
	st.Insert(bottom)
	st.Insert(top)

	in.SetTool(ToolEraser)
	// Doc (50,50) is view (50, 792-50).
	require.NoError(t, in.Down(r2.Point{X: 50, Y: 742}))
	_, err := in.Up(r2.Point{X: 50, Y: 742})
	require.NoError(t, err)

	assert.Equal(t, 1, hist.Len())
	assert.Equal(t, 1, st.Len())
	_, stillThere := st.Get(top.ID)
	require.True(t, stillThere)
	got, _ := st.Get(top.ID)
	assert.True(t, got.Deleted, "topmost z goes first")
}

func TestEraserMissIsNoCommand(t *testing.T) {
	_, hist, in := newHarness()
	in.SetTool(ToolEraser)

	require.NoError(t, in.Down(r2.Point{X: 300, Y: 300}))
	_, err := in.Up(r2.Point{X: 300, Y: 300})
	require.NoError(t, err)
	assert.Equal(t, 0, hist.Len())
}

func TestSelectAndTranslate(t *testing.T) {
	st, hist, in := newHarness()

	n := &annot.Annotation{
		ID: annot.NewID(), Kind: annot.Note,
		Anchor: r2.Point{X: 100, Y: 100},
		Style:  annot.DefaultStyle(),
	}
	st.Insert(n)

	in.SetTool(ToolSelect)
	require.NoError(t, in.Down(r2.Point{X: 100, Y: 692}))
	_, err := in.Up(r2.Point{X: 100, Y: 692})
	require.NoError(t, err)
	require.Equal(t, n.ID, in.Selected)

	require.NoError(t, in.Translate(10, 5))
	got, _ := st.Get(n.ID)
	assert.InDelta(t, 110, got.Anchor.X, 1e-9)
	assert.InDelta(t, 105, got.Anchor.Y, 1e-9)

	require.True(t, hist.Undo())
	got, _ = st.Get(n.ID)
	assert.InDelta(t, 100, got.Anchor.X, 1e-9)
}

func TestSetNoteText(t *testing.T) {
	st, hist, in := newHarness()

	n := &annot.Annotation{
		ID: annot.NewID(), Kind: annot.Note,
		Anchor: r2.Point{X: 10, Y: 10},
		Style:  annot.DefaultStyle(),
	}
	st.Insert(n)
	in.Selected = n.ID

	require.NoError(t, in.SetNoteText("remember this"))
	got, _ := st.Get(n.ID)
	assert.Equal(t, "remember this", got.Text)

	require.True(t, hist.Undo())
	got, _ = st.Get(n.ID)
	assert.Equal(t, "", got.Text)
}

func TestToolSwitchIgnoredMidGesture(t *testing.T) {
	_, _, in := newHarness()
	in.SetTool(ToolStroke)

	require.NoError(t, in.Down(r2.Point{X: 10, Y: 10}))
	in.SetTool(ToolEraser)
	in.Move(r2.Point{X: 20, Y: 20})
	a, err := in.Up(r2.Point{X: 30, Y: 30})
	require.NoError(t, err)
	assert.Equal(t, annot.Stroke, a.Kind)
}

func TestCancelCommitsNothing(t *testing.T) {
	st, hist, in := newHarness()
	in.SetTool(ToolStroke)

	require.NoError(t, in.Down(r2.Point{X: 10, Y: 10}))
	in.Move(r2.Point{X: 20, Y: 20})
	in.Cancel()

	assert.Equal(t, 0, hist.Len())
	assert.Equal(t, 0, st.Len())

	_, err := in.Up(r2.Point{X: 30, Y: 30})
	assert.Error(t, err)
}
