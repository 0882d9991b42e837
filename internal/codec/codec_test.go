package codec

import (
	"errors"
	"strings"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfmark/internal/annot"
	"pdfmark/internal/store"
)

func buildStore(t *testing.T, annots ...*annot.Annotation) *store.Store {
	t.Helper()
	st := store.New()
	for _, a := range annots {
		require.True(t, st.Insert(a))
	}
	return st
}

func TestRoundTripAllKinds(t *testing.T) {
	annots := []*annot.Annotation{
		{
			ID:   "h1",
			Page: 2,
			Kind: annot.Highlight,
			Quads: []annot.Quad{{
				{X: 10, Y: 30}, {X: 100, Y: 30}, {X: 10, Y: 10}, {X: 100, Y: 10},
			}},
			Style: annot.Style{Color: "#ffd400", Opacity: 1},
		},
		{
			ID:     "s1",
			Page:   0,
			Kind:   annot.Stroke,
			Points: []r2.Point{{X: 0, Y: 0}, {X: 5, Y: 5}, {X: 10, Y: 3}},
			Width:  2,
			Style:  annot.Style{Color: "#d42a2a", Opacity: 0.8, StrokeWidth: 2, Dash: []float64{4, 2}},
		},
		{
			ID:     "n1",
			Page:   1,
			Kind:   annot.Note,
			Anchor: r2.Point{X: 50, Y: 60},
			Text:   "a note\nwith lines",
			Style:  annot.Style{Color: "#ffd400", Opacity: 1},
		},
		{
			ID:     "r1",
			Page:   1,
			Kind:   annot.Rect,
			Bounds: r2.RectFromPoints(r2.Point{X: 1, Y: 2}, r2.Point{X: 30, Y: 40}),
			Style:  annot.Style{Color: "#2a6fd4", Opacity: 1, StrokeWidth: 2, Fill: "#aaccee"},
		},
		{
			ID:         "a1",
			Page:       3,
			Kind:       annot.Arrow,
			Start:      r2.Point{X: 0, Y: 0},
			End:        r2.Point{X: 20, Y: 20},
			HeadLength: 8,
			HeadAngle:  30,
			Z:          2,
			Style:      annot.Style{Color: "#2a6fd4", Opacity: 1, StrokeWidth: 2},
		},
	}

	st := buildStore(t, annots...)
	data, err := Encode(st)
	require.NoError(t, err)

	decoded, warnings, err := Decode(data)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	if diff := cmp.Diff(st.Live(), decoded.Live()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	st := buildStore(t,
		&annot.Annotation{ID: "b", Page: 1, Kind: annot.Note, Anchor: r2.Point{X: 1, Y: 1}, Style: annot.Style{Opacity: 1}},
		&annot.Annotation{ID: "a", Page: 0, Kind: annot.Note, Anchor: r2.Point{X: 2, Y: 2}, Style: annot.Style{Opacity: 1}},
	)

	first, err := Encode(st)
	require.NoError(t, err)
	second, err := Encode(st)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDecodeSkipsUnknownKind(t *testing.T) {
	layer := `{
	  "version": 1,
	  "annotations": [
	    {"id": "n1", "page": 0, "kind": "note", "anchor": [5, 5], "style": {"opacity": 1}},
	    {"id": "x1", "page": 0, "kind": "FutureType99", "style": {"opacity": 1}},
	    {"id": "n2", "page": 1, "kind": "note", "anchor": [9, 9], "style": {"opacity": 1}}
	  ]
	}`

	st, warnings, err := Decode([]byte(layer))
	require.NoError(t, err)
	assert.Equal(t, 2, st.Len())
	require.Len(t, warnings, 1)
	assert.Equal(t, "x1", warnings[0].ID)
	assert.Contains(t, warnings[0].Reason, "unknown kind")
}

func TestDecodeSkipsMalformedGeometry(t *testing.T) {
	layer := `{
	  "version": 1,
	  "annotations": [
	    {"id": "h1", "page": 0, "kind": "highlight", "quads": [[1, 2, 3]], "style": {"opacity": 1}},
	    {"id": "s1", "page": 0, "kind": "stroke", "width": 2, "points": [[0, 0]], "style": {"opacity": 1}},
	    {"id": "n1", "page": 0, "kind": "note", "anchor": [5, 5], "style": {"opacity": 1}}
	  ]
	}`

	st, warnings, err := Decode([]byte(layer))
	require.NoError(t, err)
	assert.Equal(t, 1, st.Len())
	assert.Len(t, warnings, 2)
}

func TestDecodeDuplicateID(t *testing.T) {
	layer := `{
	  "version": 1,
	  "annotations": [
	    {"id": "n1", "page": 0, "kind": "note", "anchor": [5, 5], "style": {"opacity": 1}},
	    {"id": "n1", "page": 0, "kind": "note", "anchor": [9, 9], "style": {"opacity": 1}}
	  ]
	}`

	st, warnings, err := Decode([]byte(layer))
	require.NoError(t, err)
	assert.Equal(t, 1, st.Len())
	require.Len(t, warnings, 1)
	assert.Equal(t, "duplicate id", warnings[0].Reason)
}

func TestDecodeRejectsNewerVersion(t *testing.T) {
	layer := `{"version": 99, "annotations": []}`

	_, _, err := Decode([]byte(layer))
	var corrupt *CorruptError
	require.True(t, errors.As(err, &corrupt))
	assert.Contains(t, corrupt.Reason, "newer than supported")
}

func TestDecodeRejectsBrokenEnvelope(t *testing.T) {
	for _, bad := range []string{
		`not json at all`,
		`{"annotations": []}`,
		`{"version": 1}`,
		`{"version": 1, "annotations": [{"page": 0, "kind": "note"}]}`,
	} {
		_, _, err := Decode([]byte(bad))
		var corrupt *CorruptError
		assert.True(t, errors.As(err, &corrupt), "input %q", bad)
	}
}

func TestHighlightRoundTripExact(t *testing.T) {
	h := &annot.Annotation{
		ID:   "hl",
		Page: 2,
		Kind: annot.Highlight,
		Quads: []annot.Quad{{
			{X: 10, Y: 30}, {X: 100, Y: 30}, {X: 10, Y: 10}, {X: 100, Y: 10},
		}},
		Style: annot.Style{Color: "#ffd400", Opacity: 1},
	}

	st := buildStore(t, h)
	data, err := Encode(st)
	require.NoError(t, err)

	decoded, warnings, err := Decode(data)
	require.NoError(t, err)
	require.Empty(t, warnings)

	got, ok := decoded.Get("hl")
	require.True(t, ok)
	assert.Equal(t, 2, got.Page)
	assert.Equal(t, "#ffd400", got.Style.Color)
	require.Len(t, got.Quads, 1)
	assert.Equal(t, h.Quads[0], got.Quads[0])
}

func TestZOrderSurvivesRoundTrip(t *testing.T) {
	top := &annot.Annotation{ID: "top", Page: 0, Kind: annot.Note, Anchor: r2.Point{X: 1, Y: 1}, Z: 5, Style: annot.Style{Opacity: 1}}
	bottom := &annot.Annotation{ID: "bottom", Page: 0, Kind: annot.Note, Anchor: r2.Point{X: 2, Y: 2}, Z: -5, Style: annot.Style{Opacity: 1}}

	st := buildStore(t, top, bottom)
	data, err := Encode(st)
	require.NoError(t, err)

	decoded, _, err := Decode(data)
	require.NoError(t, err)

	page := decoded.Page(0)
	require.Len(t, page, 2)
	assert.Equal(t, "bottom", page[0].ID)
	assert.Equal(t, "top", page[1].ID)
}

func TestEncodeOmitsTombstones(t *testing.T) {
	st := buildStore(t,
		&annot.Annotation{ID: "live", Page: 0, Kind: annot.Note, Anchor: r2.Point{X: 1, Y: 1}, Style: annot.Style{Opacity: 1}},
		&annot.Annotation{ID: "dead", Page: 0, Kind: annot.Note, Anchor: r2.Point{X: 2, Y: 2}, Style: annot.Style{Opacity: 1}},
	)
	st.Remove("dead")

	data, err := Encode(st)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(data), "dead"))
}
