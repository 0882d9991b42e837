package geom

import (
	"testing"

	"github.com/golang/geo/r2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimplifyDropsCollinearPoints(t *testing.T) {
	pts := make([]r2.Point, 0, 50)
	for i := 0; i < 50; i++ {
		pts = append(pts, r2.Point{X: float64(i), Y: 2 * float64(i)})
	}

	got := Simplify(pts, 0.1)
	require.Len(t, got, 2)
	assert.Equal(t, pts[0], got[0])
	assert.Equal(t, pts[49], got[1])
}

func TestSimplifyKeepsCorners(t *testing.T) {
	pts := []r2.Point{
		{X: 0, Y: 0},
		{X: 5, Y: 0},
		{X: 10, Y: 0},
		{X: 10, Y: 5},
		{X: 10, Y: 10},
	}
	got := Simplify(pts, 0.5)
	require.Len(t, got, 3)
	assert.Equal(t, r2.Point{X: 10, Y: 0}, got[1])
}

func TestSimplifyLeavesInputIntact(t *testing.T) {
	// The split point sits right after the first sample, so the merge of
	// the two halves used to write into the input's backing array.
	pts := []r2.Point{
		{X: 0, Y: 0}, {X: 0, Y: 10}, {X: 10, Y: 10}, {X: 20, Y: 10}, {X: 30, Y: 10},
	}
	orig := append([]r2.Point(nil), pts...)

	got := Simplify(pts, 0.5)
	assert.Equal(t, []r2.Point{{X: 0, Y: 0}, {X: 0, Y: 10}, {X: 30, Y: 10}}, got)
	assert.Equal(t, orig, pts)
}

func TestSmoothPreservesEndpoints(t *testing.T) {
	pts := []r2.Point{
		{X: 0, Y: 0},
		{X: 10, Y: 20},
		{X: 20, Y: -5},
		{X: 30, Y: 0},
	}
	got := Smooth(pts, 1)
	require.Len(t, got, len(pts))
	assert.Equal(t, pts[0], got[0])
	assert.Equal(t, pts[3], got[3])

	// Interior points move toward the local average.
	assert.Less(t, got[1].Y, pts[1].Y)
}

func TestSmoothZeroFactorIsIdentity(t *testing.T) {
	pts := []r2.Point{{X: 0, Y: 0}, {X: 3, Y: 9}, {X: 6, Y: 1}}
	got := Smooth(pts, 0)
	assert.Equal(t, pts, got)
}

func TestArrowHeadBarbsAreSymmetric(t *testing.T) {
	start := r2.Point{X: 0, Y: 0}
	tip := r2.Point{X: 10, Y: 0}

	left, right := ArrowHead(start, tip, 3, 30)

	assert.InDelta(t, 7, left.X, 1e-9)
	assert.InDelta(t, 7, right.X, 1e-9)
	assert.InDelta(t, -left.Y, right.Y, 1e-9)
	assert.Greater(t, left.Y, 0.0)
}

func TestArrowHeadDegenerateLine(t *testing.T) {
	p := r2.Point{X: 5, Y: 5}
	left, right := ArrowHead(p, p, 3, 30)
	assert.Equal(t, p, left)
	assert.Equal(t, p, right)
}

func TestPolylineDistance(t *testing.T) {
	pts := []r2.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}}

	assert.InDelta(t, 2, PolylineDistance(r2.Point{X: 5, Y: 2}, pts), 1e-9)
	assert.InDelta(t, 0, PolylineDistance(r2.Point{X: 10, Y: 5}, pts), 1e-9)
	assert.InDelta(t, 5, PolylineDistance(r2.Point{X: -5, Y: 0}, pts), 1e-9)
}

func TestPointInQuad(t *testing.T) {
	q := [4]r2.Point{
		{X: 0, Y: 10},
		{X: 20, Y: 10},
		{X: 0, Y: 0},
		{X: 20, Y: 0},
	}
	// QuadPoints vertex order is UL, UR, LL, LR; reorder to a polygon when
	// testing containment.
	poly := [4]r2.Point{q[0], q[1], q[3], q[2]}

	assert.True(t, PointInQuad(r2.Point{X: 10, Y: 5}, poly))
	assert.False(t, PointInQuad(r2.Point{X: 25, Y: 5}, poly))
	assert.False(t, PointInQuad(r2.Point{X: 10, Y: 15}, poly))
}

func TestBoundsOfPadsEverySide(t *testing.T) {
	pts := []r2.Point{{X: 1, Y: 1}, {X: 5, Y: 9}}
	b := BoundsOf(pts, 2)
	assert.Equal(t, -1.0, b.X.Lo)
	assert.Equal(t, 7.0, b.X.Hi)
	assert.Equal(t, -1.0, b.Y.Lo)
	assert.Equal(t, 11.0, b.Y.Hi)
}
