package geom

import (
	"math"

	"github.com/golang/geo/r2"
)

// Dist returns the Euclidean distance between two points.
func Dist(a, b r2.Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// PointSegmentDistance returns the distance from p to the segment a-b.
func PointSegmentDistance(p, a, b r2.Point) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	lenSq := dx*dx + dy*dy

	if lenSq < 1e-10 {
		return Dist(p, a)
	}

	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))

	return Dist(p, r2.Point{X: a.X + t*dx, Y: a.Y + t*dy})
}

// PolylineDistance returns the minimum distance from p to any segment of the
// polyline. A single-point polyline degenerates to point distance.
func PolylineDistance(p r2.Point, pts []r2.Point) float64 {
	if len(pts) == 0 {
		return math.Inf(1)
	}
	if len(pts) == 1 {
		return Dist(p, pts[0])
	}

	min := math.Inf(1)
	for i := 0; i < len(pts)-1; i++ {
		if d := PointSegmentDistance(p, pts[i], pts[i+1]); d < min {
			min = d
		}
	}
	return min
}

// BoundsOf returns the bounding rect of pts expanded by pad on all sides.
func BoundsOf(pts []r2.Point, pad float64) r2.Rect {
	bound := r2.EmptyRect()
	for _, p := range pts {
		bound = bound.AddPoint(p)
	}
	if !bound.IsValid() || bound.IsEmpty() {
		return bound
	}
	bound.X.Lo -= pad
	bound.Y.Lo -= pad
	bound.X.Hi += pad
	bound.Y.Hi += pad
	return bound
}

// Simplify reduces a polyline with the Ramer-Douglas-Peucker algorithm.
// tolerance is the maximum distance a dropped point may sit from the
// simplified path.
func Simplify(pts []r2.Point, tolerance float64) []r2.Point {
	if len(pts) < 3 {
		return pts
	}

	maxDist := 0.0
	maxIdx := 0

	for i := 1; i < len(pts)-1; i++ {
		d := PointSegmentDistance(pts[i], pts[0], pts[len(pts)-1])
		if d > maxDist {
			maxDist = d
			maxIdx = i
		}
	}

	if maxDist <= tolerance {
		return []r2.Point{pts[0], pts[len(pts)-1]}
	}

	left := Simplify(pts[:maxIdx+1], tolerance)
	right := Simplify(pts[maxIdx:], tolerance)

	// left and right can share backing storage with pts.
	out := make([]r2.Point, 0, len(left)+len(right)-1)
	out = append(out, left[:len(left)-1]...)
	return append(out, right...)
}

// Smooth applies a moving-average pass to a polyline. factor 0 leaves the
// points untouched, 1 replaces each interior point by its 3-point average.
// Endpoints are preserved.
func Smooth(pts []r2.Point, factor float64) []r2.Point {
	if len(pts) < 3 {
		return pts
	}

	factor = math.Max(0, math.Min(1, factor))

	out := make([]r2.Point, 0, len(pts))
	out = append(out, pts[0])

	for i := 1; i < len(pts)-1; i++ {
		avgX := (pts[i-1].X + pts[i].X + pts[i+1].X) / 3
		avgY := (pts[i-1].Y + pts[i].Y + pts[i+1].Y) / 3
		out = append(out, r2.Point{
			X: pts[i].X + factor*(avgX-pts[i].X),
			Y: pts[i].Y + factor*(avgY-pts[i].Y),
		})
	}

	return append(out, pts[len(pts)-1])
}

// ArrowHead returns the two barb points of an arrow head ending at tip.
// headLength is the barb length, headAngle the half-angle in degrees.
func ArrowHead(start, tip r2.Point, headLength, headAngle float64) (left, right r2.Point) {
	dx := tip.X - start.X
	dy := tip.Y - start.Y
	length := math.Hypot(dx, dy)

	if length < 1e-10 {
		return tip, tip
	}

	ux := dx / length
	uy := dy / length
	rad := headAngle * math.Pi / 180
	spread := headLength * math.Tan(rad)

	baseX := tip.X - ux*headLength
	baseY := tip.Y - uy*headLength

	left = r2.Point{X: baseX - uy*spread, Y: baseY + ux*spread}
	right = r2.Point{X: baseX + uy*spread, Y: baseY - ux*spread}
	return left, right
}

// PointInQuad reports whether p lies inside the quadrilateral q (vertices in
// order). Works for convex and degenerate (rectangular) quads.
func PointInQuad(p r2.Point, q [4]r2.Point) bool {
	inside := false
	j := 3
	for i := 0; i < 4; i++ {
		if (q[i].Y > p.Y) != (q[j].Y > p.Y) &&
			p.X < (q[j].X-q[i].X)*(p.Y-q[i].Y)/(q[j].Y-q[i].Y)+q[i].X {
			inside = !inside
		}
		j = i
	}
	return inside
}
