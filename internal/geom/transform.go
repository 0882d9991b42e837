// Package geom converts between document space (PDF points, origin at the
// page bottom-left, y up) and view space (screen pixels, origin top-left,
// y down) under zoom, pan and right-angle rotation.
package geom

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
)

// View holds the per-document view parameters. It is passed explicitly into
// every transform call; there is no process-wide view state.
type View struct {
	PageWidth  float64
	PageHeight float64
	Zoom       float64
	Rotation   int
	PanX       float64
	PanY       float64
}

// Valid rejects degenerate view parameters before they reach the transform
// math. Zoom must be strictly positive, rotation a multiple of 90.
func (v View) Valid() error {
	if v.Zoom <= 0 || math.IsNaN(v.Zoom) || math.IsInf(v.Zoom, 0) {
		return fmt.Errorf("invalid zoom %v", v.Zoom)
	}
	if v.PageWidth <= 0 || v.PageHeight <= 0 {
		return fmt.Errorf("invalid page size %vx%v", v.PageWidth, v.PageHeight)
	}
	switch normRotation(v.Rotation) {
	case 0, 90, 180, 270:
		return nil
	}
	return fmt.Errorf("invalid rotation %d", v.Rotation)
}

// EffectiveSize returns the rendered page size in pixels. Width and height
// swap at 90 and 270 degrees.
func (v View) EffectiveSize() (w, h float64) {
	switch normRotation(v.Rotation) {
	case 90, 270:
		return v.PageHeight * v.Zoom, v.PageWidth * v.Zoom
	}
	return v.PageWidth * v.Zoom, v.PageHeight * v.Zoom
}

func normRotation(deg int) int {
	r := deg % 360
	if r < 0 {
		r += 360
	}
	return r
}

// Affine is a 2D affine transform:
//
//	x' = A*x + B*y + C
//	y' = D*x + E*y + F
type Affine struct {
	A, B, C float64
	D, E, F float64
}

// Identity returns the identity transform.
func Identity() Affine {
	return Affine{A: 1, E: 1}
}

// Translate returns a translation by (tx, ty).
func Translate(tx, ty float64) Affine {
	return Affine{A: 1, E: 1, C: tx, F: ty}
}

// Scale returns a scale by (sx, sy) about the origin.
func Scale(sx, sy float64) Affine {
	return Affine{A: sx, E: sy}
}

// Mul composes transforms: applying the result first applies m, then t.
func (t Affine) Mul(m Affine) Affine {
	return Affine{
		A: t.A*m.A + t.B*m.D,
		B: t.A*m.B + t.B*m.E,
		C: t.A*m.C + t.B*m.F + t.C,
		D: t.D*m.A + t.E*m.D,
		E: t.D*m.B + t.E*m.E,
		F: t.D*m.C + t.E*m.F + t.F,
	}
}

// Apply maps a point through the transform.
func (t Affine) Apply(p r2.Point) r2.Point {
	return r2.Point{
		X: t.A*p.X + t.B*p.Y + t.C,
		Y: t.D*p.X + t.E*p.Y + t.F,
	}
}

// Invert returns the inverse transform. The transforms built from a valid
// View are always invertible (zoom > 0, right-angle rotations).
func (t Affine) Invert() Affine {
	det := t.A*t.E - t.B*t.D
	inv := Affine{
		A: t.E / det,
		B: -t.B / det,
		D: -t.D / det,
		E: t.A / det,
	}
	inv.C = -(inv.A*t.C + inv.B*t.F)
	inv.F = -(inv.D*t.C + inv.E*t.F)
	return inv
}

// rotationAffine maps unrotated top-left page raster coordinates into the
// rotated frame, keeping the result in the positive quadrant.
func rotationAffine(deg int, pageW, pageH float64) Affine {
	switch normRotation(deg) {
	case 90:
		// (u, v) -> (H - v, u)
		return Affine{A: 0, B: -1, C: pageH, D: 1, E: 0, F: 0}
	case 180:
		return Affine{A: -1, B: 0, C: pageW, D: 0, E: -1, F: pageH}
	case 270:
		// (u, v) -> (v, W - u)
		return Affine{A: 0, B: 1, C: 0, D: -1, E: 0, F: pageW}
	}
	return Identity()
}

// ViewTransform builds the document-to-view affine for a view: flip the PDF
// y axis, rotate, scale by zoom, then pan.
func ViewTransform(v View) Affine {
	flip := Affine{A: 1, B: 0, C: 0, D: 0, E: -1, F: v.PageHeight}
	rot := rotationAffine(v.Rotation, v.PageWidth, v.PageHeight)
	return Translate(v.PanX, v.PanY).
		Mul(Scale(v.Zoom, v.Zoom)).
		Mul(rot).
		Mul(flip)
}

// ToView maps a document-space point to view space.
func ToView(p r2.Point, v View) r2.Point {
	return ViewTransform(v).Apply(p)
}

// ToDoc maps a view-space point back to document space. Exact inverse of
// ToView within floating point tolerance.
func ToDoc(p r2.Point, v View) r2.Point {
	return ViewTransform(v).Invert().Apply(p)
}

// RectToView maps a document-space rect to its axis-aligned view-space
// bounding rect.
func RectToView(r r2.Rect, v View) r2.Rect {
	t := ViewTransform(v)
	corners := []r2.Point{
		{X: r.X.Lo, Y: r.Y.Lo},
		{X: r.X.Hi, Y: r.Y.Lo},
		{X: r.X.Hi, Y: r.Y.Hi},
		{X: r.X.Lo, Y: r.Y.Hi},
	}
	out := r2.EmptyRect()
	for _, c := range corners {
		out = out.AddPoint(t.Apply(c))
	}
	return out
}

// ScaleDistance converts a document-space distance to pixels.
func ScaleDistance(d float64, v View) float64 {
	return d * v.Zoom
}

// UnscaleDistance converts a pixel distance to document units.
func UnscaleDistance(d float64, v View) float64 {
	return d / v.Zoom
}
