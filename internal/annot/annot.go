// Package annot defines the annotation model. Geometry is always stored in
// document space; the view transform is applied only at render and input
// time, never persisted here.
package annot

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/r2"

	"pdfmark/internal/geom"
)

// Kind tags the closed set of annotation variants.
type Kind string

const (
	Highlight Kind = "highlight"
	Stroke    Kind = "stroke"
	Note      Kind = "note"
	Rect      Kind = "rect"
	Ellipse   Kind = "ellipse"
	Line      Kind = "line"
	Arrow     Kind = "arrow"
)

// Known reports whether k is a kind this build understands. Unknown kinds
// in durable data are skipped on load, not failed.
func (k Kind) Known() bool {
	switch k {
	case Highlight, Stroke, Note, Rect, Ellipse, Line, Arrow:
		return true
	}
	return false
}

// Quad is a document-space quadrilateral, vertices in PDF QuadPoints order.
type Quad [4]r2.Point

// QuadFromRect builds an axis-aligned quad from a rect.
func QuadFromRect(r r2.Rect) Quad {
	return Quad{
		{X: r.X.Lo, Y: r.Y.Hi},
		{X: r.X.Hi, Y: r.Y.Hi},
		{X: r.X.Lo, Y: r.Y.Lo},
		{X: r.X.Hi, Y: r.Y.Lo},
	}
}

// Bounds returns the axis-aligned bounding rect of the quad.
func (q Quad) Bounds() r2.Rect {
	b := r2.EmptyRect()
	for _, p := range q {
		b = b.AddPoint(p)
	}
	return b
}

// Annotation is the core record. Exactly one geometry group is meaningful
// per Kind; the rest stay zero.
type Annotation struct {
	ID   string
	Page int
	Kind Kind

	Quads  []Quad     // Highlight
	Points []r2.Point // Stroke
	Width  float64    // Stroke, document units

	Anchor r2.Point // Note
	Text   string   // Note

	Bounds r2.Rect // Rect, Ellipse

	Start      r2.Point // Line, Arrow
	End        r2.Point
	HeadLength float64 // Arrow
	HeadAngle  float64

	Style Style

	Z      int
	Seq    uint64
	ModSeq uint64

	Deleted bool
}

// NewID returns a fresh annotation id. Ids are never reused, even after the
// annotation is deleted and compacted away.
func NewID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// Clone returns a deep copy.
func (a *Annotation) Clone() *Annotation {
	c := *a
	if a.Quads != nil {
		c.Quads = append([]Quad(nil), a.Quads...)
	}
	if a.Points != nil {
		c.Points = append([]r2.Point(nil), a.Points...)
	}
	c.Style = a.Style.clone()
	return &c
}

// TranslateBy shifts every geometry group by (dx, dy). Only the group the
// Kind uses carries meaning, but moving all of them keeps this Kind-blind.
func (a *Annotation) TranslateBy(dx, dy float64) {
	d := r2.Point{X: dx, Y: dy}
	for i := range a.Quads {
		for j := range a.Quads[i] {
			a.Quads[i][j] = a.Quads[i][j].Add(d)
		}
	}
	for i := range a.Points {
		a.Points[i] = a.Points[i].Add(d)
	}
	a.Anchor = a.Anchor.Add(d)
	if !a.Bounds.IsEmpty() {
		a.Bounds = r2.Rect{
			X: r1.Interval{Lo: a.Bounds.X.Lo + dx, Hi: a.Bounds.X.Hi + dx},
			Y: r1.Interval{Lo: a.Bounds.Y.Lo + dy, Hi: a.Bounds.Y.Hi + dy},
		}
	}
	a.Start = a.Start.Add(d)
	a.End = a.End.Add(d)
}

// noteAnchorSize is the document-space hit box around a note anchor.
const noteAnchorSize = 20.0

// BoundsRect returns the document-space bounding rect of the annotation,
// padded by stroke width or arrow head reach where those extend drawing
// past the raw geometry.
func (a *Annotation) BoundsRect() r2.Rect {
	switch a.Kind {
	case Highlight:
		b := r2.EmptyRect()
		for _, q := range a.Quads {
			b = b.AddRect(q.Bounds())
		}
		return b
	case Stroke:
		return geom.BoundsOf(a.Points, a.Width/2)
	case Note:
		return r2.RectFromCenterSize(a.Anchor, r2.Point{X: noteAnchorSize, Y: noteAnchorSize})
	case Rect, Ellipse:
		b := a.Bounds
		pad := a.Style.StrokeWidth / 2
		b.X.Lo -= pad
		b.Y.Lo -= pad
		b.X.Hi += pad
		b.Y.Hi += pad
		return b
	case Line:
		return geom.BoundsOf([]r2.Point{a.Start, a.End}, a.Style.StrokeWidth/2)
	case Arrow:
		pad := a.Style.StrokeWidth
		if a.HeadLength > pad {
			pad = a.HeadLength
		}
		return geom.BoundsOf([]r2.Point{a.Start, a.End}, pad)
	}
	return r2.EmptyRect()
}

// Validate rejects malformed geometry for a known kind. Callers drop the
// single annotation on failure, never the whole document.
func (a *Annotation) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("annotation without id")
	}
	if a.Page < 0 {
		return fmt.Errorf("annotation %s: negative page %d", a.ID, a.Page)
	}

	switch a.Kind {
	case Highlight:
		if len(a.Quads) == 0 {
			return fmt.Errorf("highlight %s: no quads", a.ID)
		}
	case Stroke:
		if len(a.Points) < 2 {
			return fmt.Errorf("stroke %s: %d points", a.ID, len(a.Points))
		}
		if a.Width <= 0 {
			return fmt.Errorf("stroke %s: width %v", a.ID, a.Width)
		}
	case Note:
		// Anchor alone is enough; empty text is legal.
	case Rect, Ellipse:
		if !a.Bounds.IsValid() || a.Bounds.IsEmpty() {
			return fmt.Errorf("%s %s: empty bounds", a.Kind, a.ID)
		}
	case Line, Arrow:
		if a.Start == a.End {
			return fmt.Errorf("%s %s: zero length", a.Kind, a.ID)
		}
	default:
		return fmt.Errorf("unknown kind %q", a.Kind)
	}
	return nil
}

// Hit reports whether the document-space point p hits the annotation.
// tol is a document-space slop added for thin geometry.
func (a *Annotation) Hit(p r2.Point, tol float64) bool {
	switch a.Kind {
	case Highlight:
		for _, q := range a.Quads {
			// Reorder from QuadPoints order to polygon winding.
			if geom.PointInQuad(p, [4]r2.Point{q[0], q[1], q[3], q[2]}) {
				return true
			}
		}
		return false
	case Stroke:
		return geom.PolylineDistance(p, a.Points) <= a.Width/2+tol
	case Line, Arrow:
		return geom.PointSegmentDistance(p, a.Start, a.End) <= a.Style.StrokeWidth/2+tol
	default:
		return a.BoundsRect().ContainsPoint(p)
	}
}
