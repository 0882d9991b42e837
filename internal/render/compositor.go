// Package render composes annotation overlays onto rasterized page
// bitmaps. It reads store snapshots only and never mutates them.
package render

import (
	"image"
	"image/color"
	"math"

	"github.com/golang/geo/r2"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	xdraw "golang.org/x/image/draw"

	"pdfmark/internal/annot"
	"pdfmark/internal/geom"
)

// Composite draws the snapshot's annotations over base, transformed into
// view space, in z-order. A nil base (failed rasterization) composites
// over a white placeholder so the annotation layer still renders.
func Composite(base image.Image, view geom.View, snap []*annot.Annotation) (image.Image, error) {
	if err := view.Valid(); err != nil {
		return nil, err
	}

	wf, hf := view.EffectiveSize()
	w := int(math.Ceil(wf))
	h := int(math.Ceil(hf))

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.Draw(dst, dst.Bounds(), image.White, image.Point{}, xdraw.Src)
	if base != nil {
		// The base lands at the pan offset so page pixels sit under the
		// annotations, which carry the pan through the view transform.
		off := image.Pt(int(math.Round(view.PanX)), int(math.Round(view.PanY)))
		target := image.Rect(0, 0, w, h).Add(off)
		if base.Bounds().Dx() == w && base.Bounds().Dy() == h {
			xdraw.Draw(dst, target, base, base.Bounds().Min, xdraw.Src)
		} else {
			xdraw.ApproxBiLinear.Scale(dst, target, base, base.Bounds(), xdraw.Src, nil)
		}
	}

	if len(snap) == 0 {
		return dst, nil
	}

	viewport := r2.RectFromPoints(r2.Point{X: 0, Y: 0}, r2.Point{X: wf, Y: hf})

	c := canvas.New(wf, hf)
	ctx := canvas.NewContext(c)
	ctx.SetStrokeCapper(canvas.RoundCap)
	ctx.SetStrokeJoiner(canvas.RoundJoin)

	drawn := 0
	for _, a := range snap {
		if a.Deleted {
			continue
		}
		vb := geom.RectToView(a.BoundsRect(), view)
		if !vb.IsValid() || !vb.Intersects(viewport) {
			continue
		}
		drawAnnotation(ctx, a, view, hf)
		drawn++
	}

	if drawn == 0 {
		return dst, nil
	}

	overlay := rasterizer.Draw(c, canvas.DPMM(1.0), canvas.DefaultColorSpace)
	xdraw.Draw(dst, dst.Bounds(), overlay, overlay.Bounds().Min, xdraw.Over)
	return dst, nil
}

// drawAnnotation renders one annotation onto the overlay canvas. Canvas
// coordinates are y-up, so view y is flipped against the canvas height.
func drawAnnotation(ctx *canvas.Context, a *annot.Annotation, view geom.View, canvasH float64) {
	t := geom.ViewTransform(view)
	vp := func(p r2.Point) (float64, float64) {
		q := t.Apply(p)
		return q.X, canvasH - q.Y
	}
	px := geom.ScaleDistance(a.Style.StrokeWidth, view)

	switch a.Kind {
	case annot.Highlight:
		p := &canvas.Path{}
		for _, q := range a.Quads {
			// QuadPoints order: upper-left, upper-right, lower-left,
			// lower-right.
			x0, y0 := vp(q[0])
			x1, y1 := vp(q[1])
			x2, y2 := vp(q[2])
			x3, y3 := vp(q[3])
			p.MoveTo(x0, y0)
			p.LineTo(x1, y1)
			p.LineTo(x3, y3)
			p.LineTo(x2, y2)
			p.Close()
		}
		fill(ctx, highlightColor(a.Style), p)

	case annot.Stroke:
		if len(a.Points) < 2 {
			return
		}
		p := &canvas.Path{}
		x, y := vp(a.Points[0])
		p.MoveTo(x, y)
		for _, pt := range a.Points[1:] {
			x, y = vp(pt)
			p.LineTo(x, y)
		}
		stroke(ctx, a.Style, geom.ScaleDistance(a.Width, view), p)

	case annot.Note:
		x, y := vp(a.Anchor)
		size := geom.ScaleDistance(noteIconSize, view)
		p := canvas.Rectangle(size, size)
		ctx.SetStrokeColor(a.Style.RGBA())
		ctx.SetStrokeWidth(1)
		ctx.SetFillColor(noteFill(a.Style))
		ctx.DrawPath(x-size/2, y-size/2, p)

	case annot.Rect:
		// Right-angle rotations keep the rect axis-aligned, so the
		// view-space bounding rect is the shape itself.
		vr := geom.RectToView(a.Bounds, view)
		drawShape(ctx, a.Style, px,
			vr.X.Lo, canvasH-vr.Y.Hi,
			canvas.Rectangle(vr.Size().X, vr.Size().Y))

	case annot.Ellipse:
		vr := geom.RectToView(a.Bounds, view)
		cx := vr.Center().X
		cy := canvasH - vr.Center().Y
		drawShape(ctx, a.Style, px, cx, cy,
			canvas.Ellipse(vr.Size().X/2, vr.Size().Y/2))

	case annot.Line:
		p := &canvas.Path{}
		x0, y0 := vp(a.Start)
		x1, y1 := vp(a.End)
		p.MoveTo(x0, y0)
		p.LineTo(x1, y1)
		stroke(ctx, a.Style, px, p)

	case annot.Arrow:
		left, right := geom.ArrowHead(a.Start, a.End, a.HeadLength, a.HeadAngle)
		p := &canvas.Path{}
		x0, y0 := vp(a.Start)
		x1, y1 := vp(a.End)
		lx, ly := vp(left)
		rx, ry := vp(right)
		p.MoveTo(x0, y0)
		p.LineTo(x1, y1)
		p.MoveTo(lx, ly)
		p.LineTo(x1, y1)
		p.LineTo(rx, ry)
		stroke(ctx, a.Style, px, p)
	}
}

// noteIconSize matches the note anchor hit box in document units.
const noteIconSize = 20.0

func fill(ctx *canvas.Context, c color.RGBA, p *canvas.Path) {
	ctx.SetStrokeColor(canvas.Transparent)
	ctx.SetFillColor(c)
	ctx.DrawPath(0, 0, p)
}

func stroke(ctx *canvas.Context, s annot.Style, widthPx float64, p *canvas.Path) {
	if widthPx <= 0 {
		widthPx = 1
	}
	ctx.SetFillColor(canvas.Transparent)
	ctx.SetStrokeColor(s.RGBA())
	ctx.SetStrokeWidth(widthPx)
	if len(s.Dash) > 0 {
		ctx.SetDashes(0, s.Dash...)
	} else {
		ctx.SetDashes(0)
	}
	ctx.DrawPath(0, 0, p)
}

func drawShape(ctx *canvas.Context, s annot.Style, widthPx, x, y float64, p *canvas.Path) {
	if s.Fill != "" {
		ctx.SetStrokeColor(canvas.Transparent)
		ctx.SetFillColor(s.FillRGBA())
		ctx.DrawPath(x, y, p)
	}
	if widthPx <= 0 {
		widthPx = 1
	}
	ctx.SetFillColor(canvas.Transparent)
	ctx.SetStrokeColor(s.RGBA())
	ctx.SetStrokeWidth(widthPx)
	if len(s.Dash) > 0 {
		ctx.SetDashes(0, s.Dash...)
	} else {
		ctx.SetDashes(0)
	}
	ctx.DrawPath(x, y, p)
}

// highlightColor caps highlight fills at a translucent alpha so the text
// underneath stays readable even with an opaque style color.
func highlightColor(s annot.Style) color.RGBA {
	op := s.Opacity
	if op <= 0 || op > 0.45 {
		op = 0.45
	}
	tr := s
	tr.Opacity = op
	return tr.RGBA()
}

func noteFill(s annot.Style) color.RGBA {
	tr := s
	if tr.Opacity <= 0 {
		tr.Opacity = 1
	}
	return tr.RGBA()
}
