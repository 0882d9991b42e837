package pdfio

import (
	"github.com/golang/geo/r2"
	"github.com/mgmeyers/unipdf/v3/core"
	"github.com/mgmeyers/unipdf/v3/model"

	"pdfmark/internal/annot"
)

// ImportAnnotations reads the PDF's own annotation objects into engine
// records. Only the kinds this engine models are imported; everything else
// is left alone in the file.
func (d *Document) ImportAnnotations() ([]*annot.Annotation, error) {
	var out []*annot.Annotation

	for i := 0; i < d.Pages; i++ {
		page, err := d.reader.GetPage(i + 1)
		if err != nil {
			return nil, &OpenError{Kind: Corrupt, Path: d.Path, Err: err}
		}

		annotations, err := page.GetAnnotations()
		if err != nil {
			return nil, &OpenError{Kind: Corrupt, Path: d.Path, Err: err}
		}

		for _, pa := range annotations {
			if a := importOne(i, pa); a != nil {
				out = append(out, a)
			}
		}
	}

	return out, nil
}

func importOne(pageIndex int, pa *model.PdfAnnotation) *annot.Annotation {
	ctx := pa.GetContext()

	var a *annot.Annotation

	switch t := ctx.(type) {
	case *model.PdfAnnotationHighlight:
		quads := quadsFromPoints(t.QuadPoints)
		if len(quads) == 0 {
			return nil
		}
		a = &annot.Annotation{
			Kind:  annot.Highlight,
			Quads: quads,
		}
		a.Style.Color = objToHex(t.C)

	case *model.PdfAnnotationSquare:
		bounds, ok := rectFromObj(t.Rect)
		if !ok {
			return nil
		}
		a = &annot.Annotation{
			Kind:   annot.Rect,
			Bounds: bounds,
		}
		a.Style.Color = objToHex(t.C)
		a.Style.Fill = objToHex(t.IC)

	case *model.PdfAnnotationCircle:
		bounds, ok := rectFromObj(t.Rect)
		if !ok {
			return nil
		}
		a = &annot.Annotation{
			Kind:   annot.Ellipse,
			Bounds: bounds,
		}
		a.Style.Color = objToHex(t.C)
		a.Style.Fill = objToHex(t.IC)

	case *model.PdfAnnotationText:
		bounds, ok := rectFromObj(t.Rect)
		if !ok {
			return nil
		}
		a = &annot.Annotation{
			Kind:   annot.Note,
			Anchor: bounds.Center(),
		}
		a.Style.Color = objToHex(t.C)
		if pa.Contents != nil {
			a.Text = pa.Contents.String()
		}

	case *model.PdfAnnotationInk:
		points := inkPoints(t.InkList)
		if len(points) < 2 {
			return nil
		}
		a = &annot.Annotation{
			Kind:   annot.Stroke,
			Points: points,
			Width:  2.0,
		}
		a.Style.Color = objToHex(t.C)

	default:
		return nil
	}

	a.ID = annot.NewID()
	a.Page = pageIndex
	if a.Style.Color == "" {
		a.Style.Color = annot.DefaultStyle().Color
	}
	a.Style.Opacity = 1.0
	a.Style.StrokeWidth = 2.0

	if err := a.Validate(); err != nil {
		return nil
	}
	return a
}

// quadsFromPoints groups a QuadPoints array into four-vertex quads, eight
// numbers each.
func quadsFromPoints(obj core.PdfObject) []annot.Quad {
	arr, ok := obj.(*core.PdfObjectArray)
	if !ok {
		return nil
	}
	coords, err := arr.GetAsFloat64Slice()
	if err != nil {
		return nil
	}

	var quads []annot.Quad
	var pts []r2.Point

	for i := 0; i+1 < len(coords); i += 2 {
		pts = append(pts, r2.Point{X: coords[i], Y: coords[i+1]})
		if len(pts) == 4 {
			quads = append(quads, annot.Quad{pts[0], pts[1], pts[2], pts[3]})
			pts = nil
		}
	}

	return quads
}

// inkPoints flattens an InkList (array of point arrays) into one polyline.
func inkPoints(obj core.PdfObject) []r2.Point {
	list, ok := obj.(*core.PdfObjectArray)
	if !ok {
		return nil
	}

	var points []r2.Point
	for _, el := range list.Elements() {
		sub, ok := el.(*core.PdfObjectArray)
		if !ok {
			continue
		}
		coords, err := sub.GetAsFloat64Slice()
		if err != nil {
			continue
		}
		for i := 0; i+1 < len(coords); i += 2 {
			points = append(points, r2.Point{X: coords[i], Y: coords[i+1]})
		}
	}
	return points
}

func rectFromObj(obj core.PdfObject) (r2.Rect, bool) {
	arr, ok := obj.(*core.PdfObjectArray)
	if !ok {
		return r2.Rect{}, false
	}
	coords, err := arr.ToFloat64Array()
	if err != nil || len(coords) < 4 {
		return r2.Rect{}, false
	}
	r := r2.RectFromPoints(
		r2.Point{X: coords[0], Y: coords[1]},
		r2.Point{X: coords[2], Y: coords[3]},
	)
	if !r.IsValid() || r.IsEmpty() {
		return r2.Rect{}, false
	}
	return r, true
}

// objToHex converts a PDF color array to a #rrggbb string.
func objToHex(obj core.PdfObject) string {
	if obj == nil {
		return ""
	}
	arr, ok := obj.(*core.PdfObjectArray)
	if !ok {
		return ""
	}
	clr, err := arr.ToFloat64Array()
	if err != nil || len(clr) < 3 {
		return ""
	}
	return annot.HexFromComponents(clr[0], clr[1], clr[2])
}
