package pdfio

import (
	"fmt"
	"os"
	"time"

	"github.com/golang/geo/r2"
	"github.com/mgmeyers/unipdf/v3/core"
	"github.com/mgmeyers/unipdf/v3/model"

	"pdfmark/internal/annot"
)

const dateFormat = "D:20060102150405+07'00'"

// ExportAnnotated writes a copy of the document at path with the given
// annotations embedded as standard PDF annotation objects. Page content
// streams are never modified; annotations ride alongside the page.
func (d *Document) ExportAnnotated(path string, annots []*annot.Annotation) error {
	writer := model.NewPdfWriter()

	byPage := make(map[int][]*annot.Annotation)
	for _, a := range annots {
		if a.Deleted {
			continue
		}
		byPage[a.Page] = append(byPage[a.Page], a)
	}

	for i := 0; i < d.Pages; i++ {
		page, err := d.reader.GetPage(i + 1)
		if err != nil {
			return fmt.Errorf("export: page %d: %w", i+1, err)
		}

		for _, a := range byPage[i] {
			pa, err := exportOne(a)
			if err != nil {
				return fmt.Errorf("export: annotation %s: %w", a.ID, err)
			}
			page.AddAnnotation(pa)
		}

		if err = writer.AddPage(page); err != nil {
			return fmt.Errorf("export: add page %d: %w", i+1, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	defer f.Close()

	if err = writer.Write(f); err != nil {
		return fmt.Errorf("export: write %s: %w", path, err)
	}
	return nil
}

func exportOne(a *annot.Annotation) (*model.PdfAnnotation, error) {
	bounds := a.BoundsRect()
	rect := core.MakeArrayFromFloats([]float64{
		bounds.X.Lo, bounds.Y.Lo, bounds.X.Hi, bounds.Y.Hi,
	})
	now := time.Now().Format(dateFormat)

	switch a.Kind {
	case annot.Highlight:
		h := model.NewPdfAnnotationHighlight()
		h.Rect = rect
		h.QuadPoints = quadPointsArray(a.Quads)
		h.C = colorArray(a.Style.Color)
		h.CA = core.MakeFloat(a.Style.Opacity)
		h.M = core.MakeString(now)
		return h.PdfAnnotation, nil

	case annot.Stroke:
		ink := model.NewPdfAnnotationInk()
		ink.Rect = rect
		ink.InkList = inkListArray(a.Points)
		ink.C = colorArray(a.Style.Color)
		ink.CA = core.MakeFloat(a.Style.Opacity)
		ink.M = core.MakeString(now)
		return ink.PdfAnnotation, nil

	case annot.Note:
		txt := model.NewPdfAnnotationText()
		txt.Rect = rect
		txt.Contents = core.MakeString(a.Text)
		txt.C = colorArray(a.Style.Color)
		txt.Name = core.MakeName("Comment")
		txt.M = core.MakeString(now)
		return txt.PdfAnnotation, nil

	case annot.Rect:
		sq := model.NewPdfAnnotationSquare()
		sq.Rect = core.MakeArrayFromFloats([]float64{
			a.Bounds.X.Lo, a.Bounds.Y.Lo, a.Bounds.X.Hi, a.Bounds.Y.Hi,
		})
		sq.C = colorArray(a.Style.Color)
		if a.Style.Fill != "" {
			sq.IC = colorArray(a.Style.Fill)
		}
		sq.CA = core.MakeFloat(a.Style.Opacity)
		sq.M = core.MakeString(now)
		return sq.PdfAnnotation, nil

	case annot.Ellipse:
		ci := model.NewPdfAnnotationCircle()
		ci.Rect = core.MakeArrayFromFloats([]float64{
			a.Bounds.X.Lo, a.Bounds.Y.Lo, a.Bounds.X.Hi, a.Bounds.Y.Hi,
		})
		ci.C = colorArray(a.Style.Color)
		if a.Style.Fill != "" {
			ci.IC = colorArray(a.Style.Fill)
		}
		ci.CA = core.MakeFloat(a.Style.Opacity)
		ci.M = core.MakeString(now)
		return ci.PdfAnnotation, nil

	case annot.Line, annot.Arrow:
		ln := model.NewPdfAnnotationLine()
		ln.Rect = rect
		ln.L = core.MakeArrayFromFloats([]float64{
			a.Start.X, a.Start.Y, a.End.X, a.End.Y,
		})
		ln.C = colorArray(a.Style.Color)
		ln.CA = core.MakeFloat(a.Style.Opacity)
		ln.M = core.MakeString(now)
		if a.Kind == annot.Arrow {
			ln.LE = core.MakeArray(core.MakeName("None"), core.MakeName("OpenArrow"))
		}
		return ln.PdfAnnotation, nil
	}

	return nil, fmt.Errorf("unsupported kind %q", a.Kind)
}

func quadPointsArray(quads []annot.Quad) *core.PdfObjectArray {
	var coords []float64
	for _, q := range quads {
		for _, p := range q {
			coords = append(coords, p.X, p.Y)
		}
	}
	return core.MakeArrayFromFloats(coords)
}

func inkListArray(points []r2.Point) *core.PdfObjectArray {
	coords := make([]float64, 0, len(points)*2)
	for _, p := range points {
		coords = append(coords, p.X, p.Y)
	}
	return core.MakeArray(core.MakeArrayFromFloats(coords))
}

func colorArray(hex string) *core.PdfObjectArray {
	r, g, b := annot.ComponentsFromHex(hex)
	return core.MakeArrayFromFloats([]float64{r, g, b})
}
