// Package input turns pointer gestures into edit commands. A gesture runs
// Down, zero or more Moves, then Up, and commits at most one command to the
// history regardless of how many samples it carried.
package input

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/sirupsen/logrus"

	"pdfmark/internal/annot"
	"pdfmark/internal/geom"
	"pdfmark/internal/history"
	"pdfmark/internal/store"
)

// Tool selects what a gesture produces.
type Tool string

const (
	ToolHighlight Tool = "highlight"
	ToolStroke    Tool = "stroke"
	ToolNote      Tool = "note"
	ToolRect      Tool = "rect"
	ToolEllipse   Tool = "ellipse"
	ToolLine      Tool = "line"
	ToolArrow     Tool = "arrow"
	ToolEraser    Tool = "eraser"
	ToolSelect    Tool = "select"
)

// Error reports a rejected input event.
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("input: %s", e.Reason)
}

// Pen stroke post-processing, in view pixels so behavior is stable across
// zoom levels.
const (
	smoothFactor      = 0.5
	simplifyTolerance = 1.5
	eraserTolerance   = 4.0
	arrowHeadLength   = 12.0
	arrowHeadAngle    = 30.0 // degrees
)

// Handler owns the in-flight gesture for one document session.
type Handler struct {
	store *store.Store
	hist  *history.Stack
	log   logrus.FieldLogger

	view  geom.View
	page  int
	tool  Tool
	style annot.Style

	active  bool
	samples []r2.Point // doc space

	// Selected is the id picked by the last select gesture, empty when
	// nothing is selected.
	Selected string
}

// NewHandler binds a gesture handler to a session's store and history.
func NewHandler(s *store.Store, h *history.Stack, log logrus.FieldLogger) *Handler {
	return &Handler{
		store: s,
		hist:  h,
		log:   log,
		tool:  ToolSelect,
		style: annot.DefaultStyle(),
	}
}

// SetView updates the live view transform. An in-flight gesture keeps the
// transform it started with, so mid-gesture zoom does not shear the result.
func (h *Handler) SetView(v geom.View, page int) {
	if h.active {
		return
	}
	h.view = v
	h.page = page
}

// SetTool switches the active tool. Ignored mid-gesture.
func (h *Handler) SetTool(t Tool) {
	if !h.active {
		h.tool = t
	}
}

// SetStyle sets the style for subsequently created annotations.
func (h *Handler) SetStyle(s annot.Style) {
	h.style = s
}

// Down starts a gesture at a view-space point.
func (h *Handler) Down(p r2.Point) error {
	if h.active {
		return &Error{Reason: "gesture already in progress"}
	}
	if !finite(p) {
		h.log.WithFields(logrus.Fields{"x": p.X, "y": p.Y}).Warn("dropping non-finite pointer down")
		return &Error{Reason: "non-finite coordinates"}
	}
	if err := h.view.Valid(); err != nil {
		return &Error{Reason: err.Error()}
	}
	h.active = true
	h.samples = h.samples[:0]
	h.samples = append(h.samples, geom.ToDoc(p, h.view))
	return nil
}

// Move extends the gesture. Non-finite samples are dropped, not fatal.
func (h *Handler) Move(p r2.Point) {
	if !h.active {
		return
	}
	if !finite(p) {
		h.log.WithFields(logrus.Fields{"x": p.X, "y": p.Y}).Warn("dropping non-finite pointer sample")
		return
	}
	h.samples = append(h.samples, geom.ToDoc(p, h.view))
}

// Up ends the gesture and commits at most one command. The created
// annotation is returned for tools that make one, nil otherwise.
func (h *Handler) Up(p r2.Point) (*annot.Annotation, error) {
	if !h.active {
		return nil, &Error{Reason: "no gesture in progress"}
	}
	h.active = false
	if finite(p) {
		h.samples = append(h.samples, geom.ToDoc(p, h.view))
	}
	if len(h.samples) == 0 {
		return nil, &Error{Reason: "gesture had no usable samples"}
	}

	switch h.tool {
	case ToolEraser:
		return nil, h.erase()
	case ToolSelect:
		h.Selected = h.pick(h.samples[len(h.samples)-1])
		return nil, nil
	}

	a, err := h.build()
	if err != nil {
		return nil, err
	}
	h.hist.Execute(history.NewCreate(a))
	h.log.WithFields(logrus.Fields{
		"id":   a.ID,
		"kind": a.Kind,
		"page": a.Page,
	}).Debug("annotation created")
	return a, nil
}

// Cancel abandons the gesture without committing anything.
func (h *Handler) Cancel() {
	h.active = false
	h.samples = h.samples[:0]
}

func (h *Handler) build() (*annot.Annotation, error) {
	first := h.samples[0]
	last := h.samples[len(h.samples)-1]

	a := &annot.Annotation{
		ID:    annot.NewID(),
		Page:  h.page,
		Style: h.style,
		Seq:   h.store.NextSeq(),
	}

	switch h.tool {
	case ToolHighlight:
		a.Kind = annot.Highlight
		r := r2.RectFromPoints(first, last)
		if r.X.Length() <= 0 || r.Y.Length() <= 0 {
			return nil, &Error{Reason: "highlight drag has no area"}
		}
		a.Quads = []annot.Quad{annot.QuadFromRect(r)}

	case ToolStroke:
		a.Kind = annot.Stroke
		pts := geom.Smooth(h.samples, smoothFactor)
		pts = geom.Simplify(pts, geom.UnscaleDistance(simplifyTolerance, h.view))
		if len(pts) < 2 {
			return nil, &Error{Reason: "stroke too short"}
		}
		// Short paths pass through the helpers unchanged and would alias
		// the sample buffer, which the next gesture reuses.
		a.Points = append([]r2.Point(nil), pts...)
		a.Width = h.style.StrokeWidth

	case ToolNote:
		a.Kind = annot.Note
		a.Anchor = last

	case ToolRect, ToolEllipse:
		a.Kind = annot.Rect
		if h.tool == ToolEllipse {
			a.Kind = annot.Ellipse
		}
		r := r2.RectFromPoints(first, last)
		if r.X.Length() <= 0 || r.Y.Length() <= 0 {
			return nil, &Error{Reason: "shape drag has no area"}
		}
		a.Bounds = r

	case ToolLine:
		a.Kind = annot.Line
		a.Start, a.End = first, last

	case ToolArrow:
		a.Kind = annot.Arrow
		a.Start, a.End = first, last
		a.HeadLength = geom.UnscaleDistance(arrowHeadLength, h.view)
		a.HeadAngle = arrowHeadAngle

	default:
		return nil, &Error{Reason: fmt.Sprintf("tool %q cannot create annotations", h.tool)}
	}

	if err := a.Validate(); err != nil {
		return nil, &Error{Reason: err.Error()}
	}
	return a, nil
}

// erase deletes the topmost annotation touched by the gesture path.
func (h *Handler) erase() error {
	tol := geom.UnscaleDistance(eraserTolerance, h.view)
	for _, p := range h.samples {
		if id := h.pickWithTolerance(p, tol); id != "" {
			a, ok := h.store.Get(id)
			if !ok {
				continue
			}
			h.hist.Execute(history.NewDelete(a))
			h.log.WithFields(logrus.Fields{"id": id, "page": h.page}).Debug("annotation erased")
			return nil
		}
	}
	return nil
}

// pick returns the topmost live annotation under a doc-space point.
func (h *Handler) pick(p r2.Point) string {
	return h.pickWithTolerance(p, geom.UnscaleDistance(eraserTolerance, h.view))
}

func (h *Handler) pickWithTolerance(p r2.Point, tol float64) string {
	snap := h.store.Page(h.page)
	for i := len(snap) - 1; i >= 0; i-- {
		if snap[i].Hit(p, tol) {
			return snap[i].ID
		}
	}
	return ""
}

// Translate moves the selected annotation by a doc-space delta as a single
// undoable edit.
func (h *Handler) Translate(dx, dy float64) error {
	if h.Selected == "" {
		return &Error{Reason: "nothing selected"}
	}
	old, ok := h.store.Get(h.Selected)
	if !ok {
		return &Error{Reason: "selection no longer exists"}
	}
	moved := old.Clone()
	moved.TranslateBy(dx, dy)
	cmd, err := history.NewModify(old, moved)
	if err != nil {
		return err
	}
	h.hist.Execute(cmd)
	return nil
}

// SetNoteText edits the text of the selected note as a single undoable edit.
func (h *Handler) SetNoteText(text string) error {
	if h.Selected == "" {
		return &Error{Reason: "nothing selected"}
	}
	old, ok := h.store.Get(h.Selected)
	if !ok {
		return &Error{Reason: "selection no longer exists"}
	}
	if old.Kind != annot.Note {
		return &Error{Reason: "selection is not a note"}
	}
	edited := old.Clone()
	edited.Text = text
	cmd, err := history.NewModify(old, edited)
	if err != nil {
		return err
	}
	h.hist.Execute(cmd)
	return nil
}

func finite(p r2.Point) bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) &&
		!math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}
