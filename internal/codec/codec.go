// Package codec serializes the annotation store to the durable annotation
// layer and back. The layer is a self-describing JSON object graph kept
// separate from the PDF page content, so the base document is never
// touched by a save.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/golang/geo/r2"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"pdfmark/internal/annot"
	"pdfmark/internal/store"
)

// FormatVersion is bumped whenever the record shape changes incompatibly.
// Version 1 persists z-order as an explicit per-annotation field.
const FormatVersion = 1

// CorruptError marks an unreadable layer. Per-record problems never
// produce it; only the envelope can.
type CorruptError struct {
	Reason string
	Err    error
}

func (e *CorruptError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("annotation layer corrupt: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("annotation layer corrupt: %s", e.Reason)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// Warning records a single annotation that was skipped during load.
type Warning struct {
	Index  int
	ID     string
	Kind   string
	Reason string
}

func (w Warning) String() string {
	return fmt.Sprintf("record %d (%s %s): %s", w.Index, w.Kind, w.ID, w.Reason)
}

type layerFile struct {
	Version     int      `json:"version"`
	Annotations []Record `json:"annotations"`
}

// Record is the durable shape of one annotation. Points are encoded as
// [x, y] pairs and quads in PDF QuadPoints order, eight numbers each.
type Record struct {
	ID   string `json:"id"`
	Page int    `json:"page"`
	Kind string `json:"kind"`

	Quads  [][]float64 `json:"quads,omitempty"`
	Points [][]float64 `json:"points,omitempty"`
	Width  float64     `json:"width,omitempty"`

	Anchor []float64 `json:"anchor,omitempty"`
	Text   string    `json:"text,omitempty"`

	Bounds []float64 `json:"bounds,omitempty"` // x1 y1 x2 y2

	Start      []float64 `json:"start,omitempty"`
	End        []float64 `json:"end,omitempty"`
	HeadLength float64   `json:"headLength,omitempty"`
	HeadAngle  float64   `json:"headAngle,omitempty"`

	Style StyleRecord `json:"style"`

	Z      int    `json:"z"`
	Seq    uint64 `json:"seq"`
	ModSeq uint64 `json:"modSeq"`
}

// StyleRecord is the durable shape of a style.
type StyleRecord struct {
	Color       string    `json:"color,omitempty"`
	Opacity     float64   `json:"opacity"`
	StrokeWidth float64   `json:"strokeWidth,omitempty"`
	Dash        []float64 `json:"dash,omitempty"`
	Fill        string    `json:"fill,omitempty"`
}

// Encode serializes the live annotations of st in deterministic order
// (page, z, creation sequence). Saving twice without edits produces
// byte-identical output.
func Encode(st *store.Store) ([]byte, error) {
	live := st.Live()
	layer := layerFile{
		Version:     FormatVersion,
		Annotations: make([]Record, 0, len(live)),
	}
	for _, a := range live {
		layer.Annotations = append(layer.Annotations, ToRecord(a))
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(layer); err != nil {
		return nil, fmt.Errorf("encode annotation layer: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a durable layer into a fresh store. Unknown kinds and
// malformed geometry cost only the one record, reported as warnings; a
// corrupt envelope or unsupported version fails the whole load.
func Decode(data []byte) (*store.Store, []Warning, error) {
	if err := validateEnvelope(data); err != nil {
		return nil, nil, err
	}

	var layer layerFile
	if err := json.Unmarshal(data, &layer); err != nil {
		return nil, nil, &CorruptError{Reason: "malformed JSON", Err: err}
	}
	if layer.Version > FormatVersion {
		return nil, nil, &CorruptError{
			Reason: fmt.Sprintf("layer version %d newer than supported %d", layer.Version, FormatVersion),
		}
	}

	st := store.New()
	var warnings []Warning

	for i, rec := range layer.Annotations {
		a, err := FromRecord(rec)
		if err != nil {
			warnings = append(warnings, Warning{
				Index:  i,
				ID:     rec.ID,
				Kind:   rec.Kind,
				Reason: err.Error(),
			})
			continue
		}
		if !st.Insert(a) {
			warnings = append(warnings, Warning{
				Index:  i,
				ID:     rec.ID,
				Kind:   rec.Kind,
				Reason: "duplicate id",
			})
		}
	}

	return st, warnings, nil
}

// ToRecord converts an annotation to its durable shape.
func ToRecord(a *annot.Annotation) Record {
	rec := Record{
		ID:     a.ID,
		Page:   a.Page,
		Kind:   string(a.Kind),
		Z:      a.Z,
		Seq:    a.Seq,
		ModSeq: a.ModSeq,
		Style: StyleRecord{
			Color:       a.Style.Color,
			Opacity:     a.Style.Opacity,
			StrokeWidth: a.Style.StrokeWidth,
			Dash:        a.Style.Dash,
			Fill:        a.Style.Fill,
		},
	}

	switch a.Kind {
	case annot.Highlight:
		for _, q := range a.Quads {
			rec.Quads = append(rec.Quads, []float64{
				q[0].X, q[0].Y, q[1].X, q[1].Y,
				q[2].X, q[2].Y, q[3].X, q[3].Y,
			})
		}
	case annot.Stroke:
		rec.Width = a.Width
		for _, p := range a.Points {
			rec.Points = append(rec.Points, []float64{p.X, p.Y})
		}
	case annot.Note:
		rec.Anchor = []float64{a.Anchor.X, a.Anchor.Y}
		rec.Text = a.Text
	case annot.Rect, annot.Ellipse:
		rec.Bounds = []float64{a.Bounds.X.Lo, a.Bounds.Y.Lo, a.Bounds.X.Hi, a.Bounds.Y.Hi}
	case annot.Line, annot.Arrow:
		rec.Start = []float64{a.Start.X, a.Start.Y}
		rec.End = []float64{a.End.X, a.End.Y}
		rec.HeadLength = a.HeadLength
		rec.HeadAngle = a.HeadAngle
	}

	return rec
}

// FromRecord converts a durable record back to an annotation. Returns an
// error for unknown kinds and malformed geometry; the caller drops the one
// record.
func FromRecord(rec Record) (*annot.Annotation, error) {
	kind := annot.Kind(rec.Kind)
	if !kind.Known() {
		return nil, fmt.Errorf("unknown kind %q", rec.Kind)
	}

	a := &annot.Annotation{
		ID:     rec.ID,
		Page:   rec.Page,
		Kind:   kind,
		Z:      rec.Z,
		Seq:    rec.Seq,
		ModSeq: rec.ModSeq,
		Style: annot.Style{
			Color:       rec.Style.Color,
			Opacity:     rec.Style.Opacity,
			StrokeWidth: rec.Style.StrokeWidth,
			Dash:        rec.Style.Dash,
			Fill:        rec.Style.Fill,
		},
	}

	switch kind {
	case annot.Highlight:
		for _, q := range rec.Quads {
			if len(q) != 8 {
				return nil, fmt.Errorf("quad with %d coordinates", len(q))
			}
			a.Quads = append(a.Quads, annot.Quad{
				{X: q[0], Y: q[1]},
				{X: q[2], Y: q[3]},
				{X: q[4], Y: q[5]},
				{X: q[6], Y: q[7]},
			})
		}
	case annot.Stroke:
		a.Width = rec.Width
		for _, p := range rec.Points {
			if len(p) != 2 {
				return nil, fmt.Errorf("point with %d coordinates", len(p))
			}
			a.Points = append(a.Points, r2.Point{X: p[0], Y: p[1]})
		}
	case annot.Note:
		pt, err := pair(rec.Anchor, "anchor")
		if err != nil {
			return nil, err
		}
		a.Anchor = pt
		a.Text = rec.Text
	case annot.Rect, annot.Ellipse:
		if len(rec.Bounds) != 4 {
			return nil, fmt.Errorf("bounds with %d coordinates", len(rec.Bounds))
		}
		a.Bounds = r2.RectFromPoints(
			r2.Point{X: rec.Bounds[0], Y: rec.Bounds[1]},
			r2.Point{X: rec.Bounds[2], Y: rec.Bounds[3]},
		)
	case annot.Line, annot.Arrow:
		start, err := pair(rec.Start, "start")
		if err != nil {
			return nil, err
		}
		end, err := pair(rec.End, "end")
		if err != nil {
			return nil, err
		}
		a.Start = start
		a.End = end
		a.HeadLength = rec.HeadLength
		a.HeadAngle = rec.HeadAngle
	}

	if err := a.Validate(); err != nil {
		return nil, err
	}
	if err := a.Style.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

func pair(v []float64, name string) (r2.Point, error) {
	if len(v) != 2 {
		return r2.Point{}, fmt.Errorf("%s with %d coordinates", name, len(v))
	}
	return r2.Point{X: v[0], Y: v[1]}, nil
}

// envelopeSchema checks the outer structure only. Record internals are
// deliberately loose so future kinds pass the envelope and get skipped
// record by record.
const envelopeSchema = `{
  "type": "object",
  "required": ["version", "annotations"],
  "properties": {
    "version": {"type": "integer", "minimum": 1},
    "annotations": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "page", "kind"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "page": {"type": "integer", "minimum": 0},
          "kind": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`

var compiledEnvelope = jsonschema.MustCompileString("layer.schema.json", envelopeSchema)

func validateEnvelope(data []byte) error {
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return &CorruptError{Reason: "malformed JSON", Err: err}
	}
	if err := compiledEnvelope.Validate(instance); err != nil {
		return &CorruptError{Reason: "envelope schema", Err: err}
	}
	return nil
}
