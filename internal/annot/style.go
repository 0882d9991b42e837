package annot

import (
	"fmt"
	"image/color"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Style carries the drawing properties of an annotation, independent of its
// geometry.
type Style struct {
	Color       string // hex, #rrggbb
	Opacity     float64
	StrokeWidth float64
	Dash        []float64
	Fill        string // hex, empty for no fill
}

// DefaultStyle is applied when a tool has no configured style.
func DefaultStyle() Style {
	return Style{
		Color:       "#ffd400",
		Opacity:     1.0,
		StrokeWidth: 2.0,
	}
}

func (s Style) clone() Style {
	c := s
	if s.Dash != nil {
		c.Dash = append([]float64(nil), s.Dash...)
	}
	return c
}

// Validate checks the style fields that have hard ranges.
func (s Style) Validate() error {
	if s.Opacity < 0 || s.Opacity > 1 {
		return fmt.Errorf("opacity %v out of range", s.Opacity)
	}
	if s.Color != "" {
		if _, err := colorful.Hex(s.Color); err != nil {
			return fmt.Errorf("color %q: %w", s.Color, err)
		}
	}
	if s.Fill != "" {
		if _, err := colorful.Hex(s.Fill); err != nil {
			return fmt.Errorf("fill %q: %w", s.Fill, err)
		}
	}
	return nil
}

// RGBA returns the stroke color with the style opacity applied, ready for
// the compositor. Falls back to opaque black on a missing color.
func (s Style) RGBA() color.RGBA {
	return hexToRGBA(s.Color, s.Opacity)
}

// FillRGBA returns the fill color, or transparent when no fill is set.
func (s Style) FillRGBA() color.RGBA {
	if s.Fill == "" {
		return color.RGBA{}
	}
	return hexToRGBA(s.Fill, s.Opacity)
}

func hexToRGBA(hexStr string, opacity float64) color.RGBA {
	c, err := colorful.Hex(hexStr)
	if err != nil {
		c = colorful.Color{}
	}
	if opacity < 0 {
		opacity = 0
	}
	if opacity > 1 {
		opacity = 1
	}
	a := opacity * 255
	return color.RGBA{
		R: uint8(c.R * a),
		G: uint8(c.G * a),
		B: uint8(c.B * a),
		A: uint8(a),
	}
}

// HexFromComponents builds a #rrggbb string from normalized rgb values.
func HexFromComponents(r, g, b float64) string {
	return colorful.Color{R: clamp01(r), G: clamp01(g), B: clamp01(b)}.Hex()
}

// ComponentsFromHex splits a #rrggbb string into normalized rgb values.
// Invalid input yields black.
func ComponentsFromHex(hexStr string) (r, g, b float64) {
	c, err := colorful.Hex(hexStr)
	if err != nil {
		return 0, 0, 0
	}
	return c.R, c.G, c.B
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ColorCategory buckets a hex color into a human name based on HSL. Used by
// the CLI listing so annotations can be grouped by color.
func ColorCategory(hexStr string) string {
	c, err := colorful.Hex(hexStr)
	if err != nil {
		return ""
	}

	h, s, l := c.Hsl()

	if l < 0.12 {
		return "Black"
	}
	if l > 0.98 {
		return "White"
	}
	if s < 0.2 {
		return "Gray"
	}
	if h < 15 {
		return "Red"
	}
	if h < 45 {
		return "Orange"
	}
	if h < 65 {
		return "Yellow"
	}
	if h < 170 {
		return "Green"
	}
	if h < 190 {
		return "Cyan"
	}
	if h < 263 {
		return "Blue"
	}
	if h < 280 {
		return "Purple"
	}
	if h < 335 {
		return "Magenta"
	}
	return "Red"
}
