package mapper

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"alprofile/internal/extruder/models"
	"alprofile/internal/extruder/pipeline"
)

// ============================================================
// SVG preview renderer
// ============================================================

const (
	DefaultThumbSize = 256
	thumbPadding     = 0.05
)

type Renderer struct {
	size int
}

func NewRenderer(size int) *Renderer {
	if size <= 0 {
		size = DefaultThumbSize
	}
	return &Renderer{size: size}
}

// Render собирает SVG-миниатюру: контуры заливкой, отрезки линиями,
// висячие концы точками. Ось Y чертежа направлена вверх.
func (r *Renderer) Render(a *pipeline.Analysis) (string, error) {
	if a == nil {
		return "", fmt.Errorf("analysis is nil")
	}
	if a.BBox.Empty() {
		return "", fmt.Errorf("nothing to render: %w", models.ErrEmptyDrawing)
	}

	view := newViewport(a.BBox, r.size)

	var elements []string
	elements = append(elements, r.renderLoops(view, a.Loops)...)
	elements = append(elements, r.renderSegments(view, a.Segments))
	elements = append(elements, r.renderDangling(view, a.Dangling)...)

	var builder strings.Builder
	builder.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	builder.WriteString(fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %s %s">`,
		view.pxW, view.pxH, formatFloat(view.w), formatFloat(view.h)))
	builder.WriteString("\n")

	for _, elem := range elements {
		if elem == "" {
			continue
		}
		builder.WriteString("  ")
		builder.WriteString(elem)
		builder.WriteString("\n")
	}

	builder.WriteString(`</svg>`)
	return builder.String(), nil
}

// ============================================================
// Viewport
// ============================================================

type viewport struct {
	minX, maxY float64
	pad        float64
	w, h       float64
	pxW, pxH   int
	stroke     float64
}

func newViewport(box models.BBox, size int) viewport {
	width, height := box.Width(), box.Height()
	side := math.Max(width, height)
	if side == 0 {
		side = 1
	}
	pad := side * thumbPadding

	v := viewport{
		minX:   box.MinX,
		maxY:   box.MaxY,
		pad:    pad,
		w:      width + 2*pad,
		h:      height + 2*pad,
		stroke: side / float64(size),
	}

	// длинная сторона = size пикселей
	scale := float64(size) / math.Max(v.w, v.h)
	v.pxW = max(1, int(math.Round(v.w*scale)))
	v.pxH = max(1, int(math.Round(v.h*scale)))
	return v
}

func (v viewport) point(p models.Point) string {
	x := p.X - v.minX + v.pad
	y := v.maxY - p.Y + v.pad
	return formatFloat(round(x)) + " " + formatFloat(round(y))
}

// ============================================================
// Element renderers
// ============================================================

func (r *Renderer) renderLoops(v viewport, loops []models.ClosedLoop) []string {
	var out []string
	for i, loop := range loops {
		if loop.Len() < 3 {
			continue
		}
		var d strings.Builder
		for j, p := range loop.Points {
			if j == 0 {
				d.WriteString("M")
			} else {
				d.WriteString(" L")
			}
			d.WriteString(v.point(p))
		}
		d.WriteString(" Z")
		out = append(out, fmt.Sprintf(`<path id="loop-%d" d="%s" fill="#9fb8d0" fill-opacity="0.5" stroke="none" />`, i, d.String()))
	}
	return out
}

func (r *Renderer) renderSegments(v viewport, segments models.SegmentSet) string {
	if len(segments) == 0 {
		return ""
	}
	var d strings.Builder
	for i, s := range segments {
		if i > 0 {
			d.WriteString(" ")
		}
		d.WriteString("M")
		d.WriteString(v.point(s.Start))
		d.WriteString(" L")
		d.WriteString(v.point(s.End))
	}
	return fmt.Sprintf(`<path id="segments" d="%s" fill="none" stroke="#000" stroke-width="%s" />`,
		d.String(), formatFloat(round(v.stroke)))
}

func (r *Renderer) renderDangling(v viewport, points []models.Point) []string {
	out := make([]string, 0, len(points))
	for _, p := range points {
		xy := strings.Fields(v.point(p))
		out = append(out, fmt.Sprintf(`<circle cx="%s" cy="%s" r="%s" fill="#d33" />`,
			xy[0], xy[1], formatFloat(round(3*v.stroke))))
	}
	return out
}

// ============================================================
// Formatting helpers
// ============================================================

func round(val float64) float64 {
	return math.Round(val*1000) / 1000
}

func formatFloat(val float64) string {
	return strconv.FormatFloat(val, 'f', -1, 64)
}
