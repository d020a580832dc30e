package parser

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"

	"alprofile/internal/extruder/models"
)

// ============================================================
// DXF Writer
// ============================================================

// Encode пишет минимальный ASCII DXF (BLOCKS + ENTITIES), который читает ParseDXF.
// Используется для выгрузки нормализованного профиля.
func Encode(w io.Writer, d *models.Drawing) error {
	bw := bufio.NewWriter(w)
	e := &encoder{w: bw}

	if len(d.Blocks) > 0 {
		e.pair(0, "SECTION")
		e.pair(2, "BLOCKS")

		names := make([]string, 0, len(d.Blocks))
		for name := range d.Blocks {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			b := d.Blocks[name]
			e.pair(0, "BLOCK")
			e.pair(8, "0")
			e.pair(2, b.Name)
			e.pair(70, "0")
			e.point(10, b.Base)
			for _, ent := range b.Entities {
				e.entity(ent)
			}
			e.pair(0, "ENDBLK")
		}
		e.pair(0, "ENDSEC")
	}

	e.pair(0, "SECTION")
	e.pair(2, "ENTITIES")
	for _, ent := range d.Entities {
		e.entity(ent)
	}
	e.pair(0, "ENDSEC")
	e.pair(0, "EOF")

	if e.err != nil {
		return e.err
	}
	return bw.Flush()
}

// EncodeSegments выгружает набор отрезков как LINE-сущности.
func EncodeSegments(w io.Writer, segments models.SegmentSet) error {
	d := &models.Drawing{}
	for _, s := range segments {
		d.Entities = append(d.Entities, models.Line{Base: models.Base{Layer: "PROFILE"}, Start: s.Start, End: s.End})
	}
	return Encode(w, d)
}

type encoder struct {
	w   *bufio.Writer
	err error
}

func (e *encoder) pair(code int, value string) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, "%d\n%s\n", code, value)
}

func (e *encoder) num(code int, v float64) {
	e.pair(code, strconv.FormatFloat(v, 'f', -1, 64))
}

func (e *encoder) point(code int, p models.Point) {
	e.num(code, p.X)
	e.num(code+10, p.Y)
}

func (e *encoder) header(typ string, b models.Base) {
	e.pair(0, typ)
	if b.Handle != "" {
		e.pair(5, b.Handle)
	}
	layer := b.Layer
	if layer == "" {
		layer = "0"
	}
	e.pair(8, layer)
}

func (e *encoder) entity(ent models.Entity) {
	switch v := ent.(type) {
	case models.Line:
		e.header("LINE", v.Base)
		e.point(10, v.Start)
		e.point(11, v.End)
	case models.Polyline:
		e.polyline(v)
	case models.Circle:
		e.header("CIRCLE", v.Base)
		e.point(10, v.Center)
		e.num(40, v.Radius)
	case models.Arc:
		e.header("ARC", v.Base)
		e.point(10, v.Center)
		e.num(40, v.Radius)
		e.num(50, v.StartAngle)
		e.num(51, v.EndAngle)
	case models.Ellipse:
		e.header("ELLIPSE", v.Base)
		e.point(10, v.Center)
		e.point(11, v.MajorAxis)
		e.num(40, v.Ratio)
		e.num(41, v.StartParam)
		e.num(42, v.EndParam)
	case models.Spline:
		e.header("SPLINE", v.Base)
		flags := 0
		if v.Closed {
			flags = 1
		}
		e.pair(70, strconv.Itoa(flags))
		e.pair(71, strconv.Itoa(v.Degree))
		for _, k := range v.Knots {
			e.num(40, k)
		}
		for _, wt := range v.Weights {
			e.num(41, wt)
		}
		for _, p := range v.ControlPoints {
			e.point(10, p)
		}
		for _, p := range v.FitPoints {
			e.point(11, p)
		}
	case models.Insert:
		e.header("INSERT", v.Base)
		e.pair(2, v.Block)
		e.point(10, v.Position)
		e.num(41, v.ScaleX)
		e.num(42, v.ScaleY)
		e.num(50, v.Rotation)
	case models.Unknown:
		e.header(v.Type, v.Base)
	}
}

func (e *encoder) polyline(p models.Polyline) {
	flags := "0"
	if p.Closed {
		flags = "1"
	}

	if !p.Legacy {
		e.header("LWPOLYLINE", p.Base)
		e.pair(90, strconv.Itoa(len(p.Vertices)))
		e.pair(70, flags)
		for _, v := range p.Vertices {
			e.point(10, v.Point)
			if v.Bulge != 0 {
				e.num(42, v.Bulge)
			}
		}
		return
	}

	e.header("POLYLINE", p.Base)
	e.pair(66, "1")
	e.pair(70, flags)
	for _, v := range p.Vertices {
		e.header("VERTEX", p.Base)
		e.point(10, v.Point)
		if v.Bulge != 0 {
			e.num(42, v.Bulge)
		}
	}
	e.header("SEQEND", p.Base)
}
