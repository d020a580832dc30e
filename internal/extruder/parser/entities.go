package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"alprofile/internal/extruder/models"
)

// ============================================================
// Entity decoders
// ============================================================

// fields доступ к группе тегов одной сущности.
type fields []tag

func (f fields) has(code int) bool {
	for _, t := range f {
		if t.code == code {
			return true
		}
	}
	return false
}

func (f fields) str(code int) string {
	for _, t := range f {
		if t.code == code {
			return t.value
		}
	}
	return ""
}

// float возвращает значение кода или def, ok=false если значение есть, но не число.
func (f fields) float(code int, def float64) (float64, bool) {
	for _, t := range f {
		if t.code == code {
			v, err := strconv.ParseFloat(strings.TrimSpace(t.value), 64)
			if err != nil {
				return def, false
			}
			return v, true
		}
	}
	return def, true
}

func (f fields) int(code int) int {
	v, err := strconv.Atoi(strings.TrimSpace(f.str(code)))
	if err != nil {
		return 0
	}
	return v
}

// point читает пару кодов (x, x+10). Обе координаты обязательны.
func (f fields) point(xCode int) (models.Point, error) {
	if !f.has(xCode) || !f.has(xCode+10) {
		return models.Point{}, fmt.Errorf("missing group %d/%d", xCode, xCode+10)
	}
	x, okX := f.float(xCode, 0)
	y, okY := f.float(xCode+10, 0)
	if !okX || !okY {
		return models.Point{}, fmt.Errorf("bad number in group %d/%d", xCode, xCode+10)
	}
	return models.Point{X: x, Y: y}, nil
}

func (f fields) required(code int) (float64, error) {
	if !f.has(code) {
		return 0, fmt.Errorf("missing group %d", code)
	}
	v, ok := f.float(code, 0)
	if !ok {
		return 0, fmt.Errorf("bad number in group %d", code)
	}
	return v, nil
}

func base(f fields) models.Base {
	return models.Base{Handle: f.str(5), Layer: f.str(8)}
}

func unknown(typ string, f fields, err error) models.Entity {
	u := models.Unknown{Base: base(f), Type: typ}
	if err != nil {
		u.Reason = err.Error()
	}
	return u
}

func decodeEntity(typ string, group []tag) models.Entity {
	f := fields(group)

	var (
		ent models.Entity
		err error
	)
	switch typ {
	case "LINE":
		ent, err = decodeLine(f)
	case "LWPOLYLINE":
		ent, err = decodeLWPolyline(f)
	case "CIRCLE":
		ent, err = decodeCircle(f)
	case "ARC":
		ent, err = decodeArc(f)
	case "ELLIPSE":
		ent, err = decodeEllipse(f)
	case "SPLINE":
		ent, err = decodeSpline(f)
	case "INSERT":
		ent, err = decodeInsert(f)
	default:
		return unknown(typ, f, nil)
	}

	if err != nil {
		return unknown(typ, f, err)
	}
	return ent
}

func decodeLine(f fields) (models.Entity, error) {
	start, err := f.point(10)
	if err != nil {
		return nil, err
	}
	end, err := f.point(11)
	if err != nil {
		return nil, err
	}
	return models.Line{Base: base(f), Start: start, End: end}, nil
}

// decodeLWPolyline каждый код 10 открывает новую вершину, 20 и 42 относятся к ней.
func decodeLWPolyline(f fields) (models.Entity, error) {
	pl := models.Polyline{Base: base(f), Closed: f.int(70)&1 == 1}

	for _, t := range f {
		switch t.code {
		case 10:
			x, err := strconv.ParseFloat(strings.TrimSpace(t.value), 64)
			if err != nil {
				return nil, fmt.Errorf("bad vertex x %q", t.value)
			}
			pl.Vertices = append(pl.Vertices, models.Vertex{Point: models.Point{X: x, Y: math.NaN()}})
		case 20:
			if len(pl.Vertices) == 0 {
				continue
			}
			y, err := strconv.ParseFloat(strings.TrimSpace(t.value), 64)
			if err != nil {
				return nil, fmt.Errorf("bad vertex y %q", t.value)
			}
			pl.Vertices[len(pl.Vertices)-1].Y = y
		case 42:
			if len(pl.Vertices) == 0 {
				continue
			}
			b, err := strconv.ParseFloat(strings.TrimSpace(t.value), 64)
			if err == nil {
				pl.Vertices[len(pl.Vertices)-1].Bulge = b
			}
		}
	}

	for i, v := range pl.Vertices {
		if math.IsNaN(v.Y) {
			return nil, fmt.Errorf("vertex %d without y", i)
		}
	}
	if len(pl.Vertices) < 2 {
		return nil, fmt.Errorf("polyline with %d vertices", len(pl.Vertices))
	}
	return pl, nil
}

// decodePolyline старый POLYLINE: вершины приходят отдельными VERTEX.
func decodePolyline(group []tag, vertices [][]tag) models.Entity {
	f := fields(group)
	flags := f.int(70)
	// 3D-сетки и многогранники не являются контурами
	if flags&(16|64) != 0 {
		return unknown("POLYLINE", f, fmt.Errorf("mesh polyline (flags %d)", flags))
	}

	pl := models.Polyline{Base: base(f), Closed: flags&1 == 1, Legacy: true}
	for i, vg := range vertices {
		vf := fields(vg)
		// управляющие точки сплайн-рамки не лежат на кривой
		if vf.int(70)&16 != 0 {
			continue
		}
		p, err := vf.point(10)
		if err != nil {
			return unknown("POLYLINE", f, fmt.Errorf("vertex %d: %w", i, err))
		}
		bulge, _ := vf.float(42, 0)
		pl.Vertices = append(pl.Vertices, models.Vertex{Point: p, Bulge: bulge})
	}

	if len(pl.Vertices) < 2 {
		return unknown("POLYLINE", f, fmt.Errorf("polyline with %d vertices", len(pl.Vertices)))
	}
	return pl
}

func decodeCircle(f fields) (models.Entity, error) {
	center, err := f.point(10)
	if err != nil {
		return nil, err
	}
	r, err := f.required(40)
	if err != nil {
		return nil, err
	}
	return models.Circle{Base: base(f), Center: center, Radius: r}, nil
}

func decodeArc(f fields) (models.Entity, error) {
	center, err := f.point(10)
	if err != nil {
		return nil, err
	}
	r, err := f.required(40)
	if err != nil {
		return nil, err
	}
	start, err := f.required(50)
	if err != nil {
		return nil, err
	}
	end, err := f.required(51)
	if err != nil {
		return nil, err
	}
	return models.Arc{Base: base(f), Center: center, Radius: r, StartAngle: start, EndAngle: end}, nil
}

func decodeEllipse(f fields) (models.Entity, error) {
	center, err := f.point(10)
	if err != nil {
		return nil, err
	}
	major, err := f.point(11)
	if err != nil {
		return nil, err
	}
	ratio, err := f.required(40)
	if err != nil {
		return nil, err
	}
	start, _ := f.float(41, 0)
	end, _ := f.float(42, 2*math.Pi)
	return models.Ellipse{
		Base:       base(f),
		Center:     center,
		MajorAxis:  major,
		Ratio:      ratio,
		StartParam: start,
		EndParam:   end,
	}, nil
}

// decodeSpline коды 40 (узлы), 41 (веса), 10/20 (управляющие), 11/21 (fit) повторяются.
func decodeSpline(f fields) (models.Entity, error) {
	sp := models.Spline{
		Base:   base(f),
		Degree: f.int(71),
		Closed: f.int(70)&1 == 1,
	}

	var pendingCtrl, pendingFit *float64
	for _, t := range f {
		v, err := strconv.ParseFloat(strings.TrimSpace(t.value), 64)
		if err != nil {
			continue
		}
		switch t.code {
		case 40:
			sp.Knots = append(sp.Knots, v)
		case 41:
			sp.Weights = append(sp.Weights, v)
		case 10:
			x := v
			pendingCtrl = &x
		case 20:
			if pendingCtrl != nil {
				sp.ControlPoints = append(sp.ControlPoints, models.Point{X: *pendingCtrl, Y: v})
				pendingCtrl = nil
			}
		case 11:
			x := v
			pendingFit = &x
		case 21:
			if pendingFit != nil {
				sp.FitPoints = append(sp.FitPoints, models.Point{X: *pendingFit, Y: v})
				pendingFit = nil
			}
		}
	}

	if len(sp.FitPoints) < 2 && len(sp.ControlPoints) < 2 {
		return nil, fmt.Errorf("spline without fit or control points")
	}
	return sp, nil
}

func decodeInsert(f fields) (models.Entity, error) {
	name := f.str(2)
	if name == "" {
		return nil, fmt.Errorf("missing block name")
	}
	pos, err := f.point(10)
	if err != nil {
		return nil, err
	}
	sx, _ := f.float(41, 1)
	sy, _ := f.float(42, 1)
	rot, _ := f.float(50, 0)
	return models.Insert{
		Base:     base(f),
		Block:    name,
		Position: pos,
		ScaleX:   sx,
		ScaleY:   sy,
		Rotation: rot,
	}, nil
}
