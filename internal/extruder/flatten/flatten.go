package flatten

import (
	"fmt"
	"math"

	"alprofile/internal/extruder/models"

	"github.com/gofiber/fiber/v3/log"
)

// ============================================================
// Entity Flattener
// ============================================================

// Options разрешение аппроксимации кривых.
type Options struct {
	ArcSegments    int     // отрезков на полный оборот (нижняя граница)
	MinArcSegments int     // минимум для любой дуги
	MaxArcSegments int     // потолок на полный оборот
	ChordLength    float64 // желаемая длина хорды, мм
	SplineSteps    int     // минимум шагов выборки NURBS
	MaxBlockDepth  int     // глубина вложенных INSERT
}

func DefaultOptions() Options {
	return Options{
		ArcSegments:    48,
		MinArcSegments: 16,
		MaxArcSegments: 256,
		ChordLength:    2.0,
		SplineSteps:    32,
		MaxBlockDepth:  8,
	}
}

func (o Options) normalized() Options {
	def := DefaultOptions()
	if o.ArcSegments <= 0 {
		o.ArcSegments = def.ArcSegments
	}
	if o.MinArcSegments <= 0 {
		o.MinArcSegments = def.MinArcSegments
	}
	if o.MaxArcSegments < o.ArcSegments {
		o.MaxArcSegments = max(def.MaxArcSegments, o.ArcSegments)
	}
	if o.ChordLength <= 0 {
		o.ChordLength = def.ChordLength
	}
	if o.SplineSteps < 32 {
		o.SplineSteps = def.SplineSteps
	}
	if o.MaxBlockDepth <= 0 {
		o.MaxBlockDepth = def.MaxBlockDepth
	}
	return o
}

// Diagnostic пропущенная сущность. Весь проход она не прерывает.
type Diagnostic struct {
	Entity string `json:"entity"`
	Handle string `json:"handle,omitempty"`
	Layer  string `json:"layer,omitempty"`
	Reason string `json:"reason"`
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s %s: %s", d.Entity, d.Handle, d.Reason)
}

func (d Diagnostic) Unwrap() error {
	return models.ErrUnsupportedEntity
}

// Flatten раскладывает сущности на отрезки с заданным числом сегментов на оборот.
func Flatten(d *models.Drawing, arcSegments int) (models.SegmentSet, []Diagnostic) {
	opts := DefaultOptions()
	opts.ArcSegments = arcSegments
	return New(opts).Flatten(d)
}

type Flattener struct {
	opts Options
}

func New(opts Options) *Flattener {
	return &Flattener{opts: opts.normalized()}
}

// transform локальные координаты блока → мировые; scale нужен для выбора
// числа сегментов дуги.
type transform struct {
	apply func(models.Point) models.Point
	scale float64
	depth int
}

func identity() transform {
	return transform{
		apply: func(p models.Point) models.Point { return p },
		scale: 1,
	}
}

// run состояние одного прохода.
type run struct {
	opts        Options
	drawing     *models.Drawing
	segments    models.SegmentSet
	diagnostics []Diagnostic
}

// Flatten не дедуплицирует отрезки: это работа индекса связности.
func (f *Flattener) Flatten(d *models.Drawing) (models.SegmentSet, []Diagnostic) {
	if d == nil {
		return nil, nil
	}

	r := &run{opts: f.opts, drawing: d}
	for _, e := range d.Entities {
		r.entity(e, identity())
	}

	if len(r.diagnostics) > 0 {
		log.Warnf("[FLATTEN] %d entities skipped", len(r.diagnostics))
	}
	log.Debugf("[FLATTEN] segments=%d", len(r.segments))
	return r.segments, r.diagnostics
}

func (r *run) skip(e models.Entity, format string, args ...any) {
	ref := e.Ref()
	d := Diagnostic{
		Entity: e.EntityType(),
		Handle: ref.Handle,
		Layer:  ref.Layer,
		Reason: fmt.Sprintf(format, args...),
	}
	log.Warnf("[FLATTEN] skip %s", d.Error())
	r.diagnostics = append(r.diagnostics, d)
}

// entity раскладывает одну сущность. Если в результате оказалась
// нечисловая координата, добавленные отрезки откатываются и сущность
// пропускается целиком. Вложенные в INSERT сущности проверяются сами.
func (r *run) entity(e models.Entity, tr transform) {
	mark := len(r.segments)
	r.dispatch(e, tr)
	if _, nested := e.(models.Insert); nested {
		return
	}
	for _, s := range r.segments[mark:] {
		if !finite(s.Start, s.End) {
			r.segments = r.segments[:mark]
			r.skip(e, "non-finite coordinates")
			return
		}
	}
}

func (r *run) dispatch(e models.Entity, tr transform) {
	switch v := e.(type) {
	case models.Line:
		if !finite(v.Start, v.End) {
			r.skip(e, "non-finite coordinates")
			return
		}
		r.add(tr, v.Start, v.End)
	case models.Polyline:
		r.polyline(v, tr)
	case models.Circle:
		if !finite(v.Center) || !(v.Radius > 0) || math.IsInf(v.Radius, 0) {
			r.skip(e, "bad radius %v", v.Radius)
			return
		}
		r.chain(tr, r.arcPoints(v.Center, v.Radius, 0, 2*math.Pi, tr.scale))
	case models.Arc:
		r.arc(v, tr)
	case models.Ellipse:
		r.ellipse(v, tr)
	case models.Spline:
		r.spline(v, tr)
	case models.Insert:
		r.insert(v, tr)
	case models.Unknown:
		if v.Reason != "" {
			r.skip(e, "%s", v.Reason)
			return
		}
		r.skip(e, "unsupported entity type")
	default:
		r.skip(e, "unsupported entity type")
	}
}

func (r *run) add(tr transform, a, b models.Point) {
	r.segments = append(r.segments, models.Segment{Start: tr.apply(a), End: tr.apply(b)})
}

// chain соединяет последовательные точки отрезками.
func (r *run) chain(tr transform, pts []models.Point) {
	for i := 0; i+1 < len(pts); i++ {
		r.add(tr, pts[i], pts[i+1])
	}
}

func finite(pts ...models.Point) bool {
	for _, p := range pts {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return false
		}
	}
	return true
}

func finiteValues(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
