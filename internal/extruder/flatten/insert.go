package flatten

import (
	"math"

	"alprofile/internal/extruder/models"
)

// ============================================================
// INSERT expansion
// ============================================================

// insert раскрывает ссылку на блок: сдвиг к базе блока, масштаб, поворот,
// перенос в точку вставки. Нулевой масштаб трактуется как 1.
func (r *run) insert(ins models.Insert, parent transform) {
	if parent.depth >= r.opts.MaxBlockDepth {
		r.skip(ins, "block nesting deeper than %d", r.opts.MaxBlockDepth)
		return
	}
	block, ok := r.drawing.ResolveBlock(ins.Block)
	if !ok {
		r.skip(ins, "unknown block %q", ins.Block)
		return
	}
	if !finite(ins.Position) {
		r.skip(ins, "non-finite insertion point")
		return
	}
	if !finiteValues(ins.ScaleX, ins.ScaleY, ins.Rotation) {
		r.skip(ins, "non-finite coordinates")
		return
	}

	sx, sy := ins.ScaleX, ins.ScaleY
	if sx == 0 {
		sx = 1
	}
	if sy == 0 {
		sy = 1
	}
	rad := ins.Rotation * math.Pi / 180
	sin, cos := math.Sincos(rad)
	base := block.Base
	pos := ins.Position

	local := func(p models.Point) models.Point {
		x := (p.X - base.X) * sx
		y := (p.Y - base.Y) * sy
		return models.Point{
			X: pos.X + x*cos - y*sin,
			Y: pos.Y + x*sin + y*cos,
		}
	}

	child := transform{
		apply: func(p models.Point) models.Point { return parent.apply(local(p)) },
		scale: parent.scale * math.Max(math.Abs(sx), math.Abs(sy)),
		depth: parent.depth + 1,
	}
	for _, e := range block.Entities {
		r.entity(e, child)
	}
}
