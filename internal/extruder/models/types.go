package models

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// ============================================================
// Geometry primitives
// ============================================================

// Point точка чертежа в миллиметрах. Идентичности нет, сравнение только с допуском.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

func FromVec(v r2.Vec) Point {
	return Point{X: v.X, Y: v.Y}
}

func (p Point) Vec() r2.Vec {
	return r2.Vec{X: p.X, Y: p.Y}
}

// Near сравнивает точки покоординатно: обе разницы не больше eps.
func (p Point) Near(q Point, eps float64) bool {
	return math.Abs(p.X-q.X) <= eps && math.Abs(p.Y-q.Y) <= eps
}

func (p Point) Dist(q Point) float64 {
	return r2.Norm(r2.Sub(p.Vec(), q.Vec()))
}

// Segment прямой отрезок. Направление важно только при обходе.
type Segment struct {
	Start Point `json:"start"`
	End   Point `json:"end"`
}

func Seg(x1, y1, x2, y2 float64) Segment {
	return Segment{Start: Pt(x1, y1), End: Pt(x2, y2)}
}

func (s Segment) Length() float64 {
	return s.Start.Dist(s.End)
}

func (s Segment) Reverse() Segment {
	return Segment{Start: s.End, End: s.Start}
}

// Degenerate true, если отрезок короче допуска и превратился бы в петлю на самого себя.
func (s Segment) Degenerate(tol float64) bool {
	return s.Start.Near(s.End, tol)
}

// SegmentSet все отрезки одного чертежа. Порядок не важен.
type SegmentSet []Segment

func (s SegmentSet) Bounds() BBox {
	box := EmptyBBox()
	for _, seg := range s {
		box = box.Extend(seg.Start).Extend(seg.End)
	}
	return box
}

// ============================================================
// Bounding box
// ============================================================

type BBox struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

func EmptyBBox() BBox {
	return BBox{
		MinX: math.MaxFloat64,
		MinY: math.MaxFloat64,
		MaxX: -math.MaxFloat64,
		MaxY: -math.MaxFloat64,
	}
}

func (b BBox) Empty() bool {
	return b.MinX > b.MaxX || b.MinY > b.MaxY
}

func (b BBox) Extend(p Point) BBox {
	b.MinX = math.Min(b.MinX, p.X)
	b.MinY = math.Min(b.MinY, p.Y)
	b.MaxX = math.Max(b.MaxX, p.X)
	b.MaxY = math.Max(b.MaxY, p.Y)
	return b
}

func (b BBox) Width() float64 {
	if b.Empty() {
		return 0
	}
	return b.MaxX - b.MinX
}

func (b BBox) Height() float64 {
	if b.Empty() {
		return 0
	}
	return b.MaxY - b.MinY
}

func (b BBox) Center() Point {
	return Point{X: (b.MinX + b.MaxX) / 2, Y: (b.MinY + b.MaxY) / 2}
}
