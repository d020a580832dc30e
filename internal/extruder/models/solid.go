package models

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// ============================================================
// Wire / Face / Solid
// ============================================================

// Edge прямое ребро между двумя точками плоскости эскиза.
type Edge struct {
	A Point `json:"a"`
	B Point `json:"b"`
}

func (e Edge) Length() float64 {
	return e.A.Dist(e.B)
}

// Wire упорядоченная цепочка рёбер, открытая или замкнутая.
type Wire struct {
	Edges  []Edge `json:"edges"`
	Closed bool   `json:"closed"`
}

// Points вершины проволоки без повтора точки замыкания.
func (w Wire) Points() []Point {
	if len(w.Edges) == 0 {
		return nil
	}
	out := make([]Point, 0, len(w.Edges)+1)
	for _, e := range w.Edges {
		out = append(out, e.A)
	}
	if !w.Closed {
		out = append(out, w.Edges[len(w.Edges)-1].B)
	}
	return out
}

// Face плоская область: внешний контур против часовой стрелки, отверстия по часовой.
type Face struct {
	Outer []Point   `json:"outer"`
	Holes [][]Point `json:"holes,omitempty"`
}

// Area площадь за вычетом отверстий.
func (f Face) Area() float64 {
	area := math.Abs(SignedArea(f.Outer))
	for _, h := range f.Holes {
		area -= math.Abs(SignedArea(h))
	}
	return area
}

func (f Face) Bounds() BBox {
	box := EmptyBBox()
	for _, p := range f.Outer {
		box = box.Extend(p)
	}
	return box
}

// Triangle грань сетки тела с внешней нормалью.
type Triangle struct {
	Normal   r3.Vec
	Vertices [3]r3.Vec
}

// Solid призма, полученная выдавливанием Face. Пайплайн его не хранит,
// владение переходит вызывающему.
type Solid struct {
	Profile   Face
	Axis      Axis
	Depth     float64
	Triangles []Triangle
	Bounds    r3.Box
	Volume    float64
}

// Size габариты тела по X, Y, Z.
func (s *Solid) Size() r3.Vec {
	return r3.Sub(s.Bounds.Max, s.Bounds.Min)
}
