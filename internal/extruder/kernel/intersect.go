package kernel

import (
	"alprofile/internal/extruder/models"

	"gonum.org/v1/gonum/spatial/r2"
)

// ============================================================
// Segment intersection
// ============================================================

func orient(a, b, c models.Point) float64 {
	return r2.Cross(r2.Sub(b.Vec(), a.Vec()), r2.Sub(c.Vec(), a.Vec()))
}

func sign(v, eps float64) int {
	switch {
	case v > eps:
		return 1
	case v < -eps:
		return -1
	}
	return 0
}

// onSegment c лежит на отрезке ab (при условии коллинеарности).
func onSegment(a, b, c models.Point, eps float64) bool {
	return min(a.X, b.X)-eps <= c.X && c.X <= max(a.X, b.X)+eps &&
		min(a.Y, b.Y)-eps <= c.Y && c.Y <= max(a.Y, b.Y)+eps
}

// SegmentsIntersect пересечение или касание отрезков ab и cd.
func SegmentsIntersect(a, b, c, d models.Point, eps float64) bool {
	o1 := sign(orient(a, b, c), eps)
	o2 := sign(orient(a, b, d), eps)
	o3 := sign(orient(c, d, a), eps)
	o4 := sign(orient(c, d, b), eps)

	if o1*o2 < 0 && o3*o4 < 0 {
		return true
	}
	switch {
	case o1 == 0 && onSegment(a, b, c, eps):
		return true
	case o2 == 0 && onSegment(a, b, d, eps):
		return true
	case o3 == 0 && onSegment(c, d, a, eps):
		return true
	case o4 == 0 && onSegment(c, d, b, eps):
		return true
	}
	return false
}

// SelfIntersects проверка всех пар несмежных рёбер кольца, O(n²).
func SelfIntersects(ring []models.Point, eps float64) bool {
	n := len(ring)
	for i := 0; i < n; i++ {
		a, b := ring[i], ring[(i+1)%n]
		for j := i + 1; j < n; j++ {
			if j == i+1 || (i == 0 && j == n-1) {
				// соседние рёбра делят вершину; проверяем только наложение
				c, d := ring[j], ring[(j+1)%n]
				if overlaps(a, b, c, d, eps) {
					return true
				}
				continue
			}
			if SegmentsIntersect(a, b, ring[j], ring[(j+1)%n], eps) {
				return true
			}
		}
	}
	return false
}

// overlaps соседние рёбра ab, cd складываются обратно друг на друга.
func overlaps(a, b, c, d models.Point, eps float64) bool {
	if sign(orient(a, b, c), eps) != 0 || sign(orient(a, b, d), eps) != 0 {
		return false
	}
	u := r2.Sub(b.Vec(), a.Vec())
	v := r2.Sub(d.Vec(), c.Vec())
	return r2.Dot(u, v) < 0
}

// RingsCross пересекается ли хоть одно ребро a с ребром b.
func RingsCross(a, b []models.Point, eps float64) bool {
	for i := range a {
		p, q := a[i], a[(i+1)%len(a)]
		for j := range b {
			if SegmentsIntersect(p, q, b[j], b[(j+1)%len(b)], eps) {
				return true
			}
		}
	}
	return false
}
