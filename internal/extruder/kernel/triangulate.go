package kernel

import (
	"errors"
	"math"
	"sort"

	"alprofile/internal/extruder/models"

	"gonum.org/v1/gonum/spatial/r2"
)

// ============================================================
// Triangulation (ear clipping)
// ============================================================

var ErrTriangulation = errors.New("kernel: triangulation failed")

// Triangulate разбивает грань на треугольники против часовой стрелки.
// Отверстия сначала врезаются во внешний контур мостами.
func Triangulate(face models.Face, eps float64) ([][3]models.Point, error) {
	ring, err := bridgeHoles(models.CounterClockwise(face.Outer), face.Holes, eps)
	if err != nil {
		return nil, err
	}
	return earClip(ring, eps)
}

func maxX(ring []models.Point) int {
	best := 0
	for i, p := range ring {
		if p.X > ring[best].X || (p.X == ring[best].X && p.Y < ring[best].Y) {
			best = i
		}
	}
	return best
}

// bridgeHoles отверстия по убыванию максимального X; каждое соединяется с
// ближайшей видимой вершиной контура.
func bridgeHoles(ring []models.Point, holes [][]models.Point, eps float64) ([]models.Point, error) {
	if len(holes) == 0 {
		return ring, nil
	}

	hs := make([][]models.Point, 0, len(holes))
	for _, h := range holes {
		hs = append(hs, models.Reversed(models.CounterClockwise(h)))
	}
	sort.SliceStable(hs, func(i, j int) bool {
		return hs[i][maxX(hs[i])].X > hs[j][maxX(hs[j])].X
	})

	for n, hole := range hs {
		m := maxX(hole)
		from := hole[m]

		order := make([]int, len(ring))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			return from.Dist(ring[order[a]]) < from.Dist(ring[order[b]])
		})

		bridged := false
		for _, i := range order {
			if !visible(from, ring[i], ring, hs[n:], eps) {
				continue
			}
			next := make([]models.Point, 0, len(ring)+len(hole)+2)
			next = append(next, ring[:i+1]...)
			next = append(next, hole[m:]...)
			next = append(next, hole[:m+1]...)
			next = append(next, ring[i:]...)
			ring = next
			bridged = true
			break
		}
		if !bridged {
			return nil, ErrTriangulation
		}
	}
	return ring, nil
}

// visible мост from→to не пересекает ни контур, ни оставшиеся отверстия
// и проходит по материалу грани.
func visible(from, to models.Point, ring []models.Point, holes [][]models.Point, eps float64) bool {
	if from.Near(to, eps) {
		return false
	}
	blocked := func(r []models.Point) bool {
		for i := range r {
			p, q := r[i], r[(i+1)%len(r)]
			if p.Near(to, eps) || q.Near(to, eps) || p.Near(from, eps) || q.Near(from, eps) {
				continue
			}
			if SegmentsIntersect(from, to, p, q, eps) {
				return true
			}
		}
		return false
	}
	if blocked(ring) {
		return false
	}
	for _, h := range holes {
		if blocked(h) {
			return false
		}
	}

	mid := models.FromVec(r2.Scale(0.5, r2.Add(from.Vec(), to.Vec())))
	if !models.PointInRing(ring, mid) {
		return false
	}
	for _, h := range holes {
		if models.PointInRing(h, mid) {
			return false
		}
	}
	return true
}

func earClip(ring []models.Point, eps float64) ([][3]models.Point, error) {
	idx := make([]int, len(ring))
	for i := range idx {
		idx[i] = i
	}

	tris := make([][3]models.Point, 0, len(ring))
	i, stalled := 0, 0
	for len(idx) > 3 {
		if stalled > len(idx) {
			return tris, ErrTriangulation
		}
		n := len(idx)
		i %= n
		a, b, c := ring[idx[(i+n-1)%n]], ring[idx[i]], ring[idx[(i+1)%n]]

		o := orient(a, b, c)
		switch {
		case math.Abs(o) <= eps:
			// вырожденная вершина, площади не несёт
			idx = append(idx[:i], idx[i+1:]...)
			stalled = 0
		case o > 0 && !containsAny(ring, idx, i, a, b, c, eps):
			tris = append(tris, [3]models.Point{a, b, c})
			idx = append(idx[:i], idx[i+1:]...)
			stalled = 0
		default:
			i++
			stalled++
		}
	}

	if len(idx) == 3 {
		a, b, c := ring[idx[0]], ring[idx[1]], ring[idx[2]]
		if orient(a, b, c) > eps {
			tris = append(tris, [3]models.Point{a, b, c})
		}
	}
	if len(tris) == 0 {
		return nil, ErrTriangulation
	}
	return tris, nil
}

// containsAny лежит ли какая-то другая вершина внутри или на границе треугольника.
func containsAny(ring []models.Point, idx []int, i int, a, b, c models.Point, eps float64) bool {
	n := len(idx)
	for j := 0; j < n; j++ {
		if j == i || j == (i+n-1)%n || j == (i+1)%n {
			continue
		}
		p := ring[idx[j]]
		if p.Near(a, eps) || p.Near(b, eps) || p.Near(c, eps) {
			continue
		}
		if orient(a, b, p) >= -eps && orient(b, c, p) >= -eps && orient(c, a, p) >= -eps {
			return true
		}
	}
	return false
}
