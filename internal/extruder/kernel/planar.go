package kernel

import (
	"math"

	"alprofile/internal/extruder/models"
)

// ============================================================
// Planar kernel: edges, wires, faces
// ============================================================

const (
	DefaultEpsilon = 1e-9
	minArea        = 1e-9
)

// Planar ядро для плоских многоугольников и призм. Состояния нет,
// вызовы можно делать из разных горутин.
type Planar struct {
	Epsilon float64 // совпадение точек внутри ядра
}

func NewPlanar() *Planar {
	return &Planar{Epsilon: DefaultEpsilon}
}

func (k *Planar) eps() float64 {
	if k.Epsilon > 0 {
		return k.Epsilon
	}
	return DefaultEpsilon
}

func (k *Planar) MakeEdge(a, b models.Point) (models.Edge, bool, error) {
	if !finite(a, b) {
		return models.Edge{}, false, ErrNonFinite
	}
	e := models.Edge{A: a, B: b}
	return e, !a.Near(b, k.eps()), nil
}

// MakeWire собирает рёбра как есть. valid только для связной замкнутой цепочки.
func (k *Planar) MakeWire(edges []models.Edge) (models.Wire, bool, error) {
	if len(edges) == 0 {
		return models.Wire{}, false, ErrEmptyWire
	}
	eps := k.eps()

	connected := true
	for i := 1; i < len(edges); i++ {
		if !edges[i-1].B.Near(edges[i].A, eps) {
			connected = false
			break
		}
	}
	closed := connected && edges[len(edges)-1].B.Near(edges[0].A, eps)

	w := models.Wire{Edges: append([]models.Edge(nil), edges...), Closed: closed}
	return w, closed && len(edges) >= 3, nil
}

// FixWire выбрасывает нулевые рёбра, переупорядочивает цепочку по ближайшему
// концу, стягивает зазоры до tolerance и замыкает проволоку. Зазор внутри
// цепочки больше tolerance делает проволоку невалидной.
func (k *Planar) FixWire(w models.Wire, tolerance float64) (models.Wire, bool, error) {
	eps := k.eps()
	if tolerance < eps {
		tolerance = eps
	}

	rest := make([]models.Edge, 0, len(w.Edges))
	for _, e := range w.Edges {
		if !finite(e.A, e.B) {
			return models.Wire{}, false, ErrNonFinite
		}
		if !e.A.Near(e.B, eps) {
			rest = append(rest, e)
		}
	}
	if len(rest) == 0 {
		return models.Wire{}, false, nil
	}

	chain := []models.Edge{rest[0]}
	rest = rest[1:]
	for len(rest) > 0 {
		end := chain[len(chain)-1].B

		best, flip, gap := -1, false, math.Inf(1)
		for i, e := range rest {
			if d := end.Dist(e.A); d < gap {
				best, flip, gap = i, false, d
			}
			if d := end.Dist(e.B); d < gap {
				best, flip, gap = i, true, d
			}
		}
		if gap > tolerance {
			return models.Wire{Edges: chain}, false, nil
		}

		e := rest[best]
		if flip {
			e = models.Edge{A: e.B, B: e.A}
		}
		e.A = end
		chain = append(chain, e)
		rest = append(rest[:best], rest[best+1:]...)
	}

	first, last := chain[0].A, chain[len(chain)-1].B
	switch {
	case last.Near(first, eps):
	case last.Dist(first) <= tolerance && len(chain) >= 3:
		chain[len(chain)-1].B = first
	default:
		chain = append(chain, models.Edge{A: last, B: first})
	}

	chain = dropZero(chain, eps)
	return models.Wire{Edges: chain, Closed: true}, len(chain) >= 3, nil
}

func dropZero(edges []models.Edge, eps float64) []models.Edge {
	out := edges[:0]
	for _, e := range edges {
		if !e.A.Near(e.B, eps) {
			out = append(out, e)
		}
	}
	return out
}

// MakeFace внешний контур ориентируется против часовой, отверстия по часовой.
// Невалидно: незамкнутая проволока, площадь около нуля, самопересечение,
// отверстие вне контура или пересекающее его.
func (k *Planar) MakeFace(outer models.Wire, holes ...models.Wire) (models.Face, bool, error) {
	if len(outer.Edges) == 0 {
		return models.Face{}, false, ErrEmptyWire
	}
	if !outer.Closed {
		return models.Face{}, false, nil
	}

	ring := models.CounterClockwise(outer.Points())
	face := models.Face{Outer: ring}
	if !k.validRing(ring) {
		return face, false, nil
	}

	for _, h := range holes {
		if !h.Closed {
			return face, false, nil
		}
		hole := models.Reversed(models.CounterClockwise(h.Points()))
		if !k.validRing(hole) {
			return face, false, nil
		}
		if !models.PointInRing(ring, hole[0]) || RingsCross(ring, hole, k.eps()) {
			return face, false, nil
		}
		for _, other := range face.Holes {
			if RingsCross(other, hole, k.eps()) || models.PointInRing(other, hole[0]) {
				return face, false, nil
			}
		}
		face.Holes = append(face.Holes, hole)
	}

	return face, face.Area() > minArea, nil
}

func (k *Planar) validRing(ring []models.Point) bool {
	if len(ring) < 3 || math.Abs(models.SignedArea(ring)) <= minArea {
		return false
	}
	return !SelfIntersects(ring, k.eps())
}
