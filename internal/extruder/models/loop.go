package models

// ============================================================
// Closed loop
// ============================================================

// ClosedLoop замкнутый контур из ≥3 отрезков. Points хранит вершины без
// повтора начальной точки, Segments хранит индексы отрезков исходного SegmentSet
// в порядке обхода. У синтетических контуров (fallback) Segments пуст.
type ClosedLoop struct {
	Points   []Point `json:"points"`
	Segments []int   `json:"segments,omitempty"`
}

// Len число рёбер контура.
func (l ClosedLoop) Len() int {
	return len(l.Points)
}

// Closed возвращает кольцо с явным повтором первой точки в конце.
func (l ClosedLoop) Closed() []Point {
	if len(l.Points) == 0 {
		return nil
	}
	out := make([]Point, 0, len(l.Points)+1)
	out = append(out, l.Points...)
	return append(out, l.Points[0])
}

// Area ориентированная площадь (shoelace): > 0 для обхода против часовой стрелки.
func (l ClosedLoop) Area() float64 {
	return SignedArea(l.Points)
}

func (l ClosedLoop) Bounds() BBox {
	box := EmptyBBox()
	for _, p := range l.Points {
		box = box.Extend(p)
	}
	return box
}

// Contains проверка точки внутри контура (чётность пересечений луча).
func (l ClosedLoop) Contains(p Point) bool {
	return PointInRing(l.Points, p)
}

// ============================================================
// Ring helpers
// ============================================================

func SignedArea(ring []Point) float64 {
	n := len(ring)
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		a := ring[i]
		b := ring[(i+1)%n]
		sum += a.X*b.Y - b.X*a.Y
	}
	return sum / 2
}

func PointInRing(ring []Point, p Point) bool {
	inside := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := ring[i], ring[j]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			x := (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y) + a.X
			if p.X < x {
				inside = !inside
			}
		}
	}
	return inside
}

// Reversed копия кольца в обратном порядке обхода.
func Reversed(ring []Point) []Point {
	out := make([]Point, len(ring))
	for i, p := range ring {
		out[len(ring)-1-i] = p
	}
	return out
}

// CounterClockwise приводит кольцо к обходу против часовой стрелки.
func CounterClockwise(ring []Point) []Point {
	if SignedArea(ring) < 0 {
		return Reversed(ring)
	}
	return append([]Point(nil), ring...)
}

// Perimeter длина замкнутого кольца.
func Perimeter(ring []Point) float64 {
	if len(ring) < 2 {
		return 0
	}
	var sum float64
	for i := range ring {
		sum += ring[i].Dist(ring[(i+1)%len(ring)])
	}
	return sum
}
