package graph

import (
	"math"

	"alprofile/internal/extruder/models"

	"gonum.org/v1/gonum/floats/scalar"
)

// ============================================================
// Segment Connectivity Index
// ============================================================

const DefaultTolerance = 0.01

// Key канонизированная точка: координаты, округлённые до шага допуска.
type Key struct {
	X int64
	Y int64
}

// Incidence конец отрезка в узле.
type Incidence struct {
	At        models.Point // конец отрезка, лежащий в узле
	Other     models.Point // противоположный конец
	Node      int          // узел At
	OtherNode int          // узел Other
	Segment   int          // индекс во входном наборе
	End       bool         // true, если At это End отрезка
}

// Index смежность концов отрезков. Строится один раз на SegmentSet и
// после построения не меняется.
//
// Концы сводятся в узлы: конец присоединяется к ближайшему представителю
// узла в пределах 2·tol по каждой оси, иначе сам становится представителем.
// Два конца, сдвинутые от общей вершины меньше чем на tol, всегда попадают
// в один узел.
type Index struct {
	tolerance float64
	decimals  int
	scale     float64

	segments models.SegmentSet
	valid    []bool
	count    int
	ends     [][2]int

	reps  []models.Point
	cells map[Key][]int
	nodes [][]Incidence
}

// Build индексирует отрезки. Вырожденные (короче допуска или с обоими
// концами в одном узле) отбрасываются.
func Build(segments models.SegmentSet, tolerance float64) *Index {
	if !(tolerance > 0) {
		tolerance = DefaultTolerance
	}

	// tolerance=0.01 → 2 знака
	decimals := int(math.Floor(-math.Log10(tolerance) + 1e-9))

	ix := &Index{
		tolerance: tolerance,
		decimals:  decimals,
		scale:     math.Pow(10, float64(decimals)),
		segments:  segments,
		valid:     make([]bool, len(segments)),
		ends:      make([][2]int, len(segments)),
		cells:     make(map[Key][]int, 2*len(segments)),
	}

	for i, s := range segments {
		ix.ends[i] = [2]int{-1, -1}
		if s.Degenerate(tolerance) || !finite(s) {
			continue
		}
		ns, ne := ix.attach(s.Start), ix.attach(s.End)
		if ns == ne {
			continue
		}
		ix.valid[i] = true
		ix.count++
		ix.ends[i] = [2]int{ns, ne}

		ix.nodes[ns] = append(ix.nodes[ns], Incidence{At: s.Start, Other: s.End, Node: ns, OtherNode: ne, Segment: i})
		ix.nodes[ne] = append(ix.nodes[ne], Incidence{At: s.End, Other: s.Start, Node: ne, OtherNode: ns, Segment: i, End: true})
	}

	return ix
}

func finite(s models.Segment) bool {
	for _, v := range [...]float64{s.Start.X, s.Start.Y, s.End.X, s.End.Y} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// attach узел для конца p, при необходимости новый.
func (ix *Index) attach(p models.Point) int {
	if n, ok := ix.Node(p); ok {
		return n
	}
	n := len(ix.reps)
	ix.reps = append(ix.reps, p)
	ix.nodes = append(ix.nodes, nil)
	c := ix.cell(p)
	ix.cells[c] = append(ix.cells[c], n)
	return n
}

// cell ячейка сетки с шагом 2·tol: представитель в пределах 2·tol лежит
// в соседней ячейке.
func (ix *Index) cell(p models.Point) Key {
	step := 2 * ix.tolerance
	return Key{X: int64(math.Floor(p.X / step)), Y: int64(math.Floor(p.Y / step))}
}

// Node ближайший узел, представитель которого не дальше 2·tol по каждой оси.
func (ix *Index) Node(p models.Point) (int, bool) {
	c := ix.cell(p)
	best, bestDist := -1, math.Inf(1)
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for _, n := range ix.cells[Key{X: c.X + dx, Y: c.Y + dy}] {
				rep := ix.reps[n]
				if !rep.Near(p, 2*ix.tolerance) {
					continue
				}
				if d := rep.Dist(p); d < bestDist || (d == bestDist && n < best) {
					best, bestDist = n, d
				}
			}
		}
	}
	return best, best >= 0
}

// Rep представитель узла n.
func (ix *Index) Rep(n int) models.Point { return ix.reps[n] }

// At концы отрезков в узле n.
func (ix *Index) At(n int) []Incidence {
	if n < 0 || n >= len(ix.nodes) {
		return nil
	}
	return ix.nodes[n]
}

// Ends узлы начала и конца отрезка i; -1 для отброшенных.
func (ix *Index) Ends(i int) (int, int) {
	return ix.ends[i][0], ix.ends[i][1]
}

func (ix *Index) Key(p models.Point) Key {
	return Key{X: int64(math.Round(p.X * ix.scale)), Y: int64(math.Round(p.Y * ix.scale))}
}

// Canonical точка, округлённая до точности ключа.
func (ix *Index) Canonical(p models.Point) models.Point {
	return models.Pt(scalar.Round(p.X, ix.decimals), scalar.Round(p.Y, ix.decimals))
}

// Incident все концы отрезков узла, в который попадает p.
func (ix *Index) Incident(p models.Point) []Incidence {
	n, ok := ix.Node(p)
	if !ok {
		return nil
	}
	return ix.nodes[n]
}

func (ix *Index) Degree(p models.Point) int {
	return len(ix.Incident(p))
}

func (ix *Index) Tolerance() float64 { return ix.tolerance }

func (ix *Index) Segments() models.SegmentSet { return ix.segments }

func (ix *Index) Segment(i int) models.Segment { return ix.segments[i] }

// Valid false для отброшенных вырожденных отрезков.
func (ix *Index) Valid(i int) bool {
	return i >= 0 && i < len(ix.valid) && ix.valid[i]
}

// Len число проиндексированных (невырожденных) отрезков.
func (ix *Index) Len() int { return ix.count }

func (ix *Index) Dropped() int { return len(ix.segments) - ix.count }

// Dangling точки с единственным инцидентным отрезком: признак разомкнутой геометрии.
func (ix *Index) Dangling() []models.Point {
	return ix.nodesWhere(func(deg int) bool { return deg == 1 })
}

// Branches развилки, где сходятся больше двух отрезков.
func (ix *Index) Branches() []models.Point {
	return ix.nodesWhere(func(deg int) bool { return deg > 2 })
}

func (ix *Index) nodesWhere(match func(int) bool) []models.Point {
	var out []models.Point
	for n, incs := range ix.nodes {
		if len(incs) > 0 && match(len(incs)) {
			out = append(out, ix.Canonical(ix.reps[n]))
		}
	}
	return out
}
