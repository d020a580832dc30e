package graph

import (
	"context"
	"math"

	"alprofile/internal/extruder/models"

	"github.com/gofiber/fiber/v3/log"
	"gonum.org/v1/gonum/spatial/r2"
)

// ============================================================
// Closed-Loop Reconstructor
// ============================================================

const (
	minLoopSegments = 3
	maxTurn         = 150 * math.Pi / 180 // разворот сильнее считается зигзагом
	cancelEvery     = 1024
)

// FindLoops жадный обход индекса. Отрезки найденного контура помечаются
// занятыми только внутри вызова, повторный вызов даёт тот же результат.
// maxLoops <= 0 снимает ограничение, maxLoopLength <= 0 означает число
// отрезков в индексе.
func FindLoops(ctx context.Context, ix *Index, maxLoops, maxLoopLength int) ([]models.ClosedLoop, error) {
	if maxLoopLength <= 0 {
		maxLoopLength = ix.Len()
	}

	t := &tracer{
		ix:     ix,
		used:   make([]bool, len(ix.segments)),
		limit:  maxLoopLength,
		ctx:    ctx,
		onPath: make(map[int]bool),
	}

	var loops []models.ClosedLoop
	for start := range ix.segments {
		if err := ctx.Err(); err != nil {
			return loops, err
		}
		if maxLoops > 0 && len(loops) >= maxLoops {
			log.Debugf("[LOOPS] limit %d reached", maxLoops)
			break
		}
		if t.used[start] || !ix.Valid(start) {
			continue
		}

		loop, ok, err := t.trace(start)
		if err != nil {
			return loops, err
		}
		if !ok {
			continue
		}
		for _, i := range loop.Segments {
			t.used[i] = true
		}
		loops = append(loops, loop)
	}

	log.Debugf("[LOOPS] found=%d segments=%d dropped=%d", len(loops), ix.Len(), ix.Dropped())
	return loops, nil
}

type tracer struct {
	ix     *Index
	used   []bool
	limit  int
	ctx    context.Context
	steps  int
	onPath map[int]bool
}

// trace идёт от Start отрезка start, пока не вернётся в исходный узел,
// не упрётся в тупик или не превысит limit. Вершины контура это
// представители узлов.
func (t *tracer) trace(start int) (models.ClosedLoop, bool, error) {
	clear(t.onPath)

	origin, current := t.ix.Ends(start)
	heading := r2.Sub(t.ix.Rep(current).Vec(), t.ix.Rep(origin).Vec())

	points := []models.Point{t.ix.Rep(origin)}
	path := []int{start}
	t.onPath[start] = true

	for {
		t.steps++
		if t.steps%cancelEvery == 0 {
			if err := t.ctx.Err(); err != nil {
				return models.ClosedLoop{}, false, err
			}
		}
		if len(path) > t.limit {
			return models.ClosedLoop{}, false, nil
		}

		next, closing, ok := t.choose(current, origin, heading, len(path))
		if !ok {
			return models.ClosedLoop{}, false, nil
		}

		points = append(points, t.ix.Rep(current))
		path = append(path, next.Segment)
		t.onPath[next.Segment] = true

		if closing {
			if len(path) > t.limit {
				return models.ClosedLoop{}, false, nil
			}
			return models.ClosedLoop{Points: points, Segments: path}, true, nil
		}

		heading = r2.Sub(t.ix.Rep(next.OtherNode).Vec(), t.ix.Rep(current).Vec())
		current = next.OtherNode
	}
}

// choose следующий шаг: сначала замыкающий отрезок, затем наименьший поворот
// без разворота, разворот только если других вариантов нет.
func (t *tracer) choose(current, origin int, heading r2.Vec, length int) (Incidence, bool, bool) {
	var (
		best, fallback         Incidence
		bestTurn, fallbackTurn = math.Inf(1), math.Inf(1)
		closeBest              Incidence
		closeTurn              = math.Inf(1)
	)

	from := t.ix.Rep(current).Vec()
	for _, inc := range t.ix.At(current) {
		if t.used[inc.Segment] || t.onPath[inc.Segment] {
			continue
		}

		out := r2.Sub(t.ix.Rep(inc.OtherNode).Vec(), from)
		turn := math.Abs(angle(heading, out))
		returns := inc.OtherNode == origin

		switch {
		case returns && length+1 >= minLoopSegments:
			if turn < closeTurn {
				closeBest, closeTurn = inc, turn
			}
		case returns:
			// петля из двух отрезков: шум
		case turn <= maxTurn:
			if turn < bestTurn {
				best, bestTurn = inc, turn
			}
		default:
			if turn < fallbackTurn {
				fallback, fallbackTurn = inc, turn
			}
		}
	}

	switch {
	case !math.IsInf(closeTurn, 1):
		return closeBest, true, true
	case !math.IsInf(bestTurn, 1):
		return best, false, true
	case !math.IsInf(fallbackTurn, 1):
		return fallback, false, true
	}
	return Incidence{}, false, false
}

// angle знаковый угол поворота от a к b в (-π, π].
func angle(a, b r2.Vec) float64 {
	return math.Atan2(r2.Cross(a, b), r2.Dot(a, b))
}
