package fallback

import (
	"fmt"
	"sort"

	"alprofile/internal/extruder/models"

	"github.com/gofiber/fiber/v3/log"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r2"
)

// ============================================================
// Fallback Shape Builder
// ============================================================

const (
	hullPrecision = 3   // знаков после запятой при сборе вершин
	rectMargin    = 0.1 // отступ прямоугольника от каждой стороны bbox
)

// Strategy какой способ дал контур.
type Strategy string

const (
	StrategyHull Strategy = "convex_hull"
	StrategyRect Strategy = "bounding_rect"
)

// Build синтетический контур для чертежа без замкнутых контуров.
// Ошибка только на пустом наборе.
func Build(segments models.SegmentSet) (models.ClosedLoop, Strategy, error) {
	if len(segments) == 0 {
		return models.ClosedLoop{}, "", fmt.Errorf("fallback: %w", models.ErrEmptyDrawing)
	}

	hull := ConvexHull(endpoints(segments))
	if len(hull) >= 3 {
		log.Infof("[FALLBACK] convex hull with %d points", len(hull))
		return models.ClosedLoop{Points: hull}, StrategyHull, nil
	}

	rect := InsetRect(segments.Bounds(), rectMargin)
	log.Infof("[FALLBACK] bounding rectangle %.2fx%.2f", rect.Bounds().Width(), rect.Bounds().Height())
	return rect, StrategyRect, nil
}

// endpoints различные концы отрезков, округлённые до hullPrecision.
func endpoints(segments models.SegmentSet) []models.Point {
	seen := make(map[models.Point]bool, 2*len(segments))
	var pts []models.Point
	for _, s := range segments {
		for _, p := range [...]models.Point{s.Start, s.End} {
			q := models.Pt(scalar.Round(p.X, hullPrecision), scalar.Round(p.Y, hullPrecision))
			if !seen[q] {
				seen[q] = true
				pts = append(pts, q)
			}
		}
	}
	return pts
}

// ConvexHull монотонная цепь Эндрю. Результат против часовой стрелки,
// коллинеарные точки отброшены. Меньше трёх точек означает вырожденный набор.
func ConvexHull(points []models.Point) []models.Point {
	pts := append([]models.Point(nil), points...)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})
	if len(pts) < 3 {
		return nil
	}

	cross := func(o, a, b models.Point) float64 {
		return r2.Cross(r2.Sub(a.Vec(), o.Vec()), r2.Sub(b.Vec(), o.Vec()))
	}

	hull := make([]models.Point, 0, 2*len(pts))
	for _, p := range pts {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	hull = hull[:len(hull)-1]
	if len(hull) < 3 {
		return nil
	}
	return hull
}

// InsetRect прямоугольник bbox, сжатый на margin от ширины и высоты с каждой
// стороны. Обход против часовой.
func InsetRect(box models.BBox, margin float64) models.ClosedLoop {
	dx := box.Width() * margin
	dy := box.Height() * margin
	minX, minY := box.MinX+dx, box.MinY+dy
	maxX, maxY := box.MaxX-dx, box.MaxY-dy

	return models.ClosedLoop{Points: []models.Point{
		models.Pt(minX, minY),
		models.Pt(maxX, minY),
		models.Pt(maxX, maxY),
		models.Pt(minX, maxY),
	}}
}
