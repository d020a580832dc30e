package kernel

import (
	"math"

	"alprofile/internal/extruder/models"

	"gonum.org/v1/gonum/spatial/r3"
)

// ============================================================
// Extrusion
// ============================================================

// Extrude заметает грань вдоль depth·axis. Сетка замкнута, нормали наружу,
// объём считается по теореме о дивергенции.
func (k *Planar) Extrude(face models.Face, axis models.Axis, depth float64) (*models.Solid, bool, error) {
	if math.IsNaN(depth) || math.IsInf(depth, 0) || !finite(face.Outer...) {
		return nil, false, ErrNonFinite
	}
	if depth == 0 || len(face.Outer) < 3 {
		return nil, false, nil
	}

	tris, err := Triangulate(face, k.eps())
	if err != nil {
		return nil, false, nil
	}

	d := r3.Scale(depth, axis.Unit())
	down := r3.Scale(-1, d)
	lift := func(p models.Point) r3.Vec { return r3.Add(axis.Embed(p), d) }

	mesh := make([]models.Triangle, 0, 2*len(tris)+4*len(face.Outer))
	for _, t := range tris {
		mesh = appendOriented(mesh, [3]r3.Vec{axis.Embed(t[0]), axis.Embed(t[1]), axis.Embed(t[2])}, down)
		mesh = appendOriented(mesh, [3]r3.Vec{lift(t[0]), lift(t[1]), lift(t[2])}, d)
	}

	// внешний контур CCW, отверстия CW: материал всегда слева от ребра
	rings := [][]models.Point{models.CounterClockwise(face.Outer)}
	for _, h := range face.Holes {
		rings = append(rings, models.Reversed(models.CounterClockwise(h)))
	}
	for _, ring := range rings {
		for i := range ring {
			a, b := ring[i], ring[(i+1)%len(ring)]
			out := axis.Embed(models.Pt(b.Y-a.Y, -(b.X - a.X)))
			a0, b0 := axis.Embed(a), axis.Embed(b)
			a1, b1 := lift(a), lift(b)
			mesh = appendOriented(mesh, [3]r3.Vec{a0, b0, b1}, out)
			mesh = appendOriented(mesh, [3]r3.Vec{a0, b1, a1}, out)
		}
	}

	solid := &models.Solid{
		Profile:   face,
		Axis:      axis,
		Depth:     depth,
		Triangles: mesh,
		Bounds:    bounds(mesh),
		Volume:    volume(mesh),
	}
	return solid, solid.Volume > minArea, nil
}

// appendOriented разворачивает треугольник так, чтобы нормаль смотрела в want.
// Вырожденные треугольники пропускаются.
func appendOriented(mesh []models.Triangle, v [3]r3.Vec, want r3.Vec) []models.Triangle {
	n := r3.Cross(r3.Sub(v[1], v[0]), r3.Sub(v[2], v[0]))
	if r3.Norm(n) == 0 {
		return mesh
	}
	if r3.Dot(n, want) < 0 {
		v[1], v[2] = v[2], v[1]
		n = r3.Scale(-1, n)
	}
	return append(mesh, models.Triangle{Normal: r3.Unit(n), Vertices: v})
}

func volume(mesh []models.Triangle) float64 {
	var sum float64
	for _, t := range mesh {
		sum += r3.Dot(t.Vertices[0], r3.Cross(t.Vertices[1], t.Vertices[2]))
	}
	return sum / 6
}

func bounds(mesh []models.Triangle) r3.Box {
	if len(mesh) == 0 {
		return r3.Box{}
	}
	lo := mesh[0].Vertices[0]
	hi := lo
	for _, t := range mesh {
		for _, v := range t.Vertices {
			lo = r3.Vec{X: math.Min(lo.X, v.X), Y: math.Min(lo.Y, v.Y), Z: math.Min(lo.Z, v.Z)}
			hi = r3.Vec{X: math.Max(hi.X, v.X), Y: math.Max(hi.Y, v.Y), Z: math.Max(hi.Z, v.Z)}
		}
	}
	return r3.Box{Min: lo, Max: hi}
}
