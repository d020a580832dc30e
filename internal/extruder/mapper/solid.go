package mapper

import (
	"alprofile/internal/extruder/flatten"
	"alprofile/internal/extruder/models"
	"alprofile/internal/extruder/pipeline"

	"gonum.org/v1/gonum/spatial/r3"
)

// ============================================================
// Solid → JSON
// ============================================================

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func vec3(v r3.Vec) Vec3 {
	return Vec3{X: round(v.X), Y: round(v.Y), Z: round(v.Z)}
}

// Mesh плоские массивы вершин по три на треугольник.
type Mesh struct {
	Positions []float64 `json:"positions"`
	Normals   []float64 `json:"normals"`
}

type SolidPayload struct {
	Axis        models.Axis          `json:"axis"`
	Depth       float64              `json:"depth"`
	Volume      float64              `json:"volume"`
	Area        float64              `json:"area"`
	Size        Vec3                 `json:"size"`
	Min         Vec3                 `json:"min"`
	Max         Vec3                 `json:"max"`
	Triangles   int                  `json:"triangles"`
	Source      pipeline.Source      `json:"source"`
	Retried     bool                 `json:"retried,omitempty"`
	Profile     models.Face          `json:"profile"`
	Diagnostics []flatten.Diagnostic `json:"diagnostics,omitempty"`
	Mesh        *Mesh                `json:"mesh,omitempty"`
}

// ToPayload withMesh добавляет плоские массивы вершин и нормалей.
func ToPayload(res *pipeline.Result, withMesh bool) SolidPayload {
	s := res.Solid
	p := SolidPayload{
		Axis:        s.Axis,
		Depth:       s.Depth,
		Volume:      round(s.Volume),
		Area:        round(s.Profile.Area()),
		Size:        vec3(s.Size()),
		Min:         vec3(s.Bounds.Min),
		Max:         vec3(s.Bounds.Max),
		Triangles:   len(s.Triangles),
		Source:      res.Source,
		Retried:     res.Retried,
		Profile:     s.Profile,
		Diagnostics: res.Diagnostics,
	}
	if withMesh {
		p.Mesh = meshOf(s)
	}
	return p
}

func meshOf(s *models.Solid) *Mesh {
	m := &Mesh{
		Positions: make([]float64, 0, 9*len(s.Triangles)),
		Normals:   make([]float64, 0, 9*len(s.Triangles)),
	}
	for _, t := range s.Triangles {
		for _, v := range t.Vertices {
			m.Positions = append(m.Positions, v.X, v.Y, v.Z)
			m.Normals = append(m.Normals, t.Normal.X, t.Normal.Y, t.Normal.Z)
		}
	}
	return m
}
