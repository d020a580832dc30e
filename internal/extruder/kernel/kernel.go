package kernel

import (
	"errors"
	"math"

	"alprofile/internal/extruder/models"
)

// ============================================================
// Geometric kernel
// ============================================================

// Kernel операции ядра. Флаг valid отделяет вырожденный результат от ошибки
// самого вызова (err).
type Kernel interface {
	MakeEdge(a, b models.Point) (models.Edge, bool, error)
	MakeWire(edges []models.Edge) (models.Wire, bool, error)
	FixWire(w models.Wire, tolerance float64) (models.Wire, bool, error)
	MakeFace(outer models.Wire, holes ...models.Wire) (models.Face, bool, error)
	Extrude(face models.Face, axis models.Axis, depth float64) (*models.Solid, bool, error)
}

var (
	ErrNonFinite = errors.New("kernel: non-finite coordinate")
	ErrEmptyWire = errors.New("kernel: wire has no edges")
)

func finite(pts ...models.Point) bool {
	for _, p := range pts {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return false
		}
	}
	return true
}
