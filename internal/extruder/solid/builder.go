package solid

import (
	"fmt"
	"math"

	"alprofile/internal/extruder/kernel"
	"alprofile/internal/extruder/models"

	"github.com/gofiber/fiber/v3/log"
)

// ============================================================
// Face/Solid Builder
// ============================================================

const DefaultFixTolerance = 0.1

// Builder строит грань из контура и выдавливает её. Повторов здесь нет:
// отказ ядра окончателен для попытки.
type Builder struct {
	kernel       kernel.Kernel
	fixTolerance float64
}

func NewBuilder(k kernel.Kernel, fixTolerance float64) *Builder {
	if !(fixTolerance > 0) {
		fixTolerance = DefaultFixTolerance
	}
	return &Builder{kernel: k, fixTolerance: fixTolerance}
}

// BuildFace рёбра по соседним точкам → проволока → ремонт → грань.
// Невалидное отверстие пропускается с предупреждением.
func (b *Builder) BuildFace(loop models.ClosedLoop, holes ...models.ClosedLoop) (models.Face, error) {
	outer, err := b.wire(loop)
	if err != nil {
		return models.Face{}, err
	}

	var inner []models.Wire
	for i, h := range holes {
		w, err := b.wire(h)
		if err != nil {
			log.Warnf("[SOLID] hole %d skipped: %v", i, err)
			continue
		}
		inner = append(inner, w)
	}

	face, ok, err := b.kernel.MakeFace(outer, inner...)
	if err != nil {
		return models.Face{}, fmt.Errorf("make face: %v: %w", err, models.ErrInvalidFace)
	}
	if !ok && len(inner) > 0 {
		log.Warnf("[SOLID] face with %d holes rejected, retrying outer contour only", len(inner))
		face, ok, err = b.kernel.MakeFace(outer)
		if err != nil {
			return models.Face{}, fmt.Errorf("make face: %v: %w", err, models.ErrInvalidFace)
		}
	}
	if !ok {
		return models.Face{}, fmt.Errorf("make face: self-intersecting or zero area: %w", models.ErrInvalidFace)
	}

	log.Debugf("[SOLID] face: %d points, %d holes, area=%.3f", len(face.Outer), len(face.Holes), face.Area())
	return face, nil
}

func (b *Builder) wire(loop models.ClosedLoop) (models.Wire, error) {
	ring := loop.Closed()
	if len(ring) < 4 {
		return models.Wire{}, fmt.Errorf("loop has %d points: %w", loop.Len(), models.ErrInvalidWire)
	}

	edges := make([]models.Edge, 0, loop.Len())
	for i := 0; i+1 < len(ring); i++ {
		e, ok, err := b.kernel.MakeEdge(ring[i], ring[i+1])
		if err != nil {
			return models.Wire{}, fmt.Errorf("make edge: %v: %w", err, models.ErrInvalidWire)
		}
		if ok {
			edges = append(edges, e)
		}
	}
	if len(edges) == 0 {
		return models.Wire{}, fmt.Errorf("all edges degenerate: %w", models.ErrInvalidWire)
	}

	w, ok, err := b.kernel.MakeWire(edges)
	if err != nil {
		return models.Wire{}, fmt.Errorf("make wire: %v: %w", err, models.ErrInvalidWire)
	}
	if ok {
		return w, nil
	}

	w, ok, err = b.kernel.FixWire(w, b.fixTolerance)
	if err != nil {
		return models.Wire{}, fmt.Errorf("fix wire: %v: %w", err, models.ErrInvalidWire)
	}
	if !ok {
		return models.Wire{}, fmt.Errorf("wire cannot be repaired: %w", models.ErrInvalidWire)
	}
	log.Debugf("[SOLID] wire repaired: %d edges", len(w.Edges))
	return w, nil
}

// Extrude нулевая или нечисловая глубина отвергается до вызова ядра.
// Неизвестная ось заменяется DefaultAxis.
func (b *Builder) Extrude(face models.Face, axis models.Axis, depth float64) (*models.Solid, error) {
	if depth == 0 || math.IsNaN(depth) || math.IsInf(depth, 0) {
		return nil, fmt.Errorf("depth %v: %w", depth, models.ErrInvalidDepth)
	}
	if !axis.Valid() {
		log.Warnf("[SOLID] unknown axis %q, using %s", axis, models.DefaultAxis)
		axis = models.DefaultAxis
	}

	s, ok, err := b.kernel.Extrude(face, axis, depth)
	if err != nil {
		return nil, fmt.Errorf("extrude: %v: %w", err, models.ErrInvalidFace)
	}
	if !ok {
		return nil, fmt.Errorf("extrude produced a degenerate solid: %w", models.ErrInvalidFace)
	}

	log.Infof("[SOLID] extruded along %s by %.3f: %d triangles, volume=%.3f", axis, depth, len(s.Triangles), s.Volume)
	return s, nil
}
