package models

import (
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// ============================================================
// Extrusion axis
// ============================================================

type Axis string

const (
	AxisX Axis = "X"
	AxisY Axis = "Y"
	AxisZ Axis = "Z"
)

// DefaultAxis направление выдавливания по умолчанию.
const DefaultAxis = AxisY

// ParseAxis нераспознанный ввод превращается в DefaultAxis.
func ParseAxis(s string) Axis {
	switch Axis(strings.ToUpper(strings.TrimSpace(s))) {
	case AxisX:
		return AxisX
	case AxisY:
		return AxisY
	case AxisZ:
		return AxisZ
	}
	return DefaultAxis
}

func (a Axis) Valid() bool {
	return a == AxisX || a == AxisY || a == AxisZ
}

func (a Axis) Unit() r3.Vec {
	switch a {
	case AxisX:
		return r3.Vec{X: 1}
	case AxisZ:
		return r3.Vec{Z: 1}
	}
	return r3.Vec{Y: 1}
}

// Embed переносит точку эскиза на плоскость, перпендикулярную оси:
// Y → (x, 0, y), Z → (x, y, 0), X → (0, x, y).
func (a Axis) Embed(p Point) r3.Vec {
	switch a {
	case AxisX:
		return r3.Vec{Y: p.X, Z: p.Y}
	case AxisZ:
		return r3.Vec{X: p.X, Y: p.Y}
	}
	return r3.Vec{X: p.X, Z: p.Y}
}
