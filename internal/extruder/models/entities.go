package models

import "strings"

// ============================================================
// Raw DXF entities
// ============================================================

// Entity сырой примитив чертежа, как его отдал парсер.
// Конкретный тип разбирается type switch'ем во flatten.
type Entity interface {
	EntityType() string
	Ref() Base
}

// Base общие атрибуты любой сущности.
type Base struct {
	Handle string `json:"handle,omitempty"`
	Layer  string `json:"layer,omitempty"`
}

func (b Base) Ref() Base { return b }

type Line struct {
	Base
	Start Point
	End   Point
}

func (Line) EntityType() string { return "LINE" }

// Vertex вершина полилинии. Bulge = tan(угол/4), знак задаёт направление дуги
// к следующей вершине.
type Vertex struct {
	Point
	Bulge float64
}

// Polyline покрывает и LWPOLYLINE, и старый POLYLINE с VERTEX/SEQEND.
type Polyline struct {
	Base
	Vertices []Vertex
	Closed   bool
	Legacy   bool
}

func (p Polyline) EntityType() string {
	if p.Legacy {
		return "POLYLINE"
	}
	return "LWPOLYLINE"
}

type Circle struct {
	Base
	Center Point
	Radius float64
}

func (Circle) EntityType() string { return "CIRCLE" }

// Arc углы в градусах, против часовой стрелки от StartAngle к EndAngle.
type Arc struct {
	Base
	Center     Point
	Radius     float64
	StartAngle float64
	EndAngle   float64
}

func (Arc) EntityType() string { return "ARC" }

// Ellipse MajorAxis задан относительно центра, параметры в радианах.
type Ellipse struct {
	Base
	Center     Point
	MajorAxis  Point
	Ratio      float64
	StartParam float64
	EndParam   float64
}

func (Ellipse) EntityType() string { return "ELLIPSE" }

type Spline struct {
	Base
	Degree        int
	Closed        bool
	Knots         []float64
	Weights       []float64
	ControlPoints []Point
	FitPoints     []Point
}

func (Spline) EntityType() string { return "SPLINE" }

// Insert вставка блока. Rotation в градусах.
type Insert struct {
	Base
	Block    string
	Position Point
	ScaleX   float64
	ScaleY   float64
	Rotation float64
}

func (Insert) EntityType() string { return "INSERT" }

// Unknown сущность, которую парсер прочитал, но геометрию не понимает.
// Reason заполняется, когда тип известен, а обязательных полей не хватает.
type Unknown struct {
	Base
	Type   string
	Reason string
}

func (u Unknown) EntityType() string { return u.Type }

// ============================================================
// Drawing
// ============================================================

type Block struct {
	Name     string
	Base     Point
	Entities []Entity
}

// Drawing результат разбора DXF: сущности modelspace и определения блоков.
type Drawing struct {
	Entities []Entity
	Blocks   map[string]*Block
}

// ResolveBlock ищет блок без учёта регистра имени.
func (d *Drawing) ResolveBlock(name string) (*Block, bool) {
	if d == nil || d.Blocks == nil {
		return nil, false
	}
	b, ok := d.Blocks[strings.ToUpper(name)]
	return b, ok
}

func (d *Drawing) AddBlock(b *Block) {
	if d.Blocks == nil {
		d.Blocks = make(map[string]*Block)
	}
	d.Blocks[strings.ToUpper(b.Name)] = b
}
