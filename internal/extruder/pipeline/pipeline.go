package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"alprofile/internal/extruder/fallback"
	"alprofile/internal/extruder/flatten"
	"alprofile/internal/extruder/graph"
	"alprofile/internal/extruder/kernel"
	"alprofile/internal/extruder/models"
	"alprofile/internal/extruder/parser"
	"alprofile/internal/extruder/solid"

	"github.com/gofiber/fiber/v3/log"
)

// ============================================================
// DXF → loop → face → solid
// ============================================================

type Options struct {
	ArcSegments   int
	Tolerance     float64
	MaxLoops      int
	MaxLoopLength int // 0: число отрезков в индексе
	FixTolerance  float64
	Holes         bool // вложенные контуры становятся отверстиями
}

func DefaultOptions() Options {
	return Options{
		ArcSegments:  flatten.DefaultOptions().ArcSegments,
		Tolerance:    graph.DefaultTolerance,
		MaxLoops:     256,
		FixTolerance: solid.DefaultFixTolerance,
	}
}

// Source происхождение контура, из которого построено тело.
type Source string

const (
	SourceReconstructed Source = "reconstructed"
	SourceConvexHull    Source = Source(fallback.StrategyHull)
	SourceBoundingRect  Source = Source(fallback.StrategyRect)
)

// Pipeline без общего изменяемого состояния: параллельные запуски на разных
// файлах не требуют синхронизации.
type Pipeline struct {
	opts      Options
	flattener *flatten.Flattener
	builder   *solid.Builder
}

func New(k kernel.Kernel, opts Options) *Pipeline {
	fo := flatten.DefaultOptions()
	if opts.ArcSegments > 0 {
		fo.ArcSegments = opts.ArcSegments
	}
	return &Pipeline{
		opts:      opts,
		flattener: flatten.New(fo),
		builder:   solid.NewBuilder(k, opts.FixTolerance),
	}
}

// Analysis промежуточные данные: отрезки, bbox и найденные контуры.
type Analysis struct {
	Segments    models.SegmentSet    `json:"segments"`
	BBox        models.BBox          `json:"bbox"`
	Loops       []models.ClosedLoop  `json:"loops"`
	Source      Source               `json:"source"`
	Dangling    []models.Point       `json:"dangling,omitempty"`
	Branches    []models.Point       `json:"branches,omitempty"`
	Diagnostics []flatten.Diagnostic `json:"diagnostics,omitempty"`
}

// Result тело и контур, из которого оно получено.
type Result struct {
	Solid       *models.Solid
	Outer       models.ClosedLoop
	Holes       []models.ClosedLoop
	Source      Source
	Retried     bool
	Diagnostics []flatten.Diagnostic
}

// LoadAndBuild единственная точка входа для вызывающего кода.
func (p *Pipeline) LoadAndBuild(ctx context.Context, path string, depth float64, axis models.Axis) (*Result, error) {
	if err := validDepth(depth); err != nil {
		return nil, err
	}
	d, err := parser.ParseFile(path)
	if err != nil {
		return nil, parseError(err)
	}
	return p.BuildDrawing(ctx, d, depth, axis)
}

func (p *Pipeline) Build(ctx context.Context, r io.Reader, depth float64, axis models.Axis) (*Result, error) {
	if err := validDepth(depth); err != nil {
		return nil, err
	}
	d, err := parse(r)
	if err != nil {
		return nil, err
	}
	return p.BuildDrawing(ctx, d, depth, axis)
}

func (p *Pipeline) BuildDrawing(ctx context.Context, d *models.Drawing, depth float64, axis models.Axis) (*Result, error) {
	if err := validDepth(depth); err != nil {
		return nil, err
	}

	a, err := p.AnalyzeDrawing(ctx, d)
	if err != nil {
		return nil, err
	}

	outer, holes := p.selectLoops(a.Loops)
	res := &Result{Outer: outer, Holes: holes, Source: a.Source, Diagnostics: a.Diagnostics}

	res.Solid, err = p.extrude(outer, holes, depth, axis)
	if err == nil {
		return res, nil
	}
	if a.Source != SourceReconstructed || !retryable(err) {
		return nil, err
	}

	// одна подстановка fallback-контура вместо отвергнутого ядром
	log.Warnf("[PIPELINE] reconstructed loop rejected (%v), retrying with fallback", err)
	loop, strategy, ferr := fallback.Build(a.Segments)
	if ferr != nil {
		return nil, errors.Join(err, ferr)
	}
	res.Solid, err = p.extrude(loop, nil, depth, axis)
	if err != nil {
		return nil, err
	}
	res.Outer, res.Holes, res.Source, res.Retried = loop, nil, Source(strategy), true
	return res, nil
}

func (p *Pipeline) extrude(outer models.ClosedLoop, holes []models.ClosedLoop, depth float64, axis models.Axis) (*models.Solid, error) {
	face, err := p.builder.BuildFace(outer, holes...)
	if err != nil {
		return nil, err
	}
	return p.builder.Extrude(face, axis, depth)
}

func retryable(err error) bool {
	return errors.Is(err, models.ErrInvalidWire) || errors.Is(err, models.ErrInvalidFace)
}

// ============================================================
// Analysis (2D preview path)
// ============================================================

func (p *Pipeline) Analyze(ctx context.Context, r io.Reader) (*Analysis, error) {
	d, err := parse(r)
	if err != nil {
		return nil, err
	}
	return p.AnalyzeDrawing(ctx, d)
}

// AnalyzeDrawing разворачивание, индекс, контуры; без контуров подставляется
// fallback. Контуров в результате всегда не меньше одного.
func (p *Pipeline) AnalyzeDrawing(ctx context.Context, d *models.Drawing) (*Analysis, error) {
	segments, diags := p.flattener.Flatten(d)
	if len(segments) == 0 {
		return nil, fmt.Errorf("flatten: %d entities skipped: %w", len(diags), models.ErrEmptyDrawing)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ix := graph.Build(segments, p.opts.Tolerance)
	if ix.Len() == 0 {
		return nil, fmt.Errorf("all %d segments degenerate: %w", len(segments), models.ErrEmptyDrawing)
	}

	loops, err := graph.FindLoops(ctx, ix, p.opts.MaxLoops, p.opts.MaxLoopLength)
	if err != nil {
		return nil, fmt.Errorf("find loops: %w", err)
	}

	a := &Analysis{
		Segments:    segments,
		BBox:        segments.Bounds(),
		Loops:       loops,
		Source:      SourceReconstructed,
		Dangling:    ix.Dangling(),
		Branches:    ix.Branches(),
		Diagnostics: diags,
	}

	if len(loops) == 0 {
		log.Warnf("[PIPELINE] %v: %d dangling ends, using fallback", models.ErrNoClosedLoop, len(a.Dangling))
		loop, strategy, err := fallback.Build(segments)
		if err != nil {
			return nil, err
		}
		a.Loops = []models.ClosedLoop{loop}
		a.Source = Source(strategy)
	}

	log.Infof("[PIPELINE] segments=%d loops=%d source=%s skipped=%d", len(segments), len(a.Loops), a.Source, len(diags))
	return a, nil
}

// selectLoops внешний контур с наибольшей площадью; при включённых
// отверстиях к нему добавляются контуры, лежащие внутри него и не внутри
// другого отверстия.
func (p *Pipeline) selectLoops(loops []models.ClosedLoop) (models.ClosedLoop, []models.ClosedLoop) {
	order := make([]int, len(loops))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return math.Abs(loops[order[a]].Area()) > math.Abs(loops[order[b]].Area())
	})

	outer := loops[order[0]]
	if !p.opts.Holes {
		return outer, nil
	}

	var holes []models.ClosedLoop
	for _, i := range order[1:] {
		l := loops[i]
		if len(l.Points) == 0 || !outer.Contains(l.Points[0]) {
			continue
		}
		nested := false
		for _, h := range holes {
			if h.Contains(l.Points[0]) {
				nested = true
				break
			}
		}
		if !nested {
			holes = append(holes, l)
		}
	}
	return outer, holes
}

// ============================================================
// Helpers
// ============================================================

func validDepth(depth float64) error {
	if depth == 0 || math.IsNaN(depth) || math.IsInf(depth, 0) {
		return fmt.Errorf("depth %v: %w", depth, models.ErrInvalidDepth)
	}
	return nil
}

func parse(r io.Reader) (*models.Drawing, error) {
	d, err := parser.ParseDXF(r)
	if err != nil {
		return nil, parseError(err)
	}
	return d, nil
}

// parseError нераспознанный формат означает отсутствие геометрии;
// ошибки ввода-вывода возвращаются как есть.
func parseError(err error) error {
	if errors.Is(err, parser.ErrNotDXF) || errors.Is(err, parser.ErrBinaryDXF) {
		return fmt.Errorf("%w: %w", models.ErrEmptyDrawing, err)
	}
	return err
}
