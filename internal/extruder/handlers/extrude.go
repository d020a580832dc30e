package handlers

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"alprofile/internal/extruder/kernel"
	"alprofile/internal/extruder/mapper"
	"alprofile/internal/extruder/models"
	"alprofile/internal/extruder/parser"
	"alprofile/internal/extruder/pipeline"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/log"
)

// ============================================================
// Extrude Handler
// ============================================================

type ExtrudeHandler struct {
	kernel   kernel.Kernel
	opts     pipeline.Options
	renderer *mapper.Renderer
}

func NewExtrudeHandler(k kernel.Kernel, opts pipeline.Options, thumbSize int) *ExtrudeHandler {
	return &ExtrudeHandler{
		kernel:   k,
		opts:     opts,
		renderer: mapper.NewRenderer(thumbSize),
	}
}

// Register маршруты без библиотеки профилей.
func (h *ExtrudeHandler) Register(r fiber.Router) {
	r.Post("/extrude", h.Extrude)
	r.Post("/preview", h.Preview)
	r.Post("/preview/svg", h.PreviewSVG)
	r.Post("/normalize", h.Normalize)
}

// Pipeline пайплайн с переопределениями из формы (holes, arc_segments).
func (h *ExtrudeHandler) Pipeline(c fiber.Ctx) *pipeline.Pipeline {
	opts := h.opts
	if v := c.FormValue("holes"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			opts.Holes = b
		}
	}
	if v := c.FormValue("arc_segments"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.ArcSegments = n
		}
	}
	return pipeline.New(h.kernel, opts)
}

// Extrude multipart: file, depth, axis, format=json|stl, mesh=true.
func (h *ExtrudeHandler) Extrude(c fiber.Ctx) error {
	log.Infof("[EXTRUDE] Received request, Content-Length: %d", len(c.Body()))

	depth, err := ParseDepth(c.FormValue("depth"))
	if err != nil {
		return WriteError(c, "EXTRUDE", err)
	}
	axis := models.ParseAxis(c.FormValue("axis"))

	data, name, err := ReadUpload(c)
	if err != nil {
		return WriteError(c, "EXTRUDE", err)
	}

	res, err := h.Pipeline(c).Build(c.Context(), bytes.NewReader(data), depth, axis)
	if err != nil {
		return WriteError(c, "EXTRUDE", err)
	}

	log.Infof("[EXTRUDE] %s: %d triangles, source=%s", name, len(res.Solid.Triangles), res.Source)
	return SendSolid(c, res, name)
}

// SendSolid тело в формате из query/form format: json по умолчанию или stl.
func SendSolid(c fiber.Ctx, res *pipeline.Result, name string) error {
	format := strings.ToLower(c.FormValue("format", c.Query("format", "json")))
	if format == "stl" {
		var buf bytes.Buffer
		if err := mapper.WriteSTL(&buf, res.Solid, name); err != nil {
			return WriteError(c, "EXTRUDE", err)
		}
		c.Set(fiber.HeaderContentType, "model/stl")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s.stl"`, stem(name)))
		return c.Send(buf.Bytes())
	}

	withMesh, _ := strconv.ParseBool(c.FormValue("mesh", c.Query("mesh", "false")))
	return c.JSON(mapper.ToPayload(res, withMesh))
}

// Preview 2D-данные: отрезки, bbox, контуры и диагностика.
func (h *ExtrudeHandler) Preview(c fiber.Ctx) error {
	a, err := h.analyze(c)
	if err != nil {
		return WriteError(c, "PREVIEW", err)
	}
	return c.JSON(a)
}

// PreviewSVG миниатюра чертежа.
func (h *ExtrudeHandler) PreviewSVG(c fiber.Ctx) error {
	a, err := h.analyze(c)
	if err != nil {
		return WriteError(c, "PREVIEW", err)
	}

	svg, err := h.renderer.Render(a)
	if err != nil {
		return WriteError(c, "PREVIEW", err)
	}
	c.Set(fiber.HeaderContentType, "image/svg+xml")
	return c.SendString(svg)
}

// Normalize чертёж, разложенный на LINE-сущности, как DXF.
func (h *ExtrudeHandler) Normalize(c fiber.Ctx) error {
	a, err := h.analyze(c)
	if err != nil {
		return WriteError(c, "NORMALIZE", err)
	}

	var buf bytes.Buffer
	if err := parser.EncodeSegments(&buf, a.Segments); err != nil {
		return WriteError(c, "NORMALIZE", err)
	}
	c.Set(fiber.HeaderContentType, "application/dxf")
	return c.Send(buf.Bytes())
}

func (h *ExtrudeHandler) analyze(c fiber.Ctx) (*pipeline.Analysis, error) {
	data, _, err := ReadUpload(c)
	if err != nil {
		return nil, err
	}
	return h.Pipeline(c).Analyze(c.Context(), bytes.NewReader(data))
}

// ============================================================
// Helpers
// ============================================================

// ParseDepth пустая или нечисловая глубина считается нулевой.
func ParseDepth(raw string) (float64, error) {
	depth, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || depth == 0 {
		return 0, fmt.Errorf("depth %q: %w", raw, models.ErrInvalidDepth)
	}
	return depth, nil
}

// ReadUpload содержимое и имя файла из поля file.
func ReadUpload(c fiber.Ctx) ([]byte, string, error) {
	file, err := c.FormFile("file")
	if err != nil {
		return nil, "", ErrUpload
	}

	f, err := file.Open()
	if err != nil {
		return nil, "", fmt.Errorf("open upload: %v: %w", err, ErrUpload)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", fmt.Errorf("read upload: %v: %w", err, ErrUpload)
	}
	return data, file.Filename, nil
}

func stem(name string) string {
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	if name == "" {
		return "profile"
	}
	return name
}
