package mapper

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"alprofile/internal/extruder/kernel"
	"alprofile/internal/extruder/models"
	"alprofile/internal/extruder/pipeline"
)

func rectangle() models.SegmentSet {
	return models.SegmentSet{
		models.Seg(0, 0, 100, 0),
		models.Seg(100, 0, 100, 50),
		models.Seg(100, 50, 0, 50),
		models.Seg(0, 50, 0, 0),
	}
}

func drawing(segs models.SegmentSet) *models.Drawing {
	d := &models.Drawing{}
	for _, s := range segs {
		d.Entities = append(d.Entities, models.Line{Start: s.Start, End: s.End})
	}
	return d
}

func TestRenderPreview(t *testing.T) {
	segs := append(rectangle(), models.Seg(200, 0, 210, 0))
	p := pipeline.New(kernel.NewPlanar(), pipeline.DefaultOptions())
	a, err := p.AnalyzeDrawing(t.Context(), drawing(segs))
	if err != nil {
		t.Fatal(err)
	}

	svg, err := NewRenderer(0).Render(a)
	if err != nil {
		t.Fatal(err)
	}

	if !strings.HasPrefix(svg, `<?xml`) || !strings.HasSuffix(svg, `</svg>`) {
		t.Fatalf("malformed svg: %s", svg)
	}
	if !strings.Contains(svg, `width="256"`) {
		t.Errorf("long side must be 256px: %s", svg)
	}
	if strings.Count(svg, `id="loop-`) != 1 {
		t.Errorf("expected one loop path")
	}
	if strings.Count(svg, "<circle") != 2 {
		t.Errorf("expected two dangling markers")
	}
	// (0,0) уходит в нижний левый угол: y = maxY - 0 + pad
	if !strings.Contains(svg, "M10.5 60.5") {
		t.Errorf("expected flipped first vertex, got %s", svg)
	}
}

func TestRenderEmpty(t *testing.T) {
	if _, err := NewRenderer(64).Render(&pipeline.Analysis{BBox: models.EmptyBBox()}); err == nil {
		t.Error("expected error for empty analysis")
	}
	if _, err := NewRenderer(64).Render(nil); err == nil {
		t.Error("expected error for nil analysis")
	}
}

func extrudeRect(t *testing.T) *pipeline.Result {
	t.Helper()
	p := pipeline.New(kernel.NewPlanar(), pipeline.DefaultOptions())
	res, err := p.BuildDrawing(t.Context(), drawing(rectangle()), 40, models.AxisY)
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func TestWriteSTL(t *testing.T) {
	res := extrudeRect(t)

	var buf bytes.Buffer
	if err := WriteSTL(&buf, res.Solid, "rect"); err != nil {
		t.Fatal(err)
	}

	n := len(res.Solid.Triangles)
	if buf.Len() != stlHeaderSize+4+50*n {
		t.Fatalf("unexpected size %d for %d triangles", buf.Len(), n)
	}
	data := buf.Bytes()
	if !bytes.HasPrefix(data, []byte("alprofile rect")) {
		t.Errorf("unexpected header %q", data[:20])
	}
	if got := binary.LittleEndian.Uint32(data[80:84]); int(got) != n {
		t.Errorf("count %d, want %d", got, n)
	}

	nx := math.Float32frombits(binary.LittleEndian.Uint32(data[84:]))
	ny := math.Float32frombits(binary.LittleEndian.Uint32(data[88:]))
	nz := math.Float32frombits(binary.LittleEndian.Uint32(data[92:]))
	if l := math.Sqrt(float64(nx*nx + ny*ny + nz*nz)); math.Abs(l-1) > 1e-6 {
		t.Errorf("first normal not unit: %v", l)
	}

	if err := WriteSTL(&buf, &models.Solid{}, "x"); err == nil {
		t.Error("expected error for empty solid")
	}
}

func TestToPayload(t *testing.T) {
	res := extrudeRect(t)

	p := ToPayload(res, false)
	if p.Size != (Vec3{X: 100, Y: 40, Z: 50}) {
		t.Errorf("unexpected size %+v", p.Size)
	}
	if p.Volume != 200000 || p.Area != 5000 {
		t.Errorf("unexpected volume/area %v/%v", p.Volume, p.Area)
	}
	if p.Mesh != nil {
		t.Error("mesh must be omitted")
	}

	raw, err := json.Marshal(ToPayload(res, true))
	if err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		Source string `json:"source"`
		Mesh   Mesh   `json:"mesh"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Source != "reconstructed" {
		t.Errorf("unexpected source %q", decoded.Source)
	}
	if len(decoded.Mesh.Positions) != 9*p.Triangles {
		t.Errorf("expected %d coordinates, got %d", 9*p.Triangles, len(decoded.Mesh.Positions))
	}
}
