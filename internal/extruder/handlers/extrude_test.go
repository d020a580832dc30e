package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"alprofile/internal/extruder/kernel"
	"alprofile/internal/extruder/models"
	"alprofile/internal/extruder/parser"
	"alprofile/internal/extruder/pipeline"

	"github.com/gofiber/fiber/v3"
)

func newApp() *fiber.App {
	app := fiber.New()
	app.Get("/health/live", LivenessProbe)
	app.Get("/health/ready", ReadinessProbe(func() error { return nil }))
	NewExtrudeHandler(kernel.NewPlanar(), pipeline.DefaultOptions(), 128).Register(app.Group("/api"))
	return app
}

func rectangleDXF(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	err := parser.EncodeSegments(&buf, models.SegmentSet{
		models.Seg(0, 50, 100, 50),
		models.Seg(0, 0, 0, 50),
		models.Seg(100, 0, 0, 0),
		models.Seg(100, 50, 100, 0),
	})
	if err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func upload(t *testing.T, target string, file []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if file != nil {
		part, err := w.CreateFormFile("file", "rect.dxf")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write(file); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestExtrudeJSON(t *testing.T) {
	resp, err := newApp().Test(upload(t, "/api/extrude", rectangleDXF(t), map[string]string{
		"depth": "40",
		"axis":  "y",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %v", resp.StatusCode, decode(t, resp))
	}

	body := decode(t, resp)
	size := body["size"].(map[string]any)
	if size["x"] != 100.0 || size["y"] != 40.0 || size["z"] != 50.0 {
		t.Errorf("unexpected size %v", size)
	}
	if body["axis"] != "Y" || body["source"] != "reconstructed" {
		t.Errorf("unexpected payload %v", body)
	}
	if _, ok := body["mesh"]; ok {
		t.Error("mesh must be opt-in")
	}
}

func TestExtrudeSTL(t *testing.T) {
	resp, err := newApp().Test(upload(t, "/api/extrude", rectangleDXF(t), map[string]string{
		"depth":  "10",
		"axis":   "Z",
		"format": "stl",
	}))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "model/stl" {
		t.Errorf("content type %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, `rect.stl`) {
		t.Errorf("content disposition %q", cd)
	}
	data, _ := io.ReadAll(resp.Body)
	if len(data) != 84+50*12 {
		t.Errorf("expected 12 facets, got %d bytes", len(data))
	}
}

func TestExtrudeErrors(t *testing.T) {
	tests := []struct {
		name   string
		file   []byte
		fields map[string]string
		status int
		kind   string
	}{
		{"zero depth", rectangleDXF(t), map[string]string{"depth": "0"}, http.StatusBadRequest, "InvalidDepth"},
		{"missing depth", rectangleDXF(t), nil, http.StatusBadRequest, "InvalidDepth"},
		{"missing file", nil, map[string]string{"depth": "5"}, http.StatusBadRequest, ""},
		{"not dxf", []byte("hello"), map[string]string{"depth": "5"}, http.StatusUnprocessableEntity, "EmptyDrawing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := newApp().Test(upload(t, "/api/extrude", tt.file, tt.fields))
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.status {
				t.Fatalf("status %d, want %d", resp.StatusCode, tt.status)
			}
			body := decode(t, resp)
			if tt.kind != "" && body["kind"] != tt.kind {
				t.Errorf("kind %v, want %s", body["kind"], tt.kind)
			}
			if body["error"] == "" {
				t.Error("error message missing")
			}
		})
	}
}

func TestPreview(t *testing.T) {
	app := newApp()

	resp, err := app.Test(upload(t, "/api/preview", rectangleDXF(t), nil))
	if err != nil {
		t.Fatal(err)
	}
	body := decode(t, resp)
	if loops := body["loops"].([]any); len(loops) != 1 {
		t.Errorf("expected one loop, got %d", len(loops))
	}
	bbox := body["bbox"].(map[string]any)
	if bbox["max_x"] != 100.0 || bbox["max_y"] != 50.0 {
		t.Errorf("unexpected bbox %v", bbox)
	}

	resp, err = app.Test(upload(t, "/api/preview/svg", rectangleDXF(t), nil))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("content type %q", ct)
	}
	svg, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(svg, []byte(`width="128"`)) {
		t.Errorf("unexpected svg %s", svg)
	}
}

func TestNormalize(t *testing.T) {
	src := &models.Drawing{Entities: []models.Entity{models.Circle{Center: models.Pt(0, 0), Radius: 10}}}
	var buf bytes.Buffer
	if err := parser.Encode(&buf, src); err != nil {
		t.Fatal(err)
	}

	resp, err := newApp().Test(upload(t, "/api/normalize", buf.Bytes(), map[string]string{"arc_segments": "64"}))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	d, err := parser.ParseDXF(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Entities) != 64 {
		t.Errorf("expected 64 LINE entities, got %d", len(d.Entities))
	}
}

func TestHealth(t *testing.T) {
	app := newApp()
	for _, path := range []string{"/health/live", "/health/ready"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: status %d", path, resp.StatusCode)
		}
	}

	broken := fiber.New()
	broken.Get("/health/ready", ReadinessProbe(func() error { return errors.New("db down") }))
	resp, err := broken.Test(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", resp.StatusCode)
	}
}

func TestDocs(t *testing.T) {
	app := fiber.New()
	app.Get("/docs", SwaggerUI)
	app.Get("/docs/openapi.yaml", OpenAPISpec)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/docs/openapi.yaml", nil))
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "/profiles/{id}/extrude:") {
		t.Errorf("unexpected openapi response %d: %.60s", resp.StatusCode, body)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/docs", nil))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		t.Errorf("unexpected content type %q", resp.Header.Get("Content-Type"))
	}
}

// rectangle plus a SPLINE whose second fit point is "nan"
func rectangleWithBrokenSpline(t *testing.T) []byte {
	t.Helper()
	spline := "0\nSPLINE\n8\nPROFILE\n70\n8\n71\n3\n74\n3\n11\n10\n21\n10\n11\nnan\n21\n20\n11\n30\n21\n10\n"
	src := string(rectangleDXF(t))
	const tail = "0\nENDSEC\n0\nEOF\n"
	if !strings.HasSuffix(src, tail) {
		t.Fatal("unexpected encoder output")
	}
	return []byte(strings.TrimSuffix(src, tail) + spline + tail)
}

func TestPreviewSkipsNonFiniteEntity(t *testing.T) {
	app := newApp()

	resp, err := app.Test(upload(t, "/api/preview", rectangleWithBrokenSpline(t), nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decode(t, resp)

	diags, _ := body["diagnostics"].([]any)
	if len(diags) != 1 {
		t.Fatalf("expected the spline to be reported, got %v", body["diagnostics"])
	}
	if d := diags[0].(map[string]any); d["entity"] != "SPLINE" || d["reason"] != "non-finite coordinates" {
		t.Errorf("unexpected diagnostic %v", d)
	}
	if segs := body["segments"].([]any); len(segs) != 4 {
		t.Errorf("expected only the rectangle, got %d segments", len(segs))
	}
	bbox := body["bbox"].(map[string]any)
	if bbox["max_x"] != 100.0 || bbox["max_y"] != 50.0 {
		t.Errorf("unexpected bbox %v", bbox)
	}
}
