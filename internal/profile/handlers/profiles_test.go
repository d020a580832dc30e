package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	extruder "alprofile/internal/extruder/handlers"
	"alprofile/internal/extruder/kernel"
	exmodels "alprofile/internal/extruder/models"
	"alprofile/internal/extruder/parser"
	"alprofile/internal/extruder/pipeline"
	"alprofile/internal/profile/models"
	"alprofile/internal/profile/repository"
	"alprofile/internal/profile/service"

	"github.com/gofiber/fiber/v3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

func newApp(t *testing.T) (*fiber.App, *service.FileStorage) {
	t.Helper()
	dir := t.TempDir()

	db, err := repository.OpenSQLite(filepath.Join(dir, "db", "profiles.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := repository.New(db)
	if err := repo.Init(context.Background()); err != nil {
		t.Fatalf("init db: %v", err)
	}

	storage := service.NewFileStorage(filepath.Join(dir, "profiles"))
	ex := extruder.NewExtrudeHandler(kernel.NewPlanar(), pipeline.DefaultOptions(), 128)

	app := fiber.New()
	NewProfileHandler(repo, storage, ex, 96).Register(app.Group("/api"))
	return app, storage
}

func rectangleDXF(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	err := parser.EncodeSegments(&buf, exmodels.SegmentSet{
		exmodels.Seg(0, 0, 100, 0),
		exmodels.Seg(100, 0, 100, 50),
		exmodels.Seg(100, 50, 0, 50),
		exmodels.Seg(0, 50, 0, 0),
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
		part, err := w.CreateFormFile("file", "frame.dxf")
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

func do(t *testing.T, app *fiber.App, req *http.Request, wantStatus int) []byte {
	t.Helper()
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: expected %d, got %d: %s", req.Method, req.URL, wantStatus, resp.StatusCode, body)
	}
	return body
}

func create(t *testing.T, app *fiber.App, name string) models.Profile {
	t.Helper()
	body := do(t, app, upload(t, "/api/profiles", rectangleDXF(t), map[string]string{
		"name":    name,
		"code":    "WF-40",
		"company": "Alumil",
	}), http.StatusCreated)

	var p models.Profile
	if err := json.Unmarshal(body, &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return p
}

func TestCreateAndFetch(t *testing.T) {
	app, storage := newApp(t)
	p := create(t, app, "Window frame")

	if p.ID == "" || p.Size != "100.0 x 50.0" || p.WidthMM != 100 || p.HeightMM != 50 {
		t.Fatalf("unexpected profile: %+v", p)
	}
	if p.Source != string(pipeline.SourceReconstructed) {
		t.Errorf("expected reconstructed source, got %s", p.Source)
	}

	var got models.Profile
	body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/profiles/"+p.ID, nil), http.StatusOK)
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatal(err)
	}
	if got.Name != "Window frame" || got.Code != "WF-40" || got.Company != "Alumil" {
		t.Errorf("unexpected fetched profile: %+v", got)
	}
	if strings.Contains(string(body), storage.DXFPath(p.ID)) {
		t.Error("file path must not leak into the response")
	}

	thumb := do(t, app, httptest.NewRequest(http.MethodGet, "/api/profiles/"+p.ID+"/thumbnail", nil), http.StatusOK)
	if !strings.HasPrefix(string(thumb), "<svg") || !strings.Contains(string(thumb), `width="96"`) {
		t.Errorf("unexpected thumbnail: %.80s", thumb)
	}

	dxf := do(t, app, httptest.NewRequest(http.MethodGet, "/api/profiles/"+p.ID+"/dxf", nil), http.StatusOK)
	if !bytes.Equal(dxf, rectangleDXF(t)) {
		t.Error("stored dxf differs from upload")
	}
}

func TestListAndSearch(t *testing.T) {
	app, _ := newApp(t)
	create(t, app, "Window frame")
	create(t, app, "Sash")

	var all []models.Profile
	body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/profiles", nil), http.StatusOK)
	if err := json.Unmarshal(body, &all); err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].Name != "Sash" {
		t.Fatalf("expected newest first, got %+v", all)
	}

	var found []models.Profile
	body = do(t, app, httptest.NewRequest(http.MethodGet, "/api/profiles?q=frame", nil), http.StatusOK)
	if err := json.Unmarshal(body, &found); err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 || found[0].Name != "Window frame" {
		t.Errorf("unexpected search result: %+v", found)
	}
}

func TestUpdate(t *testing.T) {
	app, _ := newApp(t)
	p := create(t, app, "Window frame")

	req := httptest.NewRequest(http.MethodPatch, "/api/profiles/"+p.ID, strings.NewReader(`{"name":"Door frame","notes":"6063-T5"}`))
	req.Header.Set("Content-Type", "application/json")
	var got models.Profile
	if err := json.Unmarshal(do(t, app, req, http.StatusOK), &got); err != nil {
		t.Fatal(err)
	}
	if got.Name != "Door frame" || got.Notes != "6063-T5" || got.Code != "WF-40" {
		t.Errorf("unexpected update result: %+v", got)
	}

	req = httptest.NewRequest(http.MethodPatch, "/api/profiles/"+p.ID, strings.NewReader(`{"name":"  "}`))
	do(t, app, req, http.StatusBadRequest)

	req = httptest.NewRequest(http.MethodPatch, "/api/profiles/"+p.ID, strings.NewReader(`{`))
	do(t, app, req, http.StatusBadRequest)
}

func TestExtrudeStored(t *testing.T) {
	app, _ := newApp(t)
	p := create(t, app, "Window frame")

	body := do(t, app, httptest.NewRequest(http.MethodPost, "/api/profiles/"+p.ID+"/extrude?depth=50&axis=Z", nil), http.StatusOK)
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatal(err)
	}
	if volume, _ := payload["volume"].(float64); payload["axis"] != "Z" || math.Abs(volume-250000) > 1e-6 {
		t.Errorf("unexpected payload: %v", payload)
	}

	stl := do(t, app, httptest.NewRequest(http.MethodPost, "/api/profiles/"+p.ID+"/extrude?depth=10&format=stl", nil), http.StatusOK)
	if len(stl) != 84+12*50 {
		t.Errorf("unexpected stl size %d", len(stl))
	}

	do(t, app, httptest.NewRequest(http.MethodPost, "/api/profiles/"+p.ID+"/extrude", nil), http.StatusBadRequest)
}

func TestDelete(t *testing.T) {
	app, storage := newApp(t)
	p := create(t, app, "Window frame")

	do(t, app, httptest.NewRequest(http.MethodDelete, "/api/profiles/"+p.ID, nil), http.StatusNoContent)
	do(t, app, httptest.NewRequest(http.MethodGet, "/api/profiles/"+p.ID, nil), http.StatusNotFound)
	do(t, app, httptest.NewRequest(http.MethodDelete, "/api/profiles/"+p.ID, nil), http.StatusNotFound)

	if matches, _ := filepath.Glob(storage.ProfileDir(p.ID) + "/*"); len(matches) != 0 {
		t.Errorf("profile files left behind: %v", matches)
	}
}

func TestCreateErrors(t *testing.T) {
	app, _ := newApp(t)

	tests := []struct {
		name   string
		file   []byte
		fields map[string]string
		status int
	}{
		{"missing name", []byte("0\nEOF\n"), map[string]string{}, http.StatusBadRequest},
		{"missing file", nil, map[string]string{"name": "x"}, http.StatusBadRequest},
		{"not a dxf", []byte("hello"), map[string]string{"name": "x"}, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			do(t, app, upload(t, "/api/profiles", tt.file, tt.fields), tt.status)
		})
	}

	body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/profiles", nil), http.StatusOK)
	if strings.TrimSpace(string(body)) != "[]" {
		t.Errorf("failed uploads must not be stored: %s", body)
	}
	do(t, app, httptest.NewRequest(http.MethodGet, "/api/profiles/not-a-uuid/thumbnail", nil), http.StatusNotFound)
}

func TestCreateSkipsNonFiniteEntity(t *testing.T) {
	app, _ := newApp(t)

	const tail = "0\nENDSEC\n0\nEOF\n"
	spline := "0\nSPLINE\n8\nPROFILE\n71\n3\n11\n10\n21\n10\n11\nnan\n21\n20\n11\n30\n21\n10\n"
	file := strings.TrimSuffix(string(rectangleDXF(t)), tail) + spline + tail

	body := do(t, app, upload(t, "/api/profiles", []byte(file), map[string]string{"name": "Frame"}), http.StatusCreated)
	var p models.Profile
	if err := json.Unmarshal(body, &p); err != nil {
		t.Fatal(err)
	}
	if p.WidthMM != 100 || p.HeightMM != 50 || p.Size != "100.0 x 50.0" {
		t.Errorf("broken spline leaked into the bounds: %+v", p)
	}
}
