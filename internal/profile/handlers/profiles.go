package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	extruder "alprofile/internal/extruder/handlers"
	"alprofile/internal/extruder/mapper"
	exmodels "alprofile/internal/extruder/models"
	"alprofile/internal/profile/models"
	"alprofile/internal/profile/repository"
	"alprofile/internal/profile/service"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/log"
	"github.com/google/uuid"
)

// ============================================================
// Profile Handler
// ============================================================

type ProfileHandler struct {
	repo     *repository.Repository
	storage  *service.FileStorage
	extruder *extruder.ExtrudeHandler
	renderer *mapper.Renderer
}

func NewProfileHandler(repo *repository.Repository, storage *service.FileStorage, ex *extruder.ExtrudeHandler, thumbSize int) *ProfileHandler {
	return &ProfileHandler{
		repo:     repo,
		storage:  storage,
		extruder: ex,
		renderer: mapper.NewRenderer(thumbSize),
	}
}

func (h *ProfileHandler) Register(r fiber.Router) {
	r.Get("/profiles", h.List)
	r.Post("/profiles", h.Create)
	r.Get("/profiles/:id", h.Get)
	r.Patch("/profiles/:id", h.Update)
	r.Delete("/profiles/:id", h.Delete)
	r.Get("/profiles/:id/thumbnail", h.Thumbnail)
	r.Get("/profiles/:id/dxf", h.DXF)
	r.Post("/profiles/:id/extrude", h.Extrude)
}

// List ?q= фильтрует по имени, коду, компании и размеру.
func (h *ProfileHandler) List(c fiber.Ctx) error {
	profiles, err := h.repo.List(c.Context(), c.Query("q"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(profiles)
}

// Create multipart: file, name, code, company, size, notes.
// Чертёж анализируется до сохранения, размер по умолчанию берётся из bbox.
func (h *ProfileHandler) Create(c fiber.Ctx) error {
	name := strings.TrimSpace(c.FormValue("name"))
	if name == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "name required"})
	}

	data, filename, err := extruder.ReadUpload(c)
	if err != nil {
		return extruder.WriteError(c, "PROFILES", err)
	}

	a, err := h.extruder.Pipeline(c).Analyze(c.Context(), bytes.NewReader(data))
	if err != nil {
		return extruder.WriteError(c, "PROFILES", err)
	}
	thumb, err := h.renderer.Render(a)
	if err != nil {
		return extruder.WriteError(c, "PROFILES", err)
	}

	id := uuid.NewString()
	width, height := a.BBox.MaxX-a.BBox.MinX, a.BBox.MaxY-a.BBox.MinY
	p := &models.Profile{
		ID:        id,
		Name:      name,
		Code:      strings.TrimSpace(c.FormValue("code")),
		Company:   strings.TrimSpace(c.FormValue("company")),
		Size:      strings.TrimSpace(c.FormValue("size")),
		WidthMM:   width,
		HeightMM:  height,
		Notes:     c.FormValue("notes"),
		FilePath:  h.storage.DXFPath(id),
		ThumbPath: h.storage.ThumbPath(id),
		Source:    string(a.Source),
		DateAdded: time.Now().UTC().Format(time.DateTime),
	}
	if p.Size == "" {
		p.Size = fmt.Sprintf("%.1f x %.1f", width, height)
	}

	if err := h.storage.SaveFile(id, p.FilePath, data); err != nil {
		return h.fail(c, err)
	}
	if err := h.storage.SaveFile(id, p.ThumbPath, []byte(thumb)); err != nil {
		h.cleanup(id)
		return h.fail(c, err)
	}
	if err := h.repo.Create(c.Context(), p); err != nil {
		h.cleanup(id)
		return h.fail(c, err)
	}

	log.Infof("[PROFILES] Added %s (%s) from %s, %d loops", p.Name, p.Size, filename, len(a.Loops))
	return c.Status(http.StatusCreated).JSON(p)
}

func (h *ProfileHandler) Get(c fiber.Ctx) error {
	p, err := h.lookup(c)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(p)
}

// Update JSON с частью полей name, code, company, size, notes.
func (h *ProfileHandler) Update(c fiber.Ctx) error {
	p, err := h.lookup(c)
	if err != nil {
		return h.fail(c, err)
	}

	var patch models.Patch
	if err := json.Unmarshal(c.Body(), &patch); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid json"})
	}
	patch.Apply(p)
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "name required"})
	}

	if err := h.repo.Update(c.Context(), p); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(p)
}

func (h *ProfileHandler) Delete(c fiber.Ctx) error {
	p, err := h.lookup(c)
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.repo.Delete(c.Context(), p.ID); err != nil {
		return h.fail(c, err)
	}
	h.cleanup(p.ID)

	log.Infof("[PROFILES] Deleted %s", p.ID)
	return c.SendStatus(http.StatusNoContent)
}

func (h *ProfileHandler) Thumbnail(c fiber.Ctx) error {
	return h.sendFile(c, func(p *models.Profile) string { return p.ThumbPath }, "image/svg+xml")
}

func (h *ProfileHandler) DXF(c fiber.Ctx) error {
	return h.sendFile(c, func(p *models.Profile) string { return p.FilePath }, "application/dxf")
}

// Extrude сохранённого профиля: depth, axis, format как у /extrude.
func (h *ProfileHandler) Extrude(c fiber.Ctx) error {
	p, err := h.lookup(c)
	if err != nil {
		return h.fail(c, err)
	}

	depth, err := extruder.ParseDepth(c.FormValue("depth", c.Query("depth")))
	if err != nil {
		return extruder.WriteError(c, "PROFILES", err)
	}
	axis := exmodels.ParseAxis(c.FormValue("axis", c.Query("axis")))

	res, err := h.extruder.Pipeline(c).LoadAndBuild(c.Context(), p.FilePath, depth, axis)
	if err != nil {
		return extruder.WriteError(c, "PROFILES", err)
	}
	return extruder.SendSolid(c, res, p.Name)
}

// ============================================================
// Helpers
// ============================================================

func (h *ProfileHandler) lookup(c fiber.Ctx) (*models.Profile, error) {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}
	return h.repo.GetByID(c.Context(), id)
}

func (h *ProfileHandler) sendFile(c fiber.Ctx, path func(*models.Profile) string, contentType string) error {
	p, err := h.lookup(c)
	if err != nil {
		return h.fail(c, err)
	}
	data, err := os.ReadFile(path(p))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "file not found"})
		}
		return h.fail(c, err)
	}
	c.Set(fiber.HeaderContentType, contentType)
	return c.Send(data)
}

func (h *ProfileHandler) fail(c fiber.Ctx, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "profile not found"})
	}
	log.Errorf("[PROFILES] %v", err)
	return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}

func (h *ProfileHandler) cleanup(id string) {
	if err := h.storage.Remove(id); err != nil {
		log.Warnf("[PROFILES] %v", err)
	}
}
