package handlers

import (
	"context"
	"errors"
	"net/http"

	"alprofile/internal/extruder/models"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/log"
)

// ============================================================
// Error mapping
// ============================================================

// ErrUpload в запросе нет читаемого файла.
var ErrUpload = errors.New("file required in multipart/form-data")

// Status HTTP-статус для ошибки пайплайна.
func Status(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidDepth), errors.Is(err, ErrUpload):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	case models.Kind(err) != "":
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// WriteError единый JSON ошибки: сообщение для пользователя, вид и подробности.
func WriteError(c fiber.Ctx, tag string, err error) error {
	status := Status(err)
	if status >= http.StatusInternalServerError {
		log.Errorf("[%s] %v", tag, err)
	} else {
		log.Warnf("[%s] %v", tag, err)
	}

	body := fiber.Map{
		"error":  models.UserMessage(err),
		"detail": err.Error(),
	}
	if kind := models.Kind(err); kind != "" {
		body["kind"] = kind
	}
	return c.Status(status).JSON(body)
}
