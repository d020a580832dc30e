package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
)

// CORS в development разрешает все источники, иначе только перечисленные
// через запятую.
func CORS(origins string) fiber.Handler {
	allow := []string{"*"}
	if origins = strings.TrimSpace(origins); origins != "" && origins != "*" {
		allow = strings.Split(origins, ",")
		for i := range allow {
			allow[i] = strings.TrimSpace(allow[i])
		}
	}
	return cors.New(cors.Config{
		AllowOrigins:  allow,
		AllowHeaders:  []string{"*"},
		AllowMethods:  []string{fiber.MethodGet, fiber.MethodPost, fiber.MethodPatch, fiber.MethodDelete, fiber.MethodOptions},
		ExposeHeaders: []string{fiber.HeaderContentDisposition, "X-Request-ID"},
	})
}
