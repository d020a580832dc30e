package middleware

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/requestid"
)

// ============================================================
// Logger Middleware
// ============================================================

// Logger журнал запросов с id запроса и размером ответа.
func Logger() fiber.Handler {
	return logger.New(logger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path} | id=${respHeader:X-Request-ID} bytes=${bytesSent} | Content-Type: ${reqHeader:Content-Type}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	})
}

// RequestID проставляет X-Request-ID; должен стоять до Logger.
func RequestID() fiber.Handler {
	return requestid.New()
}
