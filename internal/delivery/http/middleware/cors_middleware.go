package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// CorsMiddleware allows the origins listed under api.cors.origins, or any
// origin when the list is empty.
func (m *Middleware) CorsMiddleware() fiber.Handler {
	return cors.New(cors.Config{
		AllowHeaders:  "Origin, Content-Type, Accept, Content-Length, Accept-Encoding, " + fiber.HeaderXRequestID,
		AllowMethods:  "GET, POST, PUT",
		AllowOrigins:  m.allowedOrigins(),
		ExposeHeaders: "Content-Length, Content-Type, " + fiber.HeaderXRequestID,
	})
}

func (m *Middleware) allowedOrigins() string {
	if m == nil || m.Config == nil {
		return "*"
	}
	var origins []string
	for _, o := range m.Config.GetStringSlice("api.cors.origins") {
		for _, part := range strings.Split(o, ",") {
			if part = strings.TrimSpace(part); part != "" {
				origins = append(origins, part)
			}
		}
	}
	if len(origins) == 0 {
		return "*"
	}
	return strings.Join(origins, ",")
}
