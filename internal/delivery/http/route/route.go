package route

import (
	"github.com/evandrarf/halpi-mastery/internal/delivery/http/handler"
	"github.com/evandrarf/halpi-mastery/internal/delivery/http/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

type RouteConfig struct {
	Api            *fiber.App
	Middleware     *middleware.Middleware
	MasteryHandler handler.MasteryHandler
}

func Setup(c *RouteConfig) {
	c.Api.Use(recover.New())
	c.Api.Use(requestid.New())
	c.Api.Use(logger.New(logger.Config{
		Format: "[${ip}]:${port} ${status} ${locals:requestid} - ${method} ${path}\n",
	}))
	c.Api.Use(c.Middleware.CorsMiddleware())

	SetupMasteryRoute(c.Api, c.MasteryHandler, c.Middleware)
}
