package route

import (
	"github.com/evandrarf/halpi-mastery/internal/delivery/http/handler"
	"github.com/evandrarf/halpi-mastery/internal/delivery/http/middleware"
	"github.com/gofiber/fiber/v2"
)

func SetupMasteryRoute(api *fiber.App, handler handler.MasteryHandler, m *middleware.Middleware) {
	router := api.Group("/activities/:activity_id/mastery", m.ActivityMiddleware())
	{
		router.Get("/", handler.GetSession)
		router.Post("/start", handler.Start)
		router.Post("/finish", handler.Finish)
		router.Post("/restart", handler.Restart)
	}

	identificationRouter := router.Group("/identification")
	{
		identificationRouter.Post("/answer", handler.SubmitIdentification)
		identificationRouter.Post("/hint", handler.RequestHint)
		identificationRouter.Post("/reset", handler.ResetIdentification)
	}

	restitutionRouter := router.Group("/restitution")
	{
		restitutionRouter.Post("/start", handler.StartRestitution)
		restitutionRouter.Get("/concepts/:concept_id", handler.GetConcept)
		restitutionRouter.Put("/concepts/:concept_id/answers", handler.SaveAnswers)
		restitutionRouter.Post("/concepts/:concept_id/evaluate", handler.Evaluate)
	}
}
