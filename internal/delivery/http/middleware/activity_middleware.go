package middleware

import (
	"strings"

	"github.com/evandrarf/halpi-mastery/internal/pkg/response"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

const (
	ActivityIDKey      = "activity_id"
	maxActivityIDLen   = 100
	invalidActivityMsg = "Invalid activity"
)

// ActivityMiddleware checks the :activity_id path parameter and stores the
// trimmed value in the request locals.
func (m *Middleware) ActivityMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		id := strings.TrimSpace(ctx.Params(ActivityIDKey))
		if id == "" || len(id) > maxActivityIDLen || strings.ContainsAny(id, " \t\n/") {
			return response.NewFailed(invalidActivityMsg, fiber.NewError(fiber.StatusBadRequest, "activity_id is not valid"), m.logger()).Send(ctx)
		}
		// params alias the pooled request buffer
		ctx.Locals(ActivityIDKey, utils.CopyString(id))
		return ctx.Next()
	}
}

// ActivityID returns the activity stored by ActivityMiddleware.
func ActivityID(ctx *fiber.Ctx) string {
	if v, ok := ctx.Locals(ActivityIDKey).(string); ok {
		return v
	}
	return utils.CopyString(strings.TrimSpace(ctx.Params(ActivityIDKey)))
}
