package serverutils

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// AllowMethods answers 405 for any method outside allowed. Mount mutating
// routes with router.All(path, AllowMethods(fiber.MethodPost), ...) so the
// check runs before auth and body parsing.
func AllowMethods(allowed ...string) fiber.Handler {
	allowHeader := strings.Join(allowed, ", ")
	return func(ctx *fiber.Ctx) error {
		for _, m := range allowed {
			if ctx.Method() == m {
				return ctx.Next()
			}
		}
		ctx.Set(fiber.HeaderAllow, allowHeader)
		return NewAppError(fiber.StatusMethodNotAllowed, "Method not allowed")
	}
}

// ParamUUID reads a path parameter as a uuid or returns 400.
func ParamUUID(ctx *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params(name))
	if err != nil {
		return uuid.Nil, BadRequest("Invalid " + name)
	}
	return id, nil
}
