package controller

import (
	"therapy-chat-be/internal/pkg/serverutils"

	"github.com/gofiber/fiber/v2"
)

// Mutating routes are mounted with All so that the method guard answers
// 405 before the JWT middleware or body parsing run.

func post(r fiber.Router, path string, handlers ...fiber.Handler) {
	r.All(path, append([]fiber.Handler{serverutils.AllowMethods(fiber.MethodPost)}, handlers...)...)
}

// getOrPost mounts a path that lists on GET and creates on POST. Middleware
// runs after the method guard, in order.
func getOrPost(r fiber.Router, path string, get, create fiber.Handler, middleware ...fiber.Handler) {
	handlers := append([]fiber.Handler{serverutils.AllowMethods(fiber.MethodGet, fiber.MethodPost)}, middleware...)
	handlers = append(handlers, func(ctx *fiber.Ctx) error {
		if ctx.Method() == fiber.MethodPost {
			return create(ctx)
		}
		return get(ctx)
	})
	r.All(path, handlers...)
}
