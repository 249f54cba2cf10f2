package controller

import (
	"therapy-chat-be/internal/dto"
	"therapy-chat-be/internal/model"
	"therapy-chat-be/internal/pkg/serverutils"
	"therapy-chat-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

// IReviewController serves the therapist-facing endpoints: annotations and
// per-session analytics.
type IReviewController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	UpsertAnnotation(ctx *fiber.Ctx) error
	GetAnnotations(ctx *fiber.Ctx) error
	Score(ctx *fiber.Ctx) error
	Severity(ctx *fiber.Ctx) error
}

type reviewController struct {
	annotations service.IAnnotationService
	analytics   service.IAnalyticsService
}

func NewReviewController(annotations service.IAnnotationService, analytics service.IAnalyticsService) IReviewController {
	return &reviewController{annotations: annotations, analytics: analytics}
}

func (c *reviewController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	reviewers := serverutils.RequireRoles(model.RoleTherapist, model.RoleAdmin)

	post(r, "/annotations", auth, reviewers, c.UpsertAnnotation)
	r.Get("/sessions/:id/annotations", auth, c.GetAnnotations)
	r.Get("/sessions/:id/score", auth, c.Score)
	r.Get("/sessions/:id/severity", auth, c.Severity)
}

func (c *reviewController) UpsertAnnotation(ctx *fiber.Ctx) error {
	caller, err := serverutils.CurrentIdentity(ctx)
	if err != nil {
		return err
	}

	var req dto.UpsertAnnotationRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.BadRequest("Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.annotations.Upsert(ctx.UserContext(), caller, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Annotation saved", res))
}

func (c *reviewController) GetAnnotations(ctx *fiber.Ctx) error {
	caller, err := serverutils.CurrentIdentity(ctx)
	if err != nil {
		return err
	}
	id, err := serverutils.ParamUUID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.annotations.GetBySession(ctx.UserContext(), caller, id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get annotations", res))
}

func (c *reviewController) Score(ctx *fiber.Ctx) error {
	caller, err := serverutils.CurrentIdentity(ctx)
	if err != nil {
		return err
	}
	id, err := serverutils.ParamUUID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.analytics.Score(ctx.UserContext(), caller, id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get session score", res))
}

func (c *reviewController) Severity(ctx *fiber.Ctx) error {
	caller, err := serverutils.CurrentIdentity(ctx)
	if err != nil {
		return err
	}
	id, err := serverutils.ParamUUID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.analytics.Severity(ctx.UserContext(), caller, id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get session severity", res))
}
