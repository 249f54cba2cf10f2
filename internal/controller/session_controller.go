package controller

import (
	"therapy-chat-be/internal/dto"
	"therapy-chat-be/internal/pkg/serverutils"
	"therapy-chat-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ISessionController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	Create(ctx *fiber.Ctx) error
	GetAll(ctx *fiber.Ctx) error
	Latest(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Share(ctx *fiber.Ctx) error
	SendMessage(ctx *fiber.Ctx) error
	Summarize(ctx *fiber.Ctx) error
	SaveSummary(ctx *fiber.Ctx) error
}

type sessionController struct {
	service service.ISessionService
	summary service.ISummaryService
}

func NewSessionController(service service.ISessionService, summary service.ISummaryService) ISessionController {
	return &sessionController{service: service, summary: summary}
}

func (c *sessionController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	getOrPost(r, "/sessions", c.GetAll, c.Create, auth)
	r.Get("/sessions/latest", auth, c.Latest)
	r.Get("/sessions/:id", auth, c.Show)
	post(r, "/sessions/:id/share", auth, c.Share)
	post(r, "/sessions/:id/messages", auth, c.SendMessage)

	post(r, "/summarize", auth, c.Summarize)
	post(r, "/save-summary", auth, c.SaveSummary)
}

func (c *sessionController) Create(ctx *fiber.Ctx) error {
	caller, err := serverutils.CurrentIdentity(ctx)
	if err != nil {
		return err
	}

	var req dto.CreateSessionRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return serverutils.BadRequest("Invalid request body")
		}
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Create(ctx.UserContext(), caller.UserID, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success create session", res))
}

func (c *sessionController) GetAll(ctx *fiber.Ctx) error {
	caller, err := serverutils.CurrentIdentity(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.GetAll(ctx.UserContext(), caller)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get all sessions", res))
}

func (c *sessionController) Latest(ctx *fiber.Ctx) error {
	caller, err := serverutils.CurrentIdentity(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.Latest(ctx.UserContext(), caller.UserID)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get latest session", res))
}

func (c *sessionController) Show(ctx *fiber.Ctx) error {
	caller, err := serverutils.CurrentIdentity(ctx)
	if err != nil {
		return err
	}
	id, err := serverutils.ParamUUID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.service.Show(ctx.UserContext(), caller, id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show session", res))
}

func (c *sessionController) Share(ctx *fiber.Ctx) error {
	caller, err := serverutils.CurrentIdentity(ctx)
	if err != nil {
		return err
	}
	id, err := serverutils.ParamUUID(ctx, "id")
	if err != nil {
		return err
	}

	var req dto.ShareSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.BadRequest("Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Share(ctx.UserContext(), caller.UserID, id, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success share session", res))
}

func (c *sessionController) SendMessage(ctx *fiber.Ctx) error {
	caller, err := serverutils.CurrentIdentity(ctx)
	if err != nil {
		return err
	}
	id, err := serverutils.ParamUUID(ctx, "id")
	if err != nil {
		return err
	}

	var req dto.SendMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.BadRequest("Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.SendMessage(ctx.UserContext(), caller, id, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success send message", res))
}

func (c *sessionController) Summarize(ctx *fiber.Ctx) error {
	caller, err := serverutils.CurrentIdentity(ctx)
	if err != nil {
		return err
	}

	var req dto.SummarizeRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.BadRequest("Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.summary.Summarize(ctx.UserContext(), caller, req.SessionId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success summarize session", res))
}

func (c *sessionController) SaveSummary(ctx *fiber.Ctx) error {
	caller, err := serverutils.CurrentIdentity(ctx)
	if err != nil {
		return err
	}

	var req dto.SaveSummaryRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.BadRequest("Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.summary.SaveSummary(ctx.UserContext(), caller, &req); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Summary saved", nil))
}
