package controller

import (
	"therapy-chat-be/internal/dto"
	"therapy-chat-be/internal/model"
	"therapy-chat-be/internal/pkg/serverutils"
	"therapy-chat-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ITeamController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	CreateTeam(ctx *fiber.Ctx) error
	Invite(ctx *fiber.Ctx) error
	Resend(ctx *fiber.Ctx) error
	Join(ctx *fiber.Ctx) error
}

type teamController struct {
	service service.ITeamService
}

func NewTeamController(service service.ITeamService) ITeamController {
	return &teamController{service: service}
}

func (c *teamController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	post(r, "/teams", auth, serverutils.RequireRoles(model.RoleTherapist, model.RoleAdmin), c.CreateTeam)
	post(r, "/teams/invite", auth, c.Invite)
	post(r, "/teams/invite/:id/resend", auth, c.Resend)
	post(r, "/teams/join", auth, c.Join)
}

func (c *teamController) CreateTeam(ctx *fiber.Ctx) error {
	caller, err := serverutils.CurrentIdentity(ctx)
	if err != nil {
		return err
	}

	var req dto.CreateTeamRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.BadRequest("Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.CreateTeam(ctx.UserContext(), caller, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success create team", res))
}

func (c *teamController) Invite(ctx *fiber.Ctx) error {
	caller, err := serverutils.CurrentIdentity(ctx)
	if err != nil {
		return err
	}

	var req dto.InviteRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.BadRequest("Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Invite(ctx.UserContext(), caller, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Invite queued", res))
}

func (c *teamController) Resend(ctx *fiber.Ctx) error {
	caller, err := serverutils.CurrentIdentity(ctx)
	if err != nil {
		return err
	}
	id, err := serverutils.ParamUUID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.service.Resend(ctx.UserContext(), caller, id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Invite re-queued", res))
}

func (c *teamController) Join(ctx *fiber.Ctx) error {
	caller, err := serverutils.CurrentIdentity(ctx)
	if err != nil {
		return err
	}

	var req dto.JoinTeamRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.BadRequest("Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Join(ctx.UserContext(), caller, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Joined team", res))
}
