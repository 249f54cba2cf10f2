package controller

import (
	"bytes"
	"fmt"
	"time"

	"therapy-chat-be/internal/dto"
	"therapy-chat-be/internal/model"
	"therapy-chat-be/internal/pkg/serverutils"
	"therapy-chat-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IExportController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	Preview(ctx *fiber.Ctx) error
	CreateSnapshot(ctx *fiber.Ctx) error
	GetSnapshots(ctx *fiber.Ctx) error
	ShowSnapshot(ctx *fiber.Ctx) error
	StartFineTune(ctx *fiber.Ctx) error
	ExportCSV(ctx *fiber.Ctx) error
	CreateLock(ctx *fiber.Ctx) error
	GetLocks(ctx *fiber.Ctx) error
	ReleaseLock(ctx *fiber.Ctx) error
}

type exportController struct {
	export   service.IExportService
	finetune service.IFineTuneService
	locks    service.ILockService
}

func NewExportController(export service.IExportService, finetune service.IFineTuneService, locks service.ILockService) IExportController {
	return &exportController{export: export, finetune: finetune, locks: locks}
}

func (c *exportController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	reviewers := serverutils.RequireRoles(model.RoleTherapist, model.RoleAdmin)
	admins := serverutils.RequireRoles(model.RoleAdmin)

	post(r, "/finetune/preview", auth, reviewers, c.Preview)
	getOrPost(r, "/finetune/snapshots", c.GetSnapshots, c.CreateSnapshot, auth, reviewers)
	r.Get("/finetune/snapshots/:id", auth, reviewers, c.ShowSnapshot)
	post(r, "/finetune/snapshots/:id/start", auth, reviewers, c.StartFineTune)

	r.Get("/export/csv", auth, reviewers, c.ExportCSV)

	getOrPost(r, "/admin/locks", c.GetLocks, c.CreateLock, auth, admins)
	post(r, "/admin/locks/:id/release", auth, admins, c.ReleaseLock)
}

func (c *exportController) Preview(ctx *fiber.Ctx) error {
	var req dto.ExportPreviewRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return serverutils.BadRequest("Invalid request body")
		}
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.export.Preview(ctx.UserContext(), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success preview export", res))
}

func (c *exportController) CreateSnapshot(ctx *fiber.Ctx) error {
	caller, err := serverutils.CurrentIdentity(ctx)
	if err != nil {
		return err
	}

	var req dto.CreateSnapshotRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.BadRequest("Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.export.CreateSnapshot(ctx.UserContext(), caller, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success create snapshot", res))
}

func (c *exportController) GetSnapshots(ctx *fiber.Ctx) error {
	res, err := c.export.GetSnapshots(ctx.UserContext())
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get all snapshots", res))
}

func (c *exportController) ShowSnapshot(ctx *fiber.Ctx) error {
	id, err := serverutils.ParamUUID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.export.ShowSnapshot(ctx.UserContext(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show snapshot", res))
}

func (c *exportController) StartFineTune(ctx *fiber.Ctx) error {
	id, err := serverutils.ParamUUID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.finetune.Start(ctx.UserContext(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Fine-tune job started", res))
}

// ExportCSV buffers the file so a failed query still answers with a JSON
// error instead of a truncated attachment.
func (c *exportController) ExportCSV(ctx *fiber.Ctx) error {
	filter, err := dto.ExportFilterFromQuery(func(key string) string { return ctx.Query(key) })
	if err != nil {
		return serverutils.BadRequest(err.Error())
	}

	var buf bytes.Buffer
	if _, err := c.export.ExportCSV(ctx.UserContext(), filter, &buf); err != nil {
		return err
	}

	ctx.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	ctx.Set(fiber.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="training-export-%s.csv"`, time.Now().UTC().Format("2006-01-02")))
	return ctx.Send(buf.Bytes())
}

func (c *exportController) CreateLock(ctx *fiber.Ctx) error {
	caller, err := serverutils.CurrentIdentity(ctx)
	if err != nil {
		return err
	}

	var req dto.CreateLockRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return serverutils.BadRequest("Invalid request body")
		}
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.locks.Create(ctx.UserContext(), caller, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success create lock", res))
}

func (c *exportController) GetLocks(ctx *fiber.Ctx) error {
	res, err := c.locks.GetActive(ctx.UserContext())
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get active locks", res))
}

func (c *exportController) ReleaseLock(ctx *fiber.Ctx) error {
	id, err := serverutils.ParamUUID(ctx, "id")
	if err != nil {
		return err
	}

	if err := c.locks.Release(ctx.UserContext(), id); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Lock released", nil))
}
