package location

import (
	"errors"
	"time"

	"github.com/biancann/footfolio/internal/auth"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

func RegisterRoutes(r fiber.Router, src Source, authMiddleware fiber.Handler) {
	r.Put("/:device/status", authMiddleware, func(c *fiber.Ctx) error {
		device, err := claim(c, src)
		if err != nil {
			return err
		}
		var req Status
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.Permission == "" {
			req.Permission = PermissionUndetermined
		}
		if err := src.SetStatus(c.UserContext(), device, req); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		resp := fiber.Map{"status": req}
		if feed, ok := src.(*Feed); ok {
			if opts, watching := feed.WatchOptions(device); watching {
				resp["watch"] = opts
			}
		}
		return c.JSON(resp)
	})

	r.Post("/:device/fixes", authMiddleware, func(c *fiber.Ctx) error {
		device, err := claim(c, src)
		if err != nil {
			return err
		}
		var req Fix
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.Lat < -90 || req.Lat > 90 || req.Lng < -180 || req.Lng > 180 {
			return fiber.NewError(fiber.StatusBadRequest, "lat/lng out of range")
		}
		if req.TimestampMillis == 0 {
			req.TimestampMillis = time.Now().UnixMilli()
		}
		if err := src.Push(c.UserContext(), device, req); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusAccepted).JSON(req)
	})
}

// claim ties the device in the path to the caller's wallet. The param is
// copied because fiber reuses its buffer once the request ends.
func claim(c *fiber.Ctx, src Source) (string, error) {
	owner := auth.Address(c)
	if owner == "" {
		return "", fiber.NewError(fiber.StatusUnauthorized, "missing wallet address")
	}
	device := utils.CopyString(c.Params("device"))
	if err := src.Claim(c.UserContext(), device, owner); err != nil {
		if errors.Is(err, ErrDeviceNotOwned) {
			return "", fiber.NewError(fiber.StatusForbidden, err.Error())
		}
		return "", fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return device, nil
}
