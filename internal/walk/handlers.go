package walk

import (
	"errors"

	"github.com/biancann/footfolio/internal/auth"
	"github.com/biancann/footfolio/internal/chain"
	"github.com/biancann/footfolio/internal/location"
	"github.com/biancann/footfolio/internal/mapview"
	"github.com/biancann/footfolio/internal/metadata"
	"github.com/biancann/footfolio/internal/render"
	"github.com/biancann/footfolio/internal/storage"

	"github.com/gofiber/fiber/v2"
)

type startRequest struct {
	DeviceID  string `json:"device_id"`
	PathColor string `json:"path_color"`
}

type previewRequest struct {
	Background render.Mode `json:"background"`
	PathColor  string      `json:"path_color"`
}

func RegisterRoutes(r fiber.Router, m *Manager, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req startRequest
		if err := c.BodyParser(&req); err != nil || req.DeviceID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "device_id required")
		}
		s, err := m.Start(c.UserContext(), auth.Address(c), req.DeviceID, req.PathColor)
		if s == nil {
			return fiber.NewError(statusFor(err), err.Error())
		}
		if err != nil {
			return walkError(c, s, err)
		}
		return c.Status(fiber.StatusCreated).JSON(s.Snapshot())
	})

	r.Get("/current", authMiddleware, func(c *fiber.Ctx) error {
		s, err := m.ForOwner(auth.Address(c))
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return c.JSON(s.Snapshot())
	})

	r.Get("/:id", authMiddleware, func(c *fiber.Ctx) error {
		s, err := owned(c, m)
		if err != nil {
			return err
		}
		return c.JSON(s.Snapshot())
	})

	r.Post("/:id/stop", authMiddleware, func(c *fiber.Ctx) error {
		s, err := owned(c, m)
		if err != nil {
			return err
		}
		if err := s.Stop(c.UserContext()); err != nil {
			return walkError(c, s, err)
		}
		return c.JSON(s.Snapshot())
	})

	r.Put("/:id/preview", authMiddleware, func(c *fiber.Ctx) error {
		s, err := owned(c, m)
		if err != nil {
			return err
		}
		var req previewRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := s.SetPreview(c.UserContext(), req.Background, req.PathColor); err != nil {
			return walkError(c, s, err)
		}
		return c.JSON(s.Snapshot())
	})

	r.Get("/:id/preview.png", authMiddleware, func(c *fiber.Ctx) error {
		s, err := owned(c, m)
		if err != nil {
			return err
		}
		raster, ok := s.Raster()
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no preview rendered")
		}
		c.Set(fiber.HeaderContentType, "image/png")
		c.Set(fiber.HeaderETag, `"`+raster.ID+`"`)
		return c.Send(raster.PNG)
	})

	r.Post("/:id/mint", authMiddleware, func(c *fiber.Ctx) error {
		s, err := owned(c, m)
		if err != nil {
			return err
		}
		if err := s.Mint(c.UserContext(), auth.Address(c)); err != nil {
			return walkError(c, s, err)
		}
		if err := s.Confirm(c.UserContext()); err != nil {
			return walkError(c, s, err)
		}
		return c.JSON(s.Snapshot())
	})

	r.Post("/:id/retry", authMiddleware, func(c *fiber.Ctx) error {
		s, err := owned(c, m)
		if err != nil {
			return err
		}
		if err := s.Retry(); err != nil {
			return walkError(c, s, err)
		}
		return c.JSON(s.Snapshot())
	})

	r.Delete("/:id", authMiddleware, func(c *fiber.Ctx) error {
		if _, err := owned(c, m); err != nil {
			return err
		}
		if err := m.Discard(c.Params("id")); err != nil {
			return fiber.NewError(statusFor(err), err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

// owned looks up the walk and hides walks that belong to someone else.
func owned(c *fiber.Ctx, m *Manager) (*Session, error) {
	s, err := m.Get(c.Params("id"))
	if err != nil || s.Owner() != auth.Address(c) {
		return nil, fiber.NewError(fiber.StatusNotFound, ErrNotFound.Error())
	}
	return s, nil
}

func walkError(c *fiber.Ctx, s *Session, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{
		"error": err.Error(),
		"walk":  s.Snapshot(),
	})
}

func statusFor(err error) int {
	var perr *storage.PublishError
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrInvalidTransition):
		return fiber.StatusConflict
	case errors.Is(err, ErrNoIdentity):
		return fiber.StatusUnauthorized
	case errors.Is(err, ErrUnknownColor), errors.Is(err, render.ErrUnknownMode):
		return fiber.StatusBadRequest
	case errors.Is(err, location.ErrPermissionDenied), errors.Is(err, location.ErrDeviceNotOwned):
		return fiber.StatusForbidden
	case errors.Is(err, location.ErrLocationUnavailable), errors.Is(err, mapview.ErrUnavailable):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, ErrNoSamplesRecorded), errors.Is(err, metadata.ErrInsufficientSamples), errors.Is(err, render.ErrEmptyPath):
		return fiber.StatusUnprocessableEntity
	case errors.As(err, &perr), errors.Is(err, chain.ErrMintRejected), errors.Is(err, chain.ErrMintUnconfirmed), errors.Is(err, chain.ErrChainRead):
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}
