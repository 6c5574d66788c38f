package rank

import (
	"github.com/biancann/footfolio/internal/auth"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service) {
	r.Get("/rank", func(c *fiber.Ctx) error {
		entries, err := svc.Leaderboard(c.UserContext())
		if err != nil {
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		}
		return c.JSON(fiber.Map{"entries": entries})
	})

	r.Get("/profile/:address", func(c *fiber.Ctx) error {
		address, err := auth.NormalizeAddress(c.Params("address"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		profile, err := svc.Profile(c.UserContext(), address)
		if err != nil {
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		}
		return c.JSON(profile)
	})
}
