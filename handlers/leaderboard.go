package handlers

import (
	"face-match-system/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func SetupLeaderboardRoutes(router fiber.Router, leaderboard *services.LeaderboardService, logger *zap.Logger) {
	router.Get("/leaderboard", func(c *fiber.Ctx) error {
		users, err := leaderboard.Top(c.UserContext(), c.QueryInt("limit", services.DefaultLeaderboardLimit))
		if err != nil {
			return writeError(c, logger, err)
		}
		return c.JSON(users)
	})
}
