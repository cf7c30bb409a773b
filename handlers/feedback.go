package handlers

import (
	"face-match-system/middleware"
	"face-match-system/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func SetupFeedbackRoutes(router fiber.Router, feedback *services.FeedbackService, logger *zap.Logger) {
	router.Post("/feedback", func(c *fiber.Ctx) error {
		var in services.FeedbackInput
		if err := c.BodyParser(&in); err != nil {
			return writeError(c, logger, validationError("Invalid request body"))
		}
		receipt, err := feedback.Submit(c.UserContext(), middleware.CurrentUser(c), in)
		if err != nil {
			return writeError(c, logger, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success": true,
			"message": receipt.Message,
			"data":    receipt.Feedback,
		})
	})
}
