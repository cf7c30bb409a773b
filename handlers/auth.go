package handlers

import (
	"face-match-system/middleware"
	"face-match-system/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"go.uber.org/zap"
)

type loginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

func SetupAuthRoutes(router fiber.Router, auth *services.AuthService, sessions *session.Store, logger *zap.Logger) {
	router.Post("/register", func(c *fiber.Ctx) error {
		var in services.RegisterInput
		if err := c.BodyParser(&in); err != nil {
			return writeError(c, logger, validationError("Invalid request body"))
		}
		user, err := auth.Register(c.UserContext(), in)
		if err != nil {
			return writeError(c, logger, err)
		}
		if err := middleware.LogIn(c, sessions, user.ID); err != nil {
			return writeError(c, logger, err)
		}
		return c.Status(fiber.StatusCreated).JSON(user)
	})

	router.Post("/login", func(c *fiber.Ctx) error {
		var in loginRequest
		if err := c.BodyParser(&in); err != nil {
			return writeError(c, logger, validationError("Invalid request body"))
		}
		user, err := auth.Login(c.UserContext(), in.Username, in.Password)
		if err != nil {
			return writeError(c, logger, err)
		}
		if err := middleware.LogIn(c, sessions, user.ID); err != nil {
			return writeError(c, logger, err)
		}
		return c.JSON(user)
	})

	router.Post("/logout", func(c *fiber.Ctx) error {
		if err := middleware.LogOut(c, sessions); err != nil {
			return writeError(c, logger, err)
		}
		return c.SendStatus(fiber.StatusOK)
	})

	router.Get("/user", middleware.RequireUser(), func(c *fiber.Ctx) error {
		user, err := auth.User(c.UserContext(), middleware.CurrentUser(c))
		if err != nil {
			return writeError(c, logger, err)
		}
		return c.JSON(user)
	})
}
