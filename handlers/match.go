package handlers

import (
	"errors"

	"face-match-system/middleware"
	"face-match-system/photos"
	"face-match-system/services"
	"face-match-system/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func SetupMatchRoutes(router fiber.Router, matches *services.MatchService, uploadLimit int64, logger *zap.Logger) {
	secured := router.Group("/matches", middleware.RequireUser())

	secured.Post("/", func(c *fiber.Ctx) error {
		photo, err := formPhoto(c, uploadLimit)
		if err != nil {
			return writeError(c, logger, err)
		}
		if photo == nil {
			return writeError(c, logger, validationError("No photo uploaded"))
		}
		match, err := matches.Create(c.UserContext(), middleware.CurrentUser(c), c.FormValue("invitedUsername"), photo)
		if err != nil {
			return writeError(c, logger, err)
		}
		return c.Status(fiber.StatusCreated).JSON(match)
	})

	secured.Get("/", func(c *fiber.Ctx) error {
		list, err := matches.ListForUser(c.UserContext(), middleware.CurrentUser(c))
		if err != nil {
			return writeError(c, logger, err)
		}
		return c.JSON(list)
	})

	secured.Delete("/", func(c *fiber.Ctx) error {
		n, err := matches.DeleteAllForUser(c.UserContext(), middleware.CurrentUser(c))
		if err != nil {
			return writeError(c, logger, err)
		}
		return c.JSON(fiber.Map{"deleted": n})
	})

	secured.Get("/:id", func(c *fiber.Ctx) error {
		match, err := matches.Get(c.UserContext(), middleware.CurrentUser(c), c.Params("id"))
		if err != nil {
			return writeError(c, logger, err)
		}
		return c.JSON(match)
	})

	secured.Post("/:id/respond", func(c *fiber.Ctx) error {
		accept := c.FormValue("accept") == "true"
		var photo *photos.Upload
		if accept {
			var err error
			if photo, err = formPhoto(c, uploadLimit); err != nil {
				return writeError(c, logger, err)
			}
		}
		match, err := matches.Respond(c.UserContext(), middleware.CurrentUser(c), c.Params("id"), accept, photo)
		if err != nil {
			return writeError(c, logger, err)
		}
		return c.JSON(match)
	})

	secured.Post("/:id/compare", func(c *fiber.Ctx) error {
		res, err := matches.Compare(c.UserContext(), middleware.CurrentUser(c), c.Params("id"))
		if err != nil {
			return writeError(c, logger, err)
		}
		return c.JSON(res)
	})
}

// formPhoto reads the optional "photo" field. A missing file returns nil, nil.
func formPhoto(c *fiber.Ctx, limit int64) (*photos.Upload, error) {
	fh, err := c.FormFile("photo")
	if err != nil {
		return nil, nil
	}
	photo, err := utils.ReadPhoto(fh, limit)
	if err != nil {
		switch {
		case errors.Is(err, utils.ErrNoPhoto):
			return nil, nil
		case errors.Is(err, utils.ErrUnsupportedImage), errors.Is(err, utils.ErrPhotoTooLarge):
			return nil, validationError(err.Error())
		default:
			return nil, &services.Error{Kind: services.KindUnexpected, Message: "Failed to read upload", Err: err}
		}
	}
	return photo, nil
}
