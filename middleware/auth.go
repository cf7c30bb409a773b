package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"go.uber.org/zap"
)

type contextKey string

const (
	// UserIDContextKey holds the authenticated user id in fiber locals.
	UserIDContextKey contextKey = "userID"
	sessionUserKey              = "user_id"
)

// SessionUser resolves the session cookie to a user id and stores it in locals.
// Requests without a session pass through anonymously.
func SessionUser(store *session.Store, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := store.Get(c)
		if err != nil {
			logger.Warn("session lookup failed", zap.String("path", c.Path()), zap.Error(err))
			return c.Next()
		}
		if id, ok := sess.Get(sessionUserKey).(string); ok && id != "" {
			c.Locals(string(UserIDContextKey), id)
		}
		return c.Next()
	}
}

// RequireUser rejects requests that carry no authenticated user.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if CurrentUser(c) == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Not authenticated",
				"code":  "authentication_required",
			})
		}
		return c.Next()
	}
}

// CurrentUser returns the authenticated user id, or "".
func CurrentUser(c *fiber.Ctx) string {
	id, _ := c.Locals(string(UserIDContextKey)).(string)
	return id
}

// LogIn binds userID to a fresh session id.
func LogIn(c *fiber.Ctx, store *session.Store, userID string) error {
	sess, err := store.Get(c)
	if err != nil {
		return err
	}
	if err := sess.Regenerate(); err != nil {
		return err
	}
	sess.Set(sessionUserKey, userID)
	if err := sess.Save(); err != nil {
		return err
	}
	c.Locals(string(UserIDContextKey), userID)
	return nil
}

func LogOut(c *fiber.Ctx, store *session.Store) error {
	sess, err := store.Get(c)
	if err != nil {
		return err
	}
	c.Locals(string(UserIDContextKey), nil)
	return sess.Destroy()
}
