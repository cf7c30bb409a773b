package middleware

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"go.uber.org/zap/zaptest"
)

func newSessionApp(t *testing.T) *fiber.App {
	t.Helper()
	store := session.New()
	app := fiber.New()
	app.Use(RequestLogger(zaptest.NewLogger(t)))
	app.Use(SessionUser(store, zaptest.NewLogger(t)))

	app.Post("/login/:id", func(c *fiber.Ctx) error {
		if err := LogIn(c, store, c.Params("id")); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
	app.Post("/logout", func(c *fiber.Ctx) error {
		if err := LogOut(c, store); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
	app.Get("/me", RequireUser(), func(c *fiber.Ctx) error {
		return c.SendString(CurrentUser(c))
	})
	return app
}

func TestRequireUserRejectsAnonymous(t *testing.T) {
	app := newSessionApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/me", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	app := newSessionApp(t)

	resp, err := app.Test(httptest.NewRequest("POST", "/login/u-42", nil))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	cookies := resp.Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected session cookie")
	}

	req := httptest.NewRequest("GET", "/me", nil)
	req.AddCookie(cookies[0])
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != fiber.StatusOK || string(body) != "u-42" {
		t.Fatalf("expected u-42, got %d %q", resp.StatusCode, body)
	}

	req = httptest.NewRequest("POST", "/logout", nil)
	req.AddCookie(cookies[0])
	if _, err := app.Test(req); err != nil {
		t.Fatalf("logout: %v", err)
	}

	req = httptest.NewRequest("GET", "/me", nil)
	req.AddCookie(cookies[0])
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", resp.StatusCode)
	}
}
