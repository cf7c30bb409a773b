package handlers

import (
	"time"

	"face-match-system/broadcast"
	"face-match-system/logging"
	"face-match-system/middleware"
	"face-match-system/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"go.uber.org/zap"
)

// Deps bundles what the HTTP layer calls into.
type Deps struct {
	Auth        *services.AuthService
	Matches     *services.MatchService
	Leaderboard *services.LeaderboardService
	Feedback    *services.FeedbackService
	Hub         *broadcast.Hub
	Sessions    *session.Store
	UploadLimit int64
	Keepalive   time.Duration
	Logger      *zap.Logger
}

// Setup mounts every API and event route on app.
func Setup(app *fiber.App, d Deps) {
	d.Logger = logging.OrNop(d.Logger)
	if d.Keepalive <= 0 {
		d.Keepalive = 15 * time.Second
	}

	app.Use(middleware.SessionUser(d.Sessions, d.Logger))

	api := app.Group("/api")
	SetupAuthRoutes(api, d.Auth, d.Sessions, d.Logger)
	SetupMatchRoutes(api, d.Matches, d.UploadLimit, d.Logger)
	SetupLeaderboardRoutes(api, d.Leaderboard, d.Logger)
	SetupFeedbackRoutes(api, d.Feedback, d.Logger)

	SetupEventRoutes(app, d.Hub, d.Keepalive, d.Logger)
}
