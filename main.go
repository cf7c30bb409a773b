package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"face-match-system/broadcast"
	"face-match-system/config"
	"face-match-system/handlers"
	"face-match-system/logging"
	"face-match-system/metrics"
	"face-match-system/middleware"
	"face-match-system/photos"
	"face-match-system/scoring"
	"face-match-system/services"
	"face-match-system/store"
	"face-match-system/utils"
	"face-match-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, !cfg.IsProduction())
	if err != nil {
		log.Fatalf("❌ failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{TranslateError: true})
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("failed to get database handle", zap.Error(err))
	}
	if err := store.Migrate(db); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}
	st := store.New(db)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	photoStore, err := newPhotoStore(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialize photo storage", zap.Error(err))
	}

	facepp := scoring.NewFacePPClient(cfg.FacePP.APIKey, cfg.FacePP.APISecret, cfg.FacePP.BaseURL,
		utils.NewHTTPClient(cfg.Scoring.HTTPTimeout))
	scorer := scoring.NewRetryingProvider(facepp, logger, m, cfg.Scoring.MaxAttempts, cfg.Scoring.RetryBackoff)

	hub := broadcast.NewHub(logger, m)
	var broadcaster broadcast.Broadcaster = hub
	var relay *broadcast.RedisRelay
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("invalid REDIS_URL", zap.Error(err))
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()

		relay = broadcast.NewRedisRelay(rdb, cfg.RedisChannel, hub, logger)
		if err := relay.Start(ctx); err != nil {
			logger.Warn("redis relay unavailable, broadcasting to local observers only", zap.Error(err))
			relay = nil
		} else {
			broadcaster = relay
		}
	}

	matchService := services.NewMatchService(services.MatchDeps{
		Repo:        st,
		Photos:      photoStore,
		Scorer:      scorer,
		Broadcaster: broadcaster,
		Metrics:     m,
		Logger:      logger,
		Pacing:      cfg.Scoring.ComparePacing,
	})
	authService := services.NewAuthService(st, logger)
	leaderboardService := services.NewLeaderboardService(st)
	feedbackService := services.NewFeedbackService(st, logger, m)

	sessionStorage := store.NewSessionStorage(db)
	sessions := session.New(session.Config{
		Storage:        sessionStorage,
		Expiration:     cfg.SessionTTL,
		KeyLookup:      "cookie:" + cfg.SessionCookie,
		CookieHTTPOnly: true,
		CookieSecure:   cfg.IsProduction(),
		CookieSameSite: "Lax",
	})

	app := fiber.New(fiber.Config{
		// multipart framing on top of the photo itself
		BodyLimit:    int(cfg.UploadLimitBytes) + 1<<20,
		ErrorHandler: handlers.ErrorHandler(logger),
	})

	app.Use(requestid.New())
	app.Use(middleware.RequestLogger(logger))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, X-Requested-With, X-Request-ID",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		pingCtx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := sqlDB.PingContext(pingCtx); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
		return c.JSON(fiber.Map{"status": "ok", "observers": hub.Len()})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	handlers.Setup(app, handlers.Deps{
		Auth:        authService,
		Matches:     matchService,
		Leaderboard: leaderboardService,
		Feedback:    feedbackService,
		Hub:         hub,
		Sessions:    sessions,
		UploadLimit: cfg.UploadLimitBytes,
		Logger:      logger,
	})

	if info, err := os.Stat(cfg.StaticDir); err == nil && info.IsDir() {
		app.Use("/", filesystem.New(filesystem.Config{
			Next: func(c *fiber.Ctx) bool {
				return strings.HasPrefix(c.Path(), "/api/") || c.Path() == "/ws"
			},
			Root:         http.Dir(cfg.StaticDir),
			Index:        "index.html",
			MaxAge:       3600,
			NotFoundFile: "index.html",
		}))
	} else {
		logger.Warn("static dir not found, serving API only", zap.String("dir", cfg.StaticDir))
	}

	scheduler, err := workers.NewScheduler(logger)
	if err != nil {
		logger.Fatal("failed to create scheduler", zap.Error(err))
	}
	jobs := []struct {
		name     string
		interval time.Duration
		fn       workers.JobFunc
	}{
		{"session-purge", cfg.SessionPurgeInterval, func(ctx context.Context) error {
			n, err := sessionStorage.PurgeExpired(ctx)
			if n > 0 {
				logger.Info("purged expired sessions", zap.Int64("count", n))
			}
			return err
		}},
		{"feedback-flush", cfg.FeedbackFlushInterval, func(ctx context.Context) error {
			if feedbackService.Pending() == 0 {
				return nil
			}
			_, err := feedbackService.FlushPending(ctx)
			return err
		}},
		{"observer-sweep", cfg.ObserverSweepInterval, func(context.Context) error {
			if n := hub.Sweep(); n > 0 {
				logger.Debug("swept closed observers", zap.Int("count", n))
			}
			return nil
		}},
	}
	for _, j := range jobs {
		if err := scheduler.Every(j.name, j.interval, j.fn); err != nil {
			logger.Fatal("failed to register job", zap.Error(err))
		}
	}
	scheduler.Start()

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	logger.Info("✅ server running",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
		zap.String("photo_storage", cfg.PhotoStorage),
		zap.Bool("redis_relay", relay != nil),
		zap.Strings("allowed_origins", cfg.AllowedOrigins),
	)

	<-ctx.Done()
	logger.Info("shutting down server")

	hub.Close()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := scheduler.Shutdown(); err != nil {
		logger.Warn("scheduler shutdown", zap.Error(err))
	}
	if relay != nil {
		_ = relay.Close()
	}
	if _, err := feedbackService.FlushPending(context.Background()); err != nil {
		logger.Warn("pending feedback lost on shutdown", zap.Int("count", feedbackService.Pending()), zap.Error(err))
	}
	if err := sqlDB.Close(); err != nil {
		logger.Warn("database close", zap.Error(err))
	}
}

func newPhotoStore(ctx context.Context, cfg *config.Config) (photos.Store, error) {
	if cfg.PhotoStorage != config.PhotoStorageR2 {
		return photos.NewInlineStore(), nil
	}
	return photos.NewR2Store(ctx, photos.R2Options{
		AccountID:       cfg.R2.AccountID,
		AccessKeyID:     cfg.R2.AccessKeyID,
		AccessKeySecret: cfg.R2.AccessKeySecret,
		Bucket:          cfg.R2.Bucket,
		CDNBaseURL:      cfg.R2.CDNBaseURL,
	})
}
