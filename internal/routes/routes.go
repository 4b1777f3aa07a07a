package routes

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/fractalauth/fractalauth/internal/authflow"
	"github.com/fractalauth/fractalauth/internal/config"
	"github.com/fractalauth/fractalauth/internal/credential"
	"github.com/fractalauth/fractalauth/internal/middleware"
	"github.com/fractalauth/fractalauth/internal/notification"
	"github.com/fractalauth/fractalauth/internal/puzzle"
	"github.com/fractalauth/fractalauth/internal/session"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	SQL    *sql.DB
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Outside dev a durable store is mandatory, even though main also checks.
	if !d.Cfg.IsDev() && d.DB == nil && d.SQL == nil {
		return fmt.Errorf("a durable credential store is required when APP_ENV=%s", d.Cfg.AppEnv)
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	var (
		repo credential.Repository
		err  error
	)
	switch {
	case d.DB != nil:
		repo = credential.NewPostgresRepository(d.DB)
	case d.SQL != nil:
		repo, err = credential.NewSQLiteRepository(d.SQL)
		if err != nil {
			return err
		}
	default:
		repo = credential.NewMemoryRepository()
	}

	tokens := session.NewManager(d.Cfg.JWTSecret, d.Cfg.AccessTokenTTL)
	notifier := notification.NewLoggerNotifier(d.Logger)
	flow := authflow.NewService(repo, puzzle.NewGenerator(nil), tokens, notifier, d.Logger)
	handler := authflow.NewHandler(flow)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	rateLimiter := middleware.LoginRateLimit(d.Cache, d.Cfg.LoginRatePerMin)
	RegisterAuthRoutes(api, handler, rateLimiter)

	sessionmw := middleware.SessionAuth(tokens)
	protected := api.Group("/session", sessionmw)
	protected.Get("/me", handler.Me)

	if d.Cfg.IsDev() {
		api.Delete("/dev/user/:identity", handler.DevDelete)
	}

	return nil
}
