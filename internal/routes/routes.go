package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/sleepstop/sleepstop-backend/internal/handlers"
	"github.com/sleepstop/sleepstop-backend/internal/middleware"
	"github.com/sleepstop/sleepstop-backend/internal/services"
)

func Setup(
	app *fiber.App,
	tokens *services.TokenService,
	authHandler *handlers.AuthHandler,
	alarmHandler *handlers.AlarmHandler,
	healthHandler *handlers.HealthHandler,
) {
	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", healthHandler.Check)

	// Auth — public, with a stricter limit: 10 req/min per IP
	auth := api.Group("/auth")
	auth.Use(limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/google", authHandler.GoogleSignIn)

	api.Delete("/auth/account", middleware.Protected(tokens), authHandler.DeleteAccount)

	// Alarms — all protected
	alarms := api.Group("/alarms", middleware.Protected(tokens))
	alarms.Get("/", alarmHandler.ListAlarms)
	alarms.Post("/", alarmHandler.CreateAlarm)
	alarms.Get("/check", alarmHandler.CheckAlarms)
	alarms.Put("/:id", alarmHandler.UpdateAlarm)
	alarms.Delete("/:id", alarmHandler.DeleteAlarm)
}
