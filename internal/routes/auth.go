package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fractalauth/fractalauth/internal/authflow"
)

// RegisterAuthRoutes wires the staged registration and login endpoints. Every
// login stage sits behind the shared per-identity rate limiter.
func RegisterAuthRoutes(r fiber.Router, h *authflow.Handler, rateLimiter fiber.Handler) {
	register := r.Group("/register")
	register.Post("/identity", h.RegisterIdentity)
	register.Post("/fractal", h.RegisterFractalKey)
	register.Post("/behavior", h.RegisterBehavior)
	register.Post("/puzzles", h.RegisterPuzzles)

	login := r.Group("/login")
	if rateLimiter != nil {
		login.Use(rateLimiter)
	}
	login.Post("/password", h.LoginPassword)
	login.Post("/fractal", h.LoginFractal)
	login.Post("/risk", h.LoginRisk)
	login.Post("/verify", h.LoginVerify)
}
