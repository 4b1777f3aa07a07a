package authflow

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fractalauth/fractalauth/internal/credential"
	"github.com/fractalauth/fractalauth/internal/risk"
)

// Handler exposes the registration and login protocols over HTTP.
type Handler struct {
	service *Service
}

// NewHandler constructs the authentication HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type registerIdentityRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterIdentity handles registration stage 1. The registration origin and
// agent baselines are captured from the transport when present.
func (h *Handler) RegisterIdentity(c *fiber.Ctx) error {
	var req registerIdentityRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	origin := c.Get("X-Forwarded-For")
	if origin == "" {
		origin = c.IP()
	}

	err := h.service.RegisterIdentity(c.UserContext(), RegisterIdentityInput{
		Identity: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Origin:   origin,
		Agent:    c.Get(fiber.HeaderUserAgent),
	})
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"success": true, "message": "Identity verified"})
}

type registerFractalRequest struct {
	Username    string              `json:"username"`
	FractalType string              `json:"fractal_type"`
	Markers     []credential.Marker `json:"markers"`
}

// RegisterFractalKey handles registration stage 2.
func (h *Handler) RegisterFractalKey(c *fiber.Ctx) error {
	var req registerFractalRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.service.SetFractalKey(c.UserContext(), req.Username, req.FractalType, req.Markers); err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"success": true})
}

type behaviorRequest struct {
	Username string `json:"username"`
	risk.BehaviorSample
}

// RegisterBehavior handles registration stage 3a and echoes the derived
// baseline profile.
func (h *Handler) RegisterBehavior(c *fiber.Ctx) error {
	var req behaviorRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	baseline, err := h.service.SetBehaviorBaseline(c.UserContext(), req.Username, req.BehaviorSample)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"success": true, "profile": baseline})
}

type registerPuzzlesRequest struct {
	Username string `json:"username"`
}

// RegisterPuzzles handles registration stage 3b: server-side challenge
// generation from the stored markers, completing the registration.
func (h *Handler) RegisterPuzzles(c *fiber.Ctx) error {
	var req registerPuzzlesRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.service.GeneratePuzzles(c.UserContext(), req.Username); err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Registration complete"})
}

type loginPasswordRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginPassword handles login stage 1. Only the fractal variant is returned,
// never coordinates.
func (h *Handler) LoginPassword(c *fiber.Ctx) error {
	var req loginPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	variant, err := h.service.VerifyPassword(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"success": true, "fractal_type": string(variant)})
}

type loginFractalRequest struct {
	Username string              `json:"username"`
	Markers  []credential.Marker `json:"markers"`
}

// LoginFractal handles login stage 2.
func (h *Handler) LoginFractal(c *fiber.Ctx) error {
	var req loginFractalRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.service.VerifyFractalKey(c.UserContext(), req.Username, req.Markers); err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Fractal key verified"})
}

type riskRequest struct {
	Username  string              `json:"username"`
	Behavior  risk.BehaviorSample `json:"behavior"`
	IPAddress string              `json:"ip_address"`
	UserAgent string              `json:"user_agent"`
	LoginHour *int                `json:"login_hour"`
}

// LoginRisk handles login stage 3. Origin, agent, and hour fall back to the
// transport's view of the request when the payload omits them.
func (h *Handler) LoginRisk(c *fiber.Ctx) error {
	var req riskRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	origin := req.IPAddress
	if origin == "" {
		if origin = c.Get("X-Forwarded-For"); origin == "" {
			origin = c.IP()
		}
	}
	agent := req.UserAgent
	if agent == "" {
		agent = c.Get(fiber.HeaderUserAgent)
	}
	hour := time.Now().Hour()
	if req.LoginHour != nil {
		hour = *req.LoginHour
	}

	assessment, err := h.service.AssessRisk(c.UserContext(), AssessInput{
		Identity: req.Username,
		Behavior: req.Behavior,
		Origin:   origin,
		Agent:    agent,
		Hour:     hour,
	})
	if err != nil {
		return mapError(err)
	}
	return c.JSON(assessment)
}

type verifyRequest struct {
	Username string `json:"username"`
	Answer   string `json:"answer"`
}

// LoginVerify handles the final login stage and returns the session grant.
func (h *Handler) LoginVerify(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	grant, err := h.service.VerifyPuzzle(c.UserContext(), req.Username, req.Answer)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{
		"success":      true,
		"message":      "Authentication complete",
		"access_token": grant.AccessToken,
		"expires_in":   grant.ExpiresIn,
	})
}

// Me echoes the authenticated claimant's profile.
func (h *Handler) Me(c *fiber.Ctx) error {
	identity, _ := c.Locals("identity").(string)
	if identity == "" {
		return fiber.NewError(http.StatusUnauthorized, "missing session")
	}
	profile, err := h.service.Profile(c.UserContext(), identity)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(profile)
}

// DevDelete removes a record. Wired only in development environments.
func (h *Handler) DevDelete(c *fiber.Ctx) error {
	identity := c.Params("identity")
	if err := h.service.DeleteIdentity(c.UserContext(), identity); err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"deleted": identity})
}

// mapError translates the protocol error taxonomy to transport statuses
// without leaking which factor failed beyond the sentinel's generic message.
func mapError(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, credential.ErrIdentityExists):
		return fiber.NewError(http.StatusBadRequest, "identity already taken")
	case errors.Is(err, ErrStageOrder):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, credential.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "identity not found")
	case errors.Is(err, ErrIncompleteRegistration):
		return fiber.NewError(http.StatusUnauthorized, "registration not complete, please finish registration first")
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrMarkerMismatch),
		errors.Is(err, ErrIncorrectAnswer):
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, "internal error")
	}
}
