package handlers

import (
	"context"

	"realestate-token-api/services"

	"github.com/gofiber/fiber/v2"
)

type Authenticator interface {
	Login(ctx context.Context, email, password string) (*services.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

// SetupAuthRoutes registers the token endpoints.
func SetupAuthRoutes(router fiber.Router, auth Authenticator) {
	router.Post("/token", func(c *fiber.Ctx) error {
		var req loginRequest
		if err := parseBody(c, &req); err != nil {
			return respondError(c, err)
		}
		pair, err := auth.Login(c.UserContext(), req.Email, req.Password)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(pair)
	})

	router.Post("/token/refresh", func(c *fiber.Ctx) error {
		var req refreshRequest
		if err := parseBody(c, &req); err != nil {
			return respondError(c, err)
		}
		access, err := auth.Refresh(c.UserContext(), req.Refresh)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"access": access})
	})
}
