package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sleepstop/sleepstop-backend/internal/dto"
	"github.com/sleepstop/sleepstop-backend/internal/services"
)

// Protected gates a route on a valid bearer token. A missing or empty
// credential is 401; a credential that fails verification for any reason
// (malformed, bad signature, expired) is 403. On success the user id is
// bound into the request context for handlers downstream.
func Protected(tokens *services.TokenService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// fasthttp trims trailing whitespace from header values, so a bare
		// "Bearer" (with or without the space) must read as an absent token.
		header := c.Get(fiber.HeaderAuthorization)
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer"))
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "No token provided",
			})
		}

		userID, err := tokens.Verify(token)
		if err != nil {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Error: true, Message: "Failed to authenticate token",
			})
		}

		c.Locals("user_id", userID)
		return c.Next()
	}
}

// GetUserID extracts the authenticated user id bound by Protected.
func GetUserID(c *fiber.Ctx) (uuid.UUID, error) {
	userID, ok := c.Locals("user_id").(uuid.UUID)
	if !ok {
		return uuid.Nil, errors.New("no user id in context")
	}
	return userID, nil
}
