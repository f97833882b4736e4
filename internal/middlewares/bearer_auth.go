package middlewares

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/openbank/authcore/internal/token"
)

const claimsLocalKey = "tokenClaims"

type TokenValidator interface {
	Validate(ctx context.Context, tokenString string) (*token.Claims, error)
}

// BearerAuth validates the Authorization bearer token and stores its claims
// for downstream handlers. Requests without a valid token are rejected.
func BearerAuth(validator TokenValidator) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		header := ctx.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(header, "Bearer ") {
			return ctx.Status(fiber.StatusUnauthorized).JSON(errorResponse{Error: "invalid_token"})
		}
		claims, err := validator.Validate(ctx.Context(), strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			status := fiber.StatusUnauthorized
			if errors.Is(err, token.ErrServiceUnavailable) {
				status = fiber.StatusServiceUnavailable
			}
			return ctx.Status(status).JSON(errorResponse{Error: "invalid_token"})
		}
		ctx.Locals(claimsLocalKey, claims)
		return ctx.Next()
	}
}

// TokenClaims returns the claims stored by BearerAuth, or nil outside an
// authenticated request.
func TokenClaims(ctx *fiber.Ctx) *token.Claims {
	claims, _ := ctx.Locals(claimsLocalKey).(*token.Claims)
	return claims
}
