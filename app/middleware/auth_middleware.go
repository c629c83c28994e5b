// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/florelabs/leaftag/app/dto"
	"github.com/florelabs/leaftag/app/services"
	businessflow "github.com/florelabs/leaftag/business_flow"
	"github.com/florelabs/leaftag/models"
	"github.com/gofiber/fiber/v3"
)

// AuthMiddleware validates bearer tokens and resolves the local user for
// protected endpoints. Resolution goes through the auth flow, so a first-time
// caller is auto-provisioned before the handler runs.
type AuthMiddleware struct {
	authFlow businessflow.AuthFlow
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(authFlow businessflow.AuthFlow) *AuthMiddleware {
	return &AuthMiddleware{
		authFlow: authFlow,
	}
}

// Authenticate is the middleware function that validates bearer tokens
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "Authorization header is required",
				Error: dto.ErrorDetail{
					Code: "MISSING_AUTHORIZATION_HEADER",
				},
			})
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "Invalid authorization header format. Expected 'Bearer <token>'",
				Error: dto.ErrorDetail{
					Code: "INVALID_AUTHORIZATION_FORMAT",
				},
			})
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "Access token is required",
				Error: dto.ErrorDetail{
					Code: "MISSING_ACCESS_TOKEN",
				},
			})
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		user, err := m.authFlow.Authenticate(ctx, token)
		if err != nil {
			status, errorCode, message := mapAuthError(err)
			return c.Status(status).JSON(dto.APIResponse{
				Success: false,
				Message: message,
				Error: dto.ErrorDetail{
					Code: errorCode,
				},
			})
		}

		// Store user information in context for downstream handlers
		c.Locals("user_id", user.ID)
		c.Locals("user", user)

		// Store RequestID for audit logging
		if requestID := c.Get("X-Request-ID"); requestID != "" {
			c.Locals("request_id", requestID)
		}

		return c.Next()
	}
}

// mapAuthError translates authentication failures into a stable error code
// per failure class. The HTTP status stays 401 for every token problem so the
// response shape never reveals whether a token was well formed.
func mapAuthError(err error) (int, string, string) {
	switch {
	case errors.Is(err, services.ErrVerifierUnconfigured):
		return fiber.StatusServiceUnavailable, "AUTH_NOT_CONFIGURED", "Authentication is not configured"
	case errors.Is(err, services.ErrTokenExpired):
		return fiber.StatusUnauthorized, "TOKEN_EXPIRED", "Access token has expired"
	case errors.Is(err, services.ErrTokenMalformed):
		return fiber.StatusUnauthorized, "TOKEN_MALFORMED", "Access token is malformed"
	case errors.Is(err, services.ErrTokenUnsupportedAlg):
		return fiber.StatusUnauthorized, "TOKEN_UNSUPPORTED_ALGORITHM", "Access token uses an unsupported signing algorithm"
	case errors.Is(err, services.ErrTokenBadSignature):
		return fiber.StatusUnauthorized, "TOKEN_INVALID", "Invalid access token"
	case errors.Is(err, services.ErrTokenMissingClaims):
		return fiber.StatusUnauthorized, "TOKEN_MISSING_CLAIMS", "Access token is missing required claims"
	case errors.Is(err, businessflow.ErrAccountInactive):
		return fiber.StatusForbidden, "ACCOUNT_INACTIVE", "Account is inactive"
	default:
		return fiber.StatusUnauthorized, "TOKEN_VALIDATION_FAILED", "Token validation failed"
	}
}

// GetUserIDFromContext extracts the authenticated user ID from the request context
func GetUserIDFromContext(c fiber.Ctx) (uint, bool) {
	userID, ok := c.Locals("user_id").(uint)
	return userID, ok
}

// GetUserFromContext extracts the authenticated user from the request context
func GetUserFromContext(c fiber.Ctx) (*models.User, bool) {
	user, ok := c.Locals("user").(*models.User)
	return user, ok
}

// RequireAuth ensures an authenticated user is present on the request
func RequireAuth(c fiber.Ctx) error {
	userID, exists := GetUserIDFromContext(c)
	if !exists || userID == 0 {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
			Success: false,
			Message: "Authentication required",
			Error: dto.ErrorDetail{
				Code: "AUTHENTICATION_REQUIRED",
			},
		})
	}
	return nil
}
