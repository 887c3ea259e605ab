package gateway

import (
	"strings"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/SWM-FIRE/modoco-backend-sub000/modules/auth"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/lifecycle"
)

// IdentityKey is the key used to store verified claims in the Fiber context.
const IdentityKey = "identity"

// Verifier checks an access token.
type Verifier interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// IdentityMiddleware attaches the verified identity of the caller. The token
// comes from the Authorization header or, for browsers opening a websocket,
// from the token query parameter.
func IdentityMiddleware(v Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "invalid_credentials",
				Message: "Access token is required",
			})
		}

		claims, err := v.ValidateToken(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "invalid_credentials",
				Message: "Invalid or expired token",
			})
		}

		c.Locals(IdentityKey, claims)
		return c.Next()
	}
}

// UpgradeMiddleware only lets websocket upgrades through, and only while
// the process is ready.
func UpgradeMiddleware(life lifecycle.Observer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		if life != nil && life.Snapshot().Phase != lifecycle.Ready {
			return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
				Error:   "unavailable",
				Message: "Service is not accepting connections",
			})
		}
		return c.Next()
	}
}

func bearerToken(header string) string {
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func identity(c *fiber.Ctx) *auth.Claims {
	claims, _ := c.Locals(IdentityKey).(*auth.Claims)
	return claims
}
