// middleware/auth.go
package middleware

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CallerContextMiddleware extracts the caller identity and roles set by the Gateway.
// Reads may be anonymous; every other method needs X-User-ID, which becomes
// the sender of the ledger command.
func CallerContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get("X-User-ID"))
		rolesStr := c.Get("X-User-Roles")

		readOnly := c.Method() == fiber.MethodGet || c.Method() == fiber.MethodHead
		if !readOnly && userID == "" {
			log.Printf("❌ [CALLER_CTX] X-User-ID required but missing: %s %s", c.Method(), c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID: request must come through gateway with auth context",
			})
		}

		var roles []string
		if rolesStr != "" {
			for _, r := range strings.Split(rolesStr, ",") {
				r = strings.TrimSpace(r)
				if r != "" {
					roles = append(roles, r)
				}
			}
		}

		c.Locals("user_id", userID)
		c.Locals("user_roles", roles)

		if !readOnly {
			log.Printf("👤 [CALLER_CTX] UserID=%s, Roles=%v | %s %s", userID, roles, c.Method(), c.Path())
		}
		return c.Next()
	}
}
