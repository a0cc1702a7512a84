package admission

import (
	"github.com/screencraft/api/pkg/kernel"
	"github.com/gofiber/fiber/v2"
)

// AuthFromContext reads the identity Auth() attached to the request.
func AuthFromContext(c *fiber.Ctx) *kernel.AuthContext {
	ac, _ := c.Locals(kernel.AuthContextKey).(*kernel.AuthContext)
	return ac
}
