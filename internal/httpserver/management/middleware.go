package management

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/deepaktammali/litellm/internal/app"
	"github.com/deepaktammali/litellm/internal/auth"
	"github.com/deepaktammali/litellm/internal/httpserver/httputil"
)

const (
	authHeaderPrefix  = "bearer "
	authorizationName = "Authorization"
	identityLocalKey  = "litellm/identity"
)

func authMiddleware(container *app.Container) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := strings.TrimSpace(c.Get(authorizationName))
		token := ""
		if raw != "" && strings.HasPrefix(strings.ToLower(raw), authHeaderPrefix) {
			token = strings.TrimSpace(raw[len(authHeaderPrefix):])
		}
		if token == "" {
			return httputil.WriteError(c, httputil.ErrorTypeUnauthorized, "authorization required", "")
		}

		identity, err := container.Auth.Authorize(c.UserContext(), token)
		if err != nil {
			return httputil.WriteError(c, httputil.ErrorTypeUnauthorized, "invalid api key", "")
		}

		c.Locals(identityLocalKey, identity)
		return c.Next()
	}
}

func requireAdmin(c *fiber.Ctx) error {
	identity, ok := identityFromCtx(c)
	if !ok {
		return httputil.WriteError(c, httputil.ErrorTypeUnauthorized, "authorization required", "")
	}
	if !identity.IsAdmin() {
		msg := fmt.Sprintf("Admin-only endpoint. Caller role: %s", identity.Role)
		return httputil.WriteError(c, httputil.ErrorTypeUnauthorized, msg, "")
	}
	return c.Next()
}

func identityFromCtx(c *fiber.Ctx) (auth.Identity, bool) {
	identity, ok := c.Locals(identityLocalKey).(auth.Identity)
	return identity, ok
}
