package management

import (
	"github.com/gofiber/fiber/v2"

	"github.com/deepaktammali/litellm/internal/app"
)

// Register mounts the customer management API. The /end_user prefix is a
// full alias of /customer; both serve the same handlers.
func Register(router fiber.Router, container *app.Container) {
	h := &handler{container: container}
	requireAuth := authMiddleware(container)

	for _, prefix := range []string{"/customer", "/end_user"} {
		group := router.Group(prefix, requireAuth)
		group.Post("/new", h.create)
		group.Get("/info", h.info)
		group.Get("/list", h.list)
		group.Post("/update", h.update)
		group.Post("/delete", h.delete)
		group.Post("/block", h.block)
		group.Post("/unblock", h.unblock)
		group.Get("/spend", h.spendList)
		group.Get("/spend/report", requireAdmin, h.spendGlobal)
		group.Get("/:userID/spend", h.spendDetail)
	}

	router.Post("/auth/session", requireAuth, h.createSession)
}
