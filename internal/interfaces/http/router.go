package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stockout-sync/pkg/jwt"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Admin       *AdminHandler
	ServiceName string
	// JWTSecret vacío deja /admin sin autenticación.
	JWTSecret string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": deps.ServiceName})
	})

	guard := func(roles ...string) fiber.Handler {
		if deps.JWTSecret == "" {
			return func(c *fiber.Ctx) error { return c.Next() }
		}
		return RequireRole(roles...)
	}

	admin := app.Group("/admin")
	if deps.JWTSecret != "" {
		admin.Use(AuthMiddleware(deps.JWTSecret))
	}

	admin.Post("/sync/run", guard(jwt.RoleAdmin), deps.Admin.RunSync)
	admin.Get("/sync/status", guard(jwt.RoleAdmin, jwt.RoleOperator), deps.Admin.Status)
	admin.Get("/sellers/:id/sales", guard(jwt.RoleAdmin, jwt.RoleOperator), deps.Admin.SellerSales)
}
