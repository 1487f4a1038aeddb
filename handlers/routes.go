package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Routes groups the handlers mounted by SetupRoutes; nil handlers are not mounted
type Routes struct {
	Market      *MarketHandler
	Admin       *AdminHandler
	Cache       *CacheHandler
	Tools       *ToolHandler
	HealthCheck func(ctx context.Context) error
}

// SetupRoutes mounts /health and the /api/v1 routes
func SetupRoutes(app *fiber.App, routes Routes) {
	app.Get("/health", func(c *fiber.Ctx) error {
		if routes.HealthCheck != nil {
			if err := routes.HealthCheck(c.Context()); err != nil {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"status":    "degraded",
					"error":     err.Error(),
					"timestamp": time.Now().Unix(),
				})
			}
		}
		return c.JSON(fiber.Map{
			"status":    "ok",
			"timestamp": time.Now().Unix(),
		})
	})

	api := app.Group("/api/v1")

	if routes.Market != nil {
		api.Get("/market/quotes", routes.Market.GetStoredQuotes)
		api.Get("/market/quotes/:symbol", routes.Market.GetStoredQuote)
		api.Get("/market/stocks", routes.Market.GetMultipleStocks)
		api.Get("/market/stocks/:symbol", routes.Market.GetStockQuote)
		api.Get("/market/indices", routes.Market.GetIndices)
		api.Get("/market/indices/:id", routes.Market.GetIndex)
		api.Get("/market/overview", routes.Market.GetOverview)
	}

	if routes.Admin != nil {
		api.Post("/admin/sync", routes.Admin.TriggerSync)
		api.Get("/admin/sync/last", routes.Admin.GetLastSync)
	}

	if routes.Cache != nil {
		api.Get("/admin/cache", routes.Cache.GetStats)
		api.Delete("/admin/cache", routes.Cache.ClearCache)
	}

	if routes.Tools != nil {
		api.Get("/tools", routes.Tools.ListTools)
		api.Post("/tools/:name", routes.Tools.InvokeTool)
	}
}
