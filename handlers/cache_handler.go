package handlers

import (
	"github.com/fenilmodi00/market-quotes/services"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type CacheHandler struct {
	Service *services.CacheService
}

func NewCacheHandler(service *services.CacheService) *CacheHandler {
	return &CacheHandler{Service: service}
}

// GetStats reports how many on-demand quotes are cached
func (h *CacheHandler) GetStats(c *fiber.Ctx) error {
	return respondData(c, fiber.Map{
		"entries": h.Service.Size(),
	})
}

// ClearCache drops every cached on-demand quote
func (h *CacheHandler) ClearCache(c *fiber.Ctx) error {
	cleared := h.Service.Size()
	h.Service.Clear()
	logrus.WithField("cleared", cleared).Info("Quote cache cleared via admin endpoint")

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Cache cleared successfully",
		"cleared": cleared,
	})
}
