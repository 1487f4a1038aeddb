package handlers

import (
	"strings"

	"github.com/fenilmodi00/market-quotes/services"
	"github.com/gofiber/fiber/v2"
)

type MarketHandler struct {
	Service *services.MarketDataService
}

func NewMarketHandler(service *services.MarketDataService) *MarketHandler {
	return &MarketHandler{Service: service}
}

// GetStoredQuotes returns every quote persisted by the sync job
func (h *MarketHandler) GetStoredQuotes(c *fiber.Ctx) error {
	quotes, err := h.Service.StoredQuotes(c.Context())
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    quotes,
		"count":   len(quotes),
	})
}

// GetStoredQuote returns the persisted quote for one symbol
func (h *MarketHandler) GetStoredQuote(c *fiber.Ctx) error {
	quote, err := h.Service.StoredQuote(c.Context(), c.Params("symbol"))
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, quote)
}

// GetStockQuote fetches one equity on demand
func (h *MarketHandler) GetStockQuote(c *fiber.Ctx) error {
	quote, err := h.Service.GetStockQuote(c.Context(), c.Params("symbol"))
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, quote)
}

// GetMultipleStocks fetches the comma separated symbols query parameter on demand
func (h *MarketHandler) GetMultipleStocks(c *fiber.Ctx) error {
	batch, err := h.Service.GetMultipleStocks(c.Context(), strings.Split(c.Query("symbols"), ","))
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, batch)
}

// GetIndices fetches every supported index on demand
func (h *MarketHandler) GetIndices(c *fiber.Ctx) error {
	return respondData(c, h.Service.GetIndices(c.Context()))
}

// GetIndex fetches one index; unknown identifiers are 404
func (h *MarketHandler) GetIndex(c *fiber.Ctx) error {
	quote, err := h.Service.GetIndexQuote(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, quote)
}

// GetOverview returns indices plus the configured stocks
func (h *MarketHandler) GetOverview(c *fiber.Ctx) error {
	return respondData(c, h.Service.GetMarketOverview(c.Context()))
}
