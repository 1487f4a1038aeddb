package handlers

import (
	"encoding/json"

	"github.com/fenilmodi00/market-quotes/services"
	"github.com/gofiber/fiber/v2"
)

type ToolHandler struct {
	Tools *services.MarketTools
}

func NewToolHandler(tools *services.MarketTools) *ToolHandler {
	return &ToolHandler{Tools: tools}
}

// ListTools returns the registered tool definitions
func (h *ToolHandler) ListTools(c *fiber.Ctx) error {
	return respondData(c, h.Tools.Definitions())
}

// InvokeTool runs the tool named in the path with the JSON request body as arguments
func (h *ToolHandler) InvokeTool(c *fiber.Ctx) error {
	body := c.Body()
	if len(body) > 0 && !json.Valid(body) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	args := make(json.RawMessage, len(body))
	copy(args, body)

	result, err := h.Tools.InvokeTool(c.Context(), c.Params("name"), args)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, result)
}
