package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/fenilmodi00/market-quotes/shared"
	"github.com/sirupsen/logrus"
)

// Tool names exposed to conversational clients
const (
	ToolGetStockPrice     = "get_stock_price"
	ToolGetMarketIndex    = "get_market_index"
	ToolGetMultipleStocks = "get_multiple_stocks"
	ToolGetMarketOverview = "get_market_overview"
)

// UnknownToolError is returned for tool names outside the registered set
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

// ToolDefinition describes one invocable tool and its JSON arguments
type ToolDefinition struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Arguments   map[string]string `json:"arguments"`
}

type toolHandler func(ctx context.Context, args json.RawMessage) (interface{}, error)

// MarketTools dispatches named tool calls onto MarketDataService
type MarketTools struct {
	data        *MarketDataService
	handlers    map[string]toolHandler
	definitions []ToolDefinition
}

// NewMarketTools registers the market tools
func NewMarketTools(data *MarketDataService) *MarketTools {
	tools := &MarketTools{data: data}
	tools.handlers = map[string]toolHandler{
		ToolGetStockPrice:     tools.getStockPrice,
		ToolGetMarketIndex:    tools.getMarketIndex,
		ToolGetMultipleStocks: tools.getMultipleStocks,
		ToolGetMarketOverview: tools.getMarketOverview,
	}
	tools.definitions = []ToolDefinition{
		{
			Name:        ToolGetStockPrice,
			Description: "Current price and change for one NSE equity",
			Arguments:   map[string]string{"symbol": "string, e.g. RELIANCE"},
		},
		{
			Name:        ToolGetMarketIndex,
			Description: "Current level and change for a market index",
			Arguments:   map[string]string{"index": "one of " + strings.Join(SupportedIndexIDs(), ", ")},
		},
		{
			Name:        ToolGetMultipleStocks,
			Description: "Current quotes for several NSE equities",
			Arguments:   map[string]string{"symbols": fmt.Sprintf("array of up to %d strings", MaxSymbolsPerRequest)},
		},
		{
			Name:        ToolGetMarketOverview,
			Description: "Both indices plus the configured stock list",
			Arguments:   map[string]string{},
		},
	}
	sort.Slice(tools.definitions, func(i, j int) bool { return tools.definitions[i].Name < tools.definitions[j].Name })
	return tools
}

// Definitions lists the registered tools sorted by name
func (t *MarketTools) Definitions() []ToolDefinition {
	return append([]ToolDefinition(nil), t.definitions...)
}

// InvokeTool runs the named tool with JSON arguments
func (t *MarketTools) InvokeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	handler, ok := t.handlers[name]
	if !ok {
		return nil, &UnknownToolError{Name: name}
	}

	logrus.WithFields(logrus.Fields{
		"component": "MarketTools",
		"tool":      name,
	}).Debug("Invoking market tool")

	return handler(ctx, args)
}

func (t *MarketTools) getStockPrice(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var params struct {
		Symbol string `json:"symbol"`
	}
	if err := decodeToolArgs(ToolGetStockPrice, args, &params); err != nil {
		return nil, err
	}
	return t.data.GetStockQuote(ctx, params.Symbol)
}

func (t *MarketTools) getMarketIndex(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var params struct {
		Index string `json:"index"`
	}
	if err := decodeToolArgs(ToolGetMarketIndex, args, &params); err != nil {
		return nil, err
	}
	return t.data.GetIndexQuote(ctx, params.Index)
}

func (t *MarketTools) getMultipleStocks(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var params struct {
		Symbols []string `json:"symbols"`
	}
	if err := decodeToolArgs(ToolGetMultipleStocks, args, &params); err != nil {
		return nil, err
	}
	return t.data.GetMultipleStocks(ctx, params.Symbols)
}

func (t *MarketTools) getMarketOverview(ctx context.Context, _ json.RawMessage) (interface{}, error) {
	return t.data.GetMarketOverview(ctx), nil
}

func decodeToolArgs(tool string, args json.RawMessage, target interface{}) error {
	if len(strings.TrimSpace(string(args))) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, target); err != nil {
		return shared.NewServiceError(shared.ErrorCategoryValidation, "INVALID_TOOL_ARGUMENTS",
			fmt.Sprintf("invalid arguments for %s", tool), "MarketTools", tool, false, err)
	}
	return nil
}
