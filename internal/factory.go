package internal

import (
	"fmt"

	binance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
	bybit "github.com/hirokisan/bybit/v2"

	"github.com/vadiminshakov/reckon/config"
	"github.com/vadiminshakov/reckon/internal/exchange"
)

// BinanceClients bundles the two SDK clients the Binance adapter needs:
// spot and USD-M futures live behind separate base URLs.
type BinanceClients struct {
	Spot    *binance.Client
	Futures *futures.Client
}

// HyperliquidCredentials carries what the Hyperliquid adapter derives
// its signing identity from.
type HyperliquidCredentials struct {
	PrivateKeyHex string
	BaseURL       string
}

// createExchange dispatches to the venue adapter matching the client
// type. Single point of truth for venue wiring.
func createExchange(conf config.Config, client any) (exchange.Exchange, error) {
	switch c := client.(type) {
	case *bybit.Client:
		return exchange.NewBybit(c), nil
	case BinanceClients:
		return exchange.NewBinance(c.Spot, c.Futures), nil
	case HyperliquidCredentials:
		baseURL := c.BaseURL
		if baseURL == "" {
			baseURL = conf.HyperliquidURL
		}
		return exchange.NewHyperliquid(c.PrivateKeyHex, baseURL)
	case exchange.Exchange:
		// pre-built adapters (tests, simulations) pass through
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported client type: %T", client)
	}
}
