package exchange

import (
	"context"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/reckon/internal/entity"
	"github.com/vadiminshakov/reckon/pkg/retrier"
)

// Binance adapts the spot and USD-M futures APIs. Spot and derivatives
// are genuinely separate pools here, so the detector is expected to
// report them as additive.
type Binance struct {
	spot  *binance.Client
	fut   *futures.Client
	retry *retrier.Retrier
}

func NewBinance(spot *binance.Client, fut *futures.Client) *Binance {
	return &Binance{spot: spot, fut: fut, retry: connectivityRetrier()}
}

func (b *Binance) Name() string { return "binance" }

func (b *Binance) FetchBalance(ctx context.Context, accountType entity.AccountType) (entity.RawBalances, error) {
	switch accountType {
	case entity.AccountTypeSpot:
		return b.spotBalances(ctx)
	case entity.AccountTypeDerivatives:
		return b.futuresBalances(ctx)
	default:
		// wallet/earn endpoints are not part of the SDK surface we use
		return nil, ErrAccountTypeUnsupported
	}
}

func (b *Binance) spotBalances(ctx context.Context) (entity.RawBalances, error) {
	out := make(entity.RawBalances)
	err := b.retry.Do(ctx, func(ctx context.Context) error {
		account, err := b.spot.NewGetAccountService().Do(ctx)
		if err != nil {
			return err
		}
		for _, bal := range account.Balances {
			free, ferr := decimal.NewFromString(bal.Free)
			locked, lerr := decimal.NewFromString(bal.Locked)
			if ferr != nil || lerr != nil {
				// pass through as-is, the normalizer reports malformed values
				out[bal.Asset] = entity.RawAsset{Free: str(bal.Free), Used: str(bal.Locked)}
				continue
			}
			out[bal.Asset] = entity.RawAsset{
				Total: str(free.Add(locked).String()),
				Free:  str(bal.Free),
				Used:  str(bal.Locked),
			}
		}
		return nil
	})
	if err != nil {
		return nil, fetchErr(b.Name(), "spot account", "", err)
	}
	return out, nil
}

func (b *Binance) futuresBalances(ctx context.Context) (entity.RawBalances, error) {
	out := make(entity.RawBalances)
	err := b.retry.Do(ctx, func(ctx context.Context) error {
		account, err := b.fut.NewGetAccountService().Do(ctx)
		if err != nil {
			return err
		}
		for _, asset := range account.Assets {
			total, terr := decimal.NewFromString(asset.MarginBalance)
			free, ferr := decimal.NewFromString(asset.AvailableBalance)
			if terr != nil || ferr != nil {
				out[asset.Asset] = entity.RawAsset{Total: str(asset.MarginBalance), Free: str(asset.AvailableBalance)}
				continue
			}
			out[asset.Asset] = entity.RawAsset{
				Total: str(asset.MarginBalance),
				Free:  str(asset.AvailableBalance),
				Used:  str(total.Sub(free).String()),
			}
		}
		return nil
	})
	if err != nil {
		return nil, fetchErr(b.Name(), "futures account", "", err)
	}
	return out, nil
}

func (b *Binance) FetchPositions(ctx context.Context) ([]entity.RawPosition, error) {
	var positions []entity.RawPosition
	err := b.retry.Do(ctx, func(ctx context.Context) error {
		risks, err := b.fut.NewGetPositionRiskService().Do(ctx)
		if err != nil {
			return err
		}
		positions = positions[:0]
		for _, r := range risks {
			positions = append(positions, entity.RawPosition{
				Symbol:        r.Symbol,
				Side:          r.PositionSide,
				Size:          str(r.PositionAmt),
				EntryPrice:    str(r.EntryPrice),
				MarkPrice:     str(r.MarkPrice),
				UnrealizedPnl: str(r.UnRealizedProfit),
				Notional:      str(r.Notional),
				Leverage:      str(r.Leverage),
			})
		}
		return nil
	})
	if err != nil {
		return nil, fetchErr(b.Name(), "position risk", "", err)
	}
	return positions, nil
}

func (b *Binance) FetchClosedOrders(ctx context.Context, since time.Time) ([]entity.RawOrder, error) {
	// the order-history endpoint requires a symbol up front, which is
	// exactly what the caller is trying to discover
	return nil, fetchErr(b.Name(), "order history", "", errors.New("venue requires a symbol for order history"))
}

func (b *Binance) FetchFills(ctx context.Context, symbol string, since time.Time) ([]entity.RawFill, error) {
	var fills []entity.RawFill
	err := b.retry.Do(ctx, func(ctx context.Context) error {
		trades, err := b.fut.NewListAccountTradeService().
			Symbol(symbol).
			StartTime(since.UnixMilli()).
			Do(ctx)
		if err != nil {
			return err
		}
		fills = fills[:0]
		for _, t := range trades {
			fills = append(fills, entity.RawFill{
				Symbol:    t.Symbol,
				Cost:      str(t.QuoteQuantity),
				Fee:       str(t.Commission),
				Timestamp: time.UnixMilli(t.Time),
			})
		}
		return nil
	})
	if err != nil {
		return nil, fetchErr(b.Name(), "account trades", symbol, err)
	}
	return fills, nil
}

func (b *Binance) ListMarketCapabilities(ctx context.Context) ([]entity.MarketCapability, error) {
	return []entity.MarketCapability{
		entity.CapabilitySpot,
		entity.CapabilitySwap,
		entity.CapabilityFuture,
		entity.CapabilityMargin,
	}, nil
}
