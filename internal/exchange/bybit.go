package exchange

import (
	"context"
	"strconv"
	"time"

	bybit "github.com/hirokisan/bybit/v2"

	"github.com/vadiminshakov/reckon/internal/entity"
	"github.com/vadiminshakov/reckon/pkg/retrier"
)

// Bybit adapts the v5 API. Under a unified trading account both the
// spot and the derivatives read-paths resolve to the same UNIFIED
// wallet, so their subtotals are expected to collapse in the detector.
type Bybit struct {
	client *bybit.Client
	retry  *retrier.Retrier
}

func NewBybit(client *bybit.Client) *Bybit {
	return &Bybit{client: client, retry: connectivityRetrier()}
}

func (b *Bybit) Name() string { return "bybit" }

func (b *Bybit) FetchBalance(ctx context.Context, accountType entity.AccountType) (entity.RawBalances, error) {
	switch accountType {
	case entity.AccountTypeSpot, entity.AccountTypeDerivatives:
		return b.unifiedBalances(ctx, accountType)
	case entity.AccountTypeFunding:
		return b.fundBalances(ctx)
	default:
		return nil, ErrAccountTypeUnsupported
	}
}

func (b *Bybit) unifiedBalances(ctx context.Context, accountType entity.AccountType) (entity.RawBalances, error) {
	out := make(entity.RawBalances)
	err := b.retry.Do(ctx, func(ctx context.Context) error {
		res, err := b.client.V5().Account().GetWalletBalance(bybit.AccountTypeV5("UNIFIED"), nil)
		if err != nil {
			return err
		}
		for _, acct := range res.Result.List {
			for _, coin := range acct.Coin {
				total := coin.WalletBalance
				locked := coin.Locked
				free := total
				if t, terr := strconv.ParseFloat(total, 64); terr == nil {
					if l, lerr := strconv.ParseFloat(locked, 64); lerr == nil {
						free = strconv.FormatFloat(t-l, 'f', -1, 64)
					}
				}
				out[string(coin.Coin)] = entity.RawAsset{
					Total: str(total),
					Free:  str(free),
					Used:  str(locked),
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fetchErr(b.Name(), "wallet balance", accountType.String(), err)
	}
	return out, nil
}

func (b *Bybit) fundBalances(ctx context.Context) (entity.RawBalances, error) {
	out := make(entity.RawBalances)
	err := b.retry.Do(ctx, func(ctx context.Context) error {
		res, err := b.client.V5().Asset().GetAllCoinsBalance(bybit.V5GetAllCoinsBalanceParam{
			AccountType: bybit.AccountTypeV5("FUND"),
		})
		if err != nil {
			return err
		}
		for _, bal := range res.Result.Balance {
			out[string(bal.Coin)] = entity.RawAsset{
				Total: str(bal.WalletBalance),
				Free:  str(bal.TransferBalance),
			}
		}
		return nil
	})
	if err != nil {
		return nil, fetchErr(b.Name(), "funding balance", "", err)
	}
	return out, nil
}

func (b *Bybit) FetchPositions(ctx context.Context) ([]entity.RawPosition, error) {
	settle := bybit.Coin("USDT")
	var positions []entity.RawPosition
	err := b.retry.Do(ctx, func(ctx context.Context) error {
		res, err := b.client.V5().Position().GetPositionInfo(bybit.V5GetPositionInfoParam{
			Category:   bybit.CategoryV5Linear,
			SettleCoin: &settle,
		})
		if err != nil {
			return err
		}
		positions = positions[:0]
		for _, p := range res.Result.List {
			positions = append(positions, entity.RawPosition{
				Symbol:        string(p.Symbol),
				Side:          string(p.Side),
				Size:          str(p.Size),
				EntryPrice:    str(p.AvgPrice),
				MarkPrice:     str(p.MarkPrice),
				UnrealizedPnl: str(p.UnrealisedPnl),
				Notional:      str(p.PositionValue),
				Leverage:      str(p.Leverage),
			})
		}
		return nil
	})
	if err != nil {
		return nil, fetchErr(b.Name(), "positions", "", err)
	}
	return positions, nil
}

func (b *Bybit) FetchClosedOrders(ctx context.Context, since time.Time) ([]entity.RawOrder, error) {
	var orders []entity.RawOrder
	err := b.retry.Do(ctx, func(ctx context.Context) error {
		res, err := b.client.V5().Order().GetHistoryOrders(bybit.V5GetHistoryOrdersParam{
			Category: bybit.CategoryV5Linear,
		})
		if err != nil {
			return err
		}
		orders = orders[:0]
		for _, o := range res.Result.List {
			ts := parseMillis(o.UpdatedTime)
			if ts.Before(since) {
				continue
			}
			orders = append(orders, entity.RawOrder{Symbol: string(o.Symbol), UpdatedAt: ts})
		}
		return nil
	})
	if err != nil {
		return nil, fetchErr(b.Name(), "order history", "", err)
	}
	return orders, nil
}

func (b *Bybit) FetchFills(ctx context.Context, symbol string, since time.Time) ([]entity.RawFill, error) {
	sym := bybit.SymbolV5(symbol)
	var fills []entity.RawFill
	err := b.retry.Do(ctx, func(ctx context.Context) error {
		res, err := b.client.V5().Execution().GetExecutionList(bybit.V5GetExecutionParam{
			Category: bybit.CategoryV5Linear,
			Symbol:   &sym,
		})
		if err != nil {
			return err
		}
		fills = fills[:0]
		for _, e := range res.Result.List {
			ts := parseMillis(e.ExecTime)
			if ts.Before(since) {
				continue
			}
			fills = append(fills, entity.RawFill{
				Symbol:    string(e.Symbol),
				Cost:      str(e.ExecValue),
				Fee:       str(e.ExecFee),
				Timestamp: ts,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fetchErr(b.Name(), "executions", symbol, err)
	}
	return fills, nil
}

func (b *Bybit) ListMarketCapabilities(ctx context.Context) ([]entity.MarketCapability, error) {
	// static: the v5 API serves every market family from one gateway
	return []entity.MarketCapability{
		entity.CapabilitySpot,
		entity.CapabilitySwap,
		entity.CapabilityMargin,
		entity.CapabilityOptions,
	}, nil
}

// parseMillis converts a millisecond-epoch string to time.Time,
// returning the zero time for unparsable input.
func parseMillis(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
