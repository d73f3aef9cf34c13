package exchange

import (
	"context"
	"crypto/ecdsa"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	hyperliquid "github.com/sonirico/go-hyperliquid"

	"github.com/vadiminshakov/reckon/internal/entity"
	"github.com/vadiminshakov/reckon/pkg/retrier"
)

// Hyperliquid adapts the perp/spot info API. The venue keeps spot and
// perp capital in separate ledgers, settled in USDC.
type Hyperliquid struct {
	ex    *hyperliquid.Exchange
	addr  string
	retry *retrier.Retrier
}

func NewHyperliquid(privateKeyHex, baseURL string) (*Hyperliquid, error) {
	key := strings.TrimPrefix(strings.TrimPrefix(privateKeyHex, "0x"), "0X")

	privateKey, err := crypto.HexToECDSA(key)
	if err != nil {
		return nil, errors.Wrap(err, "parse hyperliquid private key")
	}

	pub, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("error casting public key to ECDSA")
	}
	addr := crypto.PubkeyToAddress(*pub).Hex()

	ex := hyperliquid.NewExchange(
		context.Background(),
		privateKey,
		baseURL,
		nil,
		"",
		addr,
		nil,
	)

	return &Hyperliquid{ex: ex, addr: addr, retry: connectivityRetrier()}, nil
}

func (h *Hyperliquid) Name() string { return "hyperliquid" }

func (h *Hyperliquid) FetchBalance(ctx context.Context, accountType entity.AccountType) (entity.RawBalances, error) {
	switch accountType {
	case entity.AccountTypeSpot:
		return h.spotBalances(ctx)
	case entity.AccountTypeDerivatives:
		return h.perpBalances(ctx)
	default:
		return nil, ErrAccountTypeUnsupported
	}
}

func (h *Hyperliquid) spotBalances(ctx context.Context) (entity.RawBalances, error) {
	out := make(entity.RawBalances)
	err := h.retry.Do(ctx, func(ctx context.Context) error {
		st, err := h.ex.Info().SpotUserState(ctx, h.addr)
		if err != nil {
			return err
		}
		for _, b := range st.Balances {
			// the venue does not break out locked funds here
			out[b.Coin] = entity.RawAsset{
				Total: str(b.Total),
				Free:  str(b.Total),
				Used:  str("0"),
			}
		}
		return nil
	})
	if err != nil {
		return nil, fetchErr(h.Name(), "spot user state", "", err)
	}
	return out, nil
}

func (h *Hyperliquid) perpBalances(ctx context.Context) (entity.RawBalances, error) {
	out := make(entity.RawBalances)
	err := h.retry.Do(ctx, func(ctx context.Context) error {
		st, err := h.ex.Info().UserState(ctx, h.addr)
		if err != nil {
			return err
		}
		total := st.MarginSummary.TotalRawUsd
		free := st.Withdrawable
		used := "0"
		if t, terr := decimal.NewFromString(total); terr == nil {
			if f, ferr := decimal.NewFromString(free); ferr == nil {
				used = t.Sub(f).String()
			}
		}
		out["USDC"] = entity.RawAsset{Total: str(total), Free: str(free), Used: str(used)}
		return nil
	})
	if err != nil {
		return nil, fetchErr(h.Name(), "user state", "", err)
	}
	return out, nil
}

func (h *Hyperliquid) FetchPositions(ctx context.Context) ([]entity.RawPosition, error) {
	var positions []entity.RawPosition
	err := h.retry.Do(ctx, func(ctx context.Context) error {
		st, err := h.ex.Info().UserState(ctx, h.addr)
		if err != nil {
			return err
		}
		positions = positions[:0]
		for _, ap := range st.AssetPositions {
			pos := entity.RawPosition{
				Symbol:        ap.Position.Coin,
				Size:          str(ap.Position.Szi), // signed, side inferred downstream
				UnrealizedPnl: str(ap.Position.UnrealizedPnl),
				Notional:      str(ap.Position.PositionValue),
			}
			if ap.Position.EntryPx != nil {
				pos.EntryPrice = str(*ap.Position.EntryPx)
			}
			positions = append(positions, pos)
		}
		return nil
	})
	if err != nil {
		return nil, fetchErr(h.Name(), "user state", "", err)
	}
	return positions, nil
}

func (h *Hyperliquid) FetchClosedOrders(ctx context.Context, since time.Time) ([]entity.RawOrder, error) {
	return nil, fetchErr(h.Name(), "order history", "", errors.New("not exposed by the info API surface in use"))
}

func (h *Hyperliquid) FetchFills(ctx context.Context, symbol string, since time.Time) ([]entity.RawFill, error) {
	return nil, fetchErr(h.Name(), "fills", symbol, errors.New("not exposed by the info API surface in use"))
}

func (h *Hyperliquid) ListMarketCapabilities(ctx context.Context) ([]entity.MarketCapability, error) {
	return []entity.MarketCapability{
		entity.CapabilitySpot,
		entity.CapabilitySwap,
	}, nil
}
