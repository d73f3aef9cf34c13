package internal

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/reckon/config"
	"github.com/vadiminshakov/reckon/internal/entity"
	"github.com/vadiminshakov/reckon/internal/exchange"
	"github.com/vadiminshakov/reckon/internal/services/normalizer"
	"github.com/vadiminshakov/reckon/internal/services/positions"
	"github.com/vadiminshakov/reckon/internal/services/reconciler"
	"github.com/vadiminshakov/reckon/internal/services/trades"
	"github.com/vadiminshakov/reckon/internal/services/unified"
)

// Reckoner runs one reconciliation pass against a venue: fetch,
// normalize, detect shared pools, reconcile, diagnose. Fetch failures
// degrade to zero contributions; only the loss of every capital
// snapshot aborts.
type Reckoner struct {
	venue      exchange.Exchange
	conf       config.Config
	normalizer *normalizer.Normalizer
	detector   *unified.Detector
	trades     *trades.Aggregator
	logger     *zap.Logger
}

// NewReckoner wires the reconciliation services around a venue client.
func NewReckoner(conf config.Config, client any, logger *zap.Logger) (*Reckoner, error) {
	venue, err := createExchange(conf, client)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create venue adapter")
	}

	return &Reckoner{
		venue:      venue,
		conf:       conf,
		normalizer: normalizer.New(conf.SettlementCurrencies),
		detector:   unified.New(conf.SharedPoolEpsilon, conf.SharedPoolPrefer),
		trades:     trades.New(venue, logger, conf.LookbackDays),
		logger:     logger,
	}, nil
}

// Run performs a single reconciliation and returns the diagnosis.
func (r *Reckoner) Run(ctx context.Context) (entity.Diagnosis, error) {
	takenAt := time.Now().UTC()

	capabilities, err := r.venue.ListMarketCapabilities(ctx)
	if err != nil {
		r.logger.Warn("market capabilities unavailable", zap.Error(err))
	}

	var missing []entity.AccountType

	spot := r.snapshot(ctx, entity.AccountTypeSpot, &missing)
	derivatives := r.snapshot(ctx, entity.AccountTypeDerivatives, &missing)
	funding, fundingSource := r.scanFunding(ctx)

	posAgg := r.positions(ctx)

	symbols := r.discoverSymbols(ctx, takenAt, posAgg.Positions)
	stats := r.trades.Aggregate(ctx, symbols)

	verdict := r.detector.Compare(
		entity.AccountTypeSpot, subtotal(spot),
		entity.AccountTypeDerivatives, subtotal(derivatives),
	)
	r.logger.Info("unified-margin verdict",
		zap.Bool("pools_shared", verdict.PoolsAreShared),
		zap.String("rationale", verdict.Rationale))

	diagnosis, err := reconciler.Reconcile(reconciler.Input{
		Venue:   r.venue.Name(),
		TakenAt: takenAt,

		Spot:          spot,
		Derivatives:   derivatives,
		Funding:       funding,
		FundingSource: fundingSource,
		Missing:       missing,

		Verdict: verdict,

		TotalUnrealizedPnl: posAgg.TotalUnrealizedPnl,
		TotalNotional:      posAgg.TotalNotional,
		OpenPositions:      posAgg.Positions,

		FillCount:   stats.FillCount,
		TotalVolume: stats.TotalVolume,
		TotalFees:   stats.TotalFees,

		Capabilities: capabilities,
	})
	if err != nil {
		return entity.Diagnosis{}, errors.Wrap(err, "reconciliation failed")
	}

	r.logger.Info("reconciliation complete",
		zap.String("venue", diagnosis.Venue),
		zap.String("total_equity", diagnosis.TotalEquity.String()),
		zap.Int("open_positions", len(diagnosis.OpenPositions)),
		zap.Int("fills", diagnosis.FillCount))

	return diagnosis, nil
}

// snapshot fetches and normalizes one account type, degrading to nil
// (zero contribution) on any failure.
func (r *Reckoner) snapshot(ctx context.Context, accountType entity.AccountType, missing *[]entity.AccountType) *entity.AccountSnapshot {
	raw, err := r.venue.FetchBalance(ctx, accountType)
	if err != nil {
		r.logger.Warn("balance unavailable, contributes zero",
			zap.String("account_type", accountType.String()), zap.Error(err))
		*missing = append(*missing, accountType)
		return nil
	}

	snap, err := r.normalizer.Normalize(accountType, raw)
	if err != nil {
		r.logger.Warn("balance response malformed, contributes zero",
			zap.String("account_type", accountType.String()), zap.Error(err))
		*missing = append(*missing, accountType)
		return nil
	}

	return &snap
}

// scanFunding probes the configured candidate account types in order
// and returns the first normalized snapshot holding any balance. An
// unsupported candidate is a lookup miss, not an error.
func (r *Reckoner) scanFunding(ctx context.Context) (*entity.AccountSnapshot, entity.AccountType) {
	for _, candidate := range r.conf.FundingCandidates {
		raw, err := r.venue.FetchBalance(ctx, candidate)
		if err != nil {
			if errors.Is(err, exchange.ErrAccountTypeUnsupported) {
				r.logger.Debug("funding candidate not offered by venue",
					zap.String("account_type", candidate.String()))
			} else {
				r.logger.Warn("funding candidate unavailable",
					zap.String("account_type", candidate.String()), zap.Error(err))
			}
			continue
		}

		snap, err := r.normalizer.Normalize(candidate, raw)
		if err != nil {
			r.logger.Warn("funding candidate response malformed",
				zap.String("account_type", candidate.String()), zap.Error(err))
			continue
		}
		if len(snap.Balances) == 0 {
			continue
		}

		return &snap, candidate
	}

	return nil, ""
}

func (r *Reckoner) positions(ctx context.Context) positions.Aggregate {
	raw, err := r.venue.FetchPositions(ctx)
	if err != nil {
		r.logger.Warn("positions unavailable, PnL contributes zero", zap.Error(err))
		return positions.Aggregate{}
	}

	agg, err := positions.Build(raw)
	if err != nil {
		r.logger.Warn("position records malformed, PnL contributes zero", zap.Error(err))
		return positions.Aggregate{}
	}
	return agg
}

// discoverSymbols unions symbols from recent closed orders and open
// positions. Either source failing just narrows the set.
func (r *Reckoner) discoverSymbols(ctx context.Context, now time.Time, open []entity.Position) []string {
	since := now.Add(-time.Duration(r.conf.LookbackDays) * 24 * time.Hour)

	seen := make(map[string]struct{})
	var symbols []string
	add := func(symbol string) {
		if symbol == "" {
			return
		}
		if _, ok := seen[symbol]; ok {
			return
		}
		seen[symbol] = struct{}{}
		symbols = append(symbols, symbol)
	}

	orders, err := r.venue.FetchClosedOrders(ctx, since)
	if err != nil {
		r.logger.Warn("closed orders unavailable for symbol discovery", zap.Error(err))
	}
	for _, o := range orders {
		add(o.Symbol)
	}
	for _, p := range open {
		add(p.Symbol)
	}

	return symbols
}

func subtotal(s *entity.AccountSnapshot) decimal.Decimal {
	if s == nil {
		return decimal.Zero
	}
	return s.SettlementEquivalent
}
