// Package trades aggregates recent fills into volume and fee totals.
// Fetching fans out per symbol and is strictly best-effort: a failing
// symbol contributes zero and never cancels its siblings.
package trades

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/reckon/internal/entity"
)

const defaultLookbackDays = 7

// maxConcurrentFetches bounds the per-symbol fan-out so a large symbol
// set does not hammer the venue.
const maxConcurrentFetches = 4

// FillSource is the slice of the connectivity collaborator this
// aggregator needs.
type FillSource interface {
	FetchFills(ctx context.Context, symbol string, since time.Time) ([]entity.RawFill, error)
}

// Stats is the aggregate over all successfully fetched fills.
type Stats struct {
	FillCount   int
	TotalVolume decimal.Decimal
	TotalFees   decimal.Decimal
}

// Aggregator fetches and sums fills over a lookback window.
type Aggregator struct {
	source   FillSource
	logger   *zap.Logger
	lookback time.Duration
}

// New creates an Aggregator. lookbackDays <= 0 falls back to the
// 7-day default.
func New(source FillSource, logger *zap.Logger, lookbackDays int) *Aggregator {
	if lookbackDays <= 0 {
		lookbackDays = defaultLookbackDays
	}
	return &Aggregator{
		source:   source,
		logger:   logger,
		lookback: time.Duration(lookbackDays) * 24 * time.Hour,
	}
}

// Aggregate fetches fills for every symbol since the lookback lower
// bound and accumulates volume and fees. Per-symbol failures are
// logged and contribute zero; the aggregation itself never fails.
func (a *Aggregator) Aggregate(ctx context.Context, symbols []string) Stats {
	since := time.Now().Add(-a.lookback)

	var (
		mu    sync.Mutex
		stats Stats
	)

	var g errgroup.Group
	g.SetLimit(maxConcurrentFetches)

	for _, symbol := range symbols {
		symbol := symbol
		g.Go(func() error {
			fills, err := a.source.FetchFills(ctx, symbol, since)
			if err != nil {
				a.logger.Warn("skipping symbol: fills unavailable",
					zap.String("symbol", symbol), zap.Error(err))
				return nil
			}

			var count int
			var volume, fees decimal.Decimal
			for _, f := range fills {
				count++
				volume = volume.Add(parseOrZero(f.Cost))
				fees = fees.Add(parseOrZero(f.Fee))
			}

			mu.Lock()
			stats.FillCount += count
			stats.TotalVolume = stats.TotalVolume.Add(volume)
			stats.TotalFees = stats.TotalFees.Add(fees)
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait() // goroutines swallow their own errors

	return stats
}

func parseOrZero(v *string) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(*v)
	if err != nil {
		return decimal.Zero
	}
	return d
}
