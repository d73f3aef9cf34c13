// Command reckon reconciles account equity across a venue's
// sub-accounts and reports whether spot and derivatives alias one
// shared margin pool. It runs once by default, or periodically with
// --watch, optionally journaling reports and serving them over HTTP.
//
// Usage:
//
//	reckon --config config.yaml
//	reckon --platform bybit
//	reckon --platform bybit --watch 5m --web :8080
//
// Required environment variables:
//
//	For Bybit: BYBIT_API_KEY, BYBIT_API_SECRET
//	For Binance: BINANCE_API_KEY, BINANCE_API_SECRET
//	For Hyperliquid: HYPERLIQUID_PRIVATE_KEY
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
	bybit "github.com/hirokisan/bybit/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/reckon/config"
	"github.com/vadiminshakov/reckon/internal"
	"github.com/vadiminshakov/reckon/internal/events"
	"github.com/vadiminshakov/reckon/internal/render"
	"github.com/vadiminshakov/reckon/internal/setup"
	"github.com/vadiminshakov/reckon/internal/storage/reports"
	"github.com/vadiminshakov/reckon/internal/web"
)

func main() {
	conf, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	if conf.RunSetup {
		if err := setup.RunTUI(); err != nil {
			log.Fatal(err)
		}
		return
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	client, err := venueClient(conf)
	if err != nil {
		logger.Fatal("failed to build venue client", zap.Error(err))
	}

	reckoner, err := internal.NewReckoner(conf, client, logger)
	if err != nil {
		logger.Fatal("failed to build reckoner", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if conf.WatchInterval <= 0 {
		diagnosis, err := reckoner.Run(ctx)
		if err != nil {
			logger.Fatal("reconciliation failed", zap.Error(err))
		}
		fmt.Println(render.Report(diagnosis))
		return
	}

	if err := watch(ctx, conf, reckoner, logger); err != nil {
		logger.Fatal("watch mode failed", zap.Error(err))
	}
}

// watch reconciles on a fixed interval, journaling every diagnosis and
// optionally serving reports over HTTP.
func watch(ctx context.Context, conf config.Config, reckoner *internal.Reckoner, logger *zap.Logger) error {
	store, err := reports.NewWALStore(conf.JournalDir)
	if err != nil {
		return err
	}
	defer store.Close()

	broadcaster := events.NewDiagnosisBroadcaster(16)

	g, ctx := errgroup.WithContext(ctx)

	if conf.WebAddr != "" {
		server := web.NewServer(conf.WebAddr, store)
		g.Go(func() error {
			logger.Info("serving reports", zap.String("addr", conf.WebAddr))
			if len(conf.WebDomains) > 0 {
				return server.StartWithAutoTLS(ctx, conf.WebDomains, "")
			}
			return server.Start(ctx)
		})
	}

	// terminal reporter follows the broadcast so rendering never blocks
	// the reconcile loop.
	reportFeed := broadcaster.Subscribe()
	g.Go(func() error {
		defer broadcaster.Unsubscribe(reportFeed)
		for {
			select {
			case <-ctx.Done():
				return nil
			case diagnosis, ok := <-reportFeed:
				if !ok {
					return nil
				}
				fmt.Println(render.Report(diagnosis))
			}
		}
	})

	g.Go(func() error {
		ticker := newImmediateTicker(ctx, conf.WatchInterval)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker:
				diagnosis, err := reckoner.Run(ctx)
				if err != nil {
					logger.Error("reconciliation pass failed", zap.Error(err))
					continue
				}
				if err := store.Save(diagnosis); err != nil {
					logger.Error("failed to journal diagnosis", zap.Error(err))
				}
				broadcaster.Publish(diagnosis)
			}
		}
	})

	return g.Wait()
}

// newImmediateTicker fires once right away, then on the interval.
func newImmediateTicker(ctx context.Context, interval time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				select {
				case ch <- t:
				default:
				}
			}
		}
	}()
	return ch
}

func venueClient(conf config.Config) (any, error) {
	switch conf.Platform {
	case "bybit":
		apiKey := os.Getenv("BYBIT_API_KEY")
		apiSecret := os.Getenv("BYBIT_API_SECRET")
		if apiKey == "" || apiSecret == "" {
			return nil, fmt.Errorf("BYBIT_API_KEY and BYBIT_API_SECRET environment variables must be set")
		}
		return bybit.NewClient().WithAuth(apiKey, apiSecret), nil
	case "binance":
		apiKey := os.Getenv("BINANCE_API_KEY")
		apiSecret := os.Getenv("BINANCE_API_SECRET")
		if apiKey == "" || apiSecret == "" {
			return nil, fmt.Errorf("BINANCE_API_KEY and BINANCE_API_SECRET environment variables must be set")
		}
		return internal.BinanceClients{
			Spot:    binance.NewClient(apiKey, apiSecret),
			Futures: futures.NewClient(apiKey, apiSecret),
		}, nil
	case "hyperliquid":
		privateKey := os.Getenv("HYPERLIQUID_PRIVATE_KEY")
		if privateKey == "" {
			return nil, fmt.Errorf("HYPERLIQUID_PRIVATE_KEY environment variable must be set")
		}
		return internal.HyperliquidCredentials{
			PrivateKeyHex: privateKey,
			BaseURL:       conf.HyperliquidURL,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported platform %q", conf.Platform)
	}
}
