// Package app wires configuration into running components: database reader,
// chain client, price feed, metrics endpoint and the market-making loop.
package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"og-mm-bot/internal/alerts"
	"og-mm-bot/internal/catalog"
	"og-mm-bot/internal/chain"
	"og-mm-bot/internal/collateral"
	"og-mm-bot/internal/config"
	"og-mm-bot/internal/feed"
	"og-mm-bot/internal/history"
	"og-mm-bot/internal/metrics"
	"og-mm-bot/internal/mm"
	"og-mm-bot/internal/orders"
	"og-mm-bot/internal/retry"
	"og-mm-bot/internal/state/sqlite"
)

const streamReconnectDelay = 5 * time.Second

type App struct {
	cfg      *config.Config
	log      *zap.Logger
	store    *sqlite.Store
	reader   *catalog.Reader
	client   *chain.Client
	stream   *feed.Stream
	recorder *history.Recorder
	bot      *mm.Bot
	metrics  *metrics.Prometheus
}

func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	if !cfg.Maker.Enabled {
		return nil, errors.New("market maker is disabled in config")
	}
	privateKey := config.PrivateKey()
	if privateKey == "" {
		return nil, errors.New("MM_PRIVATE_KEY is required")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.State.SQLitePath), 0o755); err != nil {
		return nil, err
	}
	store, err := sqlite.New(cfg.State.SQLitePath)
	if err != nil {
		return nil, err
	}

	reader, err := catalog.New(ctx, cfg.Database)
	if err != nil {
		store.Close()
		return nil, err
	}

	client, err := chain.New(cfg.Chain, privateKey, log)
	if err != nil {
		reader.Close()
		store.Close()
		return nil, err
	}
	log.Info("trading wallet ready", zap.String("address", client.Address().Hex()))
	if bal, err := client.UserBalance(ctx); err != nil {
		log.Warn("collateral balance read failed", zap.Error(err))
	} else if locked, err := client.LockedBalance(ctx); err != nil {
		log.Warn("locked balance read failed", zap.Error(err))
	} else {
		log.Info("exchange balances",
			zap.String("available", bal.String()),
			zap.String("locked", locked.String()))
	}

	retryOpts := retry.Options{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxDelay:    cfg.Retry.MaxDelay,
		Multiplier:  cfg.Retry.Multiplier,
	}

	feedClient := feed.NewClient(cfg.Feed.BaseURL, cfg.Feed.Timeout, log)
	var stream *feed.Stream
	var cache feed.Cache
	if cfg.Feed.StreamEnabled {
		stream = feed.NewStream(cfg.Feed.WSURL, streamReconnectDelay, cfg.Feed.StaleAfter, log)
		cache = stream
	}
	prices := feed.NewSource(feedClient, cache, retryOpts, log)

	coll := collateral.NewManager(client, cfg.Maker.MinBalanceUSDC, cfg.Maker.MintAmountUSDC, retryOpts, log)
	orderMgr := orders.NewManager(client, log)

	var prom *metrics.Prometheus
	m := metrics.NewNoop()
	if cfg.Metrics.Enabled {
		prom = metrics.NewPrometheus()
		m = prom.Metrics
	}
	alerter := alerts.NewTelegram(cfg.Telegram, log)

	recorder, err := history.New(cfg.History, cfg.Database.DSN, log)
	if err != nil {
		client.Close()
		reader.Close()
		store.Close()
		return nil, err
	}

	deps := mm.Deps{
		Lister:     reader,
		Prices:     prices,
		Collateral: coll,
		Orders:     orderMgr,
		Wallet:     client,
		Status:     client,
		Store:      store,
		Metrics:    m,
		Alerts:     alerter,
	}
	if stream != nil {
		deps.Stream = stream
	}
	if recorder != nil {
		deps.History = recorder
	}
	bot := mm.NewBot(deps, mm.Options{
		Interval:     cfg.Maker.Interval,
		SpreadPoints: cfg.Maker.SpreadPoints,
		OrderAmount:  cfg.Maker.OrderAmountUSDC,
		MaxMarkets:   cfg.Maker.MaxMarkets,
		Retry:        retryOpts,
	}, log)

	return &App{
		cfg:      cfg,
		log:      log,
		store:    store,
		reader:   reader,
		client:   client,
		stream:   stream,
		recorder: recorder,
		bot:      bot,
		metrics:  prom,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	defer a.store.Close()
	defer a.reader.Close()
	defer a.client.Close()
	defer a.recorder.Close()

	group, ctx := errgroup.WithContext(ctx)
	a.recorder.Start(ctx)

	if a.metrics != nil {
		server := &http.Server{Addr: a.cfg.Metrics.ListenAddr, Handler: a.metricsMux()}
		group.Go(func() error {
			a.log.Info("metrics listening", zap.String("addr", a.cfg.Metrics.ListenAddr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		group.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	if a.stream != nil {
		group.Go(func() error {
			err := a.stream.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	group.Go(func() error {
		err := a.bot.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	return group.Wait()
}

func (a *App) metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	return mux
}
