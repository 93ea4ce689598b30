// Package mm runs the market-making cycle: replenish collateral, clear the
// previous round of quotes, then quote both sides of each selected market.
package mm

import (
	"context"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"og-mm-bot/internal/catalog"
	"og-mm-bot/internal/chain"
	"og-mm-bot/internal/history"
	"og-mm-bot/internal/metrics"
	"og-mm-bot/internal/orders"
	"og-mm-bot/internal/quote"
	"og-mm-bot/internal/retry"
	"og-mm-bot/internal/state"
)

type MarketLister interface {
	ListEligibleMarkets(ctx context.Context, limit int) ([]catalog.Market, error)
}

type PriceSource interface {
	ReferencePrice(ctx context.Context, tokenID string, fallback float64) (float64, error)
}

type Collateral interface {
	EnsureBalance(ctx context.Context)
	ToppedUp() bool
}

type OrderManager interface {
	CancelAll(ctx context.Context, orderIDs []*big.Int) orders.CancelStats
	PlaceQuote(ctx context.Context, marketKey common.Hash, q quote.Quote, amount *big.Int) orders.PlaceResult
}

// OrderLister reads the wallet's order ids from chain for the startup sweep.
type OrderLister interface {
	UserOrders(ctx context.Context) ([]*big.Int, error)
}

// StatusReader checks whether a market is live on the order-book contract.
type StatusReader interface {
	MarketStatus(ctx context.Context, marketKey common.Hash) (chain.MarketStatus, error)
}

// Subscriber is the optional live price stream; nil disables it.
type Subscriber interface {
	UpdateAssets(ids []string)
}

type Alerter interface {
	Send(ctx context.Context, message string) error
}

// Historian persists quoting activity; a nil *history.Recorder satisfies it.
type Historian interface {
	EnqueueQuote(record history.QuoteRecord)
	EnqueueCycle(record history.CycleRecord)
}

type Options struct {
	Interval     time.Duration
	SpreadPoints int
	OrderAmount  int64
	MaxMarkets   int
	Retry        retry.Options
}

// Deps are the collaborators a Bot drives. Stream, Alerts and History are
// optional; Metrics defaults to noop counters.
type Deps struct {
	Lister     MarketLister
	Prices     PriceSource
	Collateral Collateral
	Orders     OrderManager
	Wallet     OrderLister
	Status     StatusReader
	Stream     Subscriber
	Store      state.Store
	Metrics    *metrics.Metrics
	Alerts     Alerter
	History    Historian
}

type Bot struct {
	deps Deps
	opts Options
	log  *zap.Logger

	sm      *StateMachine
	running atomic.Bool

	// tracked is the cycle's view of resting orders. Only the cycle holding
	// the running flag touches it.
	tracked []orders.Resting
}

func NewBot(deps Deps, opts Options, log *zap.Logger) *Bot {
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNoop()
	}
	return &Bot{deps: deps, opts: opts, log: log}
}

// Run sweeps leftover orders, runs one cycle immediately, then cycles on a
// fixed interval until ctx is cancelled. A tick that fires while a cycle is
// still in flight is dropped.
func (b *Bot) Run(ctx context.Context) error {
	b.sm = NewStateMachine()
	b.sweepLeftoverOrders(ctx)
	b.RunCycle(ctx)

	ticker := time.NewTicker(b.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			b.log.Info("market maker stopping")
			return ctx.Err()
		case <-ticker.C:
			b.RunCycle(ctx)
		}
	}
}

// sweepLeftoverOrders cancels orders left over from a previous run: the
// union of the persisted set and whatever the chain reports for the wallet.
func (b *Bot) sweepLeftoverOrders(ctx context.Context) {
	seen := make(map[string]struct{})
	var ids []*big.Int
	add := func(set []*big.Int) {
		for _, id := range set {
			if id == nil {
				continue
			}
			if _, dup := seen[id.String()]; dup {
				continue
			}
			seen[id.String()] = struct{}{}
			ids = append(ids, id)
		}
	}

	persisted, _, err := state.LoadOrderSet(ctx, b.deps.Store)
	if err != nil {
		b.log.Warn("loading persisted order set failed", zap.Error(err))
	}
	add(persisted)

	if b.deps.Wallet != nil {
		onchain, err := retry.DoValue(ctx, b.log, "user orders", b.opts.Retry, b.deps.Wallet.UserOrders)
		if err != nil {
			b.log.Warn("reading wallet orders failed", zap.Error(err))
		}
		add(onchain)
	}

	if len(ids) == 0 {
		return
	}
	b.log.Info("sweeping leftover orders", zap.Int("count", len(ids)))
	stats := b.deps.Orders.CancelAll(ctx, ids)
	b.countCancels(stats)
	if err := state.SaveOrderSet(ctx, b.deps.Store, nil); err != nil {
		b.log.Warn("persisting order set failed", zap.Error(err))
	}
}

// RunCycle executes one full quoting cycle. It returns false when another
// cycle already holds the running flag.
func (b *Bot) RunCycle(ctx context.Context) bool {
	if !b.running.CompareAndSwap(false, true) {
		b.deps.Metrics.CyclesSkipped.Inc()
		b.log.Debug("cycle already in flight, skipping")
		return false
	}
	defer b.running.Store(false)
	if b.sm == nil {
		b.sm = NewStateMachine()
	}
	// Whatever happens inside the cycle, the machine ends up idle.
	defer b.transition(EventAbort)

	start := time.Now()
	b.transition(EventBegin)

	b.deps.Collateral.EnsureBalance(ctx)
	if b.deps.Collateral.ToppedUp() {
		b.deps.Metrics.CollateralTopUps.Inc()
	}
	b.transition(EventFunded)

	stats := b.deps.Orders.CancelAll(ctx, b.trackedIDs())
	b.countCancels(stats)
	// The tracked set is dropped even when cancels failed; the next startup
	// sweep re-reads the chain and picks up anything that survived.
	b.tracked = nil
	if err := state.SaveOrderSet(ctx, b.deps.Store, nil); err != nil {
		b.log.Warn("persisting order set failed", zap.Error(err))
	}
	b.transition(EventCleared)

	markets, err := retry.DoValue(ctx, b.log, "list markets", b.opts.Retry, func(ctx context.Context) ([]catalog.Market, error) {
		return b.deps.Lister.ListEligibleMarkets(ctx, b.opts.MaxMarkets)
	})
	if err != nil {
		b.log.Error("market selection failed", zap.Error(err))
		b.alert(ctx, fmt.Sprintf("market selection failed: %v", err))
		return true
	}
	if b.deps.Stream != nil {
		tokens := make([]string, 0, len(markets))
		for _, m := range markets {
			if id := m.ReferenceTokenID(); id != "" {
				tokens = append(tokens, id)
			}
		}
		b.deps.Stream.UpdateAssets(tokens)
	}

	amount := chain.ToUnits(b.opts.OrderAmount)
	var cycle history.CycleRecord
	for _, market := range markets {
		b.quoteMarket(ctx, market, amount, &cycle)
	}

	if err := state.SaveOrderSet(ctx, b.deps.Store, b.trackedIDs()); err != nil {
		b.log.Warn("persisting order set failed", zap.Error(err))
	}
	b.transition(EventDone)
	b.deps.Metrics.CyclesRun.Inc()
	if b.deps.History != nil {
		cycle.Time = time.Now().UTC()
		cycle.Markets = len(markets)
		cycle.RestingOrders = len(b.tracked)
		cycle.Duration = time.Since(start)
		b.deps.History.EnqueueCycle(cycle)
	}
	b.log.Info("cycle complete",
		zap.Int("markets", len(markets)),
		zap.Int("resting_orders", len(b.tracked)),
		zap.Duration("took", time.Since(start)),
	)
	return true
}

func (b *Bot) quoteMarket(ctx context.Context, market catalog.Market, amount *big.Int, cycle *history.CycleRecord) {
	key := market.MarketKey()
	log := b.log.With(zap.String("market", key.Hex()), zap.String("question", market.Question))

	if b.deps.Status != nil {
		// A status read failure is not a reason to skip; placement surfaces
		// the real revert if the market is in fact gone.
		if status, err := b.deps.Status.MarketStatus(ctx, key); err == nil && (!status.Exists || status.Resolved) {
			b.deps.Metrics.MarketsSkipped.Inc()
			cycle.Skipped++
			log.Warn("market not quotable on chain, skipping",
				zap.Bool("exists", status.Exists),
				zap.Bool("resolved", status.Resolved))
			return
		}
	}

	price, err := b.deps.Prices.ReferencePrice(ctx, market.ReferenceTokenID(), market.FallbackPrice())
	if err != nil {
		b.deps.Metrics.MarketsSkipped.Inc()
		cycle.Skipped++
		log.Warn("no usable price, skipping market", zap.Error(err))
		return
	}
	q, err := quote.Compute(price, b.opts.SpreadPoints)
	if err != nil {
		b.deps.Metrics.MarketsSkipped.Inc()
		cycle.Skipped++
		log.Warn("quote not representable, skipping market",
			zap.Float64("price", price),
			zap.Error(err))
		return
	}

	res := b.deps.Orders.PlaceQuote(ctx, key, q, amount)
	placed := len(res.Tracked) + res.Untracked
	for i := 0; i < placed; i++ {
		b.deps.Metrics.OrdersPlaced.Inc()
	}
	for i := 0; i < res.Failed; i++ {
		b.deps.Metrics.OrdersFailed.Inc()
	}
	b.tracked = append(b.tracked, res.Tracked...)
	cycle.OrdersPlaced += placed
	cycle.OrdersFailed += res.Failed
	if b.deps.History != nil {
		b.deps.History.EnqueueQuote(history.QuoteRecord{
			Time:         time.Now().UTC(),
			MarketKey:    key.Hex(),
			Question:     market.Question,
			ReferenceMid: price,
			BuyYes:       q.BuyYes,
			BuyNo:        q.BuyNo,
			Placed:       placed,
			Failed:       res.Failed,
		})
	}
	log.Info("market quoted",
		zap.Float64("price", price),
		zap.Int("buy_yes", q.BuyYes),
		zap.Int("buy_no", q.BuyNo),
		zap.Int("placed", len(res.Tracked)),
		zap.Int("untracked", res.Untracked),
		zap.Int("failed", res.Failed),
	)
}

func (b *Bot) trackedIDs() []*big.Int {
	ids := make([]*big.Int, 0, len(b.tracked))
	for _, r := range b.tracked {
		ids = append(ids, r.OrderID)
	}
	return ids
}

func (b *Bot) countCancels(stats orders.CancelStats) {
	for i := 0; i < stats.Cancelled+stats.AlreadyGone; i++ {
		b.deps.Metrics.OrdersCancelled.Inc()
	}
}

func (b *Bot) transition(event Event) {
	next := b.sm.Apply(event)
	b.log.Debug("cycle state", zap.String("state", string(next)))
}

func (b *Bot) alert(ctx context.Context, message string) {
	if b.deps.Alerts == nil {
		return
	}
	if err := b.deps.Alerts.Send(ctx, message); err != nil {
		b.log.Warn("alert delivery failed", zap.Error(err))
	}
}
